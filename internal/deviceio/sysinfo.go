// file: internal/deviceio/sysinfo.go
// version: 1.0.0
// guid: 4d5e6f7a-8b9c-4d0e-1f2a-3b4c5d6e7f8a

package deviceio

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/TheRealSavi/iOpenPod/internal/syncerr"
)

// ChecksumType selects which signature(s) a device demands on its database.
type ChecksumType int

const (
	// ChecksumNone is for old devices that accept an unsigned database.
	ChecksumNone ChecksumType = iota
	// ChecksumHash58 devices verify the HMAC-SHA1 signature only.
	ChecksumHash58
	// ChecksumHash72 devices verify the AES-CBC signature only.
	ChecksumHash72
	// ChecksumBoth devices (Classic) verify both; the AES signature is
	// embedded first so its bytes feed the HMAC.
	ChecksumBoth
	// ChecksumHashAB devices (Nano 6G/7G) use a signing scheme this tool
	// does not implement; writing a database for them must fail.
	ChecksumHashAB
)

func (c ChecksumType) String() string {
	switch c {
	case ChecksumNone:
		return "none"
	case ChecksumHash58:
		return "hash58"
	case ChecksumHash72:
		return "hash72"
	case ChecksumBoth:
		return "hash58+hash72"
	case ChecksumHashAB:
		return "hashAB (unsupported)"
	default:
		return "unknown"
	}
}

// SysInfo is the parsed key:value identity file.
type SysInfo struct {
	FirewireGUID [8]byte
	HasGUID      bool
	ModelNumStr  string
	Fields       map[string]string
}

// ParseSysInfo reads and parses the SysInfo file at path.
func ParseSysInfo(path string) (*SysInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("deviceio: opening SysInfo: %w", err)
	}
	defer f.Close()

	info := &SysInfo{Fields: map[string]string{}}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		info.Fields[key] = value

		switch key {
		case "FirewireGuid":
			raw, err := hex.DecodeString(strings.TrimPrefix(strings.ToLower(value), "0x"))
			if err != nil || len(raw) != 8 {
				return nil, fmt.Errorf("deviceio: malformed FirewireGuid %q", value)
			}
			copy(info.FirewireGUID[:], raw)
			info.HasGUID = true
		case "ModelNumStr":
			info.ModelNumStr = value
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("deviceio: reading SysInfo: %w", err)
	}
	return info, nil
}

// modelChecksums maps ModelNumStr prefixes (without the leading "x" the
// file sometimes carries) to the signing scheme that device family checks.
var modelChecksums = map[string]ChecksumType{
	// Nano 3G
	"A978": ChecksumHash58, "A980": ChecksumHash58,
	// Nano 4G
	"B480": ChecksumHash58, "B598": ChecksumHash58,
	// Nano 5G
	"C027": ChecksumHash72, "C031": ChecksumHash72,
	// Classic
	"B145": ChecksumBoth, "B147": ChecksumBoth, "B150": ChecksumBoth,
	"C293": ChecksumBoth, "C297": ChecksumBoth,
	// Nano 6G / 7G
	"C525": ChecksumHashAB, "C526": ChecksumHashAB, "D478": ChecksumHashAB,
}

// ChecksumTypeForModel resolves the signing requirement from a ModelNumStr.
// Unknown models default to ChecksumBoth: over-signing is accepted by every
// device family except the unsupported one, while under-signing bricks the
// library view until the next genuine sync.
func ChecksumTypeForModel(model string) ChecksumType {
	m := strings.TrimPrefix(model, "x")
	for prefix, ct := range modelChecksums {
		if strings.HasPrefix(m, prefix) {
			return ct
		}
	}
	if model == "" {
		return ChecksumNone
	}
	return ChecksumBoth
}

// Profile is everything the signer needs to know about one device.
type Profile struct {
	Checksum ChecksumType
	SysInfo  *SysInfo
	HashInfo *HashInfo // nil when the device does not need HASH72
}

// ResolveProfile loads SysInfo (and HashInfo when the scheme demands it)
// and verifies the key material the scheme needs is present. The override
// string, when non-empty, forces a scheme ("none", "hash58", "hash72",
// "both") for devices whose SysInfo is incomplete.
func ResolveProfile(d *Device, override string) (*Profile, error) {
	info, err := ParseSysInfo(d.SysInfoPath())
	if err != nil {
		return nil, err
	}

	ct := ChecksumTypeForModel(info.ModelNumStr)
	switch strings.ToLower(override) {
	case "":
	case "none":
		ct = ChecksumNone
	case "hash58":
		ct = ChecksumHash58
	case "hash72":
		ct = ChecksumHash72
	case "both", "classic":
		ct = ChecksumBoth
	default:
		return nil, fmt.Errorf("deviceio: unknown checksum override %q", override)
	}

	p := &Profile{Checksum: ct, SysInfo: info}

	if ct == ChecksumHashAB {
		return nil, syncerr.New(syncerr.KindSignerInputMissing,
			fmt.Errorf("deviceio: model %s uses an unsupported signing scheme", info.ModelNumStr))
	}
	if (ct == ChecksumHash58 || ct == ChecksumBoth) && !info.HasGUID {
		return nil, syncerr.New(syncerr.KindSignerInputMissing,
			fmt.Errorf("deviceio: SysInfo has no FirewireGuid"))
	}
	if ct == ChecksumHash72 || ct == ChecksumBoth {
		hi, err := ParseHashInfoFile(d.HashInfoPath())
		if err != nil {
			return nil, syncerr.New(syncerr.KindSignerInputMissing, err)
		}
		p.HashInfo = hi
	}
	return p, nil
}

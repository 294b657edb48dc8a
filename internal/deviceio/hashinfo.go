// file: internal/deviceio/hashinfo.go
// version: 1.0.0
// guid: 5e6f7a8b-9c0d-4e1f-2a3b-4c5d6e7f8a9b

package deviceio

import (
	"bytes"
	"fmt"
	"os"
)

// HashInfo is the 54-byte per-device signing artifact captured once from a
// genuine sync: a magic tag, a device UUID, and the IV plus random bytes
// the AES-CBC signature needs.
type HashInfo struct {
	UUID    [20]byte
	RndPart [12]byte
	IV      [16]byte
}

const (
	hashInfoSize          = 54
	hashInfoRndPartOffset = 26
	hashInfoIVOffset      = 38
)

var hashInfoMagic = []byte("HASHv0")

// ParseHashInfo decodes a HashInfo blob.
func ParseHashInfo(data []byte) (*HashInfo, error) {
	if len(data) < hashInfoSize {
		return nil, fmt.Errorf("deviceio: HashInfo is %d bytes, need %d", len(data), hashInfoSize)
	}
	if !bytes.Equal(data[:6], hashInfoMagic) {
		return nil, fmt.Errorf("deviceio: HashInfo has bad magic %q", data[:6])
	}
	hi := &HashInfo{}
	copy(hi.UUID[:], data[6:26])
	copy(hi.RndPart[:], data[hashInfoRndPartOffset:hashInfoRndPartOffset+12])
	copy(hi.IV[:], data[hashInfoIVOffset:hashInfoIVOffset+16])
	return hi, nil
}

// ParseHashInfoFile reads and decodes the HashInfo file at path.
func ParseHashInfoFile(path string) (*HashInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("deviceio: reading HashInfo: %w", err)
	}
	return ParseHashInfo(data)
}

// Encode serializes hi back to the 54-byte on-disk form.
func (hi *HashInfo) Encode() []byte {
	out := make([]byte, hashInfoSize)
	copy(out, hashInfoMagic)
	copy(out[6:26], hi.UUID[:])
	copy(out[hashInfoRndPartOffset:], hi.RndPart[:])
	copy(out[hashInfoIVOffset:], hi.IV[:])
	return out
}

// file: internal/signer/signer.go
// version: 1.0.0
// guid: b2c3d4e5-6f7a-4b8c-9d0e-1f2a3b4c5d6e

// Package signer implements the two device-specific keyed hashes iPods use
// to accept a rewritten iTunesDB: HASH58 (HMAC-SHA1 keyed off the device's
// FireWire GUID) and HASH72 (SHA1 + AES-128-CBC keyed off a per-device
// HashInfo artifact). The device rejects a database whose signature does
// not verify, so signing is part of the writer's correctness contract.
package signer

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha1"
	"fmt"
)

// Byte offsets inside the emitted mhbd buffer. These mirror
// internal/itunesdb's own mhbd layout constants; the signer is a
// post-codec step over the emitted bytes and operates on the raw buffer
// rather than importing itunesdb.
const (
	offsetDBID          = 24
	offsetUnk0x32        = 50
	offsetHashingScheme = 0x46
	offsetSignature     = 0x58
	unk0x32Len          = 20
	signatureLen        = 46
)

// Scheme values written to the hashing-scheme selector.
const (
	SchemeNone   = 0
	SchemeHash58 = 1
	SchemeHash72 = 2
)

// hash58Constant is the 18-byte fixed prefix SHA1'd together with the
// key-derivation vector.
var hash58Constant = []byte{
	0x67, 0x23, 0xFE, 0x30, 0x45, 0x33, 0xF8, 0x90, 0x99, 0x21,
	0x07, 0xC1, 0xD0, 0x12, 0xB2, 0xA1, 0x07, 0x81,
}

// hash72Key is the fixed AES-128 key every HASH72 device shares.
var hash72Key = []byte{
	0x61, 0x8C, 0xA1, 0x0D, 0xC7, 0xF5, 0x7F, 0xD3,
	0xB4, 0x72, 0x3E, 0x08, 0x15, 0x74, 0x63, 0xD7,
}

// ErrBufferTooSmall is returned when buf isn't large enough to hold the
// mhbd fixed fields the signer reads and writes.
var ErrBufferTooSmall = fmt.Errorf("signer: buffer too small for mhbd fixed fields")

func checkSize(buf []byte) error {
	if len(buf) < offsetSignature+signatureLen {
		return ErrBufferTooSmall
	}
	return nil
}

// backup captures db_id and unk_0x32 so they can be restored after
// hashing; the device computes its own verification hash with both fields
// zeroed, so they are excluded from the hash input here too.
type backup struct {
	dbID    [8]byte
	unk0x32 [unk0x32Len]byte
}

func zeroNormalizationRanges(buf []byte, zeroSignature bool) backup {
	var bk backup
	copy(bk.dbID[:], buf[offsetDBID:offsetDBID+8])
	copy(bk.unk0x32[:], buf[offsetUnk0x32:offsetUnk0x32+unk0x32Len])

	for i := range bk.dbID {
		buf[offsetDBID+i] = 0
	}
	for i := 0; i < unk0x32Len; i++ {
		buf[offsetUnk0x32+i] = 0
	}
	if zeroSignature {
		for i := 0; i < signatureLen; i++ {
			buf[offsetSignature+i] = 0
		}
	}
	return bk
}

func (bk backup) restore(buf []byte) {
	copy(buf[offsetDBID:offsetDBID+8], bk.dbID[:])
	copy(buf[offsetUnk0x32:offsetUnk0x32+unk0x32Len], bk.unk0x32[:])
}

// lcm computes the least common multiple of two bytes treated as small
// integers, with the firmware's special case lcm(0, _) = lcm(_, 0) = 1.
func lcm(a, b byte) int {
	if a == 0 || b == 0 {
		return 1
	}
	g := gcd(int(a), int(b))
	return int(a) * int(b) / g
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// deriveHash58Key builds the HMAC key from the device's 8-byte FireWire
// GUID: each GUID byte pair contributes its lcm, run through the S-box
// tables, and the result is SHA1'd with a fixed prefix.
func deriveHash58Key(guid [8]byte) []byte {
	y := make([]byte, 16)
	for i := 0; i < 4; i++ {
		a, b := guid[2*i], guid[2*i+1]
		l := lcm(a, b)
		hi := byte((l >> 8) & 0xFF)
		lo := byte(l & 0xFF)
		y[4*i+0] = t1[hi]
		y[4*i+1] = t2[hi]
		y[4*i+2] = t1[lo]
		y[4*i+3] = t2[lo]
	}
	input := append(append([]byte{}, hash58Constant...), y...)
	sum := sha1.Sum(input)
	return sum[:]
}

// SignHash58 computes and writes a HASH58 signature into buf, setting the
// hashing-scheme selector to 1. It zeroes the signature slot as part of
// normalization since nothing has been written there yet.
func SignHash58(buf []byte, guid [8]byte) error {
	if err := checkSize(buf); err != nil {
		return err
	}
	bk := zeroNormalizationRanges(buf, true)
	digest := hmacSHA1(deriveHash58Key(guid), buf)
	bk.restore(buf)
	copy(buf[offsetSignature:offsetSignature+20], digest)
	writeScheme(buf, SchemeHash58)
	return nil
}

func hmacSHA1(key, message []byte) []byte {
	mac := hmac.New(sha1.New, key)
	mac.Write(message)
	return mac.Sum(nil)
}

// SignHash72 computes and writes a HASH72 signature into buf, setting the
// hashing-scheme selector to 2. iv and rndpart come from the device's
// HashInfo artifact.
func SignHash72(buf []byte, iv [16]byte, rndpart [12]byte) error {
	if err := checkSize(buf); err != nil {
		return err
	}
	bk := zeroNormalizationRanges(buf, true)
	sum := sha1.Sum(buf)
	bk.restore(buf)

	sig, err := buildHash72Signature(sum[:], iv, rndpart)
	if err != nil {
		return err
	}
	copy(buf[offsetSignature:offsetSignature+signatureLen], sig)
	writeScheme(buf, SchemeHash72)
	return nil
}

func buildHash72Signature(sha1Sum []byte, iv [16]byte, rndpart [12]byte) ([]byte, error) {
	plaintext := append(append([]byte{}, sha1Sum...), rndpart[:]...)
	block, err := aes.NewCipher(hash72Key)
	if err != nil {
		return nil, fmt.Errorf("signer: %w", err)
	}
	ciphertext := make([]byte, len(plaintext))
	cipher.NewCBCEncrypter(block, iv[:]).CryptBlocks(ciphertext, plaintext)

	sig := make([]byte, signatureLen)
	sig[0] = 0x01
	sig[1] = 0x00
	copy(sig[2:14], rndpart[:])
	copy(sig[14:46], ciphertext)
	return sig, nil
}

// SignClassic signs buf with both algorithms, the way a Classic expects:
// HASH72 is computed and written first, because its bytes then become
// part of the input to HASH58, which is computed (and whose scheme
// selector wins) last.
func SignClassic(buf []byte, guid [8]byte, iv [16]byte, rndpart [12]byte) error {
	if err := checkSize(buf); err != nil {
		return err
	}

	bk72 := zeroNormalizationRanges(buf, true)
	sum := sha1.Sum(buf)
	bk72.restore(buf)
	sig72, err := buildHash72Signature(sum[:], iv, rndpart)
	if err != nil {
		return err
	}
	copy(buf[offsetSignature:offsetSignature+signatureLen], sig72)

	bk58 := zeroNormalizationRanges(buf, false)
	digest58 := hmacSHA1(deriveHash58Key(guid), buf)
	bk58.restore(buf)
	copy(buf[offsetSignature:offsetSignature+20], digest58)

	writeScheme(buf, SchemeHash58)
	return nil
}

func writeScheme(buf []byte, scheme uint16) {
	buf[offsetHashingScheme] = byte(scheme)
	buf[offsetHashingScheme+1] = byte(scheme >> 8)
}

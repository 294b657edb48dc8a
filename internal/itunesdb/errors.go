// file: internal/itunesdb/errors.go
// version: 1.0.0
// guid: f4a2d6b7-8e9c-4d0f-1a2b-3c4d5e6f7a8b

package itunesdb

import "fmt"

// TruncatedError reports that a chunk's declared length runs past the end
// of the buffer being parsed.
type TruncatedError struct {
	Tag    string
	Offset int
	Need   int
	Have   int
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("itunesdb: truncated %q chunk at offset %d: need %d bytes, have %d", e.Tag, e.Offset, e.Need, e.Have)
}

// BadMagicError reports a tag that is not ASCII-printable where a tag was
// expected.
type BadMagicError struct {
	Offset int
	Bytes  [4]byte
}

func (e *BadMagicError) Error() string {
	return fmt.Sprintf("itunesdb: bad magic at offset %d: %q", e.Offset, e.Bytes[:])
}

// BadVersionError reports an mhbd.version value the codec does not
// recognize. It is a warning, not a hard failure: the reader still parses
// the database.
type BadVersionError struct {
	Version uint32
}

func (e *BadVersionError) Error() string {
	return fmt.Sprintf("itunesdb: unrecognized mhbd version %d", e.Version)
}

// CodecInvariantViolation reports that the writer's self-check failed
// before emit completed. Nothing is persisted when this is returned; see
// internal/syncerr for the caller-facing error kind.
type CodecInvariantViolation struct {
	Detail string
}

func (e *CodecInvariantViolation) Error() string {
	return fmt.Sprintf("itunesdb: codec invariant violated: %s", e.Detail)
}

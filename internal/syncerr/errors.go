// file: internal/syncerr/errors.go
// version: 1.0.0
// guid: 1a2b3c4d-5e6f-4a7b-8c9d-0e1f2a3b4c5d

// Package syncerr defines the typed error kinds the sync pipeline uses to
// decide whether a failure aborts the run, skips one file, or is merely
// recorded in the plan. Callers branch with errors.As.
package syncerr

import "fmt"

// Kind classifies a sync failure by its disposition.
type Kind int

const (
	// KindPreflightMissingTool aborts the sync before anything runs: the
	// fingerprint binary could not be found.
	KindPreflightMissingTool Kind = iota
	// KindStorageInsufficient aborts before any file mutation: the device
	// does not have room for the planned additions.
	KindStorageInsufficient
	// KindFingerprintFailed skips one file; the sync continues.
	KindFingerprintFailed
	// KindTranscodeFailed skips one action; the sync continues.
	KindTranscodeFailed
	// KindCopyFailed skips one action; the sync continues.
	KindCopyFailed
	// KindUnresolvedCollision is reported in the plan; no action is emitted
	// for the affected group.
	KindUnresolvedCollision
	// KindCodecInvariant is fatal; nothing is persisted.
	KindCodecInvariant
	// KindSignerInputMissing is fatal; the device requires key material
	// (FireWire GUID or HashInfo) that is not available.
	KindSignerInputMissing
	// KindAtomicWriteFailed is fatal; the previous database remains intact
	// and the mapping is not saved.
	KindAtomicWriteFailed
	// KindCancelled means the caller requested cooperative cancellation;
	// neither the database nor the mapping is written.
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindPreflightMissingTool:
		return "preflight-missing-tool"
	case KindStorageInsufficient:
		return "storage-insufficient"
	case KindFingerprintFailed:
		return "fingerprint-failed"
	case KindTranscodeFailed:
		return "transcode-failed"
	case KindCopyFailed:
		return "copy-failed"
	case KindUnresolvedCollision:
		return "unresolved-collision"
	case KindCodecInvariant:
		return "codec-invariant"
	case KindSignerInputMissing:
		return "signer-input-missing"
	case KindAtomicWriteFailed:
		return "atomic-write-failed"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Fatal reports whether an error of this kind must prevent the
// database-and-mapping save.
func (k Kind) Fatal() bool {
	switch k {
	case KindPreflightMissingTool, KindStorageInsufficient,
		KindCodecInvariant, KindSignerInputMissing,
		KindAtomicWriteFailed, KindCancelled:
		return true
	}
	return false
}

// Error is a classified sync failure, optionally scoped to one file.
type Error struct {
	Kind Kind
	Path string // the affected file, if the failure is per-file
	Err  error  // underlying cause, if any
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Path != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Path)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return "sync: " + msg
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err (which may be nil) as a classified sync error.
func New(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// NewFile wraps a per-file failure.
func NewFile(kind Kind, path string, err error) *Error {
	return &Error{Kind: kind, Path: path, Err: err}
}

// Cancelled is the sentinel returned when the cancellation predicate fired
// between items.
var Cancelled = &Error{Kind: KindCancelled}

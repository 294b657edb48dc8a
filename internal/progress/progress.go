// file: internal/progress/progress.go
// version: 1.0.0
// guid: 2b3c4d5e-6f7a-4b8c-9d0e-1f2a3b4c5d6e

// Package progress defines the reporting surface the sync pipeline exposes
// to its caller. The pipeline runs on whatever goroutine the caller gives
// it; the reporter is how a UI observes progress and requests cooperative
// cancellation between items.
package progress

import "log"

// Reporter allows long-running operations to report their progress.
type Reporter interface {
	UpdateProgress(current, total int, message string)
	Log(level, message string)
	// IsCanceled is polled between items. Once it returns true no further
	// items are processed; work already in flight completes normally.
	IsCanceled() bool
}

// Nop is a Reporter that discards everything and never cancels.
type Nop struct{}

func (Nop) UpdateProgress(current, total int, message string) {}
func (Nop) Log(level, message string)                         {}
func (Nop) IsCanceled() bool                                  { return false }

// LogReporter writes progress to the standard logger. Used by the CLI when
// no richer display is attached.
type LogReporter struct {
	// Cancel, when non-nil, is consulted by IsCanceled.
	Cancel func() bool
}

func (r *LogReporter) UpdateProgress(current, total int, message string) {
	if total > 0 {
		log.Printf("[%d/%d] %s", current, total, message)
	} else {
		log.Printf("%s", message)
	}
}

func (r *LogReporter) Log(level, message string) {
	log.Printf("[%s] %s", level, message)
}

func (r *LogReporter) IsCanceled() bool {
	if r.Cancel == nil {
		return false
	}
	return r.Cancel()
}

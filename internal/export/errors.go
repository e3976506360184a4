package export

import (
	"errors"
	"fmt"
)

var (
	// ErrRecorderUnavailable means no encoder can be started on this host.
	ErrRecorderUnavailable = errors.New("video recorder unavailable")
	// ErrCanceled is returned when an export was stopped before finishing.
	ErrCanceled = errors.New("export canceled")
	// ErrNoScenes is returned for projects without scenes.
	ErrNoScenes = errors.New("project has no scenes")
	// ErrBusy means another export is writing the same output file.
	ErrBusy = errors.New("output is locked by another export")
)

// EncoderError wraps a failure reported by the recorder stream.
type EncoderError struct {
	Op    string // start, write or close
	Frame int
	Err   error
}

func (e *EncoderError) Error() string {
	if e.Op == "write" {
		return fmt.Sprintf("encoder %s failed at frame %d: %v", e.Op, e.Frame, e.Err)
	}
	return fmt.Sprintf("encoder %s failed: %v", e.Op, e.Err)
}

func (e *EncoderError) Unwrap() error { return e.Err }

package frame

import (
	"errors"
	"fmt"
)

// ProcessingError reports malformed data detected by a stage. It halts the
// traversal of the offending frame only; the source loop decides what to do
// next. Frames are never retried.
type ProcessingError struct {
	Stage  string // canonical id of the detecting stage ("{type}.{name}")
	Seq    uint64 // sequence number of the offending frame
	Reason string
	Err    error // optional underlying cause
}

// NewProcessingError creates a ProcessingError for the given frame.
func NewProcessingError(stage string, f *Frame, reason string, err error) *ProcessingError {
	pe := &ProcessingError{Stage: stage, Reason: reason, Err: err}
	if f != nil {
		pe.Seq = f.Seq
	}
	return pe
}

func (e *ProcessingError) Error() string {
	msg := fmt.Sprintf("stage %s: frame %d: %s", e.Stage, e.Seq, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// IsProcessingError returns true if err is or wraps a ProcessingError.
func IsProcessingError(err error) bool {
	var pe *ProcessingError
	return errors.As(err, &pe)
}

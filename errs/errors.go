// Package errs defines the error values shared by all wavemem packages.
//
// Callers should match errors with errors.Is against the sentinel values and
// errors.As against the typed errors, which always unwrap to a sentinel.
package errs

import (
	"errors"
	"fmt"
)

// Query and lookup errors.
var (
	// ErrInvalidTime is returned when a time index or timestamp is outside the known bounds.
	// A timestamp before the trace start is not an error for value queries, which yield the sentinel.
	ErrInvalidTime = errors.New("invalid time")

	// ErrUnknownSignal is returned when a signal id is not part of the hierarchy.
	ErrUnknownSignal = errors.New("unknown signal")

	// ErrClosed is returned when a waveform is used after Close.
	ErrClosed = errors.New("waveform closed")
)

// Ingestion and encoding errors.
var (
	// ErrMalformedSignal is returned when a value does not match the signal declaration
	// or when time indices go backwards.
	ErrMalformedSignal = errors.New("malformed signal")

	// ErrIngestionAborted is returned when a load observed cancellation.
	ErrIngestionAborted = errors.New("ingestion aborted")

	// ErrInvalidHierarchy is returned when the hierarchy description is inconsistent.
	ErrInvalidHierarchy = errors.New("invalid hierarchy")

	// ErrInvalidOption is returned when an option value is out of range.
	ErrInvalidOption = errors.New("invalid option")

	// ErrEncoderFinished is returned when an encoder is used after Finish.
	ErrEncoderFinished = errors.New("encoder already finished")
)

// Storage errors.
var (
	// ErrCorrupt is returned when a block fails its size or checksum check on decompression.
	ErrCorrupt = errors.New("corrupt block")
)

// MalformedSignalError names the signal and the offending change index.
type MalformedSignalError struct {
	SignalID uint64
	Index    int
	Reason   string
}

func (e *MalformedSignalError) Error() string {
	return fmt.Sprintf("%s: signal %d, change %d: %s", ErrMalformedSignal, e.SignalID, e.Index, e.Reason)
}

func (e *MalformedSignalError) Unwrap() error {
	return ErrMalformedSignal
}

// NewMalformedSignal creates a MalformedSignalError with a formatted reason.
func NewMalformedSignal(signalID uint64, index int, format string, args ...any) *MalformedSignalError {
	return &MalformedSignalError{
		SignalID: signalID,
		Index:    index,
		Reason:   fmt.Sprintf(format, args...),
	}
}

// LoadError reports the loader phase that failed and, when known, the signal involved.
type LoadError struct {
	Phase     string
	SignalID  uint64
	HasSignal bool
	Err       error
}

func (e *LoadError) Error() string {
	if e.HasSignal {
		return fmt.Sprintf("load failed in %s phase (signal %d): %v", e.Phase, e.SignalID, e.Err)
	}

	return fmt.Sprintf("load failed in %s phase: %v", e.Phase, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

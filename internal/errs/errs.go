// Package errs defines the error kinds surfaced by the rendering core.
//
// Callers match kinds with errors.Is against the sentinel values and use
// errors.As to reach the typed wrappers for context such as the failing
// frame index or decode locator.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfRange is returned when a time query falls outside a clip's
	// valid window. It is a caller error and is never retried.
	ErrOutOfRange = errors.New("time out of range")

	// ErrDecode is returned when media cannot be read at the requested
	// position.
	ErrDecode = errors.New("decode error")

	// ErrDimensionMismatch is returned when effect inputs disagree in size.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrEncode is returned from the export boundary.
	ErrEncode = errors.New("encode error")
)

// DecodeError describes a failed decode of a single native frame.
type DecodeError struct {
	Locator string
	Index   int64
	// Transient marks failures worth one retry (interrupted reads, busy
	// decoder processes).
	Transient bool
	Err       error
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("decode %s frame %d failed", e.Locator, e.Index)
	}
	return fmt.Sprintf("decode %s frame %d: %v", e.Locator, e.Index, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Is makes every DecodeError match ErrDecode.
func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// IsTransient reports whether err carries a transient DecodeError.
func IsTransient(err error) bool {
	var de *DecodeError
	return errors.As(err, &de) && de.Transient
}

// FrameError attaches a render failure to the index of the frame it hit.
type FrameError struct {
	Index int
	Err   error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("frame %d: %v", e.Index, e.Err)
}

func (e *FrameError) Unwrap() error { return e.Err }

// OutOfRange builds an ErrOutOfRange with the offending values.
func OutOfRange(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrOutOfRange, fmt.Sprintf(format, args...))
}

// DimensionMismatch builds an ErrDimensionMismatch for two sizes.
func DimensionMismatch(wantW, wantH, gotW, gotH int) error {
	return fmt.Errorf("%w: want %dx%d, got %dx%d", ErrDimensionMismatch, wantW, wantH, gotW, gotH)
}

// Encode wraps an exporter failure as ErrEncode.
func Encode(err error) error {
	if err == nil || errors.Is(err, ErrEncode) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrEncode, err)
}

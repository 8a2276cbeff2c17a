package errs

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeErrorMatchesKind(t *testing.T) {
	err := fmt.Errorf("clip intro: %w", &DecodeError{Locator: "a.mp4", Index: 12, Err: io.ErrUnexpectedEOF})

	assert.ErrorIs(t, err, ErrDecode)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.False(t, IsTransient(err))
	assert.Contains(t, err.Error(), "a.mp4 frame 12")
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(&DecodeError{Transient: true}))
	assert.False(t, IsTransient(errors.New("plain")))
}

func TestFrameErrorUnwraps(t *testing.T) {
	err := &FrameError{Index: 41, Err: DimensionMismatch(10, 10, 4, 4)}

	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Equal(t, "frame 41: dimension mismatch: want 10x10, got 4x4", err.Error())
}

func TestEncodeWrapsOnce(t *testing.T) {
	assert.NoError(t, Encode(nil))

	err := Encode(Encode(errors.New("pipe closed")))
	assert.ErrorIs(t, err, ErrEncode)
	assert.Equal(t, "encode error: pipe closed", err.Error())
}

func TestOutOfRange(t *testing.T) {
	err := OutOfRange("t=%s outside [0, 5)", "6")
	assert.ErrorIs(t, err, ErrOutOfRange)
}

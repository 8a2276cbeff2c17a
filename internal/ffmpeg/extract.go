package ffmpeg

import (
	"context"
	"fmt"

	"github.com/kikiluvv/ved/pkg/util"
)

// FrameRequest identifies one native frame of a video.
type FrameRequest struct {
	Input     string
	Index     int64
	FrameRate util.Rational
	Width     int
	Height    int
}

// ExtractFrame decodes a single frame as raw RGBA bytes (Width*Height*4).
//
// The input is seeked to half a frame before the requested presentation
// time so that accurate seeking lands on that frame and not the next one.
func (e *Executor) ExtractFrame(ctx context.Context, req FrameRequest) ([]byte, error) {
	if req.Input == "" {
		return nil, fmt.Errorf("input path is required")
	}
	if req.Index < 0 {
		return nil, fmt.Errorf("invalid frame index %d", req.Index)
	}
	if req.FrameRate.Sign() <= 0 {
		return nil, fmt.Errorf("frame rate must be positive")
	}
	if req.Width <= 0 || req.Height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", req.Width, req.Height)
	}

	args := append(seekArgs(req), "-i", req.Input,
		"-frames:v", "1",
		"-an",
		"-vf", NewFilterBuilder().Scale(req.Width, req.Height).Format("rgba").Build(),
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"pipe:1",
	)

	out, err := e.Output(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("frame extraction failed: %w", err)
	}

	want := req.Width * req.Height * 4
	if len(out) < want {
		return nil, fmt.Errorf("frame %d: short read, got %d bytes want %d", req.Index, len(out), want)
	}
	return out[:want], nil
}

func seekArgs(req FrameRequest) []string {
	if req.Index == 0 {
		return nil
	}
	// (2*index - 1) / (2*rate)
	seek := util.Int(2*req.Index - 1).Div(req.FrameRate.MulInt(2))
	return []string{"-ss", util.FormatTimestamp(seek)}
}

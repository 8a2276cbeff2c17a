// Package decode holds the decoder collaborators that turn a source
// locator and a native frame index into a frame.Buffer.
package decode

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kikiluvv/ved/internal/errs"
	"github.com/kikiluvv/ved/internal/ffmpeg"
	"github.com/kikiluvv/ved/internal/frame"
	"github.com/kikiluvv/ved/pkg/util"
)

// Decoder returns the frame at a native index of the media named by
// locator. Failures are *errs.DecodeError.
type Decoder interface {
	DecodeFrame(ctx context.Context, locator string, index int64) (*frame.Buffer, error)
}

// Info describes decodable media.
type Info struct {
	Width      int
	Height     int
	FrameRate  util.Rational
	FrameCount int64
	Duration   util.Rational
}

// Prober reports media properties without decoding frames.
type Prober interface {
	Probe(ctx context.Context, locator string) (Info, error)
}

// Func adapts a function to the Decoder interface.
type Func func(ctx context.Context, locator string, index int64) (*frame.Buffer, error)

func (f Func) DecodeFrame(ctx context.Context, locator string, index int64) (*frame.Buffer, error) {
	return f(ctx, locator, index)
}

// FFmpegDecoder decodes video frames by running ffmpeg once per frame.
// It keeps no decoder state between calls; only probe results are cached.
type FFmpegDecoder struct {
	exec   *ffmpeg.Executor
	logger zerolog.Logger

	mu    sync.Mutex
	infos map[string]Info
}

// NewFFmpegDecoder creates a decoder backed by exec.
func NewFFmpegDecoder(logger zerolog.Logger, exec *ffmpeg.Executor) *FFmpegDecoder {
	return &FFmpegDecoder{
		exec:   exec,
		logger: logger.With().Str("component", "decoder").Logger(),
		infos:  make(map[string]Info),
	}
}

// Probe returns (and caches) the media properties of locator.
func (d *FFmpegDecoder) Probe(ctx context.Context, locator string) (Info, error) {
	d.mu.Lock()
	info, ok := d.infos[locator]
	d.mu.Unlock()
	if ok {
		return info, nil
	}

	vi, err := d.exec.ProbeVideo(ctx, locator)
	if err != nil {
		return Info{}, fmt.Errorf("probe %s: %w", locator, err)
	}
	info = Info{
		Width:      vi.Width,
		Height:     vi.Height,
		FrameRate:  vi.FrameRate,
		FrameCount: vi.FrameCount,
		Duration:   vi.Duration,
	}

	d.mu.Lock()
	d.infos[locator] = info
	d.mu.Unlock()
	return info, nil
}

// DecodeFrame extracts frame index of locator as RGBA8.
func (d *FFmpegDecoder) DecodeFrame(ctx context.Context, locator string, index int64) (*frame.Buffer, error) {
	info, err := d.Probe(ctx, locator)
	if err != nil {
		return nil, &errs.DecodeError{Locator: locator, Index: index, Err: err}
	}
	if index < 0 || (info.FrameCount > 0 && index >= info.FrameCount) {
		return nil, &errs.DecodeError{Locator: locator, Index: index,
			Err: fmt.Errorf("missing frame, media has %d frames", info.FrameCount)}
	}

	pix, err := d.exec.ExtractFrame(ctx, ffmpeg.FrameRequest{
		Input:     locator,
		Index:     index,
		FrameRate: info.FrameRate,
		Width:     info.Width,
		Height:    info.Height,
	})
	if err != nil {
		var exitErr *ffmpeg.ExitError
		transient := ctx.Err() == nil && !errors.As(err, &exitErr)
		return nil, &errs.DecodeError{Locator: locator, Index: index, Transient: transient, Err: err}
	}

	return &frame.Buffer{Width: info.Width, Height: info.Height, Format: frame.RGBA8, Pix: pix}, nil
}

// ImageDecoder decodes still image files. Every index yields the same
// image.
type ImageDecoder struct{}

// DecodeFrame reads locator as a PNG, JPEG or GIF file.
func (ImageDecoder) DecodeFrame(ctx context.Context, locator string, index int64) (*frame.Buffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(locator)
	if err != nil {
		return nil, &errs.DecodeError{Locator: locator, Index: index, Err: err}
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, &errs.DecodeError{Locator: locator, Index: index, Err: err}
	}
	return frame.FromImage(img, frame.RGBA8), nil
}

// Probe reports the image size. Stills have no frame rate.
func (ImageDecoder) Probe(ctx context.Context, locator string) (Info, error) {
	f, err := os.Open(locator)
	if err != nil {
		return Info{}, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return Info{}, fmt.Errorf("probe %s: %w", locator, err)
	}
	return Info{Width: cfg.Width, Height: cfg.Height, FrameCount: 1}, nil
}

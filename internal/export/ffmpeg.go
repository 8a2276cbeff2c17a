package export

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"iter"

	"github.com/kikiluvv/ved/internal/errs"
	"github.com/kikiluvv/ved/internal/ffmpeg"
	"github.com/kikiluvv/ved/internal/frame"
	"github.com/kikiluvv/ved/internal/render"
	"github.com/kikiluvv/ved/pkg/util"
)

// FFmpegExporter pipes PNG frames into an ffmpeg encode. Audio inputs in
// Encode are muxed at their offsets.
type FFmpegExporter struct {
	exec   *ffmpeg.Executor
	encode ffmpeg.EncodeOptions
	opts   Options
}

// NewFFmpegExporter creates an exporter writing encode.Output.
// encode.FrameRate is replaced by the sequence rate.
func NewFFmpegExporter(exec *ffmpeg.Executor, encode ffmpeg.EncodeOptions, opts Options) *FFmpegExporter {
	opts.Logger = opts.Logger.With().Str("component", "export").Str("output", encode.Output).Logger()
	return &FFmpegExporter{exec: exec, encode: encode, opts: opts}
}

func (x *FFmpegExporter) Export(ctx context.Context, frames iter.Seq2[int, render.Result], rate util.Rational) error {
	encode := x.encode
	encode.FrameRate = rate
	if encode.ProgressFunc == nil {
		encode.ProgressFunc = func(p *ffmpeg.Progress) {
			x.opts.Logger.Debug().
				Int("frame", p.Frame).
				Float64("fps", p.FPS).
				Str("speed", p.Speed).
				Msg("Encode progress")
		}
	}

	enc, err := x.exec.StartEncode(ctx, encode)
	if err != nil {
		return errs.Encode(err)
	}

	pngEnc := &png.Encoder{CompressionLevel: png.BestSpeed}
	var buf bytes.Buffer
	n, err := drain(ctx, frames, x.opts, func(i int, f *frame.Buffer) error {
		buf.Reset()
		if err := pngEnc.Encode(&buf, f.Image()); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		return enc.WriteFrame(buf.Bytes())
	})
	if err != nil {
		enc.Abort()
		return err
	}
	if n == 0 {
		enc.Abort()
		return errs.Encode(fmt.Errorf("no frames to export"))
	}
	if err := enc.Close(); err != nil {
		return errs.Encode(err)
	}

	x.opts.Logger.Info().Int("frames", n).Msg("Export finished")
	return nil
}

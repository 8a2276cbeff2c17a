package export

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"iter"

	"github.com/icza/mjpeg"

	"github.com/kikiluvv/ved/internal/errs"
	"github.com/kikiluvv/ved/internal/frame"
	"github.com/kikiluvv/ved/internal/render"
	"github.com/kikiluvv/ved/pkg/util"
)

// DefaultJPEGQuality is used when MJPEGExporter.Quality is zero.
const DefaultJPEGQuality = 90

// MJPEGExporter writes a Motion JPEG AVI without external tools. The AVI
// header stores an integer frame rate, so fractional rates are rounded.
type MJPEGExporter struct {
	path    string
	quality int
	opts    Options
}

// NewMJPEGExporter creates an exporter writing path.
func NewMJPEGExporter(path string, quality int, opts Options) *MJPEGExporter {
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	opts.Logger = opts.Logger.With().Str("component", "export").Str("output", path).Logger()
	return &MJPEGExporter{path: path, quality: quality, opts: opts}
}

func (x *MJPEGExporter) Export(ctx context.Context, frames iter.Seq2[int, render.Result], rate util.Rational) error {
	if rate.Sign() <= 0 {
		return errs.Encode(fmt.Errorf("frame rate must be positive"))
	}
	fps := max(int32(rate.Add(util.NewRational(1, 2)).Floor()), 1)

	var (
		aw     mjpeg.AviWriter
		width  int
		height int
		buf    bytes.Buffer
	)
	n, err := drain(ctx, frames, x.opts, func(i int, f *frame.Buffer) error {
		if aw == nil {
			w, err := mjpeg.New(x.path, int32(f.Width), int32(f.Height), fps)
			if err != nil {
				return fmt.Errorf("failed to create video writer: %w", err)
			}
			aw, width, height = w, f.Width, f.Height
		}
		if f.Width != width || f.Height != height {
			return fmt.Errorf("frame %d: %w", i, errs.DimensionMismatch(width, height, f.Width, f.Height))
		}

		buf.Reset()
		if err := jpeg.Encode(&buf, f.Image(), &jpeg.Options{Quality: x.quality}); err != nil {
			return fmt.Errorf("failed to encode frame %d as JPEG: %w", i, err)
		}
		if err := aw.AddFrame(buf.Bytes()); err != nil {
			return fmt.Errorf("failed to add frame %d: %w", i, err)
		}
		return nil
	})
	if aw != nil {
		if cerr := aw.Close(); cerr != nil && err == nil {
			err = errs.Encode(cerr)
		}
	}
	if err != nil {
		return err
	}
	if n == 0 {
		return errs.Encode(fmt.Errorf("no frames to export"))
	}

	x.opts.Logger.Info().Int("frames", n).Int32("fps", fps).Msg("MJPEG export finished")
	return nil
}

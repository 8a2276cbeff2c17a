package export

import (
	"context"
	"fmt"
	"image/png"
	"iter"
	"os"
	"path/filepath"

	"github.com/kikiluvv/ved/internal/frame"
	"github.com/kikiluvv/ved/internal/render"
	"github.com/kikiluvv/ved/pkg/util"
)

// DefaultPNGPattern names files in a PNG sequence.
const DefaultPNGPattern = "frame_%06d.png"

// PNGSequenceExporter writes one numbered PNG per frame into a directory.
type PNGSequenceExporter struct {
	dir     string
	pattern string
	opts    Options
}

// NewPNGSequenceExporter writes into dir using a printf pattern taking
// the frame index. An empty pattern means DefaultPNGPattern.
func NewPNGSequenceExporter(dir, pattern string, opts Options) *PNGSequenceExporter {
	if pattern == "" {
		pattern = DefaultPNGPattern
	}
	opts.Logger = opts.Logger.With().Str("component", "export").Str("dir", dir).Logger()
	return &PNGSequenceExporter{dir: dir, pattern: pattern, opts: opts}
}

func (x *PNGSequenceExporter) Export(ctx context.Context, frames iter.Seq2[int, render.Result], _ util.Rational) error {
	if err := util.EnsureDir(x.dir); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	n, err := drain(ctx, frames, x.opts, func(i int, f *frame.Buffer) error {
		return writePNG(filepath.Join(x.dir, fmt.Sprintf(x.pattern, i)), f)
	})
	if err != nil {
		return err
	}

	x.opts.Logger.Info().Int("frames", n).Msg("PNG sequence written")
	return nil
}

// WritePNG saves a single frame, as used for screenshots.
func WritePNG(path string, f *frame.Buffer) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := util.EnsureDir(dir); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	return writePNG(path, f)
}

func writePNG(path string, f *frame.Buffer) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(out, f.Image()); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

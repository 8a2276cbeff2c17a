// Package export writes rendered frame sequences to files.
package export

import (
	"context"
	"iter"

	"github.com/rs/zerolog"

	"github.com/kikiluvv/ved/internal/errs"
	"github.com/kikiluvv/ved/internal/frame"
	"github.com/kikiluvv/ved/internal/render"
	"github.com/kikiluvv/ved/pkg/util"
)

// Exporter consumes an ordered frame sequence. rate is the sequence's
// frames per second. Failures are reported as errs.ErrEncode unless they
// come from a frame result.
type Exporter interface {
	Export(ctx context.Context, frames iter.Seq2[int, render.Result], rate util.Rational) error
}

// Options are shared by all exporters.
type Options struct {
	// SkipErrors writes the substituted error frame of a failed result
	// instead of aborting the export.
	SkipErrors bool
	// OnFrame is called after each frame is written.
	OnFrame func(index int)
	Logger  zerolog.Logger
}

// drain feeds frames to write in order and stops on the first failure.
// Errors from write are wrapped as ErrEncode; failed results are returned
// as they are.
func drain(ctx context.Context, frames iter.Seq2[int, render.Result], opts Options, write func(i int, buf *frame.Buffer) error) (int, error) {
	written := 0
	for i, res := range frames {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		if res.Err != nil {
			if !opts.SkipErrors || res.Frame == nil {
				return written, res.Err
			}
			opts.Logger.Warn().Err(res.Err).Int("frame", i).Msg("Writing error frame")
		}
		if err := write(i, res.Frame); err != nil {
			return written, errs.Encode(err)
		}
		written++
		if opts.OnFrame != nil {
			opts.OnFrame(i)
		}
	}
	return written, nil
}

// Package render turns a timeline into an ordered, lazy sequence of
// frames. Frames are composited in parallel by a bounded worker pool and
// yielded strictly in index order.
package render

import (
	"context"
	"fmt"
	"image/color"
	"iter"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/kikiluvv/ved/internal/errs"
	"github.com/kikiluvv/ved/internal/frame"
	"github.com/kikiluvv/ved/internal/timeline"
	"github.com/kikiluvv/ved/pkg/util"
)

// DefaultErrorColor fills frames that failed to render.
var DefaultErrorColor = color.NRGBA{255, 0, 255, 255}

// Compositor produces the frame of a timeline at one instant.
type Compositor interface {
	Composite(ctx context.Context, tl *timeline.Timeline, t util.Rational) (*frame.Buffer, error)
}

// Options configures a Renderer.
type Options struct {
	// Workers bounds parallelism and the read-ahead window.
	// Zero means runtime.GOMAXPROCS(0).
	Workers int
	// FailFast ends a sequence after the first failed frame.
	FailFast bool
	// ErrorColor fills substituted frames. The zero value means
	// DefaultErrorColor.
	ErrorColor color.NRGBA
	Logger     zerolog.Logger
}

// Result is one element of a Sequence. When Err is set, Frame holds a
// solid error frame of the timeline size.
type Result struct {
	Index int
	Time  util.Rational
	Frame *frame.Buffer
	Err   error
}

// Renderer schedules compositing work.
type Renderer struct {
	comp       Compositor
	workers    int
	failFast   bool
	errorColor color.NRGBA
	logger     zerolog.Logger
}

// New creates a renderer over comp.
func New(comp Compositor, opts Options) *Renderer {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	ec := opts.ErrorColor
	if ec == (color.NRGBA{}) {
		ec = DefaultErrorColor
	}
	return &Renderer{
		comp:       comp,
		workers:    workers,
		failFast:   opts.FailFast,
		errorColor: ec,
		logger:     opts.Logger.With().Str("component", "render").Logger(),
	}
}

// Workers returns the pool size.
func (r *Renderer) Workers() int { return r.workers }

// Render composites a single instant.
func (r *Renderer) Render(ctx context.Context, tl *timeline.Timeline, t util.Rational) (*frame.Buffer, error) {
	return r.comp.Composite(ctx, tl, t)
}

// RenderRange describes the frames at start, start+step, ... up to but
// not including end. Nothing is rendered until the sequence is ranged
// over.
func (r *Renderer) RenderRange(ctx context.Context, tl *timeline.Timeline, start, end, step util.Rational) (*Sequence, error) {
	if step.Sign() <= 0 {
		return nil, fmt.Errorf("step must be positive, got %s", step)
	}
	if end.Less(start) {
		return nil, fmt.Errorf("range end %s before start %s", end, start)
	}
	count := end.Sub(start).Div(step).Ceil()
	return r.sequence(ctx, tl, start, step, count), nil
}

// Play describes playback at rate frames per second from start through
// end inclusive.
func (r *Renderer) Play(ctx context.Context, tl *timeline.Timeline, start, end, rate util.Rational) (*Sequence, error) {
	if rate.Sign() <= 0 {
		return nil, fmt.Errorf("rate must be positive, got %s", rate)
	}
	if end.Less(start) {
		return nil, fmt.Errorf("range end %s before start %s", end, start)
	}
	count := end.Sub(start).Mul(rate).Floor() + 1
	return r.sequence(ctx, tl, start, util.One.Div(rate), count), nil
}

// RenderTimeline describes every frame of tl at its own frame rate.
func (r *Renderer) RenderTimeline(ctx context.Context, tl *timeline.Timeline) *Sequence {
	return r.sequence(ctx, tl, util.Zero, tl.FrameDuration(), tl.FrameCount())
}

func (r *Renderer) sequence(ctx context.Context, tl *timeline.Timeline, start, step util.Rational, count int64) *Sequence {
	return &Sequence{r: r, ctx: ctx, tl: tl, start: start, step: step, count: int(count)}
}

// Sequence is a finite, restartable, ordered series of frames.
type Sequence struct {
	r     *Renderer
	ctx   context.Context
	tl    *timeline.Timeline
	start util.Rational
	step  util.Rational
	count int
}

// Len is the number of frames the sequence yields when fully consumed.
func (s *Sequence) Len() int { return s.count }

// Time returns the presentation time of element i.
func (s *Sequence) Time(i int) util.Rational {
	return s.start.Add(s.step.MulInt(int64(i)))
}

// Rate returns the number of frames per second of the sequence.
func (s *Sequence) Rate() util.Rational {
	return util.One.Div(s.step)
}

// All yields every frame in index order. Breaking out of the loop stops
// dispatch; frames already in flight finish and are dropped before All
// returns. Each call starts a new pass.
func (s *Sequence) All() iter.Seq2[int, Result] {
	return func(yield func(int, Result) bool) {
		if s.count <= 0 {
			return
		}
		s.run(yield)
	}
}

func (s *Sequence) run(yield func(int, Result) bool) {
	ctx, cancel := context.WithCancel(s.ctx)
	n := min(s.r.workers, s.count)

	// A token is held from dispatch until the consumer takes the frame,
	// so indices in flight always lie in [consumed, consumed+n) and each
	// maps to its own slot.
	tokens := make(chan struct{}, n)
	for range n {
		tokens <- struct{}{}
	}
	slots := make([]chan Result, n)
	for i := range slots {
		slots[i] = make(chan Result, 1)
	}

	var (
		next    atomic.Int64
		wg      sync.WaitGroup
		started = time.Now()
		failed  int
		yielded int
	)
	defer func() {
		cancel()
		wg.Wait()
		s.r.logger.Debug().
			Int("frames", yielded).
			Int("requested", s.count).
			Int("errors", failed).
			Dur("elapsed", time.Since(started)).
			Msg("Render pass finished")
	}()

	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-tokens:
				case <-ctx.Done():
					return
				}
				i := int(next.Add(1) - 1)
				if i >= s.count {
					return
				}
				slots[i%n] <- s.renderOne(ctx, i)
			}
		}()
	}

	for i := 0; i < s.count; i++ {
		// Cancellation wins over frames that are already done.
		if s.ctx.Err() != nil {
			yield(i, s.cancelled(i))
			return
		}
		var res Result
		select {
		case res = <-slots[i%n]:
			tokens <- struct{}{}
		case <-s.ctx.Done():
			yield(i, s.cancelled(i))
			return
		}

		if res.Err != nil {
			failed++
		}
		yielded++
		if !yield(i, res) {
			return
		}
		if res.Err != nil && s.r.failFast {
			return
		}
	}
}

func (s *Sequence) cancelled(i int) Result {
	return Result{
		Index: i,
		Time:  s.Time(i),
		Frame: frame.Solid(s.tl.Width, s.tl.Height, s.r.errorColor),
		Err:   &errs.FrameError{Index: i, Err: s.ctx.Err()},
	}
}

func (s *Sequence) renderOne(ctx context.Context, i int) Result {
	t := s.Time(i)
	buf, err := s.r.comp.Composite(ctx, s.tl, t)
	if err == nil {
		return Result{Index: i, Time: t, Frame: buf}
	}

	if ctx.Err() == nil {
		s.r.logger.Error().
			Err(err).
			Int("frame", i).
			Str("time", util.FormatTimestamp(t)).
			Msg("Frame failed, substituting error frame")
	}
	return Result{
		Index: i,
		Time:  t,
		Frame: frame.Solid(s.tl.Width, s.tl.Height, s.r.errorColor),
		Err:   &errs.FrameError{Index: i, Err: err},
	}
}

// Collect drains seq into a slice.
func Collect(seq *Sequence) []Result {
	out := make([]Result, 0, seq.Len())
	for _, res := range seq.All() {
		out = append(out, res)
	}
	return out
}

package clips

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/kikiluvv/ved/internal/errs"
	"github.com/kikiluvv/ved/internal/frame"
	"github.com/kikiluvv/ved/pkg/util"
)

// Clip places a window of a Source on a track. The source window and the
// placement always have the same duration; speed changes are effects.
type Clip struct {
	ID        string
	Name      string
	Source    Source
	Trim      util.TimeRange // window of the source's own time axis
	Placement util.TimeRange // position on the track

	// mu serialises access to Source, which may wrap a stateful decoder.
	// Clips built without New fall back to literalMu.
	mu *sync.Mutex
}

var literalMu sync.Mutex

func (c *Clip) lock() *sync.Mutex {
	if c.mu == nil {
		return &literalMu
	}
	return c.mu
}

// New creates a clip showing trim of src at placement start `at`.
func New(name string, src Source, trim util.TimeRange, at util.Rational) (*Clip, error) {
	return newClip(name, src, trim, util.TimeRange{Start: at, Duration: trim.Duration})
}

// NewPlaced creates a clip from explicit source and placement ranges,
// which must have equal durations.
func NewPlaced(name string, src Source, trim, placement util.TimeRange) (*Clip, error) {
	return newClip(name, src, trim, placement)
}

func newClip(name string, src Source, trim, placement util.TimeRange) (*Clip, error) {
	if src == nil {
		return nil, fmt.Errorf("clip %q: source is required", name)
	}
	if trim.Duration.Sign() <= 0 {
		return nil, fmt.Errorf("clip %q: duration must be positive, got %s", name, trim.Duration)
	}
	if trim.Start.Sign() < 0 {
		return nil, fmt.Errorf("clip %q: source start cannot be negative", name)
	}
	if !trim.Duration.Equal(placement.Duration) {
		return nil, fmt.Errorf("clip %q: source duration %s differs from placement duration %s",
			name, trim.Duration, placement.Duration)
	}
	return &Clip{
		ID:        uuid.NewString(),
		Name:      name,
		Source:    src,
		Trim:      trim,
		Placement: placement,
		mu:        &sync.Mutex{},
	}, nil
}

// ToLocal maps a timeline time onto the clip's source axis.
func (c *Clip) ToLocal(global util.Rational) util.Rational {
	return c.Trim.Start.Add(global.Sub(c.Placement.Start))
}

// Render returns the frame at localTime, which must lie within Trim.
// Concurrent calls on the same clip are serialised.
func (c *Clip) Render(ctx context.Context, localTime util.Rational) (*frame.Buffer, error) {
	if !c.Trim.Contains(localTime) {
		return nil, errs.OutOfRange("clip %q: local time %s outside %s", c.Name, localTime, c.Trim)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mu := c.lock()
	mu.Lock()
	defer mu.Unlock()

	buf, err := c.Source.Frame(ctx, localTime)
	if err != nil {
		return nil, fmt.Errorf("clip %q at %s: %w", c.Name, localTime, err)
	}
	if err := buf.Validate(); err != nil {
		return nil, fmt.Errorf("clip %q at %s: %w", c.Name, localTime, err)
	}
	return buf, nil
}

// Clamp limits t to the last representable instant inside Trim. Time
// remapping effects use it so they never ask for a time past the window.
func (c *Clip) Clamp(t util.Rational) util.Rational {
	if t.Less(c.Trim.Start) {
		return c.Trim.Start
	}
	if t.Less(c.Trim.End()) {
		return t
	}
	// one microsecond short of the end stays on the final native frame
	// for any realistic frame rate
	last := c.Trim.End().Sub(util.NewRational(1, 1_000_000))
	return util.MaxRational(last, c.Trim.Start)
}

// Trimmed returns a new clip showing only [start, end) of c's placement.
// The new clip shares c's source and lock.
func (c *Clip) Trimmed(start, end util.Rational) (*Clip, error) {
	start = util.MaxRational(start, c.Placement.Start)
	end = util.MinRational(end, c.Placement.End())
	if !start.Less(end) {
		return nil, fmt.Errorf("clip %q: empty trim [%s, %s)", c.Name, start, end)
	}
	out, err := newClip(c.Name,
		c.Source,
		util.TimeRange{Start: c.ToLocal(start), Duration: end.Sub(start)},
		util.TimeRange{Start: start, Duration: end.Sub(start)})
	if err != nil {
		return nil, err
	}
	out.mu = c.lock()
	return out, nil
}

// Split cuts c at timeline time at into two adjacent clips.
func (c *Clip) Split(at util.Rational) (*Clip, *Clip, error) {
	if !c.Placement.Contains(at) || at.Equal(c.Placement.Start) {
		return nil, nil, fmt.Errorf("clip %q: split point %s not inside %s", c.Name, at, c.Placement)
	}
	left, err := c.Trimmed(c.Placement.Start, at)
	if err != nil {
		return nil, nil, err
	}
	right, err := c.Trimmed(at, c.Placement.End())
	if err != nil {
		return nil, nil, err
	}
	return left, right, nil
}

// Moved returns a copy of c placed at a new start time.
func (c *Clip) Moved(at util.Rational) *Clip {
	out := *c
	out.ID = uuid.NewString()
	out.Placement.Start = at
	return &out
}

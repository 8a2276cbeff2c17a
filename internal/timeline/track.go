package timeline

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/kikiluvv/ved/internal/clips"
	"github.com/kikiluvv/ved/internal/effects"
	"github.com/kikiluvv/ved/pkg/util"
)

// ErrOverlap is returned when two clips on one track share an instant.
var ErrOverlap = errors.New("overlapping clips")

// BlendMode selects how a track is combined with the tracks below it.
type BlendMode int

const (
	BlendOver BlendMode = iota
	BlendAdd
	BlendMultiply
	BlendScreen
)

var blendNames = []string{"over", "add", "multiply", "screen"}

func (m BlendMode) String() string {
	if int(m) >= 0 && int(m) < len(blendNames) {
		return blendNames[m]
	}
	return fmt.Sprintf("blend(%d)", int(m))
}

// ParseBlendMode parses a mode name. The empty string means over.
func ParseBlendMode(s string) (BlendMode, error) {
	if s == "" {
		return BlendOver, nil
	}
	for i, name := range blendNames {
		if strings.EqualFold(s, name) {
			return BlendMode(i), nil
		}
	}
	return BlendOver, fmt.Errorf("unknown blend mode %q (want one of %s)", s, strings.Join(blendNames, ", "))
}

func (m BlendMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *BlendMode) UnmarshalText(text []byte) error {
	v, err := ParseBlendMode(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Track is an ordered run of non-overlapping clips sharing an effect
// chain, opacity and blend mode. Tracks are immutable once built; the
// With* methods return modified copies.
type Track struct {
	Name    string
	Clips   []*clips.Clip // sorted by placement start
	Effects effects.Chain
	Opacity float64 // 0 to 1
	Blend   BlendMode

	// Width and Height are the size clips are fitted to before effects
	// run. Zero means the timeline size.
	Width  int
	Height int
}

// NewTrack sorts cl by placement start and rejects overlaps.
func NewTrack(name string, cl ...*clips.Clip) (*Track, error) {
	sorted := slices.Clone(cl)
	for i, c := range sorted {
		if c == nil {
			return nil, fmt.Errorf("track %q: clip %d is nil", name, i)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Placement.Start.Less(sorted[j].Placement.Start)
	})
	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		if prev.Placement.Overlaps(cur.Placement) {
			return nil, fmt.Errorf("track %q: %w: %q %s and %q %s",
				name, ErrOverlap, prev.Name, prev.Placement, cur.Name, cur.Placement)
		}
	}
	return &Track{Name: name, Clips: sorted, Opacity: 1}, nil
}

// ClipAt returns the clip whose placement contains t, if any.
func (t *Track) ClipAt(at util.Rational) (*clips.Clip, bool) {
	// first clip starting after at; the candidate is the one before it
	i := sort.Search(len(t.Clips), func(i int) bool {
		return at.Less(t.Clips[i].Placement.Start)
	})
	if i == 0 {
		return nil, false
	}
	c := t.Clips[i-1]
	if !c.Placement.Contains(at) {
		return nil, false
	}
	return c, true
}

// End returns the end of the last clip, or zero for an empty track.
func (t *Track) End() util.Rational {
	if len(t.Clips) == 0 {
		return util.Zero
	}
	return t.Clips[len(t.Clips)-1].Placement.End()
}

// Size returns the track's fitting size given the timeline size.
func (t *Track) Size(tlWidth, tlHeight int) (int, int) {
	if t.Width > 0 && t.Height > 0 {
		return t.Width, t.Height
	}
	return tlWidth, tlHeight
}

// WithClip returns a copy of t with c added.
func (t *Track) WithClip(c *clips.Clip) (*Track, error) {
	next, err := NewTrack(t.Name, append(slices.Clone(t.Clips), c)...)
	if err != nil {
		return nil, err
	}
	return t.carry(next), nil
}

// WithoutClip returns a copy of t without the clip with the given ID.
func (t *Track) WithoutClip(id string) *Track {
	next := *t
	next.Clips = slices.DeleteFunc(slices.Clone(t.Clips), func(c *clips.Clip) bool { return c.ID == id })
	return &next
}

// WithEffects returns a copy of t using chain.
func (t *Track) WithEffects(chain effects.Chain) *Track {
	next := *t
	next.Effects = slices.Clone(chain)
	return &next
}

// WithOpacity returns a copy of t with opacity clamped to [0, 1].
func (t *Track) WithOpacity(o float64) *Track {
	next := *t
	next.Opacity = max(0, min(1, o))
	return &next
}

// WithBlend returns a copy of t using mode.
func (t *Track) WithBlend(mode BlendMode) *Track {
	next := *t
	next.Blend = mode
	return &next
}

// WithSize returns a copy of t fitting clips to w x h.
func (t *Track) WithSize(w, h int) *Track {
	next := *t
	next.Width, next.Height = w, h
	return &next
}

func (t *Track) carry(next *Track) *Track {
	next.Effects = t.Effects
	next.Opacity = t.Opacity
	next.Blend = t.Blend
	next.Width, next.Height = t.Width, t.Height
	return next
}

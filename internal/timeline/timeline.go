// Package timeline holds the placement model: tracks of clips on a shared
// time axis, stacked bottom to top. A Timeline is never mutated in place,
// so a render pass may keep reading one while an editor builds the next.
package timeline

import (
	"fmt"
	"image/color"
	"slices"

	"github.com/kikiluvv/ved/internal/effects"
	"github.com/kikiluvv/ved/pkg/util"
)

// Timeline is the root of a composition.
type Timeline struct {
	Tracks     []*Track // bottom to top
	FrameRate  util.Rational
	Width      int
	Height     int
	Background color.NRGBA
}

// New builds a timeline with a transparent background.
func New(width, height int, rate util.Rational, tracks ...*Track) (*Timeline, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid timeline size %dx%d", width, height)
	}
	if rate.Sign() <= 0 {
		return nil, fmt.Errorf("invalid frame rate %s", rate)
	}
	for i, t := range tracks {
		if t == nil {
			return nil, fmt.Errorf("track %d is nil", i)
		}
	}
	return &Timeline{
		Tracks:    slices.Clone(tracks),
		FrameRate: rate,
		Width:     width,
		Height:    height,
	}, nil
}

// Validate checks every track's effects against reg.
func (tl *Timeline) Validate(reg *effects.Registry) error {
	for _, t := range tl.Tracks {
		if err := t.Effects.Validate(reg); err != nil {
			return fmt.Errorf("track %q: %w", t.Name, err)
		}
	}
	return nil
}

// Duration is the latest end of any track.
func (tl *Timeline) Duration() util.Rational {
	d := util.Zero
	for _, t := range tl.Tracks {
		d = util.MaxRational(d, t.End())
	}
	return d
}

// FrameDuration is 1/FrameRate.
func (tl *Timeline) FrameDuration() util.Rational {
	return util.One.Div(tl.FrameRate)
}

// FrameCount is the number of frames needed to cover Duration.
func (tl *Timeline) FrameCount() int64 {
	return tl.Duration().Mul(tl.FrameRate).Ceil()
}

// FrameTime returns the presentation time of frame i.
func (tl *Timeline) FrameTime(i int64) util.Rational {
	return util.Int(i).Div(tl.FrameRate)
}

// WithTrack returns a copy with t stacked on top.
func (tl *Timeline) WithTrack(t *Track) *Timeline {
	next := *tl
	next.Tracks = append(slices.Clone(tl.Tracks), t)
	return &next
}

// ReplaceTrack returns a copy with track i replaced by t.
func (tl *Timeline) ReplaceTrack(i int, t *Track) (*Timeline, error) {
	if i < 0 || i >= len(tl.Tracks) {
		return nil, fmt.Errorf("track index %d out of range [0, %d)", i, len(tl.Tracks))
	}
	next := *tl
	next.Tracks = slices.Clone(tl.Tracks)
	next.Tracks[i] = t
	return &next, nil
}

// WithoutTrack returns a copy with track i removed.
func (tl *Timeline) WithoutTrack(i int) (*Timeline, error) {
	if i < 0 || i >= len(tl.Tracks) {
		return nil, fmt.Errorf("track index %d out of range [0, %d)", i, len(tl.Tracks))
	}
	next := *tl
	next.Tracks = slices.Delete(slices.Clone(tl.Tracks), i, i+1)
	return &next, nil
}

// WithBackground returns a copy using c as the bottom layer.
func (tl *Timeline) WithBackground(c color.NRGBA) *Timeline {
	next := *tl
	next.Background = c
	return &next
}

// Package compositor resolves a timeline at one instant into a single
// frame by rendering the active clip of each track and blending the
// tracks bottom to top.
package compositor

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/kikiluvv/ved/internal/effects"
	"github.com/kikiluvv/ved/internal/frame"
	"github.com/kikiluvv/ved/internal/timeline"
	"github.com/kikiluvv/ved/pkg/util"
)

// Options configures a Compositor.
type Options struct {
	// Fit decides how clip frames reach the track and timeline size.
	Fit frame.FitMode
	// Registry resolves effect kinds. Nil means effects.DefaultRegistry().
	Registry *effects.Registry
	Logger   zerolog.Logger
}

// Compositor is safe for concurrent use as long as clip sources are.
type Compositor struct {
	fit      frame.FitMode
	registry *effects.Registry
	logger   zerolog.Logger
}

// New creates a compositor.
func New(opts Options) *Compositor {
	reg := opts.Registry
	if reg == nil {
		reg = effects.DefaultRegistry()
	}
	return &Compositor{
		fit:      opts.Fit,
		registry: reg,
		logger:   opts.Logger.With().Str("component", "compositor").Logger(),
	}
}

// Registry returns the effect table in use.
func (c *Compositor) Registry() *effects.Registry { return c.registry }

// Composite renders tl at time t. The result is a fresh RGBA8 buffer of
// the timeline size.
func (c *Compositor) Composite(ctx context.Context, tl *timeline.Timeline, t util.Rational) (*frame.Buffer, error) {
	acc := frame.Solid(tl.Width, tl.Height, tl.Background)

	for i, track := range tl.Tracks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		layer, err := c.renderTrack(ctx, tl, track, acc, t)
		if err != nil {
			return nil, fmt.Errorf("track %d (%s): %w", i, track.Name, err)
		}
		if layer == nil {
			continue
		}
		blendInto(acc, layer, track.Blend)
	}
	return acc, nil
}

// renderTrack returns the track's contribution at t, or nil when no clip
// is active.
func (c *Compositor) renderTrack(ctx context.Context, tl *timeline.Timeline, track *timeline.Track, backdrop *frame.Buffer, t util.Rational) (*frame.Buffer, error) {
	clip, ok := track.ClipAt(t)
	if !ok {
		return nil, nil
	}

	local, err := track.Effects.Remap(c.registry, clip.ToLocal(t), clip.Trim)
	if err != nil {
		return nil, err
	}
	local = clip.Clamp(local)

	buf, err := clip.Render(ctx, local)
	if err != nil {
		return nil, err
	}

	// Effects run at the track size; the result is fitted to the
	// timeline once.
	tw, th := track.Size(tl.Width, tl.Height)
	buf = frame.Fit(buf, tw, th, c.fit)

	if track.Effects.HasFrameEffects(c.registry) {
		if !backdrop.SameSize(buf) {
			backdrop = frame.Fit(backdrop, tw, th, c.fit)
		}
		buf, err = track.Effects.Apply(c.registry, buf, backdrop)
		if err != nil {
			return nil, err
		}
		if buf.Format != frame.RGBA8 {
			buf = buf.Convert(frame.RGBA8)
		}
	}

	if tw != tl.Width || th != tl.Height {
		buf = frame.Fit(buf, tl.Width, tl.Height, c.fit)
	}

	scaleAlpha(buf, int(math.Round(max(0, min(1, track.Opacity))*255)))

	c.logger.Trace().
		Str("track", track.Name).
		Str("clip", clip.Name).
		Str("time", t.String()).
		Str("local", local.String()).
		Msg("Rendered track layer")
	return buf, nil
}

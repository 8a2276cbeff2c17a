package compositor

import (
	"context"
	"image/color"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kikiluvv/ved/internal/clips"
	"github.com/kikiluvv/ved/internal/effects"
	"github.com/kikiluvv/ved/internal/frame"
	"github.com/kikiluvv/ved/internal/timeline"
	"github.com/kikiluvv/ved/pkg/util"
)

var (
	red   = color.NRGBA{255, 0, 0, 255}
	blue  = color.NRGBA{0, 0, 255, 255}
	green = color.NRGBA{0, 255, 0, 255}
)

func newCompositor() *Compositor {
	return New(Options{Logger: zerolog.Nop()})
}

func solidTrack(t *testing.T, name string, c color.NRGBA, w, h int, start, dur int64) *timeline.Track {
	t.Helper()
	clip, err := clips.New(name, clips.SolidSource{Width: w, Height: h, Color: c},
		util.TimeRange{Start: util.Zero, Duration: util.Int(dur)}, util.Int(start))
	require.NoError(t, err)
	tr, err := timeline.NewTrack(name, clip)
	require.NoError(t, err)
	return tr
}

func TestOutputMatchesTimelineSize(t *testing.T) {
	tr := solidTrack(t, "big", red, 1920, 1080, 0, 1)
	tl, err := timeline.New(32, 18, util.Int(30), tr)
	require.NoError(t, err)

	out, err := newCompositor().Composite(context.Background(), tl, util.Zero)
	require.NoError(t, err)
	assert.Equal(t, 32, out.Width)
	assert.Equal(t, 18, out.Height)
	assert.Equal(t, frame.RGBA8, out.Format)
	assert.Equal(t, red, out.Pixel(16, 9))
}

func TestGapIsTransparent(t *testing.T) {
	tr := solidTrack(t, "a", red, 4, 4, 2, 1)
	tl, err := timeline.New(4, 4, util.Int(30), tr)
	require.NoError(t, err)

	out, err := newCompositor().Composite(context.Background(), tl, util.One)
	require.NoError(t, err)
	assert.True(t, out.Equal(frame.Transparent(4, 4)))

	out, err = newCompositor().Composite(context.Background(), tl.WithBackground(blue), util.One)
	require.NoError(t, err)
	assert.Equal(t, blue, out.Pixel(0, 0))
}

func TestTrackOrderMatters(t *testing.T) {
	r := solidTrack(t, "r", red, 4, 4, 0, 1)
	b := solidTrack(t, "b", blue, 4, 4, 0, 1)
	comp := newCompositor()

	rb, err := timeline.New(4, 4, util.Int(30), r, b)
	require.NoError(t, err)
	br, err := timeline.New(4, 4, util.Int(30), b, r)
	require.NoError(t, err)

	top1, err := comp.Composite(context.Background(), rb, util.Zero)
	require.NoError(t, err)
	top2, err := comp.Composite(context.Background(), br, util.Zero)
	require.NoError(t, err)

	assert.Equal(t, blue, top1.Pixel(0, 0))
	assert.Equal(t, red, top2.Pixel(0, 0))
}

func TestLetterboxLeavesBars(t *testing.T) {
	// 1:1 clip on a 2:1 timeline
	tr := solidTrack(t, "sq", red, 10, 10, 0, 1)
	tl, err := timeline.New(20, 10, util.Int(30), tr)
	require.NoError(t, err)
	tl = tl.WithBackground(blue)

	out, err := newCompositor().Composite(context.Background(), tl, util.Zero)
	require.NoError(t, err)
	assert.Equal(t, blue, out.Pixel(0, 5))
	assert.Equal(t, blue, out.Pixel(19, 5))
	assert.Equal(t, red, out.Pixel(10, 5))
}

func TestBlendModes(t *testing.T) {
	gray := color.NRGBA{100, 100, 100, 255}
	cases := []struct {
		mode timeline.BlendMode
		want color.NRGBA
	}{
		{timeline.BlendOver, gray},
		{timeline.BlendAdd, color.NRGBA{255, 200, 100, 255}},
		{timeline.BlendMultiply, color.NRGBA{100, 39, 0, 255}},
		{timeline.BlendScreen, color.NRGBA{255, 161, 100, 255}},
	}
	base := color.NRGBA{255, 100, 0, 255}
	for _, tc := range cases {
		t.Run(tc.mode.String(), func(t *testing.T) {
			bottom := solidTrack(t, "bottom", base, 2, 2, 0, 1)
			top := solidTrack(t, "top", gray, 2, 2, 0, 1).WithBlend(tc.mode)
			tl, err := timeline.New(2, 2, util.Int(30), bottom, top)
			require.NoError(t, err)

			out, err := newCompositor().Composite(context.Background(), tl, util.Zero)
			require.NoError(t, err)
			assert.Equal(t, tc.want, out.Pixel(1, 1))
		})
	}
}

func TestOpacityHalfOver(t *testing.T) {
	bottom := solidTrack(t, "b", color.NRGBA{0, 0, 0, 255}, 2, 2, 0, 1)
	top := solidTrack(t, "w", color.NRGBA{255, 255, 255, 255}, 2, 2, 0, 1).WithOpacity(0.5)
	tl, err := timeline.New(2, 2, util.Int(30), bottom, top)
	require.NoError(t, err)

	out, err := newCompositor().Composite(context.Background(), tl, util.Zero)
	require.NoError(t, err)
	px := out.Pixel(0, 0)
	assert.InDelta(t, 128, int(px.R), 1)
	assert.Equal(t, uint8(255), px.A)
}

func TestTrackEffectsAndChromaKey(t *testing.T) {
	bottom := solidTrack(t, "bg", blue, 2, 2, 0, 1)
	top := solidTrack(t, "screen", green, 2, 2, 0, 1).
		WithEffects(effects.Chain{{Kind: effects.ChromaKey}, {Kind: effects.Invert}})
	tl, err := timeline.New(2, 2, util.Int(30), bottom, top)
	require.NoError(t, err)

	out, err := newCompositor().Composite(context.Background(), tl, util.Zero)
	require.NoError(t, err)
	// keyed to the blue backdrop, then inverted
	assert.Equal(t, color.NRGBA{255, 255, 0, 255}, out.Pixel(0, 0))
}

func TestTimeEffectsClampToWindow(t *testing.T) {
	var seen []util.Rational
	src := clips.FuncSource(func(ctx context.Context, at util.Rational) (*frame.Buffer, error) {
		seen = append(seen, at)
		return frame.Transparent(1, 1), nil
	})
	clip, err := clips.New("fast", src, util.TimeRange{Start: util.Int(1), Duration: util.Int(2)}, util.Zero)
	require.NoError(t, err)
	tr, err := timeline.NewTrack("v", clip)
	require.NoError(t, err)
	tr = tr.WithEffects(effects.Chain{{Kind: effects.Speed, Params: effects.Params{"factor": 4}}})
	tl, err := timeline.New(1, 1, util.Int(30), tr)
	require.NoError(t, err)

	comp := newCompositor()
	_, err = comp.Composite(context.Background(), tl, util.NewRational(1, 4))
	require.NoError(t, err)
	_, err = comp.Composite(context.Background(), tl, util.NewRational(3, 2))
	require.NoError(t, err)

	require.Len(t, seen, 2)
	assert.Equal(t, util.Int(2), seen[0])
	assert.True(t, clip.Trim.Contains(seen[1]))
	assert.True(t, util.NewRational(29, 10).Less(seen[1]))
}

func TestCompositeIsDeterministic(t *testing.T) {
	text := clips.TextSource{Width: 40, Height: 20, Text: "hi", Foreground: red, Background: color.NRGBA{}}
	clip, err := clips.New("title", text, util.TimeRange{Start: util.Zero, Duration: util.One}, util.Zero)
	require.NoError(t, err)
	tr, err := timeline.NewTrack("titles", clip)
	require.NoError(t, err)
	tr = tr.WithOpacity(0.7).WithEffects(effects.Chain{{Kind: effects.Contrast, Params: effects.Params{"factor": 1.3}}})
	bg := solidTrack(t, "bg", color.NRGBA{10, 20, 30, 255}, 16, 9, 0, 1)
	tl, err := timeline.New(64, 36, util.Int(30), bg, tr)
	require.NoError(t, err)

	a, err := newCompositor().Composite(context.Background(), tl, util.NewRational(1, 2))
	require.NoError(t, err)
	b, err := newCompositor().Composite(context.Background(), tl, util.NewRational(1, 2))
	require.NoError(t, err)
	assert.True(t, a.Equal(b))
}

func TestCompositeStopsOnCancel(t *testing.T) {
	tl, err := timeline.New(2, 2, util.Int(30), solidTrack(t, "a", red, 2, 2, 0, 1))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = newCompositor().Composite(ctx, tl, util.Zero)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEffectsRunAtTrackSize(t *testing.T) {
	var sizes [][2]int
	reg := effects.DefaultRegistry()
	require.NoError(t, reg.Register(effects.Definition{
		Kind:       "record",
		Capability: effects.MultiInput,
		Inputs:     2,
		Apply: func(in []*frame.Buffer, _ effects.Params) (*frame.Buffer, error) {
			for _, b := range in {
				sizes = append(sizes, [2]int{b.Width, b.Height})
			}
			return in[0].Clone(), nil
		},
	}))

	bottom := solidTrack(t, "bg", blue, 8, 4, 0, 1)
	top := solidTrack(t, "pip", red, 4, 4, 0, 1).
		WithSize(2, 2).
		WithEffects(effects.Chain{{Kind: "record"}})
	tl, err := timeline.New(8, 4, util.Int(30), bottom, top)
	require.NoError(t, err)

	out, err := New(Options{Registry: reg, Logger: zerolog.Nop()}).Composite(context.Background(), tl, util.Zero)
	require.NoError(t, err)

	// clip and backdrop both reach the effect at the declared track size
	assert.Equal(t, [][2]int{{2, 2}, {2, 2}}, sizes)
	assert.Equal(t, 8, out.Width)
	assert.Equal(t, 4, out.Height)
	assert.Equal(t, red, out.Pixel(4, 2))
}

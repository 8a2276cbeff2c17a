package effects

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kikiluvv/ved/internal/errs"
	"github.com/kikiluvv/ved/internal/frame"
	"github.com/kikiluvv/ved/pkg/util"
)

func gradient(w, h int) *frame.Buffer {
	b := frame.New(w, h, frame.RGBA8)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			b.SetPixel(x, y, color.NRGBA{uint8(x * 40), uint8(y * 40), uint8((x + y) * 20), 200})
		}
	}
	return b
}

func TestDefaultRegistryKinds(t *testing.T) {
	reg := DefaultRegistry()
	kinds := reg.Kinds()
	assert.Len(t, kinds, 9)
	assert.Contains(t, kinds, ChromaKey)

	d, err := reg.Lookup(Speed)
	require.NoError(t, err)
	assert.Equal(t, TimeOnly, d.Capability)

	_, err = reg.Lookup("blur")
	assert.Error(t, err)
}

func TestRegisterValidates(t *testing.T) {
	reg := NewRegistry()
	assert.Error(t, reg.Register(Definition{Kind: "x", Capability: SingleInput, Inputs: 1}))
	assert.Error(t, reg.Register(Definition{Kind: "x", Capability: MultiInput, Inputs: 1, Apply: applyInvert}))
	assert.Error(t, reg.Register(Definition{Kind: "x", Capability: TimeOnly}))

	require.NoError(t, reg.Register(Definition{Kind: "x", Capability: SingleInput, Inputs: 1, Apply: applyInvert}))
	assert.Error(t, reg.Register(Definition{Kind: "x", Capability: SingleInput, Inputs: 1, Apply: applyInvert}))
}

func TestEffectsAreDeterministic(t *testing.T) {
	reg := DefaultRegistry()
	chain := Chain{
		{Kind: Brightness, Params: Params{"amount": 0.13}},
		{Kind: Contrast, Params: Params{"factor": 1.37}},
		{Kind: Tint, Params: Params{"r": 255, "g": 100, "b": 0, "amount": 0.3}},
		{Kind: Opacity, Params: Params{"amount": 0.77}},
	}
	in := gradient(6, 5)
	a, err := chain.Apply(reg, in, nil)
	require.NoError(t, err)
	b, err := chain.Apply(reg, in.Clone(), nil)
	require.NoError(t, err)
	assert.True(t, a.Equal(b))
	assert.True(t, in.Equal(gradient(6, 5)), "input must not be modified")
}

func TestChainOrderMatters(t *testing.T) {
	reg := DefaultRegistry()
	in := gradient(4, 4)
	ab, err := Chain{{Kind: Brightness, Params: Params{"amount": 0.5}}, {Kind: Invert}}.Apply(reg, in, nil)
	require.NoError(t, err)
	ba, err := Chain{{Kind: Invert}, {Kind: Brightness, Params: Params{"amount": 0.5}}}.Apply(reg, in, nil)
	require.NoError(t, err)
	assert.False(t, ab.Equal(ba))
}

func TestSingleInputFilters(t *testing.T) {
	reg := DefaultRegistry()
	px := frame.Solid(1, 1, color.NRGBA{200, 100, 50, 255})

	run := func(inst Instance) color.NRGBA {
		out, err := Chain{inst}.Apply(reg, px, nil)
		require.NoError(t, err)
		return out.Pixel(0, 0)
	}

	assert.Equal(t, color.NRGBA{255, 155, 105, 255}, run(Instance{Kind: Brightness, Params: Params{"amount": 55.0 / 255}}))
	assert.Equal(t, color.NRGBA{55, 155, 205, 255}, run(Instance{Kind: Invert}))
	assert.Equal(t, color.NRGBA{200, 100, 50, 255}, run(Instance{Kind: Contrast, Params: Params{"factor": 1}}))
	assert.Equal(t, color.NRGBA{128, 128, 128, 255}, run(Instance{Kind: Contrast, Params: Params{"factor": 0}}))
	assert.Equal(t, color.NRGBA{200, 100, 50, 0}, run(Instance{Kind: Opacity, Params: Params{"amount": 0}}))
	assert.Equal(t, color.NRGBA{0, 0, 255, 255}, run(Instance{Kind: Tint, Params: Params{"r": 0, "g": 0, "b": 255, "amount": 1}}))

	gray := run(Instance{Kind: Grayscale})
	assert.Equal(t, gray.R, gray.G)
	assert.Equal(t, gray.G, gray.B)
	assert.Equal(t, uint8(255), gray.A)
}

func TestChromaKeyUsesBackdrop(t *testing.T) {
	reg := DefaultRegistry()
	fg := frame.New(2, 1, frame.RGBA8)
	fg.SetPixel(0, 0, color.NRGBA{0, 250, 5, 255})
	fg.SetPixel(1, 0, color.NRGBA{200, 30, 30, 255})
	bg := frame.Solid(2, 1, color.NRGBA{1, 2, 3, 255})

	out, err := Chain{{Kind: ChromaKey, Params: Params{"threshold": 0.1}}}.Apply(reg, fg, bg)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{1, 2, 3, 255}, out.Pixel(0, 0))
	assert.Equal(t, color.NRGBA{200, 30, 30, 255}, out.Pixel(1, 0))
}

func TestDimensionMismatch(t *testing.T) {
	reg := DefaultRegistry()
	_, err := Chain{{Kind: ChromaKey}}.Apply(reg, frame.Transparent(4, 4), frame.Transparent(2, 2))
	assert.ErrorIs(t, err, errs.ErrDimensionMismatch)
}

func TestUnknownKindFails(t *testing.T) {
	reg := DefaultRegistry()
	chain := Chain{{Kind: "sepia"}}
	assert.Error(t, chain.Validate(reg))
	_, err := chain.Apply(reg, frame.Transparent(1, 1), nil)
	assert.Error(t, err)
}

func TestTimeOnlyEffects(t *testing.T) {
	reg := DefaultRegistry()
	window := util.TimeRange{Start: util.Int(10), Duration: util.Int(5)}

	got, err := Chain{{Kind: Freeze, Params: Params{"at": 1.5}}}.Remap(reg, util.Int(13), window)
	require.NoError(t, err)
	assert.Equal(t, util.NewRational(23, 2), got)

	got, err = Chain{{Kind: Speed, Params: Params{"factor": 2}}}.Remap(reg, util.Int(12), window)
	require.NoError(t, err)
	assert.Equal(t, util.Int(14), got)

	// frame effects leave time alone and time effects leave pixels alone
	got, err = Chain{{Kind: Invert}}.Remap(reg, util.Int(12), window)
	require.NoError(t, err)
	assert.Equal(t, util.Int(12), got)

	in := gradient(2, 2)
	out, err := Chain{{Kind: Speed, Params: Params{"factor": 3}}}.Apply(reg, in, nil)
	require.NoError(t, err)
	assert.True(t, in.Equal(out))
	assert.NotSame(t, in, out)
}

func TestHasFrameEffects(t *testing.T) {
	reg := DefaultRegistry()
	assert.False(t, Chain{}.HasFrameEffects(reg))
	assert.False(t, Chain{{Kind: Freeze}}.HasFrameEffects(reg))
	assert.True(t, Chain{{Kind: Freeze}, {Kind: Grayscale}}.HasFrameEffects(reg))
}

package effects

import (
	"image/color"
	"math"

	"github.com/kikiluvv/ved/internal/frame"
	"github.com/kikiluvv/ved/pkg/util"
)

func builtins() []Definition {
	single := func(k Kind, fn FrameFunc) Definition {
		return Definition{Kind: k, Capability: SingleInput, Inputs: 1, Apply: fn}
	}
	return []Definition{
		single(Brightness, applyBrightness),
		single(Contrast, applyContrast),
		single(Grayscale, applyGrayscale),
		single(Invert, applyInvert),
		single(Opacity, applyOpacity),
		single(Tint, applyTint),
		{Kind: ChromaKey, Capability: MultiInput, Inputs: 2, Apply: applyChromaKey},
		{Kind: Freeze, Capability: TimeOnly, Remap: remapFreeze},
		{Kind: Speed, Capability: TimeOnly, Remap: remapSpeed},
	}
}

// applyBrightness shifts RGB by amount*255, amount in [-1, 1].
func applyBrightness(in []*frame.Buffer, p Params) (*frame.Buffer, error) {
	delta := int(math.Round(max(-1, min(1, p.Float("amount", 0))) * 255))
	return mapPixels(in[0], func(px []byte) {
		px[0] = clampInt(int(px[0]) + delta)
		px[1] = clampInt(int(px[1]) + delta)
		px[2] = clampInt(int(px[2]) + delta)
	}), nil
}

// applyContrast scales RGB around mid-gray. factor 1 is identity.
func applyContrast(in []*frame.Buffer, p Params) (*frame.Buffer, error) {
	f := fixed(max(0, min(4, p.Float("factor", 1))))
	adj := func(v byte) byte {
		return clampInt(128 + ((int(v)-128)*f+128)>>8)
	}
	return mapPixels(in[0], func(px []byte) {
		px[0], px[1], px[2] = adj(px[0]), adj(px[1]), adj(px[2])
	}), nil
}

// applyGrayscale uses BT.601 luma weights scaled to 256.
func applyGrayscale(in []*frame.Buffer, _ Params) (*frame.Buffer, error) {
	return mapPixels(in[0], func(px []byte) {
		y := byte((77*int(px[0]) + 150*int(px[1]) + 29*int(px[2]) + 128) >> 8)
		px[0], px[1], px[2] = y, y, y
	}), nil
}

func applyInvert(in []*frame.Buffer, _ Params) (*frame.Buffer, error) {
	return mapPixels(in[0], func(px []byte) {
		px[0], px[1], px[2] = 255-px[0], 255-px[1], 255-px[2]
	}), nil
}

// applyOpacity multiplies alpha by amount in [0, 1].
func applyOpacity(in []*frame.Buffer, p Params) (*frame.Buffer, error) {
	k := int(clampByte(p.Float("amount", 1) * 255))
	return mapPixels(in[0], func(px []byte) {
		px[3] = mix(0, px[3], k)
	}), nil
}

// applyTint moves RGB toward the r, g, b color by amount in [0, 1].
func applyTint(in []*frame.Buffer, p Params) (*frame.Buffer, error) {
	c := p.Color(color.NRGBA{255, 255, 255, 255})
	k := int(clampByte(p.Float("amount", 0.5) * 255))
	return mapPixels(in[0], func(px []byte) {
		px[0] = mix(px[0], c.R, k)
		px[1] = mix(px[1], c.G, k)
		px[2] = mix(px[2], c.B, k)
	}), nil
}

// applyChromaKey replaces pixels within threshold of the key color by the
// backdrop. threshold is a fraction of the largest RGB distance.
func applyChromaKey(in []*frame.Buffer, p Params) (*frame.Buffer, error) {
	key := p.Color(color.NRGBA{0, 255, 0, 255})
	th := max(0, min(1, p.Float("threshold", 0.3)))
	limit := int(math.Round(th * th * 3 * 255 * 255))

	fg, bg := rgba(in[0]), rgba(in[1])
	out := frame.New(fg.Width, fg.Height, frame.RGBA8)
	for i := 0; i < len(out.Pix); i += 4 {
		dr := int(fg.Pix[i]) - int(key.R)
		dg := int(fg.Pix[i+1]) - int(key.G)
		db := int(fg.Pix[i+2]) - int(key.B)
		src := fg.Pix
		if dr*dr+dg*dg+db*db <= limit {
			src = bg.Pix
		}
		copy(out.Pix[i:i+4], src[i:i+4])
	}
	return out, nil
}

// remapFreeze holds the frame at "at" seconds into the source window.
func remapFreeze(_ util.Rational, window util.TimeRange, p Params) util.Rational {
	return window.Start.Add(rational(p.Float("at", 0)))
}

// remapSpeed plays the source at factor times normal speed, anchored at
// the window start.
func remapSpeed(t util.Rational, window util.TimeRange, p Params) util.Rational {
	factor := rational(p.Float("factor", 1))
	return window.Start.Add(t.Sub(window.Start).Mul(factor))
}

// mix blends a toward b by k/255 with rounding.
func mix(a, b byte, k int) byte {
	return byte((int(a)*(255-k) + int(b)*k + 127) / 255)
}

// rational converts a parameter to an exact value with microsecond
// resolution.
func rational(v float64) util.Rational {
	return util.NewRational(int64(math.Round(v*1e6)), 1_000_000)
}

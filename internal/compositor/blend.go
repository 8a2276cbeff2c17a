package compositor

import (
	"github.com/kikiluvv/ved/internal/frame"
	"github.com/kikiluvv/ved/internal/timeline"
)

// blendFunc mixes a source channel onto a destination channel, both 0-255.
type blendFunc func(cs, cd int) int

func blendFor(mode timeline.BlendMode) blendFunc {
	switch mode {
	case timeline.BlendAdd:
		return func(cs, cd int) int { return min(255, cs+cd) }
	case timeline.BlendMultiply:
		return func(cs, cd int) int { return (cs*cd + 127) / 255 }
	case timeline.BlendScreen:
		return func(cs, cd int) int { return cs + cd - (cs*cd+127)/255 }
	default:
		return func(cs, _ int) int { return cs }
	}
}

// blendInto composites src onto dst in place. Both are RGBA8 with straight
// alpha and the same size. The blended color is weighted by the
// destination alpha, then laid over dst with the source alpha, so a fully
// transparent source leaves dst untouched in every mode.
func blendInto(dst, src *frame.Buffer, mode timeline.BlendMode) {
	fn := blendFor(mode)
	d, s := dst.Pix, src.Pix
	for i := 0; i < len(d); i += 4 {
		as := int(s[i+3])
		if as == 0 {
			continue
		}
		ad := int(d[i+3])
		if as == 255 && mode == timeline.BlendOver {
			copy(d[i:i+4], s[i:i+4])
			continue
		}

		// output alpha scaled by 255*255
		aoW := as*255 + ad*(255-as)
		for c := 0; c < 3; c++ {
			cs, cd := int(s[i+c]), int(d[i+c])
			mixed := ((255-ad)*cs + ad*fn(cs, cd) + 127) / 255
			num := as*mixed*255 + ad*(255-as)*cd
			d[i+c] = byte((num + aoW/2) / aoW)
		}
		d[i+3] = byte((aoW + 127) / 255)
	}
}

// scaleAlpha multiplies every alpha by k/255.
func scaleAlpha(b *frame.Buffer, k int) {
	if k >= 255 {
		return
	}
	for i := 3; i < len(b.Pix); i += 4 {
		b.Pix[i] = byte((int(b.Pix[i])*k + 127) / 255)
	}
}

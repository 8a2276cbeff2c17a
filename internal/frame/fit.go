package frame

import (
	"fmt"
	"image"
	"image/draw"
	"strings"

	"github.com/nfnt/resize"
)

// FitMode decides how a frame of one size is resampled into another.
type FitMode int

const (
	// Letterbox scales to fit inside the target, keeping aspect ratio and
	// padding the remainder with transparent pixels. Nothing is cropped.
	Letterbox FitMode = iota
	// Crop scales to cover the target, keeping aspect ratio and cutting
	// the overflow evenly from both sides.
	Crop
	// Stretch scales each axis independently.
	Stretch
)

func (m FitMode) String() string {
	switch m {
	case Letterbox:
		return "letterbox"
	case Crop:
		return "crop"
	case Stretch:
		return "stretch"
	default:
		return fmt.Sprintf("fit(%d)", int(m))
	}
}

// ParseFitMode parses a fit mode name. The empty string means Letterbox.
func ParseFitMode(s string) (FitMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "letterbox":
		return Letterbox, nil
	case "crop":
		return Crop, nil
	case "stretch":
		return Stretch, nil
	}
	return Letterbox, fmt.Errorf("unknown fit mode %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (m FitMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *FitMode) UnmarshalText(text []byte) error {
	v, err := ParseFitMode(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Fit resamples src into a new RGBA8 buffer of width x height.
// A src that already matches is copied unchanged.
func Fit(src *Buffer, width, height int, mode FitMode) *Buffer {
	if src.Width == width && src.Height == height {
		return src.Convert(RGBA8)
	}
	if width == 0 || height == 0 || src.Width == 0 || src.Height == 0 {
		return Transparent(width, height)
	}

	sw, sh := src.Width, src.Height
	nw, nh := width, height
	switch mode {
	case Letterbox:
		if sw*height <= sh*width {
			nw = roundDiv(sw*height, sh)
		} else {
			nh = roundDiv(sh*width, sw)
		}
	case Crop:
		if sw*height >= sh*width {
			nw = ceilDiv(sw*height, sh)
		} else {
			nh = ceilDiv(sh*width, sw)
		}
	}
	nw = max(nw, 1)
	nh = max(nh, 1)

	resized := resize.Resize(uint(nw), uint(nh), src.Image(), resize.Bilinear)

	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	ox, oy := (width-nw)/2, (height-nh)/2
	r := image.Rect(ox, oy, ox+nw, oy+nh)
	draw.Draw(dst, r, resized, resized.Bounds().Min, draw.Src)

	out := New(width, height, RGBA8)
	copy(out.Pix, dst.Pix)
	return out
}

func roundDiv(a, b int) int {
	return (2*a + b) / (2 * b)
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

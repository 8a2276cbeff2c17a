package clips

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"sync"

	"github.com/nfnt/resize"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/kikiluvv/ved/internal/decode"
	"github.com/kikiluvv/ved/internal/frame"
	"github.com/kikiluvv/ved/pkg/util"
)

// Source produces frames on its own time axis, starting at zero.
// Callers never pass a time outside the owning clip's source range.
type Source interface {
	Frame(ctx context.Context, t util.Rational) (*frame.Buffer, error)
}

// VideoSource reads frames from decoded media with a fixed native rate.
type VideoSource struct {
	Locator   string
	FrameRate util.Rational
	Decoder   decode.Decoder
}

// NewVideoSource probes locator for its native frame rate.
func NewVideoSource(ctx context.Context, locator string, dec decode.Decoder, prober decode.Prober) (*VideoSource, decode.Info, error) {
	info, err := prober.Probe(ctx, locator)
	if err != nil {
		return nil, decode.Info{}, err
	}
	if info.FrameRate.Sign() <= 0 {
		return nil, decode.Info{}, fmt.Errorf("%s: no usable frame rate", locator)
	}
	return &VideoSource{Locator: locator, FrameRate: info.FrameRate, Decoder: dec}, info, nil
}

// FrameIndex maps t onto the native frame grid, rounding down so the
// chosen frame's presentation time never exceeds t.
func (s *VideoSource) FrameIndex(t util.Rational) int64 {
	return t.Mul(s.FrameRate).Floor()
}

func (s *VideoSource) Frame(ctx context.Context, t util.Rational) (*frame.Buffer, error) {
	return s.Decoder.DecodeFrame(ctx, s.Locator, s.FrameIndex(t))
}

// StillSource shows one image for its whole duration. The image is
// decoded on first use; failed decodes are not remembered.
type StillSource struct {
	Locator string
	Decoder decode.Decoder

	mu  sync.Mutex
	buf *frame.Buffer
}

func (s *StillSource) Frame(ctx context.Context, _ util.Rational) (*frame.Buffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.buf == nil {
		buf, err := s.Decoder.DecodeFrame(ctx, s.Locator, 0)
		if err != nil {
			return nil, err
		}
		s.buf = buf
	}
	return s.buf.Clone(), nil
}

// SolidSource generates a single color.
type SolidSource struct {
	Width  int
	Height int
	Color  color.NRGBA
}

func (s SolidSource) Frame(context.Context, util.Rational) (*frame.Buffer, error) {
	if err := checkSize(s.Width, s.Height); err != nil {
		return nil, err
	}
	return frame.Solid(s.Width, s.Height, s.Color), nil
}

func checkSize(w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("generated frame size %dx%d must be positive", w, h)
	}
	return nil
}

// TextSource renders centered lines of text with the built-in 7x13
// bitmap face, magnified by Scale.
type TextSource struct {
	Width      int
	Height     int
	Text       string
	Scale      int
	Foreground color.NRGBA
	Background color.NRGBA
}

func (s TextSource) Frame(context.Context, util.Rational) (*frame.Buffer, error) {
	if err := checkSize(s.Width, s.Height); err != nil {
		return nil, err
	}
	scale := max(s.Scale, 1)
	face := basicfont.Face7x13
	lines := strings.Split(s.Text, "\n")

	textW := 0
	for _, line := range lines {
		textW = max(textW, font.MeasureString(face, line).Ceil())
	}
	lineH := face.Metrics().Height.Ceil()
	textH := lineH * len(lines)
	if textW == 0 || textH == 0 {
		return frame.Solid(s.Width, s.Height, s.Background), nil
	}

	glyphs := image.NewNRGBA(image.Rect(0, 0, textW, textH))
	d := &font.Drawer{
		Dst:  glyphs,
		Src:  image.NewUniform(s.Foreground),
		Face: face,
	}
	for i, line := range lines {
		w := font.MeasureString(face, line).Ceil()
		d.Dot = fixed.P((textW-w)/2, i*lineH+face.Metrics().Ascent.Ceil())
		d.DrawString(line)
	}

	var scaled image.Image = glyphs
	if scale > 1 {
		scaled = resize.Resize(uint(textW*scale), uint(textH*scale), glyphs, resize.NearestNeighbor)
	}

	canvas := image.NewNRGBA(image.Rect(0, 0, s.Width, s.Height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(s.Background), image.Point{}, draw.Src)
	sb := scaled.Bounds()
	at := image.Pt((s.Width-sb.Dx())/2, (s.Height-sb.Dy())/2)
	draw.Draw(canvas, sb.Sub(sb.Min).Add(at), scaled, sb.Min, draw.Over)

	return frame.FromImage(canvas, frame.RGBA8), nil
}

// FuncSource adapts a function to Source for procedural content.
type FuncSource func(ctx context.Context, t util.Rational) (*frame.Buffer, error)

func (f FuncSource) Frame(ctx context.Context, t util.Rational) (*frame.Buffer, error) {
	return f(ctx, t)
}

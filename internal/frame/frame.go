// Package frame provides the fixed-format in-memory image every other
// stage of the engine reads and writes.
package frame

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
)

// Format is the pixel layout of a Buffer.
type Format int

const (
	RGBA8 Format = iota
	RGB8
	RGBFloat
)

func (f Format) String() string {
	switch f {
	case RGB8:
		return "rgb8"
	case RGBA8:
		return "rgba8"
	case RGBFloat:
		return "rgbf32"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// BytesPerPixel returns the storage size of one pixel in format f.
func BytesPerPixel(f Format) int {
	switch f {
	case RGB8:
		return 3
	case RGBA8:
		return 4
	case RGBFloat:
		return 12
	default:
		panic(fmt.Sprintf("frame: unknown format %d", int(f)))
	}
}

// Buffer is a width x height image stored contiguously, row-major, with
// no padding. len(Pix) == Width*Height*BytesPerPixel(Format).
//
// RGBA8 holds straight (non-premultiplied) alpha. RGBFloat holds three
// little-endian float32 per pixel, nominally in [0, 1].
type Buffer struct {
	Width  int
	Height int
	Format Format
	Pix    []byte
}

// New allocates a zeroed buffer. Zeroed RGBA8 is fully transparent.
func New(width, height int, format Format) *Buffer {
	if width < 0 || height < 0 {
		panic(fmt.Sprintf("frame: negative dimensions %dx%d", width, height))
	}
	return &Buffer{
		Width:  width,
		Height: height,
		Format: format,
		Pix:    make([]byte, width*height*BytesPerPixel(format)),
	}
}

// Transparent returns a fully transparent RGBA8 buffer.
func Transparent(width, height int) *Buffer {
	return New(width, height, RGBA8)
}

// Solid returns an RGBA8 buffer filled with c.
func Solid(width, height int, c color.NRGBA) *Buffer {
	b := New(width, height, RGBA8)
	px := []byte{c.R, c.G, c.B, c.A}
	for i := 0; i < len(b.Pix); i += 4 {
		copy(b.Pix[i:i+4], px)
	}
	return b
}

// Validate checks the storage invariant.
func (b *Buffer) Validate() error {
	if b == nil {
		return fmt.Errorf("frame: nil buffer")
	}
	if b.Width < 0 || b.Height < 0 {
		return fmt.Errorf("frame: negative dimensions %dx%d", b.Width, b.Height)
	}
	want := b.Width * b.Height * BytesPerPixel(b.Format)
	if len(b.Pix) != want {
		return fmt.Errorf("frame: storage is %d bytes, want %d for %dx%d %s",
			len(b.Pix), want, b.Width, b.Height, b.Format)
	}
	return nil
}

func (b *Buffer) offset(x, y int) int {
	if x < 0 || y < 0 || x >= b.Width || y >= b.Height {
		panic(fmt.Sprintf("frame: pixel (%d,%d) outside %dx%d", x, y, b.Width, b.Height))
	}
	return (y*b.Width + x) * BytesPerPixel(b.Format)
}

// Pixel returns the pixel at (x, y) as straight 8-bit RGBA.
// RGB formats report full opacity.
func (b *Buffer) Pixel(x, y int) color.NRGBA {
	i := b.offset(x, y)
	switch b.Format {
	case RGB8:
		return color.NRGBA{b.Pix[i], b.Pix[i+1], b.Pix[i+2], 0xff}
	case RGBFloat:
		r, g, bl := b.floatAt(i)
		return color.NRGBA{unitToByte(r), unitToByte(g), unitToByte(bl), 0xff}
	default:
		return color.NRGBA{b.Pix[i], b.Pix[i+1], b.Pix[i+2], b.Pix[i+3]}
	}
}

// SetPixel writes c at (x, y). RGB formats drop alpha.
func (b *Buffer) SetPixel(x, y int, c color.NRGBA) {
	i := b.offset(x, y)
	switch b.Format {
	case RGB8:
		b.Pix[i], b.Pix[i+1], b.Pix[i+2] = c.R, c.G, c.B
	case RGBFloat:
		b.setFloat(i, float32(c.R)/255, float32(c.G)/255, float32(c.B)/255)
	default:
		b.Pix[i], b.Pix[i+1], b.Pix[i+2], b.Pix[i+3] = c.R, c.G, c.B, c.A
	}
}

// FloatPixel returns the RGB components of an RGBFloat buffer.
func (b *Buffer) FloatPixel(x, y int) (r, g, bl float32) {
	if b.Format != RGBFloat {
		c := b.Pixel(x, y)
		return float32(c.R) / 255, float32(c.G) / 255, float32(c.B) / 255
	}
	return b.floatAt(b.offset(x, y))
}

// SetFloatPixel writes RGB components into an RGBFloat buffer.
func (b *Buffer) SetFloatPixel(x, y int, r, g, bl float32) {
	if b.Format != RGBFloat {
		b.SetPixel(x, y, color.NRGBA{unitToByte(r), unitToByte(g), unitToByte(bl), 0xff})
		return
	}
	b.setFloat(b.offset(x, y), r, g, bl)
}

// RGBA is a straight-alpha color with components in [0, 1].
type RGBA struct {
	R, G, B, A float32
}

// At returns the pixel at (x, y) in any format.
func (b *Buffer) At(x, y int) RGBA {
	if b.Format == RGBFloat {
		r, g, bl := b.floatAt(b.offset(x, y))
		return RGBA{r, g, bl, 1}
	}
	c := b.Pixel(x, y)
	return RGBA{float32(c.R) / 255, float32(c.G) / 255, float32(c.B) / 255, float32(c.A) / 255}
}

// Set writes c at (x, y), rounding to the buffer's precision.
func (b *Buffer) Set(x, y int, c RGBA) {
	if b.Format == RGBFloat {
		b.setFloat(b.offset(x, y), c.R, c.G, c.B)
		return
	}
	b.SetPixel(x, y, color.NRGBA{unitToByte(c.R), unitToByte(c.G), unitToByte(c.B), unitToByte(c.A)})
}

func (b *Buffer) floatAt(i int) (float32, float32, float32) {
	le := binary.LittleEndian
	return math.Float32frombits(le.Uint32(b.Pix[i:])),
		math.Float32frombits(le.Uint32(b.Pix[i+4:])),
		math.Float32frombits(le.Uint32(b.Pix[i+8:]))
}

func (b *Buffer) setFloat(i int, r, g, bl float32) {
	le := binary.LittleEndian
	le.PutUint32(b.Pix[i:], math.Float32bits(r))
	le.PutUint32(b.Pix[i+4:], math.Float32bits(g))
	le.PutUint32(b.Pix[i+8:], math.Float32bits(bl))
}

// Clone returns a deep copy.
func (b *Buffer) Clone() *Buffer {
	return &Buffer{
		Width:  b.Width,
		Height: b.Height,
		Format: b.Format,
		Pix:    append([]byte(nil), b.Pix...),
	}
}

// Equal reports bit-identical content, size and format.
func (b *Buffer) Equal(o *Buffer) bool {
	if b == nil || o == nil {
		return b == o
	}
	return b.Width == o.Width && b.Height == o.Height && b.Format == o.Format &&
		bytes.Equal(b.Pix, o.Pix)
}

// SameSize reports whether o has the same dimensions as b.
func (b *Buffer) SameSize(o *Buffer) bool {
	return b.Width == o.Width && b.Height == o.Height
}

// Convert returns a copy of b in format f. Converting to an RGB format
// discards alpha without compositing.
func (b *Buffer) Convert(f Format) *Buffer {
	if b.Format == f {
		return b.Clone()
	}
	out := New(b.Width, b.Height, f)
	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			out.SetPixel(x, y, b.Pixel(x, y))
		}
	}
	return out
}

// Image exposes b as a standard library image. The result shares no
// storage with b.
func (b *Buffer) Image() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, b.Width, b.Height))
	if b.Format == RGBA8 {
		copy(img.Pix, b.Pix)
		return img
	}
	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			img.SetNRGBA(x, y, b.Pixel(x, y))
		}
	}
	return img
}

// FromImage copies img into a new buffer of format f.
func FromImage(img image.Image, f Format) *Buffer {
	bounds := img.Bounds()
	var src *image.NRGBA
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) && n.Stride == 4*bounds.Dx() {
		src = n
	} else {
		src = image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(src, src.Bounds(), img, bounds.Min, draw.Src)
	}

	out := New(bounds.Dx(), bounds.Dy(), RGBA8)
	copy(out.Pix, src.Pix)
	if f == RGBA8 {
		return out
	}
	return out.Convert(f)
}

func unitToByte(v float32) uint8 {
	switch {
	case v != v || v <= 0:
		return 0
	case v >= 1:
		return 0xff
	}
	return uint8(v*255 + 0.5)
}

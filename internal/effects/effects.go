// Package effects provides the closed set of effect kinds that can be
// attached to a track. Each kind declares one capability: it filters a
// single frame, combines the clip frame with the backdrop beneath it, or
// only remaps the time at which the clip is sampled.
//
// All pixel math runs on 8-bit integers so repeated renders are
// bit-identical on every platform.
package effects

import (
	"fmt"
	"image/color"
	"math"
	"slices"
	"sort"
	"sync"

	"github.com/kikiluvv/ved/internal/errs"
	"github.com/kikiluvv/ved/internal/frame"
	"github.com/kikiluvv/ved/pkg/util"
)

// Kind names an effect in the registry.
type Kind string

// Built-in kinds
const (
	Brightness Kind = "brightness"
	Contrast   Kind = "contrast"
	Grayscale  Kind = "grayscale"
	Invert     Kind = "invert"
	Opacity    Kind = "opacity"
	Tint       Kind = "tint"
	ChromaKey  Kind = "chroma_key"
	Freeze     Kind = "freeze"
	Speed      Kind = "speed"
)

// Capability is the shape of an effect.
type Capability int

const (
	SingleInput Capability = iota
	MultiInput
	TimeOnly
)

func (c Capability) String() string {
	switch c {
	case SingleInput:
		return "single-input"
	case MultiInput:
		return "multi-input"
	case TimeOnly:
		return "time-only"
	default:
		return fmt.Sprintf("capability(%d)", int(c))
	}
}

// Params maps parameter names to values. Colors are stored under the
// keys r, g, b and a with 0-255 components.
type Params map[string]float64

// Float returns the named parameter or def when unset.
func (p Params) Float(name string, def float64) float64 {
	if v, ok := p[name]; ok {
		return v
	}
	return def
}

// Color returns the r, g, b, a parameters, falling back to def per channel.
func (p Params) Color(def color.NRGBA) color.NRGBA {
	return color.NRGBA{
		R: clampByte(p.Float("r", float64(def.R))),
		G: clampByte(p.Float("g", float64(def.G))),
		B: clampByte(p.Float("b", float64(def.B))),
		A: clampByte(p.Float("a", float64(def.A))),
	}
}

// FrameFunc transforms frames. Single-input effects receive exactly one
// buffer; multi-input effects receive the clip frame then the backdrop.
type FrameFunc func(inputs []*frame.Buffer, p Params) (*frame.Buffer, error)

// TimeFunc maps a clip-local time to the time that should be sampled.
// window is the clip's source range.
type TimeFunc func(t util.Rational, window util.TimeRange, p Params) util.Rational

// Definition describes one registered effect kind.
type Definition struct {
	Kind       Kind
	Capability Capability
	Inputs     int
	Apply      FrameFunc
	Remap      TimeFunc
}

func (d Definition) validate() error {
	if d.Kind == "" {
		return fmt.Errorf("effect kind is required")
	}
	switch d.Capability {
	case SingleInput, MultiInput:
		if d.Apply == nil {
			return fmt.Errorf("effect %s: frame function is required", d.Kind)
		}
		if d.Capability == SingleInput && d.Inputs != 1 {
			return fmt.Errorf("effect %s: single-input effect must take 1 input", d.Kind)
		}
		if d.Capability == MultiInput && d.Inputs < 2 {
			return fmt.Errorf("effect %s: multi-input effect must take at least 2 inputs", d.Kind)
		}
	case TimeOnly:
		if d.Remap == nil {
			return fmt.Errorf("effect %s: time function is required", d.Kind)
		}
	default:
		return fmt.Errorf("effect %s: unknown capability %s", d.Kind, d.Capability)
	}
	return nil
}

// Registry is the capability table consulted by the compositor.
// It is filled at startup and read concurrently afterwards.
type Registry struct {
	mu   sync.RWMutex
	defs map[Kind]Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[Kind]Definition)}
}

// DefaultRegistry returns a registry holding every built-in kind.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, d := range builtins() {
		if err := r.Register(d); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds a kind. Registering the same kind twice is an error.
func (r *Registry) Register(d Definition) error {
	if err := d.validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.defs[d.Kind]; ok {
		return fmt.Errorf("effect %s already registered", d.Kind)
	}
	r.defs[d.Kind] = d
	return nil
}

// Lookup returns the definition for kind.
func (r *Registry) Lookup(kind Kind) (Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.defs[kind]
	if !ok {
		return Definition{}, fmt.Errorf("unknown effect kind %q", kind)
	}
	return d, nil
}

// Kinds lists registered kinds in sorted order.
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]Kind, 0, len(r.defs))
	for k := range r.defs {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Instance is one configured effect in a chain.
type Instance struct {
	Kind   Kind
	Params Params
}

// Chain is an ordered list of effects applied left to right.
type Chain []Instance

// Validate checks that every kind in the chain is registered.
func (c Chain) Validate(reg *Registry) error {
	for i, inst := range c {
		if _, err := reg.Lookup(inst.Kind); err != nil {
			return fmt.Errorf("effect %d: %w", i, err)
		}
	}
	return nil
}

// HasFrameEffects reports whether any entry transforms pixels.
func (c Chain) HasFrameEffects(reg *Registry) bool {
	for _, inst := range c {
		if d, err := reg.Lookup(inst.Kind); err == nil && d.Capability != TimeOnly {
			return true
		}
	}
	return false
}

// Remap runs the time-only effects of the chain over t in order.
func (c Chain) Remap(reg *Registry, t util.Rational, window util.TimeRange) (util.Rational, error) {
	for i, inst := range c {
		d, err := reg.Lookup(inst.Kind)
		if err != nil {
			return t, fmt.Errorf("effect %d: %w", i, err)
		}
		if d.Capability == TimeOnly {
			t = d.Remap(t, window, inst.Params)
		}
	}
	return t, nil
}

// Apply runs the frame effects of the chain over buf. backdrop is what
// lower tracks have composited so far; multi-input effects receive it as
// their second input. Neither argument is modified.
func (c Chain) Apply(reg *Registry, buf, backdrop *frame.Buffer) (*frame.Buffer, error) {
	cur := buf
	for i, inst := range c {
		d, err := reg.Lookup(inst.Kind)
		if err != nil {
			return nil, fmt.Errorf("effect %d: %w", i, err)
		}

		var inputs []*frame.Buffer
		switch d.Capability {
		case TimeOnly:
			continue
		case SingleInput:
			inputs = []*frame.Buffer{cur}
		case MultiInput:
			if backdrop == nil {
				backdrop = frame.Transparent(cur.Width, cur.Height)
			}
			inputs = []*frame.Buffer{cur, backdrop}
		}
		if err := checkInputs(inputs, d.Inputs); err != nil {
			return nil, fmt.Errorf("effect %d (%s): %w", i, d.Kind, err)
		}

		out, err := d.Apply(inputs, inst.Params)
		if err != nil {
			return nil, fmt.Errorf("effect %d (%s): %w", i, d.Kind, err)
		}
		cur = out
	}
	if cur == buf {
		return buf.Clone(), nil
	}
	return cur, nil
}

func checkInputs(inputs []*frame.Buffer, want int) error {
	if len(inputs) != want {
		return fmt.Errorf("expected %d inputs, got %d", want, len(inputs))
	}
	first := inputs[0]
	for _, in := range inputs[1:] {
		if !first.SameSize(in) {
			return errs.DimensionMismatch(first.Width, first.Height, in.Width, in.Height)
		}
	}
	return nil
}

// rgba returns buf as RGBA8 without copying when it already is.
func rgba(buf *frame.Buffer) *frame.Buffer {
	if buf.Format == frame.RGBA8 {
		return buf
	}
	return buf.Convert(frame.RGBA8)
}

// mapPixels applies fn to every pixel of a copy of in.
func mapPixels(in *frame.Buffer, fn func(px []byte)) *frame.Buffer {
	src := rgba(in)
	out := &frame.Buffer{
		Width:  src.Width,
		Height: src.Height,
		Format: frame.RGBA8,
		Pix:    slices.Clone(src.Pix),
	}
	for i := 0; i < len(out.Pix); i += 4 {
		fn(out.Pix[i : i+4 : i+4])
	}
	return out
}

func clampByte(v float64) uint8 {
	return uint8(max(0, min(255, math.Round(v))))
}

func clampInt(v int) uint8 {
	return uint8(max(0, min(255, v)))
}

// fixed converts a float parameter to a fixed-point integer with 8
// fractional bits, the only place floats enter pixel math.
func fixed(v float64) int {
	return int(math.Round(v * 256))
}

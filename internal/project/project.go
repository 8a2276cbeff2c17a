// Package project loads timeline descriptions written in YAML.
//
//	width: 1280
//	height: 720
//	frame_rate: 30000/1001
//	background: "#000000"
//	tracks:
//	  - name: main
//	    clips:
//	      - source: {type: video, path: intro.mp4}
//	        in: 2
//	        duration: 5
//	        at: 0
//	  - name: titles
//	    blend: screen
//	    effects:
//	      - kind: opacity
//	        params: {amount: 0.8}
//	    clips:
//	      - source: {type: text, text: "Hello", scale: 4, color: "#ffffff"}
//	        duration: 2
//	        at: 1
//	audio:
//	  - path: music.m4a
//	    offset: 0.5
package project

import (
	"context"
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/kikiluvv/ved/internal/clips"
	"github.com/kikiluvv/ved/internal/decode"
	"github.com/kikiluvv/ved/internal/effects"
	"github.com/kikiluvv/ved/internal/ffmpeg"
	"github.com/kikiluvv/ved/internal/timeline"
	"github.com/kikiluvv/ved/pkg/util"
)

// File is the YAML document.
type File struct {
	Name       string      `yaml:"name"`
	Width      int         `yaml:"width"`
	Height     int         `yaml:"height"`
	FrameRate  string      `yaml:"frame_rate"`
	Background string      `yaml:"background"`
	Tracks     []TrackSpec `yaml:"tracks"`
	Audio      []AudioSpec `yaml:"audio"`
}

type TrackSpec struct {
	Name    string       `yaml:"name"`
	Blend   string       `yaml:"blend"`
	Opacity *float64     `yaml:"opacity"`
	Width   int          `yaml:"width"`
	Height  int          `yaml:"height"`
	Effects []EffectSpec `yaml:"effects"`
	Clips   []ClipSpec   `yaml:"clips"`
}

type EffectSpec struct {
	Kind   string             `yaml:"kind"`
	Params map[string]float64 `yaml:"params"`
}

type ClipSpec struct {
	Name     string     `yaml:"name"`
	Source   SourceSpec `yaml:"source"`
	In       string     `yaml:"in"`       // source start, default 0
	Duration string     `yaml:"duration"` // default: rest of the media
	At       string     `yaml:"at"`       // placement start, default 0
}

type SourceSpec struct {
	Type       string `yaml:"type"` // video, image, solid, text
	Path       string `yaml:"path"`
	Color      string `yaml:"color"`
	Background string `yaml:"background"`
	Text       string `yaml:"text"`
	Scale      int    `yaml:"scale"`
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
}

type AudioSpec struct {
	Path   string `yaml:"path"`
	Offset string `yaml:"offset"`
}

// Env supplies the decoders that sources read through.
type Env struct {
	Video  decode.Decoder
	Prober decode.Prober
	Image  decode.Decoder
}

// Project is a loaded description.
type Project struct {
	Name     string
	Timeline *timeline.Timeline
	Audio    []ffmpeg.AudioInput
}

// Parse decodes a YAML document without touching media.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse project: %w", err)
	}
	return &f, nil
}

// Load reads and builds the project at path. Relative media paths are
// resolved against the project file's directory.
func Load(ctx context.Context, path string, env Env, reg *effects.Registry) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if f.Name == "" {
		f.Name = filepath.Base(path)
	}
	b := &builder{env: env, base: filepath.Dir(path), reg: reg}
	p, err := b.build(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Build turns a parsed document into a project.
func Build(ctx context.Context, f *File, baseDir string, env Env, reg *effects.Registry) (*Project, error) {
	b := &builder{env: env, base: baseDir, reg: reg}
	return b.build(ctx, f)
}

type builder struct {
	env  Env
	base string
	reg  *effects.Registry
	size [2]int
}

func (b *builder) build(ctx context.Context, f *File) (*Project, error) {
	rate, err := util.ParseFrameRate(orDefault(f.FrameRate, "30"))
	if err != nil {
		return nil, err
	}
	b.size = [2]int{f.Width, f.Height}

	var tracks []*timeline.Track
	for i, ts := range f.Tracks {
		tr, err := b.track(ctx, ts)
		if err != nil {
			return nil, fmt.Errorf("track %d: %w", i, err)
		}
		tracks = append(tracks, tr)
	}

	tl, err := timeline.New(f.Width, f.Height, rate, tracks...)
	if err != nil {
		return nil, err
	}
	if f.Background != "" {
		bg, err := util.ParseHexColor(f.Background)
		if err != nil {
			return nil, fmt.Errorf("background: %w", err)
		}
		tl = tl.WithBackground(bg)
	}
	if b.reg != nil {
		if err := tl.Validate(b.reg); err != nil {
			return nil, err
		}
	}

	p := &Project{Name: f.Name, Timeline: tl}
	for i, a := range f.Audio {
		if a.Path == "" {
			return nil, fmt.Errorf("audio %d: path is required", i)
		}
		offset, err := util.ParseTimestamp(orDefault(a.Offset, "0"))
		if err != nil {
			return nil, fmt.Errorf("audio %d: %w", i, err)
		}
		p.Audio = append(p.Audio, ffmpeg.AudioInput{Path: b.resolve(a.Path), Offset: offset})
	}
	return p, nil
}

func (b *builder) track(ctx context.Context, ts TrackSpec) (*timeline.Track, error) {
	if ts.Width < 0 || ts.Height < 0 {
		return nil, fmt.Errorf("track size %dx%d cannot be negative", ts.Width, ts.Height)
	}
	var cl []*clips.Clip
	for i, cs := range ts.Clips {
		c, err := b.clip(ctx, cs, ts)
		if err != nil {
			return nil, fmt.Errorf("clip %d: %w", i, err)
		}
		cl = append(cl, c)
	}

	tr, err := timeline.NewTrack(ts.Name, cl...)
	if err != nil {
		return nil, err
	}

	mode, err := timeline.ParseBlendMode(ts.Blend)
	if err != nil {
		return nil, err
	}
	tr = tr.WithBlend(mode).WithSize(ts.Width, ts.Height)
	if ts.Opacity != nil {
		tr = tr.WithOpacity(*ts.Opacity)
	}

	chain := make(effects.Chain, 0, len(ts.Effects))
	for _, es := range ts.Effects {
		chain = append(chain, effects.Instance{Kind: effects.Kind(es.Kind), Params: es.Params})
	}
	return tr.WithEffects(chain), nil
}

func (b *builder) clip(ctx context.Context, cs ClipSpec, ts TrackSpec) (*clips.Clip, error) {
	in, err := util.ParseTimestamp(orDefault(cs.In, "0"))
	if err != nil {
		return nil, fmt.Errorf("in: %w", err)
	}
	at, err := util.ParseTimestamp(orDefault(cs.At, "0"))
	if err != nil {
		return nil, fmt.Errorf("at: %w", err)
	}

	src, mediaLen, err := b.source(ctx, cs.Source, ts)
	if err != nil {
		return nil, err
	}

	var dur util.Rational
	switch {
	case cs.Duration != "":
		if dur, err = util.ParseTimestamp(cs.Duration); err != nil {
			return nil, fmt.Errorf("duration: %w", err)
		}
	case mediaLen.Sign() > 0:
		dur = mediaLen.Sub(in)
	default:
		return nil, fmt.Errorf("duration is required for %s sources", cs.Source.Type)
	}

	name := cs.Name
	if name == "" {
		name = orDefault(cs.Source.Path, cs.Source.Type)
	}
	return clips.New(name, src, util.TimeRange{Start: in, Duration: dur}, at)
}

// source builds the clip source and reports the media length when known.
func (b *builder) source(ctx context.Context, ss SourceSpec, ts TrackSpec) (clips.Source, util.Rational, error) {
	if ss.Width < 0 || ss.Height < 0 {
		return nil, util.Zero, fmt.Errorf("source size %dx%d cannot be negative", ss.Width, ss.Height)
	}
	w, h := ss.Width, ss.Height
	if w == 0 || h == 0 {
		w, h = ts.Width, ts.Height
	}
	if w == 0 || h == 0 {
		w, h = b.size[0], b.size[1]
	}

	switch ss.Type {
	case "video":
		if ss.Path == "" {
			return nil, util.Zero, fmt.Errorf("video source requires a path")
		}
		if b.env.Video == nil || b.env.Prober == nil {
			return nil, util.Zero, fmt.Errorf("no video decoder available")
		}
		src, info, err := clips.NewVideoSource(ctx, b.resolve(ss.Path), b.env.Video, b.env.Prober)
		if err != nil {
			return nil, util.Zero, err
		}
		return src, info.Duration, nil

	case "image":
		if ss.Path == "" {
			return nil, util.Zero, fmt.Errorf("image source requires a path")
		}
		dec := b.env.Image
		if dec == nil {
			dec = decode.ImageDecoder{}
		}
		return &clips.StillSource{Locator: b.resolve(ss.Path), Decoder: dec}, util.Zero, nil

	case "solid":
		c, err := parseColor(ss.Color, color.NRGBA{A: 255})
		if err != nil {
			return nil, util.Zero, err
		}
		return clips.SolidSource{Width: w, Height: h, Color: c}, util.Zero, nil

	case "text":
		fg, err := parseColor(ss.Color, color.NRGBA{255, 255, 255, 255})
		if err != nil {
			return nil, util.Zero, err
		}
		bg, err := parseColor(ss.Background, color.NRGBA{})
		if err != nil {
			return nil, util.Zero, err
		}
		return clips.TextSource{Width: w, Height: h, Text: ss.Text, Scale: ss.Scale, Foreground: fg, Background: bg}, util.Zero, nil

	default:
		return nil, util.Zero, fmt.Errorf("unknown source type %q", ss.Type)
	}
}

func (b *builder) resolve(path string) string {
	if filepath.IsAbs(path) || b.base == "" {
		return path
	}
	return filepath.Join(b.base, path)
}

func parseColor(s string, def color.NRGBA) (color.NRGBA, error) {
	if s == "" {
		return def, nil
	}
	return util.ParseHexColor(s)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

package pipeline

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/kikiluvv/ved/internal/compositor"
	"github.com/kikiluvv/ved/internal/config"
	"github.com/kikiluvv/ved/internal/decode"
	"github.com/kikiluvv/ved/internal/effects"
	"github.com/kikiluvv/ved/internal/errs"
	"github.com/kikiluvv/ved/internal/export"
	"github.com/kikiluvv/ved/internal/ffmpeg"
	"github.com/kikiluvv/ved/internal/frame"
	"github.com/kikiluvv/ved/internal/project"
	"github.com/kikiluvv/ved/internal/render"
	"github.com/kikiluvv/ved/pkg/util"
)

// Pipeline wires projects, decoders, the renderer and exporters together
type Pipeline struct {
	logger   zerolog.Logger
	config   *config.Config
	ffmpeg   *ffmpeg.Executor
	decoder  *decode.FFmpegDecoder
	registry *effects.Registry
}

// New creates a new pipeline instance. Without ffmpeg, video sources and
// ffmpeg exports are unavailable but everything else works.
func New(logger zerolog.Logger, cfg *config.Config) (*Pipeline, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Pipeline{
		logger:   logger.With().Str("component", "pipeline").Logger(),
		config:   cfg,
		registry: effects.DefaultRegistry(),
	}

	ffmpegExec, err := ffmpeg.New(logger, cfg.FFmpeg.BinaryPath, cfg.FFmpeg.Threads)
	if err != nil {
		p.logger.Warn().Err(err).Msg("ffmpeg unavailable, video sources and encoding disabled")
		return p, nil
	}
	p.logger.Debug().Str("ffmpeg", ffmpegExec.Path()).Msg("ffmpeg found")
	p.ffmpeg = ffmpegExec
	p.decoder = decode.NewFFmpegDecoder(logger, ffmpegExec)
	return p, nil
}

// Registry returns the effect table used for every project.
func (p *Pipeline) Registry() *effects.Registry { return p.registry }

// pass holds what one render pass owns.
type pass struct {
	project *project.Project
	pool    *decode.Pool
}

func (ps *pass) Close() error { return ps.pool.Close() }

// open loads a project with a fresh decode pool.
func (p *Pipeline) open(ctx context.Context, path string) (*pass, error) {
	var next decode.Decoder = decode.ImageDecoder{}
	env := project.Env{Image: decode.ImageDecoder{}}
	if p.decoder != nil {
		next = decode.WithRetry(p.logger, p.decoder)
		env.Prober = p.decoder
	}
	pool := decode.NewPool(next, p.config.Render.DecodeCache)
	if p.decoder != nil {
		env.Video = pool
	}

	proj, err := project.Load(ctx, path, env, p.registry)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return &pass{project: proj, pool: pool}, nil
}

func (p *Pipeline) compositor() *compositor.Compositor {
	return compositor.New(compositor.Options{
		Fit:      p.config.Render.Fit,
		Registry: p.registry,
		Logger:   p.logger,
	})
}

func (p *Pipeline) renderer(comp render.Compositor) (*render.Renderer, error) {
	var ec = render.DefaultErrorColor
	if p.config.Render.ErrorColor != "" {
		c, err := util.ParseHexColor(p.config.Render.ErrorColor)
		if err != nil {
			return nil, fmt.Errorf("render.error_color: %w", err)
		}
		ec = c
	}

	return render.New(comp, render.Options{
		Workers:    p.config.Render.Workers,
		FailFast:   p.config.Render.FailFast,
		ErrorColor: ec,
		Logger:     p.logger,
	}), nil
}

// Render renders the project file at path to opts.OutputPath
func (p *Pipeline) Render(ctx context.Context, path string, opts RenderOptions) (*RenderResult, error) {
	if opts.OutputPath == "" {
		return nil, fmt.Errorf("output path cannot be empty")
	}

	ps, err := p.open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer ps.Close()
	tl := ps.project.Timeline

	r, err := p.renderer(p.compositor())
	if err != nil {
		return nil, err
	}

	rate := tl.FrameRate
	if opts.Rate.Sign() > 0 {
		rate = opts.Rate
	}
	end := opts.End
	if end.IsZero() {
		end = tl.Duration()
	}
	seq, err := r.RenderRange(ctx, tl, opts.Start, end, util.One.Div(rate))
	if err != nil {
		return nil, err
	}
	if seq.Len() == 0 {
		return nil, fmt.Errorf("nothing to render: range [%s, %s) is empty", opts.Start, end)
	}

	format := resolveFormat(opts)
	exp, err := p.exporter(format, opts, ps.project)
	if err != nil {
		return nil, err
	}

	p.logger.Info().
		Str("project", ps.project.Name).
		Str("output", opts.OutputPath).
		Str("format", format).
		Int("frames", seq.Len()).
		Int("workers", r.Workers()).
		Msg("starting render pipeline")

	if opts.OnStart != nil {
		opts.OnStart(seq.Len())
	}

	result := &RenderResult{Output: opts.OutputPath, Format: format}
	started := time.Now()
	if err := exp.Export(ctx, counted(seq.All(), result), rate); err != nil {
		return nil, err
	}
	result.Elapsed = time.Since(started)

	stats := ps.pool.Stats()
	p.logger.Info().
		Str("output", opts.OutputPath).
		Int("frames", result.Frames).
		Int("errors", result.Errors).
		Uint64("cache_hits", stats.Hits).
		Uint64("cache_misses", stats.Misses).
		Dur("elapsed", result.Elapsed).
		Msg("render pipeline complete")

	return result, nil
}

// counted tallies frames and failures as they pass to the exporter.
func counted(frames iter.Seq2[int, render.Result], result *RenderResult) iter.Seq2[int, render.Result] {
	return func(yield func(int, render.Result) bool) {
		for i, res := range frames {
			result.Frames++
			if res.Err != nil {
				result.Errors++
			}
			if !yield(i, res) {
				return
			}
		}
	}
}

func resolveFormat(opts RenderOptions) string {
	if opts.Format != FormatAuto {
		return opts.Format
	}
	switch strings.ToLower(util.GetExtension(opts.OutputPath)) {
	case "":
		return FormatPNG
	case ".avi":
		return FormatMJPEG
	default:
		return FormatFFmpeg
	}
}

func (p *Pipeline) exporter(format string, opts RenderOptions, proj *project.Project) (export.Exporter, error) {
	out := p.config.Output
	exportOpts := export.Options{
		SkipErrors: out.SkipErrors,
		OnFrame:    opts.OnFrame,
		Logger:     p.logger,
	}

	switch format {
	case FormatPNG:
		return export.NewPNGSequenceExporter(opts.OutputPath, "", exportOpts), nil
	case FormatMJPEG:
		return export.NewMJPEGExporter(opts.OutputPath, out.JPEGQuality, exportOpts), nil
	case FormatFFmpeg:
		if p.ffmpeg == nil {
			return nil, errs.Encode(fmt.Errorf("ffmpeg is required to write %s", opts.OutputPath))
		}
		return export.NewFFmpegExporter(p.ffmpeg, ffmpeg.EncodeOptions{
			Output:     opts.OutputPath,
			Audio:      proj.Audio,
			VideoCodec: out.VideoCodec,
			AudioCodec: out.AudioCodec,
			CRF:        out.CRF,
			Preset:     out.Preset,
			PixFmt:     out.PixFmt,
			SampleRate: out.SampleRate,
			Filter:     out.Filter,
			CustomArgs: out.ExtraArgs,
		}, exportOpts), nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// Screenshot renders the instant at of the project at path to a PNG file
func (p *Pipeline) Screenshot(ctx context.Context, path string, at util.Rational, output string) (*frame.Buffer, error) {
	ps, err := p.open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer ps.Close()

	r, err := p.renderer(p.compositor())
	if err != nil {
		return nil, err
	}
	buf, err := r.Render(ctx, ps.project.Timeline, at)
	if err != nil {
		return nil, err
	}
	if err := export.WritePNG(output, buf); err != nil {
		return nil, errs.Encode(err)
	}

	p.logger.Info().
		Str("output", output).
		Str("at", util.FormatTimestamp(at)).
		Msg("screenshot saved")
	return buf, nil
}

// Preview plays the project at path from opts.Start through opts.End
// inclusive into a PNG sequence, opts.Loops times. Composited frames are
// kept in a frame cache so repeated loops do not composite again.
func (p *Pipeline) Preview(ctx context.Context, path string, opts PreviewOptions) (*PreviewResult, error) {
	if opts.OutputDir == "" {
		return nil, fmt.Errorf("output directory cannot be empty")
	}
	loops := max(opts.Loops, 1)

	ps, err := p.open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer ps.Close()
	tl := ps.project.Timeline

	var comp render.Compositor = p.compositor()
	var cache *render.CachedCompositor
	if p.config.Render.FrameCache > 0 {
		cache = render.NewCachedCompositor(comp, p.config.Render.FrameCache)
		comp = cache
	}
	r, err := p.renderer(comp)
	if err != nil {
		return nil, err
	}

	rate := tl.FrameRate
	if opts.Rate.Sign() > 0 {
		rate = opts.Rate
	}
	end := opts.End
	if end.IsZero() {
		end = tl.Duration().Sub(util.One.Div(rate))
	}
	seq, err := r.Play(ctx, tl, opts.Start, end, rate)
	if err != nil {
		return nil, err
	}

	p.logger.Info().
		Str("project", ps.project.Name).
		Str("output", opts.OutputDir).
		Int("frames", seq.Len()).
		Int("loops", loops).
		Msg("starting preview")

	if opts.OnStart != nil {
		opts.OnStart(seq.Len() * loops)
	}

	exp := export.NewPNGSequenceExporter(opts.OutputDir, "", export.Options{
		SkipErrors: p.config.Output.SkipErrors,
		OnFrame:    opts.OnFrame,
		Logger:     p.logger,
	})
	counts := &RenderResult{}
	started := time.Now()
	if err := exp.Export(ctx, counted(repeat(seq, loops), counts), rate); err != nil {
		return nil, err
	}

	result := &PreviewResult{
		Output:  opts.OutputDir,
		Frames:  counts.Frames,
		Errors:  counts.Errors,
		Elapsed: time.Since(started),
	}
	if cache != nil {
		result.CacheHits, result.CacheMisses = cache.Stats()
	}

	p.logger.Info().
		Str("output", opts.OutputDir).
		Int("frames", result.Frames).
		Uint64("frame_cache_hits", result.CacheHits).
		Uint64("frame_cache_misses", result.CacheMisses).
		Dur("elapsed", result.Elapsed).
		Msg("preview complete")
	return result, nil
}

// repeat plays seq n times with continuous indices.
func repeat(seq *render.Sequence, n int) iter.Seq2[int, render.Result] {
	return func(yield func(int, render.Result) bool) {
		for loop := range n {
			for i, res := range seq.All() {
				if !yield(loop*seq.Len()+i, res) {
					return
				}
			}
		}
	}
}

// Probe reports the media properties of a video file
func (p *Pipeline) Probe(ctx context.Context, path string) (*ffmpeg.VideoInfo, error) {
	if p.ffmpeg == nil {
		return nil, fmt.Errorf("ffmpeg is required to probe %s", path)
	}
	info, err := p.ffmpeg.ProbeVideo(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to probe video: %w", err)
	}
	return info, nil
}

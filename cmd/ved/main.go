package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kikiluvv/ved/internal/config"
	"github.com/kikiluvv/ved/internal/logging"
	"github.com/kikiluvv/ved/internal/pipeline"
	"github.com/kikiluvv/ved/pkg/util"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	ctx := context.Background()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "ved",
	Short:        "ved - timeline video composition and rendering",
	Long:         "Compose video, image, color and text clips on layered tracks and render them to video files or image sequences.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Load config
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		// Initialize logging
		if err := logging.Init(logging.Options{
			Level:   cfg.Logging.Level,
			Format:  cfg.Logging.Format,
			Verbose: verbose,
		}); err != nil {
			return err
		}

		// Store config in context
		ctx := config.WithConfig(cmd.Context(), cfg)
		cmd.SetContext(ctx)

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./ved.yaml or ~/.ved/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(screenshotCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(effectsCmd)
	rootCmd.AddCommand(configCmd)
}

func newPipeline(cmd *cobra.Command) (*pipeline.Pipeline, *config.Config, error) {
	cfg := config.FromContext(cmd.Context())
	pipe, err := pipeline.New(logging.NewLogger(), cfg)
	if err != nil {
		return nil, nil, err
	}
	return pipe, cfg, nil
}

var renderFlags struct {
	output     string
	format     string
	start      string
	end        string
	rate       string
	workers    int
	failFast   bool
	skipErrors bool
	noProgress bool
}

var renderCmd = &cobra.Command{
	Use:   "render [project file]",
	Short: "Render a project to a video file or image sequence",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		if cmd.Flags().Changed("workers") {
			cfg.Render.Workers = renderFlags.workers
		}
		if renderFlags.failFast {
			cfg.Render.FailFast = true
		}
		if renderFlags.skipErrors {
			cfg.Output.SkipErrors = true
		}

		pipe, err := pipeline.New(logging.NewLogger(), cfg)
		if err != nil {
			return err
		}

		opts := pipeline.RenderOptions{
			OutputPath: renderFlags.output,
			Format:     renderFlags.format,
		}
		if opts.OutputPath == "" {
			name := strings.TrimSuffix(filepath.Base(args[0]), util.GetExtension(args[0]))
			opts.OutputPath = filepath.Join(cfg.Output.Dir, name+".mp4")
		}
		if opts.Start, err = optionalTimestamp(renderFlags.start); err != nil {
			return fmt.Errorf("--start: %w", err)
		}
		if opts.End, err = optionalTimestamp(renderFlags.end); err != nil {
			return fmt.Errorf("--end: %w", err)
		}
		if renderFlags.rate != "" {
			if opts.Rate, err = util.ParseFrameRate(renderFlags.rate); err != nil {
				return fmt.Errorf("--rate: %w", err)
			}
		}

		var bar *progressbar.ProgressBar
		if !renderFlags.noProgress {
			opts.OnStart = func(total int) {
				bar = progressbar.Default(int64(total), "Rendering")
			}
			opts.OnFrame = func(int) {
				_ = bar.Add(1)
			}
		}

		result, err := pipe.Render(cmd.Context(), args[0], opts)
		if bar != nil {
			_ = bar.Finish()
		}
		if err != nil {
			return err
		}

		cliLog := logging.WithComponent("cli")
		cliLog.Info().
			Str("output", result.Output).
			Str("format", result.Format).
			Int("frames", result.Frames).
			Int("errors", result.Errors).
			Dur("elapsed", result.Elapsed).
			Msg("render complete")

		return nil
	},
}

func optionalTimestamp(s string) (util.Rational, error) {
	if s == "" {
		return util.Zero, nil
	}
	return util.ParseTimestamp(s)
}

var screenshotFlags struct {
	at     string
	output string
}

var screenshotCmd = &cobra.Command{
	Use:   "screenshot [project file]",
	Short: "Render a single instant to a PNG file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pipe, _, err := newPipeline(cmd)
		if err != nil {
			return err
		}

		at, err := util.ParseTimestamp(screenshotFlags.at)
		if err != nil {
			return fmt.Errorf("--at: %w", err)
		}

		output := screenshotFlags.output
		if output == "" {
			output = fmt.Sprintf("frame_%s.png", strings.ReplaceAll(util.FormatTimestamp(at), ":", "-"))
		}

		buf, err := pipe.Screenshot(cmd.Context(), args[0], at, output)
		if err != nil {
			return err
		}

		cliLog := logging.WithComponent("cli")
		cliLog.Info().
			Str("output", output).
			Int("width", buf.Width).
			Int("height", buf.Height).
			Msg("screenshot complete")
		return nil
	},
}

var previewFlags struct {
	output     string
	start      string
	end        string
	rate       string
	loops      int
	noProgress bool
}

var previewCmd = &cobra.Command{
	Use:   "preview [project file]",
	Short: "Play a range of a project into a PNG sequence",
	Long:  "Play a range of a project, end inclusive, into a PNG sequence. Composited frames are cached (render.frame_cache) so looping a range only composites it once.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pipe, cfg, err := newPipeline(cmd)
		if err != nil {
			return err
		}

		opts := pipeline.PreviewOptions{
			OutputDir: previewFlags.output,
			Loops:     previewFlags.loops,
		}
		if opts.OutputDir == "" {
			name := strings.TrimSuffix(filepath.Base(args[0]), util.GetExtension(args[0]))
			opts.OutputDir = filepath.Join(cfg.Output.Dir, name+"_preview")
		}
		if opts.Start, err = optionalTimestamp(previewFlags.start); err != nil {
			return fmt.Errorf("--start: %w", err)
		}
		if opts.End, err = optionalTimestamp(previewFlags.end); err != nil {
			return fmt.Errorf("--end: %w", err)
		}
		if previewFlags.rate != "" {
			if opts.Rate, err = util.ParseFrameRate(previewFlags.rate); err != nil {
				return fmt.Errorf("--rate: %w", err)
			}
		}

		var bar *progressbar.ProgressBar
		if !previewFlags.noProgress {
			opts.OnStart = func(total int) {
				bar = progressbar.Default(int64(total), "Previewing")
			}
			opts.OnFrame = func(int) {
				_ = bar.Add(1)
			}
		}

		result, err := pipe.Preview(cmd.Context(), args[0], opts)
		if bar != nil {
			_ = bar.Finish()
		}
		if err != nil {
			return err
		}

		cliLog := logging.WithComponent("cli")
		cliLog.Info().
			Str("output", result.Output).
			Int("frames", result.Frames).
			Uint64("cache_hits", result.CacheHits).
			Dur("elapsed", result.Elapsed).
			Msg("preview complete")
		return nil
	},
}

var probeCmd = &cobra.Command{
	Use:   "probe [video file]",
	Short: "Show media properties of a video file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pipe, _, err := newPipeline(cmd)
		if err != nil {
			return err
		}

		info, err := pipe.Probe(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "file:       %s\n", info.FilePath)
		fmt.Fprintf(out, "size:       %dx%d\n", info.Width, info.Height)
		fmt.Fprintf(out, "frame rate: %s (%.3f fps)\n", info.FrameRate, info.FrameRate.Float64())
		fmt.Fprintf(out, "frames:     %d\n", info.FrameCount)
		fmt.Fprintf(out, "duration:   %s\n", util.FormatTimestamp(info.Duration))
		fmt.Fprintf(out, "video:      %s\n", info.VideoCodec)
		if info.HasAudio {
			fmt.Fprintf(out, "audio:      %s\n", info.AudioCodec)
		}
		return nil
	},
}

var effectsCmd = &cobra.Command{
	Use:   "effects",
	Short: "List available effects",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pipe, _, err := newPipeline(cmd)
		if err != nil {
			return err
		}

		reg := pipe.Registry()
		for _, kind := range reg.Kinds() {
			def, err := reg.Lookup(kind)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-12s %s\n", kind, def.Capability)
		}
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Config management commands",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var configInitForce bool

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default configuration",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.DefaultPath()
		if len(args) == 1 {
			path = args[0]
		}
		if util.FileExists(path) && !configInitForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.Default().Save(path); err != nil {
			return err
		}
		cliLog := logging.WithComponent("cli")
		cliLog.Info().Str("path", path).Msg("config written")
		return nil
	},
}

func init() {
	renderCmd.Flags().StringVarP(&renderFlags.output, "output", "o", "", "output file, .avi for MJPEG or a directory for PNG frames")
	renderCmd.Flags().StringVar(&renderFlags.format, "format", "", "force output format (ffmpeg, mjpeg, png)")
	renderCmd.Flags().StringVar(&renderFlags.start, "start", "", "range start (seconds, fraction or HH:MM:SS)")
	renderCmd.Flags().StringVar(&renderFlags.end, "end", "", "range end (default: timeline duration)")
	renderCmd.Flags().StringVar(&renderFlags.rate, "rate", "", "output frame rate (default: timeline rate)")
	renderCmd.Flags().IntVarP(&renderFlags.workers, "workers", "w", 0, "render workers (0 = all CPUs)")
	renderCmd.Flags().BoolVar(&renderFlags.failFast, "fail-fast", false, "stop at the first failed frame")
	renderCmd.Flags().BoolVar(&renderFlags.skipErrors, "skip-errors", false, "write error frames instead of aborting")
	renderCmd.Flags().BoolVar(&renderFlags.noProgress, "no-progress", false, "disable the progress bar")

	screenshotCmd.Flags().StringVar(&screenshotFlags.at, "at", "0", "instant to render")
	screenshotCmd.Flags().StringVarP(&screenshotFlags.output, "output", "o", "", "output PNG file")

	previewCmd.Flags().StringVarP(&previewFlags.output, "output", "o", "", "output directory for PNG frames")
	previewCmd.Flags().StringVar(&previewFlags.start, "start", "", "first instant")
	previewCmd.Flags().StringVar(&previewFlags.end, "end", "", "last instant, inclusive (default: last frame)")
	previewCmd.Flags().StringVar(&previewFlags.rate, "rate", "", "playback frame rate (default: timeline rate)")
	previewCmd.Flags().IntVar(&previewFlags.loops, "loops", 1, "play the range this many times")
	previewCmd.Flags().BoolVar(&previewFlags.noProgress, "no-progress", false, "disable the progress bar")

	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing file")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}

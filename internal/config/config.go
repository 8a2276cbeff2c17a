package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/kikiluvv/ved/internal/frame"
)

type contextKey string

const configKey contextKey = "config"

// Config holds all application configuration
type Config struct {
	// Render settings
	Render RenderConfig `yaml:"render"`

	// Output settings
	Output OutputConfig `yaml:"output"`

	// FFmpeg settings
	FFmpeg FFmpegConfig `yaml:"ffmpeg"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging"`
}

type RenderConfig struct {
	Workers    int           `yaml:"workers"` // 0 = GOMAXPROCS
	FailFast   bool          `yaml:"fail_fast"`
	Fit        frame.FitMode `yaml:"fit"`
	ErrorColor string        `yaml:"error_color"`
	// DecodeCache is the number of decoded source frames kept per pass.
	DecodeCache int `yaml:"decode_cache"`
	// FrameCache is the number of composited frames kept while previewing.
	// Zero disables it.
	FrameCache int `yaml:"frame_cache"`
}

type OutputConfig struct {
	Dir         string `yaml:"dir"`
	VideoCodec  string `yaml:"video_codec"`
	AudioCodec  string `yaml:"audio_codec"`
	CRF         int    `yaml:"crf"`
	Preset      string `yaml:"preset"`
	PixFmt      string `yaml:"pix_fmt"`
	SampleRate  int    `yaml:"sample_rate"`
	JPEGQuality int    `yaml:"jpeg_quality"`
	SkipErrors  bool   `yaml:"skip_errors"`
	// Filter and ExtraArgs are passed through to ffmpeg encodes.
	Filter    string   `yaml:"filter,omitempty"`
	ExtraArgs []string `yaml:"extra_args,omitempty"`
}

type FFmpegConfig struct {
	BinaryPath string `yaml:"binary_path"`
	Threads    int    `yaml:"threads"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

// Load reads configuration from file or returns defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = findConfigFile()
	}

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Render.Workers < 0 {
		return fmt.Errorf("render.workers cannot be negative")
	}
	if c.Render.DecodeCache < 0 {
		return fmt.Errorf("render.decode_cache cannot be negative")
	}
	if c.Render.FrameCache < 0 {
		return fmt.Errorf("render.frame_cache cannot be negative")
	}
	if c.Output.CRF < 0 || c.Output.CRF > 51 {
		return fmt.Errorf("output.crf must be between 0 and 51")
	}
	if c.Output.JPEGQuality < 0 || c.Output.JPEGQuality > 100 {
		return fmt.Errorf("output.jpeg_quality must be between 0 and 100")
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json")
	}
	return nil
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Render: RenderConfig{
			Workers:     0,
			Fit:         frame.Letterbox,
			ErrorColor:  "#ff00ff",
			DecodeCache: 64,
			FrameCache:  256,
		},
		Output: OutputConfig{
			Dir:         ".",
			VideoCodec:  "libx264",
			AudioCodec:  "aac",
			CRF:         23,
			Preset:      "medium",
			PixFmt:      "yuv420p",
			JPEGQuality: 90,
		},
		FFmpeg: FFmpegConfig{
			BinaryPath: "ffmpeg",
			Threads:    0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// DefaultPath is where `ved config init` writes.
func DefaultPath() string {
	return filepath.Join(os.Getenv("HOME"), ".ved", "config.yaml")
}

func findConfigFile() string {
	candidates := []string{
		"./ved.yaml",
		"./ved.yml",
		DefaultPath(),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// WithConfig stores config in context
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from context
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey).(*Config); ok {
		return cfg
	}
	return Default()
}

package pipeline

import (
	"time"

	"github.com/kikiluvv/ved/pkg/util"
)

// Output formats
const (
	FormatAuto   = ""
	FormatFFmpeg = "ffmpeg"
	FormatMJPEG  = "mjpeg"
	FormatPNG    = "png"
)

// RenderOptions configures a render pass
type RenderOptions struct {
	OutputPath string
	// Format picks the exporter. FormatAuto chooses by extension: .avi is
	// MJPEG, no extension is a PNG sequence directory, anything else goes
	// through ffmpeg.
	Format string

	// Start and End limit the rendered range; a zero End means the
	// timeline duration.
	Start util.Rational
	End   util.Rational
	// Rate overrides the timeline frame rate when positive.
	Rate util.Rational

	// OnStart is called with the number of frames about to render.
	OnStart func(total int)
	// OnFrame is called after each exported frame.
	OnFrame func(index int)
}

// RenderResult summarises a finished pass
type RenderResult struct {
	Output  string
	Format  string
	Frames  int
	Errors  int
	Elapsed time.Duration
}

// PreviewOptions configures a preview pass
type PreviewOptions struct {
	OutputDir string

	// Start and End bound playback, both inclusive. A zero End means the
	// last frame instant of the timeline.
	Start util.Rational
	End   util.Rational
	// Rate overrides the timeline frame rate when positive.
	Rate util.Rational
	// Loops repeats the range; zero means once.
	Loops int

	OnStart func(total int)
	OnFrame func(index int)
}

// PreviewResult summarises a finished preview
type PreviewResult struct {
	Output      string
	Frames      int
	Errors      int
	CacheHits   uint64
	CacheMisses uint64
	Elapsed     time.Duration
}

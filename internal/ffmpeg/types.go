package ffmpeg

import (
	"io"

	"github.com/kikiluvv/ved/pkg/util"
)

// VideoInfo contains metadata about a video file
type VideoInfo struct {
	FilePath   string
	Duration   util.Rational
	Width      int
	Height     int
	FrameRate  util.Rational
	FrameCount int64
	Bitrate    int64
	VideoCodec string
	HasAudio   bool
	AudioCodec string
}

// Progress represents ffmpeg progress data
type Progress struct {
	Frame   int
	FPS     float64
	Bitrate string
	Time    string
	Speed   string
}

// RunOptions configures ffmpeg execution
type RunOptions struct {
	Args []string
	// LogLevel is ffmpeg's -loglevel, "info" when empty.
	LogLevel        string
	Stdin           io.Reader
	ProgressHandler func(*Progress)
	LogHandler      func(line string)
}

// Default encoding settings
const (
	DefaultCRF        = 23
	DefaultPreset     = "medium"
	DefaultVideoCodec = "libx264"
	DefaultAudioCodec = "aac"
	DefaultPixFmt     = "yuv420p"
)

// AudioInput is an audio file muxed into the encoded output, delayed by
// Offset seconds from the start of the video.
type AudioInput struct {
	Path   string
	Offset util.Rational
}

// EncodeOptions configures a frame-piped encode
type EncodeOptions struct {
	Output       string
	Format       string // container, derived from Output's extension when empty
	FrameRate    util.Rational
	SampleRate   int
	Audio        []AudioInput
	VideoCodec   string
	AudioCodec   string
	CRF          int
	Preset       string
	PixFmt       string
	Width        int
	Height       int
	ProgressFunc ProgressFunc
	Filter       string // appended to the video filter chain
	CustomArgs   []string
}

// ProgressFunc is a callback for progress updates during ffmpeg operations.
// Called periodically with progress information as the operation executes.
type ProgressFunc func(*Progress)

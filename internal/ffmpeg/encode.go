package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Encoder is a running ffmpeg process consuming PNG frames on stdin.
type Encoder struct {
	stdin  *io.PipeWriter
	cancel context.CancelFunc
	done   chan struct{}
	err    error // set before done is closed
	frames int
	e      *Executor
}

var errAborted = errors.New("encode aborted")

// StartEncode launches ffmpeg reading a PNG stream from stdin and writing
// opts.Output. Frames are written with WriteFrame; Close finishes the file.
func (e *Executor) StartEncode(ctx context.Context, opts EncodeOptions) (*Encoder, error) {
	if err := validateEncodeOptions(opts); err != nil {
		return nil, fmt.Errorf("invalid encode options: %w", err)
	}

	e.logger.Info().
		Str("output", opts.Output).
		Str("rate", opts.FrameRate.String()).
		Int("audio_inputs", len(opts.Audio)).
		Msg("starting encode")

	ctx, cancel := context.WithCancel(ctx)
	pr, pw := io.Pipe()
	enc := &Encoder{
		stdin:  pw,
		cancel: cancel,
		done:   make(chan struct{}),
		e:      e,
	}

	go func() {
		defer close(enc.done)
		enc.err = e.Run(ctx, RunOptions{
			Args:            buildEncodeArgs(opts),
			LogLevel:        "error",
			Stdin:           pr,
			ProgressHandler: opts.ProgressFunc,
			LogHandler: func(line string) {
				e.logger.Debug().Str("ffmpeg", line).Msg("encode output")
			},
		})
		// unblock WriteFrame once ffmpeg is gone
		if enc.err != nil {
			pr.CloseWithError(enc.err)
		} else {
			pr.CloseWithError(io.ErrClosedPipe)
		}
	}()

	return enc, nil
}

// WriteFrame sends one encoded PNG image to ffmpeg.
func (enc *Encoder) WriteFrame(png []byte) error {
	if _, err := enc.stdin.Write(png); err != nil {
		select {
		case <-enc.done:
			if enc.err != nil {
				err = enc.err
			}
		default:
		}
		return fmt.Errorf("failed to write frame %d: %w", enc.frames, err)
	}
	enc.frames++
	return nil
}

// Close ends the input stream and waits for ffmpeg to finish.
func (enc *Encoder) Close() error {
	_ = enc.stdin.Close()
	<-enc.done
	enc.cancel()
	if enc.err != nil {
		return enc.err
	}
	enc.e.logger.Info().Int("frames", enc.frames).Msg("encode completed")
	return nil
}

// Abort kills ffmpeg without finishing the output.
func (enc *Encoder) Abort() {
	enc.cancel()
	_ = enc.stdin.CloseWithError(errAborted)
	<-enc.done
}

// validateEncodeOptions validates the encode options
func validateEncodeOptions(opts EncodeOptions) error {
	if opts.Output == "" {
		return fmt.Errorf("output path is required")
	}
	if opts.FrameRate.Sign() <= 0 {
		return fmt.Errorf("frame rate must be positive")
	}
	if opts.CRF < 0 || opts.CRF > 51 {
		return fmt.Errorf("CRF must be between 0 and 51")
	}
	if len(opts.Audio) > 0 && opts.SampleRate < 0 {
		return fmt.Errorf("sample rate cannot be negative")
	}
	for _, a := range opts.Audio {
		if a.Path == "" {
			return fmt.Errorf("audio input path is required")
		}
	}
	return nil
}

// buildEncodeArgs constructs the ffmpeg arguments for a PNG-piped encode.
// Input 0 is the frame pipe; audio inputs follow in order.
func buildEncodeArgs(opts EncodeOptions) []string {
	rate := opts.FrameRate.String()
	args := []string{"-f", "image2pipe", "-c:v", "png", "-framerate", rate, "-i", "pipe:0"}

	for _, a := range opts.Audio {
		if !a.Offset.IsZero() {
			args = append(args, "-itsoffset", formatSeconds(a.Offset.Float64()))
		}
		args = append(args, "-i", a.Path)
	}

	args = append(args, "-map", "0:v")
	switch n := len(opts.Audio); {
	case n == 1:
		args = append(args, "-map", "1:a")
	case n > 1:
		var in strings.Builder
		for i := range opts.Audio {
			fmt.Fprintf(&in, "[%d:a]", i+1)
		}
		args = append(args,
			"-filter_complex", fmt.Sprintf("%samix=inputs=%d:normalize=0[aout]", in.String(), n),
			"-map", "[aout]")
	}

	pixFmt := opts.PixFmt
	if pixFmt == "" {
		pixFmt = DefaultPixFmt
	}
	filters := NewFilterBuilder().Scale(opts.Width, opts.Height)
	if strings.HasSuffix(pixFmt, "420p") {
		filters.PadEven()
	}
	args = append(args, "-vf", filters.Custom(opts.Filter).Format(pixFmt).Build())

	videoCodec := opts.VideoCodec
	if videoCodec == "" {
		videoCodec = DefaultVideoCodec
	}
	args = append(args, "-c:v", videoCodec)

	if videoCodec == "libx264" || videoCodec == "libx265" {
		crf := opts.CRF
		if crf == 0 {
			crf = DefaultCRF
		}
		preset := opts.Preset
		if preset == "" {
			preset = DefaultPreset
		}
		args = append(args, "-crf", fmt.Sprintf("%d", crf), "-preset", preset)
	}

	if len(opts.Audio) > 0 {
		audioCodec := opts.AudioCodec
		if audioCodec == "" {
			audioCodec = DefaultAudioCodec
		}
		args = append(args, "-c:a", audioCodec)
		if opts.SampleRate > 0 {
			args = append(args, "-ar", fmt.Sprintf("%d", opts.SampleRate))
		}
	}

	args = append(args, "-r", rate)

	// ffmpeg infers the container from the extension unless told otherwise
	if opts.Format != "" {
		args = append(args, "-f", opts.Format)
	}

	args = append(args, opts.CustomArgs...)
	return append(args, opts.Output)
}

func formatSeconds(s float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.6f", s), "0"), ".")
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) WriteLine(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.WriteString(line)
	b.buf.WriteByte('\n')
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

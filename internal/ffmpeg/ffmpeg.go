package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Executor handles all ffmpeg operations with progress streaming
type Executor struct {
	logger      zerolog.Logger
	ffmpegPath  string
	ffprobePath string
	threads     int
}

// New creates a new ffmpeg executor. binaryPath may name the ffmpeg binary
// explicitly; ffprobe is looked up next to it and then in PATH.
func New(logger zerolog.Logger, binaryPath string, threads int) (*Executor, error) {
	if binaryPath == "" {
		binaryPath = "ffmpeg"
	}

	ffmpegPath, err := exec.LookPath(binaryPath)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}

	probeName := "ffprobe"
	if strings.HasSuffix(ffmpegPath, ".exe") {
		probeName += ".exe"
	}
	ffprobePath, err := exec.LookPath(filepath.Join(filepath.Dir(ffmpegPath), probeName))
	if err != nil {
		ffprobePath, err = exec.LookPath("ffprobe")
		if err != nil {
			return nil, fmt.Errorf("ffprobe not found in PATH: %w", err)
		}
	}

	return &Executor{
		logger:      logger.With().Str("component", "ffmpeg").Logger(),
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		threads:     threads,
	}, nil
}

// Path returns the resolved ffmpeg binary.
func (e *Executor) Path() string { return e.ffmpegPath }

func (e *Executor) baseArgs(loglevel string, progress bool) []string {
	// Build args with threads BEFORE other arguments
	args := []string{"-y", "-hide_banner", "-nostdin", "-loglevel", loglevel}

	if e.threads > 0 {
		args = append(args, "-threads", fmt.Sprintf("%d", e.threads))
	}
	if progress {
		args = append(args, "-progress", "pipe:2")
	}
	return args
}

// Run executes ffmpeg with the given arguments and streams progress.
// A non-zero exit is reported as an *ExitError carrying ffmpeg's log
// output, with progress lines left out.
func (e *Executor) Run(ctx context.Context, opts RunOptions) error {
	if len(opts.Args) == 0 {
		return fmt.Errorf("no arguments provided")
	}

	loglevel := opts.LogLevel
	if loglevel == "" {
		loglevel = "info"
	}
	args := append(e.baseArgs(loglevel, true), opts.Args...)

	e.logger.Debug().
		Str("cmd", "ffmpeg").
		Strs("args", args).
		Msg("executing ffmpeg")

	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)
	if opts.Stdin != nil {
		cmd.Stdin = opts.Stdin
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	var (
		wg     sync.WaitGroup
		errLog lockedBuffer
	)
	wg.Add(2)

	// Stream stderr (progress + logs)
	go func() {
		defer wg.Done()
		e.streamOutput(stderr, opts.ProgressHandler, func(line string) {
			if isProgressLine(line) {
				return
			}
			errLog.WriteLine(line)
			if opts.LogHandler != nil {
				opts.LogHandler(line)
			}
		})
	}()

	// Stream stdout
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			if opts.LogHandler != nil {
				opts.LogHandler(scanner.Text())
			}
		}
	}()

	wg.Wait()

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &ExitError{Err: err, Stderr: strings.TrimSpace(errLog.String())}
	}

	e.logger.Debug().Msg("ffmpeg execution completed")
	return nil
}

// isProgressLine reports whether line is a "-progress" key=value pair.
func isProgressLine(line string) bool {
	_, _, ok := strings.Cut(line, "=")
	return ok && !strings.Contains(line, " ")
}

// Output runs ffmpeg quietly and returns everything it wrote to stdout.
// A non-zero exit is reported together with ffmpeg's error output.
func (e *Executor) Output(ctx context.Context, args ...string) ([]byte, error) {
	full := append(e.baseArgs("error", false), args...)

	e.logger.Debug().
		Str("cmd", "ffmpeg").
		Strs("args", full).
		Msg("executing ffmpeg")

	cmd := exec.CommandContext(ctx, e.ffmpegPath, full...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &ExitError{Err: err, Stderr: strings.TrimSpace(stderr.String())}
	}
	return stdout.Bytes(), nil
}

// ExitError is a failed ffmpeg invocation with its captured error output.
type ExitError struct {
	Err    error
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("ffmpeg execution failed: %v", e.Err)
	}
	return fmt.Sprintf("ffmpeg execution failed: %v: %s", e.Err, e.Stderr)
}

func (e *ExitError) Unwrap() error { return e.Err }

// streamOutput parses ffmpeg output and calls handlers
func (e *Executor) streamOutput(r io.Reader, progressHandler func(*Progress), logHandler func(string)) {
	scanner := bufio.NewScanner(r)
	progressData := &Progress{}

	for scanner.Scan() {
		line := scanner.Text()

		if logHandler != nil {
			logHandler(line)
		}

		if parseProgressLine(line, progressData) {
			// End of progress block
			if progressHandler != nil && progressData.Frame > 0 {
				progressHandler(progressData)
			}
			progressData = &Progress{}
		}
	}
}

// parseProgressLine folds one "-progress" key=value line into p and
// reports whether it closed a progress block.
func parseProgressLine(line string, p *Progress) bool {
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return false
	}
	value = strings.TrimSpace(value)

	switch key {
	case "frame":
		fmt.Sscanf(value, "%d", &p.Frame)
	case "fps":
		fmt.Sscanf(value, "%f", &p.FPS)
	case "bitrate":
		p.Bitrate = value
	case "out_time":
		p.Time = value
	case "speed":
		p.Speed = value
	case "progress":
		return true
	}
	return false
}

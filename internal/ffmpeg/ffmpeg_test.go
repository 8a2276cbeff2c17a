package ffmpeg

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kikiluvv/ved/pkg/util"
)

// skipIfNoFFmpeg skips the test if ffmpeg is not available
func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH - install with: brew install ffmpeg")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not found in PATH - install with: brew install ffmpeg")
	}
}

// makeTestVideo renders a short lavfi test pattern into dir.
func makeTestVideo(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "testsrc.mp4")
	cmd := exec.Command("ffmpeg", "-y", "-f", "lavfi", "-i", "testsrc=duration=1:size=64x48:rate=10",
		"-pix_fmt", "yuv420p", path)
	if err := cmd.Run(); err != nil {
		t.Skipf("could not generate test video: %v", err)
	}
	return path
}

// scriptExecutor returns an executor whose "ffmpeg" is a shell script,
// so stdin piping and stderr handling run without a real ffmpeg.
func scriptExecutor(t *testing.T, body string) *Executor {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts need a POSIX shell")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not found in PATH")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755))
	return &Executor{logger: zerolog.Nop(), ffmpegPath: path}
}

func TestEncodePipesFramesThroughRun(t *testing.T) {
	// report the number of stdin bytes as the progress frame count
	e := scriptExecutor(t, `n=$(wc -c | tr -d ' ')
echo "frame=$n" >&2
echo "progress=end" >&2`)

	var last Progress
	enc, err := e.StartEncode(context.Background(), EncodeOptions{
		Output:       "out.mp4",
		FrameRate:    util.Int(10),
		ProgressFunc: func(p *Progress) { last = *p },
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, enc.WriteFrame([]byte("abcd")))
	}
	require.NoError(t, enc.Close())
	assert.Equal(t, 12, last.Frame)
}

func TestEncodeReportsFFmpegErrors(t *testing.T) {
	e := scriptExecutor(t, `echo "frame=1" >&2
echo "progress=continue" >&2
echo "Unknown encoder 'nope'" >&2
exit 1`)

	enc, err := e.StartEncode(context.Background(), EncodeOptions{Output: "out.mp4", FrameRate: util.Int(10)})
	require.NoError(t, err)

	err = enc.Close()
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, "Unknown encoder 'nope'", exitErr.Stderr)
}

func TestEncodeAbortStopsFFmpeg(t *testing.T) {
	e := scriptExecutor(t, "exec sleep 30")

	enc, err := e.StartEncode(context.Background(), EncodeOptions{Output: "out.mp4", FrameRate: util.Int(10)})
	require.NoError(t, err)

	started := time.Now()
	enc.Abort()
	assert.Less(t, time.Since(started), 10*time.Second)

	assert.Error(t, enc.WriteFrame([]byte("late")))
}

func TestRunRequiresArgs(t *testing.T) {
	e := &Executor{logger: zerolog.Nop(), ffmpegPath: "ffmpeg"}
	assert.Error(t, e.Run(context.Background(), RunOptions{}))
}

func TestFilterBuilder(t *testing.T) {
	fb := NewFilterBuilder()
	filter := fb.Scale(1920, 1080).Format("yuv420p").Build()

	expected := "scale=1920:1080,format=yuv420p"
	if filter != expected {
		t.Errorf("expected %q, got %q", expected, filter)
	}
}

func TestFilterBuilderEmpty(t *testing.T) {
	fb := NewFilterBuilder()
	filter := fb.Scale(0, 10).Custom("").Format("").Build()

	if filter != "" {
		t.Errorf("expected empty string, got %q", filter)
	}
}

func TestFilterBuilderPadEven(t *testing.T) {
	filter := NewFilterBuilder().Custom("fps=25").PadEven().Build()
	assert.Equal(t, `fps=25,pad=ceil(iw/2)*2:ceil(ih/2)*2`, filter)
}

func TestBuildEncodeArgsVideoOnly(t *testing.T) {
	args := buildEncodeArgs(EncodeOptions{
		Output:    "out.mp4",
		FrameRate: util.Int(30),
	})

	assert.Equal(t, []string{
		"-f", "image2pipe", "-c:v", "png", "-framerate", "30", "-i", "pipe:0",
		"-map", "0:v",
		"-vf", "pad=ceil(iw/2)*2:ceil(ih/2)*2,format=yuv420p",
		"-c:v", "libx264", "-crf", "23", "-preset", "medium",
		"-r", "30",
		"out.mp4",
	}, args)
}

func TestBuildEncodeArgsFilterAndCustomArgs(t *testing.T) {
	args := buildEncodeArgs(EncodeOptions{
		Output:     "out.webm",
		FrameRate:  util.Int(24),
		VideoCodec: "libvpx-vp9",
		PixFmt:     "yuva420p",
		Width:      640,
		Height:     360,
		Filter:     "unsharp",
		CustomArgs: []string{"-b:v", "0"},
	})

	assert.Equal(t, []string{
		"-f", "image2pipe", "-c:v", "png", "-framerate", "24", "-i", "pipe:0",
		"-map", "0:v",
		"-vf", "scale=640:360,pad=ceil(iw/2)*2:ceil(ih/2)*2,unsharp,format=yuva420p",
		"-c:v", "libvpx-vp9",
		"-r", "24",
		"-b:v", "0",
		"out.webm",
	}, args)
}

func TestBuildEncodeArgsWithAudio(t *testing.T) {
	args := buildEncodeArgs(EncodeOptions{
		Output:     "out.mkv",
		FrameRate:  util.NewRational(30000, 1001),
		SampleRate: 48000,
		Audio: []AudioInput{
			{Path: "music.wav"},
			{Path: "voice.wav", Offset: util.NewRational(3, 2)},
		},
		VideoCodec: "ffv1",
		PixFmt:     "rgb24",
		Format:     "matroska",
	})

	assert.Equal(t, []string{
		"-f", "image2pipe", "-c:v", "png", "-framerate", "30000/1001", "-i", "pipe:0",
		"-i", "music.wav",
		"-itsoffset", "1.5", "-i", "voice.wav",
		"-map", "0:v",
		"-filter_complex", "[1:a][2:a]amix=inputs=2:normalize=0[aout]", "-map", "[aout]",
		"-vf", "format=rgb24",
		"-c:v", "ffv1",
		"-c:a", "aac", "-ar", "48000",
		"-r", "30000/1001",
		"-f", "matroska",
		"out.mkv",
	}, args)
}

func TestValidateEncodeOptions(t *testing.T) {
	tests := []struct {
		name string
		opts EncodeOptions
	}{
		{"missing output", EncodeOptions{FrameRate: util.Int(24)}},
		{"zero rate", EncodeOptions{Output: "a.mp4"}},
		{"bad crf", EncodeOptions{Output: "a.mp4", FrameRate: util.Int(24), CRF: 60}},
		{"empty audio path", EncodeOptions{Output: "a.mp4", FrameRate: util.Int(24), Audio: []AudioInput{{}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, validateEncodeOptions(tt.opts))
		})
	}
	assert.NoError(t, validateEncodeOptions(EncodeOptions{Output: "a.mp4", FrameRate: util.Int(24)}))
}

func TestSeekArgsLandsBeforeFrame(t *testing.T) {
	assert.Nil(t, seekArgs(FrameRequest{Index: 0, FrameRate: util.Int(30)}))
	// frame 3 at 30fps starts at 0.1s; seek half a frame earlier
	assert.Equal(t, []string{"-ss", "00:00:00.083"}, seekArgs(FrameRequest{Index: 3, FrameRate: util.Int(30)}))
}

func TestParseProgressLine(t *testing.T) {
	p := &Progress{}
	assert.False(t, parseProgressLine("frame=42", p))
	assert.False(t, parseProgressLine("fps=29.97", p))
	assert.False(t, parseProgressLine("out_time=00:00:01.400000", p))
	assert.False(t, parseProgressLine("speed=2.1x", p))
	assert.False(t, parseProgressLine("garbage line", p))
	assert.True(t, parseProgressLine("progress=continue", p))

	assert.Equal(t, 42, p.Frame)
	assert.InDelta(t, 29.97, p.FPS, 1e-9)
	assert.Equal(t, "00:00:01.400000", p.Time)
	assert.Equal(t, "2.1x", p.Speed)
}

func TestParseProbeOutput(t *testing.T) {
	out := []byte(`{
		"format": {"duration": "5.000000", "bit_rate": "12345"},
		"streams": [
			{"codec_type": "audio", "codec_name": "aac"},
			{"codec_type": "video", "codec_name": "h264", "width": 320, "height": 240,
			 "r_frame_rate": "60/1", "avg_frame_rate": "30/1", "nb_frames": ""}
		]
	}`)

	info, err := parseProbeOutput(out)
	require.NoError(t, err)
	assert.Equal(t, 320, info.Width)
	assert.Equal(t, 240, info.Height)
	assert.Equal(t, util.Int(30), info.FrameRate)
	assert.Equal(t, util.Int(5), info.Duration)
	assert.Equal(t, int64(150), info.FrameCount)
	assert.True(t, info.HasAudio)
	assert.Equal(t, int64(12345), info.Bitrate)
}

func TestParseProbeOutputNoVideo(t *testing.T) {
	_, err := parseProbeOutput([]byte(`{"format": {}, "streams": [{"codec_type": "audio"}]}`))
	assert.Error(t, err)
}

func TestExecutorCreation(t *testing.T) {
	skipIfNoFFmpeg(t)

	logger := zerolog.New(os.Stderr)
	exec, err := New(logger, "", 4)
	if err != nil {
		t.Fatalf("failed to create executor: %v", err)
	}
	if exec.ffmpegPath == "" {
		t.Error("ffmpeg path is empty")
	}
	if exec.ffprobePath == "" {
		t.Error("ffprobe path is empty")
	}

	t.Logf("ffmpeg: %s", exec.ffmpegPath)
	t.Logf("ffprobe: %s", exec.ffprobePath)
}

func TestProbeAndExtractFrame(t *testing.T) {
	skipIfNoFFmpeg(t)

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	exec, err := New(logger, "", 2)
	require.NoError(t, err)

	ctx := context.Background()
	path := makeTestVideo(t, t.TempDir())

	info, err := exec.ProbeVideo(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 64, info.Width)
	assert.Equal(t, 48, info.Height)
	assert.Equal(t, util.Int(10), info.FrameRate)

	req := FrameRequest{Input: path, Index: 4, FrameRate: info.FrameRate, Width: info.Width, Height: info.Height}
	first, err := exec.ExtractFrame(ctx, req)
	require.NoError(t, err)
	assert.Len(t, first, 64*48*4)

	second, err := exec.ExtractFrame(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first, second, "repeated extraction must be identical")
}

func TestProbeVideoInvalidFile(t *testing.T) {
	skipIfNoFFmpeg(t)

	logger := zerolog.New(os.Stderr)
	exec, err := New(logger, "", 2)
	require.NoError(t, err)

	ctx := context.Background()

	_, err = exec.ProbeVideo(ctx, "nonexistent.mp4")
	assert.Error(t, err, "ProbeVideo should fail for non-existent file")

	invalidPath := filepath.Join(t.TempDir(), "invalid.txt")
	require.NoError(t, os.WriteFile(invalidPath, []byte("not a video"), 0644))

	_, err = exec.ProbeVideo(ctx, invalidPath)
	assert.Error(t, err, "ProbeVideo should fail for invalid video file")
}

func TestEncodeRoundTrip(t *testing.T) {
	skipIfNoFFmpeg(t)

	logger := zerolog.New(os.Stderr)
	exec, err := New(logger, "", 2)
	require.NoError(t, err)

	ctx := context.Background()
	out := filepath.Join(t.TempDir(), "out.mp4")

	enc, err := exec.StartEncode(ctx, EncodeOptions{Output: out, FrameRate: util.Int(5)})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		img := image.NewNRGBA(image.Rect(0, 0, 32, 32))
		for p := 0; p < len(img.Pix); p += 4 {
			img.Pix[p], img.Pix[p+3] = uint8(i*50), 255
		}
		img.SetNRGBA(0, 0, color.NRGBA{0, 255, 0, 255})
		var buf bytes.Buffer
		require.NoError(t, png.Encode(&buf, img))
		require.NoError(t, enc.WriteFrame(buf.Bytes()))
	}
	require.NoError(t, enc.Close())

	info, err := exec.ProbeVideo(ctx, out)
	require.NoError(t, err)
	assert.Equal(t, 32, info.Width)
	assert.Equal(t, int64(5), info.FrameCount)
}

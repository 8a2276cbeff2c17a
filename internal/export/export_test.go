package export

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"image/png"
	"iter"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kikiluvv/ved/internal/errs"
	"github.com/kikiluvv/ved/internal/ffmpeg"
	"github.com/kikiluvv/ved/internal/frame"
	"github.com/kikiluvv/ved/internal/render"
	"github.com/kikiluvv/ved/pkg/util"
)

func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH - install with: brew install ffmpeg")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not found in PATH - install with: brew install ffmpeg")
	}
}

// results yields n solid frames, failing the indices in bad.
func results(n int, bad ...int) iter.Seq2[int, render.Result] {
	failed := make(map[int]bool)
	for _, i := range bad {
		failed[i] = true
	}
	return func(yield func(int, render.Result) bool) {
		for i := 0; i < n; i++ {
			res := render.Result{
				Index: i,
				Time:  util.NewRational(int64(i), 30),
				Frame: frame.Solid(16, 8, color.NRGBA{uint8(i * 10), 50, 100, 255}),
			}
			if failed[i] {
				res.Frame = frame.Solid(16, 8, render.DefaultErrorColor)
				res.Err = &errs.FrameError{Index: i, Err: errors.New("boom")}
			}
			if !yield(i, res) {
				return
			}
		}
	}
}

func TestPNGSequence(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "frames")
	var seen []int
	x := NewPNGSequenceExporter(dir, "", Options{Logger: zerolog.Nop(), OnFrame: func(i int) { seen = append(seen, i) }})

	require.NoError(t, x.Export(context.Background(), results(3), util.Int(30)))
	assert.Equal(t, []int{0, 1, 2}, seen)

	f, err := os.Open(filepath.Join(dir, "frame_000002.png"))
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	got := frame.FromImage(img, frame.RGBA8)
	assert.Equal(t, color.NRGBA{20, 50, 100, 255}, got.Pixel(3, 3))
}

func TestFailedFrameAbortsExport(t *testing.T) {
	dir := t.TempDir()
	x := NewPNGSequenceExporter(dir, "f%d.png", Options{Logger: zerolog.Nop()})

	err := x.Export(context.Background(), results(5, 2), util.Int(30))
	var fe *errs.FrameError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 2, fe.Index)

	_, statErr := os.Stat(filepath.Join(dir, "f1.png"))
	assert.NoError(t, statErr)
	_, statErr = os.Stat(filepath.Join(dir, "f3.png"))
	assert.True(t, os.IsNotExist(statErr), "nothing is written after the failure")
}

func TestSkipErrorsWritesErrorFrame(t *testing.T) {
	dir := t.TempDir()
	x := NewPNGSequenceExporter(dir, "f%d.png", Options{SkipErrors: true, Logger: zerolog.Nop()})
	require.NoError(t, x.Export(context.Background(), results(4, 1), util.Int(30)))

	f, err := os.Open(filepath.Join(dir, "f1.png"))
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, render.DefaultErrorColor, frame.FromImage(img, frame.RGBA8).Pixel(0, 0))
}

func TestWriteFailureIsEncodeError(t *testing.T) {
	// the pattern points into a subdirectory that is never created
	x := NewPNGSequenceExporter(t.TempDir(), filepath.Join("not-a-dir-sub", "%d.png"), Options{Logger: zerolog.Nop()})
	err := x.Export(context.Background(), results(1), util.Int(30))
	assert.ErrorIs(t, err, errs.ErrEncode)
}

func TestMJPEG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.avi")
	x := NewMJPEGExporter(path, 0, Options{Logger: zerolog.Nop()})
	require.NoError(t, x.Export(context.Background(), results(5), util.NewRational(30000, 1001)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("RIFF")))
	assert.Contains(t, string(data[:16]), "AVI ")
}

func TestMJPEGNoFrames(t *testing.T) {
	x := NewMJPEGExporter(filepath.Join(t.TempDir(), "out.avi"), 80, Options{Logger: zerolog.Nop()})
	err := x.Export(context.Background(), results(0), util.Int(30))
	assert.ErrorIs(t, err, errs.ErrEncode)
}

func TestFFmpegExport(t *testing.T) {
	skipIfNoFFmpeg(t)

	ex, err := ffmpeg.New(zerolog.Nop(), "", 0)
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "out.mp4")
	x := NewFFmpegExporter(ex, ffmpeg.EncodeOptions{Output: out, CRF: ffmpeg.DefaultCRF, Preset: "ultrafast"}, Options{Logger: zerolog.Nop()})
	require.NoError(t, x.Export(context.Background(), results(10), util.Int(10)))

	info, err := ex.ProbeVideo(context.Background(), out)
	require.NoError(t, err)
	assert.Equal(t, 16, info.Width)
	assert.Equal(t, 8, info.Height)
}

func TestFFmpegExportAbortsOnFrameError(t *testing.T) {
	skipIfNoFFmpeg(t)

	ex, err := ffmpeg.New(zerolog.Nop(), "", 0)
	require.NoError(t, err)

	x := NewFFmpegExporter(ex, ffmpeg.EncodeOptions{Output: filepath.Join(t.TempDir(), "out.mp4")}, Options{Logger: zerolog.Nop()})
	err = x.Export(context.Background(), results(10, 3), util.Int(10))
	var fe *errs.FrameError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 3, fe.Index)
}

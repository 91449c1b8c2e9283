package batch

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/leafmask/internal/config"
	"github.com/ironsheep/leafmask/internal/consolidation"
	"github.com/ironsheep/leafmask/internal/imaging"
	"github.com/ironsheep/leafmask/internal/pipeline"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

// scene draws a 64x64 soil gradient, optionally with a 20x20 green square.
func scene(withPlant bool) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			v := uint8(100 + x/2)
			c := color.NRGBA{v, v, v, 255}
			if withPlant && x >= 20 && x < 40 && y >= 30 && y < 50 {
				c = color.NRGBA{20, 200, 30, 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func testPipeline(t *testing.T) *pipeline.Pipeline {
	t.Helper()
	doc := &config.Document{
		Version: config.CurrentVersion,
		Tools: []config.ToolConfig{
			{ID: "green", Kind: "channel_threshold", Params: map[string]any{"channel": "lab_a", "max": 110}},
			{ID: "clean", Kind: "consolidate", Params: map[string]any{"tolerance_distance": 10}},
			{ID: "shape", Kind: "shape_features"},
		},
	}
	p, err := config.Build(doc, pipeline.WithLogger(quietLogger()))
	require.NoError(t, err)
	return p
}

// fixtures writes a plant, a plantless, a blank and a corrupt image.
func fixtures(t *testing.T) []string {
	t.Helper()
	dir := t.TempDir()
	paths := []string{
		filepath.Join(dir, "a_plant.png"),
		filepath.Join(dir, "b_soil.png"),
		filepath.Join(dir, "c_blank.png"),
		filepath.Join(dir, "d_corrupt.png"),
	}
	writePNG(t, paths[0], scene(true))
	writePNG(t, paths[1], scene(false))
	writePNG(t, paths[2], image.NewGray(image.Rect(0, 0, 32, 32)))
	require.NoError(t, os.WriteFile(paths[3], []byte("not a png"), 0o600))
	return paths
}

func TestNewOptions(t *testing.T) {
	p := testPipeline(t)

	r := New(p)
	assert.GreaterOrEqual(t, r.concurrency, 1)
	assert.LessOrEqual(t, r.concurrency, MaxConcurrency)

	assert.Equal(t, MaxConcurrency, New(p, WithConcurrency(1000)).concurrency)
	assert.Equal(t, 3, New(p, WithConcurrency(3)).concurrency)
	assert.Equal(t, r.concurrency, New(p, WithConcurrency(0)).concurrency)
	assert.NotNil(t, New(p, WithLogger(nil)).logger)
}

func TestRun(t *testing.T) {
	paths := fixtures(t)
	var seen atomic.Int32

	r := New(testPipeline(t), WithLogger(quietLogger()), WithConcurrency(2),
		WithProgress(func(Outcome) { seen.Add(1) }))
	s, err := r.Run(context.Background(), paths)
	require.NoError(t, err)

	assert.Equal(t, int32(4), seen.Load())
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 1, s.Succeeded)
	assert.Equal(t, 3, s.Failed)
	assert.Equal(t, 0, s.Skipped)
	assert.Equal(t, map[pipeline.ErrorKind]int{
		pipeline.KindSourceIssue: 2,
		pipeline.KindToolFailure: 1,
	}, s.ErrorCounts)

	require.Len(t, s.Outcomes, 4)
	for i, o := range s.Outcomes {
		assert.Equal(t, i, o.Index)
		assert.Equal(t, paths[i], o.Path)
	}

	plant := s.Outcomes[0]
	require.True(t, plant.Success(), plant.Report.Message)
	assert.Equal(t, 400.0, plant.Report.Features["area"])

	soil := s.Outcomes[1].Report
	require.Len(t, soil.Errors, 1)
	assert.Equal(t, pipeline.StageMaskCleanup, soil.Errors[0].Stage)
	assert.True(t, errors.Is(soil.Errors[0], consolidation.ErrNoObject))

	assert.True(t, errors.Is(s.Outcomes[2].Report.Errors[0], imaging.ErrUniform))
	assert.True(t, errors.Is(s.Outcomes[3].Report.Errors[0], imaging.ErrUndecodable))
}

func TestRunRereadsChangedImages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plant.png")
	writePNG(t, path, scene(true))
	r := New(testPipeline(t), WithLogger(quietLogger()))

	s, err := r.Run(context.Background(), []string{path})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Succeeded)

	writePNG(t, path, scene(false))
	s, err = r.Run(context.Background(), []string{path})
	require.NoError(t, err)
	assert.Equal(t, 0, s.Succeeded)
	assert.True(t, errors.Is(s.Outcomes[0].Report.Errors[0], consolidation.ErrNoObject))
}

func TestRunCancelled(t *testing.T) {
	paths := fixtures(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s, err := New(testPipeline(t), WithLogger(quietLogger())).Run(ctx, paths)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, len(paths), s.Skipped)
	assert.Empty(t, s.Outcomes)
}

func TestRunLeavesBasePipelineUntouched(t *testing.T) {
	p := testPipeline(t)
	_, err := New(p, WithLogger(quietLogger())).Run(context.Background(), fixtures(t)[:1])
	require.NoError(t, err)
	for _, info := range p.Tools() {
		assert.False(t, info.Cached, info.ID)
	}
}

func TestCollectImages(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "tray1")
	require.NoError(t, os.Mkdir(sub, 0o750))
	for _, name := range []string{"b.png", "a.JPG", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(sub, name), nil, 0o600))
	}
	single := filepath.Join(dir, "single.dat")
	require.NoError(t, os.WriteFile(single, nil, 0o600))

	got, err := CollectImages([]string{sub, single})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(sub, "a.JPG"),
		filepath.Join(sub, "b.png"),
		single,
	}, got)

	_, err = CollectImages([]string{filepath.Join(dir, "missing")})
	assert.Error(t, err)
}

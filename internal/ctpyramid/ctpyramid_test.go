package ctpyramid

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jikhanjung/ctpyramid/internal/imageio"
	"github.com/jikhanjung/ctpyramid/internal/volume"
)

func writeSolidTIFF(t *testing.T, codec *imageio.Codec, path string, w, h int, v uint8) {
	t.Helper()
	pix := make([]uint8, w*h)
	for i := range pix {
		pix[i] = v
	}
	require.NoError(t, codec.SaveTIFF(path, imageio.Image{Width: w, Height: h, Depth: 8, Pix8: pix}))
}

func TestBuildPyramid_EndToEnd(t *testing.T) {
	srcDir := t.TempDir()
	outDir := t.TempDir()
	codec := imageio.New()

	for i := 0; i < 8; i++ {
		writeSolidTIFF(t, codec, filepath.Join(srcDir, fmt.Sprintf("ct_%04d.tif", i)), 512, 512, uint8(i*20))
	}

	var progressValues []float64
	cb := Callbacks{
		OnProgress: func(pct float64) bool {
			progressValues = append(progressValues, pct)
			return true
		},
	}

	result, err := BuildPyramid(context.Background(), srcDir, outDir, Options{Concurrency: 4}, cb)
	require.NoError(t, err)
	assert.False(t, result.Cancelled)
	require.GreaterOrEqual(t, len(result.Levels), 2)
	assert.Equal(t, 8, result.Levels[0].SliceCount)

	for _, lvl := range result.Levels[1:] {
		entries, err := os.ReadDir(lvl.Dir)
		require.NoError(t, err)
		assert.Equal(t, lvl.SliceCount, len(entries))
	}

	require.NotEmpty(t, progressValues)
	assert.InDelta(t, 100.0, progressValues[len(progressValues)-1], 0.01)
}

func TestBuildPyramid_NoSequenceErrors(t *testing.T) {
	srcDir := t.TempDir()
	outDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "readme.txt"), []byte("hi"), 0o644))

	_, err := BuildPyramid(context.Background(), srcDir, outDir, Options{}, Callbacks{})
	require.Error(t, err)
	e, ok := err.(*Error)
	require.True(t, ok, "expected a *ctpyramid.Error")
	assert.Equal(t, ErrNoSequence, e.Kind)
}

func TestBuildPyramid_RetainsSmallestVolumeForCropping(t *testing.T) {
	srcDir := t.TempDir()
	outDir := t.TempDir()
	codec := imageio.New()

	for i := 0; i < 4; i++ {
		writeSolidTIFF(t, codec, filepath.Join(srcDir, fmt.Sprintf("slice%03d.tif", i)), 512, 512, uint8(i*40))
	}

	result, err := BuildPyramid(context.Background(), srcDir, outDir, Options{RetainSmallestVolume: true}, Callbacks{})
	require.NoError(t, err)
	require.NotNil(t, result.Volume)

	smallestIdx := len(result.Levels) - 1
	cropped, err := CropVolume(result.Levels, volume.ROI{
		X0: 0, Y0: 0, X1: 512, Y1: 512, Z0: 0, Z1: 4,
	}, smallestIdx, result.Volume, codec)
	require.NoError(t, err)
	assert.NotEmpty(t, cropped)
}

func TestBuildPyramid_CancelViaOnProgress(t *testing.T) {
	srcDir := t.TempDir()
	outDir := t.TempDir()
	codec := imageio.New()
	for i := 0; i < 8; i++ {
		writeSolidTIFF(t, codec, filepath.Join(srcDir, fmt.Sprintf("slice%03d.tif", i)), 512, 512, uint8(i))
	}

	cb := Callbacks{OnProgress: func(pct float64) bool { return false }}
	result, err := BuildPyramid(context.Background(), srcDir, outDir, Options{}, cb)
	require.NoError(t, err)
	assert.True(t, result.Cancelled)
}

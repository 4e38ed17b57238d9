// Package ctpyramid is the public entry point for building and querying
// level-of-detail pyramids from a directory of CT slice images. It wires
// together sequence discovery, image I/O, level-by-level downsampling,
// progress reporting, and volume cropping behind a small, host-agnostic
// surface — the Go analogue of the teacher's top-level Generate/Config
// pairing in cmd/geotiff2pmtiles, generalized from one-shot CLI use into
// an importable library.
package ctpyramid

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/jikhanjung/ctpyramid/internal/ctperr"
	"github.com/jikhanjung/ctpyramid/internal/imageio"
	"github.com/jikhanjung/ctpyramid/internal/progress"
	"github.com/jikhanjung/ctpyramid/internal/pyramid"
	"github.com/jikhanjung/ctpyramid/internal/sequence"
	"github.com/jikhanjung/ctpyramid/internal/validate"
	"github.com/jikhanjung/ctpyramid/internal/volume"
)

// Error is re-exported so callers can use errors.As(err, *ctpyramid.Error)
// without importing the internal error package directly.
type Error = ctperr.Error

// ErrorKind classifies an Error; re-exported for the same reason.
type ErrorKind = ctperr.Kind

const (
	ErrIO         = ctperr.KindIO
	ErrDecode     = ctperr.KindDecode
	ErrDimension  = ctperr.KindDim
	ErrNoSequence = ctperr.KindNoSequence
	ErrSecurity   = ctperr.KindSecurity
	ErrWorker     = ctperr.KindWorker
)

// Options configures a pyramid build.
type Options struct {
	// Concurrency bounds how many downsampling tasks run at once. <= 0
	// selects the default worker_count: min(logical cores, 8) (spec.md
	// §5/§6). An explicit positive value is honored as given, uncapped.
	Concurrency int
	// RetainSmallestVolume keeps the smallest level's pixels resident in
	// memory after the build, enabling CropVolume without a re-read.
	RetainSmallestVolume bool
	// SampleSize governs the three-stage ETA sampler window; clamped to
	// [1,100]. 0 selects a sensible default.
	SampleSize int
	// SeedSpeedTasksPerSecond, when > 0, seeds the ETA sampler directly
	// into its stable stage using a previously measured throughput.
	SeedSpeedTasksPerSecond float64
	// MaxThumbnailSize is the lateral pixel size (shorter side) at which
	// pyramid generation stops (spec.md §4.6/§6). <= 0 selects
	// pyramid.DefaultMaxThumbnailSize (512).
	MaxThumbnailSize int
}

func (o Options) withDefaults() Options {
	if o.SampleSize <= 0 {
		o.SampleSize = 20
	}
	if o.Concurrency <= 0 {
		o.Concurrency = defaultConcurrency()
	}
	if o.MaxThumbnailSize <= 0 {
		o.MaxThumbnailSize = pyramid.DefaultMaxThumbnailSize
	}
	return o
}

// defaultConcurrency implements spec.md's worker_count default: the
// number of logical cores, capped at 8.
func defaultConcurrency() int {
	if n := runtime.NumCPU(); n < 8 {
		return n
	}
	return 8
}

// Callbacks are the host hooks invoked during a build.
type Callbacks = progress.Callbacks

// PyramidResult summarizes a completed (or cancelled) build.
type PyramidResult struct {
	Levels    []pyramid.Level
	Cancelled bool
	Volume    *imageio.Volume // non-nil only when Options.RetainSmallestVolume was set and the build completed
}

// ScanResult summarizes a source-directory scan.
type ScanResult struct {
	Meta     sequence.Meta
	Warnings []string
}

// ScanDirectory discovers and validates the level-0 slice sequence in
// sourceDir without generating any pyramid levels.
func ScanDirectory(sourceDir string) (ScanResult, error) {
	codec := imageio.New()
	meta, warnings, err := sequence.Scan(sourceDir, codec)
	if err != nil {
		return ScanResult{}, err
	}
	return ScanResult{Meta: meta, Warnings: warnings}, nil
}

// BuildPyramid scans sourceDir, then generates every pyramid level under
// outputDir/level_<N>/, reporting progress through cb. It returns as soon
// as the build completes, fails, or is cancelled via ctx or cb.
func BuildPyramid(ctx context.Context, sourceDir, outputDir string, opts Options, cb Callbacks) (PyramidResult, error) {
	opts = opts.withDefaults()
	codec := imageio.New()

	meta, warnings, err := sequence.Scan(sourceDir, codec)
	if err != nil {
		return PyramidResult{}, err
	}
	if cb.OnLog != nil {
		for _, w := range warnings {
			cb.OnLog("warn", w)
		}
	}
	if meta.Count() == 0 {
		return PyramidResult{}, ctperr.Wrap(ctperr.KindNoSequence, sourceDir, "no usable image sequence found", nil)
	}

	width0, height0, _, _, err := codec.Probe(meta.PathAt(0))
	if err != nil {
		return PyramidResult{}, err
	}

	counts := pyramid.LevelCounts(meta.Count(), width0, height0, opts.MaxThumbnailSize)

	if opts.RetainSmallestVolume {
		smallestW, smallestH := width0, height0
		for i := 1; i < len(counts); i++ {
			smallestW, smallestH = smallestW/2, smallestH/2
		}
		pyramid.WarnOnMemoryPressure(counts[len(counts)-1], smallestW, smallestH, 16, 0.5)
	}

	outDirFor := func(levelIndex int) string {
		if levelIndex == 0 {
			return sourceDir
		}
		return filepath.Join(outputDir, fmt.Sprintf("level_%02d", levelIndex))
	}

	for l := 1; l < len(counts); l++ {
		if err := validate.EnsureDir(outDirFor(l)); err != nil {
			return PyramidResult{}, err
		}
	}

	result, err := pyramid.BuildLevels(ctx, meta, outDirFor, width0, height0, codec, pyramid.BuildOptions{
		Concurrency:      opts.Concurrency,
		RetainVolume:     opts.RetainSmallestVolume,
		SampleSize:       opts.SampleSize,
		SeedSpeed:        opts.SeedSpeedTasksPerSecond,
		MaxThumbnailSize: opts.MaxThumbnailSize,
	}, cb)
	if err != nil {
		return PyramidResult{}, err
	}

	return PyramidResult{Levels: result.Levels, Cancelled: result.Cancelled, Volume: result.SmallestLevel}, nil
}

// CropVolume maps roi (expressed in level-0 pixel/slice coordinates) down
// to levelIndex and extracts the cropped slices for that level, reading
// from disk unless vol is supplied (the retained smallest-level volume
// from a prior BuildPyramid call, which must correspond to levelIndex).
func CropVolume(levels []pyramid.Level, roi volume.ROI, levelIndex int, vol *imageio.Volume, codec *imageio.Codec) ([]imageio.Image, error) {
	if levelIndex < 0 || levelIndex >= len(levels) {
		return nil, ctperr.Wrap(ctperr.KindDim, "", "level index out of range", nil)
	}
	level0 := levels[0]
	target := levels[levelIndex]

	if err := volume.Validate(roi, level0.Width, level0.Height, level0.SliceCount); err != nil {
		return nil, err
	}
	mapped := volume.MapToLevel(roi, level0.Width, level0.Height, level0.SliceCount, target.Width, target.Height, target.SliceCount)

	if vol != nil {
		return volume.Crop(vol, mapped)
	}

	loaded := &imageio.Volume{Width: target.Width, Height: target.Height, Slices: make([]*imageio.Image, mapped.Z1)}
	for z := mapped.Z0; z < mapped.Z1; z++ {
		path := filepath.Join(target.Dir, fmt.Sprintf("%06d.tif", z))
		img, _, err := codec.Load(path)
		if err != nil {
			return nil, err
		}
		loaded.Slices[z] = &img
	}
	return volume.Crop(loaded, mapped)
}

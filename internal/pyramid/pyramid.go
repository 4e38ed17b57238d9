// Package pyramid drives the level-by-level build: it enumerates the
// downsampling tasks for each level, dispatches them across a bounded
// worker pool, and reassembles the per-level results the way the
// teacher's internal/tile.Generate walks zoom levels from the finest to
// the coarsest, swapping an image store between passes.
package pyramid

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/jikhanjung/ctpyramid/internal/ctperr"
	"github.com/jikhanjung/ctpyramid/internal/downsample"
	"github.com/jikhanjung/ctpyramid/internal/imageio"
	"github.com/jikhanjung/ctpyramid/internal/progress"
	"github.com/jikhanjung/ctpyramid/internal/sequence"
)

// DefaultMaxThumbnailSize is the lateral size (pixels) the builder stops
// at when the caller doesn't pick one explicitly (spec.md §4.6/§6).
const DefaultMaxThumbnailSize = 512

// LevelCounts computes the slice count of every level starting from the
// level-0 (source) count, down to and including the first level L* whose
// lateral dimension (the shorter of width/height) drops to or at
// maxThumbnailSize. L* is always at least 1 — even a source already at or
// below maxThumbnailSize still gets one halving — and generation also
// stops early if a level's slice count reaches 1 (spec.md §4.6).
//
// width0/height0 are the level-0 lateral dimensions.
func LevelCounts(sliceCount0, width0, height0, maxThumbnailSize int) []int {
	if maxThumbnailSize <= 0 {
		maxThumbnailSize = DefaultMaxThumbnailSize
	}
	counts := []int{sliceCount0}
	w, h := width0, height0
	for {
		n := counts[len(counts)-1]
		if n <= 1 {
			break
		}
		if len(counts) > 1 && min(w, h) <= maxThumbnailSize {
			break
		}
		nextW, nextH := w/2, h/2
		if nextW == 0 || nextH == 0 {
			break
		}
		counts = append(counts, (n+1)/2)
		w, h = nextW, nextH
	}
	return counts
}

// Level describes one generated pyramid level's on-disk layout.
type Level struct {
	Index      int // 0 = source
	Dir        string
	SliceCount int
	Width      int
	Height     int
}

// BuildOptions configures a pyramid build.
type BuildOptions struct {
	Concurrency      int
	RetainVolume     bool // keep the smallest level's pixels resident for cropping
	SampleSize       int
	SeedSpeed        float64
	MaxThumbnailSize int // stop level once min(width,height) <= this; 0 = DefaultMaxThumbnailSize
}

// BuildResult is what BuildLevels reports back to the caller.
type BuildResult struct {
	Levels        []Level
	SmallestLevel *imageio.Volume // populated only when RetainVolume is set
	Cancelled     bool
}

// BuildLevels constructs every pyramid level below level 0 into outDirFor's
// target directories, using codec for I/O and cb for progress reporting.
// level0 describes the already-discovered source sequence.
func BuildLevels(
	ctx context.Context,
	level0 sequence.Meta,
	outDirFor func(levelIndex int) string,
	width0, height0 int,
	codec *imageio.Codec,
	opts BuildOptions,
	cb progress.Callbacks,
) (BuildResult, error) {
	counts := LevelCounts(level0.Count(), width0, height0, opts.MaxThumbnailSize)
	if len(counts) < 2 {
		return BuildResult{Levels: []Level{{Index: 0, Dir: "", SliceCount: counts[0], Width: width0, Height: height0}}}, nil
	}

	plans := make([]progress.LevelPlan, 0, len(counts)-1)
	for l := 1; l < len(counts); l++ {
		plans = append(plans, progress.LevelPlan{LevelIndex: l, InputCount: counts[l-1], OutputCount: counts[l]})
	}
	coord := progress.New(ctx, plans, opts.SampleSize, opts.SeedSpeed, cb)

	worker := downsample.New(codec)

	w, h := width0, height0
	prevDir := outDirFor(0)
	prevPathFor := func(i int) string { return level0.PathAt(i) }

	levels := make([]Level, 1, len(counts))
	levels[0] = Level{Index: 0, Dir: prevDir, SliceCount: counts[0], Width: width0, Height: height0}

	var smallestVolume *imageio.Volume

	for l := 1; l < len(counts); l++ {
		planIdx := l - 1
		coord.StartLevel(planIdx)

		nextW, nextH := w/2, h/2
		outDir := outDirFor(l)
		outCount := counts[l]
		inCount := counts[l-1]
		isLastLevel := l == len(counts)-1

		results := make([]*imageio.Image, outCount)
		var firstErr error

		g, gctx := errgroup.WithContext(coord.Context())
		if opts.Concurrency > 0 {
			g.SetLimit(opts.Concurrency)
		}

		for out := 0; out < outCount; out++ {
			out := out
			ia := prevPathFor(2 * out)
			ib := ""
			if 2*out+1 < inCount {
				ib = prevPathFor(2*out + 1)
			}
			outPath := fmt.Sprintf("%s/%06d.tif", outDir, out)
			retain := isLastLevel && opts.RetainVolume

			g.Go(func() error {
				task := downsample.Task{
					OutIndex:       out,
					InputA:         ia,
					InputB:         ib,
					Output:         outPath,
					ExpectedWidth:  nextW,
					ExpectedHeight: nextH,
				}
				outcome := worker.Run(gctx, task, retain)
				if outcome.Status == downsample.StatusFailed {
					return outcome.Err
				}
				if outcome.Pixels != nil {
					results[out] = outcome.Pixels
				}
				coord.TaskCompleted()
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			if ctperr.IsKind(err, ctperr.KindCancelled) || coord.Cancelled() {
				return BuildResult{Levels: levels, Cancelled: true}, nil
			}
			firstErr = err
		}
		coord.FinishLevel(planIdx)

		if firstErr != nil {
			return BuildResult{}, firstErr
		}
		if coord.Cancelled() {
			return BuildResult{Levels: levels, Cancelled: true}, nil
		}

		levels = append(levels, Level{Index: l, Dir: outDir, SliceCount: outCount, Width: nextW, Height: nextH})

		if isLastLevel && opts.RetainVolume {
			smallestVolume = assembleVolume(results, nextW, nextH)
		}

		w, h = nextW, nextH
		prevPathFor = func(i int) string { return fmt.Sprintf("%s/%06d.tif", outDir, i) }
	}

	return BuildResult{Levels: levels, SmallestLevel: smallestVolume}, nil
}

func assembleVolume(results []*imageio.Image, w, h int) *imageio.Volume {
	return &imageio.Volume{Width: w, Height: h, Slices: results}
}

// WarnOnMemoryPressure logs a warning (via the ambient logger) when
// retaining the smallest level's pixels in memory would consume more
// than the given fraction of total system RAM. Detection failures are
// silently ignored: this is advisory only, mirroring the teacher's
// internal/tile.ComputeMemoryLimit, which likewise disables itself
// rather than fail the build when RAM cannot be probed.
func WarnOnMemoryPressure(sliceCount, width, height, depth int, fraction float64) {
	bytesPerSlice := int64(width) * int64(height) * int64(depth/8)
	total := bytesPerSlice * int64(sliceCount)

	totalRAM, err := systemRAMForPyramidBudget()
	if err != nil || totalRAM == 0 {
		return
	}
	if float64(total) > fraction*float64(totalRAM) {
		log.Printf("warning: retaining the smallest pyramid level in memory requires ~%.1f GB, above %.0f%% of detected system RAM (%.1f GB)",
			float64(total)/(1024*1024*1024), fraction*100, float64(totalRAM)/(1024*1024*1024))
	}
}

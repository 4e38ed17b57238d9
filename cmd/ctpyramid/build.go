package main

import (
	"context"
	"fmt"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jikhanjung/ctpyramid/internal/ctpyramid"
	"github.com/jikhanjung/ctpyramid/internal/pyramid"
)

func newBuildCommand() *cobra.Command {
	var (
		outputDir        string
		concurrency      int
		retainVolume     bool
		sampleSize       int
		maxThumbnailSize int
	)

	cmd := &cobra.Command{
		Use:   "build <source-dir>",
		Short: "Generate every pyramid level for a CT slice directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sourceDir := args[0]
			if outputDir == "" {
				outputDir = sourceDir
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			reporter := newTerminalReporter()

			start := time.Now()
			result, err := ctpyramid.BuildPyramid(ctx, sourceDir, outputDir, ctpyramid.Options{
				Concurrency:          concurrency,
				RetainSmallestVolume: retainVolume,
				SampleSize:           sampleSize,
				MaxThumbnailSize:     maxThumbnailSize,
			}, reporter.callbacks())
			if err != nil {
				return fmt.Errorf("building pyramid: %w", err)
			}

			if result.Cancelled {
				fmt.Println()
				fmt.Println(color.YellowString("build cancelled"))
				return nil
			}

			fmt.Println()
			bold := color.New(color.Bold)
			for _, lvl := range result.Levels {
				fmt.Printf("  level %d: %d slices at %dx%d\n", lvl.Index, lvl.SliceCount, lvl.Width, lvl.Height)
			}
			fmt.Printf("%s %d levels in %v\n", bold.Sprint("Done:"), len(result.Levels), time.Since(start).Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory for generated levels (default: source directory)")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", defaultWorkerCount(), "Number of parallel downsampling workers (default: logical cores, capped at 8)")
	cmd.Flags().BoolVar(&retainVolume, "retain-volume", true, "Keep the smallest level resident in memory for later cropping")
	cmd.Flags().IntVar(&sampleSize, "sample-size", 20, "ETA sampler window size (1-100)")
	cmd.Flags().IntVar(&maxThumbnailSize, "max-thumbnail-size", pyramid.DefaultMaxThumbnailSize, "Lateral size (px) at which the pyramid stops generating further levels")

	return cmd
}

// defaultWorkerCount implements spec.md's worker_count default: the
// number of logical cores, capped at 8.
func defaultWorkerCount() int {
	if n := runtime.NumCPU(); n < 8 {
		return n
	}
	return 8
}

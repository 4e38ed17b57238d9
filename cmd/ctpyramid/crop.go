package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jikhanjung/ctpyramid/internal/ctpyramid"
	"github.com/jikhanjung/ctpyramid/internal/imageio"
	"github.com/jikhanjung/ctpyramid/internal/pyramid"
	"github.com/jikhanjung/ctpyramid/internal/volume"
)

func newCropCommand() *cobra.Command {
	var (
		level            int
		roiArg           string
		outDir           string
		maxThumbnailSize int
	)

	cmd := &cobra.Command{
		Use:   "crop <source-dir> <pyramid-dir>",
		Short: "Extract a region of interest from one generated pyramid level",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sourceDir, pyramidDir := args[0], args[1]

			roi, err := parseROI(roiArg)
			if err != nil {
				return fmt.Errorf("parsing --roi: %w", err)
			}

			scan, err := ctpyramid.ScanDirectory(sourceDir)
			if err != nil {
				return fmt.Errorf("scanning source: %w", err)
			}

			counts := pyramid.LevelCounts(scan.Meta.Count(), scan.Meta.Width, scan.Meta.Height, maxThumbnailSize)
			if level < 0 || level >= len(counts) {
				return fmt.Errorf("level %d out of range [0,%d]", level, len(counts)-1)
			}

			levels := make([]pyramid.Level, len(counts))
			w, h := scan.Meta.Width, scan.Meta.Height
			levels[0] = pyramid.Level{Index: 0, Dir: sourceDir, SliceCount: counts[0], Width: w, Height: h}
			for l := 1; l < len(counts); l++ {
				w, h = w/2, h/2
				levels[l] = pyramid.Level{
					Index:      l,
					Dir:        filepath.Join(pyramidDir, fmt.Sprintf("level_%02d", l)),
					SliceCount: counts[l],
					Width:      w,
					Height:     h,
				}
			}

			codec := imageio.New()

			// Level-0 files keep their original sequence names, so they are
			// loaded through the scanned metadata instead of the %06d.tif
			// naming used for generated levels.
			var vol *imageio.Volume
			if level == 0 {
				vol = &imageio.Volume{Width: scan.Meta.Width, Height: scan.Meta.Height, Slices: make([]*imageio.Image, counts[0])}
				for z := max(roi.Z0, 0); z < min(roi.Z1, counts[0]); z++ {
					img, _, err := codec.Load(scan.Meta.PathAt(z))
					if err != nil {
						return fmt.Errorf("loading source slice %d: %w", z, err)
					}
					vol.Slices[z] = &img
				}
			}
			cropped, err := ctpyramid.CropVolume(levels, roi, level, vol, codec)
			if err != nil {
				return fmt.Errorf("cropping: %w", err)
			}

			if outDir == "" {
				outDir = "."
			}
			for i, img := range cropped {
				path := filepath.Join(outDir, fmt.Sprintf("crop_%06d.tif", i))
				if err := codec.SaveTIFF(path, img); err != nil {
					return fmt.Errorf("writing %s: %w", path, err)
				}
			}

			bold := color.New(color.Bold)
			fmt.Printf("%s %d slices to %s\n", bold.Sprint("Wrote:"), len(cropped), outDir)
			return nil
		},
	}

	cmd.Flags().IntVar(&level, "level", 0, "Pyramid level to crop from (0 = source)")
	cmd.Flags().StringVar(&roiArg, "roi", "", "Region of interest as x0,y0,x1,y1,z0,z1 (level-0 coordinates, half-open)")
	cmd.Flags().StringVarP(&outDir, "output", "o", "", "Directory to write cropped slices into")
	cmd.Flags().IntVar(&maxThumbnailSize, "max-thumbnail-size", pyramid.DefaultMaxThumbnailSize, "Lateral size (px) the pyramid used to stop generating levels; must match the original build")
	_ = cmd.MarkFlagRequired("roi")

	return cmd
}

func parseROI(s string) (volume.ROI, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 6 {
		return volume.ROI{}, fmt.Errorf("expected 6 comma-separated values (x0,y0,x1,y1,z0,z1), got %d", len(parts))
	}
	vals := make([]int, 6)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return volume.ROI{}, fmt.Errorf("invalid integer %q: %w", p, err)
		}
		vals[i] = v
	}
	return volume.ROI{X0: vals[0], Y0: vals[1], X1: vals[2], Y1: vals[3], Z0: vals[4], Z1: vals[5]}, nil
}

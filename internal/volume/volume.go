// Package volume maps a region of interest expressed in level-0 pixel
// coordinates down to any generated pyramid level, and crops that level's
// slices to the mapped region. It is a stateless set of pure functions in
// the same style as internal/coord's projection conversions.
package volume

import (
	"fmt"

	"github.com/jikhanjung/ctpyramid/internal/ctperr"
	"github.com/jikhanjung/ctpyramid/internal/imageio"
)

// ROI is a half-open axis-aligned box in level-0 pixel coordinates, plus a
// half-open slice range.
type ROI struct {
	X0, Y0, X1, Y1 int // pixel bounds: [X0,X1) x [Y0,Y1)
	Z0, Z1         int // slice bounds: [Z0,Z1)
}

// Validate checks that roi is well-formed against the level-0 extent.
func Validate(roi ROI, width0, height0, sliceCount0 int) error {
	if roi.X0 < 0 || roi.Y0 < 0 || roi.Z0 < 0 {
		return ctperr.Wrap(ctperr.KindDim, "", "region of interest has a negative origin", nil)
	}
	if roi.X1 <= roi.X0 || roi.Y1 <= roi.Y0 || roi.Z1 <= roi.Z0 {
		return ctperr.Wrap(ctperr.KindDim, "", "region of interest is empty or inverted", nil)
	}
	if roi.X1 > width0 || roi.Y1 > height0 || roi.Z1 > sliceCount0 {
		return ctperr.Wrap(ctperr.KindDim, "", fmt.Sprintf(
			"region of interest %+v exceeds level-0 extent %dx%dx%d", roi, width0, height0, sliceCount0), nil)
	}
	return nil
}

// MapToLevel scales a level-0 ROI down to level L using the same
// floor/ceil convention as the lateral halving a downsample step performs:
// X0_L = floor(X0 * width_L / width_0), X1_L = ceil(X1 * width_L / width_0),
// and likewise for Y and Z. The result is clamped to the level's extent.
func MapToLevel(roi ROI, width0, height0, sliceCount0 int, widthL, heightL, sliceCountL int) ROI {
	scaleX := func(v int) int { return v * widthL / width0 }
	scaleXCeil := func(v int) int { return ceilDiv(v*widthL, width0) }
	scaleY := func(v int) int { return v * heightL / height0 }
	scaleYCeil := func(v int) int { return ceilDiv(v*heightL, height0) }
	scaleZ := func(v int) int { return v * sliceCountL / sliceCount0 }
	scaleZCeil := func(v int) int { return ceilDiv(v*sliceCountL, sliceCount0) }

	mapped := ROI{
		X0: clamp(scaleX(roi.X0), 0, widthL),
		Y0: clamp(scaleY(roi.Y0), 0, heightL),
		Z0: clamp(scaleZ(roi.Z0), 0, sliceCountL),
		X1: clamp(scaleXCeil(roi.X1), 0, widthL),
		Y1: clamp(scaleYCeil(roi.Y1), 0, heightL),
		Z1: clamp(scaleZCeil(roi.Z1), 0, sliceCountL),
	}
	if mapped.X1 <= mapped.X0 {
		mapped.X1 = mapped.X0 + 1
	}
	if mapped.Y1 <= mapped.Y0 {
		mapped.Y1 = mapped.Y0 + 1
	}
	if mapped.Z1 <= mapped.Z0 {
		mapped.Z1 = mapped.Z0 + 1
	}
	return mapped
}

// Crop extracts the lateral sub-rectangle [roi.X0,roi.X1) x [roi.Y0,roi.Y1)
// from every slice in [roi.Z0,roi.Z1), returning new, independently
// allocated Images.
func Crop(vol *imageio.Volume, roi ROI) ([]imageio.Image, error) {
	if roi.Z1 > len(vol.Slices) {
		return nil, ctperr.Wrap(ctperr.KindDim, "", "ROI slice range exceeds volume depth", nil)
	}
	out := make([]imageio.Image, 0, roi.Z1-roi.Z0)
	for z := roi.Z0; z < roi.Z1; z++ {
		src := vol.Slices[z]
		if src == nil {
			return nil, ctperr.Wrap(ctperr.KindDim, "", fmt.Sprintf("slice %d was not retained in memory", z), nil)
		}
		cropped, err := cropOne(*src, roi.X0, roi.Y0, roi.X1, roi.Y1)
		if err != nil {
			return nil, err
		}
		out = append(out, cropped)
	}
	return out, nil
}

func cropOne(src imageio.Image, x0, y0, x1, y1 int) (imageio.Image, error) {
	if x0 < 0 || y0 < 0 || x1 > src.Width || y1 > src.Height || x1 <= x0 || y1 <= y0 {
		return imageio.Image{}, ctperr.Wrap(ctperr.KindDim, "", "crop rectangle out of bounds", nil)
	}
	w, h := x1-x0, y1-y0

	if src.Depth == 16 {
		pix := make([]uint16, w*h)
		for y := 0; y < h; y++ {
			srcRow := (y0 + y) * src.Width
			dstRow := y * w
			copy(pix[dstRow:dstRow+w], src.Pix16[srcRow+x0:srcRow+x0+w])
		}
		return imageio.Image{Width: w, Height: h, Depth: 16, Pix16: pix}, nil
	}

	pix := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		srcRow := (y0 + y) * src.Width
		dstRow := y * w
		copy(pix[dstRow:dstRow+w], src.Pix8[srcRow+x0:srcRow+x0+w])
	}
	return imageio.Image{Width: w, Height: h, Depth: 8, Pix8: pix}, nil
}

func ceilDiv(a, b int) int {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

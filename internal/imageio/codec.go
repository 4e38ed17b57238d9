// Package imageio provides narrow, dtype-preserving image I/O for CT
// slices: load any of the accepted raster formats into a flat 8-bit or
// 16-bit grayscale array, and save that array back out as lossless TIFF.
package imageio

import (
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/jikhanjung/ctpyramid/internal/ctperr"
)

// Image is a flat, dtype-tagged grayscale slice. Exactly one of Pix8 or
// Pix16 is populated, selected by Depth.
type Image struct {
	Width, Height int
	Depth         int // 8 or 16
	Pix8          []uint8
	Pix16         []uint16
}

// At returns the pixel at (x, y) widened to uint32 regardless of Depth,
// convenient for arithmetic that must treat both depths uniformly.
func (im Image) At(x, y int) uint32 {
	i := y*im.Width + x
	if im.Depth == 16 {
		return uint32(im.Pix16[i])
	}
	return uint32(im.Pix8[i])
}

// Volume is an in-memory stack of same-sized slices, used to retain the
// smallest pyramid level for cropping without re-reading it from disk.
type Volume struct {
	Width, Height int
	Slices        []*Image // Slices[i] is nil if level generation failed or skipped retention for that index
}

// Codec implements load/save for the accepted level-0 raster formats plus
// the level≥1 TIFF form.
type Codec struct{}

// New returns a ready-to-use Codec.
func New() *Codec { return &Codec{} }

// Load opens path and returns it as a flat grayscale Image, converting
// palette and multi-channel sources to grayscale. warning is non-empty
// when a lossy conversion occurred (palette or RGB/RGBA → luminance).
func (c *Codec) Load(path string) (Image, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return Image{}, "", ctperr.Wrap(ctperr.KindIO, path, "opening image", err)
	}
	defer f.Close()

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	var img image.Image
	switch ext {
	case "tif", "tiff":
		img, err = tiff.Decode(f)
	case "png":
		img, err = png.Decode(f)
	case "bmp":
		img, err = bmp.Decode(f)
	case "jpg", "jpeg":
		img, err = jpeg.Decode(f)
	default:
		return Image{}, "", ctperr.Wrap(ctperr.KindDecode, path, "unsupported extension "+ext, nil)
	}
	if err != nil {
		return Image{}, "", ctperr.Wrap(ctperr.KindDecode, path, "decoding image", err)
	}

	if _, ok := img.(*image.CMYK); ok {
		return Image{}, "", ctperr.Wrap(ctperr.KindDecode, path, "unsupported pixel mode CMYK", nil)
	}

	out, warning := toGrayImage(img)
	return out, warning, nil
}

// Probe reports a file's pixel dimensions and bit depth without the
// caller needing to keep the decoded pixels around; it satisfies
// sequence.Prober.
func (c *Codec) Probe(path string) (width, height, bitDepth int, warning string, err error) {
	img, w, loadErr := c.Load(path)
	if loadErr != nil {
		return 0, 0, 0, "", loadErr
	}
	return img.Width, img.Height, img.Depth, w, nil
}

// SaveTIFF writes img as a lossless (Deflate-compressed) TIFF, preserving
// its bit depth.
func (c *Codec) SaveTIFF(path string, img Image) error {
	f, err := os.Create(path)
	if err != nil {
		return ctperr.Wrap(ctperr.KindIO, path, "creating output file", err)
	}
	defer f.Close()

	goImg := img.toGoImage()
	if err := tiff.Encode(f, goImg, &tiff.Options{Compression: tiff.Deflate}); err != nil {
		return ctperr.Wrap(ctperr.KindIO, path, "encoding TIFF", err)
	}
	return nil
}

// toGoImage converts Image back to a standard library image for encoding.
func (im Image) toGoImage() image.Image {
	if im.Depth == 16 {
		g := image.NewGray16(image.Rect(0, 0, im.Width, im.Height))
		for i, v := range im.Pix16 {
			// image.Gray16's Pix stores each sample big-endian, 2 bytes apart.
			g.Pix[2*i] = byte(v >> 8)
			g.Pix[2*i+1] = byte(v)
		}
		return g
	}
	g := image.NewGray(image.Rect(0, 0, im.Width, im.Height))
	copy(g.Pix, im.Pix8)
	return g
}

// toGrayImage flattens any decoded image.Image into a grayscale Image,
// choosing a fast path for the already-grayscale concrete types and
// falling back to a luminance conversion (with a warning) for palette
// and multi-channel sources.
func toGrayImage(img image.Image) (Image, string) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	switch src := img.(type) {
	case *image.Gray:
		pix := make([]uint8, w*h)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				pix[y*w+x] = src.GrayAt(b.Min.X+x, b.Min.Y+y).Y
			}
		}
		return Image{Width: w, Height: h, Depth: 8, Pix8: pix}, ""

	case *image.Gray16:
		pix := make([]uint16, w*h)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				pix[y*w+x] = src.Gray16At(b.Min.X+x, b.Min.Y+y).Y
			}
		}
		return Image{Width: w, Height: h, Depth: 16, Pix16: pix}, ""

	case *image.Paletted:
		pix := make([]uint8, w*h)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				g := color.GrayModel.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
				pix[y*w+x] = g.Y
			}
		}
		return Image{Width: w, Height: h, Depth: 8, Pix8: pix}, "converted palette image to grayscale"

	default:
		pix := make([]uint8, w*h)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				g := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
				pix[y*w+x] = g.Y
			}
		}
		return Image{Width: w, Height: h, Depth: 8, Pix8: pix}, "converted multi-channel image to grayscale via luminance"
	}
}

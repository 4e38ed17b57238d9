package downsample

import (
	"testing"

	"github.com/jikhanjung/ctpyramid/internal/imageio"
)

func BenchmarkPairwiseMeanAndDecimate_8bit(b *testing.B) {
	a := checkerImage8(1024, 1024, 10, 240)
	bb := checkerImage8(1024, 1024, 50, 200)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		avg, release, err := pairwiseMean(a, bb)
		if err != nil {
			b.Fatal(err)
		}
		if _, err := decimate(avg); err != nil {
			b.Fatal(err)
		}
		release()
	}
}

func BenchmarkDecimate_16bit(b *testing.B) {
	n := 1024 * 1024
	pix := make([]uint16, n)
	for i := range pix {
		pix[i] = uint16(i % 65536)
	}
	img := imageio.Image{Width: 1024, Height: 1024, Depth: 16, Pix16: pix}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := decimate(img); err != nil {
			b.Fatal(err)
		}
	}
}

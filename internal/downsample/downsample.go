// Package downsample implements the pairwise-mean, 2x-lateral-decimation
// worker that turns two consecutive level-L slices into one level-(L+1)
// slice (or one slice into one, for the odd tail).
package downsample

import (
	"context"
	"os"

	"github.com/jikhanjung/ctpyramid/internal/ctperr"
	"github.com/jikhanjung/ctpyramid/internal/imageio"
)

// Status classifies how a Task was resolved.
type Status int

const (
	StatusGenerated Status = iota
	StatusLoadedExisting
	StatusFailed
)

// Task describes one unit of downsampling work.
type Task struct {
	OutIndex                      int
	InputA, InputB                string // InputB == "" marks the odd-tail task
	Output                        string
	ExpectedWidth, ExpectedHeight int
}

// Outcome is what a Worker reports back to the scheduler for one Task.
type Outcome struct {
	OutIndex int
	Status   Status
	Pixels   *imageio.Image // populated only when the caller asked to retain pixels
	Err      error          // populated when Status == StatusFailed
}

// Worker produces one level-(L+1) slice from one or two level-L slices.
type Worker struct {
	codec *imageio.Codec
}

// New returns a Worker backed by codec.
func New(codec *imageio.Codec) *Worker {
	return &Worker{codec: codec}
}

// Run executes task, honoring ctx cancellation at the three checkpoints
// mandated by spec.md §5: before opening the first input, after decoding
// inputs and before combining, and after writing the output. retain
// requests that the produced (or pre-existing) pixels be returned in
// Outcome.Pixels — callers set this only for the smallest pyramid level.
func (w *Worker) Run(ctx context.Context, task Task, retain bool) Outcome {
	if found, pixels := w.tryLoadExisting(task, retain); found {
		return Outcome{OutIndex: task.OutIndex, Status: StatusLoadedExisting, Pixels: pixels}
	}

	if err := checkpoint(ctx); err != nil {
		return failed(task.OutIndex, err)
	}

	a, _, err := w.codec.Load(task.InputA)
	if err != nil {
		return failed(task.OutIndex, err)
	}

	var combined imageio.Image
	var release func()
	if task.InputB != "" {
		b, _, err := w.codec.Load(task.InputB)
		if err != nil {
			return failed(task.OutIndex, err)
		}
		if err := checkpoint(ctx); err != nil {
			return failed(task.OutIndex, err)
		}
		combined, release, err = pairwiseMean(a, b)
		if err != nil {
			return failed(task.OutIndex, err)
		}
	} else {
		if err := checkpoint(ctx); err != nil {
			return failed(task.OutIndex, err)
		}
		combined = a
	}

	out, err := decimate(combined)
	if release != nil {
		release()
	}
	if err != nil {
		return failed(task.OutIndex, err)
	}

	if err := w.codec.SaveTIFF(task.Output, out); err != nil {
		return failed(task.OutIndex, err)
	}

	if err := checkpoint(ctx); err != nil {
		return failed(task.OutIndex, err)
	}

	var pixels *imageio.Image
	if retain {
		pixels = &out
	}
	return Outcome{OutIndex: task.OutIndex, Status: StatusGenerated, Pixels: pixels}
}

func (w *Worker) tryLoadExisting(task Task, retain bool) (bool, *imageio.Image) {
	if _, err := os.Stat(task.Output); err != nil {
		return false, nil
	}
	img, _, err := w.codec.Load(task.Output)
	if err != nil || img.Width != task.ExpectedWidth || img.Height != task.ExpectedHeight {
		return false, nil
	}
	if retain {
		return true, &img
	}
	return true, nil
}

func checkpoint(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctperr.Wrap(ctperr.KindCancelled, "", "cancelled at checkpoint", ctx.Err())
	default:
		return nil
	}
}

func failed(outIndex int, err error) Outcome {
	return Outcome{OutIndex: outIndex, Status: StatusFailed, Err: err}
}

// pairwiseMean computes avg[i,j] = (a[i,j] + b[i,j] + 1) / 2 using an
// accumulator wide enough to hold the un-rounded sum without overflow
// (a+b can reach 510 for 8-bit input, 131070 for 16-bit). The returned
// buffer is pool-backed; callers must call release() once decimate() has
// consumed it.
func pairwiseMean(a, b imageio.Image) (imageio.Image, func(), error) {
	if a.Width != b.Width || a.Height != b.Height || a.Depth != b.Depth {
		return imageio.Image{}, nil, ctperr.Wrap(ctperr.KindDim, "", "mismatched input dimensions", nil)
	}
	n := a.Width * a.Height

	if a.Depth == 16 {
		out := getU16(n)
		for i := 0; i < n; i++ {
			sum := uint32(a.Pix16[i]) + uint32(b.Pix16[i]) + 1
			out[i] = uint16(sum / 2)
		}
		return imageio.Image{Width: a.Width, Height: a.Height, Depth: 16, Pix16: out},
			func() { putU16(out) }, nil
	}

	out := getU8(n)
	for i := 0; i < n; i++ {
		sum := uint16(a.Pix8[i]) + uint16(b.Pix8[i]) + 1
		out[i] = uint8(sum / 2)
	}
	return imageio.Image{Width: a.Width, Height: a.Height, Depth: 8, Pix8: out},
		func() { putU8(out) }, nil
}

// decimate halves both lateral dimensions by top-left sampling:
// out[i,j] = in[2i,2j]. Odd input dimensions truncate per spec.md §4.4.
func decimate(in imageio.Image) (imageio.Image, error) {
	outW, outH := in.Width/2, in.Height/2
	if outW == 0 || outH == 0 {
		return imageio.Image{}, ctperr.Wrap(ctperr.KindDim, "", "decimation would produce a zero-size image", nil)
	}

	if in.Depth == 16 {
		out := make([]uint16, outW*outH)
		for y := 0; y < outH; y++ {
			srcRow := (2 * y) * in.Width
			dstRow := y * outW
			for x := 0; x < outW; x++ {
				out[dstRow+x] = in.Pix16[srcRow+2*x]
			}
		}
		return imageio.Image{Width: outW, Height: outH, Depth: 16, Pix16: out}, nil
	}

	out := make([]uint8, outW*outH)
	for y := 0; y < outH; y++ {
		srcRow := (2 * y) * in.Width
		dstRow := y * outW
		for x := 0; x < outW; x++ {
			out[dstRow+x] = in.Pix8[srcRow+2*x]
		}
	}
	return imageio.Image{Width: outW, Height: outH, Depth: 8, Pix8: out}, nil
}

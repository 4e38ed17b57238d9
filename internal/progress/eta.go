package progress

import (
	"fmt"
	"time"
)

// Stage identifies where the three-stage ETA sampler is in its
// bootstrap/refine/stable lifecycle (spec.md §4.7, §9).
type Stage int

const (
	// StageBootstrap covers the first sampleSize completions: no ETA is
	// reported ("estimating") because throughput hasn't been observed.
	StageBootstrap Stage = iota
	// StageRefine covers the next 2*sampleSize completions (cumulative
	// 3x): a speed estimate exists but is still noisy.
	StageRefine
	// StageStable begins once 3*sampleSize completions have accumulated
	// (the end of the refine stage), or immediately if the sampler was
	// seeded with a prior speed, and persists for the rest of the build.
	StageStable
)

// etaSampler tracks cumulative task throughput and reports a stage-aware
// ETA. It intentionally recomputes speed as a running mean over the
// entire elapsed window rather than a sliding window — the "stage"
// transitions only gate when a usable estimate is first reported and do
// not discard earlier samples.
type etaSampler struct {
	sampleSize int
	start      time.Time
	completed  int64
	stage      Stage
	speed      float64 // tasks/sec
	seeded     bool
}

func newETASampler(sampleSize int, seedSpeed float64) *etaSampler {
	e := &etaSampler{sampleSize: sampleSize}
	if seedSpeed > 0 {
		e.stage = StageStable
		e.speed = seedSpeed
		e.seeded = true
	}
	return e
}

func (e *etaSampler) recordCompletion() {
	if e.completed == 0 && e.start.IsZero() {
		e.start = time.Now()
	}
	e.completed++

	switch {
	case e.completed >= int64(6*e.sampleSize):
		e.stage = StageStable
	case e.completed >= int64(3*e.sampleSize):
		if e.stage == StageRefine {
			e.stage = StageStable
		}
	case e.completed >= int64(e.sampleSize):
		if e.stage == StageBootstrap {
			e.stage = StageRefine
		}
	}

	if e.stage != StageBootstrap || e.seeded {
		if elapsed := time.Since(e.start); elapsed > 0 {
			e.speed = float64(e.completed) / elapsed.Seconds()
		}
	}
}

// eta reports a formatted duration for the given remaining task count, or
// ok=false while still in the bootstrap stage with no seed.
func (e *etaSampler) eta(remaining int) (string, bool) {
	if e.stage == StageBootstrap && !e.seeded {
		return "", false
	}
	if e.speed <= 0 || remaining <= 0 {
		return "", false
	}
	secs := float64(remaining) / e.speed
	return formatDuration(time.Duration(secs * float64(time.Second))), true
}

// formatDuration renders d as "1h02m03s" / "2m03s" / "3s", matching the
// compact style of the teacher's progress-bar duration formatting.
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Round(time.Second).Seconds())
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

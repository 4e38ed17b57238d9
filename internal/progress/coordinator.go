// Package progress implements the weighted, multi-level progress stream,
// three-stage ETA sampler, and cooperative cancellation shared by every
// level of a pyramid build.
//
// Unlike the teacher's internal/tile/progress.go — a ticker-driven
// terminal widget that redraws every 100ms regardless of new work — this
// coordinator is driven entirely by task-completion events (spec.md §9:
// "the sampler must be driven by task-completion events, not UI ticks").
// The ~100ms gate below is purely a rate-limit applied at emission time,
// not an independent goroutine.
package progress

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Callbacks mirrors the language-neutral host callback record from
// spec.md §6.
type Callbacks struct {
	// OnProgress reports 0..100. Returning false requests cancellation.
	OnProgress func(percentage float64) bool
	// OnDetail reports an optional human-readable sub-status.
	OnDetail func(text string)
	// OnLog reports an optional leveled log line.
	OnLog func(level, message string)
}

// LevelPlan describes one planned level transition (L-1 → L) before any
// work has started, so the coordinator can compute weights up front.
type LevelPlan struct {
	LevelIndex  int // the level being produced (1-based)
	InputCount  int // N_{L-1}, the input slice count
	OutputCount int // N_L, the number of output tasks
}

// Coordinator aggregates weighted progress across levels, samples ETA,
// and routes cancellation between the host and the workers.
type Coordinator struct {
	cb     Callbacks
	ctx    context.Context
	cancel context.CancelFunc

	plans  []LevelPlan
	shares []float64

	mu              sync.Mutex
	curLevel        int
	curLevelDone    int
	totalPlanned    int
	totalCompleted  int
	lastEmit        time.Time
	cancelled       bool
	eta             *etaSampler
}

// New builds a Coordinator for the given level plan. sampleSize is
// clamped to [1,100] per spec.md §9 (the Open Question this spec resolves
// by adopting the documented [1,100] range, not the historical [20,30]
// clamp). seedSpeed, when > 0, is a previously measured tasks/sec figure
// that seeds the sampler directly into its stable stage.
func New(parent context.Context, plans []LevelPlan, sampleSize int, seedSpeed float64, cb Callbacks) *Coordinator {
	if sampleSize < 1 {
		sampleSize = 1
	}
	if sampleSize > 100 {
		sampleSize = 100
	}

	total := 0
	for _, p := range plans {
		total += p.OutputCount
	}

	ctx, cancel := context.WithCancel(parent)
	return &Coordinator{
		cb:           cb,
		ctx:          ctx,
		cancel:       cancel,
		plans:        plans,
		shares:       computeShares(plans),
		curLevel:     -1,
		totalPlanned: total,
		eta:          newETASampler(sampleSize, seedSpeed),
	}
}

// Context returns the cancellable context that should be threaded through
// every worker so cancellation checkpoints observe it.
func (c *Coordinator) Context() context.Context { return c.ctx }

// Cancel requests cooperative cancellation, callable directly by the host
// in addition to the on_progress return-false convention.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	c.cancelled = true
	c.mu.Unlock()
	c.cancel()
}

// Cancelled reports whether cancellation has been requested, either by
// the host or by on_progress returning false.
func (c *Coordinator) Cancelled() bool {
	select {
	case <-c.ctx.Done():
		return true
	default:
		return false
	}
}

// StartLevel marks the beginning of work on the plan at planIdx (an index
// into the slice passed to New) and emits an immediate detail line.
func (c *Coordinator) StartLevel(planIdx int) {
	c.mu.Lock()
	c.curLevel = planIdx
	c.curLevelDone = 0
	c.mu.Unlock()

	if c.cb.OnDetail != nil && planIdx < len(c.plans) {
		p := c.plans[planIdx]
		c.cb.OnDetail(fmt.Sprintf("level %d: building %d slices", p.LevelIndex, p.OutputCount))
	}
}

// TaskCompleted records one finished task in the current level and emits
// progress if the ~100ms rate-limit gate allows it.
func (c *Coordinator) TaskCompleted() {
	c.mu.Lock()
	c.curLevelDone++
	c.totalCompleted++
	c.eta.recordCompletion()
	shouldEmit := time.Since(c.lastEmit) >= 100*time.Millisecond
	pct := c.percentageLocked()
	c.mu.Unlock()

	if shouldEmit {
		c.emit(pct)
	}
}

// FinishLevel forces a final emission at the level boundary, per spec.md
// §4.7's "plus one final emission at level boundaries".
func (c *Coordinator) FinishLevel(planIdx int) {
	c.mu.Lock()
	if planIdx < len(c.plans) {
		c.curLevelDone = c.plans[planIdx].OutputCount
	}
	pct := c.percentageLocked()
	c.mu.Unlock()

	c.emit(pct)
}

func (c *Coordinator) emit(pct float64) {
	if c.cb.OnProgress != nil {
		if !c.cb.OnProgress(pct) {
			c.Cancel()
		}
	}
	c.mu.Lock()
	c.lastEmit = time.Now()
	c.mu.Unlock()
}

// ETAText returns the current ETA as formatted text, or "estimating"
// when the sampler has not yet produced a usable speed.
func (c *Coordinator) ETAText() string {
	c.mu.Lock()
	remaining := c.totalPlanned - c.totalCompleted
	c.mu.Unlock()

	text, ok := c.eta.eta(remaining)
	if !ok {
		return "estimating"
	}
	return text
}

// Log forwards a leveled message to the host, if a log callback was
// supplied.
func (c *Coordinator) Log(level, message string) {
	if c.cb.OnLog != nil {
		c.cb.OnLog(level, message)
	}
}

func (c *Coordinator) percentageLocked() float64 {
	if c.curLevel < 0 || c.curLevel >= len(c.plans) {
		return 0
	}
	var pct float64
	for i := 0; i < c.curLevel; i++ {
		pct += c.shares[i]
	}
	p := c.plans[c.curLevel]
	if p.OutputCount > 0 {
		frac := float64(c.curLevelDone) / float64(p.OutputCount)
		if frac > 1 {
			frac = 1
		}
		pct += c.shares[c.curLevel] * frac
	}
	if pct > 1 {
		pct = 1
	}
	return pct * 100
}

// computeShares normalizes per-level weights. Level L's raw weight is
// 2*N_{L-1} (input reads plus output writes); level 1 carries an extra
// 1.5x multiplier to account for cold-cache disk I/O dominance on the
// first pass (spec.md §4.7).
func computeShares(plans []LevelPlan) []float64 {
	weights := make([]float64, len(plans))
	var total float64
	for i, p := range plans {
		w := 2 * float64(p.InputCount)
		if p.LevelIndex == 1 {
			w *= 1.5
		}
		weights[i] = w
		total += w
	}
	shares := make([]float64, len(plans))
	if total > 0 {
		for i, w := range weights {
			shares[i] = w / total
		}
	}
	return shares
}

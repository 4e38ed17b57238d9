package progress

import (
	"context"
	"testing"
	"time"
)

func TestComputeShares_FirstLevelWeighted(t *testing.T) {
	plans := []LevelPlan{
		{LevelIndex: 1, InputCount: 100, OutputCount: 50},
		{LevelIndex: 2, InputCount: 50, OutputCount: 25},
	}
	shares := computeShares(plans)
	if len(shares) != 2 {
		t.Fatalf("want 2 shares, got %d", len(shares))
	}
	// w1 = 2*100*1.5 = 300, w2 = 2*50 = 100, total = 400
	wantShare1 := 300.0 / 400.0
	if diff := shares[0] - wantShare1; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("share[0] = %v, want %v", shares[0], wantShare1)
	}
	sum := shares[0] + shares[1]
	if diff := sum - 1.0; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("shares must sum to 1, got %v", sum)
	}
}

func TestComputeShares_EmptyPlans(t *testing.T) {
	if got := computeShares(nil); len(got) != 0 {
		t.Fatalf("expected empty shares, got %v", got)
	}
}

func TestCoordinator_PercentageMonotonic(t *testing.T) {
	plans := []LevelPlan{
		{LevelIndex: 1, InputCount: 10, OutputCount: 5},
		{LevelIndex: 2, InputCount: 5, OutputCount: 3},
	}
	c := New(context.Background(), plans, 2, 0, Callbacks{})

	c.StartLevel(0)
	var last float64
	for i := 0; i < 5; i++ {
		c.TaskCompleted()
		pct := c.percentageLocked()
		if pct < last {
			t.Fatalf("percentage regressed: %v -> %v", last, pct)
		}
		last = pct
	}
	c.FinishLevel(0)

	c.StartLevel(1)
	for i := 0; i < 3; i++ {
		c.TaskCompleted()
	}
	c.FinishLevel(1)

	final := c.percentageLocked()
	if final < 99.999 {
		t.Fatalf("final percentage = %v, want ~100", final)
	}
}

func TestCoordinator_CancelViaOnProgress(t *testing.T) {
	plans := []LevelPlan{{LevelIndex: 1, InputCount: 10, OutputCount: 10}}
	calls := 0
	cb := Callbacks{OnProgress: func(pct float64) bool {
		calls++
		return false
	}}
	c := New(context.Background(), plans, 1, 0, cb)
	c.StartLevel(0)

	// Force the rate limit open for the first call.
	c.lastEmit = time.Time{}
	c.TaskCompleted()

	if !c.Cancelled() {
		t.Fatal("expected coordinator to be cancelled after on_progress returned false")
	}
	select {
	case <-c.Context().Done():
	default:
		t.Fatal("expected context to be cancelled")
	}
}

func TestCoordinator_CancelDirect(t *testing.T) {
	c := New(context.Background(), nil, 10, 0, Callbacks{})
	c.Cancel()
	if !c.Cancelled() {
		t.Fatal("expected Cancelled() true after explicit Cancel()")
	}
}

func TestCoordinator_RateLimitSkipsEmission(t *testing.T) {
	plans := []LevelPlan{{LevelIndex: 1, InputCount: 100, OutputCount: 100}}
	calls := 0
	cb := Callbacks{OnProgress: func(pct float64) bool {
		calls++
		return true
	}}
	c := New(context.Background(), plans, 10, 0, cb)
	c.StartLevel(0)
	c.lastEmit = time.Now()

	for i := 0; i < 5; i++ {
		c.TaskCompleted()
	}
	if calls != 0 {
		t.Fatalf("expected no emissions inside the 100ms rate-limit window, got %d", calls)
	}
}

func TestCoordinator_DetailCallbackOnStartLevel(t *testing.T) {
	var got string
	cb := Callbacks{OnDetail: func(text string) { got = text }}
	plans := []LevelPlan{{LevelIndex: 3, InputCount: 8, OutputCount: 4}}
	c := New(context.Background(), plans, 1, 0, cb)
	c.StartLevel(0)
	if got == "" {
		t.Fatal("expected OnDetail to be invoked with a non-empty detail string")
	}
}

package reveal

import (
	"sync"
	"testing"
	"time"

	"github.com/bastiangx/spanserve/pkg/span"
)

func spansWithConfidence(confs ...float64) []span.Span {
	out := make([]span.Span, len(confs))
	for i, c := range confs {
		out[i] = span.Span{ID: string(rune('a' + i)), Confidence: c}
	}
	return out
}

func TestTierOf(t *testing.T) {
	th := DefaultThresholds()
	cases := []struct {
		confidence float64
		want       Tier
	}{
		{0.95, TierHigh},
		{0.8, TierHigh},
		{0.79, TierMedium},
		{0.6, TierMedium},
		{0.59, TierLow},
		{0.0, TierLow},
	}
	for _, tc := range cases {
		if got := TierOf(tc.confidence, th); got != tc.want {
			t.Errorf("TierOf(%v) = %v, want %v", tc.confidence, got, tc.want)
		}
	}
}

func TestScheduleStaggersTiers(t *testing.T) {
	s := NewScheduler(DefaultThresholds(), Delays{Medium: 20 * time.Millisecond, Low: 40 * time.Millisecond})

	var mu sync.Mutex
	fired := map[Tier]time.Time{}
	start := time.Now()

	s.Schedule(spansWithConfidence(0.9, 0.7, 0.3), func(tier Tier, batch []span.Span) {
		mu.Lock()
		fired[tier] = time.Now()
		mu.Unlock()
	})

	// High fires synchronously.
	mu.Lock()
	if _, ok := fired[TierHigh]; !ok {
		t.Fatal("high tier did not fire immediately")
	}
	if s.Progress() != 33 {
		t.Errorf("progress after high tier = %d, want 33", s.Progress())
	}
	mu.Unlock()

	deadline := time.After(500 * time.Millisecond)
	for {
		mu.Lock()
		done := len(fired) == 3
		mu.Unlock()
		if done {
			break
		}
		select {
		case <-deadline:
			t.Fatal("tiers did not all fire in time")
		case <-time.After(5 * time.Millisecond):
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if fired[TierMedium].Before(start.Add(20 * time.Millisecond)) {
		t.Error("medium tier fired before its delay")
	}
	if fired[TierLow].Before(fired[TierMedium]) {
		t.Error("low tier fired before medium")
	}
	if s.Progress() != 100 {
		t.Errorf("progress after all tiers = %d, want 100", s.Progress())
	}
}

func TestCancelPreventsStaleReveals(t *testing.T) {
	s := NewScheduler(DefaultThresholds(), Delays{Medium: 15 * time.Millisecond, Low: 30 * time.Millisecond})

	var mu sync.Mutex
	var fired []Tier
	s.Schedule(spansWithConfidence(0.7, 0.3), func(tier Tier, batch []span.Span) {
		mu.Lock()
		fired = append(fired, tier)
		mu.Unlock()
	})
	s.Cancel()

	time.Sleep(60 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if len(fired) != 0 {
		t.Errorf("cancelled tiers still fired: %v", fired)
	}
}

func TestRescheduleSupersedesPending(t *testing.T) {
	s := NewScheduler(DefaultThresholds(), Delays{Medium: 15 * time.Millisecond, Low: 30 * time.Millisecond})

	var mu sync.Mutex
	got := map[string]bool{}
	record := func(tier Tier, batch []span.Span) {
		mu.Lock()
		for _, sp := range batch {
			got[sp.ID] = true
		}
		mu.Unlock()
	}

	stale := []span.Span{{ID: "stale", Confidence: 0.7}}
	s.Schedule(stale, record)
	fresh := []span.Span{{ID: "fresh", Confidence: 0.7}}
	s.Schedule(fresh, record)

	time.Sleep(60 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if got["stale"] {
		t.Error("superseded schedule still revealed its spans")
	}
	if !got["fresh"] {
		t.Error("fresh schedule never revealed")
	}
}

func TestProgressEmpty(t *testing.T) {
	s := NewScheduler(DefaultThresholds(), DefaultDelays())
	if p := s.Progress(); p != 0 {
		t.Errorf("progress with nothing scheduled = %d, want 0", p)
	}
}

func TestScheduleAllHigh(t *testing.T) {
	s := NewScheduler(DefaultThresholds(), DefaultDelays())
	count := 0
	s.Schedule(spansWithConfidence(0.9, 0.85), func(tier Tier, batch []span.Span) {
		count += len(batch)
	})
	if count != 2 || s.Progress() != 100 {
		t.Errorf("all-high schedule: count=%d progress=%d", count, s.Progress())
	}
}

/*
Package reveal staggers the visual appearance of spans by confidence tier.

High-confidence spans render immediately, medium and low after short
delays, so the spans most likely to be right reach the eye first. Each
call to Schedule starts a fresh generation and makes every pending timer
from the previous one inert; a stale timer can never reveal spans from an
input that has since changed.
*/
package reveal

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/bastiangx/spanserve/pkg/span"
)

// Tier is a confidence band.
type Tier int

const (
	TierHigh Tier = iota
	TierMedium
	TierLow
)

func (t Tier) String() string {
	switch t {
	case TierHigh:
		return "high"
	case TierMedium:
		return "medium"
	case TierLow:
		return "low"
	}
	return "unknown"
}

// Thresholds split confidences into tiers: High and above is high,
// Medium and above is medium, the rest is low.
type Thresholds struct {
	High   float64
	Medium float64
}

// Delays control when the medium and low tiers fire. The high tier always
// fires synchronously.
type Delays struct {
	Medium time.Duration
	Low    time.Duration
}

// DefaultThresholds returns the 0.8 / 0.6 confidence bands.
func DefaultThresholds() Thresholds {
	return Thresholds{High: 0.8, Medium: 0.6}
}

// DefaultDelays returns the 50ms / 100ms stagger.
func DefaultDelays() Delays {
	return Delays{Medium: 50 * time.Millisecond, Low: 100 * time.Millisecond}
}

// TierOf classifies a confidence value.
func TierOf(confidence float64, th Thresholds) Tier {
	switch {
	case confidence >= th.High:
		return TierHigh
	case confidence >= th.Medium:
		return TierMedium
	default:
		return TierLow
	}
}

// Scheduler orders and time-staggers span reveals. One Scheduler is owned
// per editor session; Schedule and Cancel may be called from any
// goroutine.
type Scheduler struct {
	mu         sync.Mutex
	thresholds Thresholds
	delays     Delays
	generation int64
	timers     []*time.Timer
	total      int
	visible    int
}

// NewScheduler creates a Scheduler with the given bands and delays.
func NewScheduler(th Thresholds, d Delays) *Scheduler {
	return &Scheduler{thresholds: th, delays: d}
}

// Schedule plans the reveal of spans and invokes fire once per non-empty
// tier: the high tier synchronously before Schedule returns, medium and
// low from timer callbacks. Any reveal still pending from an earlier
// Schedule call is cancelled first.
func (s *Scheduler) Schedule(spans []span.Span, fire func(Tier, []span.Span)) {
	s.mu.Lock()
	th := s.thresholds
	s.mu.Unlock()

	groups := map[Tier][]span.Span{}
	for _, sp := range spans {
		t := TierOf(sp.Confidence, th)
		groups[t] = append(groups[t], sp)
	}

	s.mu.Lock()
	s.cancelLocked()
	s.generation++
	gen := s.generation
	s.total = len(spans)
	s.visible = len(groups[TierHigh])

	for _, tier := range []Tier{TierMedium, TierLow} {
		batch := groups[tier]
		if len(batch) == 0 {
			continue
		}
		delay := s.delays.Medium
		if tier == TierLow {
			delay = s.delays.Low
		}
		tier := tier
		s.timers = append(s.timers, time.AfterFunc(delay, func() {
			s.fireTier(gen, tier, batch, fire)
		}))
	}
	s.mu.Unlock()

	if batch := groups[TierHigh]; len(batch) > 0 {
		fire(TierHigh, batch)
	}
}

// fireTier delivers a delayed tier unless its generation has been
// superseded, in which case the reveal is silently dropped.
func (s *Scheduler) fireTier(gen int64, tier Tier, batch []span.Span, fire func(Tier, []span.Span)) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		log.Debugf("Dropping stale %s tier reveal (generation %d)", tier, gen)
		return
	}
	s.visible += len(batch)
	s.mu.Unlock()

	fire(tier, batch)
}

// SetThresholds swaps the confidence bands. Reveals already scheduled
// keep the bands they were classified under.
func (s *Scheduler) SetThresholds(th Thresholds) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.thresholds = th
}

// Cancel stops every pending tier. Spans already revealed stay revealed.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
	s.generation++
}

func (s *Scheduler) cancelLocked() {
	for _, t := range s.timers {
		t.Stop()
	}
	s.timers = s.timers[:0]
}

// Progress returns the percentage of scheduled spans currently visible,
// reaching 100 only once every tier has fired.
func (s *Scheduler) Progress() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.total == 0 {
		return 0
	}
	return s.visible * 100 / s.total
}

package resilience

import (
	"sync"
	"time"
)

// statsWindow is the number of recent requests the rolling statistics cover.
const statsWindow = 50

// OutcomeWindow keeps a fixed window of call outcomes and derives a success
// rate and mean latency from it. Safe for concurrent use.
type OutcomeWindow struct {
	mu       sync.Mutex
	outcomes [statsWindow]outcome
	next     int
	filled   int
}

type outcome struct {
	ok      bool
	latency time.Duration
}

// Record appends one call outcome, evicting the oldest once the window is
// full.
func (s *OutcomeWindow) Record(ok bool, latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes[s.next] = outcome{ok: ok, latency: latency}
	s.next = (s.next + 1) % statsWindow
	if s.filled < statsWindow {
		s.filled++
	}
}

// SuccessRate returns the share of successful calls in the window as a
// percentage. An empty window reads as fully successful so a fresh provider
// does not start out looking broken.
func (s *OutcomeWindow) SuccessRate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.filled == 0 {
		return 100
	}
	succeeded := 0
	for i := 0; i < s.filled; i++ {
		if s.outcomes[i].ok {
			succeeded++
		}
	}
	return float64(succeeded) / float64(s.filled) * 100
}

// AvgLatencyMs returns the mean call latency in the window in milliseconds,
// 0 for an empty window.
func (s *OutcomeWindow) AvgLatencyMs() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.filled == 0 {
		return 0
	}
	var total time.Duration
	for i := 0; i < s.filled; i++ {
		total += s.outcomes[i].latency
	}
	return float64(total.Milliseconds()) / float64(s.filled)
}

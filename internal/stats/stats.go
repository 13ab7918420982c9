package stats

import (
	"sync"
	"time"

	"relaybot/internal/forward"
)

// Running holds the process-wide forwarding counters. They start at zero,
// only grow, and survive poller restarts; there is no in-process reset.
// The aggregator is the single writer at end-of-run; restarts are bumped
// by the supervisor hook. Reads go through Snapshot to avoid torn values.
type Running struct {
	mu sync.Mutex

	totalForwards uint64
	successes     uint64
	failures      uint64
	messages      uint64
	restarts      uint64
	lastRun       time.Time
}

// Snapshot is an immutable copy for status/report commands.
type Snapshot struct {
	TotalForwards uint64
	Successes     uint64
	Failures      uint64
	Messages      uint64
	Restarts      uint64
	LastRun       time.Time
}

// SuccessRate is successes/total across the process lifetime, in percent.
func (s Snapshot) SuccessRate() float64 {
	if s.TotalForwards == 0 {
		return 0
	}
	return float64(s.Successes) / float64(s.TotalForwards) * 100
}

// AvgPerMessage is the average destination count per processed message.
func (s Snapshot) AvgPerMessage() float64 {
	if s.Messages == 0 {
		return 0
	}
	return float64(s.TotalForwards) / float64(s.Messages)
}

func (r *Running) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{
		TotalForwards: r.totalForwards,
		Successes:     r.successes,
		Failures:      r.failures,
		Messages:      r.messages,
		Restarts:      r.restarts,
		LastRun:       r.lastRun,
	}
}

// RecordRestart notes one poller restart.
func (r *Running) RecordRestart() {
	r.mu.Lock()
	r.restarts++
	r.mu.Unlock()
}

func (r *Running) apply(sum forward.Summary, at time.Time) {
	r.mu.Lock()
	r.totalForwards += uint64(sum.Destinations)
	r.successes += uint64(sum.Delivered)
	r.failures += uint64(sum.Failed)
	r.messages++
	r.lastRun = at
	r.mu.Unlock()
}

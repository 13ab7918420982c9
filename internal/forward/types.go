package forward

import (
	"context"
	"time"
)

// Tuning bounds. Batch size is clamped rather than rejected when it comes
// from config; the /setbatch command rejects out-of-range values instead.
const (
	DefaultBatchSize = 20
	MinBatchSize     = 1
	MaxBatchSize     = 50

	DefaultAttempts = 5
	DefaultPacing   = time.Second
)

// Destination is one target channel from the registry snapshot.
// Identity is the opaque platform id.
type Destination struct {
	ID   string
	Name string
}

type Status int

const (
	Delivered Status = iota
	PermanentFailure
	ExhaustedRetries
)

func (s Status) String() string {
	switch s {
	case Delivered:
		return "delivered"
	case PermanentFailure:
		return "permanent_failure"
	case ExhaustedRetries:
		return "exhausted_retries"
	default:
		return "unknown"
	}
}

// Outcome is the terminal per-destination result. Copier failures never
// surface as errors; they are folded into one of these.
type Outcome struct {
	Destination string
	Status      Status
	Reason      string
	Attempts    int
}

func (o Outcome) OK() bool { return o.Status == Delivered }

// Summary aggregates one forwarding run. Per-destination outcomes are not
// retained beyond the counters here.
type Summary struct {
	Kind         ContentKind
	Destinations int
	Delivered    int
	Failed       int
	StartedAt    time.Time
	Duration     time.Duration
}

// FailureRate is failed/destinations, 0 when the snapshot was empty.
func (s Summary) FailureRate() float64 {
	if s.Destinations == 0 {
		return 0
	}
	return float64(s.Failed) / float64(s.Destinations)
}

// CopiesPerSecond is a throughput figure for run logging.
func (s Summary) CopiesPerSecond() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return float64(s.Destinations) / s.Duration.Seconds()
}

// Recorder receives delivery confirmations. Implemented by the channel
// registry; only successful copies are recorded.
type Recorder interface {
	RecordDelivery(ctx context.Context, id string, at time.Time) error
}

// sleeper abstracts retry/pacing sleeps so tests can run on fake time.
// It returns early with ctx.Err() when the context is cancelled.
type sleeper func(ctx context.Context, d time.Duration) error

func sleepFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

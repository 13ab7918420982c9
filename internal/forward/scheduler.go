package forward

import (
	"context"
	"sync"
	"time"

	"relaybot/internal/transport"
	"relaybot/pkg/logx"
)

// CopyRunner is what the scheduler drives; *Copier in production,
// fakes in tests.
type CopyRunner interface {
	Copy(ctx context.Context, msg *transport.Message, dest Destination) Outcome
}

// Plan partitions the destination snapshot into consecutive groups of at
// most size members. The concatenation of the groups is exactly the input:
// no loss, no duplication, no reordering. The last group may be smaller.
func Plan(dests []Destination, size int) [][]Destination {
	if size < MinBatchSize {
		size = MinBatchSize
	}
	if len(dests) == 0 {
		return nil
	}
	groups := make([][]Destination, 0, (len(dests)+size-1)/size)
	for i := 0; i < len(dests); i += size {
		end := i + size
		if end > len(dests) {
			end = len(dests)
		}
		groups = append(groups, dests[i:end])
	}
	return groups
}

// Scheduler fans one message out to the destination snapshot: batches of
// bounded size run with internal concurrency, batches themselves run in
// snapshot order with a fixed pacing delay between them.
type Scheduler struct {
	copier CopyRunner
	log    logx.Logger

	mu        sync.Mutex
	batchSize int

	pacing time.Duration
	sleep  sleeper
	now    func() time.Time
}

func NewScheduler(copier CopyRunner, batchSize int, pacing time.Duration, log logx.Logger) *Scheduler {
	if pacing <= 0 {
		pacing = DefaultPacing
	}
	return &Scheduler{
		copier:    copier,
		log:       log,
		batchSize: clampBatchSize(batchSize),
		pacing:    pacing,
		sleep:     sleepFor,
		now:       time.Now,
	}
}

func clampBatchSize(n int) int {
	switch {
	case n <= 0:
		return DefaultBatchSize
	case n < MinBatchSize:
		return MinBatchSize
	case n > MaxBatchSize:
		return MaxBatchSize
	default:
		return n
	}
}

// BatchSize reports the current batch size. Safe for concurrent use.
func (s *Scheduler) BatchSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batchSize
}

// SetBatchSize applies a new batch size and returns the value in effect.
// Out-of-range values are clamped to [MinBatchSize, MaxBatchSize].
func (s *Scheduler) SetBatchSize(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batchSize = clampBatchSize(n)
	return s.batchSize
}

// Run copies msg to every destination and reports the aggregate. A run
// never aborts on destination failures; an empty snapshot is a no-op
// summary, not an error. One destination's retry stalls never delay its
// batch siblings, only the batch join.
func (s *Scheduler) Run(ctx context.Context, msg *transport.Message, dests []Destination) Summary {
	start := s.now()
	sum := Summary{
		Kind:         Classify(msg),
		Destinations: len(dests),
		StartedAt:    start,
	}
	if len(dests) == 0 {
		return sum
	}

	groups := Plan(dests, s.BatchSize())
	for i, group := range groups {
		outcomes := make([]Outcome, len(group))
		var wg sync.WaitGroup
		wg.Add(len(group))
		for j, dest := range group {
			go func(j int, dest Destination) {
				defer wg.Done()
				outcomes[j] = s.copier.Copy(ctx, msg, dest)
			}(j, dest)
		}
		wg.Wait()

		batchOK := 0
		for _, o := range outcomes {
			if o.OK() {
				batchOK++
			}
		}
		sum.Delivered += batchOK
		sum.Failed += len(group) - batchOK

		s.log.Info("batch done",
			logx.Int("batch", i+1),
			logx.Int("batches", len(groups)),
			logx.Int("ok", batchOK),
			logx.Int("failed", len(group)-batchOK))

		// Pace between batches, not after the last one.
		if i < len(groups)-1 {
			if err := s.sleep(ctx, s.pacing); err != nil {
				s.log.Warn("pacing interrupted", logx.Err(err))
			}
		}
	}

	sum.Duration = s.now().Sub(start)
	return sum
}

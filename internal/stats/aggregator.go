package stats

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"relaybot/internal/forward"
	"relaybot/pkg/logx"
)

// DefaultAlertThreshold is the failure-rate above which the operator is paged.
const DefaultAlertThreshold = 0.30

// Notifier delivers operator alerts. Satisfied by the transport adapter.
type Notifier interface {
	Reply(ctx context.Context, chatID int64, text string) error
}

// Alert describes one high-failure-rate run.
type Alert struct {
	MessageIndex uint64
	Destinations int
	Delivered    int
	Failed       int
	FailureRate  float64
	Duration     time.Duration
}

// Text renders the operator notification.
func (a Alert) Text() string {
	return fmt.Sprintf(
		"HIGH FAILURE RATE ALERT\n\n"+
			"Message #%d\n"+
			"Successful: %d/%d\n"+
			"Failed: %d\n"+
			"Failure rate: %.1f%%\n"+
			"Duration: %.2fs\n\n"+
			"Check logs for details.",
		a.MessageIndex, a.Delivered, a.Destinations, a.Failed,
		a.FailureRate*100, a.Duration.Seconds())
}

// Aggregator folds run summaries into the running counters and pages the
// operator when a run's failure rate crosses the threshold.
type Aggregator struct {
	running   *Running
	threshold float64
	operator  atomic.Int64
	notifier  Notifier
	log       logx.Logger
	now       func() time.Time
}

// NewAggregator wires the end-of-run sink. operator == 0 disables alerting.
func NewAggregator(running *Running, operator int64, threshold float64, notifier Notifier, log logx.Logger) *Aggregator {
	if threshold <= 0 {
		threshold = DefaultAlertThreshold
	}
	a := &Aggregator{
		running:   running,
		threshold: threshold,
		notifier:  notifier,
		log:       log,
		now:       time.Now,
	}
	a.operator.Store(operator)
	return a
}

// SetOperator repoints alert delivery; zero disables it. Safe to call while
// runs are finalizing.
func (a *Aggregator) SetOperator(id int64) { a.operator.Store(id) }

// Finalize applies one run to the running counters and returns the alert
// it raised, if any. Alert delivery is best-effort: a failed notification
// is logged and never fails the run.
func (a *Aggregator) Finalize(ctx context.Context, sum forward.Summary) *Alert {
	a.running.apply(sum, a.now())
	snap := a.running.Snapshot()

	rate := sum.FailureRate()
	if sum.Destinations == 0 || rate <= a.threshold {
		return nil
	}

	alert := &Alert{
		MessageIndex: snap.Messages,
		Destinations: sum.Destinations,
		Delivered:    sum.Delivered,
		Failed:       sum.Failed,
		FailureRate:  rate,
		Duration:     sum.Duration,
	}
	a.log.Warn("failure rate above threshold",
		logx.Uint64("message", alert.MessageIndex),
		logx.Int("failed", alert.Failed),
		logx.Int("total", alert.Destinations),
		logx.Float64("rate", rate))

	operator := a.operator.Load()
	if operator == 0 || a.notifier == nil {
		return alert
	}
	if err := a.notifier.Reply(ctx, operator, alert.Text()); err != nil {
		a.log.Error("operator alert not delivered", logx.Int64("operator", operator), logx.Err(err))
	}
	return alert
}

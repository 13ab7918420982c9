package stats

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"relaybot/internal/forward"
	"relaybot/pkg/logx"
)

type fakeNotifier struct {
	sent []string
	to   []int64
	err  error
}

func (f *fakeNotifier) Reply(_ context.Context, chatID int64, text string) error {
	if f.err != nil {
		return f.err
	}
	f.to = append(f.to, chatID)
	f.sent = append(f.sent, text)
	return nil
}

func summary(total, failed int) forward.Summary {
	return forward.Summary{
		Kind:         forward.KindText,
		Destinations: total,
		Delivered:    total - failed,
		Failed:       failed,
		Duration:     1500 * time.Millisecond,
	}
}

func TestFinalizeAccumulatesCounters(t *testing.T) {
	t.Parallel()
	running := &Running{}
	agg := NewAggregator(running, 0, 0, nil, logx.Nop())

	agg.Finalize(context.Background(), summary(10, 2))
	agg.Finalize(context.Background(), summary(5, 0))

	snap := running.Snapshot()
	if snap.TotalForwards != 15 || snap.Successes != 13 || snap.Failures != 2 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if snap.Messages != 2 {
		t.Fatalf("messages = %d, want 2", snap.Messages)
	}
	if snap.LastRun.IsZero() {
		t.Fatal("last run not stamped")
	}
}

func TestFinalizeAlertThreshold(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		total     int
		failed    int
		wantAlert bool
	}{
		{name: "above threshold", total: 10, failed: 4, wantAlert: true},
		{name: "at threshold", total: 10, failed: 3, wantAlert: false},
		{name: "below threshold", total: 10, failed: 1, wantAlert: false},
		{name: "zero destinations", total: 0, failed: 0, wantAlert: false},
		{name: "all failed", total: 5, failed: 5, wantAlert: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			nf := &fakeNotifier{}
			agg := NewAggregator(&Running{}, 42, 0, nf, logx.Nop())

			alert := agg.Finalize(context.Background(), summary(tt.total, tt.failed))
			if (alert != nil) != tt.wantAlert {
				t.Fatalf("alert = %v, wantAlert = %v", alert, tt.wantAlert)
			}
			if tt.wantAlert {
				if len(nf.sent) != 1 {
					t.Fatalf("notifications = %d, want 1", len(nf.sent))
				}
				if nf.to[0] != 42 {
					t.Fatalf("notified %d, want 42", nf.to[0])
				}
				if !strings.Contains(nf.sent[0], "HIGH FAILURE RATE") {
					t.Fatalf("unexpected alert text: %q", nf.sent[0])
				}
			} else if len(nf.sent) != 0 {
				t.Fatalf("unexpected notifications: %v", nf.sent)
			}
		})
	}
}

func TestFinalizeAlertDeliveryFailureIsSwallowed(t *testing.T) {
	t.Parallel()
	nf := &fakeNotifier{err: errors.New("network down")}
	running := &Running{}
	agg := NewAggregator(running, 42, 0, nf, logx.Nop())

	alert := agg.Finalize(context.Background(), summary(10, 9))
	if alert == nil {
		t.Fatal("alert expected despite delivery failure")
	}
	// Counters still applied.
	if snap := running.Snapshot(); snap.Failures != 9 {
		t.Fatalf("failures = %d, want 9", snap.Failures)
	}
}

func TestSnapshotDerivedRates(t *testing.T) {
	t.Parallel()
	s := Snapshot{TotalForwards: 40, Successes: 30, Messages: 4}
	if got := s.SuccessRate(); got != 75 {
		t.Fatalf("success rate = %v, want 75", got)
	}
	if got := s.AvgPerMessage(); got != 10 {
		t.Fatalf("avg per message = %v, want 10", got)
	}
	var zero Snapshot
	if zero.SuccessRate() != 0 || zero.AvgPerMessage() != 0 {
		t.Fatal("zero snapshot must derive zero rates")
	}
}

func TestRecordRestart(t *testing.T) {
	t.Parallel()
	r := &Running{}
	r.RecordRestart()
	r.RecordRestart()
	if got := r.Snapshot().Restarts; got != 2 {
		t.Fatalf("restarts = %d, want 2", got)
	}
}

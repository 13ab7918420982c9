package bot

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"relaybot/internal/config"
	"relaybot/internal/forward"
	"relaybot/internal/registry"
	"relaybot/internal/stats"
	"relaybot/internal/transport"
	"relaybot/pkg/logx"
)

type fakeReplier struct {
	to   []int64
	sent []string
}

func (f *fakeReplier) Reply(_ context.Context, chatID int64, text string) error {
	f.to = append(f.to, chatID)
	f.sent = append(f.sent, text)
	return nil
}

type okCopier struct{}

func (okCopier) Copy(_ context.Context, _ *transport.Message, dest forward.Destination) forward.Outcome {
	return forward.Outcome{Destination: dest.ID, Status: forward.Delivered, Attempts: 1}
}

const testAdmin = int64(99)

func newTestApp(t *testing.T) (*App, *fakeReplier) {
	t.Helper()
	reg, err := registry.Open(registry.Config{
		Path: filepath.Join(t.TempDir(), "channels.db"),
	}, logx.Nop())
	if err != nil {
		t.Fatalf("open registry: %v", err)
	}
	t.Cleanup(func() { _ = reg.Close() })

	replier := &fakeReplier{}
	running := &stats.Running{}
	a := &App{
		cfgMgr:  config.NewManager(filepath.Join(t.TempDir(), "missing.json")),
		log:     logx.Nop(),
		replier: replier,
		reg:     reg,
		sched:   forward.NewScheduler(okCopier{}, 0, time.Millisecond, logx.Nop()),
		running: running,
		agg:     stats.NewAggregator(running, 0, 0, nil, logx.Nop()),
	}
	a.admin.Store(testAdmin)
	return a, replier
}

func adminMsg(text string) *transport.Message {
	return &transport.Message{ChatID: testAdmin, FromID: testAdmin, Text: text}
}

func TestParseCommand(t *testing.T) {
	t.Parallel()
	tests := []struct {
		text     string
		wantName string
		wantArgs []string
	}{
		{"/start", "start", nil},
		{"/addchannel -1001 My Channel", "addchannel", []string{"-1001", "My", "Channel"}},
		{"/STATS", "stats", nil},
		{"/setbatch@relay_bot 10", "setbatch", []string{"10"}},
		{"  /reload  ", "reload", nil},
		{"hello there", "", nil},
		{"/", "", nil},
		{"", "", nil},
	}
	for _, tt := range tests {
		name, args := parseCommand(tt.text)
		if name != tt.wantName {
			t.Errorf("parseCommand(%q) name = %q, want %q", tt.text, name, tt.wantName)
		}
		if len(args) != len(tt.wantArgs) {
			t.Errorf("parseCommand(%q) args = %v, want %v", tt.text, args, tt.wantArgs)
			continue
		}
		for i := range args {
			if args[i] != tt.wantArgs[i] {
				t.Errorf("parseCommand(%q) args = %v, want %v", tt.text, args, tt.wantArgs)
				break
			}
		}
	}
}

func TestHandleCommandIgnoresNonAdmin(t *testing.T) {
	t.Parallel()
	a, replier := newTestApp(t)

	a.handleCommand(context.Background(), &transport.Message{ChatID: 5, FromID: 5, Text: "/stats"})
	if len(replier.sent) != 0 {
		t.Fatalf("non-admin got a reply: %v", replier.sent)
	}

	a.admin.Store(0)
	a.handleCommand(context.Background(), adminMsg("/stats"))
	if len(replier.sent) != 0 {
		t.Fatalf("disabled admin surface still replied: %v", replier.sent)
	}
}

func TestChannelLifecycleCommands(t *testing.T) {
	t.Parallel()
	a, replier := newTestApp(t)
	ctx := context.Background()

	a.handleCommand(ctx, adminMsg("/addchannel -1001000000001 My Channel"))
	if got := replier.sent[len(replier.sent)-1]; !strings.Contains(got, "added") {
		t.Fatalf("add reply = %q", got)
	}

	a.handleCommand(ctx, adminMsg("/listchannels"))
	got := replier.sent[len(replier.sent)-1]
	if !strings.Contains(got, "-1001000000001") || !strings.Contains(got, "My Channel") {
		t.Fatalf("list reply = %q", got)
	}

	a.handleCommand(ctx, adminMsg("/removechannel -1001000000001"))
	if got := replier.sent[len(replier.sent)-1]; !strings.Contains(got, "removed") {
		t.Fatalf("remove reply = %q", got)
	}

	a.handleCommand(ctx, adminMsg("/removechannel -1001000000001"))
	if got := replier.sent[len(replier.sent)-1]; !strings.Contains(got, "not registered") {
		t.Fatalf("second remove reply = %q", got)
	}
}

func TestAddChannelRejectsBadID(t *testing.T) {
	t.Parallel()
	a, replier := newTestApp(t)

	for _, text := range []string{"/addchannel", "/addchannel 12345", "/addchannel -99123"} {
		a.handleCommand(context.Background(), adminMsg(text))
		got := replier.sent[len(replier.sent)-1]
		if strings.Contains(got, "added") {
			t.Fatalf("%q was accepted: %q", text, got)
		}
	}

	if n, _ := a.reg.CountActive(context.Background()); n != 0 {
		t.Fatalf("registry not empty after rejected adds: %d", n)
	}
}

func TestSetBatchCommand(t *testing.T) {
	t.Parallel()
	a, replier := newTestApp(t)
	ctx := context.Background()

	a.handleCommand(ctx, adminMsg("/setbatch 12"))
	if got := replier.sent[len(replier.sent)-1]; !strings.Contains(got, "12") {
		t.Fatalf("setbatch reply = %q", got)
	}
	if got := a.sched.BatchSize(); got != 12 {
		t.Fatalf("batch size = %d, want 12", got)
	}

	for _, text := range []string{"/setbatch 0", "/setbatch 51", "/setbatch abc", "/setbatch"} {
		a.handleCommand(ctx, adminMsg(text))
		if got := a.sched.BatchSize(); got != 12 {
			t.Fatalf("%q changed batch size to %d", text, got)
		}
	}
}

func TestStatsCommand(t *testing.T) {
	t.Parallel()
	a, replier := newTestApp(t)
	ctx := context.Background()

	a.handleCommand(ctx, adminMsg("/addchannel -1001000000001"))
	a.handleCommand(ctx, adminMsg("/stats"))
	got := replier.sent[len(replier.sent)-1]
	if !strings.Contains(got, "Active channels: 1") {
		t.Fatalf("stats reply = %q", got)
	}
	if !strings.Contains(got, "Last run: never") {
		t.Fatalf("stats reply = %q", got)
	}
}

func TestTestCommand(t *testing.T) {
	t.Parallel()
	a, replier := newTestApp(t)
	ctx := context.Background()

	a.handleCommand(ctx, adminMsg("/test"))
	if got := replier.sent[len(replier.sent)-1]; !strings.Contains(got, "No active channels") {
		t.Fatalf("empty test reply = %q", got)
	}

	a.handleCommand(ctx, adminMsg("/addchannel -1001000000001"))
	a.handleCommand(ctx, adminMsg("/test"))
	if got := replier.sent[len(replier.sent)-1]; !strings.Contains(got, "1/1") {
		t.Fatalf("test reply = %q", got)
	}

	if snap := a.running.Snapshot(); snap.Messages != 1 || snap.Successes != 1 {
		t.Fatalf("test run not counted: %+v", snap)
	}
}

func TestUnknownCommand(t *testing.T) {
	t.Parallel()
	a, replier := newTestApp(t)

	a.handleCommand(context.Background(), adminMsg("/frobnicate"))
	if got := replier.sent[len(replier.sent)-1]; !strings.Contains(got, "Unknown command") {
		t.Fatalf("reply = %q", got)
	}
}

func TestFormatChannelsCap(t *testing.T) {
	t.Parallel()
	var all []registry.Channel
	for i := 0; i < listChannelsCap+5; i++ {
		all = append(all, registry.Channel{
			ID:     fmt.Sprintf("-100%010d", i),
			Active: true,
		})
	}
	got := formatChannels(all)
	if !strings.Contains(got, "... and 5 more") {
		t.Fatalf("cap line missing:\n%s", got)
	}
	if !strings.Contains(got, fmt.Sprintf("Active channels (%d)", listChannelsCap+5)) {
		t.Fatalf("total missing:\n%s", got)
	}
}

func TestFormatExport(t *testing.T) {
	t.Parallel()
	got := formatExport([]registry.Channel{
		{ID: "-1001", Name: "Daily News", Active: true, TotalForwards: 7},
		{ID: "-1002", Active: true},
		{ID: "-1003", Active: false},
	})
	if !strings.Contains(got, "/addchannel -1001 Daily News") {
		t.Fatalf("export = %q", got)
	}
	if !strings.Contains(got, "/addchannel -1002") {
		t.Fatalf("export = %q", got)
	}
	// Deactivated channels stay out of the backup.
	if strings.Contains(got, "-1003") {
		t.Fatalf("export = %q", got)
	}

	if got := formatExport(nil); !strings.Contains(got, "No active channels") {
		t.Fatalf("empty export = %q", got)
	}
}

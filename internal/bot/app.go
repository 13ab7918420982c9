// Package bot assembles the forwarding pipeline: transport in, registry
// snapshot, batched fan-out, stats, alerting, and the admin command surface.
// One dispatch loop serializes runs, so a burst of source posts is processed
// strictly in arrival order.
package bot

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"relaybot/internal/config"
	"relaybot/internal/forward"
	"relaybot/internal/registry"
	"relaybot/internal/runtime/supervisor"
	"relaybot/internal/stats"
	"relaybot/internal/transport"
	"relaybot/internal/transport/telegram"
	"relaybot/pkg/logx"
)

const (
	// pollRestartCap bounds self-healing of the poll loop. Past this the
	// process exits and the host supervisor takes over.
	pollRestartCap = 10

	updateQueueSize = 64

	heartbeatSpec = "@every 5m"
)

type App struct {
	cfgMgr *config.Manager
	logSvc *logx.Service
	log    logx.Logger

	adapter transport.Adapter
	replier transport.Replier
	reg     *registry.Store
	copier  *forward.Copier
	sched   *forward.Scheduler
	running *stats.Running
	agg     *stats.Aggregator
	cron    *cron.Cron

	sup     *supervisor.Supervisor
	updates chan transport.Update
	cfgSub  chan *config.Config

	source atomic.Int64
	admin  atomic.Int64
}

func New(cfgPath string) (*App, error) {
	cfgMgr := config.NewManager(cfgPath)
	cfg, err := cfgMgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File:    logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: cfg.Logging.File.Path},
	})
	cfgMgr.SetLogger(log.With(logx.String("comp", "config")))

	reg, err := registry.Open(registry.Config{
		Path:        cfg.Registry.Path,
		BusyTimeout: cfg.BusyTimeoutOrDefault(),
	}, log.With(logx.String("comp", "registry")))
	if err != nil {
		_ = logSvc.Close()
		return nil, fmt.Errorf("open registry: %w", err)
	}

	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: cfg.PollTimeoutOrDefault(),
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		_ = reg.Close()
		_ = logSvc.Close()
		return nil, fmt.Errorf("telegram adapter: %w", err)
	}

	copier := forward.NewCopier(adapter, reg, forward.CopierOptions{
		Attempts:   cfg.RetryMaxOrDefault(),
		RatePerSec: cfg.RatePerSecOrDefault(),
	}, log.With(logx.String("comp", "copier")))

	sched := forward.NewScheduler(copier, cfg.Forward.BatchSize, cfg.BatchDelayOrDefault(),
		log.With(logx.String("comp", "scheduler")))

	running := &stats.Running{}
	agg := stats.NewAggregator(running, cfg.Telegram.AdminID, cfg.AlertThresholdOrDefault(),
		adapter, log.With(logx.String("comp", "stats")))

	a := &App{
		cfgMgr:  cfgMgr,
		logSvc:  logSvc,
		log:     log.With(logx.String("comp", "bot")),
		adapter: adapter,
		replier: adapter,
		reg:     reg,
		copier:  copier,
		sched:   sched,
		running: running,
		agg:     agg,
		cron:    cron.New(),
		updates: make(chan transport.Update, updateQueueSize),
	}
	a.source.Store(cfg.Telegram.SourceChannel)
	a.admin.Store(cfg.Telegram.AdminID)
	return a, nil
}

func (a *App) Start(ctx context.Context) error {
	cfg := a.cfgMgr.Get()
	a.sup = supervisor.New(ctx, a.log.With(logx.String("comp", "supervisor")))

	a.importChannels(ctx, cfg.Forward.ImportChannels)

	a.sup.GoRestart("telegram.poll", func(c context.Context) error {
		return a.adapter.Start(c, a.updates)
	}, supervisor.RestartOptions{
		MinBackoff:  500 * time.Millisecond,
		MaxBackoff:  30 * time.Second,
		MaxRestarts: pollRestartCap,
		OnRestart: func(restarts int, cause error) {
			a.running.RecordRestart()
		},
	})

	a.sup.Go("dispatch", a.dispatch)
	a.sup.Go("config.watch", a.cfgMgr.Watch)

	a.cfgSub = a.cfgMgr.Subscribe(1)
	a.sup.Go("config.apply", func(c context.Context) error {
		for {
			select {
			case <-c.Done():
				return nil
			case cfg, ok := <-a.cfgSub:
				if !ok {
					return nil
				}
				a.applyConfig(cfg)
			}
		}
	})

	if _, err := a.cron.AddFunc(heartbeatSpec, a.heartbeat); err != nil {
		return fmt.Errorf("heartbeat schedule: %w", err)
	}
	a.cron.Start()

	a.log.Info("started",
		logx.Int64("source_channel", a.source.Load()),
		logx.Int("batch_size", a.sched.BatchSize()))
	return nil
}

// Wait blocks until the supervised goroutines finish, returning the first
// fatal error (e.g. poll restart budget exhausted).
func (a *App) Wait(ctx context.Context) error {
	return a.sup.Wait(ctx)
}

func (a *App) Stop(ctx context.Context) error {
	a.log.Info("stopping")

	cronCtx := a.cron.Stop()
	select {
	case <-cronCtx.Done():
	case <-ctx.Done():
	}

	_ = a.adapter.Stop(ctx)
	err := a.sup.Stop(ctx)

	a.cfgMgr.Unsubscribe(a.cfgSub)
	if cerr := a.reg.Close(); cerr != nil && err == nil {
		err = cerr
	}
	_ = a.logSvc.Close()
	return err
}

// dispatch is the single consumer of inbound updates and therefore the
// serialization point: posts fan out one at a time, in arrival order.
func (a *App) dispatch(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case up := <-a.updates:
			if up.Message == nil {
				continue
			}
			switch up.Kind {
			case transport.UpdateChannelPost:
				a.handlePost(ctx, up.Message)
			case transport.UpdateCommand:
				a.handleCommand(ctx, up.Message)
			}
		}
	}
}

func (a *App) handlePost(ctx context.Context, msg *transport.Message) {
	if msg.ChatID != a.source.Load() {
		a.log.Debug("post from non-source channel ignored", logx.Int64("chat", msg.ChatID))
		return
	}
	if forward.Classify(msg) == forward.KindUnsupported {
		a.log.Warn("unsupported post skipped", logx.Int("message", msg.ID))
		return
	}
	a.runForward(ctx, msg)
}

// runForward executes one complete fan-out run: snapshot, batched copies,
// counter finalization, and the summary log line.
func (a *App) runForward(ctx context.Context, msg *transport.Message) forward.Summary {
	dests, err := a.reg.ListActive(ctx)
	if err != nil {
		a.log.Error("registry snapshot failed; post not forwarded", logx.Err(err))
		return forward.Summary{}
	}
	if len(dests) == 0 {
		a.log.Warn("no active channels; post not forwarded", logx.Int("message", msg.ID))
		return forward.Summary{}
	}

	sum := a.sched.Run(ctx, msg, dests)
	a.agg.Finalize(ctx, sum)

	a.log.Info("fan-out complete",
		logx.String("kind", sum.Kind.String()),
		logx.Int("destinations", sum.Destinations),
		logx.Int("delivered", sum.Delivered),
		logx.Int("failed", sum.Failed),
		logx.Duration("duration", sum.Duration),
		logx.Float64("copies_per_sec", sum.CopiesPerSecond()))
	return sum
}

// importChannels seeds the registry from config. Errors are logged per id;
// a bad entry never blocks startup.
func (a *App) importChannels(ctx context.Context, ids []string) {
	if len(ids) == 0 {
		return
	}
	added := 0
	for _, id := range ids {
		if err := a.reg.Add(ctx, id, ""); err != nil {
			a.log.Warn("channel import failed", logx.String("channel", id), logx.Err(err))
			continue
		}
		added++
	}
	a.log.Info("channels imported", logx.Int("count", added), logx.Int("requested", len(ids)))
}

// applyConfig handles a hot reload. Token and registry path changes need a
// restart; everything else takes effect immediately.
func (a *App) applyConfig(cfg *config.Config) {
	a.logSvc.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File:    logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: cfg.Logging.File.Path},
	})
	if cfg.Forward.BatchSize > 0 {
		a.sched.SetBatchSize(cfg.Forward.BatchSize)
	}
	a.source.Store(cfg.Telegram.SourceChannel)
	a.admin.Store(cfg.Telegram.AdminID)
	a.agg.SetOperator(cfg.Telegram.AdminID)

	a.log.Info("config applied",
		logx.Int("batch_size", a.sched.BatchSize()),
		logx.Int64("source_channel", cfg.Telegram.SourceChannel))
}

func (a *App) heartbeat() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	active, err := a.reg.CountActive(ctx)
	if err != nil {
		a.log.Warn("heartbeat count failed", logx.Err(err))
	}
	snap := a.running.Snapshot()
	a.log.Info("heartbeat",
		logx.Int("active_channels", active),
		logx.Uint64("messages", snap.Messages),
		logx.Uint64("delivered", snap.Successes),
		logx.Uint64("failed", snap.Failures),
		logx.Uint64("restarts", snap.Restarts))
}

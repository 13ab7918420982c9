// Package supervisor manages the process's long-running goroutines: named
// starts, panic recovery, and restart-with-backoff loops. It is process
// orchestration, deliberately outside the forwarding engine's contract.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"runtime/debug"
	"sync"
	"time"

	"relaybot/pkg/logx"
)

type Supervisor struct {
	ctx    context.Context
	cancel context.CancelFunc
	log    logx.Logger

	wg       sync.WaitGroup
	doneOnce sync.Once
	doneCh   chan struct{}

	errOnce  sync.Once
	firstErr error
	errMu    sync.Mutex
}

func New(parent context.Context, log logx.Logger) *Supervisor {
	ctx, cancel := context.WithCancel(parent)
	return &Supervisor{
		ctx:    ctx,
		cancel: cancel,
		log:    log,
		doneCh: make(chan struct{}),
	}
}

func (s *Supervisor) Context() context.Context { return s.ctx }

func (s *Supervisor) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.firstErr
}

func (s *Supervisor) setErr(err error) {
	if err == nil {
		return
	}
	s.errOnce.Do(func() {
		s.errMu.Lock()
		s.firstErr = err
		s.errMu.Unlock()
	})
}

// Go runs fn once under the supervisor context with panic recovery.
func (s *Supervisor) Go(name string, fn func(ctx context.Context) error) {
	if fn == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				err := fmt.Errorf("panic in %s: %v", name, r)
				s.log.Error("goroutine panicked",
					logx.String("name", name),
					logx.Any("panic", r),
					logx.String("stack", string(debug.Stack())))
				s.setErr(err)
			}
		}()

		s.log.Debug("goroutine started", logx.String("name", name))
		if err := fn(s.ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.setErr(fmt.Errorf("%s: %w", name, err))
		}
		s.log.Debug("goroutine stopped", logx.String("name", name))
	}()
}

// RestartOptions tunes GoRestart.
type RestartOptions struct {
	// MinBackoff/MaxBackoff bound the jittered exponential wait between
	// restarts. Zero values pick 250ms / 30s.
	MinBackoff time.Duration
	MaxBackoff time.Duration
	// MaxRestarts gives up after this many restarts (<=0 means unlimited).
	// The initial run is not counted.
	MaxRestarts int
	// OnRestart is invoked before every restart (restart bookkeeping).
	OnRestart func(restarts int, cause error)
}

// GoRestart runs fn and restarts it on error, panic, or unexpected clean
// exit, with jittered exponential backoff, until the supervisor context is
// cancelled or MaxRestarts is exceeded. Intended for the polling loop and
// other self-healing long-runners.
func (s *Supervisor) GoRestart(name string, fn func(ctx context.Context) error, opt RestartOptions) {
	if fn == nil {
		return
	}
	if opt.MinBackoff <= 0 {
		opt.MinBackoff = 250 * time.Millisecond
	}
	if opt.MaxBackoff < opt.MinBackoff {
		opt.MaxBackoff = 30 * time.Second
	}

	s.Go(name+".restart", func(ctx context.Context) error {
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		backoff := opt.MinBackoff
		restarts := 0

		for {
			if ctx.Err() != nil {
				return nil
			}

			startedAt := time.Now()
			err := runRecovered(ctx, fn)

			// Shutdown in progress: any exit is a clean stop.
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			if err == nil {
				err = errors.New("exited unexpectedly")
			}

			// A long healthy run resets the backoff window so rare
			// failures don't pay old debts.
			if time.Since(startedAt) >= 30*time.Second {
				backoff = opt.MinBackoff
			}

			restarts++
			if opt.MaxRestarts > 0 && restarts > opt.MaxRestarts {
				s.log.Error("giving up after restarts",
					logx.String("name", name),
					logx.Int("restarts", restarts-1),
					logx.Err(err))
				s.cancel()
				return fmt.Errorf("%s: restart budget exhausted: %w", name, err)
			}
			if opt.OnRestart != nil {
				opt.OnRestart(restarts, err)
			}

			// 20% jitter on top of the exponential wait.
			wait := backoff
			if j := int64(wait) / 5; j > 0 {
				wait += time.Duration(rng.Int63n(j + 1))
			}
			s.log.Warn("restarting",
				logx.String("name", name),
				logx.Int("restart", restarts),
				logx.Duration("backoff", wait),
				logx.Err(err))

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(wait):
			}

			backoff *= 2
			if backoff > opt.MaxBackoff {
				backoff = opt.MaxBackoff
			}
		}
	})
}

func runRecovered(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return fn(ctx)
}

// Stop cancels the supervisor context and waits for all goroutines.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.cancel()
	return s.Wait(ctx)
}

func (s *Supervisor) Wait(ctx context.Context) error {
	s.doneOnce.Do(func() {
		go func() {
			s.wg.Wait()
			close(s.doneCh)
		}()
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.doneCh:
		return s.Err()
	}
}

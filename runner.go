package tickflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// HostLoop drives an Engine from a time.Ticker for hosts that do not have
// their own frame loop, and for development and tests.
//
// Typical usage:
//
//	loop := tickflow.NewHostLoop(eng, cfg, logger)
//	_ = loop.Start(ctx)
//	out, err := tickflow.RunWithOutput[int](eng, "m", "w").Await(ctx)
//	loop.Stop()
//
// When cfg.ExternalIsolatedHost is set the loop also runs a second
// goroutine that calls TickIsolated on the same interval, standing in for
// a host's isolated context.
type HostLoop struct {
	Engine Engine

	interval time.Duration
	isolated bool
	logger   *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
	done    chan struct{}
	err     error
}

// NewHostLoop creates a loop ticking eng every cfg.TickInterval. A nil
// logger means slog.Default().
func NewHostLoop(eng Engine, cfg Config, logger *slog.Logger) *HostLoop {
	if logger == nil {
		logger = slog.Default()
	}
	interval := cfg.TickInterval
	if interval <= 0 {
		interval = DefaultConfig().TickInterval
	}
	return &HostLoop{
		Engine:   eng,
		interval: interval,
		isolated: cfg.ExternalIsolatedHost,
		logger:   logger,
	}
}

// Start launches the tick goroutine. It returns an error if the loop is
// already running. A loop that has exited, whether by Stop, parent
// cancellation or a fatal engine error, may be started again.
func (l *HostLoop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return errors.New("tickflow: HostLoop already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.running = true
	l.done = make(chan struct{})
	l.err = nil

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		l.run(ctx, cancel)
	}()

	if l.isolated {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.runIsolated(ctx)
		}()
	}

	done := l.done
	go func() {
		wg.Wait()
		cancel()
		l.mu.Lock()
		if l.done == done {
			l.running = false
			l.cancel = nil
		}
		l.mu.Unlock()
		close(done)
	}()

	return nil
}

func (l *HostLoop) run(ctx context.Context, stop context.CancelFunc) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		err := l.Engine.Tick(ctx)
		if err == nil {
			continue
		}
		if errors.Is(err, ErrEngineClosed) {
			l.logger.Info("host loop stopping: engine closed")
			stop()
			return
		}

		// Only structural failures come back from Tick; they are not
		// recoverable by ticking again.
		l.logger.Error("host loop stopping on fatal engine error",
			slog.Uint64("tick", l.Engine.CurrentTick()),
			slog.Any("error", err),
		)
		l.mu.Lock()
		l.err = err
		l.mu.Unlock()
		stop()
		return
	}
}

func (l *HostLoop) runIsolated(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if err := l.Engine.TickIsolated(ctx); err != nil {
			return
		}
	}
}

// Stop cancels the loop goroutines and waits for them to exit.
func (l *HostLoop) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	cancel, done := l.cancel, l.done
	l.mu.Unlock()

	cancel()
	<-done
}

// Wait blocks until the loop exits, by Stop, parent cancellation or a fatal
// engine error, and returns that fatal error, if any. It returns nil
// immediately if the loop was never started.
func (l *HostLoop) Wait() error {
	l.mu.Lock()
	done := l.done
	l.mu.Unlock()
	if done != nil {
		<-done
	}
	return l.Err()
}

// Err returns the fatal engine error that stopped the loop, if any.
func (l *HostLoop) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

package worker

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Config controls the off-thread pool.
type Config struct {
	// Concurrency is the maximum number of task bodies running at once.
	// Values <= 0 are treated as 1.
	Concurrency int
}

// Pool runs off-thread stage bodies on a bounded set of goroutines.
//
// The tick thread never blocks on the pool: TrySubmit refuses work when
// every slot is busy and the caller keeps the task for a later tick.
type Pool struct {
	group  *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger

	active atomic.Int64

	mu      sync.Mutex
	stopped bool
}

// New creates a pool. Task bodies receive a context derived from ctx that
// is cancelled by Stop.
func New(ctx context.Context, cfg Config, logger *slog.Logger) *Pool {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(ctx)
	g := &errgroup.Group{}
	g.SetLimit(cfg.Concurrency)

	return &Pool{
		group:  g,
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

// TrySubmit starts fn on a free worker. It returns false, without running
// fn, when the pool is saturated or stopped.
func (p *Pool) TrySubmit(fn func(ctx context.Context)) bool {
	p.mu.Lock()
	stopped := p.stopped
	p.mu.Unlock()
	if stopped {
		return false
	}

	return p.group.TryGo(func() error {
		p.active.Add(1)
		defer p.active.Add(-1)
		fn(p.ctx)
		return nil
	})
}

// Active returns the number of task bodies currently running.
func (p *Pool) Active() int {
	return int(p.active.Load())
}

// Stop cancels the task context and waits for running bodies to return,
// or for ctx to expire. Stop is idempotent.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	p.mu.Unlock()

	p.cancel()

	done := make(chan struct{})
	go func() {
		_ = p.group.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		p.logger.Warn("worker pool stop timed out",
			slog.Int("active", p.Active()),
		)
		return ctx.Err()
	}
}

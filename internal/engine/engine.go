package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/petrijr/tickflow/internal/persistence"
	"github.com/petrijr/tickflow/internal/taskqueue"
	"github.com/petrijr/tickflow/pkg/api"
	"github.com/petrijr/tickflow/pkg/worker"
)

// engineImpl is the tick-driven engine. Tick and Close are serialized by
// tickMu; instance and retry state is guarded by mu so introspection can
// run from other goroutines; intake has its own lock so Request never
// waits for a tick.
type engineImpl struct {
	settings api.Config
	observer api.Observer
	events   persistence.EventStore
	logger   *slog.Logger

	registry *workflowRegistry
	queues   *taskqueue.Set
	relay    *relay
	isolated *isolatedDomain
	pool     *worker.Pool

	tickMu  sync.Mutex
	tick    atomic.Uint64
	current uint64 // tick being run; tick thread only

	mu        sync.RWMutex
	instances *instanceTable
	retries   []*retryRecord

	intakeMu sync.Mutex
	intake   []*request
	closed   atomic.Bool
}

// Config describes how to construct an engineImpl.
// External callers normally use the helpers in the tickflow package.
type Config struct {
	Settings api.Config
	Observer api.Observer
	Events   persistence.EventStore
	Logger   *slog.Logger
}

// NewInMemoryEngine creates an engine that keeps its history in memory.
func NewInMemoryEngine(settings api.Config) (api.Engine, error) {
	return NewEngineWithConfig(Config{
		Settings: settings,
		Events:   persistence.NewInMemoryEventStore(),
	})
}

// NewSQLiteEngine creates an engine that records history in db. The
// caller imports the driver and owns db.
func NewSQLiteEngine(settings api.Config, db *sql.DB) (api.Engine, error) {
	events, err := persistence.NewSQLiteEventStore(db)
	if err != nil {
		return nil, fmt.Errorf("init sqlite history: %w", err)
	}
	return NewEngineWithConfig(Config{
		Settings: settings,
		Events:   events,
	})
}

// NewRedisEngine creates an engine that records history in Redis lists.
func NewRedisEngine(settings api.Config, client *redis.Client) (api.Engine, error) {
	return NewEngineWithConfig(Config{
		Settings: settings,
		Events:   persistence.NewRedisEventStore(client, settings.RedisPrefix, 24*time.Hour),
	})
}

// NewEngineWithConfig creates a new Engine using the given configuration.
// Zero-valued settings take their defaults.
func NewEngineWithConfig(cfg Config) (api.Engine, error) {
	settings := withDefaults(cfg.Settings)
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	obs := cfg.Observer
	if obs == nil {
		obs = api.NoopObserver{}
	}
	events := cfg.Events
	if events == nil {
		events = persistence.NoopEventStore{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &engineImpl{
		settings:  settings,
		observer:  obs,
		events:    events,
		logger:    logger,
		registry:  newWorkflowRegistry(),
		queues:    taskqueue.NewSet(),
		relay:     newRelay(),
		isolated:  newIsolatedDomain(),
		pool:      worker.New(context.Background(), worker.Config{Concurrency: settings.OffThreadWorkers}, logger),
		instances: newInstanceTable(),
	}, nil
}

// withDefaults fills unset tunables. MaxAdmissionRetries is left alone:
// zero is meaningful there and rejects duplicates at intake.
func withDefaults(c api.Config) api.Config {
	def := api.DefaultConfig()
	if c.TicksPerStage == 0 {
		c.TicksPerStage = def.TicksPerStage
	}
	if c.OffThreadWorkers == 0 {
		c.OffThreadWorkers = def.OffThreadWorkers
	}
	if c.TickInterval == 0 {
		c.TickInterval = def.TickInterval
	}
	if c.History == "" {
		c.History = def.History
	}
	if c.RedisPrefix == "" {
		c.RedisPrefix = def.RedisPrefix
	}
	return c
}

func (e *engineImpl) RegisterModule(module string, defs ...api.WorkflowDefinition) error {
	if err := e.registry.RegisterModule(module, defs); err != nil {
		return err
	}
	e.logger.Info("module registered",
		slog.String("module", module),
		slog.Int("workflows", len(defs)),
	)
	return nil
}

func (e *engineImpl) Lookup(module, name string) *api.WorkflowDefinition {
	return e.registry.MustGet(api.Key{Module: module, Name: name})
}

func (e *engineImpl) Instance(module, name string) (*api.WorkflowInstance, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	inst, ok := e.instances.get(api.Key{Module: module, Name: name})
	if !ok {
		return nil, false
	}
	return inst.snapshot(), true
}

func (e *engineImpl) Instances() []*api.WorkflowInstance {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*api.WorkflowInstance, 0, e.instances.count())
	for _, inst := range e.instances.live() {
		out = append(out, inst.snapshot())
	}
	return out
}

func (e *engineImpl) History(ctx context.Context, instanceID string) ([]api.WorkflowEvent, error) {
	return e.events.ListEvents(ctx, instanceID)
}

func (e *engineImpl) CurrentTick() uint64 {
	return e.tick.Load()
}

func (e *engineImpl) QueueDepths() map[api.Domain]int {
	depths := e.queues.Depths()
	for d, n := range e.isolated.pending() {
		depths[d] += n
	}
	return depths
}

func (e *engineImpl) PendingRetries() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.retries)
}

// Close stops the worker pool and resolves every outstanding request with
// ErrEngineClosed. Results of off-thread work still running are dropped.
func (e *engineImpl) Close(ctx context.Context) error {
	e.intakeMu.Lock()
	if e.closed.Load() {
		e.intakeMu.Unlock()
		return nil
	}
	e.closed.Store(true)
	queued := e.intake
	e.intake = nil
	e.intakeMu.Unlock()

	e.tickMu.Lock()
	defer e.tickMu.Unlock()

	stopErr := e.pool.Stop(ctx)

	closed := api.Completion{Err: api.ErrEngineClosed}
	for _, req := range queued {
		req.pending.Resolve(closed)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, rec := range e.retries {
		rec.req.pending.Resolve(closed)
	}
	e.retries = nil

	// Live instances fail through the normal path so observers and history
	// see them leave.
	failCtx := context.WithoutCancel(ctx)
	for _, inst := range e.instances.live() {
		e.fail(failCtx, inst, api.ErrEngineClosed, api.EventWorkflowFailed)
	}

	e.logger.Info("engine closed", slog.Uint64("tick", e.tick.Load()))
	return stopErr
}

// record appends a history event. History is best effort: a failing store
// is logged and never fails the workflow.
func (e *engineImpl) record(ctx context.Context, ev api.WorkflowEvent) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	if err := e.events.AppendEvent(ctx, ev); err != nil {
		e.logger.Warn("history append failed",
			slog.String("instance_id", ev.InstanceID),
			slog.String("event", string(ev.Type)),
			slog.Any("error", err),
		)
	}
}

// recordInstance appends an event for inst at the tick being run.
func (e *engineImpl) recordInstance(ctx context.Context, inst *instance, typ api.EventType, detail string) {
	e.record(ctx, api.WorkflowEvent{
		InstanceID: inst.id,
		Tick:       e.current,
		Type:       typ,
		Module:     inst.key.Module,
		Workflow:   inst.key.Name,
		Stage:      inst.stage,
		Detail:     detail,
	})
}

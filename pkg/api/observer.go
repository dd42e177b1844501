package api

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// StageResult classifies what a stage reported back through the relay.
type StageResult string

const (
	ResultSetupDone StageResult = "setup-done"
	ResultWaiting   StageResult = "waiting"
	ResultCompleted StageResult = "completed"
	ResultFailed    StageResult = "failed"
)

// Observer receives callbacks from the engine for logging and metrics.
//
// All callbacks run on the tick thread. Implementations should be fast and
// non-blocking; heavy work should be done asynchronously so as not to
// stretch the host tick.
type Observer interface {
	// OnWorkflowAdmitted is called when a request becomes a live instance.
	OnWorkflowAdmitted(ctx context.Context, inst *WorkflowInstance)

	// OnWorkflowCompleted is called when the final stage completes.
	OnWorkflowCompleted(ctx context.Context, inst *WorkflowInstance)

	// OnWorkflowFailed is called when a stage fails or the instance is
	// force-failed by the timeout supervisor.
	OnWorkflowFailed(ctx context.Context, inst *WorkflowInstance, err error)

	// OnAdmissionRejected is called when a duplicate request is dropped.
	OnAdmissionRejected(ctx context.Context, key Key, attempts int, err error)

	// OnStageDispatched is called when a work item is queued for a domain.
	OnStageDispatched(ctx context.Context, inst *WorkflowInstance, stageName string, stageIndex int, domain Domain)

	// OnStageReported is called when the relay delivers a stage result.
	// duration is the time spent inside the stage body.
	OnStageReported(ctx context.Context, inst *WorkflowInstance, stageName string, stageIndex int, result StageResult, err error, duration time.Duration)
}

// NoopObserver is an Observer that does nothing.
// It is used as the default when no observer is configured.
type NoopObserver struct{}

func (NoopObserver) OnWorkflowAdmitted(ctx context.Context, inst *WorkflowInstance)            {}
func (NoopObserver) OnWorkflowCompleted(ctx context.Context, inst *WorkflowInstance)           {}
func (NoopObserver) OnWorkflowFailed(ctx context.Context, inst *WorkflowInstance, err error)   {}
func (NoopObserver) OnAdmissionRejected(ctx context.Context, key Key, attempts int, err error) {}
func (NoopObserver) OnStageDispatched(ctx context.Context, inst *WorkflowInstance, stageName string, idx int, domain Domain) {
}
func (NoopObserver) OnStageReported(ctx context.Context, inst *WorkflowInstance, stageName string, idx int, result StageResult, err error, d time.Duration) {
}

// CompositeObserver fans out events to multiple observers.
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver creates an Observer that forwards events to each
// non-nil observer in obs.
func NewCompositeObserver(obs ...Observer) Observer {
	filtered := make([]Observer, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	if len(filtered) == 0 {
		return NoopObserver{}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &CompositeObserver{observers: filtered}
}

func (c *CompositeObserver) OnWorkflowAdmitted(ctx context.Context, inst *WorkflowInstance) {
	for _, o := range c.observers {
		o.OnWorkflowAdmitted(ctx, inst)
	}
}

func (c *CompositeObserver) OnWorkflowCompleted(ctx context.Context, inst *WorkflowInstance) {
	for _, o := range c.observers {
		o.OnWorkflowCompleted(ctx, inst)
	}
}

func (c *CompositeObserver) OnWorkflowFailed(ctx context.Context, inst *WorkflowInstance, err error) {
	for _, o := range c.observers {
		o.OnWorkflowFailed(ctx, inst, err)
	}
}

func (c *CompositeObserver) OnAdmissionRejected(ctx context.Context, key Key, attempts int, err error) {
	for _, o := range c.observers {
		o.OnAdmissionRejected(ctx, key, attempts, err)
	}
}

func (c *CompositeObserver) OnStageDispatched(ctx context.Context, inst *WorkflowInstance, stageName string, idx int, domain Domain) {
	for _, o := range c.observers {
		o.OnStageDispatched(ctx, inst, stageName, idx, domain)
	}
}

func (c *CompositeObserver) OnStageReported(ctx context.Context, inst *WorkflowInstance, stageName string, idx int, result StageResult, err error, d time.Duration) {
	for _, o := range c.observers {
		o.OnStageReported(ctx, inst, stageName, idx, result, err, d)
	}
}

// LoggingObserver writes structured logs using log/slog.
type LoggingObserver struct {
	Logger *slog.Logger
}

// NewLoggingObserver creates an Observer that logs workflow / stage lifecycle
// events using the provided slog.Logger. If logger is nil, slog.Default()
// is used.
func NewLoggingObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{Logger: logger}
}

func (o *LoggingObserver) OnWorkflowAdmitted(ctx context.Context, inst *WorkflowInstance) {
	o.Logger.InfoContext(ctx, "workflow_admitted",
		slog.String("module", inst.Key.Module),
		slog.String("workflow", inst.Key.Name),
		slog.String("instance_id", inst.ID),
		slog.Int("stages", inst.StageCount),
	)
}

func (o *LoggingObserver) OnWorkflowCompleted(ctx context.Context, inst *WorkflowInstance) {
	o.Logger.InfoContext(ctx, "workflow_completed",
		slog.String("module", inst.Key.Module),
		slog.String("workflow", inst.Key.Name),
		slog.String("instance_id", inst.ID),
	)
}

func (o *LoggingObserver) OnWorkflowFailed(ctx context.Context, inst *WorkflowInstance, err error) {
	o.Logger.ErrorContext(ctx, "workflow_failed",
		slog.String("module", inst.Key.Module),
		slog.String("workflow", inst.Key.Name),
		slog.String("instance_id", inst.ID),
		slog.Int("stage_index", inst.CurrentStage),
		slog.Bool("fatal", IsFatal(err)),
		slog.Any("error", err),
	)
}

func (o *LoggingObserver) OnAdmissionRejected(ctx context.Context, key Key, attempts int, err error) {
	o.Logger.ErrorContext(ctx, "admission_rejected",
		slog.String("module", key.Module),
		slog.String("workflow", key.Name),
		slog.Int("attempts", attempts),
		slog.Any("error", err),
	)
}

func (o *LoggingObserver) OnStageDispatched(ctx context.Context, inst *WorkflowInstance, stageName string, idx int, domain Domain) {
	o.Logger.DebugContext(ctx, "stage_dispatched",
		slog.String("workflow", inst.Key.String()),
		slog.String("instance_id", inst.ID),
		slog.String("stage", stageName),
		slog.Int("stage_index", idx),
		slog.String("domain", domain.String()),
	)
}

func (o *LoggingObserver) OnStageReported(ctx context.Context, inst *WorkflowInstance, stageName string, idx int, result StageResult, err error, d time.Duration) {
	level := slog.LevelDebug
	if err != nil {
		level = slog.LevelError
	}
	o.Logger.Log(ctx, level, "stage_reported",
		slog.String("workflow", inst.Key.String()),
		slog.String("instance_id", inst.ID),
		slog.String("stage", stageName),
		slog.Int("stage_index", idx),
		slog.String("result", string(result)),
		slog.Duration("duration", d),
		slog.Any("error", err),
	)
}

// BasicMetrics collects simple counters and aggregate stage durations.
// It implements Observer, and can be combined with LoggingObserver via
// NewCompositeObserver.
type BasicMetrics struct {
	NoopObserver

	workflowsAdmitted  atomic.Int64
	workflowsCompleted atomic.Int64
	workflowsFailed    atomic.Int64
	admissionsRejected atomic.Int64
	stagesDispatched   atomic.Int64
	stagesCompleted    atomic.Int64
	totalStageDuration atomic.Int64 // nanoseconds
}

// BasicMetricsSnapshot is an immutable snapshot of BasicMetrics.
type BasicMetricsSnapshot struct {
	WorkflowsAdmitted  int64
	WorkflowsCompleted int64
	WorkflowsFailed    int64
	AdmissionsRejected int64
	LiveWorkflows      int64

	StagesDispatched int64
	StagesCompleted  int64
	AvgStageDuration time.Duration
}

func (m *BasicMetrics) OnWorkflowAdmitted(ctx context.Context, inst *WorkflowInstance) {
	m.workflowsAdmitted.Add(1)
}

func (m *BasicMetrics) OnWorkflowCompleted(ctx context.Context, inst *WorkflowInstance) {
	m.workflowsCompleted.Add(1)
}

func (m *BasicMetrics) OnWorkflowFailed(ctx context.Context, inst *WorkflowInstance, err error) {
	m.workflowsFailed.Add(1)
}

func (m *BasicMetrics) OnAdmissionRejected(ctx context.Context, key Key, attempts int, err error) {
	m.admissionsRejected.Add(1)
}

func (m *BasicMetrics) OnStageDispatched(ctx context.Context, inst *WorkflowInstance, stageName string, idx int, domain Domain) {
	m.stagesDispatched.Add(1)
}

func (m *BasicMetrics) OnStageReported(ctx context.Context, inst *WorkflowInstance, stageName string, idx int, result StageResult, err error, d time.Duration) {
	// Only finished stages count towards the average.
	if result == ResultCompleted {
		m.stagesCompleted.Add(1)
		m.totalStageDuration.Add(d.Nanoseconds())
	}
}

// Snapshot returns a snapshot of the current metrics.
func (m *BasicMetrics) Snapshot() BasicMetricsSnapshot {
	admitted := m.workflowsAdmitted.Load()
	completed := m.workflowsCompleted.Load()
	failed := m.workflowsFailed.Load()
	stages := m.stagesCompleted.Load()
	totalNs := m.totalStageDuration.Load()

	var avg time.Duration
	if stages > 0 {
		avg = time.Duration(totalNs / stages)
	}

	return BasicMetricsSnapshot{
		WorkflowsAdmitted:  admitted,
		WorkflowsCompleted: completed,
		WorkflowsFailed:    failed,
		AdmissionsRejected: m.admissionsRejected.Load(),
		LiveWorkflows:      admitted - completed - failed,
		StagesDispatched:   m.stagesDispatched.Load(),
		StagesCompleted:    stages,
		AvgStageDuration:   avg,
	}
}

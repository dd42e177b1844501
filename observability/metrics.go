// Package observability exports engine activity as OpenTelemetry metrics.
package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/petrijr/tickflow/pkg/api"
)

// meterName is the instrumentation scope name for tickflow metrics.
const meterName = "github.com/petrijr/tickflow"

// MetricsObserver is an api.Observer that records OTel instruments:
//   - tickflow.workflow.admitted (Int64Counter): module, workflow
//   - tickflow.workflow.finished (Int64Counter): module, workflow, status ("completed" or "failed"), fatal
//   - tickflow.admission.rejected (Int64Counter): module, workflow
//   - tickflow.stage.dispatched (Int64Counter): module, workflow, stage, domain
//   - tickflow.stage.duration (Float64Histogram, seconds): module, workflow, stage, result
//   - tickflow.workflow.live (Int64UpDownCounter): module, workflow
type MetricsObserver struct {
	api.NoopObserver

	admitted   metric.Int64Counter
	finished   metric.Int64Counter
	rejected   metric.Int64Counter
	dispatched metric.Int64Counter
	duration   metric.Float64Histogram
	live       metric.Int64UpDownCounter
}

var _ api.Observer = (*MetricsObserver)(nil)

// NewMetricsObserver uses the global MeterProvider. Without one configured
// the instruments are noops.
func NewMetricsObserver() *MetricsObserver {
	return NewMetricsObserverWithMeter(otel.Meter(meterName))
}

// NewMetricsObserverWithMeter uses the provided meter. This variant allows
// injecting a specific MeterProvider for testing.
func NewMetricsObserverWithMeter(meter metric.Meter) *MetricsObserver {
	// On error the API returns noop instruments, so errors are dropped.
	admitted, _ := meter.Int64Counter("tickflow.workflow.admitted",
		metric.WithDescription("Workflow requests admitted as live instances"),
		metric.WithUnit("{workflow}"),
	)
	finished, _ := meter.Int64Counter("tickflow.workflow.finished",
		metric.WithDescription("Workflow instances that completed or failed"),
		metric.WithUnit("{workflow}"),
	)
	rejected, _ := meter.Int64Counter("tickflow.admission.rejected",
		metric.WithDescription("Duplicate requests dropped after exhausting admission retries"),
		metric.WithUnit("{request}"),
	)
	dispatched, _ := meter.Int64Counter("tickflow.stage.dispatched",
		metric.WithDescription("Stage work items queued to an execution domain"),
		metric.WithUnit("{stage}"),
	)
	duration, _ := meter.Float64Histogram("tickflow.stage.duration",
		metric.WithDescription("Time spent inside stage bodies in seconds"),
		metric.WithUnit("s"),
	)
	live, _ := meter.Int64UpDownCounter("tickflow.workflow.live",
		metric.WithDescription("Workflow instances currently live"),
		metric.WithUnit("{workflow}"),
	)

	return &MetricsObserver{
		admitted:   admitted,
		finished:   finished,
		rejected:   rejected,
		dispatched: dispatched,
		duration:   duration,
		live:       live,
	}
}

func workflowAttrs(key api.Key, extra ...attribute.KeyValue) metric.MeasurementOption {
	attrs := append([]attribute.KeyValue{
		attribute.String("module", key.Module),
		attribute.String("workflow", key.Name),
	}, extra...)
	return metric.WithAttributes(attrs...)
}

func (m *MetricsObserver) OnWorkflowAdmitted(ctx context.Context, inst *api.WorkflowInstance) {
	m.admitted.Add(ctx, 1, workflowAttrs(inst.Key))
	m.live.Add(ctx, 1, workflowAttrs(inst.Key))
}

func (m *MetricsObserver) OnWorkflowCompleted(ctx context.Context, inst *api.WorkflowInstance) {
	m.finished.Add(ctx, 1, workflowAttrs(inst.Key,
		attribute.String("status", "completed"),
		attribute.Bool("fatal", false),
	))
	m.live.Add(ctx, -1, workflowAttrs(inst.Key))
}

func (m *MetricsObserver) OnWorkflowFailed(ctx context.Context, inst *api.WorkflowInstance, err error) {
	m.finished.Add(ctx, 1, workflowAttrs(inst.Key,
		attribute.String("status", "failed"),
		attribute.Bool("fatal", api.IsFatal(err)),
	))
	m.live.Add(ctx, -1, workflowAttrs(inst.Key))
}

func (m *MetricsObserver) OnAdmissionRejected(ctx context.Context, key api.Key, attempts int, err error) {
	m.rejected.Add(ctx, 1, workflowAttrs(key))
}

func (m *MetricsObserver) OnStageDispatched(ctx context.Context, inst *api.WorkflowInstance, stageName string, idx int, domain api.Domain) {
	m.dispatched.Add(ctx, 1, workflowAttrs(inst.Key,
		attribute.String("stage", stageName),
		attribute.String("domain", domain.String()),
	))
}

func (m *MetricsObserver) OnStageReported(ctx context.Context, inst *api.WorkflowInstance, stageName string, idx int, result api.StageResult, err error, d time.Duration) {
	m.duration.Record(ctx, d.Seconds(), workflowAttrs(inst.Key,
		attribute.String("stage", stageName),
		attribute.String("result", string(result)),
	))
}

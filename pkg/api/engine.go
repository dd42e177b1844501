package api

import "context"

// Status represents the lifecycle state of a workflow instance.
type Status string

const (
	StatusRequested  Status = "REQUESTED"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// WorkflowInstance is a point-in-time snapshot of one live instance.
// The engine hands out copies; mutating a snapshot has no effect.
type WorkflowInstance struct {
	ID     string
	Key    Key
	Status Status

	// CurrentStage is the index of the stage being executed.
	CurrentStage int
	StageCount   int
	StageName    string

	// Initialized is true once a looping stage finished setup and is
	// waiting for its next poll.
	Initialized bool

	// InFlight is true while a dispatched work item has not reported back.
	InFlight bool

	// TimeoutTicks is the remaining tick budget before the instance is
	// force-failed.
	TimeoutTicks int

	// AdmittedTick is the host tick on which the instance was created.
	AdmittedTick uint64

	// Err is set on the snapshot handed to OnWorkflowFailed.
	Err error
}

// Engine is the erased engine API. The root tickflow package layers the
// typed request entry points and futures on top of it.
type Engine interface {
	// RegisterModule registers every definition under the given module
	// name. Each definition's Module field is overwritten with module.
	// Registering an existing (module, name) pair returns ErrDuplicateWorkflow.
	RegisterModule(module string, defs ...WorkflowDefinition) error

	// Lookup returns the registered definition. Absence is a programmer
	// error and panics with ErrUnknownWorkflow.
	Lookup(module, name string) *WorkflowDefinition

	// Request submits a run of (module, name). class must equal the
	// workflow's signature class; input must be None unless class has
	// HasInput. The returned handle is resolved exactly once.
	Request(module, name string, class Signature, input Payload) *Pending

	// Tick runs one host tick. It returns a non-nil error only for fatal
	// structural failures (see IsFatal).
	Tick(ctx context.Context) error

	// TickIsolated runs the isolated domain's queued work. Hosts call it
	// from their isolated context when Config.ExternalIsolatedHost is set.
	TickIsolated(ctx context.Context) error

	// Instance returns a snapshot of the live instance for (module, name).
	Instance(module, name string) (*WorkflowInstance, bool)

	// Instances returns snapshots of all live instances.
	Instances() []*WorkflowInstance

	// History returns the lifecycle events recorded for an instance.
	History(ctx context.Context, instanceID string) ([]WorkflowEvent, error)

	// CurrentTick returns the number of completed host ticks.
	CurrentTick() uint64

	// QueueDepths returns the number of work items waiting in each
	// domain queue.
	QueueDepths() map[Domain]int

	// PendingRetries returns the number of duplicate requests waiting for
	// their key to become free.
	PendingRetries() int

	// Close stops the off-thread pool and resolves every outstanding
	// request with ErrEngineClosed.
	Close(ctx context.Context) error
}

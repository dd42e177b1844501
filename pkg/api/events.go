package api

import "time"

// EventType identifies a workflow history event.
type EventType string

const (
	EventWorkflowRequested EventType = "workflow.requested"
	EventWorkflowAdmitted  EventType = "workflow.admitted"
	EventWorkflowDeferred  EventType = "workflow.deferred"
	EventWorkflowRejected  EventType = "workflow.rejected"
	EventWorkflowCompleted EventType = "workflow.completed"
	EventWorkflowFailed    EventType = "workflow.failed"
	EventWorkflowTimeout   EventType = "workflow.timeout"

	EventStageDispatched EventType = "stage.dispatched"
	EventStageWaiting    EventType = "stage.waiting"
	EventStageCompleted  EventType = "stage.completed"
	EventStageFailed     EventType = "stage.failed"
)

// WorkflowEvent is a minimal append-only history record for audit/debugging.
// Rejected and deferred requests have no instance yet; they are recorded
// under the request ID instead.
type WorkflowEvent struct {
	InstanceID string
	At         time.Time
	Tick       uint64
	Type       EventType

	Module   string
	Workflow string
	Stage    int

	// Small, human-oriented details (domain, error string). Never payloads.
	Detail string
}

package taskqueue

import (
	"github.com/petrijr/tickflow/pkg/api"
)

// Phase identifies which entry point of a stage a task invokes.
type Phase uint8

const (
	// PhaseRun invokes a one-shot stage's Run.
	PhaseRun Phase = iota
	// PhaseSetup invokes a looping stage's Setup.
	PhaseSetup
	// PhasePoll invokes a looping stage's Poll.
	PhasePoll
)

func (p Phase) String() string {
	switch p {
	case PhaseRun:
		return "run"
	case PhaseSetup:
		return "setup"
	case PhasePoll:
		return "poll"
	default:
		return "unknown"
	}
}

// Task is a "this instance should run its current stage here" work item.
type Task struct {
	Key        api.Key
	InstanceID string
	StageIndex int
	Stage      *api.StageDefinition
	Phase      Phase

	// Payload is the instance's data buffer at dispatch time. Ownership
	// moves into the task; the instance keeps nothing aliased.
	Payload api.Payload

	// Poll is the 1-based invocation count of this stage for the instance.
	Poll int

	// Tick is the host tick on which the task was dispatched.
	Tick uint64
}

// Queue is a FIFO of tasks for a single execution domain.
type Queue interface {
	// Enqueue appends a task to the back of the queue.
	Enqueue(t Task)

	// Requeue puts tasks back at the front, preserving their order. Used
	// when a domain cannot accept every drained task this tick.
	Requeue(ts ...Task)

	// Drain removes and returns every queued task in FIFO order.
	Drain() []Task

	// Len returns the number of queued tasks.
	Len() int
}

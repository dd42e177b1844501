package engine

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
	"github.com/qmuntal/stateless"

	"github.com/petrijr/tickflow/pkg/api"
)

type trigger string

const (
	triggerDispatch trigger = "dispatch"
	triggerAdvance  trigger = "advance"
	triggerComplete trigger = "complete"
	triggerFail     trigger = "fail"
)

// instance is the live execution record of one admitted request. All
// fields are owned by the tick thread and guarded by engineImpl.mu.
type instance struct {
	id      string
	key     api.Key
	def     *api.WorkflowDefinition
	pending *api.Pending
	fsm     *stateless.StateMachine

	stage       int
	initialized bool
	inFlight    bool
	polls       int

	// buffer is the payload for the next dispatch: the workflow input,
	// the previous stage's output, or the current loop state.
	buffer api.Payload

	budget       int
	timeoutTicks int
	admittedTick uint64
}

func newInstance(req *request, budget int, tick uint64) *instance {
	return &instance{
		id:           ulid.MustNew(ulid.Now(), rand.Reader).String(),
		key:          req.key,
		def:          req.def,
		pending:      req.pending,
		fsm:          newInstanceFSM(),
		buffer:       req.input,
		budget:       budget,
		timeoutTicks: budget,
		admittedTick: tick,
	}
}

// newInstanceFSM builds the Requested -> Processing -> {Completed, Failed}
// lifecycle. Stage advancement re-enters Processing.
func newInstanceFSM() *stateless.StateMachine {
	sm := stateless.NewStateMachine(api.StatusRequested)

	sm.Configure(api.StatusRequested).
		Permit(triggerDispatch, api.StatusProcessing).
		Permit(triggerFail, api.StatusFailed)

	sm.Configure(api.StatusProcessing).
		PermitReentry(triggerAdvance).
		Permit(triggerComplete, api.StatusCompleted).
		Permit(triggerFail, api.StatusFailed)

	return sm
}

func (i *instance) status() api.Status {
	return i.fsm.MustState().(api.Status)
}

func (i *instance) fire(t trigger) error {
	return i.fsm.Fire(t)
}

func (i *instance) currentStage() *api.StageDefinition {
	return &i.def.Stages[i.stage]
}

func (i *instance) snapshot() *api.WorkflowInstance {
	return &api.WorkflowInstance{
		ID:           i.id,
		Key:          i.key,
		Status:       i.status(),
		CurrentStage: i.stage,
		StageCount:   len(i.def.Stages),
		StageName:    i.currentStage().Name,
		Initialized:  i.initialized,
		InFlight:     i.inFlight,
		TimeoutTicks: i.timeoutTicks,
		AdmittedTick: i.admittedTick,
	}
}

// instanceTable maps each key to at most one live instance and remembers
// admission order so dispatch is deterministic.
type instanceTable struct {
	byKey map[api.Key]*instance
	order []*instance
}

func newInstanceTable() *instanceTable {
	return &instanceTable{byKey: make(map[api.Key]*instance)}
}

func (t *instanceTable) busy(key api.Key) bool {
	_, ok := t.byKey[key]
	return ok
}

func (t *instanceTable) get(key api.Key) (*instance, bool) {
	inst, ok := t.byKey[key]
	return inst, ok
}

func (t *instanceTable) insert(inst *instance) {
	t.byKey[inst.key] = inst
	t.order = append(t.order, inst)
}

func (t *instanceTable) remove(inst *instance) {
	if cur, ok := t.byKey[inst.key]; ok && cur == inst {
		delete(t.byKey, inst.key)
	}
	for idx, other := range t.order {
		if other == inst {
			t.order = append(t.order[:idx], t.order[idx+1:]...)
			break
		}
	}
}

// live returns the instances in admission order. The slice is a copy so
// callers may remove instances while iterating.
func (t *instanceTable) live() []*instance {
	return append([]*instance(nil), t.order...)
}

func (t *instanceTable) count() int {
	return len(t.order)
}

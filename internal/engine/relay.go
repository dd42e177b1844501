package engine

import (
	"sync"
	"time"

	"github.com/petrijr/tickflow/pkg/api"
)

// relayKind selects one of the four relay lanes.
type relayKind uint8

const (
	relaySetupDone relayKind = iota
	relayWait
	relayCompletion
	relayFailure

	relayLanes
)

func (k relayKind) result() api.StageResult {
	switch k {
	case relaySetupDone:
		return api.ResultSetupDone
	case relayWait:
		return api.ResultWaiting
	case relayCompletion:
		return api.ResultCompleted
	default:
		return api.ResultFailed
	}
}

// relayMessage is a domain-local stage result on its way back to the
// driver. It names the instance it belongs to so late results for an
// instance that has since been removed can be recognised and dropped.
type relayMessage struct {
	Kind       relayKind
	Key        api.Key
	InstanceID string
	StageIndex int
	Stage      *api.StageDefinition

	Payload  api.Payload
	Err      error
	Duration time.Duration
}

// relay fans stage results from every domain into the driver. Senders may
// be worker goroutines; the driver drains it once per tick and never
// blocks on it.
type relay struct {
	mu    sync.Mutex
	lanes [relayLanes][]relayMessage
}

func newRelay() *relay {
	return &relay{}
}

// Send appends msg to its lane.
func (r *relay) Send(msg relayMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lanes[msg.Kind] = append(r.lanes[msg.Kind], msg)
}

// Drain removes every pending message, lane by lane, FIFO within a lane.
func (r *relay) Drain() []relayMessage {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, lane := range r.lanes {
		n += len(lane)
	}
	if n == 0 {
		return nil
	}

	out := make([]relayMessage, 0, n)
	for k := range r.lanes {
		out = append(out, r.lanes[k]...)
		r.lanes[k] = nil
	}
	return out
}

// Len returns the number of undelivered messages.
func (r *relay) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, lane := range r.lanes {
		n += len(lane)
	}
	return n
}

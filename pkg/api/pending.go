package api

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Completion is the erased result delivered to a request's Pending handle.
type Completion struct {
	Output Payload
	Err    error
}

// Pending is the single-resolution handle returned at admission time. The
// driver resolves it exactly once; later Resolve calls are ignored.
//
// Requests are matched to instances by (module, name), not by RequestID;
// the ID only labels log lines and history events.
type Pending struct {
	RequestID string
	Key       Key

	once   sync.Once
	done   chan struct{}
	result Completion
}

// NewPending creates an unresolved handle for key.
func NewPending(key Key) *Pending {
	return &Pending{
		RequestID: uuid.NewString(),
		Key:       key,
		done:      make(chan struct{}),
	}
}

// Resolve stores c and wakes every waiter. It reports whether this call
// was the one that resolved the handle.
func (p *Pending) Resolve(c Completion) bool {
	resolved := false
	p.once.Do(func() {
		p.result = c
		close(p.done)
		resolved = true
	})
	return resolved
}

// Done is closed once the handle is resolved.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Result returns the completion without blocking; ok is false while the
// workflow is still in flight.
func (p *Pending) Result() (c Completion, ok bool) {
	select {
	case <-p.done:
		return p.result, true
	default:
		return Completion{}, false
	}
}

// Wait blocks until the handle resolves or ctx is done. A ctx error only
// abandons the wait; the workflow keeps running.
func (p *Pending) Wait(ctx context.Context) (Completion, error) {
	select {
	case <-p.done:
		return p.result, nil
	case <-ctx.Done():
		return Completion{}, ctx.Err()
	}
}

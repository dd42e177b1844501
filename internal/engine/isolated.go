package engine

import (
	"sync"

	"github.com/petrijr/tickflow/internal/taskqueue"
	"github.com/petrijr/tickflow/pkg/api"
)

// isolatedDomain is the second synchronous context. The driver and the
// isolated host only meet at the extraction boundary, where work is copied
// in and finished results are copied out in one step.
type isolatedDomain struct {
	mu     sync.Mutex
	inbox  []taskqueue.Task
	outbox []relayMessage
}

func newIsolatedDomain() *isolatedDomain {
	return &isolatedDomain{}
}

// exchange is the extraction boundary: it hands work to the isolated side
// and returns whatever the isolated side finished since the last boundary.
func (d *isolatedDomain) exchange(work []taskqueue.Task) []relayMessage {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inbox = append(d.inbox, work...)
	out := d.outbox
	d.outbox = nil
	return out
}

// take removes the work copied in at the last boundary.
func (d *isolatedDomain) take() []taskqueue.Task {
	d.mu.Lock()
	defer d.mu.Unlock()
	work := d.inbox
	d.inbox = nil
	return work
}

// publish buffers results until the next boundary.
func (d *isolatedDomain) publish(msgs ...relayMessage) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.outbox = append(d.outbox, msgs...)
}

// pending counts copied-in work per domain that has not run yet.
func (d *isolatedDomain) pending() map[api.Domain]int {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[api.Domain]int, 2)
	for _, t := range d.inbox {
		out[t.Stage.Domain]++
	}
	return out
}

package taskqueue

import (
	"sync"

	"github.com/petrijr/tickflow/pkg/api"
)

// InMemoryQueue is a slice-backed FIFO Queue.
// It is safe for concurrent use, although the engine only touches it from
// the tick thread; the lock exists so introspection can read Len.
type InMemoryQueue struct {
	mu    sync.Mutex
	tasks []Task
}

// NewInMemoryQueue creates an empty queue.
func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{}
}

// Ensure InMemoryQueue implements Queue.
var _ Queue = (*InMemoryQueue)(nil)

func (q *InMemoryQueue) Enqueue(t Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, t)
}

func (q *InMemoryQueue) Requeue(ts ...Task) {
	if len(ts) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	merged := make([]Task, 0, len(ts)+len(q.tasks))
	merged = append(merged, ts...)
	q.tasks = append(merged, q.tasks...)
}

func (q *InMemoryQueue) Drain() []Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.tasks
	q.tasks = nil
	return out
}

func (q *InMemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Set holds one queue per execution domain.
type Set struct {
	queues map[api.Domain]Queue
}

// NewSet creates an in-memory queue for every domain in api.Domains.
func NewSet() *Set {
	s := &Set{queues: make(map[api.Domain]Queue, len(api.Domains))}
	for _, d := range api.Domains {
		s.queues[d] = NewInMemoryQueue()
	}
	return s
}

// For returns the queue of domain d.
func (s *Set) For(d api.Domain) Queue {
	return s.queues[d]
}

// Depths returns the queue length of every domain.
func (s *Set) Depths() map[api.Domain]int {
	out := make(map[api.Domain]int, len(s.queues))
	for d, q := range s.queues {
		out[d] = q.Len()
	}
	return out
}

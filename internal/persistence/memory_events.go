package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/petrijr/tickflow/pkg/api"
)

// InMemoryEventStore keeps events in a map keyed by instance ID.
// It is goroutine-safe and grows without bound; use it for tests and
// short-lived processes.
type InMemoryEventStore struct {
	mu     sync.RWMutex
	events map[string][]api.WorkflowEvent
}

// NewInMemoryEventStore creates an empty store.
func NewInMemoryEventStore() *InMemoryEventStore {
	return &InMemoryEventStore{
		events: make(map[string][]api.WorkflowEvent),
	}
}

// Ensure InMemoryEventStore implements EventStore.
var _ EventStore = (*InMemoryEventStore)(nil)

func (s *InMemoryEventStore) AppendEvent(ctx context.Context, ev api.WorkflowEvent) error {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[ev.InstanceID] = append(s.events[ev.InstanceID], ev)
	return nil
}

func (s *InMemoryEventStore) ListEvents(ctx context.Context, instanceID string) ([]api.WorkflowEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.events[instanceID]
	out := make([]api.WorkflowEvent, len(src))
	copy(out, src)
	return out, nil
}

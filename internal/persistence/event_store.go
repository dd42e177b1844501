package persistence

import (
	"context"

	"github.com/petrijr/tickflow/pkg/api"
)

// EventStore is an append-only history store for workflow lifecycle events.
type EventStore interface {
	AppendEvent(ctx context.Context, ev api.WorkflowEvent) error
	// ListEvents returns the events of one instance in append order.
	ListEvents(ctx context.Context, instanceID string) ([]api.WorkflowEvent, error)
}

// NoopEventStore discards all events.
type NoopEventStore struct{}

func (NoopEventStore) AppendEvent(ctx context.Context, ev api.WorkflowEvent) error { return nil }
func (NoopEventStore) ListEvents(ctx context.Context, instanceID string) ([]api.WorkflowEvent, error) {
	return nil, nil
}

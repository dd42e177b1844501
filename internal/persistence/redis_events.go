package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/petrijr/tickflow/pkg/api"
)

// RedisEventStore is an EventStore backed by Redis.
// It uses a simple key structure:
//
//	<prefix>events:<instance-id>  => LIST of gob-encoded events, in append order
//
// Each list gets a TTL so histories of finished instances expire on their
// own; a zero TTL keeps them forever.
type RedisEventStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ EventStore = (*RedisEventStore)(nil)

// NewRedisEventStore creates a RedisEventStore.
// prefix is optional but recommended (e.g. "tickflow:").
func NewRedisEventStore(client *redis.Client, prefix string, ttl time.Duration) *RedisEventStore {
	if prefix == "" {
		prefix = "tickflow:"
	}
	return &RedisEventStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *RedisEventStore) keyEvents(instanceID string) string {
	return s.prefix + "events:" + instanceID
}

func (s *RedisEventStore) AppendEvent(ctx context.Context, ev api.WorkflowEvent) error {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	data, err := encodeEvent(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	key := s.keyEvents(ev.InstanceID)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisEventStore) ListEvents(ctx context.Context, instanceID string) ([]api.WorkflowEvent, error) {
	raw, err := s.client.LRange(ctx, s.keyEvents(instanceID), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	out := make([]api.WorkflowEvent, 0, len(raw))
	for _, item := range raw {
		ev, err := decodeEvent([]byte(item))
		if err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		out = append(out, ev)
	}
	return out, nil
}

package tickflow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite"

	"github.com/petrijr/tickflow/internal/persistence"
	"github.com/petrijr/tickflow/pkg/api"
)

// Bundle wires together an Engine, a HostLoop driving it, and whatever
// history backend cfg.History selects. The bundle owns the backend
// connection and closes it in Close.
type Bundle struct {
	Engine Engine
	Loop   *HostLoop

	db    *sql.DB
	redis *redis.Client
}

// NewEngineFromConfig opens the history backend named by cfg.History and
// builds an Engine and HostLoop on top of it. The loop is not started.
//
// Typical usage:
//
//	cfg, _ := tickflow.LoadConfig("tickflow.yaml")
//	b, err := tickflow.NewEngineFromConfig(cfg, nil, logger)
//	// register modules on b.Engine
//	_ = b.Loop.Start(ctx)
//	defer b.Close(ctx)
func NewEngineFromConfig(cfg Config, obs Observer, logger *slog.Logger) (*Bundle, error) {
	if logger == nil {
		logger = slog.Default()
	}

	b := &Bundle{}
	var events persistence.EventStore

	switch cfg.History {
	case "", api.HistoryNone:
		events = persistence.NoopEventStore{}
	case api.HistoryMemory:
		events = persistence.NewInMemoryEventStore()
	case api.HistorySQLite:
		db, err := sql.Open("sqlite", cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %q: %w", cfg.SQLitePath, err)
		}
		// Request and the tick thread both write history; one connection
		// keeps SQLite from reporting SQLITE_BUSY.
		db.SetMaxOpenConns(1)
		store, err := persistence.NewSQLiteEventStore(db)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init sqlite history: %w", err)
		}
		b.db = db
		events = store
	case api.HistoryRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		b.redis = client
		events = persistence.NewRedisEventStore(client, cfg.RedisPrefix, 24*time.Hour)
	default:
		return nil, fmt.Errorf("tickflow: unknown history backend %q", cfg.History)
	}

	eng, err := newEngineWithEvents(cfg, obs, events, logger)
	if err != nil {
		_ = b.closeBackend()
		return nil, err
	}
	b.Engine = eng
	b.Loop = NewHostLoop(eng, cfg, logger)

	logger.Info("engine ready",
		slog.String("history", string(cfg.History)),
		slog.Int("ticks_per_stage", cfg.TicksPerStage),
		slog.Int("off_thread_workers", cfg.OffThreadWorkers),
	)
	return b, nil
}

// Close stops the loop, closes the engine and releases the history backend.
func (b *Bundle) Close(ctx context.Context) error {
	if b.Loop != nil {
		b.Loop.Stop()
	}
	var errs []error
	if b.Engine != nil {
		errs = append(errs, b.Engine.Close(ctx))
	}
	errs = append(errs, b.closeBackend())
	return errors.Join(errs...)
}

func (b *Bundle) closeBackend() error {
	var errs []error
	if b.db != nil {
		errs = append(errs, b.db.Close())
		b.db = nil
	}
	if b.redis != nil {
		errs = append(errs, b.redis.Close())
		b.redis = nil
	}
	return errors.Join(errs...)
}

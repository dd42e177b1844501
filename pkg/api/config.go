package api

import (
	"errors"
	"fmt"
	"runtime"
	"time"
)

// HistoryBackend selects where lifecycle events are recorded.
type HistoryBackend string

const (
	HistoryNone   HistoryBackend = "none"
	HistoryMemory HistoryBackend = "memory"
	HistorySQLite HistoryBackend = "sqlite"
	HistoryRedis  HistoryBackend = "redis"
)

// Config holds the engine tunables.
type Config struct {
	// TicksPerStage scales the timeout budget: an instance gets
	// StageCount × TicksPerStage ticks to advance before it is force-failed.
	TicksPerStage int `yaml:"ticks_per_stage"`

	// MaxAdmissionRetries is how many ticks a duplicate request may wait
	// for the running instance to finish before it is rejected.
	MaxAdmissionRetries int `yaml:"max_admission_retries"`

	// OffThreadWorkers bounds the number of concurrently running
	// off-thread stage bodies.
	OffThreadWorkers int `yaml:"off_thread_workers"`

	// TickInterval is the host tick period used by HostLoop.
	TickInterval time.Duration `yaml:"tick_interval"`

	// ExternalIsolatedHost leaves TickIsolated to the host. When false the
	// engine runs isolated work inline right after the extraction boundary.
	ExternalIsolatedHost bool `yaml:"external_isolated_host"`

	History     HistoryBackend `yaml:"history"`
	SQLitePath  string         `yaml:"sqlite_path"`
	RedisAddr   string         `yaml:"redis_addr"`
	RedisPrefix string         `yaml:"redis_prefix"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		TicksPerStage:       600,
		MaxAdmissionRetries: 64,
		OffThreadWorkers:    runtime.NumCPU(),
		TickInterval:        16 * time.Millisecond,
		History:             HistoryNone,
		SQLitePath:          "tickflow.db",
		RedisAddr:           "localhost:6379",
		RedisPrefix:         "tickflow:",
	}
}

// Validate rejects settings the engine cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.TicksPerStage <= 0 {
		errs = append(errs, fmt.Errorf("ticks_per_stage must be positive, got %d", c.TicksPerStage))
	}
	if c.MaxAdmissionRetries < 0 {
		errs = append(errs, fmt.Errorf("max_admission_retries must not be negative, got %d", c.MaxAdmissionRetries))
	}
	if c.OffThreadWorkers <= 0 {
		errs = append(errs, fmt.Errorf("off_thread_workers must be positive, got %d", c.OffThreadWorkers))
	}
	if c.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("tick_interval must be positive, got %s", c.TickInterval))
	}
	switch c.History {
	case "", HistoryNone, HistoryMemory, HistorySQLite, HistoryRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown history backend %q", c.History))
	}
	if len(errs) > 0 {
		return fmt.Errorf("tickflow: invalid config: %w", errors.Join(errs...))
	}
	return nil
}

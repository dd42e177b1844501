package tickflow

import (
	"database/sql"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/petrijr/tickflow/internal/engine"
	"github.com/petrijr/tickflow/internal/persistence"
	"github.com/petrijr/tickflow/pkg/api"
)

// Re-export key types so users don't need to dig into pkg/api.

type (
	Engine               = api.Engine
	Config               = api.Config
	Domain               = api.Domain
	Signature            = api.Signature
	Key                  = api.Key
	WorkflowDefinition   = api.WorkflowDefinition
	StageDefinition      = api.StageDefinition
	WorkflowInstance     = api.WorkflowInstance
	WorkflowEvent        = api.WorkflowEvent
	Status               = api.Status
	StageInfo            = api.StageInfo
	Observer             = api.Observer
	LoggingObserver      = api.LoggingObserver
	BasicMetrics         = api.BasicMetrics
	BasicMetricsSnapshot = api.BasicMetricsSnapshot
	CompositeObserver    = api.CompositeObserver
	NoopObserver         = api.NoopObserver

	AdmissionError   = api.AdmissionError
	StageError       = api.StageError
	TimeoutError     = api.TimeoutError
	TypeBindingError = api.TypeBindingError
	StagePanicError  = api.StagePanicError
)

// Re-export common helpers.

var (
	NewLoggingObserver   = api.NewLoggingObserver
	NewCompositeObserver = api.NewCompositeObserver
	DefaultConfig        = api.DefaultConfig
	StageInfoFromContext = api.StageInfoFromContext
	IsFatal              = api.IsFatal
)

// Re-export errors.

var (
	ErrDuplicateWorkflow  = api.ErrDuplicateWorkflow
	ErrUnknownWorkflow    = api.ErrUnknownWorkflow
	ErrInvalidDefinition  = api.ErrInvalidDefinition
	ErrSignatureMismatch  = api.ErrSignatureMismatch
	ErrSignatureViolation = api.ErrSignatureViolation
	ErrStageTimeout       = api.ErrStageTimeout
	ErrAdmissionRejected  = api.ErrAdmissionRejected
	ErrEngineClosed       = api.ErrEngineClosed
)

// Re-export execution domains.

const (
	DomainMain            = api.DomainMain
	DomainMainLooping     = api.DomainMainLooping
	DomainIsolated        = api.DomainIsolated
	DomainIsolatedLooping = api.DomainIsolatedLooping
	DomainOffThread       = api.DomainOffThread
)

// Re-export signature bits and status values for convenience.

const (
	HasInput  = api.HasInput
	HasOutput = api.HasOutput
	HasError  = api.HasError

	StatusRequested  = api.StatusRequested
	StatusProcessing = api.StatusProcessing
	StatusCompleted  = api.StatusCompleted
	StatusFailed     = api.StatusFailed
)

// Engine constructors
// These wrap the internal/engine package so external callers
// never need to import internal packages.

// NewEngine returns an Engine that does not record history.
func NewEngine(cfg Config) (Engine, error) {
	return engine.NewEngineWithConfig(engine.Config{Settings: cfg})
}

// NewEngineWithObserver returns an Engine with the given Observer and logger.
// A nil logger means slog.Default().
func NewEngineWithObserver(cfg Config, obs Observer, logger *slog.Logger) (Engine, error) {
	return engine.NewEngineWithConfig(engine.Config{
		Settings: cfg,
		Observer: obs,
		Logger:   logger,
	})
}

// NewInMemoryEngine returns an Engine that keeps lifecycle history in memory.
func NewInMemoryEngine(cfg Config) (Engine, error) {
	return engine.NewInMemoryEngine(cfg)
}

// NewSQLiteEngine returns an Engine that records lifecycle history in a
// SQLite database. The caller imports the driver and owns db.
func NewSQLiteEngine(cfg Config, db *sql.DB) (Engine, error) {
	return engine.NewSQLiteEngine(cfg, db)
}

// NewRedisEngine returns an Engine that records lifecycle history in Redis.
func NewRedisEngine(cfg Config, client *redis.Client) (Engine, error) {
	return engine.NewRedisEngine(cfg, client)
}

// newEngineWithEvents is used by NewEngineFromConfig once the history
// backend is open.
func newEngineWithEvents(cfg Config, obs Observer, events persistence.EventStore, logger *slog.Logger) (Engine, error) {
	return engine.NewEngineWithConfig(engine.Config{
		Settings: cfg,
		Observer: obs,
		Events:   events,
		Logger:   logger,
	})
}

package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/petrijr/tickflow/pkg/api"
)

// SQLiteEventStore stores workflow events in SQLite.
//
// It expects an *sql.DB that uses a SQLite driver (for example,
// "modernc.org/sqlite"). The caller is responsible for importing
// the driver, e.g.:
//
//	import _ "modernc.org/sqlite"
type SQLiteEventStore struct {
	db *sql.DB
}

// Ensure SQLiteEventStore implements the interfaces.
var _ EventStore = (*SQLiteEventStore)(nil)

// NewSQLiteEventStore initializes the required schema in the given
// database and returns a new SQLiteEventStore.
func NewSQLiteEventStore(db *sql.DB) (*SQLiteEventStore, error) {
	s := &SQLiteEventStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteEventStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS workflow_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			instance_id TEXT NOT NULL,
			at INTEGER NOT NULL,
			tick INTEGER NOT NULL DEFAULT 0,
			type TEXT NOT NULL,
			module TEXT NOT NULL DEFAULT '',
			workflow TEXT NOT NULL DEFAULT '',
			stage INTEGER NOT NULL DEFAULT -1,
			detail TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_workflow_events_instance_id ON workflow_events(instance_id, id);
	`)
	return err
}

func (s *SQLiteEventStore) AppendEvent(ctx context.Context, ev api.WorkflowEvent) error {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workflow_events (instance_id, at, tick, type, module, workflow, stage, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.InstanceID,
		at.UnixNano(),
		int64(ev.Tick),
		string(ev.Type),
		ev.Module,
		ev.Workflow,
		ev.Stage,
		ev.Detail,
	)
	return err
}

func (s *SQLiteEventStore) ListEvents(ctx context.Context, instanceID string) ([]api.WorkflowEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT instance_id, at, tick, type, module, workflow, stage, detail
		FROM workflow_events
		WHERE instance_id = ?
		ORDER BY id ASC`, instanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []api.WorkflowEvent
	for rows.Next() {
		var (
			id       string
			atN      int64
			tick     int64
			typ      string
			module   string
			workflow string
			stage    int
			detail   string
		)
		if err := rows.Scan(&id, &atN, &tick, &typ, &module, &workflow, &stage, &detail); err != nil {
			return nil, err
		}
		out = append(out, api.WorkflowEvent{
			InstanceID: id,
			At:         time.Unix(0, atN),
			Tick:       uint64(tick),
			Type:       api.EventType(typ),
			Module:     module,
			Workflow:   workflow,
			Stage:      stage,
			Detail:     detail,
		})
	}
	return out, rows.Err()
}

package persistence

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func newTestSQLiteEventStore(t *testing.T) *SQLiteEventStore {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// A single connection keeps every statement on the same in-memory database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = db.Close()
	})

	store, err := NewSQLiteEventStore(db)
	require.NoError(t, err)
	return store
}

func TestSQLiteEventStore(t *testing.T) {
	exerciseEventStore(t, newTestSQLiteEventStore(t))
}

func TestSQLiteEventStore_SchemaIsIdempotent(t *testing.T) {
	store := newTestSQLiteEventStore(t)

	again, err := NewSQLiteEventStore(store.db)
	require.NoError(t, err)
	require.NotNil(t, again)
}

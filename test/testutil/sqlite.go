package testutil

import (
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

// CreateTempSQLiteDB opens a SQLite database in a temporary directory. The
// schema is left empty; callers run their own migrations.
func CreateTempSQLiteDB(t *testing.T) (*sqlx.DB, func()) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "recall.db")

	db, err := sqlx.Connect("sqlite3", dbPath)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	cleanup := func() {
		db.Close()
	}

	return db, cleanup
}

package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
)

// CreateTempBoltDB creates a temporary BoltDB database for testing purposes.
// It returns the database connection, the file path, and a cleanup function.
func CreateTempBoltDB(t *testing.T) (*bolt.DB, string, func()) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "recall.bolt.db")

	db, err := bolt.Open(dbPath, 0o600, nil)
	require.NoError(t, err)

	cleanup := func() {
		db.Close()
	}

	return db, dbPath, cleanup
}

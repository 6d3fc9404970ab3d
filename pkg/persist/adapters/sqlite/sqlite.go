package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/lexlapax/recall/pkg/log"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// SQLiteBackend implements persist.Backend using a SQLite database with one
// row per snapshot.
type SQLiteBackend struct {
	db *sqlx.DB
}

// NewSQLiteBackend creates a new SQLiteBackend with the given database
// connection. Call Migrate before first use.
func NewSQLiteBackend(db *sqlx.DB) *SQLiteBackend {
	return &SQLiteBackend{db: db}
}

// Open connects to the database file at path and applies pending migrations.
func Open(ctx context.Context, path string) (*SQLiteBackend, error) {
	db, err := sqlx.ConnectContext(ctx, "sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// SQLite allows a single writer
	db.SetMaxOpenConns(1)

	s := NewSQLiteBackend(db)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	log.Debug("Initialized SQLite persistence backend", "path", path)
	return s, nil
}

// Migrate applies the embedded schema migrations.
func (s *SQLiteBackend) Migrate(ctx context.Context) error {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db.DB, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	// The migrator is not closed: closing it would close the shared connection
	migrator, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	log.DebugContext(ctx, "SQLite migrations applied")
	return nil
}

// Read implements persist.Backend.
func (s *SQLiteBackend) Read(ctx context.Context, name string) ([]byte, bool, error) {
	var data []byte
	err := s.db.GetContext(ctx, &data, `SELECT data FROM snapshots WHERE name = ?`, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return data, true, nil
}

// Write implements persist.Backend.
func (s *SQLiteBackend) Write(ctx context.Context, name string, data []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (name, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		name, data, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	log.DebugContext(ctx, "Wrote SQLite snapshot", "name", name, "bytes", len(data))
	return nil
}

// Close closes the underlying database.
func (s *SQLiteBackend) Close() error {
	return s.db.Close()
}

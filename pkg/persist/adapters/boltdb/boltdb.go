package boltdb

import (
	"context"
	"fmt"

	"github.com/lexlapax/recall/pkg/log"
	bolt "go.etcd.io/bbolt"
)

// snapshotsBucket holds one key per snapshot name.
var snapshotsBucket = []byte("snapshots")

// BoltBackend implements persist.Backend using a BoltDB database.
type BoltBackend struct {
	db *bolt.DB
}

// NewBoltBackend creates a new BoltBackend with the given database connection.
func NewBoltBackend(db *bolt.DB) *BoltBackend {
	log.Debug("Initialized BoltDB persistence backend",
		"db_path", db.Path(),
		"read_only", db.IsReadOnly(),
	)

	return &BoltBackend{db: db}
}

// Open opens (or creates) the database at path and prepares its bucket.
func Open(ctx context.Context, path string) (*BoltBackend, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open BoltDB database: %w", err)
	}

	b := NewBoltBackend(db)
	if err := b.Initialize(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

// Initialize creates the snapshot bucket if it does not exist.
func (b *BoltBackend) Initialize(ctx context.Context) error {
	log.DebugContext(ctx, "Initializing BoltDB snapshot bucket")

	err := b.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(snapshotsBucket)
		return err
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize BoltDB bucket", "error", err)
		return fmt.Errorf("failed to create snapshots bucket: %w", err)
	}
	return nil
}

// Read implements persist.Backend.
func (b *BoltBackend) Read(ctx context.Context, name string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	var data []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(snapshotsBucket)
		if bucket == nil {
			return nil
		}

		// Values are only valid for the life of the transaction
		if v := bucket.Get([]byte(name)); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to read snapshot: %w", err)
	}

	return data, data != nil, nil
}

// Write implements persist.Backend. The put runs in a single transaction, so
// readers observe either the previous snapshot or the new one.
func (b *BoltBackend) Write(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(snapshotsBucket)
		if err != nil {
			return fmt.Errorf("failed to create snapshots bucket: %w", err)
		}
		return bucket.Put([]byte(name), data)
	})
	if err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	log.DebugContext(ctx, "Wrote BoltDB snapshot", "name", name, "bytes", len(data))
	return nil
}

// Close closes the underlying database.
func (b *BoltBackend) Close() error {
	return b.db.Close()
}

// Package persist defines the snapshot port through which the memory store and
// the conversation window flush their state. Every mutation rewrites the whole
// named snapshot; there is no incremental log.
package persist

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lexlapax/recall/pkg/errors"
)

// Snapshot names used by the assistant.
const (
	// MemoriesSnapshot holds the ordered list of memory records
	MemoriesSnapshot = "memories"

	// ConversationSnapshot holds the bounded conversation window
	ConversationSnapshot = "conversation"
)

// Backend stores named snapshots.
type Backend interface {
	// Read returns the snapshot stored under name. found is false when no
	// snapshot has been written yet, which is not an error.
	Read(ctx context.Context, name string) (data []byte, found bool, err error)

	// Write replaces the snapshot stored under name. Implementations must
	// never leave a partially written snapshot behind on success.
	Write(ctx context.Context, name string, data []byte) error

	// Close releases resources held by the backend.
	Close() error
}

// LoadJSON decodes the named snapshot into v. It reports false when the
// snapshot does not exist, leaving v untouched.
func LoadJSON(ctx context.Context, b Backend, name string, v any) (bool, error) {
	data, found, err := b.Read(ctx, name)
	if err != nil {
		return false, errors.Mark(fmt.Errorf("read %s snapshot: %w", name, err), errors.ErrPersistence)
	}
	if !found || len(data) == 0 {
		return false, nil
	}

	if err := json.Unmarshal(data, v); err != nil {
		return false, errors.Mark(fmt.Errorf("decode %s snapshot: %w", name, err), errors.ErrPersistence)
	}
	return true, nil
}

// SaveJSON encodes v and replaces the named snapshot with it.
func SaveJSON(ctx context.Context, b Backend, name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Mark(fmt.Errorf("encode %s snapshot: %w", name, err), errors.ErrPersistence)
	}

	if err := b.Write(ctx, name, data); err != nil {
		return errors.Mark(fmt.Errorf("write %s snapshot: %w", name, err), errors.ErrPersistence)
	}
	return nil
}

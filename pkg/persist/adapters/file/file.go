package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/lexlapax/recall/pkg/log"
)

// FileBackend implements persist.Backend with one JSON document per snapshot
// inside a directory. Writes go to a temporary file that is renamed over the
// previous snapshot, so a crash leaves either the old or the new document.
type FileBackend struct {
	dir string
}

// NewFileBackend creates a backend rooted at dir. The directory is created on
// first write.
func NewFileBackend(dir string) *FileBackend {
	log.Debug("Initialized file persistence backend", "dir", dir)
	return &FileBackend{dir: dir}
}

// Path returns the file that holds the named snapshot.
func (f *FileBackend) Path(name string) string {
	return filepath.Join(f.dir, name+".json")
}

// Read implements persist.Backend.
func (f *FileBackend) Read(ctx context.Context, name string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	data, err := os.ReadFile(f.Path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read snapshot file: %w", err)
	}
	return data, true, nil
}

// Write implements persist.Backend.
func (f *FileBackend) Write(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tmp, err := os.CreateTemp(f.dir, "."+name+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary snapshot: %w", err)
	}
	tmpPath := tmp.Name()

	// Remove the temporary file unless the rename succeeded
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temporary snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temporary snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temporary snapshot: %w", err)
	}

	if err := os.Rename(tmpPath, f.Path(name)); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	committed = true

	log.DebugContext(ctx, "Wrote snapshot file", "name", name, "bytes", len(data))
	return nil
}

// Close implements persist.Backend. The file backend holds no open handles.
func (f *FileBackend) Close() error {
	return nil
}

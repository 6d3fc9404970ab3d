package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/lexlapax/recall/pkg/log"
)

// ErrInjectedWrite is returned by Write while write failures are enabled.
var ErrInjectedWrite = errors.New("mock backend: injected write failure")

// MockBackend is an in-memory implementation of persist.Backend used for
// testing and for sessions that should not touch the disk.
type MockBackend struct {
	snapshots map[string][]byte
	writes    map[string]int
	failWrite bool
	closed    bool

	// Mutex for safe concurrent access
	mutex sync.RWMutex
}

// NewMockBackend creates a new, empty MockBackend.
func NewMockBackend() *MockBackend {
	log.Debug("Initialized mock persistence backend")
	return &MockBackend{
		snapshots: make(map[string][]byte),
		writes:    make(map[string]int),
	}
}

// Read implements persist.Backend.
func (m *MockBackend) Read(ctx context.Context, name string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	m.mutex.RLock()
	defer m.mutex.RUnlock()

	data, ok := m.snapshots[name]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), data...), true, nil
}

// Write implements persist.Backend.
func (m *MockBackend) Write(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.failWrite {
		log.DebugContext(ctx, "Mock backend rejecting write", "name", name)
		return ErrInjectedWrite
	}

	m.snapshots[name] = append([]byte(nil), data...)
	m.writes[name]++
	return nil
}

// Close implements persist.Backend.
func (m *MockBackend) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.closed = true
	return nil
}

// SetWriteFailure makes subsequent writes fail (or succeed again).
func (m *MockBackend) SetWriteFailure(fail bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.failWrite = fail
}

// Seed stores a snapshot without counting it as a write.
func (m *MockBackend) Seed(name string, data []byte) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.snapshots[name] = append([]byte(nil), data...)
}

// Snapshot returns the raw bytes last written under name.
func (m *MockBackend) Snapshot(name string) []byte {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return append([]byte(nil), m.snapshots[name]...)
}

// WriteCount returns how many successful writes targeted name.
func (m *MockBackend) WriteCount(name string) int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.writes[name]
}

// Closed reports whether Close has been called.
func (m *MockBackend) Closed() bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.closed
}

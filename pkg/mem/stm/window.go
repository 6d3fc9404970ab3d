// Package stm holds the short-term conversation window: the most recent
// exchanges, oldest first, bounded to a fixed number of turns.
package stm

import (
	"context"
	"sync"

	"github.com/lexlapax/recall/pkg/log"
	"github.com/lexlapax/recall/pkg/persist"
)

// DefaultCapacity is the number of turns kept when none is configured.
const DefaultCapacity = 5

// Turn is one user message and the assistant's reply.
type Turn struct {
	User      string `json:"user"`
	Assistant string `json:"assistant"`
}

// Window is a bounded, persisted list of recent turns.
type Window struct {
	backend  persist.Backend
	capacity int

	mu    sync.RWMutex
	turns []Turn
}

// NewWindow creates an empty window holding at most capacity turns. A
// capacity below 1 falls back to DefaultCapacity.
func NewWindow(backend persist.Backend, capacity int) *Window {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Window{backend: backend, capacity: capacity}
}

// Load reads the persisted window. Only the newest Capacity turns are kept.
func (w *Window) Load(ctx context.Context) error {
	var turns []Turn
	if _, err := persist.LoadJSON(ctx, w.backend, persist.ConversationSnapshot, &turns); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.turns = trim(turns, w.capacity)

	log.DebugContext(ctx, "Loaded conversation window", "turns", len(w.turns), "capacity", w.capacity)
	return nil
}

// Append adds a turn, evicting the oldest ones beyond capacity, and persists
// the window. On a persistence failure the window is left unchanged.
func (w *Window) Append(ctx context.Context, turn Turn) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	next := make([]Turn, 0, len(w.turns)+1)
	next = append(next, w.turns...)
	next = trim(append(next, turn), w.capacity)

	if err := persist.SaveJSON(ctx, w.backend, persist.ConversationSnapshot, next); err != nil {
		log.ErrorContext(ctx, "Failed to persist conversation window", "error", err)
		return err
	}

	w.turns = next
	return nil
}

// List returns the turns, oldest first.
func (w *Window) List() []Turn {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]Turn(nil), w.turns...)
}

// Clear empties the window and persists the empty list.
func (w *Window) Clear(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := persist.SaveJSON(ctx, w.backend, persist.ConversationSnapshot, []Turn{}); err != nil {
		return err
	}
	w.turns = nil
	return nil
}

// Len returns the number of turns held.
func (w *Window) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.turns)
}

// Capacity returns the maximum number of turns.
func (w *Window) Capacity() int {
	return w.capacity
}

func trim(turns []Turn, capacity int) []Turn {
	if len(turns) <= capacity {
		return turns
	}
	return append([]Turn(nil), turns[len(turns)-capacity:]...)
}

// Package ltm holds the long-term fact memory: an ordered, deduplicated
// collection of key/value records with embeddings, persisted as one snapshot.
package ltm

import (
	"fmt"
	"strings"
	"time"
)

// Fact is a key/value pair extracted from a conversation, before it has an id
// or an embedding.
type Fact struct {
	Key      string `json:"key"`
	Value    string `json:"value"`
	Category string `json:"category,omitempty"`
}

// Text renders the fact the way it is stored and shown: "key: value".
func (f Fact) Text() string {
	return FormatText(f.Key, f.Value)
}

// Normalize trims surrounding whitespace from every field.
func (f Fact) Normalize() Fact {
	return Fact{
		Key:      strings.TrimSpace(f.Key),
		Value:    strings.TrimSpace(f.Value),
		Category: strings.TrimSpace(f.Category),
	}
}

// FormatText joins a key and a value into record text.
func FormatText(key, value string) string {
	return fmt.Sprintf("%s: %s", key, value)
}

// MemoryRecord represents a single stored fact.
type MemoryRecord struct {
	// ID is unique within the store and assigned in increasing order
	ID int64 `json:"id"`

	Key   string `json:"key"`
	Value string `json:"value"`

	// Text is "key: value"
	Text string `json:"text"`

	// Category is optional; empty means uncategorized
	Category string `json:"category,omitempty"`

	CreatedAt time.Time `json:"createdAt"`

	// Embedding is the weighted blend of the key and value embeddings
	Embedding []float32 `json:"embedding"`
}

// clone returns a copy that shares no slices with r.
func (r MemoryRecord) clone() MemoryRecord {
	r.Embedding = append([]float32(nil), r.Embedding...)
	return r
}

// InsertResult describes the outcome of Store.Insert.
type InsertResult struct {
	// Record is the stored record when the insert was applied
	Record MemoryRecord

	// Skipped is true when the fact was recognized as a duplicate
	Skipped bool

	// Duplicate is the existing record that caused the skip
	Duplicate *MemoryRecord
}

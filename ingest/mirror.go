package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned when a mirrored record does not exist
var ErrNotFound = errors.New("mirror record not found")

// Kind is the type of entity mirrored from the commerce platform
type Kind string

const (
	Orders    Kind = "orders"
	Products  Kind = "products"
	Customers Kind = "customers"
	Inventory Kind = "inventory"
)

// Record is the last known platform state of one entity
type Record struct {
	Kind      Kind            `json:"kind"`
	ID        string          `json:"id"`
	Topic     string          `json:"topic"`
	Data      json.RawMessage `json:"data"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Mirror keeps a local copy of platform entities pushed by webhooks
type Mirror interface {
	Put(ctx context.Context, rec Record) error
	Get(ctx context.Context, kind Kind, id string) (Record, error)
	Count(ctx context.Context, kind Kind) (int64, error)
}

// MemoryMirror is a process-local Mirror
type MemoryMirror struct {
	mu      sync.RWMutex
	records map[Kind]map[string]Record
}

// NewMemoryMirror creates an empty MemoryMirror
func NewMemoryMirror() *MemoryMirror {
	return &MemoryMirror{records: make(map[Kind]map[string]Record)}
}

// Put implements Mirror
func (m *MemoryMirror) Put(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	byID, ok := m.records[rec.Kind]
	if !ok {
		byID = make(map[string]Record)
		m.records[rec.Kind] = byID
	}
	byID[rec.ID] = rec
	return nil
}

// Get implements Mirror
func (m *MemoryMirror) Get(_ context.Context, kind Kind, id string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[kind][id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

// Count implements Mirror
func (m *MemoryMirror) Count(_ context.Context, kind Kind) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.records[kind])), nil
}

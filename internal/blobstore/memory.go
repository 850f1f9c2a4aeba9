package blobstore

import (
	"context"
	"fmt"
	"sync"
)

type memBlob struct {
	data        []byte
	contentType string
}

// Memory is an in-memory Store for tests and local runs. Safe for
// concurrent use.
type Memory struct {
	mu    sync.RWMutex
	blobs map[ID]memBlob
}

func NewMemory() *Memory {
	return &Memory{blobs: make(map[ID]memBlob)}
}

func (m *Memory) Put(_ context.Context, data []byte, contentType string) (ID, error) {
	id := NewID(data)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[id] = memBlob{data: append([]byte(nil), data...), contentType: contentType}
	return id, nil
}

func (m *Memory) Get(_ context.Context, id ID) ([]byte, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.blobs[id]
	if !ok {
		return nil, "", fmt.Errorf("%q: %w", id, ErrNotFound)
	}
	return append([]byte(nil), b.data...), b.contentType, nil
}

func (m *Memory) Delete(_ context.Context, id ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.blobs[id]; !ok {
		return fmt.Errorf("%q: %w", id, ErrNotFound)
	}
	delete(m.blobs, id)
	return nil
}

// Len reports how many blobs are stored; tests use it to check for orphans.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}

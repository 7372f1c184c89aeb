package doccache

import (
	"context"
	"sync"
)

// Memory is an in-process cache with the same contract as Store.
type Memory struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewMemory returns an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{entries: map[string][]byte{}}
}

// Get returns a copy of the cached payload.
func (m *Memory) Get(_ context.Context, namespace, source string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.entries[Key(namespace, source)]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), data...), true, nil
}

// Put stores a copy of data.
func (m *Memory) Put(_ context.Context, namespace, source string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[Key(namespace, source)] = append([]byte(nil), data...)
	return nil
}

// Len reports the number of cached entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

package store

import (
	"context"
	"sync"
)

// Memory keeps values in a map. Values are copied on the way in and out.
type Memory struct {
	mu     sync.RWMutex
	values map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{values: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.values[key]
	if !ok {
		return nil, false, nil
	}
	return clone(v), true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	m.values[key] = clone(value)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Update(_ context.Context, key string, fn UpdateFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.values[key]
	next, err := fn(clone(cur), ok)
	if err != nil {
		return err
	}
	m.values[key] = clone(next)
	return nil
}

func (m *Memory) Close() error { return nil }

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

package adminlog

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory audit log for demo/development mode.
type MemoryStore struct {
	entries []*Entry
	mu      sync.RWMutex
}

// NewMemoryStore creates a new in-memory audit log.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Append(ctx context.Context, e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *e
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *MemoryStore) List(ctx context.Context, limit int) ([]*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Newest first.
	var result []*Entry
	for i := len(m.entries) - 1; i >= 0 && len(result) < limit; i-- {
		cp := *m.entries[i]
		result = append(result, &cp)
	}
	return result, nil
}

func (m *MemoryStore) ListByTarget(ctx context.Context, targetType, targetID string, limit int) ([]*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Entry
	for i := len(m.entries) - 1; i >= 0 && len(result) < limit; i-- {
		if m.entries[i].TargetType == targetType && m.entries[i].TargetID == targetID {
			cp := *m.entries[i]
			result = append(result, &cp)
		}
	}
	return result, nil
}

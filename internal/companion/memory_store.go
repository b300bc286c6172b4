package companion

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory companion directory for demo/development mode.
type MemoryStore struct {
	companions map[string]*Companion
	byUser     map[string]string
	mu         sync.RWMutex
}

// NewMemoryStore creates a new in-memory companion directory.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		companions: make(map[string]*Companion),
		byUser:     make(map[string]string),
	}
}

func (m *MemoryStore) Create(ctx context.Context, c *Companion) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byUser[c.UserID]; ok {
		return ErrExists
	}
	cp := *c
	m.companions[c.ID] = &cp
	m.byUser[c.UserID] = c.ID
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Companion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.companions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MemoryStore) GetByUserID(ctx context.Context, userID string) (*Companion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byUser[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m.companions[id]
	return &cp, nil
}

func (m *MemoryStore) Update(ctx context.Context, c *Companion) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.companions[c.ID]; !ok {
		return ErrNotFound
	}
	cp := *c
	cp.UpdatedAt = time.Now().UTC()
	m.companions[c.ID] = &cp
	return nil
}

func (m *MemoryStore) SetAvailability(ctx context.Context, id string, available bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.companions[id]
	if !ok {
		return ErrNotFound
	}
	c.IsAvailable = available
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryStore) ListApproved(ctx context.Context, onlyAvailable bool, limit int) ([]*Companion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Companion
	for _, c := range m.companions {
		if c.ModerationStatus != ModerationApproved {
			continue
		}
		if onlyAvailable && !c.IsAvailable {
			continue
		}
		cp := *c
		result = append(result, &cp)
		if len(result) >= limit {
			break
		}
	}
	return result, nil
}

package payment

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory payment store for demo/development mode.
type MemoryStore struct {
	payments    map[string]*Payment
	byBooking   map[string]string
	byReference map[string]string
	mu          sync.RWMutex
}

// NewMemoryStore creates a new in-memory payment store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		payments:    make(map[string]*Payment),
		byBooking:   make(map[string]string),
		byReference: make(map[string]string),
	}
}

func (m *MemoryStore) Create(ctx context.Context, p *Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *p
	m.payments[p.ID] = &cp
	m.byBooking[p.BookingID] = p.ID
	m.byReference[p.Reference] = p.ID
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.payments[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryStore) GetByBookingID(ctx context.Context, bookingID string) (*Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byBooking[bookingID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m.payments[id]
	return &cp, nil
}

func (m *MemoryStore) GetByReference(ctx context.Context, reference string) (*Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byReference[reference]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m.payments[id]
	return &cp, nil
}

func (m *MemoryStore) SetAuthorization(ctx context.Context, id, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.payments[id]
	if !ok {
		return ErrNotFound
	}
	p.AuthorizationURL = url
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryStore) UpdateStatus(ctx context.Context, id string, from, to Status, paidAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.payments[id]
	if !ok {
		return ErrNotFound
	}
	if p.Status != from {
		return ErrInvalidStatus
	}
	p.Status = to
	p.PaidAt = paidAt
	p.UpdatedAt = time.Now().UTC()
	return nil
}

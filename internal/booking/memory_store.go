package booking

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory booking store for demo/development mode.
type MemoryStore struct {
	bookings map[string]*Booking
	mu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory booking store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{bookings: make(map[string]*Booking)}
}

func (m *MemoryStore) Create(ctx context.Context, b *Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *b
	m.bookings[b.ID] = &cp
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *MemoryStore) Transition(ctx context.Context, b *Booking, from Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.bookings[b.ID]
	if !ok {
		return ErrNotFound
	}
	if current.Status != from {
		return ErrConflict
	}
	cp := *b
	cp.UpdatedAt = time.Now().UTC()
	m.bookings[b.ID] = &cp
	b.UpdatedAt = cp.UpdatedAt
	return nil
}

func (m *MemoryStore) ListByClient(ctx context.Context, clientID string, limit int) ([]*Booking, error) {
	return m.list(func(b *Booking) bool { return b.ClientID == clientID }, limit), nil
}

func (m *MemoryStore) ListByCompanion(ctx context.Context, companionID string, limit int) ([]*Booking, error) {
	return m.list(func(b *Booking) bool { return b.CompanionID == companionID }, limit), nil
}

func (m *MemoryStore) ListByStatus(ctx context.Context, status Status, limit int) ([]*Booking, error) {
	return m.list(func(b *Booking) bool { return b.Status == status }, limit), nil
}

func (m *MemoryStore) ListPendingExpired(ctx context.Context, now time.Time, limit int) ([]*Booking, error) {
	return m.list(func(b *Booking) bool {
		return b.Status == StatusPending && !now.Before(b.RequestExpiresAt)
	}, limit), nil
}

func (m *MemoryStore) ListCompletionOverdue(ctx context.Context, now time.Time, limit int) ([]*Booking, error) {
	return m.list(func(b *Booking) bool {
		return b.Status == StatusPendingCompletion &&
			b.AutoCompleteAt != nil && !now.Before(*b.AutoCompleteAt)
	}, limit), nil
}

func (m *MemoryStore) CountByStatus(ctx context.Context) (map[Status]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[Status]int64)
	for _, b := range m.bookings {
		counts[b.Status]++
	}
	return counts, nil
}

func (m *MemoryStore) list(match func(*Booking) bool, limit int) []*Booking {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Booking
	for _, b := range m.bookings {
		if match(b) {
			cp := *b
			result = append(result, &cp)
		}
	}
	// Newest first, deterministic for tests.
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

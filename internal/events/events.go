// Package events defines the notifications the platform fans out to
// realtime subscribers and the message broker.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	TypeBookingStateChanged = "booking.state_changed"
	TypeDisputeOpened       = "booking.dispute_opened"
	TypePaymentVerified     = "payment.verified"
)

// Event is a single notification. UserIDs names the users it is
// addressed to; an empty slice means broadcast.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	UserIDs   []string       `json:"-"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// New creates an event addressed to userIDs.
func New(eventType string, data map[string]any, userIDs ...string) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		UserIDs:   userIDs,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// Emitter delivers events. Implementations must not block the caller:
// delivery is best-effort and failures are logged, not returned.
type Emitter interface {
	Emit(ctx context.Context, e Event)
}

// Multi fans an event out to several emitters.
type Multi []Emitter

func (m Multi) Emit(ctx context.Context, e Event) {
	for _, emitter := range m {
		emitter.Emit(ctx, e)
	}
}

// Discard drops every event. Used when no broker or hub is configured.
type Discard struct{}

func (Discard) Emit(ctx context.Context, e Event) {}

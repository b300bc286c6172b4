// Package booking implements the booking lifecycle: a nine-state
// machine from the client's request through acceptance, the session
// itself, and settlement by confirmation, timeout, or dispute.
package booking

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound             = errors.New("booking: not found")
	ErrUnauthorized         = errors.New("booking: caller may not perform this operation")
	ErrInvalidState         = errors.New("booking: invalid state for operation")
	ErrConflict             = errors.New("booking: concurrent update, retry")
	ErrExpired              = errors.New("booking: request has expired")
	ErrCompanionUnavailable = errors.New("booking: companion is not available")
	ErrCompanionNotApproved = errors.New("booking: companion is not approved")
	ErrPaymentRequired      = errors.New("booking: payment has not been confirmed")
)

// Status is the lifecycle state of a booking. The string values are
// part of the API contract and are stored verbatim.
type Status string

const (
	StatusPending           Status = "pending"
	StatusAccepted          Status = "accepted"
	StatusActive            Status = "active"
	StatusPendingCompletion Status = "pending_completion"
	StatusCompleted         Status = "completed"
	StatusDisputed          Status = "disputed"
	StatusCancelled         Status = "cancelled"
	StatusRejected          Status = "rejected"
	StatusExpired           Status = "expired"
)

// IsTerminal reports whether no further transitions are allowed from s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusRejected, StatusExpired:
		return true
	}
	return false
}

// transitions is the closed set of legal state changes. Anything not
// listed here is rejected before it reaches the store.
var transitions = map[Status][]Status{
	StatusPending:           {StatusAccepted, StatusRejected, StatusExpired, StatusCancelled},
	StatusAccepted:          {StatusActive, StatusPendingCompletion, StatusCancelled},
	StatusActive:            {StatusPendingCompletion},
	StatusPendingCompletion: {StatusCompleted, StatusDisputed},
	StatusDisputed:          {StatusCompleted, StatusCancelled},
}

// ValidTransition reports whether from -> to is a legal state change.
func ValidTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Booking is a client's request for a companion's time. Monetary
// amounts are in the currency's minor unit; TotalAmount is always
// HourlyRate * DurationHours computed server-side.
type Booking struct {
	ID               string     `json:"id"`
	ClientID         string     `json:"clientId"`
	CompanionID      string     `json:"companionId"`
	Status           Status     `json:"status"`
	StartTime        time.Time  `json:"startTime"`
	DurationHours    int        `json:"durationHours"`
	HourlyRate       int64      `json:"hourlyRate"`
	TotalAmount      int64      `json:"totalAmount"`
	Currency         string     `json:"currency"`
	Location         string     `json:"location,omitempty"`
	Notes            string     `json:"notes,omitempty"`
	DisputeReason    string     `json:"disputeReason,omitempty"`
	RequestExpiresAt time.Time  `json:"requestExpiresAt"`
	AcceptedAt       *time.Time `json:"acceptedAt,omitempty"`
	// CompletionRequestedAt starts the confirmation window; AutoCompleteAt
	// is when the sweep settles it if the client stays silent.
	CompletionRequestedAt *time.Time `json:"completionRequestedAt,omitempty"`
	AutoCompleteAt        *time.Time `json:"autoCompleteAt,omitempty"`
	CompletedAt           *time.Time `json:"completedAt,omitempty"`
	CreatedAt             time.Time  `json:"createdAt"`
	UpdatedAt             time.Time  `json:"updatedAt"`
}

// RequestExpired reports whether a pending booking's acceptance window
// has closed at time now. The deadline instant itself counts as closed.
func (b *Booking) RequestExpired(now time.Time) bool {
	return b.Status == StatusPending && !now.Before(b.RequestExpiresAt)
}

// Store persists bookings. Transition performs a conditional write: the
// row only changes when its current status matches from, and a failed
// guard surfaces as ErrConflict so callers can tell races from bugs.
type Store interface {
	Create(ctx context.Context, b *Booking) error
	Get(ctx context.Context, id string) (*Booking, error)
	Transition(ctx context.Context, b *Booking, from Status) error
	ListByClient(ctx context.Context, clientID string, limit int) ([]*Booking, error)
	ListByCompanion(ctx context.Context, companionID string, limit int) ([]*Booking, error)
	ListByStatus(ctx context.Context, status Status, limit int) ([]*Booking, error)
	// ListPendingExpired returns pending bookings whose acceptance
	// window closed before now.
	ListPendingExpired(ctx context.Context, now time.Time, limit int) ([]*Booking, error)
	// ListCompletionOverdue returns pending_completion bookings whose
	// auto-complete deadline passed before now.
	ListCompletionOverdue(ctx context.Context, now time.Time, limit int) ([]*Booking, error)
	CountByStatus(ctx context.Context) (map[Status]int64, error)
}

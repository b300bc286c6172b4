// Package companion holds the companion directory: the subset of a
// companion's listing the booking engine needs (rate, availability,
// moderation state, payout subaccount).
package companion

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("companion: not found")
	ErrExists   = errors.New("companion: already registered for this user")
)

// ModerationStatus is the admin review state of a listing.
type ModerationStatus string

const (
	ModerationPending  ModerationStatus = "pending"
	ModerationApproved ModerationStatus = "approved"
	ModerationRejected ModerationStatus = "rejected"
)

// Valid reports whether s is a known moderation status.
func (s ModerationStatus) Valid() bool {
	switch s {
	case ModerationPending, ModerationApproved, ModerationRejected:
		return true
	}
	return false
}

// Companion is a bookable listing.
type Companion struct {
	ID               string           `json:"id"`
	UserID           string           `json:"userId"`
	DisplayName      string           `json:"displayName"`
	City             string           `json:"city,omitempty"`
	HourlyRate       int64            `json:"hourlyRate"` // minor units
	Currency         string           `json:"currency"`
	IsAvailable      bool             `json:"isAvailable"`
	ModerationStatus ModerationStatus `json:"moderationStatus"`
	// SubaccountCode is the gateway split destination. Empty means no
	// automatic split: the platform collects 100% and pays out manually.
	SubaccountCode string    `json:"subaccountCode,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Bookable reports whether the listing can receive new booking requests.
func (c *Companion) Bookable() bool {
	return c.ModerationStatus == ModerationApproved && c.IsAvailable
}

// Store persists companion listings.
type Store interface {
	Create(ctx context.Context, c *Companion) error
	Get(ctx context.Context, id string) (*Companion, error)
	GetByUserID(ctx context.Context, userID string) (*Companion, error)
	Update(ctx context.Context, c *Companion) error
	// SetAvailability flips the availability toggle without touching other fields.
	SetAvailability(ctx context.Context, id string, available bool) error
	ListApproved(ctx context.Context, onlyAvailable bool, limit int) ([]*Companion, error)
}

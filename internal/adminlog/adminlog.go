// Package adminlog provides the append-only audit trail for admin actions.
//
// Every moderation and dispute-resolution action writes one entry. Entries
// are never mutated or deleted.
package adminlog

import (
	"context"
	"errors"
	"time"

	"github.com/zenofund/companion/internal/idgen"
)

var ErrNotFound = errors.New("adminlog: entry not found")

// Target types referenced by audit entries.
const (
	TargetBooking   = "booking"
	TargetCompanion = "companion"
	TargetPlatform  = "platform"
)

// Actions recorded by the engine and the admin surface.
const (
	ActionResolveDisputeComplete = "resolve_dispute_complete"
	ActionResolveDisputeRevoke   = "resolve_dispute_revoke"
	ActionModerateCompanion      = "moderate_companion"
	ActionSetPlatformFee         = "set_platform_fee"
)

// Entry is one immutable audit record.
type Entry struct {
	ID         string         `json:"id"`
	AdminID    string         `json:"adminId"`
	Action     string         `json:"action"`
	TargetType string         `json:"targetType"`
	TargetID   string         `json:"targetId"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// New builds an entry with a fresh id and timestamp.
func New(adminID, action, targetType, targetID string, details map[string]any) *Entry {
	return &Entry{
		ID:         idgen.WithPrefix(idgen.PrefixAdminLog),
		AdminID:    adminID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Details:    details,
		CreatedAt:  time.Now().UTC(),
	}
}

// Store persists audit entries. Append-only: no update or delete.
type Store interface {
	Append(ctx context.Context, e *Entry) error
	List(ctx context.Context, limit int) ([]*Entry, error)
	ListByTarget(ctx context.Context, targetType, targetID string, limit int) ([]*Entry, error)
}

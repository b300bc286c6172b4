// Package payment tracks gateway charges for bookings and the platform
// fee / companion earning split carried on each of them.
package payment

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound      = errors.New("payment: not found")
	ErrInvalidStatus = errors.New("payment: invalid status for operation")
	ErrGateway       = errors.New("payment: gateway error")
)

// Status is the lifecycle state of a payment.
type Status string

const (
	StatusPending  Status = "pending"
	StatusPaid     Status = "paid"
	StatusRefunded Status = "refunded"
)

// Payment is a single gateway charge attempt for a booking. Amounts are
// in the currency's minor unit.
type Payment struct {
	ID               string     `json:"id"`
	BookingID        string     `json:"bookingId"`
	Amount           int64      `json:"amount"`
	Currency         string     `json:"currency"`
	Reference        string     `json:"reference"`
	Provider         string     `json:"provider"`
	Status           Status     `json:"status"`
	PlatformFee      int64      `json:"platformFee"`
	CompanionEarning int64      `json:"companionEarning"`
	AuthorizationURL string     `json:"authorizationUrl,omitempty"`
	PaidAt           *time.Time `json:"paidAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// ComputeSplit divides total into the platform fee and the companion
// earning. The fee is rounded half-up to the nearest minor unit and the
// earning is the remainder, so fee + earning == total always holds.
// Negative amounts and percentages outside [0, 100] are rejected.
func ComputeSplit(total int64, feePercent int) (fee, earning int64, err error) {
	if total < 0 {
		return 0, 0, fmt.Errorf("payment: negative amount %d", total)
	}
	if feePercent < 0 || feePercent > 100 {
		return 0, 0, fmt.Errorf("payment: fee percent %d out of range", feePercent)
	}
	fee = (total*int64(feePercent) + 50) / 100
	earning = total - fee
	return fee, earning, nil
}

// Charge is what the service asks a gateway to collect.
type Charge struct {
	Reference      string
	Amount         int64
	Currency       string
	Email          string
	SubaccountCode string
	PlatformFee    int64
	CallbackURL    string
}

// Authorization is the gateway's handle for a started charge.
type Authorization struct {
	Reference string
	URL       string
}

// VerifyResult is the gateway's view of a charge after verification.
type VerifyResult struct {
	Reference string
	Paid      bool
	Amount    int64
	Currency  string
	PaidAt    time.Time
}

// Gateway abstracts the payment provider. Implementations wrap errors
// in ErrGateway so callers can treat provider failures uniformly.
type Gateway interface {
	Initialize(ctx context.Context, charge Charge) (*Authorization, error)
	Verify(ctx context.Context, reference string) (*VerifyResult, error)
}

// Store persists payments.
type Store interface {
	Create(ctx context.Context, p *Payment) error
	Get(ctx context.Context, id string) (*Payment, error)
	GetByBookingID(ctx context.Context, bookingID string) (*Payment, error)
	GetByReference(ctx context.Context, reference string) (*Payment, error)
	// SetAuthorization records the gateway redirect URL after a
	// successful (possibly retried) initialization.
	SetAuthorization(ctx context.Context, id, url string) error
	// UpdateStatus transitions the payment only if it is currently in
	// from, returning ErrInvalidStatus when the guard fails.
	UpdateStatus(ctx context.Context, id string, from, to Status, paidAt *time.Time) error
}

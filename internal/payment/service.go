package payment

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/zenofund/companion/internal/idgen"
	"github.com/zenofund/companion/internal/logging"
	"github.com/zenofund/companion/internal/metrics"
)

// FeePolicy holds the platform fee percentage. Admins can change it at
// runtime; reads are lock-free so the hot path never contends.
type FeePolicy struct {
	percent atomic.Int64
}

// NewFeePolicy creates a policy starting at percent.
func NewFeePolicy(percent int) *FeePolicy {
	fp := &FeePolicy{}
	fp.percent.Store(int64(percent))
	return fp
}

// Percent returns the current fee percentage.
func (fp *FeePolicy) Percent() int {
	return int(fp.percent.Load())
}

// Set updates the fee percentage. Values outside [0, 100] are rejected.
func (fp *FeePolicy) Set(percent int) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("fee percent %d out of range", percent)
	}
	fp.percent.Store(int64(percent))
	return nil
}

// BookingOpen reports whether the booking behind a payment can still
// be settled. Wired from the booking side to avoid an import cycle.
type BookingOpen func(ctx context.Context, bookingID string) (bool, error)

// Service coordinates gateway charges and the payment records behind them.
type Service struct {
	store       Store
	gateway     Gateway
	fees        *FeePolicy
	provider    string
	callbackURL string
	bookingOpen BookingOpen
}

// NewService creates a payment service backed by the given store and gateway.
func NewService(store Store, gateway Gateway, fees *FeePolicy, provider, callbackURL string) *Service {
	return &Service{
		store:       store,
		gateway:     gateway,
		fees:        fees,
		provider:    provider,
		callbackURL: callbackURL,
	}
}

// Fees exposes the policy for admin handlers.
func (s *Service) Fees() *FeePolicy { return s.fees }

// SetBookingOpen installs the guard consulted before a verified charge
// is marked paid. It is a separate setter because the booking service
// is built after the payment service it depends on.
func (s *Service) SetBookingOpen(fn BookingOpen) { s.bookingOpen = fn }

// ChargeRequest describes the booking the charge is for.
type ChargeRequest struct {
	BookingID      string
	Amount         int64
	Currency       string
	ClientEmail    string
	SubaccountCode string
}

// InitializeForBooking creates (or reuses) the payment record for a
// booking and asks the gateway for a checkout authorization. The record
// is written before the gateway call so a gateway outage leaves a
// retriable pending payment rather than nothing.
func (s *Service) InitializeForBooking(ctx context.Context, req ChargeRequest) (*Payment, error) {
	log := logging.FromContext(ctx)

	pay, err := s.store.GetByBookingID(ctx, req.BookingID)
	switch {
	case err == nil:
		if pay.Status != StatusPending {
			return nil, fmt.Errorf("%w: payment is %s", ErrInvalidStatus, pay.Status)
		}
		if pay.AuthorizationURL != "" {
			return pay, nil
		}
		// Record exists but the earlier gateway call failed; retry below.
	case err == ErrNotFound:
		fee, earning, err := ComputeSplit(req.Amount, s.fees.Percent())
		if err != nil {
			return nil, err
		}
		now := time.Now().UTC()
		pay = &Payment{
			ID:               idgen.WithPrefix(idgen.PrefixPayment),
			BookingID:        req.BookingID,
			Amount:           req.Amount,
			Currency:         req.Currency,
			Reference:        uuid.NewString(),
			Provider:         s.provider,
			Status:           StatusPending,
			PlatformFee:      fee,
			CompanionEarning: earning,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := s.store.Create(ctx, pay); err != nil {
			return nil, fmt.Errorf("creating payment: %w", err)
		}
	default:
		return nil, err
	}

	auth, err := s.gateway.Initialize(ctx, Charge{
		Reference:      pay.Reference,
		Amount:         pay.Amount,
		Currency:       pay.Currency,
		Email:          req.ClientEmail,
		SubaccountCode: req.SubaccountCode,
		PlatformFee:    pay.PlatformFee,
		CallbackURL:    s.callbackURL,
	})
	if err != nil {
		metrics.GatewayErrorsTotal.WithLabelValues("initialize").Inc()
		log.Warn("gateway initialize failed",
			"booking_id", req.BookingID,
			"reference", pay.Reference,
			"error", err)
		return pay, fmt.Errorf("%w: %v", ErrGateway, err)
	}

	if err := s.store.SetAuthorization(ctx, pay.ID, auth.URL); err != nil {
		return nil, fmt.Errorf("saving authorization url: %w", err)
	}
	pay.AuthorizationURL = auth.URL
	return pay, nil
}

// Verify asks the gateway about a reference and marks the payment paid
// if the gateway confirms it. Re-verifying an already paid payment is a
// no-op, so webhook and redirect-callback flows can both call it.
func (s *Service) Verify(ctx context.Context, reference string) (*Payment, error) {
	log := logging.FromContext(ctx)

	pay, err := s.store.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if pay.Status == StatusPaid {
		return pay, nil
	}
	if pay.Status != StatusPending {
		return nil, fmt.Errorf("%w: payment is %s", ErrInvalidStatus, pay.Status)
	}

	result, err := s.gateway.Verify(ctx, reference)
	if err != nil {
		metrics.GatewayErrorsTotal.WithLabelValues("verify").Inc()
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	if !result.Paid {
		return pay, nil
	}
	if result.Amount != pay.Amount {
		log.Warn("gateway amount mismatch",
			"reference", reference,
			"expected", pay.Amount,
			"got", result.Amount)
		return nil, fmt.Errorf("%w: amount mismatch", ErrGateway)
	}

	paidAt := result.PaidAt.UTC()
	if s.bookingOpen != nil {
		open, err := s.bookingOpen(ctx, pay.BookingID)
		if err != nil {
			return nil, fmt.Errorf("checking booking for %s: %w", reference, err)
		}
		if !open {
			// The charge landed after the booking closed; record the
			// refund the client is owed instead of marking it paid.
			if err := s.store.UpdateStatus(ctx, pay.ID, StatusPending, StatusRefunded, &paidAt); err != nil {
				if err == ErrInvalidStatus {
					return s.store.Get(ctx, pay.ID)
				}
				return nil, err
			}
			pay.Status = StatusRefunded
			pay.PaidAt = &paidAt
			log.Warn("charge for a closed booking, refund recorded",
				"reference", reference, "booking_id", pay.BookingID)
			return pay, nil
		}
	}

	if err := s.store.UpdateStatus(ctx, pay.ID, StatusPending, StatusPaid, &paidAt); err != nil {
		if err == ErrInvalidStatus {
			// A concurrent verification won; report the current row.
			return s.store.Get(ctx, pay.ID)
		}
		return nil, err
	}
	pay.Status = StatusPaid
	pay.PaidAt = &paidAt
	log.Info("payment verified", "reference", reference, "booking_id", pay.BookingID)
	return pay, nil
}

// MarkRefunded moves a paid payment to refunded. Calling it on an
// already refunded payment is a no-op so dispute resolution can retry.
func (s *Service) MarkRefunded(ctx context.Context, bookingID string) error {
	pay, err := s.store.GetByBookingID(ctx, bookingID)
	if err != nil {
		return err
	}
	if pay.Status == StatusRefunded {
		return nil
	}
	return s.store.UpdateStatus(ctx, pay.ID, StatusPaid, StatusRefunded, pay.PaidAt)
}

// ByBooking returns the payment for a booking.
func (s *Service) ByBooking(ctx context.Context, bookingID string) (*Payment, error) {
	return s.store.GetByBookingID(ctx, bookingID)
}

// ByReference returns the payment carrying a gateway reference.
func (s *Service) ByReference(ctx context.Context, reference string) (*Payment, error) {
	return s.store.GetByReference(ctx, reference)
}

package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zenofund/companion/internal/adminlog"
	"github.com/zenofund/companion/internal/events"
	"github.com/zenofund/companion/internal/idgen"
	"github.com/zenofund/companion/internal/logging"
	"github.com/zenofund/companion/internal/metrics"
	"github.com/zenofund/companion/internal/payment"
	"github.com/zenofund/companion/internal/traces"
)

// CompanionInfo is the slice of a companion listing the engine needs.
type CompanionInfo struct {
	ID             string
	UserID         string
	HourlyRate     int64
	Currency       string
	Available      bool
	Approved       bool
	SubaccountCode string
}

// CompanionDirectory resolves companion listings and flips their
// availability as bookings move through the lifecycle.
type CompanionDirectory interface {
	Lookup(ctx context.Context, companionID string) (*CompanionInfo, error)
	LookupByUser(ctx context.Context, userID string) (*CompanionInfo, error)
	SetAvailability(ctx context.Context, companionID string, available bool) error
}

// Payments is the slice of the payment service the engine uses.
type Payments interface {
	InitializeForBooking(ctx context.Context, req payment.ChargeRequest) (*payment.Payment, error)
	ByBooking(ctx context.Context, bookingID string) (*payment.Payment, error)
	MarkRefunded(ctx context.Context, bookingID string) error
}

// Dispute resolutions.
const (
	ResolutionComplete = "complete"
	ResolutionRevoke   = "revoke"
)

// Service implements the booking lifecycle.
type Service struct {
	store            Store
	directory        CompanionDirectory
	payments         Payments
	emitter          events.Emitter
	audit            adminlog.Store
	requestExpiry    time.Duration
	completionWindow time.Duration
}

// ServiceConfig wires a Service.
type ServiceConfig struct {
	Store     Store
	Directory CompanionDirectory
	Payments  Payments
	Emitter   events.Emitter
	Audit     adminlog.Store
	// RequestExpiry is how long a companion has to accept a request.
	RequestExpiry time.Duration
	// CompletionWindow is how long a client has to confirm or dispute
	// after the companion requests completion.
	CompletionWindow time.Duration
}

// NewService creates a booking service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.RequestExpiry <= 0 {
		cfg.RequestExpiry = 15 * time.Minute
	}
	if cfg.CompletionWindow <= 0 {
		cfg.CompletionWindow = 48 * time.Hour
	}
	if cfg.Emitter == nil {
		cfg.Emitter = events.Discard{}
	}
	return &Service{
		store:            cfg.Store,
		directory:        cfg.Directory,
		payments:         cfg.Payments,
		emitter:          cfg.Emitter,
		audit:            cfg.Audit,
		requestExpiry:    cfg.RequestExpiry,
		completionWindow: cfg.CompletionWindow,
	}
}

// CreateRequest is a client's booking request. The total is never taken
// from the client; it is recomputed from the listing's current rate.
type CreateRequest struct {
	CompanionID   string    `json:"companionId" binding:"required"`
	StartTime     time.Time `json:"startTime" binding:"required"`
	DurationHours int       `json:"durationHours" binding:"required"`
	Location      string    `json:"location"`
	Notes         string    `json:"notes"`
	ClientEmail   string    `json:"clientEmail"`
}

// Create places a booking request and starts the payment checkout. The
// booking persists even when the gateway is down: the returned payment
// then has no authorization URL and the client retries via the pay
// endpoint.
func (s *Service) Create(ctx context.Context, clientID string, req CreateRequest) (*Booking, *payment.Payment, error) {
	ctx, span := traces.StartSpan(ctx, "booking.Create", traces.CompanionID(req.CompanionID))
	defer span.End()
	log := logging.FromContext(ctx)

	info, err := s.directory.Lookup(ctx, req.CompanionID)
	if err != nil {
		return nil, nil, err
	}
	if info.UserID == clientID {
		return nil, nil, fmt.Errorf("%w: cannot book own listing", ErrUnauthorized)
	}
	if !info.Approved {
		return nil, nil, ErrCompanionNotApproved
	}
	if !info.Available {
		return nil, nil, ErrCompanionUnavailable
	}

	now := time.Now().UTC()
	b := &Booking{
		ID:               idgen.WithPrefix(idgen.PrefixBooking),
		ClientID:         clientID,
		CompanionID:      req.CompanionID,
		Status:           StatusPending,
		StartTime:        req.StartTime.UTC(),
		DurationHours:    req.DurationHours,
		HourlyRate:       info.HourlyRate,
		TotalAmount:      info.HourlyRate * int64(req.DurationHours),
		Currency:         info.Currency,
		Location:         req.Location,
		Notes:            req.Notes,
		RequestExpiresAt: now.Add(s.requestExpiry),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.Create(ctx, b); err != nil {
		return nil, nil, fmt.Errorf("creating booking: %w", err)
	}
	metrics.BookingTransitionsTotal.WithLabelValues(string(StatusPending)).Inc()
	span.SetAttributes(traces.BookingID(b.ID), traces.Amount(b.TotalAmount))

	pay, err := s.payments.InitializeForBooking(ctx, payment.ChargeRequest{
		BookingID:      b.ID,
		Amount:         b.TotalAmount,
		Currency:       b.Currency,
		ClientEmail:    req.ClientEmail,
		SubaccountCode: info.SubaccountCode,
	})
	if err != nil {
		if errors.Is(err, payment.ErrGateway) {
			// The request stands; checkout can be retried.
			log.Warn("checkout unavailable at booking time", "booking_id", b.ID, "error", err)
		} else {
			return b, nil, fmt.Errorf("initializing payment: %w", err)
		}
	}

	s.emitStateChanged(ctx, b, info.UserID, "")
	log.Info("booking created",
		"booking_id", b.ID,
		"companion_id", b.CompanionID,
		"total_amount", b.TotalAmount)
	return b, pay, nil
}

// RetryCheckout re-runs payment initialization for a pending booking
// whose first gateway call failed.
func (s *Service) RetryCheckout(ctx context.Context, id, clientID string) (*payment.Payment, error) {
	b, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.ClientID != clientID {
		return nil, ErrUnauthorized
	}
	if b.Status != StatusPending && b.Status != StatusAccepted {
		return nil, fmt.Errorf("%w: booking is %s", ErrInvalidState, b.Status)
	}
	if b.RequestExpired(time.Now().UTC()) {
		return nil, s.lazyExpire(ctx, b)
	}
	info, err := s.directory.Lookup(ctx, b.CompanionID)
	if err != nil {
		return nil, err
	}
	return s.payments.InitializeForBooking(ctx, payment.ChargeRequest{
		BookingID:      b.ID,
		Amount:         b.TotalAmount,
		Currency:       b.Currency,
		SubaccountCode: info.SubaccountCode,
	})
}

// Get returns a booking visible to the caller: its client, the
// companion behind it, or an admin.
func (s *Service) Get(ctx context.Context, id, callerID string, admin bool) (*Booking, error) {
	b, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if admin || b.ClientID == callerID {
		return b, nil
	}
	info, err := s.directory.Lookup(ctx, b.CompanionID)
	if err == nil && info.UserID == callerID {
		return b, nil
	}
	return nil, ErrUnauthorized
}

// Accept moves a pending request to accepted and takes the companion
// off the market. An expired request is flipped to expired on the spot,
// whether or not the sweep got to it first.
func (s *Service) Accept(ctx context.Context, id, callerUserID string) (*Booking, error) {
	ctx, span := traces.StartSpan(ctx, "booking.Accept", traces.BookingID(id))
	defer span.End()

	b, info, err := s.loadForCompanion(ctx, id, callerUserID)
	if err != nil {
		return nil, err
	}
	if b.Status != StatusPending {
		return nil, statusError(b.Status)
	}
	now := time.Now().UTC()
	if b.RequestExpired(now) {
		return nil, s.lazyExpire(ctx, b)
	}

	b.Status = StatusAccepted
	b.AcceptedAt = &now
	if err := s.transition(ctx, b, StatusPending); err != nil {
		return nil, err
	}

	if err := s.directory.SetAvailability(ctx, b.CompanionID, false); err != nil {
		logging.FromContext(ctx).Warn("failed to mark companion busy",
			"companion_id", b.CompanionID, "error", err)
	}
	s.emitStateChanged(ctx, b, info.UserID, StatusPending)
	return b, nil
}

// Reject moves a pending request to rejected.
func (s *Service) Reject(ctx context.Context, id, callerUserID string) (*Booking, error) {
	b, info, err := s.loadForCompanion(ctx, id, callerUserID)
	if err != nil {
		return nil, err
	}
	if b.Status != StatusPending {
		return nil, statusError(b.Status)
	}
	if b.RequestExpired(time.Now().UTC()) {
		return nil, s.lazyExpire(ctx, b)
	}

	b.Status = StatusRejected
	if err := s.transition(ctx, b, StatusPending); err != nil {
		return nil, err
	}
	s.emitStateChanged(ctx, b, info.UserID, StatusPending)
	return b, nil
}

// Cancel lets the client withdraw a pending or accepted booking. A paid
// booking is refunded; an accepted companion goes back on the market.
func (s *Service) Cancel(ctx context.Context, id, clientID string) (*Booking, error) {
	b, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.ClientID != clientID {
		return nil, ErrUnauthorized
	}
	if b.Status != StatusPending && b.Status != StatusAccepted {
		return nil, statusError(b.Status)
	}

	from := b.Status
	b.Status = StatusCancelled
	if err := s.transition(ctx, b, from); err != nil {
		return nil, err
	}

	if pay, err := s.payments.ByBooking(ctx, b.ID); err == nil && pay.Status == payment.StatusPaid {
		if err := s.payments.MarkRefunded(ctx, b.ID); err != nil {
			logging.FromContext(ctx).Error("refund on cancel failed",
				"booking_id", b.ID, "error", err)
		}
	}
	if from == StatusAccepted {
		s.restoreAvailability(ctx, b.CompanionID)
	}
	s.emitStateChanged(ctx, b, "", from)
	return b, nil
}

// Start marks the session underway. Either party can call it once the
// booking is accepted, but never before the payment is confirmed.
func (s *Service) Start(ctx context.Context, id, callerID string) (*Booking, error) {
	b, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	info, err := s.directory.Lookup(ctx, b.CompanionID)
	if err != nil {
		return nil, err
	}
	if b.ClientID != callerID && info.UserID != callerID {
		return nil, ErrUnauthorized
	}
	if b.Status != StatusAccepted {
		return nil, statusError(b.Status)
	}
	pay, err := s.payments.ByBooking(ctx, b.ID)
	if err != nil || pay.Status != payment.StatusPaid {
		return nil, ErrPaymentRequired
	}

	b.Status = StatusActive
	if err := s.transition(ctx, b, StatusAccepted); err != nil {
		return nil, err
	}
	s.emitStateChanged(ctx, b, info.UserID, StatusAccepted)
	return b, nil
}

// RequestCompletion is the companion's claim that the session is done.
// It opens the client's confirmation window. An accepted booking may
// skip the explicit start step, but never an unpaid one.
func (s *Service) RequestCompletion(ctx context.Context, id, callerUserID string) (*Booking, error) {
	ctx, span := traces.StartSpan(ctx, "booking.RequestCompletion", traces.BookingID(id))
	defer span.End()

	b, info, err := s.loadForCompanion(ctx, id, callerUserID)
	if err != nil {
		return nil, err
	}
	if b.Status != StatusAccepted && b.Status != StatusActive {
		return nil, statusError(b.Status)
	}
	if b.Status == StatusAccepted {
		pay, err := s.payments.ByBooking(ctx, b.ID)
		if err != nil || pay.Status != payment.StatusPaid {
			return nil, ErrPaymentRequired
		}
	}

	from := b.Status
	now := time.Now().UTC()
	deadline := now.Add(s.completionWindow)
	b.Status = StatusPendingCompletion
	b.CompletionRequestedAt = &now
	b.AutoCompleteAt = &deadline
	if err := s.transition(ctx, b, from); err != nil {
		return nil, err
	}
	s.emitStateChanged(ctx, b, info.UserID, from)
	return b, nil
}

// ConfirmCompletion is the client's sign-off. It settles the booking
// and puts the companion back on the market.
func (s *Service) ConfirmCompletion(ctx context.Context, id, clientID string) (*Booking, error) {
	ctx, span := traces.StartSpan(ctx, "booking.ConfirmCompletion", traces.BookingID(id))
	defer span.End()

	b, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.ClientID != clientID {
		return nil, ErrUnauthorized
	}
	if b.Status != StatusPendingCompletion {
		return nil, statusError(b.Status)
	}

	now := time.Now().UTC()
	b.Status = StatusCompleted
	b.CompletedAt = &now
	if err := s.transition(ctx, b, StatusPendingCompletion); err != nil {
		return nil, err
	}
	s.restoreAvailability(ctx, b.CompanionID)
	s.emitStateChanged(ctx, b, "", StatusPendingCompletion)
	return b, nil
}

// Dispute freezes settlement while an admin reviews the client's
// objection. Only the confirmation window allows it, and the reason is
// mandatory.
func (s *Service) Dispute(ctx context.Context, id, clientID, reason string) (*Booking, error) {
	ctx, span := traces.StartSpan(ctx, "booking.Dispute", traces.BookingID(id))
	defer span.End()

	if reason == "" {
		return nil, fmt.Errorf("%w: dispute reason is required", ErrInvalidState)
	}
	b, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.ClientID != clientID {
		return nil, ErrUnauthorized
	}
	if b.Status != StatusPendingCompletion {
		return nil, statusError(b.Status)
	}

	b.Status = StatusDisputed
	b.DisputeReason = reason
	if err := s.transition(ctx, b, StatusPendingCompletion); err != nil {
		return nil, err
	}
	s.emitter.Emit(ctx, events.New(events.TypeDisputeOpened, map[string]any{
		"bookingId": b.ID,
		"reason":    reason,
	}, b.ClientID))
	logging.FromContext(ctx).Info("dispute opened", "booking_id", b.ID)
	return b, nil
}

// ResolveDispute settles a disputed booking. ResolutionComplete pays
// the companion out; ResolutionRevoke refunds the client. The admin's
// notes go into the audit entry. The conditional transition makes
// resolution exclusive: of two concurrent admins, exactly one wins. A
// failed refund or audit write rolls the booking back to disputed so
// the resolution can be retried.
func (s *Service) ResolveDispute(ctx context.Context, id, adminID, resolution, notes string) (*Booking, error) {
	ctx, span := traces.StartSpan(ctx, "booking.ResolveDispute", traces.BookingID(id))
	defer span.End()
	log := logging.FromContext(ctx)

	b, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status != StatusDisputed {
		return nil, statusError(b.Status)
	}

	var target Status
	var action string
	switch resolution {
	case ResolutionComplete:
		target, action = StatusCompleted, adminlog.ActionResolveDisputeComplete
	case ResolutionRevoke:
		target, action = StatusCancelled, adminlog.ActionResolveDisputeRevoke
	default:
		return nil, fmt.Errorf("%w: unknown resolution %q", ErrInvalidState, resolution)
	}

	now := time.Now().UTC()
	b.Status = target
	if target == StatusCompleted {
		b.CompletedAt = &now
	}
	if err := s.transition(ctx, b, StatusDisputed); err != nil {
		return nil, err
	}

	if resolution == ResolutionRevoke {
		if err := s.payments.MarkRefunded(ctx, b.ID); err != nil {
			s.revertResolution(ctx, b, target)
			return nil, fmt.Errorf("refunding payment: %w", err)
		}
	}

	if s.audit != nil {
		entry := adminlog.New(adminID, action, adminlog.TargetBooking, b.ID, map[string]any{
			"resolution": resolution,
			"reason":     b.DisputeReason,
			"notes":      notes,
		})
		if err := s.audit.Append(ctx, entry); err != nil {
			// MarkRefunded is a no-op on a refunded payment, so the
			// retried resolution converges.
			s.revertResolution(ctx, b, target)
			return nil, fmt.Errorf("recording dispute resolution: %w", err)
		}
	}

	metrics.DisputesResolvedTotal.WithLabelValues(resolution).Inc()
	s.restoreAvailability(ctx, b.CompanionID)
	s.emitStateChanged(ctx, b, "", StatusDisputed)
	log.Info("dispute resolved", "booking_id", b.ID, "resolution", resolution)
	return b, nil
}

// RunExpirySweep flips pending bookings whose acceptance window closed.
// Losing a conditional write means someone else already moved the row,
// so conflicts are skipped, which makes the sweep idempotent.
func (s *Service) RunExpirySweep(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	expired, err := s.store.ListPendingExpired(ctx, now, 100)
	if err != nil {
		return 0, fmt.Errorf("listing expired requests: %w", err)
	}

	count := 0
	for _, b := range expired {
		b.Status = StatusExpired
		if err := s.store.Transition(ctx, b, StatusPending); err != nil {
			if errors.Is(err, ErrConflict) || errors.Is(err, ErrNotFound) {
				continue
			}
			return count, err
		}
		metrics.BookingTransitionsTotal.WithLabelValues(string(StatusExpired)).Inc()
		metrics.SweepTransitionsTotal.WithLabelValues("expired").Inc()
		s.emitStateChanged(ctx, b, "", StatusPending)
		count++
	}
	return count, nil
}

// RunAutoCompletionSweep settles bookings whose confirmation window
// passed without the client confirming or disputing.
func (s *Service) RunAutoCompletionSweep(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	overdue, err := s.store.ListCompletionOverdue(ctx, now, 100)
	if err != nil {
		return 0, fmt.Errorf("listing overdue completions: %w", err)
	}

	count := 0
	for _, b := range overdue {
		b.Status = StatusCompleted
		b.CompletedAt = b.AutoCompleteAt
		if err := s.store.Transition(ctx, b, StatusPendingCompletion); err != nil {
			if errors.Is(err, ErrConflict) || errors.Is(err, ErrNotFound) {
				continue
			}
			return count, err
		}
		metrics.BookingTransitionsTotal.WithLabelValues(string(StatusCompleted)).Inc()
		metrics.SweepTransitionsTotal.WithLabelValues("auto_completed").Inc()
		s.restoreAvailability(ctx, b.CompanionID)
		s.emitStateChanged(ctx, b, "", StatusPendingCompletion)
		count++
	}
	return count, nil
}

// ListForClient returns the caller's bookings as a client.
func (s *Service) ListForClient(ctx context.Context, clientID string, limit int) ([]*Booking, error) {
	return s.store.ListByClient(ctx, clientID, limit)
}

// ListForCompanionUser returns the bookings on the caller's listing.
func (s *Service) ListForCompanionUser(ctx context.Context, userID string, limit int) ([]*Booking, error) {
	info, err := s.directory.LookupByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.store.ListByCompanion(ctx, info.ID, limit)
}

// ListByStatus returns bookings in a given state, newest first.
func (s *Service) ListByStatus(ctx context.Context, status Status, limit int) ([]*Booking, error) {
	return s.store.ListByStatus(ctx, status, limit)
}

// CountByStatus returns booking counts per state.
func (s *Service) CountByStatus(ctx context.Context) (map[Status]int64, error) {
	return s.store.CountByStatus(ctx)
}

func (s *Service) loadForCompanion(ctx context.Context, id, callerUserID string) (*Booking, *CompanionInfo, error) {
	b, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	info, err := s.directory.Lookup(ctx, b.CompanionID)
	if err != nil {
		return nil, nil, err
	}
	if info.UserID != callerUserID {
		return nil, nil, ErrUnauthorized
	}
	return b, info, nil
}

// revertResolution rolls a half-resolved booking back to disputed so
// the admin can retry the resolution.
func (s *Service) revertResolution(ctx context.Context, b *Booking, from Status) {
	b.Status = StatusDisputed
	b.CompletedAt = nil
	if err := s.store.Transition(ctx, b, from); err != nil {
		logging.FromContext(ctx).Error("failed to revert dispute resolution",
			"booking_id", b.ID, "error", err)
	}
}

// lazyExpire flips an overdue pending booking to expired and reports
// ErrExpired. If the sweep won the race that is fine: the outcome is
// the same either way.
func (s *Service) lazyExpire(ctx context.Context, b *Booking) error {
	b.Status = StatusExpired
	if err := s.store.Transition(ctx, b, StatusPending); err != nil {
		if !errors.Is(err, ErrConflict) {
			return err
		}
	} else {
		metrics.BookingTransitionsTotal.WithLabelValues(string(StatusExpired)).Inc()
		s.emitStateChanged(ctx, b, "", StatusPending)
	}
	return ErrExpired
}

func (s *Service) transition(ctx context.Context, b *Booking, from Status) error {
	if !ValidTransition(from, b.Status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidState, from, b.Status)
	}
	if err := s.store.Transition(ctx, b, from); err != nil {
		if errors.Is(err, ErrConflict) {
			metrics.BookingTransitionConflicts.Inc()
		}
		return err
	}
	metrics.BookingTransitionsTotal.WithLabelValues(string(b.Status)).Inc()
	return nil
}

func (s *Service) restoreAvailability(ctx context.Context, companionID string) {
	if err := s.directory.SetAvailability(ctx, companionID, true); err != nil {
		logging.FromContext(ctx).Warn("failed to restore companion availability",
			"companion_id", companionID, "error", err)
	}
}

// emitStateChanged notifies the client and the companion's user. The
// companion user ID is looked up when the caller does not have it.
func (s *Service) emitStateChanged(ctx context.Context, b *Booking, companionUserID string, previous Status) {
	if companionUserID == "" {
		if info, err := s.directory.Lookup(ctx, b.CompanionID); err == nil {
			companionUserID = info.UserID
		}
	}
	userIDs := []string{b.ClientID}
	if companionUserID != "" {
		userIDs = append(userIDs, companionUserID)
	}
	s.emitter.Emit(ctx, events.New(events.TypeBookingStateChanged, map[string]any{
		"bookingId": b.ID,
		"status":    string(b.Status),
		"previous":  string(previous),
	}, userIDs...))
}

func statusError(s Status) error {
	if s == StatusExpired {
		return ErrExpired
	}
	return fmt.Errorf("%w: booking is %s", ErrInvalidState, s)
}

package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/zenofund/companion/internal/adminlog"
	"github.com/zenofund/companion/internal/payment"
)

type fakeDirectory struct {
	mu         sync.Mutex
	companions map[string]*CompanionInfo
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{companions: map[string]*CompanionInfo{
		"cmp_1": {
			ID:         "cmp_1",
			UserID:     "user_companion",
			HourlyRate: 5000,
			Currency:   "NGN",
			Available:  true,
			Approved:   true,
		},
	}}
}

func (f *fakeDirectory) Lookup(ctx context.Context, id string) (*CompanionInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	info, ok := f.companions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *info
	return &cp, nil
}

func (f *fakeDirectory) LookupByUser(ctx context.Context, userID string) (*CompanionInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, info := range f.companions {
		if info.UserID == userID {
			cp := *info
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeDirectory) SetAvailability(ctx context.Context, id string, available bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	info, ok := f.companions[id]
	if !ok {
		return ErrNotFound
	}
	info.Available = available
	return nil
}

type fakePayments struct {
	mu        sync.Mutex
	status    map[string]payment.Status
	refundErr error
	initErr   error
}

func newFakePayments() *fakePayments {
	return &fakePayments{status: make(map[string]payment.Status)}
}

func (f *fakePayments) InitializeForBooking(ctx context.Context, req payment.ChargeRequest) (*payment.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.initErr != nil {
		return nil, f.initErr
	}
	if _, ok := f.status[req.BookingID]; !ok {
		f.status[req.BookingID] = payment.StatusPending
	}
	fee, earning, _ := payment.ComputeSplit(req.Amount, 20)
	return &payment.Payment{
		ID:               "pay_" + req.BookingID,
		BookingID:        req.BookingID,
		Amount:           req.Amount,
		Status:           f.status[req.BookingID],
		PlatformFee:      fee,
		CompanionEarning: earning,
		AuthorizationURL: "https://pay.example/" + req.BookingID,
	}, nil
}

func (f *fakePayments) ByBooking(ctx context.Context, bookingID string) (*payment.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	status, ok := f.status[bookingID]
	if !ok {
		return nil, payment.ErrNotFound
	}
	return &payment.Payment{ID: "pay_" + bookingID, BookingID: bookingID, Status: status}, nil
}

func (f *fakePayments) MarkRefunded(ctx context.Context, bookingID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refundErr != nil {
		return f.refundErr
	}
	f.status[bookingID] = payment.StatusRefunded
	return nil
}

func (f *fakePayments) markPaid(bookingID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status[bookingID] = payment.StatusPaid
}

// flakyAudit is an audit store whose appends can be made to fail.
type flakyAudit struct {
	*adminlog.MemoryStore
	appendErr error
}

func (f *flakyAudit) Append(ctx context.Context, e *adminlog.Entry) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	return f.MemoryStore.Append(ctx, e)
}

type fixture struct {
	service   *Service
	store     *MemoryStore
	directory *fakeDirectory
	payments  *fakePayments
	audit     *flakyAudit
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     NewMemoryStore(),
		directory: newFakeDirectory(),
		payments:  newFakePayments(),
		audit:     &flakyAudit{MemoryStore: adminlog.NewMemoryStore()},
	}
	f.service = NewService(ServiceConfig{
		Store:            f.store,
		Directory:        f.directory,
		Payments:         f.payments,
		Audit:            f.audit,
		RequestExpiry:    15 * time.Minute,
		CompletionWindow: 48 * time.Hour,
	})
	return f
}

func (f *fixture) createBooking(t *testing.T) *Booking {
	t.Helper()
	b, _, err := f.service.Create(context.Background(), "user_client", CreateRequest{
		CompanionID:   "cmp_1",
		StartTime:     time.Now().Add(24 * time.Hour),
		DurationHours: 2,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return b
}

// rewind shifts a booking's deadlines into the past so expiry and
// auto-completion paths can be exercised without sleeping.
func (f *fixture) rewind(t *testing.T, id string, d time.Duration) {
	t.Helper()
	b, err := f.store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	b.RequestExpiresAt = b.RequestExpiresAt.Add(-d)
	if b.AutoCompleteAt != nil {
		shifted := b.AutoCompleteAt.Add(-d)
		b.AutoCompleteAt = &shifted
	}
	if err := f.store.Transition(context.Background(), b, b.Status); err != nil {
		t.Fatalf("rewind: %v", err)
	}
}

func TestCreateComputesTotalServerSide(t *testing.T) {
	f := newFixture(t)
	b := f.createBooking(t)

	if b.TotalAmount != 10000 {
		t.Errorf("total = %d, want 10000 (5000 * 2h)", b.TotalAmount)
	}
	if b.Status != StatusPending {
		t.Errorf("status = %s, want pending", b.Status)
	}
	if b.RequestExpiresAt.Before(time.Now()) {
		t.Error("request expiry should be in the future")
	}
}

func TestCreateRejectsUnavailableCompanion(t *testing.T) {
	f := newFixture(t)
	f.directory.companions["cmp_1"].Available = false

	_, _, err := f.service.Create(context.Background(), "user_client", CreateRequest{
		CompanionID: "cmp_1", StartTime: time.Now().Add(time.Hour), DurationHours: 1,
	})
	if !errors.Is(err, ErrCompanionUnavailable) {
		t.Fatalf("expected ErrCompanionUnavailable, got %v", err)
	}
}

func TestCreateRejectsUnapprovedCompanion(t *testing.T) {
	f := newFixture(t)
	f.directory.companions["cmp_1"].Approved = false

	_, _, err := f.service.Create(context.Background(), "user_client", CreateRequest{
		CompanionID: "cmp_1", StartTime: time.Now().Add(time.Hour), DurationHours: 1,
	})
	if !errors.Is(err, ErrCompanionNotApproved) {
		t.Fatalf("expected ErrCompanionNotApproved, got %v", err)
	}
}

func TestCreateRejectsSelfBooking(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.service.Create(context.Background(), "user_companion", CreateRequest{
		CompanionID: "cmp_1", StartTime: time.Now().Add(time.Hour), DurationHours: 1,
	})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestCreateSurvivesGatewayOutage(t *testing.T) {
	f := newFixture(t)
	f.payments.initErr = payment.ErrGateway

	b, pay, err := f.service.Create(context.Background(), "user_client", CreateRequest{
		CompanionID: "cmp_1", StartTime: time.Now().Add(time.Hour), DurationHours: 1,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if pay != nil {
		t.Errorf("expected no payment during outage, got %+v", pay)
	}

	stored, err := f.store.Get(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("booking did not survive the outage: %v", err)
	}
	if stored.Status != StatusPending {
		t.Errorf("status = %s, want pending", stored.Status)
	}
}

func TestAcceptMarksCompanionBusy(t *testing.T) {
	f := newFixture(t)
	b := f.createBooking(t)

	accepted, err := f.service.Accept(context.Background(), b.ID, "user_companion")
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if accepted.Status != StatusAccepted {
		t.Errorf("status = %s, want accepted", accepted.Status)
	}
	if accepted.AcceptedAt == nil {
		t.Error("expected AcceptedAt to be set")
	}

	info, _ := f.directory.Lookup(context.Background(), "cmp_1")
	if info.Available {
		t.Error("companion should be off the market after accepting")
	}
}

func TestAcceptRequiresCompanionOwner(t *testing.T) {
	f := newFixture(t)
	b := f.createBooking(t)

	if _, err := f.service.Accept(context.Background(), b.ID, "user_stranger"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestAcceptExpiredRequestFlipsLazily(t *testing.T) {
	f := newFixture(t)
	b := f.createBooking(t)
	f.rewind(t, b.ID, time.Hour)

	if _, err := f.service.Accept(context.Background(), b.ID, "user_companion"); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}

	// The lazy check wrote the terminal state, not just reported it.
	stored, _ := f.store.Get(context.Background(), b.ID)
	if stored.Status != StatusExpired {
		t.Errorf("status = %s, want expired", stored.Status)
	}

	// Expired is terminal; a late accept stays rejected.
	if _, err := f.service.Accept(context.Background(), b.ID, "user_companion"); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired on second accept, got %v", err)
	}
}

func TestTerminalStatesRejectAllTransitions(t *testing.T) {
	for _, terminal := range []Status{StatusCompleted, StatusCancelled, StatusRejected, StatusExpired} {
		for _, next := range []Status{
			StatusPending, StatusAccepted, StatusActive, StatusPendingCompletion,
			StatusCompleted, StatusDisputed, StatusCancelled, StatusRejected, StatusExpired,
		} {
			if ValidTransition(terminal, next) {
				t.Errorf("transition %s -> %s should be illegal", terminal, next)
			}
		}
		if !terminal.IsTerminal() {
			t.Errorf("%s should be terminal", terminal)
		}
	}
}

func TestHappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.createBooking(t)

	if _, err := f.service.Accept(ctx, b.ID, "user_companion"); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	// Session cannot start before payment confirms.
	if _, err := f.service.Start(ctx, b.ID, "user_client"); !errors.Is(err, ErrPaymentRequired) {
		t.Fatalf("expected ErrPaymentRequired, got %v", err)
	}
	f.payments.markPaid(b.ID)

	if _, err := f.service.Start(ctx, b.ID, "user_client"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	requested, err := f.service.RequestCompletion(ctx, b.ID, "user_companion")
	if err != nil {
		t.Fatalf("RequestCompletion: %v", err)
	}
	if requested.AutoCompleteAt == nil || requested.CompletionRequestedAt == nil {
		t.Fatal("completion window timestamps not set")
	}

	confirmed, err := f.service.ConfirmCompletion(ctx, b.ID, "user_client")
	if err != nil {
		t.Fatalf("ConfirmCompletion: %v", err)
	}
	if confirmed.Status != StatusCompleted || confirmed.CompletedAt == nil {
		t.Errorf("booking not settled: %+v", confirmed)
	}

	info, _ := f.directory.Lookup(ctx, "cmp_1")
	if !info.Available {
		t.Error("companion should be back on the market after completion")
	}
}

func TestRequestCompletionFromAccepted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.createBooking(t)
	if _, err := f.service.Accept(ctx, b.ID, "user_companion"); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	// Skipping the start step never skips the payment.
	if _, err := f.service.RequestCompletion(ctx, b.ID, "user_companion"); !errors.Is(err, ErrPaymentRequired) {
		t.Fatalf("expected ErrPaymentRequired, got %v", err)
	}
	f.payments.markPaid(b.ID)

	requested, err := f.service.RequestCompletion(ctx, b.ID, "user_companion")
	if err != nil {
		t.Fatalf("RequestCompletion: %v", err)
	}
	if requested.Status != StatusPendingCompletion {
		t.Errorf("status = %s, want pending_completion", requested.Status)
	}
	if requested.AutoCompleteAt == nil || requested.CompletionRequestedAt == nil {
		t.Error("completion window timestamps not set")
	}
}

func TestRequestExpiryDeadlineInstant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.createBooking(t)
	stored, _ := f.store.Get(ctx, b.ID)

	if !stored.RequestExpired(stored.RequestExpiresAt) {
		t.Error("the deadline instant itself should count as expired")
	}
	if stored.RequestExpired(stored.RequestExpiresAt.Add(-time.Nanosecond)) {
		t.Error("an instant before the deadline should not count as expired")
	}

	listed, err := f.store.ListPendingExpired(ctx, stored.RequestExpiresAt, 10)
	if err != nil {
		t.Fatalf("ListPendingExpired: %v", err)
	}
	if len(listed) != 1 {
		t.Errorf("sweep at the deadline instant found %d bookings, want 1", len(listed))
	}
}

func TestDisputePath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.createBooking(t)
	f.advanceToPendingCompletion(t, b.ID)

	if _, err := f.service.Dispute(ctx, b.ID, "user_client", ""); err == nil {
		t.Fatal("expected error for empty dispute reason")
	}
	disputed, err := f.service.Dispute(ctx, b.ID, "user_client", "companion left after one hour")
	if err != nil {
		t.Fatalf("Dispute: %v", err)
	}
	if disputed.Status != StatusDisputed {
		t.Errorf("status = %s, want disputed", disputed.Status)
	}

	// Confirmation and a second dispute are both off the table now.
	if _, err := f.service.ConfirmCompletion(ctx, b.ID, "user_client"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState confirming a disputed booking, got %v", err)
	}
	if _, err := f.service.Dispute(ctx, b.ID, "user_client", "again"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState disputing twice, got %v", err)
	}

	resolved, err := f.service.ResolveDispute(ctx, b.ID, "admin_1", ResolutionRevoke, "client evidence checked out")
	if err != nil {
		t.Fatalf("ResolveDispute: %v", err)
	}
	if resolved.Status != StatusCancelled {
		t.Errorf("status = %s, want cancelled", resolved.Status)
	}

	pay, _ := f.payments.ByBooking(ctx, b.ID)
	if pay.Status != payment.StatusRefunded {
		t.Errorf("payment = %s, want refunded", pay.Status)
	}

	entries, _ := f.audit.ListByTarget(ctx, adminlog.TargetBooking, b.ID, 10)
	if len(entries) != 1 || entries[0].Action != adminlog.ActionResolveDisputeRevoke {
		t.Errorf("audit entries = %+v", entries)
	}
	if entries[0].Details["notes"] != "client evidence checked out" {
		t.Errorf("audit notes = %v", entries[0].Details["notes"])
	}
}

func TestResolveDisputeComplete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.createBooking(t)
	f.advanceToPendingCompletion(t, b.ID)
	if _, err := f.service.Dispute(ctx, b.ID, "user_client", "no show"); err != nil {
		t.Fatalf("Dispute: %v", err)
	}

	resolved, err := f.service.ResolveDispute(ctx, b.ID, "admin_1", ResolutionComplete, "")
	if err != nil {
		t.Fatalf("ResolveDispute: %v", err)
	}
	if resolved.Status != StatusCompleted || resolved.CompletedAt == nil {
		t.Errorf("booking not settled: %+v", resolved)
	}

	// Companion keeps the funds.
	pay, _ := f.payments.ByBooking(ctx, b.ID)
	if pay.Status != payment.StatusPaid {
		t.Errorf("payment = %s, want paid", pay.Status)
	}
}

func TestResolveDisputeIsExclusive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.createBooking(t)
	f.advanceToPendingCompletion(t, b.ID)
	if _, err := f.service.Dispute(ctx, b.ID, "user_client", "no show"); err != nil {
		t.Fatalf("Dispute: %v", err)
	}

	if _, err := f.service.ResolveDispute(ctx, b.ID, "admin_1", ResolutionComplete, ""); err != nil {
		t.Fatalf("first resolution: %v", err)
	}
	if _, err := f.service.ResolveDispute(ctx, b.ID, "admin_2", ResolutionRevoke, ""); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on second resolution, got %v", err)
	}
}

func TestResolveDisputeRefundFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.createBooking(t)
	f.advanceToPendingCompletion(t, b.ID)
	if _, err := f.service.Dispute(ctx, b.ID, "user_client", "no show"); err != nil {
		t.Fatalf("Dispute: %v", err)
	}

	f.payments.refundErr = errors.New("provider down")
	if _, err := f.service.ResolveDispute(ctx, b.ID, "admin_1", ResolutionRevoke, ""); err == nil {
		t.Fatal("expected error when refund fails")
	}

	stored, _ := f.store.Get(ctx, b.ID)
	if stored.Status != StatusDisputed {
		t.Errorf("status = %s, want disputed after rollback", stored.Status)
	}

	// The retry succeeds once the provider recovers.
	f.payments.refundErr = nil
	if _, err := f.service.ResolveDispute(ctx, b.ID, "admin_1", ResolutionRevoke, ""); err != nil {
		t.Fatalf("retry: %v", err)
	}
}

func TestResolveDisputeAuditFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.createBooking(t)
	f.advanceToPendingCompletion(t, b.ID)
	if _, err := f.service.Dispute(ctx, b.ID, "user_client", "no show"); err != nil {
		t.Fatalf("Dispute: %v", err)
	}

	f.audit.appendErr = errors.New("audit store down")
	if _, err := f.service.ResolveDispute(ctx, b.ID, "admin_1", ResolutionRevoke, ""); err == nil {
		t.Fatal("expected error when the audit write fails")
	}

	stored, _ := f.store.Get(ctx, b.ID)
	if stored.Status != StatusDisputed {
		t.Errorf("status = %s, want disputed after rollback", stored.Status)
	}

	// The refund already happened; the retry is a no-op there and the
	// state and audit trail converge.
	f.audit.appendErr = nil
	resolved, err := f.service.ResolveDispute(ctx, b.ID, "admin_1", ResolutionRevoke, "second attempt")
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if resolved.Status != StatusCancelled {
		t.Errorf("status = %s, want cancelled", resolved.Status)
	}
	pay, _ := f.payments.ByBooking(ctx, b.ID)
	if pay.Status != payment.StatusRefunded {
		t.Errorf("payment = %s, want refunded", pay.Status)
	}
	entries, _ := f.audit.ListByTarget(ctx, adminlog.TargetBooking, b.ID, 10)
	if len(entries) != 1 {
		t.Errorf("audit entries = %d, want 1", len(entries))
	}
}

func TestExpirySweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.createBooking(t)
	f.rewind(t, b.ID, time.Hour)

	count, err := f.service.RunExpirySweep(ctx)
	if err != nil {
		t.Fatalf("RunExpirySweep: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}

	stored, _ := f.store.Get(ctx, b.ID)
	if stored.Status != StatusExpired {
		t.Errorf("status = %s, want expired", stored.Status)
	}

	// Re-running the sweep moves nothing.
	count, err = f.service.RunExpirySweep(ctx)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if count != 0 {
		t.Errorf("second sweep moved %d bookings, want 0", count)
	}
}

func TestExpirySweepSkipsFreshRequests(t *testing.T) {
	f := newFixture(t)
	b := f.createBooking(t)

	count, err := f.service.RunExpirySweep(context.Background())
	if err != nil {
		t.Fatalf("RunExpirySweep: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}
	stored, _ := f.store.Get(context.Background(), b.ID)
	if stored.Status != StatusPending {
		t.Errorf("status = %s, want pending", stored.Status)
	}
}

func TestAutoCompletionSweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.createBooking(t)
	f.advanceToPendingCompletion(t, b.ID)
	f.rewind(t, b.ID, 72*time.Hour)

	count, err := f.service.RunAutoCompletionSweep(ctx)
	if err != nil {
		t.Fatalf("RunAutoCompletionSweep: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}

	stored, _ := f.store.Get(ctx, b.ID)
	if stored.Status != StatusCompleted || stored.CompletedAt == nil {
		t.Errorf("booking not auto-settled: %+v", stored)
	}
	info, _ := f.directory.Lookup(ctx, "cmp_1")
	if !info.Available {
		t.Error("companion should be back on the market")
	}

	// Idempotent.
	count, _ = f.service.RunAutoCompletionSweep(ctx)
	if count != 0 {
		t.Errorf("second sweep moved %d bookings, want 0", count)
	}
}

func TestConcurrentAcceptAndSweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.createBooking(t)
	f.rewind(t, b.ID, time.Hour)

	// Race the sweep against a late accept many times over fresh
	// bookings; the booking must land in exactly one terminal outcome.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = f.service.RunExpirySweep(ctx)
	}()
	go func() {
		defer wg.Done()
		_, _ = f.service.Accept(ctx, b.ID, "user_companion")
	}()
	wg.Wait()

	stored, _ := f.store.Get(ctx, b.ID)
	if stored.Status != StatusExpired {
		t.Errorf("status = %s, want expired (request was overdue)", stored.Status)
	}
}

func TestCancelAcceptedRefundsAndFrees(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.createBooking(t)
	if _, err := f.service.Accept(ctx, b.ID, "user_companion"); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	f.payments.markPaid(b.ID)

	cancelled, err := f.service.Cancel(ctx, b.ID, "user_client")
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Errorf("status = %s, want cancelled", cancelled.Status)
	}

	pay, _ := f.payments.ByBooking(ctx, b.ID)
	if pay.Status != payment.StatusRefunded {
		t.Errorf("payment = %s, want refunded", pay.Status)
	}
	info, _ := f.directory.Lookup(ctx, "cmp_1")
	if !info.Available {
		t.Error("companion should be back on the market after cancel")
	}
}

func TestGetAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.createBooking(t)

	if _, err := f.service.Get(ctx, b.ID, "user_client", false); err != nil {
		t.Errorf("client should see own booking: %v", err)
	}
	if _, err := f.service.Get(ctx, b.ID, "user_companion", false); err != nil {
		t.Errorf("companion should see own booking: %v", err)
	}
	if _, err := f.service.Get(ctx, b.ID, "user_stranger", false); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized for stranger, got %v", err)
	}
	if _, err := f.service.Get(ctx, b.ID, "someone", true); err != nil {
		t.Errorf("admin should see any booking: %v", err)
	}
}

// advanceToPendingCompletion walks a fresh booking through accept,
// payment, start, and the companion's completion request.
func (f *fixture) advanceToPendingCompletion(t *testing.T, id string) {
	t.Helper()
	ctx := context.Background()
	if _, err := f.service.Accept(ctx, id, "user_companion"); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	f.payments.markPaid(id)
	if _, err := f.service.Start(ctx, id, "user_client"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := f.service.RequestCompletion(ctx, id, "user_companion"); err != nil {
		t.Fatalf("RequestCompletion: %v", err)
	}
}

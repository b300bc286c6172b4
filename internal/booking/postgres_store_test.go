//go:build integration

package booking

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/zenofund/companion/internal/testutil"
)

func setupTestDB(t *testing.T) (*PostgresStore, *sql.DB) {
	t.Helper()

	db := testutil.OpenPostgres(t)
	ctx := context.Background()

	// Mirrors migrations 00001 and 00002.
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS companions (
			id                TEXT PRIMARY KEY,
			user_id           TEXT NOT NULL UNIQUE,
			display_name      TEXT NOT NULL,
			city              TEXT,
			hourly_rate       BIGINT NOT NULL CHECK (hourly_rate >= 0),
			currency          TEXT NOT NULL,
			is_available      BOOLEAN NOT NULL DEFAULT TRUE,
			moderation_status TEXT NOT NULL DEFAULT 'pending',
			subaccount_code   TEXT,
			created_at        TIMESTAMPTZ NOT NULL,
			updated_at        TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		t.Fatalf("Failed to create companions table: %v", err)
	}

	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS bookings (
			id                      TEXT PRIMARY KEY,
			client_id               TEXT NOT NULL,
			companion_id            TEXT NOT NULL REFERENCES companions (id),
			status                  TEXT NOT NULL DEFAULT 'pending',
			start_time              TIMESTAMPTZ NOT NULL,
			duration_hours          INTEGER NOT NULL CHECK (duration_hours > 0),
			hourly_rate             BIGINT NOT NULL,
			total_amount            BIGINT NOT NULL,
			currency                TEXT NOT NULL,
			location                TEXT,
			notes                   TEXT,
			dispute_reason          TEXT,
			request_expires_at      TIMESTAMPTZ NOT NULL,
			accepted_at             TIMESTAMPTZ,
			completion_requested_at TIMESTAMPTZ,
			auto_complete_at        TIMESTAMPTZ,
			completed_at            TIMESTAMPTZ,
			created_at              TIMESTAMPTZ NOT NULL,
			updated_at              TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		t.Fatalf("Failed to create bookings table: %v", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO companions (id, user_id, display_name, hourly_rate, currency, moderation_status, created_at, updated_at)
		VALUES ('cmp_pg1', 'user_companion', 'Ada', 5000, 'NGN', 'approved', NOW(), NOW())
		ON CONFLICT (id) DO NOTHING`)
	if err != nil {
		t.Fatalf("Failed to seed companion: %v", err)
	}

	t.Cleanup(func() {
		_, _ = db.ExecContext(ctx, "DELETE FROM bookings")
	})

	return NewPostgresStore(db), db
}

func pgTestBooking(id string, status Status, now time.Time) *Booking {
	return &Booking{
		ID:               id,
		ClientID:         "user_client",
		CompanionID:      "cmp_pg1",
		Status:           status,
		StartTime:        now.Add(24 * time.Hour).Truncate(time.Microsecond),
		DurationHours:    2,
		HourlyRate:       5000,
		TotalAmount:      10000,
		Currency:         "NGN",
		Location:         "Lekki",
		RequestExpiresAt: now.Add(15 * time.Minute).Truncate(time.Microsecond),
		CreatedAt:        now.Truncate(time.Microsecond),
		UpdatedAt:        now.Truncate(time.Microsecond),
	}
}

func TestPostgresBooking_CreateAndGet(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	b := pgTestBooking("bkg_pg001", StatusPending, now)
	if err := store.Create(ctx, b); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := store.Get(ctx, "bkg_pg001")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != StatusPending {
		t.Errorf("status = %s, want pending", got.Status)
	}
	if got.TotalAmount != 10000 {
		t.Errorf("totalAmount = %d, want 10000", got.TotalAmount)
	}
	if !got.RequestExpiresAt.Equal(b.RequestExpiresAt) {
		t.Errorf("requestExpiresAt = %v, want %v", got.RequestExpiresAt, b.RequestExpiresAt)
	}
	if got.AcceptedAt != nil {
		t.Errorf("acceptedAt = %v, want nil", got.AcceptedAt)
	}

	if _, err := store.Get(ctx, "bkg_missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get missing = %v, want ErrNotFound", err)
	}
}

func TestPostgresBooking_TransitionGuard(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	b := pgTestBooking("bkg_pg002", StatusPending, now)
	if err := store.Create(ctx, b); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	acceptedAt := now.Truncate(time.Microsecond)
	b.Status = StatusAccepted
	b.AcceptedAt = &acceptedAt
	if err := store.Transition(ctx, b, StatusPending); err != nil {
		t.Fatalf("Transition pending->accepted failed: %v", err)
	}

	got, err := store.Get(ctx, b.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != StatusAccepted {
		t.Errorf("status = %s, want accepted", got.Status)
	}
	if got.AcceptedAt == nil || !got.AcceptedAt.Equal(acceptedAt) {
		t.Errorf("acceptedAt = %v, want %v", got.AcceptedAt, acceptedAt)
	}

	// A second writer still expecting pending loses the race.
	stale := pgTestBooking(b.ID, StatusExpired, now)
	if err := store.Transition(ctx, stale, StatusPending); !errors.Is(err, ErrConflict) {
		t.Errorf("stale Transition = %v, want ErrConflict", err)
	}

	missing := pgTestBooking("bkg_missing", StatusAccepted, now)
	if err := store.Transition(ctx, missing, StatusPending); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing Transition = %v, want ErrNotFound", err)
	}
}

func TestPostgresBooking_SweepQueries(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	stale := pgTestBooking("bkg_pg010", StatusPending, now)
	stale.RequestExpiresAt = now.Add(-time.Minute)
	if err := store.Create(ctx, stale); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	fresh := pgTestBooking("bkg_pg011", StatusPending, now)
	if err := store.Create(ctx, fresh); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	overdue := pgTestBooking("bkg_pg012", StatusPendingCompletion, now)
	deadline := now.Add(-time.Hour).Truncate(time.Microsecond)
	overdue.AutoCompleteAt = &deadline
	if err := store.Create(ctx, overdue); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	expired, err := store.ListPendingExpired(ctx, now, 100)
	if err != nil {
		t.Fatalf("ListPendingExpired failed: %v", err)
	}
	if len(expired) != 1 || expired[0].ID != "bkg_pg010" {
		t.Errorf("ListPendingExpired = %v, want [bkg_pg010]", ids(expired))
	}

	due, err := store.ListCompletionOverdue(ctx, now, 100)
	if err != nil {
		t.Fatalf("ListCompletionOverdue failed: %v", err)
	}
	if len(due) != 1 || due[0].ID != "bkg_pg012" {
		t.Errorf("ListCompletionOverdue = %v, want [bkg_pg012]", ids(due))
	}

	counts, err := store.CountByStatus(ctx)
	if err != nil {
		t.Fatalf("CountByStatus failed: %v", err)
	}
	if counts[StatusPending] != 2 {
		t.Errorf("pending count = %d, want 2", counts[StatusPending])
	}
	if counts[StatusPendingCompletion] != 1 {
		t.Errorf("pending_completion count = %d, want 1", counts[StatusPendingCompletion])
	}
}

func ids(bs []*Booking) []string {
	out := make([]string, len(bs))
	for i, b := range bs {
		out[i] = b.ID
	}
	return out
}

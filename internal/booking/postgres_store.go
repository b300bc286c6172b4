package booking

import (
	"context"
	"database/sql"
	"time"
)

// PostgresStore persists bookings in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed booking store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const bookingColumns = `id, client_id, companion_id, status, start_time, duration_hours,
		hourly_rate, total_amount, currency, location, notes, dispute_reason,
		request_expires_at, accepted_at, completion_requested_at, auto_complete_at,
		completed_at, created_at, updated_at`

func (p *PostgresStore) Create(ctx context.Context, b *Booking) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO bookings (
			id, client_id, companion_id, status, start_time, duration_hours,
			hourly_rate, total_amount, currency, location, notes, dispute_reason,
			request_expires_at, accepted_at, completion_requested_at, auto_complete_at,
			completed_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		b.ID, b.ClientID, b.CompanionID, string(b.Status), b.StartTime, b.DurationHours,
		b.HourlyRate, b.TotalAmount, b.Currency, nullString(b.Location), nullString(b.Notes),
		nullString(b.DisputeReason), b.RequestExpiresAt, b.AcceptedAt, b.CompletionRequestedAt,
		b.AutoCompleteAt, b.CompletedAt, b.CreatedAt, b.UpdatedAt,
	)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Booking, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	b, err := scanBooking(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return b, err
}

// Transition writes every mutable field, guarded on the current status.
// Losing the guard race returns ErrConflict; the caller re-reads and
// decides whether the other writer already did its work.
func (p *PostgresStore) Transition(ctx context.Context, b *Booking, from Status) error {
	now := time.Now().UTC()
	result, err := p.db.ExecContext(ctx, `
		UPDATE bookings SET
			status = $1, dispute_reason = $2, accepted_at = $3,
			completion_requested_at = $4, auto_complete_at = $5, completed_at = $6,
			updated_at = $7
		WHERE id = $8 AND status = $9`,
		string(b.Status), nullString(b.DisputeReason), b.AcceptedAt,
		b.CompletionRequestedAt, b.AutoCompleteAt, b.CompletedAt,
		now, b.ID, string(from),
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		var exists bool
		if err := p.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM bookings WHERE id = $1)`, b.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrConflict
	}
	b.UpdatedAt = now
	return nil
}

func (p *PostgresStore) ListByClient(ctx context.Context, clientID string, limit int) ([]*Booking, error) {
	return p.query(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE client_id = $1
		ORDER BY created_at DESC LIMIT $2`, clientID, limit)
}

func (p *PostgresStore) ListByCompanion(ctx context.Context, companionID string, limit int) ([]*Booking, error) {
	return p.query(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE companion_id = $1
		ORDER BY created_at DESC LIMIT $2`, companionID, limit)
}

func (p *PostgresStore) ListByStatus(ctx context.Context, status Status, limit int) ([]*Booking, error) {
	return p.query(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE status = $1
		ORDER BY created_at DESC LIMIT $2`, string(status), limit)
}

func (p *PostgresStore) ListPendingExpired(ctx context.Context, now time.Time, limit int) ([]*Booking, error) {
	return p.query(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE status = 'pending' AND request_expires_at <= $1
		ORDER BY request_expires_at ASC LIMIT $2`, now, limit)
}

func (p *PostgresStore) ListCompletionOverdue(ctx context.Context, now time.Time, limit int) ([]*Booking, error) {
	return p.query(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE status = 'pending_completion' AND auto_complete_at <= $1
		ORDER BY auto_complete_at ASC LIMIT $2`, now, limit)
}

func (p *PostgresStore) CountByStatus(ctx context.Context) (map[Status]int64, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM bookings GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[Status]int64)
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[Status(status)] = count
	}
	return counts, rows.Err()
}

func (p *PostgresStore) query(ctx context.Context, query string, args ...any) ([]*Booking, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*Booking, error) {
	b := &Booking{}
	var status string
	var location, notes, disputeReason sql.NullString
	var acceptedAt, completionRequestedAt, autoCompleteAt, completedAt sql.NullTime
	if err := row.Scan(
		&b.ID, &b.ClientID, &b.CompanionID, &status, &b.StartTime, &b.DurationHours,
		&b.HourlyRate, &b.TotalAmount, &b.Currency, &location, &notes, &disputeReason,
		&b.RequestExpiresAt, &acceptedAt, &completionRequestedAt, &autoCompleteAt,
		&completedAt, &b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		return nil, err
	}
	b.Status = Status(status)
	b.Location = location.String
	b.Notes = notes.String
	b.DisputeReason = disputeReason.String
	b.AcceptedAt = timePtr(acceptedAt)
	b.CompletionRequestedAt = timePtr(completionRequestedAt)
	b.AutoCompleteAt = timePtr(autoCompleteAt)
	b.CompletedAt = timePtr(completedAt)
	return b, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

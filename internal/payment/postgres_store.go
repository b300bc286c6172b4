package payment

import (
	"context"
	"database/sql"
	"time"
)

// PostgresStore persists payments in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed payment store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const paymentColumns = `id, booking_id, amount, currency, reference, provider, status,
		platform_fee, companion_earning, authorization_url, paid_at, created_at, updated_at`

func (p *PostgresStore) Create(ctx context.Context, pay *Payment) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO payments (
			id, booking_id, amount, currency, reference, provider, status,
			platform_fee, companion_earning, authorization_url, paid_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		pay.ID, pay.BookingID, pay.Amount, pay.Currency, pay.Reference, pay.Provider,
		string(pay.Status), pay.PlatformFee, pay.CompanionEarning,
		nullString(pay.AuthorizationURL), pay.PaidAt, pay.CreatedAt, pay.UpdatedAt,
	)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Payment, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
	return scanPayment(row)
}

func (p *PostgresStore) GetByBookingID(ctx context.Context, bookingID string) (*Payment, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE booking_id = $1
		ORDER BY created_at DESC LIMIT 1`, bookingID)
	return scanPayment(row)
}

func (p *PostgresStore) GetByReference(ctx context.Context, reference string) (*Payment, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE reference = $1`, reference)
	return scanPayment(row)
}

func (p *PostgresStore) SetAuthorization(ctx context.Context, id, url string) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE payments SET authorization_url = $1, updated_at = $2 WHERE id = $3`,
		url, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateStatus is a conditional write: the row only changes when the
// current status matches from, which makes concurrent webhook and
// verify calls safe without explicit locking.
func (p *PostgresStore) UpdateStatus(ctx context.Context, id string, from, to Status, paidAt *time.Time) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE payments SET status = $1, paid_at = $2, updated_at = $3
		WHERE id = $4 AND status = $5`,
		string(to), paidAt, time.Now().UTC(), id, string(from),
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		// Distinguish a missing row from a failed guard.
		var exists bool
		if err := p.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM payments WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrInvalidStatus
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(row rowScanner) (*Payment, error) {
	pay := &Payment{}
	var authURL sql.NullString
	var paidAt sql.NullTime
	var status string
	if err := row.Scan(
		&pay.ID, &pay.BookingID, &pay.Amount, &pay.Currency, &pay.Reference, &pay.Provider,
		&status, &pay.PlatformFee, &pay.CompanionEarning, &authURL, &paidAt,
		&pay.CreatedAt, &pay.UpdatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	pay.Status = Status(status)
	pay.AuthorizationURL = authURL.String
	if paidAt.Valid {
		t := paidAt.Time
		pay.PaidAt = &t
	}
	return pay, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

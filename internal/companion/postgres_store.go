package companion

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
)

// PostgresStore persists companion listings in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed companion directory.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const companionColumns = `id, user_id, display_name, city, hourly_rate, currency,
		is_available, moderation_status, subaccount_code, created_at, updated_at`

func (p *PostgresStore) Create(ctx context.Context, c *Companion) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO companions (
			id, user_id, display_name, city, hourly_rate, currency,
			is_available, moderation_status, subaccount_code, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		c.ID, c.UserID, c.DisplayName, nullString(c.City), c.HourlyRate, c.Currency,
		c.IsAvailable, string(c.ModerationStatus), nullString(c.SubaccountCode),
		c.CreatedAt, c.UpdatedAt,
	)
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return ErrExists
	}
	return err
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Companion, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+companionColumns+` FROM companions WHERE id = $1`, id)
	return scanCompanion(row)
}

func (p *PostgresStore) GetByUserID(ctx context.Context, userID string) (*Companion, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+companionColumns+` FROM companions WHERE user_id = $1`, userID)
	return scanCompanion(row)
}

func (p *PostgresStore) Update(ctx context.Context, c *Companion) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE companions SET
			display_name = $1, city = $2, hourly_rate = $3, currency = $4,
			is_available = $5, moderation_status = $6, subaccount_code = $7, updated_at = $8
		WHERE id = $9`,
		c.DisplayName, nullString(c.City), c.HourlyRate, c.Currency,
		c.IsAvailable, string(c.ModerationStatus), nullString(c.SubaccountCode),
		time.Now().UTC(), c.ID,
	)
	if err != nil {
		return err
	}
	return requireRow(result)
}

func (p *PostgresStore) SetAvailability(ctx context.Context, id string, available bool) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE companions SET is_available = $1, updated_at = $2 WHERE id = $3`,
		available, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	return requireRow(result)
}

func (p *PostgresStore) ListApproved(ctx context.Context, onlyAvailable bool, limit int) ([]*Companion, error) {
	query := `SELECT ` + companionColumns + ` FROM companions WHERE moderation_status = 'approved'`
	if onlyAvailable {
		query += ` AND is_available`
	}
	query += ` ORDER BY created_at DESC LIMIT $1`

	rows, err := p.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []*Companion
	for rows.Next() {
		c, err := scanCompanionRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCompanion(row *sql.Row) (*Companion, error) {
	c, err := scanCompanionRow(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return c, err
}

func scanCompanionRow(row rowScanner) (*Companion, error) {
	c := &Companion{}
	var city, subaccount sql.NullString
	var status string
	if err := row.Scan(
		&c.ID, &c.UserID, &c.DisplayName, &city, &c.HourlyRate, &c.Currency,
		&c.IsAvailable, &status, &subaccount, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	c.City = city.String
	c.SubaccountCode = subaccount.String
	c.ModerationStatus = ModerationStatus(status)
	return c, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func requireRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

package adminlog

import (
	"context"
	"database/sql"
	"encoding/json"
)

// PostgresStore persists audit entries in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed audit log.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Append(ctx context.Context, e *Entry) error {
	detailsJSON, _ := json.Marshal(e.Details)
	if e.Details == nil {
		detailsJSON = []byte("{}")
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO admin_logs (id, admin_id, action, target_type, target_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.AdminID, e.Action, e.TargetType, e.TargetID, detailsJSON, e.CreatedAt,
	)
	return err
}

const logColumns = `id, admin_id, action, target_type, target_id, details, created_at`

func (p *PostgresStore) List(ctx context.Context, limit int) ([]*Entry, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+logColumns+` FROM admin_logs
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanEntries(rows)
}

func (p *PostgresStore) ListByTarget(ctx context.Context, targetType, targetID string, limit int) ([]*Entry, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+logColumns+` FROM admin_logs
		WHERE target_type = $1 AND target_id = $2
		ORDER BY created_at DESC
		LIMIT $3`, targetType, targetID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]*Entry, error) {
	var result []*Entry
	for rows.Next() {
		e := &Entry{}
		var detailsJSON []byte
		if err := rows.Scan(&e.ID, &e.AdminID, &e.Action, &e.TargetType, &e.TargetID, &detailsJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		if len(detailsJSON) > 0 {
			_ = json.Unmarshal(detailsJSON, &e.Details)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

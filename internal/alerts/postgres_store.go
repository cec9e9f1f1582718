package alerts

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// PostgresStore persists security alerts in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a PostgreSQL-backed alert store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the security_alerts table if it doesn't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS security_alerts (
			id              VARCHAR(36) PRIMARY KEY,
			principal_id    VARCHAR(64) NOT NULL,
			alert_type      VARCHAR(32) NOT NULL,
			severity        VARCHAR(10) NOT NULL CHECK (severity IN ('low', 'medium', 'high', 'critical')),
			title           VARCHAR(255) NOT NULL,
			description     TEXT NOT NULL DEFAULT '',
			metadata        JSONB NOT NULL DEFAULT '{}',
			status          VARCHAR(12) NOT NULL DEFAULT 'active'
				CHECK (status IN ('active', 'acknowledged', 'resolved')),
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			acknowledged_at TIMESTAMPTZ,
			resolved_at     TIMESTAMPTZ
		);

		CREATE INDEX IF NOT EXISTS idx_security_alerts_principal
			ON security_alerts (principal_id, created_at DESC);

		CREATE INDEX IF NOT EXISTS idx_security_alerts_active
			ON security_alerts (created_at DESC) WHERE status = 'active';
	`)
	return err
}

func (s *PostgresStore) Create(ctx context.Context, alert *Alert) error {
	metadata, err := json.Marshal(alert.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal alert metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO security_alerts (id, principal_id, alert_type, severity, title, description, metadata, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		alert.ID,
		alert.PrincipalID,
		alert.AlertType,
		alert.Severity,
		alert.Title,
		alert.Description,
		metadata,
		string(alert.Status),
		alert.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create security alert: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Alert, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, principal_id, alert_type, severity, title, description, metadata, status, created_at, acknowledged_at, resolved_at
		FROM security_alerts
		WHERE id = $1
	`, id)

	alert, err := scanAlert(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrAlertNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get security alert: %w", err)
	}
	return alert, nil
}

func (s *PostgresStore) List(ctx context.Context, filter ListFilter) ([]*Alert, error) {
	query := `
		SELECT id, principal_id, alert_type, severity, title, description, metadata, status, created_at, acknowledged_at, resolved_at
		FROM security_alerts
		WHERE ($1 = '' OR principal_id = $1)
		  AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3
	`
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, query, filter.PrincipalID, string(filter.Status), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list security alerts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Alert
	for rows.Next() {
		alert, err := scanAlert(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, alert)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, status Status, at time.Time) error {
	var query string
	switch status {
	case StatusAcknowledged:
		query = `UPDATE security_alerts SET status = $1, acknowledged_at = $2 WHERE id = $3`
	case StatusResolved:
		query = `UPDATE security_alerts SET status = $1, resolved_at = $2 WHERE id = $3`
	default:
		return fmt.Errorf("%w: cannot set status %q", ErrInvalidTransition, status)
	}

	res, err := s.db.ExecContext(ctx, query, string(status), at, id)
	if err != nil {
		return fmt.Errorf("failed to update alert status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrAlertNotFound
	}
	return nil
}

func scanAlert(scan func(...any) error) (*Alert, error) {
	var alert Alert
	var metadata []byte
	var status string
	var acknowledgedAt, resolvedAt sql.NullTime

	if err := scan(
		&alert.ID, &alert.PrincipalID, &alert.AlertType, &alert.Severity,
		&alert.Title, &alert.Description, &metadata, &status,
		&alert.CreatedAt, &acknowledgedAt, &resolvedAt,
	); err != nil {
		return nil, err
	}

	alert.Status = Status(status)
	if len(metadata) > 0 {
		alert.Metadata = make(map[string]any)
		_ = json.Unmarshal(metadata, &alert.Metadata)
	}
	if acknowledgedAt.Valid {
		alert.AcknowledgedAt = &acknowledgedAt.Time
	}
	if resolvedAt.Valid {
		alert.ResolvedAt = &resolvedAt.Time
	}
	return &alert, nil
}

package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresStore persists login history in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a PostgreSQL-backed login-history store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the login_history table if it doesn't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS login_history (
			id            VARCHAR(36) PRIMARY KEY,
			principal_id  VARCHAR(64) NOT NULL,
			success       BOOLEAN NOT NULL,
			ip_address    VARCHAR(64) NOT NULL DEFAULT '',
			user_agent    TEXT NOT NULL DEFAULT '',
			country       VARCHAR(100) NOT NULL DEFAULT '',
			city          VARCHAR(100) NOT NULL DEFAULT '',
			risk_score    INT,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_login_history_principal
			ON login_history (principal_id, success, created_at DESC);
	`)
	return err
}

func (s *PostgresStore) Append(ctx context.Context, rec *Record) error {
	var score sql.NullInt64
	if rec.RiskScore != nil {
		score = sql.NullInt64{Int64: int64(*rec.RiskScore), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO login_history (id, principal_id, success, ip_address, user_agent, country, city, risk_score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		rec.ID,
		rec.PrincipalID,
		rec.Success,
		rec.IPAddress,
		rec.UserAgent,
		rec.Country,
		rec.City,
		score,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append login record: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListSuccessful(ctx context.Context, principalID string, limit int) ([]*Record, error) {
	return s.list(ctx, `
		SELECT id, principal_id, success, ip_address, user_agent, country, city, risk_score, created_at
		FROM login_history
		WHERE principal_id = $1 AND success = TRUE
		ORDER BY created_at DESC
		LIMIT $2
	`, principalID, limit)
}

func (s *PostgresStore) LastSuccessful(ctx context.Context, principalID string) (*Record, error) {
	recs, err := s.ListSuccessful(ctx, principalID, 1)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return recs[0], nil
}

func (s *PostgresStore) CountFailedSince(ctx context.Context, principalID string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM login_history
		WHERE principal_id = $1 AND success = FALSE AND created_at >= $2
	`, principalID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count failed logins: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) ListByPrincipal(ctx context.Context, principalID string, limit int) ([]*Record, error) {
	return s.list(ctx, `
		SELECT id, principal_id, success, ip_address, user_agent, country, city, risk_score, created_at
		FROM login_history
		WHERE principal_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, principalID, limit)
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list login history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Record
	for rows.Next() {
		var rec Record
		var score sql.NullInt64

		if err := rows.Scan(
			&rec.ID, &rec.PrincipalID, &rec.Success,
			&rec.IPAddress, &rec.UserAgent, &rec.Country, &rec.City,
			&score, &rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		if score.Valid {
			v := int(score.Int64)
			rec.RiskScore = &v
		}
		result = append(result, &rec)
	}
	return result, rows.Err()
}

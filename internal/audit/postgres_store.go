package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// PostgresStore persists audit events in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a PostgreSQL-backed audit store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the audit_events table if it doesn't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS audit_events (
			id           VARCHAR(36) PRIMARY KEY,
			event_type   VARCHAR(64) NOT NULL,
			severity     VARCHAR(10) NOT NULL DEFAULT '',
			principal_id VARCHAR(64) NOT NULL DEFAULT '',
			metadata     JSONB NOT NULL DEFAULT '{}',
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_audit_events_principal
			ON audit_events (principal_id, created_at DESC);

		CREATE INDEX IF NOT EXISTS idx_audit_events_type
			ON audit_events (event_type, created_at DESC);
	`)
	return err
}

func (s *PostgresStore) AppendBatch(ctx context.Context, events []*Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin audit batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO audit_events (id, event_type, severity, principal_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare audit insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, event := range events {
		metadata, err := json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal audit metadata: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			event.ID, event.EventType, event.Severity,
			event.PrincipalID, metadata, event.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert audit event: %w", err)
		}
	}

	return tx.Commit()
}

func (s *PostgresStore) List(ctx context.Context, filter ListFilter) ([]*Event, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_type, severity, principal_id, metadata, created_at
		FROM audit_events
		WHERE ($1 = '' OR principal_id = $1)
		  AND ($2 = '' OR event_type = $2)
		ORDER BY created_at DESC
		LIMIT $3
	`, filter.PrincipalID, filter.EventType, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Event
	for rows.Next() {
		var event Event
		var metadata []byte
		if err := rows.Scan(
			&event.ID, &event.EventType, &event.Severity,
			&event.PrincipalID, &metadata, &event.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			event.Metadata = make(map[string]any)
			_ = json.Unmarshal(metadata, &event.Metadata)
		}
		out = append(out, &event)
	}
	return out, rows.Err()
}

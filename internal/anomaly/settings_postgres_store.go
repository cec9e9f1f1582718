package anomaly

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresSettingsStore persists detection settings in PostgreSQL.
type PostgresSettingsStore struct {
	db *sql.DB
}

// Compile-time check.
var _ SettingsStore = (*PostgresSettingsStore)(nil)

// NewPostgresSettingsStore creates a PostgreSQL-backed settings store.
func NewPostgresSettingsStore(db *sql.DB) *PostgresSettingsStore {
	return &PostgresSettingsStore{db: db}
}

// Migrate creates the detection_settings table if it doesn't exist.
func (s *PostgresSettingsStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS detection_settings (
			principal_id          VARCHAR(64) PRIMARY KEY,
			pattern_detection     BOOLEAN NOT NULL DEFAULT TRUE,
			velocity_checks       BOOLEAN NOT NULL DEFAULT TRUE,
			location_analysis     BOOLEAN NOT NULL DEFAULT TRUE,
			device_checks         BOOLEAN NOT NULL DEFAULT TRUE,
			sensitivity           VARCHAR(10) NOT NULL DEFAULT 'medium'
				CHECK (sensitivity IN ('low', 'medium', 'high')),
			auto_block_threshold  INT NOT NULL DEFAULT 70
				CHECK (auto_block_threshold >= 0 AND auto_block_threshold <= 100),
			created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	return err
}

func (s *PostgresSettingsStore) Get(ctx context.Context, principalID string) (*Settings, error) {
	settings := &Settings{}
	var sensitivity string

	err := s.db.QueryRowContext(ctx, `
		SELECT principal_id, pattern_detection, velocity_checks, location_analysis,
		       device_checks, sensitivity, auto_block_threshold, created_at, updated_at
		FROM detection_settings
		WHERE principal_id = $1
	`, principalID).Scan(
		&settings.PrincipalID,
		&settings.PatternDetection,
		&settings.VelocityChecks,
		&settings.LocationAnalysis,
		&settings.DeviceChecks,
		&sensitivity,
		&settings.AutoBlockThreshold,
		&settings.CreatedAt,
		&settings.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrSettingsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get detection settings: %w", err)
	}

	settings.Sensitivity = Sensitivity(sensitivity)
	return settings, nil
}

func (s *PostgresSettingsStore) Upsert(ctx context.Context, settings *Settings) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO detection_settings
			(principal_id, pattern_detection, velocity_checks, location_analysis,
			 device_checks, sensitivity, auto_block_threshold, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		ON CONFLICT (principal_id) DO UPDATE SET
			pattern_detection    = EXCLUDED.pattern_detection,
			velocity_checks      = EXCLUDED.velocity_checks,
			location_analysis    = EXCLUDED.location_analysis,
			device_checks        = EXCLUDED.device_checks,
			sensitivity          = EXCLUDED.sensitivity,
			auto_block_threshold = EXCLUDED.auto_block_threshold,
			updated_at           = NOW()
	`,
		settings.PrincipalID,
		settings.PatternDetection,
		settings.VelocityChecks,
		settings.LocationAnalysis,
		settings.DeviceChecks,
		string(settings.Sensitivity),
		settings.AutoBlockThreshold,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert detection settings: %w", err)
	}
	return nil
}

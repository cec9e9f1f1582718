//go:build integration

package anomaly

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"

	_ "github.com/lib/pq"
)

func setupSettingsDB(t *testing.T) (*PostgresSettingsStore, func()) {
	t.Helper()

	dbURL := os.Getenv("POSTGRES_URL")
	if dbURL == "" {
		t.Skip("POSTGRES_URL not set, skipping integration test")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}

	if err := db.Ping(); err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	store := NewPostgresSettingsStore(db)
	ctx := context.Background()

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}

	cleanup := func() {
		db.ExecContext(ctx, "DELETE FROM detection_settings")
		db.Close()
	}

	return store, cleanup
}

func TestPostgres_SettingsUpsertAndGet(t *testing.T) {
	store, cleanup := setupSettingsDB(t)
	defer cleanup()

	ctx := context.Background()

	if _, err := store.Get(ctx, "pg-user"); !errors.Is(err, ErrSettingsNotFound) {
		t.Fatalf("expected ErrSettingsNotFound, got %v", err)
	}

	settings := DefaultSettings("pg-user")
	settings.Sensitivity = SensitivityHigh
	settings.AutoBlockThreshold = 50
	if err := store.Upsert(ctx, settings); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := store.Get(ctx, "pg-user")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Sensitivity != SensitivityHigh || got.AutoBlockThreshold != 50 {
		t.Errorf("unexpected settings: %+v", got)
	}

	// Second upsert updates in place, preserving created_at.
	settings.Sensitivity = SensitivityLow
	if err := store.Upsert(ctx, settings); err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}

	updated, err := store.Get(ctx, "pg-user")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if updated.Sensitivity != SensitivityLow {
		t.Errorf("upsert did not update: %+v", updated)
	}
	if !updated.CreatedAt.Equal(got.CreatedAt) {
		t.Errorf("created_at changed on update: %s -> %s", got.CreatedAt, updated.CreatedAt)
	}
	if !updated.UpdatedAt.After(got.UpdatedAt) && !updated.UpdatedAt.Equal(got.UpdatedAt) {
		t.Errorf("updated_at did not advance: %s -> %s", got.UpdatedAt, updated.UpdatedAt)
	}
}

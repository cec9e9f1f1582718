//go:build integration

package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
)

func setupTestDB(t *testing.T) (*PostgresStore, func()) {
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

	store := NewPostgresStore(db)
	ctx := context.Background()

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}

	cleanup := func() {
		db.ExecContext(ctx, "DELETE FROM login_history")
		db.Close()
	}

	return store, cleanup
}

func TestPostgres_AppendAndList(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second).Add(-time.Hour)

	score := 30
	for i := 0; i < 3; i++ {
		err := store.Append(ctx, &Record{
			ID:          fmt.Sprintf("login_pg_%d", i),
			PrincipalID: "pg-user",
			Success:     i != 1, // middle one failed
			IPAddress:   "203.0.113.9",
			UserAgent:   "test-agent",
			Country:     "Ghana",
			City:        "Accra",
			RiskScore:   &score,
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	recs, err := store.ListSuccessful(ctx, "pg-user", 10)
	if err != nil {
		t.Fatalf("ListSuccessful failed: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 successful records, got %d", len(recs))
	}
	if !recs[0].CreatedAt.After(recs[1].CreatedAt) {
		t.Error("records must be newest first")
	}
	if recs[0].RiskScore == nil || *recs[0].RiskScore != 30 {
		t.Errorf("risk score not round-tripped: %v", recs[0].RiskScore)
	}

	all, err := store.ListByPrincipal(ctx, "pg-user", 10)
	if err != nil {
		t.Fatalf("ListByPrincipal failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 records, got %d", len(all))
	}
}

func TestPostgres_LastSuccessful(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	last, err := store.LastSuccessful(ctx, "pg-empty")
	if err != nil {
		t.Fatalf("LastSuccessful failed: %v", err)
	}
	if last != nil {
		t.Error("expected nil for unknown principal")
	}

	base := time.Now().UTC().Truncate(time.Second).Add(-time.Hour)
	for i := 0; i < 2; i++ {
		err := store.Append(ctx, &Record{
			ID:          fmt.Sprintf("login_pg_last_%d", i),
			PrincipalID: "pg-user2",
			Success:     true,
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	last, err = store.LastSuccessful(ctx, "pg-user2")
	if err != nil {
		t.Fatalf("LastSuccessful failed: %v", err)
	}
	if last == nil || last.ID != "login_pg_last_1" {
		t.Errorf("expected the newest record, got %+v", last)
	}
}

func TestPostgres_CountFailedSince(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Now().UTC()

	for i, age := range []time.Duration{time.Minute, 5 * time.Minute, time.Hour} {
		err := store.Append(ctx, &Record{
			ID:          fmt.Sprintf("login_pg_fail_%d", i),
			PrincipalID: "pg-user3",
			Success:     false,
			CreatedAt:   now.Add(-age),
		})
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	count, err := store.CountFailedSince(ctx, "pg-user3", now.Add(-15*time.Minute))
	if err != nil {
		t.Fatalf("CountFailedSince failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 recent failures, got %d", count)
	}
}

package history

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func seed(t *testing.T, s *MemoryStore, principal string, at time.Time, success bool) {
	t.Helper()
	err := s.Append(context.Background(), &Record{
		ID:          fmt.Sprintf("login_%d", at.UnixNano()),
		PrincipalID: principal,
		Success:     success,
		Country:     "Ghana",
		City:        "Accra",
		UserAgent:   "test-agent",
		CreatedAt:   at,
	})
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
}

func TestListSuccessfulNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	base := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)

	seed(t, s, "user1", base, true)
	seed(t, s, "user1", base.Add(time.Hour), false)
	seed(t, s, "user1", base.Add(2*time.Hour), true)
	seed(t, s, "user2", base.Add(3*time.Hour), true)

	recs, err := s.ListSuccessful(context.Background(), "user1", 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 successful records, got %d", len(recs))
	}
	if !recs[0].CreatedAt.After(recs[1].CreatedAt) {
		t.Error("records must be newest first")
	}
}

func TestListSuccessfulLimit(t *testing.T) {
	s := NewMemoryStore()
	base := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		seed(t, s, "user1", base.Add(time.Duration(i)*time.Hour), true)
	}

	recs, err := s.ListSuccessful(context.Background(), "user1", 3)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(recs) != 3 {
		t.Errorf("expected 3 records, got %d", len(recs))
	}
	// The newest 3, not the oldest.
	if recs[0].CreatedAt != base.Add(4*time.Hour) {
		t.Errorf("expected newest record first, got %s", recs[0].CreatedAt)
	}
}

func TestLastSuccessful(t *testing.T) {
	s := NewMemoryStore()
	base := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)

	last, err := s.LastSuccessful(context.Background(), "user1")
	if err != nil {
		t.Fatalf("last failed: %v", err)
	}
	if last != nil {
		t.Error("expected nil for principal with no history")
	}

	seed(t, s, "user1", base, true)
	seed(t, s, "user1", base.Add(time.Hour), true)
	seed(t, s, "user1", base.Add(2*time.Hour), false)

	last, err = s.LastSuccessful(context.Background(), "user1")
	if err != nil {
		t.Fatalf("last failed: %v", err)
	}
	if last == nil || last.CreatedAt != base.Add(time.Hour) {
		t.Errorf("expected the most recent successful record, got %+v", last)
	}
}

func TestCountFailedSince(t *testing.T) {
	s := NewMemoryStore()
	base := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)

	seed(t, s, "user1", base.Add(-time.Hour), false) // outside window
	seed(t, s, "user1", base, false)                 // exactly at the boundary: counted
	seed(t, s, "user1", base.Add(time.Minute), false)
	seed(t, s, "user1", base.Add(2*time.Minute), true) // success never counts

	count, err := s.CountFailedSince(context.Background(), "user1", base)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 failures since boundary, got %d", count)
	}
}

func TestRecordsAreCopied(t *testing.T) {
	s := NewMemoryStore()
	score := 42
	rec := &Record{
		ID:          "login_x",
		PrincipalID: "user1",
		Success:     true,
		RiskScore:   &score,
		CreatedAt:   time.Now(),
	}
	if err := s.Append(context.Background(), rec); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	// Mutating the caller's record must not affect the stored copy.
	score = 99
	rec.Country = "Mars"

	got, err := s.ListByPrincipal(context.Background(), "user1", 1)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if got[0].Country != "" || *got[0].RiskScore != 42 {
		t.Errorf("stored record shares memory with caller: %+v", got[0])
	}
}

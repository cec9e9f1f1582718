package history

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRecordAttemptPersists(t *testing.T) {
	store := NewMemoryStore()
	r := NewRecorder(store, testLogger(), time.Second)

	score := 30
	r.RecordAttempt(context.Background(), "user1", true, "203.0.113.9", "test-agent", "Ghana", "Accra", &score)

	recs, err := store.ListByPrincipal(context.Background(), "user1", 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}

	rec := recs[0]
	if !strings.HasPrefix(rec.ID, "login_") {
		t.Errorf("expected login_ id prefix, got %q", rec.ID)
	}
	if !rec.Success || rec.Country != "Ghana" || rec.City != "Accra" {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.RiskScore == nil || *rec.RiskScore != 30 {
		t.Errorf("expected risk score 30, got %v", rec.RiskScore)
	}
}

// flakyStore fails the first n Append calls, then delegates.
type flakyStore struct {
	*MemoryStore
	mu       sync.Mutex
	failures int
}

func (f *flakyStore) Append(ctx context.Context, rec *Record) error {
	f.mu.Lock()
	fail := f.failures > 0
	if fail {
		f.failures--
	}
	f.mu.Unlock()
	if fail {
		return errors.New("transient write failure")
	}
	return f.MemoryStore.Append(ctx, rec)
}

func TestRecordAttemptRetriesTransientFailures(t *testing.T) {
	store := &flakyStore{MemoryStore: NewMemoryStore(), failures: 2}
	r := NewRecorder(store, testLogger(), time.Second)

	r.RecordAttempt(context.Background(), "user1", false, "", "", "", "", nil)

	recs, err := store.ListByPrincipal(context.Background(), "user1", 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(recs) != 1 {
		t.Errorf("expected the write to succeed on retry, got %d records", len(recs))
	}
}

func TestRecordAttemptSwallowsPersistentFailure(t *testing.T) {
	store := &flakyStore{MemoryStore: NewMemoryStore(), failures: 100}
	r := NewRecorder(store, testLogger(), 100*time.Millisecond)

	// Must not panic or block beyond the bounded retries.
	r.RecordAttempt(context.Background(), "user1", true, "", "", "", "", nil)

	recs, _ := store.ListByPrincipal(context.Background(), "user1", 10)
	if len(recs) != 0 {
		t.Errorf("expected no records after persistent failure, got %d", len(recs))
	}
}

package history

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory implementation of Store for demo/test use.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]*Record // principalID → records, append order
}

// Compile-time check.
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an in-memory login-history store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string][]*Record),
	}
}

func (s *MemoryStore) Append(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *rec
	if cp.RiskScore != nil {
		v := *cp.RiskScore
		cp.RiskScore = &v
	}
	s.records[rec.PrincipalID] = append(s.records[rec.PrincipalID], &cp)
	return nil
}

func (s *MemoryStore) ListSuccessful(_ context.Context, principalID string, limit int) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter(principalID, limit, func(r *Record) bool { return r.Success }), nil
}

func (s *MemoryStore) LastSuccessful(_ context.Context, principalID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.filter(principalID, 1, func(r *Record) bool { return r.Success })
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (s *MemoryStore) CountFailedSince(_ context.Context, principalID string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, r := range s.records[principalID] {
		if !r.Success && !r.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) ListByPrincipal(_ context.Context, principalID string, limit int) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter(principalID, limit, func(*Record) bool { return true }), nil
}

// filter returns up to limit matching records, newest first (caller holds lock).
// Records within a principal are kept in append order, which follows CreatedAt
// for real traffic; tests that backdate records should append oldest first.
func (s *MemoryStore) filter(principalID string, limit int, keep func(*Record) bool) []*Record {
	all := s.records[principalID]
	var out []*Record
	for i := len(all) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if keep(all[i]) {
			cp := *all[i]
			if cp.RiskScore != nil {
				v := *cp.RiskScore
				cp.RiskScore = &v
			}
			out = append(out, &cp)
		}
	}
	return out
}

package alerts

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory implementation of Store for demo/test use.
type MemoryStore struct {
	mu     sync.RWMutex
	alerts map[string]*Alert
	order  []string // insertion order, oldest first
}

// Compile-time check.
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an in-memory alert store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		alerts: make(map[string]*Alert),
	}
}

func (s *MemoryStore) Create(_ context.Context, alert *Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := copyAlert(alert)
	s.alerts[alert.ID] = cp
	s.order = append(s.order, alert.ID)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	alert, ok := s.alerts[id]
	if !ok {
		return nil, ErrAlertNotFound
	}
	return copyAlert(alert), nil
}

func (s *MemoryStore) List(_ context.Context, filter ListFilter) ([]*Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Alert
	for i := len(s.order) - 1; i >= 0; i-- {
		alert := s.alerts[s.order[i]]
		if filter.PrincipalID != "" && alert.PrincipalID != filter.PrincipalID {
			continue
		}
		if filter.Status != "" && alert.Status != filter.Status {
			continue
		}
		out = append(out, copyAlert(alert))
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, id string, status Status, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert, ok := s.alerts[id]
	if !ok {
		return ErrAlertNotFound
	}

	alert.Status = status
	switch status {
	case StatusAcknowledged:
		t := at
		alert.AcknowledgedAt = &t
	case StatusResolved:
		t := at
		alert.ResolvedAt = &t
	}
	return nil
}

func copyAlert(a *Alert) *Alert {
	cp := *a
	if a.Metadata != nil {
		meta := make(map[string]any, len(a.Metadata))
		for k, v := range a.Metadata {
			meta[k] = v
		}
		cp.Metadata = meta
	}
	if a.AcknowledgedAt != nil {
		t := *a.AcknowledgedAt
		cp.AcknowledgedAt = &t
	}
	if a.ResolvedAt != nil {
		t := *a.ResolvedAt
		cp.ResolvedAt = &t
	}
	return &cp
}

package anomaly

import (
	"context"
	"sync"
)

// MemorySettingsStore is an in-memory SettingsStore for demo/test use.
type MemorySettingsStore struct {
	mu       sync.RWMutex
	settings map[string]*Settings // principalID → settings
}

// Compile-time check.
var _ SettingsStore = (*MemorySettingsStore)(nil)

// NewMemorySettingsStore creates an empty in-memory settings store.
func NewMemorySettingsStore() *MemorySettingsStore {
	return &MemorySettingsStore{
		settings: make(map[string]*Settings),
	}
}

func (s *MemorySettingsStore) Get(_ context.Context, principalID string) (*Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.settings[principalID]
	if !ok {
		return nil, ErrSettingsNotFound
	}
	cp := *stored
	return &cp, nil
}

func (s *MemorySettingsStore) Upsert(_ context.Context, settings *Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *settings
	if existing, ok := s.settings[settings.PrincipalID]; ok {
		cp.CreatedAt = existing.CreatedAt
	}
	s.settings[settings.PrincipalID] = &cp
	return nil
}

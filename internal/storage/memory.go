// Package storage provides profile and conversation history persistence.
package storage

import (
	"context"
	"sync"

	"github.com/hammamikhairi/julian/internal/domain"
	"github.com/hammamikhairi/julian/internal/logger"
)

// Compile-time interface check.
var _ domain.ProfileStore = (*MemoryStore)(nil)

// MemoryStore is an in-memory profile store. Safe for concurrent access.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]domain.ProfileRecord
	log      *logger.Logger
}

// NewMemoryStore creates an empty in-memory profile store.
func NewMemoryStore(log *logger.Logger) *MemoryStore {
	return &MemoryStore{
		profiles: make(map[string]domain.ProfileRecord),
		log:      log,
	}
}

// SaveProfile stores a copy of rec. Overwrites if it already exists.
func (s *MemoryStore) SaveProfile(ctx context.Context, rec domain.ProfileRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.log.Debug("saving profile %s (%d preferences)", rec.Name, len(rec.Preferences))
	s.profiles[rec.Name] = cloneRecord(rec)
	return nil
}

// LoadProfile retrieves a profile by name.
func (s *MemoryStore) LoadProfile(ctx context.Context, name string) (domain.ProfileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.profiles[name]
	if !ok {
		s.log.Debug("profile not found: %s", name)
		return domain.ProfileRecord{}, domain.ErrNotFound
	}
	return cloneRecord(rec), nil
}

// DeleteProfile removes a profile by name.
func (s *MemoryStore) DeleteProfile(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[name]; !ok {
		return domain.ErrNotFound
	}
	delete(s.profiles, name)
	s.log.Debug("deleted profile %s", name)
	return nil
}

func cloneRecord(rec domain.ProfileRecord) domain.ProfileRecord {
	prefs := make(map[string]any, len(rec.Preferences))
	for k, v := range rec.Preferences {
		prefs[k] = v
	}
	rec.Preferences = prefs
	return rec
}

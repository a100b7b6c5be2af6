// Package memory provides in-memory storage implementations of driven ports.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/brightpath-labs/tutorcore/internal/core/domain"
	"github.com/brightpath-labs/tutorcore/internal/core/ports/driven"
)

// Ensure VersionStore implements the interface.
var _ driven.VersionStore = (*VersionStore)(nil)

// VersionStore is an in-memory implementation of driven.VersionStore.
type VersionStore struct {
	mu       sync.RWMutex
	versions map[string]domain.DocumentVersion
}

// NewVersionStore creates a new in-memory version store.
func NewVersionStore() *VersionStore {
	return &VersionStore{
		versions: make(map[string]domain.DocumentVersion),
	}
}

// Save stores or replaces the version for its document.
func (s *VersionStore) Save(_ context.Context, version domain.DocumentVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := version
	stored.Units = make([]domain.UnitRef, len(version.Units))
	copy(stored.Units, version.Units)
	s.versions[version.DocumentID] = stored
	return nil
}

// Get retrieves the current version of a document.
func (s *VersionStore) Get(_ context.Context, documentID string) (*domain.DocumentVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	version, ok := s.versions[documentID]
	if !ok {
		return nil, domain.ErrNotFound
	}

	result := version
	result.Units = make([]domain.UnitRef, len(version.Units))
	copy(result.Units, version.Units)
	return &result, nil
}

// Delete removes the version record for a document.
func (s *VersionStore) Delete(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.versions, documentID)
	return nil
}

// List returns the current version of every ingested document.
func (s *VersionStore) List(_ context.Context) ([]domain.DocumentVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.DocumentVersion, 0, len(s.versions))
	for _, version := range s.versions {
		result = append(result, version)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].DocumentID < result[j].DocumentID
	})
	return result, nil
}

package driven

import (
	"context"

	"github.com/brightpath-labs/tutorcore/internal/core/domain"
)

// VersionStore persists DocumentVersion records. The core treats it as the
// system of record for what is currently ingested: the coordinator commits a
// new version here only after all index writes succeed.
type VersionStore interface {
	// Save stores or replaces the version for its document.
	Save(ctx context.Context, version domain.DocumentVersion) error

	// Get retrieves the current version of a document.
	// Returns domain.ErrNotFound for documents never ingested.
	Get(ctx context.Context, documentID string) (*domain.DocumentVersion, error)

	// Delete removes the version record for a document.
	Delete(ctx context.Context, documentID string) error

	// List returns the current version of every ingested document.
	List(ctx context.Context) ([]domain.DocumentVersion, error)
}

package driven

import (
	"context"

	"github.com/brightpath-labs/tutorcore/internal/core/domain"
)

// VectorIndex is the persistent store of (vector, unit ID, metadata) with
// approximate nearest-neighbour query and metadata filtering. The ingestion
// and query paths run concurrently against the same index: a query during a
// writer's upsert/delete sequence sees the pre-update or post-update state
// for a given unit ID, never a half-written vector.
type VectorIndex interface {
	// Upsert inserts or replaces records. Upserting the same unit ID twice
	// replaces rather than duplicates, so the operation is idempotent.
	Upsert(ctx context.Context, records []domain.EmbeddingRecord) error

	// DeleteByDocument removes every record belonging to a document.
	DeleteByDocument(ctx context.Context, documentID string) error

	// DeleteByUnitIDs removes the given units. Used during incremental
	// re-ingestion to drop superseded and removed units.
	DeleteByUnitIDs(ctx context.Context, unitIDs []string) error

	// Query finds the k nearest neighbours to the query vector within the
	// scope filter, ranked by similarity descending.
	Query(ctx context.Context, vector []float32, k int, filter domain.ScopeFilter) ([]VectorHit, error)

	// Close releases resources.
	Close() error
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	// UnitID is the matched unit.
	UnitID string

	// Similarity is the cosine similarity score (-1..1).
	Similarity float64

	// Metadata is the unit's metadata snapshot, carried with the hit so
	// ranking and prompt assembly need no second round trip.
	Metadata domain.UnitMetadata
}

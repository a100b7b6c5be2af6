package driving

import (
	"context"

	"github.com/brightpath-labs/tutorcore/internal/core/domain"
)

// Ingestor drives the ingestion pipeline for curriculum documents.
type Ingestor interface {
	// Ingest processes a full extracted document, or incrementally
	// re-ingests a revised one, and returns the committed version.
	// A second concurrent call for the same document ID is rejected with
	// domain.ErrIngestInProgress.
	Ingest(ctx context.Context, doc domain.ExtractedDocument) (*domain.DocumentVersion, error)

	// Status returns the state of the current or most recent ingestion run
	// for a document.
	Status(ctx context.Context, documentID string) (*IngestStatus, error)
}

// IngestStatus describes an ingestion run.
type IngestStatus struct {
	// DocumentID identifies the document.
	DocumentID string

	// State is the phase the run is in.
	State domain.IngestState

	// UnitsTotal is the number of units segmentation produced.
	UnitsTotal int

	// UnitsEmbedded is the number of changed or new units embedded so far.
	UnitsEmbedded int

	// UnitsDeleted is the number of superseded or removed units deleted.
	UnitsDeleted int

	// Error holds the failure message when State is Failed.
	Error string
}

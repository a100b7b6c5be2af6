package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// Ingestion errors.

	// ErrEmptyDocument indicates the extraction service delivered a document
	// with no blocks at all. This is distinct from ErrNoUsableUnits.
	ErrEmptyDocument = errors.New("document has no extracted blocks")

	// ErrNoUsableUnits indicates a document had blocks but segmentation
	// yielded zero usable units. Ingestion fails rather than silently
	// accepting an empty unit set.
	ErrNoUsableUnits = errors.New("segmentation produced no usable units")

	// ErrIngestInProgress indicates an ingestion run for the same document
	// is already running. Ingestion of one document is serialized.
	ErrIngestInProgress = errors.New("ingestion already in progress for document")

	// ErrIndexWrite indicates the vector index rejected an upsert or delete.
	// The ingestion run is aborted and the previous version stays visible.
	ErrIndexWrite = errors.New("vector index write failed")

	// ErrDimensionMismatch indicates a vector of the wrong length reached
	// the index. The index dimension is fixed at creation.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// Service availability errors.

	// ErrEmbeddingUnavailable indicates the embedding service is not
	// configured or unreachable.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrVectorIndexUnavailable indicates the vector index is not configured.
	ErrVectorIndexUnavailable = errors.New("vector index unavailable")

	// ErrGeneratorUnavailable indicates the text-generation service is not
	// configured.
	ErrGeneratorUnavailable = errors.New("generation service unavailable")

	// External call classification. Retried with backoff up to a cap.

	// ErrGenerationTimeout indicates an external call timed out.
	ErrGenerationTimeout = errors.New("generation timed out")

	// ErrRateLimited indicates the external API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")
)

// IsRetryable reports whether an external-call failure should be retried
// with backoff. Timeouts and rate limits are transient; everything else is
// treated as permanent.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrGenerationTimeout) || errors.Is(err, ErrRateLimited)
}

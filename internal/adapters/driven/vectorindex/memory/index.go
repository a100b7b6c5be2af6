// Package memory provides an in-memory vector index using exact brute-force
// cosine similarity. Suitable for tests and small local deployments; the
// pgvector adapter serves anything larger.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/brightpath-labs/tutorcore/internal/core/domain"
	"github.com/brightpath-labs/tutorcore/internal/core/ports/driven"
)

// Ensure VectorIndex implements the interface.
var _ driven.VectorIndex = (*VectorIndex)(nil)

// record stores a vector alongside its precomputed norm so queries avoid
// recomputing magnitudes on every scan.
type record struct {
	vector   []float32
	norm     float64
	metadata domain.UnitMetadata
}

// VectorIndex is a thread-safe in-memory vector store. Writers replace whole
// records under the lock, so a concurrent query sees each unit either fully
// before or fully after an update, never a half-written vector.
type VectorIndex struct {
	mu         sync.RWMutex
	records    map[string]record
	dimensions int
}

// NewVectorIndex creates an empty index that accepts vectors of the given
// dimension. A dimension of 0 accepts the dimension of the first upsert.
func NewVectorIndex(dimensions int) *VectorIndex {
	return &VectorIndex{
		records:    make(map[string]record),
		dimensions: dimensions,
	}
}

// Upsert inserts or replaces records keyed by unit ID.
func (idx *VectorIndex) Upsert(ctx context.Context, records []domain.EmbeddingRecord) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, r := range records {
		if idx.dimensions == 0 {
			idx.dimensions = len(r.Vector)
		}
		if len(r.Vector) != idx.dimensions {
			return fmt.Errorf("%w: unit %s has %d dimensions, index expects %d",
				domain.ErrDimensionMismatch, r.UnitID, len(r.Vector), idx.dimensions)
		}

		vec := make([]float32, len(r.Vector))
		copy(vec, r.Vector)
		idx.records[r.UnitID] = record{
			vector:   vec,
			norm:     vectorNorm(vec),
			metadata: r.Metadata,
		}
	}
	return nil
}

// DeleteByDocument removes every record belonging to a document.
func (idx *VectorIndex) DeleteByDocument(ctx context.Context, documentID string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for id, r := range idx.records {
		if r.metadata.DocumentID == documentID {
			delete(idx.records, id)
		}
	}
	return nil
}

// DeleteByUnitIDs removes the given units. Missing IDs are ignored so the
// operation is idempotent.
func (idx *VectorIndex) DeleteByUnitIDs(ctx context.Context, unitIDs []string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, id := range unitIDs {
		delete(idx.records, id)
	}
	return nil
}

// Query scans all records within the scope filter and returns the k nearest
// by cosine similarity, descending.
func (idx *VectorIndex) Query(ctx context.Context, vector []float32, k int, filter domain.ScopeFilter) ([]driven.VectorHit, error) {
	if k <= 0 {
		return nil, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.dimensions != 0 && len(vector) != idx.dimensions {
		return nil, fmt.Errorf("%w: query has %d dimensions, index expects %d",
			domain.ErrDimensionMismatch, len(vector), idx.dimensions)
	}

	queryNorm := vectorNorm(vector)
	if queryNorm == 0 {
		return nil, fmt.Errorf("%w: query vector is zero", domain.ErrInvalidInput)
	}

	hits := make([]driven.VectorHit, 0, len(idx.records))
	for id, r := range idx.records {
		if !filter.Matches(r.metadata) {
			continue
		}
		hits = append(hits, driven.VectorHit{
			UnitID:     id,
			Similarity: cosineSimilarity(vector, r.vector, queryNorm, r.norm),
			Metadata:   r.metadata,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Similarity > hits[j].Similarity
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Len returns the number of stored records.
func (idx *VectorIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.records)
}

// Close releases resources.
func (idx *VectorIndex) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.records = make(map[string]record)
	return nil
}

// cosineSimilarity computes the cosine of the angle between a and b given
// their precomputed norms. Zero-norm stored vectors score 0.
func cosineSimilarity(a, b []float32, normA, normB float64) float64 {
	if normB == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (normA * normB)
}

func vectorNorm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/brightpath-labs/tutorcore/internal/core/domain"
	"github.com/brightpath-labs/tutorcore/internal/core/ports/driven"
	"github.com/brightpath-labs/tutorcore/internal/logger"
)

// Retriever executes similarity search and applies the ranking policy:
// candidates below the similarity threshold are discarded, segments from the
// student's active chapter rank above equally similar segments from other
// chapters within a bounded margin, and overlapping segments from the same
// section are deduplicated. An empty result is a first-class value, not an
// error; it is the signal that routes the question to the
// insufficient-content answer path.
type Retriever struct {
	index driven.VectorIndex

	threshold       float64
	chapterMargin   float64
	overFetchFactor int
}

// RetrieverConfig holds ranking parameters.
type RetrieverConfig struct {
	// SimilarityThreshold is τ: candidates below it never reach the
	// generator.
	SimilarityThreshold float64

	// ChapterMargin is the boost added to active-chapter segments. A
	// segment from another chapter must beat a current-chapter segment by
	// more than this margin to outrank it.
	ChapterMargin float64

	// OverFetchFactor controls over-fetching for re-ranking (k * factor).
	OverFetchFactor int
}

// NewRetriever creates a retriever over the given index.
func NewRetriever(index driven.VectorIndex, cfg RetrieverConfig) *Retriever {
	if cfg.OverFetchFactor <= 1 {
		cfg.OverFetchFactor = 3
	}
	if cfg.ChapterMargin < 0 {
		cfg.ChapterMargin = 0
	}

	return &Retriever{
		index:           index,
		threshold:       cfg.SimilarityThreshold,
		chapterMargin:   cfg.ChapterMargin,
		overFetchFactor: cfg.OverFetchFactor,
	}
}

// Retrieve returns the ordered, deduplicated context window for a query
// vector. Returning fewer than k segments, or none at all, is valid.
func (r *Retriever) Retrieve(
	ctx context.Context,
	queryVector []float32,
	activeChapterID string,
	scope domain.ScopeFilter,
	k int,
) ([]domain.RetrievedSegment, error) {
	if r.index == nil {
		return nil, domain.ErrVectorIndexUnavailable
	}
	if k <= 0 {
		k = 5
	}

	// Over-fetch so re-ranking and dedup have candidates to work with
	// without a second round trip.
	hits, err := r.index.Query(ctx, queryVector, k*r.overFetchFactor, scope)
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}
	logger.Debug("Retrieval: %d candidates for k=%d", len(hits), k)

	segments := make([]domain.RetrievedSegment, 0, len(hits))
	for _, hit := range hits {
		// Below-threshold content must never reach the generator.
		if hit.Similarity < r.threshold {
			continue
		}
		segments = append(segments, domain.RetrievedSegment{
			UnitID:           hit.UnitID,
			Similarity:       hit.Similarity,
			ChapterID:        hit.Metadata.ChapterID,
			SectionTitle:     hit.Metadata.SectionTitle,
			PageNumber:       hit.Metadata.PageNumber,
			Type:             hit.Metadata.Type,
			Text:             hit.Metadata.Text,
			IsCurrentChapter: activeChapterID != "" && hit.Metadata.ChapterID == activeChapterID,
			VersionNumber:    hit.Metadata.VersionNumber,
		})
	}
	logger.Debug("Retrieval: %d candidates above threshold %.2f", len(segments), r.threshold)

	r.rank(segments)
	segments = dedupeSections(segments)

	if len(segments) > k {
		segments = segments[:k]
	}
	logger.Info("Retrieval: returning %d segments", len(segments))

	return segments, nil
}

// rank orders segments by effective score: similarity plus the chapter
// margin for active-chapter segments, so chapter locality dominates raw
// similarity within the margin. Ties break by raw similarity, then by
// document version recency.
func (r *Retriever) rank(segments []domain.RetrievedSegment) {
	sort.SliceStable(segments, func(i, j int) bool {
		si, sj := r.effectiveScore(segments[i]), r.effectiveScore(segments[j])
		if si != sj {
			return si > sj
		}
		if segments[i].Similarity != segments[j].Similarity {
			return segments[i].Similarity > segments[j].Similarity
		}
		return segments[i].VersionNumber > segments[j].VersionNumber
	})
}

func (r *Retriever) effectiveScore(s domain.RetrievedSegment) float64 {
	if s.IsCurrentChapter {
		return s.Similarity + r.chapterMargin
	}
	return s.Similarity
}

// dedupeSections collapses multiple hits from the same (chapter, section) to
// the highest-ranked one. Segments must already be ranked.
func dedupeSections(segments []domain.RetrievedSegment) []domain.RetrievedSegment {
	seen := make(map[string]bool, len(segments))
	result := segments[:0]

	for _, s := range segments {
		key := s.ChapterID + "\x1f" + s.SectionTitle
		if seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, s)
	}

	return result
}

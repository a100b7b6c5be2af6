package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightpath-labs/tutorcore/internal/core/domain"
	"github.com/brightpath-labs/tutorcore/internal/core/ports/driven"
)

func hit(unitID, chapterID, section string, similarity float64) driven.VectorHit {
	return driven.VectorHit{
		UnitID:     unitID,
		Similarity: similarity,
		Metadata: domain.UnitMetadata{
			DocumentID:    "doc-1",
			ChapterID:     chapterID,
			SectionTitle:  section,
			Type:          domain.UnitParagraph,
			Text:          "text for " + unitID,
			VersionNumber: 1,
		},
	}
}

func setupTestRetriever(t *testing.T, hits []driven.VectorHit) *Retriever {
	t.Helper()

	return NewRetriever(&mockVectorIndex{hits: hits}, RetrieverConfig{
		SimilarityThreshold: 0.35,
		ChapterMargin:       0.15,
		OverFetchFactor:     3,
	})
}

func TestRetriever_Retrieve_FiltersBelowThreshold(t *testing.T) {
	retriever := setupTestRetriever(t, []driven.VectorHit{
		hit("u1", "ch-1", "Motion", 0.9),
		hit("u2", "ch-2", "Heat", 0.34),
		hit("u3", "ch-3", "Light", 0.1),
	})

	segments, err := retriever.Retrieve(context.Background(), []float32{1}, "", domain.ScopeFilter{}, 5)

	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.Equal(t, "u1", segments[0].UnitID)
}

func TestRetriever_Retrieve_EmptyResultIsNotAnError(t *testing.T) {
	retriever := setupTestRetriever(t, nil)

	segments, err := retriever.Retrieve(context.Background(), []float32{1}, "", domain.ScopeFilter{}, 5)

	require.NoError(t, err)
	assert.Empty(t, segments)
}

func TestRetriever_Retrieve_ActiveChapterOutranksWithinMargin(t *testing.T) {
	retriever := setupTestRetriever(t, []driven.VectorHit{
		hit("other", "ch-2", "Heat", 0.80),
		hit("active", "ch-1", "Motion", 0.70),
	})

	segments, err := retriever.Retrieve(context.Background(), []float32{1}, "ch-1", domain.ScopeFilter{}, 5)

	require.NoError(t, err)
	require.Len(t, segments, 2)
	// 0.70 + 0.15 margin beats 0.80.
	assert.Equal(t, "active", segments[0].UnitID)
	assert.True(t, segments[0].IsCurrentChapter)
	assert.Equal(t, "other", segments[1].UnitID)
}

func TestRetriever_Retrieve_OtherChapterWinsBeyondMargin(t *testing.T) {
	retriever := setupTestRetriever(t, []driven.VectorHit{
		hit("other", "ch-2", "Heat", 0.95),
		hit("active", "ch-1", "Motion", 0.70),
	})

	segments, err := retriever.Retrieve(context.Background(), []float32{1}, "ch-1", domain.ScopeFilter{}, 5)

	require.NoError(t, err)
	require.Len(t, segments, 2)
	assert.Equal(t, "other", segments[0].UnitID)
}

func TestRetriever_Retrieve_NoChapterBoostWithoutActiveChapter(t *testing.T) {
	retriever := setupTestRetriever(t, []driven.VectorHit{
		hit("a", "ch-2", "Heat", 0.80),
		hit("b", "ch-1", "Motion", 0.70),
	})

	segments, err := retriever.Retrieve(context.Background(), []float32{1}, "", domain.ScopeFilter{}, 5)

	require.NoError(t, err)
	require.Len(t, segments, 2)
	assert.Equal(t, "a", segments[0].UnitID)
	assert.False(t, segments[0].IsCurrentChapter)
}

func TestRetriever_Retrieve_DeduplicatesSections(t *testing.T) {
	retriever := setupTestRetriever(t, []driven.VectorHit{
		hit("u1", "ch-1", "Motion", 0.90),
		hit("u2", "ch-1", "Motion", 0.85),
		hit("u3", "ch-1", "Friction", 0.80),
	})

	segments, err := retriever.Retrieve(context.Background(), []float32{1}, "", domain.ScopeFilter{}, 5)

	require.NoError(t, err)
	require.Len(t, segments, 2)
	assert.Equal(t, "u1", segments[0].UnitID)
	assert.Equal(t, "u3", segments[1].UnitID)
}

func TestRetriever_Retrieve_TruncatesToK(t *testing.T) {
	retriever := setupTestRetriever(t, []driven.VectorHit{
		hit("u1", "ch-1", "A", 0.90),
		hit("u2", "ch-1", "B", 0.85),
		hit("u3", "ch-1", "C", 0.80),
		hit("u4", "ch-1", "D", 0.75),
	})

	segments, err := retriever.Retrieve(context.Background(), []float32{1}, "", domain.ScopeFilter{}, 2)

	require.NoError(t, err)
	require.Len(t, segments, 2)
	assert.Equal(t, "u1", segments[0].UnitID)
	assert.Equal(t, "u2", segments[1].UnitID)
}

func TestRetriever_Retrieve_RecencyBreaksExactTies(t *testing.T) {
	older := hit("old", "ch-1", "Motion", 0.80)
	newer := hit("new", "ch-2", "Heat", 0.80)
	newer.Metadata.VersionNumber = 3

	retriever := setupTestRetriever(t, []driven.VectorHit{older, newer})

	segments, err := retriever.Retrieve(context.Background(), []float32{1}, "", domain.ScopeFilter{}, 5)

	require.NoError(t, err)
	require.Len(t, segments, 2)
	assert.Equal(t, "new", segments[0].UnitID)
}

func TestRetriever_Retrieve_QueryFailure(t *testing.T) {
	retriever := NewRetriever(&mockVectorIndex{queryErr: assert.AnError}, RetrieverConfig{})

	_, err := retriever.Retrieve(context.Background(), []float32{1}, "", domain.ScopeFilter{}, 5)

	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestRetriever_Retrieve_NilIndex(t *testing.T) {
	retriever := NewRetriever(nil, RetrieverConfig{})

	_, err := retriever.Retrieve(context.Background(), []float32{1}, "", domain.ScopeFilter{}, 5)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrVectorIndexUnavailable)
}

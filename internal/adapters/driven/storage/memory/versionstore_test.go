package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightpath-labs/tutorcore/internal/core/domain"
)

func sampleVersion(documentID string, number int) domain.DocumentVersion {
	return domain.DocumentVersion{
		ID:         documentID + "-v",
		DocumentID: documentID,
		Board:      "CBSE",
		Grade:      "9",
		Subject:    "Physics",
		Number:     number,
		Units: []domain.UnitRef{
			{UnitID: "u1", IdentityKey: "k1", ContentHash: "h1", ChapterID: "ch-1", Type: domain.UnitParagraph},
		},
		CreatedAt: time.Now(),
	}
}

func TestVersionStore_SaveAndGet(t *testing.T) {
	store := NewVersionStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleVersion("doc-1", 1)))

	got, err := store.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Number)
	assert.Equal(t, "CBSE", got.Board)
	require.Len(t, got.Units, 1)
	assert.Equal(t, "u1", got.Units[0].UnitID)
}

func TestVersionStore_Get_NotFound(t *testing.T) {
	store := NewVersionStore()

	_, err := store.Get(context.Background(), "missing")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestVersionStore_Save_Replaces(t *testing.T) {
	store := NewVersionStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleVersion("doc-1", 1)))
	require.NoError(t, store.Save(ctx, sampleVersion("doc-1", 2)))

	got, err := store.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Number)
}

func TestVersionStore_Get_ReturnsCopy(t *testing.T) {
	store := NewVersionStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, sampleVersion("doc-1", 1)))

	first, err := store.Get(ctx, "doc-1")
	require.NoError(t, err)
	first.Units[0].UnitID = "mutated"

	second, err := store.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "u1", second.Units[0].UnitID)
}

func TestVersionStore_Delete(t *testing.T) {
	store := NewVersionStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, sampleVersion("doc-1", 1)))

	require.NoError(t, store.Delete(ctx, "doc-1"))

	_, err := store.Get(ctx, "doc-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestVersionStore_Delete_MissingIsIdempotent(t *testing.T) {
	store := NewVersionStore()

	assert.NoError(t, store.Delete(context.Background(), "never-existed"))
}

func TestVersionStore_List_SortedByDocumentID(t *testing.T) {
	store := NewVersionStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, sampleVersion("doc-b", 1)))
	require.NoError(t, store.Save(ctx, sampleVersion("doc-a", 1)))

	versions, err := store.List(ctx)

	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, "doc-a", versions[0].DocumentID)
	assert.Equal(t, "doc-b", versions[1].DocumentID)
}

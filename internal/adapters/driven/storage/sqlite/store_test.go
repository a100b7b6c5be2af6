package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightpath-labs/tutorcore/internal/core/domain"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleVersion(documentID string, number int) domain.DocumentVersion {
	return domain.DocumentVersion{
		ID:         documentID + "-version",
		DocumentID: documentID,
		Board:      "CBSE",
		Grade:      "9",
		Subject:    "Physics",
		Number:     number,
		Units: []domain.UnitRef{
			{
				UnitID:       "u1",
				IdentityKey:  "ch-1\x1fMotion\x1f12\x1fparagraph\x1f0",
				ContentHash:  "hash-1",
				ChapterID:    "ch-1",
				SectionTitle: "Motion",
				PageNumber:   12,
				Type:         domain.UnitParagraph,
			},
			{
				UnitID:       "u2",
				IdentityKey:  "ch-1\x1fMotion\x1f12\x1fformula\x1f0",
				ContentHash:  "hash-2",
				ChapterID:    "ch-1",
				SectionTitle: "Motion",
				PageNumber:   12,
				Type:         domain.UnitFormula,
			},
		},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestNewStore_CreatesSchema(t *testing.T) {
	store := setupTestStore(t)

	assert.NotEmpty(t, store.Path())

	// A second open against the same directory must not rerun migrations.
	again, err := NewStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, again.Close())
}

func TestVersionStore_SaveAndGet(t *testing.T) {
	store := setupTestStore(t)
	versions := store.VersionStore()
	ctx := context.Background()

	require.NoError(t, versions.Save(ctx, sampleVersion("doc-1", 1)))

	got, err := versions.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "doc-1-version", got.ID)
	assert.Equal(t, "CBSE", got.Board)
	assert.Equal(t, "9", got.Grade)
	assert.Equal(t, "Physics", got.Subject)
	assert.Equal(t, 1, got.Number)
	require.Len(t, got.Units, 2)
	assert.Equal(t, "u1", got.Units[0].UnitID)
	assert.Equal(t, domain.UnitFormula, got.Units[1].Type)
	assert.Equal(t, 12, got.Units[0].PageNumber)
}

func TestVersionStore_Get_NotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.VersionStore().Get(context.Background(), "missing")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestVersionStore_Save_MissingDocumentID(t *testing.T) {
	store := setupTestStore(t)

	err := store.VersionStore().Save(context.Background(), domain.DocumentVersion{})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestVersionStore_Save_ReplacesManifest(t *testing.T) {
	store := setupTestStore(t)
	versions := store.VersionStore()
	ctx := context.Background()

	require.NoError(t, versions.Save(ctx, sampleVersion("doc-1", 1)))

	next := sampleVersion("doc-1", 2)
	next.ID = "doc-1-version-2"
	next.Units = next.Units[:1]
	require.NoError(t, versions.Save(ctx, next))

	got, err := versions.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Number)
	assert.Equal(t, "doc-1-version-2", got.ID)
	require.Len(t, got.Units, 1, "old manifest rows must be replaced, not appended")
	assert.Equal(t, "u1", got.Units[0].UnitID)
}

func TestVersionStore_Save_PreservesUnitOrder(t *testing.T) {
	store := setupTestStore(t)
	versions := store.VersionStore()
	ctx := context.Background()

	version := sampleVersion("doc-1", 1)
	version.Units = []domain.UnitRef{
		{UnitID: "z-last", IdentityKey: "k1", ContentHash: "h1", ChapterID: "ch-1", Type: domain.UnitParagraph},
		{UnitID: "a-first", IdentityKey: "k2", ContentHash: "h2", ChapterID: "ch-1", Type: domain.UnitParagraph},
	}
	require.NoError(t, versions.Save(ctx, version))

	got, err := versions.Get(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, got.Units, 2)
	assert.Equal(t, "z-last", got.Units[0].UnitID)
	assert.Equal(t, "a-first", got.Units[1].UnitID)
}

func TestVersionStore_Delete(t *testing.T) {
	store := setupTestStore(t)
	versions := store.VersionStore()
	ctx := context.Background()
	require.NoError(t, versions.Save(ctx, sampleVersion("doc-1", 1)))

	require.NoError(t, versions.Delete(ctx, "doc-1"))

	_, err := versions.Get(ctx, "doc-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestVersionStore_Delete_MissingIsIdempotent(t *testing.T) {
	store := setupTestStore(t)

	assert.NoError(t, store.VersionStore().Delete(context.Background(), "never-existed"))
}

func TestVersionStore_List(t *testing.T) {
	store := setupTestStore(t)
	versions := store.VersionStore()
	ctx := context.Background()
	require.NoError(t, versions.Save(ctx, sampleVersion("doc-b", 1)))
	require.NoError(t, versions.Save(ctx, sampleVersion("doc-a", 3)))

	list, err := versions.List(ctx)

	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "doc-a", list[0].DocumentID)
	assert.Equal(t, 3, list[0].Number)
	assert.Equal(t, "doc-b", list[1].DocumentID)
	assert.Len(t, list[0].Units, 2)
}

func TestVersionStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.VersionStore().Save(ctx, sampleVersion("doc-1", 1)))
	require.NoError(t, store.Close())

	reopened, err := NewStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.VersionStore().Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Number)
	assert.Len(t, got.Units, 2)
}

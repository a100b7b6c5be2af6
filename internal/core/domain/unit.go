package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// UnitType classifies a content unit by its structural role in the textbook.
type UnitType string

// Available unit types.
const (
	// UnitParagraph is ordinary prose split at paragraph boundaries.
	UnitParagraph UnitType = "paragraph"

	// UnitFormula is a formula preserved verbatim so it can be cited precisely.
	UnitFormula UnitType = "formula"

	// UnitExample is a worked example kept as a single retrievable unit.
	UnitExample UnitType = "example"

	// UnitFigureCaption is a figure caption extracted from surrounding prose.
	UnitFigureCaption UnitType = "figure_caption"
)

// IsValid returns true if the unit type is recognised.
func (t UnitType) IsValid() bool {
	switch t {
	case UnitParagraph, UnitFormula, UnitExample, UnitFigureCaption:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (t UnitType) String() string {
	return string(t)
}

// ContentUnit is the smallest retrievable slice of ingested curriculum text.
// Units are immutable once created; a revised document produces new units
// with new content hashes, and superseded units are deleted from the index.
type ContentUnit struct {
	// ID is the unique identifier, derived from the identity key and the
	// content hash. It changes when the content changes.
	ID string

	// DocumentID links to the document this unit was segmented from.
	DocumentID string

	// ChapterID is the curriculum chapter the unit belongs to.
	ChapterID string

	// SectionTitle is the section heading above the unit.
	SectionTitle string

	// PageNumber is the page in the source textbook.
	PageNumber int

	// Type classifies the unit (paragraph, formula, example, figure_caption).
	Type UnitType

	// Text is the unit content.
	Text string

	// ContentHash is the stable hash of (text, type, section title) used
	// for change detection during incremental re-ingestion.
	ContentHash string

	// Ordinal disambiguates multiple units sharing the same chapter,
	// section, page and type. It is assigned in reading order.
	Ordinal int

	// ImageRefs are identifiers of images referenced by the unit.
	ImageRefs []string
}

// IdentityKey returns the position-independent identity of the unit used to
// match units across document versions. Content changes do not change the
// identity key; moving a unit to a different section or page does.
func (u ContentUnit) IdentityKey() string {
	return IdentityKey(u.ChapterID, u.SectionTitle, u.PageNumber, u.Type, u.Ordinal)
}

// IdentityKey builds the position-independent identity key for a unit.
func IdentityKey(chapterID, sectionTitle string, pageNumber int, t UnitType, ordinal int) string {
	return fmt.Sprintf("%s\x1f%s\x1f%d\x1f%s\x1f%d", chapterID, sectionTitle, pageNumber, t, ordinal)
}

// ContentHash computes the stable content hash for change detection.
// Two units with the same text, type and section title always hash equal.
func ContentHash(text string, t UnitType, sectionTitle string) string {
	h := sha256.New()
	h.Write([]byte(text))
	h.Write([]byte{0x1f})
	h.Write([]byte(t))
	h.Write([]byte{0x1f})
	h.Write([]byte(sectionTitle))
	return hex.EncodeToString(h.Sum(nil))
}

// UnitID derives the deterministic unit identifier from the identity key and
// the content hash. Unchanged units keep their ID across versions; changed
// units get a new one.
func UnitID(identityKey, contentHash string) string {
	h := sha256.Sum256([]byte(identityKey + "\x1f" + contentHash))
	return hex.EncodeToString(h[:16])
}

// UnitRef is the per-unit record kept inside a DocumentVersion. It carries
// enough identity and hash information to diff versions without reloading
// unit text.
type UnitRef struct {
	// UnitID is the unit identifier.
	UnitID string

	// IdentityKey is the position-independent identity of the unit.
	IdentityKey string

	// ContentHash is the unit's content hash.
	ContentHash string

	// ChapterID is the curriculum chapter.
	ChapterID string

	// SectionTitle is the section heading.
	SectionTitle string

	// PageNumber is the source page.
	PageNumber int

	// Type is the unit type.
	Type UnitType
}

// DocumentVersion records which units make up the currently ingested version
// of a document. It is the system of record for "what is in the index" for
// that document: it is only committed after index writes succeed, so a failed
// ingestion never changes the visible version.
type DocumentVersion struct {
	// ID is a unique identifier for this version.
	ID string

	// DocumentID identifies the document across versions.
	DocumentID string

	// Board is the education board the textbook belongs to.
	Board string

	// Grade is the grade level.
	Grade string

	// Subject is the curriculum subject.
	Subject string

	// Number is the monotonically increasing version number, starting at 1.
	Number int

	// Units are the live units of this version, in reading order.
	Units []UnitRef

	// CreatedAt is when this version was committed.
	CreatedAt time.Time
}

// UnitIDs returns the identifiers of all live units in this version.
func (v DocumentVersion) UnitIDs() []string {
	ids := make([]string, len(v.Units))
	for i, u := range v.Units {
		ids[i] = u.UnitID
	}
	return ids
}

// UnitMetadata is the metadata snapshot stored next to a vector in the index.
// It carries everything retrieval needs for filtering, ranking and prompt
// assembly so no second store round trip is required.
type UnitMetadata struct {
	// DocumentID links back to the source document.
	DocumentID string

	// ChapterID is the curriculum chapter.
	ChapterID string

	// SectionTitle is the section heading.
	SectionTitle string

	// PageNumber is the source page.
	PageNumber int

	// Type is the unit type.
	Type UnitType

	// Board, Grade and Subject scope the unit for metadata filtering.
	Board   string
	Grade   string
	Subject string

	// VersionNumber is the document version the unit was ingested with.
	// Used as the recency tiebreaker during ranking.
	VersionNumber int

	// Text is the unit content, kept in the snapshot so answers can be
	// assembled directly from retrieval results.
	Text string
}

// EmbeddingRecord pairs a unit's vector with its metadata snapshot.
// Records are owned exclusively by the vector index; their lifecycle is tied
// 1:1 to a live ContentUnit.
type EmbeddingRecord struct {
	// UnitID is the unit this vector belongs to.
	UnitID string

	// Vector is the embedding. Its length must equal the index dimension.
	Vector []float32

	// Metadata is the unit's metadata snapshot.
	Metadata UnitMetadata
}

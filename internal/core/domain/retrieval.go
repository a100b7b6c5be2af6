package domain

// ScopeFilter restricts retrieval to a slice of the curriculum. Empty fields
// are unconstrained.
type ScopeFilter struct {
	// Board restricts to an education board.
	Board string

	// Grade restricts to a grade level.
	Grade string

	// Subject restricts to a curriculum subject.
	Subject string
}

// Matches reports whether the metadata snapshot falls inside the scope.
func (f ScopeFilter) Matches(m UnitMetadata) bool {
	if f.Board != "" && f.Board != m.Board {
		return false
	}
	if f.Grade != "" && f.Grade != m.Grade {
		return false
	}
	if f.Subject != "" && f.Subject != m.Subject {
		return false
	}
	return true
}

// RetrievedSegment is one ranked retrieval result. Segments are ephemeral:
// they are produced per query and never persisted.
type RetrievedSegment struct {
	// UnitID is the matched unit.
	UnitID string

	// Similarity is the cosine similarity against the query vector (-1..1).
	Similarity float64

	// ChapterID is the unit's chapter.
	ChapterID string

	// SectionTitle is the unit's section heading.
	SectionTitle string

	// PageNumber is the unit's source page.
	PageNumber int

	// Type is the unit type.
	Type UnitType

	// Text is the unit content used for prompt assembly.
	Text string

	// IsCurrentChapter is true when the unit belongs to the chapter the
	// student currently has open. Such segments rank above equally similar
	// segments from other chapters.
	IsCurrentChapter bool

	// VersionNumber is the document version the unit belongs to, used as
	// the recency tiebreaker.
	VersionNumber int
}

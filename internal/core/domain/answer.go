package domain

// Citation points a claim in an answer back to a retrieved unit.
type Citation struct {
	// ChapterID is the cited chapter.
	ChapterID string `json:"chapter_id"`

	// SectionTitle is the cited section heading.
	SectionTitle string `json:"section_title"`

	// PageNumber is the cited page.
	PageNumber int `json:"page_number"`
}

// Answer is the result of a question. It is produced once per query and is
// not persisted by the core.
type Answer struct {
	// Text is the answer body with citation markers removed.
	Text string `json:"text"`

	// Language is the language the answer was requested in.
	Language string `json:"language"`

	// Citations are the validated citations, in order of first appearance.
	Citations []Citation `json:"citations"`

	// Grounded is true when every claim's citation was verified against the
	// segments actually supplied to the generator. It is false for the
	// insufficient-content answer and whenever a citation had to be
	// stripped, signalling a downstream quality concern.
	Grounded bool `json:"grounded"`
}

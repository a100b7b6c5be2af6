package domain

// BlockKind classifies a block of extracted text as delivered by the external
// document-extraction service. PDF parsing itself is out of scope; the core
// consumes already-extracted text with structure attached.
type BlockKind string

// Available block kinds.
const (
	// BlockProse is running text. The segmenter splits it into paragraphs.
	BlockProse BlockKind = "prose"

	// BlockFormula is a formula kept verbatim as a single unit.
	BlockFormula BlockKind = "formula"

	// BlockExample is a worked example kept as a single unit.
	BlockExample BlockKind = "example"

	// BlockFigureCaption is a figure caption kept as a single unit.
	BlockFigureCaption BlockKind = "figure_caption"
)

// IsValid returns true if the block kind is recognised.
func (k BlockKind) IsValid() bool {
	switch k {
	case BlockProse, BlockFormula, BlockExample, BlockFigureCaption:
		return true
	default:
		return false
	}
}

// ExtractedBlock is one structural block of extracted document text.
type ExtractedBlock struct {
	// Kind classifies the block.
	Kind BlockKind `json:"kind"`

	// ChapterID is the curriculum chapter the block belongs to.
	ChapterID string `json:"chapter_id"`

	// SectionTitle is the section heading above the block.
	SectionTitle string `json:"section_title"`

	// PageNumber is the page in the source textbook.
	PageNumber int `json:"page_number"`

	// Text is the block content.
	Text string `json:"text"`

	// ImageRefs are identifiers of images referenced by the block.
	ImageRefs []string `json:"image_refs,omitempty"`
}

// ExtractedDocument is the segmenter's input: a full document as delivered by
// the extraction service, blocks in reading order.
type ExtractedDocument struct {
	// DocumentID identifies the document across versions.
	DocumentID string `json:"document_id"`

	// Board is the education board the textbook belongs to.
	Board string `json:"board"`

	// Grade is the grade level.
	Grade string `json:"grade"`

	// Subject is the curriculum subject.
	Subject string `json:"subject"`

	// Blocks are the extracted blocks in reading order.
	Blocks []ExtractedBlock `json:"blocks"`
}

package services

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/brightpath-labs/tutorcore/internal/core/domain"
	"github.com/brightpath-labs/tutorcore/internal/logger"
)

// Segmenter splits an extracted document into typed content units, reading
// order preserved. It splits on structural boundaries first (chapter,
// section, page arrive pre-split from the extraction service), then on
// paragraph breaks, bounded by a maximum unit length. Formulas, examples and
// figure captions become distinct unit types preserved verbatim so they can
// be cited precisely.
type Segmenter struct {
	maxUnitLength int
}

// NewSegmenter creates a segmenter. maxUnitLength bounds a unit's character
// length; non-positive values fall back to a sane default.
func NewSegmenter(maxUnitLength int) *Segmenter {
	if maxUnitLength <= 0 {
		maxUnitLength = 1200
	}
	return &Segmenter{maxUnitLength: maxUnitLength}
}

// Segment converts the document's blocks into content units.
// A document with no blocks fails with domain.ErrEmptyDocument; a document
// whose blocks yield no usable content fails with domain.ErrNoUsableUnits.
// Duplicate content hashes within one document are collapsed so the same
// content is never embedded twice.
func (s *Segmenter) Segment(doc domain.ExtractedDocument) ([]domain.ContentUnit, error) {
	if len(doc.Blocks) == 0 {
		return nil, fmt.Errorf("document %s: %w", doc.DocumentID, domain.ErrEmptyDocument)
	}

	var units []domain.ContentUnit
	ordinals := make(map[string]int)
	seenHashes := make(map[string]bool)

	appendUnit := func(block domain.ExtractedBlock, unitType domain.UnitType, text string) {
		text = strings.TrimSpace(text)
		if text == "" {
			return
		}

		hash := domain.ContentHash(text, unitType, block.SectionTitle)
		if seenHashes[hash] {
			logger.Debug("Skipping duplicate unit in %s (%s, page %d)",
				doc.DocumentID, block.SectionTitle, block.PageNumber)
			return
		}
		seenHashes[hash] = true

		groupKey := fmt.Sprintf("%s\x1f%s\x1f%d\x1f%s",
			block.ChapterID, block.SectionTitle, block.PageNumber, unitType)
		ordinal := ordinals[groupKey]
		ordinals[groupKey]++

		identity := domain.IdentityKey(block.ChapterID, block.SectionTitle, block.PageNumber, unitType, ordinal)

		units = append(units, domain.ContentUnit{
			ID:           domain.UnitID(identity, hash),
			DocumentID:   doc.DocumentID,
			ChapterID:    block.ChapterID,
			SectionTitle: block.SectionTitle,
			PageNumber:   block.PageNumber,
			Type:         unitType,
			Text:         text,
			ContentHash:  hash,
			Ordinal:      ordinal,
			ImageRefs:    block.ImageRefs,
		})
	}

	for _, block := range doc.Blocks {
		switch block.Kind {
		case domain.BlockProse:
			for _, para := range splitParagraphs(block.Text) {
				for _, piece := range boundLength(para, s.maxUnitLength) {
					appendUnit(block, domain.UnitParagraph, piece)
				}
			}
		case domain.BlockFormula:
			appendUnit(block, domain.UnitFormula, block.Text)
		case domain.BlockExample:
			appendUnit(block, domain.UnitExample, block.Text)
		case domain.BlockFigureCaption:
			appendUnit(block, domain.UnitFigureCaption, block.Text)
		default:
			logger.Warn("Unknown block kind %q in %s, skipping", block.Kind, doc.DocumentID)
		}
	}

	if len(units) == 0 {
		return nil, fmt.Errorf("document %s: %w", doc.DocumentID, domain.ErrNoUsableUnits)
	}

	logger.Debug("Segmented %s into %d units", doc.DocumentID, len(units))
	return units, nil
}

// splitParagraphs splits prose at blank lines.
func splitParagraphs(text string) []string {
	normalised := strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(normalised, "\n\n")

	paragraphs := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return paragraphs
}

// boundLength splits a paragraph that exceeds maxLen at sentence boundaries,
// packing sentences greedily. A single sentence longer than maxLen is hard
// split so no unit ever exceeds the embedder's input limit.
func boundLength(para string, maxLen int) []string {
	if len(para) <= maxLen {
		return []string{para}
	}

	var pieces []string
	var current strings.Builder

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			pieces = append(pieces, s)
		}
		current.Reset()
	}

	for _, sentence := range splitSentences(para) {
		for len(sentence) > maxLen {
			flush()
			cut := runeCut(sentence, maxLen)
			pieces = append(pieces, strings.TrimSpace(sentence[:cut]))
			sentence = sentence[cut:]
		}
		if current.Len() > 0 && current.Len()+len(sentence)+1 > maxLen {
			flush()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(strings.TrimSpace(sentence))
	}
	flush()

	return pieces
}

// runeCut returns the largest byte offset not exceeding maxLen that falls on
// a rune boundary, so hard splits never produce invalid UTF-8.
func runeCut(s string, maxLen int) int {
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	if cut == 0 {
		return maxLen // not valid UTF-8 to begin with, split anyway
	}
	return cut
}

// splitSentences splits text into sentences by common terminators,
// including the Devanagari danda used in Hindi prose.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for _, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' || r == '\n' || r == '।' || r == '॥' {
			s := strings.TrimSpace(current.String())
			if s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}

	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}

	return sentences
}

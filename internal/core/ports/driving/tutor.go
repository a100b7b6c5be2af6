package driving

import (
	"context"

	"github.com/brightpath-labs/tutorcore/internal/core/domain"
)

// Tutor answers student questions grounded in the ingested curriculum.
type Tutor interface {
	// AskQuestion runs the query path end to end: embed the question,
	// retrieve and rank supporting segments, generate a grounded answer,
	// and record both turns in the conversation session. Failures degrade
	// to a valid, explainable Answer; the student never sees a raw error.
	AskQuestion(ctx context.Context, req AskRequest) (*domain.Answer, error)

	// ResetConversation clears the conversation session for a student and
	// chapter.
	ResetConversation(ctx context.Context, studentID, chapterID string) error
}

// AskRequest carries one student question.
type AskRequest struct {
	// StudentID identifies the student.
	StudentID string

	// ChapterID is the chapter the student currently has open. Segments
	// from this chapter are ranked above equally similar ones elsewhere.
	ChapterID string

	// Scope restricts retrieval by board, grade and subject.
	Scope domain.ScopeFilter

	// Question is the question text.
	Question string

	// Language is the language to answer in (e.g. "en", "hi").
	Language string
}

package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/brightpath-labs/tutorcore/internal/core/domain"
	"github.com/brightpath-labs/tutorcore/internal/core/ports/driven"
	"github.com/brightpath-labs/tutorcore/internal/core/ports/driving"
	"github.com/brightpath-labs/tutorcore/internal/logger"
)

// Ensure TutorService implements the interface.
var _ driving.Tutor = (*TutorService)(nil)

// TutorService runs the query path end to end: embed the question, retrieve
// and rank supporting segments, generate a grounded answer, and record the
// exchange in the conversation session. The embedding service is the same
// instance the ingestion path uses, which keeps question vectors and content
// vectors in one space.
//
// Query-path failures never surface as raw errors in the student-facing
// answer; they degrade to the insufficient-content answer.
type TutorService struct {
	embedder      driven.EmbeddingService
	retriever     *Retriever
	answerer      *GroundedAnswerer
	conversations *ConversationState

	topK int
}

// NewTutorService creates the tutor service.
func NewTutorService(
	embedder driven.EmbeddingService,
	retriever *Retriever,
	answerer *GroundedAnswerer,
	conversations *ConversationState,
	topK int,
) *TutorService {
	if topK <= 0 {
		topK = 6
	}

	return &TutorService{
		embedder:      embedder,
		retriever:     retriever,
		answerer:      answerer,
		conversations: conversations,
		topK:          topK,
	}
}

// AskQuestion answers one student question grounded in the curriculum.
func (s *TutorService) AskQuestion(ctx context.Context, req driving.AskRequest) (*domain.Answer, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, fmt.Errorf("%w: empty question", domain.ErrInvalidInput)
	}
	if req.StudentID == "" || req.ChapterID == "" {
		return nil, fmt.Errorf("%w: missing student or chapter id", domain.ErrInvalidInput)
	}

	logger.Section("Question")
	logger.Debug("Student %s, chapter %s: %q", req.StudentID, req.ChapterID, question)

	key := domain.SessionKey{StudentID: req.StudentID, ChapterID: req.ChapterID}
	history := s.conversations.Context(key)

	vector, err := s.embedder.Embed(ctx, question)
	if err != nil {
		logger.Warn("Question embedding failed: %v", err)
		return s.record(key, question, s.answerer.InsufficientAnswer(req.Language)), nil
	}

	segments, err := s.retriever.Retrieve(ctx, vector, req.ChapterID, req.Scope, s.topK)
	if err != nil {
		logger.Warn("Retrieval failed: %v", err)
		return s.record(key, question, s.answerer.InsufficientAnswer(req.Language)), nil
	}

	answer, err := s.answerer.Answer(ctx, question, segments, history, req.Language)
	if err != nil {
		logger.Warn("Answer generation failed: %v", err)
		answer = s.answerer.InsufficientAnswer(req.Language)
	}

	return s.record(key, question, answer), nil
}

// ResetConversation clears the session for a student and chapter.
func (s *TutorService) ResetConversation(_ context.Context, studentID, chapterID string) error {
	if studentID == "" || chapterID == "" {
		return fmt.Errorf("%w: missing student or chapter id", domain.ErrInvalidInput)
	}

	s.conversations.Reset(domain.SessionKey{StudentID: studentID, ChapterID: chapterID})
	logger.Debug("Conversation reset for student %s, chapter %s", studentID, chapterID)
	return nil
}

// record appends the exchange to the session and returns the answer.
func (s *TutorService) record(key domain.SessionKey, question string, answer *domain.Answer) *domain.Answer {
	now := time.Now()
	s.conversations.AppendTurn(key, domain.Turn{Role: domain.RoleStudent, Text: question, Timestamp: now})
	s.conversations.AppendTurn(key, domain.Turn{Role: domain.RoleTutor, Text: answer.Text, Timestamp: now})
	return answer
}

package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightpath-labs/tutorcore/internal/core/domain"
	"github.com/brightpath-labs/tutorcore/internal/core/ports/driven"
	"github.com/brightpath-labs/tutorcore/internal/core/ports/driving"
)

func setupTestTutor(t *testing.T, embedder *mockEmbeddingService, index *mockVectorIndex, llm *mockLLMService) *TutorService {
	t.Helper()

	retriever := NewRetriever(index, RetrieverConfig{
		SimilarityThreshold: 0.35,
		ChapterMargin:       0.15,
		OverFetchFactor:     3,
	})
	answerer := NewGroundedAnswerer(llm, AnswererConfig{
		MaxAttempts: 2,
		BackoffBase: time.Millisecond,
	})
	conversations := NewConversationState(ConversationConfig{})
	return NewTutorService(embedder, retriever, answerer, conversations, 6)
}

func askRequest(question string) driving.AskRequest {
	return driving.AskRequest{
		StudentID: "s1",
		ChapterID: "ch-3",
		Question:  question,
		Language:  "en",
	}
}

func TestTutorService_AskQuestion_GroundedAnswer(t *testing.T) {
	index := &mockVectorIndex{hits: []driven.VectorHit{
		hit("u1", "ch-3", "Laws of Motion", 0.9),
	}}
	llm := &mockLLMService{response: "Objects resist changes to motion [src 1]."}
	tutor := setupTestTutor(t, &mockEmbeddingService{}, index, llm)

	answer, err := tutor.AskQuestion(context.Background(), askRequest("What is inertia?"))

	require.NoError(t, err)
	assert.True(t, answer.Grounded)
	require.Len(t, answer.Citations, 1)
	assert.Equal(t, "Laws of Motion", answer.Citations[0].SectionTitle)
}

func TestTutorService_AskQuestion_EmptyQuestion(t *testing.T) {
	tutor := setupTestTutor(t, &mockEmbeddingService{}, &mockVectorIndex{}, &mockLLMService{})

	_, err := tutor.AskQuestion(context.Background(), askRequest("   "))

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestTutorService_AskQuestion_MissingIdentifiers(t *testing.T) {
	tutor := setupTestTutor(t, &mockEmbeddingService{}, &mockVectorIndex{}, &mockLLMService{})

	_, err := tutor.AskQuestion(context.Background(), driving.AskRequest{Question: "What is heat?"})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestTutorService_AskQuestion_OffCurriculumQuestion(t *testing.T) {
	// Nothing in the index comes back above the threshold.
	index := &mockVectorIndex{hits: []driven.VectorHit{
		hit("u1", "ch-3", "Laws of Motion", 0.1),
	}}
	llm := &mockLLMService{response: "should never be used"}
	tutor := setupTestTutor(t, &mockEmbeddingService{}, index, llm)

	answer, err := tutor.AskQuestion(context.Background(), askRequest("Who won the world cup?"))

	require.NoError(t, err)
	assert.False(t, answer.Grounded)
	assert.Contains(t, answer.Text, "could not find anything in your textbook")
	assert.Equal(t, 0, llm.chatCalls)
}

func TestTutorService_AskQuestion_EmbeddingFailureDegrades(t *testing.T) {
	embedder := &mockEmbeddingService{embedErr: domain.ErrEmbeddingUnavailable}
	tutor := setupTestTutor(t, embedder, &mockVectorIndex{}, &mockLLMService{})

	answer, err := tutor.AskQuestion(context.Background(), askRequest("What is inertia?"))

	require.NoError(t, err, "embedding failure must degrade, not propagate")
	assert.False(t, answer.Grounded)
	assert.Contains(t, answer.Text, "could not find anything in your textbook")
}

func TestTutorService_AskQuestion_RetrievalFailureDegrades(t *testing.T) {
	index := &mockVectorIndex{queryErr: assert.AnError}
	tutor := setupTestTutor(t, &mockEmbeddingService{}, index, &mockLLMService{})

	answer, err := tutor.AskQuestion(context.Background(), askRequest("What is inertia?"))

	require.NoError(t, err)
	assert.False(t, answer.Grounded)
}

func TestTutorService_AskQuestion_RecordsBothTurns(t *testing.T) {
	index := &mockVectorIndex{hits: []driven.VectorHit{
		hit("u1", "ch-3", "Laws of Motion", 0.9),
	}}
	llm := &mockLLMService{response: "Inertia is resistance to change [src 1]."}
	embedder := &mockEmbeddingService{}
	retriever := NewRetriever(index, RetrieverConfig{SimilarityThreshold: 0.35})
	answerer := NewGroundedAnswerer(llm, AnswererConfig{BackoffBase: time.Millisecond})
	conversations := NewConversationState(ConversationConfig{})
	tutor := NewTutorService(embedder, retriever, answerer, conversations, 6)

	answer, err := tutor.AskQuestion(context.Background(), askRequest("What is inertia?"))
	require.NoError(t, err)

	turns := conversations.Context(domain.SessionKey{StudentID: "s1", ChapterID: "ch-3"})
	require.Len(t, turns, 2)
	assert.Equal(t, domain.RoleStudent, turns[0].Role)
	assert.Equal(t, "What is inertia?", turns[0].Text)
	assert.Equal(t, domain.RoleTutor, turns[1].Role)
	assert.Equal(t, answer.Text, turns[1].Text)
}

func TestTutorService_AskQuestion_HistoryExcludesCurrentQuestion(t *testing.T) {
	index := &mockVectorIndex{hits: []driven.VectorHit{
		hit("u1", "ch-3", "Laws of Motion", 0.9),
	}}
	llm := &mockLLMService{response: "Answered [src 1]."}
	tutor := setupTestTutor(t, &mockEmbeddingService{}, index, llm)
	ctx := context.Background()

	_, err := tutor.AskQuestion(ctx, askRequest("First question?"))
	require.NoError(t, err)
	_, err = tutor.AskQuestion(ctx, askRequest("Second question?"))
	require.NoError(t, err)

	// system + 2 history turns + current question.
	require.Len(t, llm.lastMessages, 4)
	assert.Equal(t, "First question?", llm.lastMessages[1].Content)
	assert.Equal(t, "Second question?", llm.lastMessages[3].Content)
}

func TestTutorService_AskQuestion_DegradedAnswerStillRecorded(t *testing.T) {
	embedder := &mockEmbeddingService{embedErr: domain.ErrEmbeddingUnavailable}
	index := &mockVectorIndex{}
	llm := &mockLLMService{}
	retriever := NewRetriever(index, RetrieverConfig{})
	answerer := NewGroundedAnswerer(llm, AnswererConfig{BackoffBase: time.Millisecond})
	conversations := NewConversationState(ConversationConfig{})
	tutor := NewTutorService(embedder, retriever, answerer, conversations, 6)

	_, err := tutor.AskQuestion(context.Background(), askRequest("What is inertia?"))
	require.NoError(t, err)

	turns := conversations.Context(domain.SessionKey{StudentID: "s1", ChapterID: "ch-3"})
	assert.Len(t, turns, 2)
}

func TestTutorService_ResetConversation(t *testing.T) {
	index := &mockVectorIndex{hits: []driven.VectorHit{
		hit("u1", "ch-3", "Laws of Motion", 0.9),
	}}
	llm := &mockLLMService{response: "Answered [src 1]."}
	embedder := &mockEmbeddingService{}
	retriever := NewRetriever(index, RetrieverConfig{SimilarityThreshold: 0.35})
	answerer := NewGroundedAnswerer(llm, AnswererConfig{BackoffBase: time.Millisecond})
	conversations := NewConversationState(ConversationConfig{})
	tutor := NewTutorService(embedder, retriever, answerer, conversations, 6)
	ctx := context.Background()

	_, err := tutor.AskQuestion(ctx, askRequest("What is inertia?"))
	require.NoError(t, err)

	require.NoError(t, tutor.ResetConversation(ctx, "s1", "ch-3"))

	assert.Nil(t, conversations.Context(domain.SessionKey{StudentID: "s1", ChapterID: "ch-3"}))
}

func TestTutorService_ResetConversation_MissingIdentifiers(t *testing.T) {
	tutor := setupTestTutor(t, &mockEmbeddingService{}, &mockVectorIndex{}, &mockLLMService{})

	err := tutor.ResetConversation(context.Background(), "", "ch-3")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

package services

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightpath-labs/tutorcore/internal/core/domain"
)

func studentTurn(text string) domain.Turn {
	return domain.Turn{Role: domain.RoleStudent, Text: text}
}

func TestConversationState_Context_UnknownSession(t *testing.T) {
	state := NewConversationState(ConversationConfig{})

	turns := state.Context(domain.SessionKey{StudentID: "s1", ChapterID: "ch-1"})

	assert.Nil(t, turns)
}

func TestConversationState_AppendTurn_OldestFirst(t *testing.T) {
	state := NewConversationState(ConversationConfig{})
	key := domain.SessionKey{StudentID: "s1", ChapterID: "ch-1"}

	state.AppendTurn(key, studentTurn("first"))
	state.AppendTurn(key, domain.Turn{Role: domain.RoleTutor, Text: "second"})

	turns := state.Context(key)
	require.Len(t, turns, 2)
	assert.Equal(t, "first", turns[0].Text)
	assert.Equal(t, domain.RoleStudent, turns[0].Role)
	assert.Equal(t, "second", turns[1].Text)
	assert.Equal(t, domain.RoleTutor, turns[1].Role)
}

func TestConversationState_AppendTurn_EvictsBeyondMaxTurns(t *testing.T) {
	state := NewConversationState(ConversationConfig{MaxTurns: 3})
	key := domain.SessionKey{StudentID: "s1", ChapterID: "ch-1"}

	for i := 1; i <= 5; i++ {
		state.AppendTurn(key, studentTurn(fmt.Sprintf("turn %d", i)))
	}

	turns := state.Context(key)
	require.Len(t, turns, 3)
	assert.Equal(t, "turn 3", turns[0].Text)
	assert.Equal(t, "turn 5", turns[2].Text)
}

func TestConversationState_AppendTurn_EvictsBeyondCharBudget(t *testing.T) {
	state := NewConversationState(ConversationConfig{MaxTurns: 100, MaxChars: 25})
	key := domain.SessionKey{StudentID: "s1", ChapterID: "ch-1"}

	state.AppendTurn(key, studentTurn(strings.Repeat("a", 10)))
	state.AppendTurn(key, studentTurn(strings.Repeat("b", 10)))
	state.AppendTurn(key, studentTurn(strings.Repeat("c", 10)))

	turns := state.Context(key)
	require.Len(t, turns, 2)
	assert.True(t, strings.HasPrefix(turns[0].Text, "b"))
}

func TestConversationState_AppendTurn_NeverTruncatesSoleTurn(t *testing.T) {
	state := NewConversationState(ConversationConfig{MaxTurns: 10, MaxChars: 5})
	key := domain.SessionKey{StudentID: "s1", ChapterID: "ch-1"}

	state.AppendTurn(key, studentTurn("much longer than the budget"))

	turns := state.Context(key)
	require.Len(t, turns, 1)
	assert.Equal(t, "much longer than the budget", turns[0].Text)
}

func TestConversationState_SessionsAreIsolated(t *testing.T) {
	state := NewConversationState(ConversationConfig{})
	chapterOne := domain.SessionKey{StudentID: "s1", ChapterID: "ch-1"}
	chapterTwo := domain.SessionKey{StudentID: "s1", ChapterID: "ch-2"}
	otherStudent := domain.SessionKey{StudentID: "s2", ChapterID: "ch-1"}

	state.AppendTurn(chapterOne, studentTurn("about motion"))

	assert.Len(t, state.Context(chapterOne), 1)
	assert.Nil(t, state.Context(chapterTwo))
	assert.Nil(t, state.Context(otherStudent))
}

func TestConversationState_Context_ReturnsCopy(t *testing.T) {
	state := NewConversationState(ConversationConfig{})
	key := domain.SessionKey{StudentID: "s1", ChapterID: "ch-1"}
	state.AppendTurn(key, studentTurn("original"))

	turns := state.Context(key)
	turns[0].Text = "mutated"

	assert.Equal(t, "original", state.Context(key)[0].Text)
}

func TestConversationState_Reset(t *testing.T) {
	state := NewConversationState(ConversationConfig{})
	key := domain.SessionKey{StudentID: "s1", ChapterID: "ch-1"}
	other := domain.SessionKey{StudentID: "s1", ChapterID: "ch-2"}
	state.AppendTurn(key, studentTurn("to be cleared"))
	state.AppendTurn(other, studentTurn("kept"))

	state.Reset(key)

	assert.Nil(t, state.Context(key))
	assert.Len(t, state.Context(other), 1)
}

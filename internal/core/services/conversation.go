package services

import (
	"sync"

	"github.com/brightpath-labs/tutorcore/internal/core/domain"
)

// ConversationState keeps per-session turn history with a bounded context
// window. Sessions are keyed by (student, chapter), so switching chapters
// starts a fresh session and never leaks context across chapters. Bounding
// is FIFO over whole turns: the oldest turn is dropped first, never truncated
// mid-turn.
type ConversationState struct {
	mu       sync.RWMutex
	sessions map[domain.SessionKey][]domain.Turn

	maxTurns int
	maxChars int
}

// ConversationConfig bounds the context window per session.
type ConversationConfig struct {
	// MaxTurns is the maximum number of turns kept.
	MaxTurns int

	// MaxChars is the character budget across kept turns. Whichever bound
	// is reached first wins.
	MaxChars int
}

// NewConversationState creates an empty conversation store.
func NewConversationState(cfg ConversationConfig) *ConversationState {
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = 12
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = 8000
	}

	return &ConversationState{
		sessions: make(map[domain.SessionKey][]domain.Turn),
		maxTurns: cfg.MaxTurns,
		maxChars: cfg.MaxChars,
	}
}

// AppendTurn records a turn for the session, creating the session on first
// use and evicting the oldest turns once a bound is exceeded.
func (c *ConversationState) AppendTurn(key domain.SessionKey, turn domain.Turn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	turns := append(c.sessions[key], turn)
	c.sessions[key] = c.trim(turns)
}

// Context returns the bounded turn sequence for the session, oldest first.
// A session that was never written returns nil.
func (c *ConversationState) Context(key domain.SessionKey) []domain.Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()

	turns, ok := c.sessions[key]
	if !ok {
		return nil
	}

	// Return a copy so callers cannot mutate session state.
	out := make([]domain.Turn, len(turns))
	copy(out, turns)
	return out
}

// Reset clears the session for the given key.
func (c *ConversationState) Reset(key domain.SessionKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, key)
}

// trim drops the oldest turns until both the turn count and the character
// budget are satisfied.
func (c *ConversationState) trim(turns []domain.Turn) []domain.Turn {
	for len(turns) > c.maxTurns {
		turns = turns[1:]
	}
	for len(turns) > 1 && totalChars(turns) > c.maxChars {
		turns = turns[1:]
	}
	return turns
}

func totalChars(turns []domain.Turn) int {
	total := 0
	for _, t := range turns {
		total += len(t.Text)
	}
	return total
}

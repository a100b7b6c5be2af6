package domain

import "time"

// Role identifies who produced a conversation turn.
type Role string

// Available roles.
const (
	// RoleStudent is a question or follow-up from the student.
	RoleStudent Role = "student"

	// RoleTutor is an answer produced by the core.
	RoleTutor Role = "tutor"
)

// Turn is a single utterance in a tutoring conversation.
type Turn struct {
	// Role is who spoke.
	Role Role

	// Text is the utterance.
	Text string

	// Timestamp is when the turn was recorded.
	Timestamp time.Time
}

// SessionKey identifies a conversation session. Sessions are exclusive to a
// (student, chapter) pair: switching chapters starts a fresh session and
// never carries turns over from another chapter.
type SessionKey struct {
	// StudentID identifies the student.
	StudentID string

	// ChapterID identifies the chapter the student has open.
	ChapterID string
}

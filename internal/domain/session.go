package domain

import "time"

// SessionMode selects how a study session presents its cards.
type SessionMode string

const (
	ModeFlashcard      SessionMode = "flashcard"
	ModeMultipleChoice SessionMode = "multiple_choice"
	ModeTimed          SessionMode = "timed"
	ModeMixed          SessionMode = "mixed"
	ModeNode           SessionMode = "node"
)

// IsValid reports whether m is a known session mode.
func (m SessionMode) IsValid() bool {
	switch m {
	case ModeFlashcard, ModeMultipleChoice, ModeTimed, ModeMixed, ModeNode:
		return true
	}
	return false
}

// TTL is the wall-clock lifetime of an active session in this mode. A timed
// session runs its own countdown, so a short TTL keeps it from orphaning the
// single-active-session slot; other modes tolerate a day-long interruption.
func (m SessionMode) TTL() time.Duration {
	if m == ModeTimed {
		return 30 * time.Minute
	}
	return 24 * time.Hour
}

// TimedSessionCountdownMs is the starting countdown for timed mode.
const TimedSessionCountdownMs = 5 * 60 * 1000

// SessionStatus is the study-session state machine state.
// Completed and abandoned are terminal; a session is never reactivated.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	SessionAbandoned SessionStatus = "abandoned"
)

// SessionResponse is one recorded answer within a session.
type SessionResponse struct {
	CardID string `json:"cardId"`
	Rating Rating `json:"rating"`
	TimeMs int    `json:"timeMs"`
}

// StudySession is one multi-card study run. CardIDs is the immutable plan
// fixed at creation; Responses grows in lockstep with CurrentIndex.
type StudySession struct {
	ID              string
	UserID          string
	GoalID          string
	DeckID          string
	Mode            SessionMode
	Status          SessionStatus
	CardIDs         []string
	CurrentIndex    int
	Responses       []SessionResponse
	StartedAt       time.Time
	LastActivityAt  time.Time
	ExpiresAt       time.Time
	CompletedAt     *time.Time
	TimeRemainingMs *int
	Score           *int
	IsGuided        bool
	CurrentNodeID   *string
}

// Expired reports whether the session's TTL has passed at the given time.
func (s *StudySession) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

package domain

import "time"

// Flashcard is a single reviewable item. The scheduling state is embedded
// and owned 1:1 by the card; only the scheduling algorithm mutates it.
type Flashcard struct {
	ID          string
	UserID      string
	Front       string
	Back        string
	Context     string
	Fingerprint string
	SkillNodeID *string
	Scheduling  SchedulingState
	CreatedAt   time.Time
}

// SchedulingState holds the spaced-repetition memory state of a card.
type SchedulingState struct {
	State         CardState
	Due           time.Time
	Stability     float64
	Difficulty    float64
	Reps          int
	Lapses        int
	ElapsedDays   float64
	ScheduledDays float64
	LastReview    *time.Time
}

// NewSchedulingState returns the state of a card that has never been reviewed.
// Due is set to now so the card is immediately eligible.
func NewSchedulingState(now time.Time) SchedulingState {
	return SchedulingState{
		State: StateNew,
		Due:   now,
	}
}

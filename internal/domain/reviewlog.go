package domain

import "time"

// ReviewLog records a single rating event for a card. Rows are append-only:
// the log is the durable record of a review, independent of any session.
type ReviewLog struct {
	ID              string
	FlashcardID     string
	UserID          string
	Rating          Rating
	State           CardState
	Due             time.Time
	Stability       float64
	Difficulty      float64
	ElapsedDays     float64
	LastElapsedDays float64
	ScheduledDays   float64
	ReviewedAt      time.Time
}

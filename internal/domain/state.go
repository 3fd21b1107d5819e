package domain

import "fmt"

// CardState is the scheduling stage of a card.
type CardState int

const (
	StateNew        CardState = 0
	StateLearning   CardState = 1
	StateReview     CardState = 2
	StateRelearning CardState = 3
)

var stateNames = map[CardState]string{
	StateNew:        "New",
	StateLearning:   "Learning",
	StateReview:     "Review",
	StateRelearning: "Relearning",
}

// IsValid reports whether s is one of the four scheduling states.
func (s CardState) IsValid() bool {
	_, ok := stateNames[s]
	return ok
}

// String returns the name of the state. Invalid values render as "CardState(n)".
func (s CardState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("CardState(%d)", int(s))
}

// Priority is the due-queue ordering rank of the state. New material surfaces
// before consolidation: New < Learning < Relearning < Review.
func (s CardState) Priority() int {
	switch s {
	case StateNew:
		return 0
	case StateLearning:
		return 1
	case StateRelearning:
		return 2
	default:
		return 3
	}
}

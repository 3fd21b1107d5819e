package domain

import "fmt"

// Rating is the learner's self-assessed recall quality for one review.
type Rating int

const (
	Again Rating = 1 // failed to recall
	Hard  Rating = 2
	Good  Rating = 3
	Easy  Rating = 4
)

var ratingNames = map[Rating]string{
	Again: "Again",
	Hard:  "Hard",
	Good:  "Good",
	Easy:  "Easy",
}

// IsValid reports whether r is a valid rating (Again through Easy).
func (r Rating) IsValid() bool {
	_, ok := ratingNames[r]
	return ok
}

// String returns the name of the rating. Invalid values render as "Rating(n)".
func (r Rating) String() string {
	if name, ok := ratingNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Rating(%d)", int(r))
}

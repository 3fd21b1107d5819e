package domain

import "errors"

// Sentinel errors for the engine. Check with errors.Is.
//
// NotFound conditions are fatal and propagate. The deck-limit error fails the
// whole add with no partial insert. ErrSessionNotActive covers operations on
// a session already in a terminal state.
var (
	ErrDeckNotFound      = errors.New("mnemo: deck not found")
	ErrCardNotFound      = errors.New("mnemo: card not found")
	ErrSessionNotFound   = errors.New("mnemo: session not found")
	ErrNodeNotFound      = errors.New("mnemo: skill node not found")
	ErrTreeNotFound      = errors.New("mnemo: skill tree not found")
	ErrDeckLimitExceeded = errors.New("mnemo: deck card limit exceeded")
	ErrSessionNotActive  = errors.New("mnemo: session is not active")
	ErrInvalidRating     = errors.New("mnemo: invalid rating")
	ErrInvalidNode       = errors.New("mnemo: invalid skill node placement")
)

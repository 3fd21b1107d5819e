package domain

import "time"

// DeckCardLimit caps membership rows per deck. Adds that would push a deck
// past the cap fail whole, with no partial insert.
const DeckCardLimit = 1000

// Deck is a user-curated grouping of cards with optional per-deck
// scheduling overrides. Nil override fields fall through to the global tier.
type Deck struct {
	ID              string
	UserID          string
	Name            string
	NewCardsPerDay  *int
	CardsPerSession *int
	Archived        bool
	CreatedAt       time.Time
}

// DeckCard is one deck↔card membership row, unique per (DeckID, CardID).
type DeckCard struct {
	DeckID  string
	CardID  string
	AddedAt time.Time
}

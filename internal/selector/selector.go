// Package selector picks the cards a study session draws from: due cards
// ordered by scheduling-state priority, and new cards in creation order.
package selector

import (
	"context"
	"fmt"
	"time"

	"github.com/seanharte/mnemo/internal/domain"
	"github.com/seanharte/mnemo/internal/storage"
)

// Scope names what a selection runs against: a deck, or a goal's active
// skill tree (guided study). Exactly one field is set.
type Scope struct {
	DeckID string
	GoalID string
}

// Selector queries the cards eligible for study.
type Selector struct {
	db *storage.DB
}

// NewSelector creates a selector over the given storage handle.
func NewSelector(db *storage.DB) *Selector {
	return &Selector{db: db}
}

// SelectDueCards returns the cards due at now within the scope, ordered by
// state priority (New < Learning < Relearning < Review) then due ascending.
// An empty result is valid, not an error; archived decks yield nothing.
func (s *Selector) SelectDueCards(ctx context.Context, scope Scope, userID string, now time.Time) ([]domain.Flashcard, error) {
	switch {
	case scope.DeckID != "":
		cards, err := s.db.DueCardsForDeck(ctx, scope.DeckID, userID, now)
		if err != nil {
			return nil, fmt.Errorf("selecting due cards: %w", err)
		}
		return cards, nil
	case scope.GoalID != "":
		cards, err := s.db.DueCardsForGoal(ctx, scope.GoalID, userID, now)
		if err != nil {
			return nil, fmt.Errorf("selecting due cards: %w", err)
		}
		return cards, nil
	}
	return nil, nil
}

// SelectNewCards returns up to limit never-reviewed cards within the scope in
// creation order. Only cards still in state New count against the cap.
func (s *Selector) SelectNewCards(ctx context.Context, scope Scope, userID string, limit int) ([]domain.Flashcard, error) {
	if limit <= 0 {
		return nil, nil
	}
	switch {
	case scope.DeckID != "":
		cards, err := s.db.NewCardsForDeck(ctx, scope.DeckID, userID, limit)
		if err != nil {
			return nil, fmt.Errorf("selecting new cards: %w", err)
		}
		return cards, nil
	case scope.GoalID != "":
		cards, err := s.db.NewCardsForGoal(ctx, scope.GoalID, userID, limit)
		if err != nil {
			return nil, fmt.Errorf("selecting new cards: %w", err)
		}
		return cards, nil
	}
	return nil, nil
}

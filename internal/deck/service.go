// Package deck manages user-curated decks and their capped, idempotent
// card membership index.
package deck

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/seanharte/mnemo/internal/domain"
	"github.com/seanharte/mnemo/internal/storage"
)

// Service exposes deck operations over the storage handle.
type Service struct {
	db *storage.DB
}

// NewService creates a deck service.
func NewService(db *storage.DB) *Service {
	return &Service{db: db}
}

// Create stores a new deck with optional scheduling overrides.
func (s *Service) Create(ctx context.Context, userID, name string, newCardsPerDay, cardsPerSession *int) (*domain.Deck, error) {
	deck := &domain.Deck{
		ID:              uuid.NewString(),
		UserID:          userID,
		Name:            name,
		NewCardsPerDay:  newCardsPerDay,
		CardsPerSession: cardsPerSession,
		CreatedAt:       time.Now(),
	}
	if err := s.db.InsertDeck(ctx, deck); err != nil {
		return nil, fmt.Errorf("creating deck: %w", err)
	}
	return deck, nil
}

// Get retrieves a deck. Returns domain.ErrDeckNotFound when absent.
func (s *Service) Get(ctx context.Context, deckID string) (*domain.Deck, error) {
	deck, err := s.db.FindDeckByID(ctx, deckID)
	if err != nil {
		return nil, err
	}
	if deck == nil {
		return nil, fmt.Errorf("deck %s: %w", deckID, domain.ErrDeckNotFound)
	}
	return deck, nil
}

// Archive marks a deck archived. Archived decks yield no cards to selection.
func (s *Service) Archive(ctx context.Context, deckID string) error {
	if _, err := s.Get(ctx, deckID); err != nil {
		return err
	}
	return s.db.SetDeckArchived(ctx, deckID, true)
}

// AddCards adds cards to a deck and returns how many memberships were
// actually created. Adds are idempotent: cards already in the deck are
// skipped and do not count. If the add would push the deck past
// domain.DeckCardLimit, nothing is added and domain.ErrDeckLimitExceeded
// propagates.
func (s *Service) AddCards(ctx context.Context, deckID string, cardIDs []string) (int, error) {
	if _, err := s.Get(ctx, deckID); err != nil {
		return 0, err
	}
	added, err := s.db.AddDeckCards(ctx, deckID, cardIDs, time.Now())
	if err != nil {
		return 0, err
	}
	slog.Info("added cards to deck", "deck_id", deckID, "requested", len(cardIDs), "added", added)
	return added, nil
}

// RemoveCard deletes one membership row. Removing a non-member is a no-op.
func (s *Service) RemoveCard(ctx context.Context, deckID, cardID string) error {
	if _, err := s.Get(ctx, deckID); err != nil {
		return err
	}
	return s.db.RemoveDeckCard(ctx, deckID, cardID)
}

// CardCount returns the deck's current membership count.
func (s *Service) CardCount(ctx context.Context, deckID string) (int, error) {
	if _, err := s.Get(ctx, deckID); err != nil {
		return 0, err
	}
	return s.db.CountDeckCards(ctx, deckID)
}

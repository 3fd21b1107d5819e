package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/seanharte/mnemo/internal/domain"
)

type deckRow struct {
	ID              string        `db:"id"`
	UserID          string        `db:"user_id"`
	Name            string        `db:"name"`
	NewCardsPerDay  sql.NullInt64 `db:"new_cards_per_day"`
	CardsPerSession sql.NullInt64 `db:"cards_per_session"`
	Archived        bool          `db:"archived"`
	CreatedAt       time.Time     `db:"created_at"`
}

func (r deckRow) toDomain() domain.Deck {
	deck := domain.Deck{
		ID:        r.ID,
		UserID:    r.UserID,
		Name:      r.Name,
		Archived:  r.Archived,
		CreatedAt: r.CreatedAt,
	}
	if r.NewCardsPerDay.Valid {
		v := int(r.NewCardsPerDay.Int64)
		deck.NewCardsPerDay = &v
	}
	if r.CardsPerSession.Valid {
		v := int(r.CardsPerSession.Int64)
		deck.CardsPerSession = &v
	}
	return deck
}

// InsertDeck stores a new deck.
func (db *DB) InsertDeck(ctx context.Context, deck *domain.Deck) error {
	var newPerDay, perSession sql.NullInt64
	if deck.NewCardsPerDay != nil {
		newPerDay = sql.NullInt64{Int64: int64(*deck.NewCardsPerDay), Valid: true}
	}
	if deck.CardsPerSession != nil {
		perSession = sql.NullInt64{Int64: int64(*deck.CardsPerSession), Valid: true}
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO decks (id, user_id, name, new_cards_per_day, cards_per_session, archived, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, deck.ID, deck.UserID, deck.Name, newPerDay, perSession, deck.Archived, deck.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert deck %s: %w", deck.ID, err)
	}
	return nil
}

// FindDeckByID retrieves a deck. Returns (nil, nil) when absent.
func (db *DB) FindDeckByID(ctx context.Context, id string) (*domain.Deck, error) {
	var row deckRow
	err := db.GetContext(ctx, &row, `
		SELECT id, user_id, name, new_cards_per_day, cards_per_session, archived, created_at
		FROM decks WHERE id = ?
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find deck %s: %w", id, err)
	}
	deck := row.toDomain()
	return &deck, nil
}

// SetDeckArchived flips a deck's archived flag.
func (db *DB) SetDeckArchived(ctx context.Context, id string, archived bool) error {
	_, err := db.ExecContext(ctx, `UPDATE decks SET archived = ? WHERE id = ?`, archived, id)
	if err != nil {
		return fmt.Errorf("failed to set archived on deck %s: %w", id, err)
	}
	return nil
}

// CountDeckCards returns the current membership count of a deck.
func (db *DB) CountDeckCards(ctx context.Context, deckID string) (int, error) {
	var count int
	err := db.GetContext(ctx, &count, `SELECT COUNT(*) FROM deck_cards WHERE deck_id = ?`, deckID)
	if err != nil {
		return 0, fmt.Errorf("failed to count cards in deck %s: %w", deckID, err)
	}
	return count, nil
}

// AddDeckCards adds the given cards to a deck, enforcing the membership cap.
// Already-member cards are skipped (idempotent, backed by the primary key).
// If the distinct new members would push the deck past the cap, nothing is
// added and domain.ErrDeckLimitExceeded is returned.
func (db *DB) AddDeckCards(ctx context.Context, deckID string, cardIDs []string, now time.Time) (int, error) {
	if len(cardIDs) == 0 {
		return 0, nil
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin deck add: %w", err)
	}
	defer tx.Rollback()

	var current int
	if err := tx.GetContext(ctx, &current, `SELECT COUNT(*) FROM deck_cards WHERE deck_id = ?`, deckID); err != nil {
		return 0, fmt.Errorf("failed to count cards in deck %s: %w", deckID, err)
	}

	query, args, err := sqlx.In(`SELECT card_id FROM deck_cards WHERE deck_id = ? AND card_id IN (?)`, deckID, cardIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to build membership query: %w", err)
	}
	var existing []string
	if err := tx.SelectContext(ctx, &existing, query, args...); err != nil {
		return 0, fmt.Errorf("failed to check memberships for deck %s: %w", deckID, err)
	}
	member := make(map[string]bool, len(existing))
	for _, id := range existing {
		member[id] = true
	}

	var toAdd []string
	seen := make(map[string]bool, len(cardIDs))
	for _, id := range cardIDs {
		if member[id] || seen[id] {
			continue
		}
		seen[id] = true
		toAdd = append(toAdd, id)
	}

	if current+len(toAdd) > domain.DeckCardLimit {
		return 0, fmt.Errorf("deck %s holds %d cards, adding %d: %w",
			deckID, current, len(toAdd), domain.ErrDeckLimitExceeded)
	}

	added := 0
	for _, id := range toAdd {
		res, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO deck_cards (deck_id, card_id, added_at) VALUES (?, ?, ?)
		`, deckID, id, now)
		if err != nil {
			return 0, fmt.Errorf("failed to add card %s to deck %s: %w", id, deckID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to read rows affected: %w", err)
		}
		added += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit deck add: %w", err)
	}
	return added, nil
}

// RemoveDeckCard deletes one membership row. Removing a non-member is a no-op.
func (db *DB) RemoveDeckCard(ctx context.Context, deckID, cardID string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM deck_cards WHERE deck_id = ? AND card_id = ?`, deckID, cardID)
	if err != nil {
		return fmt.Errorf("failed to remove card %s from deck %s: %w", cardID, deckID, err)
	}
	return nil
}

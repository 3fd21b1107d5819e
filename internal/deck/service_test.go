package deck

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/seanharte/mnemo/internal/domain"
	"github.com/seanharte/mnemo/internal/storage"
)

func newTestDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func insertCards(t *testing.T, db *storage.DB, n int) []string {
	t.Helper()
	return insertCardsFrom(t, db, 0, n)
}

// insertCardsFrom inserts n cards with ids offset from the given start index.
func insertCardsFrom(t *testing.T, db *storage.DB, start, n int) []string {
	t.Helper()
	ctx := context.Background()
	now := time.Now()
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("card-%04d", start+i)
		card := &domain.Flashcard{
			ID:          ids[i],
			UserID:      "u1",
			Front:       "front",
			Back:        "back",
			Fingerprint: ids[i],
			Scheduling:  domain.NewSchedulingState(now),
			CreatedAt:   now,
		}
		if err := db.InsertCard(ctx, card); err != nil {
			t.Fatalf("failed to insert card %d: %v", start+i, err)
		}
	}
	return ids
}

func TestCreateAndGet(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	perDay := 15
	deck, err := svc.Create(ctx, "u1", "Spanish", &perDay, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deck.ID == "" {
		t.Error("deck id not assigned")
	}

	got, err := svc.Get(ctx, deck.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Name != "Spanish" {
		t.Errorf("name = %q, want %q", got.Name, "Spanish")
	}
	if got.NewCardsPerDay == nil || *got.NewCardsPerDay != 15 {
		t.Errorf("newCardsPerDay override = %v, want 15", got.NewCardsPerDay)
	}
	if got.CardsPerSession != nil {
		t.Errorf("cardsPerSession override = %v, want unset", got.CardsPerSession)
	}
}

func TestGetUnknownDeck(t *testing.T) {
	db := newTestDB(t)
	_, err := NewService(db).Get(context.Background(), "missing")
	if !errors.Is(err, domain.ErrDeckNotFound) {
		t.Errorf("got %v, want ErrDeckNotFound", err)
	}
}

func TestAddCardsIdempotent(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	deck, err := svc.Create(ctx, "u1", "d", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ids := insertCards(t, db, 3)

	added, err := svc.AddCards(ctx, deck.ID, ids)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if added != 3 {
		t.Errorf("added = %d, want 3", added)
	}

	// Repeating the same add creates nothing new.
	added, err = svc.AddCards(ctx, deck.ID, ids)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if added != 0 {
		t.Errorf("repeat added = %d, want 0", added)
	}

	// A mixed batch counts only the genuinely new members.
	fresh := insertCardsFrom(t, db, 3, 2)
	added, err = svc.AddCards(ctx, deck.ID, append([]string{ids[0], ids[1]}, fresh...))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if added != 2 {
		t.Errorf("mixed-batch added = %d, want 2", added)
	}

	count, err := svc.CardCount(ctx, deck.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 5 {
		t.Errorf("card count = %d, want 5", count)
	}
}

func TestAddCardsEnforcesLimit(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	deck, err := svc.Create(ctx, "u1", "big", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ids := insertCards(t, db, domain.DeckCardLimit+2)
	added, err := svc.AddCards(ctx, deck.ID, ids[:domain.DeckCardLimit-1])
	if err != nil {
		t.Fatalf("unexpected error filling deck: %v", err)
	}
	if added != domain.DeckCardLimit-1 {
		t.Fatalf("added = %d, want %d", added, domain.DeckCardLimit-1)
	}

	// Overflowing the cap adds nothing, not a partial batch.
	_, err = svc.AddCards(ctx, deck.ID, ids[domain.DeckCardLimit-1:])
	if !errors.Is(err, domain.ErrDeckLimitExceeded) {
		t.Fatalf("got %v, want ErrDeckLimitExceeded", err)
	}
	count, err := svc.CardCount(ctx, deck.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != domain.DeckCardLimit-1 {
		t.Errorf("count after rejected add = %d, want %d", count, domain.DeckCardLimit-1)
	}

	// Filling exactly to the cap is allowed.
	added, err = svc.AddCards(ctx, deck.ID, ids[domain.DeckCardLimit-1:domain.DeckCardLimit])
	if err != nil {
		t.Fatalf("unexpected error topping up to the cap: %v", err)
	}
	if added != 1 {
		t.Errorf("added = %d, want 1", added)
	}

	// A batch that is all existing members still succeeds at the cap.
	added, err = svc.AddCards(ctx, deck.ID, ids[:3])
	if err != nil {
		t.Fatalf("unexpected error re-adding members at the cap: %v", err)
	}
	if added != 0 {
		t.Errorf("added = %d, want 0", added)
	}
}

func TestRemoveCard(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	deck, err := svc.Create(ctx, "u1", "d", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ids := insertCards(t, db, 2)
	if _, err := svc.AddCards(ctx, deck.ID, ids); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.RemoveCard(ctx, deck.ID, ids[0]); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	count, err := svc.CardCount(ctx, deck.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}

	// Removing a non-member is a no-op.
	if err := svc.RemoveCard(ctx, deck.ID, "never-added"); err != nil {
		t.Errorf("unexpected error removing non-member: %v", err)
	}
}

func TestArchive(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	deck, err := svc.Create(ctx, "u1", "d", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.Archive(ctx, deck.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := svc.Get(ctx, deck.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Archived {
		t.Error("deck not marked archived")
	}
}

package selector

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

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

func insertCard(t *testing.T, db *storage.DB, userID string, state domain.CardState, due, createdAt time.Time) string {
	t.Helper()
	card := &domain.Flashcard{
		ID:          uuid.NewString(),
		UserID:      userID,
		Front:       "front",
		Back:        "back",
		Fingerprint: uuid.NewString(),
		Scheduling:  domain.SchedulingState{State: state, Due: due},
		CreatedAt:   createdAt,
	}
	if err := db.InsertCard(context.Background(), card); err != nil {
		t.Fatalf("failed to insert card: %v", err)
	}
	return card.ID
}

func insertDeckWithCards(t *testing.T, db *storage.DB, deckID, userID string, cardIDs []string) {
	t.Helper()
	ctx := context.Background()
	deck := &domain.Deck{ID: deckID, UserID: userID, Name: deckID, CreatedAt: time.Now()}
	if err := db.InsertDeck(ctx, deck); err != nil {
		t.Fatalf("failed to insert deck: %v", err)
	}
	if _, err := db.AddDeckCards(ctx, deckID, cardIDs, time.Now()); err != nil {
		t.Fatalf("failed to add cards to deck: %v", err)
	}
}

func TestSelectDueCardsOrdering(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now()
	base := now.Add(-48 * time.Hour)

	// Insert in scrambled order so the query has to do the sorting.
	ids := []string{
		insertCard(t, db, "u1", domain.StateReview, base.Add(time.Hour), base),
		insertCard(t, db, "u1", domain.StateNew, base.Add(4*time.Hour), base),
		insertCard(t, db, "u1", domain.StateRelearning, base.Add(2*time.Hour), base),
		insertCard(t, db, "u1", domain.StateLearning, base.Add(3*time.Hour), base),
		insertCard(t, db, "u1", domain.StateReview, base, base),
		insertCard(t, db, "u1", domain.StateNew, base.Add(30*time.Minute), base),
	}
	insertDeckWithCards(t, db, "deck1", "u1", ids)

	sel := NewSelector(db)
	cards, err := sel.SelectDueCards(ctx, Scope{DeckID: "deck1"}, "u1", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cards) != 6 {
		t.Fatalf("expected 6 due cards, got %d", len(cards))
	}

	for i := 1; i < len(cards); i++ {
		prev, cur := cards[i-1].Scheduling, cards[i].Scheduling
		if prev.State.Priority() > cur.State.Priority() {
			t.Errorf("position %d: state %s sorted after %s", i, prev.State, cur.State)
		}
		if prev.State.Priority() == cur.State.Priority() && prev.Due.After(cur.Due) {
			t.Errorf("position %d: due %v sorted after %v within equal priority", i, prev.Due, cur.Due)
		}
	}
	if cards[0].Scheduling.State != domain.StateNew {
		t.Errorf("expected a New card first, got %s", cards[0].Scheduling.State)
	}
	if cards[len(cards)-1].Scheduling.State != domain.StateReview {
		t.Errorf("expected a Review card last, got %s", cards[len(cards)-1].Scheduling.State)
	}
}

func TestSelectDueCardsExcludesFuture(t *testing.T) {
	db := newTestDB(t)
	now := time.Now()
	ids := []string{
		insertCard(t, db, "u1", domain.StateReview, now.Add(-time.Hour), now.Add(-time.Hour)),
		insertCard(t, db, "u1", domain.StateReview, now.Add(24*time.Hour), now.Add(-time.Hour)),
	}
	insertDeckWithCards(t, db, "deck1", "u1", ids)

	cards, err := NewSelector(db).SelectDueCards(context.Background(), Scope{DeckID: "deck1"}, "u1", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cards) != 1 {
		t.Fatalf("expected 1 due card, got %d", len(cards))
	}
}

func TestSelectNewCardsCreationOrderAndLimit(t *testing.T) {
	db := newTestDB(t)
	now := time.Now()

	var ids []string
	for i := 0; i < 5; i++ {
		created := now.Add(time.Duration(i) * time.Minute)
		ids = append(ids, insertCard(t, db, "u1", domain.StateNew, now, created))
	}
	// A learning card never counts as new.
	ids = append(ids, insertCard(t, db, "u1", domain.StateLearning, now, now.Add(-time.Hour)))
	insertDeckWithCards(t, db, "deck1", "u1", ids)

	cards, err := NewSelector(db).SelectNewCards(context.Background(), Scope{DeckID: "deck1"}, "u1", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cards) != 3 {
		t.Fatalf("expected 3 new cards, got %d", len(cards))
	}
	for i, card := range cards {
		if card.ID != ids[i] {
			t.Errorf("position %d: got %s, want creation-order %s", i, card.ID, ids[i])
		}
		if card.Scheduling.State != domain.StateNew {
			t.Errorf("position %d: state %s is not New", i, card.Scheduling.State)
		}
	}
}

func TestArchivedDeckYieldsNothing(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now()

	ids := []string{insertCard(t, db, "u1", domain.StateReview, now.Add(-time.Hour), now)}
	insertDeckWithCards(t, db, "deck1", "u1", ids)
	if err := db.SetDeckArchived(ctx, "deck1", true); err != nil {
		t.Fatalf("failed to archive deck: %v", err)
	}

	sel := NewSelector(db)
	due, err := sel.SelectDueCards(ctx, Scope{DeckID: "deck1"}, "u1", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(due) != 0 {
		t.Errorf("archived deck returned %d due cards", len(due))
	}
	fresh, err := sel.SelectNewCards(ctx, Scope{DeckID: "deck1"}, "u1", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fresh) != 0 {
		t.Errorf("archived deck returned %d new cards", len(fresh))
	}
}

func TestGoalScopeSelection(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now()

	tree := &domain.SkillTree{ID: "t1", GoalID: "g1", UserID: "u1", IsActive: true}
	if err := db.InsertTree(ctx, tree); err != nil {
		t.Fatalf("failed to insert tree: %v", err)
	}
	enabled := &domain.SkillNode{ID: "n1", TreeID: "t1", Depth: 0, Path: "001", IsEnabled: true}
	disabled := &domain.SkillNode{ID: "n2", TreeID: "t1", Depth: 0, Path: "002", IsEnabled: false}
	for _, n := range []*domain.SkillNode{enabled, disabled} {
		if err := db.InsertNode(ctx, n); err != nil {
			t.Fatalf("failed to insert node: %v", err)
		}
	}

	onEnabled := insertCard(t, db, "u1", domain.StateReview, now.Add(-time.Hour), now)
	onDisabled := insertCard(t, db, "u1", domain.StateReview, now.Add(-time.Hour), now)
	if err := db.LinkCardToNode(ctx, onEnabled, "n1"); err != nil {
		t.Fatalf("failed to link card: %v", err)
	}
	if err := db.LinkCardToNode(ctx, onDisabled, "n2"); err != nil {
		t.Fatalf("failed to link card: %v", err)
	}

	cards, err := NewSelector(db).SelectDueCards(ctx, Scope{GoalID: "g1"}, "u1", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cards) != 1 {
		t.Fatalf("expected 1 card from the enabled node, got %d", len(cards))
	}
	if cards[0].ID != onEnabled {
		t.Errorf("got card %s, want the one on the enabled node", cards[0].ID)
	}
}

func TestEmptyScopeIsValid(t *testing.T) {
	db := newTestDB(t)
	cards, err := NewSelector(db).SelectDueCards(context.Background(), Scope{}, "u1", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cards) != 0 {
		t.Errorf("expected no cards for an empty scope, got %d", len(cards))
	}
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/seanharte/mnemo/internal/domain"
)

type cardRow struct {
	ID            string         `db:"id"`
	UserID        string         `db:"user_id"`
	Front         string         `db:"front"`
	Back          string         `db:"back"`
	Context       string         `db:"context"`
	Fingerprint   string         `db:"fingerprint"`
	SkillNodeID   sql.NullString `db:"skill_node_id"`
	State         int            `db:"state"`
	Due           time.Time      `db:"due"`
	Stability     float64        `db:"stability"`
	Difficulty    float64        `db:"difficulty"`
	Reps          int            `db:"reps"`
	Lapses        int            `db:"lapses"`
	ElapsedDays   float64        `db:"elapsed_days"`
	ScheduledDays float64        `db:"scheduled_days"`
	LastReview    sql.NullTime   `db:"last_review"`
	CreatedAt     time.Time      `db:"created_at"`
}

func (r cardRow) toDomain() domain.Flashcard {
	card := domain.Flashcard{
		ID:          r.ID,
		UserID:      r.UserID,
		Front:       r.Front,
		Back:        r.Back,
		Context:     r.Context,
		Fingerprint: r.Fingerprint,
		CreatedAt:   r.CreatedAt,
		Scheduling: domain.SchedulingState{
			State:         domain.CardState(r.State),
			Due:           r.Due,
			Stability:     r.Stability,
			Difficulty:    r.Difficulty,
			Reps:          r.Reps,
			Lapses:        r.Lapses,
			ElapsedDays:   r.ElapsedDays,
			ScheduledDays: r.ScheduledDays,
		},
	}
	if r.SkillNodeID.Valid {
		v := r.SkillNodeID.String
		card.SkillNodeID = &v
	}
	if r.LastReview.Valid {
		t := r.LastReview.Time
		card.Scheduling.LastReview = &t
	}
	return card
}

const cardColumns = `id, user_id, front, back, context, fingerprint, skill_node_id,
	state, due, stability, difficulty, reps, lapses, elapsed_days, scheduled_days,
	last_review, created_at`

// Qualified variant for joined queries, where bare column names are ambiguous.
const cardColumnsQualified = `c.id, c.user_id, c.front, c.back, c.context, c.fingerprint,
	c.skill_node_id, c.state, c.due, c.stability, c.difficulty, c.reps, c.lapses,
	c.elapsed_days, c.scheduled_days, c.last_review, c.created_at`

// InsertCard stores a new card with its initial scheduling state.
func (db *DB) InsertCard(ctx context.Context, card *domain.Flashcard) error {
	var nodeID sql.NullString
	if card.SkillNodeID != nil {
		nodeID = sql.NullString{String: *card.SkillNodeID, Valid: true}
	}
	var lastReview sql.NullTime
	if card.Scheduling.LastReview != nil {
		lastReview = sql.NullTime{Time: *card.Scheduling.LastReview, Valid: true}
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO cards (`+cardColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		card.ID, card.UserID, card.Front, card.Back, card.Context, card.Fingerprint, nodeID,
		int(card.Scheduling.State), card.Scheduling.Due, card.Scheduling.Stability,
		card.Scheduling.Difficulty, card.Scheduling.Reps, card.Scheduling.Lapses,
		card.Scheduling.ElapsedDays, card.Scheduling.ScheduledDays, lastReview, card.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert card %s: %w", card.ID, err)
	}
	return nil
}

// FindCardByID retrieves a card. Returns (nil, nil) when absent.
func (db *DB) FindCardByID(ctx context.Context, id string) (*domain.Flashcard, error) {
	var row cardRow
	err := db.GetContext(ctx, &row, `SELECT `+cardColumns+` FROM cards WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find card %s: %w", id, err)
	}
	card := row.toDomain()
	return &card, nil
}

// FindCardByFingerprint retrieves a user's card by content fingerprint.
// Returns (nil, nil) when absent.
func (db *DB) FindCardByFingerprint(ctx context.Context, userID, fingerprint string) (*domain.Flashcard, error) {
	var row cardRow
	err := db.GetContext(ctx, &row, `
		SELECT `+cardColumns+` FROM cards WHERE user_id = ? AND fingerprint = ?
	`, userID, fingerprint)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find card by fingerprint: %w", err)
	}
	card := row.toDomain()
	return &card, nil
}

// UpdateCardScheduling overwrites a card's scheduling state, last writer wins.
func (db *DB) UpdateCardScheduling(ctx context.Context, cardID string, s domain.SchedulingState) error {
	var lastReview sql.NullTime
	if s.LastReview != nil {
		lastReview = sql.NullTime{Time: *s.LastReview, Valid: true}
	}
	_, err := db.ExecContext(ctx, `
		UPDATE cards
		SET state = ?, due = ?, stability = ?, difficulty = ?, reps = ?, lapses = ?,
		    elapsed_days = ?, scheduled_days = ?, last_review = ?
		WHERE id = ?
	`,
		int(s.State), s.Due, s.Stability, s.Difficulty, s.Reps, s.Lapses,
		s.ElapsedDays, s.ScheduledDays, lastReview, cardID,
	)
	if err != nil {
		return fmt.Errorf("failed to update scheduling for card %s: %w", cardID, err)
	}
	return nil
}

// LinkCardToNode attaches a card to a skill node.
func (db *DB) LinkCardToNode(ctx context.Context, cardID, nodeID string) error {
	_, err := db.ExecContext(ctx, `UPDATE cards SET skill_node_id = ? WHERE id = ?`, nodeID, cardID)
	if err != nil {
		return fmt.Errorf("failed to link card %s to node %s: %w", cardID, nodeID, err)
	}
	return nil
}

// CardsForNode retrieves all cards linked to a skill node.
func (db *DB) CardsForNode(ctx context.Context, nodeID string) ([]domain.Flashcard, error) {
	var rows []cardRow
	err := db.SelectContext(ctx, &rows, `
		SELECT `+cardColumns+` FROM cards WHERE skill_node_id = ?
	`, nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cards for node %s: %w", nodeID, err)
	}
	return rowsToCards(rows), nil
}

// statePriorityExpr ranks scheduling states for due ordering:
// New < Learning < Relearning < Review.
const statePriorityExpr = `CASE c.state WHEN 0 THEN 0 WHEN 1 THEN 1 WHEN 3 THEN 2 ELSE 3 END`

// DueCardsForDeck retrieves the deck's due cards ordered by state priority,
// then due ascending. Archived decks yield no rows.
func (db *DB) DueCardsForDeck(ctx context.Context, deckID, userID string, now time.Time) ([]domain.Flashcard, error) {
	var rows []cardRow
	err := db.SelectContext(ctx, &rows, `
		SELECT `+cardColumnsQualified+` FROM cards c
		JOIN deck_cards dc ON dc.card_id = c.id
		JOIN decks d ON d.id = dc.deck_id
		WHERE dc.deck_id = ? AND c.user_id = ? AND d.archived = 0 AND c.due <= ?
		ORDER BY `+statePriorityExpr+`, c.due ASC
	`, deckID, userID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to get due cards for deck %s: %w", deckID, err)
	}
	return rowsToCards(rows), nil
}

// NewCardsForDeck retrieves up to limit never-reviewed cards in creation order.
func (db *DB) NewCardsForDeck(ctx context.Context, deckID, userID string, limit int) ([]domain.Flashcard, error) {
	var rows []cardRow
	err := db.SelectContext(ctx, &rows, `
		SELECT `+cardColumnsQualified+` FROM cards c
		JOIN deck_cards dc ON dc.card_id = c.id
		JOIN decks d ON d.id = dc.deck_id
		WHERE dc.deck_id = ? AND c.user_id = ? AND d.archived = 0 AND c.state = 0
		ORDER BY c.created_at ASC, c.id ASC
		LIMIT ?
	`, deckID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get new cards for deck %s: %w", deckID, err)
	}
	return rowsToCards(rows), nil
}

// DueCardsForGoal retrieves due cards linked under the goal's active skill
// tree, enabled nodes only, with the same ordering as deck scope.
func (db *DB) DueCardsForGoal(ctx context.Context, goalID, userID string, now time.Time) ([]domain.Flashcard, error) {
	var rows []cardRow
	err := db.SelectContext(ctx, &rows, `
		SELECT `+cardColumnsQualified+` FROM cards c
		JOIN skill_nodes n ON n.id = c.skill_node_id
		JOIN skill_trees t ON t.id = n.tree_id
		WHERE t.goal_id = ? AND t.is_active = 1 AND n.is_enabled = 1
		  AND c.user_id = ? AND c.due <= ?
		ORDER BY `+statePriorityExpr+`, c.due ASC
	`, goalID, userID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to get due cards for goal %s: %w", goalID, err)
	}
	return rowsToCards(rows), nil
}

// NewCardsForGoal retrieves up to limit never-reviewed cards under the goal's
// active skill tree in creation order.
func (db *DB) NewCardsForGoal(ctx context.Context, goalID, userID string, limit int) ([]domain.Flashcard, error) {
	var rows []cardRow
	err := db.SelectContext(ctx, &rows, `
		SELECT `+cardColumnsQualified+` FROM cards c
		JOIN skill_nodes n ON n.id = c.skill_node_id
		JOIN skill_trees t ON t.id = n.tree_id
		WHERE t.goal_id = ? AND t.is_active = 1 AND n.is_enabled = 1
		  AND c.user_id = ? AND c.state = 0
		ORDER BY c.created_at ASC, c.id ASC
		LIMIT ?
	`, goalID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get new cards for goal %s: %w", goalID, err)
	}
	return rowsToCards(rows), nil
}

func rowsToCards(rows []cardRow) []domain.Flashcard {
	cards := make([]domain.Flashcard, 0, len(rows))
	for _, r := range rows {
		cards = append(cards, r.toDomain())
	}
	return cards
}

package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/seanharte/mnemo/internal/domain"
)

type reviewLogRow struct {
	ID              string    `db:"id"`
	FlashcardID     string    `db:"flashcard_id"`
	UserID          string    `db:"user_id"`
	Rating          int       `db:"rating"`
	State           int       `db:"state"`
	Due             time.Time `db:"due"`
	Stability       float64   `db:"stability"`
	Difficulty      float64   `db:"difficulty"`
	ElapsedDays     float64   `db:"elapsed_days"`
	LastElapsedDays float64   `db:"last_elapsed_days"`
	ScheduledDays   float64   `db:"scheduled_days"`
	ReviewedAt      time.Time `db:"reviewed_at"`
}

// InsertReviewLog appends one review event. Logs are never updated.
func (db *DB) InsertReviewLog(ctx context.Context, log *domain.ReviewLog) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO review_logs (id, flashcard_id, user_id, rating, state, due, stability,
			difficulty, elapsed_days, last_elapsed_days, scheduled_days, reviewed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		log.ID, log.FlashcardID, log.UserID, int(log.Rating), int(log.State), log.Due,
		log.Stability, log.Difficulty, log.ElapsedDays, log.LastElapsedDays,
		log.ScheduledDays, log.ReviewedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert review log for card %s: %w", log.FlashcardID, err)
	}
	return nil
}

// ReviewLogsForCard retrieves a card's review history, oldest first.
func (db *DB) ReviewLogsForCard(ctx context.Context, cardID string) ([]domain.ReviewLog, error) {
	var rows []reviewLogRow
	err := db.SelectContext(ctx, &rows, `
		SELECT id, flashcard_id, user_id, rating, state, due, stability, difficulty,
			elapsed_days, last_elapsed_days, scheduled_days, reviewed_at
		FROM review_logs WHERE flashcard_id = ?
		ORDER BY reviewed_at ASC
	`, cardID)
	if err != nil {
		return nil, fmt.Errorf("failed to get review logs for card %s: %w", cardID, err)
	}
	logs := make([]domain.ReviewLog, 0, len(rows))
	for _, r := range rows {
		logs = append(logs, domain.ReviewLog{
			ID:              r.ID,
			FlashcardID:     r.FlashcardID,
			UserID:          r.UserID,
			Rating:          domain.Rating(r.Rating),
			State:           domain.CardState(r.State),
			Due:             r.Due,
			Stability:       r.Stability,
			Difficulty:      r.Difficulty,
			ElapsedDays:     r.ElapsedDays,
			LastElapsedDays: r.LastElapsedDays,
			ScheduledDays:   r.ScheduledDays,
			ReviewedAt:      r.ReviewedAt,
		})
	}
	return logs, nil
}

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/seanharte/mnemo/internal/domain"
)

type sessionRow struct {
	ID              string         `db:"id"`
	UserID          string         `db:"user_id"`
	GoalID          string         `db:"goal_id"`
	DeckID          string         `db:"deck_id"`
	Mode            string         `db:"mode"`
	Status          string         `db:"status"`
	CardIDs         string         `db:"card_ids"`
	CurrentIndex    int            `db:"current_index"`
	Responses       string         `db:"responses"`
	StartedAt       time.Time      `db:"started_at"`
	LastActivityAt  time.Time      `db:"last_activity_at"`
	ExpiresAt       time.Time      `db:"expires_at"`
	CompletedAt     sql.NullTime   `db:"completed_at"`
	TimeRemainingMs sql.NullInt64  `db:"time_remaining_ms"`
	Score           sql.NullInt64  `db:"score"`
	IsGuided        bool           `db:"is_guided"`
	CurrentNodeID   sql.NullString `db:"current_node_id"`
}

func (r sessionRow) toDomain() (*domain.StudySession, error) {
	var cardIDs []string
	if err := json.Unmarshal([]byte(r.CardIDs), &cardIDs); err != nil {
		return nil, fmt.Errorf("failed to decode card ids for session %s: %w", r.ID, err)
	}
	var responses []domain.SessionResponse
	if err := json.Unmarshal([]byte(r.Responses), &responses); err != nil {
		return nil, fmt.Errorf("failed to decode responses for session %s: %w", r.ID, err)
	}

	s := &domain.StudySession{
		ID:             r.ID,
		UserID:         r.UserID,
		GoalID:         r.GoalID,
		DeckID:         r.DeckID,
		Mode:           domain.SessionMode(r.Mode),
		Status:         domain.SessionStatus(r.Status),
		CardIDs:        cardIDs,
		CurrentIndex:   r.CurrentIndex,
		Responses:      responses,
		StartedAt:      r.StartedAt,
		LastActivityAt: r.LastActivityAt,
		ExpiresAt:      r.ExpiresAt,
		IsGuided:       r.IsGuided,
	}
	if r.CompletedAt.Valid {
		t := r.CompletedAt.Time
		s.CompletedAt = &t
	}
	if r.TimeRemainingMs.Valid {
		v := int(r.TimeRemainingMs.Int64)
		s.TimeRemainingMs = &v
	}
	if r.Score.Valid {
		v := int(r.Score.Int64)
		s.Score = &v
	}
	if r.CurrentNodeID.Valid {
		v := r.CurrentNodeID.String
		s.CurrentNodeID = &v
	}
	return s, nil
}

const sessionColumns = `id, user_id, goal_id, deck_id, mode, status, card_ids, current_index,
	responses, started_at, last_activity_at, expires_at, completed_at, time_remaining_ms,
	score, is_guided, current_node_id`

// InsertSessionAbandoningConflicts abandons any other active session holding
// the same (user, goal) slot and inserts the new session, as one transaction.
// It returns the number of sessions abandoned by conflict resolution.
func (db *DB) InsertSessionAbandoningConflicts(ctx context.Context, s *domain.StudySession) (int, error) {
	cardIDs, err := json.Marshal(s.CardIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to encode card ids: %w", err)
	}
	responses, err := json.Marshal(s.Responses)
	if err != nil {
		return 0, fmt.Errorf("failed to encode responses: %w", err)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin session insert: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE sessions SET status = ? WHERE user_id = ? AND goal_id = ? AND status = ?
	`, string(domain.SessionAbandoned), s.UserID, s.GoalID, string(domain.SessionActive))
	if err != nil {
		return 0, fmt.Errorf("failed to abandon conflicting sessions: %w", err)
	}
	abandoned, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}

	var timeRemaining, score sql.NullInt64
	if s.TimeRemainingMs != nil {
		timeRemaining = sql.NullInt64{Int64: int64(*s.TimeRemainingMs), Valid: true}
	}
	if s.Score != nil {
		score = sql.NullInt64{Int64: int64(*s.Score), Valid: true}
	}
	var currentNode sql.NullString
	if s.CurrentNodeID != nil {
		currentNode = sql.NullString{String: *s.CurrentNodeID, Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?, ?, ?, ?)
	`,
		s.ID, s.UserID, s.GoalID, s.DeckID, string(s.Mode), string(s.Status),
		string(cardIDs), s.CurrentIndex, string(responses),
		s.StartedAt, s.LastActivityAt, s.ExpiresAt,
		timeRemaining, score, s.IsGuided, currentNode,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert session %s: %w", s.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit session insert: %w", err)
	}
	return int(abandoned), nil
}

// FindSessionByID retrieves a session. Returns (nil, nil) when absent.
func (db *DB) FindSessionByID(ctx context.Context, id string) (*domain.StudySession, error) {
	var row sessionRow
	err := db.GetContext(ctx, &row, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find session %s: %w", id, err)
	}
	return row.toDomain()
}

// FindActiveSession retrieves the active session for a (user, goal) slot.
// Returns (nil, nil) when the slot is free. Expiry is the caller's concern.
func (db *DB) FindActiveSession(ctx context.Context, userID, goalID string) (*domain.StudySession, error) {
	var row sessionRow
	err := db.GetContext(ctx, &row, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE user_id = ? AND goal_id = ? AND status = ?
	`, userID, goalID, string(domain.SessionActive))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find active session for user %s: %w", userID, err)
	}
	return row.toDomain()
}

// UpdateSessionProgress persists the mutable progress fields of a session.
// The card plan is immutable and deliberately not written here.
func (db *DB) UpdateSessionProgress(ctx context.Context, s *domain.StudySession) error {
	responses, err := json.Marshal(s.Responses)
	if err != nil {
		return fmt.Errorf("failed to encode responses: %w", err)
	}
	var timeRemaining, score sql.NullInt64
	if s.TimeRemainingMs != nil {
		timeRemaining = sql.NullInt64{Int64: int64(*s.TimeRemainingMs), Valid: true}
	}
	if s.Score != nil {
		score = sql.NullInt64{Int64: int64(*s.Score), Valid: true}
	}
	var currentNode sql.NullString
	if s.CurrentNodeID != nil {
		currentNode = sql.NullString{String: *s.CurrentNodeID, Valid: true}
	}
	_, err = db.ExecContext(ctx, `
		UPDATE sessions
		SET current_index = ?, responses = ?, last_activity_at = ?,
		    time_remaining_ms = ?, score = ?, current_node_id = ?
		WHERE id = ?
	`, s.CurrentIndex, string(responses), s.LastActivityAt, timeRemaining, score, currentNode, s.ID)
	if err != nil {
		return fmt.Errorf("failed to update progress for session %s: %w", s.ID, err)
	}
	return nil
}

// MarkSessionStatus transitions a session to the given status. A non-nil
// completedAt is recorded alongside (completion only).
func (db *DB) MarkSessionStatus(ctx context.Context, id string, status domain.SessionStatus, completedAt *time.Time) error {
	var done sql.NullTime
	if completedAt != nil {
		done = sql.NullTime{Time: *completedAt, Valid: true}
	}
	_, err := db.ExecContext(ctx, `
		UPDATE sessions SET status = ?, completed_at = ? WHERE id = ?
	`, string(status), done, id)
	if err != nil {
		return fmt.Errorf("failed to mark session %s as %s: %w", id, status, err)
	}
	return nil
}

// AbandonExpiredSessions flips every active session whose TTL has passed.
// The boundary matches StudySession.Expired: a session is expired at the
// exact instant of expires_at. The conditional WHERE makes repeated or
// concurrent sweeps safe.
func (db *DB) AbandonExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	res, err := db.ExecContext(ctx, `
		UPDATE sessions SET status = ? WHERE status = ? AND expires_at <= ?
	`, string(domain.SessionAbandoned), string(domain.SessionActive), now)
	if err != nil {
		return 0, fmt.Errorf("failed to abandon expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return int(n), nil
}

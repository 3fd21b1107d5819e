// Package session owns the study-session state machine: creation with
// conflict resolution, progress recording, completion, abandonment, and
// TTL-based expiry.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/seanharte/mnemo/internal/domain"
	"github.com/seanharte/mnemo/internal/storage"
)

// Manager drives study sessions through active → completed/abandoned.
type Manager struct {
	db  *storage.DB
	now func() time.Time
}

// NewManager creates a session manager over the given storage handle.
func NewManager(db *storage.DB) *Manager {
	return &Manager{db: db, now: time.Now}
}

// CreateParams describes a session to create. Either DeckID or GoalID is set;
// GoalID doubles as the conflict slot key (empty for free deck study).
type CreateParams struct {
	UserID        string
	GoalID        string
	DeckID        string
	Mode          domain.SessionMode
	CardIDs       []string
	IsGuided      bool
	CurrentNodeID *string
}

// Create starts a new active session. Any other active session for the same
// (user, goal) slot is abandoned atomically with the insert; the count of
// abandoned conflicts is returned alongside the new session.
func (m *Manager) Create(ctx context.Context, p CreateParams) (*domain.StudySession, int, error) {
	if !p.Mode.IsValid() {
		return nil, 0, fmt.Errorf("creating session: unknown mode %q", p.Mode)
	}

	now := m.now()
	s := &domain.StudySession{
		ID:             uuid.NewString(),
		UserID:         p.UserID,
		GoalID:         p.GoalID,
		DeckID:         p.DeckID,
		Mode:           p.Mode,
		Status:         domain.SessionActive,
		CardIDs:        p.CardIDs,
		Responses:      []domain.SessionResponse{},
		StartedAt:      now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(p.Mode.TTL()),
		IsGuided:       p.IsGuided,
		CurrentNodeID:  p.CurrentNodeID,
	}
	if p.Mode == domain.ModeTimed {
		remaining := domain.TimedSessionCountdownMs
		score := 0
		s.TimeRemainingMs = &remaining
		s.Score = &score
	}

	abandoned, err := m.db.InsertSessionAbandoningConflicts(ctx, s)
	if err != nil {
		return nil, 0, fmt.Errorf("creating session: %w", err)
	}
	if abandoned > 0 {
		slog.Info("abandoned conflicting sessions",
			"user_id", p.UserID, "goal_id", p.GoalID, "count", abandoned)
	}
	return s, abandoned, nil
}

// GetActiveSession returns the user's active session for a goal slot, or
// (nil, nil) when the slot is free. A session past its TTL is transitioned to
// abandoned and never returned.
func (m *Manager) GetActiveSession(ctx context.Context, userID, goalID string) (*domain.StudySession, error) {
	s, err := m.db.FindActiveSession(ctx, userID, goalID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, nil
	}
	if s.Expired(m.now()) {
		if err := m.db.MarkSessionStatus(ctx, s.ID, domain.SessionAbandoned, nil); err != nil {
			return nil, fmt.Errorf("expiring session %s: %w", s.ID, err)
		}
		return nil, nil
	}
	return s, nil
}

// GetSessionByID returns a session by id, applying lazy expiry first: an
// active session past its TTL is persisted as abandoned before returning.
// Returns domain.ErrSessionNotFound when absent.
func (m *Manager) GetSessionByID(ctx context.Context, id string) (*domain.StudySession, error) {
	s, err := m.db.FindSessionByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
	}
	if s.Status == domain.SessionActive && s.Expired(m.now()) {
		if err := m.db.MarkSessionStatus(ctx, s.ID, domain.SessionAbandoned, nil); err != nil {
			return nil, fmt.Errorf("expiring session %s: %w", s.ID, err)
		}
		s.Status = domain.SessionAbandoned
	}
	return s, nil
}

// AddResponse appends a response to an active session, advancing its cursor
// and, in timed mode, its countdown and score.
//
// A missing, expired, or already-terminal session makes this a logged no-op:
// the durable record of the rating is the review log written by the
// scheduling step, not the session's response list.
func (m *Manager) AddResponse(ctx context.Context, sessionID string, resp domain.SessionResponse) error {
	s, err := m.db.FindSessionByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if s == nil {
		slog.Warn("response for unknown session dropped", "session_id", sessionID)
		return nil
	}
	now := m.now()
	if s.Status == domain.SessionActive && s.Expired(now) {
		if err := m.db.MarkSessionStatus(ctx, s.ID, domain.SessionAbandoned, nil); err != nil {
			return fmt.Errorf("expiring session %s: %w", s.ID, err)
		}
		s.Status = domain.SessionAbandoned
	}
	if s.Status != domain.SessionActive {
		slog.Warn("response for terminal session dropped",
			"session_id", sessionID, "status", string(s.Status))
		return nil
	}

	s.Responses = append(s.Responses, resp)
	s.CurrentIndex = len(s.Responses)
	s.LastActivityAt = now

	if s.Mode == domain.ModeTimed {
		if s.TimeRemainingMs != nil {
			remaining := *s.TimeRemainingMs - resp.TimeMs
			if remaining < 0 {
				remaining = 0
			}
			s.TimeRemainingMs = &remaining
		}
		if s.Score != nil && resp.Rating != domain.Again {
			score := *s.Score + 1
			s.Score = &score
		}
	}

	if err := m.db.UpdateSessionProgress(ctx, s); err != nil {
		return fmt.Errorf("recording response on session %s: %w", sessionID, err)
	}
	return nil
}

// AdvanceNode moves a guided session's cursor to the given skill node.
// Lazy expiry applies first: an active session past its TTL is persisted as
// abandoned and the advance is rejected.
func (m *Manager) AdvanceNode(ctx context.Context, sessionID, nodeID string) error {
	s, err := m.GetSessionByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if s.Status != domain.SessionActive {
		return fmt.Errorf("session %s: %w", sessionID, domain.ErrSessionNotActive)
	}
	s.CurrentNodeID = &nodeID
	s.LastActivityAt = m.now()
	if err := m.db.UpdateSessionProgress(ctx, s); err != nil {
		return fmt.Errorf("advancing node on session %s: %w", sessionID, err)
	}
	return nil
}

// Complete transitions an active session to completed. Completing early,
// before the card plan is exhausted, is allowed.
func (m *Manager) Complete(ctx context.Context, id string) (*domain.StudySession, error) {
	s, err := m.GetSessionByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Status != domain.SessionActive {
		return nil, fmt.Errorf("completing session %s in status %s: %w", id, s.Status, domain.ErrSessionNotActive)
	}
	now := m.now()
	if err := m.db.MarkSessionStatus(ctx, id, domain.SessionCompleted, &now); err != nil {
		return nil, fmt.Errorf("completing session %s: %w", id, err)
	}
	s.Status = domain.SessionCompleted
	s.CompletedAt = &now
	return s, nil
}

// Abandon transitions a session to abandoned. Abandoning a session that is
// already abandoned is a no-op; a completed session cannot be abandoned.
func (m *Manager) Abandon(ctx context.Context, id string) error {
	s, err := m.GetSessionByID(ctx, id)
	if err != nil {
		return err
	}
	switch s.Status {
	case domain.SessionAbandoned:
		return nil
	case domain.SessionCompleted:
		return fmt.Errorf("abandoning completed session %s: %w", id, domain.ErrSessionNotActive)
	}
	if err := m.db.MarkSessionStatus(ctx, id, domain.SessionAbandoned, nil); err != nil {
		return fmt.Errorf("abandoning session %s: %w", id, err)
	}
	return nil
}

// CleanupExpiredSessions abandons every active session past its TTL. The
// sweep is idempotent and safe under repeated or concurrent invocation; it is
// invoked explicitly, typically on a schedule set up by the caller.
func (m *Manager) CleanupExpiredSessions(ctx context.Context) (int, error) {
	n, err := m.db.AbandonExpiredSessions(ctx, m.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		slog.Info("swept expired sessions", "count", n)
	}
	return n, nil
}

package session

import (
	"context"
	"errors"
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

func newTestManager(t *testing.T) (*Manager, *storage.DB) {
	t.Helper()
	db := newTestDB(t)
	return NewManager(db), db
}

func createSession(t *testing.T, m *Manager, p CreateParams) *domain.StudySession {
	t.Helper()
	s, _, err := m.Create(context.Background(), p)
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	return s
}

func TestCreateRejectsUnknownMode(t *testing.T) {
	m, _ := newTestManager(t)
	_, _, err := m.Create(context.Background(), CreateParams{UserID: "u1", Mode: "cram"})
	if err == nil {
		t.Fatal("expected an error for an unknown mode")
	}
}

func TestCreateAbandonsConflictingSession(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	first := createSession(t, m, CreateParams{UserID: "u1", GoalID: "g1", Mode: domain.ModeFlashcard})

	second, abandoned, err := m.Create(ctx, CreateParams{UserID: "u1", GoalID: "g1", Mode: domain.ModeFlashcard})
	if err != nil {
		t.Fatalf("failed to create second session: %v", err)
	}
	if abandoned != 1 {
		t.Errorf("expected 1 abandoned conflict, got %d", abandoned)
	}

	got, err := m.GetSessionByID(ctx, first.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != domain.SessionAbandoned {
		t.Errorf("first session status %s, want abandoned", got.Status)
	}

	active, err := m.GetActiveSession(ctx, "u1", "g1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if active == nil || active.ID != second.ID {
		t.Errorf("active session is not the newly created one")
	}
}

func TestCreateDistinctSlotsDoNotConflict(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	createSession(t, m, CreateParams{UserID: "u1", GoalID: "g1", Mode: domain.ModeFlashcard})
	_, abandoned, err := m.Create(ctx, CreateParams{UserID: "u1", GoalID: "g2", Mode: domain.ModeFlashcard})
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	if abandoned != 0 {
		t.Errorf("expected no abandoned conflicts across goals, got %d", abandoned)
	}
}

func TestModeExpiry(t *testing.T) {
	m, _ := newTestManager(t)
	start := time.Now()
	m.now = func() time.Time { return start }

	timed := createSession(t, m, CreateParams{UserID: "u1", Mode: domain.ModeTimed})
	if want := start.Add(30 * time.Minute); !timed.ExpiresAt.Equal(want) {
		t.Errorf("timed session expires at %v, want %v", timed.ExpiresAt, want)
	}
	if timed.TimeRemainingMs == nil || *timed.TimeRemainingMs != domain.TimedSessionCountdownMs {
		t.Errorf("timed session countdown not initialised: %v", timed.TimeRemainingMs)
	}
	if timed.Score == nil || *timed.Score != 0 {
		t.Errorf("timed session score not initialised: %v", timed.Score)
	}

	flash := createSession(t, m, CreateParams{UserID: "u2", Mode: domain.ModeFlashcard})
	if want := start.Add(24 * time.Hour); !flash.ExpiresAt.Equal(want) {
		t.Errorf("flashcard session expires at %v, want %v", flash.ExpiresAt, want)
	}
	if flash.TimeRemainingMs != nil || flash.Score != nil {
		t.Error("non-timed session should carry no countdown or score")
	}
}

func TestLazyExpiry(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	start := time.Now()
	m.now = func() time.Time { return start }

	s := createSession(t, m, CreateParams{UserID: "u1", GoalID: "g1", Mode: domain.ModeFlashcard})

	m.now = func() time.Time { return start.Add(25 * time.Hour) }

	active, err := m.GetActiveSession(ctx, "u1", "g1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if active != nil {
		t.Error("expired session returned as active")
	}

	got, err := m.GetSessionByID(ctx, s.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != domain.SessionAbandoned {
		t.Errorf("expired session status %s, want abandoned", got.Status)
	}
}

func TestGetSessionByIDNotFound(t *testing.T) {
	m, _ := newTestManager(t)
	_, err := m.GetSessionByID(context.Background(), "nope")
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("got %v, want ErrSessionNotFound", err)
	}
}

func TestAddResponseAdvancesCursor(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	s := createSession(t, m, CreateParams{
		UserID: "u1", Mode: domain.ModeFlashcard,
		CardIDs: []string{"c1", "c2", "c3"},
	})

	for i, rating := range []domain.Rating{domain.Good, domain.Again} {
		resp := domain.SessionResponse{CardID: s.CardIDs[i], Rating: rating, TimeMs: 4000}
		if err := m.AddResponse(ctx, s.ID, resp); err != nil {
			t.Fatalf("failed to add response %d: %v", i, err)
		}
	}

	got, err := m.GetSessionByID(ctx, s.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Responses) != 2 {
		t.Fatalf("expected 2 responses, got %d", len(got.Responses))
	}
	if got.CurrentIndex != len(got.Responses) {
		t.Errorf("currentIndex %d out of lockstep with %d responses", got.CurrentIndex, len(got.Responses))
	}
	if got.Responses[1].Rating != domain.Again || got.Responses[1].CardID != "c2" {
		t.Errorf("second response not persisted faithfully: %+v", got.Responses[1])
	}
}

func TestAddResponseTimedMode(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	s := createSession(t, m, CreateParams{
		UserID: "u1", Mode: domain.ModeTimed, CardIDs: []string{"c1", "c2", "c3"},
	})

	if err := m.AddResponse(ctx, s.ID, domain.SessionResponse{CardID: "c1", Rating: domain.Good, TimeMs: 10000}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.AddResponse(ctx, s.ID, domain.SessionResponse{CardID: "c2", Rating: domain.Again, TimeMs: 5000}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := m.GetSessionByID(ctx, s.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.TimeRemainingMs == nil || *got.TimeRemainingMs != domain.TimedSessionCountdownMs-15000 {
		t.Errorf("countdown = %v, want %d", got.TimeRemainingMs, domain.TimedSessionCountdownMs-15000)
	}
	if got.Score == nil || *got.Score != 1 {
		t.Errorf("score = %v, want 1 (Again does not score)", got.Score)
	}

	// Countdown floors at zero rather than going negative.
	if err := m.AddResponse(ctx, s.ID, domain.SessionResponse{CardID: "c3", Rating: domain.Good, TimeMs: domain.TimedSessionCountdownMs}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err = m.GetSessionByID(ctx, s.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.TimeRemainingMs == nil || *got.TimeRemainingMs != 0 {
		t.Errorf("countdown = %v, want floor at 0", got.TimeRemainingMs)
	}
}

func TestAddResponseNoOpCases(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	resp := domain.SessionResponse{CardID: "c1", Rating: domain.Good, TimeMs: 1000}

	t.Run("unknown session", func(t *testing.T) {
		if err := m.AddResponse(ctx, "missing", resp); err != nil {
			t.Errorf("expected silent drop, got %v", err)
		}
	})

	t.Run("completed session", func(t *testing.T) {
		s := createSession(t, m, CreateParams{UserID: "u1", Mode: domain.ModeFlashcard, CardIDs: []string{"c1"}})
		if _, err := m.Complete(ctx, s.ID); err != nil {
			t.Fatalf("failed to complete: %v", err)
		}
		if err := m.AddResponse(ctx, s.ID, resp); err != nil {
			t.Errorf("expected silent drop, got %v", err)
		}
		got, err := m.GetSessionByID(ctx, s.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got.Responses) != 0 {
			t.Errorf("response recorded on a completed session")
		}
	})

	t.Run("expired session", func(t *testing.T) {
		start := time.Now()
		m.now = func() time.Time { return start }
		s := createSession(t, m, CreateParams{UserID: "u2", Mode: domain.ModeFlashcard, CardIDs: []string{"c1"}})
		m.now = func() time.Time { return start.Add(25 * time.Hour) }
		if err := m.AddResponse(ctx, s.ID, resp); err != nil {
			t.Errorf("expected silent drop, got %v", err)
		}
		got, err := m.GetSessionByID(ctx, s.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Status != domain.SessionAbandoned {
			t.Errorf("status %s, want abandoned after expiry", got.Status)
		}
		if len(got.Responses) != 0 {
			t.Errorf("response recorded on an expired session")
		}
	})
}

func TestAdvanceNode(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	s := createSession(t, m, CreateParams{UserID: "u1", GoalID: "g1", Mode: domain.ModeNode, IsGuided: true})
	if err := m.AdvanceNode(ctx, s.ID, "n2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := m.GetSessionByID(ctx, s.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.CurrentNodeID == nil || *got.CurrentNodeID != "n2" {
		t.Errorf("currentNodeID = %v, want n2", got.CurrentNodeID)
	}

	if err := m.Abandon(ctx, s.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.AdvanceNode(ctx, s.ID, "n3"); !errors.Is(err, domain.ErrSessionNotActive) {
		t.Errorf("got %v, want ErrSessionNotActive on a terminal session", err)
	}
}

func TestAdvanceNodeExpiredSession(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	start := time.Now()
	m.now = func() time.Time { return start }

	s := createSession(t, m, CreateParams{UserID: "u1", GoalID: "g1", Mode: domain.ModeNode, IsGuided: true})

	m.now = func() time.Time { return start.Add(25 * time.Hour) }

	if err := m.AdvanceNode(ctx, s.ID, "n2"); !errors.Is(err, domain.ErrSessionNotActive) {
		t.Fatalf("got %v, want ErrSessionNotActive on an expired session", err)
	}
	got, err := m.GetSessionByID(ctx, s.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != domain.SessionAbandoned {
		t.Errorf("status %s, want abandoned after the rejected advance", got.Status)
	}
	if got.CurrentNodeID != nil {
		t.Errorf("currentNodeID = %v, want untouched nil", got.CurrentNodeID)
	}
}

func TestCompleteAndAbandon(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	t.Run("complete sets timestamp", func(t *testing.T) {
		s := createSession(t, m, CreateParams{UserID: "u1", Mode: domain.ModeFlashcard, CardIDs: []string{"c1", "c2"}})
		done, err := m.Complete(ctx, s.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if done.Status != domain.SessionCompleted || done.CompletedAt == nil {
			t.Errorf("completed session missing status or timestamp: %+v", done)
		}
	})

	t.Run("complete twice fails", func(t *testing.T) {
		s := createSession(t, m, CreateParams{UserID: "u2", Mode: domain.ModeFlashcard})
		if _, err := m.Complete(ctx, s.ID); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := m.Complete(ctx, s.ID); !errors.Is(err, domain.ErrSessionNotActive) {
			t.Errorf("got %v, want ErrSessionNotActive", err)
		}
	})

	t.Run("abandon is idempotent", func(t *testing.T) {
		s := createSession(t, m, CreateParams{UserID: "u3", Mode: domain.ModeFlashcard})
		if err := m.Abandon(ctx, s.ID); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := m.Abandon(ctx, s.ID); err != nil {
			t.Errorf("second abandon should be a no-op, got %v", err)
		}
	})

	t.Run("abandon after complete fails", func(t *testing.T) {
		s := createSession(t, m, CreateParams{UserID: "u4", Mode: domain.ModeFlashcard})
		if _, err := m.Complete(ctx, s.ID); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := m.Abandon(ctx, s.ID); !errors.Is(err, domain.ErrSessionNotActive) {
			t.Errorf("got %v, want ErrSessionNotActive", err)
		}
	})
}

func TestCleanupExpiredSessions(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	start := time.Now()
	m.now = func() time.Time { return start }

	createSession(t, m, CreateParams{UserID: "u1", GoalID: "g1", Mode: domain.ModeTimed})
	survivor := createSession(t, m, CreateParams{UserID: "u2", GoalID: "g2", Mode: domain.ModeFlashcard})

	// Past the timed TTL but within the flashcard one.
	m.now = func() time.Time { return start.Add(time.Hour) }

	n, err := m.CleanupExpiredSessions(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("swept %d sessions, want 1", n)
	}

	again, err := m.CleanupExpiredSessions(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again != 0 {
		t.Errorf("second sweep abandoned %d sessions, want 0", again)
	}

	got, err := m.GetSessionByID(ctx, survivor.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != domain.SessionActive {
		t.Errorf("unexpired session status %s, want active", got.Status)
	}
}

func TestCleanupSweepsAtExactExpiry(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	start := time.Now()
	m.now = func() time.Time { return start }

	s := createSession(t, m, CreateParams{UserID: "u1", GoalID: "g1", Mode: domain.ModeTimed})

	// A session is expired at the exact instant of expires_at, and the
	// sweep agrees with the lazy check.
	m.now = func() time.Time { return start.Add(domain.ModeTimed.TTL()) }

	n, err := m.CleanupExpiredSessions(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("swept %d sessions, want 1 at the expiry instant", n)
	}

	got, err := m.GetSessionByID(ctx, s.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != domain.SessionAbandoned {
		t.Errorf("status %s, want abandoned", got.Status)
	}
}

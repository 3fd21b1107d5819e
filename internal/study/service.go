// Package study orchestrates the engine: it composes settings resolution and
// card selection into a session plan, and routes each rating through the
// scheduling algorithm, the review log, and the session's progress record.
package study

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/seanharte/mnemo/internal/domain"
	"github.com/seanharte/mnemo/internal/mastery"
	"github.com/seanharte/mnemo/internal/selector"
	"github.com/seanharte/mnemo/internal/session"
	"github.com/seanharte/mnemo/internal/settings"
	"github.com/seanharte/mnemo/internal/storage"
)

// Algorithm is the pluggable spaced-repetition scheduler. Implementations
// must keep transitions within the four card states, schedule Again at most
// one day out, strictly increase Due for non-Again ratings, and increment
// Reps by exactly one per call.
type Algorithm interface {
	Apply(state domain.SchedulingState, rating domain.Rating, now time.Time) (domain.SchedulingState, domain.ReviewLog)
}

// Service wires the engine components together behind one request-scoped API.
type Service struct {
	db        *storage.DB
	algorithm Algorithm
	resolver  *settings.Resolver
	selector  *selector.Selector
	sessions  *session.Manager
	mastery   *mastery.Aggregator
}

// NewService assembles the study service from its collaborators.
func NewService(db *storage.DB, algorithm Algorithm, resolver *settings.Resolver, sel *selector.Selector, sessions *session.Manager, aggregator *mastery.Aggregator) *Service {
	return &Service{
		db:        db,
		algorithm: algorithm,
		resolver:  resolver,
		selector:  sel,
		sessions:  sessions,
		mastery:   aggregator,
	}
}

// StartDeckStudy resolves the deck's effective settings, builds an ordered
// card plan, and creates the session. The plan takes due cards first (state
// priority then due), admits at most NewCardsPerDay cards still in state New,
// and truncates at CardsPerSession.
func (s *Service) StartDeckStudy(ctx context.Context, userID, deckID string, mode domain.SessionMode, overrides *domain.SessionOverrides) (*domain.StudySession, error) {
	resolved, err := s.resolver.Resolve(ctx, deckID, overrides)
	if err != nil {
		return nil, err
	}

	due, err := s.selector.SelectDueCards(ctx, selector.Scope{DeckID: deckID}, userID, time.Now())
	if err != nil {
		return nil, err
	}

	plan := buildPlan(due, resolved)

	created, _, err := s.sessions.Create(ctx, session.CreateParams{
		UserID:  userID,
		DeckID:  deckID,
		Mode:    mode,
		CardIDs: plan,
	})
	if err != nil {
		return nil, err
	}
	slog.Info("started deck study",
		"session_id", created.ID, "deck_id", deckID, "cards", len(plan),
		"settings_source", string(resolved.Source))
	return created, nil
}

// StartGuidedStudy builds a session over the goal's active skill tree,
// walking enabled nodes shallowest-first. The plan is bounded by the global
// cards-per-session cap (goal scope has no deck tier); the session starts
// positioned on the first enabled node that has cards in the plan.
func (s *Service) StartGuidedStudy(ctx context.Context, userID, goalID string, mode domain.SessionMode) (*domain.StudySession, error) {
	due, err := s.selector.SelectDueCards(ctx, selector.Scope{GoalID: goalID}, userID, time.Now())
	if err != nil {
		return nil, err
	}

	limit := s.resolver.GlobalCardsPerSession()
	plan := make([]string, 0, len(due))
	for _, card := range due {
		plan = append(plan, card.ID)
		if len(plan) >= limit {
			break
		}
	}

	var currentNode *string
	if len(due) > 0 && due[0].SkillNodeID != nil {
		currentNode = due[0].SkillNodeID
	}

	created, _, err := s.sessions.Create(ctx, session.CreateParams{
		UserID:        userID,
		GoalID:        goalID,
		Mode:          mode,
		CardIDs:       plan,
		IsGuided:      true,
		CurrentNodeID: currentNode,
	})
	if err != nil {
		return nil, err
	}
	slog.Info("started guided study",
		"session_id", created.ID, "goal_id", goalID, "cards", len(plan))
	return created, nil
}

// buildPlan orders the session plan and applies the resolved limits. Due
// ordering is preserved from selection; only cards still in state New count
// against the new-card cap.
func buildPlan(due []domain.Flashcard, resolved domain.EffectiveSchedulingSettings) []string {
	plan := make([]string, 0, len(due))
	newCount := 0
	for _, card := range due {
		if card.Scheduling.State == domain.StateNew {
			if newCount >= resolved.NewCardsPerDay {
				continue
			}
			newCount++
		}
		plan = append(plan, card.ID)
		if len(plan) >= resolved.CardsPerSession {
			break
		}
	}
	return plan
}

// RecordReview routes one rating through the scheduling algorithm. The card's
// scheduling state is replaced (last writer wins), the review log row is
// appended, and only then is the session's progress updated best-effort.
// Returns domain.ErrCardNotFound when the card id does not resolve.
func (s *Service) RecordReview(ctx context.Context, userID, sessionID, cardID string, rating domain.Rating, timeMs int) (*domain.ReviewLog, error) {
	if !rating.IsValid() {
		return nil, fmt.Errorf("recording review: %w", domain.ErrInvalidRating)
	}

	card, err := s.db.FindCardByID(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if card == nil {
		return nil, fmt.Errorf("recording review for card %s: %w", cardID, domain.ErrCardNotFound)
	}

	now := time.Now()
	next, log := s.algorithm.Apply(card.Scheduling, rating, now)

	if err := s.db.UpdateCardScheduling(ctx, cardID, next); err != nil {
		return nil, err
	}

	log.ID = uuid.NewString()
	log.FlashcardID = cardID
	log.UserID = userID
	if err := s.db.InsertReviewLog(ctx, &log); err != nil {
		return nil, err
	}

	// Session progress is advisory; the review above is already durable.
	if sessionID != "" {
		resp := domain.SessionResponse{CardID: cardID, Rating: rating, TimeMs: timeMs}
		if err := s.sessions.AddResponse(ctx, sessionID, resp); err != nil {
			slog.Warn("failed to record session response",
				"session_id", sessionID, "card_id", cardID, "error", err)
		}
	}

	return &log, nil
}

// ReviewHistory returns a card's review log, oldest first.
// Returns domain.ErrCardNotFound when the card id does not resolve.
func (s *Service) ReviewHistory(ctx context.Context, cardID string) ([]domain.ReviewLog, error) {
	card, err := s.db.FindCardByID(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if card == nil {
		return nil, fmt.Errorf("review history for card %s: %w", cardID, domain.ErrCardNotFound)
	}
	return s.db.ReviewLogsForCard(ctx, cardID)
}

// CompleteSession finishes a session and, for goal-scoped sessions,
// recomputes mastery across the goal's active tree.
func (s *Service) CompleteSession(ctx context.Context, sessionID string) (*domain.StudySession, error) {
	finished, err := s.sessions.Complete(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if finished.GoalID != "" {
		tree, err := s.db.ActiveTreeForGoal(ctx, finished.GoalID)
		if err != nil {
			return nil, err
		}
		if tree != nil {
			if err := s.mastery.RecalcTree(ctx, tree.ID); err != nil {
				return nil, fmt.Errorf("recalculating mastery after session %s: %w", sessionID, err)
			}
		}
	}
	return finished, nil
}

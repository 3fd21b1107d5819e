// Package web exposes the engine operations as a thin JSON API.
package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/seanharte/mnemo/internal/deck"
	"github.com/seanharte/mnemo/internal/domain"
	"github.com/seanharte/mnemo/internal/importer"
	"github.com/seanharte/mnemo/internal/mastery"
	"github.com/seanharte/mnemo/internal/selector"
	"github.com/seanharte/mnemo/internal/session"
	"github.com/seanharte/mnemo/internal/settings"
	"github.com/seanharte/mnemo/internal/study"
)

// Server holds the dependencies for the HTTP server.
type Server struct {
	router   *http.ServeMux
	validate *validator.Validate

	decks    *deck.Service
	sessions *session.Manager
	study    *study.Service
	mastery  *mastery.Aggregator
	settings *settings.Resolver
	selector *selector.Selector
	importer *importer.Importer
}

// NewServer creates and configures a new server.
func NewServer(decks *deck.Service, sessions *session.Manager, studySvc *study.Service, aggregator *mastery.Aggregator, resolver *settings.Resolver, sel *selector.Selector, imp *importer.Importer) *Server {
	s := &Server{
		router:   http.NewServeMux(),
		validate: validator.New(),
		decks:    decks,
		sessions: sessions,
		study:    studySvc,
		mastery:  aggregator,
		settings: resolver,
		selector: sel,
		importer: imp,
	}
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.HandleFunc("POST /decks", s.handleCreateDeck)
	s.router.HandleFunc("POST /decks/{deckID}/archive", s.handleArchiveDeck)
	s.router.HandleFunc("POST /decks/{deckID}/cards", s.handleAddDeckCards)
	s.router.HandleFunc("DELETE /decks/{deckID}/cards/{cardID}", s.handleRemoveDeckCard)
	s.router.HandleFunc("POST /decks/{deckID}/settings", s.handleResolveSettings)
	s.router.HandleFunc("POST /decks/{deckID}/import", s.handleImport)

	s.router.HandleFunc("GET /study/due", s.handleDueCards)
	s.router.HandleFunc("GET /study/new", s.handleNewCards)

	s.router.HandleFunc("POST /sessions", s.handleCreateSession)
	s.router.HandleFunc("GET /sessions/active", s.handleActiveSession)
	s.router.HandleFunc("GET /sessions/{sessionID}", s.handleGetSession)
	s.router.HandleFunc("POST /sessions/{sessionID}/responses", s.handleAddResponse)
	s.router.HandleFunc("POST /sessions/{sessionID}/advance", s.handleAdvanceNode)
	s.router.HandleFunc("POST /sessions/{sessionID}/complete", s.handleCompleteSession)
	s.router.HandleFunc("POST /sessions/{sessionID}/abandon", s.handleAbandonSession)
	s.router.HandleFunc("POST /sessions/cleanup", s.handleCleanup)

	s.router.HandleFunc("GET /cards/{cardID}/reviews", s.handleReviewHistory)

	s.router.HandleFunc("POST /nodes", s.handleCreateNode)
	s.router.HandleFunc("PUT /nodes/{nodeID}/enabled", s.handleSetNodeEnabled)
	s.router.HandleFunc("POST /nodes/{nodeID}/recalc", s.handleRecalcLeaf)
	s.router.HandleFunc("GET /trees/{treeID}/nodes", s.handleListEnabledNodes)
	s.router.HandleFunc("POST /trees/{treeID}/recalc", s.handleRecalcTree)
}

// errMalformedBody marks a request body that failed JSON decoding, so it
// surfaces as a client error rather than a server failure.
var errMalformedBody = errors.New("malformed request body")

// decode unmarshals and validates a JSON request body.
func (s *Server) decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	return s.validate.Struct(v)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			slog.Error("failed to encode response", "error", err)
		}
	}
}

// respondError maps the engine's error taxonomy onto status codes.
func respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrDeckNotFound),
		errors.Is(err, domain.ErrCardNotFound),
		errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrNodeNotFound),
		errors.Is(err, domain.ErrTreeNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrDeckLimitExceeded),
		errors.Is(err, domain.ErrSessionNotActive):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrInvalidRating),
		errors.Is(err, domain.ErrInvalidNode),
		errors.Is(err, errMalformedBody):
		status = http.StatusBadRequest
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}
	respondJSON(w, status, map[string]string{"error": err.Error()})
}

type cardJSON struct {
	ID        string    `json:"id"`
	Front     string    `json:"front"`
	Back      string    `json:"back"`
	Context   string    `json:"context,omitempty"`
	State     string    `json:"state"`
	Due       time.Time `json:"due"`
	Stability float64   `json:"stability"`
	Reps      int       `json:"reps"`
	Lapses    int       `json:"lapses"`
}

func toCardJSON(cards []domain.Flashcard) []cardJSON {
	out := make([]cardJSON, 0, len(cards))
	for _, c := range cards {
		out = append(out, cardJSON{
			ID:        c.ID,
			Front:     c.Front,
			Back:      c.Back,
			Context:   c.Context,
			State:     c.Scheduling.State.String(),
			Due:       c.Scheduling.Due,
			Stability: c.Scheduling.Stability,
			Reps:      c.Scheduling.Reps,
			Lapses:    c.Scheduling.Lapses,
		})
	}
	return out
}

type sessionJSON struct {
	ID              string                   `json:"id"`
	UserID          string                   `json:"userId"`
	GoalID          string                   `json:"goalId,omitempty"`
	DeckID          string                   `json:"deckId,omitempty"`
	Mode            string                   `json:"mode"`
	Status          string                   `json:"status"`
	CardIDs         []string                 `json:"cardIds"`
	CurrentIndex    int                      `json:"currentIndex"`
	Responses       []domain.SessionResponse `json:"responses"`
	StartedAt       time.Time                `json:"startedAt"`
	LastActivityAt  time.Time                `json:"lastActivityAt"`
	ExpiresAt       time.Time                `json:"expiresAt"`
	CompletedAt     *time.Time               `json:"completedAt,omitempty"`
	TimeRemainingMs *int                     `json:"timeRemainingMs,omitempty"`
	Score           *int                     `json:"score,omitempty"`
	IsGuided        bool                     `json:"isGuided"`
	CurrentNodeID   *string                  `json:"currentNodeId,omitempty"`
}

func toSessionJSON(s *domain.StudySession) sessionJSON {
	return sessionJSON{
		ID:              s.ID,
		UserID:          s.UserID,
		GoalID:          s.GoalID,
		DeckID:          s.DeckID,
		Mode:            string(s.Mode),
		Status:          string(s.Status),
		CardIDs:         s.CardIDs,
		CurrentIndex:    s.CurrentIndex,
		Responses:       s.Responses,
		StartedAt:       s.StartedAt,
		LastActivityAt:  s.LastActivityAt,
		ExpiresAt:       s.ExpiresAt,
		CompletedAt:     s.CompletedAt,
		TimeRemainingMs: s.TimeRemainingMs,
		Score:           s.Score,
		IsGuided:        s.IsGuided,
		CurrentNodeID:   s.CurrentNodeID,
	}
}

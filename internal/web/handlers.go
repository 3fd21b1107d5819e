package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/seanharte/mnemo/internal/domain"
	"github.com/seanharte/mnemo/internal/selector"
)

type createDeckRequest struct {
	UserID          string `json:"userId" validate:"required"`
	Name            string `json:"name" validate:"required"`
	NewCardsPerDay  *int   `json:"newCardsPerDay" validate:"omitempty,min=0"`
	CardsPerSession *int   `json:"cardsPerSession" validate:"omitempty,min=1"`
}

func (s *Server) handleCreateDeck(w http.ResponseWriter, r *http.Request) {
	var req createDeckRequest
	if err := s.decode(r, &req); err != nil {
		respondError(w, err)
		return
	}
	deck, err := s.decks.Create(r.Context(), req.UserID, req.Name, req.NewCardsPerDay, req.CardsPerSession)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"id": deck.ID})
}

func (s *Server) handleArchiveDeck(w http.ResponseWriter, r *http.Request) {
	if err := s.decks.Archive(r.Context(), r.PathValue("deckID")); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nil)
}

type addCardsRequest struct {
	CardIDs []string `json:"cardIds" validate:"required,min=1"`
}

func (s *Server) handleAddDeckCards(w http.ResponseWriter, r *http.Request) {
	var req addCardsRequest
	if err := s.decode(r, &req); err != nil {
		respondError(w, err)
		return
	}
	added, err := s.decks.AddCards(r.Context(), r.PathValue("deckID"), req.CardIDs)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"added": added})
}

func (s *Server) handleRemoveDeckCard(w http.ResponseWriter, r *http.Request) {
	if err := s.decks.RemoveCard(r.Context(), r.PathValue("deckID"), r.PathValue("cardID")); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nil)
}

type resolveSettingsRequest struct {
	NewCardsPerDay  *int `json:"newCardsPerDay" validate:"omitempty,min=0"`
	CardsPerSession *int `json:"cardsPerSession" validate:"omitempty,min=1"`
}

func (s *Server) handleResolveSettings(w http.ResponseWriter, r *http.Request) {
	var req resolveSettingsRequest
	if err := s.decode(r, &req); err != nil {
		respondError(w, err)
		return
	}
	overrides := &domain.SessionOverrides{
		NewCardsPerDay:  req.NewCardsPerDay,
		CardsPerSession: req.CardsPerSession,
	}
	resolved, err := s.settings.Resolve(r.Context(), r.PathValue("deckID"), overrides)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"newCardsPerDay":  resolved.NewCardsPerDay,
		"cardsPerSession": resolved.CardsPerSession,
		"source":          string(resolved.Source),
	})
}

type importRequest struct {
	UserID string `json:"userId" validate:"required"`
	Dir    string `json:"dir" validate:"required_without=GitURL,excluded_with=GitURL"`
	GitURL string `json:"gitUrl" validate:"required_without=Dir"`
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := s.decode(r, &req); err != nil {
		respondError(w, err)
		return
	}
	deckID := r.PathValue("deckID")
	var err error
	var report any
	if req.GitURL != "" {
		report, err = s.importer.ImportGit(r.Context(), req.UserID, deckID, req.GitURL)
	} else {
		report, err = s.importer.ImportDir(r.Context(), req.UserID, deckID, req.Dir)
	}
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func scopeFromQuery(r *http.Request) selector.Scope {
	return selector.Scope{
		DeckID: r.URL.Query().Get("deckId"),
		GoalID: r.URL.Query().Get("goalId"),
	}
}

func (s *Server) handleDueCards(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	cards, err := s.selector.SelectDueCards(r.Context(), scopeFromQuery(r), userID, time.Now())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toCardJSON(cards))
}

func (s *Server) handleNewCards(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit < 0 {
		limit = domain.DefaultNewCardsPerDay
	}
	cards, err := s.selector.SelectNewCards(r.Context(), scopeFromQuery(r), userID, limit)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toCardJSON(cards))
}

type createSessionRequest struct {
	UserID          string `json:"userId" validate:"required"`
	DeckID          string `json:"deckId" validate:"required_without=GoalID,excluded_with=GoalID"`
	GoalID          string `json:"goalId" validate:"required_without=DeckID"`
	Mode            string `json:"mode" validate:"required,oneof=flashcard multiple_choice timed mixed node"`
	NewCardsPerDay  *int   `json:"newCardsPerDay" validate:"omitempty,min=0"`
	CardsPerSession *int   `json:"cardsPerSession" validate:"omitempty,min=1"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := s.decode(r, &req); err != nil {
		respondError(w, err)
		return
	}
	mode := domain.SessionMode(req.Mode)

	var created *domain.StudySession
	var err error
	if req.GoalID != "" {
		created, err = s.study.StartGuidedStudy(r.Context(), req.UserID, req.GoalID, mode)
	} else {
		var overrides *domain.SessionOverrides
		if req.NewCardsPerDay != nil || req.CardsPerSession != nil {
			overrides = &domain.SessionOverrides{
				NewCardsPerDay:  req.NewCardsPerDay,
				CardsPerSession: req.CardsPerSession,
			}
		}
		created, err = s.study.StartDeckStudy(r.Context(), req.UserID, req.DeckID, mode, overrides)
	}
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toSessionJSON(created))
}

func (s *Server) handleActiveSession(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	goalID := r.URL.Query().Get("goalId")
	active, err := s.sessions.GetActiveSession(r.Context(), userID, goalID)
	if err != nil {
		respondError(w, err)
		return
	}
	if active == nil {
		respondJSON(w, http.StatusNotFound, map[string]string{"error": "no active session"})
		return
	}
	respondJSON(w, http.StatusOK, toSessionJSON(active))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	found, err := s.sessions.GetSessionByID(r.Context(), r.PathValue("sessionID"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toSessionJSON(found))
}

type addResponseRequest struct {
	UserID string `json:"userId" validate:"required"`
	CardID string `json:"cardId" validate:"required"`
	Rating int    `json:"rating" validate:"required,min=1,max=4"`
	TimeMs int    `json:"timeMs" validate:"min=0"`
}

func (s *Server) handleAddResponse(w http.ResponseWriter, r *http.Request) {
	var req addResponseRequest
	if err := s.decode(r, &req); err != nil {
		respondError(w, err)
		return
	}
	log, err := s.study.RecordReview(r.Context(), req.UserID, r.PathValue("sessionID"),
		req.CardID, domain.Rating(req.Rating), req.TimeMs)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"state":         log.State.String(),
		"due":           log.Due,
		"stability":     log.Stability,
		"scheduledDays": log.ScheduledDays,
	})
}

type advanceNodeRequest struct {
	NodeID string `json:"nodeId" validate:"required"`
}

func (s *Server) handleAdvanceNode(w http.ResponseWriter, r *http.Request) {
	var req advanceNodeRequest
	if err := s.decode(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if err := s.sessions.AdvanceNode(r.Context(), r.PathValue("sessionID"), req.NodeID); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nil)
}

func (s *Server) handleReviewHistory(w http.ResponseWriter, r *http.Request) {
	logs, err := s.study.ReviewHistory(r.Context(), r.PathValue("cardID"))
	if err != nil {
		respondError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(logs))
	for _, l := range logs {
		out = append(out, map[string]any{
			"id":            l.ID,
			"rating":        int(l.Rating),
			"state":         l.State.String(),
			"due":           l.Due,
			"stability":     l.Stability,
			"scheduledDays": l.ScheduledDays,
			"reviewedAt":    l.ReviewedAt,
		})
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleCompleteSession(w http.ResponseWriter, r *http.Request) {
	finished, err := s.study.CompleteSession(r.Context(), r.PathValue("sessionID"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toSessionJSON(finished))
}

func (s *Server) handleAbandonSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Abandon(r.Context(), r.PathValue("sessionID")); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nil)
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	swept, err := s.sessions.CleanupExpiredSessions(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"abandoned": swept})
}

type createNodeRequest struct {
	TreeID    string  `json:"treeId" validate:"required"`
	ParentID  *string `json:"parentId"`
	Depth     int     `json:"depth" validate:"min=0"`
	Path      string  `json:"path"`
	SortOrder int     `json:"sortOrder" validate:"min=0"`
	IsEnabled *bool   `json:"isEnabled"`
}

func (s *Server) handleCreateNode(w http.ResponseWriter, r *http.Request) {
	var req createNodeRequest
	if err := s.decode(r, &req); err != nil {
		respondError(w, err)
		return
	}
	node := &domain.SkillNode{
		TreeID:    req.TreeID,
		ParentID:  req.ParentID,
		Depth:     req.Depth,
		Path:      req.Path,
		SortOrder: req.SortOrder,
		IsEnabled: req.IsEnabled == nil || *req.IsEnabled,
	}
	if err := s.mastery.CreateNode(r.Context(), node); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"id": node.ID, "path": node.Path})
}

type setEnabledRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

func (s *Server) handleSetNodeEnabled(w http.ResponseWriter, r *http.Request) {
	var req setEnabledRequest
	if err := s.decode(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if err := s.mastery.SetNodeEnabled(r.Context(), r.PathValue("nodeID"), *req.Enabled); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nil)
}

func (s *Server) handleListEnabledNodes(w http.ResponseWriter, r *http.Request) {
	nodes, err := s.mastery.EnabledNodes(r.Context(), r.PathValue("treeID"))
	if err != nil {
		respondError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, map[string]any{
			"id":                n.ID,
			"parentId":          n.ParentID,
			"depth":             n.Depth,
			"path":              n.Path,
			"masteryPercentage": n.MasteryPercentage,
			"cardCount":         n.CardCount,
		})
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleRecalcLeaf(w http.ResponseWriter, r *http.Request) {
	pct, err := s.mastery.RecalcLeaf(r.Context(), r.PathValue("nodeID"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]float64{"masteryPercentage": pct})
}

func (s *Server) handleRecalcTree(w http.ResponseWriter, r *http.Request) {
	if err := s.mastery.RecalcTree(r.Context(), r.PathValue("treeID")); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nil)
}

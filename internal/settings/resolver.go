// Package settings resolves effective scheduling limits from the three-tier
// precedence chain: session override > deck override > global default.
package settings

import (
	"context"
	"fmt"

	"github.com/seanharte/mnemo/internal/domain"
	"github.com/seanharte/mnemo/internal/storage"
)

// Defaults are the global-tier values. They come from configuration.
type Defaults struct {
	NewCardsPerDay  int
	CardsPerSession int
}

// Resolver computes effective scheduling settings for a deck.
type Resolver struct {
	db       *storage.DB
	defaults Defaults
}

// NewResolver creates a resolver with the given global defaults. Zero-value
// defaults are replaced with the built-in constants.
func NewResolver(db *storage.DB, defaults Defaults) *Resolver {
	if defaults.NewCardsPerDay <= 0 {
		defaults.NewCardsPerDay = domain.DefaultNewCardsPerDay
	}
	if defaults.CardsPerSession <= 0 {
		defaults.CardsPerSession = domain.DefaultCardsPerSession
	}
	return &Resolver{db: db, defaults: defaults}
}

// GlobalCardsPerSession returns the global-tier session size cap. Goal-scoped
// study has no deck tier, so it bounds its plan with this directly.
func (r *Resolver) GlobalCardsPerSession() int {
	return r.defaults.CardsPerSession
}

// Resolve returns the effective settings for a deck, applying precedence per
// field independently. Source reflects the tier that supplied NewCardsPerDay.
// Returns domain.ErrDeckNotFound when the deck id does not resolve.
func (r *Resolver) Resolve(ctx context.Context, deckID string, overrides *domain.SessionOverrides) (domain.EffectiveSchedulingSettings, error) {
	deck, err := r.db.FindDeckByID(ctx, deckID)
	if err != nil {
		return domain.EffectiveSchedulingSettings{}, fmt.Errorf("resolving settings: %w", err)
	}
	if deck == nil {
		return domain.EffectiveSchedulingSettings{}, fmt.Errorf("resolving settings for deck %s: %w", deckID, domain.ErrDeckNotFound)
	}

	var sessionNewPerDay, sessionPerSession *int
	if overrides != nil {
		sessionNewPerDay = overrides.NewCardsPerDay
		sessionPerSession = overrides.CardsPerSession
	}

	newPerDay, source := resolveField(sessionNewPerDay, deck.NewCardsPerDay, r.defaults.NewCardsPerDay)
	perSession, _ := resolveField(sessionPerSession, deck.CardsPerSession, r.defaults.CardsPerSession)

	return domain.EffectiveSchedulingSettings{
		NewCardsPerDay:  newPerDay,
		CardsPerSession: perSession,
		Source:          source,
	}, nil
}

func resolveField(session, deck *int, global int) (int, domain.SettingsSource) {
	if session != nil {
		return *session, domain.SourceSession
	}
	if deck != nil {
		return *deck, domain.SourceDeck
	}
	return global, domain.SourceGlobal
}

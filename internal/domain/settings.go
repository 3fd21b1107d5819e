package domain

// Global scheduling defaults, used when neither the session nor the deck
// supplies an override. The config layer may replace them at startup.
const (
	DefaultNewCardsPerDay  = 20
	DefaultCardsPerSession = 50
)

// SettingsSource names the precedence tier that supplied a resolved value.
type SettingsSource string

const (
	SourceGlobal  SettingsSource = "global"
	SourceDeck    SettingsSource = "deck"
	SourceSession SettingsSource = "session"
)

// SessionOverrides are per-request scheduling overrides. Nil fields fall
// through to the deck tier, then the global tier.
type SessionOverrides struct {
	NewCardsPerDay  *int
	CardsPerSession *int
}

// EffectiveSchedulingSettings is the derived result of resolving the
// three-tier precedence chain. It is never persisted. Source reflects the
// tier that supplied NewCardsPerDay.
type EffectiveSchedulingSettings struct {
	NewCardsPerDay  int
	CardsPerSession int
	Source          SettingsSource
}

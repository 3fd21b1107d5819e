package fsrs

import (
	"math"
	"time"

	"github.com/seanharte/mnemo/internal/domain"
)

// Params holds the tunables for the FSRS-family scheduler.
type Params struct {
	A                   float64 // scales the overall memory increase
	B                   float64 // difficulty exponent
	C                   float64 // stability exponent
	D                   float64 // retention effect scaler
	DesiredRetention    float64 // e.g. 0.9 for 90%
	EasyBonus           float64 // interval multiplier for Easy reviews
	MaximumIntervalDays int
}

// DefaultParams provides a sensible starting parameter set.
func DefaultParams() *Params {
	return &Params{
		A:                   0.2,
		B:                   0.5,
		C:                   0.1,
		D:                   4.0,
		DesiredRetention:    0.9,
		EasyBonus:           1.3,
		MaximumIntervalDays: 36500,
	}
}

// Seed values for a card's first review, indexed by rating.
var (
	initialStability  = map[domain.Rating]float64{domain.Again: 0.5, domain.Hard: 1.2, domain.Good: 2.5, domain.Easy: 5.8}
	initialDifficulty = map[domain.Rating]float64{domain.Again: 8.0, domain.Hard: 6.5, domain.Good: 5.0, domain.Easy: 3.5}
)

// Intra-day steps while a card is in Learning or Relearning.
const (
	againStep = 1 * time.Minute
	hardStep  = 10 * time.Minute
	lapseStep = 10 * time.Minute
)

// Apply processes one rating against a card's scheduling state and returns
// the next state plus a log entry for the append-only review log. The caller
// fills in the log's identity fields. The input state is not mutated.
//
// Guarantees: the next state stays within the four scheduling states, Again
// always yields ScheduledDays <= 1, Due strictly increases for any non-Again
// rating, and Reps increments by exactly one.
func (p *Params) Apply(prev domain.SchedulingState, rating domain.Rating, now time.Time) (domain.SchedulingState, domain.ReviewLog) {
	next := prev
	next.Reps = prev.Reps + 1
	next.ElapsedDays = elapsedDays(prev.LastReview, now)
	reviewedAt := now
	next.LastReview = &reviewedAt

	switch prev.State {
	case domain.StateNew:
		next.Stability = initialStability[rating]
		next.Difficulty = initialDifficulty[rating]
		if rating == domain.Easy {
			p.graduate(&next, now)
		} else {
			next.State = domain.StateLearning
			next.ScheduledDays = 0
			next.Due = now.Add(stepFor(rating))
		}

	case domain.StateLearning, domain.StateRelearning:
		switch rating {
		case domain.Again:
			next.Difficulty = clampDifficulty(prev.Difficulty + 0.5)
			next.ScheduledDays = 0
			next.Due = now.Add(againStep)
		case domain.Hard:
			next.Difficulty = clampDifficulty(prev.Difficulty + 0.1)
			next.ScheduledDays = 0
			next.Due = now.Add(hardStep)
		default:
			next.Stability = p.nextStability(prev.Stability, prev.Difficulty)
			if rating == domain.Easy {
				next.Stability *= p.EasyBonus
				next.Difficulty = clampDifficulty(prev.Difficulty - 0.1)
			}
			p.graduate(&next, now)
		}

	case domain.StateReview:
		if rating == domain.Again {
			next.State = domain.StateRelearning
			next.Lapses = prev.Lapses + 1
			// Forgetting collapses stability rather than zeroing it.
			next.Stability = math.Max(1, prev.Stability*0.4)
			next.Difficulty = clampDifficulty(prev.Difficulty + 0.5)
			next.ScheduledDays = 0
			next.Due = now.Add(lapseStep)
		} else {
			next.Stability = p.nextStability(prev.Stability, prev.Difficulty)
			switch rating {
			case domain.Hard:
				next.Difficulty = clampDifficulty(prev.Difficulty + 0.1)
			case domain.Easy:
				next.Stability *= p.EasyBonus
				next.Difficulty = clampDifficulty(prev.Difficulty - 0.1)
			}
			p.graduate(&next, now)
		}
	}

	if rating != domain.Again && !next.Due.After(prev.Due) {
		next.Due = prev.Due.Add(time.Minute)
	}

	log := domain.ReviewLog{
		Rating:          rating,
		State:           next.State,
		Due:             next.Due,
		Stability:       next.Stability,
		Difficulty:      next.Difficulty,
		ElapsedDays:     next.ElapsedDays,
		LastElapsedDays: prev.ElapsedDays,
		ScheduledDays:   next.ScheduledDays,
		ReviewedAt:      now,
	}
	return next, log
}

// nextStability applies the core stability growth formula for a successful
// review: S' = S * (1 + a * D^(-b) * S^c * (e^(d * (1-R)) - 1)).
func (p *Params) nextStability(stability, difficulty float64) float64 {
	if stability < 1 {
		stability = 1
	}
	if difficulty < 1 {
		difficulty = 1
	}
	factor := p.A * math.Pow(difficulty, -p.B) * math.Pow(stability, p.C)
	multiplier := math.Exp(p.D*(1-p.DesiredRetention)) - 1
	return stability * (1 + factor*multiplier)
}

// graduate moves the card into Review and schedules it a whole number of
// days out, clamped to [1, MaximumIntervalDays].
func (p *Params) graduate(next *domain.SchedulingState, now time.Time) {
	days := int(math.Round(next.Stability))
	if days < 1 {
		days = 1
	}
	if days > p.MaximumIntervalDays {
		days = p.MaximumIntervalDays
	}
	next.State = domain.StateReview
	next.ScheduledDays = float64(days)
	next.Due = now.Add(time.Duration(days) * 24 * time.Hour)
}

func stepFor(rating domain.Rating) time.Duration {
	if rating == domain.Again {
		return againStep
	}
	return hardStep
}

func clampDifficulty(d float64) float64 {
	return math.Min(10, math.Max(1, d))
}

func elapsedDays(lastReview *time.Time, now time.Time) float64 {
	if lastReview == nil {
		return 0
	}
	days := now.Sub(*lastReview).Hours() / 24
	if days < 0 {
		return 0
	}
	return days
}

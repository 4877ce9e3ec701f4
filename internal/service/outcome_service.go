// Package service orchestrates the round lifecycle: outcome generation,
// bet placement and cancellation, settlement, deposits, and the cosmetic
// series rendering.
package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/tonpulse/pulse/internal/config"
	"github.com/tonpulse/pulse/internal/domain"
	"github.com/tonpulse/pulse/internal/repository"
)

// ──────────────────────────────────────────────────────────────────────────────
// Deterministic PRNG
// ──────────────────────────────────────────────────────────────────────────────

// fnv1a32 hashes a seed string into the 32-bit generator state.
func fnv1a32(s string) uint32 {
	h := uint32(2166136261)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}

// rng is a mulberry32 generator: a fast 32-bit mix function whose sequence is
// a pure function of its seed. Not cryptographic — unpredictability comes
// from keeping the seed secret, not from the generator.
type rng struct {
	state uint32
}

// next returns a uniform draw in [0, 1).
func (r *rng) next() float64 {
	r.state += 0x6D2B79F5
	t := r.state
	t = (t ^ (t >> 15)) * (t | 1)
	t ^= t + (t^(t>>7))*(t|61)
	return float64(t^(t>>14)) / 4294967296
}

// in returns a uniform draw in [min, max).
func (r *rng) in(min, max float64) float64 {
	return min + r.next()*(max-min)
}

// ──────────────────────────────────────────────────────────────────────────────
// OutcomeOracle
// ──────────────────────────────────────────────────────────────────────────────

// OutcomeOracle produces exactly one outcome percentage per round,
// reproducible by any caller without coordination, and persists it once via
// conditional set. Concurrent first-writers need no locking: they all derive
// the identical value from the round's seed.
type OutcomeOracle struct {
	rounds *repository.RoundRepository
	cfg    *config.Config
	clock  domain.Clock
}

// NewOutcomeOracle creates an OutcomeOracle.
func NewOutcomeOracle(rounds *repository.RoundRepository, cfg *config.Config) *OutcomeOracle {
	return &OutcomeOracle{rounds: rounds, cfg: cfg, clock: cfg.Clock()}
}

// RNGFor returns the round's deterministic generator, seeded from the server
// secret and the round's start timestamp. The series renderer uses the same
// seeding so the displayed curve and the committed outcome always agree.
func (o *OutcomeOracle) RNGFor(roundID int64) *rng {
	seed := o.cfg.Game.SeedSecret + ":" + strconv.FormatInt(o.clock.StartAt(roundID), 10)
	return &rng{state: fnv1a32(seed)}
}

// DrawPct derives the round's outcome percentage without touching storage.
// Distribution: 50% short, uniform in [MinY, 0]; the long half subdivides as
// 40% in [0,50], 5% in [50,100], 3% in [100,150], 2% in [150, MaxY].
func (o *OutcomeOracle) DrawPct(roundID int64) float64 {
	g := o.RNGFor(roundID)
	r := g.next()

	var pct float64
	if r < 0.5 {
		pct = -g.in(0, 100)
	} else {
		x := (r - 0.5) / 0.5
		switch {
		case x < 0.80:
			pct = g.in(0, 50)
		case x < 0.90:
			pct = g.in(50, 100)
		case x < 0.96:
			pct = g.in(100, 150)
		default:
			pct = g.in(150, 200)
		}
	}
	return domain.ClampPct(pct, o.cfg.Game.MinY, o.cfg.Game.MaxY)
}

// Outcome returns the committed outcome for a round, committing it first if
// no caller has yet. The read-back after commit keeps every racing caller on
// the stored value, and the clamp guards against out-of-range values from
// older deployments.
func (o *OutcomeOracle) Outcome(ctx context.Context, roundID int64) (float64, error) {
	pct, ok, err := o.rounds.Outcome(ctx, roundID)
	if err != nil {
		return 0, fmt.Errorf("outcome_service.Outcome: %w", err)
	}
	if !ok {
		if err := o.rounds.CommitOutcome(ctx, roundID, o.DrawPct(roundID), o.cfg.Game.BetTTL); err != nil {
			return 0, fmt.Errorf("outcome_service.Outcome: commit: %w", err)
		}
		pct, ok, err = o.rounds.Outcome(ctx, roundID)
		if err != nil {
			return 0, fmt.Errorf("outcome_service.Outcome: reread: %w", err)
		}
		if !ok {
			// Committed and immediately expired; only possible with a
			// pathologically short ttl.
			pct = o.DrawPct(roundID)
		}
	}
	return domain.ClampPct(pct, o.cfg.Game.MinY, o.cfg.Game.MaxY), nil
}

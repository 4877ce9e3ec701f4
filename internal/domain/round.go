// Package domain defines the core business entities and types for the
// tonpulse long/short micro-betting game.
package domain

// ──────────────────────────────────────────────────────────────────────────────
// Round phases
// ──────────────────────────────────────────────────────────────────────────────

// Phase is the sub-window a round is currently in.
type Phase string

const (
	PhaseBet  Phase = "bet"  // wagers may be placed, replaced, cancelled
	PhasePlay Phase = "play" // bet window closed, outcome not yet payable
)

// ──────────────────────────────────────────────────────────────────────────────
// Clock
// ──────────────────────────────────────────────────────────────────────────────

// Clock derives round identity and phase boundaries from wall-clock
// milliseconds. It is pure and stateless: rounds are never created or
// destroyed, they are functions of time. Construct one from config so tests
// can use short windows.
type Clock struct {
	RoundMS int64 // full round duration
	BetMS   int64 // bet window, must be < RoundMS
}

// PlayMS returns the derived play-window duration (RoundMS - BetMS).
func (c Clock) PlayMS() int64 { return c.RoundMS - c.BetMS }

// RoundIDAt returns the identity of the round containing nowMS.
func (c Clock) RoundIDAt(nowMS int64) int64 { return nowMS / c.RoundMS }

// StartAt returns the opening timestamp of a round in ms.
func (c Clock) StartAt(roundID int64) int64 { return roundID * c.RoundMS }

// BetEndAt returns the timestamp the bet window closes.
func (c Clock) BetEndAt(roundID int64) int64 { return c.StartAt(roundID) + c.BetMS }

// FinishAt returns the timestamp the round ends and becomes settleable.
func (c Clock) FinishAt(roundID int64) int64 { return c.StartAt(roundID) + c.RoundMS }

// PhaseAt returns PhaseBet for [startAt, betEndAt) and PhasePlay for
// [betEndAt, finishAt). Consecutive rounds tile the timeline with no gap.
func (c Clock) PhaseAt(nowMS int64) Phase {
	id := c.RoundIDAt(nowMS)
	if nowMS < c.BetEndAt(id) {
		return PhaseBet
	}
	return PhasePlay
}

// BetOpenAt reports whether the bet window of roundID is open at nowMS.
func (c Clock) BetOpenAt(roundID, nowMS int64) bool {
	return nowMS >= c.StartAt(roundID) && nowMS < c.BetEndAt(roundID)
}

// FinishedAt reports whether roundID has fully elapsed at nowMS.
func (c Clock) FinishedAt(roundID, nowMS int64) bool {
	return nowMS >= c.FinishAt(roundID)
}

// ClampPct clamps an outcome percentage into [min, max]. Applied at every
// read site, not only on write.
func ClampPct(pct, min, max float64) float64 {
	if pct < min {
		return min
	}
	if pct > max {
		return max
	}
	return pct
}

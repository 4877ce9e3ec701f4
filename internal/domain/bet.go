package domain

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sides
// ──────────────────────────────────────────────────────────────────────────────

// Side is the direction a user bets on.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// IsValid returns true if the side is a recognised direction.
func (s Side) IsValid() bool {
	return s == SideLong || s == SideShort
}

// ParseSide normalises a raw side string. Returns ErrBadSide for anything
// that is not long/short (case-insensitive).
func ParseSide(raw string) (Side, error) {
	s := Side(strings.ToLower(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return "", ErrBadSide
	}
	return s, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Money — TON across the API boundary, integer nano in storage
// ──────────────────────────────────────────────────────────────────────────────

// NanoPerTon is the smallest currency subunit scale (1 TON = 1e9 nano).
const NanoPerTon = 1_000_000_000

// ToNano converts a decimal TON amount to integer nano units.
// Returns ErrBadAmount for non-finite or non-positive amounts.
// Rounding is half-away-from-zero at the 9th decimal so the same TON value
// always maps to the same nano value regardless of the caller.
func ToNano(ton float64) (int64, error) {
	if math.IsNaN(ton) || math.IsInf(ton, 0) || ton <= 0 {
		return 0, ErrBadAmount
	}
	n := decimal.NewFromFloat(ton).Shift(9).Round(0).IntPart()
	if n <= 0 {
		return 0, ErrBadAmount
	}
	return n, nil
}

// FromNano converts integer nano units back to a decimal TON amount.
func FromNano(nano int64) float64 {
	return decimal.New(nano, -9).InexactFloat64()
}

// Payout computes the settlement return in nano for a stake against the
// committed outcome percentage.
//
//	m      = pct/100 for long, -pct/100 for short
//	return = floor(stake × (1 + m)), floored at 0 (never negative)
func Payout(side Side, stakeNano int64, pct float64) int64 {
	m := pct / 100
	if side == SideShort {
		m = -m
	}
	ret := decimal.NewFromInt(stakeNano).
		Mul(decimal.NewFromFloat(1 + m)).
		Floor().
		IntPart()
	if ret < 0 {
		return 0
	}
	return ret
}

// ──────────────────────────────────────────────────────────────────────────────
// Bet
// ──────────────────────────────────────────────────────────────────────────────

// Bet is the single live wager a user may hold in a round. Keyed by
// (roundId, address); placing again replaces it.
type Bet struct {
	RoundID    int64  `json:"roundId"`
	Address    string `json:"address"` // canonical user key
	Side       Side   `json:"side"`
	AmountNano int64  `json:"amountNano"`
	PlacedAt   int64  `json:"placedAt"` // unix ms
}

// Validate checks a bet record read back from storage. Every read must go
// through this — store contents are not trusted.
func (b *Bet) Validate() error {
	if b == nil {
		return ErrCorruptRecord
	}
	if !b.Side.IsValid() {
		return ErrCorruptRecord
	}
	if b.AmountNano <= 0 {
		return ErrCorruptRecord
	}
	if b.Address == "" {
		return ErrCorruptRecord
	}
	return nil
}

// AmountTon returns the stake as decimal TON for API responses.
func (b *Bet) AmountTon() float64 { return FromNano(b.AmountNano) }

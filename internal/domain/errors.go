package domain

import (
	"errors"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sentinel errors — compare with errors.Is()
// ──────────────────────────────────────────────────────────────────────────────

// Validation errors — the request itself is malformed.
var (
	// ErrBadAddress is returned when a wallet address cannot be parsed into
	// its canonical form.
	ErrBadAddress = errors.New("invalid wallet address")

	// ErrBadSide is returned when the bet direction is not long or short.
	ErrBadSide = errors.New("invalid bet side: must be long or short")

	// ErrBadAmount is returned when an amount is non-finite, zero or negative.
	ErrBadAmount = errors.New("amount must be a positive finite number")

	// ErrBadRound is returned when the round id does not identify the round
	// currently accepting bets.
	ErrBadRound = errors.New("round id does not match the current round")
)

// State errors — the request is well-formed but the game state rejects it.
var (
	// ErrNotCurrentRound is returned when a cancellation targets a round
	// other than the one in progress.
	ErrNotCurrentRound = errors.New("bets can only be cancelled in the current round")

	// ErrBetsClosed is returned when the bet window of the round has passed.
	ErrBetsClosed = errors.New("bet window is closed for this round")

	// ErrNoBet is returned when no bet record exists for (round, user).
	ErrNoBet = errors.New("no bet found for this round")

	// ErrInsufficientFunds is returned when the balance cannot cover a stake.
	// Placements are rejected whole, never partially debited.
	ErrInsufficientFunds = errors.New("insufficient balance")
)

// Infrastructure errors.
var (
	// ErrCorruptRecord is returned when a stored record fails validation on
	// read. Store contents are parsed, not trusted.
	ErrCorruptRecord = errors.New("stored record failed validation")
)

// ──────────────────────────────────────────────────────────────────────────────
// Helper predicates
// ──────────────────────────────────────────────────────────────────────────────

// validationErrors collects malformed-request sentinels so IsValidation can
// stay in sync automatically.
var validationErrors = []error{
	ErrBadAddress,
	ErrBadSide,
	ErrBadAmount,
	ErrBadRound,
}

// IsValidation returns true when err (or any error in its chain) is a
// request-validation error. These map to 400 responses and are detected
// before any mutation.
func IsValidation(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsStateReject returns true for business-rule rejections: the request was
// valid but the round/bet state refused it. No side effects occurred.
func IsStateReject(err error) bool {
	stateErrors := []error{
		ErrNotCurrentRound,
		ErrBetsClosed,
		ErrNoBet,
		ErrInsufficientFunds,
	}
	for _, target := range stateErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Package repository persists game state in the external key-value store.
// There is no other storage: balances, bets, settlement markers and history
// all live under well-known key prefixes with bounded ttls.
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/tonpulse/pulse/internal/domain"
	"github.com/tonpulse/pulse/internal/store"
)

// Key prefixes. Stable — changing them orphans live state.
const (
	balanceKeyPrefix = "bal:"     // bal:{user} → int64 nano
	betKeyPrefix     = "bet:"     // bet:{roundId}:{user} → Bet JSON
	settledKeyPrefix = "settled:" // settled:{roundId}:{user} → "1"
	depositKeyPrefix = "dep:"     // dep:{comment} → "1"
)

// LedgerRepository handles per-user balances, per-round bet records,
// settlement markers and deposit dedup keys.
//
// Balance mutations go through the store's atomic counter so concurrent
// requests for the same user never lose updates — a get-then-set pair here
// would be the one real race in the whole system.
type LedgerRepository struct {
	kv store.KV
}

// NewLedgerRepository creates a LedgerRepository.
func NewLedgerRepository(kv store.KV) *LedgerRepository {
	return &LedgerRepository{kv: kv}
}

func balanceKey(user string) string { return balanceKeyPrefix + user }

func betKey(roundID int64, user string) string {
	return betKeyPrefix + strconv.FormatInt(roundID, 10) + ":" + user
}

func settledKey(roundID int64, user string) string {
	return settledKeyPrefix + strconv.FormatInt(roundID, 10) + ":" + user
}

// ──────────────────────────────────────────────────────────────────────────────
// Balances
// ──────────────────────────────────────────────────────────────────────────────

// Balance returns a user's balance in nano. A missing key is balance 0.
func (r *LedgerRepository) Balance(ctx context.Context, user string) (int64, error) {
	raw, ok, err := r.kv.Get(ctx, balanceKey(user))
	if err != nil {
		return 0, fmt.Errorf("ledger_repo.Balance: %w", err)
	}
	if !ok {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("ledger_repo.Balance: %w", domain.ErrCorruptRecord)
	}
	return n, nil
}

// Credit atomically adds amountNano to a user's balance and returns the new
// balance.
func (r *LedgerRepository) Credit(ctx context.Context, user string, amountNano int64) (int64, error) {
	n, err := r.kv.IncrBy(ctx, balanceKey(user), amountNano)
	if err != nil {
		return 0, fmt.Errorf("ledger_repo.Credit: %w", err)
	}
	return n, nil
}

// Debit atomically subtracts amountNano unconditionally. Used only to undo a
// just-made credit (replacement rollback); normal debits go through
// DebitIfSufficient.
func (r *LedgerRepository) Debit(ctx context.Context, user string, amountNano int64) (int64, error) {
	n, err := r.kv.IncrBy(ctx, balanceKey(user), -amountNano)
	if err != nil {
		return 0, fmt.Errorf("ledger_repo.Debit: %w", err)
	}
	return n, nil
}

// DebitIfSufficient atomically subtracts amountNano and rejects the debit
// when the balance would go negative. The decrement-check-compensate pattern
// keeps the operation race-free on a plain atomic counter: a losing caller
// restores exactly what it took, so the balance never ends below zero and no
// update is lost.
func (r *LedgerRepository) DebitIfSufficient(ctx context.Context, user string, amountNano int64) error {
	after, err := r.kv.IncrBy(ctx, balanceKey(user), -amountNano)
	if err != nil {
		return fmt.Errorf("ledger_repo.DebitIfSufficient: %w", err)
	}
	if after < 0 {
		if _, cerr := r.kv.IncrBy(ctx, balanceKey(user), amountNano); cerr != nil {
			return fmt.Errorf("ledger_repo.DebitIfSufficient: compensate: %w", cerr)
		}
		return domain.ErrInsufficientFunds
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Bets
// ──────────────────────────────────────────────────────────────────────────────

// Bet loads the live bet for (roundID, user). Returns (nil, false, nil) when
// no bet exists. A record that exists but fails validation surfaces
// ErrCorruptRecord rather than being silently trusted.
func (r *LedgerRepository) Bet(ctx context.Context, roundID int64, user string) (*domain.Bet, bool, error) {
	raw, ok, err := r.kv.Get(ctx, betKey(roundID, user))
	if err != nil {
		return nil, false, fmt.Errorf("ledger_repo.Bet: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	var bet domain.Bet
	if err := json.Unmarshal([]byte(raw), &bet); err != nil {
		return nil, false, fmt.Errorf("ledger_repo.Bet: decode: %w", domain.ErrCorruptRecord)
	}
	if err := bet.Validate(); err != nil {
		return nil, false, fmt.Errorf("ledger_repo.Bet: %w", err)
	}
	return &bet, true, nil
}

// PutBet stores a bet record with the retention ttl. Overwrites any prior
// bet for the same (round, user) — replacement semantics.
func (r *LedgerRepository) PutBet(ctx context.Context, bet *domain.Bet, ttl time.Duration) error {
	data, err := json.Marshal(bet)
	if err != nil {
		return fmt.Errorf("ledger_repo.PutBet: encode: %w", err)
	}
	if err := r.kv.Set(ctx, betKey(bet.RoundID, bet.Address), string(data), ttl); err != nil {
		return fmt.Errorf("ledger_repo.PutBet: %w", err)
	}
	return nil
}

// DeleteBet removes the bet record for (roundID, user).
func (r *LedgerRepository) DeleteBet(ctx context.Context, roundID int64, user string) error {
	if err := r.kv.Del(ctx, betKey(roundID, user)); err != nil {
		return fmt.Errorf("ledger_repo.DeleteBet: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Settlement markers
// ──────────────────────────────────────────────────────────────────────────────

// IsSettled reports whether the payout for (roundID, user) has been claimed.
func (r *LedgerRepository) IsSettled(ctx context.Context, roundID int64, user string) (bool, error) {
	_, ok, err := r.kv.Get(ctx, settledKey(roundID, user))
	if err != nil {
		return false, fmt.Errorf("ledger_repo.IsSettled: %w", err)
	}
	return ok, nil
}

// ClaimSettlement atomically sets the settlement marker and reports whether
// this caller won the claim. Once set, the marker suppresses every further
// payout for the pair regardless of how many times settle is invoked.
func (r *LedgerRepository) ClaimSettlement(ctx context.Context, roundID int64, user string, ttl time.Duration) (bool, error) {
	ok, err := r.kv.SetNX(ctx, settledKey(roundID, user), "1", ttl)
	if err != nil {
		return false, fmt.Errorf("ledger_repo.ClaimSettlement: %w", err)
	}
	return ok, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Deposit dedup
// ──────────────────────────────────────────────────────────────────────────────

// ClaimDeposit atomically claims a deposit comment as the dedup key.
// A false return means the comment was already credited.
func (r *LedgerRepository) ClaimDeposit(ctx context.Context, comment string, ttl time.Duration) (bool, error) {
	ok, err := r.kv.SetNX(ctx, depositKeyPrefix+comment, "1", ttl)
	if err != nil {
		return false, fmt.Errorf("ledger_repo.ClaimDeposit: %w", err)
	}
	return ok, nil
}

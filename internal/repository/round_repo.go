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

const (
	outcomeKeyPrefix  = "round:endPct:"        // round:endPct:{roundId} → pct
	historyKey        = "round:history"        // list of HistoryEntry JSON
	historyMarkPrefix = "round:historyPushed:" // per-round finalize marker
	betFeedKeyPrefix  = "round:bets:"          // list of Bet JSON, newest first
	totalsKeyPrefix   = "round:betTotals:"     // hash of side totals
)

// Totals hash fields.
const (
	fieldLongAmount  = "longAmount"
	fieldShortAmount = "shortAmount"
	fieldLongCount   = "longCount"
	fieldShortCount  = "shortCount"
)

// betFeedMax bounds the public per-round bet feed.
const betFeedMax = 200

// RoundRepository stores per-round shared state: the committed outcome, the
// bounded history log, and the public bet feed with its side totals.
type RoundRepository struct {
	kv store.KV
}

// NewRoundRepository creates a RoundRepository.
func NewRoundRepository(kv store.KV) *RoundRepository {
	return &RoundRepository{kv: kv}
}

func outcomeKey(roundID int64) string {
	return outcomeKeyPrefix + strconv.FormatInt(roundID, 10)
}

// ──────────────────────────────────────────────────────────────────────────────
// Outcome — write once, read many
// ──────────────────────────────────────────────────────────────────────────────

// Outcome returns the committed outcome percentage for a round, if any.
func (r *RoundRepository) Outcome(ctx context.Context, roundID int64) (float64, bool, error) {
	raw, ok, err := r.kv.Get(ctx, outcomeKey(roundID))
	if err != nil {
		return 0, false, fmt.Errorf("round_repo.Outcome: %w", err)
	}
	if !ok {
		return 0, false, nil
	}
	pct, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, fmt.Errorf("round_repo.Outcome: %w", domain.ErrCorruptRecord)
	}
	return pct, true, nil
}

// CommitOutcome persists pct for a round with set-if-not-exists semantics.
// Racing first-writers are safe without locking because every caller derives
// the identical value deterministically; the conditional set just keeps the
// key's ttl from being extended by later callers.
func (r *RoundRepository) CommitOutcome(ctx context.Context, roundID int64, pct float64, ttl time.Duration) error {
	val := strconv.FormatFloat(pct, 'f', 6, 64)
	if _, err := r.kv.SetNX(ctx, outcomeKey(roundID), val, ttl); err != nil {
		return fmt.Errorf("round_repo.CommitOutcome: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// History — bounded recent-outcome log
// ──────────────────────────────────────────────────────────────────────────────

// RecordHistoryOnce appends entry to the front of the history log exactly
// once per round: a conditional per-round finalize marker decides which of
// any concurrent finalizers performs the append. Returns whether this caller
// appended.
func (r *RoundRepository) RecordHistoryOnce(ctx context.Context, entry domain.HistoryEntry, maxLen int, ttl time.Duration) (bool, error) {
	mark := historyMarkPrefix + strconv.FormatInt(entry.RoundID, 10)
	won, err := r.kv.SetNX(ctx, mark, "1", ttl)
	if err != nil {
		return false, fmt.Errorf("round_repo.RecordHistoryOnce: mark: %w", err)
	}
	if !won {
		return false, nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return false, fmt.Errorf("round_repo.RecordHistoryOnce: encode: %w", err)
	}
	if err := r.kv.LPush(ctx, historyKey, string(data)); err != nil {
		return false, fmt.Errorf("round_repo.RecordHistoryOnce: push: %w", err)
	}
	if err := r.kv.LTrim(ctx, historyKey, 0, int64(maxLen)-1); err != nil {
		return false, fmt.Errorf("round_repo.RecordHistoryOnce: trim: %w", err)
	}
	if err := r.kv.Expire(ctx, historyKey, ttl); err != nil {
		return false, fmt.Errorf("round_repo.RecordHistoryOnce: expire: %w", err)
	}
	return true, nil
}

// History returns up to limit most-recent finalized rounds, newest first.
// Corrupt entries are skipped rather than failing the whole read.
func (r *RoundRepository) History(ctx context.Context, limit int) ([]domain.HistoryEntry, error) {
	raw, err := r.kv.LRange(ctx, historyKey, 0, int64(limit)-1)
	if err != nil {
		return nil, fmt.Errorf("round_repo.History: %w", err)
	}
	entries := make([]domain.HistoryEntry, 0, len(raw))
	for _, s := range raw {
		var e domain.HistoryEntry
		if err := json.Unmarshal([]byte(s), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Public bet feed and side totals
// ──────────────────────────────────────────────────────────────────────────────

func feedKey(roundID int64) string {
	return betFeedKeyPrefix + strconv.FormatInt(roundID, 10)
}

func totalsKey(roundID int64) string {
	return totalsKeyPrefix + strconv.FormatInt(roundID, 10)
}

// AppendBetFeed prepends a bet to the round's public feed, trims it to
// betFeedMax entries and refreshes the ttl.
func (r *RoundRepository) AppendBetFeed(ctx context.Context, bet *domain.Bet, ttl time.Duration) error {
	data, err := json.Marshal(bet)
	if err != nil {
		return fmt.Errorf("round_repo.AppendBetFeed: encode: %w", err)
	}
	key := feedKey(bet.RoundID)
	if err := r.kv.LPush(ctx, key, string(data)); err != nil {
		return fmt.Errorf("round_repo.AppendBetFeed: push: %w", err)
	}
	if err := r.kv.LTrim(ctx, key, 0, betFeedMax-1); err != nil {
		return fmt.Errorf("round_repo.AppendBetFeed: trim: %w", err)
	}
	if err := r.kv.Expire(ctx, key, ttl); err != nil {
		return fmt.Errorf("round_repo.AppendBetFeed: expire: %w", err)
	}
	return nil
}

// BetFeed returns up to limit feed entries, newest first, skipping corrupt
// records.
func (r *RoundRepository) BetFeed(ctx context.Context, roundID int64, limit int) ([]domain.Bet, error) {
	raw, err := r.kv.LRange(ctx, feedKey(roundID), 0, int64(limit)-1)
	if err != nil {
		return nil, fmt.Errorf("round_repo.BetFeed: %w", err)
	}
	bets := make([]domain.Bet, 0, len(raw))
	for _, s := range raw {
		var b domain.Bet
		if err := json.Unmarshal([]byte(s), &b); err != nil {
			continue
		}
		if err := b.Validate(); err != nil {
			continue
		}
		bets = append(bets, b)
	}
	return bets, nil
}

// AddTotals atomically adjusts the side totals of a round. Negative amounts
// reverse a cancelled or replaced bet.
func (r *RoundRepository) AddTotals(ctx context.Context, roundID int64, side domain.Side, amountNano, countDelta int64, ttl time.Duration) error {
	key := totalsKey(roundID)
	amountField, countField := fieldLongAmount, fieldLongCount
	if side == domain.SideShort {
		amountField, countField = fieldShortAmount, fieldShortCount
	}
	if _, err := r.kv.HIncrBy(ctx, key, amountField, amountNano); err != nil {
		return fmt.Errorf("round_repo.AddTotals: amount: %w", err)
	}
	if _, err := r.kv.HIncrBy(ctx, key, countField, countDelta); err != nil {
		return fmt.Errorf("round_repo.AddTotals: count: %w", err)
	}
	if err := r.kv.Expire(ctx, key, ttl); err != nil {
		return fmt.Errorf("round_repo.AddTotals: expire: %w", err)
	}
	return nil
}

// Totals returns the aggregated side totals of a round. Missing fields read
// as zero.
func (r *RoundRepository) Totals(ctx context.Context, roundID int64) (domain.RoundTotals, error) {
	h, err := r.kv.HGetAll(ctx, totalsKey(roundID))
	if err != nil {
		return domain.RoundTotals{}, fmt.Errorf("round_repo.Totals: %w", err)
	}
	get := func(field string) int64 {
		n, _ := strconv.ParseInt(h[field], 10, 64)
		return n
	}
	return domain.RoundTotals{
		LongAmountNano:  get(fieldLongAmount),
		ShortAmountNano: get(fieldShortAmount),
		LongCount:       get(fieldLongCount),
		ShortCount:      get(fieldShortCount),
	}, nil
}

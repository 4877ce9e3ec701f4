package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/tonpulse/pulse/internal/config"
	"github.com/tonpulse/pulse/internal/domain"
	"github.com/tonpulse/pulse/internal/repository"
	"github.com/tonpulse/pulse/internal/ton"
)

// Settlement and deposit status strings returned to clients. Pending is not
// an error: callers poll settle until the round finishes.
const (
	StatusPending         = "pending"
	StatusSettled         = "settled"
	StatusAlreadySettled  = "already_settled"
	StatusCredited        = "credited"
	StatusAlreadyCredited = "already_credited"
)

// ──────────────────────────────────────────────────────────────────────────────
// Result types
// ──────────────────────────────────────────────────────────────────────────────

// SettleResult reports the outcome of a settlement call.
type SettleResult struct {
	Status      string      `json:"status"`
	Pct         float64     `json:"pct,omitempty"`
	Side        domain.Side `json:"side,omitempty"`
	ReturnedTon float64     `json:"returnedTon"`
	ProfitTon   float64     `json:"profitTon"`
}

// DepositResult reports a deposit credit.
type DepositResult struct {
	Status      string  `json:"status"`
	CreditedTon float64 `json:"creditedTon"`
}

// RoundInfo is the timing block of the current round.
type RoundInfo struct {
	RoundID int64 `json:"roundId"`
	StartAt int64 `json:"startAt"`
	EndAt   int64 `json:"endAt"`  // bet window close
	NextAt  int64 `json:"nextAt"` // round finish / next round start
}

// StateResult is the poll-friendly snapshot of the game.
type StateResult struct {
	ServerNow int64                 `json:"serverNow"`
	BetMS     int64                 `json:"betMs"`
	RoundMS   int64                 `json:"roundMs"`
	Round     RoundInfo             `json:"round"`
	History   []domain.HistoryEntry `json:"history"`
}

// SeriesResult carries the visible display curve of the current round.
type SeriesResult struct {
	ServerNow int64        `json:"serverNow"`
	BetMS     int64        `json:"betMs"`
	PlayMS    int64        `json:"playMs"`
	RoundMS   int64        `json:"roundMs"`
	RoundID   int64        `json:"roundId"`
	Series    [][2]float64 `json:"series"`
}

// RoundBetsResult is the public per-round bet feed with side totals.
type RoundBetsResult struct {
	RoundID    int64        `json:"roundId"`
	LongTon    float64      `json:"longTon"`
	ShortTon   float64      `json:"shortTon"`
	LongCount  int64        `json:"longCount"`
	ShortCount int64        `json:"shortCount"`
	Bets       []domain.Bet `json:"bets"`
}

// ──────────────────────────────────────────────────────────────────────────────
// GameService
// ──────────────────────────────────────────────────────────────────────────────

// GameService is the round settlement engine. Each method is an independent
// stateless request handler body: phase checks against the clock, balance and
// bet mutations through the ledger, outcome reads through the oracle. All
// cross-caller coordination lives in the store's atomic primitives — the
// service itself holds no locks and no round state.
type GameService struct {
	ledger *repository.LedgerRepository
	rounds *repository.RoundRepository
	oracle *OutcomeOracle
	series *SeriesRenderer
	cfg    *config.Config
	clock  domain.Clock
	logger *slog.Logger

	// nowMS is the time source in unix ms. Overridable so tests can walk a
	// round through its phases deterministically.
	nowMS func() int64
}

// NewGameService creates a GameService.
func NewGameService(
	ledger *repository.LedgerRepository,
	rounds *repository.RoundRepository,
	oracle *OutcomeOracle,
	series *SeriesRenderer,
	cfg *config.Config,
	logger *slog.Logger,
) *GameService {
	return &GameService{
		ledger: ledger,
		rounds: rounds,
		oracle: oracle,
		series: series,
		cfg:    cfg,
		clock:  cfg.Clock(),
		logger: logger,
		nowMS:  func() int64 { return time.Now().UnixMilli() },
	}
}

// SetNowFunc overrides the time source. Test hook.
func (s *GameService) SetNowFunc(now func() int64) { s.nowMS = now }

// normalizeUser maps a raw address to the canonical ledger key.
func normalizeUser(raw string) (string, error) {
	user, err := ton.Normalize(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrBadAddress, err)
	}
	return user, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Balance / deposits
// ──────────────────────────────────────────────────────────────────────────────

// Balance returns a user's balance in TON. Unknown users have balance 0.
func (s *GameService) Balance(ctx context.Context, rawAddr string) (float64, error) {
	user, err := normalizeUser(rawAddr)
	if err != nil {
		return 0, err
	}
	nano, err := s.ledger.Balance(ctx, user)
	if err != nil {
		return 0, fmt.Errorf("game_service.Balance: %w", err)
	}
	return domain.FromNano(nano), nil
}

// DepositCredit credits a confirmed deposit to a user's balance. A non-empty
// comment acts as the dedup key: crediting the same comment twice within the
// dedup window returns already_credited without re-mutating.
func (s *GameService) DepositCredit(ctx context.Context, rawAddr string, amountTon float64, comment string) (DepositResult, error) {
	user, err := normalizeUser(rawAddr)
	if err != nil {
		return DepositResult{}, err
	}
	nano, err := domain.ToNano(amountTon)
	if err != nil {
		return DepositResult{}, err
	}

	if comment != "" {
		claimed, err := s.ledger.ClaimDeposit(ctx, comment, s.cfg.Game.DepositDedupTTL)
		if err != nil {
			return DepositResult{}, fmt.Errorf("game_service.DepositCredit: %w", err)
		}
		if !claimed {
			return DepositResult{Status: StatusAlreadyCredited}, nil
		}
	}

	if _, err := s.ledger.Credit(ctx, user, nano); err != nil {
		return DepositResult{}, fmt.Errorf("game_service.DepositCredit: %w", err)
	}
	s.logger.Info("deposit credited", "user", user, "nano", nano)
	return DepositResult{Status: StatusCredited, CreditedTon: domain.FromNano(nano)}, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// PlaceBet
// ──────────────────────────────────────────────────────────────────────────────

// PlaceBet places or replaces the user's bet in the current round. All
// validation happens before any mutation. Replacement refunds the prior
// stake first, so resizing an open position only needs funds for the net
// difference; if the new stake still cannot be covered the refund is undone
// and the prior bet stays in force.
func (s *GameService) PlaceBet(ctx context.Context, rawAddr string, roundID int64, side string, amountTon float64) (replaced bool, err error) {
	parsedSide, err := domain.ParseSide(side)
	if err != nil {
		return false, err
	}
	nano, err := domain.ToNano(amountTon)
	if err != nil {
		return false, err
	}
	user, err := normalizeUser(rawAddr)
	if err != nil {
		return false, err
	}

	now := s.nowMS()
	if roundID != s.clock.RoundIDAt(now) {
		return false, domain.ErrBadRound
	}
	if now >= s.clock.BetEndAt(roundID) {
		return false, domain.ErrBetsClosed
	}

	old, hadOld, err := s.ledger.Bet(ctx, roundID, user)
	if err != nil {
		return false, fmt.Errorf("game_service.PlaceBet: %w", err)
	}

	// Refund-then-debit: the old stake returns to the balance before the new
	// stake is checked against it.
	if hadOld {
		if _, err := s.ledger.Credit(ctx, user, old.AmountNano); err != nil {
			return false, fmt.Errorf("game_service.PlaceBet: refund: %w", err)
		}
	}
	if err := s.ledger.DebitIfSufficient(ctx, user, nano); err != nil {
		if hadOld {
			if _, derr := s.ledger.Debit(ctx, user, old.AmountNano); derr != nil {
				return false, fmt.Errorf("game_service.PlaceBet: restore stake: %w", derr)
			}
		}
		return false, err
	}

	bet := &domain.Bet{
		RoundID:    roundID,
		Address:    user,
		Side:       parsedSide,
		AmountNano: nano,
		PlacedAt:   now,
	}
	if err := s.ledger.PutBet(ctx, bet, s.cfg.Game.BetTTL); err != nil {
		return false, fmt.Errorf("game_service.PlaceBet: store bet: %w", err)
	}

	// Public feed and totals are display-only; their failure never fails the
	// bet itself.
	s.publishBet(ctx, bet, old)

	return hadOld, nil
}

// publishBet maintains the public bet feed and side totals, reversing the
// replaced bet's contribution when there was one.
func (s *GameService) publishBet(ctx context.Context, bet, replaced *domain.Bet) {
	ttl := s.cfg.Game.BetTTL
	if replaced != nil {
		if err := s.rounds.AddTotals(ctx, replaced.RoundID, replaced.Side, -replaced.AmountNano, -1, ttl); err != nil {
			s.logger.Warn("bet totals reverse failed", "round", replaced.RoundID, "err", err)
		}
	}
	if err := s.rounds.AddTotals(ctx, bet.RoundID, bet.Side, bet.AmountNano, 1, ttl); err != nil {
		s.logger.Warn("bet totals update failed", "round", bet.RoundID, "err", err)
	}
	if err := s.rounds.AppendBetFeed(ctx, bet, ttl); err != nil {
		s.logger.Warn("bet feed append failed", "round", bet.RoundID, "err", err)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// CancelBet
// ──────────────────────────────────────────────────────────────────────────────

// CancelBet refunds and deletes the user's bet. Only the current round's bet
// can be cancelled, and only while its bet window is open.
func (s *GameService) CancelBet(ctx context.Context, rawAddr string, roundID int64) (refundedTon float64, err error) {
	user, err := normalizeUser(rawAddr)
	if err != nil {
		return 0, err
	}

	now := s.nowMS()
	if roundID != s.clock.RoundIDAt(now) {
		return 0, domain.ErrNotCurrentRound
	}
	if now >= s.clock.BetEndAt(roundID) {
		return 0, domain.ErrBetsClosed
	}

	bet, ok, err := s.ledger.Bet(ctx, roundID, user)
	if err != nil {
		return 0, fmt.Errorf("game_service.CancelBet: %w", err)
	}
	if !ok {
		return 0, domain.ErrNoBet
	}

	if _, err := s.ledger.Credit(ctx, user, bet.AmountNano); err != nil {
		return 0, fmt.Errorf("game_service.CancelBet: refund: %w", err)
	}
	if err := s.ledger.DeleteBet(ctx, roundID, user); err != nil {
		return 0, fmt.Errorf("game_service.CancelBet: delete: %w", err)
	}

	if err := s.rounds.AddTotals(ctx, roundID, bet.Side, -bet.AmountNano, -1, s.cfg.Game.BetTTL); err != nil {
		s.logger.Warn("bet totals reverse failed", "round", roundID, "err", err)
	}

	return domain.FromNano(bet.AmountNano), nil
}

// ──────────────────────────────────────────────────────────────────────────────
// SettleBet
// ──────────────────────────────────────────────────────────────────────────────

// SettleBet pays out the user's bet against the committed outcome. Exactly
// once: the settlement marker is claimed with a conditional set before any
// credit, so only one of any number of racing callers pays. Calls before the
// round finishes return pending and mutate nothing.
func (s *GameService) SettleBet(ctx context.Context, rawAddr string, roundID int64) (SettleResult, error) {
	user, err := normalizeUser(rawAddr)
	if err != nil {
		return SettleResult{}, err
	}
	if roundID < 0 {
		return SettleResult{}, domain.ErrBadRound
	}

	bet, ok, err := s.ledger.Bet(ctx, roundID, user)
	if err != nil {
		return SettleResult{}, fmt.Errorf("game_service.SettleBet: %w", err)
	}
	if !ok {
		return SettleResult{}, domain.ErrNoBet
	}

	if s.nowMS() < s.clock.FinishAt(roundID) {
		return SettleResult{Status: StatusPending}, nil
	}

	settled, err := s.ledger.IsSettled(ctx, roundID, user)
	if err != nil {
		return SettleResult{}, fmt.Errorf("game_service.SettleBet: %w", err)
	}
	if settled {
		return SettleResult{Status: StatusAlreadySettled}, nil
	}

	pct, err := s.oracle.Outcome(ctx, roundID)
	if err != nil {
		return SettleResult{}, fmt.Errorf("game_service.SettleBet: outcome: %w", err)
	}

	claimed, err := s.ledger.ClaimSettlement(ctx, roundID, user, s.cfg.Game.BetTTL)
	if err != nil {
		return SettleResult{}, fmt.Errorf("game_service.SettleBet: claim: %w", err)
	}
	if !claimed {
		return SettleResult{Status: StatusAlreadySettled}, nil
	}

	returned := domain.Payout(bet.Side, bet.AmountNano, pct)
	if returned > 0 {
		if _, err := s.ledger.Credit(ctx, user, returned); err != nil {
			return SettleResult{}, fmt.Errorf("game_service.SettleBet: credit: %w", err)
		}
	}

	profit := returned - bet.AmountNano
	s.logger.Info("bet settled",
		"user", user, "round", roundID, "side", bet.Side,
		"pct", pct, "returnedNano", returned, "profitNano", profit)

	return SettleResult{
		Status:      StatusSettled,
		Pct:         pct,
		Side:        bet.Side,
		ReturnedTon: domain.FromNano(returned),
		ProfitTon:   domain.FromNano(profit),
	}, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────────────────────────

// State returns the current round timing and recent history. It also
// finalizes the just-elapsed round's history entry opportunistically.
func (s *GameService) State(ctx context.Context) (StateResult, error) {
	now := s.nowMS()
	s.FinalizeElapsed(ctx, now)

	id := s.clock.RoundIDAt(now)
	history, err := s.rounds.History(ctx, s.cfg.Game.HistoryLen)
	if err != nil {
		return StateResult{}, fmt.Errorf("game_service.State: %w", err)
	}

	return StateResult{
		ServerNow: now,
		BetMS:     s.cfg.Game.BetMS,
		RoundMS:   s.cfg.Game.RoundMS,
		Round: RoundInfo{
			RoundID: id,
			StartAt: s.clock.StartAt(id),
			EndAt:   s.clock.BetEndAt(id),
			NextAt:  s.clock.FinishAt(id),
		},
		History: history,
	}, nil
}

// Series returns the current round's visible display curve. Rendering
// commits the round outcome as a side effect, which is what makes the curve
// converge to the value settlement will pay against.
func (s *GameService) Series(ctx context.Context) (SeriesResult, error) {
	now := s.nowMS()
	s.FinalizeElapsed(ctx, now)

	id := s.clock.RoundIDAt(now)
	pct, err := s.oracle.Outcome(ctx, id)
	if err != nil {
		return SeriesResult{}, fmt.Errorf("game_service.Series: %w", err)
	}

	return SeriesResult{
		ServerNow: now,
		BetMS:     s.cfg.Game.BetMS,
		PlayMS:    s.clock.PlayMS(),
		RoundMS:   s.cfg.Game.RoundMS,
		RoundID:   id,
		Series:    s.series.Render(id, now, pct),
	}, nil
}

// RoundBets returns the public bet feed and side totals for a round.
func (s *GameService) RoundBets(ctx context.Context, roundID int64) (RoundBetsResult, error) {
	if roundID < 0 {
		return RoundBetsResult{}, domain.ErrBadRound
	}
	totals, err := s.rounds.Totals(ctx, roundID)
	if err != nil {
		return RoundBetsResult{}, fmt.Errorf("game_service.RoundBets: %w", err)
	}
	bets, err := s.rounds.BetFeed(ctx, roundID, 200)
	if err != nil {
		return RoundBetsResult{}, fmt.Errorf("game_service.RoundBets: %w", err)
	}
	if bets == nil {
		bets = []domain.Bet{}
	}
	return RoundBetsResult{
		RoundID:    roundID,
		LongTon:    domain.FromNano(totals.LongAmountNano),
		ShortTon:   domain.FromNano(totals.ShortAmountNano),
		LongCount:  totals.LongCount,
		ShortCount: totals.ShortCount,
		Bets:       bets,
	}, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// History finalize
// ──────────────────────────────────────────────────────────────────────────────

// FinalizeElapsed records the previous round's outcome in the history log if
// nobody has yet. Safe to call from any request path or the broadcast loop;
// the per-round conditional marker keeps the log duplicate-free. Errors are
// logged, not surfaced — finalization is retried by the next caller.
func (s *GameService) FinalizeElapsed(ctx context.Context, nowMS int64) {
	prev := s.clock.RoundIDAt(nowMS) - 1
	if prev < 0 {
		return
	}
	pct, err := s.oracle.Outcome(ctx, prev)
	if err != nil {
		s.logger.Warn("history finalize: outcome", "round", prev, "err", err)
		return
	}
	entry := domain.HistoryEntry{
		RoundID: prev,
		Pct:     math.Round(pct),
		TS:      nowMS,
	}
	if _, err := s.rounds.RecordHistoryOnce(ctx, entry, s.cfg.Game.HistoryLen, s.cfg.Game.HistoryTTL); err != nil {
		s.logger.Warn("history finalize: record", "round", prev, "err", err)
	}
}

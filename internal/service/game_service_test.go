package service_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/tonpulse/pulse/internal/config"
	"github.com/tonpulse/pulse/internal/domain"
	"github.com/tonpulse/pulse/internal/repository"
	"github.com/tonpulse/pulse/internal/service"
	"github.com/tonpulse/pulse/internal/store"
)

// testGame is a fully wired GameService over an in-memory store with a
// manually driven clock.
type testGame struct {
	svc *service.GameService
	kv  *store.MemoryKV
	cfg *config.Config
	now int64
}

func newTestGame(t *testing.T) *testGame {
	t.Helper()

	cfg := testConfig()
	kv := store.NewMemoryKV()
	ledger := repository.NewLedgerRepository(kv)
	rounds := repository.NewRoundRepository(kv)
	oracle := service.NewOutcomeOracle(rounds, cfg)
	renderer := service.NewSeriesRenderer(oracle, cfg)

	tg := &testGame{
		svc: service.NewGameService(ledger, rounds, oracle, renderer, cfg, testLogger()),
		kv:  kv,
		cfg: cfg,
	}
	tg.svc.SetNowFunc(func() int64 { return tg.now })
	return tg
}

// setNow moves the game clock to an absolute unix-ms instant.
func (tg *testGame) setNow(ms int64) { tg.now = ms }

// openRound places the clock at the start of roundID's bet window and
// returns the round id for convenience.
func (tg *testGame) openRound(roundID int64) int64 {
	tg.setNow(roundID * tg.cfg.Game.RoundMS)
	return roundID
}

func (tg *testGame) mustBalance(t *testing.T, user string) float64 {
	t.Helper()
	bal, err := tg.svc.Balance(context.Background(), user)
	if err != nil {
		t.Fatalf("Balance(%s): %v", user, err)
	}
	return bal
}

func (tg *testGame) deposit(t *testing.T, user string, ton float64) {
	t.Helper()
	if _, err := tg.svc.DepositCredit(context.Background(), user, ton, ""); err != nil {
		t.Fatalf("DepositCredit(%s, %v): %v", user, ton, err)
	}
}

// ── Placement ─────────────────────────────────────────────────────────────────

func TestPlaceBet_DebitsAndReplaces(t *testing.T) {
	tg := newTestGame(t)
	ctx := context.Background()
	rid := tg.openRound(100)

	tg.deposit(t, "guest", 10)

	replaced, err := tg.svc.PlaceBet(ctx, "guest", rid, "long", 5)
	if err != nil {
		t.Fatalf("first place: %v", err)
	}
	if replaced {
		t.Error("first place reported replaced=true")
	}
	if bal := tg.mustBalance(t, "guest"); bal != 5 {
		t.Errorf("balance after place = %v, want 5", bal)
	}

	// Replacement refunds the 5 and debits 3: net balance 7.
	replaced, err = tg.svc.PlaceBet(ctx, "guest", rid, "short", 3)
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if !replaced {
		t.Error("replacement reported replaced=false")
	}
	if bal := tg.mustBalance(t, "guest"); bal != 7 {
		t.Errorf("balance after replace = %v, want 7", bal)
	}
}

func TestPlaceBet_InsufficientFundsKeepsOldBet(t *testing.T) {
	tg := newTestGame(t)
	ctx := context.Background()
	rid := tg.openRound(100)

	tg.deposit(t, "guest", 10)
	if _, err := tg.svc.PlaceBet(ctx, "guest", rid, "long", 3); err != nil {
		t.Fatal(err)
	}

	// 20 > 7 + refunded 3: rejected, and the original 3 TON bet survives.
	_, err := tg.svc.PlaceBet(ctx, "guest", rid, "long", 20)
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
	if bal := tg.mustBalance(t, "guest"); bal != 7 {
		t.Errorf("balance after rejection = %v, want 7", bal)
	}

	refunded, err := tg.svc.CancelBet(ctx, "guest", rid)
	if err != nil {
		t.Fatalf("cancel after rejection: %v", err)
	}
	if refunded != 3 {
		t.Errorf("refunded = %v, want the original 3", refunded)
	}
}

func TestPlaceBet_RejectsBadInputWithoutDebit(t *testing.T) {
	tg := newTestGame(t)
	ctx := context.Background()
	rid := tg.openRound(100)
	tg.deposit(t, "guest", 10)

	cases := []struct {
		name    string
		address string
		round   int64
		side    string
		amount  float64
		want    error
	}{
		{"bad side", "guest", rid, "sideways", 5, domain.ErrBadSide},
		{"zero amount", "guest", rid, "long", 0, domain.ErrBadAmount},
		{"negative amount", "guest", rid, "long", -5, domain.ErrBadAmount},
		{"nan amount", "guest", rid, "long", math.NaN(), domain.ErrBadAmount},
		{"future round", "guest", rid + 1, "long", 5, domain.ErrBadRound},
		{"past round", "guest", rid - 1, "long", 5, domain.ErrBadRound},
		{"garbage address", "not-a-ton-address", rid, "long", 5, domain.ErrBadAddress},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tg.svc.PlaceBet(ctx, tt.address, tt.round, tt.side, tt.amount)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	if bal := tg.mustBalance(t, "guest"); bal != 10 {
		t.Errorf("balance mutated by rejected placements: %v", bal)
	}
}

func TestPlaceBet_ClosedWindow(t *testing.T) {
	tg := newTestGame(t)
	ctx := context.Background()
	rid := tg.openRound(100)
	tg.deposit(t, "guest", 10)

	// Exactly at betEnd the window is closed.
	tg.setNow(rid*tg.cfg.Game.RoundMS + tg.cfg.Game.BetMS)
	_, err := tg.svc.PlaceBet(ctx, "guest", rid, "long", 5)
	if !errors.Is(err, domain.ErrBetsClosed) {
		t.Fatalf("err = %v, want ErrBetsClosed", err)
	}
}

// ── Cancellation ──────────────────────────────────────────────────────────────

func TestCancelBet_RestoresBalance(t *testing.T) {
	tg := newTestGame(t)
	ctx := context.Background()
	rid := tg.openRound(100)
	tg.deposit(t, "guest", 10)

	if _, err := tg.svc.PlaceBet(ctx, "guest", rid, "long", 4); err != nil {
		t.Fatal(err)
	}

	refunded, err := tg.svc.CancelBet(ctx, "guest", rid)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if refunded != 4 {
		t.Errorf("refunded = %v, want 4", refunded)
	}
	if bal := tg.mustBalance(t, "guest"); bal != 10 {
		t.Errorf("balance = %v, want the pre-bet 10", bal)
	}

	// Second cancel finds nothing.
	if _, err := tg.svc.CancelBet(ctx, "guest", rid); !errors.Is(err, domain.ErrNoBet) {
		t.Errorf("second cancel err = %v, want ErrNoBet", err)
	}
}

func TestCancelBet_ClosedWindow(t *testing.T) {
	tg := newTestGame(t)
	ctx := context.Background()
	rid := tg.openRound(100)
	tg.deposit(t, "guest", 10)

	if _, err := tg.svc.PlaceBet(ctx, "guest", rid, "long", 4); err != nil {
		t.Fatal(err)
	}

	tg.setNow(rid*tg.cfg.Game.RoundMS + tg.cfg.Game.BetMS + 1)
	if _, err := tg.svc.CancelBet(ctx, "guest", rid); !errors.Is(err, domain.ErrBetsClosed) {
		t.Errorf("err = %v, want ErrBetsClosed", err)
	}

	// A stale cancel against an old round is not-current, not closed.
	tg.setNow((rid + 1) * tg.cfg.Game.RoundMS)
	if _, err := tg.svc.CancelBet(ctx, "guest", rid); !errors.Is(err, domain.ErrNotCurrentRound) {
		t.Errorf("err = %v, want ErrNotCurrentRound", err)
	}
}

// ── Settlement ────────────────────────────────────────────────────────────────

func TestSettleBet_FullLifecycle(t *testing.T) {
	tg := newTestGame(t)
	ctx := context.Background()
	rid := tg.openRound(100)
	tg.deposit(t, "guest", 10)

	if _, err := tg.svc.PlaceBet(ctx, "guest", rid, "long", 5); err != nil {
		t.Fatal(err)
	}

	// Round still in PLAY: pending, nothing mutates.
	tg.setNow(rid*tg.cfg.Game.RoundMS + tg.cfg.Game.BetMS + 1000)
	res, err := tg.svc.SettleBet(ctx, "guest", rid)
	if err != nil {
		t.Fatalf("settle during play: %v", err)
	}
	if res.Status != service.StatusPending {
		t.Fatalf("status = %q, want pending", res.Status)
	}
	if bal := tg.mustBalance(t, "guest"); bal != 5 {
		t.Errorf("pending settle touched the balance: %v", bal)
	}

	// Round finished: one real settlement.
	tg.setNow((rid + 1) * tg.cfg.Game.RoundMS)
	res, err = tg.svc.SettleBet(ctx, "guest", rid)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if res.Status != service.StatusSettled {
		t.Fatalf("status = %q, want settled", res.Status)
	}
	if res.Side != domain.SideLong {
		t.Errorf("side = %q, want long", res.Side)
	}

	wantReturn := domain.FromNano(domain.Payout(domain.SideLong, 5*domain.NanoPerTon, res.Pct))
	if math.Abs(res.ReturnedTon-wantReturn) > 1e-9 {
		t.Errorf("returnedTon = %v, want %v for pct %v", res.ReturnedTon, wantReturn, res.Pct)
	}
	if math.Abs(res.ProfitTon-(res.ReturnedTon-5)) > 1e-9 {
		t.Errorf("profitTon = %v, want returned − stake", res.ProfitTon)
	}
	if bal := tg.mustBalance(t, "guest"); math.Abs(bal-(5+res.ReturnedTon)) > 1e-9 {
		t.Errorf("balance = %v, want %v", bal, 5+res.ReturnedTon)
	}

	// Replay pays nothing.
	res, err = tg.svc.SettleBet(ctx, "guest", rid)
	if err != nil {
		t.Fatalf("second settle: %v", err)
	}
	if res.Status != service.StatusAlreadySettled {
		t.Errorf("status = %q, want already_settled", res.Status)
	}
	if bal := tg.mustBalance(t, "guest"); math.Abs(bal-(5+wantReturn)) > 1e-9 {
		t.Errorf("replayed settle changed the balance: %v", bal)
	}
}

func TestSettleBet_NoBet(t *testing.T) {
	tg := newTestGame(t)
	tg.openRound(100)

	if _, err := tg.svc.SettleBet(context.Background(), "guest", 100); !errors.Is(err, domain.ErrNoBet) {
		t.Errorf("err = %v, want ErrNoBet", err)
	}
}

// ── Deposits ──────────────────────────────────────────────────────────────────

func TestDepositCredit_CommentDedup(t *testing.T) {
	tg := newTestGame(t)
	ctx := context.Background()

	first, err := tg.svc.DepositCredit(ctx, "guest", 10, "tx-abc")
	if err != nil {
		t.Fatal(err)
	}
	if first.Status != service.StatusCredited || first.CreditedTon != 10 {
		t.Fatalf("first credit = %+v", first)
	}

	second, err := tg.svc.DepositCredit(ctx, "guest", 10, "tx-abc")
	if err != nil {
		t.Fatal(err)
	}
	if second.Status != service.StatusAlreadyCredited {
		t.Errorf("second credit status = %q, want already_credited", second.Status)
	}
	if bal := tg.mustBalance(t, "guest"); bal != 10 {
		t.Errorf("balance = %v, want the single 10", bal)
	}
}

// ── State, history, feeds ─────────────────────────────────────────────────────

func TestState_RecordsPreviousRoundOnce(t *testing.T) {
	tg := newTestGame(t)
	ctx := context.Background()
	rid := tg.openRound(100)

	res, err := tg.svc.State(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Round.RoundID != rid {
		t.Errorf("roundId = %d, want %d", res.Round.RoundID, rid)
	}
	if res.Round.EndAt-res.Round.StartAt != tg.cfg.Game.BetMS {
		t.Errorf("bet window = %d ms", res.Round.EndAt-res.Round.StartAt)
	}

	if len(res.History) != 1 {
		t.Fatalf("history length = %d, want 1 (previous round)", len(res.History))
	}
	if res.History[0].RoundID != rid-1 {
		t.Errorf("history round = %d, want %d", res.History[0].RoundID, rid-1)
	}

	// Polling again does not duplicate the entry.
	res, err = tg.svc.State(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.History) != 1 {
		t.Errorf("history length after second poll = %d, want 1", len(res.History))
	}
}

func TestRoundBets_TotalsAndFeed(t *testing.T) {
	tg := newTestGame(t)
	ctx := context.Background()
	rid := tg.openRound(100)
	tg.deposit(t, "guest", 10)

	if _, err := tg.svc.PlaceBet(ctx, "guest", rid, "long", 5); err != nil {
		t.Fatal(err)
	}

	res, err := tg.svc.RoundBets(ctx, rid)
	if err != nil {
		t.Fatal(err)
	}
	if res.LongTon != 5 || res.LongCount != 1 {
		t.Errorf("long totals = %v TON / %d, want 5 / 1", res.LongTon, res.LongCount)
	}
	if res.ShortTon != 0 || res.ShortCount != 0 {
		t.Errorf("short totals = %v TON / %d, want 0 / 0", res.ShortTon, res.ShortCount)
	}
	if len(res.Bets) != 1 || res.Bets[0].Side != domain.SideLong {
		t.Fatalf("feed = %+v", res.Bets)
	}

	// Replacement keeps the totals consistent: one bet, new side and size.
	if _, err := tg.svc.PlaceBet(ctx, "guest", rid, "short", 2); err != nil {
		t.Fatal(err)
	}
	res, err = tg.svc.RoundBets(ctx, rid)
	if err != nil {
		t.Fatal(err)
	}
	if res.LongTon != 0 || res.LongCount != 0 {
		t.Errorf("long totals after replace = %v / %d, want 0 / 0", res.LongTon, res.LongCount)
	}
	if res.ShortTon != 2 || res.ShortCount != 1 {
		t.Errorf("short totals after replace = %v / %d, want 2 / 1", res.ShortTon, res.ShortCount)
	}
}

func TestSeries_ConvergesForFinishedRound(t *testing.T) {
	tg := newTestGame(t)
	ctx := context.Background()
	rid := tg.openRound(100)

	// Jump to just past the finish of rid; the current round is now rid+1,
	// but the previous round's outcome is committed and in the history.
	tg.setNow((rid + 1) * tg.cfg.Game.RoundMS)

	res, err := tg.svc.Series(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.RoundID != rid+1 {
		t.Errorf("series round = %d, want %d", res.RoundID, rid+1)
	}
	if len(res.Series) == 0 {
		t.Fatal("empty series")
	}
}

// Package scheduler manages the two background goroutines that run the
// round lifecycle push channel:
//  1. tickBroadcastLoop – pushes the latest chart point to WS clients on
//     every chart tick, and announces round results on rollover.
//  2. finalizeLoop      – safety net that records finished rounds into the
//     history log even when no requests arrive.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/tonpulse/pulse/internal/config"
	"github.com/tonpulse/pulse/internal/domain"
	"github.com/tonpulse/pulse/internal/service"
	"github.com/tonpulse/pulse/internal/ws"
)

// ──────────────────────────────────────────────────────────────────────────────
// WsHub interface — minimally required from the Hub
// ──────────────────────────────────────────────────────────────────────────────

// WsHub defines the broadcast operations the Scheduler needs from the WebSocket
// hub.  Declared here so the scheduler package does not depend on the ws/hub.go
// implementation directly.
type WsHub interface {
	BroadcastTick(msg ws.TickMessage)
	BroadcastRoundResult(msg ws.RoundResultMessage)
}

// ──────────────────────────────────────────────────────────────────────────────
// Scheduler
// ──────────────────────────────────────────────────────────────────────────────

// Scheduler runs the push-side of the game.  Rounds themselves need no
// scheduling — they are pure functions of the wall clock — so the loops only
// observe the clock and publish what any poller would have computed.
// Call Start(ctx) once from main(); cancel the context to shut it down.
type Scheduler struct {
	game   *service.GameService
	oracle *service.OutcomeOracle
	hub    WsHub
	cfg    *config.Config
	clock  domain.Clock
	logger *slog.Logger

	lastRoundID int64 // only touched by tickBroadcastLoop
}

// NewScheduler creates a Scheduler.
func NewScheduler(
	game *service.GameService,
	oracle *service.OutcomeOracle,
	hub WsHub,
	cfg *config.Config,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		game:        game,
		oracle:      oracle,
		hub:         hub,
		cfg:         cfg,
		clock:       cfg.Clock(),
		logger:      logger,
		lastRoundID: -1,
	}
}

// Start launches the background goroutines.  It returns immediately; all
// loops run until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	go s.tickBroadcastLoop(ctx)
	go s.finalizeLoop(ctx)
	s.logger.Info("scheduler started",
		"tickMs", s.cfg.Game.TickMS, "roundMs", s.cfg.Game.RoundMS)
}

// ──────────────────────────────────────────────────────────────────────────────
// tickBroadcastLoop
// ──────────────────────────────────────────────────────────────────────────────

// tickBroadcastLoop broadcasts the latest display-curve point on every chart
// tick.  When the round index advances it first announces the finished
// round's result.
func (s *Scheduler) tickBroadcastLoop(ctx context.Context) {
	defer s.recoverAndLog("tickBroadcastLoop")

	ticker := time.NewTicker(time.Duration(s.cfg.Game.TickMS) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("tickBroadcastLoop: shutting down")
			return
		case <-ticker.C:
			s.broadcastTick(ctx)
		}
	}
}

// broadcastTick is the inner body of tickBroadcastLoop, extracted so that
// the defer/recover in the loop catches panics correctly.
func (s *Scheduler) broadcastTick(ctx context.Context) {
	res, err := s.game.Series(ctx)
	if err != nil {
		s.logger.Warn("tickBroadcastLoop: series render failed", "err", err)
		return
	}

	if s.lastRoundID >= 0 && res.RoundID > s.lastRoundID {
		s.announceResult(ctx, res.RoundID-1, res.ServerNow)
	}
	s.lastRoundID = res.RoundID

	if len(res.Series) == 0 {
		return
	}
	last := res.Series[len(res.Series)-1]

	if s.hub != nil {
		s.hub.BroadcastTick(ws.TickMessage{
			Type:      ws.MsgTypeTick,
			ServerNow: res.ServerNow,
			RoundID:   res.RoundID,
			Phase:     s.clock.PhaseAt(res.ServerNow),
			StartAt:   s.clock.StartAt(res.RoundID),
			EndAt:     s.clock.BetEndAt(res.RoundID),
			NextAt:    s.clock.FinishAt(res.RoundID),
			T:         int64(last[0]),
			Y:         last[1],
		})
	}
}

// announceResult broadcasts the final percentage of a just-finished round.
func (s *Scheduler) announceResult(ctx context.Context, roundID, nowMS int64) {
	pct, err := s.oracle.Outcome(ctx, roundID)
	if err != nil {
		s.logger.Warn("tickBroadcastLoop: outcome read failed", "round", roundID, "err", err)
		return
	}
	s.logger.Info("round finished", "round", roundID, "pct", pct)
	if s.hub != nil {
		s.hub.BroadcastRoundResult(ws.RoundResultMessage{
			Type:      ws.MsgTypeRoundResult,
			RoundID:   roundID,
			Pct:       pct,
			Timestamp: nowMS,
		})
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// finalizeLoop
// ──────────────────────────────────────────────────────────────────────────────

// finalizeLoop records finished rounds into the history log every 5 seconds.
// Request paths do the same opportunistically; this loop keeps the history
// moving on an idle server.
func (s *Scheduler) finalizeLoop(ctx context.Context) {
	defer s.recoverAndLog("finalizeLoop")

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("finalizeLoop: shutting down")
			return
		case <-ticker.C:
			s.game.FinalizeElapsed(ctx, time.Now().UnixMilli())
		}
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Panic recovery
// ──────────────────────────────────────────────────────────────────────────────

// recoverAndLog is deferred inside each goroutine to catch unexpected panics,
// log them, and allow the scheduler to continue running.
func (s *Scheduler) recoverAndLog(loop string) {
	if r := recover(); r != nil {
		s.logger.Error("PANIC recovered in scheduler loop",
			"loop", loop, "panic", r)
	}
}

// Package main is the entry point for the TON pulse micro-betting API
// server.  It wires together the store, services, WebSocket hub, and
// background scheduler, and starts the HTTP server.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tonpulse/pulse/internal/api"
	"github.com/tonpulse/pulse/internal/config"
	"github.com/tonpulse/pulse/internal/repository"
	"github.com/tonpulse/pulse/internal/scheduler"
	"github.com/tonpulse/pulse/internal/service"
	"github.com/tonpulse/pulse/internal/store"
	"github.com/tonpulse/pulse/internal/ws"
)

func main() {
	// ── 1. Logger ─────────────────────────────────────────────────────────────
	cfg := config.MustLoad()

	var logHandler slog.Handler
	if cfg.IsProd() {
		logHandler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		logHandler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	logger.Info("starting pulse server", "env", cfg.Server.Env, "port", cfg.Server.Port)

	// ── 2. Store ──────────────────────────────────────────────────────────────
	kv, err := openStore(cfg)
	if err != nil {
		logger.Error("redis connection failed", "err", err)
		os.Exit(1)
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err = kv.Ping(pingCtx); err != nil {
		pingCancel()
		logger.Error("redis ping failed", "err", err)
		os.Exit(1)
	}
	pingCancel()
	logger.Info("redis connected")

	// ── 3. Repositories ───────────────────────────────────────────────────────
	ledgerRepo := repository.NewLedgerRepository(kv)
	roundRepo := repository.NewRoundRepository(kv)

	// ── 4. Services ───────────────────────────────────────────────────────────
	oracle := service.NewOutcomeOracle(roundRepo, cfg)
	renderer := service.NewSeriesRenderer(oracle, cfg)
	gameSvc := service.NewGameService(ledgerRepo, roundRepo, oracle, renderer, cfg, logger)

	// ── 5. WebSocket Hub ──────────────────────────────────────────────────────
	hub := ws.NewHub(cfg.Origins())

	// ── 6. Root context + signal handling ─────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go hub.Run()
	logger.Info("websocket hub started")

	// ── 7. Scheduler ──────────────────────────────────────────────────────────
	sched := scheduler.NewScheduler(gameSvc, oracle, hub, cfg, logger)
	sched.Start(ctx)

	// ── 8. HTTP Router ────────────────────────────────────────────────────────
	router := api.SetupRouter(api.RouterDeps{
		Game: gameSvc,
		Hub:  hub,
		Cfg:  cfg,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// ── 9. Start server ───────────────────────────────────────────────────────
	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
			stop() // trigger graceful shutdown
		}
	}()

	// ── 10. Graceful shutdown ─────────────────────────────────────────────────
	<-ctx.Done()
	logger.Info("shutdown signal received, draining connections…")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err = srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "err", err)
	}

	if err = kv.Close(); err != nil {
		logger.Error("redis close error", "err", err)
	}
	logger.Info("server stopped cleanly")
}

// openStore builds the Redis-backed store from either a full URL or
// addr/password/db fields. REDIS_URL wins when both are set.
func openStore(cfg *config.Config) (store.KV, error) {
	if cfg.Redis.URL != "" {
		return store.NewRedisKVFromURL(cfg.Redis.URL)
	}
	return store.NewRedisKV(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}), nil
}

// Package config provides application configuration loaded from environment
// variables. Construct it once in main() with MustLoad and pass it into
// constructors — nothing reads the environment after startup.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tonpulse/pulse/internal/domain"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sub-config structs
// ──────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           string        // e.g. "8080"
	Env            string        // "development" | "production"
	ReadTimeout    time.Duration // default 10s
	WriteTimeout   time.Duration // default 10s
	AllowedOrigins string        // comma-separated origins for prod CORS/WS; "" = allow all
}

// RedisConfig holds the key-value store connection settings.
type RedisConfig struct {
	URL      string // full redis:// URL; takes precedence when set
	Addr     string // host:port, default "localhost:6379"
	Password string
	DB       int
}

// GameConfig holds round timing, outcome range and retention settings.
type GameConfig struct {
	BetMS      int64   // bet window, default 7000
	RoundMS    int64   // full round, default 19000
	TickMS     int64   // series resolution, default 200
	MinY       float64 // outcome floor, default -100
	MaxY       float64 // outcome ceiling, default 200
	SeedSecret string  // salts the per-round outcome seed; mandatory in production

	HistoryLen      int           // bounded history length, default 18
	BetTTL          time.Duration // bet + settlement marker retention, default 24h
	HistoryTTL      time.Duration // history log retention, default 24h
	DepositDedupTTL time.Duration // deposit comment dedup window, default 1h
}

// TONConfig holds chain-facing settings the game treats as opaque inputs.
type TONConfig struct {
	TreasuryAddress string // deposit destination surfaced to clients
}

// ──────────────────────────────────────────────────────────────────────────────
// Top-level Config
// ──────────────────────────────────────────────────────────────────────────────

// Config is the root configuration object for the entire application.
type Config struct {
	Server ServerConfig
	Redis  RedisConfig
	Game   GameConfig
	TON    TONConfig
}

// IsProd returns true when running in the production environment.
func (c *Config) IsProd() bool {
	return c.Server.Env == "production"
}

// Origins splits the configured comma-separated origin list. An empty
// configuration yields nil, which downstream code treats as allow-all.
func (c *Config) Origins() []string {
	if c.Server.AllowedOrigins == "" {
		return nil
	}
	parts := strings.Split(c.Server.AllowedOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Clock builds the round clock from the configured timing windows.
func (c *Config) Clock() domain.Clock {
	return domain.Clock{RoundMS: c.Game.RoundMS, BetMS: c.Game.BetMS}
}

// Validate checks that all required configuration values are present and
// valid. Returns every validation error encountered, joined.
func (c *Config) Validate() error {
	var errs []error

	if c.Game.BetMS <= 0 || c.Game.RoundMS <= 0 {
		errs = append(errs, errors.New("GAME_BET_MS and GAME_ROUND_MS must be positive"))
	}
	if c.Game.BetMS >= c.Game.RoundMS {
		errs = append(errs, fmt.Errorf(
			"bet window must be shorter than the round (bet=%dms round=%dms)",
			c.Game.BetMS, c.Game.RoundMS,
		))
	}
	if c.Game.TickMS <= 0 {
		errs = append(errs, errors.New("GAME_TICK_MS must be positive"))
	}
	if c.Game.MinY >= c.Game.MaxY {
		errs = append(errs, fmt.Errorf(
			"outcome range is empty (min=%.1f max=%.1f)", c.Game.MinY, c.Game.MaxY,
		))
	}
	if c.Game.HistoryLen <= 0 {
		errs = append(errs, errors.New("GAME_HISTORY_LEN must be positive"))
	}

	// A predictable seed lets players pre-compute outcomes.
	if c.IsProd() && c.Game.SeedSecret == "" {
		errs = append(errs, errors.New("GAME_SEED_SECRET must be set in production"))
	}
	if c.IsProd() && c.Redis.URL == "" && c.Redis.Addr == "" {
		errs = append(errs, errors.New("REDIS_URL or REDIS_ADDR must be set in production"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// MustLoad loads and validates configuration. Intended for use in main().
// Panics on any error so misconfiguration is caught immediately at boot.
func MustLoad() *Config {
	cfg, err := load()
	if err != nil {
		panic(fmt.Sprintf("config: failed to load: %v", err))
	}
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("config: validation failed: %v", err))
	}
	return cfg
}

// ──────────────────────────────────────────────────────────────────────────────
// Internal loader
// ──────────────────────────────────────────────────────────────────────────────

func load() (*Config, error) {
	cfg := &Config{}

	// ── Server ────────────────────────────────────────────────────────────────
	cfg.Server = ServerConfig{
		Port:           getEnv("SERVER_PORT", "8080"),
		Env:            getEnv("ENVIRONMENT", "development"),
		ReadTimeout:    getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
		WriteTimeout:   getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
		AllowedOrigins: getEnv("ALLOWED_ORIGINS", ""),
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	redisDB, err := getInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("REDIS_DB: %w", err)
	}
	cfg.Redis = RedisConfig{
		URL:      getEnv("REDIS_URL", ""),
		Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       redisDB,
	}

	// ── Game ──────────────────────────────────────────────────────────────────
	betMS, err := getInt64("GAME_BET_MS", 7000)
	if err != nil {
		return nil, fmt.Errorf("GAME_BET_MS: %w", err)
	}
	roundMS, err := getInt64("GAME_ROUND_MS", 19000)
	if err != nil {
		return nil, fmt.Errorf("GAME_ROUND_MS: %w", err)
	}
	tickMS, err := getInt64("GAME_TICK_MS", 200)
	if err != nil {
		return nil, fmt.Errorf("GAME_TICK_MS: %w", err)
	}
	minY, err := getFloat("GAME_MIN_Y", -100)
	if err != nil {
		return nil, fmt.Errorf("GAME_MIN_Y: %w", err)
	}
	maxY, err := getFloat("GAME_MAX_Y", 200)
	if err != nil {
		return nil, fmt.Errorf("GAME_MAX_Y: %w", err)
	}
	historyLen, err := getInt("GAME_HISTORY_LEN", 18)
	if err != nil {
		return nil, fmt.Errorf("GAME_HISTORY_LEN: %w", err)
	}

	cfg.Game = GameConfig{
		BetMS:      betMS,
		RoundMS:    roundMS,
		TickMS:     tickMS,
		MinY:       minY,
		MaxY:       maxY,
		SeedSecret: getEnv("GAME_SEED_SECRET", "default_seed_change_me"),

		HistoryLen:      historyLen,
		BetTTL:          getDuration("GAME_BET_TTL", 24*time.Hour),
		HistoryTTL:      getDuration("GAME_HISTORY_TTL", 24*time.Hour),
		DepositDedupTTL: getDuration("GAME_DEPOSIT_DEDUP_TTL", time.Hour),
	}

	// ── TON ───────────────────────────────────────────────────────────────────
	cfg.TON = TONConfig{
		TreasuryAddress: getEnv("TON_TREASURY_ADDRESS", ""),
	}

	return cfg, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Helper functions
// ──────────────────────────────────────────────────────────────────────────────

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", v)
	}
	return n, nil
}

func getInt64(key string, defaultVal int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", v)
	}
	return n, nil
}

func getFloat(key string, defaultVal float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float %q", v)
	}
	return f, nil
}

// getDuration parses an env var as a Go duration string (e.g. "15m", "2s").
// Falls back to defaultVal if the variable is unset or unparseable.
func getDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tonpulse/pulse/internal/api/handler"
	"github.com/tonpulse/pulse/internal/api/middleware"
	"github.com/tonpulse/pulse/internal/config"
	"github.com/tonpulse/pulse/internal/service"
	"github.com/tonpulse/pulse/internal/ws"
)

// RouterDeps bundles every dependency needed to build the router.
// Populated once in main() and passed to SetupRouter.
type RouterDeps struct {
	Game *service.GameService
	Hub  *ws.Hub
	Cfg  *config.Config
}

// SetupRouter creates and configures the main Gin engine with all routes,
// middleware, CORS, and rate limiting rules.
func SetupRouter(deps RouterDeps) *gin.Engine {
	if deps.Cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())

	// ── CORS ─────────────────────────────────────────────────────────────────
	r.Use(corsMiddleware(deps.Cfg))

	// ── Health check ─────────────────────────────────────────────────────────
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "clients": deps.clientCount()})
	})

	// ── Handlers ─────────────────────────────────────────────────────────────
	betH := handler.NewBetHandler(deps.Game)
	walletH := handler.NewWalletHandler(deps.Game, deps.Cfg)
	roundH := handler.NewRoundHandler(deps.Game)

	// ── Rate limiters ─────────────────────────────────────────────────────────
	pollRL := middleware.RateLimitMiddleware(60) // state/series pollers tick fast
	betRL := middleware.RateLimitMiddleware(30)  // mutating endpoints

	api := r.Group("/api")
	api.Use(noStore())
	{
		// ── Read endpoints (public, generous rate limit) ─────────────────────
		reads := api.Group("")
		reads.Use(pollRL)
		{
			reads.GET("/state", roundH.State)
			reads.GET("/series", roundH.Series)
			reads.GET("/rounds/:roundId/bets", roundH.Bets)
			reads.GET("/balance", walletH.Balance)
			reads.GET("/deposit/info", walletH.DepositInfo)
		}

		// ── Mutating endpoints ────────────────────────────────────────────────
		writes := api.Group("")
		writes.Use(betRL)
		{
			writes.POST("/bet/place", betH.Place)
			writes.POST("/bet/cancel", betH.Cancel)
			writes.POST("/bet/settle", betH.Settle)
			writes.POST("/deposit/credit", walletH.DepositCredit)
		}
	}

	// ── WebSocket ─────────────────────────────────────────────────────────────
	if deps.Hub != nil {
		r.GET("/ws", func(c *gin.Context) {
			deps.Hub.ServeWs(c.Writer, c.Request)
		})
	}

	return r
}

func (d RouterDeps) clientCount() int {
	if d.Hub == nil {
		return 0
	}
	return d.Hub.ConnectedCount()
}

// noStore marks all API responses uncacheable. Round state is a function of
// server time; a cached response is a wrong response.
func noStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}

// ── CORS helper ───────────────────────────────────────────────────────────────

// corsMiddleware returns a gin middleware that sets appropriate CORS headers.
// In development all origins are allowed; in production only configured ones.
func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	allowed := make(map[string]bool)
	for _, o := range cfg.Origins() {
		allowed[o] = true
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if !cfg.IsProd() || len(allowed) == 0 {
			c.Header("Access-Control-Allow-Origin", "*")
		} else if origin != "" && allowed[origin] {
			c.Header("Access-Control-Allow-Origin", origin)
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

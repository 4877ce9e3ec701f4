package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/tonpulse/pulse/internal/service"
)

// RoundHandler serves round state, series, and public bet feed endpoints.
type RoundHandler struct {
	game *service.GameService
}

// NewRoundHandler creates a RoundHandler.
func NewRoundHandler(game *service.GameService) *RoundHandler {
	return &RoundHandler{game: game}
}

// State godoc
// GET /api/state
// Poll-friendly snapshot: round timing plus recent outcome history.
func (h *RoundHandler) State(c *gin.Context) {
	res, err := h.game.State(c.Request.Context())
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{
		"serverNow": res.ServerNow,
		"betMs":     res.BetMS,
		"roundMs":   res.RoundMS,
		"round":     res.Round,
		"history":   res.History,
	})
}

// Series godoc
// GET /api/series
// The visible display curve of the current round up to server-now.
func (h *RoundHandler) Series(c *gin.Context) {
	res, err := h.game.Series(c.Request.Context())
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{
		"serverNow": res.ServerNow,
		"betMs":     res.BetMS,
		"playMs":    res.PlayMS,
		"roundMs":   res.RoundMS,
		"roundId":   res.RoundID,
		"series":    res.Series,
	})
}

// Bets godoc
// GET /api/rounds/:roundId/bets
// Public per-round bet feed with side totals.
func (h *RoundHandler) Bets(c *gin.Context) {
	roundID, err := strconv.ParseInt(c.Param("roundId"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "bad_round", "roundId must be an integer")
		return
	}

	res, err := h.game.RoundBets(c.Request.Context(), roundID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{
		"roundId":    res.RoundID,
		"longTon":    res.LongTon,
		"shortTon":   res.ShortTon,
		"longCount":  res.LongCount,
		"shortCount": res.ShortCount,
		"bets":       res.Bets,
	})
}

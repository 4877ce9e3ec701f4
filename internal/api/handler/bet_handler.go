package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tonpulse/pulse/internal/service"
)

// BetHandler serves bet placement, cancellation, and settlement endpoints.
type BetHandler struct {
	game *service.GameService
}

// NewBetHandler creates a BetHandler.
func NewBetHandler(game *service.GameService) *BetHandler {
	return &BetHandler{game: game}
}

// Place godoc
// POST /api/bet/place
// Body: {"address":"EQ…","roundId":123,"side":"long","amountTon":5}
func (h *BetHandler) Place(c *gin.Context) {
	var body struct {
		Address   string  `json:"address"   binding:"required"`
		RoundID   int64   `json:"roundId"`
		Side      string  `json:"side"      binding:"required"`
		AmountTon float64 `json:"amountTon"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	replaced, err := h.game.PlaceBet(c.Request.Context(), body.Address, body.RoundID, body.Side, body.AmountTon)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"replaced": replaced})
}

// Cancel godoc
// POST /api/bet/cancel
// Body: {"address":"EQ…","roundId":123}
func (h *BetHandler) Cancel(c *gin.Context) {
	var body struct {
		Address string `json:"address" binding:"required"`
		RoundID int64  `json:"roundId"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	refunded, err := h.game.CancelBet(c.Request.Context(), body.Address, body.RoundID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"refundedTon": refunded})
}

// Settle godoc
// POST /api/bet/settle
// Body: {"address":"EQ…","roundId":123}
// Idempotent: callers poll until status leaves "pending".
func (h *BetHandler) Settle(c *gin.Context) {
	var body struct {
		Address string `json:"address" binding:"required"`
		RoundID int64  `json:"roundId"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	res, err := h.game.SettleBet(c.Request.Context(), body.Address, body.RoundID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{
		"status":      res.Status,
		"pct":         res.Pct,
		"side":        res.Side,
		"returnedTon": res.ReturnedTon,
		"profitTon":   res.ProfitTon,
	})
}

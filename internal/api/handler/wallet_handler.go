package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tonpulse/pulse/internal/config"
	"github.com/tonpulse/pulse/internal/service"
)

// WalletHandler serves balance reads and deposit credits.
type WalletHandler struct {
	game *service.GameService
	cfg  *config.Config
}

// NewWalletHandler creates a WalletHandler.
func NewWalletHandler(game *service.GameService, cfg *config.Config) *WalletHandler {
	return &WalletHandler{game: game, cfg: cfg}
}

// Balance godoc
// GET /api/balance?address=EQ…
func (h *WalletHandler) Balance(c *gin.Context) {
	address := c.Query("address")
	if address == "" {
		respondError(c, http.StatusBadRequest, "bad_address", "address query parameter is required")
		return
	}

	balance, err := h.game.Balance(c.Request.Context(), address)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"balanceTon": balance})
}

// DepositInfo godoc
// GET /api/deposit/info?address=EQ…
// Returns the treasury address and a per-user transfer comment the client
// embeds in the on-chain payment.
func (h *WalletHandler) DepositInfo(c *gin.Context) {
	address := c.Query("address")
	if address == "" {
		respondError(c, http.StatusBadRequest, "bad_address", "address query parameter is required")
		return
	}
	respondOK(c, http.StatusOK, gin.H{
		"treasury": h.cfg.TON.TreasuryAddress,
		"comment":  "pulse:" + address,
	})
}

// DepositCredit godoc
// POST /api/deposit/credit
// Body: {"address":"EQ…","amountTon":10,"comment":"tx-abc"}
// A non-empty comment deduplicates retries of the same transfer.
func (h *WalletHandler) DepositCredit(c *gin.Context) {
	var body struct {
		Address   string  `json:"address" binding:"required"`
		AmountTon float64 `json:"amountTon"`
		Comment   string  `json:"comment"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	res, err := h.game.DepositCredit(c.Request.Context(), body.Address, body.AmountTon, body.Comment)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{
		"status":      res.Status,
		"creditedTon": res.CreditedTon,
	})
}

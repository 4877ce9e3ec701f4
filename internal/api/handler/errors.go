package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tonpulse/pulse/internal/domain"
)

// codeFor maps a domain sentinel to its stable machine-readable error code.
var codeFor = map[error]string{
	domain.ErrBadAddress:        "bad_address",
	domain.ErrBadSide:           "bad_side",
	domain.ErrBadAmount:         "bad_amount",
	domain.ErrBadRound:          "bad_round",
	domain.ErrNotCurrentRound:   "not_current_round",
	domain.ErrBetsClosed:        "bets_closed",
	domain.ErrNoBet:             "no_bet",
	domain.ErrInsufficientFunds: "insufficient_funds",
}

// respondDomainError translates a service error to status + code + message.
// Anything outside the domain taxonomy is an infrastructure failure and
// surfaces as a generic 500 without leaking internals.
func respondDomainError(c *gin.Context, err error) {
	for sentinel, code := range codeFor {
		if errors.Is(err, sentinel) {
			respondError(c, statusFor(err), code, err.Error())
			return
		}
	}
	respondError(c, http.StatusInternalServerError, "internal", "internal error")
}

// statusFor picks the HTTP status by error class: validation and most state
// rejections are 400, a missing bet is 404, an uncovered stake is 402.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNoBet):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case domain.IsValidation(err) || domain.IsStateReject(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

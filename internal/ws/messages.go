// Package ws holds WebSocket message types and the Hub implementation.
// messages.go defines all message structs broadcast to connected clients.
package ws

import (
	"github.com/tonpulse/pulse/internal/domain"
)

// MsgType identifies the kind of WS message so clients can switch on it.
type MsgType string

const (
	MsgTypeTick        MsgType = "tick"
	MsgTypeBetPlaced   MsgType = "bet_placed"
	MsgTypeRoundResult MsgType = "round_result"
	MsgTypeError       MsgType = "error"
)

// ──────────────────────────────────────────────────────────────────────────────
// TickMessage — sent on every chart tick to all clients.
// ──────────────────────────────────────────────────────────────────────────────

// TickMessage carries the latest point of the current round's display curve
// and the round timing so clients can render the countdown without polling.
type TickMessage struct {
	Type      MsgType      `json:"type"`
	ServerNow int64        `json:"serverNow"`
	RoundID   int64        `json:"roundId"`
	Phase     domain.Phase `json:"phase"`
	StartAt   int64        `json:"startAt"`
	EndAt     int64        `json:"endAt"`  // bet window close
	NextAt    int64        `json:"nextAt"` // round finish
	T         int64        `json:"t"`      // timestamp of the latest point
	Y         float64      `json:"y"`      // value of the latest point
}

// ──────────────────────────────────────────────────────────────────────────────
// BetPlacedMessage — broadcast after a bet is accepted so feeds refresh.
// ──────────────────────────────────────────────────────────────────────────────

// BetPlacedMessage notifies all clients that a round's side totals changed.
type BetPlacedMessage struct {
	Type      MsgType     `json:"type"`
	RoundID   int64       `json:"roundId"`
	Side      domain.Side `json:"side"`
	AmountTon float64     `json:"amountTon"`
	Timestamp int64       `json:"ts"`
}

// ──────────────────────────────────────────────────────────────────────────────
// RoundResultMessage — broadcast when a round finishes.
// ──────────────────────────────────────────────────────────────────────────────

// RoundResultMessage tells clients the final percentage of a finished round.
type RoundResultMessage struct {
	Type      MsgType `json:"type"`
	RoundID   int64   `json:"roundId"`
	Pct       float64 `json:"pct"`
	Timestamp int64   `json:"ts"`
}

// ──────────────────────────────────────────────────────────────────────────────
// ErrorMessage — sent to a single client on a non-fatal error.
// ──────────────────────────────────────────────────────────────────────────────

// ErrorMessage is sent directly to one client (not broadcast).
type ErrorMessage struct {
	Type    MsgType `json:"type"`
	Code    string  `json:"code"`
	Message string  `json:"message"`
}

package domain

// HistoryEntry is one finalized round outcome in the bounded recent-history
// log (most-recent-first).
type HistoryEntry struct {
	RoundID int64   `json:"roundId"`
	Pct     float64 `json:"pct"`
	TS      int64   `json:"ts"` // unix ms the entry was recorded
}

// RoundTotals aggregates the public per-round bet feed by side. Amounts are
// in nano units.
type RoundTotals struct {
	LongAmountNano  int64 `json:"longAmountNano"`
	ShortAmountNano int64 `json:"shortAmountNano"`
	LongCount       int64 `json:"longCount"`
	ShortCount      int64 `json:"shortCount"`
}

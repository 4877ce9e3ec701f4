package domain_test

import (
	"errors"
	"math"
	"testing"

	"github.com/tonpulse/pulse/internal/domain"
)

// ── Side parsing ──────────────────────────────────────────────────────────────

func TestParseSide(t *testing.T) {
	tests := []struct {
		in      string
		want    domain.Side
		wantErr bool
	}{
		{"long", domain.SideLong, false},
		{"short", domain.SideShort, false},
		{"LONG", domain.SideLong, false},
		{"  Short ", domain.SideShort, false},
		{"up", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := domain.ParseSide(tt.in)
		if tt.wantErr {
			if !errors.Is(err, domain.ErrBadSide) {
				t.Errorf("ParseSide(%q) err = %v, want ErrBadSide", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseSide(%q) = %q, %v, want %q", tt.in, got, err, tt.want)
		}
	}
}

// ── TON ↔ nano conversion ─────────────────────────────────────────────────────

func TestToNano(t *testing.T) {
	tests := []struct {
		in      float64
		want    int64
		wantErr bool
	}{
		{1, 1_000_000_000, false},
		{0.5, 500_000_000, false},
		{2.5, 2_500_000_000, false},
		{0.000000001, 1, false}, // one nano
		{0, 0, true},
		{-1, 0, true},
		{math.NaN(), 0, true},
		{math.Inf(1), 0, true},
		{math.Inf(-1), 0, true},
	}
	for _, tt := range tests {
		got, err := domain.ToNano(tt.in)
		if tt.wantErr {
			if !errors.Is(err, domain.ErrBadAmount) {
				t.Errorf("ToNano(%v) err = %v, want ErrBadAmount", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ToNano(%v) = %d, %v, want %d", tt.in, got, err, tt.want)
		}
	}
}

func TestFromNano_RoundTrip(t *testing.T) {
	for _, ton := range []float64{0.1, 1, 5, 123.456789} {
		n, err := domain.ToNano(ton)
		if err != nil {
			t.Fatalf("ToNano(%v): %v", ton, err)
		}
		back := domain.FromNano(n)
		if math.Abs(back-ton) > 1e-9 {
			t.Errorf("round trip %v → %d → %v", ton, n, back)
		}
	}
}

// ── Payout math ───────────────────────────────────────────────────────────────

func TestPayout(t *testing.T) {
	const stake = 100 * domain.NanoPerTon // 100 TON

	tests := []struct {
		name string
		side domain.Side
		pct  float64
		want int64
	}{
		{"long wins +50%", domain.SideLong, 50, 150 * domain.NanoPerTon},
		{"short loses +50%", domain.SideShort, 50, 50 * domain.NanoPerTon},
		{"long loses -30%", domain.SideLong, -30, 70 * domain.NanoPerTon},
		{"short wins -30%", domain.SideShort, -30, 130 * domain.NanoPerTon},
		{"flat round returns stake", domain.SideLong, 0, stake},
		{"long wiped at -100%", domain.SideLong, -100, 0},
		{"short wiped at +100%", domain.SideShort, 100, 0},
		{"long doubled-plus at +200%", domain.SideLong, 200, 300 * domain.NanoPerTon},
		{"short clamped at +200%", domain.SideShort, 200, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := domain.Payout(tt.side, stake, tt.pct)
			if got != tt.want {
				t.Errorf("Payout(%s, %d, %v) = %d, want %d",
					tt.side, int64(stake), tt.pct, got, tt.want)
			}
		})
	}
}

// Payout never returns a negative amount, whatever the outcome.
func TestPayout_NeverNegative(t *testing.T) {
	for pct := -100.0; pct <= 200; pct += 7.3 {
		for _, side := range []domain.Side{domain.SideLong, domain.SideShort} {
			if got := domain.Payout(side, 3*domain.NanoPerTon, pct); got < 0 {
				t.Fatalf("Payout(%s, pct=%v) = %d, negative", side, pct, got)
			}
		}
	}
}

// ── Bet record validation ─────────────────────────────────────────────────────

func TestBet_Validate(t *testing.T) {
	good := domain.Bet{
		RoundID:    1,
		Address:    "guest",
		Side:       domain.SideLong,
		AmountNano: domain.NanoPerTon,
		PlacedAt:   1000,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("valid bet rejected: %v", err)
	}

	bad := []domain.Bet{
		{RoundID: 1, Address: "guest", Side: "sideways", AmountNano: 1},
		{RoundID: 1, Address: "guest", Side: domain.SideLong, AmountNano: 0},
		{RoundID: 1, Address: "", Side: domain.SideLong, AmountNano: 1},
	}
	for i, b := range bad {
		if err := b.Validate(); !errors.Is(err, domain.ErrCorruptRecord) {
			t.Errorf("case %d: err = %v, want ErrCorruptRecord", i, err)
		}
	}

	var nilBet *domain.Bet
	if err := nilBet.Validate(); !errors.Is(err, domain.ErrCorruptRecord) {
		t.Errorf("nil bet: err = %v, want ErrCorruptRecord", err)
	}
}

package service_test

import (
	"math"
	"testing"

	"github.com/tonpulse/pulse/internal/service"
	"github.com/tonpulse/pulse/internal/store"
)

func newRenderer() (*service.SeriesRenderer, *service.OutcomeOracle) {
	cfg := testConfig()
	oracle := newOracle(store.NewMemoryKV(), cfg)
	return service.NewSeriesRenderer(oracle, cfg), oracle
}

// ── Determinism ───────────────────────────────────────────────────────────────

// The curve is a pure function of (round, now, outcome): two renders of the
// same instant must be point-for-point identical.
func TestRender_Deterministic(t *testing.T) {
	r, _ := newRenderer()

	const rid = 12
	now := int64(rid*19000 + 9400)
	a := r.Render(rid, now, 37.5)
	b := r.Render(rid, now, 37.5)

	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("point %d differs: %v vs %v", i, a[i], b[i])
		}
	}
}

// A re-render later in the round must extend, not rewrite, the earlier
// prefix — pollers see a stable history.
func TestRender_PrefixStable(t *testing.T) {
	r, _ := newRenderer()

	const rid = 3
	start := int64(rid * 19000)
	early := r.Render(rid, start+4000, -12)
	late := r.Render(rid, start+15000, -12)

	if len(late) <= len(early) {
		t.Fatalf("later render not longer: %d vs %d", len(late), len(early))
	}
	for i := range early {
		if early[i] != late[i] {
			t.Fatalf("prefix rewritten at point %d: %v vs %v", i, early[i], late[i])
		}
	}
}

// ── Convergence ───────────────────────────────────────────────────────────────

// A finished round's curve must close exactly on the committed outcome.
func TestRender_ConvergesToOutcome(t *testing.T) {
	r, _ := newRenderer()

	const rid = 5
	finish := int64((rid + 1) * 19000)
	for _, pct := range []float64{-73.2, 0, 42.0, 183.9} {
		points := r.Render(rid, finish+500, pct)
		if len(points) == 0 {
			t.Fatal("empty series for finished round")
		}
		last := points[len(points)-1]
		if int64(last[0]) != finish {
			t.Errorf("pct %v: closing point at %v, want %d", pct, last[0], finish)
		}
		if math.Abs(last[1]-pct) > 0.001 {
			t.Errorf("pct %v: closing value %v", pct, last[1])
		}
	}
}

// ── Shape invariants ──────────────────────────────────────────────────────────

func TestRender_PointsWithinBoundsAndOrdered(t *testing.T) {
	r, _ := newRenderer()
	cfg := testConfig()

	const rid = 8
	start := int64(rid * 19000)
	points := r.Render(rid, start+18000, 160)

	prevT := math.Inf(-1)
	for i, p := range points {
		if p[0] <= prevT {
			t.Fatalf("point %d: timestamps not strictly increasing (%v after %v)", i, p[0], prevT)
		}
		prevT = p[0]
		if p[1] < cfg.Game.MinY || p[1] > cfg.Game.MaxY {
			t.Fatalf("point %d: value %v outside [%v, %v]", i, p[1], cfg.Game.MinY, cfg.Game.MaxY)
		}
	}
}

// Early in the bet phase the series is short; it never exceeds the full
// round's step count no matter how stale the clock.
func TestRender_VisibleWindow(t *testing.T) {
	r, _ := newRenderer()

	const rid = 2
	start := int64(rid * 19000)

	early := r.Render(rid, start, 10)
	if len(early) != 2 {
		t.Errorf("at round start: %d points, want 2", len(early))
	}

	const fullSteps = 19000 / 200
	wayPast := r.Render(rid, start+10*19000, 10)
	if len(wayPast) > fullSteps+2 {
		t.Errorf("stale render has %d points, want ≤ %d", len(wayPast), fullSteps+2)
	}
}

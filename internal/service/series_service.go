package service

import (
	"math"

	"github.com/tonpulse/pulse/internal/config"
	"github.com/tonpulse/pulse/internal/domain"
)

// SeriesRenderer generates the display curve for a round: a random walk that
// starts near zero and converges to the committed outcome by round end. The
// curve is cosmetic — settlement reads only the committed outcome — but it is
// regenerated deterministically from the round seed, so every caller and
// every refresh sees the same trajectory.
type SeriesRenderer struct {
	oracle *OutcomeOracle
	cfg    *config.Config
	clock  domain.Clock
}

// NewSeriesRenderer creates a SeriesRenderer.
func NewSeriesRenderer(oracle *OutcomeOracle, cfg *config.Config) *SeriesRenderer {
	return &SeriesRenderer{oracle: oracle, cfg: cfg, clock: cfg.Clock()}
}

// Render returns the visible [ts, value] points of roundID up to nowMS.
// finalPct must be the round's committed outcome. At and after finishAt the
// last point equals finalPct exactly — the convergence contract settlement
// UIs rely on.
func (s *SeriesRenderer) Render(roundID, nowMS int64, finalPct float64) [][2]float64 {
	var (
		startAt  = s.clock.StartAt(roundID)
		finishAt = s.clock.FinishAt(roundID)
		tick     = s.cfg.Game.TickMS
		minY     = s.cfg.Game.MinY
		maxY     = s.cfg.Game.MaxY
	)

	totalSteps := (finishAt - startAt) / tick
	if totalSteps < 30 {
		totalSteps = 30
	}
	visibleSteps := (nowMS - startAt) / tick
	if visibleSteps < 1 {
		visibleSteps = 1
	}
	if visibleSteps > totalSteps {
		visibleSteps = totalSteps
	}

	// Same generator seeding as the outcome draw, so the trajectory is a pure
	// function of the round.
	g := s.oracle.RNGFor(roundID)

	startVal := g.in(-3, 3)
	v := startVal

	points := make([][2]float64, 0, visibleSteps+2)
	for i := int64(0); i <= visibleSteps; i++ {
		t := startAt + i*tick
		p := float64(i) / float64(totalSteps)
		if p > 1 {
			p = 1
		}

		target := startVal + (finalPct-startVal)*p
		pull := (target - v) * 0.08
		noise := g.in(-1.1, 1.1) * (1 - p) * 0.6

		v = domain.ClampPct(v+pull+noise, minY, maxY)
		if t >= finishAt {
			v = finalPct
		}

		points = append(points, [2]float64{float64(t), round3(v)})
	}

	// Guarantee the committed value as the closing point of a finished round.
	if nowMS >= finishAt && points[len(points)-1][0] < float64(finishAt) {
		points = append(points, [2]float64{float64(finishAt), round3(finalPct)})
	}

	return points
}

// round3 truncates display values to 3 decimals to keep payloads compact.
func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

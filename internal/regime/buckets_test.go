package regime

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNorm() *AdaptiveNormalizer {
	cfg := DefaultConfig().Normalization
	return NewAdaptiveNormalizer(cfg, cfg.WindowDefault)
}

// trendingSeries returns n prices with a constant daily growth rate.
func trendingSeries(n int, start, dailyGrowth float64) []float64 {
	out := make([]float64, n)
	p := start
	for i := 0; i < n; i++ {
		out[i] = p
		p *= 1 + dailyGrowth
	}
	return out
}

func TestComputeMomentum_UptrendIsPositive(t *testing.T) {
	cfg := DefaultConfig().Momentum

	close := trendingSeries(250, 100, 0.01)
	high := make([]float64, len(close))
	low := make([]float64, len(close))
	for i, c := range close {
		high[i] = c * 1.01
		low[i] = c * 0.99
	}

	m := ComputeMomentum(cfg, close, high, low, nil, newNorm())
	assert.Greater(t, m.Value, 0.3, "a persistent uptrend must score clearly positive")
	assert.LessOrEqual(t, m.Value, 1.0)
	assert.Contains(t, m.Components, "absolute_momentum")
	assert.Greater(t, m.Components["absolute_momentum"], 0.9,
		"1 percent daily over 90d saturates the absolute term")
}

func TestComputeMomentum_DowntrendIsNegative(t *testing.T) {
	cfg := DefaultConfig().Momentum

	close := trendingSeries(250, 100000, -0.01)
	high := make([]float64, len(close))
	low := make([]float64, len(close))
	for i, c := range close {
		high[i] = c * 1.01
		low[i] = c * 0.99
	}

	m := ComputeMomentum(cfg, close, high, low, nil, newNorm())
	assert.Less(t, m.Value, -0.2, "a persistent downtrend must score negative")
	assert.GreaterOrEqual(t, m.Value, -1.0)
}

func TestComputeStability_CalmVsViolent(t *testing.T) {
	cfg := DefaultConfig().Stability

	n := 250
	calm := make([]float64, n)
	violent := make([]float64, n)
	volume := make([]float64, n)
	for i := 0; i < n; i++ {
		calm[i] = 100 + 0.1*float64(i%3)
		volume[i] = 1000
		if i%2 == 0 {
			violent[i] = 100
		} else {
			violent[i] = 115
		}
	}
	// Make the violence recent so the z-score sees a regime change
	copy(violent[:n-40], calm[:n-40])

	calmStab := ComputeStability(cfg, calm, volume, newNorm())
	violentStab := ComputeStability(cfg, violent, volume, newNorm())

	assert.Greater(t, violentStab.VolZ, calmStab.VolZ,
		"a recent volatility spike must raise vol_z")
	assert.Greater(t, calmStab.Value, violentStab.Value,
		"calm markets must score more stable")
	assert.GreaterOrEqual(t, violentStab.Value, -1.0)
	assert.LessOrEqual(t, calmStab.Value, 1.0)
}

func TestComputeRotation_ShortDominanceIsNeutral(t *testing.T) {
	cfg := DefaultConfig().Rotation
	r := ComputeRotation(cfg, make([]float64, 20), 0.0, newNorm())
	assert.Equal(t, 0.0, r.Value, "under 30 dominance samples must stay neutral")
	assert.True(t, r.ContextAdjusted, "the neutral fallback never passes as a measured base")
}

func TestComputeRotation_DampenedByAlignedMomentum(t *testing.T) {
	cfg := DefaultConfig().Rotation

	// Dominance flat then jumping in the last three days: the 7d
	// velocity spikes while acceleration stays quiet, so the base
	// signal is unambiguously positive
	dominance := make([]float64, 80)
	for i := range dominance {
		dominance[i] = 50
	}
	dominance[77], dominance[78], dominance[79] = 52, 55, 59

	neutral := ComputeRotation(cfg, dominance, 0.0, newNorm())
	require.Greater(t, neutral.Base, 0.0, "rising dominance must produce a positive base")

	damped := ComputeRotation(cfg, dominance, 0.8, newNorm())
	assert.Less(t, damped.Value, neutral.Value,
		"rotation aligned with strong momentum must be dampened")
	assert.True(t, damped.ContextAdjusted)
	assert.InDelta(t, neutral.Base, damped.Base, 1e-9, "dampening must not alter the base")
}

func TestComputeSentiment_FearGreedZones(t *testing.T) {
	cfg := DefaultConfig().Sentiment
	norm := newNorm()

	extremeFear := ComputeSentiment(cfg, 10, nil, nil, norm)
	assert.InDelta(t, -1.0*cfg.FearGreedWeight, extremeFear.Value, 1e-9)

	neutral := ComputeSentiment(cfg, 50, nil, nil, norm)
	assert.Equal(t, 0.0, neutral.Value)

	extremeGreed := ComputeSentiment(cfg, 90, nil, nil, norm)
	assert.InDelta(t, 1.0*cfg.FearGreedWeight, extremeGreed.Value, 1e-9)
}

func TestComputeSentiment_FundingShiftMoves(t *testing.T) {
	cfg := DefaultConfig().Sentiment

	// Funding flat then sharply positive in the recent window
	funding := make([]float64, 120)
	for i := 100; i < 120; i++ {
		funding[i] = 0.01
	}

	withFunding := ComputeSentiment(cfg, 50, funding, nil, newNorm())
	assert.Greater(t, withFunding.Value, 0.0, "recent positive funding must lift sentiment")
	assert.Greater(t, withFunding.Components["funding_score"], 0.0)
}

func TestComputeMacro_DisabledBelowMinimum(t *testing.T) {
	cfg := DefaultConfig().Macro
	norm := newNorm()
	macroNorm := NewAdaptiveNormalizer(DefaultConfig().Normalization, 180)

	m := ComputeMacro(cfg, make([]float64, 60), nil, nil, nil, norm, macroNorm)
	assert.True(t, m.Disabled, "one of four constituents is below the minimum")
	assert.Equal(t, 0.0, m.Value)
	assert.Equal(t, 1, m.Available)
	assert.Equal(t, 4, m.Total)
}

func TestComputeMacro_StrongDollarIsBearish(t *testing.T) {
	cfg := DefaultConfig().Macro
	norm := newNorm()
	macroNorm := NewAdaptiveNormalizer(DefaultConfig().Normalization, 180)

	// DXY spiking recently, 10y flat
	dxy := make([]float64, 120)
	us10y := make([]float64, 120)
	for i := range dxy {
		dxy[i] = 100
		us10y[i] = 4.0
	}
	for i := 110; i < 120; i++ {
		dxy[i] = 100 + 1.5*float64(i-109)
	}

	m := ComputeMacro(cfg, dxy, us10y, nil, nil, norm, macroNorm)
	require.False(t, m.Disabled)
	assert.Less(t, m.Value, 0.0, "a dollar spike must read as a macro headwind")
	assert.Less(t, m.Components["dollar_signal"], 0.0)
}

func TestComputeCrossAsset_BoostOnHighEquityCorrelation(t *testing.T) {
	cfg := DefaultConfig().CrossAsset

	n := 60
	asset := make([]float64, n)
	spx := make([]float64, n)
	gold := make([]float64, n)
	for i := 0; i < n; i++ {
		v := math.Sin(float64(i)/4.0) + 0.05*float64(i%7)
		asset[i] = v
		spx[i] = v * 2
		gold[i] = math.Cos(float64(i) / 9.0)
	}

	ca := ComputeCrossAsset(cfg, asset, spx, gold)
	assert.InDelta(t, 1.0, ca.CorrSPX, 0.01, "scaled copies correlate fully")
	assert.Equal(t, cfg.BoostMultiplier, ca.MacroWeightBoost,
		"high equity correlation must boost the macro weight")

	// Alternating returns against a monotone ramp correlate near zero
	alternating := make([]float64, n)
	ramp := make([]float64, n)
	for i := 0; i < n; i++ {
		alternating[i] = float64(1 - 2*(i%2))
		ramp[i] = float64(i)
	}
	decoupled := ComputeCrossAsset(cfg, alternating, ramp, gold)
	assert.Less(t, math.Abs(decoupled.CorrSPX), cfg.BoostThreshold)
	assert.Equal(t, 1.0, decoupled.MacroWeightBoost)
}

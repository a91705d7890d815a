package regime

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeCandles(closes []float64) []Candle {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]Candle, len(closes))
	for i, c := range closes {
		out[i] = Candle{
			OpenTime:    base.AddDate(0, 0, i),
			Open:        c,
			High:        c * 1.01,
			Low:         c * 0.99,
			Close:       c,
			QuoteVolume: 1000,
		}
	}
	return out
}

func calmInputs(n int) *Inputs {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + 0.1*float64(i%3)
	}
	return &Inputs{
		Candles:      makeCandles(closes),
		Completeness: 1.0,
		Timestamp:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestEngineColdStartFlagsReset(t *testing.T) {
	eng := NewEngine(DefaultConfig(), nil, false)

	snap := eng.Process(calmInputs(250))
	require.NotNil(t, snap)
	assert.False(t, snap.Emergency)
	assert.Contains(t, snap.RiskFlags, FlagStateReset,
		"a fresh state must be surfaced on the first snapshot")
	assert.InDelta(t, 1.0, snap.Probabilities.Sum(), 1e-6)
	assert.Equal(t, ModelVersion, snap.Metadata.ModelVersion)
	require.NotNil(t, snap.Metadata.Price)

	// The reset flag is one-shot
	next := eng.Process(calmInputs(250))
	assert.NotContains(t, next.RiskFlags, FlagStateReset)
}

func TestEngineEmergencyLeavesStateUntouched(t *testing.T) {
	st := NewState()
	st.CurrentRegime = Bull
	st.DaysInRegime = 5
	before := st.Clone()

	eng := NewEngine(DefaultConfig(), st, false)
	snap := eng.Process(&Inputs{
		Candles:      makeCandles([]float64{100, 101, 102}),
		Completeness: 1.0,
		Timestamp:    time.Now().UTC(),
	})

	require.NotNil(t, snap)
	assert.True(t, snap.Emergency)
	assert.Equal(t, Transition, snap.Regime)
	for _, r := range Regimes {
		assert.InDelta(t, 0.25, snap.Probabilities[r], 1e-9)
	}
	assert.Equal(t, 0.30, snap.ExposureCap)
	assert.Contains(t, snap.RiskFlags, FlagEmergencyPrefix+"INSUFFICIENT_DATA")

	assert.Equal(t, before.CurrentRegime, eng.State().CurrentRegime)
	assert.Equal(t, before.DaysInRegime, eng.State().DaysInRegime)
	assert.True(t, eng.State().LastRun.IsZero(), "emergency must not stamp last_run")
}

func TestEngineDegradedCompletenessFlag(t *testing.T) {
	in := calmInputs(250)
	in.Completeness = 0.5

	snap := NewEngine(DefaultConfig(), NewState(), false).Process(in)
	assert.Contains(t, snap.RiskFlags, FlagDataQualityDegraded)
	assert.Contains(t, snap.RiskFlags, FlagMacroDataInsufficient,
		"no macro series were supplied")
	assert.False(t, snap.Emergency, "degraded quality stays a flag, not a failure")
}

func TestEngineExtremeVolatilityOverride(t *testing.T) {
	closes := make([]float64, 252)
	for i := range closes {
		closes[i] = 100 + 0.1*float64(i%3)
	}
	// A sudden 50 percent round trip drives the vol z-score past the rail
	closes[249] = 100
	closes[250] = 150
	closes[251] = 100

	in := &Inputs{
		Candles:      makeCandles(closes),
		Completeness: 1.0,
		Timestamp:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	// Same tape through a config whose rail never trips, to measure the
	// distribution the override starts from
	railless := DefaultConfig()
	railless.Safety.ExtremeVolThreshold = 100
	base := NewEngine(railless, NewState(), false).Process(in)
	require.NotContains(t, base.RiskFlags, FlagExtremeVolatility)

	cfg := DefaultConfig()
	snap := NewEngine(cfg, NewState(), false).Process(in)

	assert.Contains(t, snap.RiskFlags, FlagExtremeVolatility)
	assert.Greater(t, snap.Metadata.VolZ, 2.5)
	assert.InDelta(t, 1.0, snap.Probabilities.Sum(), 1e-6,
		"the floor must renormalize the distribution")

	// Floor to 0.40 first, renormalize after
	floored := math.Max(cfg.Safety.ExtremeVolFloor, base.Probabilities[Transition])
	total := 1.0 - base.Probabilities[Transition] + floored
	assert.InDelta(t, floored/total, snap.Probabilities[Transition], 1e-9)
	assert.InDelta(t, base.Probabilities[Bull]/total, snap.Probabilities[Bull], 1e-9,
		"non-floored regimes only shrink by the renormalization")

	assert.InDelta(t, base.Confidence.QualityAdjusted*cfg.Safety.ExtremeVolConfPenalty,
		snap.Confidence.QualityAdjusted, 1e-4,
		"the rail cuts quality-adjusted confidence")
}

func TestEngineChurnFlagsExcessiveSwitching(t *testing.T) {
	st := NewState()
	for i := 0; i < 8; i++ {
		if i%2 == 0 {
			st.RegimeLog = append(st.RegimeLog, Bull)
		} else {
			st.RegimeLog = append(st.RegimeLog, Bear)
		}
	}

	snap := NewEngine(DefaultConfig(), st, false).Process(calmInputs(250))

	assert.Greater(t, snap.Confidence.Switches30d, 2)
	assert.InDelta(t, DefaultConfig().Confidence.ChurnFloor, snap.Confidence.ChurnPenalty, 1e-9,
		"seven flips in the window pin the penalty at its floor")

	found := false
	for _, f := range snap.RiskFlags {
		if strings.HasPrefix(f, "CHURN_PENALTY_ACTIVE") {
			found = true
		}
	}
	assert.True(t, found, "a sub-1 churn penalty must be surfaced as a risk flag")
}

func TestEngineReplayReproducesSnapshot(t *testing.T) {
	seed := NewEngine(DefaultConfig(), nil, false)
	seed.Process(calmInputs(250))
	seed.Process(calmInputs(250))
	st := seed.State()

	in := calmInputs(250)
	first := NewEngine(DefaultConfig(), st.Clone(), false).Process(in)
	second := NewEngine(DefaultConfig(), st.Clone(), false).Process(in)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b),
		"the same persisted state and bundle must reproduce the record byte for byte")
}

func TestEngineDaysInRegimeAccumulate(t *testing.T) {
	eng := NewEngine(DefaultConfig(), NewState(), false)

	first := eng.Process(calmInputs(250))
	second := eng.Process(calmInputs(250))

	require.Equal(t, first.Regime, second.Regime,
		"a flat tape must not flip the regime between cycles")
	assert.Equal(t, first.Metadata.DaysInRegime+1, second.Metadata.DaysInRegime)
}

func TestEngineBearSwitchFromSmoothedLead(t *testing.T) {
	st := NewState()
	st.PPrev = Probabilities{Bull: 0.1, Bear: 0.7, Range: 0.1, Transition: 0.1}

	closes := trendingSeries(250, 100000, -0.01)
	snap := NewEngine(DefaultConfig(), st, false).Process(&Inputs{
		Candles:      makeCandles(closes),
		Completeness: 1.0,
		Timestamp:    time.Now().UTC(),
	})

	assert.Equal(t, Bear, snap.Regime,
		"a bearish tape with a dominant smoothed BEAR must confirm in one day")
	assert.Equal(t, 0, snap.Metadata.DaysInRegime)
	assert.Greater(t, snap.Probabilities[Bear], 0.55)
}

func TestEngineSnapshotSerialization(t *testing.T) {
	snap := NewEngine(DefaultConfig(), nil, false).Process(calmInputs(250))

	raw, err := json.Marshal(snap)
	require.NoError(t, err)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &decoded))
	for _, key := range []string{
		"regime", "probabilities", "confidence", "buckets",
		"operational_hints", "exposure_cap", "risk_flags", "metadata",
	} {
		assert.Contains(t, decoded, key)
	}
	assert.NotContains(t, decoded, "Emergency", "the short-circuit marker stays internal")
}

func TestEngineAuxiliaryHistoryAccumulates(t *testing.T) {
	eng := NewEngine(DefaultConfig(), NewState(), false)

	dom := 52.5
	oi := 1.2e10
	for i := 0; i < 3; i++ {
		in := calmInputs(250)
		in.BTCDominance = &dom
		in.OpenInterest = &oi
		eng.Process(in)
	}

	assert.Len(t, eng.State().DominanceHistory, 3)
	assert.Len(t, eng.State().OIHistory, 3)
}

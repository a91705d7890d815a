package regime

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"
)

// ModelVersion identifies the tuned parameter generation.
const ModelVersion = "3.3"

// Engine runs the full regime detection pipeline: buckets → logits →
// softmax(T) → EMA → switch → confidence → diagnostics. It exclusively
// owns the persisted State for the process lifetime; one Process call is
// one cycle, and cycles must run in chronological order.
type Engine struct {
	cfg        Config
	state      *State
	norm       *AdaptiveNormalizer
	macroNorm  *AdaptiveNormalizer
	history    *BucketHistory
	stateReset bool
}

// NewEngine wires an engine to its persisted state. stateReset marks that
// the state was freshly initialized because the stored copy was missing or
// unreadable; the next snapshot carries a STATE_RESET flag so the silent
// fallback to TRANSITION is visible downstream.
func NewEngine(cfg Config, st *State, stateReset bool) *Engine {
	if st == nil {
		st = NewState()
		stateReset = true
	}

	norm := NewAdaptiveNormalizer(cfg.Normalization, cfg.Normalization.WindowDefault)
	macroNorm := NewAdaptiveNormalizer(cfg.Normalization, cfg.Normalization.WindowMacro)
	norm.Restore(st.PriceNormalizer)
	macroNorm.Restore(st.MacroNormalizer)

	history := NewBucketHistory(cfg.HistoryCap)
	history.Restore(st.BucketHistory)

	return &Engine{
		cfg:        cfg,
		state:      st,
		norm:       norm,
		macroNorm:  macroNorm,
		history:    history,
		stateReset: stateReset,
	}
}

// State returns the engine's mutable persisted state for post-cycle
// serialization. Callers must not retain it across cycles.
func (e *Engine) State() *State { return e.state }

// Process runs one full cycle over the input bundle. Data-quality problems
// degrade to flags on a valid snapshot; only the absence of usable price
// data short-circuits to the fixed emergency record, which leaves the
// persisted state untouched.
func (e *Engine) Process(in *Inputs) *Snapshot {
	now := in.Timestamp
	if now.IsZero() {
		now = time.Now().UTC()
	}

	if len(in.Candles) < e.cfg.Safety.MinPriceSamples {
		log.Error().
			Int("candles", len(in.Candles)).
			Int("required", e.cfg.Safety.MinPriceSamples).
			Msg("insufficient price data, emitting emergency snapshot")
		return e.emergencySnapshot("INSUFFICIENT_DATA", now)
	}

	var flags []string
	if e.stateReset {
		flags = append(flags, FlagStateReset)
		e.stateReset = false
	}
	if in.Completeness < e.cfg.Safety.DataQualityMin {
		flags = append(flags, FlagDataQualityDegraded)
	}

	close := in.closes()
	high := in.highs()
	low := in.lows()
	volume := in.volumes()

	// Auxiliary histories: sources only expose a current scalar, so the
	// series accumulates across cycles in persisted state.
	if in.BTCDominance != nil {
		e.state.DominanceHistory = appendCapped(e.state.DominanceHistory, *in.BTCDominance, e.cfg.AuxiliaryHistory)
	}
	if in.OpenInterest != nil {
		e.state.OIHistory = appendCapped(e.state.OIHistory, *in.OpenInterest, e.cfg.AuxiliaryHistory)
	}

	fearGreed := 50 // neutral default
	if in.FearGreed != nil {
		fearGreed = *in.FearGreed
	}

	// Buckets
	mom := ComputeMomentum(e.cfg.Momentum, close, high, low, in.MarketCapHistory, e.norm)
	stab := ComputeStability(e.cfg.Stability, close, volume, e.norm)
	rot := ComputeRotation(e.cfg.Rotation, e.state.DominanceHistory, mom.Value, e.norm)
	sent := ComputeSentiment(e.cfg.Sentiment, fearGreed, in.FundingRates, e.state.OIHistory, e.norm)
	mac := ComputeMacro(e.cfg.Macro, in.DXY, in.US10Y, in.US2Y, in.M2, e.norm, e.macroNorm)

	if mac.Disabled {
		flags = append(flags, FlagMacroDataInsufficient)
	}

	buckets := BucketSnapshot{
		Momentum:  mom.Value,
		Stability: stab.Value,
		Rotation:  rot.Value,
		Sentiment: sent.Value,
		Macro:     mac.Value,
	}
	volZ := stab.VolZ

	// Cross-asset correlation, computed from returns
	cross := ComputeCrossAsset(e.cfg.CrossAsset,
		LogReturns(close), LogReturns(in.SPX), LogReturns(in.Gold))

	// Record bucket values before the flip signal reads the history
	e.history.Append(buckets.Map())

	// Logits → temperature-scaled softmax → EMA smoothing
	flip := ComputeFlipSignal(e.cfg.Flip, e.history)
	logits := ComputeLogits(e.cfg.Logits, buckets, volZ, cross.MacroWeightBoost, flip, e.history)
	temperature := e.cfg.Temperature.Lookup(volZ)
	pRaw := Softmax(logits, temperature)
	alpha := e.cfg.Alpha.Lookup(volZ)
	p := SmoothProbabilities(pRaw, e.state.PPrev, alpha)

	// Switch state machine
	current := e.state.CurrentRegime
	candidate := p.ArgMax()
	holds := 1
	if candidate == e.state.HoldsCandidate {
		holds = e.state.HoldsFor + 1
	}

	if next, ok := ShouldSwitch(e.cfg.Confirmation, p, current, holds); ok {
		log.Info().
			Str("from", string(current)).
			Str("to", string(next)).
			Int("holds_for", holds).
			Float64("p_candidate", p[next]).
			Msg("regime switch")
		current = next
		e.state.DaysInRegime = 0
	} else {
		e.state.DaysInRegime++
	}

	e.state.CurrentRegime = current
	e.state.HoldsFor = holds
	e.state.HoldsCandidate = candidate
	e.state.RegimeLog = appendCappedRegime(e.state.RegimeLog, current, e.cfg.HistoryCap)

	// Confidence
	quality := ComputeSignalQuality(e.cfg.Quality,
		buckets.Momentum, buckets.Stability, buckets.Macro,
		e.state.DaysInRegime, in.Completeness)
	conf := ComputeConfidence(e.cfg.Confidence, p, quality, buckets.Sentiment,
		cross.CorrSPX, cross.CorrGold, e.state.RegimeLog)

	exposure := e.cfg.Exposure[current].Cap(conf.QualityAdjusted)

	// Diagnostics, advisory only
	health := ComputeBucketHealth(e.cfg.Health, e.history)
	dynamics := ComputeTransitionMatrix(e.cfg.Transitions, e.state.RegimeLog)
	hints := OperationalHints(e.cfg.Hints, current, buckets.Stability, volZ,
		buckets.Momentum, e.state.DaysInRegime)

	flags = append(flags, health.Flags...)
	flags = append(flags, dynamics.AnomalyFlags...)
	if conf.ChurnPenalty < 1.0 {
		flags = append(flags, fmt.Sprintf("CHURN_PENALTY_ACTIVE: %.2f", conf.ChurnPenalty))
	}

	// Extreme-volatility safety rail: the one diagnostic-adjacent rule
	// allowed to mutate the decision.
	if volZ > e.cfg.Safety.ExtremeVolThreshold {
		if p[Transition] < e.cfg.Safety.ExtremeVolFloor {
			p[Transition] = e.cfg.Safety.ExtremeVolFloor
		}
		total := p.Sum()
		for _, r := range Regimes {
			p[r] /= total
		}
		conf.QualityAdjusted = round4(conf.QualityAdjusted * e.cfg.Safety.ExtremeVolConfPenalty)
		flags = append(flags, FlagExtremeVolatility)
		log.Warn().Float64("vol_z", volZ).Msg("extreme volatility override applied")
	}

	// Commit state
	e.state.SchemaVersion = SchemaVersion
	e.state.PPrev = p.Clone()
	e.state.BucketHistory = e.history.Export()
	e.state.PriceNormalizer = e.norm.State()
	e.state.MacroNormalizer = e.macroNorm.State()
	e.state.LastRun = now

	var price *float64
	if len(close) > 0 {
		v := close[len(close)-1]
		price = &v
	}

	ret30 := 0.0
	if roc30 := ROCSeries(close, 30); len(roc30) > 0 && !math.IsNaN(roc30[len(roc30)-1]) {
		ret30 = roc30[len(roc30)-1]
	}

	return &Snapshot{
		Regime:        current,
		Probabilities: p,
		Confidence:    conf,
		Buckets: map[BucketName]float64{
			Momentum:  round4(buckets.Momentum),
			Stability: round4(buckets.Stability),
			Rotation:  round4(buckets.Rotation),
			Sentiment: round4(buckets.Sentiment),
			Macro:     round4(buckets.Macro),
		},
		BucketDetails: BucketDetails{
			Momentum:  mom.Components,
			Stability: stab.Components,
			Rotation:  rot.Components,
			Sentiment: sent.Components,
			Macro:     mac.Components,
		},
		CrossAsset:   cross,
		BucketHealth: health,
		Dynamics: RegimeDynamics{
			TransitionMatrix: dynamics.Matrix,
			Switches30d:      conf.Switches30d,
		},
		Hints:       hints,
		ExposureCap: exposure,
		RiskFlags:   flags,
		Normalization: NormalizationStatus{
			PriceWindow: e.norm.EffectiveWindow(),
			MacroWindow: e.macroNorm.EffectiveWindow(),
			BreakActive: e.norm.BreakActive(),
		},
		Metadata: Metadata{
			ModelVersion:     ModelVersion,
			DaysInRegime:     e.state.DaysInRegime,
			Temperature:      temperature,
			SmoothingAlpha:   alpha,
			VolZ:             round4(volZ),
			Returns30d:       round4(ret30),
			DataCompleteness: in.Completeness,
			Timestamp:        now,
			Price:            price,
		},
	}
}

// emergencySnapshot is the fixed safe output used when no usable price
// data exists. Persisted state is deliberately not mutated.
func (e *Engine) emergencySnapshot(reason string, now time.Time) *Snapshot {
	buckets := make(map[BucketName]float64, len(BucketNames))
	for _, n := range BucketNames {
		buckets[n] = 0.0
	}
	return &Snapshot{
		Regime:        Transition,
		Probabilities: Uniform(),
		Confidence:    Confidence{Base: 0, QualityAdjusted: 0, ChurnPenalty: 1.0, Switches30d: 0},
		Buckets:       buckets,
		Hints: Hints{
			StrategyClass:   "defensive",
			SuggestedLPMode: "exit",
		},
		ExposureCap: e.cfg.Safety.EmergencyExposure,
		RiskFlags:   []string{FlagEmergencyPrefix + reason},
		Metadata: Metadata{
			ModelVersion: ModelVersion,
			Timestamp:    now,
		},
		Emergency: true,
	}
}

func appendCapped(s []float64, v float64, cap int) []float64 {
	s = append(s, v)
	if len(s) > cap {
		s = s[len(s)-cap:]
	}
	return s
}

func appendCappedRegime(s []Regime, v Regime, cap int) []Regime {
	s = append(s, v)
	if len(s) > cap {
		s = s[len(s)-cap:]
	}
	return s
}

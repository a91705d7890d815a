package regime

import (
	"fmt"
	"math"
)

// Step is one row of an ordered threshold table.
type Step struct {
	Threshold float64 `yaml:"threshold"`
	Value     float64 `yaml:"value"`
}

// StepTable maps a scalar input to a value via first-match lookup over
// descending thresholds. Rows must be ordered from highest threshold down.
type StepTable struct {
	Steps   []Step  `yaml:"steps"`
	Default float64 `yaml:"default"`
}

// Lookup returns the value of the first row whose threshold is exceeded,
// or the table default.
func (t StepTable) Lookup(x float64) float64 {
	for _, s := range t.Steps {
		if x > s.Threshold {
			return s.Value
		}
	}
	return t.Default
}

func (t StepTable) validate(name string) error {
	prev := math.Inf(1)
	for i, s := range t.Steps {
		if s.Threshold >= prev {
			return fmt.Errorf("%s: step %d threshold %.3f not strictly descending", name, i, s.Threshold)
		}
		prev = s.Threshold
	}
	return nil
}

// NormalizationConfig controls the adaptive z-score windows.
type NormalizationConfig struct {
	WindowDefault      int     `yaml:"window_default"`
	WindowMin          int     `yaml:"window_min"`
	WindowMacro        int     `yaml:"window_macro"`
	ZClip              float64 `yaml:"z_clip"`
	BreakVarianceRatio float64 `yaml:"break_variance_ratio"`
	BreakTStat         float64 `yaml:"break_t_stat"`
	BreakShortWindow   int     `yaml:"break_short_window"`
	BreakLongWindow    int     `yaml:"break_long_window"`
}

// MomentumConfig holds Momentum bucket weights and periods.
type MomentumConfig struct {
	ROCBlendWeight      float64 `yaml:"roc_blend_weight"`
	TrendStrengthWeight float64 `yaml:"trend_strength_weight"`
	AlignmentWeight     float64 `yaml:"alignment_weight"`
	DTMCWeight          float64 `yaml:"dtmc_weight"`

	ROCBlend30dWeight float64 `yaml:"roc_blend_30d_weight"`
	ROCBlend90dWeight float64 `yaml:"roc_blend_90d_weight"`

	// Anti-decay blend of regime-relative and absolute momentum.
	RelativeWeight       float64 `yaml:"relative_weight"`
	AbsoluteWeight       float64 `yaml:"absolute_weight"`
	AbsoluteROCThreshold float64 `yaml:"absolute_roc_threshold"`

	EMAFast   int `yaml:"ema_fast"`
	EMAMedium int `yaml:"ema_medium"`
	EMASlow   int `yaml:"ema_slow"`
	ADXPeriod int `yaml:"adx_period"`
}

// StabilityConfig holds Stability bucket weights.
type StabilityConfig struct {
	VolWeight       float64 `yaml:"vol_weight"`
	LiquidityWeight float64 `yaml:"liquidity_weight"`
	DepthWeight     float64 `yaml:"depth_weight"`

	// Fallback split when the depth proxy is unavailable.
	FallbackVolWeight       float64 `yaml:"fallback_vol_weight"`
	FallbackLiquidityWeight float64 `yaml:"fallback_liquidity_weight"`

	RealizedVolWindow int `yaml:"realized_vol_window"`
}

// RotationConfig holds Rotation bucket weights and context dampening.
type RotationConfig struct {
	VelocityWeight float64 `yaml:"velocity_weight"`
	AccelWeight    float64 `yaml:"accel_weight"`

	ContextMomentumThreshold float64 `yaml:"context_momentum_threshold"`
	BullDampening            float64 `yaml:"bull_dampening"`
	BearDampening            float64 `yaml:"bear_dampening"`
}

// FearGreedZone maps an inclusive index range to a bounded score.
type FearGreedZone struct {
	Lo    int     `yaml:"lo"`
	Hi    int     `yaml:"hi"`
	Score float64 `yaml:"score"`
}

// SentimentConfig holds Sentiment bucket weights and fear/greed zones.
type SentimentConfig struct {
	FearGreedWeight float64         `yaml:"fear_greed_weight"`
	FundingWeight   float64         `yaml:"funding_weight"`
	OIWeight        float64         `yaml:"oi_weight"`
	FearGreedZones  []FearGreedZone `yaml:"fear_greed_zones"`
}

// MacroConfig holds Macro bucket weights.
type MacroConfig struct {
	DollarWeight     float64 `yaml:"dollar_weight"`
	RateWeight       float64 `yaml:"rate_weight"`
	YieldCurveWeight float64 `yaml:"yield_curve_weight"`
	M2Weight         float64 `yaml:"m2_weight"`

	// Fewer available constituents than this disables the bucket.
	MinAvailable int `yaml:"min_available"`
}

// CrossAssetConfig controls the reference-asset correlation boost.
type CrossAssetConfig struct {
	CorrWindow      int     `yaml:"corr_window"`
	BoostThreshold  float64 `yaml:"boost_threshold"`
	BoostMultiplier float64 `yaml:"boost_multiplier"`
}

// DirectionalWeights are the per-bucket weights of the BULL logit. The BEAR
// logit is the sign-flipped analog.
type DirectionalWeights struct {
	Momentum  float64 `yaml:"momentum"`
	Stability float64 `yaml:"stability"`
	Rotation  float64 `yaml:"rotation"`
	Sentiment float64 `yaml:"sentiment"`
	Macro     float64 `yaml:"macro"`
}

// RangeWeights reward quiet, stable tape.
type RangeWeights struct {
	AbsMomentum float64 `yaml:"abs_momentum"`
	Stability   float64 `yaml:"stability"`
	AbsVolZ     float64 `yaml:"abs_vol_z"`
	AbsRotation float64 `yaml:"abs_rotation"`
	AbsMacro    float64 `yaml:"abs_macro"`
}

// TransitionWeights reward volatility and abrupt bucket reversals.
type TransitionWeights struct {
	VolZ         float64 `yaml:"vol_z"`
	FlipSignal   float64 `yaml:"flip_signal"`
	AbsDMacro7d  float64 `yaml:"abs_dmacro_7d"`
	MacroDeltaN  int     `yaml:"macro_delta_days"`
}

// LogitConfig holds the four regime weight tables.
type LogitConfig struct {
	Bull       DirectionalWeights `yaml:"bull"`
	Bear       DirectionalWeights `yaml:"bear"`
	Range      RangeWeights       `yaml:"range"`
	Transition TransitionWeights  `yaml:"transition"`
}

// FlipConfig controls the bucket-reversal signal.
type FlipConfig struct {
	Lookback          int     `yaml:"lookback"`
	MajorThreshold    float64 `yaml:"major_threshold"`
	ModerateThreshold float64 `yaml:"moderate_threshold"`
}

// Confirmation is the asymmetric switching gate for one target regime.
// Either path alone fires the switch.
type Confirmation struct {
	ConsensusThreshold float64 `yaml:"consensus_threshold"`
	ConsensusDays      int     `yaml:"consensus_days"`
	LeaderDelta        float64 `yaml:"leader_delta"`
	LeaderDays         int     `yaml:"leader_days"`
}

// QualityConfig weights the signal-quality blend.
type QualityConfig struct {
	CompletenessWeight   float64 `yaml:"completeness_weight"`
	ConsistencyWeight    float64 `yaml:"consistency_weight"`
	PersistenceWeight    float64 `yaml:"persistence_weight"`
	MacroAgreementWeight float64 `yaml:"macro_agreement_weight"`

	PersistenceDays float64 `yaml:"persistence_days"`
	PersistenceMin  float64 `yaml:"persistence_min"`
}

// ConfidenceConfig controls confidence adjustments and the churn penalty.
type ConfidenceConfig struct {
	SentimentExtremeThreshold float64 `yaml:"sentiment_extreme_threshold"`
	SentimentExtremePenalty   float64 `yaml:"sentiment_extreme_penalty"`

	DecoupledCorrThreshold float64 `yaml:"decoupled_corr_threshold"`
	DecoupledBonus         float64 `yaml:"decoupled_bonus"`
	Cap                    float64 `yaml:"cap"`

	ChurnWindow          int     `yaml:"churn_window"`
	ChurnFreeSwitches    int     `yaml:"churn_free_switches"`
	ChurnPenaltyPerSwing float64 `yaml:"churn_penalty_per_switch"`
	ChurnFloor           float64 `yaml:"churn_floor"`
}

// ExpectedCorrelation is the configured prior for one bucket pair.
type ExpectedCorrelation struct {
	A     BucketName `yaml:"a"`
	B     BucketName `yaml:"b"`
	Value float64    `yaml:"value"`
}

// HealthConfig controls bucket health diagnostics.
type HealthConfig struct {
	Lookback              int                   `yaml:"lookback"`
	MinSamples            int                   `yaml:"min_samples"`
	AnomalyThreshold      float64               `yaml:"anomaly_threshold"`
	RedundancyThreshold   float64               `yaml:"redundancy_threshold"`
	LowDimensionality     int                   `yaml:"low_dimensionality"`
	VarianceCaptured      float64               `yaml:"variance_captured"`
	ExpectedCorrelations  []ExpectedCorrelation `yaml:"expected_correlations"`
}

// TransitionMatrixConfig controls the empirical transition diagnostics.
type TransitionMatrixConfig struct {
	Window              int     `yaml:"window"`
	MinSamples          int     `yaml:"min_samples"`
	StickyThreshold     float64 `yaml:"sticky_threshold"`
	DirectBullBearLimit float64 `yaml:"direct_bull_bear_limit"`
}

// SafetyConfig holds the hard rails around degraded data and extreme vol.
type SafetyConfig struct {
	MinPriceSamples   int     `yaml:"min_price_samples"`
	DataQualityMin    float64 `yaml:"data_quality_min"`
	EmergencyExposure float64 `yaml:"emergency_exposure"`

	ExtremeVolThreshold     float64 `yaml:"extreme_vol_threshold"`
	ExtremeVolFloor         float64 `yaml:"extreme_vol_transition_floor"`
	ExtremeVolConfPenalty   float64 `yaml:"extreme_vol_confidence_penalty"`
}

// ExposureTier is one confidence rung of the exposure cap table.
type ExposureTier struct {
	Threshold float64 `yaml:"threshold"`
	Cap       float64 `yaml:"cap"`
}

// ExposureTiers maps confidence to a cap for one regime, highest rung first.
type ExposureTiers struct {
	HighConf ExposureTier `yaml:"high_conf"`
	MedConf  ExposureTier `yaml:"med_conf"`
	LowConf  ExposureTier `yaml:"low_conf"`
}

// Cap returns the exposure cap for a confidence level.
func (t ExposureTiers) Cap(confidence float64) float64 {
	for _, tier := range []ExposureTier{t.HighConf, t.MedConf, t.LowConf} {
		if confidence > tier.Threshold {
			return tier.Cap
		}
	}
	return 0.20
}

// HintsConfig tunes operational hint thresholds.
type HintsConfig struct {
	StableRangeStability  float64 `yaml:"stable_range_stability"`
	StableRangeVolZ       float64 `yaml:"stable_range_vol_z"`
	NormalRangeVolZ       float64 `yaml:"normal_range_vol_z"`
	ExtendedRangeDays     int     `yaml:"extended_range_days"`
	BreakoutMomentum      float64 `yaml:"breakout_momentum"`
}

// Config is the full tunable surface of the engine. All weights are
// hand-tuned constants; no fitting happens at runtime.
type Config struct {
	Normalization NormalizationConfig     `yaml:"normalization"`
	Momentum      MomentumConfig          `yaml:"momentum"`
	Stability     StabilityConfig         `yaml:"stability"`
	Rotation      RotationConfig          `yaml:"rotation"`
	Sentiment     SentimentConfig         `yaml:"sentiment"`
	Macro         MacroConfig             `yaml:"macro"`
	CrossAsset    CrossAssetConfig        `yaml:"cross_asset"`
	Logits        LogitConfig             `yaml:"logits"`
	Temperature   StepTable               `yaml:"temperature"`
	Alpha         StepTable               `yaml:"alpha"`
	Flip          FlipConfig              `yaml:"flip"`
	Confirmation  map[Regime]Confirmation `yaml:"confirmation"`
	Quality       QualityConfig           `yaml:"quality"`
	Confidence    ConfidenceConfig        `yaml:"confidence"`
	Health        HealthConfig            `yaml:"health"`
	Transitions   TransitionMatrixConfig  `yaml:"transitions"`
	Safety        SafetyConfig            `yaml:"safety"`
	Exposure      map[Regime]ExposureTiers `yaml:"exposure"`
	Hints         HintsConfig             `yaml:"hints"`

	HistoryCap       int `yaml:"history_cap"`
	AuxiliaryHistory int `yaml:"auxiliary_history"`
}

// DefaultConfig returns the hand-tuned v3.3 parameter set.
func DefaultConfig() Config {
	return Config{
		Normalization: NormalizationConfig{
			WindowDefault:      90,
			WindowMin:          30,
			WindowMacro:        180,
			ZClip:              3.0,
			BreakVarianceRatio: 2.5,
			BreakTStat:         3.0,
			BreakShortWindow:   30,
			BreakLongWindow:    60,
		},
		Momentum: MomentumConfig{
			ROCBlendWeight:       0.35,
			TrendStrengthWeight:  0.25,
			AlignmentWeight:      0.20,
			DTMCWeight:           0.20,
			ROCBlend30dWeight:    0.6,
			ROCBlend90dWeight:    0.4,
			RelativeWeight:       0.75,
			AbsoluteWeight:       0.25,
			AbsoluteROCThreshold: 0.50,
			EMAFast:              20,
			EMAMedium:            50,
			EMASlow:              200,
			ADXPeriod:            14,
		},
		Stability: StabilityConfig{
			VolWeight:               0.40,
			LiquidityWeight:         0.35,
			DepthWeight:             0.25,
			FallbackVolWeight:       0.50,
			FallbackLiquidityWeight: 0.50,
			RealizedVolWindow:       30,
		},
		Rotation: RotationConfig{
			VelocityWeight:           0.6,
			AccelWeight:              0.4,
			ContextMomentumThreshold: 0.3,
			BullDampening:            0.6,
			BearDampening:            0.4,
		},
		Sentiment: SentimentConfig{
			FearGreedWeight: 0.35,
			FundingWeight:   0.40,
			OIWeight:        0.25,
			FearGreedZones: []FearGreedZone{
				{Lo: 0, Hi: 25, Score: -1.0},
				{Lo: 26, Hi: 45, Score: -0.5},
				{Lo: 46, Hi: 55, Score: 0.0},
				{Lo: 56, Hi: 75, Score: 0.5},
				{Lo: 76, Hi: 100, Score: 1.0},
			},
		},
		Macro: MacroConfig{
			DollarWeight:     0.30,
			RateWeight:       0.25,
			YieldCurveWeight: 0.20,
			M2Weight:         0.25,
			MinAvailable:     2,
		},
		CrossAsset: CrossAssetConfig{
			CorrWindow:      30,
			BoostThreshold:  0.6,
			BoostMultiplier: 1.3,
		},
		Logits: LogitConfig{
			Bull: DirectionalWeights{
				Momentum: 1.2, Stability: 0.5, Rotation: -0.4, Sentiment: 0.2, Macro: 0.3,
			},
			Bear: DirectionalWeights{
				Momentum: -1.2, Stability: -0.5, Rotation: 0.4, Sentiment: -0.2, Macro: -0.3,
			},
			Range: RangeWeights{
				AbsMomentum: -0.8, Stability: 0.7, AbsVolZ: -0.3, AbsRotation: -0.3, AbsMacro: -0.2,
			},
			Transition: TransitionWeights{
				VolZ: 0.7, FlipSignal: 1.0, AbsDMacro7d: 0.3, MacroDeltaN: 7,
			},
		},
		Temperature: StepTable{
			Steps: []Step{
				{Threshold: 2.0, Value: 1.5},
				{Threshold: 1.0, Value: 1.2},
				{Threshold: 0.0, Value: 1.0},
			},
			Default: 0.8,
		},
		Alpha: StepTable{
			Steps: []Step{
				{Threshold: 1.5, Value: 0.5},
				{Threshold: 0.5, Value: 0.3},
			},
			Default: 0.2,
		},
		Flip: FlipConfig{
			Lookback:          3,
			MajorThreshold:    0.50,
			ModerateThreshold: 0.30,
		},
		Confirmation: map[Regime]Confirmation{
			Bull:       {ConsensusThreshold: 0.65, ConsensusDays: 3, LeaderDelta: 0.22, LeaderDays: 2},
			Bear:       {ConsensusThreshold: 0.55, ConsensusDays: 1, LeaderDelta: 0.18, LeaderDays: 1},
			Range:      {ConsensusThreshold: 0.60, ConsensusDays: 2, LeaderDelta: 0.20, LeaderDays: 1},
			Transition: {ConsensusThreshold: 0.55, ConsensusDays: 1, LeaderDelta: 0.18, LeaderDays: 1},
		},
		Quality: QualityConfig{
			CompletenessWeight:   0.30,
			ConsistencyWeight:    0.25,
			PersistenceWeight:    0.25,
			MacroAgreementWeight: 0.20,
			PersistenceDays:      7.0,
			PersistenceMin:       0.3,
		},
		Confidence: ConfidenceConfig{
			SentimentExtremeThreshold: 0.8,
			SentimentExtremePenalty:   0.85,
			DecoupledCorrThreshold:    0.3,
			DecoupledBonus:            1.05,
			Cap:                       0.95,
			ChurnWindow:               30,
			ChurnFreeSwitches:         2,
			ChurnPenaltyPerSwing:      0.10,
			ChurnFloor:                0.50,
		},
		Health: HealthConfig{
			Lookback:            60,
			MinSamples:          20,
			AnomalyThreshold:    0.5,
			RedundancyThreshold: 0.75,
			LowDimensionality:   3,
			VarianceCaptured:    0.90,
			ExpectedCorrelations: []ExpectedCorrelation{
				{A: Momentum, B: Stability, Value: -0.3},
				{A: Momentum, B: Rotation, Value: -0.1},
				{A: Momentum, B: Sentiment, Value: 0.3},
				{A: Momentum, B: Macro, Value: 0.2},
				{A: Stability, B: Rotation, Value: 0.0},
				{A: Stability, B: Sentiment, Value: 0.1},
				{A: Stability, B: Macro, Value: 0.1},
				{A: Rotation, B: Sentiment, Value: 0.0},
				{A: Rotation, B: Macro, Value: 0.1},
				{A: Sentiment, B: Macro, Value: 0.2},
			},
		},
		Transitions: TransitionMatrixConfig{
			Window:              180,
			MinSamples:          10,
			StickyThreshold:     0.60,
			DirectBullBearLimit: 0.10,
		},
		Safety: SafetyConfig{
			MinPriceSamples:       30,
			DataQualityMin:        0.85,
			EmergencyExposure:     0.30,
			ExtremeVolThreshold:   2.5,
			ExtremeVolFloor:       0.40,
			ExtremeVolConfPenalty: 0.7,
		},
		Exposure: map[Regime]ExposureTiers{
			Bull: {
				HighConf: ExposureTier{Threshold: 0.70, Cap: 0.80},
				MedConf:  ExposureTier{Threshold: 0.50, Cap: 0.60},
				LowConf:  ExposureTier{Threshold: 0.0, Cap: 0.40},
			},
			Bear: {
				HighConf: ExposureTier{Threshold: 0.70, Cap: 0.30},
				MedConf:  ExposureTier{Threshold: 0.50, Cap: 0.40},
				LowConf:  ExposureTier{Threshold: 0.0, Cap: 0.50},
			},
			Range: {
				HighConf: ExposureTier{Threshold: 0.70, Cap: 0.60},
				MedConf:  ExposureTier{Threshold: 0.50, Cap: 0.50},
				LowConf:  ExposureTier{Threshold: 0.0, Cap: 0.35},
			},
			Transition: {
				HighConf: ExposureTier{Threshold: 0.70, Cap: 0.40},
				MedConf:  ExposureTier{Threshold: 0.50, Cap: 0.30},
				LowConf:  ExposureTier{Threshold: 0.0, Cap: 0.20},
			},
		},
		Hints: HintsConfig{
			StableRangeStability: 0.5,
			StableRangeVolZ:      0.5,
			NormalRangeVolZ:      1.0,
			ExtendedRangeDays:    30,
			BreakoutMomentum:     0.25,
		},
		HistoryCap:       200,
		AuxiliaryHistory: 120,
	}
}

// Validate checks structural soundness of the configuration.
func (c Config) Validate() error {
	if c.Normalization.WindowMin <= 0 || c.Normalization.WindowDefault < c.Normalization.WindowMin {
		return fmt.Errorf("normalization windows invalid: default %d, min %d",
			c.Normalization.WindowDefault, c.Normalization.WindowMin)
	}
	if err := c.Temperature.validate("temperature"); err != nil {
		return err
	}
	if err := c.Alpha.validate("alpha"); err != nil {
		return err
	}
	for _, r := range Regimes {
		conf, ok := c.Confirmation[r]
		if !ok {
			return fmt.Errorf("confirmation table missing regime %s", r)
		}
		if conf.ConsensusThreshold <= 0 || conf.ConsensusThreshold >= 1 {
			return fmt.Errorf("confirmation %s: consensus threshold %.3f outside (0,1)", r, conf.ConsensusThreshold)
		}
		if conf.ConsensusDays < 1 || conf.LeaderDays < 1 {
			return fmt.Errorf("confirmation %s: hold days must be >= 1", r)
		}
		if _, ok := c.Exposure[r]; !ok {
			return fmt.Errorf("exposure table missing regime %s", r)
		}
	}
	qSum := c.Quality.CompletenessWeight + c.Quality.ConsistencyWeight +
		c.Quality.PersistenceWeight + c.Quality.MacroAgreementWeight
	if math.Abs(qSum-1.0) > 0.01 {
		return fmt.Errorf("quality weights sum to %.4f, expected 1.0", qSum)
	}
	if c.Confidence.ChurnFloor <= 0 || c.Confidence.ChurnFloor > 1 {
		return fmt.Errorf("churn floor %.3f outside (0,1]", c.Confidence.ChurnFloor)
	}
	if c.Flip.ModerateThreshold >= c.Flip.MajorThreshold {
		return fmt.Errorf("flip thresholds inverted: moderate %.2f >= major %.2f",
			c.Flip.ModerateThreshold, c.Flip.MajorThreshold)
	}
	if c.HistoryCap < c.Health.Lookback {
		return fmt.Errorf("history cap %d below health lookback %d", c.HistoryCap, c.Health.Lookback)
	}
	return nil
}

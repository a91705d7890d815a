package regime

import "time"

// BucketDetails is the per-bucket component breakdown for explainability.
type BucketDetails struct {
	Momentum  map[string]float64 `json:"momentum"`
	Stability map[string]float64 `json:"stability"`
	Rotation  map[string]float64 `json:"rotation"`
	Sentiment map[string]float64 `json:"sentiment"`
	Macro     map[string]float64 `json:"macro"`
}

// RegimeDynamics exposes the empirical transition matrix and recent churn.
type RegimeDynamics struct {
	TransitionMatrix map[string]map[Regime]float64 `json:"transition_matrix"`
	Switches30d      int                           `json:"switches_30d"`
}

// NormalizationStatus reports the adaptive window state.
type NormalizationStatus struct {
	PriceWindow int  `json:"price_window"`
	MacroWindow int  `json:"macro_window"`
	BreakActive bool `json:"break_active"`
}

// Metadata carries per-cycle operational context.
type Metadata struct {
	ModelVersion     string    `json:"model_version"`
	DaysInRegime     int       `json:"days_in_regime"`
	Temperature      float64   `json:"temperature"`
	SmoothingAlpha   float64   `json:"smoothing_alpha"`
	VolZ             float64   `json:"vol_z"`
	Returns30d       float64   `json:"returns_30d"`
	DataCompleteness float64   `json:"data_completeness"`
	Timestamp        time.Time `json:"timestamp"`
	Price            *float64  `json:"price,omitempty"`
}

// Snapshot is the engine's structured output record. Downstream consumers
// key off regime, confidence.quality_adjusted, buckets.Momentum, and
// metadata.vol_z by field name; renaming these is a breaking change.
type Snapshot struct {
	Regime        Regime                 `json:"regime"`
	Probabilities Probabilities          `json:"probabilities"`
	Confidence    Confidence             `json:"confidence"`
	Buckets       map[BucketName]float64 `json:"buckets"`
	BucketDetails BucketDetails          `json:"bucket_details"`
	CrossAsset    CrossAsset             `json:"cross_asset"`
	BucketHealth  BucketHealth           `json:"bucket_health"`
	Dynamics      RegimeDynamics         `json:"regime_dynamics"`
	Hints         Hints                  `json:"operational_hints"`
	ExposureCap   float64                `json:"exposure_cap"`
	RiskFlags     []string               `json:"risk_flags"`
	Normalization NormalizationStatus    `json:"normalization"`
	Metadata      Metadata               `json:"metadata"`

	// Emergency marks the fixed short-circuit record; persisted state was
	// not touched when set.
	Emergency bool `json:"-"`
}

package policy

import (
	"github.com/sawpanic/regimerun/internal/regime"
)

// RiskState buckets the continuous risk level into the three stances
// downstream sizing logic cares about.
type RiskState string

const (
	RiskOn      RiskState = "RISK_ON"
	RiskNeutral RiskState = "RISK_NEUTRAL"
	RiskOff     RiskState = "RISK_OFF"
)

// RiskConfig holds the policy-layer tunables applied on top of the
// regime probabilities.
type RiskConfig struct {
	Weights        map[regime.Regime]float64 `yaml:"weights"`
	OnThreshold    float64                   `yaml:"on_threshold"`
	OffThreshold   float64                   `yaml:"off_threshold"`
	ConfidenceGate float64                   `yaml:"confidence_gate"`
	ExposureBands  []ExposureBand            `yaml:"exposure_bands"`
}

// ExposureBand maps a half-open risk-level interval [Lo, Hi) to a
// maximum portfolio exposure.
type ExposureBand struct {
	Lo  float64 `yaml:"lo"`
	Hi  float64 `yaml:"hi"`
	Cap float64 `yaml:"cap"`
}

// DefaultRiskConfig returns the shipped risk policy. TRANSITION carries
// the worst weight and BEAR is close behind, so uniform probabilities
// land slightly risk-off (-0.175).
func DefaultRiskConfig() RiskConfig {
	return RiskConfig{
		Weights: map[regime.Regime]float64{
			regime.Bull:       0.80,
			regime.Range:      0.40,
			regime.Bear:       -0.90,
			regime.Transition: -1.00,
		},
		OnThreshold:    0.30,
		OffThreshold:   -0.30,
		ConfidenceGate: 0.15,
		ExposureBands: []ExposureBand{
			{Lo: -1.00, Hi: -0.60, Cap: 0.10},
			{Lo: -0.60, Hi: -0.30, Cap: 0.20},
			{Lo: -0.30, Hi: 0.30, Cap: 0.50},
			{Lo: 0.30, Hi: 0.60, Cap: 0.70},
			{Lo: 0.60, Hi: 1.01, Cap: 0.80},
		},
	}
}

// RiskLevel is the policy-layer read on the regime probabilities.
type RiskLevel struct {
	Level       float64   `json:"level"`
	State       RiskState `json:"state"`
	ExposureCap float64   `json:"exposure_cap"`
	Gated       bool      `json:"gated"`
}

// ComputeRiskLevel collapses the probability vector into a single
// directional risk score in [-1, +1]. When confidence sits below the
// gate, positive scores are capped at zero so an uncertain model can
// never signal risk-on.
func (c RiskConfig) ComputeRiskLevel(p regime.Probabilities, confidence float64) RiskLevel {
	level := 0.0
	for _, r := range regime.Regimes {
		level += p[r] * c.Weights[r]
	}

	gated := false
	if confidence < c.ConfidenceGate && level > 0 {
		level = 0
		gated = true
	}

	state := RiskNeutral
	switch {
	case level >= c.OnThreshold:
		state = RiskOn
	case level <= c.OffThreshold:
		state = RiskOff
	}

	cap := 0.50
	for _, b := range c.ExposureBands {
		if level >= b.Lo && level < b.Hi {
			cap = b.Cap
			break
		}
	}

	return RiskLevel{Level: level, State: state, ExposureCap: cap, Gated: gated}
}

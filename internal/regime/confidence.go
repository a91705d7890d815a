package regime

import "math"

// Confidence is the per-cycle confidence record. Downstream consumers use
// QualityAdjusted to cap position sizing.
type Confidence struct {
	Base            float64 `json:"base"`
	QualityAdjusted float64 `json:"quality_adjusted"`
	ChurnPenalty    float64 `json:"churn_penalty"`
	Switches30d     int     `json:"switches_30d"`
}

// ComputeSignalQuality blends data completeness, a momentum/stability
// sign-consistency proxy, time-in-regime persistence, and macro agreement
// into a [0,1] quality score.
//
// The consistency term expects momentum and stability to move inversely;
// without a running correlation available here, sign agreement serves as
// the proxy.
func ComputeSignalQuality(cfg QualityConfig, momentum, stability, macro float64, daysInRegime int, completeness float64) float64 {
	var consistency float64
	switch {
	case (momentum > 0 && stability < 0) || (momentum < 0 && stability > 0):
		consistency = 0.7
	case math.Abs(momentum) < 0.1 || math.Abs(stability) < 0.1:
		consistency = 0.5
	default:
		consistency = 0.2
	}

	persistence := math.Min(1.0, math.Max(cfg.PersistenceMin,
		float64(daysInRegime)/cfg.PersistenceDays))

	var macroAgreement float64
	switch {
	case math.Abs(macro) < 0.1 || math.Abs(momentum) < 0.1:
		macroAgreement = 0.5
	case sign(momentum) == sign(macro):
		macroAgreement = math.Min(1.0, math.Min(math.Abs(momentum), math.Abs(macro))+0.3)
	default:
		macroAgreement = 0.2
	}

	quality := cfg.CompletenessWeight*completeness +
		cfg.ConsistencyWeight*consistency +
		cfg.PersistenceWeight*persistence +
		cfg.MacroAgreementWeight*macroAgreement

	return clamp(quality, 0.0, 1.0)
}

// CountSwitches counts regime changes in the last window entries of the
// regime log.
func CountSwitches(log []Regime, window int) int {
	if len(log) < 2 {
		return 0
	}
	recent := log
	if len(log) > window {
		recent = log[len(log)-window:]
	}
	switches := 0
	for i := 1; i < len(recent); i++ {
		if recent[i] != recent[i-1] {
			switches++
		}
	}
	return switches
}

// ChurnPenalty returns the multiplicative penalty for excessive switching:
// 1.0 within the free allowance, then a linear discount per excess switch
// with a hard floor.
func ChurnPenalty(cfg ConfidenceConfig, switches int) float64 {
	if switches <= cfg.ChurnFreeSwitches {
		return 1.0
	}
	excess := float64(switches - cfg.ChurnFreeSwitches)
	return math.Max(cfg.ChurnFloor, 1.0-cfg.ChurnPenaltyPerSwing*excess)
}

// ComputeConfidence derives the confidence record: entropy-based base,
// quality scaling, extreme-sentiment penalty, decoupling bonus, and the
// churn penalty from recent switch frequency.
func ComputeConfidence(cfg ConfidenceConfig, p Probabilities, quality, sentiment, corrSPX, corrGold float64, regimeLog []Regime) Confidence {
	var entropy float64
	for _, r := range Regimes {
		pr := clamp(p[r], 1e-10, 1.0)
		entropy -= pr * math.Log(pr)
	}
	base := 1.0 - entropy/math.Log(float64(len(Regimes)))

	adjusted := base * quality

	if math.Abs(sentiment) > cfg.SentimentExtremeThreshold {
		adjusted *= cfg.SentimentExtremePenalty
	}

	if math.Abs(corrSPX) < cfg.DecoupledCorrThreshold && math.Abs(corrGold) < cfg.DecoupledCorrThreshold {
		adjusted *= cfg.DecoupledBonus
		if adjusted > cfg.Cap {
			adjusted = cfg.Cap
		}
	}

	switches := CountSwitches(regimeLog, cfg.ChurnWindow)
	churn := ChurnPenalty(cfg, switches)
	adjusted *= churn

	return Confidence{
		Base:            round4(base),
		QualityAdjusted: round4(adjusted),
		ChurnPenalty:    round4(churn),
		Switches30d:     switches,
	}
}

package regime

import "math"

// BucketSnapshot is the current cycle's five bucket values.
type BucketSnapshot struct {
	Momentum  float64
	Stability float64
	Rotation  float64
	Sentiment float64
	Macro     float64
}

// Map returns the snapshot keyed by bucket name.
func (b BucketSnapshot) Map() map[BucketName]float64 {
	return map[BucketName]float64{
		Momentum:  b.Momentum,
		Stability: b.Stability,
		Rotation:  b.Rotation,
		Sentiment: b.Sentiment,
		Macro:     b.Macro,
	}
}

// ComputeFlipSignal detects abrupt multi-bucket direction reversals by
// comparing the latest Momentum/Stability/Rotation values against their
// mean over the prior lookback window. It reads only bucket value history;
// probabilities must never feed it, or the engine's own transitions would
// amplify further transitions.
func ComputeFlipSignal(cfg FlipConfig, history HistoryView) float64 {
	keys := []BucketName{Momentum, Stability, Rotation}
	for _, k := range keys {
		if history.Len(k) < cfg.Lookback+1 {
			return 0.0
		}
	}

	maxDelta := 0.0
	for _, k := range keys {
		tail := history.Tail(k, cfg.Lookback+1)
		current := tail[len(tail)-1]
		var priorMean float64
		for _, v := range tail[:len(tail)-1] {
			priorMean += v
		}
		priorMean /= float64(len(tail) - 1)
		if d := math.Abs(current - priorMean); d > maxDelta {
			maxDelta = d
		}
	}

	switch {
	case maxDelta > cfg.MajorThreshold:
		return 1.0
	case maxDelta > cfg.ModerateThreshold:
		return 0.5
	}
	return 0.0
}

// ComputeLogits derives the four regime scores from the bucket values, the
// vol z-score, the cross-asset macro boost, and the flip signal.
func ComputeLogits(cfg LogitConfig, b BucketSnapshot, volZ, macroBoost, flip float64, history HistoryView) map[Regime]float64 {
	wB, wBR, wR, wT := cfg.Bull, cfg.Bear, cfg.Range, cfg.Transition

	bull := wB.Momentum*b.Momentum +
		wB.Stability*b.Stability +
		wB.Rotation*b.Rotation +
		wB.Sentiment*b.Sentiment +
		wB.Macro*b.Macro*macroBoost

	bear := wBR.Momentum*b.Momentum +
		wBR.Stability*b.Stability +
		wBR.Rotation*b.Rotation +
		wBR.Sentiment*b.Sentiment +
		wBR.Macro*b.Macro*macroBoost

	rng := wR.AbsMomentum*math.Abs(b.Momentum) +
		wR.Stability*b.Stability +
		wR.AbsVolZ*math.Abs(volZ) +
		wR.AbsRotation*math.Abs(b.Rotation) +
		wR.AbsMacro*math.Abs(b.Macro)

	dMacro := 0.0
	if n := wT.MacroDeltaN; history.Len(Macro) >= n {
		tail := history.Tail(Macro, n)
		dMacro = math.Abs(tail[len(tail)-1] - tail[0])
	}

	trans := wT.VolZ*volZ + wT.FlipSignal*flip + wT.AbsDMacro7d*dMacro

	return map[Regime]float64{
		Bull:       bull,
		Bear:       bear,
		Range:      rng,
		Transition: trans,
	}
}

// Softmax converts logits to a probability distribution at the given
// temperature. The max logit is subtracted before exponentiating for
// numerical stability.
func Softmax(logits map[Regime]float64, temperature float64) Probabilities {
	scaled := make([]float64, len(Regimes))
	maxVal := math.Inf(-1)
	for i, r := range Regimes {
		scaled[i] = logits[r] / temperature
		if scaled[i] > maxVal {
			maxVal = scaled[i]
		}
	}

	var sum float64
	exps := make([]float64, len(Regimes))
	for i := range scaled {
		exps[i] = math.Exp(scaled[i] - maxVal)
		sum += exps[i]
	}

	p := make(Probabilities, len(Regimes))
	for i, r := range Regimes {
		p[r] = exps[i] / sum
	}
	return p
}

// SmoothProbabilities blends the raw distribution with the previous
// smoothed one. On cold start (no previous distribution) the raw
// distribution passes through unadjusted.
func SmoothProbabilities(pNew Probabilities, pPrev Probabilities, alpha float64) Probabilities {
	if pPrev == nil {
		return pNew.Clone()
	}
	out := make(Probabilities, len(Regimes))
	for _, r := range Regimes {
		prev, ok := pPrev[r]
		if !ok {
			prev = 0.25
		}
		out[r] = (1-alpha)*prev + alpha*pNew[r]
	}
	return out
}

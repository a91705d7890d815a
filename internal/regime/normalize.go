package regime

import (
	"math"
)

// dropNaN returns a copy of values with NaN entries removed.
func dropNaN(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

func meanStd(values []float64) (mean, std float64) {
	clean := dropNaN(values)
	if len(clean) == 0 {
		return 0, 0
	}
	for _, v := range clean {
		mean += v
	}
	mean /= float64(len(clean))
	for _, v := range clean {
		d := v - mean
		std += d * d
	}
	std = math.Sqrt(std / float64(len(clean)))
	return mean, std
}

func variance(values []float64) float64 {
	_, std := meanStd(values)
	return std * std
}

// ZScore computes the z-score of the last value over a rolling window,
// clipped to ±clip. Fewer than 5 samples yields a neutral 0.0.
func ZScore(values []float64, window int, clip float64) float64 {
	if len(values) < 5 {
		return 0.0
	}
	lookback := values
	if len(values) >= window {
		lookback = values[len(values)-window:]
	}
	mean, std := meanStd(lookback)
	z := (values[len(values)-1] - mean) / (std + 1e-8)
	return clamp(z, -clip, clip)
}

// BreakResult reports structural-break evidence on a signal stream.
type BreakResult struct {
	Detected      bool
	VarianceRatio float64
	TStat         float64
}

// DetectStructuralBreak compares the variance and mean of the most recent
// short window against the preceding long window. A break is flagged when
// either the variance ratio or the two-sample t-statistic exceeds its
// configured threshold. Needs at least 10 valid samples in each window.
func DetectStructuralBreak(values []float64, cfg NormalizationConfig) BreakResult {
	shortW, longW := cfg.BreakShortWindow, cfg.BreakLongWindow
	if len(values) < shortW+longW {
		return BreakResult{}
	}

	recent := dropNaN(values[len(values)-shortW:])
	prior := dropNaN(values[len(values)-shortW-longW : len(values)-shortW])
	if len(recent) < 10 || len(prior) < 10 {
		return BreakResult{}
	}

	varRecent := variance(recent)
	varPrior := variance(prior)
	ratio := math.Max(varRecent, varPrior) / (math.Min(varRecent, varPrior) + 1e-12)

	meanRecent, _ := meanStd(recent)
	meanPrior, _ := meanStd(prior)
	pooled := math.Sqrt(varRecent/float64(len(recent)) + varPrior/float64(len(prior)))
	tStat := math.Abs(meanRecent-meanPrior) / (pooled + 1e-12)

	return BreakResult{
		Detected:      ratio > cfg.BreakVarianceRatio || tStat > cfg.BreakTStat,
		VarianceRatio: ratio,
		TStat:         tStat,
	}
}

// NormalizerState is the persisted portion of an AdaptiveNormalizer.
type NormalizerState struct {
	BaseWindow     int  `json:"base_window"`
	DaysSinceBreak int  `json:"days_since_break"`
	BreakActive    bool `json:"break_active"`
}

// AdaptiveNormalizer is a rolling z-score whose effective window shrinks
// after a structural break and grows back linearly as the break ages out.
type AdaptiveNormalizer struct {
	cfg            NormalizationConfig
	baseWindow     int
	daysSinceBreak int
	breakActive    bool
}

// NewAdaptiveNormalizer builds a normalizer with the given base window.
// It starts as if no break occurred recently.
func NewAdaptiveNormalizer(cfg NormalizationConfig, baseWindow int) *AdaptiveNormalizer {
	if baseWindow <= 0 {
		baseWindow = cfg.WindowDefault
	}
	return &AdaptiveNormalizer{
		cfg:            cfg,
		baseWindow:     baseWindow,
		daysSinceBreak: baseWindow,
	}
}

// Normalize runs break detection, updates the adaptive window, and returns
// the clipped z-score of the last value. Fewer than 5 samples yields 0.0
// without touching the break counters.
func (n *AdaptiveNormalizer) Normalize(values []float64) float64 {
	if len(values) < 5 {
		return 0.0
	}

	if DetectStructuralBreak(values, n.cfg).Detected {
		n.daysSinceBreak = 0
		n.breakActive = true
	} else {
		n.daysSinceBreak++
	}

	if n.breakActive && n.daysSinceBreak >= n.baseWindow {
		n.breakActive = false
	}

	return ZScore(values, n.EffectiveWindow(), n.cfg.ZClip)
}

// EffectiveWindow is the base window unless a break is active, in which
// case it shrinks to max(windowMin, daysSinceBreak).
func (n *AdaptiveNormalizer) EffectiveWindow() int {
	if !n.breakActive {
		return n.baseWindow
	}
	w := n.daysSinceBreak
	if w < n.cfg.WindowMin {
		w = n.cfg.WindowMin
	}
	if w > n.baseWindow {
		w = n.baseWindow
	}
	return w
}

// BreakActive reports whether a structural break is still aging out.
func (n *AdaptiveNormalizer) BreakActive() bool { return n.breakActive }

// State exports the persisted counters.
func (n *AdaptiveNormalizer) State() NormalizerState {
	return NormalizerState{
		BaseWindow:     n.baseWindow,
		DaysSinceBreak: n.daysSinceBreak,
		BreakActive:    n.breakActive,
	}
}

// Restore reloads persisted counters, keeping the configured base window
// when the stored one is unset.
func (n *AdaptiveNormalizer) Restore(s NormalizerState) {
	if s.BaseWindow > 0 {
		n.baseWindow = s.BaseWindow
	}
	n.daysSinceBreak = s.DaysSinceBreak
	n.breakActive = s.BreakActive
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// clip1 bounds a bucket composite to [-1, +1].
func clip1(x float64) float64 { return clamp(x, -1.0, 1.0) }

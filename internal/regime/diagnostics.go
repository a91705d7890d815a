package regime

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// BucketHealth reports pairwise correlation anomalies and the effective
// dimensionality of the five buckets. Advisory only; it never feeds the
// regime decision.
type BucketHealth struct {
	EffectiveDimensionality int                `json:"effective_dimensionality"`
	PairwiseCorrelations    map[string]float64 `json:"pairwise_correlations"`
	Flags                   []string           `json:"flags"`
}

// ComputeBucketHealth builds a 5×5 correlation matrix over recent bucket
// history, flags pairs deviating from their expected correlation or
// redundantly correlated, and estimates effective dimensionality from the
// eigenvalue spectrum.
func ComputeBucketHealth(cfg HealthConfig, history HistoryView) BucketHealth {
	n := len(BucketNames)

	minLen := history.Len(BucketNames[0])
	for _, name := range BucketNames[1:] {
		if l := history.Len(name); l < minLen {
			minLen = l
		}
	}
	if minLen < cfg.MinSamples {
		return BucketHealth{
			EffectiveDimensionality: n,
			PairwiseCorrelations:    map[string]float64{},
		}
	}

	window := min(cfg.Lookback, minLen)
	series := make([][]float64, n)
	for i, name := range BucketNames {
		series[i] = history.Tail(name, window)
	}

	expected := make(map[string]float64, len(cfg.ExpectedCorrelations))
	for _, e := range cfg.ExpectedCorrelations {
		expected[pairKey(e.A, e.B)] = e.Value
	}

	corr := mat.NewSymDense(n, nil)
	pairwise := make(map[string]float64)
	var flags []string

	for i := 0; i < n; i++ {
		corr.SetSym(i, i, 1.0)
		for j := i + 1; j < n; j++ {
			c := stat.Correlation(series[i], series[j], nil)
			if math.IsNaN(c) {
				c = 0.0
			}
			corr.SetSym(i, j, c)

			key := pairKey(BucketNames[i], BucketNames[j])
			pairwise[key] = round3(c)

			if math.Abs(c-expected[key]) > cfg.AnomalyThreshold {
				flags = append(flags, fmt.Sprintf("ANOMALOUS_CORR_%s_%s: %.2f",
					BucketNames[i], BucketNames[j], c))
			}
			if math.Abs(c) > cfg.RedundancyThreshold {
				flags = append(flags, fmt.Sprintf("REDUNDANCY_%s_%s: |corr|=%.2f",
					BucketNames[i], BucketNames[j], math.Abs(c)))
			}
		}
	}

	effDim := effectiveDimensionality(corr, cfg.VarianceCaptured)
	if effDim < cfg.LowDimensionality {
		flags = append(flags, fmt.Sprintf("LOW_DIMENSIONALITY: %d/%d", effDim, n))
	}

	return BucketHealth{
		EffectiveDimensionality: effDim,
		PairwiseCorrelations:    pairwise,
		Flags:                   flags,
	}
}

// effectiveDimensionality counts the leading eigenvalues needed to capture
// the configured share of total variance.
func effectiveDimensionality(corr *mat.SymDense, captured float64) int {
	n, _ := corr.Dims()

	var eig mat.EigenSym
	if !eig.Factorize(corr, false) {
		return n
	}
	vals := eig.Values(nil)
	for i := range vals {
		vals[i] = math.Abs(vals[i])
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(vals)))

	var total float64
	for _, v := range vals {
		total += v
	}
	if total <= 0 {
		return n
	}

	var cum float64
	for i, v := range vals {
		cum += v
		if cum/total >= captured {
			return i + 1
		}
	}
	return n
}

func pairKey(a, b BucketName) string { return string(a) + "/" + string(b) }

// TransitionDynamics is the empirical first-order transition matrix over
// the recent regime log, with anomaly flags.
type TransitionDynamics struct {
	Matrix       map[string]map[Regime]float64 `json:"matrix"`
	AnomalyFlags []string                      `json:"anomaly_flags"`
}

// ComputeTransitionMatrix estimates transition frequencies from the regime
// log and flags a sticky TRANSITION state and direct BULL→BEAR jumps,
// which should normally route through TRANSITION or RANGE.
func ComputeTransitionMatrix(cfg TransitionMatrixConfig, regimeLog []Regime) TransitionDynamics {
	recent := regimeLog
	if len(regimeLog) > cfg.Window {
		recent = regimeLog[len(regimeLog)-cfg.Window:]
	}
	if len(recent) < cfg.MinSamples {
		return TransitionDynamics{Matrix: map[string]map[Regime]float64{}}
	}

	counts := make(map[Regime]map[Regime]int, len(Regimes))
	for _, r := range Regimes {
		counts[r] = make(map[Regime]int, len(Regimes))
	}
	for i := 1; i < len(recent); i++ {
		from, to := recent[i-1], recent[i]
		if _, ok := counts[from]; ok {
			counts[from][to]++
		}
	}

	matrix := make(map[string]map[Regime]float64, len(Regimes))
	for _, from := range Regimes {
		row := make(map[Regime]float64, len(Regimes))
		var total int
		for _, to := range Regimes {
			total += counts[from][to]
		}
		for _, to := range Regimes {
			if total > 0 {
				row[to] = round3(float64(counts[from][to]) / float64(total))
			} else {
				row[to] = 0.0
			}
		}
		matrix["from_"+string(from)] = row
	}

	var flags []string
	if self := matrix["from_"+string(Transition)][Transition]; self > cfg.StickyThreshold {
		flags = append(flags, fmt.Sprintf("TRANSITION_STICKY: self-transition=%.2f", self))
	}
	if bb := matrix["from_"+string(Bull)][Bear]; bb > cfg.DirectBullBearLimit {
		flags = append(flags, fmt.Sprintf("DIRECT_BULL_BEAR: %.2f", bb))
	}

	return TransitionDynamics{Matrix: matrix, AnomalyFlags: flags}
}

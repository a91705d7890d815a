package regime

import "fmt"

// Regime is one of the four market regime labels the engine can emit.
type Regime string

const (
	Bull       Regime = "BULL"
	Bear       Regime = "BEAR"
	Range      Regime = "RANGE"
	Transition Regime = "TRANSITION"
)

// Regimes lists all labels in canonical order. Iteration over probability
// maps must go through this slice so that argmax ties resolve the same way
// on every run.
var Regimes = []Regime{Bull, Bear, Range, Transition}

// ParseRegime validates a regime label read from config or persisted state.
func ParseRegime(s string) (Regime, error) {
	for _, r := range Regimes {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown regime label %q", s)
}

// Valid reports whether r is one of the four known labels.
func (r Regime) Valid() bool {
	_, err := ParseRegime(string(r))
	return err == nil
}

// BucketName identifies one of the five composite signal buckets.
type BucketName string

const (
	Momentum  BucketName = "Momentum"
	Stability BucketName = "Stability"
	Rotation  BucketName = "Rotation"
	Sentiment BucketName = "Sentiment"
	Macro     BucketName = "Macro"
)

// BucketNames lists all buckets in canonical order.
var BucketNames = []BucketName{Momentum, Stability, Rotation, Sentiment, Macro}

// Probabilities is a distribution over the four regimes. It always sums to
// 1.0 within floating tolerance.
type Probabilities map[Regime]float64

// ArgMax returns the regime with the highest probability. Ties resolve in
// canonical regime order.
func (p Probabilities) ArgMax() Regime {
	best := Regimes[0]
	for _, r := range Regimes[1:] {
		if p[r] > p[best] {
			best = r
		}
	}
	return best
}

// Sum returns the total probability mass.
func (p Probabilities) Sum() float64 {
	var s float64
	for _, r := range Regimes {
		s += p[r]
	}
	return s
}

// Clone returns an independent copy.
func (p Probabilities) Clone() Probabilities {
	out := make(Probabilities, len(Regimes))
	for _, r := range Regimes {
		out[r] = p[r]
	}
	return out
}

// Uniform returns the flat 0.25 distribution used for cold starts and
// emergency output.
func Uniform() Probabilities {
	p := make(Probabilities, len(Regimes))
	for _, r := range Regimes {
		p[r] = 1.0 / float64(len(Regimes))
	}
	return p
}

// Risk flag strings surfaced on snapshots. Flags are advisory to humans and
// downstream policy, never raised as errors.
const (
	FlagDataQualityDegraded   = "DATA_QUALITY_DEGRADED"
	FlagMacroDataInsufficient = "MACRO_DATA_INSUFFICIENT"
	FlagExtremeVolatility     = "EXTREME_VOLATILITY"
	FlagStateReset            = "STATE_RESET"
	FlagEmergencyPrefix       = "EMERGENCY: "
)

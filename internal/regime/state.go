package regime

import "time"

// SchemaVersion guards persisted-state compatibility. Additions to State
// must be backward-compatible; bump only on breaking changes.
const SchemaVersion = 1

// State is the engine's cross-invocation memory. It is read once at the
// start of a cycle and written once at the end; losing it silently resets
// the switch machine to its TRANSITION initial condition, which must be
// surfaced loudly, never hidden.
type State struct {
	SchemaVersion int `json:"schema_version"`

	CurrentRegime  Regime        `json:"current_regime"`
	DaysInRegime   int           `json:"days_in_regime"`
	PPrev          Probabilities `json:"p_prev,omitempty"`
	HoldsFor       int           `json:"holds_for"`
	HoldsCandidate Regime        `json:"holds_candidate,omitempty"`

	BucketHistory map[BucketName][]float64 `json:"bucket_history"`
	RegimeLog     []Regime                 `json:"regime_log"`

	// Auxiliary series accumulated across cycles because their sources
	// only expose a current scalar.
	DominanceHistory []float64 `json:"dominance_history,omitempty"`
	OIHistory        []float64 `json:"oi_history,omitempty"`

	PriceNormalizer NormalizerState `json:"price_normalizer"`
	MacroNormalizer NormalizerState `json:"macro_normalizer"`

	LastRun time.Time `json:"last_run"`
}

// NewState returns the cold-start state: TRANSITION regime, empty
// histories, no smoothed distribution.
func NewState() *State {
	bh := make(map[BucketName][]float64, len(BucketNames))
	for _, n := range BucketNames {
		bh[n] = nil
	}
	return &State{
		SchemaVersion: SchemaVersion,
		CurrentRegime: Transition,
		BucketHistory: bh,
	}
}

// Clone deep-copies the state, used by replay tests and the emergency
// short-circuit guarantee.
func (s *State) Clone() *State {
	out := *s
	out.PPrev = s.PPrev.Clone()
	if s.PPrev == nil {
		out.PPrev = nil
	}
	out.BucketHistory = make(map[BucketName][]float64, len(s.BucketHistory))
	for k, v := range s.BucketHistory {
		cp := make([]float64, len(v))
		copy(cp, v)
		out.BucketHistory[k] = cp
	}
	out.RegimeLog = append([]Regime(nil), s.RegimeLog...)
	out.DominanceHistory = append([]float64(nil), s.DominanceHistory...)
	out.OIHistory = append([]float64(nil), s.OIHistory...)
	return &out
}

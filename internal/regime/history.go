package regime

// BucketHistory is a capped per-bucket series of realized bucket values.
// The flip signal and diagnostics read it through HistoryView so they can
// never touch probabilities.
type BucketHistory struct {
	series map[BucketName][]float64
	cap    int
}

// HistoryView is the read-only surface handed to flip-signal and
// diagnostics code.
type HistoryView interface {
	Len(name BucketName) int
	Last(name BucketName) float64
	Tail(name BucketName, n int) []float64
}

// NewBucketHistory builds an empty history with the given per-bucket cap.
func NewBucketHistory(cap int) *BucketHistory {
	s := make(map[BucketName][]float64, len(BucketNames))
	for _, n := range BucketNames {
		s[n] = nil
	}
	return &BucketHistory{series: s, cap: cap}
}

// Append records one value per bucket and truncates from the front past the
// cap. Values are never rewritten.
func (h *BucketHistory) Append(values map[BucketName]float64) {
	for _, n := range BucketNames {
		s := append(h.series[n], values[n])
		if len(s) > h.cap {
			s = s[len(s)-h.cap:]
		}
		h.series[n] = s
	}
}

// Len returns the number of recorded samples for a bucket.
func (h *BucketHistory) Len(name BucketName) int { return len(h.series[name]) }

// Last returns the most recent value, or 0 when empty.
func (h *BucketHistory) Last(name BucketName) float64 {
	s := h.series[name]
	if len(s) == 0 {
		return 0
	}
	return s[len(s)-1]
}

// Tail returns a copy of the last n samples (fewer when not available).
func (h *BucketHistory) Tail(name BucketName, n int) []float64 {
	s := h.series[name]
	if n > len(s) {
		n = len(s)
	}
	out := make([]float64, n)
	copy(out, s[len(s)-n:])
	return out
}

// Export returns the raw series for persistence.
func (h *BucketHistory) Export() map[BucketName][]float64 {
	out := make(map[BucketName][]float64, len(BucketNames))
	for _, n := range BucketNames {
		s := make([]float64, len(h.series[n]))
		copy(s, h.series[n])
		out[n] = s
	}
	return out
}

// Restore replaces the series from persisted state, re-applying the cap.
func (h *BucketHistory) Restore(series map[BucketName][]float64) {
	for _, n := range BucketNames {
		s := series[n]
		if len(s) > h.cap {
			s = s[len(s)-h.cap:]
		}
		cp := make([]float64, len(s))
		copy(cp, s)
		h.series[n] = cp
	}
}

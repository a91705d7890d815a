package regime

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func historyWith(t *testing.T, rows ...map[BucketName]float64) *BucketHistory {
	t.Helper()
	h := NewBucketHistory(200)
	for _, r := range rows {
		h.Append(r)
	}
	return h
}

func flatRow(v float64) map[BucketName]float64 {
	return map[BucketName]float64{
		Momentum: v, Stability: v, Rotation: v, Sentiment: v, Macro: v,
	}
}

func TestComputeFlipSignal_InsufficientHistory(t *testing.T) {
	cfg := DefaultConfig().Flip
	h := historyWith(t, flatRow(0.5), flatRow(0.5))
	assert.Equal(t, 0.0, ComputeFlipSignal(cfg, h), "needs lookback+1 samples")
}

func TestComputeFlipSignal_Thresholds(t *testing.T) {
	cfg := DefaultConfig().Flip

	// Stable history: no flip
	h := historyWith(t, flatRow(0.5), flatRow(0.5), flatRow(0.5), flatRow(0.5))
	assert.Equal(t, 0.0, ComputeFlipSignal(cfg, h))

	// Momentum jumps by 0.4 against a stable prior mean: moderate
	h = historyWith(t, flatRow(0.2), flatRow(0.2), flatRow(0.2),
		map[BucketName]float64{Momentum: 0.6, Stability: 0.2, Rotation: 0.2})
	assert.Equal(t, 0.5, ComputeFlipSignal(cfg, h))

	// Full reversal: major
	h = historyWith(t, flatRow(0.5), flatRow(0.5), flatRow(0.5),
		map[BucketName]float64{Momentum: -0.5, Stability: 0.5, Rotation: 0.5})
	assert.Equal(t, 1.0, ComputeFlipSignal(cfg, h))
}

func TestComputeFlipSignal_IgnoresSentimentAndMacro(t *testing.T) {
	cfg := DefaultConfig().Flip
	rows := []map[BucketName]float64{
		flatRow(0.2), flatRow(0.2), flatRow(0.2),
		{Momentum: 0.2, Stability: 0.2, Rotation: 0.2, Sentiment: -1.0, Macro: 1.0},
	}
	h := historyWith(t, rows...)
	assert.Equal(t, 0.0, ComputeFlipSignal(cfg, h),
		"sentiment and macro swings must not drive the flip signal")
}

func TestComputeLogits_BullishBuckets(t *testing.T) {
	cfg := DefaultConfig().Logits
	h := NewBucketHistory(200)

	b := BucketSnapshot{Momentum: 0.8, Stability: 0.5, Rotation: -0.2, Sentiment: 0.4, Macro: 0.3}
	logits := ComputeLogits(cfg, b, 0.0, 1.0, 0.0, h)

	assert.Greater(t, logits[Bull], logits[Bear], "bullish buckets must favor BULL over BEAR")
	assert.Greater(t, logits[Bull], logits[Transition])
}

func TestComputeLogits_MacroBoostAmplifies(t *testing.T) {
	cfg := DefaultConfig().Logits
	h := NewBucketHistory(200)
	b := BucketSnapshot{Momentum: 0.5, Macro: 0.6}

	plain := ComputeLogits(cfg, b, 0, 1.0, 0, h)
	boosted := ComputeLogits(cfg, b, 0, 1.3, 0, h)
	assert.Greater(t, boosted[Bull], plain[Bull], "macro boost must raise the macro contribution")
}

func TestComputeLogits_TransitionFromVolAndFlip(t *testing.T) {
	cfg := DefaultConfig().Logits
	h := NewBucketHistory(200)
	b := BucketSnapshot{}

	calm := ComputeLogits(cfg, b, 0.0, 1.0, 0.0, h)
	stressed := ComputeLogits(cfg, b, 2.5, 1.0, 1.0, h)
	assert.Greater(t, stressed[Transition], calm[Transition])
}

func TestComputeLogits_MacroDelta7d(t *testing.T) {
	cfg := DefaultConfig().Logits
	h := NewBucketHistory(200)
	for i := 0; i < 7; i++ {
		h.Append(map[BucketName]float64{Macro: float64(i) * 0.1})
	}
	b := BucketSnapshot{}
	withDelta := ComputeLogits(cfg, b, 0, 1.0, 0, h)

	empty := NewBucketHistory(200)
	withoutDelta := ComputeLogits(cfg, b, 0, 1.0, 0, empty)
	assert.Greater(t, withDelta[Transition], withoutDelta[Transition],
		"7-day macro drift must feed the transition logit")
}

func TestSoftmax_SumsToOne(t *testing.T) {
	logits := map[Regime]float64{Bull: 2.0, Bear: -1.0, Range: 0.5, Transition: 0.1}
	p := Softmax(logits, 1.0)

	assert.InDelta(t, 1.0, p.Sum(), 1e-9)
	assert.Equal(t, Bull, p.ArgMax())
	for _, r := range Regimes {
		assert.Greater(t, p[r], 0.0)
	}
}

func TestSoftmax_TemperatureFlattens(t *testing.T) {
	logits := map[Regime]float64{Bull: 3.0, Bear: 0.0, Range: 0.0, Transition: 0.0}

	sharp := Softmax(logits, 0.8)
	flat := Softmax(logits, 1.5)
	assert.Greater(t, sharp[Bull], flat[Bull], "higher temperature must flatten the distribution")
}

func TestSoftmax_NumericallyStable(t *testing.T) {
	logits := map[Regime]float64{Bull: 1e4, Bear: 1e4 - 2, Range: 0, Transition: -1e4}
	p := Softmax(logits, 1.0)

	for _, r := range Regimes {
		require.False(t, math.IsNaN(p[r]))
		require.False(t, math.IsInf(p[r], 0))
	}
	assert.InDelta(t, 1.0, p.Sum(), 1e-9)
}

func TestSmoothProbabilities_ColdStartPassthrough(t *testing.T) {
	pNew := Probabilities{Bull: 0.7, Bear: 0.1, Range: 0.1, Transition: 0.1}
	out := SmoothProbabilities(pNew, nil, 0.3)
	assert.Equal(t, pNew, out)

	// Must be an independent copy
	out[Bull] = 0.0
	assert.Equal(t, 0.7, pNew[Bull])
}

func TestSmoothProbabilities_Blend(t *testing.T) {
	pNew := Probabilities{Bull: 1.0, Bear: 0, Range: 0, Transition: 0}
	pPrev := Probabilities{Bull: 0, Bear: 1.0, Range: 0, Transition: 0}

	out := SmoothProbabilities(pNew, pPrev, 0.3)
	assert.InDelta(t, 0.3, out[Bull], 1e-9)
	assert.InDelta(t, 0.7, out[Bear], 1e-9)
	assert.InDelta(t, 1.0, out.Sum(), 1e-9)
}

func TestProbabilities_ArgMaxTieBreaksCanonically(t *testing.T) {
	p := Probabilities{Bull: 0.25, Bear: 0.25, Range: 0.25, Transition: 0.25}
	assert.Equal(t, Bull, p.ArgMax(), "exact ties resolve in canonical order")
}

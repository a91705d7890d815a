package regime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeConfidence_EntropyExtremes(t *testing.T) {
	cfg := DefaultConfig().Confidence

	uniform := Uniform()
	c := ComputeConfidence(cfg, uniform, 1.0, 0, 0.5, 0.5, nil)
	assert.InDelta(t, 0.0, c.Base, 1e-6, "uniform distribution carries zero confidence")

	certain := Probabilities{Bull: 1 - 3e-10, Bear: 1e-10, Range: 1e-10, Transition: 1e-10}
	c = ComputeConfidence(cfg, certain, 1.0, 0, 0.5, 0.5, nil)
	assert.Greater(t, c.Base, 0.99, "a near-degenerate distribution carries near-full confidence")
}

func TestComputeConfidence_QualityScales(t *testing.T) {
	cfg := DefaultConfig().Confidence
	p := Probabilities{Bull: 0.7, Bear: 0.1, Range: 0.1, Transition: 0.1}

	full := ComputeConfidence(cfg, p, 1.0, 0, 0.5, 0.5, nil)
	half := ComputeConfidence(cfg, p, 0.5, 0, 0.5, 0.5, nil)
	assert.InDelta(t, full.QualityAdjusted/2, half.QualityAdjusted, 1e-3)
}

func TestComputeConfidence_ExtremeSentimentPenalty(t *testing.T) {
	cfg := DefaultConfig().Confidence
	p := Probabilities{Bull: 0.7, Bear: 0.1, Range: 0.1, Transition: 0.1}

	normal := ComputeConfidence(cfg, p, 1.0, 0.5, 0.5, 0.5, nil)
	euphoric := ComputeConfidence(cfg, p, 1.0, 0.9, 0.5, 0.5, nil)
	assert.InDelta(t, normal.QualityAdjusted*cfg.SentimentExtremePenalty,
		euphoric.QualityAdjusted, 1e-3, "euphoric sentiment haircuts confidence")
}

func TestComputeConfidence_DecoupledBonusCapped(t *testing.T) {
	cfg := DefaultConfig().Confidence
	p := Probabilities{Bull: 0.97, Bear: 0.01, Range: 0.01, Transition: 0.01}

	c := ComputeConfidence(cfg, p, 1.0, 0, 0.1, 0.1, nil)
	assert.LessOrEqual(t, c.QualityAdjusted, cfg.Cap,
		"decoupling bonus never exceeds the cap")

	coupled := ComputeConfidence(cfg, p, 1.0, 0, 0.8, 0.8, nil)
	assert.LessOrEqual(t, coupled.QualityAdjusted, c.QualityAdjusted)
}

func TestCountSwitches(t *testing.T) {
	assert.Equal(t, 0, CountSwitches(nil, 30))
	assert.Equal(t, 0, CountSwitches([]Regime{Bull}, 30))
	assert.Equal(t, 0, CountSwitches([]Regime{Bull, Bull, Bull}, 30))
	assert.Equal(t, 2, CountSwitches([]Regime{Bull, Bear, Bear, Range}, 30))

	// Only the trailing window counts
	log := []Regime{Bull, Bear, Bull, Bear}
	for i := 0; i < 30; i++ {
		log = append(log, Range)
	}
	assert.Equal(t, 0, CountSwitches(log, 30))
}

func TestChurnPenalty_FreeAllowance(t *testing.T) {
	cfg := DefaultConfig().Confidence

	assert.Equal(t, 1.0, ChurnPenalty(cfg, 0))
	assert.Equal(t, 1.0, ChurnPenalty(cfg, 1))
	assert.Equal(t, 1.0, ChurnPenalty(cfg, 2), "free switches carry no penalty")
}

func TestChurnPenalty_MonotoneWithFloor(t *testing.T) {
	cfg := DefaultConfig().Confidence

	assert.InDelta(t, 0.90, ChurnPenalty(cfg, 3), 1e-9)
	assert.InDelta(t, 0.80, ChurnPenalty(cfg, 4), 1e-9)

	prev := 1.0
	for s := 0; s < 20; s++ {
		p := ChurnPenalty(cfg, s)
		assert.LessOrEqual(t, p, prev, "penalty must be monotone in switch count")
		prev = p
	}
	assert.Equal(t, cfg.ChurnFloor, ChurnPenalty(cfg, 100), "penalty bottoms out at the floor")
}

func TestComputeSignalQuality_Bounds(t *testing.T) {
	cfg := DefaultConfig().Quality

	q := ComputeSignalQuality(cfg, 0.8, -0.5, 0.6, 30, 1.0)
	assert.Greater(t, q, 0.0)
	assert.LessOrEqual(t, q, 1.0)

	// Inverse momentum/stability plus macro agreement beats a conflicted read
	conflicted := ComputeSignalQuality(cfg, 0.8, 0.5, -0.6, 30, 1.0)
	assert.Greater(t, q, conflicted)
}

func TestComputeSignalQuality_PersistenceFloor(t *testing.T) {
	cfg := DefaultConfig().Quality

	day0 := ComputeSignalQuality(cfg, 0.5, -0.5, 0.5, 0, 1.0)
	day30 := ComputeSignalQuality(cfg, 0.5, -0.5, 0.5, 30, 1.0)
	assert.Greater(t, day30, day0, "longer tenure raises persistence up to its cap")
}

package regime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShouldSwitch_CandidateIsIncumbent(t *testing.T) {
	conf := DefaultConfig().Confirmation
	p := Probabilities{Bull: 0.9, Bear: 0.03, Range: 0.03, Transition: 0.04}

	_, ok := ShouldSwitch(conf, p, Bull, 10)
	assert.False(t, ok, "no switch when the leader already holds the regime")
}

func TestShouldSwitch_ConsensusPath(t *testing.T) {
	conf := DefaultConfig().Confirmation // BULL: threshold 0.65, 3 days

	p := Probabilities{Bull: 0.70, Bear: 0.10, Range: 0.10, Transition: 0.10}

	_, ok := ShouldSwitch(conf, p, Range, 1)
	assert.False(t, ok, "one day of evidence confirms nothing for BULL")

	next, ok := ShouldSwitch(conf, p, Range, 3)
	assert.True(t, ok, "consensus satisfied at exactly the required days")
	assert.Equal(t, Bull, next)
}

func TestShouldSwitch_ConsensusThresholdIsStrict(t *testing.T) {
	conf := map[Regime]Confirmation{
		Bull: {ConsensusThreshold: 0.65, ConsensusDays: 3, LeaderDelta: 0.90, LeaderDays: 9},
	}
	p := Probabilities{Bull: 0.65, Bear: 0.15, Range: 0.10, Transition: 0.10}

	_, ok := ShouldSwitch(conf, p, Range, 10)
	assert.False(t, ok, "probability exactly at the threshold must not fire")
}

func TestShouldSwitch_LeaderPath(t *testing.T) {
	conf := DefaultConfig().Confirmation // BEAR: delta 0.18, 1 day

	// BEAR leads RANGE by 0.20 without clearing the 0.55 consensus bar
	p := Probabilities{Bull: 0.12, Bear: 0.48, Range: 0.28, Transition: 0.12}

	next, ok := ShouldSwitch(conf, p, Range, 1)
	assert.True(t, ok, "clear leadership over the incumbent fires the leader path")
	assert.Equal(t, Bear, next)
}

func TestShouldSwitch_AsymmetricEntry(t *testing.T) {
	conf := DefaultConfig().Confirmation

	// Identical 0.56 leader: BEAR confirms after 1 day, BULL needs 3
	pBear := Probabilities{Bull: 0.14, Bear: 0.56, Range: 0.15, Transition: 0.15}
	_, ok := ShouldSwitch(conf, pBear, Range, 1)
	assert.True(t, ok, "bear entry confirms quickly")

	pBull := Probabilities{Bull: 0.56, Bear: 0.14, Range: 0.15, Transition: 0.15}
	_, ok = ShouldSwitch(conf, pBull, Range, 1)
	assert.False(t, ok, "bull entry needs more evidence than bear entry")
}

func TestShouldSwitch_NoPathSatisfied(t *testing.T) {
	conf := DefaultConfig().Confirmation
	p := Probabilities{Bull: 0.30, Bear: 0.26, Range: 0.22, Transition: 0.22}

	_, ok := ShouldSwitch(conf, p, Range, 1)
	assert.False(t, ok, "a narrow lead below both gates must hold the incumbent")
}

package regime

// ShouldSwitch evaluates the asymmetric dual-path regime confirmation.
// A switch to the leading candidate fires when either the consensus path
// (candidate probability above the target regime's threshold for enough
// consecutive cycles) or the leader path (probability lead over the
// incumbent above the target's delta for enough cycles) is satisfied.
// Returns the new regime and true, or the zero value and false.
func ShouldSwitch(conf map[Regime]Confirmation, p Probabilities, current Regime, holdsFor int) (Regime, bool) {
	candidate := p.ArgMax()
	if candidate == current {
		return "", false
	}

	c, ok := conf[candidate]
	if !ok {
		return "", false
	}

	// Path 1: strong consensus
	if p[candidate] > c.ConsensusThreshold && holdsFor >= c.ConsensusDays {
		return candidate, true
	}

	// Path 2: clear leadership over the incumbent
	if p[candidate]-p[current] > c.LeaderDelta && holdsFor >= c.LeaderDays {
		return candidate, true
	}

	return "", false
}

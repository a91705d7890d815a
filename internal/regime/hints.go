package regime

// Hints is strategy-level guidance for downstream policy layers.
type Hints struct {
	StrategyClass     string `json:"strategy_class"`
	SuggestedLPMode   string `json:"suggested_lp_mode"`
	RebalanceUrgency  string `json:"rebalance_urgency,omitempty"`
	RangeType         string `json:"range_type,omitempty"`
	DurationWarning   string `json:"duration_warning,omitempty"`
	BreakoutProximity string `json:"breakout_proximity,omitempty"`
	BreakoutDirection string `json:"breakout_direction,omitempty"`
}

// OperationalHints derives per-regime guidance. RANGE is sub-typed by
// stability and volatility, with extended-duration and breakout warnings.
func OperationalHints(cfg HintsConfig, r Regime, stability, volZ, momentum float64, daysInRegime int) Hints {
	switch r {
	case Bull:
		return Hints{
			StrategyClass:    "directional",
			SuggestedLPMode:  "wide_range_trend_following",
			RebalanceUrgency: "low",
		}
	case Bear:
		return Hints{
			StrategyClass:    "capital_preservation",
			SuggestedLPMode:  "stablecoin_only_or_exit",
			RebalanceUrgency: "high",
		}
	case Range:
		h := Hints{
			StrategyClass:    "mean_reversion",
			RebalanceUrgency: "low",
		}
		absVolZ := volZ
		if absVolZ < 0 {
			absVolZ = -absVolZ
		}
		switch {
		case stability > cfg.StableRangeStability && absVolZ < cfg.StableRangeVolZ:
			h.RangeType = "STABLE_RANGE"
			h.SuggestedLPMode = "tight_range_concentrated"
		case stability > 0.0 && absVolZ < cfg.NormalRangeVolZ:
			h.RangeType = "NORMAL_RANGE"
			h.SuggestedLPMode = "moderate_range"
		default:
			h.RangeType = "VOLATILE_RANGE"
			h.SuggestedLPMode = "wide_range_or_skip"
		}
		if daysInRegime > cfg.ExtendedRangeDays {
			h.DurationWarning = "extended_range_30d"
		}
		if momentum > cfg.BreakoutMomentum || momentum < -cfg.BreakoutMomentum {
			h.BreakoutProximity = "ELEVATED"
			if momentum > 0 {
				h.BreakoutDirection = "up"
			} else {
				h.BreakoutDirection = "down"
			}
		}
		return h
	default: // TRANSITION
		return Hints{
			StrategyClass:    "defensive",
			SuggestedLPMode:  "reduce_or_exit",
			RebalanceUrgency: "high",
		}
	}
}

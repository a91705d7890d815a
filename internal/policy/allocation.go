package policy

import (
	"fmt"
	"strings"
	"time"
)

// Action is a discrete allocation decision for a single asset.
type Action string

const (
	StrongBuy  Action = "STRONG_BUY"
	Buy        Action = "BUY"
	Hold       Action = "HOLD"
	Sell       Action = "SELL"
	StrongSell Action = "STRONG_SELL"
)

var actionRank = map[Action]int{
	StrongBuy:  4,
	Buy:        3,
	Hold:       2,
	Sell:       1,
	StrongSell: 0,
}

// Confidence gates per action tier.
const (
	confNoAction   = 0.40
	confAction     = 0.50
	confStrongSell = 0.60
	confStrongBuy  = 0.70

	momStrong = 0.50

	riskTransitionSell = -0.30
)

// Anti-churn windows, in days.
const (
	maxActions30d            = 3
	cooldownBuyAfterSell     = 7
	cooldownSellAfterBuy     = 3
	cooldownStrongAfterStrong = 14
)

var sizesBTC = map[Action]float64{
	StrongBuy:  0.20,
	Buy:        0.10,
	Hold:       0.00,
	Sell:       -0.15,
	StrongSell: -0.50,
}

// ETH never gets a STRONG_BUY size. Exits are deeper than BTC's.
var sizesETH = map[Action]float64{
	StrongBuy:  0.00,
	Buy:        0.05,
	Hold:       0.00,
	Sell:       -0.20,
	StrongSell: -0.70,
}

var regimeActions = map[string][]Action{
	"BULL":       {StrongBuy, Buy, Hold},
	"BEAR":       {StrongSell, Sell, Hold},
	"RANGE":      {Hold},
	"TRANSITION": {StrongSell, Sell, Hold},
}

var ethAllowed = map[RiskState][]Action{
	RiskOn:      {Buy, Hold},
	RiskNeutral: {Hold},
	RiskOff:     {StrongSell, Sell},
}

// PastAction records a previously executed allocation change.
type PastAction struct {
	Action Action    `json:"action"`
	Date   time.Time `json:"date"`
}

// AllocationInputs carries everything the allocation policy consumes.
// RiskLevel and the bucket values come from the regime snapshot; the
// action history is the caller's own bookkeeping.
type AllocationInputs struct {
	Regime     string
	Confidence float64
	RiskLevel  float64
	Momentum   float64
	VolZ       float64
	Returns30d float64

	Asset     string
	BTCAction Action

	LastAction *PastAction
	History    []PastAction
	Today      time.Time
}

// Allocation is the decision for one asset with its audit trail.
type Allocation struct {
	Asset      string    `json:"asset"`
	Action     Action    `json:"action"`
	SizePct    float64   `json:"size_pct"`
	Confidence float64   `json:"confidence"`
	Stance     RiskState `json:"stance"`
	BlockedBy  string    `json:"blocked_by,omitempty"`
	Reasoning  []string  `json:"reasoning"`
}

func determineStance(reg string, confidence, riskLevel float64) RiskState {
	switch {
	case reg == "BULL" && confidence > 0.60 && riskLevel > 0.30:
		return RiskOn
	case reg == "BEAR" && riskLevel < -0.30:
		return RiskOff
	case reg == "TRANSITION" && riskLevel < -0.30:
		return RiskOff
	default:
		return RiskNeutral
	}
}

func confidenceAllows(confidence float64, a Action) bool {
	switch a {
	case Hold:
		return true
	case Buy, Sell:
		return confidence >= confAction
	case StrongSell:
		return confidence >= confStrongSell
	case StrongBuy:
		return confidence >= confStrongBuy
	}
	return false
}

func regimeAllows(reg string, a Action) bool {
	allowed, ok := regimeActions[reg]
	if !ok {
		return a == Hold
	}
	for _, x := range allowed {
		if x == a {
			return true
		}
	}
	return false
}

func cooldownActive(last *PastAction, proposed Action, today time.Time) (bool, int) {
	if last == nil {
		return false, 0
	}
	daysSince := int(today.Sub(last.Date).Hours() / 24)

	isSell := last.Action == Sell || last.Action == StrongSell
	isBuy := last.Action == Buy || last.Action == StrongBuy

	if isSell && (proposed == Buy || proposed == StrongBuy) && daysSince < cooldownBuyAfterSell {
		return true, cooldownBuyAfterSell - daysSince
	}
	if isBuy && (proposed == Sell || proposed == StrongSell) && daysSince < cooldownSellAfterBuy {
		return true, cooldownSellAfterBuy - daysSince
	}
	if strings.HasPrefix(string(last.Action), "STRONG") && strings.HasPrefix(string(proposed), "STRONG") && daysSince < cooldownStrongAfterStrong {
		return true, cooldownStrongAfterStrong - daysSince
	}
	return false, 0
}

func countActions30d(history []PastAction, today time.Time) int {
	cutoff := today.AddDate(0, 0, -30)
	n := 0
	for _, h := range history {
		if !h.Date.Before(cutoff) && h.Action != Hold {
			n++
		}
	}
	return n
}

func applyETHCeiling(btc, eth Action) Action {
	if actionRank[eth] <= actionRank[btc] {
		return eth
	}
	for a, r := range actionRank {
		if r == actionRank[btc] {
			return a
		}
	}
	return eth
}

func applyETHStance(a Action, stance RiskState) Action {
	allowed := ethAllowed[stance]
	for _, x := range allowed {
		if x == a {
			return a
		}
	}
	if a == StrongBuy {
		for _, x := range allowed {
			if x == Buy {
				return Buy
			}
		}
		return Hold
	}
	if stance == RiskOff {
		return Sell
	}
	return Hold
}

func getSize(asset string, a Action) float64 {
	if asset == "BTC" {
		return sizesBTC[a]
	}
	return sizesETH[a]
}

// ComputeAllocation turns the regime read into a single allocation
// decision for one asset. Counter-cyclical overrides run first: the
// policy refuses to sell into a panic and refuses to buy into
// euphoria, then the regular regime, confidence, cooldown and churn
// gates apply in order.
func ComputeAllocation(in AllocationInputs) Allocation {
	today := in.Today
	if today.IsZero() {
		today = time.Now().UTC()
	}

	out := Allocation{
		Asset:      in.Asset,
		Confidence: in.Confidence,
		Stance:     determineStance(in.Regime, in.Confidence, in.RiskLevel),
	}
	reason := func(format string, args ...any) {
		out.Reasoning = append(out.Reasoning, fmt.Sprintf(format, args...))
	}
	finish := func(a Action, blockedBy string) Allocation {
		out.Action = a
		out.SizePct = getSize(in.Asset, a)
		out.BlockedBy = blockedBy
		return out
	}

	isPanic := (in.Momentum < -0.50 && in.VolZ > 1.5) ||
		(in.Momentum < -0.60 && in.VolZ > 1.0) ||
		in.Returns30d < -0.30
	isExtremePanic := in.Momentum < -0.75 && in.VolZ > 2.0
	isDeepDrawdown := in.Returns30d < -0.25
	isEuphoria := in.Momentum > 0.70 && in.Confidence > 0.60
	isExtremeEuphoria := in.Momentum > 0.80 && in.Confidence > 0.70
	isBigRally := in.Returns30d > 0.40

	// Accumulate on fear: extreme panic plus a deep drawdown is a
	// buying opportunity, not an exit.
	if isExtremePanic && isDeepDrawdown && in.Asset == "BTC" {
		reason("counter-cyclical: panic + deep drawdown, accumulating")
		reason("momentum=%.2f vol_z=%.2f returns_30d=%.1f%%", in.Momentum, in.VolZ, in.Returns30d*100)
		if active, remaining := cooldownActive(in.LastAction, Buy, today); active {
			reason("cooldown active: %dd remaining", remaining)
			return finish(Hold, "COOLDOWN")
		}
		return finish(Buy, "")
	}

	// Take profit on greed.
	if isExtremeEuphoria && isBigRally && in.Asset == "BTC" {
		reason("counter-cyclical: euphoria + big rally, taking profit")
		if active, remaining := cooldownActive(in.LastAction, Sell, today); active {
			reason("cooldown active: %dd remaining", remaining)
			return finish(Hold, "COOLDOWN")
		}
		return finish(Sell, "")
	}

	// Confidence gate.
	if in.Confidence < confNoAction {
		reason("confidence %.2f below action gate %.2f", in.Confidence, confNoAction)
		if in.Asset == "ETH" && out.Stance == RiskOff {
			reason("ETH exception: must exit in RISK_OFF")
			return finish(Sell, "")
		}
		return finish(Hold, "CONFIDENCE")
	}

	var raw Action
	switch in.Regime {
	case "BULL":
		switch {
		case isEuphoria || isExtremeEuphoria:
			raw = Hold
			reason("BULL: euphoria detected (mom=%.2f), not buying overbought", in.Momentum)
		case in.Confidence >= confStrongBuy && in.Momentum > momStrong:
			raw = StrongBuy
			reason("BULL: conf %.2f, mom %.2f", in.Confidence, in.Momentum)
		case in.Confidence >= confAction && in.Momentum > 0:
			raw = Buy
			reason("BULL: conf %.2f, mom %.2f", in.Confidence, in.Momentum)
		default:
			raw = Hold
			reason("BULL: conditions not met")
		}
	case "BEAR":
		switch {
		case isPanic || isExtremePanic:
			raw = Hold
			reason("BEAR: panic detected (mom=%.2f vol_z=%.2f), not selling into panic", in.Momentum, in.VolZ)
		case in.Confidence >= confStrongSell && in.Momentum < -momStrong:
			raw = StrongSell
			reason("BEAR: conf %.2f, mom %.2f", in.Confidence, in.Momentum)
		case in.Confidence >= confAction && in.Momentum < 0:
			raw = Sell
			reason("BEAR: conf %.2f, mom %.2f", in.Confidence, in.Momentum)
		default:
			raw = Hold
			reason("BEAR: conditions not met")
		}
	case "TRANSITION":
		if in.RiskLevel < riskTransitionSell && in.Confidence >= confAction {
			raw = Sell
			reason("TRANSITION: risk %.2f below %.2f", in.RiskLevel, riskTransitionSell)
		} else {
			raw = Hold
			reason("TRANSITION: capital preservation")
		}
	default: // RANGE
		switch {
		case isPanic && in.Asset == "BTC":
			raw = Buy
			reason("RANGE + panic: mean reversion accumulation")
		case isEuphoria && in.Asset == "BTC":
			raw = Sell
			reason("RANGE + euphoria: mean reversion reduction")
		default:
			raw = Hold
			reason("RANGE: hold only")
		}
	}

	if !regimeAllows(in.Regime, raw) {
		reason("regime gate: %s not allowed in %s", raw, in.Regime)
		raw = Hold
	}
	if !confidenceAllows(in.Confidence, raw) {
		reason("confidence gate: %s requires higher confidence", raw)
		raw = Hold
	}

	if in.Asset == "ETH" {
		if adjusted := applyETHStance(raw, out.Stance); adjusted != raw {
			reason("ETH stance rule: %s downgraded to %s", raw, adjusted)
			raw = adjusted
		}
		if in.BTCAction != "" {
			if adjusted := applyETHCeiling(in.BTCAction, raw); adjusted != raw {
				reason("ETH ceiling: cannot exceed BTC (%s)", in.BTCAction)
				raw = adjusted
			}
		}
		if raw == StrongBuy {
			reason("ETH: STRONG_BUY not allowed, downgraded to BUY")
			raw = Buy
		}
	}

	if active, remaining := cooldownActive(in.LastAction, raw, today); active {
		reason("cooldown: %dd remaining before %s", remaining, raw)
		return finish(Hold, "COOLDOWN")
	}

	// Churn protection never blocks an emergency exit.
	if countActions30d(in.History, today) >= maxActions30d && raw != StrongSell {
		reason("churn protection: %d/%d actions in 30d", countActions30d(in.History, today), maxActions30d)
		return finish(Hold, "CHURN")
	}

	return finish(raw, "")
}

package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var allocToday = time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

func bullBTC() AllocationInputs {
	return AllocationInputs{
		Regime:     "BULL",
		Confidence: 0.75,
		RiskLevel:  0.55,
		Momentum:   0.60,
		Asset:      "BTC",
		Today:      allocToday,
	}
}

func TestAllocationStrongBuyInConfirmedBull(t *testing.T) {
	out := ComputeAllocation(bullBTC())

	assert.Equal(t, StrongBuy, out.Action)
	assert.Equal(t, 0.20, out.SizePct)
	assert.Equal(t, RiskOn, out.Stance)
	assert.Empty(t, out.BlockedBy)
}

func TestAllocationBullWeakMomentumBuys(t *testing.T) {
	in := bullBTC()
	in.Confidence = 0.55
	in.Momentum = 0.20

	out := ComputeAllocation(in)
	assert.Equal(t, Buy, out.Action)
	assert.Equal(t, 0.10, out.SizePct)
}

func TestAllocationEuphoriaBlocksBuying(t *testing.T) {
	in := bullBTC()
	in.Momentum = 0.75

	out := ComputeAllocation(in)
	assert.Equal(t, Hold, out.Action, "buying into euphoria is refused")
}

func TestAllocationBearSellsButNotIntoPanic(t *testing.T) {
	in := AllocationInputs{
		Regime:     "BEAR",
		Confidence: 0.65,
		RiskLevel:  -0.60,
		Momentum:   -0.55,
		VolZ:       0.5,
		Asset:      "BTC",
		Today:      allocToday,
	}

	out := ComputeAllocation(in)
	assert.Equal(t, StrongSell, out.Action)
	assert.Equal(t, -0.50, out.SizePct)
	assert.Equal(t, RiskOff, out.Stance)

	// Same read but in a volatility panic: hold instead of capitulating
	in.VolZ = 2.0
	out = ComputeAllocation(in)
	assert.Equal(t, Hold, out.Action)
}

func TestAllocationCounterCyclicalAccumulation(t *testing.T) {
	in := AllocationInputs{
		Regime:     "BEAR",
		Confidence: 0.30, // even below the action gate
		Momentum:   -0.80,
		VolZ:       2.5,
		Returns30d: -0.35,
		Asset:      "BTC",
		Today:      allocToday,
	}

	out := ComputeAllocation(in)
	assert.Equal(t, Buy, out.Action, "extreme panic plus deep drawdown accumulates")
	assert.Equal(t, 0.10, out.SizePct)
}

func TestAllocationCounterCyclicalProfitTaking(t *testing.T) {
	in := AllocationInputs{
		Regime:     "BULL",
		Confidence: 0.80,
		RiskLevel:  0.60,
		Momentum:   0.85,
		Returns30d: 0.45,
		Asset:      "BTC",
		Today:      allocToday,
	}

	out := ComputeAllocation(in)
	assert.Equal(t, Sell, out.Action, "euphoria plus a big rally takes profit")
}

func TestAllocationConfidenceGateHolds(t *testing.T) {
	in := bullBTC()
	in.Confidence = 0.35

	out := ComputeAllocation(in)
	assert.Equal(t, Hold, out.Action)
	assert.Equal(t, "CONFIDENCE", out.BlockedBy)
}

func TestAllocationETHMustExitRiskOffEvenBelowGate(t *testing.T) {
	in := AllocationInputs{
		Regime:     "BEAR",
		Confidence: 0.30,
		RiskLevel:  -0.50,
		Momentum:   -0.30,
		Asset:      "ETH",
		Today:      allocToday,
	}

	out := ComputeAllocation(in)
	assert.Equal(t, Sell, out.Action, "ETH has no hiding place in RISK_OFF")
	assert.Equal(t, -0.20, out.SizePct)
}

func TestAllocationRangeMeanReversionIsGated(t *testing.T) {
	in := AllocationInputs{
		Regime:     "RANGE",
		Confidence: 0.65,
		Momentum:   -0.65,
		VolZ:       1.2,
		Asset:      "BTC",
		Today:      allocToday,
	}

	out := ComputeAllocation(in)
	assert.Equal(t, Hold, out.Action, "RANGE only ever holds")
	assert.Contains(t, out.Reasoning[0], "mean reversion")
}

func TestAllocationTransitionRiskSell(t *testing.T) {
	in := AllocationInputs{
		Regime:     "TRANSITION",
		Confidence: 0.60,
		RiskLevel:  -0.45,
		Asset:      "BTC",
		Today:      allocToday,
	}

	out := ComputeAllocation(in)
	assert.Equal(t, Sell, out.Action)

	in.RiskLevel = -0.10
	out = ComputeAllocation(in)
	assert.Equal(t, Hold, out.Action, "TRANSITION preserves capital unless risk is clearly off")
}

func TestAllocationCooldownBlocksReversal(t *testing.T) {
	in := bullBTC()
	in.LastAction = &PastAction{Action: Sell, Date: allocToday.AddDate(0, 0, -3)}

	out := ComputeAllocation(in)
	assert.Equal(t, Hold, out.Action)
	assert.Equal(t, "COOLDOWN", out.BlockedBy)

	// Cooldown expired
	in.LastAction = &PastAction{Action: Sell, Date: allocToday.AddDate(0, 0, -8)}
	out = ComputeAllocation(in)
	assert.Equal(t, StrongBuy, out.Action)
}

func TestAllocationStrongAfterStrongCooldown(t *testing.T) {
	in := bullBTC()
	in.LastAction = &PastAction{Action: StrongSell, Date: allocToday.AddDate(0, 0, -10)}

	out := ComputeAllocation(in)
	assert.Equal(t, Hold, out.Action)
	assert.Equal(t, "COOLDOWN", out.BlockedBy)
}

func TestAllocationChurnCapSparesStrongSell(t *testing.T) {
	history := []PastAction{
		{Action: Buy, Date: allocToday.AddDate(0, 0, -5)},
		{Action: Sell, Date: allocToday.AddDate(0, 0, -10)},
		{Action: Buy, Date: allocToday.AddDate(0, 0, -20)},
	}

	in := bullBTC()
	in.History = history
	out := ComputeAllocation(in)
	assert.Equal(t, Hold, out.Action)
	assert.Equal(t, "CHURN", out.BlockedBy)

	// STRONG_SELL is the emergency exit and is never churn-blocked
	bear := AllocationInputs{
		Regime:     "BEAR",
		Confidence: 0.65,
		RiskLevel:  -0.60,
		Momentum:   -0.55,
		VolZ:       0.5,
		Asset:      "BTC",
		History:    history,
		Today:      allocToday,
	}
	out = ComputeAllocation(bear)
	assert.Equal(t, StrongSell, out.Action)
	assert.Empty(t, out.BlockedBy)
}

func TestAllocationChurnIgnoresOldAndHoldEntries(t *testing.T) {
	in := bullBTC()
	in.History = []PastAction{
		{Action: Buy, Date: allocToday.AddDate(0, 0, -40)},
		{Action: Hold, Date: allocToday.AddDate(0, 0, -5)},
		{Action: Buy, Date: allocToday.AddDate(0, 0, -10)},
	}

	out := ComputeAllocation(in)
	assert.Equal(t, StrongBuy, out.Action, "only real actions inside 30d count")
}

func TestAllocationETHCeilingAndStance(t *testing.T) {
	in := AllocationInputs{
		Regime:     "BULL",
		Confidence: 0.80,
		RiskLevel:  0.55,
		Momentum:   0.60,
		Asset:      "ETH",
		BTCAction:  Buy,
		Today:      allocToday,
	}

	out := ComputeAllocation(in)
	assert.Equal(t, Buy, out.Action, "ETH cannot exceed BTC's action")
	assert.Equal(t, 0.05, out.SizePct)
}

func TestAllocationETHNeutralStanceHolds(t *testing.T) {
	in := AllocationInputs{
		Regime:     "BULL",
		Confidence: 0.55,
		RiskLevel:  0.10, // not enough for RISK_ON
		Momentum:   0.30,
		Asset:      "ETH",
		BTCAction:  Buy,
		Today:      allocToday,
	}

	out := ComputeAllocation(in)
	assert.Equal(t, Hold, out.Action, "neutral stance keeps ETH flat")
}

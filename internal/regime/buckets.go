package regime

import (
	"math"
)

// BucketValue is a single bucket reading with its component breakdown.
type BucketValue struct {
	Value      float64            `json:"value"`
	Components map[string]float64 `json:"components"`
	Disabled   bool               `json:"disabled,omitempty"`
}

// StabilityValue carries the extra vol z-score that drives temperature,
// smoothing, and the safety override.
type StabilityValue struct {
	BucketValue
	VolZ float64 `json:"vol_z"`
}

// RotationValue carries the pre-dampening base signal.
type RotationValue struct {
	BucketValue
	Base            float64 `json:"base"`
	ContextAdjusted bool    `json:"context_adjusted"`
}

// MacroValue carries constituent availability.
type MacroValue struct {
	BucketValue
	Available int `json:"available"`
	Total     int `json:"total"`
}

// CrossAsset is the correlation of the asset's returns against the two
// reference assets, plus the derived macro logit-weight boost.
type CrossAsset struct {
	CorrSPX         float64 `json:"corr_btc_spx"`
	CorrGold        float64 `json:"corr_btc_gold"`
	MacroWeightBoost float64 `json:"macro_weight_boost"`
}

// ComputeMomentum blends a regime-relative multi-indicator score with an
// absolute threshold-based score so that strong absolute trends do not
// decay under cross-sectional normalization.
func ComputeMomentum(cfg MomentumConfig, close, high, low, tmcHistory []float64, norm *AdaptiveNormalizer) BucketValue {
	roc30 := ROCSeries(close, 30)
	roc90 := ROCSeries(close, 90)

	blend := make([]float64, 0, len(close))
	for i := range close {
		switch {
		case !math.IsNaN(roc30[i]) && !math.IsNaN(roc90[i]):
			blend = append(blend, cfg.ROCBlend30dWeight*roc30[i]+cfg.ROCBlend90dWeight*roc90[i])
		case !math.IsNaN(roc30[i]):
			blend = append(blend, roc30[i])
		}
	}
	rocBlendZ := norm.Normalize(blend)

	adx, plusDI, minusDI := ADX(high, low, close, cfg.ADXPeriod)
	adxClean := dropNaN(adx)
	adxZ := 0.0
	if len(adxClean) > 5 {
		adxZ = norm.Normalize(adxClean)
	}
	direction := -1.0
	if len(plusDI) > 0 && plusDI[len(plusDI)-1] > minusDI[len(minusDI)-1] {
		direction = 1.0
	}
	trendStrengthZ := adxZ * direction

	emaFast := EMASeries(close, cfg.EMAFast)
	emaMed := EMASeries(close, cfg.EMAMedium)
	emaSlow := EMASeries(close, cfg.EMASlow)
	alignment := emaAlignment(emaFast, emaMed) + emaAlignment(emaMed, emaSlow)

	dtmcZ := 0.0
	if len(tmcHistory) >= 30 {
		var dtmc []float64
		for i := 30; i < len(tmcHistory); i++ {
			if base := tmcHistory[i-30]; base > 0 {
				dtmc = append(dtmc, tmcHistory[i]/base-1.0)
			}
		}
		if len(dtmc) > 5 {
			dtmcZ = norm.Normalize(dtmc)
		}
	}

	relative := clip1(cfg.ROCBlendWeight*rocBlendZ +
		cfg.TrendStrengthWeight*trendStrengthZ +
		cfg.AlignmentWeight*alignment +
		cfg.DTMCWeight*dtmcZ)

	lastROC90 := 0.0
	if len(roc90) > 0 && !math.IsNaN(roc90[len(roc90)-1]) {
		lastROC90 = roc90[len(roc90)-1]
	}
	absolute := clip1(lastROC90 / cfg.AbsoluteROCThreshold)

	final := clip1(cfg.RelativeWeight*relative + cfg.AbsoluteWeight*absolute)

	return BucketValue{
		Value: final,
		Components: map[string]float64{
			"roc_blend_z":       rocBlendZ,
			"trend_strength_z":  trendStrengthZ,
			"alignment":         alignment,
			"dtmc_z":            dtmcZ,
			"absolute_momentum": absolute,
		},
	}
}

func emaAlignment(fast, slow []float64) float64 {
	if len(fast) == 0 || len(slow) == 0 {
		return 0
	}
	f, s := fast[len(fast)-1], slow[len(slow)-1]
	if math.IsNaN(f) || math.IsNaN(s) {
		return 0
	}
	return 0.5 * sign(f-s)
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

// ComputeStability scores inverse realized volatility plus liquidity and
// depth proxies. The vol z-score is exposed for the rest of the pipeline.
func ComputeStability(cfg StabilityConfig, close, volume []float64, norm *AdaptiveNormalizer) StabilityValue {
	rvol := dropNaN(RealizedVol(close, cfg.RealizedVolWindow))
	volZ := 0.0
	if len(rvol) > 5 {
		volZ = norm.Normalize(rvol)
	}

	liqZ := 0.0
	if len(close) > 0 && close[len(close)-1] > 0 {
		liq := make([]float64, 0, len(volume))
		for i := range volume {
			if i < len(close) && close[i] > 0 {
				liq = append(liq, volume[i]/close[i])
			}
		}
		if len(liq) > 5 {
			liqZ = norm.Normalize(liq)
		}
	}

	depthZ := 0.0
	useDepth := false
	if len(rvol) > 0 && rvol[len(rvol)-1] > 0 && len(volume) >= len(rvol) {
		depth := make([]float64, len(rvol))
		offset := len(volume) - len(rvol)
		for i := range rvol {
			depth[i] = volume[offset+i] / (rvol[i] + 1e-12)
		}
		if clean := dropNaN(depth); len(clean) > 5 {
			depthZ = norm.Normalize(clean)
			useDepth = true
		}
	}

	var raw float64
	if useDepth {
		raw = cfg.VolWeight*(-volZ) + cfg.LiquidityWeight*liqZ + cfg.DepthWeight*depthZ
	} else {
		raw = cfg.FallbackVolWeight*(-volZ) + cfg.FallbackLiquidityWeight*liqZ
	}

	return StabilityValue{
		BucketValue: BucketValue{
			Value: clip1(raw),
			Components: map[string]float64{
				"neg_vol_z":   -volZ,
				"liquidity_z": liqZ,
				"depth_z":     depthZ,
			},
		},
		VolZ: volZ,
	}
}

// ComputeRotation scores capital rotation from dominance velocity and
// acceleration, dampened when it merely restates a strong momentum trend.
func ComputeRotation(cfg RotationConfig, dominance []float64, momentumValue float64, norm *AdaptiveNormalizer) RotationValue {
	if len(dominance) < 30 {
		// The synthetic neutral value marks itself as adjusted so
		// consumers never mistake it for a measured base signal.
		return RotationValue{
			BucketValue:     BucketValue{Value: 0.0, Components: map[string]float64{}},
			ContextAdjusted: true,
		}
	}

	vel7 := make([]float64, 0, len(dominance)-7)
	for i := 7; i < len(dominance); i++ {
		vel7 = append(vel7, dominance[i]-dominance[i-7])
	}
	vel30 := make([]float64, 0, len(dominance)-30)
	for i := 30; i < len(dominance); i++ {
		vel30 = append(vel30, dominance[i]-dominance[i-30])
	}

	velZ := 0.0
	if len(vel7) > 5 {
		velZ = norm.Normalize(vel7)
	}

	accelZ := 0.0
	if minLen := min(len(vel7), len(vel30)); minLen > 5 {
		accel := make([]float64, minLen)
		for i := 0; i < minLen; i++ {
			accel[i] = vel7[len(vel7)-minLen+i] - vel30[len(vel30)-minLen+i]
		}
		accelZ = norm.Normalize(accel)
	}

	base := clip1(cfg.VelocityWeight*velZ + cfg.AccelWeight*accelZ)

	rotation := base
	thresh := cfg.ContextMomentumThreshold
	switch {
	case momentumValue > thresh && base > 0:
		rotation = base * (1.0 - cfg.BullDampening*math.Min(momentumValue, 1.0))
	case momentumValue < -thresh && base < 0:
		rotation = base * (1.0 - cfg.BearDampening*math.Min(math.Abs(momentumValue), 1.0))
	}

	return RotationValue{
		BucketValue: BucketValue{
			Value: clip1(rotation),
			Components: map[string]float64{
				"velocity_z": velZ,
				"accel_z":    accelZ,
			},
		},
		Base:            base,
		ContextAdjusted: math.Abs(rotation-base) > 0.01,
	}
}

// ComputeSentiment blends the fear/greed zone score with funding-rate and
// open-interest momentum z-scores.
func ComputeSentiment(cfg SentimentConfig, fearGreed int, fundingRates, oiHistory []float64, norm *AdaptiveNormalizer) BucketValue {
	fgScore := 0.0
	for _, z := range cfg.FearGreedZones {
		if fearGreed >= z.Lo && fearGreed <= z.Hi {
			fgScore = z.Score
			break
		}
	}

	fundingScore := 0.0
	if len(fundingRates) >= 7 {
		var avg7 []float64
		for i := 7; i < len(fundingRates); i++ {
			var s float64
			for _, v := range fundingRates[i-7 : i] {
				s += v
			}
			avg7 = append(avg7, s/7)
		}
		if len(avg7) > 5 {
			fundingScore = clip1(norm.Normalize(avg7))
		}
	}

	oiScore := 0.0
	if len(oiHistory) >= 7 {
		changes := make([]float64, len(oiHistory)-1)
		for i := 1; i < len(oiHistory); i++ {
			changes[i-1] = (oiHistory[i] - oiHistory[i-1]) / (oiHistory[i-1] + 1e-12)
		}
		if len(changes) > 5 {
			oiScore = clip1(norm.Normalize(changes))
		}
	}

	raw := cfg.FearGreedWeight*fgScore + cfg.FundingWeight*fundingScore + cfg.OIWeight*oiScore

	return BucketValue{
		Value: clip1(raw),
		Components: map[string]float64{
			"fg_score":      fgScore,
			"funding_score": fundingScore,
			"oi_score":      oiScore,
			"fg_raw":        float64(fearGreed),
		},
	}
}

// ComputeMacro scores macro liquidity from the dollar index, rates, the
// yield curve, and money-supply momentum. Fewer than MinAvailable
// constituents disables the bucket entirely rather than biasing the
// decision with a partial read.
func ComputeMacro(cfg MacroConfig, dxy, us10y, us2y, m2 []float64, norm, macroNorm *AdaptiveNormalizer) MacroValue {
	components := map[string]float64{}
	available := 0
	const total = 4

	dollarSignal := 0.0
	if len(dxy) > 10 {
		dollarSignal = -norm.Normalize(dxy) // strong dollar is bearish
		components["dollar_signal"] = dollarSignal
		available++
	}

	rateSignal := 0.0
	if len(us10y) > 10 {
		rateSignal = -norm.Normalize(us10y) // high rates are tight
		components["rate_signal"] = rateSignal
		available++
	}

	ycZ := 0.0
	if len(us10y) > 10 && len(us2y) > 10 {
		minLen := min(len(us10y), len(us2y))
		yc := make([]float64, minLen)
		for i := 0; i < minLen; i++ {
			yc[i] = us10y[len(us10y)-minLen+i] - us2y[len(us2y)-minLen+i]
		}
		ycZ = norm.Normalize(yc)
		components["yc_z"] = ycZ
		available++
	}

	m2Z := 0.0
	if len(m2) > 30 {
		var mom []float64
		for i := 90; i < len(m2); i++ {
			if base := m2[i-90]; base > 0 {
				mom = append(mom, m2[i]/base-1.0)
			}
		}
		if len(mom) > 5 {
			m2Z = macroNorm.Normalize(mom)
		}
		components["m2_z"] = m2Z
		available++
	}

	if available < cfg.MinAvailable {
		return MacroValue{
			BucketValue: BucketValue{Value: 0.0, Components: components, Disabled: true},
			Available:   available,
			Total:       total,
		}
	}

	raw := cfg.DollarWeight*dollarSignal +
		cfg.RateWeight*rateSignal +
		cfg.YieldCurveWeight*ycZ +
		cfg.M2Weight*m2Z

	return MacroValue{
		BucketValue: BucketValue{Value: clip1(raw), Components: components},
		Available:   available,
		Total:       total,
	}
}

// ComputeCrossAsset correlates the asset's returns with the reference
// assets and derives the macro logit-weight boost.
func ComputeCrossAsset(cfg CrossAssetConfig, assetReturns, spxReturns, goldReturns []float64) CrossAsset {
	corrSPX := RollingCorrelation(assetReturns, spxReturns, cfg.CorrWindow)
	corrGold := RollingCorrelation(assetReturns, goldReturns, cfg.CorrWindow)

	boost := 1.0
	if math.Abs(corrSPX) > cfg.BoostThreshold {
		boost = cfg.BoostMultiplier
	}

	return CrossAsset{
		CorrSPX:          round3(corrSPX),
		CorrGold:         round3(corrGold),
		MacroWeightBoost: boost,
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func round3(x float64) float64 { return math.Round(x*1000) / 1000 }

func round4(x float64) float64 { return math.Round(x*10000) / 10000 }

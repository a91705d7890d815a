package regime

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// EMASeries computes an exponential moving average seeded with the simple
// mean of the first period values. Entries before the seed are NaN.
func EMASeries(prices []float64, period int) []float64 {
	ema := make([]float64, len(prices))
	for i := range ema {
		ema[i] = math.NaN()
	}
	if len(prices) < period || period <= 0 {
		return ema
	}
	alpha := 2.0 / (float64(period) + 1)
	var seed float64
	for _, p := range prices[:period] {
		seed += p
	}
	ema[period-1] = seed / float64(period)
	for i := period; i < len(prices); i++ {
		ema[i] = alpha*prices[i] + (1-alpha)*ema[i-1]
	}
	return ema
}

// ROCSeries computes rate of change over the given period. Entries without
// enough lookback are NaN.
func ROCSeries(prices []float64, period int) []float64 {
	roc := make([]float64, len(prices))
	for i := range roc {
		roc[i] = math.NaN()
	}
	for i := period; i < len(prices); i++ {
		if prices[i-period] != 0 {
			roc[i] = prices[i]/prices[i-period] - 1.0
		}
	}
	return roc
}

// ADX computes Wilder's Average Directional Index along with +DI and -DI.
func ADX(high, low, close []float64, period int) (adx, plusDI, minusDI []float64) {
	n := len(close)
	adx = make([]float64, n)
	plusDI = make([]float64, n)
	minusDI = make([]float64, n)
	if n < period+1 {
		return adx, plusDI, minusDI
	}

	tr := make([]float64, n)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i < n; i++ {
		hl := high[i] - low[i]
		hpc := math.Abs(high[i] - close[i-1])
		lpc := math.Abs(low[i] - close[i-1])
		tr[i] = math.Max(hl, math.Max(hpc, lpc))

		up := high[i] - high[i-1]
		down := low[i-1] - low[i]
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
	}

	// Wilder smoothing
	atr := make([]float64, n)
	sPlus := make([]float64, n)
	sMinus := make([]float64, n)
	for i := 1; i <= period; i++ {
		atr[period] += tr[i]
		sPlus[period] += plusDM[i]
		sMinus[period] += minusDM[i]
	}
	for i := period + 1; i < n; i++ {
		atr[i] = atr[i-1] - atr[i-1]/float64(period) + tr[i]
		sPlus[i] = sPlus[i-1] - sPlus[i-1]/float64(period) + plusDM[i]
		sMinus[i] = sMinus[i-1] - sMinus[i-1]/float64(period) + minusDM[i]
	}

	dx := make([]float64, n)
	for i := 0; i < n; i++ {
		if atr[i] > 0 {
			plusDI[i] = 100 * sPlus[i] / atr[i]
			minusDI[i] = 100 * sMinus[i] / atr[i]
		}
		if sum := plusDI[i] + minusDI[i]; sum > 0 {
			dx[i] = 100 * math.Abs(plusDI[i]-minusDI[i]) / sum
		}
	}

	start := 2 * period
	if start < n {
		var seed float64
		for i := period; i <= start; i++ {
			seed += dx[i]
		}
		adx[start] = seed / float64(start-period+1)
		for i := start + 1; i < n; i++ {
			adx[i] = (adx[i-1]*float64(period-1) + dx[i]) / float64(period)
		}
	}
	return adx, plusDI, minusDI
}

// RealizedVol computes the annualized standard deviation of log returns
// over a rolling window. Entries without enough lookback are NaN.
func RealizedVol(close []float64, window int) []float64 {
	vol := make([]float64, len(close))
	for i := range vol {
		vol[i] = math.NaN()
	}
	if len(close) < 2 {
		return vol
	}
	logRet := make([]float64, len(close)-1)
	for i := 1; i < len(close); i++ {
		logRet[i-1] = math.Log(close[i]+1e-12) - math.Log(close[i-1]+1e-12)
	}
	for i := window; i <= len(logRet); i++ {
		_, std := meanStd(logRet[i-window : i])
		vol[i] = std * math.Sqrt(365)
	}
	return vol
}

// LogReturns computes log returns of a price series.
func LogReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	ret := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		ret[i-1] = math.Log(prices[i]+1e-12) - math.Log(prices[i-1]+1e-12)
	}
	return ret
}

// RollingCorrelation returns the Pearson correlation of the last window
// samples of two series, skipping NaN pairs. Fewer than 10 valid pairs
// yields 0.0.
func RollingCorrelation(a, b []float64, window int) float64 {
	if len(a) < window || len(b) < window {
		return 0.0
	}
	aw := a[len(a)-window:]
	bw := b[len(b)-window:]
	var xs, ys []float64
	for i := 0; i < window; i++ {
		if math.IsNaN(aw[i]) || math.IsNaN(bw[i]) {
			continue
		}
		xs = append(xs, aw[i])
		ys = append(ys, bw[i])
	}
	if len(xs) < 10 {
		return 0.0
	}
	c := stat.Correlation(xs, ys, nil)
	if math.IsNaN(c) {
		return 0.0
	}
	return c
}

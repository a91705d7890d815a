package regime

import "time"

// Candle is one OHLCV sample of the primary asset.
type Candle struct {
	OpenTime    time.Time `json:"open_time"`
	Open        float64   `json:"open"`
	High        float64   `json:"high"`
	Low         float64   `json:"low"`
	Close       float64   `json:"close"`
	QuoteVolume float64   `json:"quote_volume"`
}

// Inputs is the pre-fetched, completeness-scored bundle the engine
// consumes. All series are already resident in memory; the engine performs
// no I/O. Missing sources are represented as empty slices or nil pointers
// and degrade the affected bucket to neutral rather than failing.
type Inputs struct {
	Candles []Candle

	FundingRates []float64
	OpenInterest *float64

	BTCDominance     *float64
	MarketCapHistory []float64

	FearGreed *int

	// Macro series
	DXY   []float64
	US10Y []float64
	US2Y  []float64
	M2    []float64

	// Cross-asset reference prices
	SPX  []float64
	Gold []float64

	Completeness float64
	Timestamp    time.Time
}

func (in *Inputs) closes() []float64 {
	out := make([]float64, len(in.Candles))
	for i, c := range in.Candles {
		out[i] = c.Close
	}
	return out
}

func (in *Inputs) highs() []float64 {
	out := make([]float64, len(in.Candles))
	for i, c := range in.Candles {
		out[i] = c.High
	}
	return out
}

func (in *Inputs) lows() []float64 {
	out := make([]float64, len(in.Candles))
	for i, c := range in.Candles {
		out[i] = c.Low
	}
	return out
}

func (in *Inputs) volumes() []float64 {
	out := make([]float64, len(in.Candles))
	for i, c := range in.Candles {
		out[i] = c.QuoteVolume
	}
	return out
}

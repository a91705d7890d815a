package data

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/sawpanic/regimerun/internal/config"
	"github.com/sawpanic/regimerun/internal/regime"
)

// Sources fetches the individual upstream series. Each method returns an
// error on failure; the pipeline decides how the failure degrades the
// bundle.
type Sources struct {
	cfg    config.DataConfig
	client *Client
}

// NewSources builds the source set.
func NewSources(cfg config.DataConfig, client *Client) *Sources {
	return &Sources{cfg: cfg, client: client}
}

// Klines fetches daily OHLCV candles from Binance spot.
// Kline rows are heterogenous arrays: numbers and numeric strings mixed.
func (s *Sources) Klines(ctx context.Context) ([]regime.Candle, error) {
	u := fmt.Sprintf("%s/api/v3/klines?symbol=%s&interval=%s&limit=%d",
		s.cfg.BinanceBaseURL, s.cfg.Symbol, s.cfg.Interval, s.cfg.CandleLimit)

	var raw [][]any
	if err := s.client.GetJSON(ctx, "binance_klines", u, &raw); err != nil {
		return nil, err
	}

	candles := make([]regime.Candle, 0, len(raw))
	for _, row := range raw {
		if len(row) < 8 {
			continue
		}
		openTime, _ := row[0].(float64)
		c := regime.Candle{
			OpenTime: time.UnixMilli(int64(openTime)).UTC(),
		}
		var err error
		if c.Open, err = asFloat(row[1]); err != nil {
			return nil, fmt.Errorf("parse kline open: %w", err)
		}
		if c.High, err = asFloat(row[2]); err != nil {
			return nil, fmt.Errorf("parse kline high: %w", err)
		}
		if c.Low, err = asFloat(row[3]); err != nil {
			return nil, fmt.Errorf("parse kline low: %w", err)
		}
		if c.Close, err = asFloat(row[4]); err != nil {
			return nil, fmt.Errorf("parse kline close: %w", err)
		}
		if c.QuoteVolume, err = asFloat(row[7]); err != nil {
			return nil, fmt.Errorf("parse kline quote volume: %w", err)
		}
		candles = append(candles, c)
	}
	return candles, nil
}

type fundingEntry struct {
	FundingRate string `json:"fundingRate"`
	FundingTime int64  `json:"fundingTime"`
}

// FundingRates fetches recent perpetual funding rates.
func (s *Sources) FundingRates(ctx context.Context) ([]float64, error) {
	u := fmt.Sprintf("%s/fapi/v1/fundingRate?symbol=%s&limit=100",
		s.cfg.BinanceFutureURL, s.cfg.Symbol)

	var entries []fundingEntry
	if err := s.client.GetJSON(ctx, "binance_funding", u, &entries); err != nil {
		return nil, err
	}

	rates := make([]float64, 0, len(entries))
	for _, e := range entries {
		r, err := strconv.ParseFloat(e.FundingRate, 64)
		if err != nil {
			continue
		}
		rates = append(rates, r)
	}
	return rates, nil
}

type openInterestResponse struct {
	OpenInterest string `json:"openInterest"`
}

// OpenInterest fetches the current futures open interest.
func (s *Sources) OpenInterest(ctx context.Context) (float64, error) {
	u := fmt.Sprintf("%s/fapi/v1/openInterest?symbol=%s",
		s.cfg.BinanceFutureURL, s.cfg.Symbol)

	var resp openInterestResponse
	if err := s.client.GetJSON(ctx, "binance_oi", u, &resp); err != nil {
		return 0, err
	}
	return strconv.ParseFloat(resp.OpenInterest, 64)
}

type coingeckoGlobal struct {
	Data struct {
		TotalMarketCap      map[string]float64 `json:"total_market_cap"`
		MarketCapPercentage map[string]float64 `json:"market_cap_percentage"`
	} `json:"data"`
}

// Global fetches total market cap and BTC dominance from CoinGecko.
func (s *Sources) Global(ctx context.Context) (totalMarketCap, btcDominance float64, err error) {
	u := s.cfg.CoinGeckoBaseURL + "/global"

	var resp coingeckoGlobal
	if err := s.client.GetJSON(ctx, "coingecko_global", u, &resp); err != nil {
		return 0, 0, err
	}
	return resp.Data.TotalMarketCap["usd"], resp.Data.MarketCapPercentage["btc"], nil
}

type marketChart struct {
	MarketCaps [][]float64 `json:"market_caps"`
}

// MarketCapHistory fetches the BTC market cap series from CoinGecko.
func (s *Sources) MarketCapHistory(ctx context.Context, days int) ([]float64, error) {
	u := fmt.Sprintf("%s/coins/bitcoin/market_chart?vs_currency=usd&days=%d&interval=daily",
		s.cfg.CoinGeckoBaseURL, days)

	var resp marketChart
	if err := s.client.GetJSON(ctx, "coingecko_mcap", u, &resp); err != nil {
		return nil, err
	}

	out := make([]float64, 0, len(resp.MarketCaps))
	for _, point := range resp.MarketCaps {
		if len(point) == 2 {
			out = append(out, point[1])
		}
	}
	return out, nil
}

type fearGreedResponse struct {
	Data []struct {
		Value string `json:"value"`
	} `json:"data"`
}

// FearGreed fetches the most recent fear/greed index value.
func (s *Sources) FearGreed(ctx context.Context) (int, error) {
	u := s.cfg.FearGreedURL + "?" + url.Values{"limit": {"1"}}.Encode()

	var resp fearGreedResponse
	if err := s.client.GetJSON(ctx, "fear_greed", u, &resp); err != nil {
		return 0, err
	}
	if len(resp.Data) == 0 {
		return 0, fmt.Errorf("fear/greed response empty")
	}
	return strconv.Atoi(resp.Data[0].Value)
}

func asFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case string:
		return strconv.ParseFloat(t, 64)
	default:
		return 0, fmt.Errorf("unexpected value type %T", v)
	}
}

// MacroSeries is the optional macro bundle (dollar index, sovereign
// yields, money supply, cross-asset references).
type MacroSeries struct {
	DXY   []float64
	US10Y []float64
	US2Y  []float64
	M2    []float64
	SPX   []float64
	Gold  []float64
}

// MacroProvider supplies macro series from whatever backend is wired in
// (FRED export, CSV drop, internal service). A nil provider simply leaves
// the Macro bucket disabled.
type MacroProvider interface {
	Fetch(ctx context.Context) (MacroSeries, error)
}

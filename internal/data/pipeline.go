package data

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/regimerun/internal/config"
	"github.com/sawpanic/regimerun/internal/regime"
)

// Pipeline assembles the engine's input bundle from all sources, scoring
// completeness instead of failing when individual sources are down.
type Pipeline struct {
	cfg     config.DataConfig
	sources *Sources
	macro   MacroProvider
}

// NewPipeline wires a pipeline. macro may be nil, in which case the Macro
// bucket stays disabled.
func NewPipeline(cfg config.DataConfig, client *Client, macro MacroProvider) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		sources: NewSources(cfg, client),
		macro:   macro,
	}
}

// FetchAll gathers every source into a bundle. Each source failure is
// logged and counted against completeness; only the returned bundle's
// quality tells the engine how degraded the cycle is.
func (p *Pipeline) FetchAll(ctx context.Context) *regime.Inputs {
	in := &regime.Inputs{Timestamp: time.Now().UTC()}

	sourcesTotal := 7
	sourcesOK := 0

	if candles, err := p.sources.Klines(ctx); err != nil {
		log.Error().Err(err).Msg("price candles unavailable")
	} else {
		in.Candles = candles
		sourcesOK++
		log.Info().Int("candles", len(candles)).Msg("price candles fetched")
	}

	if rates, err := p.sources.FundingRates(ctx); err != nil {
		log.Warn().Err(err).Msg("funding rates unavailable")
	} else if len(rates) > 0 {
		in.FundingRates = rates
		sourcesOK++
	}

	if oi, err := p.sources.OpenInterest(ctx); err != nil {
		log.Warn().Err(err).Msg("open interest unavailable")
	} else {
		in.OpenInterest = &oi
		sourcesOK++
	}

	if _, dominance, err := p.sources.Global(ctx); err != nil {
		log.Warn().Err(err).Msg("global market data unavailable")
	} else {
		in.BTCDominance = &dominance
		sourcesOK++
	}

	if mcap, err := p.sources.MarketCapHistory(ctx, 120); err != nil {
		log.Warn().Err(err).Msg("market cap history unavailable")
	} else if len(mcap) > 0 {
		in.MarketCapHistory = mcap
		sourcesOK++
	}

	if fg, err := p.sources.FearGreed(ctx); err != nil {
		log.Warn().Err(err).Msg("fear/greed index unavailable")
	} else {
		in.FearGreed = &fg
		sourcesOK++
	}

	if p.macro != nil {
		if m, err := p.macro.Fetch(ctx); err != nil {
			log.Warn().Err(err).Msg("macro series unavailable")
		} else {
			in.DXY = m.DXY
			in.US10Y = m.US10Y
			in.US2Y = m.US2Y
			in.M2 = m.M2
			in.SPX = m.SPX
			in.Gold = m.Gold
			sourcesOK++
		}
	}

	in.Completeness = float64(sourcesOK) / float64(sourcesTotal)
	log.Info().
		Int("sources_ok", sourcesOK).
		Int("sources_total", sourcesTotal).
		Float64("completeness", in.Completeness).
		Msg("data fetch complete")

	return in
}

// Package data fetches and assembles the input bundle for the regime
// engine. Every source failure degrades the bundle's completeness score
// instead of failing the cycle; the engine itself never performs I/O.
package data

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/sawpanic/regimerun/internal/config"
)

// Client is a rate-limited HTTP client with a per-source circuit breaker.
// A source that keeps failing is skipped for a cooldown window instead of
// burning the request budget.
type Client struct {
	http     *http.Client
	limiter  *rate.Limiter
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewClient builds a client from the data configuration.
func NewClient(cfg config.DataConfig) *Client {
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 2
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 4
	}
	return &Client{
		http:     &http.Client{Timeout: cfg.Timeout.Std()},
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (c *Client) breaker(source string) *gobreaker.CircuitBreaker {
	if cb, ok := c.breakers[source]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    source,
		Timeout: 2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("source", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("data source circuit breaker state change")
		},
	})
	c.breakers[source] = cb
	return cb
}

// GetJSON fetches a URL through the rate limiter and the source's circuit
// breaker, decoding the JSON body into out.
func (c *Client) GetJSON(ctx context.Context, source, url string, out any) error {
	_, err := c.breaker(source).Execute(func() (interface{}, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, fmt.Errorf("%s returned %d: %s", source, resp.StatusCode, body)
		}

		return nil, json.NewDecoder(resp.Body).Decode(out)
	})
	if err != nil {
		return fmt.Errorf("fetch %s: %w", source, err)
	}
	return nil
}

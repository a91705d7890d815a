// Package config loads the application configuration from YAML, layered
// over compiled-in defaults so partial files only override what they name.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/sawpanic/regimerun/internal/regime"
)

// DataConfig controls the external data sources that feed the engine.
type DataConfig struct {
	BinanceBaseURL   string        `yaml:"binance_base_url"`
	BinanceFutureURL string        `yaml:"binance_futures_url"`
	CoinGeckoBaseURL string        `yaml:"coingecko_base_url"`
	FearGreedURL     string        `yaml:"fear_greed_url"`
	Symbol           string        `yaml:"symbol"`
	Interval         string        `yaml:"interval"`
	CandleLimit      int           `yaml:"candle_limit"`
	Timeout          Duration      `yaml:"timeout"`
	RequestsPerSec   float64       `yaml:"requests_per_sec"`
	Burst            int           `yaml:"burst"`
}

// ServerConfig controls the HTTP interface.
type ServerConfig struct {
	Addr            string   `yaml:"addr"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
	CycleInterval   Duration `yaml:"cycle_interval"`
}

// StorageConfig controls persisted state and optional downstream sinks.
// Postgres history and the Redis publisher stay disabled until configured.
type StorageConfig struct {
	StatePath    string   `yaml:"state_path"`
	SnapshotPath string   `yaml:"snapshot_path"`
	PostgresDSN  string   `yaml:"postgres_dsn"`
	RedisAddr    string   `yaml:"redis_addr"`
	RedisKey     string   `yaml:"redis_key"`
	RedisTTL     Duration `yaml:"redis_ttl"`
}

// Config is the full application configuration.
type Config struct {
	Engine  regime.Config `yaml:"engine"`
	Data    DataConfig    `yaml:"data"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
}

// Default returns the compiled-in configuration.
func Default() Config {
	return Config{
		Engine: regime.DefaultConfig(),
		Data: DataConfig{
			BinanceBaseURL:   "https://api.binance.com",
			BinanceFutureURL: "https://fapi.binance.com",
			CoinGeckoBaseURL: "https://api.coingecko.com/api/v3",
			FearGreedURL:     "https://api.alternative.me/fng/",
			Symbol:           "BTCUSDT",
			Interval:         "1d",
			CandleLimit:      250,
			Timeout:          Duration(15 * time.Second),
			RequestsPerSec:   2,
			Burst:            4,
		},
		Server: ServerConfig{
			Addr:            ":8089",
			ReadTimeout:     Duration(10 * time.Second),
			WriteTimeout:    Duration(15 * time.Second),
			ShutdownTimeout: Duration(10 * time.Second),
			CycleInterval:   Duration(24 * time.Hour),
		},
		Storage: StorageConfig{
			StatePath:    "state/engine_state.json",
			SnapshotPath: "out/regime_snapshot.json",
			RedisKey:     "regimerun:snapshot:latest",
			RedisTTL:     Duration(48 * time.Hour),
		},
	}
}

// Load reads a YAML file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config file %s: %w", path, err)
	}

	return cfg, cfg.Validate()
}

// Validate checks the engine parameters and infrastructure settings.
func (c Config) Validate() error {
	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("engine config: %w", err)
	}
	if c.Data.CandleLimit < c.Engine.Safety.MinPriceSamples {
		return fmt.Errorf("candle limit %d below minimum price samples %d",
			c.Data.CandleLimit, c.Engine.Safety.MinPriceSamples)
	}
	if c.Storage.StatePath == "" {
		return fmt.Errorf("storage state_path must not be empty")
	}
	if c.Storage.RedisAddr != "" && c.Storage.RedisKey == "" {
		return fmt.Errorf("redis_key required when redis_addr is set")
	}
	return nil
}

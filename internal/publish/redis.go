// Package publish pushes finished snapshots to Redis so dashboards and
// sibling services can read the latest regime without touching the
// engine's state file.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/regimerun/internal/regime"
)

// Config holds the Redis publisher settings.
type Config struct {
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	LatestKey string        `yaml:"latest_key"`
	Channel   string        `yaml:"channel"`
	TTL       time.Duration `yaml:"-"`
}

// DefaultConfig returns the shipped publisher settings. Publishing is
// off until an address is configured.
func DefaultConfig() Config {
	return Config{
		LatestKey: "regimerun:snapshot:latest",
		Channel:   "regimerun:snapshots",
		TTL:       48 * time.Hour,
	}
}

// Publisher writes the latest snapshot to a well-known key and fans it
// out on a pub/sub channel.
type Publisher struct {
	client *redis.Client
	cfg    Config
}

// NewPublisher connects to Redis and verifies the connection.
func NewPublisher(ctx context.Context, cfg Config) (*Publisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,

		PoolSize:     10,
		MinIdleConns: 2,

		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,

		MaxRetries:      3,
		MinRetryBackoff: 100 * time.Millisecond,
		MaxRetryBackoff: 500 * time.Millisecond,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Publisher{client: client, cfg: cfg}, nil
}

// Publish stores the snapshot under the latest key and announces it on
// the channel. The SET must succeed; a pub/sub failure only logs since
// subscribers can always fall back to polling the key.
func (p *Publisher) Publish(ctx context.Context, snap *regime.Snapshot) error {
	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := p.client.Set(ctx, p.cfg.LatestKey, body, p.cfg.TTL).Err(); err != nil {
		return fmt.Errorf("failed to set latest snapshot: %w", err)
	}

	if err := p.client.Publish(ctx, p.cfg.Channel, body).Err(); err != nil {
		log.Warn().Err(err).Str("channel", p.cfg.Channel).Msg("Snapshot pub/sub publish failed")
	}

	log.Debug().
		Str("key", p.cfg.LatestKey).
		Str("regime", string(snap.Regime)).
		Msg("Snapshot published to Redis")
	return nil
}

// Latest reads back the most recently published snapshot. Returns nil
// when the key is absent or expired.
func (p *Publisher) Latest(ctx context.Context) (*regime.Snapshot, error) {
	body, err := p.client.Get(ctx, p.cfg.LatestKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}

	var snap regime.Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// Close releases the Redis connection.
func (p *Publisher) Close() error {
	return p.client.Close()
}

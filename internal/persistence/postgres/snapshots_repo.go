package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/sawpanic/regimerun/internal/regime"
)

// Config holds the connection settings for the snapshot store.
type Config struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"-"`
	QueryTimeout    time.Duration `yaml:"-"`
}

// DefaultConfig returns pool defaults. Persistence stays off until a
// DSN is configured.
func DefaultConfig() Config {
	return Config{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		QueryTimeout:    15 * time.Second,
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS regime_snapshots (
	ts          TIMESTAMPTZ NOT NULL,
	run_id      TEXT        NOT NULL,
	regime      TEXT        NOT NULL,
	confidence  DOUBLE PRECISION NOT NULL,
	vol_z       DOUBLE PRECISION NOT NULL,
	snapshot    JSONB       NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (ts)
)`

// StoredSnapshot is one persisted engine cycle.
type StoredSnapshot struct {
	Timestamp  time.Time        `db:"ts"`
	RunID      string           `db:"run_id"`
	Regime     regime.Regime    `db:"regime"`
	Confidence float64          `db:"confidence"`
	VolZ       float64          `db:"vol_z"`
	Snapshot   *regime.Snapshot `db:"-"`
	CreatedAt  time.Time        `db:"created_at"`
}

// SnapshotsRepo persists engine snapshots to PostgreSQL.
type SnapshotsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// Connect opens the pool, verifies connectivity and ensures the
// snapshot table exists.
func Connect(ctx context.Context, cfg Config) (*SnapshotsRepo, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}

	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.QueryTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	return &SnapshotsRepo{db: db, timeout: cfg.QueryTimeout}, nil
}

// Close releases the connection pool.
func (r *SnapshotsRepo) Close() error {
	return r.db.Close()
}

// Upsert writes one cycle's snapshot keyed by its timestamp. Re-running
// a cycle for the same timestamp replaces the earlier row.
func (r *SnapshotsRepo) Upsert(ctx context.Context, runID string, snap *regime.Snapshot) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if !snap.Regime.Valid() {
		return fmt.Errorf("invalid regime label: %s", snap.Regime)
	}

	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	query := `
		INSERT INTO regime_snapshots (ts, run_id, regime, confidence, vol_z, snapshot)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (ts) DO UPDATE SET
			run_id = EXCLUDED.run_id,
			regime = EXCLUDED.regime,
			confidence = EXCLUDED.confidence,
			vol_z = EXCLUDED.vol_z,
			snapshot = EXCLUDED.snapshot`

	_, err = r.db.ExecContext(ctx, query,
		snap.Metadata.Timestamp, runID, string(snap.Regime),
		snap.Confidence.QualityAdjusted, snap.Metadata.VolZ, body)
	if err != nil {
		return fmt.Errorf("failed to upsert snapshot: %w", err)
	}
	return nil
}

// Latest returns the most recent persisted snapshot, or nil when the
// table is empty.
func (r *SnapshotsRepo) Latest(ctx context.Context) (*StoredSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT ts, run_id, regime, confidence, vol_z, snapshot, created_at
		FROM regime_snapshots
		ORDER BY ts DESC
		LIMIT 1`

	row := r.db.QueryRowxContext(ctx, query)
	stored, err := scanStored(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}
	return stored, nil
}

// Recent returns up to limit snapshots ordered newest first.
func (r *SnapshotsRepo) Recent(ctx context.Context, limit int) ([]StoredSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT ts, run_id, regime, confidence, vol_z, snapshot, created_at
		FROM regime_snapshots
		ORDER BY ts DESC
		LIMIT $1`

	rows, err := r.db.QueryxContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var out []StoredSnapshot
	for rows.Next() {
		stored, err := scanStored(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		out = append(out, *stored)
	}
	return out, rows.Err()
}

// RecentJSON returns recent snapshots already encoded for the history
// endpoint.
func (r *SnapshotsRepo) RecentJSON(ctx context.Context, limit int) ([]byte, error) {
	rows, err := r.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}
	type entry struct {
		Timestamp  time.Time     `json:"timestamp"`
		RunID      string        `json:"run_id"`
		Regime     regime.Regime `json:"regime"`
		Confidence float64       `json:"confidence"`
		VolZ       float64       `json:"vol_z"`
	}
	out := make([]entry, 0, len(rows))
	for _, s := range rows {
		out = append(out, entry{
			Timestamp:  s.Timestamp,
			RunID:      s.RunID,
			Regime:     s.Regime,
			Confidence: s.Confidence,
			VolZ:       s.VolZ,
		})
	}
	return json.Marshal(out)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStored(row rowScanner) (*StoredSnapshot, error) {
	var stored StoredSnapshot
	var reg string
	var body []byte

	err := row.Scan(&stored.Timestamp, &stored.RunID, &reg,
		&stored.Confidence, &stored.VolZ, &body, &stored.CreatedAt)
	if err != nil {
		return nil, err
	}

	stored.Regime = regime.Regime(reg)
	var snap regime.Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot body: %w", err)
	}
	stored.Snapshot = &snap
	return &stored, nil
}

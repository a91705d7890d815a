package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/regimerun/internal/config"
	"github.com/sawpanic/regimerun/internal/data"
	internalio "github.com/sawpanic/regimerun/internal/io"
	"github.com/sawpanic/regimerun/internal/metrics"
	"github.com/sawpanic/regimerun/internal/persistence/postgres"
	"github.com/sawpanic/regimerun/internal/publish"
	"github.com/sawpanic/regimerun/internal/regime"
	"github.com/sawpanic/regimerun/internal/state"
)

// app wires the engine with its data pipeline and optional sinks.
type app struct {
	cfg      config.Config
	store    *state.FileStore
	pipeline *data.Pipeline
	repo     *postgres.SnapshotsRepo
	pub      *publish.Publisher
	metrics  *metrics.Registry
}

// newApp loads configuration and connects whatever sinks are enabled.
// A registry of nil means metrics are not wanted (one-shot runs).
func newApp(ctx context.Context, configPath string, reg *metrics.Registry) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	client := data.NewClient(cfg.Data)
	a := &app{
		cfg:      cfg,
		store:    state.NewFileStore(cfg.Storage.StatePath),
		pipeline: data.NewPipeline(cfg.Data, client, nil),
		metrics:  reg,
	}

	if cfg.Storage.PostgresDSN != "" {
		pgCfg := postgres.DefaultConfig()
		pgCfg.DSN = cfg.Storage.PostgresDSN
		repo, err := postgres.Connect(ctx, pgCfg)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.repo = repo
		log.Info().Msg("Snapshot persistence enabled (postgres)")
	}

	if cfg.Storage.RedisAddr != "" {
		pubCfg := publish.DefaultConfig()
		pubCfg.Addr = cfg.Storage.RedisAddr
		pubCfg.LatestKey = cfg.Storage.RedisKey
		pubCfg.TTL = cfg.Storage.RedisTTL.Std()
		pub, err := publish.NewPublisher(ctx, pubCfg)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.pub = pub
		log.Info().Str("addr", cfg.Storage.RedisAddr).Msg("Snapshot publishing enabled (redis)")
	}

	return a, nil
}

func (a *app) close() {
	if a.repo != nil {
		a.repo.Close()
	}
	if a.pub != nil {
		a.pub.Close()
	}
}

// runCycle executes one full detection cycle: fetch, classify, persist,
// publish. The returned snapshot is always non-nil on success, even in
// emergency mode.
func (a *app) runCycle(ctx context.Context) (*regime.Snapshot, error) {
	runID := uuid.New().String()[:8]
	logger := log.With().Str("run_id", runID).Logger()

	var timer *metrics.CycleTimer
	if a.metrics != nil {
		timer = a.metrics.StartCycle()
	}
	fail := func(stage string, err error) (*regime.Snapshot, error) {
		if a.metrics != nil {
			a.metrics.RecordCycleError(stage)
			timer.Stop("error")
		}
		return nil, fmt.Errorf("%s: %w", stage, err)
	}

	st, reset, err := a.store.Load()
	if err != nil {
		return fail("load_state", err)
	}
	prevRegime := st.CurrentRegime

	logger.Info().
		Str("regime", string(st.CurrentRegime)).
		Int("days_in_regime", st.DaysInRegime).
		Bool("state_reset", reset).
		Msg("Cycle started")

	inputs := a.pipeline.FetchAll(ctx)
	engine := regime.NewEngine(a.cfg.Engine, st, reset)
	snap := engine.Process(inputs)

	if !snap.Emergency {
		if err := a.store.Save(engine.State()); err != nil {
			return fail("save_state", err)
		}
	}

	if a.cfg.Storage.SnapshotPath != "" {
		if err := internalio.WriteJSONAtomic(a.cfg.Storage.SnapshotPath, snap); err != nil {
			return fail("write_snapshot", err)
		}
	}

	if a.repo != nil {
		if err := a.repo.Upsert(ctx, runID, snap); err != nil {
			logger.Error().Err(err).Msg("Failed to persist snapshot")
			if a.metrics != nil {
				a.metrics.RecordCycleError("persist")
			}
		}
	}
	if a.pub != nil {
		if err := a.pub.Publish(ctx, snap); err != nil {
			logger.Error().Err(err).Msg("Failed to publish snapshot")
			if a.metrics != nil {
				a.metrics.RecordCycleError("publish")
			}
		}
	}

	if a.metrics != nil {
		a.metrics.RecordSnapshot(snap)
		if !snap.Emergency && snap.Regime != prevRegime {
			a.metrics.RecordSwitch(prevRegime, snap.Regime)
		}
		timer.Stop("ok")
	}

	logger.Info().
		Str("regime", string(snap.Regime)).
		Float64("confidence", snap.Confidence.QualityAdjusted).
		Float64("exposure_cap", snap.ExposureCap).
		Bool("emergency", snap.Emergency).
		Dur("elapsed", time.Since(snap.Metadata.Timestamp)).
		Msg("Cycle finished")

	return snap, nil
}

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	io_prometheus_client "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/regimerun/internal/regime"
)

// Registry holds all Prometheus metrics for the regime engine.
type Registry struct {
	// Cycle metrics
	CycleDuration *prometheus.HistogramVec
	CycleErrors   *prometheus.CounterVec
	CyclesTotal   prometheus.Counter

	// Regime metrics
	RegimeSwitches *prometheus.CounterVec
	ActiveRegime   prometheus.Gauge
	DaysInRegime   prometheus.Gauge
	Confidence     prometheus.Gauge
	VolZ           prometheus.Gauge
	ExposureCap    prometheus.Gauge

	// Bucket signal values, labeled by bucket name
	BucketValue *prometheus.GaugeVec

	// Data plane metrics
	DataCompleteness prometheus.Gauge
	SourceFailures   *prometheus.CounterVec
}

// Numeric encoding for the active regime gauge.
var regimeGaugeValues = map[regime.Regime]float64{
	regime.Bull:       1,
	regime.Bear:       2,
	regime.Range:      3,
	regime.Transition: 4,
}

// NewRegistry creates the metric set and registers it with the default
// Prometheus registry.
func NewRegistry() *Registry {
	r := &Registry{
		CycleDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "regimerun_cycle_duration_seconds",
				Help:    "Duration of a full detection cycle in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"result"},
		),
		CycleErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "regimerun_cycle_errors_total",
				Help: "Total detection cycle errors by stage",
			},
			[]string{"stage"},
		),
		CyclesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "regimerun_cycles_total",
				Help: "Total detection cycles executed",
			},
		),
		RegimeSwitches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "regimerun_regime_switches_total",
				Help: "Total confirmed regime switches by from/to pair",
			},
			[]string{"from", "to"},
		),
		ActiveRegime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "regimerun_active_regime",
				Help: "Current regime (1=BULL, 2=BEAR, 3=RANGE, 4=TRANSITION)",
			},
		),
		DaysInRegime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "regimerun_days_in_regime",
				Help: "Days spent in the current regime",
			},
		),
		Confidence: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "regimerun_confidence",
				Help: "Churn-adjusted model confidence (0.0 to 1.0)",
			},
		),
		VolZ: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "regimerun_vol_z",
				Help: "Realized volatility z-score from the last cycle",
			},
		),
		ExposureCap: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "regimerun_exposure_cap",
				Help: "Recommended maximum exposure (0.0 to 1.0)",
			},
		),
		BucketValue: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "regimerun_bucket_value",
				Help: "Bucket signal value in [-1, 1] by bucket",
			},
			[]string{"bucket"},
		),
		DataCompleteness: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "regimerun_data_completeness",
				Help: "Fraction of data sources fetched successfully last cycle",
			},
		),
		SourceFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "regimerun_source_failures_total",
				Help: "Total data source fetch failures by source",
			},
			[]string{"source"},
		),
	}

	prometheus.MustRegister(
		r.CycleDuration,
		r.CycleErrors,
		r.CyclesTotal,
		r.RegimeSwitches,
		r.ActiveRegime,
		r.DaysInRegime,
		r.Confidence,
		r.VolZ,
		r.ExposureCap,
		r.BucketValue,
		r.DataCompleteness,
		r.SourceFailures,
	)

	return r
}

// CycleTimer tracks the duration of one detection cycle.
type CycleTimer struct {
	registry *Registry
	start    time.Time
}

// StartCycle begins timing a detection cycle.
func (r *Registry) StartCycle() *CycleTimer {
	r.CyclesTotal.Inc()
	return &CycleTimer{registry: r, start: time.Now()}
}

// Stop completes the cycle timing and records the metric.
func (t *CycleTimer) Stop(result string) {
	duration := time.Since(t.start)
	t.registry.CycleDuration.WithLabelValues(result).Observe(duration.Seconds())

	log.Debug().
		Str("result", result).
		Dur("duration", duration).
		Msg("Detection cycle completed")
}

// RecordSnapshot publishes gauge values from a finished cycle.
func (r *Registry) RecordSnapshot(snap *regime.Snapshot) {
	r.ActiveRegime.Set(regimeGaugeValues[snap.Regime])
	r.DaysInRegime.Set(float64(snap.Metadata.DaysInRegime))
	r.Confidence.Set(snap.Confidence.QualityAdjusted)
	r.VolZ.Set(snap.Metadata.VolZ)
	r.ExposureCap.Set(snap.ExposureCap)
	r.DataCompleteness.Set(snap.Metadata.DataCompleteness)
	for name, v := range snap.Buckets {
		r.BucketValue.WithLabelValues(string(name)).Set(v)
	}
}

// RecordSwitch records a confirmed regime switch.
func (r *Registry) RecordSwitch(from, to regime.Regime) {
	r.RegimeSwitches.WithLabelValues(string(from), string(to)).Inc()
}

// RecordCycleError records a cycle error by stage.
func (r *Registry) RecordCycleError(stage string) {
	r.CycleErrors.WithLabelValues(stage).Inc()
	log.Warn().Str("stage", stage).Msg("Cycle error recorded")
}

// RecordSourceFailure records a failed data source fetch.
func (r *Registry) RecordSourceFailure(source string) {
	r.SourceFailures.WithLabelValues(source).Inc()
}

// SwitchCount reads back the total switch count between two regimes.
func (r *Registry) SwitchCount(from, to regime.Regime) float64 {
	counter, err := r.RegimeSwitches.GetMetricWithLabelValues(string(from), string(to))
	if err != nil {
		return 0
	}
	m := &io_prometheus_client.Metric{}
	if err := counter.Write(m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

// Handler returns the HTTP handler serving the Prometheus exposition
// format.
func (r *Registry) Handler() http.Handler {
	return promhttp.Handler()
}

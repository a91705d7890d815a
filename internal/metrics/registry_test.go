package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/regimerun/internal/regime"
)

// The registry binds to the default Prometheus registry, so the whole
// surface is exercised from one instance.
func TestRegistry(t *testing.T) {
	r := NewRegistry()

	snap := &regime.Snapshot{
		Regime: regime.Bear,
		Probabilities: regime.Probabilities{
			regime.Bull: 0.1, regime.Bear: 0.6, regime.Range: 0.2, regime.Transition: 0.1,
		},
		Confidence:  regime.Confidence{QualityAdjusted: 0.58, ChurnPenalty: 1.0},
		Buckets:     map[regime.BucketName]float64{regime.Momentum: -0.4, regime.Stability: 0.2},
		ExposureCap: 0.40,
		Metadata: regime.Metadata{
			DaysInRegime:     3,
			VolZ:             1.2,
			DataCompleteness: 0.86,
			Timestamp:        time.Now().UTC(),
		},
	}

	r.RecordSnapshot(snap)
	r.RecordSwitch(regime.Range, regime.Bear)
	r.RecordSwitch(regime.Range, regime.Bear)
	r.RecordCycleError("fetch")
	r.RecordSourceFailure("binance_klines")
	timer := r.StartCycle()
	timer.Stop("ok")

	assert.Equal(t, 2.0, r.SwitchCount(regime.Range, regime.Bear))
	assert.Equal(t, 0.0, r.SwitchCount(regime.Bull, regime.Bear),
		"unseen label pairs read back as zero")

	// The exposition endpoint reflects the recorded values
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	r.Handler().ServeHTTP(rec, req)
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	text := string(body)
	for _, want := range []string{
		"regimerun_active_regime 2",
		"regimerun_days_in_regime 3",
		"regimerun_exposure_cap 0.4",
		"regimerun_data_completeness 0.86",
		`regimerun_regime_switches_total{from="RANGE",to="BEAR"} 2`,
		`regimerun_bucket_value{bucket="Momentum"} -0.4`,
		`regimerun_cycle_errors_total{stage="fetch"} 1`,
		`regimerun_source_failures_total{source="binance_klines"} 1`,
		"regimerun_cycles_total 1",
	} {
		assert.True(t, strings.Contains(text, want), "missing exposition line: %s", want)
	}
}

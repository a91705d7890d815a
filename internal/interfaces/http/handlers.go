package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/sawpanic/regimerun/internal/policy"
	"github.com/sawpanic/regimerun/internal/regime"
)

// Tracker keeps the most recent snapshot for the read endpoints. The
// detection loop publishes into it, handlers only read.
type Tracker struct {
	mu   sync.RWMutex
	snap *regime.Snapshot
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Set publishes a new snapshot.
func (t *Tracker) Set(snap *regime.Snapshot) {
	t.mu.Lock()
	t.snap = snap
	t.mu.Unlock()
}

// Latest returns the current snapshot, or nil before the first cycle.
func (t *Tracker) Latest() *regime.Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Latest()

	resp := map[string]any{
		"status":    "ok",
		"uptime":    time.Since(s.started).Round(time.Second).String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if snap == nil {
		resp["status"] = "waiting"
		resp["detail"] = "no detection cycle completed yet"
	} else {
		resp["last_cycle"] = snap.Metadata.Timestamp.Format(time.RFC3339)
		resp["regime"] = snap.Regime
		resp["data_completeness"] = snap.Metadata.DataCompleteness
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRegime(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Latest()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "no snapshot available yet")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotImplemented, "snapshot persistence is not configured")
		return
	}

	limit := 30
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 365 {
			writeError(w, http.StatusBadRequest, "limit must be an integer in [1, 365]")
			return
		}
		limit = n
	}

	body, err := s.history.RecentJSON(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load snapshot history")
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func (s *Server) handleRisk(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Latest()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "no snapshot available yet")
		return
	}

	level := s.risk.ComputeRiskLevel(snap.Probabilities, snap.Confidence.QualityAdjusted)
	writeJSON(w, http.StatusOK, map[string]any{
		"regime":     snap.Regime,
		"confidence": snap.Confidence.QualityAdjusted,
		"risk":       level,
		"timestamp":  snap.Metadata.Timestamp.Format(time.RFC3339),
	})
}

// handleAllocation derives stateless allocation decisions for BTC and
// ETH from the latest snapshot. Action history lives with the caller,
// so cooldown and churn gates only bind when the caller routes its
// bookkeeping through the policy package directly.
func (s *Server) handleAllocation(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Latest()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "no snapshot available yet")
		return
	}

	level := s.risk.ComputeRiskLevel(snap.Probabilities, snap.Confidence.QualityAdjusted)
	base := policy.AllocationInputs{
		Regime:     string(snap.Regime),
		Confidence: snap.Confidence.QualityAdjusted,
		RiskLevel:  level.Level,
		Momentum:   snap.Buckets[regime.Momentum],
		VolZ:       snap.Metadata.VolZ,
		Returns30d: snap.Metadata.Returns30d,
		Today:      snap.Metadata.Timestamp,
	}

	btcIn := base
	btcIn.Asset = "BTC"
	btc := policy.ComputeAllocation(btcIn)

	ethIn := base
	ethIn.Asset = "ETH"
	ethIn.BTCAction = btc.Action
	eth := policy.ComputeAllocation(ethIn)

	writeJSON(w, http.StatusOK, map[string]any{
		"regime":      snap.Regime,
		"risk":        level,
		"allocations": []policy.Allocation{btc, eth},
		"timestamp":   snap.Metadata.Timestamp.Format(time.RFC3339),
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeError(w, http.StatusNotFound, "unknown endpoint")
}

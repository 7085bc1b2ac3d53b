package api

import (
	"net/http"
	"strconv"

	"github.com/solpxlb/puffquest/internal/economy"
)

// handleStats returns the stored global stats snapshot.
// GET /api/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snap, err := s.game.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"stats":             snap,
		"pool_depletion":    snap.PoolDepletion(),
		"action_deflation":  economy.ActionDeflation(snap.GlobalStats),
		"passive_deflation": economy.PassiveDeflation(snap.GlobalStats),
		"points_per_token":  economy.PointsToTokenRate(snap.GlobalStats),
	})
}

// handleRunPassive triggers one passive accrual pass.
// POST /api/admin/jobs/passive
func (s *Server) handleRunPassive(w http.ResponseWriter, r *http.Request) {
	if s.passive == nil {
		writeError(w, http.StatusServiceUnavailable, "passive job not configured")
		return
	}
	report, err := s.passive.Run(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":            true,
		"players_processed":  report.PlayersProcessed,
		"players_skipped":    report.PlayersSkipped,
		"players_failed":     report.PlayersFailed,
		"total_awarded":      report.TotalAwarded,
		"duration_ms":        report.Duration().Milliseconds(),
		"average_per_player": report.AveragePerPlayer(),
	})
}

// handleRefreshStats recomputes global stats.
// POST /api/admin/jobs/stats
func (s *Server) handleRefreshStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		writeError(w, http.StatusServiceUnavailable, "stats job not configured")
		return
	}
	snap, err := s.stats.Refresh(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"stats":   snap,
	})
}

// handleSpans lists recent job spans (?limit=, default 50).
// GET /api/admin/spans
func (s *Server) handleSpans(w http.ResponseWriter, r *http.Request) {
	if s.tracer == nil {
		writeError(w, http.StatusServiceUnavailable, "tracing not configured")
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"spans": s.tracer.Spans(limit),
		"total": s.tracer.SpanCount(),
	})
}

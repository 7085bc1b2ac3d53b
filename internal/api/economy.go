package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/solpxlb/puffquest/internal/economy"
)

// ─── Economy Calculator API ─────────────────────────────────────────────────
// Stateless endpoints over the reward engine. Clients send device levels and,
// optionally, a stats snapshot; without one the stored snapshot is used.
//
// POST /api/economy/reward                   — per-action reward
// POST /api/economy/passive                  — passive accrual for a window
// GET  /api/economy/upgrade-cost/{level}     — next-tier price
// GET  /api/economy/streak-multiplier/{days} — streak bonus
// POST /api/economy/estimate                 — projected daily earnings
// POST /api/economy/breakeven                — acquisition payback
// GET  /api/economy/conversion-rate          — points per token

// economyRequest is the shared body of the calculator endpoints.
type economyRequest struct {
	Levels       economy.DeviceLevels `json:"device_levels"`
	Stats        *economy.GlobalStats `json:"global_stats,omitempty"`
	Active       bool                 `json:"active_session,omitempty"`
	StreakDays   *int                 `json:"streak_days,omitempty"`
	Hours        *float64             `json:"hours_since_last_claim,omitempty"`
	ExchangeRate float64              `json:"exchange_rate,omitempty"`
}

// readEconomyRequest decodes and validates the body, filling Stats from the
// store when omitted.
func (s *Server) readEconomyRequest(w http.ResponseWriter, r *http.Request) (economyRequest, bool) {
	var req economyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return req, false
	}
	if err := req.Levels.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return req, false
	}
	if req.Stats == nil {
		stats, err := s.currentStats(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return req, false
		}
		req.Stats = &stats
	}
	if err := req.Stats.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return req, false
	}
	if req.StreakDays != nil && *req.StreakDays < 0 {
		writeError(w, http.StatusBadRequest, "streak_days must be non-negative")
		return req, false
	}
	if req.Hours != nil && *req.Hours < 0 {
		writeError(w, http.StatusBadRequest, "hours_since_last_claim must be non-negative")
		return req, false
	}
	return req, true
}

func (req economyRequest) streak() int {
	if req.StreakDays == nil {
		return 1
	}
	return *req.StreakDays
}

// currentStats returns the stored snapshot, or the launch snapshot when the
// server runs without storage.
func (s *Server) currentStats(ctx context.Context) (economy.GlobalStats, error) {
	if s.game == nil {
		return economy.InitialStats(), nil
	}
	snap, err := s.game.Stats(ctx)
	if err != nil {
		return economy.GlobalStats{}, err
	}
	return snap.GlobalStats, nil
}

// handleReward returns the per-action reward.
// POST /api/economy/reward
func (s *Server) handleReward(w http.ResponseWriter, r *http.Request) {
	req, ok := s.readEconomyRequest(w, r)
	if !ok {
		return
	}
	streak := req.streak()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reward":            economy.ActionRewardWithStreak(req.Levels, *req.Stats, req.Active, streak),
		"deflation":         economy.ActionDeflation(*req.Stats),
		"streak_multiplier": economy.StreakMultiplier(streak),
		"active_session":    req.Active,
	})
}

// handlePassive returns passive income for the elapsed window (default 24h).
// POST /api/economy/passive
func (s *Server) handlePassive(w http.ResponseWriter, r *http.Request) {
	req, ok := s.readEconomyRequest(w, r)
	if !ok {
		return
	}
	hours := float64(economy.MaxPassiveHours)
	if req.Hours != nil {
		hours = *req.Hours
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"passive_income": economy.PassiveIncome(req.Levels, *req.Stats, hours),
		"hourly_rate":    economy.HourlyPassiveRate(req.Levels),
		"deflation":      economy.PassiveDeflation(*req.Stats),
		"hours_claimed":  min(hours, economy.MaxPassiveHours),
	})
}

// handleUpgradeCost returns the price of the next tier (null at max level).
// GET /api/economy/upgrade-cost/{level}
func handleUpgradeCost(w http.ResponseWriter, r *http.Request) {
	level, err := strconv.Atoi(chi.URLParam(r, "level"))
	if err != nil || level < 0 || level > economy.MaxLevel {
		writeError(w, http.StatusBadRequest, "level must be an integer between 0 and 10")
		return
	}
	// No next tier exists at MaxLevel, so no price is quoted.
	var cost interface{}
	if level < economy.MaxLevel {
		cost = economy.UpgradeCost(level)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"current_level": level,
		"upgrade_cost":  cost,
		"max_level":     level >= economy.MaxLevel,
	})
}

// handleStreakMultiplier returns the streak bonus for a day count.
// GET /api/economy/streak-multiplier/{days}
func handleStreakMultiplier(w http.ResponseWriter, r *http.Request) {
	days, err := strconv.Atoi(chi.URLParam(r, "days"))
	if err != nil || days < 0 {
		writeError(w, http.StatusBadRequest, "days must be a non-negative integer")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"streak_days": days,
		"multiplier":  economy.StreakMultiplier(days),
	})
}

// handleEstimate projects one day of earnings.
// POST /api/economy/estimate
func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	req, ok := s.readEconomyRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, economy.EstimateDailyEarnings(req.Levels, *req.Stats, req.streak()))
}

// handleBreakeven reports acquisition payback at exchange_rate (default 0.01).
// POST /api/economy/breakeven
func (s *Server) handleBreakeven(w http.ResponseWriter, r *http.Request) {
	req, ok := s.readEconomyRequest(w, r)
	if !ok {
		return
	}
	rate := req.ExchangeRate
	if rate == 0 {
		rate = economy.DefaultExchangeRate
	}
	writeJSON(w, http.StatusOK, economy.CanBreakevenInNDays(req.Levels, *req.Stats, rate))
}

// handleConversionRate returns points per token at the stored snapshot, and
// the token value of ?points= when given.
// GET /api/economy/conversion-rate
func (s *Server) handleConversionRate(w http.ResponseWriter, r *http.Request) {
	stats, err := s.currentStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]interface{}{
		"points_per_token": economy.PointsToTokenRate(stats),
		"total_players":    stats.TotalPlayers,
	}
	if raw := r.URL.Query().Get("points"); raw != "" {
		points, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || points < 0 {
			writeError(w, http.StatusBadRequest, "points must be a non-negative integer")
			return
		}
		resp["points"] = points
		resp["tokens"] = economy.TokensForPoints(points, stats)
	}
	writeJSON(w, http.StatusOK, resp)
}

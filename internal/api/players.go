package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/solpxlb/puffquest/internal/economy"
)

// ─── Player API ─────────────────────────────────────────────────────────────
// Game actions against stored players. Every write goes through the game
// service, which applies the reward engine and the ledger in one update.
//
// POST /api/players                     — register a wallet
// GET  /api/players/{id}                — player record
// POST /api/players/{id}/puff           — award one detected puff
// POST /api/players/{id}/upgrade        — raise a device one tier
// POST /api/players/{id}/purchase       — grant purchased starter devices
// POST /api/players/{id}/convert        — points to tokens
// GET  /api/players/{id}/estimate       — projected daily earnings
// GET  /api/players/{id}/breakeven      — acquisition payback
// GET  /api/players/{id}/transactions   — recent ledger rows
// POST /api/players/{id}/claim          — prepare a token withdrawal
// POST /api/players/{id}/claim/confirm  — settle it by transfer signature
// GET  /api/players/{id}/claims         — claim history

// handleRegister creates a player.
// POST /api/players
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Wallet     string `json:"wallet"`
		InviteCode string `json:"invite_code"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := s.game.Register(r.Context(), req.Wallet, req.InviteCode)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// handleGetPlayer returns a player.
// GET /api/players/{id}
func (s *Server) handleGetPlayer(w http.ResponseWriter, r *http.Request) {
	p, err := s.game.Player(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handlePuff awards one puff.
// POST /api/players/{id}/puff
func (s *Server) handlePuff(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Active bool `json:"active_session"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.game.RecordPuff(r.Context(), chi.URLParam(r, "id"), req.Active)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleUpgrade raises one device a tier.
// POST /api/players/{id}/upgrade
func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Device string `json:"device_type"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.game.Upgrade(r.Context(), chi.URLParam(r, "id"), economy.DeviceKind(req.Device))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handlePurchase grants devices paid for by transaction signature.
// POST /api/players/{id}/purchase
func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Devices   []string `json:"device_types"`
		Signature string   `json:"transaction_signature"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	kinds := make([]economy.DeviceKind, len(req.Devices))
	for i, d := range req.Devices {
		kinds[i] = economy.DeviceKind(d)
	}

	granted, err := s.game.Purchase(r.Context(), chi.URLParam(r, "id"), kinds, req.Signature)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":           true,
		"devices_purchased": granted,
	})
}

// handleConvert exchanges points for tokens.
// POST /api/players/{id}/convert
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Points int64 `json:"points"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.game.ConvertPoints(r.Context(), chi.URLParam(r, "id"), req.Points)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handlePlayerEstimate projects a stored player's earnings.
// GET /api/players/{id}/estimate
func (s *Server) handlePlayerEstimate(w http.ResponseWriter, r *http.Request) {
	proj, err := s.game.Estimate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, proj)
}

// handlePlayerBreakeven projects a stored player's payback at ?rate=.
// GET /api/players/{id}/breakeven
func (s *Server) handlePlayerBreakeven(w http.ResponseWriter, r *http.Request) {
	var rate float64
	if raw := r.URL.Query().Get("rate"); raw != "" {
		var err error
		if rate, err = strconv.ParseFloat(raw, 64); err != nil || rate <= 0 {
			writeError(w, http.StatusBadRequest, "rate must be a positive number")
			return
		}
	}
	b, err := s.game.Breakeven(r.Context(), chi.URLParam(r, "id"), rate)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// handleTransactions lists recent ledger rows (?limit=, default 50).
// GET /api/players/{id}/transactions
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}
	txs, err := s.game.Transactions(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txs,
		"count":        len(txs),
	})
}

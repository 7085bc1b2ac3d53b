package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// ─── Claims & Invites ───────────────────────────────────────────────────────
//
// POST /api/admin/invite-codes                   — issue a batch of codes
// GET  /api/admin/invite-codes                   — list issued codes
// POST /api/admin/invite-codes/{code}/deactivate — withdraw a code
// POST /api/invites/validate                     — check a code before signup

// handleClaim prepares a withdrawal of the player's token balance.
// POST /api/players/{id}/claim
func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	c, err := s.game.Claim(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"claim":   c,
		"amount":  c.Amount,
		"fee":     c.Fee,
	})
}

// handleConfirmClaim settles the pending claim.
// POST /api/players/{id}/claim/confirm
func (s *Server) handleConfirmClaim(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Signature string `json:"transaction_signature"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.game.ConfirmClaim(r.Context(), chi.URLParam(r, "id"), req.Signature)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleClaims lists a player's claims (?limit=, default 50).
// GET /api/players/{id}/claims
func (s *Server) handleClaims(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r, 50)
	if !ok {
		return
	}
	claims, err := s.game.Claims(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"claims": claims,
		"count":  len(claims),
	})
}

// handleValidateInvite reports whether a code can still be redeemed.
// POST /api/invites/validate
func (s *Server) handleValidateInvite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"invite_code"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	c, err := s.game.ValidateInviteCode(r.Context(), req.Code)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"valid": true,
		"code":  c.Code,
	})
}

// handleGenerateInvites issues new invite codes.
// POST /api/admin/invite-codes
func (s *Server) handleGenerateInvites(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Count     int    `json:"count"`
		CreatedBy string `json:"created_by"`
	}
	req.Count = 1
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	codes, err := s.game.GenerateInviteCodes(r.Context(), req.CreatedBy, req.Count)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"codes":   codes,
		"count":   len(codes),
	})
}

// handleListInvites lists issued codes (?limit=, default 100).
// GET /api/admin/invite-codes
func (s *Server) handleListInvites(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r, 100)
	if !ok {
		return
	}
	codes, err := s.game.InviteCodes(r.Context(), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"codes": codes,
		"count": len(codes),
	})
}

// handleDeactivateInvite withdraws a code.
// POST /api/admin/invite-codes/{code}/deactivate
func (s *Server) handleDeactivateInvite(w http.ResponseWriter, r *http.Request) {
	if err := s.game.DeactivateInviteCode(r.Context(), chi.URLParam(r, "code")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// parseLimit reads ?limit= in [1, 500], writing a 400 when it is malformed.
func parseLimit(w http.ResponseWriter, r *http.Request, def int) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > 500 {
		writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
		return 0, false
	}
	return n, true
}

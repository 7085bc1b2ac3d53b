// Package api provides the HTTP server for puffquest.
// It exposes the pure economy calculator, the player game actions and the
// admin job triggers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/solpxlb/puffquest/internal/app/game"
	"github.com/solpxlb/puffquest/internal/domain"
	"github.com/solpxlb/puffquest/internal/economy"
	"github.com/solpxlb/puffquest/internal/infra/observability"
	"github.com/solpxlb/puffquest/internal/infra/passive"
)

// PassiveRunner runs one passive accrual pass.
type PassiveRunner interface {
	Run(ctx context.Context) (passive.AccrualReport, error)
}

// StatsRefresher recomputes the global stats snapshot.
type StatsRefresher interface {
	Refresh(ctx context.Context) (domain.StatsSnapshot, error)
}

// Server is the puffquest HTTP API server.
type Server struct {
	game           *game.Service
	passive        PassiveRunner
	stats          StatsRefresher
	tracer         *observability.Tracer
	healthCheck    func() error
	metricsEnabled bool
	corsOrigins    []string
	timeout        time.Duration
}

// NewServer creates a new API server around the game service.
func NewServer(g *game.Service) *Server {
	return &Server{game: g, corsOrigins: []string{"*"}, timeout: 30 * time.Second}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetJobs sets the batch jobs the admin endpoints trigger.
func (s *Server) SetJobs(p PassiveRunner, st StatsRefresher) {
	s.passive = p
	s.stats = st
}

// SetTracer exposes recorded spans on /api/admin/spans.
func (s *Server) SetTracer(t *observability.Tracer) { s.tracer = t }

// SetHealthCheck makes /health report 503 when check fails.
func (s *Server) SetHealthCheck(check func() error) { s.healthCheck = check }

// SetCORSOrigins restricts Access-Control-Allow-Origin. Empty allows any.
func (s *Server) SetCORSOrigins(origins []string) { s.corsOrigins = origins }

// SetTimeout sets the per-request timeout.
func (s *Server) SetTimeout(d time.Duration) {
	if d > 0 {
		s.timeout = d
	}
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.timeout))
	r.Use(s.corsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if s.healthCheck != nil {
			if err := s.healthCheck(); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "degraded",
					"error":  err.Error(),
				})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	})

	// Stateless calculator over caller-supplied levels and stats
	r.Route("/api/economy", func(r chi.Router) {
		r.Post("/reward", s.handleReward)
		r.Post("/passive", s.handlePassive)
		r.Get("/upgrade-cost/{level}", handleUpgradeCost)
		r.Get("/streak-multiplier/{days}", handleStreakMultiplier)
		r.Post("/estimate", s.handleEstimate)
		r.Post("/breakeven", s.handleBreakeven)
		r.Get("/conversion-rate", s.handleConversionRate)
	})

	if s.game != nil {
		r.Route("/api/players", func(r chi.Router) {
			r.Post("/", s.handleRegister)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetPlayer)
				r.Post("/puff", s.handlePuff)
				r.Post("/upgrade", s.handleUpgrade)
				r.Post("/purchase", s.handlePurchase)
				r.Post("/convert", s.handleConvert)
				r.Get("/estimate", s.handlePlayerEstimate)
				r.Get("/breakeven", s.handlePlayerBreakeven)
				r.Get("/transactions", s.handleTransactions)
				r.Post("/claim", s.handleClaim)
				r.Post("/claim/confirm", s.handleConfirmClaim)
				r.Get("/claims", s.handleClaims)
			})
		})
		r.Post("/api/invites/validate", s.handleValidateInvite)
		r.Get("/api/stats", s.handleStats)
	}

	r.Route("/api/admin", func(r chi.Router) {
		r.Post("/jobs/passive", s.handleRunPassive)
		r.Post("/jobs/stats", s.handleRefreshStats)
		r.Get("/spans", s.handleSpans)
		if s.game != nil {
			r.Post("/invite-codes", s.handleGenerateInvites)
			r.Get("/invite-codes", s.handleListInvites)
			r.Post("/invite-codes/{code}/deactivate", s.handleDeactivateInvite)
		}
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    errorType(status),
		},
	})
}

func errorType(status int) string {
	switch {
	case status == http.StatusNotFound:
		return "not_found"
	case status == http.StatusConflict:
		return "conflict"
	case status == http.StatusTooManyRequests:
		return "rate_limited"
	case status >= 500:
		return "server_error"
	default:
		return "invalid_request"
	}
}

// writeDomainError maps service errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrPlayerNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrPuffCooldown):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, domain.ErrPlayerExists),
		errors.Is(err, domain.ErrDuplicateSignature),
		errors.Is(err, domain.ErrDeviceOwned),
		errors.Is(err, domain.ErrNoPendingClaim),
		errors.Is(err, domain.ErrInviteCodeExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInvalidWallet),
		errors.Is(err, domain.ErrInvalidDevice),
		errors.Is(err, domain.ErrDeviceNotOwned),
		errors.Is(err, domain.ErrDeviceMaxLevel),
		errors.Is(err, domain.ErrInsufficientBalance),
		errors.Is(err, domain.ErrInsufficientPoints),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrPoolDepleted),
		errors.Is(err, domain.ErrSignatureRequired),
		errors.Is(err, domain.ErrPurchaseRejected),
		errors.Is(err, domain.ErrNothingToClaim),
		errors.Is(err, domain.ErrClaimRejected),
		errors.Is(err, domain.ErrInviteRequired),
		errors.Is(err, domain.ErrInviteInvalid),
		errors.Is(err, domain.ErrInviteCount),
		errors.Is(err, economy.ErrLevelOutOfRange),
		errors.Is(err, economy.ErrInvalidStats):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// corsMiddleware adds CORS headers for browser clients.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := s.allowedOrigin(r.Header.Get("Origin")); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) allowedOrigin(origin string) string {
	if len(s.corsOrigins) == 0 {
		return "*"
	}
	for _, o := range s.corsOrigins {
		if o == "*" {
			return "*"
		}
		if origin != "" && strings.EqualFold(o, origin) {
			return origin
		}
	}
	return ""
}

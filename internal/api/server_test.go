package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/solpxlb/puffquest/internal/app/game"
	"github.com/solpxlb/puffquest/internal/app/stats"
	"github.com/solpxlb/puffquest/internal/infra/observability"
	"github.com/solpxlb/puffquest/internal/infra/passive"
	"github.com/solpxlb/puffquest/internal/infra/sqlite"
)

// ═══════════════════════════════════════════════════════════════════════════
// Test Helpers
// ═══════════════════════════════════════════════════════════════════════════

func setupServer(t *testing.T) (*Server, *sqlite.DB) {
	t.Helper()
	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	now := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	svc := game.New(game.DefaultConfig(), db, nil)
	svc.SetClock(clock)

	tracer := observability.NewTracer(observability.DefaultTracerConfig())
	job := passive.NewJob(passive.DefaultConfig(), db, tracer)
	job.SetClock(clock)
	agg := stats.NewAggregator(db, tracer)
	agg.SetClock(clock)

	srv := NewServer(svc)
	srv.SetJobs(job, agg)
	srv.SetTracer(tracer)
	srv.EnableMetrics()
	return srv, db
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var resp map[string]interface{}
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("%s %s: decode: %v (body %s)", method, path, err, w.Body.String())
		}
	}
	return w, resp
}

// ═══════════════════════════════════════════════════════════════════════════
// Health & Metrics
// ═══════════════════════════════════════════════════════════════════════════

func TestServer_Health(t *testing.T) {
	srv, _ := setupServer(t)
	w, resp := do(t, srv.Handler(), http.MethodGet, "/health", "")
	if w.Code != http.StatusOK || resp["status"] != "ok" {
		t.Errorf("GET /health = %d %v", w.Code, resp)
	}
}

func TestServer_HealthDegraded(t *testing.T) {
	srv, db := setupServer(t)
	srv.SetHealthCheck(db.Ping)
	h := srv.Handler()

	if w, _ := do(t, h, http.MethodGet, "/health", ""); w.Code != http.StatusOK {
		t.Fatalf("healthy GET /health = %d", w.Code)
	}
	db.Close()
	w, resp := do(t, h, http.MethodGet, "/health", "")
	if w.Code != http.StatusServiceUnavailable || resp["status"] != "degraded" {
		t.Errorf("GET /health after close = %d %v", w.Code, resp)
	}
}

func TestServer_Metrics(t *testing.T) {
	srv, _ := setupServer(t)
	w, _ := do(t, srv.Handler(), http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /metrics = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "puffquest_economy_pool_remaining") {
		t.Error("metrics output missing puffquest gauges")
	}
}

func TestServer_MetricsDisabled(t *testing.T) {
	srv := NewServer(nil)
	w, _ := do(t, srv.Handler(), http.MethodGet, "/metrics", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("GET /metrics without EnableMetrics = %d, want 404", w.Code)
	}
}

func TestServer_CORS(t *testing.T) {
	srv := NewServer(nil)
	srv.SetCORSOrigins([]string{"https://puffquest.app"})

	req := httptest.NewRequest(http.MethodOptions, "/api/economy/estimate", nil)
	req.Header.Set("Origin", "https://puffquest.app")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://puffquest.app" {
		t.Errorf("allowed origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/api/economy/estimate", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("foreign origin allowed: %q", got)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Economy Calculator
// ═══════════════════════════════════════════════════════════════════════════

const launchStats = `"global_stats":{"total_players":10,"rewards_pool_remaining":45000000,"circulating_supply":0}`

func TestEconomy_Reward(t *testing.T) {
	srv, _ := setupServer(t)
	h := srv.Handler()

	tests := []struct {
		name string
		body string
		want float64
	}{
		{"idle_no_devices", `{"device_levels":{"vape":0,"cigarette":0,"cigar":0},` + launchStats + `}`, 24},
		{"active_session", `{"device_levels":{},"active_session":true,` + launchStats + `}`, 60},
		{"stored_stats", `{"device_levels":{"vape":1}}`, 30},
		{"streak_seven", `{"device_levels":{},"streak_days":7,` + launchStats + `}`, 30},
		{"late_economy", `{"device_levels":{"vape":10,"cigarette":10,"cigar":10},"active_session":true,"global_stats":{"total_players":1000,"rewards_pool_remaining":0,"circulating_supply":45000000}}`, 67},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := do(t, h, http.MethodPost, "/api/economy/reward", tt.body)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
			}
			if resp["reward"] != tt.want {
				t.Errorf("reward = %v, want %v", resp["reward"], tt.want)
			}
		})
	}
}

func TestEconomy_RejectsInvalidInput(t *testing.T) {
	srv, _ := setupServer(t)
	h := srv.Handler()

	tests := []struct {
		name, method, path, body string
	}{
		{"level_too_high", http.MethodPost, "/api/economy/reward", `{"device_levels":{"vape":11}}`},
		{"negative_level", http.MethodPost, "/api/economy/estimate", `{"device_levels":{"cigar":-1}}`},
		{"negative_players", http.MethodPost, "/api/economy/reward", `{"device_levels":{},"global_stats":{"total_players":-5,"rewards_pool_remaining":1,"circulating_supply":0}}`},
		{"pool_overflow", http.MethodPost, "/api/economy/reward", `{"device_levels":{},"global_stats":{"total_players":5,"rewards_pool_remaining":50000000,"circulating_supply":0}}`},
		{"negative_hours", http.MethodPost, "/api/economy/passive", `{"device_levels":{},"hours_since_last_claim":-1}`},
		{"negative_streak", http.MethodPost, "/api/economy/estimate", `{"device_levels":{},"streak_days":-2}`},
		{"unknown_field", http.MethodPost, "/api/economy/reward", `{"levels":{}}`},
		{"bad_json", http.MethodPost, "/api/economy/reward", `{`},
		{"upgrade_level_11", http.MethodGet, "/api/economy/upgrade-cost/11", ""},
		{"upgrade_level_text", http.MethodGet, "/api/economy/upgrade-cost/abc", ""},
		{"streak_negative", http.MethodGet, "/api/economy/streak-multiplier/-1", ""},
		{"conversion_points_text", http.MethodGet, "/api/economy/conversion-rate?points=lots", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := do(t, h, tt.method, tt.path, tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (body %s)", w.Code, w.Body.String())
			}
			if _, ok := resp["error"]; !ok {
				t.Error("error body missing")
			}
		})
	}
}

func TestEconomy_Passive(t *testing.T) {
	srv, _ := setupServer(t)
	w, resp := do(t, srv.Handler(), http.MethodPost, "/api/economy/passive",
		`{"device_levels":{"vape":2},"hours_since_last_claim":30,`+launchStats+`}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if resp["passive_income"] != float64(240) || resp["hours_claimed"] != float64(24) {
		t.Errorf("passive = %v", resp)
	}
}

func TestEconomy_UpgradeCostAndStreak(t *testing.T) {
	srv, _ := setupServer(t)
	h := srv.Handler()

	_, resp := do(t, h, http.MethodGet, "/api/economy/upgrade-cost/4", "")
	if resp["upgrade_cost"] != float64(9) || resp["max_level"] != false {
		t.Errorf("upgrade-cost/4 = %v", resp)
	}
	_, resp = do(t, h, http.MethodGet, "/api/economy/upgrade-cost/10", "")
	if resp["max_level"] != true || resp["upgrade_cost"] != nil {
		t.Errorf("upgrade-cost/10 = %v, want max_level and no cost", resp)
	}
	_, resp = do(t, h, http.MethodGet, "/api/economy/streak-multiplier/7", "")
	if resp["multiplier"] != 1.25 {
		t.Errorf("streak-multiplier/7 = %v", resp)
	}
}

func TestEconomy_EstimateAndBreakeven(t *testing.T) {
	srv, _ := setupServer(t)
	h := srv.Handler()

	_, resp := do(t, h, http.MethodPost, "/api/economy/estimate", `{"device_levels":{},`+launchStats+`}`)
	if resp["total"] != float64(1260) || resp["from_passive"] != float64(0) {
		t.Errorf("estimate = %v", resp)
	}

	_, resp = do(t, h, http.MethodPost, "/api/economy/breakeven", `{"device_levels":{},"exchange_rate":0.000001,`+launchStats+`}`)
	if resp["can_breakeven"] != false || resp["days_to_breakeven"] != float64(40) {
		t.Errorf("breakeven = %v", resp)
	}

	// 0.05 / 1e-300 days overflows any int.
	w, resp := do(t, h, http.MethodPost, "/api/economy/breakeven", `{"device_levels":{"vape":1},"exchange_rate":1e-300,`+launchStats+`}`)
	if w.Code != http.StatusOK || resp["can_breakeven"] != false || resp["days_to_breakeven"] != float64(-1) {
		t.Errorf("tiny-rate breakeven = %d %v, want unreachable (-1)", w.Code, resp)
	}

	_, resp = do(t, h, http.MethodPost, "/api/economy/breakeven", `{"device_levels":{"vape":1,"cigarette":1,"cigar":1}}`)
	if resp["can_breakeven"] != true || resp["days_to_breakeven"] != float64(1) {
		t.Errorf("starter breakeven = %v", resp)
	}
}

func TestEconomy_ConversionRate(t *testing.T) {
	srv, _ := setupServer(t)
	w, resp := do(t, srv.Handler(), http.MethodGet, "/api/economy/conversion-rate?points=20000", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if resp["points_per_token"] != float64(10_000) || resp["tokens"] != float64(2) {
		t.Errorf("conversion-rate = %v", resp)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Players
// ═══════════════════════════════════════════════════════════════════════════

func registerPlayer(t *testing.T, h http.Handler, wallet string) string {
	t.Helper()
	w, resp := do(t, h, http.MethodPost, "/api/players", `{"wallet":"`+wallet+`"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("register = %d %s", w.Code, w.Body.String())
	}
	return resp["id"].(string)
}

func TestPlayers_Lifecycle(t *testing.T) {
	srv, _ := setupServer(t)
	h := srv.Handler()
	id := registerPlayer(t, h, "wallet-1")
	base := "/api/players/" + id

	// Purchase the starter kit.
	w, resp := do(t, h, http.MethodPost, base+"/purchase",
		`{"device_types":["vape","cigarette","cigar"],"transaction_signature":"sig-1"}`)
	if w.Code != http.StatusOK || resp["success"] != true {
		t.Fatalf("purchase = %d %v", w.Code, resp)
	}

	// 45 base × 1.2 × 2.5.
	w, resp = do(t, h, http.MethodPost, base+"/puff", `{"active_session":true}`)
	if w.Code != http.StatusOK || resp["reward"] != float64(135) {
		t.Fatalf("puff = %d %v", w.Code, resp)
	}

	// Level 1 → 2 is free.
	w, resp = do(t, h, http.MethodPost, base+"/upgrade", `{"device_type":"cigar"}`)
	if w.Code != http.StatusOK || resp["new_level"] != float64(2) || resp["upgrade_cost"] != float64(0) {
		t.Fatalf("upgrade = %d %v", w.Code, resp)
	}

	w, resp = do(t, h, http.MethodGet, base, "")
	if w.Code != http.StatusOK || resp["points"] != float64(135) {
		t.Fatalf("get = %d %v", w.Code, resp)
	}
	levels := resp["device_levels"].(map[string]interface{})
	if levels["cigar"] != float64(2) {
		t.Errorf("device_levels = %v", levels)
	}

	w, resp = do(t, h, http.MethodGet, base+"/estimate", "")
	if w.Code != http.StatusOK || resp["hourly_passive"] != float64(25) {
		t.Errorf("estimate = %d %v", w.Code, resp)
	}

	w, resp = do(t, h, http.MethodGet, base+"/breakeven?rate=0.01", "")
	if w.Code != http.StatusOK || resp["can_breakeven"] != true {
		t.Errorf("breakeven = %d %v", w.Code, resp)
	}

	w, resp = do(t, h, http.MethodGet, base+"/transactions?limit=10", "")
	if w.Code != http.StatusOK || resp["count"] != float64(3) {
		t.Errorf("transactions = %d %v", w.Code, resp)
	}
}

func TestPlayers_PuffCooldown(t *testing.T) {
	srv, _ := setupServer(t)
	h := srv.Handler()
	base := "/api/players/" + registerPlayer(t, h, "wallet-cd")

	if w, resp := do(t, h, http.MethodPost, base+"/puff", `{}`); w.Code != http.StatusOK {
		t.Fatalf("first puff = %d %v", w.Code, resp)
	}
	w, resp := do(t, h, http.MethodPost, base+"/puff", `{}`)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second puff = %d, want 429", w.Code)
	}
	if e := resp["error"].(map[string]interface{}); e["type"] != "rate_limited" {
		t.Errorf("error type = %v, want rate_limited", e["type"])
	}
}

func TestPlayers_ErrorMapping(t *testing.T) {
	srv, _ := setupServer(t)
	h := srv.Handler()
	id := registerPlayer(t, h, "wallet-1")
	base := "/api/players/" + id

	do(t, h, http.MethodPost, base+"/purchase", `{"device_types":["vape"],"transaction_signature":"sig-1"}`)

	tests := []struct {
		name, method, path, body string
		want                     int
	}{
		{"unknown_player", http.MethodGet, "/api/players/ghost", "", http.StatusNotFound},
		{"duplicate_wallet", http.MethodPost, "/api/players", `{"wallet":"wallet-1"}`, http.StatusConflict},
		{"blank_wallet", http.MethodPost, "/api/players", `{"wallet":""}`, http.StatusBadRequest},
		{"replayed_signature", http.MethodPost, base + "/purchase", `{"device_types":["cigar"],"transaction_signature":"sig-1"}`, http.StatusConflict},
		{"already_owned", http.MethodPost, base + "/purchase", `{"device_types":["vape"],"transaction_signature":"sig-2"}`, http.StatusConflict},
		{"missing_signature", http.MethodPost, base + "/purchase", `{"device_types":["cigar"]}`, http.StatusBadRequest},
		{"upgrade_unowned", http.MethodPost, base + "/upgrade", `{"device_type":"cigar"}`, http.StatusBadRequest},
		{"upgrade_unknown_kind", http.MethodPost, base + "/upgrade", `{"device_type":"pipe"}`, http.StatusBadRequest},
		{"convert_too_many", http.MethodPost, base + "/convert", `{"points":1000}`, http.StatusBadRequest},
		{"convert_zero", http.MethodPost, base + "/convert", `{"points":0}`, http.StatusBadRequest},
		{"bad_limit", http.MethodGet, base + "/transactions?limit=0", "", http.StatusBadRequest},
		{"bad_rate", http.MethodGet, base + "/breakeven?rate=-1", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _ := do(t, h, tt.method, tt.path, tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Admin Jobs
// ═══════════════════════════════════════════════════════════════════════════

func TestAdmin_Jobs(t *testing.T) {
	srv, _ := setupServer(t)
	h := srv.Handler()
	id := registerPlayer(t, h, "wallet-1")
	base := "/api/players/" + id

	do(t, h, http.MethodPost, base+"/purchase", `{"device_types":["vape"],"transaction_signature":"sig-1"}`)
	do(t, h, http.MethodPost, base+"/upgrade", `{"device_type":"vape"}`)
	do(t, h, http.MethodPost, base+"/puff", `{}`)

	w, resp := do(t, h, http.MethodPost, "/api/admin/jobs/passive", "")
	if w.Code != http.StatusOK || resp["players_processed"] != float64(1) || resp["total_awarded"] != float64(240) {
		t.Fatalf("passive job = %d %v", w.Code, resp)
	}

	w, resp = do(t, h, http.MethodPost, "/api/admin/jobs/stats", "")
	if w.Code != http.StatusOK {
		t.Fatalf("stats job = %d", w.Code)
	}
	snap := resp["stats"].(map[string]interface{})
	if snap["total_players"] != float64(1) || snap["total_distributed"] != float64(240) {
		t.Errorf("stats = %v", snap)
	}

	_, resp = do(t, h, http.MethodGet, "/api/stats", "")
	if resp["points_per_token"] != float64(10_200) {
		t.Errorf("points_per_token = %v, want 10200", resp["points_per_token"])
	}

	_, resp = do(t, h, http.MethodGet, "/api/admin/spans", "")
	if resp["total"] != float64(2) {
		t.Errorf("spans total = %v, want 2", resp["total"])
	}
}

func TestAdmin_JobsNotConfigured(t *testing.T) {
	srv := NewServer(nil)
	h := srv.Handler()
	for _, path := range []string{"/api/admin/jobs/passive", "/api/admin/jobs/stats"} {
		w, _ := do(t, h, http.MethodPost, path, "")
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("POST %s = %d, want 503", path, w.Code)
		}
	}
}

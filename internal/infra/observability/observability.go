// Package observability holds the Prometheus metrics and the in-memory span
// recorder for puffquest.
//
// Metrics cover both reward paths:
//   - interactive rewards (per-puff points, upgrades, conversions)
//   - batch jobs (passive accrual runs, global stats refreshes)
//
// Spans are kept in a bounded ring buffer so the admin API can show recent
// job runs without an external tracing backend.
package observability

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ═══════════════════════════════════════════════════════════════════════════
// Spans
// ═══════════════════════════════════════════════════════════════════════════

// SpanStatus indicates success/failure.
type SpanStatus int

const (
	SpanOK SpanStatus = iota
	SpanError
)

// Span is one timed unit of work, such as a passive accrual run.
type Span struct {
	TraceID   string            `json:"trace_id"`
	SpanID    string            `json:"span_id"`
	ParentID  string            `json:"parent_id,omitempty"`
	Operation string            `json:"operation"`
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time,omitempty"`
	Duration  time.Duration     `json:"duration,omitempty"`
	Status    SpanStatus        `json:"status"`
	Attrs     map[string]string `json:"attrs,omitempty"`
}

// ─── Tracer ─────────────────────────────────────────────────────────────────

// Tracer records finished spans in a ring buffer.
type Tracer struct {
	mu       sync.Mutex
	spans    []Span
	maxSpans int
	enabled  bool
}

// TracerConfig configures the tracer.
type TracerConfig struct {
	Enabled  bool
	MaxSpans int // ring buffer size (default 1_000)
}

// DefaultTracerConfig returns production defaults.
func DefaultTracerConfig() TracerConfig {
	return TracerConfig{
		Enabled:  true,
		MaxSpans: 1_000,
	}
}

// NewTracer creates a new tracer.
func NewTracer(cfg TracerConfig) *Tracer {
	if cfg.MaxSpans <= 0 {
		cfg.MaxSpans = DefaultTracerConfig().MaxSpans
	}
	return &Tracer{
		spans:    make([]Span, 0, cfg.MaxSpans),
		maxSpans: cfg.MaxSpans,
		enabled:  cfg.Enabled,
	}
}

// StartSpan begins a span; the caller must call EndSpan.
// A nil Tracer is valid and records nothing.
func (t *Tracer) StartSpan(ctx context.Context, operation string, attrs map[string]string) *Span {
	if t == nil || !t.enabled {
		return &Span{Operation: operation}
	}
	return &Span{
		TraceID:   traceIDFromContext(ctx),
		SpanID:    uuid.NewString(),
		ParentID:  spanIDFromContext(ctx),
		Operation: operation,
		StartTime: time.Now(),
		Status:    SpanOK,
		Attrs:     attrs,
	}
}

// EndSpan completes a span and records it.
func (t *Tracer) EndSpan(span *Span, err error) {
	if t == nil || !t.enabled || span == nil {
		return
	}

	span.EndTime = time.Now()
	span.Duration = span.EndTime.Sub(span.StartTime)
	if err != nil {
		span.Status = SpanError
		if span.Attrs == nil {
			span.Attrs = make(map[string]string)
		}
		span.Attrs["error"] = err.Error()
		JobErrors.WithLabelValues(span.Operation).Inc()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.spans) >= t.maxSpans {
		t.spans = t.spans[1:]
	}
	t.spans = append(t.spans, *span)
}

// Spans returns up to limit of the most recent spans (all when limit <= 0).
func (t *Tracer) Spans(limit int) []Span {
	t.mu.Lock()
	defer t.mu.Unlock()

	if limit <= 0 || limit > len(t.spans) {
		limit = len(t.spans)
	}
	out := make([]Span, limit)
	copy(out, t.spans[len(t.spans)-limit:])
	return out
}

// SpanCount returns the number of recorded spans.
func (t *Tracer) SpanCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.spans)
}

// ─── Context Helpers ────────────────────────────────────────────────────────

type contextKey string

const (
	traceIDKey contextKey = "puffquest-trace-id"
	spanIDKey  contextKey = "puffquest-span-id"
)

// WithTraceID returns a context with the given trace ID.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// WithSpanID returns a context whose next span is parented to spanID.
func WithSpanID(ctx context.Context, spanID string) context.Context {
	return context.WithValue(ctx, spanIDKey, spanID)
}

func traceIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey).(string); ok {
		return v
	}
	return uuid.NewString()
}

func spanIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(spanIDKey).(string); ok {
		return v
	}
	return ""
}

// ═══════════════════════════════════════════════════════════════════════════
// Prometheus Metrics
// ═══════════════════════════════════════════════════════════════════════════

// ─── Reward Metrics ─────────────────────────────────────────────────────────

// RewardsAwarded tracks reward units awarded by source ("puff", "passive").
var RewardsAwarded = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "puffquest",
	Subsystem: "rewards",
	Name:      "awarded_total",
	Help:      "Total reward units awarded by source.",
}, []string{"source"})

// PuffsRecorded tracks detected puffs by session state.
var PuffsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "puffquest",
	Subsystem: "rewards",
	Name:      "puffs_total",
	Help:      "Total puffs recorded by session state.",
}, []string{"session"})

// PointsConverted tracks points converted into tokens.
var PointsConverted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "puffquest",
	Subsystem: "rewards",
	Name:      "points_converted_total",
	Help:      "Total points converted into tokens.",
})

// ─── Device Metrics ─────────────────────────────────────────────────────────

// Upgrades tracks device upgrades by device kind.
var Upgrades = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "puffquest",
	Subsystem: "devices",
	Name:      "upgrades_total",
	Help:      "Total device upgrades by device kind.",
}, []string{"device"})

// Purchases tracks device purchases by device kind.
var Purchases = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "puffquest",
	Subsystem: "devices",
	Name:      "purchases_total",
	Help:      "Total device purchases by device kind.",
}, []string{"device"})

// ─── Claim & Invite Metrics ─────────────────────────────────────────────────

// Claims tracks token withdrawals by outcome ("pending", "confirmed", "failed").
var Claims = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "puffquest",
	Subsystem: "claims",
	Name:      "total",
	Help:      "Total token claims by status.",
}, []string{"status"})

// InvitesIssued tracks generated invite codes.
var InvitesIssued = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "puffquest",
	Subsystem: "invites",
	Name:      "issued_total",
	Help:      "Total invite codes generated.",
})

// InvitesRedeemed tracks registrations that consumed an invite code.
var InvitesRedeemed = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "puffquest",
	Subsystem: "invites",
	Name:      "redeemed_total",
	Help:      "Total invite codes redeemed by new players.",
})

// ─── Economy Metrics ────────────────────────────────────────────────────────

// TotalPlayers mirrors the latest global stats snapshot.
var TotalPlayers = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "puffquest",
	Subsystem: "economy",
	Name:      "total_players",
	Help:      "Players with at least one recorded puff.",
})

// PoolRemaining mirrors the latest rewards pool remaining.
var PoolRemaining = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "puffquest",
	Subsystem: "economy",
	Name:      "pool_remaining",
	Help:      "Reward units left in the rewards pool.",
})

// ─── Job Metrics ────────────────────────────────────────────────────────────

// JobDuration tracks batch job run time by job name.
var JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "puffquest",
	Subsystem: "jobs",
	Name:      "duration_seconds",
	Help:      "Batch job run duration in seconds.",
	Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
}, []string{"job"})

// JobPlayersProcessed tracks players touched per job.
var JobPlayersProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "puffquest",
	Subsystem: "jobs",
	Name:      "players_processed_total",
	Help:      "Total players processed by batch jobs.",
}, []string{"job"})

// JobErrors tracks failed spans by operation.
var JobErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "puffquest",
	Subsystem: "jobs",
	Name:      "errors_total",
	Help:      "Total failed job spans by operation.",
}, []string{"operation"})

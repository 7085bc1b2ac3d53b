// Package stats recomputes the singleton global stats snapshot that every
// reward calculation reads.
package stats

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/solpxlb/puffquest/internal/domain"
	"github.com/solpxlb/puffquest/internal/economy"
	"github.com/solpxlb/puffquest/internal/infra/observability"
)

// JobName labels metrics and spans for this job.
const JobName = "stats_refresh"

// Aggregator refreshes global stats from player records.
type Aggregator struct {
	store  domain.StatsStore
	tracer *observability.Tracer
	now    domain.Clock
}

// NewAggregator creates an aggregator. tracer may be nil.
func NewAggregator(store domain.StatsStore, tracer *observability.Tracer) *Aggregator {
	return &Aggregator{store: store, tracer: tracer, now: time.Now}
}

// SetClock replaces the time source (tests only).
func (a *Aggregator) SetClock(c domain.Clock) { a.now = c }

// Refresh counts active players (at least one puff), sums distributed tokens
// and sets the remaining pool to max(0, InitialPool − distributed). The
// circulating supply is kept as stored.
func (a *Aggregator) Refresh(ctx context.Context) (snap domain.StatsSnapshot, err error) {
	span := a.tracer.StartSpan(ctx, JobName, nil)
	defer func() { a.tracer.EndSpan(span, err) }()

	start := time.Now()
	defer func() {
		observability.JobDuration.WithLabelValues(JobName).Observe(time.Since(start).Seconds())
	}()

	snap, err = a.store.GlobalStats(ctx)
	if err != nil {
		return snap, fmt.Errorf("load stats: %w", err)
	}
	players, distributed, err := a.store.AggregateStats(ctx)
	if err != nil {
		return snap, fmt.Errorf("aggregate players: %w", err)
	}

	snap.TotalPlayers = players
	snap.TotalDistributed = distributed
	snap.RewardsPoolRemaining = math.Max(0, economy.InitialPool-distributed)
	snap.UpdatedAt = a.now()

	if err = a.store.SaveGlobalStats(ctx, snap); err != nil {
		return snap, fmt.Errorf("save stats: %w", err)
	}

	observability.TotalPlayers.Set(float64(snap.TotalPlayers))
	observability.PoolRemaining.Set(snap.RewardsPoolRemaining)
	observability.JobPlayersProcessed.WithLabelValues(JobName).Add(float64(players))
	log.Printf("[stats] players=%d distributed=%s pool=%s",
		snap.TotalPlayers, domain.HumanAmount(distributed), domain.HumanAmount(snap.RewardsPoolRemaining))
	return snap, nil
}

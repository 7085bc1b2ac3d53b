// Package passive implements the passive income accrual job.
//
// Devices at level 2 or higher keep earning while the player is away. A run:
//   - Loads every passive-eligible player
//   - Skips claims younger than one hour (a never-claimed player counts 24h)
//   - Credits economy.PassiveIncome to the token balance with an earn_passive
//     ledger row
//   - Summarizes the run in an AccrualReport
package passive

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/solpxlb/puffquest/internal/domain"
	"github.com/solpxlb/puffquest/internal/economy"
	"github.com/solpxlb/puffquest/internal/infra/observability"
)

// JobName labels metrics and spans for this job.
const JobName = "passive_accrual"

// Store is the persistence the job needs.
type Store interface {
	domain.PlayerStore
	domain.StatsStore
}

// ─── Config ─────────────────────────────────────────────────────────────────

// Config tunes the accrual job.
type Config struct {
	// MinClaimInterval is the youngest claim that is paid out.
	MinClaimInterval time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{MinClaimInterval: time.Hour}
}

// ─── Accrual Report ─────────────────────────────────────────────────────────

// AccrualReport summarizes one accrual run.
type AccrualReport struct {
	PeriodStart      time.Time `json:"period_start"`
	PeriodEnd        time.Time `json:"period_end"`
	PlayersProcessed int       `json:"players_processed"`
	PlayersSkipped   int       `json:"players_skipped"`
	PlayersFailed    int       `json:"players_failed"`
	TotalAwarded     int64     `json:"total_awarded"`
}

// Duration is how long the run took.
func (r AccrualReport) Duration() time.Duration {
	return r.PeriodEnd.Sub(r.PeriodStart)
}

// AveragePerPlayer is the mean award across paid players.
func (r AccrualReport) AveragePerPlayer() float64 {
	if r.PlayersProcessed == 0 {
		return 0
	}
	return float64(r.TotalAwarded) / float64(r.PlayersProcessed)
}

// ─── Job ────────────────────────────────────────────────────────────────────

// Job credits passive income to eligible players.
type Job struct {
	cfg    Config
	store  Store
	tracer *observability.Tracer
	now    domain.Clock
}

// NewJob creates an accrual job. tracer may be nil.
func NewJob(cfg Config, store Store, tracer *observability.Tracer) *Job {
	if cfg.MinClaimInterval <= 0 {
		cfg.MinClaimInterval = DefaultConfig().MinClaimInterval
	}
	return &Job{cfg: cfg, store: store, tracer: tracer, now: time.Now}
}

// SetClock replaces the time source (tests only).
func (j *Job) SetClock(c domain.Clock) { j.now = c }

// Run performs one accrual pass. A failure on one player is logged and
// counted; the run continues with the rest.
func (j *Job) Run(ctx context.Context) (report AccrualReport, err error) {
	span := j.tracer.StartSpan(ctx, JobName, nil)
	defer func() { j.tracer.EndSpan(span, err) }()

	start := time.Now()
	report.PeriodStart = j.now()
	defer func() {
		observability.JobDuration.WithLabelValues(JobName).Observe(time.Since(start).Seconds())
	}()

	if err = ctx.Err(); err != nil {
		return report, err
	}
	snap, err := j.store.GlobalStats(ctx)
	if err != nil {
		return report, fmt.Errorf("load stats: %w", err)
	}
	players, err := j.store.ListPassiveEligible(ctx)
	if err != nil {
		return report, fmt.Errorf("list eligible players: %w", err)
	}

	for _, p := range players {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		awarded, paid, err := j.accrue(ctx, p.ID, snap.GlobalStats)
		switch {
		case err != nil:
			report.PlayersFailed++
			log.Printf("[passive] player %s failed: %v", p.ID, err)
		case !paid:
			report.PlayersSkipped++
		default:
			report.PlayersProcessed++
			report.TotalAwarded += awarded
		}
	}

	report.PeriodEnd = j.now()
	observability.JobPlayersProcessed.WithLabelValues(JobName).Add(float64(report.PlayersProcessed))
	observability.RewardsAwarded.WithLabelValues("passive").Add(float64(report.TotalAwarded))
	log.Printf("[passive] processed %d players, skipped %d, failed %d, awarded %d",
		report.PlayersProcessed, report.PlayersSkipped, report.PlayersFailed, report.TotalAwarded)
	return report, nil
}

// accrue pays one player. The claim window is re-read inside the store
// transaction so a concurrent claim is never paid twice.
func (j *Job) accrue(ctx context.Context, playerID string, stats economy.GlobalStats) (int64, bool, error) {
	now := j.now()
	minHours := j.cfg.MinClaimInterval.Hours()

	var (
		awarded int64
		paid    bool
	)
	_, err := j.store.UpdatePlayer(ctx, playerID, func(p *domain.Player) ([]domain.Transaction, error) {
		hours := p.HoursSincePassiveClaim(now)
		if hours < minHours {
			return nil, nil
		}

		income := economy.PassiveIncome(p.Devices, stats, hours)
		before := p.Balance
		p.Balance += float64(income)
		p.TotalEarned += float64(income)
		p.PassiveAccrued += float64(income)
		p.LastPassiveAt = &now
		p.UpdatedAt = now

		awarded, paid = income, true
		return []domain.Transaction{{
			Type:          domain.TxEarnPassive,
			Amount:        float64(income),
			BalanceBefore: before,
			BalanceAfter:  p.Balance,
			Description:   fmt.Sprintf("Passive income: %d over %.1fh", income, hours),
			Metadata: map[string]any{
				"hours_claimed": hours,
				"hourly_rate":   economy.HourlyPassiveRate(p.Devices),
			},
			CreatedAt: now,
		}}, nil
	})
	return awarded, paid, err
}

package sqlite

import (
	"context"

	"github.com/solpxlb/puffquest/internal/domain"
)

// ─── Global Stats Operations ────────────────────────────────────────────────

// GlobalStats returns the singleton stats snapshot.
func (db *DB) GlobalStats(ctx context.Context) (domain.StatsSnapshot, error) {
	var (
		s       domain.StatsSnapshot
		updated string
	)
	err := db.db.QueryRowContext(ctx, `
		SELECT total_players, rewards_pool_remaining, circulating_supply, total_distributed, updated_at
		FROM global_stats WHERE id = 1
	`).Scan(&s.TotalPlayers, &s.RewardsPoolRemaining, &s.CirculatingSupply, &s.TotalDistributed, &updated)
	if err != nil {
		return domain.StatsSnapshot{}, err
	}
	s.UpdatedAt = parseTime(updated)
	return s, nil
}

// SaveGlobalStats overwrites the singleton stats snapshot.
func (db *DB) SaveGlobalStats(ctx context.Context, s domain.StatsSnapshot) error {
	_, err := db.db.ExecContext(ctx, `
		UPDATE global_stats SET
			total_players          = ?,
			rewards_pool_remaining = ?,
			circulating_supply     = ?,
			total_distributed      = ?,
			updated_at             = ?
		WHERE id = 1
	`, s.TotalPlayers, s.RewardsPoolRemaining, s.CirculatingSupply, s.TotalDistributed, formatTime(s.UpdatedAt))
	return err
}

// AggregateStats counts players with at least one puff and sums the tokens
// every player has drawn from the pool.
func (db *DB) AggregateStats(ctx context.Context) (players int64, distributed float64, err error) {
	err = db.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN total_puffs > 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(total_earned), 0)
		FROM players
	`).Scan(&players, &distributed)
	return
}

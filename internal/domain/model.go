// Package domain contains pure business types with ZERO infrastructure imports.
// This is the innermost ring of clean architecture — it depends only on the
// economy engine, which is itself pure.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/solpxlb/puffquest/internal/economy"
)

// ─── Player Types ───────────────────────────────────────────────────────────

// Player is the per-wallet record the game and the batch jobs read and write.
type Player struct {
	ID             string               `json:"id"`
	Wallet         string               `json:"wallet"`
	Devices        economy.DeviceLevels `json:"device_levels"`
	Balance        float64              `json:"balance"`      // on-chain token balance mirror
	Points         int64                `json:"points"`       // off-chain points awaiting conversion
	TotalEarned    float64              `json:"total_earned"` // tokens drawn from the rewards pool
	TotalPoints    int64                `json:"total_points"`
	TotalPuffs     int64                `json:"total_puffs"`
	StreakDays     int                  `json:"streak_days"`
	LastActiveDay  time.Time            `json:"last_active_day,omitempty"`
	LastPassiveAt  *time.Time           `json:"last_passive_claim,omitempty"`
	PassiveAccrued float64              `json:"passive_accumulated"`
	InviteCode     string               `json:"invite_code,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

// NewPlayer returns a fresh player with no devices.
func NewPlayer(id, wallet string, now time.Time) Player {
	return Player{
		ID:        id,
		Wallet:    wallet,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TouchStreak advances the daily streak for activity on day. Activity on the
// same UTC day is a no-op, the next day extends the streak, and any gap
// restarts it at 1.
func (p *Player) TouchStreak(day time.Time) {
	day = truncateDay(day)
	switch {
	case p.LastActiveDay.IsZero():
		p.StreakDays = 1
	case day.Equal(p.LastActiveDay):
		return
	case day.Equal(p.LastActiveDay.AddDate(0, 0, 1)):
		p.StreakDays++
	case day.Before(p.LastActiveDay):
		return
	default:
		p.StreakDays = 1
	}
	p.LastActiveDay = day
}

// HoursSincePassiveClaim returns elapsed hours since the last passive claim.
// A player who never claimed is treated as having claimed 24 hours ago.
func (p Player) HoursSincePassiveClaim(now time.Time) float64 {
	if p.LastPassiveAt == nil {
		return economy.MaxPassiveHours
	}
	return now.Sub(*p.LastPassiveAt).Hours()
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ─── Invite Codes ───────────────────────────────────────────────────────────

// InviteCode gates registration. A code is redeemed by at most one wallet.
type InviteCode struct {
	Code      string     `json:"code"`
	CreatedBy string     `json:"created_by,omitempty"`
	Active    bool       `json:"is_active"`
	UsedBy    string     `json:"used_by,omitempty"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Redeemable reports whether the code can still admit a wallet.
func (c InviteCode) Redeemable() bool {
	return c.Active && c.UsedBy == ""
}

// NormalizeInviteCode trims and upper-cases a user-entered code.
func NormalizeInviteCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ─── Stats Types ────────────────────────────────────────────────────────────

// StatsSnapshot is the persisted singleton global-stats record.
type StatsSnapshot struct {
	economy.GlobalStats
	TotalDistributed float64   `json:"total_distributed"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ─── Utilities ──────────────────────────────────────────────────────────────

// HumanAmount formats a token amount for CLI output.
func HumanAmount(v float64) string {
	switch {
	case v >= 1_000_000:
		return fmt.Sprintf("%.2fM", v/1_000_000)
	case v >= 1_000:
		return fmt.Sprintf("%.1fK", v/1_000)
	case v == float64(int64(v)):
		return fmt.Sprintf("%d", int64(v))
	default:
		return fmt.Sprintf("%.4f", v)
	}
}

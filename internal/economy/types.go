// Package economy is the deflationary reward engine shared by the interactive
// game path and the hourly batch jobs.
//
// Every function here is a pure function of its arguments: no clock reads, no
// randomness, no I/O and no package-level mutable state. Both runtime contexts
// import this package instead of carrying their own copy of the arithmetic, so
// a client-displayed estimate and an actually awarded amount always agree for
// the same stats snapshot.
package economy

import (
	"errors"
	"fmt"
)

// ─── Constants ──────────────────────────────────────────────────────────────

const (
	// InitialPool is the size of the rewards pool at launch.
	InitialPool = 45_000_000

	// MaxLevel is the highest tier a device can reach.
	MaxLevel = 10

	// MaxPassiveHours caps passive accrual per claim to one day.
	MaxPassiveHours = 24

	// AcquisitionCost is the one-time device purchase price in cost units.
	AcquisitionCost = 0.05

	// BreakevenTargetDays is the horizon canBreakeven is judged against.
	BreakevenTargetDays = 3

	// DaysUnreachable is returned as DaysToBreakeven when daily earnings are zero.
	DaysUnreachable = -1

	// DefaultExchangeRate is cost units per reward unit (1 token = 0.01 SOL).
	DefaultExchangeRate = 0.01

	baseActionReward = 20
	baseConversion   = 10_000
	maxConversion    = 1_000_000

	actionsPerDay      = 30
	activeSessionRatio = 0.5
	activeMultiplier   = 2.5
)

// ─── Device Kinds ───────────────────────────────────────────────────────────

// DeviceKind identifies one of the three device families. The kinds differ
// economically only by their reward coefficients.
type DeviceKind string

const (
	DeviceVape      DeviceKind = "vape"
	DeviceCigarette DeviceKind = "cigarette"
	DeviceCigar     DeviceKind = "cigar"
)

// AllDevices lists every device kind in display order.
var AllDevices = []DeviceKind{DeviceVape, DeviceCigarette, DeviceCigar}

// ParseDeviceKind converts a string into a DeviceKind.
func ParseDeviceKind(s string) (DeviceKind, error) {
	switch DeviceKind(s) {
	case DeviceVape, DeviceCigarette, DeviceCigar:
		return DeviceKind(s), nil
	default:
		return "", fmt.Errorf("unknown device kind %q", s)
	}
}

// actionCoefficient is the per-level contribution to the per-action reward.
func (k DeviceKind) actionCoefficient() int {
	switch k {
	case DeviceVape:
		return 5
	case DeviceCigarette:
		return 8
	case DeviceCigar:
		return 12
	default:
		return 0
	}
}

// passiveCoefficient is the hourly passive contribution per level above 1.
func (k DeviceKind) passiveCoefficient() int {
	switch k {
	case DeviceVape:
		return 10
	case DeviceCigarette:
		return 15
	case DeviceCigar:
		return 25
	default:
		return 0
	}
}

// ─── Device Levels ──────────────────────────────────────────────────────────

// DeviceLevels is a player's equipment state. Level 0 means not owned, level 1
// is the free starter tier, and only levels >= 2 generate passive income.
type DeviceLevels struct {
	Vape      int `json:"vape"`
	Cigarette int `json:"cigarette"`
	Cigar     int `json:"cigar"`
}

// Level returns the level of a single device kind.
func (d DeviceLevels) Level(kind DeviceKind) int {
	switch kind {
	case DeviceVape:
		return d.Vape
	case DeviceCigarette:
		return d.Cigarette
	case DeviceCigar:
		return d.Cigar
	default:
		return 0
	}
}

// With returns a copy of d with kind set to level.
func (d DeviceLevels) With(kind DeviceKind, level int) DeviceLevels {
	switch kind {
	case DeviceVape:
		d.Vape = level
	case DeviceCigarette:
		d.Cigarette = level
	case DeviceCigar:
		d.Cigar = level
	}
	return d
}

// PassiveEligible reports whether any device is at level 2 or higher.
func (d DeviceLevels) PassiveEligible() bool {
	return d.Vape >= 2 || d.Cigarette >= 2 || d.Cigar >= 2
}

// ErrLevelOutOfRange is returned by Validate for levels outside [0, MaxLevel].
var ErrLevelOutOfRange = errors.New("device level out of range")

// Validate checks every level is within [0, MaxLevel]. The engine never calls
// it; callers validate at their boundary.
func (d DeviceLevels) Validate() error {
	for _, kind := range AllDevices {
		if lvl := d.Level(kind); lvl < 0 || lvl > MaxLevel {
			return fmt.Errorf("%s level %d: %w", kind, lvl, ErrLevelOutOfRange)
		}
	}
	return nil
}

// ─── Global Stats ───────────────────────────────────────────────────────────

// GlobalStats is a read-only snapshot of adoption state, passed by value.
type GlobalStats struct {
	TotalPlayers         int64   `json:"total_players"`
	RewardsPoolRemaining float64 `json:"rewards_pool_remaining"`
	CirculatingSupply    float64 `json:"circulating_supply"`
}

// InitialStats is the snapshot of a freshly launched economy.
func InitialStats() GlobalStats {
	return GlobalStats{RewardsPoolRemaining: InitialPool}
}

// PoolDepletion is the drained fraction of the initial pool.
func (s GlobalStats) PoolDepletion() float64 {
	return 1 - (s.RewardsPoolRemaining / InitialPool)
}

// ErrInvalidStats is returned by Validate for out-of-domain snapshots.
var ErrInvalidStats = errors.New("invalid global stats")

// Validate checks the snapshot fields are non-negative and the pool does not
// exceed its initial size.
func (s GlobalStats) Validate() error {
	switch {
	case s.TotalPlayers < 0:
		return fmt.Errorf("total_players %d: %w", s.TotalPlayers, ErrInvalidStats)
	case s.RewardsPoolRemaining < 0 || s.RewardsPoolRemaining > InitialPool:
		return fmt.Errorf("rewards_pool_remaining %.2f: %w", s.RewardsPoolRemaining, ErrInvalidStats)
	case s.CirculatingSupply < 0:
		return fmt.Errorf("circulating_supply %.2f: %w", s.CirculatingSupply, ErrInvalidStats)
	}
	return nil
}

// ─── Projections ────────────────────────────────────────────────────────────

// DailyEarnings is a projected day of rewards split by source.
type DailyEarnings struct {
	FromActions int64 `json:"from_actions"`
	FromPassive int64 `json:"from_passive"`
	Total       int64 `json:"total"`
}

// Breakeven reports how long recovering the acquisition cost takes.
type Breakeven struct {
	CanBreakeven    bool    `json:"can_breakeven"`
	DaysToBreakeven int     `json:"days_to_breakeven"`
	DailyEarnings   float64 `json:"daily_earnings"`
}

// Reachable reports whether break-even happens at all.
func (b Breakeven) Reachable() bool {
	return b.DaysToBreakeven != DaysUnreachable
}

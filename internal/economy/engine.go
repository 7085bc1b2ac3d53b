package economy

import "math"

// ─── Per-Action Reward ──────────────────────────────────────────────────────

// ActionReward returns the reward for one detected action with the streak
// multiplier fixed at one day. Use ActionRewardWithStreak when the caller
// knows the player's real streak.
func ActionReward(levels DeviceLevels, stats GlobalStats, active bool) int64 {
	return ActionRewardWithStreak(levels, stats, active, 1)
}

// ActionRewardWithStreak returns
// floor(base × deflation × session × streak), never less than 1.
func ActionRewardWithStreak(levels DeviceLevels, stats GlobalStats, active bool, streakDays int) int64 {
	base := float64(baseReward(levels))
	session := 1.0
	if active {
		session = activeMultiplier
	}

	reward := int64(math.Floor(base * ActionDeflation(stats) * session * StreakMultiplier(streakDays)))
	if reward < 1 {
		return 1
	}
	return reward
}

func baseReward(levels DeviceLevels) int {
	total := baseActionReward
	for _, kind := range AllDevices {
		total += levels.Level(kind) * kind.actionCoefficient()
	}
	return total
}

// ActionDeflation is the adoption-driven factor applied to action rewards:
// 1.2 below 50 players, 1.0 below 100, then decaying with pool depletion and
// player count down to a floor of 0.1.
func ActionDeflation(stats GlobalStats) float64 {
	switch {
	case stats.TotalPlayers < 50:
		return 1.2
	case stats.TotalPlayers < 100:
		return 1.0
	}
	return math.Max(0.1, 1-(stats.PoolDepletion()*0.8)-(float64(stats.TotalPlayers-100)*0.001))
}

// StreakMultiplier maps consecutive active days to a reward multiplier.
func StreakMultiplier(streakDays int) float64 {
	switch {
	case streakDays < 3:
		return 1.0
	case streakDays < 7:
		return 1.1
	case streakDays < 14:
		return 1.25
	case streakDays < 30:
		return 1.5
	default:
		return 2.0
	}
}

// ─── Passive Income ─────────────────────────────────────────────────────────

// PassiveIncome returns the accrual for the elapsed window, capped at
// MaxPassiveHours. Level-1 devices contribute nothing.
func PassiveIncome(levels DeviceLevels, stats GlobalStats, hoursSinceLastClaim float64) int64 {
	hours := math.Min(hoursSinceLastClaim, MaxPassiveHours)
	hourly := float64(HourlyPassiveRate(levels))
	return int64(math.Floor(hourly * hours * PassiveDeflation(stats)))
}

// HourlyPassiveRate is the undeflated hourly accrual: (level−1) × coefficient
// for every device at level 2 or higher.
func HourlyPassiveRate(levels DeviceLevels) int64 {
	var rate int64
	for _, kind := range AllDevices {
		if lvl := levels.Level(kind); lvl >= 2 {
			rate += int64((lvl - 1) * kind.passiveCoefficient())
		}
	}
	return rate
}

// PassiveDeflation is 1.0 below 100 players, then shrinks by 0.2% per extra
// player down to a floor of 0.2.
func PassiveDeflation(stats GlobalStats) float64 {
	if stats.TotalPlayers < 100 {
		return 1.0
	}
	return math.Max(0.2, 1-(float64(stats.TotalPlayers-100)*0.002))
}

// ─── Upgrades ───────────────────────────────────────────────────────────────

// UpgradeCost is the token price of raising a device from currentLevel to the
// next tier. Levels 0 and 1 are free (ownership comes from the one-time
// purchase); from level 2 the price triples every tier: 1, 3, 9, 27, ...
func UpgradeCost(currentLevel int) int64 {
	if currentLevel <= 1 {
		return 0
	}
	const baseCost = 1
	return int64(math.Floor(baseCost * math.Pow(3, float64(currentLevel-2))))
}

// ─── Projections ────────────────────────────────────────────────────────────

// EstimateDailyEarnings projects one day of rewards assuming 30 actions, half
// of them in an active session, plus a full day of passive accrual. It is built
// from the same functions that award real rewards.
func EstimateDailyEarnings(levels DeviceLevels, stats GlobalStats, streakDays int) DailyEarnings {
	activeActions := int64(math.Floor(actionsPerDay * activeSessionRatio))
	idleActions := actionsPerDay - activeActions

	fromActions := activeActions*ActionRewardWithStreak(levels, stats, true, streakDays) +
		idleActions*ActionRewardWithStreak(levels, stats, false, streakDays)
	fromPassive := PassiveIncome(levels, stats, MaxPassiveHours)

	return DailyEarnings{
		FromActions: fromActions,
		FromPassive: fromPassive,
		Total:       fromActions + fromPassive,
	}
}

// CanBreakevenInNDays reports whether a day-one streak earns back the
// acquisition cost within BreakevenTargetDays. exchangeRate is cost units per
// reward unit. A zero daily total, a non-positive rate, or a payback longer
// than MaxInt32 days is unreachable.
func CanBreakevenInNDays(levels DeviceLevels, stats GlobalStats, exchangeRate float64) Breakeven {
	daily := EstimateDailyEarnings(levels, stats, 1)
	out := Breakeven{DailyEarnings: float64(daily.Total)}

	if daily.Total <= 0 || exchangeRate <= 0 {
		out.DaysToBreakeven = DaysUnreachable
		return out
	}

	unitsNeeded := AcquisitionCost / exchangeRate
	days := unitsNeeded / out.DailyEarnings
	if math.IsNaN(days) || days > math.MaxInt32 {
		out.DaysToBreakeven = DaysUnreachable
		return out
	}
	out.CanBreakeven = days <= BreakevenTargetDays
	out.DaysToBreakeven = int(math.Ceil(days))
	return out
}

// ─── Conversion ─────────────────────────────────────────────────────────────

// PointsToTokenRate is how many points buy one token. It starts at 10k,
// worsens linearly through the first 100 players, then grows with pool
// depletion and (players/100)^2.5 up to 1M.
func PointsToTokenRate(stats GlobalStats) int64 {
	players := stats.TotalPlayers
	if players < 50 {
		return baseConversion + players*200
	}
	if players < 100 {
		multiplier := 1 + (float64(players-50) * 0.6)
		return int64(math.Floor(baseConversion * multiplier))
	}

	inflation := math.Pow(float64(players)/100, 2.5)
	multiplier := 1 + (stats.PoolDepletion() * 20) + (inflation * 10)
	rate := int64(math.Floor(baseConversion * multiplier))
	if rate > maxConversion {
		return maxConversion
	}
	return rate
}

// TokensForPoints converts points at the snapshot's current rate.
func TokensForPoints(points int64, stats GlobalStats) float64 {
	return float64(points) / float64(PointsToTokenRate(stats))
}

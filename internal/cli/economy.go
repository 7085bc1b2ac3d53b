package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/solpxlb/puffquest/internal/economy"
)

// ─── Economy CLI ────────────────────────────────────────────────────────────
// Offline calculator over the reward engine. Nothing here touches storage;
// levels and stats come from flags.

func init() {
	rootCmd.AddCommand(economyCmd)
	economyCmd.AddCommand(economyRewardCmd)
	economyCmd.AddCommand(economyPassiveCmd)
	economyCmd.AddCommand(economyUpgradeCostCmd)
	economyCmd.AddCommand(economyEstimateCmd)
	economyCmd.AddCommand(economyBreakevenCmd)

	for _, c := range []*cobra.Command{economyRewardCmd, economyPassiveCmd, economyEstimateCmd, economyBreakevenCmd} {
		addEconomyFlags(c)
	}
	economyRewardCmd.Flags().Bool("active", false, "Puff during an active session")
	economyRewardCmd.Flags().Int("streak", 1, "Consecutive active days")
	economyPassiveCmd.Flags().Float64("hours", economy.MaxPassiveHours, "Hours since the last claim")
	economyEstimateCmd.Flags().Int("streak", 1, "Consecutive active days")
	economyBreakevenCmd.Flags().Float64("rate", economy.DefaultExchangeRate, "Cost units per reward unit")
}

var economyCmd = &cobra.Command{
	Use:   "economy",
	Short: "Evaluate the reward engine",
}

func addEconomyFlags(c *cobra.Command) {
	c.Flags().Int("vape", 0, "Vape level (0-10)")
	c.Flags().Int("cigarette", 0, "Cigarette level (0-10)")
	c.Flags().Int("cigar", 0, "Cigar level (0-10)")
	c.Flags().Int64("players", 0, "Total players")
	c.Flags().Float64("pool", economy.InitialPool, "Rewards pool remaining")
	c.Flags().Float64("supply", 0, "Circulating supply")
}

// economyInputs reads and validates the shared level and stats flags.
func economyInputs(cmd *cobra.Command) (economy.DeviceLevels, economy.GlobalStats, error) {
	var (
		levels economy.DeviceLevels
		stats  economy.GlobalStats
	)
	levels.Vape, _ = cmd.Flags().GetInt("vape")
	levels.Cigarette, _ = cmd.Flags().GetInt("cigarette")
	levels.Cigar, _ = cmd.Flags().GetInt("cigar")
	stats.TotalPlayers, _ = cmd.Flags().GetInt64("players")
	stats.RewardsPoolRemaining, _ = cmd.Flags().GetFloat64("pool")
	stats.CirculatingSupply, _ = cmd.Flags().GetFloat64("supply")

	if err := levels.Validate(); err != nil {
		return levels, stats, err
	}
	if err := stats.Validate(); err != nil {
		return levels, stats, err
	}
	return levels, stats, nil
}

// ─── economy reward ─────────────────────────────────────────────────────────

var economyRewardCmd = &cobra.Command{
	Use:   "reward",
	Short: "Reward for one puff",
	RunE: func(cmd *cobra.Command, args []string) error {
		levels, stats, err := economyInputs(cmd)
		if err != nil {
			return err
		}
		active, _ := cmd.Flags().GetBool("active")
		streak, _ := cmd.Flags().GetInt("streak")
		if streak < 0 {
			return fmt.Errorf("--streak must be non-negative")
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Reward:     %d\n", economy.ActionRewardWithStreak(levels, stats, active, streak))
		fmt.Fprintf(out, "Deflation:  %.3f\n", economy.ActionDeflation(stats))
		fmt.Fprintf(out, "Streak:     %.2fx\n", economy.StreakMultiplier(streak))
		return nil
	},
}

// ─── economy passive ────────────────────────────────────────────────────────

var economyPassiveCmd = &cobra.Command{
	Use:   "passive",
	Short: "Passive income for an elapsed window",
	RunE: func(cmd *cobra.Command, args []string) error {
		levels, stats, err := economyInputs(cmd)
		if err != nil {
			return err
		}
		hours, _ := cmd.Flags().GetFloat64("hours")
		if hours < 0 {
			return fmt.Errorf("--hours must be non-negative")
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Passive:    %d\n", economy.PassiveIncome(levels, stats, hours))
		fmt.Fprintf(out, "Hourly:     %d\n", economy.HourlyPassiveRate(levels))
		fmt.Fprintf(out, "Deflation:  %.3f\n", economy.PassiveDeflation(stats))
		return nil
	},
}

// ─── economy upgrade-cost ───────────────────────────────────────────────────

var economyUpgradeCostCmd = &cobra.Command{
	Use:   "upgrade-cost [LEVEL]",
	Short: "Upgrade price per tier (all tiers when LEVEL is omitted)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if len(args) == 1 {
			level, err := strconv.Atoi(args[0])
			if err != nil || level < 0 || level > economy.MaxLevel {
				return fmt.Errorf("level must be an integer between 0 and %d", economy.MaxLevel)
			}
			if level == economy.MaxLevel {
				fmt.Fprintln(out, "max level")
				return nil
			}
			fmt.Fprintf(out, "%d\n", economy.UpgradeCost(level))
			return nil
		}

		fmt.Fprintln(out, "Level  Cost")
		for level := 0; level < economy.MaxLevel; level++ {
			fmt.Fprintf(out, "%2d→%-2d  %d\n", level, level+1, economy.UpgradeCost(level))
		}
		return nil
	},
}

// ─── economy estimate ───────────────────────────────────────────────────────

var economyEstimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Projected daily earnings",
	RunE: func(cmd *cobra.Command, args []string) error {
		levels, stats, err := economyInputs(cmd)
		if err != nil {
			return err
		}
		streak, _ := cmd.Flags().GetInt("streak")
		if streak < 0 {
			return fmt.Errorf("--streak must be non-negative")
		}

		d := economy.EstimateDailyEarnings(levels, stats, streak)
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "From actions: %d\n", d.FromActions)
		fmt.Fprintf(out, "From passive: %d\n", d.FromPassive)
		fmt.Fprintf(out, "Total:        %d\n", d.Total)
		return nil
	},
}

// ─── economy breakeven ──────────────────────────────────────────────────────

var economyBreakevenCmd = &cobra.Command{
	Use:   "breakeven",
	Short: "Days to recover the device acquisition cost",
	RunE: func(cmd *cobra.Command, args []string) error {
		levels, stats, err := economyInputs(cmd)
		if err != nil {
			return err
		}
		rate, _ := cmd.Flags().GetFloat64("rate")

		b := economy.CanBreakevenInNDays(levels, stats, rate)
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Daily earnings: %.0f\n", b.DailyEarnings)
		if !b.Reachable() {
			fmt.Fprintln(out, "Break-even:     never")
			return nil
		}
		fmt.Fprintf(out, "Break-even:     %d days\n", b.DaysToBreakeven)
		fmt.Fprintf(out, "Within %d days: %t\n", economy.BreakevenTargetDays, b.CanBreakeven)
		return nil
	},
}

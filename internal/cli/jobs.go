package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solpxlb/puffquest/internal/daemon"
	"github.com/solpxlb/puffquest/internal/domain"
)

// ─── Batch Jobs CLI ─────────────────────────────────────────────────────────
// One-shot runs of the scheduled jobs, for cron or manual recovery.

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsPassiveCmd)
	jobsCmd.AddCommand(jobsStatsCmd)
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Run batch jobs once",
}

// ─── jobs passive ───────────────────────────────────────────────────────────

var jobsPassiveCmd = &cobra.Command{
	Use:   "passive",
	Short: "Credit passive income to every eligible player",
	RunE:  runJobsPassive,
}

func runJobsPassive(cmd *cobra.Command, args []string) error {
	d, err := openDaemon(cmd)
	if err != nil {
		return err
	}
	defer d.Close()

	report, err := d.Passive.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("passive accrual: %w", err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Passive accrual finished in %s\n", report.Duration())
	fmt.Fprintf(out, "  Processed: %d\n", report.PlayersProcessed)
	fmt.Fprintf(out, "  Skipped:   %d\n", report.PlayersSkipped)
	fmt.Fprintf(out, "  Failed:    %d\n", report.PlayersFailed)
	fmt.Fprintf(out, "  Awarded:   %s\n", domain.HumanAmount(float64(report.TotalAwarded)))
	return nil
}

// ─── jobs stats ─────────────────────────────────────────────────────────────

var jobsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Recompute global stats from player records",
	RunE:  runJobsStats,
}

func runJobsStats(cmd *cobra.Command, args []string) error {
	d, err := openDaemon(cmd)
	if err != nil {
		return err
	}
	defer d.Close()

	snap, err := d.Stats.Refresh(cmd.Context())
	if err != nil {
		return fmt.Errorf("stats refresh: %w", err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Global stats updated")
	fmt.Fprintf(out, "  Players:     %d\n", snap.TotalPlayers)
	fmt.Fprintf(out, "  Distributed: %s\n", domain.HumanAmount(snap.TotalDistributed))
	fmt.Fprintf(out, "  Pool left:   %s\n", domain.HumanAmount(snap.RewardsPoolRemaining))
	return nil
}

func openDaemon(cmd *cobra.Command) (*daemon.Daemon, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return daemon.New(cfg)
}

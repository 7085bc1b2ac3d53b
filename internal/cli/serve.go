package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/solpxlb/puffquest/internal/daemon"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Bool("no-jobs", false, "Serve the API without the batch job schedulers")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server and batch job schedulers",
	Long: `Start the HTTP API and, unless disabled, the hourly passive accrual and
global stats jobs. Stops cleanly on SIGINT or SIGTERM.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if noJobs, _ := cmd.Flags().GetBool("no-jobs"); noJobs {
		cfg.Jobs.Enabled = false
	}

	d, err := daemon.New(cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return d.Run(ctx)
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ─── Invite Codes CLI ───────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(invitesCmd)
	invitesCmd.AddCommand(invitesGenerateCmd)
	invitesCmd.AddCommand(invitesListCmd)
	invitesCmd.AddCommand(invitesDeactivateCmd)

	invitesGenerateCmd.Flags().Int("count", 1, "Number of codes to issue (1-100)")
	invitesGenerateCmd.Flags().String("created-by", "admin", "Issuer recorded on each code")
	invitesListCmd.Flags().Int("limit", 100, "Maximum codes to list")
}

var invitesCmd = &cobra.Command{
	Use:   "invites",
	Short: "Manage registration invite codes",
}

var invitesGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Issue single-use invite codes",
	RunE: func(cmd *cobra.Command, args []string) error {
		count, _ := cmd.Flags().GetInt("count")
		createdBy, _ := cmd.Flags().GetString("created-by")

		d, err := openDaemon(cmd)
		if err != nil {
			return err
		}
		defer d.Close()

		codes, err := d.Game.GenerateInviteCodes(cmd.Context(), createdBy, count)
		if err != nil {
			return fmt.Errorf("generate invite codes: %w", err)
		}
		out := cmd.OutOrStdout()
		for _, c := range codes {
			fmt.Fprintln(out, c.Code)
		}
		return nil
	},
}

var invitesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List issued invite codes",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		d, err := openDaemon(cmd)
		if err != nil {
			return err
		}
		defer d.Close()

		codes, err := d.Game.InviteCodes(cmd.Context(), limit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(codes) == 0 {
			fmt.Fprintln(out, "No invite codes issued")
			return nil
		}
		fmt.Fprintf(out, "%-10s %-10s %-12s %s\n", "CODE", "STATUS", "CREATED BY", "USED BY")
		for _, c := range codes {
			status := "open"
			switch {
			case c.UsedBy != "":
				status = "used"
			case !c.Active:
				status = "inactive"
			}
			fmt.Fprintf(out, "%-10s %-10s %-12s %s\n", c.Code, status, c.CreatedBy, c.UsedBy)
		}
		return nil
	},
}

var invitesDeactivateCmd = &cobra.Command{
	Use:   "deactivate <code>",
	Short: "Withdraw an unused invite code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDaemon(cmd)
		if err != nil {
			return err
		}
		defer d.Close()

		if err := d.Game.DeactivateInviteCode(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deactivated %s\n", args[0])
		return nil
	},
}

package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noah-isme/grievance-api/internal/wire"
)

// SweepCmd runs one escalation sweep and reports what was escalated.
func SweepCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Escalate overdue grievances once",
		Long: `Scan open grievances and escalate every one older than its priority threshold.

Already escalated grievances are skipped, so running the sweep while the API
scheduler is active is safe.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			return withContainer(cmd.Context(), verbose, out, func(ctx context.Context, app *wire.Container) error {
				result, err := app.Scheduler.RunOnce(ctx)
				if err != nil {
					fmt.Fprintf(out, "%s sweep failed: %v\n", errLabel("FAIL"), err)
					return err
				}
				fmt.Fprintf(out, "%s scanned %d, escalated %d, notified %d %s\n",
					okLabel("OK"), result.Scanned, result.Escalated, result.Notified, dimLabel("("+result.Duration.String()+")"))
				for _, id := range result.TrackingIDs {
					fmt.Fprintf(out, "  %s\n", id)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Write service logs to stderr")
	return cmd
}

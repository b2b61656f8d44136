package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noah-isme/grievance-api/internal/chatbot"
	"github.com/noah-isme/grievance-api/internal/wire"
)

// TrackCmd prints the public tracking view of one grievance.
func TrackCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "track <tracking-id>",
		Short: "Show the public status of a grievance",
		Example: `  grievancectl track GRV-2025-000123
  grievancectl track grv-2025-000123 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			return withContainer(cmd.Context(), false, out, func(ctx context.Context, app *wire.Container) error {
				view, err := app.Grievance.Track(ctx, args[0], nil)
				if err != nil {
					fmt.Fprintf(out, "%s %v\n", errLabel("NOT FOUND"), err)
					return err
				}
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(view)
				}
				fmt.Fprintln(out, chatbot.FormatView(view))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the view as JSON")
	return cmd
}

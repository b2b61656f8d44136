package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/noah-isme/grievance-api/internal/cli"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "grievancectl",
		Short: "Operator tooling for the grievance service",
		Long: `grievancectl runs escalation sweeps, looks up tracking IDs, previews the
classifier, exports grievances, provisions accounts and migrates the schema against the same
database and configuration as the API server.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(cli.SweepCmd())
	rootCmd.AddCommand(cli.TrackCmd())
	rootCmd.AddCommand(cli.ClassifyCmd())
	rootCmd.AddCommand(cli.ExportCmd())
	rootCmd.AddCommand(cli.UserCmd())
	rootCmd.AddCommand(cli.MigrateCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

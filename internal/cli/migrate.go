package cli

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/noah-isme/grievance-api/migrations"
	"github.com/noah-isme/grievance-api/pkg/config"
	"github.com/noah-isme/grievance-api/pkg/database"
	"github.com/noah-isme/grievance-api/pkg/migrate"
)

// openDatabase is replaced in tests.
var openDatabase = func(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	return database.NewPostgres(cfg)
}

// MigrateCmd applies or reverts the embedded schema.
func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(
		migrateSubCmd("up", "Apply pending migrations", func(cmd *cobra.Command, m *migrate.Manager) error {
			applied, err := m.Up(cmd.Context())
			for _, name := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", okLabel("APPLIED"), name)
			}
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), dimLabel("schema is up to date"))
			}
			return nil
		}),
		migrateSubCmd("down", "Revert the latest migration", func(cmd *cobra.Command, m *migrate.Manager) error {
			name, err := m.Down(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", warnLabel("REVERTED"), name)
			return nil
		}),
		migrateSubCmd("status", "List applied migrations", func(cmd *cobra.Command, m *migrate.Manager) error {
			names, err := m.Status(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		}),
	)
	return cmd
}

func migrateSubCmd(use, short string, run func(*cobra.Command, *migrate.Manager) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			db, err := openDatabase(cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()
			return run(cmd, migrate.NewManager(db, migrations.FS))
		},
	}
}

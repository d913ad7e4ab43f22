package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"libris/internal/database"

	"github.com/spf13/cobra"
)

func newMigrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long: `Manage the database schema.

SQL migrations are embedded in the binary. DB_SCHEMA_MODE decides whether
"status" expects them (hybrid, sql) or relies on GORM auto-migration (auto).
The scripts target PostgreSQL; on SQLite hybrid mode auto-migrates instead.`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending SQL migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				ctx := cmd.Context()
				db, _, err := a.connect(ctx)
				if err != nil {
					return err
				}
				if err := database.RunMigrations(ctx, db); err != nil {
					return fmt.Errorf("sql migrations failed: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "sql migrations applied")
				return nil
			},
		},
		&cobra.Command{
			Use:   "auto",
			Short: "Run GORM auto-migration for every model",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				ctx := cmd.Context()
				db, cfg, err := a.connect(ctx)
				if err != nil {
					return err
				}
				cfg.DBSchemaMode = database.SchemaModeAuto
				if err := database.ApplySchema(ctx, db, cfg); err != nil {
					return fmt.Errorf("auto schema apply failed: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "automigrations applied")
				return nil
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show the schema policy and pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				ctx := cmd.Context()
				db, cfg, err := a.connect(ctx)
				if err != nil {
					return err
				}
				status, err := database.GetSchemaStatus(ctx, db, cfg)
				if err != nil {
					return fmt.Errorf("schema status failed: %w", err)
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintf(w, "mode\t%s\n", status.Mode)
				fmt.Fprintf(w, "dialect\t%s\n", status.Dialect)
				fmt.Fprintf(w, "environment\t%s\n", status.Environment)
				fmt.Fprintf(w, "run sql\t%t\n", status.WillRunSQL)
				fmt.Fprintf(w, "run auto\t%t\n", status.WillRunAutoMigrate)
				if status.SQLSkipped {
					fmt.Fprintf(w, "note\tembedded sql migrations need postgres; using auto-migration\n")
				}
				fmt.Fprintf(w, "applied\t%d\n", len(status.AppliedVersions))
				fmt.Fprintf(w, "pending\t%d\n", len(status.PendingMigrations))
				for _, m := range status.PendingMigrations {
					fmt.Fprintf(w, "  %06d\t%s\n", m.Version, m.Name)
				}
				return w.Flush()
			},
		},
		&cobra.Command{
			Use:   "rollback <version>",
			Short: "Roll back one applied SQL migration",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				version, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid version %q: %w", args[0], err)
				}
				ctx := cmd.Context()
				db, _, err := a.connect(ctx)
				if err != nil {
					return err
				}
				if err := database.RollbackMigration(ctx, db, version); err != nil {
					return fmt.Errorf("rollback failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "rolled back migration %d\n", version)
				return nil
			},
		},
	)
	return cmd
}

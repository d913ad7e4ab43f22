// Command manage runs administrative tasks against the Libris database:
// account provisioning, schema migrations and demo data seeding.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"libris/internal/config"
	"libris/internal/database"
	"libris/internal/middleware"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// app holds what every subcommand needs. connect is swapped out in tests.
type app struct {
	in      io.Reader
	out     io.Writer
	connect func(ctx context.Context) (*gorm.DB, *config.Config, error)
}

func defaultConnect(_ context.Context) (*gorm.DB, *config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	middleware.InitLogger(cfg.Env, os.Stderr)

	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	return db, cfg, nil
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "manage",
		Short: "Libris management commands",
		Long: `Administrative tasks for the Libris backend.

Examples:
  manage createuser --email reader@example.com --username reader --password ...
  manage createsuperuser --email admin@example.com --username admin --password ...
  manage migrate status
  manage seed --users 5 --books 20`,
		SilenceUsage: true,
	}
	root.SetIn(a.in)
	root.SetOut(a.out)

	root.AddCommand(
		newCreateUserCmd(a),
		newCreateSuperuserCmd(a),
		newMigrateCmd(a),
		newSeedCmd(a),
	)
	return root
}

func main() {
	a := &app{in: os.Stdin, out: os.Stdout, connect: defaultConnect}
	if err := newRootCmd(a).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package main

import (
	"fmt"

	"libris/internal/seed"

	"github.com/spf13/cobra"
)

func newSeedCmd(a *app) *cobra.Command {
	opts := seed.DefaultOptions()
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill the database with demo users and content",
		Long: fmt.Sprintf(`Fill the database with generated users, genres, books, news and items.

Every seeded user logs in with the password %q.`, seed.DemoPassword),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, _, err := a.connect(ctx)
			if err != nil {
				return err
			}
			sum, err := seed.Seed(ctx, db, opts)
			if err != nil {
				return fmt.Errorf("seed failed: %w", err)
			}
			prefix := "seeded"
			if opts.DryRun {
				prefix = "would seed"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", prefix, sum)
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVar(&opts.Users, "users", opts.Users, "Number of users")
	f.IntVar(&opts.Books, "books", opts.Books, "Number of books")
	f.IntVar(&opts.News, "news", opts.News, "Number of news posts")
	f.IntVar(&opts.Items, "items", opts.Items, "Number of items")
	f.IntVar(&opts.MaxDays, "max-days", 90, "Spread creation dates over this many days")
	f.BoolVar(&opts.Clean, "clean", false, "Delete existing users and content first")
	f.BoolVar(&opts.DryRun, "dry-run", false, "Generate records without writing them")
	f.Int64Var(&opts.RandSeed, "seed", 0, "Random seed for reproducible data (0 means time based)")
	return cmd
}

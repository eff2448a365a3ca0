package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/codevec/internal/config"
	"github.com/Aman-CERP/codevec/internal/output"
	"github.com/Aman-CERP/codevec/internal/store"
)

func newCollectionsCmd() *cobra.Command {
	var ensure bool

	cmd := &cobra.Command{
		Use:   "collections",
		Short: "List configured collections and their point counts",
		Long: `List every collection the configuration routes to, with its point
count in the backend. With --ensure, missing collections are created
first.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCollections(cmd.Context(), cmd, ensure)
		},
	}

	cmd.Flags().BoolVar(&ensure, "ensure", false, "Create all configured collections")

	return cmd
}

func runCollections(ctx context.Context, cmd *cobra.Command, ensure bool) error {
	out := output.New(cmd.OutOrStdout())

	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	backend, err := store.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = backend.Close() }()

	if ensure {
		manager := store.NewManager(backend, cfg, slog.Default())
		if err := manager.EnsureCollections(ctx); err != nil {
			return err
		}
		out.Success("All configured collections exist")
	}

	for _, name := range cfg.Collections.AllCollections() {
		stats, err := backend.CollectionStats(ctx, name)
		if err != nil {
			out.Statusf("", "%-20s (absent)", name)
			continue
		}
		out.Statusf("", "%-20s %d points", stats.Name, stats.Points)
	}
	return nil
}

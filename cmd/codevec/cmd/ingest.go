package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/codevec/internal/checkpoint"
	"github.com/Aman-CERP/codevec/internal/chunk"
	"github.com/Aman-CERP/codevec/internal/config"
	"github.com/Aman-CERP/codevec/internal/embed"
	"github.com/Aman-CERP/codevec/internal/ingest"
	"github.com/Aman-CERP/codevec/internal/output"
	"github.com/Aman-CERP/codevec/internal/store"
)

// ingestOptions holds CLI flags for ingest.
type ingestOptions struct {
	reposPath       string
	collectionsPath string
	resume          bool
	repoIDs         []string
}

func newIngestCmd() *cobra.Command {
	var opts ingestOptions

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest configured repositories into the vector store",
		Long: `Scan, parse, embed, and store every configured repository.

Progress is checkpointed; an interrupted run restarts from the last
checkpoint with --resume.

Examples:
  codevec ingest --repos configs/repositories.yaml
  codevec ingest --resume
  codevec ingest --repo backend-api --repo contracts`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIngest(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.reposPath, "repos", "configs/repositories.yaml", "Repository config file")
	cmd.Flags().StringVar(&opts.collectionsPath, "collections", "", "Collection routing config file (optional)")
	cmd.Flags().BoolVar(&opts.resume, "resume", false, "Resume from the last checkpoint")
	cmd.Flags().StringSliceVar(&opts.repoIDs, "repo", nil, "Ingest only these repo ids (repeatable)")

	return cmd
}

func runIngest(ctx context.Context, cmd *cobra.Command, opts ingestOptions) error {
	out := output.New(cmd.OutOrStdout())

	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	if opts.collectionsPath != "" {
		cm, err := config.LoadCollectionMap(opts.collectionsPath)
		if err != nil {
			return err
		}
		cfg.Collections = cm
	}

	baseDir, repos, err := config.LoadRepos(opts.reposPath)
	if err != nil {
		return err
	}
	if cfg.ReposBaseDir == "" {
		cfg.ReposBaseDir = baseDir
	}
	if len(opts.repoIDs) > 0 {
		repos, err = selectRepos(repos, opts.repoIDs)
		if err != nil {
			return err
		}
	}
	if len(repos) == 0 {
		return fmt.Errorf("no repositories to ingest in %s", opts.reposPath)
	}

	backend, err := store.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = backend.Close() }()
	manager := store.NewManager(backend, cfg, slog.Default())

	embedder := embed.NewCachedEmbedder(
		embed.NewClient(cfg.Embedding, slog.Default()), cfg.Embedding.CacheSize)
	defer func() { _ = embedder.Close() }()

	ckpt, err := checkpoint.NewStore(cfg.Ingestion.CheckpointPath)
	if err != nil {
		return err
	}
	defer func() { _ = ckpt.Close() }()

	pipeline, err := ingest.NewPipeline(cfg, chunk.DefaultRegistry(), embedder, manager, ckpt, slog.Default())
	if err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	out.Statusf("🚀", "Ingesting %d repositories into the %s backend", len(repos), cfg.Backend.Kind)

	stats, err := pipeline.Ingest(runCtx, repos, opts.resume)
	printStats(out, stats)

	if errors.Is(err, context.Canceled) {
		out.Warning("Interrupted; run again with --resume to continue")
		return err
	}
	if err != nil {
		return err
	}
	if stats.ReposFailed > 0 {
		return fmt.Errorf("%d repositories failed", stats.ReposFailed)
	}
	out.Success("Ingestion complete")
	return nil
}

// selectRepos filters the configured repos down to the requested ids.
func selectRepos(repos []config.Repo, ids []string) ([]config.Repo, error) {
	byID := map[string]config.Repo{}
	for _, r := range repos {
		byID[r.ID] = r
	}
	var selected []config.Repo
	for _, id := range ids {
		r, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("repo %q is not in the repository config", id)
		}
		selected = append(selected, r)
	}
	return selected, nil
}

// printStats renders the end-of-run summary.
func printStats(out *output.Writer, stats *ingest.Stats) {
	out.Statusf("", "Repos: %d completed, %d skipped, %d failed",
		stats.ReposProcessed, stats.ReposSkipped, stats.ReposFailed)
	out.Statusf("", "Chunks: %d stored, %d dropped", stats.StoredTotal, stats.Dropped)

	for _, lang := range sortedKeys(stats.FilesByLanguage) {
		out.Statusf("", "  %-16s %d files", lang, stats.FilesByLanguage[lang])
	}
	for _, col := range sortedKeys(stats.ChunksByCollection) {
		out.Statusf("", "  %-16s %d chunks", col, stats.ChunksByCollection[col])
	}
	for _, domain := range sortedKeys(stats.ChunksByDomain) {
		out.Statusf("", "  domain %-9s %d chunks", domain, stats.ChunksByDomain[domain])
	}
	if len(stats.Errors) > 0 {
		out.Warningf("%d errors during the run:", len(stats.Errors))
		for _, desc := range stats.Errors {
			out.Status("", "  "+desc)
		}
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

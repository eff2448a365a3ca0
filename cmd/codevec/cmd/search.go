package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/codevec/internal/config"
	"github.com/Aman-CERP/codevec/internal/embed"
	"github.com/Aman-CERP/codevec/internal/output"
	"github.com/Aman-CERP/codevec/internal/store"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	collection string
	language   string
	limit      uint64
	threshold  float32
	format     string // "text", "json"
	filters    []string
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Embed a query and search one collection",
		Long: `Embed the query text and run a similarity search against a collection.

Name the collection directly with --collection, or give a language tag
with --language and let the configured routing pick the collection.

Examples:
  codevec search "jwt refresh flow" --language rust
  codevec search "deployment replicas" --collection yaml --limit 5
  codevec search "transfer hook" --language solidity --filter business_domain=finance`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.collection, "collection", "c", "", "Collection name to search")
	cmd.Flags().StringVarP(&opts.language, "language", "l", "", "Language tag to route to a collection")
	cmd.Flags().Uint64VarP(&opts.limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().Float32Var(&opts.threshold, "threshold", 0, "Minimum similarity score")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().StringSliceVar(&opts.filters, "filter", nil, "Payload filter key=value (repeatable)")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	collection, err := resolveCollection(cfg, opts)
	if err != nil {
		return err
	}
	filter, err := parseFilters(opts.filters)
	if err != nil {
		return err
	}

	embedder := embed.NewClient(cfg.Embedding, slog.Default())
	defer func() { _ = embedder.Close() }()

	vector, err := embedder.Embed(ctx, query)
	if err != nil {
		return err
	}

	backend, err := store.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = backend.Close() }()

	hits, err := backend.Search(ctx, collection, vector, opts.limit, opts.threshold, filter)
	if err != nil {
		return err
	}

	if opts.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(hits)
	}

	out := output.New(cmd.OutOrStdout())
	if len(hits) == 0 {
		out.Status("", fmt.Sprintf("No results in %s", collection))
		return nil
	}
	for i, hit := range hits {
		out.Statusf("", "%2d. [%.3f] %s:%v  %v %v",
			i+1, hit.Score,
			hit.Payload["file_path"], hit.Payload["start_line"],
			hit.Payload["item_type"], hit.Payload["item_name"])
		if preview, ok := hit.Payload["content_preview"].(string); ok && preview != "" {
			out.Status("", "    "+firstLine(preview))
		}
	}
	return nil
}

// resolveCollection picks the target collection from the flags.
func resolveCollection(cfg *config.Config, opts searchOptions) (string, error) {
	if opts.collection != "" {
		return opts.collection, nil
	}
	if opts.language != "" {
		collection, ok := cfg.Collections.ForLanguage(opts.language)
		if !ok {
			return "", fmt.Errorf("no collection routes language %q", opts.language)
		}
		return collection, nil
	}
	return "", fmt.Errorf("either --collection or --language is required")
}

// parseFilters converts key=value pairs into a payload filter.
func parseFilters(pairs []string) (store.Filter, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	filter := store.Filter{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("filter %q is not key=value", pair)
		}
		filter[key] = value
	}
	return filter, nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

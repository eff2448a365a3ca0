package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Aman-CERP/codevec/internal/checkpoint"
	"github.com/Aman-CERP/codevec/internal/chunk"
	"github.com/Aman-CERP/codevec/internal/config"
	"github.com/Aman-CERP/codevec/internal/embed"
	"github.com/Aman-CERP/codevec/internal/scanner"
	"github.com/Aman-CERP/codevec/internal/store"
)

// Repo ingestion states.
const (
	StatePending   = "PENDING"
	StateRunning   = "RUNNING"
	StateCompleted = "COMPLETED"
	StateFailed    = "FAILED"
)

// RepoStatus is one repository's final state in a run.
type RepoStatus struct {
	RepoID string
	State  string
	// Error is set when State is FAILED.
	Error string
}

// Stats is the end-of-run summary.
type Stats struct {
	// ReposProcessed counts repos that reached COMPLETED.
	ReposProcessed int
	// ReposSkipped counts repos skipped by resume.
	ReposSkipped int
	// ReposFailed counts repos that reached FAILED.
	ReposFailed int

	FilesByLanguage    map[string]int
	ChunksByCollection map[string]int
	ChunksByDomain     map[string]int

	// ChunksByService mirrors stored chunks for repos mapped to a service
	// collection.
	ChunksByService map[string]int
	// ChunksByConcern mirrors domain counts for domains mapped to a concern
	// collection.
	ChunksByConcern map[string]int

	StoredTotal int
	Dropped     int

	Repos []RepoStatus
	// Errors holds error descriptors in occurrence order.
	Errors []string
}

func newStats() *Stats {
	return &Stats{
		FilesByLanguage:    map[string]int{},
		ChunksByCollection: map[string]int{},
		ChunksByDomain:     map[string]int{},
		ChunksByService:    map[string]int{},
		ChunksByConcern:    map[string]int{},
	}
}

// Pipeline orchestrates a full ingestion run: scan, parse, embed, store,
// checkpoint. Repos run sequentially; parallelism lives inside the batch
// processor.
type Pipeline struct {
	cfg         *config.Config
	files       *FileProcessor
	batches     *BatchProcessor
	embedder    embed.Embedder
	manager     *store.Manager
	checkpoints *checkpoint.Store
	logger      *slog.Logger
}

// NewPipeline wires a pipeline from its parts.
func NewPipeline(cfg *config.Config, registry *chunk.Registry, embedder embed.Embedder, manager *store.Manager, checkpoints *checkpoint.Store, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}
	sc, err := scanner.New()
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		cfg:         cfg,
		files:       NewFileProcessor(cfg, registry, sc, logger),
		batches:     NewBatchProcessor(cfg, embedder, manager, logger),
		embedder:    embedder,
		manager:     manager,
		checkpoints: checkpoints,
		logger:      logger,
	}, nil
}

// Ingest runs the pipeline over the given repositories. With resume set, a
// previous checkpoint skips completed repos and already-processed files.
// Repo-level failures are recorded and the run continues; only setup
// failures and cancellation abort the run.
func (p *Pipeline) Ingest(ctx context.Context, repos []config.Repo, resume bool) (*Stats, error) {
	stats := newStats()

	if err := p.embedder.Warmup(ctx); err != nil {
		return stats, err
	}
	if err := p.manager.EnsureCollections(ctx); err != nil {
		return stats, err
	}

	rec, err := p.loadRecord(resume)
	if err != nil {
		return stats, err
	}

	for i := range repos {
		if ctx.Err() != nil {
			break
		}
		repo := &repos[i]

		if resume && rec.IsRepoCompleted(repo.ID) {
			stats.ReposSkipped++
			stats.Repos = append(stats.Repos, RepoStatus{RepoID: repo.ID, State: StateCompleted})
			p.logger.Info("skipping completed repo", slog.String("repo", repo.ID))
			continue
		}

		p.logger.Info("ingesting repo",
			slog.String("repo", repo.ID),
			slog.String("state", StateRunning))

		if err := p.ingestRepo(ctx, repo, rec, stats, resume); err != nil {
			if ctx.Err() != nil {
				// Interrupted; the checkpoint already reflects progress.
				stats.Repos = append(stats.Repos, RepoStatus{RepoID: repo.ID, State: StateFailed, Error: "interrupted"})
				p.summarize(stats)
				return stats, ctx.Err()
			}
			stats.ReposFailed++
			desc := fmt.Sprintf("repo %s failed: %v", repo.ID, err)
			stats.Errors = append(stats.Errors, desc)
			stats.Repos = append(stats.Repos, RepoStatus{RepoID: repo.ID, State: StateFailed, Error: err.Error()})
			rec.RecordError(desc)
			p.logger.Error("repo failed",
				slog.String("repo", repo.ID),
				slog.String("error", err.Error()))
			continue
		}

		// Completion marker and progress persist in one atomic save.
		rec.MarkRepoCompleted(repo.ID)
		rec.RepoID = ""
		rec.Language = ""
		rec.LastProcessedFile = ""
		if err := p.checkpoints.Save(rec); err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("checkpoint save failed: %v", err))
		}

		stats.ReposProcessed++
		stats.Repos = append(stats.Repos, RepoStatus{RepoID: repo.ID, State: StateCompleted})
	}

	if stats.ReposFailed == 0 && ctx.Err() == nil {
		if err := p.checkpoints.Clear(); err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("checkpoint clear failed: %v", err))
		}
	}

	p.summarize(stats)
	return stats, ctx.Err()
}

// loadRecord returns the resume record, or a fresh one.
func (p *Pipeline) loadRecord(resume bool) (*checkpoint.Record, error) {
	if resume {
		rec, err := p.checkpoints.Load()
		if err != nil {
			return nil, err
		}
		if rec != nil {
			p.logger.Info("resuming from checkpoint",
				slog.String("repo", rec.RepoID),
				slog.String("language", rec.Language),
				slog.Int("completed_repos", len(rec.CompletedRepos)))
			return rec, nil
		}
	}
	return &checkpoint.Record{}, nil
}

// ingestRepo runs every language group of one repository.
func (p *Pipeline) ingestRepo(ctx context.Context, repo *config.Repo, rec *checkpoint.Record, stats *Stats, resume bool) error {
	groups, err := p.files.CollectFiles(ctx, repo)
	if err != nil {
		return err
	}

	resumeLang := ""
	resumeFile := ""
	if resume && rec.RepoID == repo.ID {
		resumeLang = rec.Language
		resumeFile = rec.LastProcessedFile
	}

	for _, group := range groups {
		if resumeLang != "" {
			switch {
			case languageOrder(group.Language) < languageOrder(resumeLang):
				continue
			case group.Language == resumeLang:
				group.Files = filesAfter(group.Files, resumeFile)
				resumeLang = ""
				if len(group.Files) == 0 {
					continue
				}
			default:
				resumeLang = ""
			}
		}

		progress := func(lastFile string, files, chunks int) error {
			rec.RepoID = repo.ID
			rec.Language = group.Language
			rec.LastProcessedFile = lastFile
			return p.checkpoints.Save(rec)
		}

		results := p.files.Process(ctx, repo, group)
		bstats, berr := p.batches.StreamToStorage(ctx, group.Language, results, progress)
		p.merge(stats, repo, group.Language, bstats, rec)
		if berr != nil {
			return berr
		}
	}
	return nil
}

// merge folds one language group's stats into the run totals and the
// checkpoint record.
func (p *Pipeline) merge(stats *Stats, repo *config.Repo, language string, b *BatchStats, rec *checkpoint.Record) {
	stats.FilesByLanguage[language] += b.Files
	stats.StoredTotal += b.StoredTotal
	stats.Dropped += b.Dropped
	for collection, n := range b.Stored {
		stats.ChunksByCollection[collection] += n
	}
	for domain, n := range b.Domains {
		stats.ChunksByDomain[domain] += n
		if concern, ok := p.cfg.Collections.ForConcern(domain); ok {
			stats.ChunksByConcern[concern] += n
		}
	}
	if svc, ok := p.cfg.Collections.ForService(repo.ID); ok {
		stats.ChunksByService[svc] += b.StoredTotal
	}
	stats.Errors = append(stats.Errors, b.Errors...)

	rec.FilesProcessed += b.Files
	rec.ChunksProcessed += b.StoredTotal
	for _, desc := range b.Errors {
		rec.RecordError(desc)
	}
}

// summarize emits the structured end-of-run report.
func (p *Pipeline) summarize(stats *Stats) {
	p.logger.Info("ingestion finished",
		slog.Int("repos_completed", stats.ReposProcessed),
		slog.Int("repos_skipped", stats.ReposSkipped),
		slog.Int("repos_failed", stats.ReposFailed),
		slog.Int("chunks_stored", stats.StoredTotal),
		slog.Int("chunks_dropped", stats.Dropped),
		slog.Int("errors", len(stats.Errors)))
	for collection, n := range stats.ChunksByCollection {
		p.logger.Info("collection summary",
			slog.String("collection", collection),
			slog.Int("chunks", n))
	}
	for _, desc := range stats.Errors {
		p.logger.Warn("run error", slog.String("error", desc))
	}
}

// languageOrder returns the processing rank of a language tag.
func languageOrder(lang string) int {
	for i, l := range config.SupportedLanguages() {
		if l == lang {
			return i
		}
	}
	return len(config.SupportedLanguages())
}

// filesAfter drops files sorting at or before the marker path.
func filesAfter(files []*scanner.FileInfo, marker string) []*scanner.FileInfo {
	if marker == "" {
		return files
	}
	var out []*scanner.FileInfo
	for _, f := range files {
		if f.Path > marker {
			out = append(out, f)
		}
	}
	return out
}

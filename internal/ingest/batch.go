package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/codevec/internal/chunk"
	"github.com/Aman-CERP/codevec/internal/config"
	"github.com/Aman-CERP/codevec/internal/embed"
	"github.com/Aman-CERP/codevec/internal/store"
)

// ProgressFunc is called after a window of files has been durably stored.
// It receives the last file in the window and cumulative counters, and is
// never called concurrently.
type ProgressFunc func(lastFile string, files, chunks int) error

// BatchStats accumulates one language group's ingestion outcome.
type BatchStats struct {
	// Files counts files consumed, including failed parses.
	Files int
	// FailedFiles counts files that contributed no chunks.
	FailedFiles int
	// Chunks counts chunks parsed out of successful files.
	Chunks int
	// StoredTotal counts chunks that reached the vector store.
	StoredTotal int
	// Stored counts stored chunks per collection.
	Stored map[string]int
	// Domains counts chunks that passed point validation, per business domain.
	Domains map[string]int
	// Dropped counts chunks rejected by point validation.
	Dropped int
	// Errors holds error descriptors in occurrence order.
	Errors []string
}

func newBatchStats() *BatchStats {
	return &BatchStats{Stored: map[string]int{}, Domains: map[string]int{}}
}

// BatchProcessor embeds parsed chunks in batches and hands them to storage.
type BatchProcessor struct {
	cfg      *config.Config
	embedder embed.Embedder
	manager  *store.Manager
	logger   *slog.Logger
}

// NewBatchProcessor wires a processor from its parts.
func NewBatchProcessor(cfg *config.Config, embedder embed.Embedder, manager *store.Manager, logger *slog.Logger) *BatchProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchProcessor{cfg: cfg, embedder: embedder, manager: manager, logger: logger}
}

// StreamToStorage drains one language group's file results, embedding and
// storing chunks in batches. Files accumulate into checkpoint windows: every
// N files (per-language frequency; zero means one batch per window) the
// window is flushed through a bounded worker pool and the progress callback
// fires once the window is durable. A batch whose embedding fails stores
// nothing; its error is recorded and the run continues. Cancellation stops
// new batches; in-flight batches finish on their own deadlines.
func (b *BatchProcessor) StreamToStorage(ctx context.Context, language string, results <-chan *FileResult, progress ProgressFunc) (*BatchStats, error) {
	stats := newBatchStats()
	every := b.cfg.CheckpointEvery(language)

	var window []*chunk.Chunk
	var windowFiles int
	var lastFile string

	flush := func() error {
		if windowFiles == 0 && len(window) == 0 {
			return ctx.Err()
		}
		if len(window) > 0 {
			b.flushWindow(ctx, window, stats)
			window = window[:0]
		}
		windowFiles = 0
		// A canceled context means the window's batches were skipped or
		// aborted, so the checkpoint must not advance past the last
		// durable window.
		if err := ctx.Err(); err != nil {
			return err
		}
		if progress != nil && lastFile != "" {
			if err := progress(lastFile, stats.Files, stats.Chunks); err != nil {
				desc := fmt.Sprintf("checkpoint save failed after %s: %v", lastFile, err)
				stats.Errors = append(stats.Errors, desc)
				b.logger.Warn("checkpoint save failed", slog.String("error", err.Error()))
			}
		}
		return ctx.Err()
	}

consume:
	for {
		select {
		case <-ctx.Done():
			break consume
		case res, ok := <-results:
			if !ok {
				break consume
			}
			stats.Files++
			lastFile = res.File.Path
			windowFiles++

			if res.Err != "" {
				stats.FailedFiles++
				stats.Errors = append(stats.Errors,
					fmt.Sprintf("parse failed: %s: %s", res.File.Path, res.Err))
			} else {
				window = append(window, res.Chunks...)
				stats.Chunks += len(res.Chunks)
			}

			due := (every > 0 && windowFiles >= every) ||
				(every <= 0 && len(window) >= b.cfg.Embedding.BatchSize)
			if due {
				if err := flush(); err != nil {
					return stats, err
				}
			}
		}
	}

	if err := flush(); err != nil {
		return stats, err
	}
	return stats, ctx.Err()
}

// flushWindow splits a window into embedding-sized batches and runs them
// through a worker pool bounded by the embedding rate limit. Batch failures
// are recorded in stats, never returned.
func (b *BatchProcessor) flushWindow(ctx context.Context, window []*chunk.Chunk, stats *BatchStats) {
	var mu sync.Mutex
	g := errgroup.Group{}
	g.SetLimit(b.cfg.Embedding.RateLimit)

	size := b.cfg.Embedding.BatchSize
	for start := 0; start < len(window); start += size {
		if ctx.Err() != nil {
			break
		}
		end := min(start+size, len(window))
		batch := window[start:end]

		g.Go(func() error {
			b.runBatch(ctx, batch, stats, &mu)
			return nil
		})
	}
	_ = g.Wait()
}

// runBatch embeds one batch and stores it. Chunk text is already truncated
// request-side by the embedder; the stored chunk keeps its full content.
func (b *BatchProcessor) runBatch(ctx context.Context, batch []*chunk.Chunk, stats *BatchStats, mu *sync.Mutex) {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Content
	}

	vectors, err := b.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		mu.Lock()
		stats.Errors = append(stats.Errors,
			fmt.Sprintf("embedding failed for batch of %d (%s): %v", len(batch), batch[0].FilePath, err))
		mu.Unlock()
		return
	}

	result, err := b.manager.StoreBatch(ctx, batch, vectors)
	if err != nil {
		mu.Lock()
		stats.Errors = append(stats.Errors,
			fmt.Sprintf("storage failed for batch of %d (%s): %v", len(batch), batch[0].FilePath, err))
		mu.Unlock()
		return
	}

	mu.Lock()
	defer mu.Unlock()
	for collection, n := range result.Stored {
		stats.Stored[collection] += n
		stats.StoredTotal += n
	}
	stats.Dropped += result.Dropped
	for _, e := range result.Errors {
		stats.Errors = append(stats.Errors, e.Error())
	}
	dropped := map[int]struct{}{}
	for _, i := range result.DroppedIndexes {
		dropped[i] = struct{}{}
	}
	for i, c := range batch {
		if _, skip := dropped[i]; skip {
			continue
		}
		domain := c.BusinessDomain
		if domain == "" {
			domain = "unknown"
		}
		stats.Domains[domain]++
	}
}

package store

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/Aman-CERP/codevec/internal/chunk"
	"github.com/Aman-CERP/codevec/internal/config"
	ingerr "github.com/Aman-CERP/codevec/internal/errors"
)

const (
	// upsertBatchSize is the per-request point cap for upserts.
	upsertBatchSize = 100

	// previewChars is the length of the content preview in payloads.
	previewChars = 200
)

// Manager turns embedded chunks into points and routes them to collections.
type Manager struct {
	backend Backend
	cfg     *config.Config
	logger  *slog.Logger
}

// NewManager builds a Manager over a connected backend.
func NewManager(backend Backend, cfg *config.Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{backend: backend, cfg: cfg, logger: logger}
}

// Backend exposes the underlying backend for status and search commands.
func (m *Manager) Backend() Backend {
	return m.backend
}

// EnsureCollections creates every collection the config can route to.
func (m *Manager) EnsureCollections(ctx context.Context) error {
	for _, name := range m.cfg.Collections.AllCollections() {
		if err := m.backend.EnsureCollection(ctx, name, m.cfg.Embedding.Dimension); err != nil {
			return err
		}
	}
	return nil
}

// PointID derives a deterministic UUID from a chunk hash. The hash bytes
// are themselves hashed and the version/variant bits forced, so the result
// is a stable, valid UUID for any input.
func PointID(chunkHash string) string {
	h := sha256.Sum256([]byte(chunkHash))
	h[6] = (h[6] & 0x0f) | 0x50
	h[8] = (h[8] & 0x3f) | 0x80
	id, err := uuid.FromBytes(h[:16])
	if err != nil {
		// 16 bytes always form a UUID; this branch is unreachable.
		panic(err)
	}
	return id.String()
}

// StoreResult reports one batch's storage outcome.
type StoreResult struct {
	// Stored counts upserted points per collection.
	Stored map[string]int
	// Dropped counts points rejected by vector validation.
	Dropped int
	// DroppedIndexes are the batch positions of rejected points.
	DroppedIndexes []int
	// Errors carries validation and upsert failures, in occurrence order.
	Errors []error
}

// StoreBatch pairs chunks with their vectors positionally, validates,
// groups by target collection, and upserts. Invalid vectors drop their
// point and record an error; the rest of the batch proceeds.
func (m *Manager) StoreBatch(ctx context.Context, chunks []*chunk.Chunk, vectors [][]float32) (*StoreResult, error) {
	if len(chunks) != len(vectors) {
		return nil, ingerr.New(ingerr.ErrCodeLengthMismatch,
			fmt.Sprintf("%d chunks paired with %d vectors", len(chunks), len(vectors)), nil)
	}

	result := &StoreResult{Stored: map[string]int{}}
	grouped := map[string][]*Point{}

	for i, c := range chunks {
		if err := m.validateVector(vectors[i]); err != nil {
			result.Dropped++
			result.DroppedIndexes = append(result.DroppedIndexes, i)
			result.Errors = append(result.Errors, ingerr.New(ingerr.ErrCodeInvalidVector,
				fmt.Sprintf("dropping %s %s from %s", c.ItemType, c.ItemName, c.FilePath), err))
			continue
		}

		collection, ok := m.collectionFor(c)
		if !ok {
			result.Dropped++
			result.DroppedIndexes = append(result.DroppedIndexes, i)
			result.Errors = append(result.Errors, ingerr.New(ingerr.ErrCodeUnknownLanguage,
				fmt.Sprintf("no collection for language %q", c.Language), nil))
			continue
		}

		grouped[collection] = append(grouped[collection], &Point{
			ID:      PointID(c.Hash()),
			Vector:  vectors[i],
			Payload: m.payload(c),
		})
	}

	for collection, points := range grouped {
		stored, err := m.upsertWithRetry(ctx, collection, points)
		result.Stored[collection] += stored
		if err != nil {
			result.Errors = append(result.Errors, err)
		}
	}
	return result, nil
}

// collectionFor routes a chunk to its collection. Chunks marked
// cross-language go to the default collection when one is configured.
func (m *Manager) collectionFor(c *chunk.Chunk) (string, bool) {
	if c.Metadata["cross_language"] == "true" && m.cfg.Collections.DefaultCollection != "" {
		return m.cfg.Collections.FullName(m.cfg.Collections.DefaultCollection), true
	}
	return m.cfg.Collections.ForLanguage(c.Language)
}

// upsertWithRetry writes points in sub-batches, retrying each sub-batch
// once before giving up on it.
func (m *Manager) upsertWithRetry(ctx context.Context, collection string, points []*Point) (int, error) {
	stored := 0
	for start := 0; start < len(points); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(points))
		batch := points[start:end]

		err := m.backend.Upsert(ctx, collection, batch)
		if err != nil && ctx.Err() == nil {
			m.logger.Warn("upsert failed, retrying once",
				slog.String("collection", collection),
				slog.Int("points", len(batch)),
				slog.String("error", err.Error()))
			err = m.backend.Upsert(ctx, collection, batch)
		}
		if err != nil {
			return stored, err
		}
		stored += len(batch)
	}
	return stored, nil
}

// validateVector checks dimension and rejects NaN and infinities.
func (m *Manager) validateVector(vec []float32) error {
	if len(vec) != m.cfg.Embedding.Dimension {
		return ingerr.New(ingerr.ErrCodeDimensionMismatch,
			fmt.Sprintf("vector has %d dimensions, expected %d", len(vec), m.cfg.Embedding.Dimension), nil)
	}
	for i, v := range vec {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return ingerr.New(ingerr.ErrCodeInvalidVector,
				fmt.Sprintf("vector component %d is not finite", i), nil)
		}
	}
	return nil
}

// payload flattens a chunk into the stored payload map.
func (m *Manager) payload(c *chunk.Chunk) map[string]any {
	preview := c.Content
	if len(preview) > previewChars {
		preview = preview[:previewChars]
	}

	p := map[string]any{
		"content":              c.Content,
		"content_preview":      preview,
		"language":             c.Language,
		"item_type":            c.ItemType,
		"item_name":            c.ItemName,
		"file_path":            c.FilePath,
		"start_line":           int64(c.StartLine),
		"end_line":             int64(c.EndLine),
		"repo_id":              c.RepoID,
		"repo_component":       c.RepoComponent,
		"business_domain":      c.BusinessDomain,
		"complexity_score":     c.ComplexityScore,
		"chunk_hash":           c.Hash(),
		"embedding_model":      m.cfg.Embedding.Model,
		"embedding_dimensions": int64(m.cfg.Embedding.Dimension),
		"indexed_at":           time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range c.Metadata {
		p["meta_"+k] = v
	}
	return p
}

package ingest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/codevec/internal/chunk"
	"github.com/Aman-CERP/codevec/internal/config"
	"github.com/Aman-CERP/codevec/internal/scanner"
	"github.com/Aman-CERP/codevec/internal/store"
)

// stubEmbedder returns unit vectors and fails on texts containing "FAIL".
type stubEmbedder struct {
	mu      sync.Mutex
	batches [][]string
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (s *stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	s.mu.Lock()
	s.batches = append(s.batches, append([]string(nil), texts...))
	s.mu.Unlock()

	for _, t := range texts {
		if strings.Contains(t, "FAIL") {
			return nil, errors.New("embedding service unavailable")
		}
	}
	vecs := make([][]float32, len(texts))
	for i := range texts {
		vecs[i] = []float32{1, 0, 0}
	}
	return vecs, nil
}

func (s *stubEmbedder) Warmup(context.Context) error { return nil }
func (s *stubEmbedder) Dimensions() int              { return 3 }
func (s *stubEmbedder) ModelName() string            { return "stub" }
func (s *stubEmbedder) Close() error                 { return nil }

func (s *stubEmbedder) batchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

// recordingBackend counts upserted points per collection.
type recordingBackend struct {
	mu     sync.Mutex
	points map[string]int
}

func newRecordingBackend() *recordingBackend {
	return &recordingBackend{points: map[string]int{}}
}

func (r *recordingBackend) EnsureCollection(context.Context, string, int) error { return nil }

func (r *recordingBackend) Upsert(_ context.Context, collection string, points []*store.Point) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.points[collection] += len(points)
	return nil
}

func (r *recordingBackend) Search(context.Context, string, []float32, uint64, float32, store.Filter) ([]store.SearchHit, error) {
	return nil, nil
}

func (r *recordingBackend) CollectionStats(_ context.Context, name string) (*store.CollectionStats, error) {
	return &store.CollectionStats{Name: name}, nil
}

func (r *recordingBackend) ListCollections(context.Context) ([]string, error) { return nil, nil }
func (r *recordingBackend) Close() error                                      { return nil }

func (r *recordingBackend) count(collection string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.points[collection]
}

func batchTestConfig() *config.Config {
	cfg := config.Default()
	cfg.Embedding.Dimension = 3
	cfg.Embedding.Model = "stub"
	cfg.Embedding.BatchSize = 2
	cfg.Embedding.RateLimit = 2
	return cfg
}

func rustResult(path string, names ...string) *FileResult {
	res := &FileResult{File: &scanner.FileInfo{Path: path, Language: config.LangRust}}
	for _, name := range names {
		res.Chunks = append(res.Chunks, &chunk.Chunk{
			Content:        "fn " + name + "() {}",
			Language:       config.LangRust,
			ItemType:       chunk.ItemFunction,
			ItemName:       name,
			FilePath:       path,
			StartLine:      1,
			EndLine:        1,
			RepoID:         "core",
			BusinessDomain: "auth",
		})
	}
	return res
}

func feed(results ...*FileResult) <-chan *FileResult {
	ch := make(chan *FileResult, len(results))
	for _, r := range results {
		ch <- r
	}
	close(ch)
	return ch
}

func TestStreamToStorageStoresAllChunks(t *testing.T) {
	cfg := batchTestConfig()
	backend := newRecordingBackend()
	embedder := &stubEmbedder{}
	bp := NewBatchProcessor(cfg, embedder, store.NewManager(backend, cfg, nil), nil)

	stats, err := bp.StreamToStorage(context.Background(), config.LangRust,
		feed(
			rustResult("src/a.rs", "one", "two", "three"),
			rustResult("src/b.rs", "four", "five"),
		), nil)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Files)
	assert.Equal(t, 5, stats.Chunks)
	assert.Equal(t, 5, stats.StoredTotal)
	assert.Equal(t, 5, stats.Stored["rust"])
	assert.Equal(t, 5, stats.Domains["auth"])
	assert.Empty(t, stats.Errors)
	assert.Equal(t, 5, backend.count("rust"))

	// BatchSize 2 splits 5 chunks into 3 embedding calls.
	assert.Equal(t, 3, embedder.batchCount())
}

func TestStreamToStorageWholeBatchFails(t *testing.T) {
	cfg := batchTestConfig()
	backend := newRecordingBackend()
	bp := NewBatchProcessor(cfg, &stubEmbedder{}, store.NewManager(backend, cfg, nil), nil)

	// BatchSize 2: first batch is [good1, FAIL], second is [good2].
	stats, err := bp.StreamToStorage(context.Background(), config.LangRust,
		feed(rustResult("src/a.rs", "good1", "FAIL", "good2")), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.StoredTotal)
	assert.Equal(t, 1, backend.count("rust"))
	require.Len(t, stats.Errors, 1)
	assert.Contains(t, stats.Errors[0], "embedding failed")
}

func TestStreamToStorageRecordsParseFailures(t *testing.T) {
	cfg := batchTestConfig()
	backend := newRecordingBackend()
	bp := NewBatchProcessor(cfg, &stubEmbedder{}, store.NewManager(backend, cfg, nil), nil)

	failed := &FileResult{
		File: &scanner.FileInfo{Path: "src/bad.rs", Language: config.LangRust},
		Err:  "unbalanced braces",
	}
	stats, err := bp.StreamToStorage(context.Background(), config.LangRust,
		feed(failed, rustResult("src/ok.rs", "fine")), nil)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Files)
	assert.Equal(t, 1, stats.FailedFiles)
	assert.Equal(t, 1, stats.StoredTotal)
	require.NotEmpty(t, stats.Errors)
	assert.Contains(t, stats.Errors[0], "src/bad.rs")
}

func TestStreamToStorageCheckpointEveryNFiles(t *testing.T) {
	cfg := batchTestConfig()
	cfg.Ingestion.CheckpointFrequency = map[string]int{config.LangRust: 2}
	backend := newRecordingBackend()
	bp := NewBatchProcessor(cfg, &stubEmbedder{}, store.NewManager(backend, cfg, nil), nil)

	var calls []string
	progress := func(lastFile string, files, chunks int) error {
		calls = append(calls, lastFile)
		return nil
	}

	_, err := bp.StreamToStorage(context.Background(), config.LangRust,
		feed(
			rustResult("src/a.rs", "a"),
			rustResult("src/b.rs", "b"),
			rustResult("src/c.rs", "c"),
		), progress)
	require.NoError(t, err)

	// One save after the 2-file window, one for the trailing file.
	assert.Equal(t, []string{"src/b.rs", "src/c.rs"}, calls)
}

func TestStreamToStorageCheckpointEveryBatch(t *testing.T) {
	cfg := batchTestConfig()
	cfg.Ingestion.CheckpointFrequency = map[string]int{config.LangYAML: 0}
	backend := newRecordingBackend()
	bp := NewBatchProcessor(cfg, &stubEmbedder{}, store.NewManager(backend, cfg, nil), nil)

	yamlResult := &FileResult{File: &scanner.FileInfo{Path: "deploy/app.yaml", Language: config.LangYAML}}
	for _, name := range []string{"spec", "metadata"} {
		yamlResult.Chunks = append(yamlResult.Chunks, &chunk.Chunk{
			Content:  name + ":",
			Language: config.LangYAML,
			ItemType: chunk.ItemConfigBlock,
			ItemName: name,
			FilePath: "deploy/app.yaml",
		})
	}

	calls := 0
	_, err := bp.StreamToStorage(context.Background(), config.LangYAML,
		feed(yamlResult), func(string, int, int) error { calls++; return nil })
	require.NoError(t, err)

	// BatchSize 2 chunks fill one window immediately; no trailing window.
	assert.Equal(t, 1, calls)
}

func TestStreamToStorageProgressErrorRecorded(t *testing.T) {
	cfg := batchTestConfig()
	backend := newRecordingBackend()
	bp := NewBatchProcessor(cfg, &stubEmbedder{}, store.NewManager(backend, cfg, nil), nil)

	stats, err := bp.StreamToStorage(context.Background(), config.LangRust,
		feed(rustResult("src/a.rs", "a")),
		func(string, int, int) error { return errors.New("disk full") })
	require.NoError(t, err)

	assert.Equal(t, 1, stats.StoredTotal)
	require.Len(t, stats.Errors, 1)
	assert.Contains(t, stats.Errors[0], "checkpoint save failed")
}

// cancelingEmbedder cancels the run from inside the embedding call, the way
// a SIGINT lands while a window is in flight.
type cancelingEmbedder struct {
	stubEmbedder
	cancel context.CancelFunc
}

func (c *cancelingEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	c.cancel()
	return nil, context.Canceled
}

func (c *cancelingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	_, err := c.EmbedBatch(ctx, []string{text})
	return nil, err
}

func TestStreamToStorageNoCheckpointAfterCancel(t *testing.T) {
	cfg := batchTestConfig()
	cfg.Ingestion.CheckpointFrequency = map[string]int{config.LangRust: 1}
	backend := newRecordingBackend()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	embedder := &cancelingEmbedder{cancel: cancel}
	bp := NewBatchProcessor(cfg, embedder, store.NewManager(backend, cfg, nil), nil)

	var saved []string
	progress := func(lastFile string, files, chunks int) error {
		saved = append(saved, lastFile)
		return nil
	}

	stats, err := bp.StreamToStorage(ctx, config.LangRust,
		feed(rustResult("src/a.rs", "a")), progress)
	require.ErrorIs(t, err, context.Canceled)

	// Nothing was stored, so the checkpoint must not advance past the
	// aborted window.
	assert.Empty(t, saved)
	assert.Zero(t, backend.count("rust"))
	require.NotEmpty(t, stats.Errors)
	assert.Contains(t, stats.Errors[0], "embedding failed")
}

func TestStreamToStorageCancellation(t *testing.T) {
	cfg := batchTestConfig()
	backend := newRecordingBackend()
	bp := NewBatchProcessor(cfg, &stubEmbedder{}, store.NewManager(backend, cfg, nil), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := make(chan *FileResult)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := bp.StreamToStorage(ctx, config.LangRust, results, nil)
		assert.ErrorIs(t, err, context.Canceled)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("StreamToStorage did not return after cancellation")
	}
	assert.Zero(t, backend.count("rust"))
}

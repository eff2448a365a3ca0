package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/codevec/internal/checkpoint"
	"github.com/Aman-CERP/codevec/internal/chunk"
	"github.com/Aman-CERP/codevec/internal/config"
	"github.com/Aman-CERP/codevec/internal/store"
)

const authRust = `pub fn issue_token() -> u32 {
    1
}

pub fn revoke_token() {
}
`

type pipelineFixture struct {
	cfg         *config.Config
	pipeline    *Pipeline
	embedder    *stubEmbedder
	backend     *recordingBackend
	checkpoints *checkpoint.Store
	repoDir     string
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()

	base := t.TempDir()
	repoDir := filepath.Join(base, "myrepo")
	require.NoError(t, os.MkdirAll(filepath.Join(repoDir, "src"), 0o755))

	cfg := batchTestConfig()
	cfg.ReposBaseDir = base

	ckpt, err := checkpoint.NewStore(filepath.Join(t.TempDir(), "checkpoint.json"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ckpt.Close() })

	embedder := &stubEmbedder{}
	backend := newRecordingBackend()
	manager := store.NewManager(backend, cfg, nil)

	p, err := NewPipeline(cfg, chunk.DefaultRegistry(), embedder, manager, ckpt, nil)
	require.NoError(t, err)

	return &pipelineFixture{
		cfg:         cfg,
		pipeline:    p,
		embedder:    embedder,
		backend:     backend,
		checkpoints: ckpt,
		repoDir:     repoDir,
	}
}

func (f *pipelineFixture) writeRepoFile(t *testing.T, rel, content string) {
	t.Helper()
	path := filepath.Join(f.repoDir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func myrepo() []config.Repo {
	return []config.Repo{{ID: "myrepo", GithubURL: "https://github.com/acme/myrepo"}}
}

func TestPipelineFullRun(t *testing.T) {
	f := newPipelineFixture(t)
	f.writeRepoFile(t, "src/auth.rs", authRust)
	f.cfg.Collections.ServiceCollections = map[string]string{"myrepo": "auth_service"}

	stats, err := f.pipeline.Ingest(context.Background(), myrepo(), false)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.ReposProcessed)
	assert.Zero(t, stats.ReposFailed)
	assert.Equal(t, 1, stats.FilesByLanguage[config.LangRust])
	assert.Equal(t, 2, stats.StoredTotal)
	assert.Equal(t, 2, stats.ChunksByCollection["rust"])
	assert.Equal(t, 2, stats.ChunksByDomain["auth"])
	assert.Equal(t, 2, stats.ChunksByConcern["security"])
	assert.Equal(t, 2, stats.ChunksByService["auth_service"])
	assert.Empty(t, stats.Errors)
	assert.Equal(t, 2, f.backend.count("rust"))

	require.Len(t, stats.Repos, 1)
	assert.Equal(t, StateCompleted, stats.Repos[0].State)

	// Clean completion clears the checkpoint.
	rec, err := f.checkpoints.Load()
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestPipelineResumeSkipsCompletedRepo(t *testing.T) {
	f := newPipelineFixture(t)
	f.writeRepoFile(t, "src/auth.rs", authRust)

	rec := &checkpoint.Record{}
	rec.MarkRepoCompleted("myrepo")
	require.NoError(t, f.checkpoints.Save(rec))

	stats, err := f.pipeline.Ingest(context.Background(), myrepo(), true)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.ReposSkipped)
	assert.Zero(t, stats.ReposProcessed)
	assert.Zero(t, stats.StoredTotal)
	assert.Zero(t, f.embedder.batchCount())
}

func TestPipelineResumeSkipsProcessedFiles(t *testing.T) {
	f := newPipelineFixture(t)
	f.writeRepoFile(t, "src/a_token.rs", authRust)
	f.writeRepoFile(t, "src/b_token.rs", authRust)

	require.NoError(t, f.checkpoints.Save(&checkpoint.Record{
		RepoID:            "myrepo",
		Language:          config.LangRust,
		LastProcessedFile: "src/a_token.rs",
	}))

	stats, err := f.pipeline.Ingest(context.Background(), myrepo(), true)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.FilesByLanguage[config.LangRust])
	assert.Equal(t, 2, stats.StoredTotal)
	assert.Equal(t, 1, stats.ReposProcessed)
}

func TestPipelineRepoFailureContinues(t *testing.T) {
	f := newPipelineFixture(t)
	f.writeRepoFile(t, "src/auth.rs", authRust)

	repos := []config.Repo{
		{ID: "missing", GithubURL: "https://github.com/acme/missing"},
		{ID: "myrepo", GithubURL: "https://github.com/acme/myrepo"},
	}

	stats, err := f.pipeline.Ingest(context.Background(), repos, false)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.ReposFailed)
	assert.Equal(t, 1, stats.ReposProcessed)
	require.Len(t, stats.Repos, 2)
	assert.Equal(t, StateFailed, stats.Repos[0].State)
	assert.Equal(t, StateCompleted, stats.Repos[1].State)
	require.NotEmpty(t, stats.Errors)

	// A failed repo keeps the checkpoint so a resumed run can retry it.
	rec, cerr := f.checkpoints.Load()
	require.NoError(t, cerr)
	require.NotNil(t, rec)
	assert.True(t, rec.IsRepoCompleted("myrepo"))
	assert.False(t, rec.IsRepoCompleted("missing"))
}

func TestPipelineCancellation(t *testing.T) {
	f := newPipelineFixture(t)
	f.writeRepoFile(t, "src/auth.rs", authRust)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.pipeline.Ingest(ctx, myrepo(), false)
	assert.ErrorIs(t, err, context.Canceled)
}

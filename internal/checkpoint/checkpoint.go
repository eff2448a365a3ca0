// Package checkpoint persists ingestion progress so an interrupted run can
// resume without re-embedding work that already reached the vector store.
// Exactly one checkpoint file exists at a time; saves are atomic
// (write-to-temp, fsync, rename) and serialized through a single writer.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	ingerr "github.com/Aman-CERP/codevec/internal/errors"
)

// maxRecordedErrors bounds the error tail kept in the checkpoint for the
// status report.
const maxRecordedErrors = 5

// Record is the durable progress snapshot.
type Record struct {
	RepoID            string    `json:"repo_id"`
	Language          string    `json:"language"`
	LastProcessedFile string    `json:"last_processed_file"`
	FilesProcessed    int       `json:"files_processed"`
	ChunksProcessed   int       `json:"chunks_processed"`
	CompletedRepos    []string  `json:"completed_repos,omitempty"`
	Errors            []string  `json:"errors,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

// RecordError appends an error description, keeping only the most recent
// few for reporting.
func (r *Record) RecordError(desc string) {
	r.Errors = append(r.Errors, desc)
	if len(r.Errors) > maxRecordedErrors {
		r.Errors = r.Errors[len(r.Errors)-maxRecordedErrors:]
	}
}

// MarkRepoCompleted adds the repo to the completed set, once.
func (r *Record) MarkRepoCompleted(repoID string) {
	for _, id := range r.CompletedRepos {
		if id == repoID {
			return
		}
	}
	r.CompletedRepos = append(r.CompletedRepos, repoID)
}

// IsRepoCompleted reports whether the repo finished in a previous run.
func (r *Record) IsRepoCompleted(repoID string) bool {
	for _, id := range r.CompletedRepos {
		if id == repoID {
			return true
		}
	}
	return false
}

// Info is a lightweight summary for status reporting.
type Info struct {
	Exists          bool
	RepoID          string
	Language        string
	FilesProcessed  int
	ChunksProcessed int
	CompletedRepos  int
	Timestamp       time.Time
	RecentErrors    []string
}

// Store reads and writes the checkpoint file. A process-wide file lock
// guards against two concurrent ingest processes sharing one checkpoint.
type Store struct {
	path string

	mu   sync.Mutex
	lock *flock.Flock
}

// NewStore creates a Store for the given checkpoint path and acquires the
// advisory lock. The lock is held until Close.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, ingerr.New(ingerr.ErrCodeCheckpointIO,
			fmt.Sprintf("cannot create checkpoint directory %s", dir), err)
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, ingerr.New(ingerr.ErrCodeCheckpointIO, "cannot acquire checkpoint lock", err)
	}
	if !locked {
		return nil, ingerr.New(ingerr.ErrCodeCheckpointIO,
			"checkpoint is locked by another ingest process", nil).
			WithSuggestion("wait for the other run to finish or remove the stale .lock file")
	}

	return &Store{path: path, lock: lock}, nil
}

// Load returns the last persisted record, or nil when no checkpoint exists.
// A corrupt checkpoint is treated as absent so a fresh run can proceed.
func (s *Store) Load() (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, ingerr.New(ingerr.ErrCodeCheckpointIO, "cannot read checkpoint", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, nil
	}
	return &rec, nil
}

// Save writes the record atomically: temp file in the same directory, fsync,
// rename over the target.
func (s *Store) Save(rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.Timestamp = time.Now().UTC()

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return ingerr.New(ingerr.ErrCodeCheckpointIO, "cannot encode checkpoint", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return ingerr.New(ingerr.ErrCodeCheckpointIO, "cannot create checkpoint temp file", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return ingerr.New(ingerr.ErrCodeCheckpointIO, "cannot write checkpoint", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return ingerr.New(ingerr.ErrCodeCheckpointIO, "cannot sync checkpoint", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return ingerr.New(ingerr.ErrCodeCheckpointIO, "cannot close checkpoint temp file", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return ingerr.New(ingerr.ErrCodeCheckpointIO, "cannot replace checkpoint", err)
	}
	return nil
}

// Clear removes the checkpoint file. Missing file is not an error.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return ingerr.New(ingerr.ErrCodeCheckpointIO, "cannot remove checkpoint", err)
	}
	return nil
}

// Info returns a lightweight summary without exposing the full record.
func (s *Store) Info() (*Info, error) {
	rec, err := s.Load()
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return &Info{Exists: false}, nil
	}
	return &Info{
		Exists:          true,
		RepoID:          rec.RepoID,
		Language:        rec.Language,
		FilesProcessed:  rec.FilesProcessed,
		ChunksProcessed: rec.ChunksProcessed,
		CompletedRepos:  len(rec.CompletedRepos),
		Timestamp:       rec.Timestamp,
		RecentErrors:    rec.Errors,
	}, nil
}

// Close releases the advisory lock.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lock != nil {
		if err := s.lock.Unlock(); err != nil {
			return err
		}
		_ = os.Remove(s.lock.Path())
		s.lock = nil
	}
	return nil
}

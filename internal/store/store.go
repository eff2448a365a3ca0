// Package store persists embedded chunks into a vector backend. Two
// backends are supported: managed Qdrant and local SurrealDB, selected by
// configuration. The Manager sits above the backend and owns point
// construction, validation, and collection routing.
package store

import (
	"context"
	"fmt"

	"github.com/Aman-CERP/codevec/internal/config"
	ingerr "github.com/Aman-CERP/codevec/internal/errors"
)

// Point is one vector plus its payload, ready for upsert.
type Point struct {
	// ID is a deterministic UUID derived from the chunk hash.
	ID string
	// Vector is the embedding, validated against the configured dimension.
	Vector []float32
	// Payload carries the chunk's searchable metadata.
	Payload map[string]any
}

// SearchHit is one result of a similarity search.
type SearchHit struct {
	ID      string
	Score   float32
	Payload map[string]any
}

// CollectionStats summarizes one collection.
type CollectionStats struct {
	Name   string
	Points uint64
}

// Filter restricts a search to exact payload matches. Nil or empty means
// unfiltered.
type Filter map[string]string

// Backend is the storage abstraction both implementations satisfy.
type Backend interface {
	// EnsureCollection creates the collection if absent and verifies the
	// dimension when it already exists. Cosine distance throughout.
	EnsureCollection(ctx context.Context, name string, dimension int) error

	// Upsert writes points, replacing any with the same id.
	Upsert(ctx context.Context, collection string, points []*Point) error

	// Search returns the topK nearest points above the score threshold.
	Search(ctx context.Context, collection string, vector []float32, topK uint64, threshold float32, filter Filter) ([]SearchHit, error)

	// CollectionStats returns point counts for one collection.
	CollectionStats(ctx context.Context, name string) (*CollectionStats, error)

	// ListCollections returns the backend's collection names.
	ListCollections(ctx context.Context) ([]string, error)

	// Close releases the backend connection.
	Close() error
}

// New selects and connects the backend named by the config.
func New(ctx context.Context, cfg *config.Config) (Backend, error) {
	switch cfg.Backend.Kind {
	case config.BackendManaged:
		return NewQdrantBackend(cfg.Backend)
	case config.BackendLocal:
		return NewSurrealBackend(ctx, cfg.Backend)
	default:
		return nil, ingerr.ConfigError(
			fmt.Sprintf("unknown vector backend %q", cfg.Backend.Kind), nil)
	}
}

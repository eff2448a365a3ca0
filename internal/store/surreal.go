package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	surrealdb "github.com/surrealdb/surrealdb.go"

	"github.com/Aman-CERP/codevec/internal/config"
	ingerr "github.com/Aman-CERP/codevec/internal/errors"
)

// metaTable tracks collection names and dimensions, since SurrealDB tables
// carry no vector schema of their own.
const metaTable = "collection_meta"

// SurrealBackend stores vectors in a local SurrealDB instance: one table
// per collection, cosine similarity computed in the query.
type SurrealBackend struct {
	db *surrealdb.DB
}

var _ Backend = (*SurrealBackend)(nil)

// NewSurrealBackend connects, signs in when credentials are configured, and
// selects the namespace and database.
func NewSurrealBackend(ctx context.Context, cfg config.BackendConfig) (*SurrealBackend, error) {
	db, err := surrealdb.FromEndpointURLString(ctx, cfg.SurrealURL)
	if err != nil {
		return nil, ingerr.New(ingerr.ErrCodeBackendUnready, "failed to connect to SurrealDB", err).
			WithDetail("url", cfg.SurrealURL)
	}

	if cfg.SurrealUser != "" {
		if _, err := db.SignIn(ctx, surrealdb.Auth{
			Username: cfg.SurrealUser,
			Password: cfg.SurrealPass,
		}); err != nil {
			_ = db.Close(ctx)
			return nil, ingerr.New(ingerr.ErrCodeAuthFailed, "SurrealDB sign-in failed", err)
		}
	}

	if err := db.Use(ctx, cfg.SurrealNS, cfg.SurrealDB); err != nil {
		_ = db.Close(ctx)
		return nil, ingerr.New(ingerr.ErrCodeBackendUnready, "failed to select SurrealDB namespace", err).
			WithDetail("namespace", cfg.SurrealNS).
			WithDetail("database", cfg.SurrealDB)
	}

	return &SurrealBackend{db: db}, nil
}

// collectionMeta is the stored shape of one collection's metadata.
type collectionMeta struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
}

// pointRecord is the stored shape of one point.
type pointRecord struct {
	Embedding []float32      `json:"embedding"`
	Payload   map[string]any `json:"payload"`
}

// searchRow is the projected shape of one search result.
type searchRow struct {
	ID      string         `json:"id"`
	Score   float32        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// countRow carries a count aggregate.
type countRow struct {
	Count uint64 `json:"count"`
}

// EnsureCollection implements Backend.
func (b *SurrealBackend) EnsureCollection(ctx context.Context, name string, dimension int) error {
	if err := validTableName(name); err != nil {
		return err
	}

	existing, err := surrealdb.Query[[]collectionMeta](ctx, b.db,
		"SELECT name, dimension FROM type::table($tb) WHERE name = $name",
		map[string]any{"tb": metaTable, "name": name})
	if err != nil {
		return ingerr.New(ingerr.ErrCodeCollectionFailed, "failed to read collection metadata", err).
			WithDetail("collection", name)
	}
	if existing != nil && len(*existing) > 0 && len((*existing)[0].Result) > 0 {
		got := (*existing)[0].Result[0].Dimension
		if got != dimension {
			return ingerr.New(ingerr.ErrCodeDimensionMismatch,
				fmt.Sprintf("collection %s has dimension %d, config expects %d", name, got, dimension), nil)
		}
		return nil
	}

	stmts := fmt.Sprintf(
		"DEFINE TABLE IF NOT EXISTS %s SCHEMALESS; UPSERT type::thing($meta, $name) CONTENT { name: $name, dimension: $dim };",
		name)
	if _, err := surrealdb.Query[any](ctx, b.db, stmts, map[string]any{
		"meta": metaTable,
		"name": name,
		"dim":  dimension,
	}); err != nil {
		return ingerr.New(ingerr.ErrCodeCollectionFailed, "failed to create collection", err).
			WithDetail("collection", name)
	}
	return nil
}

// Upsert implements Backend. Each point is written by id so re-ingesting a
// chunk replaces its previous record.
func (b *SurrealBackend) Upsert(ctx context.Context, collection string, points []*Point) error {
	if err := validTableName(collection); err != nil {
		return err
	}
	for _, p := range points {
		_, err := surrealdb.Query[any](ctx, b.db,
			"UPSERT type::thing($tb, $id) CONTENT $content",
			map[string]any{
				"tb": collection,
				"id": p.ID,
				"content": pointRecord{
					Embedding: p.Vector,
					Payload:   p.Payload,
				},
			})
		if err != nil {
			return ingerr.New(ingerr.ErrCodeUpsertFailed, "surrealdb upsert failed", err).
				WithDetail("collection", collection).
				WithDetail("point", p.ID)
		}
	}
	return nil
}

// Search implements Backend.
func (b *SurrealBackend) Search(ctx context.Context, collection string, vector []float32, topK uint64, threshold float32, filter Filter) ([]SearchHit, error) {
	if err := validTableName(collection); err != nil {
		return nil, err
	}

	vars := map[string]any{
		"tb":        collection,
		"v":         vector,
		"k":         topK,
		"threshold": threshold,
	}

	var where []string
	where = append(where, "vector::similarity::cosine(embedding, $v) >= $threshold")
	// Filter keys come from our own payload schema; sort for a stable query.
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for i, k := range keys {
		if err := validTableName(k); err != nil {
			return nil, err
		}
		param := fmt.Sprintf("f%d", i)
		where = append(where, fmt.Sprintf("payload.%s = $%s", k, param))
		vars[param] = filter[k]
	}

	query := fmt.Sprintf(
		"SELECT meta::id(id) AS id, vector::similarity::cosine(embedding, $v) AS score, payload FROM type::table($tb) WHERE %s ORDER BY score DESC LIMIT $k",
		strings.Join(where, " AND "))

	res, err := surrealdb.Query[[]searchRow](ctx, b.db, query, vars)
	if err != nil {
		return nil, ingerr.New(ingerr.ErrCodeUpsertFailed, "surrealdb search failed", err).
			WithDetail("collection", collection)
	}

	var hits []SearchHit
	if res != nil && len(*res) > 0 {
		for _, row := range (*res)[0].Result {
			hits = append(hits, SearchHit{ID: row.ID, Score: row.Score, Payload: row.Payload})
		}
	}
	return hits, nil
}

// CollectionStats implements Backend.
func (b *SurrealBackend) CollectionStats(ctx context.Context, name string) (*CollectionStats, error) {
	if err := validTableName(name); err != nil {
		return nil, err
	}
	res, err := surrealdb.Query[[]countRow](ctx, b.db,
		"SELECT count() AS count FROM type::table($tb) GROUP ALL",
		map[string]any{"tb": name})
	if err != nil {
		return nil, ingerr.New(ingerr.ErrCodeCollectionFailed, "failed to count collection", err).
			WithDetail("collection", name)
	}

	stats := &CollectionStats{Name: name}
	if res != nil && len(*res) > 0 && len((*res)[0].Result) > 0 {
		stats.Points = (*res)[0].Result[0].Count
	}
	return stats, nil
}

// ListCollections implements Backend.
func (b *SurrealBackend) ListCollections(ctx context.Context) ([]string, error) {
	res, err := surrealdb.Query[[]collectionMeta](ctx, b.db,
		"SELECT name, dimension FROM type::table($tb) ORDER BY name",
		map[string]any{"tb": metaTable})
	if err != nil {
		return nil, ingerr.New(ingerr.ErrCodeCollectionFailed, "failed to list collections", err)
	}

	var names []string
	if res != nil && len(*res) > 0 {
		for _, m := range (*res)[0].Result {
			names = append(names, m.Name)
		}
	}
	return names, nil
}

// Close implements Backend.
func (b *SurrealBackend) Close() error {
	return b.db.Close(context.Background())
}

// validTableName restricts identifiers interpolated into query text to a
// safe character set.
func validTableName(name string) error {
	if name == "" {
		return ingerr.ValidationError("empty identifier", nil)
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		ok := c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
		if !ok {
			return ingerr.ValidationError(fmt.Sprintf("identifier %q contains unsupported characters", name), nil)
		}
	}
	return nil
}

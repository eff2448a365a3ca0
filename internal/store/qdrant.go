package store

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/qdrant/go-client/qdrant"

	"github.com/Aman-CERP/codevec/internal/config"
	ingerr "github.com/Aman-CERP/codevec/internal/errors"
)

// QdrantBackend stores vectors in a managed Qdrant cluster over gRPC.
type QdrantBackend struct {
	client *qdrant.Client
}

var _ Backend = (*QdrantBackend)(nil)

// NewQdrantBackend connects to the cluster named by QDRANT_URL.
func NewQdrantBackend(cfg config.BackendConfig) (*QdrantBackend, error) {
	host, port, useTLS, err := parseQdrantURL(cfg.QdrantURL)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.QdrantAPIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, ingerr.New(ingerr.ErrCodeBackendUnready, "failed to connect to Qdrant", err).
			WithDetail("url", cfg.QdrantURL)
	}
	return &QdrantBackend{client: client}, nil
}

// parseQdrantURL splits QDRANT_URL into gRPC connection parameters.
// Managed clusters default to TLS on port 6334.
func parseQdrantURL(raw string) (string, int, bool, error) {
	if raw == "" {
		return "", 0, false, ingerr.New(ingerr.ErrCodeMissingCredential, "QDRANT_URL is empty", nil)
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", 0, false, ingerr.ConfigError(fmt.Sprintf("malformed QDRANT_URL %q", raw), err)
	}

	useTLS := u.Scheme != "http"
	port := 6334
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return "", 0, false, ingerr.ConfigError(fmt.Sprintf("invalid port in QDRANT_URL %q", raw), err)
		}
	}
	return u.Hostname(), port, useTLS, nil
}

// EnsureCollection implements Backend.
func (b *QdrantBackend) EnsureCollection(ctx context.Context, name string, dimension int) error {
	exists, err := b.client.CollectionExists(ctx, name)
	if err != nil {
		return ingerr.New(ingerr.ErrCodeCollectionFailed, "failed to check collection", err).
			WithDetail("collection", name)
	}
	if exists {
		info, err := b.client.GetCollectionInfo(ctx, name)
		if err != nil {
			return ingerr.New(ingerr.ErrCodeCollectionFailed, "failed to inspect collection", err).
				WithDetail("collection", name)
		}
		if params := info.GetConfig().GetParams().GetVectorsConfig().GetParams(); params != nil {
			if params.GetSize() != uint64(dimension) {
				return ingerr.New(ingerr.ErrCodeDimensionMismatch,
					fmt.Sprintf("collection %s has dimension %d, config expects %d", name, params.GetSize(), dimension), nil)
			}
		}
		return nil
	}

	err = b.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return ingerr.New(ingerr.ErrCodeCollectionFailed, "failed to create collection", err).
			WithDetail("collection", name)
	}
	return nil
}

// Upsert implements Backend. Writes wait for cluster acknowledgment so a
// success means the points are durable.
func (b *QdrantBackend) Upsert(ctx context.Context, collection string, points []*Point) error {
	if len(points) == 0 {
		return nil
	}

	qp := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		qp[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(p.ID),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: qdrant.NewValueMap(p.Payload),
		}
	}

	wait := true
	_, err := b.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         qp,
		Wait:           &wait,
	})
	if err != nil {
		return ingerr.New(ingerr.ErrCodeUpsertFailed, "qdrant upsert failed", err).
			WithDetail("collection", collection).
			WithDetail("points", strconv.Itoa(len(points)))
	}
	return nil
}

// Search implements Backend.
func (b *QdrantBackend) Search(ctx context.Context, collection string, vector []float32, topK uint64, threshold float32, filter Filter) ([]SearchHit, error) {
	query := &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &topK,
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if threshold > 0 {
		query.ScoreThreshold = &threshold
	}
	if len(filter) > 0 {
		var must []*qdrant.Condition
		for field, value := range filter {
			must = append(must, qdrant.NewMatch(field, value))
		}
		query.Filter = &qdrant.Filter{Must: must}
	}

	scored, err := b.client.Query(ctx, query)
	if err != nil {
		return nil, ingerr.New(ingerr.ErrCodeUpsertFailed, "qdrant search failed", err).
			WithDetail("collection", collection)
	}

	hits := make([]SearchHit, 0, len(scored))
	for _, s := range scored {
		hits = append(hits, SearchHit{
			ID:      s.GetId().GetUuid(),
			Score:   s.GetScore(),
			Payload: payloadToMap(s.GetPayload()),
		})
	}
	return hits, nil
}

// CollectionStats implements Backend.
func (b *QdrantBackend) CollectionStats(ctx context.Context, name string) (*CollectionStats, error) {
	info, err := b.client.GetCollectionInfo(ctx, name)
	if err != nil {
		return nil, ingerr.New(ingerr.ErrCodeCollectionFailed, "failed to read collection info", err).
			WithDetail("collection", name)
	}
	return &CollectionStats{Name: name, Points: info.GetPointsCount()}, nil
}

// ListCollections implements Backend.
func (b *QdrantBackend) ListCollections(ctx context.Context) ([]string, error) {
	names, err := b.client.ListCollections(ctx)
	if err != nil {
		return nil, ingerr.New(ingerr.ErrCodeCollectionFailed, "failed to list collections", err)
	}
	return names, nil
}

// Close implements Backend.
func (b *QdrantBackend) Close() error {
	return b.client.Close()
}

// payloadToMap flattens a Qdrant payload into plain Go values.
func payloadToMap(payload map[string]*qdrant.Value) map[string]any {
	if len(payload) == 0 {
		return nil
	}
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		switch kind := v.GetKind().(type) {
		case *qdrant.Value_StringValue:
			out[k] = kind.StringValue
		case *qdrant.Value_IntegerValue:
			out[k] = kind.IntegerValue
		case *qdrant.Value_DoubleValue:
			out[k] = kind.DoubleValue
		case *qdrant.Value_BoolValue:
			out[k] = kind.BoolValue
		default:
			out[k] = v.String()
		}
	}
	return out
}

package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/semaphore"

	"github.com/Aman-CERP/codevec/internal/config"
	ingerr "github.com/Aman-CERP/codevec/internal/errors"
)

// poolSize caps idle connections to the embedding service.
const poolSize = 8

// Client calls an OpenAI-compatible embeddings endpoint:
// POST {base}/embeddings with {"input": [...], "model": "..."} and a bearer
// token. Concurrency is capped process-wide by a weighted semaphore sized to
// the configured rate limit.
type Client struct {
	cfg       config.EmbeddingConfig
	client    *http.Client
	transport *http.Transport
	sem       *semaphore.Weighted
	logger    *slog.Logger

	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*Client)(nil)

// NewClient builds a Client from validated config.
func NewClient(cfg config.EmbeddingConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	transport := &http.Transport{
		MaxIdleConns:        poolSize,
		MaxIdleConnsPerHost: poolSize,
		MaxConnsPerHost:     poolSize * 2,
		IdleConnTimeout:     30 * time.Second,
	}

	// No client-level timeout: each request carries its own context
	// deadline, and a static timeout here would override it.
	return &Client{
		cfg:       cfg,
		client:    &http.Client{Transport: transport},
		transport: transport,
		sem:       semaphore.NewWeighted(int64(cfg.RateLimit)),
		logger:    logger,
	}
}

// Embed generates the embedding for one text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds all texts in one request. On any failure the whole
// batch fails; partial vectors are never returned.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return nil, ingerr.InternalError("embedding client is closed", nil)
	}
	c.mu.RUnlock()

	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if c.cfg.BatchSize > 0 && len(texts) > c.cfg.BatchSize {
		return nil, ingerr.New(ingerr.ErrCodeInvalidInput,
			fmt.Sprintf("batch of %d exceeds the configured batch size %d", len(texts), c.cfg.BatchSize), nil)
	}

	// Texts above the service's context budget are truncated for the
	// request only; the stored chunk keeps its full content.
	input := make([]string, len(texts))
	for i, t := range texts {
		input[i] = truncateToRuneBoundary(t, c.cfg.MaxChunkChars)
	}

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.sem.Release(1)

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := Backoff(attempt - 1)
			c.logger.Debug("retrying embedding request",
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				slog.String("error", lastErr.Error()))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		reqCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
		vecs, err := c.doEmbed(reqCtx, input)
		cancel()

		if err == nil {
			return vecs, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !IsTransient(err) {
			return nil, err
		}
	}

	return nil, ingerr.New(ingerr.ErrCodeEmbeddingFailed,
		fmt.Sprintf("embedding failed after %d attempts", c.cfg.MaxRetries+1), lastErr)
}

// truncateToRuneBoundary caps the text at max bytes, backing up so a
// multi-byte rune is never split at the cut.
func truncateToRuneBoundary(t string, max int) string {
	if max <= 0 || len(t) <= max {
		return t
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(t[cut]) {
		cut--
	}
	return t[:cut]
}

// Warmup embeds a short fixed string and checks the returned dimension, so
// credential or endpoint mistakes fail the run before any repository work.
func (c *Client) Warmup(ctx context.Context) error {
	vec, err := c.Embed(ctx, "warmup")
	if err != nil {
		return err
	}
	if len(vec) != c.cfg.Dimension {
		return ingerr.New(ingerr.ErrCodeDimensionMismatch,
			fmt.Sprintf("service returned %d-dimensional vectors, expected %d", len(vec), c.cfg.Dimension), nil).
			WithSuggestion("align EMBEDDING_DIMENSION with the model's output dimension")
	}
	return nil
}

// Dimensions implements Embedder.
func (c *Client) Dimensions() int {
	return c.cfg.Dimension
}

// ModelName implements Embedder.
func (c *Client) ModelName() string {
	return c.cfg.Model
}

// Close releases idle connections. Further calls fail.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.transport.CloseIdleConnections()
	return nil
}

// Wire format of the embeddings endpoint.
type embedRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embedResponse struct {
	Data []embedDatum `json:"data"`
}

type embedDatum struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

// doEmbed performs one HTTP round trip. The request runs in a goroutine so
// cancellation unblocks immediately instead of waiting out the transport.
func (c *Client) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Input: texts, Model: c.cfg.Model})
	if err != nil {
		return nil, ingerr.InternalError("failed to marshal embedding request", err)
	}

	url := strings.TrimSuffix(c.cfg.BaseURL, "/") + "/embeddings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, ingerr.InternalError("failed to build embedding request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	type result struct {
		vecs [][]float32
		err  error
	}
	resultCh := make(chan result, 1)

	go func() {
		resp, err := c.client.Do(req)
		if err != nil {
			resultCh <- result{nil, classifyTransportError(err)}
			return
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resultCh <- result{nil, statusError(resp.StatusCode, string(respBody))}
			return
		}

		var decoded embedResponse
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			resultCh <- result{nil, ingerr.New(ingerr.ErrCodeDecodeFailed, "failed to decode embedding response", err)}
			return
		}

		// The API documents input order; sort by index anyway so a
		// permuted response cannot mispair vectors with chunks.
		sort.Slice(decoded.Data, func(i, j int) bool {
			return decoded.Data[i].Index < decoded.Data[j].Index
		})

		if len(decoded.Data) != len(texts) {
			resultCh <- result{nil, ingerr.New(ingerr.ErrCodeLengthMismatch,
				fmt.Sprintf("service returned %d embeddings for %d inputs", len(decoded.Data), len(texts)), nil)}
			return
		}

		vecs := make([][]float32, len(decoded.Data))
		for i, d := range decoded.Data {
			vecs[i] = d.Embedding
		}
		resultCh <- result{vecs, nil}
	}()

	select {
	case <-ctx.Done():
		// The request context is canceled with us, so the goroutine
		// unblocks on its own; give it a moment to finish cleanup.
		select {
		case <-resultCh:
		case <-time.After(100 * time.Millisecond):
		}
		return nil, ctx.Err()
	case r := <-resultCh:
		return r.vecs, r.err
	}
}

// statusError maps an HTTP status to the error taxonomy.
func statusError(code int, body string) error {
	msg := fmt.Sprintf("embedding request failed with status %d: %s", code, strings.TrimSpace(body))
	switch {
	case code == http.StatusTooManyRequests:
		return ingerr.New(ingerr.ErrCodeRateLimited, msg, nil)
	case code >= 500:
		return ingerr.New(ingerr.ErrCodeServerError, msg, nil)
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ingerr.New(ingerr.ErrCodeAuthFailed, msg, nil).
			WithSuggestion("check EMBEDDING_API_KEY")
	default:
		return ingerr.New(ingerr.ErrCodeInvalidInput, msg, nil)
	}
}

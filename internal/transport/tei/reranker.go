// Package tei implements the cross-encoder client for a Text Embeddings
// Inference rerank endpoint.
package tei

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/clearhelm/kbsearch/internal/domain"
	"github.com/clearhelm/kbsearch/internal/logger"
	"github.com/clearhelm/kbsearch/internal/metrics"
)

const (
	maxRetries     = 3
	defaultBackoff = time.Second
	defaultTimeout = 30 * time.Second
)

// Reranker scores (query, text) pairs against a TEI /rerank endpoint.
type Reranker struct {
	rerankURL string
	apiKey    string
	client    *http.Client
	backoff   time.Duration
}

// Config holds the TEI endpoint settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// RetryBackoff overrides the base retry delay. Zero keeps the default.
	RetryBackoff time.Duration
}

// New creates a TEI reranker client.
func New(cfg Config) *Reranker {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	return &Reranker{
		rerankURL: strings.TrimRight(cfg.BaseURL, "/") + "/rerank",
		apiKey:    cfg.APIKey,
		client:    &http.Client{Timeout: timeout},
		backoff:   backoff,
	}
}

type rerankRequest struct {
	Query string   `json:"query"`
	Texts []string `json:"texts"`
}

type rerankEntry struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// ScorePairs submits the pairs and returns one score per input text, in
// input order. TEI answers with (index, score) entries; an index outside the
// input range is a protocol violation. A response covering only a prefix of
// the inputs is returned short, the caller decides how to treat the rest.
func (r *Reranker) ScorePairs(ctx context.Context, query string, texts []string) ([]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(rerankRequest{Query: query, Texts: texts})
	if err != nil {
		return nil, fmt.Errorf("encode rerank request: %w", err)
	}

	start := time.Now()
	entries, err := r.callWithRetry(ctx, body)
	metrics.RerankRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRerankerUnavailable, err)
	}

	covered := make(map[int]bool, len(entries))
	scores := make([]float64, len(texts))
	for _, e := range entries {
		if e.Index < 0 || e.Index >= len(texts) {
			return nil, fmt.Errorf("%w: rerank index %d out of range for %d texts",
				domain.ErrRerankerUnavailable, e.Index, len(texts))
		}
		if covered[e.Index] {
			return nil, fmt.Errorf("%w: duplicate rerank index %d", domain.ErrRerankerUnavailable, e.Index)
		}
		covered[e.Index] = true
		scores[e.Index] = e.Score
	}

	// Trim to the covered prefix when the response is partial.
	n := len(texts)
	for i := 0; i < len(texts); i++ {
		if !covered[i] {
			n = i
			break
		}
	}
	if n < len(texts) {
		for i := n; i < len(texts); i++ {
			if covered[i] {
				return nil, fmt.Errorf("%w: rerank response has gaps", domain.ErrRerankerUnavailable)
			}
		}
	}
	return scores[:n], nil
}

func (r *Reranker) callWithRetry(ctx context.Context, body []byte) ([]rerankEntry, error) {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			logger.FromContext(ctx).Warn("rerank attempt failed, retrying",
				zap.Int("attempt", attempt), zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(r.backoff * (1 << (attempt - 1))):
			}
		}

		entries, err := r.call(ctx, body)
		if err == nil {
			return entries, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (r *Reranker) call(ctx context.Context, body []byte) ([]rerankEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.rerankURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("rerank status %d: %s", resp.StatusCode, snippet)
	}

	var entries []rerankEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}
	return entries, nil
}

// Package openai holds the OpenAI-compatible API transports: the E5
// embedding client and the LLM filter extractor.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/clearhelm/kbsearch/internal/domain"
	"github.com/clearhelm/kbsearch/internal/metrics"
)

// E5 instruction prefixes. Applied here so callers never need to know about
// them; the model scores asymmetric query/passage pairs.
const (
	queryPrefix   = "query: "
	passagePrefix = "passage: "
)

const (
	maxRetries  = 3
	backoffBase = time.Second
)

// Embedder is an embedding provider using an OpenAI-compatible API.
type Embedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
}

// EmbedderConfig holds the embedding provider settings.
type EmbedderConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
}

// NewEmbedder creates an OpenAI-compatible embedding provider.
func NewEmbedder(cfg EmbedderConfig) *Embedder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Embedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
	}
}

// Embed vectorizes a single query text with the query instruction prefix.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.embedWithRetry(ctx, []string{queryPrefix + text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedPassages vectorizes document texts with the passage instruction
// prefix, batching requests to respect API size limits.
func (e *Embedder) EmbedPassages(ctx context.Context, texts []string) ([][]float32, error) {
	const batchSize = 32

	out := make([][]float32, 0, len(texts))
	for offset := 0; offset < len(texts); offset += batchSize {
		end := offset + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := make([]string, 0, end-offset)
		for _, t := range texts[offset:end] {
			batch = append(batch, passagePrefix+t)
		}

		vectors, err := e.embedWithRetry(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("batch at offset %d: %w", offset, err)
		}
		out = append(out, vectors...)
	}
	return out, nil
}

// embedWithRetry calls the embedding API with exponential-backoff retries.
func (e *Embedder) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	req := openai.EmbeddingRequest{
		Input:          texts,
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoffBase * (1 << (attempt - 1))):
			}
		}

		resp, err := e.client.CreateEmbeddings(ctx, req)
		if err != nil {
			metrics.EmbeddingRequestsTotal.WithLabelValues(string(e.model), "error").Inc()
			lastErr = parseAPIError(err)
			continue
		}
		if len(resp.Data) != len(texts) {
			metrics.EmbeddingRequestsTotal.WithLabelValues(string(e.model), "error").Inc()
			return nil, fmt.Errorf("expected %d embeddings, got %d: %w",
				len(texts), len(resp.Data), domain.ErrEmbeddingProviderError)
		}

		metrics.EmbeddingRequestsTotal.WithLabelValues(string(e.model), "success").Inc()
		if resp.Usage.TotalTokens > 0 {
			metrics.EmbeddingTokensTotal.WithLabelValues(string(e.model)).Add(float64(resp.Usage.TotalTokens))
		}

		out := make([][]float32, len(resp.Data))
		for i, item := range resp.Data {
			out[i] = item.Embedding
		}
		return out, nil
	}
	return nil, lastErr
}

// parseAPIError extracts a readable message from the API response. All errors
// wrap domain.ErrEmbeddingProviderError for upstream classification.
func parseAPIError(err error) error {
	wrap := domain.ErrEmbeddingProviderError

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		return fmt.Errorf("embedding API error %d: %s: %w", reqErr.HTTPStatusCode, detail, wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("embedding API error %d: %s: %w", apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	return fmt.Errorf("embedding request failed: %v: %w", err, wrap)
}

// extractDetail pulls the "detail" field out of a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}

package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/clearhelm/kbsearch/internal/domain/predicate"
)

// systemPrompt pins the extractor to the fixed KB filter vocabulary. The
// model must answer with bare JSON; anything else fails parsing and the
// pipeline falls back to the empty predicate.
const systemPrompt = `You are a metadata filter extractor for an IT support knowledge base.
Given a user query, extract any metadata filters that should be applied
to narrow the search. Return ONLY a JSON object with the following
optional fields:

- "region": an availability region like "eu-west" or "us-east" (only if explicitly mentioned or clearly implied)
- "product_version": a version like "v1.0", "v2.0", "v3.0" (only if mentioned)
- "category": one of "authentication", "billing", "deployment", "networking" (only if clearly about one category)
- "deprecated": false (include this filter to exclude deprecated docs unless the user explicitly asks for old/deprecated content)
- "error_codes": a specific error code like "E-4012" (only if mentioned)

If no filters can be extracted, return an empty JSON object: {}
Return ONLY valid JSON. No explanation, no markdown.`

// FilterExtractor maps free-text queries to metadata predicates via an
// OpenAI-compatible chat completion.
type FilterExtractor struct {
	client *openai.Client
	model  string
}

// ExtractorConfig holds the LLM settings for filter extraction.
type ExtractorConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// NewFilterExtractor creates an LLM-backed filter extractor.
func NewFilterExtractor(cfg ExtractorConfig) *FilterExtractor {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &FilterExtractor{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}
}

// ExtractFilter asks the model for filter fields and validates them into a
// predicate. Any failure (API, parse, unknown field) is an error the caller
// recovers from with the empty predicate.
func (f *FilterExtractor) ExtractFilter(ctx context.Context, query string) (predicate.Predicate, error) {
	resp, err := f.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: f.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: query},
		},
		Temperature: 0,
		MaxTokens:   256,
	})
	if err != nil {
		return predicate.Predicate{}, fmt.Errorf("filter extraction request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return predicate.Predicate{}, fmt.Errorf("filter extraction: empty completion")
	}

	raw := stripFences(strings.TrimSpace(resp.Choices[0].Message.Content))

	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return predicate.Predicate{}, fmt.Errorf("filter extraction: non-JSON response %q: %w", raw, err)
	}

	pred, err := predicate.ParseFields(fields)
	if err != nil {
		return predicate.Predicate{}, fmt.Errorf("filter extraction: %w", err)
	}
	return pred, nil
}

// stripFences removes markdown code fencing the model sometimes adds
// despite instructions.
func stripFences(raw string) string {
	if !strings.HasPrefix(raw, "```") {
		return raw
	}
	lines := strings.Split(raw, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(line, "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

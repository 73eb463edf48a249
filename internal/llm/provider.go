package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/paulyokota/feedforward/internal/model"
)

// Extractor turns raw conversation text into a structured theme record.
// Implementations call an external LLM; the grouping core only ever sees
// the parsed record, so its tests run entirely against fakes.
type Extractor interface {
	// Name returns the provider name.
	Name() string

	// Extract classifies one conversation into a theme record. Transient
	// failures are retried internally with bounded backoff; a returned
	// error means retries were exhausted.
	Extract(ctx context.Context, req ExtractRequest) (*model.ThemeRecord, error)
}

// Embedder computes embedding vectors for texts, batched where the
// provider allows it. Embedding failures never hard-fail the pipeline:
// scoring degrades to neutral signals instead.
type Embedder interface {
	// Name returns the provider name.
	Name() string

	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// ExtractRequest is one conversation to classify.
type ExtractRequest struct {
	ConversationID string
	Text           string
	IntercomURL    string
	Email          string
}

// Config holds provider configuration.
type Config struct {
	// Provider name: "openai", "anthropic", ""
	Provider string

	// Model is the chat model used for extraction.
	Model string

	// EmbeddingModel is the embedding model (OpenAI only).
	EmbeddingModel string

	APIKey  string
	BaseURL string

	// Timeout per API request, in seconds.
	Timeout int

	// MaxTokens bounds the extraction response.
	MaxTokens int
}

// ConfigFromModel converts the pipeline config's LLM section.
func ConfigFromModel(mc model.LLMConfig) Config {
	return Config{
		Provider:       mc.Provider,
		Model:          mc.Model,
		EmbeddingModel: mc.EmbeddingModel,
		APIKey:         mc.APIKey,
		BaseURL:        mc.BaseURL,
		Timeout:        mc.Timeout,
		MaxTokens:      mc.MaxTokens,
	}
}

const extractMaxRetries = 3

// retrySleep is the sleep function used between retries (injectable for
// tests).
var retrySleep = time.Sleep

// withRetry runs fn up to extractMaxRetries times with exponential
// backoff, stopping early on success or context cancellation.
func withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < extractMaxRetries; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt < extractMaxRetries-1 {
			retrySleep(time.Duration(1<<uint(attempt)) * time.Second)
		}
	}
	return err
}

// buildExtractionPrompt asks the model for exactly the theme-record JSON
// the pipeline ingests.
func buildExtractionPrompt(req ExtractRequest) string {
	return fmt.Sprintf(`Classify this customer support conversation into a product theme.

Respond with ONLY a JSON object, no prose, with these fields:
- "issue_signature": short lowercase_underscored identifier for the underlying engineering fix (e.g. "billing_cancellation_request", "pinterest_oauth_token_refresh"). Use "unclassified" only when no product issue is identifiable.
- "product_area": coarse product area (e.g. "billing", "publishing", "analytics")
- "component": component within the area (e.g. "subscription", "scheduler")
- "user_intent": one sentence describing what the user wanted
- "symptoms": array of short lowercase symptom tokens
- "excerpt": a verbatim quote from the conversation (a real quote, never a summary or placeholder)

Conversation:
%s`, req.Text)
}

const extractionSystemPrompt = "You classify customer support conversations into actionable product themes. You respond with strict JSON only."

// parseThemeJSON decodes the model's response into a theme record,
// tolerating markdown code fences around the JSON.
func parseThemeJSON(req ExtractRequest, response string) (*model.ThemeRecord, error) {
	text := strings.TrimSpace(response)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	// Some models wrap the object in prose despite instructions; take
	// the outermost braces.
	if start := strings.Index(text, "{"); start > 0 {
		if end := strings.LastIndex(text, "}"); end > start {
			text = text[start : end+1]
		}
	}

	var record model.ThemeRecord
	if err := json.Unmarshal([]byte(text), &record); err != nil {
		return nil, fmt.Errorf("decode extraction response: %w", err)
	}

	record.ConversationID = req.ConversationID
	record.IntercomURL = req.IntercomURL
	record.Email = req.Email
	if err := record.Validate(); err != nil {
		return nil, fmt.Errorf("extraction produced invalid record: %w", err)
	}
	return &record, nil
}

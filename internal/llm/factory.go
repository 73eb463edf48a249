package llm

import "fmt"

// NewExtractor creates an extraction provider by name. An empty provider
// returns nil, which the pipeline treats as extraction disabled (records
// arrive pre-classified).
func NewExtractor(config Config) (Extractor, error) {
	switch config.Provider {
	case "":
		return nil, nil
	case "openai":
		return NewOpenAIProvider(config)
	case "anthropic":
		return NewAnthropicProvider(config)
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", config.Provider)
	}
}

// NewEmbedder creates an embedding provider. Only OpenAI exposes an
// embeddings API, so an Anthropic extraction config still embeds with
// OpenAI when an API key is present; otherwise embedding is disabled and
// semantic signals score at their neutral midpoint.
func NewEmbedder(config Config) (Embedder, error) {
	switch config.Provider {
	case "", "anthropic":
		return nil, nil
	case "openai":
		return NewOpenAIProvider(config)
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", config.Provider)
	}
}

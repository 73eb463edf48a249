package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/paulyokota/feedforward/internal/model"
)

// OpenAIProvider implements both Extractor and Embedder against the
// OpenAI API.
type OpenAIProvider struct {
	client *openai.Client
	config Config
}

// NewOpenAIProvider creates an OpenAI provider.
func NewOpenAIProvider(config Config) (*OpenAIProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}, nil
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Extract classifies a conversation via the Chat Completions API.
func (p *OpenAIProvider) Extract(ctx context.Context, req ExtractRequest) (*model.ThemeRecord, error) {
	chatModel := p.config.Model
	if chatModel == "" {
		chatModel = openai.GPT4oMini
	}

	maxTokens := p.config.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}

	var record *model.ThemeRecord
	err := withRetry(ctx, func() error {
		callCtx, cancel := p.timeoutContext(ctx)
		defer cancel()

		resp, err := p.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
			Model: chatModel,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: extractionSystemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: buildExtractionPrompt(req)},
			},
			MaxTokens:   maxTokens,
			Temperature: 0.2,
		})
		if err != nil {
			return fmt.Errorf("OpenAI API error: %w", err)
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("no response from OpenAI")
		}

		record, err = parseThemeJSON(req, strings.TrimSpace(resp.Choices[0].Message.Content))
		return err
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Embed computes embeddings for all texts in one batched call.
func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	embeddingModel := p.config.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = string(openai.SmallEmbedding3)
	}

	var vectors [][]float64
	err := withRetry(ctx, func() error {
		callCtx, cancel := p.timeoutContext(ctx)
		defer cancel()

		resp, err := p.client.CreateEmbeddings(callCtx, openai.EmbeddingRequest{
			Input: texts,
			Model: openai.EmbeddingModel(embeddingModel),
		})
		if err != nil {
			return fmt.Errorf("OpenAI embeddings error: %w", err)
		}
		if len(resp.Data) != len(texts) {
			return fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
		}

		vectors = make([][]float64, len(texts))
		for _, d := range resp.Data {
			vec := make([]float64, len(d.Embedding))
			for i, v := range d.Embedding {
				vec[i] = float64(v)
			}
			vectors[d.Index] = vec
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vectors, nil
}

func (p *OpenAIProvider) timeoutContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := time.Duration(p.config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

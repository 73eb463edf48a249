package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/paulyokota/feedforward/internal/model"
)

const defaultAnthropicModel = "claude-sonnet-4-5-20250929"

// AnthropicProvider implements Extractor against the Anthropic Messages
// API. Anthropic has no embeddings endpoint, so embedding stays with
// OpenAI even when extraction runs on Claude.
type AnthropicProvider struct {
	client anthropic.Client
	config Config
}

// NewAnthropicProvider creates an Anthropic extraction provider.
func NewAnthropicProvider(config Config) (*AnthropicProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}

	return &AnthropicProvider{
		client: anthropic.NewClient(option.WithAPIKey(config.APIKey)),
		config: config,
	}, nil
}

// Name returns the provider name.
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// Extract classifies a conversation via the Messages API.
func (p *AnthropicProvider) Extract(ctx context.Context, req ExtractRequest) (*model.ThemeRecord, error) {
	chatModel := p.config.Model
	if chatModel == "" {
		chatModel = defaultAnthropicModel
	}

	maxTokens := int64(p.config.MaxTokens)
	if maxTokens == 0 {
		maxTokens = 1024
	}

	var record *model.ThemeRecord
	err := withRetry(ctx, func() error {
		callCtx, cancel := p.timeoutContext(ctx)
		defer cancel()

		message, err := p.client.Messages.New(callCtx, anthropic.MessageNewParams{
			Model:     anthropic.Model(chatModel),
			MaxTokens: maxTokens,
			System: []anthropic.TextBlockParam{
				{Text: extractionSystemPrompt},
			},
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(buildExtractionPrompt(req))),
			},
		})
		if err != nil {
			return fmt.Errorf("Anthropic API error: %w", err)
		}

		for _, block := range message.Content {
			if block.Type == "text" {
				record, err = parseThemeJSON(req, block.Text)
				return err
			}
		}
		return fmt.Errorf("no text content in Anthropic response")
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (p *AnthropicProvider) timeoutContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := time.Duration(p.config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

// Package anthropic provides a completion service adapter using the Anthropic API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	anthropicclient "github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	jetai "go.jetify.com/ai"
	jetapi "go.jetify.com/ai/api"
	jetanthropic "go.jetify.com/ai/provider/anthropic"

	"github.com/custodia-labs/imdeck/internal/core/ports/driven"
)

// Ensure CompletionService implements the interface.
var _ driven.CompletionService = (*CompletionService)(nil)

// Default configuration values.
const (
	DefaultModel     = "claude-3-5-sonnet-latest"
	DefaultTimeout   = 120 * time.Second
	DefaultMaxTokens = 2000
)

// Config holds configuration for the Anthropic completion service.
type Config struct {
	// APIKey is the Anthropic API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.anthropic.com).
	BaseURL string

	// Model is the model to use (default: claude-3-5-sonnet-latest).
	Model string

	// Timeout is the request timeout (default: 120s).
	Timeout time.Duration
}

// CompletionService drafts text with the Anthropic messages API.
type CompletionService struct {
	client  anthropicclient.Client
	model   jetapi.LanguageModel
	modelID string
}

// NewCompletionService creates a new Anthropic completion service.
func NewCompletionService(cfg Config) (*CompletionService, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	opts := []anthropicoption.RequestOption{
		anthropicoption.WithAPIKey(apiKey),
		anthropicoption.WithMaxRetries(0),
		anthropicoption.WithRequestTimeout(cfg.Timeout),
	}
	if endpoint := strings.TrimSpace(cfg.BaseURL); endpoint != "" {
		opts = append(opts, anthropicoption.WithBaseURL(strings.TrimRight(endpoint, "/")))
	}

	client := anthropicclient.NewClient(opts...)
	return &CompletionService{
		client:  client,
		model:   jetanthropic.NewLanguageModel(cfg.Model, jetanthropic.WithClient(client)),
		modelID: cfg.Model,
	}, nil
}

// Complete sends a single-turn message request.
func (s *CompletionService) Complete(ctx context.Context, req driven.CompletionRequest) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		// The messages API requires max_tokens.
		maxTokens = DefaultMaxTokens
	}

	if req.Temperature > 0 {
		resp, err := jetai.GenerateText(ctx, buildMessages(req),
			jetai.WithModel(s.model),
			jetai.WithMaxOutputTokens(maxTokens),
			jetai.WithTemperature(req.Temperature),
		)
		if err != nil {
			return "", fmt.Errorf("anthropic: generate: %w", err)
		}
		return extractText(resp)
	}

	resp, err := jetai.GenerateText(ctx, buildMessages(req),
		jetai.WithModel(s.model),
		jetai.WithMaxOutputTokens(maxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("anthropic: generate: %w", err)
	}
	return extractText(resp)
}

// ModelName returns the name of the model being used.
func (s *CompletionService) ModelName() string {
	return s.modelID
}

// Ping validates the API key by listing models, without running inference.
func (s *CompletionService) Ping(ctx context.Context) error {
	if _, err := s.client.Models.List(ctx, anthropicclient.ModelListParams{}); err != nil {
		return fmt.Errorf("anthropic: ping failed: %w", err)
	}
	return nil
}

// Close releases resources.
func (s *CompletionService) Close() error {
	return nil
}

func buildMessages(req driven.CompletionRequest) []jetapi.Message {
	messages := make([]jetapi.Message, 0, 2)
	if strings.TrimSpace(req.System) != "" {
		messages = append(messages, &jetapi.SystemMessage{Content: req.System})
	}
	messages = append(messages, &jetapi.UserMessage{Content: jetapi.ContentFromText(req.Prompt)})
	return messages
}

func extractText(resp *jetapi.Response) (string, error) {
	if resp == nil {
		return "", errors.New("anthropic: empty response")
	}

	var full strings.Builder
	for _, block := range resp.Content {
		text, ok := block.(*jetapi.TextBlock)
		if !ok || text.Text == "" {
			continue
		}
		full.WriteString(text.Text)
	}

	if strings.TrimSpace(full.String()) == "" {
		return "", errors.New("anthropic: empty response")
	}
	return full.String(), nil
}

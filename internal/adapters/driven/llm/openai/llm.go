// Package openai provides a completion service adapter using the OpenAI API.
// Any server speaking the OpenAI chat completions protocol can be used by
// changing the base URL.
package openai

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	openaiclient "github.com/openai/openai-go/v2"
	openaioption "github.com/openai/openai-go/v2/option"

	"github.com/custodia-labs/imdeck/internal/core/ports/driven"
)

// Ensure CompletionService implements the interface.
var _ driven.CompletionService = (*CompletionService)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"
	DefaultTimeout = 120 * time.Second
)

// Config holds configuration for the OpenAI completion service.
type Config struct {
	// APIKey is the OpenAI API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.openai.com/v1).
	// A URL without a /v1 suffix gets one appended.
	BaseURL string

	// Model is the model to use (default: gpt-4o-mini).
	Model string

	// Timeout is the request timeout (default: 120s).
	Timeout time.Duration
}

// CompletionService drafts text with OpenAI chat completions.
type CompletionService struct {
	client openaiclient.Client
	model  string
}

// NewCompletionService creates a new OpenAI completion service.
func NewCompletionService(cfg Config) (*CompletionService, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	client := openaiclient.NewClient(
		openaioption.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
		openaioption.WithBaseURL(normalizeBaseURL(cfg.BaseURL)),
		openaioption.WithRequestTimeout(cfg.Timeout),
		openaioption.WithMaxRetries(0),
	)

	return &CompletionService{
		client: client,
		model:  cfg.Model,
	}, nil
}

// Complete sends a single-turn chat completion.
func (s *CompletionService) Complete(ctx context.Context, req driven.CompletionRequest) (string, error) {
	messages := make([]openaiclient.ChatCompletionMessageParamUnion, 0, 2)
	if strings.TrimSpace(req.System) != "" {
		messages = append(messages, openaiclient.SystemMessage(req.System))
	}
	messages = append(messages, openaiclient.UserMessage(req.Prompt))

	params := openaiclient.ChatCompletionNewParams{
		Model:    openaiclient.ChatModel(s.model),
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openaiclient.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = openaiclient.Float(req.Temperature)
	}

	resp, err := s.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: no response choices returned")
	}

	return resp.Choices[0].Message.Content, nil
}

// ModelName returns the name of the model being used.
func (s *CompletionService) ModelName() string {
	return s.model
}

// Ping validates the API key by listing models, without running inference.
func (s *CompletionService) Ping(ctx context.Context) error {
	if _, err := s.client.Models.List(ctx); err != nil {
		return fmt.Errorf("openai: ping failed: %w", err)
	}
	return nil
}

// Close releases resources.
func (s *CompletionService) Close() error {
	return nil
}

// normalizeBaseURL makes sure the URL path ends in /v1.
func normalizeBaseURL(raw string) string {
	base := strings.TrimSpace(raw)
	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return strings.TrimRight(base, "/")
	}

	path := strings.TrimRight(parsed.Path, "/")
	if !strings.HasSuffix(path, "/v1") {
		path += "/v1"
	}
	parsed.Path = path
	return strings.TrimRight(parsed.String(), "/")
}

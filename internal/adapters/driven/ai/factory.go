// Package ai provides factory functions for creating completion service adapters.
package ai

import (
	"context"
	"fmt"
	"time"

	anthropicllm "github.com/custodia-labs/imdeck/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/custodia-labs/imdeck/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/imdeck/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/imdeck/internal/core/domain"
	"github.com/custodia-labs/imdeck/internal/core/ports/driven"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// Service is a completion service that can check its connectivity.
// Every adapter created by this package implements it.
type Service interface {
	driven.CompletionService

	// Ping checks that the provider is reachable and the credentials work.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// CreateCompletionService creates the completion service for the settings.
// Returns nil if no provider is configured.
func CreateCompletionService(settings *domain.LLMSettings) (Service, error) {
	if settings == nil || !settings.IsConfigured() {
		if settings != nil && !settings.Provider.IsValid() {
			return nil, fmt.Errorf("unsupported LLM provider: %s", settings.Provider)
		}
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamallm.NewCompletionService(ollamallm.Config{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
			Timeout: settings.Timeout,
		}), nil

	case domain.AIProviderOpenAI:
		svc, err := openaillm.NewCompletionService(openaillm.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
			Timeout: settings.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return svc, nil

	case domain.AIProviderAnthropic:
		svc, err := anthropicllm.NewCompletionService(anthropicllm.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
			Timeout: settings.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return svc, nil

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", settings.Provider)
	}
}

// CreateAndValidateCompletionService creates a completion service and validates connectivity.
// Returns nil without error when no provider is configured.
func CreateAndValidateCompletionService(ctx context.Context, settings *domain.LLMSettings) (Service, error) {
	svc, err := CreateCompletionService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrLLMUnavailable, err)
	}
	if svc == nil {
		return nil, nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := svc.Ping(pingCtx); err != nil {
		_ = svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w)", domain.ErrLLMUnavailable, err)
	}

	return svc, nil
}

package driven

import "context"

// CompletionService produces text from a language model.
// This is an optional service - when nil, drafting falls back to fixed copy.
//
// Implementations include:
//   - OpenAI and OpenAI-compatible servers
//   - Anthropic
//   - Ollama (local models)
type CompletionService interface {
	// Complete returns the model reply for a single-turn request.
	Complete(ctx context.Context, req CompletionRequest) (string, error)

	// ModelName returns the name of the model being used.
	ModelName() string
}

// CompletionRequest is a single-turn completion request.
type CompletionRequest struct {
	// System is the system prompt.
	System string

	// Prompt is the user message.
	Prompt string

	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64
}

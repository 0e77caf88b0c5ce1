package domain

import (
	"strings"
	"time"
)

const unknownDescription = "Unknown"

// AIProvider identifies a completion service provider.
type AIProvider string

// Available AI providers.
const (
	// AIProviderNone disables completion; every slide gets fallback copy.
	AIProviderNone AIProvider = "none"

	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI or an OpenAI-compatible server.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"
)

// ParseAIProvider normalises a configured provider name.
// An empty name means AIProviderNone.
func ParseAIProvider(s string) AIProvider {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return AIProviderNone
	}
	return AIProvider(s)
}

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderNone, AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderNone:
		return "None (fallback copy only)"
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	default:
		return unknownDescription
	}
}

// LLMSettings holds completion provider configuration.
type LLMSettings struct {
	// Provider is the completion service provider.
	Provider AIProvider

	// Model is the model name. Empty selects the provider default.
	Model string

	// BaseURL is the API endpoint. Empty selects the provider default.
	BaseURL string

	// APIKey is the API key (for OpenAI/Anthropic).
	APIKey string

	// Timeout bounds each HTTP request to the provider.
	Timeout time.Duration
}

// IsConfigured returns true if a usable provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if l.Provider == AIProviderNone || !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// AllLLMProviders returns the providers that can draft content.
func AllLLMProviders() []AIProvider {
	return []AIProvider{AIProviderOpenAI, AIProviderAnthropic, AIProviderOllama}
}

// DefaultLLMModels returns the model used per provider when none is configured.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
		AIProviderOllama:    "llama3.2",
	}
}

// BlobBackend identifies where job files are stored.
type BlobBackend string

// Available blob backends.
const (
	// BlobBackendMemory keeps files in process memory. Jobs do not survive
	// a restart and workers must run inline.
	BlobBackendMemory BlobBackend = "memory"

	// BlobBackendFilesystem stores files below a local directory.
	BlobBackendFilesystem BlobBackend = "filesystem"

	// BlobBackendS3 stores files in an S3 compatible bucket.
	BlobBackendS3 BlobBackend = "s3"
)

// IsValid returns true if the backend is recognised.
func (b BlobBackend) IsValid() bool {
	switch b {
	case BlobBackendMemory, BlobBackendFilesystem, BlobBackendS3:
		return true
	default:
		return false
	}
}

// AppSettings is the complete imdeck configuration.
type AppSettings struct {
	Server    ServerSettings
	Redis     RedisSettings
	Blob      BlobSettings
	LLM       LLMSettings
	Drafting  DraftingSettings
	Logo      LogoSettings
	Assembler AssemblerSettings
	Worker    WorkerSettings
}

// ServerSettings configures the HTTP API.
type ServerSettings struct {
	// Addr is the listen address.
	Addr string

	// MaxUploadBytes bounds each uploaded file.
	MaxUploadBytes int64
}

// RedisSettings configures the job queue. An empty URL selects the
// in-process queue.
type RedisSettings struct {
	URL    string
	Prefix string
	JobTTL time.Duration
}

// BlobSettings configures job file storage.
type BlobSettings struct {
	Backend BlobBackend

	// Dir is the root of the filesystem backend.
	Dir string

	S3 S3Settings

	// PresignTTL is the lifetime of download URLs.
	PresignTTL time.Duration
}

// S3Settings configures the S3 backend.
type S3Settings struct {
	Bucket         string
	Region         string
	Endpoint       string
	PublicEndpoint string
	AccessKey      string
	SecretKey      string
}

// DraftingSettings bounds completion traffic.
type DraftingSettings struct {
	// Concurrency is the number of slide groups drafted at once.
	Concurrency int

	// RatePerSecond limits completion calls. Zero means unlimited.
	RatePerSecond float64

	// Timeout bounds each completion call.
	Timeout time.Duration
}

// LogoSettings configures the logo source.
type LogoSettings struct {
	APIBase      string
	Timeout      time.Duration
	GuessDomains bool
}

// AssemblerSettings configures deck assembly.
type AssemblerSettings struct {
	// ChartTolerance is the EMU distance within which a chart matches a
	// recorded placeholder position.
	ChartTolerance int64
}

// WorkerSettings configures queue consumption.
type WorkerSettings struct {
	Concurrency int
}

// DefaultAppSettings returns the settings used for unset keys.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Server: ServerSettings{
			Addr:           ":8000",
			MaxUploadBytes: 100 << 20,
		},
		Redis: RedisSettings{
			Prefix: "imdeck:",
			JobTTL: 7 * 24 * time.Hour,
		},
		Blob: BlobSettings{
			Backend:    BlobBackendMemory,
			S3:         S3Settings{Region: "us-east-1"},
			PresignTTL: time.Hour,
		},
		LLM: LLMSettings{
			Provider: AIProviderNone,
			Timeout:  60 * time.Second,
		},
		Drafting: DraftingSettings{
			Concurrency: 4,
			Timeout:     60 * time.Second,
		},
		Logo: LogoSettings{
			Timeout: 10 * time.Second,
		},
		Assembler: AssemblerSettings{
			ChartTolerance: 50,
		},
		Worker: WorkerSettings{
			Concurrency: 1,
		},
	}
}

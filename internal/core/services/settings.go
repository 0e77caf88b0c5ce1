package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/imdeck/internal/core/domain"
	"github.com/custodia-labs/imdeck/internal/core/ports/driven"
	"github.com/custodia-labs/imdeck/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyServerAddr       = "server.addr"
	keyServerMaxUpload  = "server.max_upload_bytes"
	keyRedisURL         = "redis.url"
	keyRedisPrefix      = "redis.prefix"
	keyRedisJobTTL      = "redis.job_ttl"
	keyBlobBackend      = "blob.backend"
	keyBlobDir          = "blob.dir"
	keyS3Bucket         = "s3.bucket"
	keyS3Region         = "s3.region"
	keyS3Endpoint       = "s3.endpoint"
	keyS3PublicEndpoint = "s3.public_endpoint"
	keyS3AccessKey      = "s3.access_key"
	keyS3SecretKey      = "s3.secret_key"
	keyS3PresignTTL     = "s3.presign_ttl"
	keyLLMProvider      = "llm.provider"
	keyLLMModel         = "llm.model"
	keyLLMBaseURL       = "llm.base_url"
	keyLLMAPIKey        = "llm.api_key"
	keyLLMTimeout       = "llm.timeout"
	keyLLMConcurrency   = "llm.concurrency"
	keyLLMRate          = "llm.rate_per_second"
	keyLogoAPIBase      = "logo.api_base"
	keyLogoTimeout      = "logo.timeout"
	keyLogoGuess        = "logo.guess_domains"
	keyChartTolerance   = "assembler.chart_tolerance"
	keyWorkerSlots      = "worker.concurrency"
)

// SettingsService reads application settings from a config store.
type SettingsService struct {
	configStore driven.ConfigStore
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{configStore: configStore}
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Server: domain.ServerSettings{
			Addr:           s.getString(keyServerAddr, defaults.Server.Addr),
			MaxUploadBytes: int64(s.getInt(keyServerMaxUpload, int(defaults.Server.MaxUploadBytes))),
		},
		Redis: domain.RedisSettings{
			URL:    s.configStore.GetString(keyRedisURL),
			Prefix: s.getString(keyRedisPrefix, defaults.Redis.Prefix),
			JobTTL: s.getDuration(keyRedisJobTTL, defaults.Redis.JobTTL),
		},
		Blob: domain.BlobSettings{
			Backend: s.getBlobBackend(defaults.Blob.Backend),
			Dir:     s.configStore.GetString(keyBlobDir),
			S3: domain.S3Settings{
				Bucket:         s.configStore.GetString(keyS3Bucket),
				Region:         s.getString(keyS3Region, defaults.Blob.S3.Region),
				Endpoint:       s.configStore.GetString(keyS3Endpoint),
				PublicEndpoint: s.configStore.GetString(keyS3PublicEndpoint),
				AccessKey:      s.configStore.GetString(keyS3AccessKey),
				SecretKey:      s.configStore.GetString(keyS3SecretKey),
			},
			PresignTTL: s.getDuration(keyS3PresignTTL, defaults.Blob.PresignTTL),
		},
		LLM: domain.LLMSettings{
			Provider: domain.ParseAIProvider(s.configStore.GetString(keyLLMProvider)),
			Model:    s.configStore.GetString(keyLLMModel), // No default - the adapter picks one
			BaseURL:  s.configStore.GetString(keyLLMBaseURL),
			APIKey:   s.configStore.GetString(keyLLMAPIKey),
			Timeout:  s.getDuration(keyLLMTimeout, defaults.LLM.Timeout),
		},
		Drafting: domain.DraftingSettings{
			Concurrency:   s.getInt(keyLLMConcurrency, defaults.Drafting.Concurrency),
			RatePerSecond: s.getFloat(keyLLMRate, defaults.Drafting.RatePerSecond),
			Timeout:       s.getDuration(keyLLMTimeout, defaults.Drafting.Timeout),
		},
		Logo: domain.LogoSettings{
			APIBase:      s.configStore.GetString(keyLogoAPIBase),
			Timeout:      s.getDuration(keyLogoTimeout, defaults.Logo.Timeout),
			GuessDomains: s.getBool(keyLogoGuess, defaults.Logo.GuessDomains),
		},
		Assembler: domain.AssemblerSettings{
			ChartTolerance: int64(s.getInt(keyChartTolerance, int(defaults.Assembler.ChartTolerance))),
		},
		Worker: domain.WorkerSettings{
			Concurrency: s.getInt(keyWorkerSlots, defaults.Worker.Concurrency),
		},
	}

	// The filesystem and S3 backends are selected implicitly by their keys.
	if _, ok := s.configStore.Get(keyBlobBackend); !ok {
		switch {
		case settings.Blob.S3.Bucket != "":
			settings.Blob.Backend = domain.BlobBackendS3
		case settings.Blob.Dir != "":
			settings.Blob.Backend = domain.BlobBackendFilesystem
		}
	}

	return settings, nil
}

// Validate checks the configuration for values that cannot work.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	var errs []error
	if !settings.LLM.Provider.IsValid() {
		errs = append(errs, fmt.Errorf("%s: unsupported provider %q", keyLLMProvider, settings.LLM.Provider))
	} else if settings.LLM.Provider.RequiresAPIKey() && settings.LLM.APIKey == "" {
		errs = append(errs, fmt.Errorf("%s: required for %s", keyLLMAPIKey, settings.LLM.Provider))
	}

	switch settings.Blob.Backend {
	case domain.BlobBackendS3:
		if settings.Blob.S3.Bucket == "" {
			errs = append(errs, fmt.Errorf("%s: required for the s3 backend", keyS3Bucket))
		}
	case domain.BlobBackendFilesystem:
		if settings.Blob.Dir == "" {
			errs = append(errs, fmt.Errorf("%s: required for the filesystem backend", keyBlobDir))
		}
	case domain.BlobBackendMemory:
	default:
		errs = append(errs, fmt.Errorf("%s: unsupported backend %q", keyBlobBackend, settings.Blob.Backend))
	}

	if settings.Redis.URL != "" && settings.Blob.Backend == domain.BlobBackendMemory {
		errs = append(errs, fmt.Errorf("%s: workers sharing a redis queue need a shared blob backend", keyBlobBackend))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, errors.Join(errs...))
	}
	return nil
}

func (s *SettingsService) getString(key, defaultVal string) string {
	if v := s.configStore.GetString(key); v != "" {
		return v
	}
	return defaultVal
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	if v := s.configStore.GetInt(key); v > 0 {
		return v
	}
	return defaultVal
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if v := s.configStore.GetFloat(key); v > 0 {
		return v
	}
	return defaultVal
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, ok := s.configStore.Get(key); ok {
		return s.configStore.GetBool(key)
	}
	return defaultVal
}

func (s *SettingsService) getDuration(key string, defaultVal time.Duration) time.Duration {
	if v := s.configStore.GetDuration(key); v > 0 {
		return v
	}
	return defaultVal
}

func (s *SettingsService) getBlobBackend(defaultVal domain.BlobBackend) domain.BlobBackend {
	if v := s.configStore.GetString(keyBlobBackend); v != "" {
		return domain.BlobBackend(v)
	}
	return defaultVal
}

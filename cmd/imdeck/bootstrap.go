package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/custodia-labs/imdeck/internal/adapters/driven/ai"
	"github.com/custodia-labs/imdeck/internal/adapters/driven/blob/filesystem"
	"github.com/custodia-labs/imdeck/internal/adapters/driven/blob/s3"
	"github.com/custodia-labs/imdeck/internal/adapters/driven/config/file"
	intelweb "github.com/custodia-labs/imdeck/internal/adapters/driven/intelligence/web"
	logoweb "github.com/custodia-labs/imdeck/internal/adapters/driven/logo/web"
	"github.com/custodia-labs/imdeck/internal/adapters/driven/metrics/prometheus"
	redisqueue "github.com/custodia-labs/imdeck/internal/adapters/driven/queue/redis"
	"github.com/custodia-labs/imdeck/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/imdeck/internal/adapters/driving/cli"
	"github.com/custodia-labs/imdeck/internal/core/domain"
	"github.com/custodia-labs/imdeck/internal/core/ports/driven"
	"github.com/custodia-labs/imdeck/internal/core/services"
	"github.com/custodia-labs/imdeck/internal/logger"
	"github.com/custodia-labs/imdeck/internal/normalisers"
	"github.com/custodia-labs/imdeck/internal/normalisers/bundle"
	"github.com/custodia-labs/imdeck/internal/normalisers/xlsx"
)

// bootstrap reads the configuration in configDir and builds every service.
func bootstrap(configDir string) (*cli.Services, error) {
	configStore, err := file.NewConfigStore(configDir)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}

	settingsService := services.NewSettingsService(configStore)
	if err := settingsService.Validate(); err != nil {
		return nil, err
	}
	settings, err := settingsService.Get()
	if err != nil {
		return nil, err
	}

	var closers []func() error
	closeAll := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}

	metrics, err := prometheus.New(prometheus.DefaultNamespace, nil)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	completion, err := ai.CreateCompletionService(&settings.LLM)
	if err != nil {
		return nil, err
	}
	var completionService driven.CompletionService
	if completion != nil {
		completionService = completion
		closers = append(closers, completion.Close)
	} else {
		logger.Info("No completion provider configured, slides receive fallback copy")
	}

	drafter := services.NewContentDrafter(completionService, metrics, services.DrafterConfig{
		Concurrency:   settings.Drafting.Concurrency,
		RatePerSecond: settings.Drafting.RatePerSecond,
		Timeout:       settings.Drafting.Timeout,
	})
	prompts, err := file.NewPromptStore(promptDir(configDir), map[string]string{
		driven.PromptDraftSystem: services.DraftSystemPrompt,
	})
	if err != nil {
		return nil, err
	}
	drafter.SetPromptStore(prompts)

	logos, err := logoweb.New(logoweb.Config{
		APIBase:      settings.Logo.APIBase,
		Timeout:      settings.Logo.Timeout,
		GuessDomains: settings.Logo.GuessDomains,
	})
	if err != nil {
		return nil, fmt.Errorf("create logo source: %w", err)
	}

	decks := services.NewDeckService(
		services.NewTemplateAnalyzer(),
		drafter,
		services.NewDeckAssembler(services.AssemblerConfig{
			ChartTolerance: settings.Assembler.ChartTolerance,
		}),
		xlsx.New(),
		bundle.New(normalisers.NewDefaultRegistry()),
		logos,
		intelweb.New(intelweb.Config{Timeout: settings.Logo.Timeout}),
		metrics,
	)

	blobs, err := newBlobStore(settings.Blob)
	if err != nil {
		_ = closeAll()
		return nil, err
	}

	var (
		queue driven.TaskQueue
		jobs  driven.JobStore
	)
	if settings.Redis.URL != "" {
		q, err := redisqueue.Connect(context.Background(), settings.Redis.URL, redisqueue.Config{
			Prefix: settings.Redis.Prefix,
			JobTTL: settings.Redis.JobTTL,
		})
		if err != nil {
			_ = closeAll()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		closers = append(closers, q.Close)
		queue, jobs = q, q
	} else {
		q := memory.NewJobQueue()
		queue, jobs = q, q
	}

	return &cli.Services{
		Decks: decks,
		Jobs: services.NewJobService(blobs, queue, jobs, decks, metrics, services.JobConfig{
			PresignTTL: settings.Blob.PresignTTL,
		}),
		Recipes:           services.NewRecipeService(decks),
		Addr:              settings.Server.Addr,
		WorkerConcurrency: settings.Worker.Concurrency,
		MaxUploadBytes:    settings.Server.MaxUploadBytes,
		Metrics:           metrics.Handler(),
		Close:             closeAll,
	}, nil
}

func newBlobStore(settings domain.BlobSettings) (driven.BlobStore, error) {
	switch settings.Backend {
	case domain.BlobBackendS3:
		store, err := s3.New(s3.Config{
			Bucket:         settings.S3.Bucket,
			Region:         settings.S3.Region,
			Endpoint:       settings.S3.Endpoint,
			PublicEndpoint: settings.S3.PublicEndpoint,
			AccessKey:      settings.S3.AccessKey,
			SecretKey:      settings.S3.SecretKey,
		})
		if err != nil {
			return nil, fmt.Errorf("create s3 store: %w", err)
		}
		return store, nil
	case domain.BlobBackendFilesystem:
		store, err := filesystem.New(settings.Dir)
		if err != nil {
			return nil, fmt.Errorf("create blob directory: %w", err)
		}
		return store, nil
	default:
		return memory.NewBlobStore(), nil
	}
}

// promptDir keeps prompts next to config.toml when a directory is given.
func promptDir(configDir string) string {
	if configDir == "" {
		return ""
	}
	return filepath.Join(configDir, "prompts")
}

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/imdeck/internal/core/domain"
	"github.com/custodia-labs/imdeck/internal/core/ports/driven"
	"github.com/custodia-labs/imdeck/internal/core/ports/driving"
	"github.com/custodia-labs/imdeck/internal/logger"
)

// Ensure JobService implements the interface.
var _ driving.JobService = (*JobService)(nil)

// Default job service configuration values.
const (
	DefaultPresignTTL     = time.Hour
	DefaultDequeueTimeout = 5 * time.Second
	DefaultBlobRetries    = 3
)

// Job status messages.
const (
	msgStarted   = "Starting IM generation"
	msgDone      = "IM generation completed successfully"
	msgInferred  = "Processing"
	msgCompleted = "IM generation completed"
)

// JobConfig holds job processing settings.
type JobConfig struct {
	// PresignTTL is the lifetime of download URLs.
	PresignTTL time.Duration

	// DequeueTimeout bounds each blocking queue read of a worker.
	DequeueTimeout time.Duration

	// BlobRetries is the number of attempts for each blob read or write.
	BlobRetries uint

	// RetryInterval is the first wait between blob attempts.
	RetryInterval time.Duration
}

// JobService stores job inputs, queues jobs and runs them.
type JobService struct {
	blobs   driven.BlobStore
	queue   driven.TaskQueue
	jobs    driven.JobStore
	decks   driving.DeckService
	metrics driven.MetricsRecorder
	cfg     JobConfig

	now   func() time.Time
	newID func() string
}

// NewJobService creates a job service. metrics may be nil.
func NewJobService(
	blobs driven.BlobStore,
	queue driven.TaskQueue,
	jobs driven.JobStore,
	decks driving.DeckService,
	metrics driven.MetricsRecorder,
	cfg JobConfig,
) *JobService {
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = DefaultPresignTTL
	}
	if cfg.DequeueTimeout <= 0 {
		cfg.DequeueTimeout = DefaultDequeueTimeout
	}
	if cfg.BlobRetries == 0 {
		cfg.BlobRetries = DefaultBlobRetries
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 200 * time.Millisecond
	}
	return &JobService{
		blobs:   blobs,
		queue:   queue,
		jobs:    jobs,
		decks:   decks,
		metrics: metrics,
		cfg:     cfg,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Submit stores the inputs under the job's keys and queues the job.
func (s *JobService) Submit(ctx context.Context, params domain.JobParams, files driving.JobFiles) (*domain.Job, error) {
	if params.CompanyName == "" {
		return nil, fmt.Errorf("%w: company name is required", domain.ErrInvalidInput)
	}
	if len(files.Template) == 0 {
		return nil, fmt.Errorf("%w: template is required", domain.ErrInvalidInput)
	}

	id := s.newID()

	// 1. Store inputs
	params.TemplateKey = domain.JobKey(id, domain.TemplateFile)
	if err := s.put(ctx, params.TemplateKey, files.Template, domain.ContentTypePPTX); err != nil {
		return nil, fmt.Errorf("store template: %w", err)
	}
	if len(files.Financials) > 0 {
		params.FinancialsKey = domain.JobKey(id, domain.FinancialsFile)
		if err := s.put(ctx, params.FinancialsKey, files.Financials, domain.ContentTypeXLSX); err != nil {
			return nil, fmt.Errorf("store financials: %w", err)
		}
	}
	if len(files.Bundle) > 0 {
		params.BundleKey = domain.JobKey(id, domain.BundleFile)
		if err := s.put(ctx, params.BundleKey, files.Bundle, domain.ContentTypeZIP); err != nil {
			return nil, fmt.Errorf("store bundle: %w", err)
		}
	}

	// 2. Record and enqueue
	job := domain.NewJob(id, params, s.now())
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	if err := s.queue.Enqueue(ctx, id); err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}

	logger.Info("Job %s queued for %s", id, params.CompanyName)
	return job, nil
}

// Status returns the job, inferring it from blobs when there is no record.
func (s *JobService) Status(ctx context.Context, id string) (*domain.Job, error) {
	job, err := s.jobs.Get(ctx, id)
	if err == nil {
		return job, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("get job: %w", err)
	}

	outputKey := domain.JobKey(id, domain.OutputFile)
	if ok, err := s.blobs.Exists(ctx, outputKey); err == nil && ok {
		return &domain.Job{ID: id, Status: domain.JobDone, Message: msgCompleted, OutputKey: outputKey}, nil
	}
	if ok, err := s.blobs.Exists(ctx, domain.JobKey(id, domain.TemplateFile)); err == nil && ok {
		return &domain.Job{ID: id, Status: domain.JobRunning, Message: msgInferred}, nil
	}
	return nil, fmt.Errorf("job %s: %w", id, domain.ErrNotFound)
}

// List returns recent jobs, newest first.
func (s *JobService) List(ctx context.Context, limit int) ([]domain.Job, error) {
	jobs, err := s.jobs.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// DownloadURL presigns the generated deck of a job.
func (s *JobService) DownloadURL(ctx context.Context, id string) (string, error) {
	key := domain.JobKey(id, domain.OutputFile)
	ok, err := s.blobs.Exists(ctx, key)
	if err != nil {
		return "", fmt.Errorf("check output: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("output of job %s: %w", id, domain.ErrNotFound)
	}
	url, err := s.blobs.PresignGet(ctx, key, s.cfg.PresignTTL)
	if err != nil {
		return "", fmt.Errorf("presign output: %w", err)
	}
	return url, nil
}

// Process runs one job. A job that already finished is left alone, so a
// redelivered task is harmless.
func (s *JobService) Process(ctx context.Context, id string) error {
	job, err := s.jobs.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("get job: %w", err)
	}
	if job.Status.Terminal() {
		logger.Debug("Job %s already %s, skipping", id, job.Status)
		return nil
	}

	if err := job.Transition(domain.JobRunning, msgStarted, s.now()); err != nil {
		return err
	}
	s.save(ctx, job)
	logger.Info("Processing job %s for %s", id, job.CompanyName)

	progress := func(p domain.Progress) {
		job.Progress = &p
		if err := job.Transition(domain.JobRunning, p.Description, s.now()); err != nil {
			logger.Warn("Job %s progress not recorded: %v", id, err)
			return
		}
		s.save(ctx, job)
	}

	outputKey, runErr := s.run(ctx, job, progress)
	if runErr != nil {
		if err := job.Transition(domain.JobError, runErr.Error(), s.now()); err != nil {
			logger.Warn("Job %s: %v", id, err)
		}
		s.save(ctx, job)
		s.finished(domain.JobError)
		logger.Error("Job %s failed: %v", id, runErr)
		return fmt.Errorf("job %s: %w", id, runErr)
	}

	job.OutputKey = outputKey
	if err := job.Transition(domain.JobDone, msgDone, s.now()); err != nil {
		return err
	}
	s.save(ctx, job)
	s.finished(domain.JobDone)
	logger.Info("Job %s done: %s", id, outputKey)
	return nil
}

// run is the body of a job: download inputs, build the deck, upload it.
func (s *JobService) run(ctx context.Context, job *domain.Job, progress domain.ProgressFunc) (string, error) {
	// 1. Download inputs. Declared inputs that are missing are fatal.
	report(progress, StepDownload)
	template, err := s.get(ctx, job.TemplateKey)
	if err != nil {
		return "", fmt.Errorf("download template: %w", err)
	}
	var financials, bundle []byte
	if job.FinancialsKey != "" {
		if financials, err = s.get(ctx, job.FinancialsKey); err != nil {
			return "", fmt.Errorf("download financials: %w", err)
		}
	}
	if job.BundleKey != "" {
		if bundle, err = s.get(ctx, job.BundleKey); err != nil {
			return "", fmt.Errorf("download bundle: %w", err)
		}
	}

	// 2-6. Build
	deck, err := s.decks.Build(ctx, driving.BuildRequest{
		Template:       template,
		Financials:     financials,
		Bundle:         bundle,
		CompanyName:    job.CompanyName,
		Website:        job.Website,
		PullPublicData: job.PullPublicData,
	}, progress)
	if err != nil {
		return "", err
	}

	outputKey := domain.JobKey(job.ID, domain.OutputFile)
	if err := s.put(ctx, outputKey, deck, domain.ContentTypePPTX); err != nil {
		return "", fmt.Errorf("upload deck: %w", err)
	}
	return outputKey, nil
}

// RunWorker consumes the queue with n workers until ctx is cancelled.
// A failing job does not stop the worker.
func (s *JobService) RunWorker(ctx context.Context, n int) error {
	if n <= 0 {
		n = 1
	}
	logger.Info("Worker started with %d slots", n)
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			for {
				id, err := s.queue.Dequeue(ctx, s.cfg.DequeueTimeout)
				if ctx.Err() != nil {
					return nil
				}
				if err != nil {
					logger.Warn("Dequeue failed: %v", err)
					sleep(ctx, s.cfg.RetryInterval)
					continue
				}
				if id == "" {
					continue
				}
				_ = s.Process(ctx, id)
			}
		})
	}
	err := g.Wait()
	logger.Info("Worker stopped")
	return err
}

func (s *JobService) save(ctx context.Context, job *domain.Job) {
	if err := s.jobs.Update(ctx, job); err != nil {
		logger.Warn("Job %s not saved: %v", job.ID, err)
	}
}

func (s *JobService) finished(status domain.JobStatus) {
	if s.metrics != nil {
		s.metrics.JobFinished(string(status))
	}
}

func (s *JobService) get(ctx context.Context, key string) ([]byte, error) {
	return retry(ctx, s.cfg, func() ([]byte, error) {
		return s.blobs.Get(ctx, key)
	})
}

func (s *JobService) put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := retry(ctx, s.cfg, func() (struct{}, error) {
		return struct{}{}, s.blobs.Put(ctx, key, data, contentType)
	})
	return err
}

// retry runs op with exponential backoff. A missing blob is not retried.
func retry[T any](ctx context.Context, cfg JobConfig, op func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.RetryInterval
	b.MaxInterval = 10 * cfg.RetryInterval
	return backoff.Retry(ctx, func() (T, error) {
		v, err := op()
		if errors.Is(err, domain.ErrBlobNotFound) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(cfg.BlobRetries))
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

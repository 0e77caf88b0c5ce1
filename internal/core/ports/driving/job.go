package driving

import (
	"context"

	"github.com/custodia-labs/imdeck/internal/core/domain"
)

// JobService manages asynchronous deck generation jobs.
type JobService interface {
	// Submit stores the uploaded files, records a QUEUED job and enqueues it.
	Submit(ctx context.Context, params domain.JobParams, files JobFiles) (*domain.Job, error)

	// Status returns the job record. When no record exists the status is
	// inferred from the stored blobs.
	Status(ctx context.Context, id string) (*domain.Job, error)

	// List returns recent jobs, newest first.
	List(ctx context.Context, limit int) ([]domain.Job, error)

	// DownloadURL returns a time-limited URL for the generated deck.
	// Returns domain.ErrNotFound while the deck does not exist.
	DownloadURL(ctx context.Context, id string) (string, error)

	// Process runs one job to completion, recording progress and the
	// terminal status.
	Process(ctx context.Context, id string) error

	// RunWorker consumes the queue with n concurrent workers until ctx is done.
	RunWorker(ctx context.Context, n int) error
}

// JobFiles are the uploaded inputs of a job.
type JobFiles struct {
	Template   []byte
	Financials []byte
	Bundle     []byte
}

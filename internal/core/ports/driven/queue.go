package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/imdeck/internal/core/domain"
)

// TaskQueue dispatches job ids to workers.
type TaskQueue interface {
	// Enqueue schedules a job for processing.
	Enqueue(ctx context.Context, jobID string) error

	// Dequeue blocks until a job id is available or timeout elapses.
	// Returns an empty id and nil error on timeout.
	Dequeue(ctx context.Context, timeout time.Duration) (string, error)
}

// JobStore persists job records.
type JobStore interface {
	// Create stores a new job record.
	Create(ctx context.Context, job *domain.Job) error

	// Get returns the job record.
	// Returns domain.ErrNotFound if no record exists.
	Get(ctx context.Context, id string) (*domain.Job, error)

	// Update replaces the stored job record.
	Update(ctx context.Context, job *domain.Job) error

	// List returns the most recently created jobs first, at most limit.
	List(ctx context.Context, limit int) ([]domain.Job, error)
}

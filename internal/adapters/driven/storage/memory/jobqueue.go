package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/imdeck/internal/core/domain"
	"github.com/custodia-labs/imdeck/internal/core/ports/driven"
)

// Ensure JobQueue implements both interfaces.
var (
	_ driven.TaskQueue = (*JobQueue)(nil)
	_ driven.JobStore  = (*JobQueue)(nil)
)

// JobQueue is an in-memory task queue and job store. It backs tests and
// the inline worker of a single process server.
type JobQueue struct {
	mu      sync.Mutex
	jobs    map[string]domain.Job
	pending []string
	ready   chan struct{}
}

// NewJobQueue creates an empty queue.
func NewJobQueue() *JobQueue {
	return &JobQueue{
		jobs:  make(map[string]domain.Job),
		ready: make(chan struct{}, 1),
	}
}

// Enqueue appends a job id to the queue.
func (q *JobQueue) Enqueue(_ context.Context, jobID string) error {
	q.mu.Lock()
	q.pending = append(q.pending, jobID)
	q.mu.Unlock()
	q.signal()
	return nil
}

func (q *JobQueue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Dequeue pops the oldest job id, waiting up to timeout. It returns ""
// when the wait times out.
func (q *JobQueue) Dequeue(ctx context.Context, timeout time.Duration) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		q.mu.Lock()
		if len(q.pending) > 0 {
			id := q.pending[0]
			q.pending = q.pending[1:]
			more := len(q.pending) > 0
			q.mu.Unlock()
			if more {
				q.signal()
			}
			return id, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
			return "", nil
		case <-q.ready:
		}
	}
}

// Pending returns the number of queued job ids.
func (q *JobQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Create stores a new job record.
func (q *JobQueue) Create(_ context.Context, job *domain.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.jobs[job.ID]; ok {
		return fmt.Errorf("%w: job %s already exists", domain.ErrInvalidInput, job.ID)
	}
	q.jobs[job.ID] = *job
	return nil
}

// Get returns a copy of a job record.
func (q *JobQueue) Get(_ context.Context, id string) (*domain.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &job, nil
}

// Update replaces a job record.
func (q *JobQueue) Update(_ context.Context, job *domain.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.jobs[job.ID]; !ok {
		return domain.ErrNotFound
	}
	q.jobs[job.ID] = *job
	return nil
}

// List returns up to limit jobs, newest first. A limit of 0 returns all.
func (q *JobQueue) List(_ context.Context, limit int) ([]domain.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]domain.Job, 0, len(q.jobs))
	for _, job := range q.jobs {
		out = append(out, job)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

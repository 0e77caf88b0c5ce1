// Package redis provides a Redis-backed task queue and job store.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/imdeck/internal/core/domain"
	"github.com/custodia-labs/imdeck/internal/core/ports/driven"
)

// Ensure Queue implements both interfaces.
var (
	_ driven.TaskQueue = (*Queue)(nil)
	_ driven.JobStore  = (*Queue)(nil)
)

// Defaults.
const (
	DefaultPrefix = "imdeck:"
	DefaultJobTTL = 7 * 24 * time.Hour
)

// minBlock is the smallest BRPOP timeout Redis accepts. Zero would block forever.
const minBlock = time.Second

// Config holds queue settings.
type Config struct {
	// Prefix namespaces every key (default: imdeck:).
	Prefix string

	// JobTTL is how long job records are kept (default: 7 days).
	JobTTL time.Duration
}

// Queue keeps pending job ids in a list, job records as JSON strings with
// a TTL, and a sorted set of job ids scored by creation time.
type Queue struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// Dial parses a redis:// URL and returns a queue without contacting the
// server.
func Dial(url string, cfg Config) (*Queue, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return New(redis.NewClient(opts), cfg), nil
}

// Connect parses a redis:// URL, pings the server and returns a queue.
func Connect(ctx context.Context, url string, cfg Config) (*Queue, error) {
	q, err := Dial(url, cfg)
	if err != nil {
		return nil, err
	}
	if err := q.Ping(ctx); err != nil {
		_ = q.Close()
		return nil, err
	}
	return q, nil
}

// Ping checks that the server is reachable within five seconds.
func (q *Queue) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := q.rdb.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// New wraps an existing client.
func New(rdb *redis.Client, cfg Config) *Queue {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = DefaultJobTTL
	}
	return &Queue{rdb: rdb, prefix: cfg.Prefix, ttl: cfg.JobTTL}
}

func (q *Queue) queueKey() string        { return q.prefix + "queue" }
func (q *Queue) indexKey() string        { return q.prefix + "jobs:index" }
func (q *Queue) jobKey(id string) string { return q.prefix + "job:" + id }

// Enqueue pushes a job id onto the pending list.
func (q *Queue) Enqueue(ctx context.Context, jobID string) error {
	if err := q.rdb.LPush(ctx, q.queueKey(), jobID).Err(); err != nil {
		return fmt.Errorf("enqueue %s: %w", jobID, err)
	}
	return nil
}

// Dequeue pops the oldest job id, blocking up to timeout (at least one second).
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (string, error) {
	if timeout < minBlock {
		timeout = minBlock
	}
	res, err := q.rdb.BRPop(ctx, timeout, q.queueKey()).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("dequeue: %w", err)
	}
	// BRPOP replies with [key, value].
	if len(res) != 2 {
		return "", fmt.Errorf("dequeue: unexpected reply %v", res)
	}
	return res[1], nil
}

// Pending returns the number of queued job ids.
func (q *Queue) Pending(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.queueKey()).Result()
}

// Create stores a new job record and indexes it.
func (q *Queue) Create(ctx context.Context, job *domain.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	created, err := q.rdb.SetNX(ctx, q.jobKey(job.ID), data, q.ttl).Result()
	if err != nil {
		return fmt.Errorf("create job %s: %w", job.ID, err)
	}
	if !created {
		return fmt.Errorf("%w: job %s already exists", domain.ErrInvalidInput, job.ID)
	}

	err = q.rdb.ZAdd(ctx, q.indexKey(), redis.Z{
		Score:  float64(job.CreatedAt.UnixMilli()),
		Member: job.ID,
	}).Err()
	if err != nil {
		return fmt.Errorf("index job %s: %w", job.ID, err)
	}
	return nil
}

// Get returns the job record.
func (q *Queue) Get(ctx context.Context, id string) (*domain.Job, error) {
	data, err := q.rdb.Get(ctx, q.jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}

	var job domain.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &job, nil
}

// Update replaces an existing job record and refreshes its TTL.
func (q *Queue) Update(ctx context.Context, job *domain.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	updated, err := q.rdb.SetXX(ctx, q.jobKey(job.ID), data, q.ttl).Result()
	if err != nil {
		return fmt.Errorf("update job %s: %w", job.ID, err)
	}
	if !updated {
		return domain.ErrNotFound
	}
	return nil
}

// List returns up to limit jobs, newest first. A limit of 0 returns all.
// Index entries whose record has expired are pruned.
func (q *Queue) List(ctx context.Context, limit int) ([]domain.Job, error) {
	ids, err := q.rdb.ZRevRange(ctx, q.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	if len(ids) == 0 {
		return []domain.Job{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = q.jobKey(id)
	}
	values, err := q.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	jobs := make([]domain.Job, 0, len(ids))
	var stale []interface{}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		if limit > 0 && len(jobs) >= limit {
			continue
		}
		var job domain.Job
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			continue
		}
		jobs = append(jobs, job)
	}

	if len(stale) > 0 {
		_ = q.rdb.ZRem(ctx, q.indexKey(), stale...).Err()
	}
	return jobs, nil
}

// Close closes the underlying client.
func (q *Queue) Close() error {
	return q.rdb.Close()
}

package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/imdeck/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/imdeck/internal/core/domain"
	"github.com/custodia-labs/imdeck/internal/core/ports/driving"
)

// --- Mock implementations for job testing ---

type jobMockDecks struct {
	mu       sync.Mutex
	requests []driving.BuildRequest
	err      error
}

func (m *jobMockDecks) Analyze(context.Context, []byte) (*domain.TemplateAnalysis, error) {
	return nil, errors.New("not used")
}

func (m *jobMockDecks) Inspect(context.Context, []byte) ([]string, error) {
	return nil, errors.New("not used")
}

func (m *jobMockDecks) Build(_ context.Context, req driving.BuildRequest, progress domain.ProgressFunc) ([]byte, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	for step := StepAnalyze; step <= StepBuild; step++ {
		report(progress, step)
	}
	if m.err != nil {
		return nil, m.err
	}
	return []byte("deck for " + req.CompanyName), nil
}

func (m *jobMockDecks) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

type jobFixture struct {
	svc     *JobService
	blobs   *memory.BlobStore
	queue   *memory.JobQueue
	decks   *jobMockDecks
	metrics *draftMockMetrics
}

func newJobFixture() *jobFixture {
	f := &jobFixture{
		blobs:   memory.NewBlobStore(),
		queue:   memory.NewJobQueue(),
		decks:   &jobMockDecks{},
		metrics: newDraftMockMetrics(),
	}
	f.svc = NewJobService(f.blobs, f.queue, f.queue, f.decks, f.metrics, JobConfig{
		DequeueTimeout: 20 * time.Millisecond,
		RetryInterval:  time.Millisecond,
	})
	f.svc.now = func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) }
	f.svc.newID = func() string { return "job-1" }
	return f
}

func TestJobService_Submit(t *testing.T) {
	ctx := context.Background()
	f := newJobFixture()

	job, err := f.svc.Submit(ctx, domain.JobParams{CompanyName: "Acme", Website: "acme.com"}, driving.JobFiles{
		Template:   []byte("pptx"),
		Financials: []byte("xlsx"),
	})

	require.NoError(t, err)
	assert.Equal(t, "job-1", job.ID)
	assert.Equal(t, domain.JobQueued, job.Status)
	assert.Equal(t, "jobs/job-1/template.pptx", job.TemplateKey)
	assert.Equal(t, "jobs/job-1/financials.xlsx", job.FinancialsKey)
	assert.Empty(t, job.BundleKey)
	assert.Equal(t, domain.ContentTypeXLSX, f.blobs.ContentType(job.FinancialsKey))
	assert.Equal(t, 2, f.blobs.Len())
	assert.Equal(t, 1, f.queue.Pending())

	stored, err := f.svc.Status(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, "Acme", stored.CompanyName)
}

func TestJobService_SubmitValidation(t *testing.T) {
	tests := []struct {
		name   string
		params domain.JobParams
		files  driving.JobFiles
	}{
		{name: "no company", files: driving.JobFiles{Template: []byte("pptx")}},
		{name: "no template", params: domain.JobParams{CompanyName: "Acme"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newJobFixture()

			_, err := f.svc.Submit(context.Background(), tt.params, tt.files)

			assert.ErrorIs(t, err, domain.ErrInvalidInput)
			assert.Zero(t, f.blobs.Len())
			assert.Zero(t, f.queue.Pending())
		})
	}
}

func TestJobService_StatusInferredFromBlobs(t *testing.T) {
	ctx := context.Background()
	f := newJobFixture()

	_, err := f.svc.Status(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, f.blobs.Put(ctx, domain.JobKey("ghost", domain.TemplateFile), []byte("t"), ""))
	job, err := f.svc.Status(ctx, "ghost")
	require.NoError(t, err)
	assert.Equal(t, domain.JobRunning, job.Status)
	assert.Equal(t, "Processing", job.Message)

	require.NoError(t, f.blobs.Put(ctx, domain.JobKey("ghost", domain.OutputFile), []byte("d"), ""))
	job, err = f.svc.Status(ctx, "ghost")
	require.NoError(t, err)
	assert.Equal(t, domain.JobDone, job.Status)
	assert.Equal(t, "jobs/ghost/output.pptx", job.OutputKey)
}

func TestJobService_DownloadURL(t *testing.T) {
	ctx := context.Background()
	f := newJobFixture()

	_, err := f.svc.DownloadURL(ctx, "job-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, f.blobs.Put(ctx, domain.JobKey("job-1", domain.OutputFile), []byte("d"), domain.ContentTypePPTX))
	url, err := f.svc.DownloadURL(ctx, "job-1")
	require.NoError(t, err)
	assert.Contains(t, url, "jobs/job-1/output.pptx")
}

func TestJobService_ProcessSuccess(t *testing.T) {
	ctx := context.Background()
	f := newJobFixture()
	_, err := f.svc.Submit(ctx, domain.JobParams{CompanyName: "Acme", PullPublicData: true}, driving.JobFiles{
		Template: []byte("pptx"),
		Bundle:   []byte("zip"),
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.Process(ctx, "job-1"))

	job, err := f.svc.Status(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobDone, job.Status)
	assert.Equal(t, "IM generation completed successfully", job.Message)
	assert.Equal(t, "jobs/job-1/output.pptx", job.OutputKey)
	require.NotNil(t, job.Progress)
	assert.Equal(t, StepBuild, job.Progress.Step)

	deck, err := f.blobs.Get(ctx, job.OutputKey)
	require.NoError(t, err)
	assert.Equal(t, "deck for Acme", string(deck))

	require.Len(t, f.decks.requests, 1)
	req := f.decks.requests[0]
	assert.Equal(t, []byte("pptx"), req.Template)
	assert.Equal(t, []byte("zip"), req.Bundle)
	assert.Nil(t, req.Financials)
	assert.True(t, req.PullPublicData)
	assert.Equal(t, 1, f.metrics.finished["done"])
}

func TestJobService_ProcessMissingInputFails(t *testing.T) {
	ctx := context.Background()
	f := newJobFixture()
	job, err := f.svc.Submit(ctx, domain.JobParams{CompanyName: "Acme"}, driving.JobFiles{Template: []byte("pptx")})
	require.NoError(t, err)
	require.NoError(t, f.blobs.Delete(ctx, job.TemplateKey))

	err = f.svc.Process(ctx, "job-1")

	require.ErrorIs(t, err, domain.ErrBlobNotFound)
	stored, err := f.svc.Status(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobError, stored.Status)
	assert.Contains(t, stored.Message, "download template")
	assert.Zero(t, f.decks.calls())
	assert.Equal(t, 1, f.metrics.finished["error"])
}

func TestJobService_ProcessBuildError(t *testing.T) {
	ctx := context.Background()
	f := newJobFixture()
	f.decks.err = domain.ErrInvalidTemplate
	_, err := f.svc.Submit(ctx, domain.JobParams{CompanyName: "Acme"}, driving.JobFiles{Template: []byte("pptx")})
	require.NoError(t, err)

	err = f.svc.Process(ctx, "job-1")

	require.ErrorIs(t, err, domain.ErrInvalidTemplate)
	stored, _ := f.svc.Status(ctx, "job-1")
	assert.Equal(t, domain.JobError, stored.Status)
	assert.Empty(t, stored.OutputKey)
	ok, _ := f.blobs.Exists(ctx, domain.JobKey("job-1", domain.OutputFile))
	assert.False(t, ok)
}

func TestJobService_ProcessSkipsFinishedJob(t *testing.T) {
	ctx := context.Background()
	f := newJobFixture()
	_, err := f.svc.Submit(ctx, domain.JobParams{CompanyName: "Acme"}, driving.JobFiles{Template: []byte("pptx")})
	require.NoError(t, err)
	require.NoError(t, f.svc.Process(ctx, "job-1"))

	require.NoError(t, f.svc.Process(ctx, "job-1"))

	assert.Equal(t, 1, f.decks.calls())
	assert.Equal(t, 1, f.metrics.finished["done"])
}

func TestJobService_ProcessUnknownJob(t *testing.T) {
	err := newJobFixture().svc.Process(context.Background(), "nope")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestJobService_RunWorker(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newJobFixture()
	ids := []string{"a", "b", "c"}
	next := 0
	f.svc.newID = func() string {
		id := ids[next]
		next++
		return id
	}
	for range ids {
		_, err := f.svc.Submit(ctx, domain.JobParams{CompanyName: "Acme"}, driving.JobFiles{Template: []byte("pptx")})
		require.NoError(t, err)
	}

	done := make(chan error, 1)
	go func() { done <- f.svc.RunWorker(ctx, 2) }()

	require.Eventually(t, func() bool {
		for _, id := range ids {
			job, err := f.svc.Status(context.Background(), id)
			if err != nil || job.Status != domain.JobDone {
				return false
			}
		}
		return true
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
	assert.Equal(t, 3, f.decks.calls())
}

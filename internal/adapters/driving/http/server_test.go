package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/imdeck/internal/core/domain"
	"github.com/custodia-labs/imdeck/internal/core/ports/driving"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// serverMockJobs is a scripted driving.JobService.
type serverMockJobs struct {
	mu          sync.Mutex
	submitted   *domain.JobParams
	files       driving.JobFiles
	submitErr   error
	jobs        map[string]*domain.Job
	statusErr   error
	listLimit   int
	listErr     error
	urls        map[string]string
	downloadErr error
}

func newServerMockJobs() *serverMockJobs {
	return &serverMockJobs{jobs: map[string]*domain.Job{}, urls: map[string]string{}}
}

func (m *serverMockJobs) Submit(_ context.Context, params domain.JobParams, files driving.JobFiles) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.submitErr != nil {
		return nil, m.submitErr
	}
	m.submitted = &params
	m.files = files
	job := domain.NewJob("job-new", params, time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	return job, nil
}

func (m *serverMockJobs) Status(_ context.Context, id string) (*domain.Job, error) {
	if m.statusErr != nil {
		return nil, m.statusErr
	}
	job, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, domain.ErrNotFound)
	}
	return job, nil
}

func (m *serverMockJobs) List(_ context.Context, limit int) ([]domain.Job, error) {
	m.mu.Lock()
	m.listLimit = limit
	m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := []domain.Job{}
	for _, id := range []string{"job-2", "job-1"} {
		if job, ok := m.jobs[id]; ok {
			out = append(out, *job)
		}
	}
	return out, nil
}

func (m *serverMockJobs) DownloadURL(_ context.Context, id string) (string, error) {
	if m.downloadErr != nil {
		return "", m.downloadErr
	}
	url, ok := m.urls[id]
	if !ok {
		return "", fmt.Errorf("output of job %s: %w", id, domain.ErrNotFound)
	}
	return url, nil
}

func (m *serverMockJobs) Process(context.Context, string) error { return nil }

func (m *serverMockJobs) RunWorker(context.Context, int) error { return nil }

// serverMockDecks is a scripted driving.DeckService.
type serverMockDecks struct {
	analysis   *domain.TemplateAnalysis
	analyzeErr error
	tokens     []string
}

func (m *serverMockDecks) Analyze(context.Context, []byte) (*domain.TemplateAnalysis, error) {
	return m.analysis, m.analyzeErr
}

func (m *serverMockDecks) Inspect(context.Context, []byte) ([]string, error) {
	return m.tokens, nil
}

func (m *serverMockDecks) Build(context.Context, driving.BuildRequest, domain.ProgressFunc) ([]byte, error) {
	return nil, errors.New("not used")
}

type formFile struct {
	field, name string
	data        []byte
}

func multipartBody(t *testing.T, fields map[string]string, files ...formFile) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func do(t *testing.T, s *Server, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	var body map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") && strings.HasPrefix(rec.Body.String(), "{") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestServer_RootAndHealth(t *testing.T) {
	s := NewServer(newServerMockJobs(), &serverMockDecks{}, Config{Version: "1.2.3"})

	rec, body := do(t, s, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1.2.3", body["version"])

	rec, body = do(t, s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestServer_Metrics(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("imdeck_up 1\n"))
	})
	s := NewServer(newServerMockJobs(), &serverMockDecks{}, Config{Metrics: metrics})

	rec, _ := do(t, s, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "imdeck_up 1\n", rec.Body.String())
}

func TestServer_MetricsDisabled(t *testing.T) {
	s := NewServer(newServerMockJobs(), &serverMockDecks{}, Config{})

	rec, _ := do(t, s, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_CreateJob(t *testing.T) {
	jobs := newServerMockJobs()
	s := NewServer(jobs, &serverMockDecks{}, Config{})
	body, contentType := multipartBody(t,
		map[string]string{"company_name": " Acme ", "website": "acme.example", "pull_public_data": "false"},
		formFile{"template", "deck.PPTX", []byte("pptx")},
		formFile{"financials", "fin.xlsx", []byte("xlsx")},
	)
	req := httptest.NewRequest(http.MethodPost, "/jobs", body)
	req.Header.Set("Content-Type", contentType)

	rec, resp := do(t, s, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "job-new", resp["id"])
	assert.Equal(t, "queued", resp["status"])
	assert.Equal(t, "Job queued for processing", resp["message"])
	require.NotNil(t, jobs.submitted)
	assert.Equal(t, "Acme", jobs.submitted.CompanyName)
	assert.Equal(t, "acme.example", jobs.submitted.Website)
	assert.False(t, jobs.submitted.PullPublicData)
	assert.Equal(t, []byte("pptx"), jobs.files.Template)
	assert.Equal(t, []byte("xlsx"), jobs.files.Financials)
	assert.Nil(t, jobs.files.Bundle)
}

func TestServer_CreateJobDefaultsPullPublicData(t *testing.T) {
	jobs := newServerMockJobs()
	s := NewServer(jobs, &serverMockDecks{}, Config{})
	body, contentType := multipartBody(t,
		map[string]string{"company_name": "Acme"},
		formFile{"template", "t.pptx", []byte("pptx")},
	)
	req := httptest.NewRequest(http.MethodPost, "/jobs", body)
	req.Header.Set("Content-Type", contentType)

	rec, _ := do(t, s, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, jobs.submitted.PullPublicData)
}

func TestServer_CreateJobValidation(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
		files  []formFile
		status int
		detail string
	}{
		{
			name:   "missing company",
			fields: map[string]string{},
			files:  []formFile{{"template", "t.pptx", []byte("x")}},
			status: http.StatusBadRequest,
			detail: "company_name is required",
		},
		{
			name:   "missing template",
			fields: map[string]string{"company_name": "Acme"},
			status: http.StatusBadRequest,
			detail: "template file is required",
		},
		{
			name:   "template extension",
			fields: map[string]string{"company_name": "Acme"},
			files:  []formFile{{"template", "t.ppt", []byte("x")}},
			status: http.StatusBadRequest,
			detail: "Template must be a PowerPoint file (.pptx)",
		},
		{
			name:   "financials extension",
			fields: map[string]string{"company_name": "Acme"},
			files:  []formFile{{"template", "t.pptx", []byte("x")}, {"financials", "f.csv", []byte("x")}},
			status: http.StatusBadRequest,
			detail: "Financials must be an Excel file (.xlsx)",
		},
		{
			name:   "bundle extension",
			fields: map[string]string{"company_name": "Acme"},
			files:  []formFile{{"template", "t.pptx", []byte("x")}, {"bundle", "b.tar", []byte("x")}},
			status: http.StatusBadRequest,
			detail: "Bundle must be a ZIP file (.zip)",
		},
		{
			name:   "bad boolean",
			fields: map[string]string{"company_name": "Acme", "pull_public_data": "maybe"},
			files:  []formFile{{"template", "t.pptx", []byte("x")}},
			status: http.StatusBadRequest,
			detail: "pull_public_data must be a boolean",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(newServerMockJobs(), &serverMockDecks{}, Config{})
			body, contentType := multipartBody(t, tt.fields, tt.files...)
			req := httptest.NewRequest(http.MethodPost, "/jobs", body)
			req.Header.Set("Content-Type", contentType)

			rec, resp := do(t, s, req)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.detail, resp["detail"])
		})
	}
}

func TestServer_CreateJobTooLarge(t *testing.T) {
	s := NewServer(newServerMockJobs(), &serverMockDecks{}, Config{MaxUploadBytes: 4})
	body, contentType := multipartBody(t,
		map[string]string{"company_name": "Acme"},
		formFile{"template", "t.pptx", []byte("too large")},
	)
	req := httptest.NewRequest(http.MethodPost, "/jobs", body)
	req.Header.Set("Content-Type", contentType)

	rec, _ := do(t, s, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestServer_CreateJobServiceErrors(t *testing.T) {
	for _, tt := range []struct {
		err    error
		status int
	}{
		{err: fmt.Errorf("%w: template is required", domain.ErrInvalidInput), status: http.StatusBadRequest},
		{err: errors.New("blob store down"), status: http.StatusInternalServerError},
	} {
		jobs := newServerMockJobs()
		jobs.submitErr = tt.err
		s := NewServer(jobs, &serverMockDecks{}, Config{})
		body, contentType := multipartBody(t,
			map[string]string{"company_name": "Acme"},
			formFile{"template", "t.pptx", []byte("x")},
		)
		req := httptest.NewRequest(http.MethodPost, "/jobs", body)
		req.Header.Set("Content-Type", contentType)

		rec, resp := do(t, s, req)

		assert.Equal(t, tt.status, rec.Code)
		assert.Contains(t, resp["detail"], tt.err.Error())
	}
}

func TestServer_GetJob(t *testing.T) {
	jobs := newServerMockJobs()
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	running := domain.NewJob("run", domain.JobParams{CompanyName: "Acme"}, now)
	running.Status = domain.JobRunning
	running.Progress = &domain.Progress{Step: 3, Total: 6, Description: "Processing financial data..."}
	done := domain.NewJob("fin", domain.JobParams{CompanyName: "Acme"}, now)
	done.Status = domain.JobDone
	jobs.jobs["run"] = running
	jobs.jobs["fin"] = done
	jobs.urls["fin"] = "https://files.example/fin.pptx?sig=1"
	s := NewServer(jobs, &serverMockDecks{}, Config{})

	rec, resp := do(t, s, httptest.NewRequest(http.MethodGet, "/jobs/run", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "running", resp["status"])
	assert.NotContains(t, resp, "download_url")
	progress, ok := resp["progress"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 3, progress["step"])

	rec, resp = do(t, s, httptest.NewRequest(http.MethodGet, "/jobs/fin", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "done", resp["status"])
	assert.Equal(t, "https://files.example/fin.pptx?sig=1", resp["download_url"])
}

func TestServer_GetJobErrors(t *testing.T) {
	s := NewServer(newServerMockJobs(), &serverMockDecks{}, Config{})
	rec, resp := do(t, s, httptest.NewRequest(http.MethodGet, "/jobs/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Job not found", resp["detail"])

	jobs := newServerMockJobs()
	jobs.statusErr = errors.New("redis down")
	s = NewServer(jobs, &serverMockDecks{}, Config{})
	rec, _ = do(t, s, httptest.NewRequest(http.MethodGet, "/jobs/x", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServer_ListJobs(t *testing.T) {
	jobs := newServerMockJobs()
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	jobs.jobs["job-1"] = domain.NewJob("job-1", domain.JobParams{CompanyName: "One"}, now)
	jobs.jobs["job-2"] = domain.NewJob("job-2", domain.JobParams{CompanyName: "Two"}, now.Add(time.Minute))
	s := NewServer(jobs, &serverMockDecks{}, Config{ListLimit: 7})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var list []jobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "job-2", list[0].ID)
	assert.Equal(t, "Two", list[0].CompanyName)
	assert.Equal(t, 7, jobs.listLimit)
}

func TestServer_ListJobsLimit(t *testing.T) {
	jobs := newServerMockJobs()
	s := NewServer(jobs, &serverMockDecks{}, Config{})

	rec, _ := do(t, s, httptest.NewRequest(http.MethodGet, "/jobs?limit=3", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, jobs.listLimit)

	rec, _ = do(t, s, httptest.NewRequest(http.MethodGet, "/jobs?limit=-1", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Download(t *testing.T) {
	jobs := newServerMockJobs()
	jobs.urls["done"] = "https://files.example/out.pptx"
	s := NewServer(jobs, &serverMockDecks{}, Config{})

	rec, resp := do(t, s, httptest.NewRequest(http.MethodGet, "/download/done", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://files.example/out.pptx", resp["url"])

	rec, resp = do(t, s, httptest.NewRequest(http.MethodGet, "/download/pending", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "IM not found or not yet generated", resp["detail"])
}

func TestServer_DownloadError(t *testing.T) {
	jobs := newServerMockJobs()
	jobs.downloadErr = errors.New("presign failed")
	s := NewServer(jobs, &serverMockDecks{}, Config{})

	rec, _ := do(t, s, httptest.NewRequest(http.MethodGet, "/download/x", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServer_InspectTemplate(t *testing.T) {
	decks := &serverMockDecks{
		analysis: &domain.TemplateAnalysis{
			SlideDefs: []domain.SlideDef{{SlideIndex: 0, Title: "Overview", Tokens: []string{"{{COMPANY_NAME}}"}}},
			ChartTokens: []domain.ChartToken{},
			StyleMap:    map[string]string{"layout": "Title Slide"},
		},
		tokens: []string{"{{COMPANY_NAME}}"},
	}
	s := NewServer(newServerMockJobs(), decks, Config{})
	body, contentType := multipartBody(t, nil, formFile{"template", "t.pptx", []byte("x")})
	req := httptest.NewRequest(http.MethodPost, "/inspect-template", body)
	req.Header.Set("Content-Type", contentType)

	rec, resp := do(t, s, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []any{"{{COMPANY_NAME}}"}, resp["tokens"])
	defs, ok := resp["slide_defs"].([]any)
	require.True(t, ok)
	require.Len(t, defs, 1)
	assert.Equal(t, "Overview", defs[0].(map[string]any)["title"])
	assert.Equal(t, map[string]any{"layout": "Title Slide"}, resp["style_map"])
}

func TestServer_InspectTemplateInvalid(t *testing.T) {
	decks := &serverMockDecks{analyzeErr: fmt.Errorf("%w: zip: not a valid zip file", domain.ErrInvalidTemplate)}
	s := NewServer(newServerMockJobs(), decks, Config{})
	body, contentType := multipartBody(t, nil, formFile{"template", "t.pptx", []byte("x")})
	req := httptest.NewRequest(http.MethodPost, "/inspect-template", body)
	req.Header.Set("Content-Type", contentType)

	rec, _ := do(t, s, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_MethodNotAllowed(t *testing.T) {
	s := NewServer(newServerMockJobs(), &serverMockDecks{}, Config{})

	rec, _ := do(t, s, httptest.NewRequest(http.MethodDelete, "/jobs", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServer_RunShutsDown(t *testing.T) {
	s := NewServer(newServerMockJobs(), &serverMockDecks{}, Config{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, "127.0.0.1:0") }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

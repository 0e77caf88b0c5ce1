package http

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/custodia-labs/imdeck/internal/core/domain"
	"github.com/custodia-labs/imdeck/internal/core/ports/driving"
)

// jobResponse is the API view of a job.
type jobResponse struct {
	ID          string           `json:"id"`
	CompanyName string           `json:"company_name"`
	Website     string           `json:"website,omitempty"`
	Status      domain.JobStatus `json:"status"`
	Message     string           `json:"message"`
	DownloadURL string           `json:"download_url,omitempty"`
	Progress    *domain.Progress `json:"progress,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

func newJobResponse(job *domain.Job, downloadURL string) jobResponse {
	return jobResponse{
		ID:          job.ID,
		CompanyName: job.CompanyName,
		Website:     job.Website,
		Status:      job.Status,
		Message:     job.Message,
		DownloadURL: downloadURL,
		Progress:    job.Progress,
		CreatedAt:   job.CreatedAt,
		UpdatedAt:   job.UpdatedAt,
	}
}

// errUploadTooLarge marks an upload over the size limit.
var errUploadTooLarge = errors.New("upload too large")

func abortWithDetail(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "imdeck API is running", "version": s.cfg.Version})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleCreateJob(c *gin.Context) {
	company := strings.TrimSpace(c.PostForm("company_name"))
	if company == "" {
		abortWithDetail(c, http.StatusBadRequest, "company_name is required")
		return
	}

	pull := true
	if raw := strings.TrimSpace(c.PostForm("pull_public_data")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			abortWithDetail(c, http.StatusBadRequest, "pull_public_data must be a boolean")
			return
		}
		pull = v
	}

	template, ok := s.upload(c, "template", ".pptx", "Template must be a PowerPoint file (.pptx)", true)
	if !ok {
		return
	}
	financials, ok := s.upload(c, "financials", ".xlsx", "Financials must be an Excel file (.xlsx)", false)
	if !ok {
		return
	}
	bundle, ok := s.upload(c, "bundle", ".zip", "Bundle must be a ZIP file (.zip)", false)
	if !ok {
		return
	}

	job, err := s.jobs.Submit(c.Request.Context(), domain.JobParams{
		CompanyName:    company,
		Website:        strings.TrimSpace(c.PostForm("website")),
		PullPublicData: pull,
	}, driving.JobFiles{Template: template, Financials: financials, Bundle: bundle})
	if err != nil {
		_ = c.Error(err)
		if errors.Is(err, domain.ErrInvalidInput) {
			abortWithDetail(c, http.StatusBadRequest, err.Error())
			return
		}
		abortWithDetail(c, http.StatusInternalServerError, "Failed to create job: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, newJobResponse(job, ""))
}

// upload reads a multipart file field. It writes the error response and
// returns false when the request must stop.
func (s *Server) upload(c *gin.Context, field, ext, badExt string, required bool) ([]byte, bool) {
	fh, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) && !required {
			return nil, true
		}
		abortWithDetail(c, http.StatusBadRequest, field+" file is required")
		return nil, false
	}
	if !strings.EqualFold(filepath.Ext(fh.Filename), ext) {
		abortWithDetail(c, http.StatusBadRequest, badExt)
		return nil, false
	}

	data, err := readUpload(fh, s.cfg.MaxUploadBytes)
	if err != nil {
		if errors.Is(err, errUploadTooLarge) {
			abortWithDetail(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("%s exceeds %d bytes", field, s.cfg.MaxUploadBytes))
			return nil, false
		}
		abortWithDetail(c, http.StatusBadRequest, "could not read "+field)
		return nil, false
	}
	return data, true
}

func readUpload(fh *multipart.FileHeader, limit int64) ([]byte, error) {
	if fh.Size > limit {
		return nil, errUploadTooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, errUploadTooLarge
	}
	return data, nil
}

func (s *Server) handleListJobs(c *gin.Context) {
	limit := s.cfg.ListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			abortWithDetail(c, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	jobs, err := s.jobs.List(c.Request.Context(), limit)
	if err != nil {
		_ = c.Error(err)
		abortWithDetail(c, http.StatusInternalServerError, "Failed to list jobs: "+err.Error())
		return
	}

	out := make([]jobResponse, 0, len(jobs))
	for i := range jobs {
		out = append(out, newJobResponse(&jobs[i], s.downloadURL(c, &jobs[i])))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetJob(c *gin.Context) {
	job, err := s.jobs.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			abortWithDetail(c, http.StatusNotFound, "Job not found")
			return
		}
		_ = c.Error(err)
		abortWithDetail(c, http.StatusInternalServerError, "Failed to get job status: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, newJobResponse(job, s.downloadURL(c, job)))
}

// downloadURL presigns the output of a finished job, empty otherwise.
func (s *Server) downloadURL(c *gin.Context, job *domain.Job) string {
	if job.Status != domain.JobDone {
		return ""
	}
	url, err := s.jobs.DownloadURL(c.Request.Context(), job.ID)
	if err != nil {
		_ = c.Error(err)
		return ""
	}
	return url
}

func (s *Server) handleDownload(c *gin.Context) {
	url, err := s.jobs.DownloadURL(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrBlobNotFound) {
			abortWithDetail(c, http.StatusNotFound, "IM not found or not yet generated")
			return
		}
		_ = c.Error(err)
		abortWithDetail(c, http.StatusInternalServerError, "Failed to get download URL: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (s *Server) handleInspectTemplate(c *gin.Context) {
	template, ok := s.upload(c, "template", ".pptx", "Template must be a PowerPoint file (.pptx)", true)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	analysis, err := s.decks.Analyze(ctx, template)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTemplate) {
			abortWithDetail(c, http.StatusBadRequest, err.Error())
			return
		}
		_ = c.Error(err)
		abortWithDetail(c, http.StatusInternalServerError, "Failed to inspect template: "+err.Error())
		return
	}
	tokens, err := s.decks.Inspect(ctx, template)
	if err != nil {
		_ = c.Error(err)
		abortWithDetail(c, http.StatusInternalServerError, "Failed to inspect template: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tokens":       tokens,
		"slide_defs":   analysis.SlideDefs,
		"chart_tokens": analysis.ChartTokens,
		"style_map":    analysis.StyleMap,
	})
}

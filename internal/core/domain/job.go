package domain

import (
	"fmt"
	"time"
)

// JobStatus is the lifecycle state of a generation job.
type JobStatus string

// Job statuses. DONE and ERROR are terminal.
const (
	JobQueued  JobStatus = "queued"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobError   JobStatus = "error"
)

// Terminal reports whether no further transition is allowed.
func (s JobStatus) Terminal() bool {
	return s == JobDone || s == JobError
}

// Valid reports whether s is a known status.
func (s JobStatus) Valid() bool {
	switch s {
	case JobQueued, JobRunning, JobDone, JobError:
		return true
	}
	return false
}

// CanTransition reports whether a job may move from one status to another.
// RUNNING to RUNNING is allowed so progress can be recorded.
func CanTransition(from, to JobStatus) bool {
	switch from {
	case JobQueued:
		return to == JobRunning || to == JobError
	case JobRunning:
		return to == JobRunning || to == JobDone || to == JobError
	default:
		return false
	}
}

// Progress is a coarse pipeline progress event.
type Progress struct {
	// Step is the 1-based current step.
	Step int `json:"step"`

	// Total is the number of steps in the pipeline.
	Total int `json:"total"`

	// Description says what the step does.
	Description string `json:"description"`
}

// ProgressFunc receives progress events while a deck is produced.
type ProgressFunc func(Progress)

// JobParams are the inputs a job is submitted with.
type JobParams struct {
	// CompanyName is the company the memorandum is about.
	CompanyName string `json:"company_name"`

	// Website is the company website, optional.
	Website string `json:"website,omitempty"`

	// PullPublicData enables logo and intelligence fetching.
	PullPublicData bool `json:"pull_public_data"`

	// TemplateKey is the blob key of the template presentation.
	TemplateKey string `json:"template_key"`

	// FinancialsKey is the blob key of the financials workbook, optional.
	FinancialsKey string `json:"financials_key,omitempty"`

	// BundleKey is the blob key of the document archive, optional.
	BundleKey string `json:"bundle_key,omitempty"`
}

// Job is one end-to-end generation request.
type Job struct {
	// ID is the unique identifier for the job.
	ID string `json:"id"`

	JobParams

	// Status is the lifecycle state.
	Status JobStatus `json:"status"`

	// Message is a human-readable status line. On ERROR it carries the cause.
	Message string `json:"message"`

	// OutputKey is the blob key of the generated deck once DONE.
	OutputKey string `json:"output_key,omitempty"`

	// Progress is the last reported pipeline step.
	Progress *Progress `json:"progress,omitempty"`

	// CreatedAt is when the job was submitted.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the job last changed.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewJob creates a queued job.
func NewJob(id string, params JobParams, now time.Time) *Job {
	return &Job{
		ID:        id,
		JobParams: params,
		Status:    JobQueued,
		Message:   "Job queued for processing",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Transition moves the job to status with message.
func (j *Job) Transition(to JobStatus, message string, now time.Time) error {
	if j.Status.Terminal() {
		return fmt.Errorf("%w: %s", ErrJobTerminal, j.Status)
	}
	if !CanTransition(j.Status, to) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, j.Status, to)
	}
	j.Status = to
	j.Message = message
	j.UpdatedAt = now
	return nil
}

// Blob key layout for job files.
const (
	TemplateFile   = "template.pptx"
	FinancialsFile = "financials.xlsx"
	BundleFile     = "bundle.zip"
	OutputFile     = "output.pptx"
)

// JobKey returns the blob key of a file belonging to a job.
func JobKey(jobID, file string) string {
	return "jobs/" + jobID + "/" + file
}

// Content types of job files.
const (
	ContentTypePPTX = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypeZIP  = "application/zip"
)

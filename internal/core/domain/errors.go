package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates a file type no parser handles.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrInvalidTemplate indicates the template bytes are not a presentation.
	// This is the only analysis or assembly failure that aborts a job.
	ErrInvalidTemplate = errors.New("invalid presentation template")

	// ErrLLMUnavailable indicates the completion service is not configured.
	// Drafting falls back to templated content without it.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrMalformedResponse indicates a completion reply could not be parsed.
	ErrMalformedResponse = errors.New("malformed completion response")

	// Job Errors.

	// ErrJobTerminal indicates a job already reached DONE or ERROR.
	ErrJobTerminal = errors.New("job is in a terminal state")

	// ErrInvalidTransition indicates a status change the job lifecycle forbids.
	ErrInvalidTransition = errors.New("invalid job status transition")

	// Collaborator Errors.

	// ErrBlobNotFound indicates a key is absent from the blob store.
	ErrBlobNotFound = errors.New("blob not found")

	// ErrLogoNotFound indicates no logo source produced a usable image.
	ErrLogoNotFound = errors.New("logo not found")
)

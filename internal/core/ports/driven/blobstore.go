package driven

import (
	"context"
	"time"
)

// BlobStore stores job inputs and outputs under string keys
// such as "jobs/<id>/template.pptx".
type BlobStore interface {
	// Put stores data under key, replacing any existing object.
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// Get returns the object stored under key.
	// Returns domain.ErrBlobNotFound if the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Exists reports whether an object is stored under key.
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes the object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// PresignGet returns a URL that grants read access to key for ttl.
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

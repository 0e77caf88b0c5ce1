package memory

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/custodia-labs/imdeck/internal/core/domain"
	"github.com/custodia-labs/imdeck/internal/core/ports/driven"
)

// Ensure BlobStore implements the interface.
var _ driven.BlobStore = (*BlobStore)(nil)

type blob struct {
	data        []byte
	contentType string
}

// BlobStore is an in-memory implementation of driven.BlobStore.
type BlobStore struct {
	mu    sync.RWMutex
	blobs map[string]blob
	now   func() time.Time
}

// NewBlobStore creates a new in-memory blob store.
func NewBlobStore() *BlobStore {
	return &BlobStore{
		blobs: make(map[string]blob),
		now:   time.Now,
	}
}

// Put stores a copy of data under key.
func (s *BlobStore) Put(_ context.Context, key string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = blob{data: append([]byte(nil), data...), contentType: contentType}
	return nil
}

// Get returns a copy of the blob.
func (s *BlobStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blobs[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, domain.ErrBlobNotFound)
	}
	return append([]byte(nil), b.data...), nil
}

// Exists reports whether key is stored.
func (s *BlobStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blobs[key]
	return ok, nil
}

// Delete removes a blob. Deleting a missing key is not an error.
func (s *BlobStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, key)
	return nil
}

// PresignGet returns a memory:// URL carrying the expiry time.
func (s *BlobStore) PresignGet(_ context.Context, key string, ttl time.Duration) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.blobs[key]; !ok {
		return "", fmt.Errorf("%s: %w", key, domain.ErrBlobNotFound)
	}
	q := url.Values{"expires": {s.now().Add(ttl).UTC().Format(time.RFC3339)}}
	return "memory://" + key + "?" + q.Encode(), nil
}

// ContentType returns the content type a blob was stored with.
func (s *BlobStore) ContentType(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.blobs[key].contentType
}

// Len returns the number of stored blobs.
func (s *BlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}

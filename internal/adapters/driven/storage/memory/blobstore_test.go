package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/imdeck/internal/core/domain"
)

func TestBlobStore_PutGet(t *testing.T) {
	ctx := context.Background()
	store := NewBlobStore()
	data := []byte("deck")

	require.NoError(t, store.Put(ctx, "jobs/1/output.pptx", data, domain.ContentTypePPTX))
	data[0] = 'X'

	got, err := store.Get(ctx, "jobs/1/output.pptx")
	require.NoError(t, err)
	assert.Equal(t, "deck", string(got))
	assert.Equal(t, domain.ContentTypePPTX, store.ContentType("jobs/1/output.pptx"))

	ok, err := store.Exists(ctx, "jobs/1/output.pptx")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBlobStore_Missing(t *testing.T) {
	ctx := context.Background()
	store := NewBlobStore()

	_, err := store.Get(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrBlobNotFound)

	ok, err := store.Exists(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.PresignGet(ctx, "nope", time.Minute)
	assert.ErrorIs(t, err, domain.ErrBlobNotFound)
}

func TestBlobStore_DeleteAndPresign(t *testing.T) {
	ctx := context.Background()
	store := NewBlobStore()
	store.now = func() time.Time { return time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC) }
	require.NoError(t, store.Put(ctx, "a/b.pptx", []byte("x"), ""))

	url, err := store.PresignGet(ctx, "a/b.pptx", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "memory://a/b.pptx?expires=2025-01-01T13%3A00%3A00Z", url)

	require.NoError(t, store.Delete(ctx, "a/b.pptx"))
	require.NoError(t, store.Delete(ctx, "a/b.pptx"))
	assert.Zero(t, store.Len())
}

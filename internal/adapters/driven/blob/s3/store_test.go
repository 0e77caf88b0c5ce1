package s3

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/imdeck/internal/core/domain"
)

const testBucket = "imdeck-test"

// fakeS3 is a minimal path-style S3 server.
type fakeS3 struct {
	mu           sync.Mutex
	buckets      map[string]bool
	objects      map[string][]byte
	contentTypes map[string]string
	failWith     int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{
		buckets:      map[string]bool{testBucket: true},
		objects:      make(map[string][]byte),
		contentTypes: make(map[string]string),
	}
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failWith != 0 {
		w.WriteHeader(f.failWith)
		return
	}

	bucket, key, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
	if key == "" {
		f.serveBucket(w, r, bucket)
		return
	}
	if !f.buckets[bucket] {
		writeS3Error(w, r, http.StatusNotFound, "NoSuchBucket")
		return
	}

	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[key] = body
		f.contentTypes[key] = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	case http.MethodGet, http.MethodHead:
		data, ok := f.objects[key]
		if !ok {
			writeS3Error(w, r, http.StatusNotFound, "NoSuchKey")
			return
		}
		w.Header().Set("Content-Type", f.contentTypes[key])
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			_, _ = w.Write(data)
		}
	case http.MethodDelete:
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeS3) serveBucket(w http.ResponseWriter, r *http.Request, bucket string) {
	switch r.Method {
	case http.MethodHead:
		if !f.buckets[bucket] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case http.MethodPut:
		f.buckets[bucket] = true
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeS3) object(key string) ([]byte, string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	return data, f.contentTypes[key], ok
}

func (f *fakeS3) hasBucket(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buckets[name]
}

func (f *fakeS3) fail(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWith = status
}

func writeS3Error(w http.ResponseWriter, r *http.Request, status int, code string) {
	if r.Method == http.MethodHead {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>`+code+`</Code><Message>not found</Message></Error>`)
}

func newTestStore(t *testing.T, mutate func(*Config)) (*Store, *fakeS3, *httptest.Server) {
	t.Helper()
	fake := newFakeS3()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	cfg := Config{
		Bucket:    testBucket,
		Endpoint:  server.URL,
		AccessKey: "test-access",
		SecretKey: "test-secret",
	}
	if mutate != nil {
		mutate(&cfg)
	}
	store, err := New(cfg)
	require.NoError(t, err)
	return store, fake, server
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "missing bucket", cfg: Config{Bucket: "  "}},
		{name: "access key without secret", cfg: Config{Bucket: "b", AccessKey: "ak"}},
		{name: "secret without access key", cfg: Config{Bucket: "b", SecretKey: "sk"}},
		{name: "bad endpoint", cfg: Config{Bucket: "b", Endpoint: "http://"}},
		{name: "bad public endpoint", cfg: Config{Bucket: "b", PublicEndpoint: "https://"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := New(tt.cfg)

			assert.ErrorIs(t, err, domain.ErrInvalidInput)
			assert.Nil(t, store)
		})
	}
}

func TestNew_AnonymousAndDefaults(t *testing.T) {
	store, err := New(Config{Bucket: "public-assets"})

	require.NoError(t, err)
	assert.Equal(t, "public-assets", store.bucket)
}

func TestNormalizeEndpoint(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: ""},
		{in: "minio.local:9000", want: "https://minio.local:9000"},
		{in: "http://127.0.0.1:9000/", want: "http://127.0.0.1:9000"},
		{in: " https://s3.eu-west-1.amazonaws.com ", want: "https://s3.eu-west-1.amazonaws.com"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := normalizeEndpoint(tt.in)

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStore_PutGet(t *testing.T) {
	store, fake, _ := newTestStore(t, nil)
	ctx := context.Background()

	err := store.Put(ctx, "jobs/abc/input.pptx", []byte("deck bytes"), "application/vnd.openxmlformats-officedocument.presentationml.presentation")
	require.NoError(t, err)

	data, contentType, ok := fake.object("jobs/abc/input.pptx")
	require.True(t, ok)
	assert.Equal(t, []byte("deck bytes"), data)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.presentationml.presentation", contentType)

	got, err := store.Get(ctx, "jobs/abc/input.pptx")
	require.NoError(t, err)
	assert.Equal(t, []byte("deck bytes"), got)
}

func TestStore_PutDefaultContentType(t *testing.T) {
	store, fake, _ := newTestStore(t, nil)

	require.NoError(t, store.Put(context.Background(), "k", []byte("x"), ""))

	_, contentType, ok := fake.object("k")
	require.True(t, ok)
	assert.Equal(t, "application/octet-stream", contentType)
}

func TestStore_GetMissing(t *testing.T) {
	store, _, _ := newTestStore(t, nil)

	_, err := store.Get(context.Background(), "jobs/missing/output.pptx")

	assert.ErrorIs(t, err, domain.ErrBlobNotFound)
}

func TestStore_Exists(t *testing.T) {
	store, _, _ := newTestStore(t, nil)
	ctx := context.Background()

	ok, err := store.Exists(ctx, "jobs/x/output.pptx")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Put(ctx, "jobs/x/output.pptx", []byte("x"), ""))

	ok, err = store.Exists(ctx, "jobs/x/output.pptx")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStore_Delete(t *testing.T) {
	store, fake, _ := newTestStore(t, nil)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "k", []byte("x"), ""))

	require.NoError(t, store.Delete(ctx, "k"))
	_, _, ok := fake.object("k")
	assert.False(t, ok)

	assert.NoError(t, store.Delete(ctx, "k"))
}

func TestStore_ServerError(t *testing.T) {
	store, fake, _ := newTestStore(t, nil)
	fake.fail(http.StatusForbidden)
	ctx := context.Background()

	_, err := store.Get(ctx, "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrBlobNotFound)

	_, err = store.Exists(ctx, "k")
	assert.Error(t, err)

	assert.Error(t, store.Put(ctx, "k", []byte("x"), ""))
}

func TestStore_PresignGet(t *testing.T) {
	store, _, server := newTestStore(t, nil)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "jobs/abc/output.pptx", []byte("deck"), ""))

	raw, err := store.PresignGet(ctx, "jobs/abc/output.pptx", 15*time.Minute)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	serverURL, _ := url.Parse(server.URL)
	assert.Equal(t, serverURL.Host, u.Host)
	assert.Equal(t, "/"+testBucket+"/jobs/abc/output.pptx", u.Path)
	assert.Equal(t, "900", u.Query().Get("X-Amz-Expires"))
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))

	resp, err := http.Get(raw)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "deck", string(body))
}

func TestStore_PresignGetPublicEndpoint(t *testing.T) {
	store, _, _ := newTestStore(t, func(cfg *Config) {
		cfg.PublicEndpoint = "https://files.example.com"
	})
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "k.pptx", []byte("x"), ""))

	raw, err := store.PresignGet(ctx, "k.pptx", time.Minute)

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(raw, "https://files.example.com/"+testBucket+"/k.pptx?"), raw)
}

func TestStore_PresignGetMissing(t *testing.T) {
	store, _, _ := newTestStore(t, nil)

	_, err := store.PresignGet(context.Background(), "nope", time.Minute)

	assert.ErrorIs(t, err, domain.ErrBlobNotFound)
}

func TestStore_EnsureBucket(t *testing.T) {
	store, fake, _ := newTestStore(t, func(cfg *Config) {
		cfg.Bucket = "fresh-bucket"
	})
	ctx := context.Background()

	require.NoError(t, store.EnsureBucket(ctx))
	assert.True(t, fake.hasBucket("fresh-bucket"))

	require.NoError(t, store.EnsureBucket(ctx))
}

func TestStore_MissingBucket(t *testing.T) {
	store, _, _ := newTestStore(t, func(cfg *Config) {
		cfg.Bucket = "absent"
	})

	_, err := store.Get(context.Background(), "k")

	assert.ErrorIs(t, err, domain.ErrBlobNotFound)
}

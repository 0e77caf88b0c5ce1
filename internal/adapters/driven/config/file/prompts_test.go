package file

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/imdeck/internal/core/ports/driven"
)

const testDraftPrompt = "Reply with a JSON array of slides."

func newTestPromptStore(t *testing.T, dir string) *PromptStore {
	t.Helper()
	store, err := NewPromptStore(dir, map[string]string{driven.PromptDraftSystem: testDraftPrompt})
	require.NoError(t, err)
	return store
}

func writePrompt(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "draft_system.txt"), []byte(content), 0600))
}

func TestNewPromptStore_WithCustomDir(t *testing.T) {
	dir := t.TempDir()

	store := newTestPromptStore(t, dir)

	assert.Equal(t, dir, store.Dir())
}

func TestNewPromptStore_DefaultDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	store, err := NewPromptStore("", nil)

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".imdeck", "prompts"), store.Dir())
}

func TestPromptStore_Load_CreatesDefaultFiles(t *testing.T) {
	dir := t.TempDir()
	store := newTestPromptStore(t, dir)

	prompt, err := store.Load(driven.PromptDraftSystem)

	require.NoError(t, err)
	assert.Equal(t, testDraftPrompt, prompt)
	for _, f := range []string{"draft_system.txt", "README.md"} {
		_, err := os.Stat(filepath.Join(dir, f))
		assert.NoError(t, err, "expected file %s to exist", f)
	}
}

func TestPromptStore_Load_ReturnsCustomContent(t *testing.T) {
	dir := t.TempDir()
	writePrompt(t, dir, "\n\n  Be brief. Reply as JSON.  \n")
	store := newTestPromptStore(t, dir)

	prompt, err := store.Load(driven.PromptDraftSystem)

	require.NoError(t, err)
	assert.Equal(t, "Be brief. Reply as JSON.", prompt)
}

func TestPromptStore_DoesNotOverwriteExistingFiles(t *testing.T) {
	dir := t.TempDir()
	writePrompt(t, dir, "pre-existing custom prompt")
	store := newTestPromptStore(t, dir)

	_, err := store.Load(driven.PromptDraftSystem)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "draft_system.txt"))
	require.NoError(t, err)
	assert.Equal(t, "pre-existing custom prompt", string(data))
}

func TestPromptStore_Load_FallsBackToDefault(t *testing.T) {
	dir := t.TempDir()
	store := newTestPromptStore(t, dir)
	_, _ = store.Load(driven.PromptDraftSystem)
	require.NoError(t, os.Remove(filepath.Join(dir, "draft_system.txt")))
	store.Reload()

	prompt, err := store.Load(driven.PromptDraftSystem)

	require.NoError(t, err)
	assert.Equal(t, testDraftPrompt, prompt)
}

func TestPromptStore_Load_InitFailureUsesDefaults(t *testing.T) {
	store := newTestPromptStore(t, "/dev/null/prompts")

	prompt, err := store.Load(driven.PromptDraftSystem)
	require.NoError(t, err)
	assert.Equal(t, testDraftPrompt, prompt)

	_, err = store.Load("unknown")
	assert.Error(t, err)
}

func TestPromptStore_Load_UnknownPrompt(t *testing.T) {
	store := newTestPromptStore(t, t.TempDir())

	_, err := store.Load("nonexistent_prompt")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "nonexistent_prompt")
}

func TestPromptStore_CacheAndReload(t *testing.T) {
	dir := t.TempDir()
	store := newTestPromptStore(t, dir)
	first, err := store.Load(driven.PromptDraftSystem)
	require.NoError(t, err)

	writePrompt(t, dir, "edited prompt")
	cached, err := store.Load(driven.PromptDraftSystem)
	require.NoError(t, err)
	assert.Equal(t, first, cached)

	store.Reload()
	fresh, err := store.Load(driven.PromptDraftSystem)
	require.NoError(t, err)
	assert.Equal(t, "edited prompt", fresh)
}

func TestPromptStore_Load_ConcurrentAccess(t *testing.T) {
	store := newTestPromptStore(t, t.TempDir())

	const goroutines = 50
	var wg sync.WaitGroup
	results := make(chan string, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			prompt, err := store.Load(driven.PromptDraftSystem)
			if err == nil {
				results <- prompt
			}
		}()
	}
	wg.Wait()
	close(results)

	count := 0
	for prompt := range results {
		assert.Equal(t, testDraftPrompt, prompt)
		count++
	}
	assert.Equal(t, goroutines, count)
}

package cli

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCmd_Use(t *testing.T) {
	assert.Equal(t, "build", buildCmd.Use)
}

func TestBuildCmd_Short(t *testing.T) {
	assert.Equal(t, "Build a deck from local files", buildCmd.Short)
}

func TestBuildCmd_RequiresTemplateAndCompany(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute("build", "--company", "Acme")

	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "template" not set`)
}

func TestBuildCmd_WritesDeck(t *testing.T) {
	mocks, cleanup := setupTestServices()
	defer cleanup()

	dir := t.TempDir()
	financials := filepath.Join(dir, "acme.xlsx")
	require.NoError(t, os.WriteFile(financials, []byte("xlsx"), 0o600))
	output := filepath.Join(dir, "out", "acme-im.pptx")

	out, err := execute("build",
		"--template", writeTemplate(t),
		"--company", "Acme GmbH",
		"--website", "https://acme.example",
		"--financials", financials,
		"--output", output,
	)

	require.NoError(t, err)
	assert.Contains(t, out, "[1/6] Downloading template...")
	assert.Contains(t, out, "✓ Wrote "+output)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, "deck-bytes", string(data))

	req := mocks.decks.lastReq
	assert.Equal(t, "Acme GmbH", req.CompanyName)
	assert.Equal(t, "https://acme.example", req.Website)
	assert.Equal(t, []byte("PK-template"), req.Template)
	assert.Equal(t, []byte("xlsx"), req.Financials)
	assert.Nil(t, req.Bundle)
	assert.Nil(t, req.Logo)
	assert.True(t, req.PullPublicData)
	assert.Equal(t, "{{CHART_PLACEHOLDER}}", req.Chart.PlaceholderToken)
}

func TestBuildCmd_NoPublicData(t *testing.T) {
	mocks, cleanup := setupTestServices()
	defer cleanup()

	output := filepath.Join(t.TempDir(), "im.pptx")
	_, err := execute("build", "--template", writeTemplate(t), "--company", "Acme", "--no-public-data", "-o", output)

	require.NoError(t, err)
	assert.False(t, mocks.decks.lastReq.PullPublicData)
}

func TestBuildCmd_MissingOptionalInput(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute("build",
		"--template", writeTemplate(t),
		"--company", "Acme",
		"--bundle", filepath.Join(t.TempDir(), "missing.zip"),
	)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "read bundle")
}

func TestBuildCmd_BuildFails(t *testing.T) {
	mocks, cleanup := setupTestServices()
	defer cleanup()
	mocks.decks.err = errors.New("template is not a presentation")

	output := filepath.Join(t.TempDir(), "im.pptx")
	_, err := execute("build", "--template", writeTemplate(t), "--company", "Acme", "-o", output)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "build failed")
	assert.NoFileExists(t, output)
}

func TestReadOptional(t *testing.T) {
	data, err := readOptional("")
	assert.NoError(t, err)
	assert.Nil(t, data)

	path := filepath.Join(t.TempDir(), "a.bin")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
	data, err = readOptional(path)
	assert.NoError(t, err)
	assert.Equal(t, []byte("x"), data)
}

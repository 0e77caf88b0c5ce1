package plaintext

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/imdeck/internal/core/domain"
	"github.com/custodia-labs/imdeck/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.DocumentParser = (*Normaliser)(nil)

// Normaliser handles plain text documents.
type Normaliser struct{}

// New creates a new plain text normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// Extensions returns the file extensions this normaliser handles.
func (n *Normaliser) Extensions() []string {
	return []string{".txt", ".text", ".csv", ".log"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 5 // Fallback normaliser
}

// Parse returns the whole file as one text chunk. Invalid UTF-8 is dropped.
func (n *Normaliser) Parse(_ context.Context, name string, data []byte) ([]domain.DocChunk, error) {
	if data == nil {
		return nil, domain.ErrInvalidInput
	}

	text := strings.TrimSpace(strings.ToValidUTF8(string(data), ""))
	if text == "" {
		return nil, nil
	}

	return []domain.DocChunk{{
		Text:       text,
		SourceFile: name,
		PageNumber: 1,
		PageCount:  1,
		ChunkType:  domain.ChunkText,
		Metadata: map[string]any{
			"file_type": fileType(name),
			"encoding":  "utf-8",
			"title":     Title(name),
		},
	}}, nil
}

func fileType(name string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if ext == "" || ext == "text" {
		return "txt"
	}
	return ext
}

// Title derives a human-readable title from a file name.
func Title(name string) string {
	// Get filename from path
	filename := filepath.Base(name)

	// Remove the extension for a cleaner title
	if ext := filepath.Ext(filename); ext != "" {
		filename = strings.TrimSuffix(filename, ext)
	}

	// Replace underscores and dashes with spaces
	filename = strings.ReplaceAll(filename, "_", " ")
	filename = strings.ReplaceAll(filename, "-", " ")

	return filename
}

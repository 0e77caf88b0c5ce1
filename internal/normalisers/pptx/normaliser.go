// Package pptx provides a DocumentParser for PowerPoint presentations.
package pptx

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/imdeck/internal/core/domain"
	"github.com/custodia-labs/imdeck/internal/core/ports/driven"
	"github.com/custodia-labs/imdeck/internal/logger"
	"github.com/custodia-labs/imdeck/internal/pptx"
)

// Ensure Normaliser implements the interface.
var _ driven.DocumentParser = (*Normaliser)(nil)

// Normaliser handles PPTX presentations.
type Normaliser struct{}

// New creates a new PPTX normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// Extensions returns the file extensions this normaliser handles.
func (n *Normaliser) Extensions() []string {
	return []string{".pptx"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Parse returns one slide chunk per slide that carries text. Shape texts
// are joined by a space.
func (n *Normaliser) Parse(ctx context.Context, name string, data []byte) ([]domain.DocChunk, error) {
	pres, err := pptx.Open(data)
	if err != nil {
		return nil, fmt.Errorf("%w: open pptx: %v", domain.ErrInvalidInput, err)
	}

	var chunks []domain.DocChunk
	for _, slide := range pres.Slides() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		shapes, err := slide.Shapes()
		if err != nil {
			logger.Warn("PPTX %s: slide %d skipped: %v", name, slide.Index+1, err)
			continue
		}

		var parts []string
		for _, sh := range shapes {
			if !sh.HasText() {
				continue
			}
			if text := strings.TrimSpace(sh.Text()); text != "" {
				parts = append(parts, text)
			}
		}
		if len(parts) == 0 {
			continue
		}

		layout := slide.LayoutName()
		if layout == "" {
			layout = "unknown"
		}
		chunks = append(chunks, domain.DocChunk{
			Text:       strings.Join(parts, " "),
			SourceFile: name,
			PageNumber: slide.Index + 1,
			PageCount:  1,
			ChunkType:  domain.ChunkSlide,
			Metadata: map[string]any{
				"file_type":    "pptx",
				"slide_layout": layout,
			},
		})
	}
	return chunks, nil
}

package markdown

import (
	"context"
	"regexp"
	"strings"

	"github.com/custodia-labs/imdeck/internal/core/domain"
	"github.com/custodia-labs/imdeck/internal/core/ports/driven"
	"github.com/custodia-labs/imdeck/internal/normalisers/plaintext"
)

// Ensure Normaliser implements the interface.
var _ driven.DocumentParser = (*Normaliser)(nil)

// Normaliser handles Markdown documents.
type Normaliser struct{}

// New creates a new Markdown normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// Extensions returns the file extensions this normaliser handles.
func (n *Normaliser) Extensions() []string {
	return []string{".md", ".markdown"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50 // Format normaliser, higher than plaintext
}

// Parse returns the document as one chunk with markdown formatting removed.
func (n *Normaliser) Parse(_ context.Context, name string, data []byte) ([]domain.DocChunk, error) {
	if data == nil {
		return nil, domain.ErrInvalidInput
	}

	raw := string(data)
	text := stripMarkdown(raw)
	if text == "" {
		return nil, nil
	}

	return []domain.DocChunk{{
		Text:       text,
		SourceFile: name,
		PageNumber: 1,
		PageCount:  1,
		ChunkType:  domain.ChunkDocument,
		Metadata: map[string]any{
			"file_type": "md",
			"title":     extractMarkdownTitle(raw, name),
		},
	}}, nil
}

// extractMarkdownTitle returns the first H1 heading or a title built from the file name.
func extractMarkdownTitle(content, name string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "#"))
		}
	}
	return plaintext.Title(name)
}

var (
	codeBlock      = regexp.MustCompile("(?s)```[^`]*```")
	inlineCode     = regexp.MustCompile("`([^`]+)`")
	images         = regexp.MustCompile(`!\[[^\]]*\]\([^)]+\)`)
	links          = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	headings       = regexp.MustCompile(`(?m)^#{1,6}[ \t]+`)
	blockquote     = regexp.MustCompile(`(?m)^>[ \t]?`)
	hr             = regexp.MustCompile(`(?m)^[-*_]{3,}[ \t]*$`)
	listMarkers    = regexp.MustCompile(`(?m)^[ \t]*[-*+][ \t]+`)
	numberedList   = regexp.MustCompile(`(?m)^[ \t]*\d+\.[ \t]+`)
	boldStars      = regexp.MustCompile(`\*\*([^*\n]+)\*\*`)
	boldUnderlines = regexp.MustCompile(`__([^_\n]+)__`)
	italicStars    = regexp.MustCompile(`\*([^*\n]+)\*`)
	italicUnder    = regexp.MustCompile(`(^|\s)_([^_\n]+)_`)
	multiNewlines  = regexp.MustCompile(`\n{3,}`)
)

// stripMarkdown removes common markdown formatting for plain text content.
func stripMarkdown(content string) string {
	content = codeBlock.ReplaceAllString(content, "")
	content = inlineCode.ReplaceAllString(content, "$1")
	content = images.ReplaceAllString(content, "")
	content = links.ReplaceAllString(content, "$1")
	content = headings.ReplaceAllString(content, "")
	content = hr.ReplaceAllString(content, "")
	content = listMarkers.ReplaceAllString(content, "")
	content = numberedList.ReplaceAllString(content, "")
	content = blockquote.ReplaceAllString(content, "")

	// Bold and italic markers, without touching snake_case words
	content = boldStars.ReplaceAllString(content, "$1")
	content = boldUnderlines.ReplaceAllString(content, "$1")
	content = italicStars.ReplaceAllString(content, "$1")
	content = italicUnder.ReplaceAllString(content, "$1$2")

	content = multiNewlines.ReplaceAllString(content, "\n\n")
	return strings.TrimSpace(content)
}

package html

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/custodia-labs/imdeck/internal/core/domain"
	"github.com/custodia-labs/imdeck/internal/core/ports/driven"
	"github.com/custodia-labs/imdeck/internal/normalisers/plaintext"
)

// Ensure Normaliser implements the interface.
var _ driven.DocumentParser = (*Normaliser)(nil)

// Normaliser handles HTML documents.
type Normaliser struct{}

// New creates a new HTML normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// Extensions returns the file extensions this normaliser handles.
func (n *Normaliser) Extensions() []string {
	return []string{".html", ".htm", ".xhtml"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50 // Format normaliser, higher than plaintext
}

// Parse returns the readable text of the page as one chunk.
func (n *Normaliser) Parse(_ context.Context, name string, data []byte) ([]domain.DocChunk, error) {
	if data == nil {
		return nil, domain.ErrInvalidInput
	}

	text, title, err := extractText(string(data))
	if err != nil {
		return nil, fmt.Errorf("%w: parse html: %v", domain.ErrInvalidInput, err)
	}
	if text == "" {
		return nil, nil
	}
	if title == "" {
		title = plaintext.Title(name)
	}

	return []domain.DocChunk{{
		Text:       text,
		SourceFile: name,
		PageNumber: 1,
		PageCount:  1,
		ChunkType:  domain.ChunkDocument,
		Metadata: map[string]any{
			"file_type": "html",
			"title":     title,
		},
	}}, nil
}

const (
	noiseElements = "script, style, noscript, svg, head, template, iframe"
	blockElements = "p, div, h1, h2, h3, h4, h5, h6, li, tr, blockquote, pre, table, section, article, header, footer, ul, ol, dl, dt, dd"
)

// extractText returns the readable text of an HTML document and its <title>.
func extractText(content string) (string, string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return "", "", err
	}

	title := strings.Join(strings.Fields(doc.Find("title").First().Text()), " ")

	doc.Find(noiseElements).Remove()
	doc.Find("br, hr").ReplaceWithHtml("\n")
	doc.Find(blockElements).Each(func(_ int, s *goquery.Selection) {
		s.PrependHtml("\n")
		s.AppendHtml("\n")
	})
	doc.Find("td, th").AppendHtml(" ")

	return collapse(doc.Text()), title, nil
}

// collapse squeezes runs of spaces and drops empty lines.
func collapse(text string) string {
	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

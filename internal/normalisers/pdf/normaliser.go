// Package pdf provides a DocumentParser for PDF files built on
// github.com/ledongthuc/pdf.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/custodia-labs/imdeck/internal/core/domain"
	"github.com/custodia-labs/imdeck/internal/core/ports/driven"
	"github.com/custodia-labs/imdeck/internal/logger"
)

// Ensure Normaliser implements the interface.
var _ driven.DocumentParser = (*Normaliser)(nil)

// extractor pulls the text out of one page.
type extractor struct {
	name string
	fn   func(pdf.Page) (string, error)
}

// Normaliser handles PDF documents.
type Normaliser struct {
	strategies []extractor
}

// New creates a new PDF normaliser. Pages are read as plain text first and
// as rows of positioned text when that fails or finds nothing.
func New() *Normaliser {
	return &Normaliser{strategies: []extractor{
		{name: "plain", fn: plainText},
		{name: "rows", fn: rowText},
	}}
}

// Extensions returns the file extensions this normaliser handles.
func (n *Normaliser) Extensions() []string {
	return []string{".pdf"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Parse returns one text chunk per page that has text.
func (n *Normaliser) Parse(ctx context.Context, name string, data []byte) (chunks []domain.DocChunk, err error) {
	// The reader panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			chunks, err = nil, fmt.Errorf("%w: read pdf %s: %v", domain.ErrInvalidInput, name, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: open pdf: %v", domain.ErrInvalidInput, err)
	}

	pages := reader.NumPage()
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, method := n.extract(name, i, page)
		if text == "" {
			continue
		}

		meta := map[string]any{
			"file_type":         "pdf",
			"extraction_method": method,
		}
		if w, h, ok := pageSize(page); ok {
			meta["page_width"] = w
			meta["page_height"] = h
		}
		chunks = append(chunks, domain.DocChunk{
			Text:       text,
			SourceFile: name,
			PageNumber: i,
			PageCount:  1,
			ChunkType:  domain.ChunkText,
			Metadata:   meta,
		})
	}
	return chunks, nil
}

// extract runs the strategies in order and returns the first non-empty text.
func (n *Normaliser) extract(name string, num int, page pdf.Page) (string, string) {
	for _, s := range n.strategies {
		text, err := safely(s.fn, page)
		if err != nil {
			logger.Debug("PDF %s page %d: %s extraction failed: %v", name, num, s.name, err)
			continue
		}
		if text = cleanText(text); text != "" {
			return text, s.name
		}
	}
	return "", ""
}

func safely(fn func(pdf.Page) (string, error), page pdf.Page) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(page)
}

func plainText(page pdf.Page) (string, error) {
	return page.GetPlainText(nil)
}

func rowText(page pdf.Page) (string, error) {
	rows, err := page.GetTextByRow()
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, row := range rows {
		for i, word := range row.Content {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(word.S)
		}
		b.WriteByte('\n')
	}
	return b.String(), nil
}

// cleanText trims every line and drops blank ones.
func cleanText(raw string) string {
	lines := strings.Split(raw, "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// pageSize reads the page MediaBox in points.
func pageSize(page pdf.Page) (float64, float64, bool) {
	box := page.V.Key("MediaBox")
	if box.Len() != 4 {
		return 0, 0, false
	}
	return box.Index(2).Float64() - box.Index(0).Float64(),
		box.Index(3).Float64() - box.Index(1).Float64(), true
}

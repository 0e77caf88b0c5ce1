package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"

	"github.com/custodia-labs/imdeck/internal/core/domain"
	"github.com/custodia-labs/imdeck/internal/core/ports/driven"
	"github.com/custodia-labs/imdeck/internal/logger"
	"github.com/custodia-labs/imdeck/internal/normalisers/plaintext"
)

// Ensure Normaliser implements the interface.
var _ driven.DocumentParser = (*Normaliser)(nil)

const wordNS = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

// Normaliser handles DOCX documents.
type Normaliser struct{}

// New creates a new DOCX normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// Extensions returns the file extensions this normaliser handles.
func (n *Normaliser) Extensions() []string {
	return []string{".docx"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Parse returns the document as one chunk of non-empty paragraphs joined by
// newlines. When the document XML does not parse, the text runs are
// scanned directly instead.
func (n *Normaliser) Parse(_ context.Context, name string, data []byte) ([]domain.DocChunk, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: open docx: %v", domain.ErrInvalidInput, err)
	}

	content, err := readFile(reader, "word/document.xml")
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, name, err)
	}

	meta := map[string]any{
		"file_type": "docx",
		"title":     extractTitle(reader, name),
	}

	var text string
	paragraphs, err := parseParagraphs(content)
	if err == nil {
		text = strings.Join(paragraphs, "\n")
		meta["paragraph_count"] = len(paragraphs)
	} else {
		logger.Debug("DOCX %s: structured parse failed, scanning runs: %v", name, err)
		text = scanRuns(content)
		meta["parsing_method"] = "xml_fallback"
	}
	if text == "" {
		return nil, nil
	}

	return []domain.DocChunk{{
		Text:       text,
		SourceFile: name,
		PageNumber: 1,
		PageCount:  1,
		ChunkType:  domain.ChunkDocument,
		Metadata:   meta,
	}}, nil
}

func readFile(reader *zip.Reader, name string) ([]byte, error) {
	for _, file := range reader.File {
		if file.Name != name {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("%s missing", name)
}

// parseParagraphs walks the document XML and returns the trimmed text of
// every non-empty w:p, table cells included.
func parseParagraphs(content []byte) ([]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(content))
	var (
		paragraphs []string
		current    strings.Builder
		inText     bool
		depth      int
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != wordNS {
				continue
			}
			switch t.Name.Local {
			case "p":
				depth++
			case "t":
				inText = true
			case "tab":
				current.WriteByte('\t')
			case "br", "cr":
				current.WriteByte(' ')
			}
		case xml.EndElement:
			if t.Name.Space != wordNS {
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				depth--
				if p := strings.TrimSpace(current.String()); p != "" {
					paragraphs = append(paragraphs, p)
				}
				current.Reset()
			}
		case xml.CharData:
			if inText && depth > 0 {
				current.Write(t)
			}
		}
	}
	return paragraphs, nil
}

var textRun = regexp.MustCompile(`<w:t(?:\s[^>]*)?>([^<]*)</w:t>`)

// scanRuns pulls the w:t contents out of markup that is not well formed.
func scanRuns(content []byte) string {
	var parts []string
	for _, m := range textRun.FindAllSubmatch(content, -1) {
		if s := strings.TrimSpace(html.UnescapeString(string(m[1]))); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// coreXML represents the structure of docProps/core.xml.
type coreXML struct {
	Title string `xml:"title"`
}

// extractTitle extracts the title from docProps/core.xml or falls back to the file name.
func extractTitle(reader *zip.Reader, name string) string {
	if content, err := readFile(reader, "docProps/core.xml"); err == nil {
		var core coreXML
		if err := xml.Unmarshal(content, &core); err == nil && strings.TrimSpace(core.Title) != "" {
			return strings.TrimSpace(core.Title)
		}
	}
	return plaintext.Title(name)
}

package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/imdeck/internal/core/domain"
)

// createTestDOCX creates a minimal DOCX file in memory.
func createTestDOCX(documentXML, coreXML string) []byte {
	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)

	contentTypes, _ := w.Create("[Content_Types].xml")
	contentTypes.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="xml" ContentType="application/xml"/>
</Types>`))

	if documentXML != "" {
		doc, _ := w.Create("word/document.xml")
		doc.Write([]byte(documentXML))
	}

	if coreXML != "" {
		core, _ := w.Create("docProps/core.xml")
		core.Write([]byte(coreXML))
	}

	w.Close()
	return buf.Bytes()
}

func wrapBody(body string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body + `</w:body></w:document>`
}

func TestExtensions(t *testing.T) {
	normaliser := New()
	assert.Equal(t, []string{".docx"}, normaliser.Extensions())
	assert.Equal(t, 50, normaliser.Priority())
}

func TestParse_Success(t *testing.T) {
	docXML := wrapBody(`<w:p><w:r><w:t>Hello World</w:t></w:r></w:p>`)
	coreXML := `<?xml version="1.0" encoding="UTF-8"?>
<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" xmlns:dc="http://purl.org/dc/elements/1.1/">
<dc:title>Business Plan</dc:title>
</cp:coreProperties>`

	chunks, err := New().Parse(context.Background(), "plan.docx", createTestDOCX(docXML, coreXML))

	require.NoError(t, err)
	require.Len(t, chunks, 1)
	chunk := chunks[0]
	assert.Equal(t, "Hello World", chunk.Text)
	assert.Equal(t, "plan.docx", chunk.SourceFile)
	assert.Equal(t, domain.ChunkDocument, chunk.ChunkType)
	assert.Equal(t, 1, chunk.PageCount)
	assert.Equal(t, "docx", chunk.Metadata["file_type"])
	assert.Equal(t, "Business Plan", chunk.Metadata["title"])
	assert.Equal(t, 1, chunk.Metadata["paragraph_count"])
	assert.NotContains(t, chunk.Metadata, "parsing_method")
}

func TestParse_ParagraphsAndRuns(t *testing.T) {
	docXML := wrapBody(`
<w:p><w:r><w:t>First</w:t></w:r><w:r><w:t xml:space="preserve"> paragraph</w:t></w:r></w:p>
<w:p></w:p>
<w:p><w:r><w:t>  </w:t></w:r></w:p>
<w:tbl><w:tr><w:tc><w:p><w:r><w:t>Cell</w:t></w:r></w:p></w:tc></w:tr></w:tbl>
<w:p><w:hyperlink><w:r><w:t>Linked</w:t></w:r></w:hyperlink><w:r><w:tab/><w:t>after</w:t></w:r></w:p>`)

	chunks, err := New().Parse(context.Background(), "a.docx", createTestDOCX(docXML, ""))

	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "First paragraph\nCell\nLinked\tafter", chunks[0].Text)
	assert.Equal(t, 3, chunks[0].Metadata["paragraph_count"])
	assert.Equal(t, "a", chunks[0].Metadata["title"])
}

func TestParse_MalformedXMLFallsBackToRunScan(t *testing.T) {
	docXML := `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>
<w:p><w:r><w:t>Revenue &amp; growth</w:t></w:r></w:p>
<w:p><w:r><w:t xml:space="preserve">Second </w:t></w:r></w:p><w:p><w:r>`

	chunks, err := New().Parse(context.Background(), "broken.docx", createTestDOCX(docXML, ""))

	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Revenue & growth Second", chunks[0].Text)
	assert.Equal(t, "xml_fallback", chunks[0].Metadata["parsing_method"])
}

func TestParse_EmptyDocument(t *testing.T) {
	chunks, err := New().Parse(context.Background(), "empty.docx", createTestDOCX(wrapBody(""), ""))

	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestParse_InvalidInput(t *testing.T) {
	_, err := New().Parse(context.Background(), "bad.docx", []byte("not a zip"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = New().Parse(context.Background(), "nodoc.docx", createTestDOCX("", ""))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

package domain

import "strings"

// ChunkType classifies the unit a DocChunk was extracted from.
type ChunkType string

// Chunk types.
const (
	ChunkText     ChunkType = "text"
	ChunkSlide    ChunkType = "slide"
	ChunkDocument ChunkType = "document"
)

// DocChunk is one unit of text extracted from an ingested document.
type DocChunk struct {
	// Text is the extracted text.
	Text string `json:"text"`

	// SourceFile is the file name the chunk came from.
	SourceFile string `json:"source_file"`

	// PageNumber is the 1-based page, slide or paragraph number.
	PageNumber int `json:"page_number"`

	// PageCount is the number of pages this chunk covers.
	PageCount int `json:"page_count"`

	// ChunkType is the kind of unit the text came from.
	ChunkType ChunkType `json:"chunk_type"`

	// Metadata contains format-specific key-value pairs (file_type, page size...).
	Metadata map[string]any `json:"metadata,omitempty"`
}

// DocumentBundle aggregates the chunks extracted from an uploaded archive.
type DocumentBundle struct {
	// Chunks are all extracted chunks in archive order.
	Chunks []DocChunk `json:"chunks"`

	// TotalDocs is the number of files that parsed successfully.
	TotalDocs int `json:"total_docs"`

	// TotalPages is the sum of PageCount over all chunks.
	TotalPages int `json:"total_pages"`
}

// Search returns the chunks whose text contains query, case-insensitively.
func (b DocumentBundle) Search(query string) []DocChunk {
	q := strings.ToLower(query)
	var out []DocChunk
	for _, c := range b.Chunks {
		if strings.Contains(strings.ToLower(c.Text), q) {
			out = append(out, c)
		}
	}
	return out
}

// ByDocument returns the chunks extracted from the named file.
func (b DocumentBundle) ByDocument(name string) []DocChunk {
	var out []DocChunk
	for _, c := range b.Chunks {
		if c.SourceFile == name {
			out = append(out, c)
		}
	}
	return out
}

// Add appends the chunks of one successfully parsed document.
func (b *DocumentBundle) Add(chunks []DocChunk) {
	b.Chunks = append(b.Chunks, chunks...)
	b.TotalDocs++
	for _, c := range chunks {
		b.TotalPages += c.PageCount
	}
}

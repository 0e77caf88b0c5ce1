package driven

import (
	"context"

	"github.com/custodia-labs/imdeck/internal/core/domain"
)

// DocumentParser extracts text chunks from one file format.
type DocumentParser interface {
	// Extensions returns the lower-case file extensions handled, e.g. ".pdf".
	Extensions() []string

	// Priority returns the selection priority (higher = preferred).
	// Format-specific parsers should return 50-89.
	// Fallback parsers should return 1-9.
	Priority() int

	// Parse extracts chunks from a file. name is used for SourceFile.
	Parse(ctx context.Context, name string, data []byte) ([]domain.DocChunk, error)
}

// ParserRegistry selects the appropriate parser for a file.
type ParserRegistry interface {
	// Register adds a parser to the registry.
	Register(parser DocumentParser)

	// Supports reports whether a parser handles the file name's extension.
	Supports(name string) bool

	// Parse extracts chunks using the highest priority matching parser.
	// Returns domain.ErrUnsupportedType when no parser matches.
	Parse(ctx context.Context, name string, data []byte) ([]domain.DocChunk, error)

	// Extensions returns all extensions that can be parsed.
	Extensions() []string
}

// BundleParser extracts chunks from every supported file in an archive.
type BundleParser interface {
	ParseBundle(ctx context.Context, data []byte) (*domain.DocumentBundle, error)
}

// FinancialsParser extracts named financial series from a workbook.
type FinancialsParser interface {
	ParseFinancials(ctx context.Context, data []byte) (*domain.FinancialsData, error)
}

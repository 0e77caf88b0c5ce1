// Package bundle extracts document chunks from ZIP archives by handing each
// entry to the parser registry.
package bundle

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/custodia-labs/imdeck/internal/core/domain"
	"github.com/custodia-labs/imdeck/internal/core/ports/driven"
	"github.com/custodia-labs/imdeck/internal/logger"
)

// Ensure Parser implements the interface.
var _ driven.BundleParser = (*Parser)(nil)

// DefaultMaxEntrySize caps the uncompressed size of a single archive entry.
const DefaultMaxEntrySize = 64 << 20

// Parser reads document bundles.
type Parser struct {
	registry     driven.ParserRegistry
	maxEntrySize int64
}

// New creates a bundle parser backed by registry.
func New(registry driven.ParserRegistry) *Parser {
	return &Parser{registry: registry, maxEntrySize: DefaultMaxEntrySize}
}

// ParseBundle parses every supported file in the archive. Directories,
// unsupported files and files that fail to parse are skipped.
func (p *Parser) ParseBundle(ctx context.Context, data []byte) (*domain.DocumentBundle, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: open bundle: %v", domain.ErrInvalidInput, err)
	}

	bundle := &domain.DocumentBundle{}
	for _, file := range reader.File {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if skip(file) {
			continue
		}
		if !p.registry.Supports(file.Name) {
			logger.Debug("Bundle: skipping unsupported file %s", file.Name)
			continue
		}

		content, err := p.read(file)
		if err != nil {
			logger.Warn("Bundle: cannot read %s: %v", file.Name, err)
			continue
		}
		chunks, err := p.registry.Parse(ctx, file.Name, content)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			logger.Warn("Bundle: failed to parse %s: %v", file.Name, err)
			continue
		}
		bundle.Add(chunks)
		logger.Debug("Bundle: %s gave %d chunks", file.Name, len(chunks))
	}

	logger.Info("Bundle parsed: %d documents, %d pages, %d chunks",
		bundle.TotalDocs, bundle.TotalPages, len(bundle.Chunks))
	return bundle, nil
}

// skip reports entries that are never documents: directories and the
// metadata files archivers add.
func skip(file *zip.File) bool {
	if file.FileInfo().IsDir() || strings.HasSuffix(file.Name, "/") {
		return true
	}
	if strings.HasPrefix(file.Name, "__MACOSX/") {
		return true
	}
	base := path.Base(file.Name)
	return strings.HasPrefix(base, "._") || base == ".DS_Store"
}

func (p *Parser) read(file *zip.File) ([]byte, error) {
	if int64(file.UncompressedSize64) > p.maxEntrySize {
		return nil, fmt.Errorf("entry is %d bytes, limit %d", file.UncompressedSize64, p.maxEntrySize)
	}
	rc, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, p.maxEntrySize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > p.maxEntrySize {
		return nil, fmt.Errorf("entry exceeds %d bytes", p.maxEntrySize)
	}
	return data, nil
}

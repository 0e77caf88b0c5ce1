package normalisers

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/imdeck/internal/core/domain"
	"github.com/custodia-labs/imdeck/internal/core/ports/driven"
	"github.com/custodia-labs/imdeck/internal/normalisers/docx"
	"github.com/custodia-labs/imdeck/internal/normalisers/html"
	"github.com/custodia-labs/imdeck/internal/normalisers/markdown"
	"github.com/custodia-labs/imdeck/internal/normalisers/pdf"
	"github.com/custodia-labs/imdeck/internal/normalisers/plaintext"
	"github.com/custodia-labs/imdeck/internal/normalisers/pptx"
)

// Ensure Registry implements the interface.
var _ driven.ParserRegistry = (*Registry)(nil)

// Registry maps file extensions to parsers. When several parsers claim an
// extension the one with the highest priority wins; ties go to the parser
// registered first.
type Registry struct {
	mu      sync.RWMutex
	parsers map[string][]driven.DocumentParser
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		parsers: make(map[string][]driven.DocumentParser),
	}
}

// NewDefaultRegistry creates a registry holding every built-in parser.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	RegisterDefaults(r)
	return r
}

// RegisterDefaults registers the built-in parsers.
func RegisterDefaults(r driven.ParserRegistry) {
	r.Register(pdf.New())
	r.Register(docx.New())
	r.Register(pptx.New())
	r.Register(markdown.New())
	r.Register(html.New())
	r.Register(plaintext.New())
}

// Register adds a parser for each of its extensions.
func (r *Registry) Register(parser driven.DocumentParser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range parser.Extensions() {
		ext = strings.ToLower(ext)
		list := append(r.parsers[ext], parser)
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].Priority() > list[j].Priority()
		})
		r.parsers[ext] = list
	}
}

// Supports reports whether a parser handles the file name's extension.
func (r *Registry) Supports(name string) bool {
	_, ok := r.lookup(name)
	return ok
}

// Parse extracts chunks with the highest priority parser for the file.
func (r *Registry) Parse(ctx context.Context, name string, data []byte) ([]domain.DocChunk, error) {
	parser, ok := r.lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedType, name)
	}
	return parser.Parse(ctx, name, data)
}

// Extensions returns all registered extensions, sorted.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make([]string, 0, len(r.parsers))
	for ext := range r.parsers {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

func (r *Registry) lookup(name string) (driven.DocumentParser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := r.parsers[strings.ToLower(filepath.Ext(name))]
	if len(list) == 0 {
		return nil, false
	}
	return list[0], true
}

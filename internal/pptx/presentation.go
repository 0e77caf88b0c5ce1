// Package pptx reads and edits PresentationML packages.
//
// Parts are held as lossless XML trees (see Node), so markup the package does
// not model is written back untouched. Element lookups match on local names;
// elements this package creates use the conventional p, a, r and c prefixes.
package pptx

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Errors returned by this package.
var (
	ErrNotPresentation = errors.New("not a presentation package")
	ErrPartNotFound    = errors.New("part not found")
	ErrNoChart         = errors.New("shape has no chart")
)

// Namespaces used when creating elements.
const (
	NamespaceP = "http://schemas.openxmlformats.org/presentationml/2006/main"
	NamespaceA = "http://schemas.openxmlformats.org/drawingml/2006/main"
	NamespaceR = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	NamespaceC = "http://schemas.openxmlformats.org/drawingml/2006/chart"
)

// Default slide size (16:9) used when the presentation does not declare one.
const (
	DefaultSlideWidth  int64 = 12192000
	DefaultSlideHeight int64 = 6858000
)

// EMUPerPixel converts pixels at 96 dpi to English Metric Units.
const EMUPerPixel int64 = 9525

// Presentation is an opened deck.
type Presentation struct {
	pkg         *Package
	mainPart    string
	slides      []*Slide
	SlideWidth  int64
	SlideHeight int64
}

// Open parses a presentation from its container bytes.
func Open(data []byte) (*Presentation, error) {
	pkg, err := OpenPackage(data)
	if err != nil {
		return nil, err
	}
	rootRels, err := pkg.Rels("")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotPresentation, err)
	}
	main := "ppt/presentation.xml"
	if rel, ok := rootRels.FirstOfType(RelOfficeDocument); ok {
		main = rootRels.Resolve(rel)
	}
	doc, err := pkg.XML(main)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotPresentation, err)
	}
	root := doc.Root()
	if root.Local() != "presentation" {
		return nil, fmt.Errorf("%w: root element %s", ErrNotPresentation, root.Name)
	}

	pres := &Presentation{
		pkg:         pkg,
		mainPart:    main,
		SlideWidth:  DefaultSlideWidth,
		SlideHeight: DefaultSlideHeight,
	}
	if sz := root.Child("sldSz"); sz != nil {
		pres.SlideWidth = attrInt(sz, "cx", DefaultSlideWidth)
		pres.SlideHeight = attrInt(sz, "cy", DefaultSlideHeight)
	}

	rels, err := pkg.Rels(main)
	if err != nil {
		return nil, err
	}
	if lst := root.Child("sldIdLst"); lst != nil {
		for _, id := range lst.ChildrenNamed("sldId") {
			rel, ok := rels.ByID(relAttr(id, "id"))
			if !ok {
				continue
			}
			pres.slides = append(pres.slides, &Slide{
				Index: len(pres.slides),
				Part:  rels.Resolve(rel),
				pres:  pres,
			})
		}
	}
	return pres, nil
}

// Slides returns the slides in presentation order.
func (p *Presentation) Slides() []*Slide {
	return p.slides
}

// Package exposes the underlying container.
func (p *Presentation) Package() *Package {
	return p.pkg
}

// Save serialises the presentation.
func (p *Presentation) Save() ([]byte, error) {
	return p.pkg.Bytes()
}

// relAttr returns a relationship-namespaced attribute such as r:id or r:embed.
func relAttr(n *Node, local string) string {
	for _, a := range n.Attrs {
		prefix, name, ok := strings.Cut(a.Name, ":")
		if ok && prefix != "xmlns" && name == local {
			return a.Value
		}
	}
	return ""
}

func attrInt(n *Node, name string, def int64) int64 {
	v, ok := n.Attr(name)
	if !ok {
		return def
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return i
}

package pptx

import (
	"strconv"
	"strings"
)

// Relationship types used by presentations.
const (
	RelOfficeDocument = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument"
	RelSlide          = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide"
	RelSlideLayout    = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideLayout"
	RelSlideMaster    = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideMaster"
	RelChart          = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/chart"
	RelImage          = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"
	RelPackage        = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/package"
)

const relsNamespace = "http://schemas.openxmlformats.org/package/2006/relationships"

// Relationship is one entry of a relationships part.
type Relationship struct {
	ID         string
	Type       string
	Target     string
	TargetMode string
}

// External reports whether the target lives outside the package.
func (r Relationship) External() bool {
	return r.TargetMode == "External"
}

// Rels is the relationships part of a source part.
type Rels struct {
	source string
	root   *Node
}

// Rels returns the relationships of source, creating an empty part when the
// source has none yet.
func (p *Package) Rels(source string) (*Rels, error) {
	name := relsPartFor(source)
	if !p.Has(name) {
		doc := &Node{Kind: DocumentNode}
		doc.Append(xmlDecl(), NewElement("Relationships", "xmlns", relsNamespace))
		p.SetXML(name, doc)
	}
	doc, err := p.XML(name)
	if err != nil {
		return nil, err
	}
	return &Rels{source: partName(source), root: doc.Root()}, nil
}

// All returns every relationship in document order.
func (r *Rels) All() []Relationship {
	var out []Relationship
	for _, el := range r.root.ChildrenNamed("Relationship") {
		out = append(out, toRelationship(el))
	}
	return out
}

// ByID looks up a relationship by its id.
func (r *Rels) ByID(id string) (Relationship, bool) {
	for _, el := range r.root.ChildrenNamed("Relationship") {
		if v, _ := el.Attr("Id"); v == id {
			return toRelationship(el), true
		}
	}
	return Relationship{}, false
}

// FirstOfType returns the first relationship of the given type.
func (r *Rels) FirstOfType(relType string) (Relationship, bool) {
	for _, el := range r.root.ChildrenNamed("Relationship") {
		if v, _ := el.Attr("Type"); v == relType {
			return toRelationship(el), true
		}
	}
	return Relationship{}, false
}

// Resolve returns the part name a relationship points at.
func (r *Rels) Resolve(rel Relationship) string {
	return resolveTarget(r.source, rel.Target)
}

// Add appends a relationship to part and returns its new id.
func (r *Rels) Add(relType, part string) string {
	id := "rId" + strconv.Itoa(r.nextID())
	r.root.Append(NewElement("Relationship",
		"Id", id,
		"Type", relType,
		"Target", relativeTarget(r.source, part),
	))
	return id
}

func (r *Rels) nextID() int {
	max := 0
	for _, el := range r.root.ChildrenNamed("Relationship") {
		id, _ := el.Attr("Id")
		if n, err := strconv.Atoi(strings.TrimPrefix(id, "rId")); err == nil && n > max {
			max = n
		}
	}
	return max + 1
}

func toRelationship(el *Node) Relationship {
	var rel Relationship
	rel.ID, _ = el.Attr("Id")
	rel.Type, _ = el.Attr("Type")
	rel.Target, _ = el.Attr("Target")
	rel.TargetMode, _ = el.Attr("TargetMode")
	return rel
}

func xmlDecl() *Node {
	return &Node{Kind: ProcInstNode, Name: "xml", Text: `version="1.0" encoding="UTF-8" standalone="yes"`}
}

package pptx

import "strings"

const contentTypesPart = "[Content_Types].xml"

// Content types of parts this package creates.
const (
	ContentTypeChart = "application/vnd.openxmlformats-officedocument.drawingml.chart+xml"
	ContentTypeXLSX  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypePNG   = "image/png"
	ContentTypeJPEG  = "image/jpeg"
	ContentTypeRels  = "application/vnd.openxmlformats-package.relationships+xml"
	ContentTypeXML   = "application/xml"
)

const contentTypesNamespace = "http://schemas.openxmlformats.org/package/2006/content-types"

func (p *Package) contentTypes() (*Node, error) {
	if !p.Has(contentTypesPart) {
		doc := &Node{Kind: DocumentNode}
		doc.Append(xmlDecl(), NewElement("Types", "xmlns", contentTypesNamespace))
		p.SetXML(contentTypesPart, doc)
	}
	doc, err := p.XML(contentTypesPart)
	if err != nil {
		return nil, err
	}
	return doc.Root(), nil
}

// EnsureDefault registers a content type for a file extension.
func (p *Package) EnsureDefault(ext, contentType string) error {
	root, err := p.contentTypes()
	if err != nil {
		return err
	}
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	for _, el := range root.ChildrenNamed("Default") {
		if v, _ := el.Attr("Extension"); strings.EqualFold(v, ext) {
			return nil
		}
	}
	def := NewElement("Default", "Extension", ext, "ContentType", contentType)
	// Defaults precede overrides.
	if first := root.Child("Override"); first != nil {
		root.InsertAt(root.IndexOf(first), def)
		return nil
	}
	root.Append(def)
	return nil
}

// EnsureOverride registers a content type for a single part.
func (p *Package) EnsureOverride(part, contentType string) error {
	root, err := p.contentTypes()
	if err != nil {
		return err
	}
	name := "/" + partName(part)
	for _, el := range root.ChildrenNamed("Override") {
		if v, _ := el.Attr("PartName"); v == name {
			el.SetAttr("ContentType", contentType)
			return nil
		}
	}
	root.Append(NewElement("Override", "PartName", name, "ContentType", contentType))
	return nil
}

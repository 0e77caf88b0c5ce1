package pptx

import (
	"fmt"
	"strconv"
)

// ShapeKind is the closed set of shape variants found on a slide.
type ShapeKind int

// Shape kinds.
const (
	KindOther ShapeKind = iota
	KindTextBox
	KindPlaceholder
	KindChart
	KindPicture
	KindGroup
	KindGraphicFrame
	KindConnector
)

func (k ShapeKind) String() string {
	switch k {
	case KindTextBox:
		return "text"
	case KindPlaceholder:
		return "placeholder"
	case KindChart:
		return "chart"
	case KindPicture:
		return "picture"
	case KindGroup:
		return "group"
	case KindGraphicFrame:
		return "graphic-frame"
	case KindConnector:
		return "connector"
	default:
		return "other"
	}
}

// CanHoldText reports whether shapes of this kind carry a text frame.
func (k ShapeKind) CanHoldText() bool {
	return k == KindTextBox || k == KindPlaceholder
}

// IsContainer reports whether shapes of this kind hold other shapes.
func (k ShapeKind) IsContainer() bool {
	return k == KindGroup
}

const chartURI = "http://schemas.openxmlformats.org/drawingml/2006/chart"

func classify(n *Node) (ShapeKind, bool) {
	switch n.Local() {
	case "sp":
		if nv := n.Find("nvSpPr", "nvPr", "ph"); nv != nil {
			return KindPlaceholder, true
		}
		return KindTextBox, true
	case "pic":
		return KindPicture, true
	case "grpSp":
		return KindGroup, true
	case "cxnSp":
		return KindConnector, true
	case "graphicFrame":
		if gd := n.Find("graphic", "graphicData"); gd != nil {
			if uri, _ := gd.Attr("uri"); uri == chartURI {
				return KindChart, true
			}
		}
		return KindGraphicFrame, true
	case "contentPart":
		return KindOther, true
	}
	return KindOther, false
}

// Rect is a position and size in EMU.
type Rect struct {
	X  int64
	Y  int64
	CX int64
	CY int64
}

// Shape is a drawing element on a slide.
type Shape struct {
	Kind      ShapeKind
	node      *Node
	container *Node
	slide     *Slide
}

// Slide returns the slide holding the shape.
func (sh *Shape) Slide() *Slide {
	return sh.slide
}

func (sh *Shape) nonVisual() *Node {
	for _, c := range sh.node.Elements() {
		if l := c.Local(); len(l) > 2 && l[:2] == "nv" {
			return c
		}
	}
	return nil
}

// Name returns the shape name from its non-visual properties.
func (sh *Shape) Name() string {
	if nv := sh.nonVisual(); nv != nil {
		if pr := nv.Child("cNvPr"); pr != nil {
			name, _ := pr.Attr("name")
			return name
		}
	}
	return ""
}

// ID returns the drawing element id, or 0.
func (sh *Shape) ID() int {
	if nv := sh.nonVisual(); nv != nil {
		if pr := nv.Child("cNvPr"); pr != nil {
			v, _ := pr.Attr("id")
			id, _ := strconv.Atoi(v)
			return id
		}
	}
	return 0
}

// placeholder returns the placeholder type and idx. The type defaults to
// "obj" when the placeholder does not declare one.
func (sh *Shape) placeholder() (typ, idx string, ok bool) {
	nv := sh.nonVisual()
	if nv == nil {
		return "", "", false
	}
	ph := nv.Find("nvPr", "ph")
	if ph == nil {
		return "", "", false
	}
	typ, has := ph.Attr("type")
	if !has {
		typ = "obj"
	}
	idx, _ = ph.Attr("idx")
	return typ, idx, true
}

// PlaceholderType returns the placeholder type, or "" for ordinary shapes.
func (sh *Shape) PlaceholderType() string {
	typ, _, _ := sh.placeholder()
	return typ
}

// IsTitle reports whether the shape is a title placeholder.
func (sh *Shape) IsTitle() bool {
	switch sh.PlaceholderType() {
	case "title", "ctrTitle":
		return true
	}
	return false
}

func (sh *Shape) xfrm() *Node {
	switch sh.node.Local() {
	case "graphicFrame":
		return sh.node.Child("xfrm")
	case "grpSp":
		return sh.node.Find("grpSpPr", "xfrm")
	default:
		return sh.node.Find("spPr", "xfrm")
	}
}

func (sh *Shape) ownRect() (Rect, bool) {
	x := sh.xfrm()
	if x == nil {
		return Rect{}, false
	}
	var r Rect
	off, ext := x.Child("off"), x.Child("ext")
	if off == nil || ext == nil {
		return Rect{}, false
	}
	r.X = attrInt(off, "x", 0)
	r.Y = attrInt(off, "y", 0)
	r.CX = attrInt(ext, "cx", 0)
	r.CY = attrInt(ext, "cy", 0)
	return r, true
}

// Rect returns the shape geometry. Placeholders without their own geometry
// inherit it from the layout or master.
func (sh *Shape) Rect() (Rect, bool) {
	if r, ok := sh.ownRect(); ok {
		return r, true
	}
	if typ, idx, ok := sh.placeholder(); ok && sh.slide != nil {
		return sh.slide.inheritedRect(typ, idx)
	}
	return Rect{}, false
}

// Remove deletes the shape from its slide.
func (sh *Shape) Remove() {
	sh.container.Remove(sh.node)
}

// replace swaps the shape element for n and returns the new shape.
func (sh *Shape) replace(n *Node) (*Shape, error) {
	if !sh.container.Replace(sh.node, n) {
		return nil, fmt.Errorf("shape %q is no longer on %s", sh.Name(), sh.slide.Part)
	}
	kind, _ := classify(n)
	return &Shape{Kind: kind, node: n, container: sh.container, slide: sh.slide}, nil
}

// Chart opens the chart part referenced by a chart frame.
func (sh *Shape) Chart() (*Chart, error) {
	if sh.Kind != KindChart {
		return nil, ErrNoChart
	}
	ref := sh.node.Find("graphic", "graphicData", "chart")
	if ref == nil {
		return nil, ErrNoChart
	}
	rels, err := sh.slide.Rels()
	if err != nil {
		return nil, err
	}
	rel, ok := rels.ByID(relAttr(ref, "id"))
	if !ok {
		return nil, fmt.Errorf("%w: dangling chart relationship on %s", ErrNoChart, sh.slide.Part)
	}
	return openChart(sh.slide.pres.pkg, rels.Resolve(rel))
}

package pptx

import (
	"fmt"
	"strconv"
)

// Slide is one slide part of a presentation.
type Slide struct {
	// Index is the zero-based position in presentation order.
	Index int
	// Part is the slide's part name, e.g. "ppt/slides/slide1.xml".
	Part string
	pres *Presentation
}

// Presentation returns the deck the slide belongs to.
func (s *Slide) Presentation() *Presentation {
	return s.pres
}

func (s *Slide) root() (*Node, error) {
	doc, err := s.pres.pkg.XML(s.Part)
	if err != nil {
		return nil, err
	}
	return doc.Root(), nil
}

func (s *Slide) spTree() (*Node, error) {
	root, err := s.root()
	if err != nil {
		return nil, err
	}
	tree := root.Find("cSld", "spTree")
	if tree == nil {
		return nil, fmt.Errorf("%s: missing shape tree", s.Part)
	}
	return tree, nil
}

// Rels returns the slide's relationships.
func (s *Slide) Rels() (*Rels, error) {
	return s.pres.pkg.Rels(s.Part)
}

// Shapes returns every leaf shape on the slide in document order. Group
// shapes are flattened: their children are visited instead of the group.
func (s *Slide) Shapes() ([]*Shape, error) {
	tree, err := s.spTree()
	if err != nil {
		return nil, err
	}
	return flattenShapes(tree, s), nil
}

type frame struct {
	node      *Node
	container *Node
}

func flattenShapes(tree *Node, s *Slide) []*Shape {
	var out []*Shape
	stack := pushChildren(nil, tree)
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if f.node.Local() == "AlternateContent" {
			if choice := f.node.Child("Choice"); choice != nil {
				stack = pushChildren(stack, choice)
			}
			continue
		}
		kind, ok := classify(f.node)
		if !ok {
			continue
		}
		if kind == KindGroup {
			stack = pushChildren(stack, f.node)
			continue
		}
		out = append(out, &Shape{Kind: kind, node: f.node, container: f.container, slide: s})
	}
	return out
}

// pushChildren pushes element children in reverse so they pop in order.
func pushChildren(stack []frame, container *Node) []frame {
	for i := len(container.Children) - 1; i >= 0; i-- {
		if c := container.Children[i]; c.Kind == ElementNode {
			stack = append(stack, frame{node: c, container: container})
		}
	}
	return stack
}

func (s *Slide) layoutPart() string {
	rels, err := s.Rels()
	if err != nil {
		return ""
	}
	rel, ok := rels.FirstOfType(RelSlideLayout)
	if !ok {
		return ""
	}
	return rels.Resolve(rel)
}

// LayoutName returns the name of the slide layout, or "" when unknown.
func (s *Slide) LayoutName() string {
	part := s.layoutPart()
	if part == "" {
		return ""
	}
	doc, err := s.pres.pkg.XML(part)
	if err != nil {
		return ""
	}
	if cSld := doc.Root().Child("cSld"); cSld != nil {
		name, _ := cSld.Attr("name")
		return name
	}
	return ""
}

// Background describes the slide background fill: "solid", "gradient",
// "picture", "pattern", "none", "reference", or "inherited" when the slide
// does not override its layout.
func (s *Slide) Background() string {
	root, err := s.root()
	if err != nil {
		return "inherited"
	}
	bg := root.Find("cSld", "bg")
	if bg == nil {
		return "inherited"
	}
	if bg.Child("bgRef") != nil {
		return "reference"
	}
	if pr := bg.Child("bgPr"); pr != nil {
		for _, c := range pr.Elements() {
			switch c.Local() {
			case "solidFill":
				return "solid"
			case "gradFill":
				return "gradient"
			case "blipFill":
				return "picture"
			case "pattFill":
				return "pattern"
			case "noFill":
				return "none"
			}
		}
	}
	return "inherited"
}

// inheritedRect looks up the geometry of a placeholder on the slide layout,
// then on the slide master.
func (s *Slide) inheritedRect(typ, idx string) (Rect, bool) {
	part := s.layoutPart()
	for depth := 0; part != "" && depth < 2; depth++ {
		doc, err := s.pres.pkg.XML(part)
		if err != nil {
			return Rect{}, false
		}
		if tree := doc.Root().Find("cSld", "spTree"); tree != nil {
			if r, ok := matchPlaceholderRect(flattenShapes(tree, s), typ, idx); ok {
				return r, true
			}
		}
		rels, err := s.pres.pkg.Rels(part)
		if err != nil {
			return Rect{}, false
		}
		rel, ok := rels.FirstOfType(RelSlideMaster)
		if !ok {
			break
		}
		part = rels.Resolve(rel)
	}
	return Rect{}, false
}

func matchPlaceholderRect(shapes []*Shape, typ, idx string) (Rect, bool) {
	if idx != "" {
		for _, sh := range shapes {
			if _, i, ok := sh.placeholder(); ok && i == idx {
				if r, ok := sh.ownRect(); ok {
					return r, true
				}
			}
		}
	}
	for _, sh := range shapes {
		if t, _, ok := sh.placeholder(); ok && t == typ {
			if r, ok := sh.ownRect(); ok {
				return r, true
			}
		}
	}
	return Rect{}, false
}

// nextShapeID returns an unused drawing element id.
func (s *Slide) nextShapeID() int {
	root, err := s.root()
	if err != nil {
		return 1
	}
	max := 0
	for _, pr := range root.Descendants("cNvPr") {
		v, _ := pr.Attr("id")
		if n, err := strconv.Atoi(v); err == nil && n > max {
			max = n
		}
	}
	return max + 1
}

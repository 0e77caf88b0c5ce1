package pptx

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// NodeKind identifies the kind of a Node.
type NodeKind int

// Node kinds.
const (
	DocumentNode NodeKind = iota
	ElementNode
	TextNode
	ProcInstNode
	CommentNode
	DirectiveNode
)

// Attr is an attribute with its qualified name as written, e.g. "r:id".
type Attr struct {
	Name  string
	Value string
}

// Node is a lossless XML tree node. Element and attribute names keep the
// prefixes used in the source part, so a part can be rewritten without
// disturbing namespace declarations the reader does not understand.
type Node struct {
	Kind     NodeKind
	Name     string
	Attrs    []Attr
	Children []*Node
	Text     string
}

// ParseXML parses a part into a document node.
func ParseXML(data []byte) (*Node, error) {
	doc := &Node{Kind: DocumentNode}
	if err := parseInto(doc, data); err != nil {
		return nil, err
	}
	if doc.Root() == nil {
		return nil, errors.New("xml: no root element")
	}
	return doc, nil
}

// ParseFragment parses a single element, e.g. "<c:tx>...</c:tx>".
func ParseFragment(s string) (*Node, error) {
	doc := &Node{Kind: DocumentNode}
	if err := parseInto(doc, []byte(s)); err != nil {
		return nil, err
	}
	root := doc.Root()
	if root == nil {
		return nil, errors.New("xml: empty fragment")
	}
	return root, nil
}

func parseInto(doc *Node, data []byte) error {
	dec := xml.NewDecoder(bytes.NewReader(data))
	stack := []*Node{doc}
	for {
		tok, err := dec.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("xml: %w", err)
		}
		top := stack[len(stack)-1]
		switch t := tok.(type) {
		case xml.StartElement:
			el := &Node{Kind: ElementNode, Name: qualified(t.Name)}
			for _, a := range t.Attr {
				el.Attrs = append(el.Attrs, Attr{Name: qualified(a.Name), Value: a.Value})
			}
			top.Children = append(top.Children, el)
			stack = append(stack, el)
		case xml.EndElement:
			if len(stack) == 1 || top.Name != qualified(t.Name) {
				return fmt.Errorf("xml: unexpected end element %s", qualified(t.Name))
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			// Whitespace between the prolog and the root element is dropped.
			if top.Kind == DocumentNode {
				continue
			}
			top.Children = append(top.Children, &Node{Kind: TextNode, Text: string(t)})
		case xml.ProcInst:
			top.Children = append(top.Children, &Node{Kind: ProcInstNode, Name: t.Target, Text: string(t.Inst)})
		case xml.Comment:
			top.Children = append(top.Children, &Node{Kind: CommentNode, Text: string(t)})
		case xml.Directive:
			top.Children = append(top.Children, &Node{Kind: DirectiveNode, Text: string(t)})
		}
	}
	if len(stack) != 1 {
		return errors.New("xml: unclosed element")
	}
	return nil
}

func qualified(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

// NewElement creates an element. attrs are name/value pairs.
func NewElement(name string, attrs ...string) *Node {
	el := &Node{Kind: ElementNode, Name: name}
	for i := 0; i+1 < len(attrs); i += 2 {
		el.Attrs = append(el.Attrs, Attr{Name: attrs[i], Value: attrs[i+1]})
	}
	return el
}

// Local returns the element name without its prefix.
func (n *Node) Local() string {
	if i := strings.IndexByte(n.Name, ':'); i >= 0 {
		return n.Name[i+1:]
	}
	return n.Name
}

// Prefix returns the namespace prefix of the element name.
func (n *Node) Prefix() string {
	if i := strings.IndexByte(n.Name, ':'); i >= 0 {
		return n.Name[:i]
	}
	return ""
}

// Root returns the document element of a document node.
func (n *Node) Root() *Node {
	for _, c := range n.Children {
		if c.Kind == ElementNode {
			return c
		}
	}
	return nil
}

// Attr returns the value of the attribute with the given qualified name.
func (n *Node) Attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// AttrLocal returns the value of the first attribute with the given local name.
func (n *Node) AttrLocal(local string) (string, bool) {
	for _, a := range n.Attrs {
		name := a.Name
		if i := strings.IndexByte(name, ':'); i >= 0 {
			if name[:i] == "xmlns" {
				continue
			}
			name = name[i+1:]
		}
		if name == local {
			return a.Value, true
		}
	}
	return "", false
}

// SetAttr sets or adds an attribute.
func (n *Node) SetAttr(name, value string) {
	for i := range n.Attrs {
		if n.Attrs[i].Name == name {
			n.Attrs[i].Value = value
			return
		}
	}
	n.Attrs = append(n.Attrs, Attr{Name: name, Value: value})
}

// Elements returns the element children.
func (n *Node) Elements() []*Node {
	out := make([]*Node, 0, len(n.Children))
	for _, c := range n.Children {
		if c.Kind == ElementNode {
			out = append(out, c)
		}
	}
	return out
}

// Child returns the first element child with the given local name.
func (n *Node) Child(local string) *Node {
	for _, c := range n.Children {
		if c.Kind == ElementNode && c.Local() == local {
			return c
		}
	}
	return nil
}

// ChildrenNamed returns the element children with the given local name.
func (n *Node) ChildrenNamed(local string) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Kind == ElementNode && c.Local() == local {
			out = append(out, c)
		}
	}
	return out
}

// Find descends through element children by local name.
func (n *Node) Find(path ...string) *Node {
	cur := n
	for _, local := range path {
		if cur = cur.Child(local); cur == nil {
			return nil
		}
	}
	return cur
}

// Descendants returns every descendant element with the given local name
// in document order.
func (n *Node) Descendants(local string) []*Node {
	var out []*Node
	stack := []*Node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur != n && cur.Kind == ElementNode && cur.Local() == local {
			out = append(out, cur)
		}
		for i := len(cur.Children) - 1; i >= 0; i-- {
			if cur.Children[i].Kind == ElementNode {
				stack = append(stack, cur.Children[i])
			}
		}
	}
	return out
}

// TextContent concatenates all descendant text.
func (n *Node) TextContent() string {
	var b strings.Builder
	stack := []*Node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur.Kind == TextNode {
			b.WriteString(cur.Text)
			continue
		}
		for i := len(cur.Children) - 1; i >= 0; i-- {
			stack = append(stack, cur.Children[i])
		}
	}
	return b.String()
}

// SetText replaces the children of n with a single text node.
func (n *Node) SetText(text string) {
	n.Children = []*Node{{Kind: TextNode, Text: text}}
}

// Append adds children at the end.
func (n *Node) Append(children ...*Node) {
	n.Children = append(n.Children, children...)
}

// IndexOf returns the position of child in n.Children, or -1.
func (n *Node) IndexOf(child *Node) int {
	for i, c := range n.Children {
		if c == child {
			return i
		}
	}
	return -1
}

// InsertAt inserts child at position i.
func (n *Node) InsertAt(i int, child *Node) {
	if i < 0 || i >= len(n.Children) {
		n.Children = append(n.Children, child)
		return
	}
	n.Children = append(n.Children, nil)
	copy(n.Children[i+1:], n.Children[i:])
	n.Children[i] = child
}

// Remove deletes child from n. It reports whether child was found.
func (n *Node) Remove(child *Node) bool {
	i := n.IndexOf(child)
	if i < 0 {
		return false
	}
	n.Children = append(n.Children[:i], n.Children[i+1:]...)
	return true
}

// RemoveNamed deletes every element child with the given local name.
func (n *Node) RemoveNamed(local string) {
	kept := n.Children[:0]
	for _, c := range n.Children {
		if c.Kind == ElementNode && c.Local() == local {
			continue
		}
		kept = append(kept, c)
	}
	n.Children = kept
}

// Replace swaps old for replacement. It reports whether old was found.
func (n *Node) Replace(old, replacement *Node) bool {
	i := n.IndexOf(old)
	if i < 0 {
		return false
	}
	n.Children[i] = replacement
	return true
}

// Clone returns a deep copy.
func (n *Node) Clone() *Node {
	c := &Node{Kind: n.Kind, Name: n.Name, Text: n.Text}
	if len(n.Attrs) > 0 {
		c.Attrs = append([]Attr(nil), n.Attrs...)
	}
	for _, ch := range n.Children {
		c.Children = append(c.Children, ch.Clone())
	}
	return c
}

// textEscaper escapes character data. Whitespace is written as is so that
// indentation between elements stays white space.
var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// Bytes serialises the node and its subtree.
func (n *Node) Bytes() []byte {
	var buf bytes.Buffer
	n.write(&buf)
	return buf.Bytes()
}

func (n *Node) write(buf *bytes.Buffer) {
	switch n.Kind {
	case DocumentNode:
		for _, c := range n.Children {
			c.write(buf)
			if c.Kind == ProcInstNode {
				buf.WriteString("\r\n")
			}
		}
	case TextNode:
		_, _ = textEscaper.WriteString(buf, n.Text)
	case ProcInstNode:
		buf.WriteString("<?" + n.Name)
		if n.Text != "" {
			buf.WriteString(" " + n.Text)
		}
		buf.WriteString("?>")
	case CommentNode:
		buf.WriteString("<!--" + n.Text + "-->")
	case DirectiveNode:
		buf.WriteString("<!" + n.Text + ">")
	case ElementNode:
		buf.WriteString("<" + n.Name)
		for _, a := range n.Attrs {
			buf.WriteString(" " + a.Name + `="`)
			_ = xml.EscapeText(buf, []byte(a.Value))
			buf.WriteString(`"`)
		}
		if len(n.Children) == 0 {
			buf.WriteString("/>")
			return
		}
		buf.WriteString(">")
		for _, c := range n.Children {
			c.write(buf)
		}
		buf.WriteString("</" + n.Name + ">")
	}
}

// EnsureNamespace declares prefix on the element when it is not declared yet.
func (n *Node) EnsureNamespace(prefix, uri string) {
	if _, ok := n.Attr("xmlns:" + prefix); ok {
		return
	}
	n.Attrs = append(n.Attrs, Attr{Name: "xmlns:" + prefix, Value: uri})
}

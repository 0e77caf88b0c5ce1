package pptx

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"
)

// Package is an Open Packaging Conventions container. Parts are kept as raw
// bytes until they are parsed; parsed parts are written back from their tree.
type Package struct {
	order []string
	parts map[string][]byte
	trees map[string]*Node
}

// OpenPackage reads a zip container into memory.
func OpenPackage(data []byte) (*Package, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotPresentation, err)
	}
	pkg := &Package{parts: make(map[string][]byte), trees: make(map[string]*Node)}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open part %s: %w", f.Name, err)
		}
		b, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read part %s: %w", f.Name, err)
		}
		pkg.order = append(pkg.order, f.Name)
		pkg.parts[f.Name] = b
	}
	return pkg, nil
}

// NewPackage returns an empty package.
func NewPackage() *Package {
	return &Package{parts: make(map[string][]byte), trees: make(map[string]*Node)}
}

// Has reports whether the part exists.
func (p *Package) Has(name string) bool {
	name = partName(name)
	if _, ok := p.trees[name]; ok {
		return true
	}
	_, ok := p.parts[name]
	return ok
}

// PartNames returns the part names in container order.
func (p *Package) PartNames() []string {
	return append([]string(nil), p.order...)
}

// Part returns the current bytes of a part.
func (p *Package) Part(name string) ([]byte, bool) {
	name = partName(name)
	if tree, ok := p.trees[name]; ok {
		return tree.Bytes(), true
	}
	b, ok := p.parts[name]
	return b, ok
}

// SetPart stores raw bytes for a part, adding it when new.
func (p *Package) SetPart(name string, data []byte) {
	name = partName(name)
	if _, ok := p.parts[name]; !ok {
		if _, parsed := p.trees[name]; !parsed {
			p.order = append(p.order, name)
		}
	}
	delete(p.trees, name)
	p.parts[name] = data
}

// XML returns the parsed tree of a part. Later changes to the tree are
// written out by Bytes.
func (p *Package) XML(name string) (*Node, error) {
	name = partName(name)
	if tree, ok := p.trees[name]; ok {
		return tree, nil
	}
	b, ok := p.parts[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPartNotFound, name)
	}
	tree, err := ParseXML(b)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	p.trees[name] = tree
	return tree, nil
}

// SetXML stores a tree for a part, adding it when new.
func (p *Package) SetXML(name string, tree *Node) {
	name = partName(name)
	if !p.Has(name) {
		p.order = append(p.order, name)
	}
	delete(p.parts, name)
	p.trees[name] = tree
}

// UniqueName returns the first part name of the form prefix<N>ext that is
// not taken yet, starting at N=1.
func (p *Package) UniqueName(prefix, ext string) string {
	for n := 1; ; n++ {
		name := fmt.Sprintf("%s%d%s", prefix, n, ext)
		if !p.Has(name) {
			return name
		}
	}
}

// Bytes writes the package as a zip archive, keeping the original part order.
func (p *Package) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range p.order {
		data, ok := p.Part(name)
		if !ok {
			continue
		}
		if err := writeZipBytes(zw, name, data); err != nil {
			_ = zw.Close()
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close zip: %w", err)
	}
	return buf.Bytes(), nil
}

func writeZipBytes(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return fmt.Errorf("create zip entry %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write zip entry %s: %w", name, err)
	}
	return nil
}

func partName(name string) string {
	return strings.TrimPrefix(name, "/")
}

// relsPartFor returns the relationships part of a source part:
// "ppt/slides/slide1.xml" -> "ppt/slides/_rels/slide1.xml.rels".
func relsPartFor(source string) string {
	source = partName(source)
	if source == "" {
		return "_rels/.rels"
	}
	dir, file := path.Split(source)
	return dir + "_rels/" + file + ".rels"
}

// resolveTarget resolves a relationship target against its source part.
func resolveTarget(source, target string) string {
	if strings.HasPrefix(target, "/") {
		return partName(path.Clean(target))
	}
	return partName(path.Join(path.Dir(partName(source)), target))
}

// relativeTarget expresses part as a target relative to source.
func relativeTarget(source, part string) string {
	srcDir := strings.Split(path.Dir(partName(source)), "/")
	dst := strings.Split(partName(part), "/")
	i := 0
	for i < len(srcDir) && i < len(dst)-1 && srcDir[i] == dst[i] {
		i++
	}
	var segs []string
	for j := i; j < len(srcDir); j++ {
		if srcDir[j] != "." && srcDir[j] != "" {
			segs = append(segs, "..")
		}
	}
	segs = append(segs, dst[i:]...)
	return strings.Join(segs, "/")
}

// Package pptxtest builds small presentations for tests.
package pptxtest

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/imdeck/internal/pptx"
)

// Deck describes a presentation to build.
type Deck struct {
	Width  int64
	Height int64
	Slides []Slide
}

// Slide describes one slide.
type Slide struct {
	// Layout names the slide layout. Slides sharing a name share a layout.
	Layout string
	// Background is "solid" for an own solid fill, "" to inherit.
	Background string
	Shapes     []Shape
}

// Shape describes a text box, placeholder, group, chart or picture.
type Shape struct {
	Name string
	// Text holds paragraphs separated by "\n".
	Text string
	// Runs, when set, renders a single paragraph with one run per entry.
	// The first run is bold.
	Runs []string
	// Placeholder is the placeholder type ("title", "body", ...).
	Placeholder string
	// PlaceholderIdx is the placeholder idx attribute.
	PlaceholderIdx string
	// Inherit omits the shape geometry so it is taken from the layout.
	Inherit bool
	Rect    pptx.Rect
	Group   []Shape
	Chart   *pptx.ChartData
	Picture []byte
}

// Default geometry of the layout placeholders.
var (
	TitleRect = pptx.Rect{X: 838200, Y: 365125, CX: 10515600, CY: 1325563}
	BodyRect  = pptx.Rect{X: 838200, Y: 1825625, CX: 10515600, CY: 4351338}
)

// TextBox returns a plain text box.
func TextBox(name, text string, rect pptx.Rect) Shape {
	return Shape{Name: name, Text: text, Rect: rect}
}

// Title returns a title placeholder.
func Title(text string) Shape {
	return Shape{Name: "Title", Text: text, Placeholder: "title", Rect: TitleRect}
}

// Group returns a group shape.
func Group(name string, children ...Shape) Shape {
	return Shape{Name: name, Group: children}
}

// ChartFrame returns a chart with the given data.
func ChartFrame(name string, rect pptx.Rect, data pptx.ChartData) Shape {
	return Shape{Name: name, Rect: rect, Chart: &data}
}

// Build renders the deck.
func Build(t testing.TB, d Deck) []byte {
	t.Helper()
	data, err := build(d)
	require.NoError(t, err)
	return data
}

const (
	nsDecl = `xmlns:a="` + pptx.NamespaceA + `" xmlns:r="` + pptx.NamespaceR + `" xmlns:p="` + pptx.NamespaceP + `"`
	decl   = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\r\n"
)

type pending struct {
	slide int
	shape Shape
}

func build(d Deck) ([]byte, error) {
	if d.Width == 0 {
		d.Width = pptx.DefaultSlideWidth
	}
	if d.Height == 0 {
		d.Height = pptx.DefaultSlideHeight
	}

	var layouts []string
	layoutIdx := map[string]int{}
	for _, s := range d.Slides {
		name := s.Layout
		if name == "" {
			name = "Title and Content"
		}
		if _, ok := layoutIdx[name]; !ok {
			layoutIdx[name] = len(layouts) + 1
			layouts = append(layouts, name)
		}
	}
	if len(layouts) == 0 {
		layouts = []string{"Title and Content"}
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	files := map[string]string{}
	var order []string
	add := func(name, body string) {
		order = append(order, name)
		files[name] = decl + body
	}

	var ct strings.Builder
	ct.WriteString(`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">`)
	ct.WriteString(`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>`)
	ct.WriteString(`<Default Extension="xml" ContentType="application/xml"/>`)
	ct.WriteString(`<Override PartName="/ppt/presentation.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.presentation.main+xml"/>`)
	ct.WriteString(`<Override PartName="/ppt/slideMasters/slideMaster1.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slideMaster+xml"/>`)
	for i := range layouts {
		fmt.Fprintf(&ct, `<Override PartName="/ppt/slideLayouts/slideLayout%d.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slideLayout+xml"/>`, i+1)
	}
	for i := range d.Slides {
		fmt.Fprintf(&ct, `<Override PartName="/ppt/slides/slide%d.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slide+xml"/>`, i+1)
	}
	ct.WriteString(`</Types>`)
	add("[Content_Types].xml", ct.String())

	add("_rels/.rels", `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`+
		`<Relationship Id="rId1" Type="`+pptx.RelOfficeDocument+`" Target="ppt/presentation.xml"/></Relationships>`)

	var pres, presRels strings.Builder
	pres.WriteString(`<p:presentation ` + nsDecl + `><p:sldMasterIdLst><p:sldMasterId id="2147483648" r:id="rId1"/></p:sldMasterIdLst><p:sldIdLst>`)
	presRels.WriteString(`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`)
	presRels.WriteString(`<Relationship Id="rId1" Type="` + pptx.RelSlideMaster + `" Target="slideMasters/slideMaster1.xml"/>`)
	for i := range d.Slides {
		fmt.Fprintf(&pres, `<p:sldId id="%d" r:id="rId%d"/>`, 256+i, i+2)
		fmt.Fprintf(&presRels, `<Relationship Id="rId%d" Type="%s" Target="slides/slide%d.xml"/>`, i+2, pptx.RelSlide, i+1)
	}
	fmt.Fprintf(&pres, `</p:sldIdLst><p:sldSz cx="%d" cy="%d"/><p:notesSz cx="6858000" cy="9144000"/></p:presentation>`, d.Width, d.Height)
	presRels.WriteString(`</Relationships>`)
	add("ppt/presentation.xml", pres.String())
	add("ppt/_rels/presentation.xml.rels", presRels.String())

	var master, masterRels strings.Builder
	master.WriteString(`<p:sldMaster ` + nsDecl + `><p:cSld><p:spTree>` + groupProps(1, "") + placeholderXML(2, "Title Placeholder 1", "title", "", TitleRect) + `</p:spTree></p:cSld>`)
	master.WriteString(`<p:clrMap bg1="lt1" tx1="dk1" bg2="lt2" tx2="dk2" accent1="accent1" accent2="accent2" accent3="accent3" accent4="accent4" accent5="accent5" accent6="accent6" hlink="hlink" folHlink="folHlink"/><p:sldLayoutIdLst>`)
	masterRels.WriteString(`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`)
	for i, name := range layouts {
		fmt.Fprintf(&master, `<p:sldLayoutId id="%d" r:id="rId%d"/>`, 2147483649+i, i+1)
		fmt.Fprintf(&masterRels, `<Relationship Id="rId%d" Type="%s" Target="../slideLayouts/slideLayout%d.xml"/>`, i+1, pptx.RelSlideLayout, i+1)
		add(fmt.Sprintf("ppt/slideLayouts/slideLayout%d.xml", i+1),
			`<p:sldLayout `+nsDecl+`><p:cSld name="`+escape(name)+`"><p:spTree>`+groupProps(1, "")+
				placeholderXML(2, "Content Placeholder 1", "body", "1", BodyRect)+`</p:spTree></p:cSld></p:sldLayout>`)
		add(fmt.Sprintf("ppt/slideLayouts/_rels/slideLayout%d.xml.rels", i+1),
			`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`+
				`<Relationship Id="rId1" Type="`+pptx.RelSlideMaster+`" Target="../slideMasters/slideMaster1.xml"/></Relationships>`)
	}
	master.WriteString(`</p:sldLayoutIdLst></p:sldMaster>`)
	masterRels.WriteString(`</Relationships>`)
	add("ppt/slideMasters/slideMaster1.xml", master.String())
	add("ppt/slideMasters/_rels/slideMaster1.xml.rels", masterRels.String())

	var later []pending
	for i, s := range d.Slides {
		name := s.Layout
		if name == "" {
			name = "Title and Content"
		}
		ids := &idGen{next: 2}
		var tree strings.Builder
		tree.WriteString(groupProps(1, ""))
		for _, sh := range s.Shapes {
			writeShape(&tree, sh, ids, i, &later)
		}
		var bg string
		if s.Background == "solid" {
			bg = `<p:bg><p:bgPr><a:solidFill><a:srgbClr val="FFFFFF"/></a:solidFill><a:effectLst/></p:bgPr></p:bg>`
		}
		add(fmt.Sprintf("ppt/slides/slide%d.xml", i+1),
			`<p:sld `+nsDecl+`><p:cSld>`+bg+`<p:spTree>`+tree.String()+`</p:spTree></p:cSld>`+
				`<p:clrMapOvr><a:masterClrMapping/></p:clrMapOvr></p:sld>`)
		add(fmt.Sprintf("ppt/slides/_rels/slide%d.xml.rels", i+1),
			fmt.Sprintf(`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`+
				`<Relationship Id="rId1" Type="%s" Target="../slideLayouts/slideLayout%d.xml"/></Relationships>`,
				pptx.RelSlideLayout, layoutIdx[name]))
	}

	for _, name := range order {
		w, err := zw.Create(name)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(files[name])); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	if len(later) == 0 {
		return buf.Bytes(), nil
	}
	return materialise(buf.Bytes(), later)
}

// materialise swaps the stand-in shapes of charts and pictures for the
// real thing, going through the same editing code the application uses.
func materialise(data []byte, later []pending) ([]byte, error) {
	pres, err := pptx.Open(data)
	if err != nil {
		return nil, err
	}
	for _, p := range later {
		slide := pres.Slides()[p.slide]
		shapes, err := slide.Shapes()
		if err != nil {
			return nil, err
		}
		var target *pptx.Shape
		for _, sh := range shapes {
			if sh.Name() == p.shape.Name {
				target = sh
				break
			}
		}
		if target == nil {
			return nil, fmt.Errorf("stand-in %q not found", p.shape.Name)
		}
		if p.shape.Chart != nil {
			if _, err := slide.ReplaceWithChart(target, p.shape.Rect, *p.shape.Chart); err != nil {
				return nil, err
			}
			continue
		}
		if _, err := slide.ReplaceWithPicture(target, p.shape.Picture, "png", p.shape.Rect); err != nil {
			return nil, err
		}
	}
	return pres.Save()
}

type idGen struct{ next int }

func (g *idGen) id() int {
	id := g.next
	g.next++
	return id
}

func writeShape(b *strings.Builder, sh Shape, ids *idGen, slide int, later *[]pending) {
	id := ids.id()
	name := sh.Name
	if name == "" {
		name = fmt.Sprintf("Shape %d", id)
		sh.Name = name
	}
	switch {
	case len(sh.Group) > 0:
		b.WriteString(`<p:grpSp>` + groupProps(id, name))
		for _, child := range sh.Group {
			writeShape(b, child, ids, slide, later)
		}
		b.WriteString(`</p:grpSp>`)
	case sh.Chart != nil || sh.Picture != nil:
		*later = append(*later, pending{slide: slide, shape: sh})
		fmt.Fprintf(b, `<p:sp><p:nvSpPr><p:cNvPr id="%d" name="%s"/><p:cNvSpPr/><p:nvPr/></p:nvSpPr><p:spPr>%s</p:spPr></p:sp>`,
			id, escape(name), xfrm(sh.Rect))
	default:
		var ph string
		if sh.Placeholder != "" {
			ph = `<p:ph type="` + sh.Placeholder + `"`
			if sh.PlaceholderIdx != "" {
				ph += ` idx="` + sh.PlaceholderIdx + `"`
			}
			ph += `/>`
		}
		geom := xfrm(sh.Rect)
		if sh.Inherit {
			geom = ""
		}
		fmt.Fprintf(b, `<p:sp><p:nvSpPr><p:cNvPr id="%d" name="%s"/><p:cNvSpPr txBox="1"/><p:nvPr>%s</p:nvPr></p:nvSpPr>`+
			`<p:spPr>%s<a:prstGeom prst="rect"><a:avLst/></a:prstGeom></p:spPr><p:txBody><a:bodyPr/><a:lstStyle/>%s</p:txBody></p:sp>`,
			id, escape(name), ph, geom, paragraphs(sh))
	}
}

func paragraphs(sh Shape) string {
	var b strings.Builder
	if len(sh.Runs) > 0 {
		b.WriteString(`<a:p>`)
		for i, r := range sh.Runs {
			bold := ""
			if i == 0 {
				bold = ` b="1"`
			}
			b.WriteString(`<a:r><a:rPr lang="en-US" sz="1800"` + bold + `/><a:t>` + escape(r) + `</a:t></a:r>`)
		}
		b.WriteString(`</a:p>`)
		return b.String()
	}
	for _, line := range strings.Split(sh.Text, "\n") {
		b.WriteString(`<a:p>`)
		if line != "" {
			b.WriteString(`<a:r><a:rPr lang="en-US" sz="1800"/><a:t>` + escape(line) + `</a:t></a:r>`)
		}
		b.WriteString(`<a:endParaRPr lang="en-US" sz="1800"/></a:p>`)
	}
	return b.String()
}

func placeholderXML(id int, name, typ, idx string, r pptx.Rect) string {
	ph := `<p:ph type="` + typ + `"`
	if idx != "" {
		ph += ` idx="` + idx + `"`
	}
	ph += `/>`
	return fmt.Sprintf(`<p:sp><p:nvSpPr><p:cNvPr id="%d" name="%s"/><p:cNvSpPr/><p:nvPr>%s</p:nvPr></p:nvSpPr>`+
		`<p:spPr>%s</p:spPr><p:txBody><a:bodyPr/><a:lstStyle/><a:p><a:endParaRPr lang="en-US"/></a:p></p:txBody></p:sp>`,
		id, escape(name), ph, xfrm(r))
}

func groupProps(id int, name string) string {
	return fmt.Sprintf(`<p:nvGrpSpPr><p:cNvPr id="%d" name="%s"/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr><p:grpSpPr/>`, id, escape(name))
}

func xfrm(r pptx.Rect) string {
	return fmt.Sprintf(`<a:xfrm><a:off x="%d" y="%d"/><a:ext cx="%d" cy="%d"/></a:xfrm>`, r.X, r.Y, r.CX, r.CY)
}

func escape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return r.Replace(s)
}

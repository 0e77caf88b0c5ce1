package pptx

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Chart is an opened chart part.
type Chart struct {
	pkg  *Package
	part string
	root *Node
}

// Series is the cached data of one chart series.
type Series struct {
	Name       string
	Categories []string
	Values     []float64
}

func openChart(pkg *Package, part string) (*Chart, error) {
	doc, err := pkg.XML(part)
	if err != nil {
		return nil, err
	}
	root := doc.Root()
	if root.Local() != "chartSpace" {
		return nil, fmt.Errorf("%w: %s is not a chart part", ErrNoChart, part)
	}
	return &Chart{pkg: pkg, part: part, root: root}, nil
}

// Part returns the chart part name.
func (c *Chart) Part() string {
	return c.part
}

// Title returns the chart title text, or "" when the chart has none.
func (c *Chart) Title() string {
	title := c.root.Find("chart", "title")
	if title == nil {
		return ""
	}
	var b strings.Builder
	for _, t := range title.Descendants("t") {
		b.WriteString(t.TextContent())
	}
	if b.Len() == 0 {
		for _, v := range title.Descendants("v") {
			b.WriteString(v.TextContent())
		}
	}
	return strings.TrimSpace(b.String())
}

func (c *Chart) plot() *Node {
	area := c.root.Find("chart", "plotArea")
	if area == nil {
		return nil
	}
	for _, el := range area.Elements() {
		if strings.HasSuffix(el.Local(), "Chart") {
			return el
		}
	}
	return nil
}

// Type returns the element name of the first plot, e.g. "barChart".
func (c *Chart) Type() string {
	if p := c.plot(); p != nil {
		return p.Local()
	}
	return ""
}

func xyPlot(p *Node) bool {
	l := p.Local()
	return l == "scatterChart" || l == "bubbleChart"
}

// Series returns the cached data of every series of the first plot.
func (c *Chart) Series() []Series {
	p := c.plot()
	if p == nil {
		return nil
	}
	catName, valName := "cat", "val"
	if xyPlot(p) {
		catName, valName = "xVal", "yVal"
	}
	var out []Series
	for _, ser := range p.ChildrenNamed("ser") {
		s := Series{}
		if tx := ser.Child("tx"); tx != nil {
			for _, v := range tx.Descendants("v") {
				s.Name += v.TextContent()
			}
		}
		if cat := ser.Child(catName); cat != nil {
			for _, pt := range cat.Descendants("pt") {
				if v := pt.Child("v"); v != nil {
					s.Categories = append(s.Categories, v.TextContent())
				}
			}
		}
		if val := ser.Child(valName); val != nil {
			for _, pt := range val.Descendants("pt") {
				if v := pt.Child("v"); v != nil {
					f, _ := strconv.ParseFloat(strings.TrimSpace(v.TextContent()), 64)
					s.Values = append(s.Values, f)
				}
			}
		}
		out = append(out, s)
	}
	return out
}

// plot properties that precede the series of a plot element
var plotLeading = map[string]bool{
	"barDir": true, "grouping": true, "varyColors": true, "scatterStyle": true,
	"radarStyle": true, "wireframe": true, "ofPieType": true,
}

// series children that may precede the category data
var serLeading = []string{
	"idx", "order", "tx", "spPr", "invertIfNegative", "pictureOptions",
	"marker", "dPt", "dLbls", "trendline", "errBars", "explosion",
}

// ReplaceData replaces the chart data with a single series. The cached
// values and the embedded workbook, when present, are both rewritten.
func (c *Chart) ReplaceData(name string, categories []string, values []float64) error {
	p := c.plot()
	if p == nil {
		return fmt.Errorf("%w: %s has no plot", ErrNoChart, c.part)
	}
	categories, values = alignSeries(categories, values)

	sers := p.ChildrenNamed("ser")
	var ser *Node
	if len(sers) == 0 {
		ser = NewElement("c:ser")
		ser.Append(NewElement("c:idx", "val", "0"), NewElement("c:order", "val", "0"))
		pos := 0
		for i, ch := range p.Children {
			if ch.Kind == ElementNode && plotLeading[ch.Local()] {
				pos = i + 1
			}
		}
		p.InsertAt(pos, ser)
	} else {
		ser = sers[0]
		for _, extra := range sers[1:] {
			p.Remove(extra)
		}
	}

	catName, valName := "cat", "val"
	if xyPlot(p) {
		catName, valName = "xVal", "yVal"
	}
	tx, cat, val, err := seriesNodes(name, catName, valName, categories, values)
	if err != nil {
		return err
	}
	setSeriesChild(ser, tx, []string{"idx", "order"})
	setSeriesChild(ser, cat, serLeading)
	setSeriesChild(ser, val, append(append([]string(nil), serLeading...), catName))

	return c.rewriteWorkbook(name, categories, values)
}

func (c *Chart) rewriteWorkbook(name string, categories []string, values []float64) error {
	ext := c.root.Child("externalData")
	if ext == nil {
		return nil
	}
	rels, err := c.pkg.Rels(c.part)
	if err != nil {
		return err
	}
	rel, ok := rels.ByID(relAttr(ext, "id"))
	if !ok || rel.External() {
		return nil
	}
	wb, err := seriesWorkbook(name, categories, values)
	if err != nil {
		return err
	}
	c.pkg.SetPart(rels.Resolve(rel), wb)
	return nil
}

func setSeriesChild(ser, child *Node, after []string) {
	if old := ser.Child(child.Local()); old != nil {
		ser.Replace(old, child)
		return
	}
	allowed := make(map[string]bool, len(after))
	for _, a := range after {
		allowed[a] = true
	}
	pos := 0
	for i, ch := range ser.Children {
		if ch.Kind == ElementNode && allowed[ch.Local()] {
			pos = i + 1
		}
	}
	ser.InsertAt(pos, child)
}

func alignSeries(categories []string, values []float64) ([]string, []float64) {
	n := len(categories)
	if len(values) < n {
		n = len(values)
	}
	return categories[:n], values[:n]
}

func seriesNodes(name, catName, valName string, categories []string, values []float64) (tx, cat, val *Node, err error) {
	n := len(categories)
	last := strconv.Itoa(n + 1)

	var b strings.Builder
	b.WriteString(`<c:tx><c:strRef><c:f>Sheet1!$B$1</c:f><c:strCache><c:ptCount val="1"/><c:pt idx="0"><c:v>`)
	b.WriteString(escape(name))
	b.WriteString(`</c:v></c:pt></c:strCache></c:strRef></c:tx>`)
	if tx, err = ParseFragment(b.String()); err != nil {
		return nil, nil, nil, err
	}

	b.Reset()
	fmt.Fprintf(&b, `<c:%s><c:strRef><c:f>Sheet1!$A$2:$A$%s</c:f><c:strCache><c:ptCount val="%d"/>`, catName, last, n)
	for i, s := range categories {
		fmt.Fprintf(&b, `<c:pt idx="%d"><c:v>%s</c:v></c:pt>`, i, escape(s))
	}
	fmt.Fprintf(&b, `</c:strCache></c:strRef></c:%s>`, catName)
	if cat, err = ParseFragment(b.String()); err != nil {
		return nil, nil, nil, err
	}

	b.Reset()
	fmt.Fprintf(&b, `<c:%s><c:numRef><c:f>Sheet1!$B$2:$B$%s</c:f><c:numCache><c:formatCode>General</c:formatCode><c:ptCount val="%d"/>`, valName, last, n)
	for i, v := range values {
		fmt.Fprintf(&b, `<c:pt idx="%d"><c:v>%s</c:v></c:pt>`, i, strconv.FormatFloat(v, 'f', -1, 64))
	}
	fmt.Fprintf(&b, `</c:numCache></c:numRef></c:%s>`, valName)
	if val, err = ParseFragment(b.String()); err != nil {
		return nil, nil, nil, err
	}
	return tx, cat, val, nil
}

// seriesWorkbook builds the embedded workbook backing a single series:
// the name in B1, categories in column A and values in column B.
func seriesWorkbook(name string, categories []string, values []float64) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	const sheet = "Sheet1"
	if err := f.SetCellValue(sheet, "B1", name); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	for i := range categories {
		a, _ := excelize.CoordinatesToCellName(1, i+2)
		b, _ := excelize.CoordinatesToCellName(2, i+2)
		if err := f.SetCellValue(sheet, a, categories[i]); err != nil {
			return nil, fmt.Errorf("write workbook: %w", err)
		}
		if err := f.SetCellValue(sheet, b, values[i]); err != nil {
			return nil, fmt.Errorf("write workbook: %w", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// ChartData describes a single-series chart to create.
type ChartData struct {
	Title      string
	SeriesName string
	Categories []string
	Values     []float64
	XLabel     string
	YLabel     string
}

// BarChartXML renders a clustered column chart part. workbookRelID is the
// relationship id of the embedded workbook, or "" for none.
func BarChartXML(d ChartData, workbookRelID string) ([]byte, error) {
	cats, vals := alignSeries(d.Categories, d.Values)
	tx, cat, val, err := seriesNodes(d.SeriesName, "cat", "val", cats, vals)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\r\n")
	b.WriteString(`<c:chartSpace xmlns:c="` + NamespaceC + `" xmlns:a="` + NamespaceA + `" xmlns:r="` + NamespaceR + `">`)
	b.WriteString(`<c:roundedCorners val="0"/><c:chart>`)
	if d.Title != "" {
		b.WriteString(`<c:title>` + richText(d.Title) + `<c:overlay val="0"/></c:title><c:autoTitleDeleted val="0"/>`)
	} else {
		b.WriteString(`<c:autoTitleDeleted val="1"/>`)
	}
	b.WriteString(`<c:plotArea><c:layout/><c:barChart><c:barDir val="col"/><c:grouping val="clustered"/><c:varyColors val="0"/>`)
	b.WriteString(`<c:ser><c:idx val="0"/><c:order val="0"/>`)
	b.Write(tx.Bytes())
	b.WriteString(`<c:invertIfNegative val="0"/>`)
	b.Write(cat.Bytes())
	b.Write(val.Bytes())
	b.WriteString(`</c:ser><c:gapWidth val="150"/><c:axId val="500000001"/><c:axId val="500000002"/></c:barChart>`)
	b.WriteString(`<c:catAx><c:axId val="500000001"/><c:scaling><c:orientation val="minMax"/></c:scaling><c:delete val="0"/><c:axPos val="b"/>`)
	if d.XLabel != "" {
		b.WriteString(`<c:title>` + richText(d.XLabel) + `<c:overlay val="0"/></c:title>`)
	}
	b.WriteString(`<c:numFmt formatCode="General" sourceLinked="1"/><c:tickLblPos val="nextTo"/><c:crossAx val="500000002"/><c:crosses val="autoZero"/><c:auto val="1"/><c:lblAlgn val="ctr"/><c:lblOffset val="100"/><c:noMultiLvlLbl val="0"/></c:catAx>`)
	b.WriteString(`<c:valAx><c:axId val="500000002"/><c:scaling><c:orientation val="minMax"/></c:scaling><c:delete val="0"/><c:axPos val="l"/><c:majorGridlines/>`)
	if d.YLabel != "" {
		b.WriteString(`<c:title>` + richText(d.YLabel) + `<c:overlay val="0"/></c:title>`)
	}
	b.WriteString(`<c:numFmt formatCode="General" sourceLinked="1"/><c:tickLblPos val="nextTo"/><c:crossAx val="500000001"/><c:crosses val="autoZero"/><c:crossBetween val="between"/></c:valAx>`)
	b.WriteString(`</c:plotArea><c:plotVisOnly val="1"/><c:dispBlanksAs val="gap"/></c:chart>`)
	if workbookRelID != "" {
		b.WriteString(`<c:externalData r:id="` + escape(workbookRelID) + `"><c:autoUpdate val="0"/></c:externalData>`)
	}
	b.WriteString(`</c:chartSpace>`)
	return []byte(b.String()), nil
}

func richText(s string) string {
	return `<c:tx><c:rich><a:bodyPr/><a:lstStyle/><a:p><a:r><a:t>` + escape(s) + `</a:t></a:r></a:p></c:rich></c:tx>`
}

// ReplaceWithChart swaps a shape for a native bar chart occupying rect.
// A new chart part and its embedded workbook are added to the package.
func (s *Slide) ReplaceWithChart(sh *Shape, rect Rect, d ChartData) (*Shape, error) {
	pkg := s.pres.pkg
	chartPart := pkg.UniqueName("ppt/charts/chart", ".xml")
	embedPart := pkg.UniqueName("ppt/embeddings/Microsoft_Excel_Worksheet", ".xlsx")

	cats, vals := alignSeries(d.Categories, d.Values)
	wb, err := seriesWorkbook(d.SeriesName, cats, vals)
	if err != nil {
		return nil, err
	}
	pkg.SetPart(embedPart, wb)
	chartRels, err := pkg.Rels(chartPart)
	if err != nil {
		return nil, err
	}
	wbID := chartRels.Add(RelPackage, embedPart)
	chartXML, err := BarChartXML(d, wbID)
	if err != nil {
		return nil, err
	}
	pkg.SetPart(chartPart, chartXML)

	if err := pkg.EnsureDefault("xlsx", ContentTypeXLSX); err != nil {
		return nil, err
	}
	if err := pkg.EnsureOverride(chartPart, ContentTypeChart); err != nil {
		return nil, err
	}

	slideRels, err := s.Rels()
	if err != nil {
		return nil, err
	}
	rid := slideRels.Add(RelChart, chartPart)
	id := s.nextShapeID()
	frame, err := ParseFragment(fmt.Sprintf(
		`<p:graphicFrame><p:nvGraphicFramePr><p:cNvPr id="%d" name="Chart %d"/><p:cNvGraphicFramePr/><p:nvPr/></p:nvGraphicFramePr>`+
			`<p:xfrm><a:off x="%d" y="%d"/><a:ext cx="%d" cy="%d"/></p:xfrm>`+
			`<a:graphic><a:graphicData uri="%s"><c:chart xmlns:c="%s" xmlns:r="%s" r:id="%s"/></a:graphicData></a:graphic></p:graphicFrame>`,
		id, id, rect.X, rect.Y, rect.CX, rect.CY, chartURI, NamespaceC, NamespaceR, rid))
	if err != nil {
		return nil, err
	}
	return sh.replace(frame)
}

func escape(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

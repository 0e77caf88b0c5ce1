package pptx

import (
	"strings"
	"unicode/utf8"
)

func (sh *Shape) txBody() *Node {
	return sh.node.Child("txBody")
}

// HasText reports whether the shape has a text frame.
func (sh *Shape) HasText() bool {
	return sh.Kind.CanHoldText() && sh.txBody() != nil
}

// Text returns the shape text with paragraphs separated by "\n".
func (sh *Shape) Text() string {
	body := sh.txBody()
	if body == nil {
		return ""
	}
	var paras []string
	for _, p := range body.ChildrenNamed("p") {
		paras = append(paras, paragraphText(p))
	}
	return strings.Join(paras, "\n")
}

func paragraphText(p *Node) string {
	var b strings.Builder
	for _, c := range p.Elements() {
		switch c.Local() {
		case "r", "fld":
			if t := c.Child("t"); t != nil {
				b.WriteString(t.TextContent())
			}
		case "br":
			b.WriteString("\n")
		}
	}
	return b.String()
}

// ReplaceInRuns applies fn to the text of every run independently, leaving
// run properties untouched. It reports whether any run changed.
func (sh *Shape) ReplaceInRuns(fn func(string) string) bool {
	body := sh.txBody()
	if body == nil {
		return false
	}
	changed := false
	for _, t := range body.Descendants("t") {
		old := t.TextContent()
		if updated := fn(old); updated != old {
			t.SetText(updated)
			changed = true
		}
	}
	return changed
}

// ReplaceAcrossRuns applies fn to the joined text of each run sequence of a
// paragraph, so it sees text split over several runs. Line breaks and fields
// end a sequence. Only the runs covering the changed span are merged into the
// first of them; runs before and after it keep their text and formatting.
// It reports whether any text changed.
func (sh *Shape) ReplaceAcrossRuns(fn func(string) string) bool {
	body := sh.txBody()
	if body == nil {
		return false
	}
	changed := false
	for _, p := range body.ChildrenNamed("p") {
		var seq []*Node
		for _, c := range p.Elements() {
			if c.Local() == "r" && c.Child("t") != nil {
				seq = append(seq, c)
				continue
			}
			if mergeRuns(p, seq, fn) {
				changed = true
			}
			seq = nil
		}
		if mergeRuns(p, seq, fn) {
			changed = true
		}
	}
	return changed
}

func mergeRuns(p *Node, runs []*Node, fn func(string) string) bool {
	if len(runs) < 2 {
		return false
	}
	texts := make([]string, len(runs))
	var b strings.Builder
	for i, r := range runs {
		texts[i] = r.Child("t").TextContent()
		b.WriteString(texts[i])
	}
	old := b.String()
	updated := fn(old)
	if updated == old {
		return false
	}

	start, end := changedSpan(old, updated)
	middle := updated[start : len(updated)-(len(old)-end)]

	// Locate the runs holding the first and last changed bytes.
	first, last := -1, -1
	offset := 0
	for i, t := range texts {
		next := offset + len(t)
		if first < 0 && start < next {
			first = i
		}
		if end > offset && end <= next {
			last = i
		}
		offset = next
	}
	if first < 0 {
		first = len(runs) - 1
	}
	if last < first {
		last = first
	}

	firstStart := 0
	for _, t := range texts[:first] {
		firstStart += len(t)
	}
	lastStart := firstStart
	for _, t := range texts[first:last] {
		lastStart += len(t)
	}
	merged := texts[first][:start-firstStart] + middle + texts[last][end-lastStart:]
	runs[first].Child("t").SetText(merged)
	for _, r := range runs[first+1 : last+1] {
		p.Remove(r)
	}
	return true
}

// changedSpan returns the byte range of old that differs from updated,
// widened to rune boundaries.
func changedSpan(old, updated string) (start, end int) {
	limit := min(len(old), len(updated))
	for start < limit && old[start] == updated[start] {
		start++
	}
	suffix := 0
	for suffix < limit-start && old[len(old)-1-suffix] == updated[len(updated)-1-suffix] {
		suffix++
	}
	end = len(old) - suffix
	for start > 0 && start < len(old) && !utf8.RuneStart(old[start]) {
		start--
	}
	for end < len(old) && !utf8.RuneStart(old[end]) {
		end++
	}
	return start, end
}

// SetText rewrites the whole text frame. Each line becomes a paragraph.
func (sh *Shape) SetText(text string) {
	sh.SetParagraphs(strings.Split(text, "\n"))
}

// SetParagraphs rewrites the text frame with one paragraph per line. The
// formatting of the first paragraph and run is carried over to every line.
func (sh *Shape) SetParagraphs(lines []string) {
	body := sh.txBody()
	if body == nil {
		body = NewElement("p:txBody")
		body.Append(NewElement("a:bodyPr"), NewElement("a:lstStyle"))
		if ext := sh.node.Child("extLst"); ext != nil {
			sh.node.InsertAt(sh.node.IndexOf(ext), body)
		} else {
			sh.node.Append(body)
		}
	}

	var pPr, rPr, endRPr *Node
	if first := body.Child("p"); first != nil {
		pPr = first.Child("pPr")
		endRPr = first.Child("endParaRPr")
	}
	if runs := body.Descendants("r"); len(runs) > 0 {
		rPr = runs[0].Child("rPr")
	}
	if rPr == nil && endRPr != nil {
		rPr = endRPr.Clone()
		rPr.Name = prefixed(endRPr, "rPr")
	}

	body.RemoveNamed("p")
	if len(lines) == 0 {
		lines = []string{""}
	}
	for _, line := range lines {
		p := NewElement("a:p")
		if pPr != nil {
			p.Append(pPr.Clone())
		}
		if line != "" {
			r := NewElement("a:r")
			if rPr != nil {
				r.Append(rPr.Clone())
			}
			t := NewElement("a:t")
			t.SetText(line)
			r.Append(t)
			p.Append(r)
		}
		if endRPr != nil {
			p.Append(endRPr.Clone())
		}
		body.Append(p)
	}
}

func prefixed(like *Node, local string) string {
	if p := like.Prefix(); p != "" {
		return p + ":" + local
	}
	return local
}

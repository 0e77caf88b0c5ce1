package services

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/custodia-labs/imdeck/internal/core/domain"
)

// DraftItem is one slide of a completion reply.
type DraftItem struct {
	SlideIndex   *flexInt   `json:"slide_index"`
	Content      string     `json:"content"`
	BulletPoints bulletList `json:"bullet_points"`
	Notes        string     `json:"notes"`

	// skipped marks an item that did not decode. It keeps its position in
	// the reply so the items after it still map to their slides.
	skipped bool
}

// flexInt accepts 3 and "3".
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("slide_index %s: %w", b, err)
	}
	*f = flexInt(n)
	return nil
}

// bulletList accepts a list of strings or a single newline separated string.
type bulletList []string

func (l *bulletList) UnmarshalJSON(b []byte) error {
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		*l = list
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*l = strings.Split(s, "\n")
	return nil
}

// replyStrategy turns a raw reply into a candidate JSON text.
type replyStrategy struct {
	name    string
	extract func(string) (string, bool)
}

// replyStrategies are tried in order; the first that decodes wins.
var replyStrategies = []replyStrategy{
	{"direct", func(s string) (string, bool) { return strings.TrimSpace(s), true }},
	{"fenced", stripFence},
	{"sliced", sliceJSON},
	{"repaired", repairJSON},
}

// ParseDraftReply decodes a completion reply into slide items.
func ParseDraftReply(reply string) ([]DraftItem, error) {
	if strings.TrimSpace(reply) == "" {
		return nil, fmt.Errorf("%w: empty reply", domain.ErrMalformedResponse)
	}
	for _, st := range replyStrategies {
		text, ok := st.extract(reply)
		if !ok {
			continue
		}
		if items, ok := decodeItems(text); ok {
			return items, nil
		}
	}
	return nil, fmt.Errorf("%w: no JSON slide list found", domain.ErrMalformedResponse)
}

func decodeItems(text string) ([]DraftItem, bool) {
	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(text), &raw); err == nil {
		return decodeEach(raw)
	}
	var wrapped struct {
		Slides []json.RawMessage `json:"slides"`
	}
	if err := json.Unmarshal([]byte(text), &wrapped); err == nil && len(wrapped.Slides) > 0 {
		return decodeEach(wrapped.Slides)
	}
	var single DraftItem
	if err := json.Unmarshal([]byte(text), &single); err == nil && (single.Content != "" || len(single.BulletPoints) > 0) {
		return []DraftItem{single}, true
	}
	return nil, false
}

// decodeEach decodes list elements one at a time. Elements that fail are
// marked skipped; the list is usable when at least one element decodes.
func decodeEach(raw []json.RawMessage) ([]DraftItem, bool) {
	items := make([]DraftItem, len(raw))
	decoded := 0
	for i, r := range raw {
		if err := json.Unmarshal(r, &items[i]); err != nil {
			items[i] = DraftItem{skipped: true}
			continue
		}
		decoded++
	}
	return items, decoded > 0
}

func stripFence(s string) (string, bool) {
	start := strings.Index(s, "```")
	if start < 0 {
		return "", false
	}
	body := s[start+3:]
	// Drop the info string, e.g. "json".
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	}
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body), true
}

func sliceJSON(s string) (string, bool) {
	for _, pair := range [][2]string{{"[", "]"}, {"{", "}"}} {
		start := strings.Index(s, pair[0])
		end := strings.LastIndex(s, pair[1])
		if start >= 0 && end > start {
			return s[start : end+1], true
		}
	}
	return "", false
}

func repairJSON(s string) (string, bool) {
	candidate := s
	if fenced, ok := stripFence(s); ok {
		candidate = fenced
	}
	if i := strings.IndexAny(candidate, "[{"); i >= 0 {
		candidate = candidate[i:]
	}
	repaired, err := jsonrepair.JSONRepair(candidate)
	if err != nil {
		return "", false
	}
	return repaired, true
}

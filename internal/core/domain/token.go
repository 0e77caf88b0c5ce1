package domain

import (
	"regexp"
	"strconv"
	"strings"
)

// Well-known simple tokens.
const (
	TokenCompanyName      = "{{COMPANY_NAME}}"
	TokenWebsite          = "{{WEBSITE}}"
	TokenTagline          = "{{TAGLINE}}"
	TokenYear             = "{{YEAR}}"
	TokenContent          = "{{CONTENT}}"
	TokenBulletPoints     = "{{BULLET_POINTS}}"
	TokenAboutBullets     = "{{ABOUT_BULLETS}}"
	TokenLogo             = "{{LOGO}}"
	TokenCompanyLogo      = "{{COMPANY_LOGO}}"
	TokenChartPlaceholder = "{{CHART_PLACEHOLDER}}"
)

// Verbs of parameterized tokens.
const (
	VerbChart               = "CHART"
	VerbEnhanceContent      = "ENHANCE_CONTENT"
	VerbEnhanceBulletPoints = "ENHANCE_BULLET_POINTS"
)

// DefaultSeriesName is used when a chart token carries no usable argument.
const DefaultSeriesName = "Revenue"

var tokenPattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

var knownSimple = map[string]bool{
	"COMPANY_NAME":      true,
	"WEBSITE":           true,
	"TAGLINE":           true,
	"YEAR":              true,
	"CONTENT":           true,
	"BULLET_POINTS":     true,
	"ABOUT_BULLETS":     true,
	"LOGO":              true,
	"COMPANY_LOGO":      true,
	"CHART_PLACEHOLDER": true,
}

var knownVerbs = map[string]bool{
	VerbChart:               true,
	VerbEnhanceContent:      true,
	VerbEnhanceBulletPoints: true,
}

// Token is one {{...}} placeholder occurrence.
type Token struct {
	// Raw is the full token including braces, e.g. "{{CHART:Revenue}}".
	Raw string

	// Name is the text between the braces.
	Name string

	// Verb is the part before the colon of a parameterized token.
	// Empty for simple tokens.
	Verb string

	// Arg is the part after the colon of a parameterized token.
	Arg string
}

// Parameterized reports whether the token has the {{VERB:ARG}} shape.
func (t Token) Parameterized() bool {
	return t.Verb != ""
}

// Known reports whether the token belongs to the recognised grammar.
// Unknown tokens are preserved verbatim by every substitution step.
func (t Token) Known() bool {
	if t.Parameterized() {
		return knownVerbs[t.Verb]
	}
	return knownSimple[t.Name]
}

// ParseToken parses a single raw token string such as "{{YEAR}}".
// It returns false when raw is not exactly one token.
func ParseToken(raw string) (Token, bool) {
	m := tokenPattern.FindStringSubmatch(raw)
	if m == nil || m[0] != raw {
		return Token{}, false
	}
	return newToken(m[0], m[1]), true
}

func newToken(raw, name string) Token {
	tok := Token{Raw: raw, Name: name}
	// Exactly one colon separates verb and argument.
	if strings.Count(name, ":") == 1 {
		idx := strings.Index(name, ":")
		tok.Verb = name[:idx]
		tok.Arg = name[idx+1:]
	}
	return tok
}

// FindTokens returns every token occurrence in text, in order.
func FindTokens(text string) []Token {
	matches := tokenPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	tokens := make([]Token, 0, len(matches))
	for _, m := range matches {
		tokens = append(tokens, newToken(m[0], m[1]))
	}
	return tokens
}

// DistinctTokens returns the raw token strings found across texts,
// de-duplicated in order of first appearance.
func DistinctTokens(texts ...string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, text := range texts {
		for _, tok := range FindTokens(text) {
			if seen[tok.Raw] {
				continue
			}
			seen[tok.Raw] = true
			out = append(out, tok.Raw)
		}
	}
	return out
}

// ContainsToken reports whether text holds any token at all.
func ContainsToken(text string) bool {
	return tokenPattern.MatchString(text)
}

// ReplaceTokens substitutes every occurrence of the tokens keyed in values
// in a single pass. Tokens missing from values are left untouched, so text
// without tokens is returned unchanged.
func ReplaceTokens(text string, values map[string]string) string {
	if len(values) == 0 || !strings.Contains(text, "{{") {
		return text
	}
	return tokenPattern.ReplaceAllStringFunc(text, func(raw string) string {
		if v, ok := values[raw]; ok {
			return v
		}
		return raw
	})
}

// ChartTokenFor builds the chart token for a chart title or, when the
// title is empty, for a synthesized per-slide name.
func ChartTokenFor(title string, slideIndex int) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return "{{" + VerbChart + ":Chart_" + strconv.Itoa(slideIndex) + "}}"
	}
	return "{{" + VerbChart + ":" + title + "}}"
}

// SeriesNameFromToken extracts the series name carried by a chart token.
// It returns DefaultSeriesName when the token has no CHART argument.
func SeriesNameFromToken(token string) string {
	idx := strings.Index(token, VerbChart+":")
	if idx < 0 {
		return DefaultSeriesName
	}
	name := strings.TrimRight(token[idx+len(VerbChart)+1:], "}")
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultSeriesName
	}
	return name
}

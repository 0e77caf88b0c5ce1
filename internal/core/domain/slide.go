package domain

// BoundingBox is a shape's position and size in EMU (English Metric Units).
type BoundingBox struct {
	Left   int64 `json:"left"`
	Top    int64 `json:"top"`
	Width  int64 `json:"width"`
	Height int64 `json:"height"`
}

// ChartToken is a chart placeholder discovered in a template slide.
type ChartToken struct {
	// Token is the chart token, e.g. "{{CHART:Revenue}}".
	Token string `json:"token"`

	// SeriesName is the financial series the chart should display.
	SeriesName string `json:"series_name"`

	// ChartType is the plot tag of the chart part, e.g. "barChart".
	ChartType string `json:"chart_type"`

	// SlideIndex is the zero-based slide holding the chart.
	SlideIndex int `json:"slide_index"`

	// BBox is the chart frame's geometry.
	BBox BoundingBox `json:"bbox"`
}

// StyleSample records inspection metadata for a slide.
// It is not consumed by assembly.
type StyleSample struct {
	// Layout is the name of the slide layout.
	Layout string `json:"layout"`

	// Background is the background fill tag (solid, gradient, inherited...).
	Background string `json:"background"`
}

// SlideDef describes one template slide.
type SlideDef struct {
	// SlideIndex is the zero-based position of the slide.
	SlideIndex int `json:"slide_index"`

	// Title is the title placeholder text, first text, or "Slide N".
	Title string `json:"title"`

	// Tokens are the distinct tokens on the slide in order of first appearance.
	Tokens []string `json:"tokens"`

	// ChartTokens are the chart placeholders on the slide.
	ChartTokens []ChartToken `json:"chart_tokens"`

	// Style is the slide's style sample.
	Style StyleSample `json:"style"`
}

// TemplateAnalysis is the structural description of a whole template.
type TemplateAnalysis struct {
	// SlideDefs are the analysed slides in slide order.
	SlideDefs []SlideDef `json:"slide_defs"`

	// ChartTokens aggregates the chart placeholders of every slide.
	ChartTokens []ChartToken `json:"chart_tokens"`

	// StyleMap maps style keys ("layout", "background") to sample values.
	StyleMap map[string]string `json:"style_map"`
}

// Tokens returns every distinct token of the template in slide order.
func (a TemplateAnalysis) Tokens() []string {
	var out []string
	seen := make(map[string]bool)
	for _, def := range a.SlideDefs {
		for _, tok := range def.Tokens {
			if !seen[tok] {
				seen[tok] = true
				out = append(out, tok)
			}
		}
	}
	return out
}

// EmptyAnalysis is the degraded result returned when a template cannot be read.
func EmptyAnalysis() TemplateAnalysis {
	return TemplateAnalysis{
		SlideDefs:   []SlideDef{},
		ChartTokens: []ChartToken{},
		StyleMap:    map[string]string{},
	}
}

// SlideCategory is the semantic group a slide is drafted in.
type SlideCategory string

// Slide categories, in keyword-matching order.
const (
	CategoryExecutiveSummary  SlideCategory = "executive_summary"
	CategoryCompanyProfile    SlideCategory = "company_profile"
	CategoryMarketAnalysis    SlideCategory = "market_analysis"
	CategoryFinancialAnalysis SlideCategory = "financial_analysis"
	CategoryTeamOverview      SlideCategory = "team_overview"
	CategoryInvestmentCase    SlideCategory = "investment_case"
	CategoryContentSlide      SlideCategory = "content_slide"
)

// SlideDraft is generated copy for one slide.
type SlideDraft struct {
	// SlideIndex is the zero-based target slide.
	SlideIndex int `json:"slide_index"`

	// Content is the main narrative, one or two sentences.
	Content string `json:"content"`

	// BulletPoints are the bullet lines for the slide.
	BulletPoints []string `json:"bullet_points"`

	// Notes is the presenter note.
	Notes string `json:"notes"`

	// SlideTitle echoes the analysed slide title.
	SlideTitle string `json:"slide_title"`

	// CompanyName echoes the company the draft was written for.
	CompanyName string `json:"company_name"`

	// Website echoes the company website.
	Website string `json:"website"`

	// Fallback is true when the draft was produced without the completion service.
	Fallback bool `json:"fallback"`
}

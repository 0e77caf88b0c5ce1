package services

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/imdeck/internal/core/domain"
	"github.com/custodia-labs/imdeck/internal/logger"
	"github.com/custodia-labs/imdeck/internal/pptx"
)

// TemplateAnalyzer discovers the titles, tokens and chart placeholders of a
// presentation template.
type TemplateAnalyzer struct{}

// NewTemplateAnalyzer creates a template analyzer.
func NewTemplateAnalyzer() *TemplateAnalyzer {
	return &TemplateAnalyzer{}
}

// Analyze never fails. Bytes that are not a presentation yield an empty
// analysis so later stages can still run with defaults.
func (a *TemplateAnalyzer) Analyze(template []byte) domain.TemplateAnalysis {
	pres, err := pptx.Open(template)
	if err != nil {
		logger.Warn("Template analysis skipped: %v", err)
		return domain.EmptyAnalysis()
	}
	return a.AnalyzePresentation(pres)
}

// AnalyzePresentation analyses an opened presentation. A slide that cannot
// be read is logged and left out.
func (a *TemplateAnalyzer) AnalyzePresentation(pres *pptx.Presentation) domain.TemplateAnalysis {
	analysis := domain.EmptyAnalysis()
	for _, slide := range pres.Slides() {
		def, err := analyzeSlide(slide)
		if err != nil {
			logger.Warn("Skipping slide %d during analysis: %v", slide.Index+1, err)
			continue
		}
		analysis.SlideDefs = append(analysis.SlideDefs, def)
		analysis.ChartTokens = append(analysis.ChartTokens, def.ChartTokens...)
		analysis.StyleMap["layout"] = def.Style.Layout
		analysis.StyleMap["background"] = def.Style.Background
	}
	logger.Debug("Analysed %d slides, %d chart placeholders", len(analysis.SlideDefs), len(analysis.ChartTokens))
	return analysis
}

func analyzeSlide(slide *pptx.Slide) (domain.SlideDef, error) {
	shapes, err := slide.Shapes()
	if err != nil {
		return domain.SlideDef{}, err
	}

	def := domain.SlideDef{
		SlideIndex:  slide.Index,
		Tokens:      []string{},
		ChartTokens: []domain.ChartToken{},
		Style: domain.StyleSample{
			Layout:     slide.LayoutName(),
			Background: slide.Background(),
		},
	}

	var texts []string
	var title, firstText string
	for _, sh := range shapes {
		if sh.Kind == pptx.KindChart {
			def.ChartTokens = append(def.ChartTokens, chartTokenFor(slide.Index, sh))
			continue
		}
		if !sh.HasText() {
			continue
		}
		text := sh.Text()
		texts = append(texts, text)
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			continue
		}
		if title == "" && sh.IsTitle() {
			title = trimmed
		}
		if firstText == "" {
			firstText = trimmed
		}
	}

	switch {
	case title != "":
		def.Title = title
	case firstText != "":
		def.Title = firstText
	default:
		def.Title = fmt.Sprintf("Slide %d", slide.Index+1)
	}
	if tokens := domain.DistinctTokens(texts...); tokens != nil {
		def.Tokens = tokens
	}
	return def, nil
}

func chartTokenFor(slideIndex int, sh *pptx.Shape) domain.ChartToken {
	var title string
	chartType := "unknown"
	if chart, err := sh.Chart(); err != nil {
		logger.Warn("Chart on slide %d unreadable: %v", slideIndex+1, err)
	} else {
		title = chart.Title()
		if t := chart.Type(); t != "" {
			chartType = t
		}
	}
	token := domain.ChartTokenFor(title, slideIndex)
	// A title that already carries a chart token names the series itself.
	for _, t := range domain.FindTokens(title) {
		if t.Verb == domain.VerbChart {
			token = t.Raw
			break
		}
	}
	rect, _ := sh.Rect()
	return domain.ChartToken{
		Token:      token,
		SeriesName: domain.SeriesNameFromToken(token),
		ChartType:  chartType,
		SlideIndex: slideIndex,
		BBox: domain.BoundingBox{
			Left:   rect.X,
			Top:    rect.Y,
			Width:  rect.CX,
			Height: rect.CY,
		},
	}
}

package services

import (
	"bytes"
	"image"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/imdeck/internal/core/domain"
	"github.com/custodia-labs/imdeck/internal/pptx"
	"github.com/custodia-labs/imdeck/internal/pptx/pptxtest"
)

var assemblerBox = pptx.Rect{X: 500000, Y: 500000, CX: 4000000, CY: 1000000}

func newTestAssembler() *DeckAssembler {
	return NewDeckAssembler(AssemblerConfig{
		Now: func() time.Time { return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC) },
	})
}

// assemblerTexts returns the text of every text shape, per slide.
func assemblerTexts(t *testing.T, deck []byte) [][]string {
	t.Helper()
	pres, err := pptx.Open(deck)
	require.NoError(t, err)
	var out [][]string
	for _, slide := range pres.Slides() {
		shapes, err := slide.Shapes()
		require.NoError(t, err)
		var texts []string
		for _, sh := range shapes {
			if sh.HasText() {
				texts = append(texts, sh.Text())
			}
		}
		out = append(out, texts)
	}
	return out
}

func assemblerShapes(t *testing.T, deck []byte, slide int, kind pptx.ShapeKind) []*pptx.Shape {
	t.Helper()
	pres, err := pptx.Open(deck)
	require.NoError(t, err)
	shapes, err := pres.Slides()[slide].Shapes()
	require.NoError(t, err)
	var out []*pptx.Shape
	for _, sh := range shapes {
		if sh.Kind == kind {
			out = append(out, sh)
		}
	}
	return out
}

func assemblerSeries(t *testing.T, deck []byte, slide int) pptx.Series {
	t.Helper()
	charts := assemblerShapes(t, deck, slide, pptx.KindChart)
	require.Len(t, charts, 1)
	chart, err := charts[0].Chart()
	require.NoError(t, err)
	series := chart.Series()
	require.Len(t, series, 1)
	return series[0]
}

func assemblerPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func TestDeckAssembler_GlobalTokens(t *testing.T) {
	template := pptxtest.Build(t, pptxtest.Deck{Slides: []pptxtest.Slide{
		{Shapes: []pptxtest.Shape{
			pptxtest.Title("{{COMPANY_NAME}} builds {{TAGLINE}}"),
			pptxtest.TextBox("Footer", "{{WEBSITE}} © {{YEAR}} {{COMPANY_NAME}}", assemblerBox),
		}},
		{Shapes: []pptxtest.Shape{
			pptxtest.Group("G", pptxtest.TextBox("Nested", "Hello {{COMPANY_NAME}}", assemblerBox)),
		}},
	}})

	deck, err := newTestAssembler().Assemble(AssembleInput{
		Template:    template,
		CompanyName: "Acme",
		Website:     "acme.com",
		Tagline:     "decks",
	})

	require.NoError(t, err)
	texts := assemblerTexts(t, deck)
	assert.Equal(t, []string{"Acme builds decks", "acme.com © 2025 Acme"}, texts[0])
	assert.Equal(t, []string{"Hello Acme"}, texts[1])
}

func TestDeckAssembler_DefaultTagline(t *testing.T) {
	template := pptxtest.Build(t, pptxtest.Deck{Slides: []pptxtest.Slide{
		{Shapes: []pptxtest.Shape{pptxtest.Title("{{TAGLINE}}")}},
	}})

	deck, err := newTestAssembler().Assemble(AssembleInput{Template: template, CompanyName: "Acme"})

	require.NoError(t, err)
	assert.Equal(t, "Leading Acme solutions", assemblerTexts(t, deck)[0][0])
}

func TestDeckAssembler_RunFormattingKept(t *testing.T) {
	template := pptxtest.Build(t, pptxtest.Deck{Slides: []pptxtest.Slide{
		{Shapes: []pptxtest.Shape{
			{Name: "Runs", Runs: []string{"{{COMPANY_NAME}}", " is great"}, Rect: assemblerBox},
			{Name: "Split", Runs: []string{"{{COMPANY", "_NAME}} rocks"}, Rect: assemblerBox},
		}},
	}})

	deck, err := newTestAssembler().Assemble(AssembleInput{Template: template, CompanyName: "Acme"})

	require.NoError(t, err)
	assert.Equal(t, []string{"Acme is great", "Acme rocks"}, assemblerTexts(t, deck)[0])
	pres, err := pptx.Open(deck)
	require.NoError(t, err)
	slideXML, ok := pres.Package().Part("ppt/slides/slide1.xml")
	require.True(t, ok)
	assert.Contains(t, string(slideXML), `<a:rPr lang="en-US" sz="1800" b="1"/><a:t>Acme</a:t>`)
}

func TestDeckAssembler_SplitTokenKeepsOtherRuns(t *testing.T) {
	template := pptxtest.Build(t, pptxtest.Deck{Slides: []pptxtest.Slide{
		{Shapes: []pptxtest.Shape{
			{Name: "Split", Runs: []string{"Intro ", "by {{COMP", "ANY_NAME}} in ", "{{YEAR}}", " done"}, Rect: assemblerBox},
			pptxtest.TextBox("Lines", "first line\n{{WEBSITE}}", assemblerBox),
		}},
	}})

	deck, err := newTestAssembler().Assemble(AssembleInput{Template: template, CompanyName: "Acme", Website: "acme.com"})

	require.NoError(t, err)
	texts := assemblerTexts(t, deck)[0]
	assert.Equal(t, "Intro by Acme in 2025 done", texts[0])
	assert.Equal(t, "first line\nacme.com", texts[1])

	pres, err := pptx.Open(deck)
	require.NoError(t, err)
	slideXML, ok := pres.Package().Part("ppt/slides/slide1.xml")
	require.True(t, ok)
	part := string(slideXML)
	// the bold lead run and the runs outside the token keep their own runs
	assert.Contains(t, part, `b="1"/><a:t>Intro </a:t>`)
	assert.Contains(t, part, `<a:t>by Acme in </a:t>`)
	assert.Contains(t, part, `<a:t> done</a:t>`)
}

func TestDeckAssembler_UnknownTokensPreserved(t *testing.T) {
	template := pptxtest.Build(t, pptxtest.Deck{Slides: []pptxtest.Slide{
		{Shapes: []pptxtest.Shape{pptxtest.TextBox("Box", "{{FOO_BAR}} and {{COMPANY_NAME}}", assemblerBox)}},
	}})

	deck, err := newTestAssembler().Assemble(AssembleInput{
		Template:    template,
		CompanyName: "Acme",
		Drafts:      []domain.SlideDraft{{SlideIndex: 0, Content: "ignored"}},
	})

	require.NoError(t, err)
	assert.Equal(t, "{{FOO_BAR}} and Acme", assemblerTexts(t, deck)[0][0])
}

func TestDeckAssembler_ContentTokens(t *testing.T) {
	template := pptxtest.Build(t, pptxtest.Deck{Slides: []pptxtest.Slide{
		{Shapes: []pptxtest.Shape{
			pptxtest.TextBox("Body", "{{ENHANCE_CONTENT:intro}}", assemblerBox),
			pptxtest.TextBox("List", "{{ENHANCE_BULLET_POINTS:intro}}", assemblerBox),
			pptxtest.TextBox("Generic", "{{CONTENT}}", assemblerBox),
		}},
		{Shapes: []pptxtest.Shape{
			pptxtest.TextBox("Body", "{{CONTENT}}", assemblerBox),
			pptxtest.TextBox("List", "Highlights:{{BULLET_POINTS}}", assemblerBox),
			pptxtest.TextBox("Only", "{{BULLET_POINTS}}", assemblerBox),
		}},
		{Shapes: []pptxtest.Shape{
			pptxtest.TextBox("Body", "{{ENHANCE_CONTENT:x}}", assemblerBox),
			pptxtest.TextBox("List", "{{ENHANCE_BULLET_POINTS:x}}", assemblerBox),
		}},
	}})
	drafts := []domain.SlideDraft{
		{SlideIndex: 0, Content: "Acme leads.", BulletPoints: []string{"a", "b"}},
		{SlideIndex: 1, Content: "Second.", BulletPoints: []string{"a", "b"}},
		{SlideIndex: 2},
		{SlideIndex: 9, Content: "nowhere"},
	}

	deck, err := newTestAssembler().Assemble(AssembleInput{Template: template, Drafts: drafts, CompanyName: "Acme"})

	require.NoError(t, err)
	texts := assemblerTexts(t, deck)
	assert.Equal(t, []string{"Acme leads.", "• a\n• b", "Acme leads."}, texts[0])
	assert.Equal(t, []string{"Second.", "Highlights:\n• a\n• b", "• a\n• b"}, texts[1])
	assert.Equal(t, []string{"Content to be added.", "• Key point to be added"}, texts[2])
}

func TestDeckAssembler_AboutBullets(t *testing.T) {
	template := pptxtest.Build(t, pptxtest.Deck{Slides: []pptxtest.Slide{
		{Shapes: []pptxtest.Shape{pptxtest.TextBox("About", "{{ABOUT_BULLETS}}", assemblerBox)}},
		{Shapes: []pptxtest.Shape{pptxtest.TextBox("About", "{{ABOUT_BULLETS}}", assemblerBox)}},
	}})

	deck, err := newTestAssembler().Assemble(AssembleInput{
		Template:     template,
		AboutBullets: []string{"Founded 2010", "120 staff"},
	})

	require.NoError(t, err)
	texts := assemblerTexts(t, deck)
	assert.Equal(t, []string{"Founded 2010\n120 staff"}, texts[0])
	assert.Equal(t, []string{"Founded 2010\n120 staff"}, texts[1])
}

func assemblerChartDeck(t *testing.T, title string) ([]byte, domain.TemplateAnalysis) {
	t.Helper()
	template := pptxtest.Build(t, pptxtest.Deck{Slides: []pptxtest.Slide{
		{Shapes: []pptxtest.Shape{pptxtest.Title("Financials")}},
		{Shapes: []pptxtest.Shape{
			pptxtest.ChartFrame("Chart", analyzerChartRect, pptx.ChartData{
				Title:      title,
				SeriesName: "Old",
				Categories: []string{"A", "B", "C"},
				Values:     []float64{1, 2, 3},
			}),
		}},
	}})
	return template, NewTemplateAnalyzer().Analyze(template)
}

func TestDeckAssembler_ChartInjection(t *testing.T) {
	template, analysis := assemblerChartDeck(t, "Revenue")
	fin := &domain.FinancialsData{Series: []domain.FinancialSeries{
		domain.SeriesFromPairs("EBITDA", [][2]float64{{2020, 5}}),
		domain.SeriesFromPairs("Revenue", [][2]float64{{2020, 100}, {2021, 150}}),
	}}

	deck, err := newTestAssembler().Assemble(AssembleInput{
		Template:    template,
		Financials:  fin,
		ChartTokens: analysis.ChartTokens,
	})

	require.NoError(t, err)
	series := assemblerSeries(t, deck, 1)
	assert.Equal(t, "Revenue", series.Name)
	assert.Equal(t, []string{"2020", "2021"}, series.Categories)
	assert.Equal(t, []float64{100, 150}, series.Values)
}

func TestDeckAssembler_ChartKeepsGivenOrder(t *testing.T) {
	template, analysis := assemblerChartDeck(t, "Revenue")
	fin := &domain.FinancialsData{Series: []domain.FinancialSeries{
		domain.SeriesFromPairs("Total Revenue", [][2]float64{{2022, 3}, {2020, 1}, {2021, 2}}),
	}}

	deck, err := newTestAssembler().Assemble(AssembleInput{Template: template, Financials: fin, ChartTokens: analysis.ChartTokens})

	require.NoError(t, err)
	series := assemblerSeries(t, deck, 1)
	assert.Equal(t, []string{"2022", "2020", "2021"}, series.Categories)
	assert.Equal(t, []float64{3, 1, 2}, series.Values)
}

func TestDeckAssembler_ChartMatchedByPosition(t *testing.T) {
	template, _ := assemblerChartDeck(t, "Sales by year")
	fin := &domain.FinancialsData{Series: []domain.FinancialSeries{
		domain.SeriesFromPairs("Revenue", [][2]float64{{2020, 100}}),
	}}
	token := func(dx int64) domain.ChartToken {
		return domain.ChartToken{
			Token:      "{{CHART:Revenue}}",
			SeriesName: "Revenue",
			SlideIndex: 1,
			BBox: domain.BoundingBox{
				Left:   analyzerChartRect.X + dx,
				Top:    analyzerChartRect.Y - dx,
				Width:  analyzerChartRect.CX + dx,
				Height: analyzerChartRect.CY,
			},
		}
	}

	near, err := newTestAssembler().Assemble(AssembleInput{Template: template, Financials: fin, ChartTokens: []domain.ChartToken{token(30)}})
	require.NoError(t, err)
	assert.Equal(t, []float64{100}, assemblerSeries(t, near, 1).Values)

	far, err := newTestAssembler().Assemble(AssembleInput{Template: template, Financials: fin, ChartTokens: []domain.ChartToken{token(500)}})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, assemblerSeries(t, far, 1).Values)

	wide := NewDeckAssembler(AssemblerConfig{ChartTolerance: 1000})
	loose, err := wide.Assemble(AssembleInput{Template: template, Financials: fin, ChartTokens: []domain.ChartToken{token(500)}})
	require.NoError(t, err)
	assert.Equal(t, []float64{100}, assemblerSeries(t, loose, 1).Values)
}

func TestDeckAssembler_StackedChartsMatchedByExtent(t *testing.T) {
	short := pptx.Rect{X: analyzerChartRect.X, Y: analyzerChartRect.Y, CX: analyzerChartRect.CX, CY: 1000000}
	tall := pptx.Rect{X: analyzerChartRect.X, Y: analyzerChartRect.Y, CX: analyzerChartRect.CX, CY: 2500000}
	old := pptx.ChartData{Title: "Sales", SeriesName: "Old", Categories: []string{"A"}, Values: []float64{1}}
	template := pptxtest.Build(t, pptxtest.Deck{Slides: []pptxtest.Slide{
		{Shapes: []pptxtest.Shape{
			pptxtest.ChartFrame("Short", short, old),
			pptxtest.ChartFrame("Tall", tall, old),
		}},
	}})
	fin := &domain.FinancialsData{Series: []domain.FinancialSeries{
		domain.SeriesFromPairs("Revenue", [][2]float64{{2020, 100}}),
	}}
	tok := domain.ChartToken{
		Token:      "{{CHART:Revenue}}",
		SeriesName: "Revenue",
		SlideIndex: 0,
		BBox:       domain.BoundingBox{Left: tall.X, Top: tall.Y, Width: tall.CX, Height: tall.CY},
	}

	deck, err := newTestAssembler().Assemble(AssembleInput{Template: template, Financials: fin, ChartTokens: []domain.ChartToken{tok}})

	require.NoError(t, err)
	charts := assemblerShapes(t, deck, 0, pptx.KindChart)
	require.Len(t, charts, 2)
	var values [][]float64
	for _, sh := range charts {
		chart, err := sh.Chart()
		require.NoError(t, err)
		values = append(values, chart.Series()[0].Values)
	}
	assert.Equal(t, [][]float64{{1}, {100}}, values)
}

func TestDeckAssembler_NoMatchLeavesDeckAlone(t *testing.T) {
	template, analysis := assemblerChartDeck(t, "Revenue")
	fin := &domain.FinancialsData{Series: []domain.FinancialSeries{
		domain.SeriesFromPairs("Headcount", [][2]float64{{2020, 10}}),
	}}
	tokens := append(analysis.ChartTokens, domain.ChartToken{Token: "{{CHART:Revenue}}", SlideIndex: 7})

	deck, err := newTestAssembler().Assemble(AssembleInput{
		Template:    template,
		Financials:  fin,
		ChartTokens: tokens,
		Logo:        nil,
	})

	require.NoError(t, err)
	series := assemblerSeries(t, deck, 1)
	assert.Equal(t, "Old", series.Name)
	assert.Equal(t, []string{"A", "B", "C"}, series.Categories)
	assert.Equal(t, []float64{1, 2, 3}, series.Values)
	assert.Empty(t, assemblerShapes(t, deck, 0, pptx.KindPicture))
	assert.Equal(t, assemblerTexts(t, template), assemblerTexts(t, deck))
}

func TestDeckAssembler_ChartPlaceholder(t *testing.T) {
	template := pptxtest.Build(t, pptxtest.Deck{Slides: []pptxtest.Slide{
		{Shapes: []pptxtest.Shape{pptxtest.TextBox("Chart here", "{{CHART_PLACEHOLDER}}", analyzerChartRect)}},
	}})
	fin := &domain.FinancialsData{Series: []domain.FinancialSeries{
		domain.SeriesFromPairs("Revenue", [][2]float64{{2022, 10}, {2023, 12}}),
	}}

	deck, err := newTestAssembler().Assemble(AssembleInput{Template: template, Financials: fin})

	require.NoError(t, err)
	charts := assemblerShapes(t, deck, 0, pptx.KindChart)
	require.Len(t, charts, 1)
	rect, ok := charts[0].Rect()
	require.True(t, ok)
	assert.Equal(t, analyzerChartRect, rect)
	chart, err := charts[0].Chart()
	require.NoError(t, err)
	assert.Equal(t, "Revenue", chart.Title())
	assert.Equal(t, []string{"2022", "2023"}, chart.Series()[0].Categories)
	assert.Empty(t, assemblerTexts(t, deck)[0])
}

func TestDeckAssembler_ChartPlaceholderWithoutData(t *testing.T) {
	template := pptxtest.Build(t, pptxtest.Deck{Slides: []pptxtest.Slide{
		{Shapes: []pptxtest.Shape{pptxtest.TextBox("Chart here", "{{CHART_PLACEHOLDER}}", analyzerChartRect)}},
	}})

	deck, err := newTestAssembler().Assemble(AssembleInput{Template: template, Financials: &domain.FinancialsData{}})

	require.NoError(t, err)
	assert.Empty(t, assemblerShapes(t, deck, 0, pptx.KindChart))
	assert.Equal(t, [][]string{{"{{CHART_PLACEHOLDER}}"}}, assemblerTexts(t, deck))
}

func TestDeckAssembler_LogoDefaultPosition(t *testing.T) {
	template := pptxtest.Build(t, pptxtest.Deck{Slides: []pptxtest.Slide{
		{Shapes: []pptxtest.Shape{pptxtest.Title("Acme")}},
	}})

	deck, err := newTestAssembler().Assemble(AssembleInput{Template: template, Logo: assemblerPNG(t, 400, 200)})

	require.NoError(t, err)
	pics := assemblerShapes(t, deck, 0, pptx.KindPicture)
	require.Len(t, pics, 1)
	rect, ok := pics[0].Rect()
	require.True(t, ok)
	cx, cy := 200*pptx.EMUPerPixel, 100*pptx.EMUPerPixel
	assert.Equal(t, pptx.Rect{X: pptx.DefaultSlideWidth - cx - DefaultLogoMargin, Y: DefaultLogoMargin, CX: cx, CY: cy}, rect)
}

func TestDeckAssembler_LogoPlaceholder(t *testing.T) {
	box := pptx.Rect{X: 0, Y: 0, CX: 2000000, CY: 2000000}
	template := pptxtest.Build(t, pptxtest.Deck{Slides: []pptxtest.Slide{
		{Shapes: []pptxtest.Shape{
			pptxtest.Title("Acme"),
			pptxtest.TextBox("Logo", "{{COMPANY_LOGO}}", box),
		}},
	}})

	deck, err := newTestAssembler().Assemble(AssembleInput{Template: template, Logo: assemblerPNG(t, 100, 50)})

	require.NoError(t, err)
	pics := assemblerShapes(t, deck, 0, pptx.KindPicture)
	require.Len(t, pics, 1)
	assert.Equal(t, "Logo", pics[0].Name())
	rect, _ := pics[0].Rect()
	assert.Equal(t, pptx.Rect{X: 0, Y: 500000, CX: 2000000, CY: 1000000}, rect)
	assert.Equal(t, []string{"Acme"}, assemblerTexts(t, deck)[0])
}

func TestDeckAssembler_BadLogoSkipped(t *testing.T) {
	template := pptxtest.Build(t, pptxtest.Deck{Slides: []pptxtest.Slide{
		{Shapes: []pptxtest.Shape{pptxtest.Title("{{COMPANY_NAME}}")}},
	}})

	deck, err := newTestAssembler().Assemble(AssembleInput{Template: template, CompanyName: "Acme", Logo: []byte("not an image")})

	require.NoError(t, err)
	assert.Empty(t, assemblerShapes(t, deck, 0, pptx.KindPicture))
	assert.Equal(t, "Acme", assemblerTexts(t, deck)[0][0])
}

func TestDeckAssembler_InvalidTemplate(t *testing.T) {
	_, err := newTestAssembler().Assemble(AssembleInput{Template: []byte("nope")})

	assert.ErrorIs(t, err, domain.ErrInvalidTemplate)
}

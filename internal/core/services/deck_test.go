package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/imdeck/internal/core/domain"
	"github.com/custodia-labs/imdeck/internal/core/ports/driven"
	"github.com/custodia-labs/imdeck/internal/core/ports/driving"
	"github.com/custodia-labs/imdeck/internal/pptx"
	"github.com/custodia-labs/imdeck/internal/pptx/pptxtest"
)

// --- Mock implementations for deck testing ---

type deckMockFinancials struct {
	data *domain.FinancialsData
	err  error
}

func (m *deckMockFinancials) ParseFinancials(context.Context, []byte) (*domain.FinancialsData, error) {
	return m.data, m.err
}

type deckMockBundles struct {
	bundle *domain.DocumentBundle
	err    error
}

func (m *deckMockBundles) ParseBundle(context.Context, []byte) (*domain.DocumentBundle, error) {
	return m.bundle, m.err
}

type deckMockLogo struct {
	calls int
	logo  []byte
	err   error
}

func (m *deckMockLogo) FetchLogo(context.Context, string, string) ([]byte, error) {
	m.calls++
	return m.logo, m.err
}

type deckMockIntel struct {
	intel *domain.Intelligence
	calls int
}

func (m *deckMockIntel) Gather(context.Context, string, string) (*domain.Intelligence, error) {
	m.calls++
	return m.intel, nil
}

func newDeckTestService(
	completion driven.CompletionService,
	fin driven.FinancialsParser,
	bundles driven.BundleParser,
	logos driven.LogoSource,
	intel driven.IntelligenceSource,
	metrics driven.MetricsRecorder,
) *DeckService {
	return NewDeckService(
		NewTemplateAnalyzer(),
		NewContentDrafter(completion, metrics, DrafterConfig{}),
		newTestAssembler(),
		fin, bundles, logos, intel, metrics,
	)
}

func deckTemplate(t *testing.T) []byte {
	t.Helper()
	return pptxtest.Build(t, pptxtest.Deck{Slides: []pptxtest.Slide{
		{Shapes: []pptxtest.Shape{
			pptxtest.Title("{{COMPANY_NAME}}"),
			pptxtest.TextBox("Sub", "{{TAGLINE}} {{FOO_BAR}}", assemblerBox),
		}},
		{Shapes: []pptxtest.Shape{
			pptxtest.Title("Financial Performance"),
			pptxtest.ChartFrame("Chart", analyzerChartRect, analyzerRevenue()),
			pptxtest.TextBox("Body", "{{ENHANCE_CONTENT:fin}}", assemblerBox),
		}},
	}})
}

func TestDeckService_Analyze(t *testing.T) {
	svc := newDeckTestService(nil, nil, nil, nil, nil, nil)

	analysis, err := svc.Analyze(context.Background(), deckTemplate(t))

	require.NoError(t, err)
	assert.Len(t, analysis.SlideDefs, 2)
	assert.Len(t, analysis.ChartTokens, 1)
}

func TestDeckService_AnalyzeRejectsNonPresentation(t *testing.T) {
	svc := newDeckTestService(nil, nil, nil, nil, nil, nil)

	_, err := svc.Analyze(context.Background(), []byte("zip? no"))

	assert.ErrorIs(t, err, domain.ErrInvalidTemplate)
}

func TestDeckService_Inspect(t *testing.T) {
	svc := newDeckTestService(nil, nil, nil, nil, nil, nil)

	tokens, err := svc.Inspect(context.Background(), deckTemplate(t))

	require.NoError(t, err)
	assert.Equal(t, []string{"{{COMPANY_NAME}}", "{{TAGLINE}}", "{{ENHANCE_CONTENT:fin}}", "{{CHART:Revenue}}"}, tokens)
}

func TestDeckService_BuildReportsProgress(t *testing.T) {
	metrics := newDraftMockMetrics()
	fin := &deckMockFinancials{data: &domain.FinancialsData{Series: []domain.FinancialSeries{
		domain.SeriesFromPairs("Revenue", [][2]float64{{2020, 100}, {2021, 150}}),
	}}}
	completion := &draftMockCompletion{reply: func(req driven.CompletionRequest) (string, error) {
		return `[{"slide_index": 0, "content": "Drafted."}]`, nil
	}}
	svc := newDeckTestService(completion, fin, &deckMockBundles{bundle: &domain.DocumentBundle{}}, nil, nil, metrics)
	var steps []domain.Progress

	deck, err := svc.Build(context.Background(), driving.BuildRequest{
		Template:    deckTemplate(t),
		Financials:  []byte("xlsx"),
		Bundle:      []byte("zip"),
		CompanyName: "Acme",
	}, func(p domain.Progress) { steps = append(steps, p) })

	require.NoError(t, err)
	require.Len(t, steps, 5)
	for i, p := range steps {
		assert.Equal(t, i+2, p.Step)
		assert.Equal(t, TotalSteps, p.Total)
	}
	assert.Equal(t, "Analyzing template structure...", steps[0].Description)
	assert.Equal(t, "Building PowerPoint deck...", steps[4].Description)

	texts := assemblerTexts(t, deck)
	assert.Equal(t, []string{"Acme", "Leading Acme solutions {{FOO_BAR}}"}, texts[0])
	assert.Contains(t, texts[1], "Drafted.")
	assert.Equal(t, []float64{100, 150}, assemblerSeries(t, deck, 1).Values)
	for _, stage := range []string{"analyze", "financials", "documents", "draft", "assemble"} {
		assert.Equal(t, 1, metrics.stages[stage], stage)
	}
}

func TestDeckService_BuildDegradesOnBadInputs(t *testing.T) {
	fin := &deckMockFinancials{err: errors.New("not a workbook")}
	bundles := &deckMockBundles{err: errors.New("not a zip")}
	svc := newDeckTestService(nil, fin, bundles, nil, nil, nil)

	deck, err := svc.Build(context.Background(), driving.BuildRequest{
		Template:    deckTemplate(t),
		Financials:  []byte("bad"),
		Bundle:      []byte("bad"),
		CompanyName: "Acme",
	}, nil)

	require.NoError(t, err)
	texts := assemblerTexts(t, deck)
	assert.Contains(t, texts[1], "Acme demonstrates strong financial performance and growth trajectory.")
	assert.Equal(t, "Sales", assemblerSeries(t, deck, 1).Name)
}

func TestDeckService_BuildInvalidTemplateStopsEarly(t *testing.T) {
	logos := &deckMockLogo{}
	svc := newDeckTestService(nil, nil, nil, logos, nil, nil)
	var steps []int

	_, err := svc.Build(context.Background(), driving.BuildRequest{
		Template:       []byte("not a deck"),
		CompanyName:    "Acme",
		PullPublicData: true,
	}, func(p domain.Progress) { steps = append(steps, p.Step) })

	assert.ErrorIs(t, err, domain.ErrInvalidTemplate)
	assert.Equal(t, []int{StepAnalyze}, steps)
	assert.Zero(t, logos.calls)
}

func TestDeckService_BuildRequiresTemplate(t *testing.T) {
	svc := newDeckTestService(nil, nil, nil, nil, nil, nil)

	_, err := svc.Build(context.Background(), driving.BuildRequest{CompanyName: "Acme"}, nil)

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDeckService_PublicData(t *testing.T) {
	logos := &deckMockLogo{logo: assemblerPNG(t, 64, 32)}
	intel := &deckMockIntel{intel: &domain.Intelligence{Description: "Makes widgets"}}
	completion := &draftMockCompletion{reply: func(driven.CompletionRequest) (string, error) {
		return "", errors.New("down")
	}}
	svc := newDeckTestService(completion, nil, nil, logos, intel, nil)
	req := driving.BuildRequest{Template: deckTemplate(t), CompanyName: "Acme", Website: "acme.com"}

	deck, err := svc.Build(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Zero(t, logos.calls)
	assert.Zero(t, intel.calls)
	assert.Empty(t, assemblerShapes(t, deck, 0, pptx.KindPicture))

	req.PullPublicData = true
	before := len(completion.requests)
	deck, err = svc.Build(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, logos.calls)
	assert.Equal(t, 1, intel.calls)
	assert.Len(t, assemblerShapes(t, deck, 0, pptx.KindPicture), 1)
	require.Greater(t, len(completion.requests), before)
	for _, r := range completion.requests[before:] {
		assert.True(t, strings.Contains(r.Prompt, "Business: Makes widgets"))
	}
}

func TestDeckService_UploadedLogoWins(t *testing.T) {
	logos := &deckMockLogo{err: domain.ErrLogoNotFound}
	svc := newDeckTestService(nil, nil, nil, logos, nil, nil)

	deck, err := svc.Build(context.Background(), driving.BuildRequest{
		Template:       deckTemplate(t),
		Logo:           assemblerPNG(t, 10, 10),
		PullPublicData: true,
	}, nil)

	require.NoError(t, err)
	assert.Zero(t, logos.calls)
	assert.Len(t, assemblerShapes(t, deck, 0, pptx.KindPicture), 1)
}

func TestDeckService_BuildCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	svc := newDeckTestService(nil, nil, nil, nil, nil, nil)
	progress := func(p domain.Progress) {
		if p.Step == StepAnalyze {
			cancel()
		}
	}

	_, err := svc.Build(ctx, driving.BuildRequest{Template: deckTemplate(t)}, progress)

	assert.ErrorIs(t, err, context.Canceled)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/imdeck/internal/core/domain"
	"github.com/custodia-labs/imdeck/internal/core/ports/driven"
	"github.com/custodia-labs/imdeck/internal/core/ports/driving"
	"github.com/custodia-labs/imdeck/internal/logger"
	"github.com/custodia-labs/imdeck/internal/pptx"
)

// Ensure DeckService implements the interface.
var _ driving.DeckService = (*DeckService)(nil)

// Pipeline steps reported through a domain.ProgressFunc.
const (
	StepDownload = iota + 1
	StepAnalyze
	StepFinancials
	StepDocuments
	StepGenerate
	StepBuild

	TotalSteps = StepBuild
)

var stepDescriptions = map[int]string{
	StepDownload:   "Downloading template...",
	StepAnalyze:    "Analyzing template structure...",
	StepFinancials: "Processing financial data...",
	StepDocuments:  "Processing documents...",
	StepGenerate:   "Generating slide content...",
	StepBuild:      "Building PowerPoint deck...",
}

func report(progress domain.ProgressFunc, step int) {
	logger.Debug("[%d/%d] %s", step, TotalSteps, stepDescriptions[step])
	if progress != nil {
		progress(domain.Progress{Step: step, Total: TotalSteps, Description: stepDescriptions[step]})
	}
}

// DeckService runs analysis, drafting and assembly on in-memory inputs.
type DeckService struct {
	analyzer     *TemplateAnalyzer
	drafter      *ContentDrafter
	assembler    *DeckAssembler
	financials   driven.FinancialsParser
	bundles      driven.BundleParser
	logos        driven.LogoSource
	intelligence driven.IntelligenceSource
	metrics      driven.MetricsRecorder
}

// NewDeckService creates a deck service.
// financials, bundles, logos, intelligence and metrics are optional; a nil
// parser means the corresponding input is ignored.
func NewDeckService(
	analyzer *TemplateAnalyzer,
	drafter *ContentDrafter,
	assembler *DeckAssembler,
	financials driven.FinancialsParser,
	bundles driven.BundleParser,
	logos driven.LogoSource,
	intelligence driven.IntelligenceSource,
	metrics driven.MetricsRecorder,
) *DeckService {
	return &DeckService{
		analyzer:     analyzer,
		drafter:      drafter,
		assembler:    assembler,
		financials:   financials,
		bundles:      bundles,
		logos:        logos,
		intelligence: intelligence,
		metrics:      metrics,
	}
}

// Analyze returns the template analysis. Unlike the analyzer itself it
// rejects bytes that are not a presentation.
func (s *DeckService) Analyze(_ context.Context, template []byte) (*domain.TemplateAnalysis, error) {
	pres, err := pptx.Open(template)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidTemplate, err)
	}
	analysis := s.analyzer.AnalyzePresentation(pres)
	return &analysis, nil
}

// Inspect returns the recognised tokens of a template in order of first
// appearance, chart tokens included.
func (s *DeckService) Inspect(ctx context.Context, template []byte) ([]string, error) {
	analysis, err := s.Analyze(ctx, template)
	if err != nil {
		return nil, err
	}
	tokens := []string{}
	seen := make(map[string]bool)
	add := func(raw string) {
		tok, ok := domain.ParseToken(raw)
		if !ok || !tok.Known() || seen[raw] {
			return
		}
		seen[raw] = true
		tokens = append(tokens, raw)
	}
	for _, raw := range analysis.Tokens() {
		add(raw)
	}
	for _, ct := range analysis.ChartTokens {
		add(ct.Token)
	}
	return tokens, nil
}

// Build runs steps 2 to 6 of the pipeline.
func (s *DeckService) Build(ctx context.Context, req driving.BuildRequest, progress domain.ProgressFunc) ([]byte, error) {
	if len(req.Template) == 0 {
		return nil, fmt.Errorf("%w: template is required", domain.ErrInvalidInput)
	}

	// 2. Analyse the template
	report(progress, StepAnalyze)
	start := time.Now()
	analysis, err := s.Analyze(ctx, req.Template)
	if err != nil {
		return nil, err
	}
	s.observe("analyze", start)
	logger.Info("Template has %d slides and %d chart placeholders", len(analysis.SlideDefs), len(analysis.ChartTokens))

	// 3. Financials
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	report(progress, StepFinancials)
	start = time.Now()
	fin := s.loadFinancials(ctx, req)
	s.observe("financials", start)

	// 4. Documents and public data
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	report(progress, StepDocuments)
	start = time.Now()
	bundle := s.loadBundle(ctx, req.Bundle)
	var intel *domain.Intelligence
	logo := req.Logo
	if req.PullPublicData {
		intel = s.gatherIntelligence(ctx, req.CompanyName, req.Website)
		if len(logo) == 0 {
			logo = s.fetchLogo(ctx, req.CompanyName, req.Website)
		}
	}
	s.observe("documents", start)

	// 5. Draft slide copy
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	report(progress, StepGenerate)
	start = time.Now()
	drafts := s.drafter.Draft(ctx, DraftInput{
		SlideDefs:    analysis.SlideDefs,
		CompanyName:  req.CompanyName,
		Website:      req.Website,
		Bundle:       bundle,
		Financials:   fin,
		Intelligence: intel,
	})
	s.observe("draft", start)

	// 6. Assemble
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	report(progress, StepBuild)
	start = time.Now()
	deck, err := s.assembler.Assemble(AssembleInput{
		Template:     req.Template,
		Drafts:       drafts,
		Financials:   fin,
		ChartTokens:  analysis.ChartTokens,
		Logo:         logo,
		CompanyName:  req.CompanyName,
		Website:      req.Website,
		Tagline:      req.Tagline,
		AboutBullets: req.AboutBullets,
		Chart:        req.Chart,
	})
	if err != nil {
		return nil, fmt.Errorf("assemble deck: %w", err)
	}
	s.observe("assemble", start)
	return deck, nil
}

func (s *DeckService) loadFinancials(ctx context.Context, req driving.BuildRequest) *domain.FinancialsData {
	if req.Series != nil {
		return req.Series
	}
	if len(req.Financials) == 0 || s.financials == nil {
		return nil
	}
	fin, err := s.financials.ParseFinancials(ctx, req.Financials)
	if err != nil {
		logger.Warn("Financials ignored: %v", err)
		return nil
	}
	logger.Info("Parsed %d financial series", len(fin.Series))
	return fin
}

func (s *DeckService) loadBundle(ctx context.Context, data []byte) *domain.DocumentBundle {
	if len(data) == 0 || s.bundles == nil {
		return nil
	}
	bundle, err := s.bundles.ParseBundle(ctx, data)
	if err != nil {
		logger.Warn("Document bundle ignored: %v", err)
		return nil
	}
	logger.Info("Extracted %d chunks from %d documents", len(bundle.Chunks), bundle.TotalDocs)
	return bundle
}

func (s *DeckService) gatherIntelligence(ctx context.Context, company, website string) *domain.Intelligence {
	if s.intelligence == nil {
		return nil
	}
	intel, err := s.intelligence.Gather(ctx, company, website)
	if err != nil {
		logger.Warn("Public company data unavailable: %v", err)
		return nil
	}
	return intel
}

func (s *DeckService) fetchLogo(ctx context.Context, company, website string) []byte {
	if s.logos == nil {
		return nil
	}
	logo, err := s.logos.FetchLogo(ctx, company, website)
	if err != nil {
		if !errors.Is(err, domain.ErrLogoNotFound) {
			logger.Warn("Logo fetch failed: %v", err)
		}
		return nil
	}
	return logo
}

func (s *DeckService) observe(stage string, start time.Time) {
	if s.metrics != nil {
		s.metrics.StageDuration(stage, time.Since(start))
	}
}

package services

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/imdeck/internal/core/domain"
	"github.com/custodia-labs/imdeck/internal/core/ports/driven"
	"github.com/custodia-labs/imdeck/internal/logger"
)

// Default drafter configuration values.
const (
	DefaultDraftConcurrency = 4
	DefaultDraftTimeout     = 60 * time.Second
	DefaultDraftMaxTokens   = 2000
	DefaultDraftTemperature = 0.7
)

// FallbackNote is the presenter note of every fallback draft.
const FallbackNote = "Fallback content generated due to LLM error"

// DrafterConfig holds content drafting settings.
type DrafterConfig struct {
	// Concurrency bounds the number of groups drafted at once.
	Concurrency int

	// RatePerSecond limits completion calls. Zero means unlimited.
	RatePerSecond float64

	// Timeout bounds each completion call.
	Timeout time.Duration

	// MaxTokens is passed to the completion service.
	MaxTokens int

	// Temperature is passed to the completion service.
	Temperature float64
}

// ContentDrafter writes slide copy, one completion request per slide group.
// Every slide always receives a draft: failures fall back to fixed copy.
type ContentDrafter struct {
	completion driven.CompletionService
	metrics    driven.MetricsRecorder
	prompts    driven.PromptStore
	limiter    *rate.Limiter
	cfg        DrafterConfig
}

// NewContentDrafter creates a drafter. completion and metrics may be nil.
func NewContentDrafter(completion driven.CompletionService, metrics driven.MetricsRecorder, cfg DrafterConfig) *ContentDrafter {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultDraftConcurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultDraftTimeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultDraftMaxTokens
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultDraftTemperature
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}
	return &ContentDrafter{
		completion: completion,
		metrics:    metrics,
		limiter:    limiter,
		cfg:        cfg,
	}
}

// Ensure ContentDrafter accepts custom prompts.
var _ driven.PromptStoreAware = (*ContentDrafter)(nil)

// SetPromptStore sets where the drafting system prompt is loaded from.
func (d *ContentDrafter) SetPromptStore(store driven.PromptStore) {
	d.prompts = store
}

func (d *ContentDrafter) systemPrompt() string {
	if d.prompts == nil {
		return DraftSystemPrompt
	}
	prompt, err := d.prompts.Load(driven.PromptDraftSystem)
	if err != nil || strings.TrimSpace(prompt) == "" {
		logger.Debug("Using built-in drafting prompt: %v", err)
		return DraftSystemPrompt
	}
	return prompt
}

// DraftInput is everything drafting draws on.
type DraftInput struct {
	SlideDefs    []domain.SlideDef
	CompanyName  string
	Website      string
	Bundle       *domain.DocumentBundle
	Financials   *domain.FinancialsData
	Intelligence *domain.Intelligence
}

type slideGroup struct {
	category domain.SlideCategory
	defs     []domain.SlideDef
}

// Draft returns exactly one draft per slide definition, ordered by slide index.
func (d *ContentDrafter) Draft(ctx context.Context, in DraftInput) []domain.SlideDraft {
	groups := groupSlides(in.SlideDefs)
	summary := BuildContext(in)
	results := make([][]domain.SlideDraft, len(groups))

	var g errgroup.Group
	g.SetLimit(d.cfg.Concurrency)
	for i, group := range groups {
		g.Go(func() error {
			results[i] = d.draftGroup(ctx, group, in, summary)
			return nil
		})
	}
	_ = g.Wait()

	var drafts []domain.SlideDraft
	fallbacks := 0
	for _, r := range results {
		for _, draft := range r {
			if draft.Fallback {
				fallbacks++
			}
			drafts = append(drafts, draft)
		}
	}
	sort.SliceStable(drafts, func(i, j int) bool {
		return drafts[i].SlideIndex < drafts[j].SlideIndex
	})
	if d.metrics != nil && fallbacks > 0 {
		d.metrics.DraftFallbacks(fallbacks)
	}
	logger.Debug("Drafted %d slides in %d groups (%d fallbacks)", len(drafts), len(groups), fallbacks)
	return drafts
}

func (d *ContentDrafter) draftGroup(ctx context.Context, group slideGroup, in DraftInput, summary string) []domain.SlideDraft {
	if d.completion == nil {
		return fallbackGroup(group, in)
	}
	reply, err := d.complete(ctx, group, in, summary)
	if err != nil {
		d.recordCall("error")
		logger.Warn("Drafting %s failed, using fallback: %v", group.category, err)
		return fallbackGroup(group, in)
	}
	items, err := ParseDraftReply(reply)
	if err != nil {
		d.recordCall("malformed")
		logger.Warn("Drafting %s returned an unusable reply, using fallback: %v", group.category, err)
		return fallbackGroup(group, in)
	}
	d.recordCall("ok")
	return mergeDrafts(group, in, items)
}

func (d *ContentDrafter) complete(ctx context.Context, group slideGroup, in DraftInput, summary string) (string, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return "", err
	}
	callCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()
	return d.completion.Complete(callCtx, driven.CompletionRequest{
		System:      d.systemPrompt(),
		Prompt:      draftUserPrompt(group, in, summary),
		MaxTokens:   d.cfg.MaxTokens,
		Temperature: d.cfg.Temperature,
	})
}

func (d *ContentDrafter) recordCall(outcome string) {
	if d.metrics != nil {
		d.metrics.CompletionCall(outcome)
	}
}

// mergeDrafts maps group-relative reply items onto slides. Items pointing
// outside the group or that failed to decode are dropped; slides left
// without an item fall back.
func mergeDrafts(group slideGroup, in DraftInput, items []DraftItem) []domain.SlideDraft {
	assigned := make([]*DraftItem, len(group.defs))
	for pos := range items {
		item := &items[pos]
		rel := pos
		if item.SlideIndex != nil {
			rel = int(*item.SlideIndex)
		}
		if item.skipped || rel < 0 || rel >= len(group.defs) || assigned[rel] != nil {
			continue
		}
		assigned[rel] = item
	}

	out := make([]domain.SlideDraft, 0, len(group.defs))
	for i, def := range group.defs {
		fb := fallbackDraft(group.category, def, in)
		item := assigned[i]
		if item == nil {
			out = append(out, fb)
			continue
		}
		draft := domain.SlideDraft{
			SlideIndex:   def.SlideIndex,
			Content:      strings.TrimSpace(item.Content),
			BulletPoints: cleanBullets(item.BulletPoints),
			Notes:        strings.TrimSpace(item.Notes),
			SlideTitle:   def.Title,
			CompanyName:  in.CompanyName,
			Website:      in.Website,
		}
		if draft.Content == "" {
			draft.Content = fb.Content
		}
		if len(draft.BulletPoints) == 0 {
			draft.BulletPoints = fb.BulletPoints
		}
		out = append(out, draft)
	}
	return out
}

func cleanBullets(in []string) []string {
	var out []string
	for _, b := range in {
		b = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(b), "•-*"))
		if b != "" {
			out = append(out, b)
		}
	}
	return out
}

// category keywords, matched in this order against lower-cased titles
var categoryKeywords = []struct {
	category domain.SlideCategory
	keywords []string
}{
	{domain.CategoryExecutiveSummary, []string{"executive", "summary", "overview"}},
	{domain.CategoryCompanyProfile, []string{"company", "about", "profile"}},
	{domain.CategoryMarketAnalysis, []string{"market", "industry", "opportunity"}},
	{domain.CategoryFinancialAnalysis, []string{"financial", "revenue", "growth"}},
	{domain.CategoryTeamOverview, []string{"team", "management", "leadership"}},
	{domain.CategoryInvestmentCase, []string{"investment", "use of funds", "funding"}},
}

// CategorizeTitle returns the semantic category of a slide title.
func CategorizeTitle(title string) domain.SlideCategory {
	t := strings.ToLower(title)
	for _, c := range categoryKeywords {
		for _, kw := range c.keywords {
			if strings.Contains(t, kw) {
				return c.category
			}
		}
	}
	return domain.CategoryContentSlide
}

// groupSlides batches slides by category in order of first appearance.
func groupSlides(defs []domain.SlideDef) []slideGroup {
	var groups []slideGroup
	index := make(map[domain.SlideCategory]int)
	for _, def := range defs {
		cat := CategorizeTitle(def.Title)
		i, ok := index[cat]
		if !ok {
			i = len(groups)
			index[cat] = i
			groups = append(groups, slideGroup{category: cat})
		}
		groups[i].defs = append(groups[i].defs, def)
	}
	return groups
}

var fallbackSentences = map[domain.SlideCategory]string{
	domain.CategoryExecutiveSummary:  "%s represents a compelling investment opportunity in the market.",
	domain.CategoryCompanyProfile:    "%s is a leading company with strong market position and growth potential.",
	domain.CategoryMarketAnalysis:    "The market presents significant opportunities for %s to expand and grow.",
	domain.CategoryFinancialAnalysis: "%s demonstrates strong financial performance and growth trajectory.",
	domain.CategoryTeamOverview:      "The management team at %s brings extensive industry experience and proven track record.",
	domain.CategoryInvestmentCase:    "Investment in %s offers attractive returns with manageable risk profile.",
}

var fallbackBullets = []string{
	"Strong market position in growing industry",
	"Experienced management team with proven track record",
	"Attractive financial metrics and growth potential",
}

// FallbackContent returns the fixed sentence for a category.
func FallbackContent(cat domain.SlideCategory, company string) string {
	if company == "" {
		company = "The company"
	}
	format, ok := fallbackSentences[cat]
	if !ok {
		format = "%s presents a strong investment opportunity."
	}
	return fmt.Sprintf(format, company)
}

func fallbackDraft(cat domain.SlideCategory, def domain.SlideDef, in DraftInput) domain.SlideDraft {
	return domain.SlideDraft{
		SlideIndex:   def.SlideIndex,
		Content:      FallbackContent(cat, in.CompanyName),
		BulletPoints: append([]string(nil), fallbackBullets...),
		Notes:        FallbackNote,
		SlideTitle:   def.Title,
		CompanyName:  in.CompanyName,
		Website:      in.Website,
		Fallback:     true,
	}
}

func fallbackGroup(group slideGroup, in DraftInput) []domain.SlideDraft {
	out := make([]domain.SlideDraft, 0, len(group.defs))
	for _, def := range group.defs {
		out = append(out, fallbackDraft(group.category, def, in))
	}
	return out
}

// BuildContext assembles the bounded company summary sent with every request.
func BuildContext(in DraftInput) string {
	parts := []string{"Company: " + in.CompanyName}
	if in.Website != "" {
		parts = append(parts, "Website: "+in.Website)
	}

	if intel := in.Intelligence; intel != nil {
		if intel.Description != "" {
			parts = append(parts, "Business: "+intel.Description)
		}
		if len(intel.Products) > 0 {
			parts = append(parts, "Products: "+strings.Join(firstN(intel.Products, 3), ", "))
		}
		if len(intel.Markets) > 0 {
			parts = append(parts, "Markets: "+strings.Join(firstN(intel.Markets, 3), ", "))
		}
		if len(intel.USPs) > 0 {
			parts = append(parts, "USPs: "+strings.Join(firstN(intel.USPs, 3), "; "))
		}
		if rev, ok := intel.LatestRevenue(); ok {
			parts = append(parts, fmt.Sprintf("Revenue %d: %s %s", rev.Year, formatValue(rev.Amount), rev.Currency))
		}
		if intel.Headcount > 0 {
			parts = append(parts, "Employees: "+strconv.Itoa(intel.Headcount))
		}
		if len(intel.Certifications) > 0 {
			parts = append(parts, "Certifications: "+strings.Join(firstN(intel.Certifications, 3), ", "))
		}
	}

	if in.Financials != nil {
		var entries []string
		for _, s := range in.Financials.Series {
			if len(entries) == 3 {
				break
			}
			if latest, ok := s.Deduplicated().Latest(); ok {
				entries = append(entries, fmt.Sprintf("%s: %s (%d)", s.Name, formatValue(latest.Value), latest.Year))
			}
		}
		if len(entries) > 0 {
			parts = append(parts, "Uploaded Financials: "+strings.Join(entries, "; "))
		}
	}

	if in.Bundle != nil {
		var insights []string
		for _, c := range in.Bundle.Chunks {
			if len(insights) == 3 {
				break
			}
			text := strings.TrimSpace(c.Text)
			if utf8.RuneCountInString(text) <= 30 {
				continue
			}
			insights = append(insights, leadSentence(text))
		}
		if len(insights) > 0 {
			parts = append(parts, "Document Insights: "+strings.Join(insights, " "))
		}
	}

	return strings.Join(parts, " | ")
}

func leadSentence(text string) string {
	if i := strings.Index(text, "."); i > 0 {
		return text[:i+1]
	}
	if utf8.RuneCountInString(text) > 80 {
		return string([]rune(text)[:80]) + "..."
	}
	return text
}

func firstN(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// DraftSystemPrompt is the built-in drafting system prompt.
const DraftSystemPrompt = `You are an investment banking analyst writing an Information Memorandum.
Reply with a JSON array only, no prose. Each element describes one slide:
{"slide_index": <0-based position of the slide in the request>, "content": "<one or two sentences>", "bullet_points": ["<3 to 5 short points>"], "notes": "<one presenter note>"}`

func draftUserPrompt(group slideGroup, in DraftInput, summary string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Company: %s\n", in.CompanyName)
	if in.Website != "" {
		fmt.Fprintf(&b, "Website: %s\n", in.Website)
	}
	fmt.Fprintf(&b, "Context: %s\n\n", summary)
	b.WriteString("Generate content for these slides:\n")
	for i, def := range group.defs {
		fmt.Fprintf(&b, "%d. %s\n", i, def.Title)
	}
	return b.String()
}

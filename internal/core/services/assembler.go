package services

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"github.com/custodia-labs/imdeck/internal/core/domain"
	"github.com/custodia-labs/imdeck/internal/logger"
	"github.com/custodia-labs/imdeck/internal/pptx"
)

// Default assembler configuration values.
const (
	DefaultChartTolerance int64 = 50
	DefaultLogoMaxWidth         = 200
	DefaultLogoMaxHeight        = 100
	DefaultLogoMargin     int64 = 457200
)

// Placeholder copy used when a draft has nothing for a content token.
const (
	placeholderContent = "Content to be added."
	placeholderBullet  = "Key point to be added"
	bulletGlyph        = "• "
)

// AssemblerConfig holds deck assembly settings.
type AssemblerConfig struct {
	// ChartTolerance is the maximum offset in EMU between a chart and the
	// recorded placeholder position for the two to match.
	ChartTolerance int64

	// LogoMaxWidth and LogoMaxHeight bound the logo in pixels.
	LogoMaxWidth  int
	LogoMaxHeight int

	// LogoMargin is the distance in EMU from the top right corner used when
	// the deck has no logo placeholder.
	LogoMargin int64

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// AssembleInput is everything that goes into a finished deck.
type AssembleInput struct {
	Template     []byte
	Drafts       []domain.SlideDraft
	Financials   *domain.FinancialsData
	ChartTokens  []domain.ChartToken
	Logo         []byte
	CompanyName  string
	Website      string
	Tagline      string
	AboutBullets []string
	Chart        domain.ChartSettings
}

// DeckAssembler fills a template with drafted content, financial charts and
// a logo. Only an unreadable template is an error; every other failure is
// logged and the affected element is left as it was.
type DeckAssembler struct {
	cfg AssemblerConfig
}

// NewDeckAssembler creates an assembler.
func NewDeckAssembler(cfg AssemblerConfig) *DeckAssembler {
	if cfg.ChartTolerance <= 0 {
		cfg.ChartTolerance = DefaultChartTolerance
	}
	if cfg.LogoMaxWidth <= 0 {
		cfg.LogoMaxWidth = DefaultLogoMaxWidth
	}
	if cfg.LogoMaxHeight <= 0 {
		cfg.LogoMaxHeight = DefaultLogoMaxHeight
	}
	if cfg.LogoMargin <= 0 {
		cfg.LogoMargin = DefaultLogoMargin
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &DeckAssembler{cfg: cfg}
}

// Assemble returns the finished deck bytes.
func (a *DeckAssembler) Assemble(in AssembleInput) ([]byte, error) {
	pres, err := pptx.Open(in.Template)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidTemplate, err)
	}
	if in.Chart.PlaceholderToken == "" {
		in.Chart = domain.DefaultChartSettings()
	}

	// 1. Global tokens
	a.replaceGlobals(pres, a.globalValues(in))

	// 2. Slide content
	drafts := make(map[int]domain.SlideDraft, len(in.Drafts))
	for _, d := range in.Drafts {
		if d.SlideIndex < 0 || d.SlideIndex >= len(pres.Slides()) {
			logger.Debug("Draft for slide %d has no slide, skipped", d.SlideIndex+1)
			continue
		}
		drafts[d.SlideIndex] = d
	}
	for _, slide := range pres.Slides() {
		draft, ok := drafts[slide.Index]
		var dp *domain.SlideDraft
		if ok {
			dp = &draft
		}
		a.insertContent(slide, dp, in.AboutBullets)
	}

	// 3. Charts
	if in.Financials != nil {
		for _, tok := range in.ChartTokens {
			a.injectChart(pres, tok, *in.Financials)
		}
		a.replaceChartPlaceholders(pres, in.Chart, *in.Financials)
	}

	// 4. Logo
	if len(in.Logo) > 0 {
		if err := a.placeLogo(pres, in.Logo); err != nil {
			logger.Warn("Logo skipped: %v", err)
		}
	}

	return pres.Save()
}

func (a *DeckAssembler) globalValues(in AssembleInput) map[string]string {
	tagline := strings.TrimSpace(in.Tagline)
	if tagline == "" {
		tagline = fmt.Sprintf("Leading %s solutions", in.CompanyName)
	}
	return map[string]string{
		domain.TokenCompanyName: in.CompanyName,
		domain.TokenWebsite:     in.Website,
		domain.TokenTagline:     tagline,
		domain.TokenYear:        strconv.Itoa(a.cfg.Now().Year()),
	}
}

func (a *DeckAssembler) replaceGlobals(pres *pptx.Presentation, values map[string]string) {
	for _, slide := range pres.Slides() {
		shapes, err := slide.Shapes()
		if err != nil {
			logger.Warn("Slide %d skipped during token replacement: %v", slide.Index+1, err)
			continue
		}
		for _, sh := range shapes {
			if !sh.HasText() {
				continue
			}
			replace := func(s string) string {
				return domain.ReplaceTokens(s, values)
			}
			sh.ReplaceInRuns(replace)
			// A token split across runs only shows up in the joined text of
			// its paragraph; the runs it spans take the first run's format.
			if hasAnyToken(sh.Text(), values) {
				sh.ReplaceAcrossRuns(replace)
			}
		}
	}
}

func hasAnyToken(text string, values map[string]string) bool {
	for tok := range values {
		if strings.Contains(text, tok) {
			return true
		}
	}
	return false
}

func (a *DeckAssembler) insertContent(slide *pptx.Slide, draft *domain.SlideDraft, about []string) {
	shapes, err := slide.Shapes()
	if err != nil {
		logger.Warn("Slide %d skipped during content insertion: %v", slide.Index+1, err)
		return
	}
	for _, sh := range shapes {
		if !sh.HasText() {
			continue
		}
		text := sh.Text()
		if !domain.ContainsToken(text) {
			continue
		}

		if strings.Contains(text, domain.TokenAboutBullets) {
			bullets := about
			if len(bullets) == 0 && draft != nil {
				bullets = draft.BulletPoints
			}
			if len(bullets) > 0 {
				text = strings.ReplaceAll(text, domain.TokenAboutBullets, strings.Join(bullets, "\n"))
			}
		}
		if draft != nil {
			text = renderContent(text, *draft)
		}
		if text != sh.Text() {
			sh.SetText(text)
		}
	}
}

// renderContent fills the content tokens of one text frame. The generic
// {{CONTENT}} and {{BULLET_POINTS}} tokens only apply when the frame has no
// parameterized content token.
func renderContent(text string, draft domain.SlideDraft) string {
	parameterized := false
	for _, tok := range domain.FindTokens(text) {
		switch tok.Verb {
		case domain.VerbEnhanceContent:
			parameterized = true
			text = strings.ReplaceAll(text, tok.Raw, contentOrPlaceholder(draft.Content))
		case domain.VerbEnhanceBulletPoints:
			parameterized = true
			text = strings.ReplaceAll(text, tok.Raw, bulletLines(draft.BulletPoints))
		}
	}
	if parameterized {
		return text
	}

	text = strings.ReplaceAll(text, domain.TokenContent, contentOrPlaceholder(draft.Content))
	if i := strings.Index(text, domain.TokenBulletPoints); i >= 0 {
		items := draft.BulletPoints
		if len(items) == 0 {
			items = []string{placeholderBullet}
		}
		rendered := "\n" + bulletGlyph + strings.Join(items, "\n"+bulletGlyph)
		if strings.TrimSpace(text[:i]) == "" {
			rendered = strings.TrimPrefix(rendered, "\n")
		}
		text = strings.ReplaceAll(text, domain.TokenBulletPoints, rendered)
	}
	return text
}

func contentOrPlaceholder(s string) string {
	if strings.TrimSpace(s) == "" {
		return placeholderContent
	}
	return s
}

func bulletLines(items []string) string {
	if len(items) == 0 {
		return bulletGlyph + placeholderBullet
	}
	lines := make([]string, len(items))
	for i, it := range items {
		lines[i] = bulletGlyph + it
	}
	return strings.Join(lines, "\n")
}

func (a *DeckAssembler) injectChart(pres *pptx.Presentation, tok domain.ChartToken, fin domain.FinancialsData) {
	slides := pres.Slides()
	if tok.SlideIndex < 0 || tok.SlideIndex >= len(slides) {
		logger.Warn("Chart %s points at missing slide %d", tok.Token, tok.SlideIndex+1)
		return
	}
	chart := a.matchChart(slides[tok.SlideIndex], tok)
	if chart == nil {
		logger.Warn("No chart on slide %d matches %s", tok.SlideIndex+1, tok.Token)
		return
	}

	name := tok.SeriesName
	if name == "" {
		name = domain.SeriesNameFromToken(tok.Token)
	}
	series, ok := fin.Find(name)
	if !ok {
		logger.Warn("No financial series matches %q, chart on slide %d left as is", name, tok.SlideIndex+1)
		return
	}
	if err := chart.ReplaceData(series.Name, series.Categories(), series.Values()); err != nil {
		logger.Warn("Chart on slide %d not updated: %v", tok.SlideIndex+1, err)
		return
	}
	logger.Debug("Chart on slide %d filled with %s (%d points)", tok.SlideIndex+1, series.Name, len(series.Data))
}

// matchChart finds the chart for a token: by title first, then by position.
func (a *DeckAssembler) matchChart(slide *pptx.Slide, tok domain.ChartToken) *pptx.Chart {
	shapes, err := slide.Shapes()
	if err != nil {
		return nil
	}
	var byPosition *pptx.Chart
	for _, sh := range shapes {
		if sh.Kind != pptx.KindChart {
			continue
		}
		chart, err := sh.Chart()
		if err != nil {
			continue
		}
		title := chart.Title()
		if strings.Contains(title, tok.Token) || (title != "" && domain.ChartTokenFor(title, slide.Index) == tok.Token) {
			return chart
		}
		if byPosition == nil {
			if r, ok := sh.Rect(); ok && a.near(r, tok.BBox) {
				byPosition = chart
			}
		}
	}
	return byPosition
}

// near reports whether r lies on box within the chart tolerance. The extent
// is compared only when the box records one.
func (a *DeckAssembler) near(r pptx.Rect, box domain.BoundingBox) bool {
	tol := a.cfg.ChartTolerance
	if abs(r.X-box.Left) > tol || abs(r.Y-box.Top) > tol {
		return false
	}
	if box.Width > 0 && abs(r.CX-box.Width) > tol {
		return false
	}
	return box.Height <= 0 || abs(r.CY-box.Height) <= tol
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// replaceChartPlaceholders turns text boxes holding the chart placeholder
// token into native bar charts of the same size.
func (a *DeckAssembler) replaceChartPlaceholders(pres *pptx.Presentation, settings domain.ChartSettings, fin domain.FinancialsData) {
	series, ok := fin.Find(settings.Title)
	if !ok {
		if len(fin.Series) == 0 {
			return
		}
		series = fin.Series[0]
	}
	for _, slide := range pres.Slides() {
		shapes, err := slide.Shapes()
		if err != nil {
			continue
		}
		for _, sh := range shapes {
			if !sh.HasText() || !strings.Contains(sh.Text(), settings.PlaceholderToken) {
				continue
			}
			rect, ok := sh.Rect()
			if !ok {
				logger.Warn("Chart placeholder %q on slide %d has no position", sh.Name(), slide.Index+1)
				continue
			}
			_, err := slide.ReplaceWithChart(sh, rect, pptx.ChartData{
				Title:      settings.Title,
				SeriesName: series.Name,
				Categories: series.Categories(),
				Values:     series.Values(),
				XLabel:     settings.XLabel,
				YLabel:     settings.YLabel,
			})
			if err != nil {
				logger.Warn("Chart placeholder on slide %d not replaced: %v", slide.Index+1, err)
				continue
			}
			logger.Debug("Inserted %s chart on slide %d", series.Name, slide.Index+1)
		}
	}
}

func (a *DeckAssembler) placeLogo(pres *pptx.Presentation, raw []byte) error {
	img, w, h, err := a.prepareLogo(raw)
	if err != nil {
		return err
	}
	slides := pres.Slides()
	if len(slides) == 0 {
		return fmt.Errorf("deck has no slides")
	}
	first := slides[0]

	shapes, err := first.Shapes()
	if err != nil {
		return err
	}
	for _, sh := range shapes {
		if !sh.HasText() {
			continue
		}
		text := sh.Text()
		if !strings.Contains(text, domain.TokenLogo) && !strings.Contains(text, domain.TokenCompanyLogo) {
			continue
		}
		if box, ok := sh.Rect(); ok {
			_, err := first.ReplaceWithPicture(sh, img, "png", pptx.FitRect(box, w, h))
			return err
		}
	}

	cx := int64(w) * pptx.EMUPerPixel
	cy := int64(h) * pptx.EMUPerPixel
	rect := pptx.Rect{
		X:  pres.SlideWidth - cx - a.cfg.LogoMargin,
		Y:  a.cfg.LogoMargin,
		CX: cx,
		CY: cy,
	}
	_, err = first.AddPicture(img, "png", rect, "Company Logo")
	return err
}

// prepareLogo decodes the logo, shrinks it into the configured box and
// re-encodes it as PNG.
func (a *DeckAssembler) prepareLogo(raw []byte) ([]byte, int, int, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("decode logo: %w", err)
	}
	b := img.Bounds()
	if b.Dx() > a.cfg.LogoMaxWidth || b.Dy() > a.cfg.LogoMaxHeight {
		img = imaging.Fit(img, a.cfg.LogoMaxWidth, a.cfg.LogoMaxHeight, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, 0, 0, fmt.Errorf("encode logo: %w", err)
	}
	b = img.Bounds()
	return buf.Bytes(), b.Dx(), b.Dy(), nil
}

// Package web gathers public company information from the company website.
package web

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/custodia-labs/imdeck/internal/core/domain"
	"github.com/custodia-labs/imdeck/internal/core/ports/driven"
	"github.com/custodia-labs/imdeck/internal/logger"
)

// Ensure Source implements the interface.
var _ driven.IntelligenceSource = (*Source)(nil)

// Defaults.
const (
	DefaultTimeout = 10 * time.Second

	maxPageBytes = 2 << 20
	maxProducts  = 10
	maxMarkets   = 10
	userAgent    = "Mozilla/5.0 (compatible; imdeck/1.0)"
)

// Pages probed on the company website, first 200 wins per group.
var (
	aboutPaths   = []string{"/about", "/about-us", "/company", "/unternehmen"}
	productPaths = []string{"/products", "/solutions", "/services", "/produkte"}
	marketPaths  = []string{"/industries", "/markets", "/sectors"}
)

var (
	certRe      = regexp.MustCompile(`\b(ISO\s?\d{4,5}|TÜV|CE|FDA)\b`)
	headcountRe = regexp.MustCompile(`(?i)(\d[\d,.']*)\+?\s+(employees|staff|people|mitarbeitende|mitarbeiter)`)
	spaceRe     = regexp.MustCompile(`\s+`)
)

// Config holds intelligence source settings.
type Config struct {
	// Timeout bounds each page request (default: 10s).
	Timeout time.Duration

	// HTTPClient overrides the default client.
	HTTPClient *http.Client
}

// Source scrapes the homepage and a few well-known pages of the website.
type Source struct {
	client  *http.Client
	timeout time.Duration
}

// New creates an intelligence source.
func New(cfg Config) *Source {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	return &Source{client: cfg.HTTPClient, timeout: cfg.Timeout}
}

// Gather collects a description, products, markets, certifications and
// headcount from the website. It fails only when the homepage is unreachable.
func (s *Source) Gather(ctx context.Context, companyName, website string) (*domain.Intelligence, error) {
	base, err := normalizeWebsite(website)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, companyName, err)
	}

	home, err := s.fetch(ctx, base.String())
	if err != nil {
		return nil, fmt.Errorf("fetch homepage of %s: %w", companyName, err)
	}

	intel := &domain.Intelligence{}
	texts := []string{pageText(home)}

	intel.Description = metaDescription(home)
	if about := s.firstPage(ctx, base, aboutPaths); about != nil {
		if intel.Description == "" {
			intel.Description = metaDescription(about)
		}
		if intel.Description == "" {
			intel.Description = firstParagraph(about)
		}
		texts = append(texts, pageText(about))
	}
	if intel.Description == "" {
		intel.Description = firstParagraph(home)
	}

	if products := s.firstPage(ctx, base, productPaths); products != nil {
		intel.Products = headings(products, maxProducts)
		texts = append(texts, pageText(products))
	}
	if markets := s.firstPage(ctx, base, marketPaths); markets != nil {
		intel.Markets = headings(markets, maxMarkets)
	}

	all := strings.Join(texts, " ")
	intel.Certifications = certifications(all)
	intel.Headcount = headcount(all)
	intel.USPs = deriveUSPs(intel)

	logger.Debug("Gathered public data for %s: %d products, %d markets, %d certifications",
		companyName, len(intel.Products), len(intel.Markets), len(intel.Certifications))
	return intel, nil
}

// firstPage returns the parsed document of the first path that loads.
func (s *Source) firstPage(ctx context.Context, base *url.URL, paths []string) *goquery.Document {
	for _, path := range paths {
		doc, err := s.fetch(ctx, base.String()+path)
		if err == nil {
			return doc
		}
	}
	return nil
}

func (s *Source) fetch(ctx context.Context, rawURL string) (*goquery.Document, error) {
	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", rawURL, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(bytes.NewReader(body))
}

func normalizeWebsite(website string) (*url.URL, error) {
	website = strings.TrimSpace(website)
	if website == "" {
		return nil, fmt.Errorf("no website")
	}
	if !strings.HasPrefix(website, "http://") && !strings.HasPrefix(website, "https://") {
		website = "https://" + website
	}
	u, err := url.Parse(strings.TrimRight(website, "/"))
	if err != nil {
		return nil, err
	}
	if u.Host == "" {
		return nil, fmt.Errorf("no host in %q", website)
	}
	return u, nil
}

func metaDescription(doc *goquery.Document) string {
	for _, sel := range []string{`meta[name="description"]`, `meta[property="og:description"]`} {
		if content, ok := doc.Find(sel).First().Attr("content"); ok {
			if text := clean(content); text != "" {
				return text
			}
		}
	}
	return ""
}

func firstParagraph(doc *goquery.Document) string {
	var text string
	doc.Find("main p, article p, body p").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		candidate := clean(sel.Text())
		if len(candidate) >= 40 {
			text = candidate
			return false
		}
		return true
	})
	return text
}

// headings returns unique h1-h4 texts of the page body.
func headings(doc *goquery.Document, limit int) []string {
	var out []string
	seen := make(map[string]bool)
	doc.Find("h1, h2, h3, h4").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := clean(sel.Text())
		key := strings.ToLower(text)
		if text == "" || len(text) > 80 || seen[key] {
			return true
		}
		seen[key] = true
		out = append(out, text)
		return len(out) < limit
	})
	return out
}

func pageText(doc *goquery.Document) string {
	body := doc.Find("body").Clone()
	body.Find("script, style, noscript").Remove()
	return clean(body.Text())
}

func certifications(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range certRe.FindAllString(text, -1) {
		norm := m
		if strings.HasPrefix(m, "ISO") {
			norm = "ISO " + strings.TrimSpace(strings.TrimPrefix(m, "ISO"))
		}
		if seen[norm] {
			continue
		}
		seen[norm] = true
		out = append(out, norm)
	}
	return out
}

func headcount(text string) int {
	m := headcountRe.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, m[1])
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return n
}

func deriveUSPs(intel *domain.Intelligence) []string {
	var usps []string
	hasISO, hasTUV := false, false
	for _, c := range intel.Certifications {
		hasISO = hasISO || strings.HasPrefix(c, "ISO")
		hasTUV = hasTUV || c == "TÜV"
	}
	if hasISO {
		usps = append(usps, "ISO-certified quality standards")
	}
	if hasTUV {
		usps = append(usps, "TÜV-certified processes")
	}
	if n := len(intel.Products); n > 1 {
		usps = append(usps, fmt.Sprintf("Broad portfolio of %d products and services", n))
	}
	if n := len(intel.Markets); n > 1 {
		usps = append(usps, fmt.Sprintf("Diversified across %d end markets", n))
	}
	return usps
}

func clean(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

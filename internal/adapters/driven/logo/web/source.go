// Package web looks up company logos on the public web.
package web

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/imdeck/internal/core/domain"
	"github.com/custodia-labs/imdeck/internal/core/ports/driven"
	"github.com/custodia-labs/imdeck/internal/logger"
)

// Ensure Source implements the interface.
var _ driven.LogoSource = (*Source)(nil)

// Defaults.
const (
	DefaultTimeout       = 10 * time.Second
	DefaultCacheSize     = 256
	DefaultRatePerSecond = 5.0

	// MinSide and MaxSide bound the accepted image dimensions in pixels.
	MinSide = 16
	MaxSide = 1024

	maxImageBytes = 5 << 20
	userAgent     = "imdeck-logo/1.0"
)

// faviconPaths are probed in order on the company website. ICO files are
// left out: no ICO decoder is registered, so they could never validate.
var faviconPaths = []string{
	"/favicon.png",
	"/apple-touch-icon.png",
	"/logo.png",
	"/logo.jpg",
}

// guessTLDs are tried in order when guessing a domain from a company name.
var guessTLDs = []string{".com", ".org", ".net"}

var (
	legalSuffixRe = regexp.MustCompile(`(?i)\b(inc|corp|corporation|company|llc|ltd|limited|co)\b`)
	punctuationRe = regexp.MustCompile(`[^\w\s]`)
	spaceRe       = regexp.MustCompile(`\s+`)
)

// Config holds logo source settings.
type Config struct {
	// APIBase is a logo service queried as <APIBase>/logo/<company>.
	APIBase string

	// Timeout bounds each HTTP request (default: 10s).
	Timeout time.Duration

	// GuessDomains enables deriving a website from the company name.
	GuessDomains bool

	// CacheSize is the number of cached lookups, hits and misses alike.
	CacheSize int

	// RatePerSecond paces outgoing requests.
	RatePerSecond float64

	// HTTPClient overrides the default client.
	HTTPClient *http.Client

	// LookupHost overrides DNS resolution for domain guessing.
	LookupHost func(ctx context.Context, host string) ([]string, error)
}

type cacheEntry struct {
	data  []byte
	found bool
}

// Source tries the company website, then the logo API, then a guessed domain.
type Source struct {
	client     *http.Client
	apiBase    string
	timeout    time.Duration
	guess      bool
	cache      *lru.Cache[string, cacheEntry]
	limiter    *rate.Limiter
	lookupHost func(ctx context.Context, host string) ([]string, error)
}

// New creates a logo source.
func New(cfg Config) (*Source, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = DefaultRatePerSecond
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.LookupHost == nil {
		cfg.LookupHost = net.DefaultResolver.LookupHost
	}

	cache, err := lru.New[string, cacheEntry](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create logo cache: %w", err)
	}

	return &Source{
		client:     cfg.HTTPClient,
		apiBase:    strings.TrimRight(cfg.APIBase, "/"),
		timeout:    cfg.Timeout,
		guess:      cfg.GuessDomains,
		cache:      cache,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1),
		lookupHost: cfg.LookupHost,
	}, nil
}

// FetchLogo returns encoded image bytes for the company.
func (s *Source) FetchLogo(ctx context.Context, companyName, website string) ([]byte, error) {
	key := strings.ToLower(strings.TrimSpace(companyName)) + "|" + strings.ToLower(strings.TrimSpace(website))
	if entry, ok := s.cache.Get(key); ok {
		if !entry.found {
			return nil, domain.ErrLogoNotFound
		}
		return entry.data, nil
	}

	data := s.lookup(ctx, companyName, website)
	if ctx.Err() != nil {
		// Do not cache a miss caused by cancellation.
		return nil, ctx.Err()
	}

	s.cache.Add(key, cacheEntry{data: data, found: data != nil})
	if data == nil {
		return nil, fmt.Errorf("%s: %w", companyName, domain.ErrLogoNotFound)
	}
	return data, nil
}

func (s *Source) lookup(ctx context.Context, companyName, website string) []byte {
	if strings.TrimSpace(website) != "" {
		if data := s.fromWebsite(ctx, website); data != nil {
			return data
		}
	}

	if s.apiBase != "" && strings.TrimSpace(companyName) != "" {
		apiURL := s.apiBase + "/logo/" + url.PathEscape(strings.TrimSpace(companyName))
		if data, _, err := s.get(ctx, apiURL); err == nil && validImage(data) {
			return data
		} else if err != nil {
			logger.Debug("Logo API lookup for %s failed: %v", companyName, err)
		}
	}

	if s.guess && strings.TrimSpace(companyName) != "" {
		if host := s.guessDomain(ctx, companyName); host != "" {
			if data := s.fromWebsite(ctx, host); data != nil {
				return data
			}
		}
	}
	return nil
}

// fromWebsite probes well-known icon paths, then icon links in the homepage.
func (s *Source) fromWebsite(ctx context.Context, website string) []byte {
	base, err := normalizeWebsite(website)
	if err != nil {
		logger.Debug("Skipping logo lookup for %q: %v", website, err)
		return nil
	}

	for _, path := range faviconPaths {
		data, contentType, err := s.get(ctx, base.String()+path)
		if err != nil {
			continue
		}
		if strings.Contains(contentType, "image") && validImage(data) {
			return data
		}
	}

	page, _, err := s.get(ctx, base.String())
	if err != nil {
		return nil
	}
	for _, href := range iconLinks(page, base) {
		data, _, err := s.get(ctx, href)
		if err == nil && validImage(data) {
			return data
		}
	}
	return nil
}

// iconLinks returns absolute URLs of <link rel="icon"> style elements.
func iconLinks(page []byte, base *url.URL) []string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil
	}

	var links []string
	doc.Find("link[rel][href]").Each(func(_ int, sel *goquery.Selection) {
		rel := strings.ToLower(sel.AttrOr("rel", ""))
		isIcon := false
		for _, token := range strings.Fields(rel) {
			if token == "icon" || token == "apple-touch-icon" {
				isIcon = true
				break
			}
		}
		if !isIcon {
			return
		}
		ref, err := url.Parse(strings.TrimSpace(sel.AttrOr("href", "")))
		if err != nil {
			return
		}
		links = append(links, base.ResolveReference(ref).String())
	})
	return links
}

// guessDomain derives candidate hosts from the company name and returns
// the first that resolves.
func (s *Source) guessDomain(ctx context.Context, companyName string) string {
	name := companyDomainName(companyName)
	if name == "" {
		return ""
	}
	for _, tld := range guessTLDs {
		host := name + tld
		lookupCtx, cancel := context.WithTimeout(ctx, s.timeout)
		addrs, err := s.lookupHost(lookupCtx, host)
		cancel()
		if err == nil && len(addrs) > 0 {
			return host
		}
	}
	return ""
}

// companyDomainName strips legal suffixes and punctuation and joins the
// remaining words with dots.
func companyDomainName(companyName string) string {
	clean := legalSuffixRe.ReplaceAllString(companyName, "")
	clean = punctuationRe.ReplaceAllString(clean, "")
	clean = strings.ToLower(strings.TrimSpace(clean))
	return spaceRe.ReplaceAllString(clean, ".")
}

func normalizeWebsite(website string) (*url.URL, error) {
	website = strings.TrimSpace(website)
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

// get fetches url and returns the body and content type of a 200 response.
func (s *Source) get(ctx context.Context, rawURL string) ([]byte, string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, "", err
	}

	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("GET %s: status %d", rawURL, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, "", err
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("GET %s: empty body", rawURL)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// validImage reports whether data decodes as a supported image with both
// sides within MinSide..MaxSide.
func validImage(data []byte) bool {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return false
	}
	return cfg.Width >= MinSide && cfg.Height >= MinSide &&
		cfg.Width <= MaxSide && cfg.Height <= MaxSide
}

package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/KingHippopotamus/pmax-helper/config"
	"github.com/PuerkitoBio/goquery"
)

const maxPageBytes int64 = 10 * 1024 * 1024

var (
	characterSelectors = []string{
		".wonder-cv .wonder-cv-wrapper .wonder-cv-back-person-img",
		".wonder-cv-back-person-img",
		"img.wonder-cv-back-person-img",
	}
	logoSelector = ".wonder-header .wonder-header-inner .wonder-header-logo-wrapper .wonder-header-main .wonder-header-logo img"

	backgroundURLPattern = regexp.MustCompile(`url\(\s*["']?([^"')]+)["']?\s*\)`)
	whitespacePattern    = regexp.MustCompile(`\s+`)
)

// Images holds absolute URLs found on a landing page. Empty means not found.
type Images struct {
	LogoURL      string `json:"logo_url"`
	CharacterURL string `json:"character_url"`
}

// Page is a fetched and parsed landing page.
type Page struct {
	URL *url.URL
	Doc *goquery.Document
}

// Scraper downloads landing pages with a browser user agent.
type Scraper struct {
	httpClient *http.Client
	userAgent  string
}

func New(cfg config.ScraperConfig) *Scraper {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = config.DefaultUserAgent
	}
	return &Scraper{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  userAgent,
	}
}

// Fetch downloads and parses pageURL.
func (s *Scraper) Fetch(ctx context.Context, pageURL string) (*Page, error) {
	base, err := url.Parse(strings.TrimSpace(pageURL))
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("scraper: invalid page url %q", pageURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("scraper: build request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scraper: fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("scraper: fetch page: unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("scraper: parse page: %w", err)
	}

	return &Page{URL: base, Doc: doc}, nil
}

// Extract fetches pageURL and returns its logo and character images.
func (s *Scraper) Extract(ctx context.Context, pageURL string) (Images, error) {
	page, err := s.Fetch(ctx, pageURL)
	if err != nil {
		return Images{}, err
	}
	return page.Images(), nil
}

// Images locates the logo and character images on the page.
func (p *Page) Images() Images {
	return Images{
		LogoURL:      p.logoURL(),
		CharacterURL: p.characterURL(),
	}
}

func (p *Page) logoURL() string {
	src, ok := p.Doc.Find(logoSelector).First().Attr("src")
	if !ok {
		return ""
	}
	return p.resolve(src)
}

// characterURL tries each selector in turn and reads, for the first element found,
// its src, then an inline background-image, then a child img.
func (p *Page) characterURL() string {
	var element *goquery.Selection
	for _, selector := range characterSelectors {
		if found := p.Doc.Find(selector).First(); found.Length() > 0 {
			element = found
			break
		}
	}
	if element == nil {
		return ""
	}

	if goquery.NodeName(element) == "img" {
		if src, ok := element.Attr("src"); ok && strings.TrimSpace(src) != "" {
			return p.resolve(src)
		}
	}

	if style, ok := element.Attr("style"); ok {
		if match := backgroundURLPattern.FindStringSubmatch(style); len(match) == 2 {
			return p.resolve(match[1])
		}
	}

	if src, ok := element.Find("img").First().Attr("src"); ok && strings.TrimSpace(src) != "" {
		return p.resolve(src)
	}

	return ""
}

func (p *Page) resolve(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return p.URL.ResolveReference(parsed).String()
}

// Text returns the visible text of the page with whitespace collapsed, truncated to maxRunes.
func (p *Page) Text(maxRunes int) string {
	body := p.Doc.Find("html").Clone()
	body.Find("script, style, noscript").Remove()

	text := whitespacePattern.ReplaceAllString(body.Text(), " ")
	text = strings.TrimSpace(text)

	if maxRunes > 0 {
		runes := []rune(text)
		if len(runes) > maxRunes {
			text = string(runes[:maxRunes])
		}
	}
	return text
}

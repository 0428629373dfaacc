package sitename

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Fetcher resolves a human-readable name for a website by scraping its
// homepage. Lookups are best-effort: any failure falls back to the bare
// domain, so Resolve never returns an error.
type Fetcher struct {
	client *http.Client
	scheme string // overridden in tests
}

func NewFetcher(timeout time.Duration) *Fetcher {
	return &Fetcher{client: &http.Client{Timeout: timeout}, scheme: "https"}
}

// Resolve returns a display name for the domain. Preference order is the
// og:site_name meta tag, then the page title, then the domain itself with a
// leading "www." stripped.
func (f *Fetcher) Resolve(ctx context.Context, domain string) string {
	fallback := strings.TrimPrefix(domain, "www.")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.scheme+"://"+domain, nil)
	if err != nil {
		return fallback
	}
	req.Header.Set("User-Agent", "snagtrack/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return fallback
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fallback
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return fallback
	}

	if name, ok := doc.Find(`meta[property="og:site_name"]`).Attr("content"); ok {
		if name = strings.TrimSpace(name); name != "" {
			return name
		}
	}
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	return fallback
}

// Package enrich fills in missing contact details by visiting each
// record's own website.
package enrich

import (
	"context"
	"log/slog"
	nurl "net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"

	"github.com/use-agent/leadharvest/browser"
	"github.com/use-agent/leadharvest/config"
	"github.com/use-agent/leadharvest/extract"
	"github.com/use-agent/leadharvest/models"
)

// contactPaths are probed in order when the homepage exposes no email.
var contactPaths = []string{"/contact", "/contact-us", "/about", "/about-us", "/contactus"}

// maxDescriptionLen caps the stored description, in runes.
const maxDescriptionLen = 500

// Enricher visits record websites and fills in Email and Description
// where they are missing. Populated fields are never overwritten.
type Enricher struct {
	cfg     config.EnrichConfig
	fetcher *browser.Fetcher
}

// New creates an Enricher using the shared rate-limited fetcher.
func New(cfg config.EnrichConfig, f *browser.Fetcher) *Enricher {
	return &Enricher{cfg: cfg, fetcher: f}
}

// Run enriches records in place and returns how many gained at least one
// field. At most MaxSites websites are visited per run; records without a
// usable website, or with nothing left to fill, do not count against the
// cap.
func (e *Enricher) Run(ctx context.Context, records []*models.Record) int {
	visited := 0
	enriched := 0

	for _, r := range records {
		if ctx.Err() != nil {
			break
		}
		if !r.HasUsableWebsite() {
			continue
		}
		if r.Email != "" && r.Description != "" {
			continue
		}
		if visited >= e.cfg.MaxSites {
			slog.Info("enrichment site cap reached", "cap", e.cfg.MaxSites)
			break
		}
		visited++

		if e.enrichRecord(ctx, r) {
			enriched++
		}
		browser.Pause(ctx, e.cfg.MinDelay, e.cfg.MaxDelay)
	}

	slog.Info("enrichment done", "visited", visited, "enriched", enriched)
	return enriched
}

func (e *Enricher) enrichRecord(ctx context.Context, r *models.Record) bool {
	body, ok := e.fetchPage(ctx, r.Website, e.cfg.Timeout)
	if !ok {
		return false
	}
	page := string(body)

	changed := false
	if r.Email == "" {
		if email := firstEmail(page); email != "" {
			r.Email = email
			changed = true
		}
	}
	if r.Description == "" {
		if desc := describePage(page, r.Website); desc != "" {
			r.Description = desc
			changed = true
		}
	}

	// Homepage had no email; probe the usual contact pages from the site
	// root with a shorter deadline.
	if base := siteRoot(r.Website); r.Email == "" && base != "" {
		for _, path := range contactPaths {
			if ctx.Err() != nil {
				break
			}
			body, ok := e.fetchPage(ctx, base+path, e.cfg.ContactTimeout)
			if !ok {
				continue
			}
			if email := firstEmail(string(body)); email != "" {
				r.Email = email
				changed = true
				break
			}
		}
	}

	return changed
}

// fetchPage wraps the fetcher with a per-page deadline and treats any
// non-2xx response as a miss.
func (e *Enricher) fetchPage(ctx context.Context, url string, timeout time.Duration) ([]byte, bool) {
	fctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	status, body, err := e.fetcher.Get(fctx, url)
	if err != nil {
		slog.Debug("enrich fetch failed", "url", url, "error", err)
		return nil, false
	}
	if status < 200 || status >= 300 {
		slog.Debug("enrich fetch non-success", "url", url, "status", status)
		return nil, false
	}
	return body, true
}

// siteRoot reduces a website URL to scheme://host so contact paths are
// probed from the site root even when the stored URL carries a path.
func siteRoot(website string) string {
	u, err := nurl.Parse(website)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func firstEmail(page string) string {
	if emails := extract.Emails(page); len(emails) > 0 {
		return emails[0]
	}
	return ""
}

// describePage returns a short description of the page: the meta
// description when present, otherwise a readability summary, otherwise
// the page's visible text.
func describePage(page, pageURL string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err == nil {
		for _, sel := range []string{`meta[name="description"]`, `meta[property="og:description"]`} {
			if desc, found := doc.Find(sel).First().Attr("content"); found {
				if desc = strings.TrimSpace(desc); desc != "" {
					return truncate(desc, maxDescriptionLen)
				}
			}
		}
	}

	if parsed, err := nurl.Parse(pageURL); err == nil {
		if article, err := readability.FromReader(strings.NewReader(page), parsed); err == nil {
			if excerpt := strings.TrimSpace(article.Excerpt); excerpt != "" {
				return truncate(excerpt, maxDescriptionLen)
			}
		}
	}

	// Sparse small-business homepages often defeat readability. A page
	// whose entire visible text fits the description limit is its own
	// description; anything longer would only contribute truncated nav
	// and boilerplate noise, so it yields nothing.
	if text := strings.Join(strings.Fields(visibleText(page)), " "); text != "" && len([]rune(text)) <= maxDescriptionLen {
		return text
	}
	return ""
}

// visibleText returns the page's rendered text, skipping script, style
// and noscript content.
func visibleText(page string) string {
	z := html.NewTokenizer(strings.NewReader(page))
	var parts []string
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(parts, " ")
		case html.StartTagToken:
			switch tag, _ := z.TagName(); string(tag) {
			case "script", "style", "noscript":
				skip++
			}
		case html.EndTagToken:
			switch tag, _ := z.TagName(); string(tag) {
			case "script", "style", "noscript":
				if skip > 0 {
					skip--
				}
			}
		case html.TextToken:
			if skip == 0 {
				if t := strings.TrimSpace(string(z.Text())); t != "" {
					parts = append(parts, t)
				}
			}
		}
	}
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return strings.TrimSpace(string(runes[:limit]))
}

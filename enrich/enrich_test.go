package enrich

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/use-agent/leadharvest/browser"
	"github.com/use-agent/leadharvest/config"
	"github.com/use-agent/leadharvest/models"
)

func testEnricher(maxSites int) *Enricher {
	fetcher := browser.NewFetcher(config.FetchConfig{RatePerSecond: 1000, Burst: 100}, "")
	return New(config.EnrichConfig{
		MaxSites:       maxSites,
		Timeout:        2 * time.Second,
		ContactTimeout: 2 * time.Second,
	}, fetcher)
}

// countingHandler records every request path it serves.
type countingHandler struct {
	mu    sync.Mutex
	paths []string
	serve func(w http.ResponseWriter, r *http.Request)
}

func (h *countingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	h.paths = append(h.paths, r.URL.Path)
	h.mu.Unlock()
	h.serve(w, r)
}

func (h *countingHandler) count(path string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, p := range h.paths {
		if p == path {
			n++
		}
	}
	return n
}

func TestRun_FillsEmailAndDescription(t *testing.T) {
	handler := &countingHandler{serve: func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			w.Write([]byte(`<html><head><meta name="description" content="Bay Area commercial coverage since 1985."></head><body>Welcome</body></html>`))
		case "/contact":
			w.Write([]byte(`<html><body>Reach us at quotes@baycoverage.test today.</body></html>`))
		default:
			http.NotFound(w, r)
		}
	}}
	srv := httptest.NewServer(handler)
	defer srv.Close()

	r := &models.Record{Name: "Bay Coverage", Website: srv.URL}
	enriched := testEnricher(10).Run(context.Background(), []*models.Record{r})

	if enriched != 1 {
		t.Fatalf("enriched = %d, want 1", enriched)
	}
	if r.Email != "quotes@baycoverage.test" {
		t.Errorf("Email = %q", r.Email)
	}
	if r.Description != "Bay Area commercial coverage since 1985." {
		t.Errorf("Description = %q", r.Description)
	}
	if got := handler.count("/contact"); got != 1 {
		t.Errorf("contact page fetched %d times, want 1", got)
	}
}

func TestRun_HomepageEmailSkipsContactProbe(t *testing.T) {
	handler := &countingHandler{serve: func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>Email hello@homefirst.test for a quote.</body></html>`))
	}}
	srv := httptest.NewServer(handler)
	defer srv.Close()

	r := &models.Record{Name: "Home First", Website: srv.URL}
	testEnricher(10).Run(context.Background(), []*models.Record{r})

	if r.Email != "hello@homefirst.test" {
		t.Errorf("Email = %q", r.Email)
	}
	if got := handler.count("/contact"); got != 0 {
		t.Errorf("contact page fetched %d times, want 0", got)
	}
}

func TestRun_ContactProbeFromSiteRoot(t *testing.T) {
	handler := &countingHandler{serve: func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/site":
			w.Write([]byte(`<html><body>Welcome</body></html>`))
		case "/contact":
			w.Write([]byte(`<html><body>Write to desk@rooted.test for a quote.</body></html>`))
		default:
			http.NotFound(w, r)
		}
	}}
	srv := httptest.NewServer(handler)
	defer srv.Close()

	// The stored website URL carries a path; contact pages live on the
	// site root.
	r := &models.Record{Name: "Rooted", Website: srv.URL + "/site"}
	testEnricher(10).Run(context.Background(), []*models.Record{r})

	if r.Email != "desk@rooted.test" {
		t.Errorf("Email = %q, want contact-page email", r.Email)
	}
	if got := handler.count("/site/contact"); got != 0 {
		t.Errorf("contact path appended to the page URL %d times, want 0", got)
	}
	if got := handler.count("/contact"); got != 1 {
		t.Errorf("root contact page fetched %d times, want 1", got)
	}
}

func TestSiteRoot(t *testing.T) {
	tests := []struct {
		website string
		want    string
	}{
		{"https://acme.test/site/page?x=1", "https://acme.test"},
		{"http://acme.test", "http://acme.test"},
		{"http://acme.test:8080/about", "http://acme.test:8080"},
		{"See website", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := siteRoot(tt.website); got != tt.want {
			t.Errorf("siteRoot(%q) = %q, want %q", tt.website, got, tt.want)
		}
	}
}

func TestRun_NeverOverwrites(t *testing.T) {
	handler := &countingHandler{serve: func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>other@elsewhere.test</body></html>`))
	}}
	srv := httptest.NewServer(handler)
	defer srv.Close()

	r := &models.Record{
		Name:        "Settled",
		Website:     srv.URL,
		Email:       "kept@settled.test",
		Description: "kept description",
	}
	enriched := testEnricher(10).Run(context.Background(), []*models.Record{r})

	if enriched != 0 {
		t.Errorf("enriched = %d, want 0", enriched)
	}
	if r.Email != "kept@settled.test" || r.Description != "kept description" {
		t.Errorf("record was overwritten: %+v", r)
	}
	if len(handler.paths) != 0 {
		t.Errorf("fully populated record triggered %d fetches", len(handler.paths))
	}
}

func TestRun_SiteCap(t *testing.T) {
	handler := &countingHandler{serve: func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>team@capped.test</body></html>`))
	}}
	srv := httptest.NewServer(handler)
	defer srv.Close()

	records := []*models.Record{
		{Name: "A", Website: srv.URL + "/a"},
		{Name: "B", Website: srv.URL + "/b"},
		{Name: "C", Website: srv.URL + "/c"},
	}
	testEnricher(2).Run(context.Background(), records)

	if handler.count("/a") != 1 || handler.count("/b") != 1 {
		t.Errorf("first two sites not visited: %v", handler.paths)
	}
	if handler.count("/c") != 0 {
		t.Errorf("cap exceeded, /c was visited")
	}
	if records[2].Email != "" {
		t.Errorf("record past the cap was enriched: %q", records[2].Email)
	}
}

func TestRun_SkipsRecordsWithoutWebsite(t *testing.T) {
	records := []*models.Record{
		{Name: "No Site"},
		{Name: "Maps Link", Website: "See website"},
	}
	if enriched := testEnricher(10).Run(context.Background(), records); enriched != 0 {
		t.Errorf("enriched = %d, want 0", enriched)
	}
}

func TestRun_NonSuccessStatus(t *testing.T) {
	handler := &countingHandler{serve: func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}}
	srv := httptest.NewServer(handler)
	defer srv.Close()

	r := &models.Record{Name: "Gone", Website: srv.URL}
	if enriched := testEnricher(10).Run(context.Background(), []*models.Record{r}); enriched != 0 {
		t.Errorf("enriched = %d, want 0", enriched)
	}
	if r.Email != "" || r.Description != "" {
		t.Errorf("404 site produced fields: %+v", r)
	}
}

func TestDescribePage(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "meta description",
			html: `<html><head><meta name="description" content="Short and sweet."></head><body></body></html>`,
			want: "Short and sweet.",
		},
		{
			name: "og description fallback",
			html: `<html><head><meta property="og:description" content="Social copy."></head><body></body></html>`,
			want: "Social copy.",
		},
		{
			name: "meta preferred over og",
			html: `<html><head><meta name="description" content="Primary."><meta property="og:description" content="Secondary."></head><body></body></html>`,
			want: "Primary.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := describePage(tt.html, "http://site.test"); got != tt.want {
				t.Errorf("describePage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDescribePage_LongPageWithoutMetaYieldsNothing(t *testing.T) {
	// A nav-heavy page with no description metadata: the raw visible text
	// is boilerplate and must not become the description.
	var links strings.Builder
	for i := 0; i < 80; i++ {
		fmt.Fprintf(&links, `<a href="/page%d">Coverage option %d</a> `, i, i)
	}
	page := `<html><body><nav>` + links.String() + `</nav></body></html>`

	if got := describePage(page, "https://acme.test"); got != "" {
		t.Errorf("describePage = %q, want empty for boilerplate-only page", got)
	}
}

func TestDescribePage_SparsePageUsesVisibleText(t *testing.T) {
	page := `<html><body><div>Family-run insurance brokerage in Oakland.</div></body></html>`
	if got := describePage(page, "https://acme.test"); got != "Family-run insurance brokerage in Oakland." {
		t.Errorf("describePage = %q", got)
	}
}

func TestVisibleText(t *testing.T) {
	page := `<html><head><style>.nav{color:red}</style><script>var tracker=1;</script></head>` +
		`<body><h1>Acme Insurance</h1><p>Commercial coverage for the Bay Area.</p><noscript>enable js</noscript></body></html>`
	got := visibleText(page)

	for _, want := range []string{"Acme Insurance", "Commercial coverage for the Bay Area."} {
		if !strings.Contains(got, want) {
			t.Errorf("visibleText missing %q: %q", want, got)
		}
	}
	for _, unwanted := range []string{"var tracker", "color:red", "enable js"} {
		if strings.Contains(got, unwanted) {
			t.Errorf("visibleText leaked %q: %q", unwanted, got)
		}
	}
}

func TestTruncate(t *testing.T) {
	long := ""
	for range 60 {
		long += "abcdefghij"
	}
	if got := truncate(long, 500); len([]rune(got)) > 500 {
		t.Errorf("truncate left %d runes", len([]rune(got)))
	}
	if got := truncate("short", 500); got != "short" {
		t.Errorf("truncate(short) = %q", got)
	}
}

package sources

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/use-agent/leadharvest/browser"
	"github.com/use-agent/leadharvest/config"
	"github.com/use-agent/leadharvest/extract"
	"github.com/use-agent/leadharvest/models"
)

const directoryBase = "https://www.yellowpages.com"

// The directory serves several card layouts depending on page variant, so
// the card and field selectors each carry every known alternative. They are
// precompiled once; a selector typo fails at startup, not mid-run.
var (
	dirCardSel    = cascadia.MustCompile(".result .info, .srp-listing .info, .organic .info")
	dirNameSel    = cascadia.MustCompile(".business-name span, .n a, .business-name a")
	dirPhoneSel   = cascadia.MustCompile(".phones.phone.primary, .phone")
	dirAddrSel    = cascadia.MustCompile(".adr, .address, .street-address")
	dirWebsiteSel = cascadia.MustCompile("a.track-visit-website, a[href*='website']")
	dirCatSel     = cascadia.MustCompile(".categories a, .links a")
)

// DirectoryConnector pages through directory search results and scrapes the
// listing cards.
type DirectoryConnector struct {
	cfg     *config.Config
	browser *browser.Browser
}

// NewDirectoryConnector creates the directory connector.
func NewDirectoryConnector(cfg *config.Config, b *browser.Browser) *DirectoryConnector {
	return &DirectoryConnector{cfg: cfg, browser: b}
}

func (c *DirectoryConnector) ID() string    { return "yellowpages" }
func (c *DirectoryConnector) Label() string { return "Yellow Pages" }

// Fetch walks (location, query, page) in a fixed order, skipping failed
// pages.
func (c *DirectoryConnector) Fetch(ctx context.Context) ([]*models.Record, error) {
	sess, err := c.browser.NewSession()
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	state := c.cfg.Region.State
	var records []*models.Record

	for _, location := range c.cfg.Region.Locations {
		for _, query := range c.cfg.Region.Queries {
			for pageNum := 1; pageNum <= c.cfg.Directory.PagesPerQuery; pageNum++ {
				pageURL := fmt.Sprintf("%s/search?search_terms=%s&geo_location_terms=%s&page=%d",
					directoryBase, url.QueryEscape(query), url.QueryEscape(location), pageNum)
				slog.Info("directory search", "location", location, "query", query, "page", pageNum)

				if err := sess.Navigate(ctx, pageURL, c.cfg.Directory.NavTimeout); err != nil {
					slog.Warn("directory page failed, skipping",
						"location", location, "query", query, "page", pageNum, "error", err)
					continue
				}
				browser.Pause(ctx, 2*time.Second, 4*time.Second)

				html, err := sess.HTML()
				if err != nil {
					slog.Warn("directory page unreadable, skipping", "url", pageURL, "error", err)
					continue
				}

				found := ParseDirectoryPage(html, location, pageURL, state)
				records = append(records, found...)
				slog.Info("directory page done", "location", location, "query", query,
					"page", pageNum, "found", len(found))

				browser.Pause(ctx, 2*time.Second, 5*time.Second)
				if ctx.Err() != nil {
					return records, ctx.Err()
				}
			}
		}
	}

	return records, nil
}

// ParseDirectoryPage extracts one record per listing card. A card without a
// name is skipped; every other field is optional.
func ParseDirectoryPage(html, location, pageURL, state string) []*models.Record {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	fallbackCity := strings.TrimSpace(strings.SplitN(location, ",", 2)[0])
	var records []*models.Record

	doc.FindMatcher(dirCardSel).Each(func(_ int, card *goquery.Selection) {
		name := strings.TrimSpace(card.FindMatcher(dirNameSel).First().Text())
		if name == "" {
			return
		}

		address := strings.TrimSpace(card.FindMatcher(dirAddrSel).First().Text())
		website, _ := card.FindMatcher(dirWebsiteSel).First().Attr("href")

		var cats []string
		card.FindMatcher(dirCatSel).Each(func(_ int, cat *goquery.Selection) {
			if text := strings.TrimSpace(cat.Text()); text != "" {
				cats = append(cats, text)
			}
		})

		city := extract.City(address, state)
		if city == "" {
			city = fallbackCity
		}

		records = append(records, &models.Record{
			Name:       name,
			Address:    address,
			City:       city,
			State:      state,
			ZipCode:    extract.ZIP(address),
			Phone:      strings.TrimSpace(card.FindMatcher(dirPhoneSel).First().Text()),
			Website:    website,
			Categories: strings.Join(cats, ", "),
			Source:     "Yellow Pages",
			SourceURL:  pageURL,
		})
	})

	return records
}

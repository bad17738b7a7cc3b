package sources

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/use-agent/leadharvest/browser"
	"github.com/use-agent/leadharvest/config"
	"github.com/use-agent/leadharvest/extract"
	"github.com/use-agent/leadharvest/models"
)

const mapsSearchBase = "https://www.google.com/maps/search/"

// feed selectors for the incremental results list.
const (
	feedSelector     = `[role="feed"]`
	feedItemSelector = `[role="feed"] > div > div > a`
)

// listingExtractJS batch-extracts every visible listing in one evaluation:
// the aria-label carries the business name, innerText carries the raw lines
// that get classified Go-side.
const listingExtractJS = `() => {
	const out = [];
	const items = document.querySelectorAll('[role="feed"] > div > div');
	for (const item of items) {
		const link = item.querySelector('a[aria-label]');
		if (!link) continue;
		const name = link.getAttribute('aria-label') || '';
		if (!name) continue;
		out.push({ name: name, text: item.innerText || '' });
	}
	return out;
}`

// MapsConnector searches the map service once per (region, query) pair and
// batch-extracts the results feed.
type MapsConnector struct {
	cfg     *config.Config
	browser *browser.Browser
}

// NewMapsConnector creates the map-listing connector.
func NewMapsConnector(cfg *config.Config, b *browser.Browser) *MapsConnector {
	return &MapsConnector{cfg: cfg, browser: b}
}

func (c *MapsConnector) ID() string    { return "gmaps" }
func (c *MapsConnector) Label() string { return "Google Maps" }

// Fetch walks every configured map region and query term in order. A
// failed or timed-out query is logged and skipped; it never aborts the
// remaining pairs.
func (c *MapsConnector) Fetch(ctx context.Context) ([]*models.Record, error) {
	sess, err := c.browser.NewSession()
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	state := c.cfg.Region.State
	var records []*models.Record

	for _, region := range c.cfg.Region.MapRegions {
		for _, query := range c.cfg.Region.Queries {
			searchURL := c.searchURL(query, region)
			slog.Info("maps search", "region", region.Name, "query", query)

			found, err := c.fetchQuery(ctx, sess, searchURL, region, state)
			if err != nil {
				slog.Warn("maps query failed, skipping",
					"region", region.Name, "query", query, "error", err)
				continue
			}
			records = append(records, found...)
			slog.Info("maps query done", "region", region.Name, "query", query, "found", len(found))

			browser.Pause(ctx, 2*time.Second, 4*time.Second)
			if ctx.Err() != nil {
				return records, ctx.Err()
			}
		}
	}

	return records, nil
}

func (c *MapsConnector) searchURL(query string, region config.MapRegion) string {
	term := fmt.Sprintf("%s near %s, %s", query, region.Name, c.cfg.Region.State)
	return fmt.Sprintf("%s%s/@%f,%f,%dz",
		mapsSearchBase, url.QueryEscape(term), region.Lat, region.Lng, region.Zoom)
}

// fetchQuery runs one search: navigate, wait for the feed, scroll until the
// item count stabilizes, then batch-extract.
func (c *MapsConnector) fetchQuery(ctx context.Context, sess *browser.Session, searchURL string, region config.MapRegion, state string) ([]*models.Record, error) {
	if err := sess.Navigate(ctx, searchURL, c.cfg.Maps.NavTimeout); err != nil {
		return nil, err
	}
	browser.Pause(ctx, 2*time.Second, 4*time.Second)

	page := sess.Page()

	// Results load into a feed element; no feed means no results for this
	// query (or a block page) — skip either way.
	feed, err := page.Timeout(c.cfg.Maps.FeedTimeout).Element(feedSelector)
	if err != nil {
		return nil, models.NewPipelineError(models.ErrCodeTimeout, "no results feed", err)
	}

	// Scroll to force incremental loading until the count stops growing.
	prev := 0
	for attempt := 0; attempt < c.cfg.Maps.MaxScrolls; attempt++ {
		if _, err := feed.Eval(`() => this.scrollBy(0, 1200)`); err != nil {
			break
		}
		browser.Pause(ctx, 500*time.Millisecond, time.Second)

		items, err := page.Elements(feedItemSelector)
		if err != nil {
			break
		}
		count := len(items)
		if count == prev && attempt > 2 {
			break
		}
		prev = count
	}

	res, err := page.Eval(listingExtractJS)
	if err != nil {
		return nil, models.NewPipelineError(models.ErrCodeParse, "listing extraction failed", err)
	}

	fallbackCity := regionCity(region.Name)
	var records []*models.Record
	for _, row := range res.Value.Arr() {
		name := row.Get("name").Str()
		if name == "" {
			continue
		}
		records = append(records, parseListing(name, row.Get("text").Str(), state, fallbackCity, searchURL))
	}
	return records, nil
}

// parseListing classifies one listing's raw text block into a record.
func parseListing(name, text, state, fallbackCity, sourceURL string) *models.Record {
	cls := extract.ClassifyLines(name, strings.Split(text, "\n"), state)
	rating, reviewCount := extract.Rating(text)

	city := extract.City(cls.Address, state)
	if city == "" {
		city = fallbackCity
	}

	return &models.Record{
		Name:        name,
		Address:     cls.Address,
		City:        city,
		State:       state,
		ZipCode:     extract.ZIP(cls.Address),
		Phone:       extract.Phone(text),
		Rating:      rating,
		ReviewCount: reviewCount,
		Categories:  cls.Category,
		Source:      "Google Maps",
		SourceURL:   sourceURL,
	}
}

// regionCity reduces a map-region name like "SF Mission/Castro" to the city
// part used as a fallback when the address yields none.
func regionCity(name string) string {
	return strings.TrimSpace(strings.SplitN(name, "/", 2)[0])
}

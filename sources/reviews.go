package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/leadharvest/browser"
	"github.com/use-agent/leadharvest/config"
	"github.com/use-agent/leadharvest/extract"
	"github.com/use-agent/leadharvest/models"
)

const reviewsBase = "https://www.yelp.com"

// ReviewsConnector pages through review-site search results and parses the
// rendered markup.
type ReviewsConnector struct {
	cfg     *config.Config
	browser *browser.Browser
}

// NewReviewsConnector creates the review-site connector.
func NewReviewsConnector(cfg *config.Config, b *browser.Browser) *ReviewsConnector {
	return &ReviewsConnector{cfg: cfg, browser: b}
}

func (c *ReviewsConnector) ID() string    { return "yelp" }
func (c *ReviewsConnector) Label() string { return "Yelp" }

// Fetch walks (location, query, page) in a fixed order. Each page failure
// is logged and skipped.
func (c *ReviewsConnector) Fetch(ctx context.Context) ([]*models.Record, error) {
	sess, err := c.browser.NewSession()
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	// Warm up on the homepage first so the search requests carry session
	// cookies; a failure here is harmless.
	if err := sess.Navigate(ctx, reviewsBase+"/", c.cfg.Reviews.NavTimeout); err != nil {
		slog.Debug("reviews warm-up failed", "error", err)
	}
	browser.Pause(ctx, 2*time.Second, 4*time.Second)

	state := c.cfg.Region.State
	var records []*models.Record

	for _, location := range c.cfg.Region.Locations {
		for _, query := range c.cfg.Region.Queries {
			for pageNum := 0; pageNum < c.cfg.Reviews.PagesPerQuery; pageNum++ {
				pageURL := fmt.Sprintf("%s/search?find_desc=%s&find_loc=%s&start=%d",
					reviewsBase, url.QueryEscape(query), url.QueryEscape(location), pageNum*10)
				slog.Info("reviews search", "location", location, "query", query, "page", pageNum+1)

				if err := sess.Navigate(ctx, pageURL, c.cfg.Reviews.NavTimeout); err != nil {
					slog.Warn("reviews page failed, skipping",
						"location", location, "query", query, "page", pageNum+1, "error", err)
					continue
				}
				browser.Pause(ctx, 2*time.Second, 4*time.Second)

				html, err := sess.HTML()
				if err != nil {
					slog.Warn("reviews page unreadable, skipping", "url", pageURL, "error", err)
					continue
				}

				found := ParseReviewPage(html, location, pageURL, state)
				records = append(records, found...)
				slog.Info("reviews page done", "location", location, "query", query,
					"page", pageNum+1, "found", len(found))

				browser.Pause(ctx, 3*time.Second, 7*time.Second)
				if ctx.Err() != nil {
					return records, ctx.Err()
				}
			}
		}
	}

	return records, nil
}

// reviewStrategy is one independent way of reading listings out of a
// rendered search page. Strategies share no state; the first one to yield
// any records wins.
type reviewStrategy func(doc *goquery.Document, location, pageURL, state string) []*models.Record

var reviewStrategies = []reviewStrategy{
	parseStructuredListings,
	parseEmbeddedPageState,
}

// ParseReviewPage extracts listings from rendered review-site markup.
// Malformed or absent data at any stage is non-fatal: the next strategy is
// tried, and total failure yields an empty slice.
func ParseReviewPage(html, location, pageURL, state string) []*models.Record {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	for _, strategy := range reviewStrategies {
		if records := strategy(doc, location, pageURL, state); len(records) > 0 {
			return records
		}
	}
	return nil
}

// parseStructuredListings reads JSON-LD business-listing blocks: either a
// top-level array of businesses or an ItemList wrapper.
func parseStructuredListings(doc *goquery.Document, location, pageURL, state string) []*models.Record {
	var records []*models.Record

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var data any
		if err := json.Unmarshal([]byte(s.Text()), &data); err != nil {
			return // bad JSON block, not fatal
		}

		var items []any
		switch v := data.(type) {
		case []any:
			items = v
		case map[string]any:
			if v["@type"] != "ItemList" {
				return
			}
			items, _ = v["itemListElement"].([]any)
		default:
			return
		}

		for _, it := range items {
			wrapper, ok := it.(map[string]any)
			if !ok {
				continue
			}
			biz := wrapper
			if inner, ok := wrapper["item"].(map[string]any); ok {
				biz = inner
			}

			name := anyString(biz["name"])
			if name == "" {
				continue
			}

			rec := &models.Record{
				Name:      name,
				Phone:     anyString(biz["telephone"]),
				Website:   anyString(biz["url"]),
				State:     state,
				Source:    "Yelp",
				SourceURL: pageURL,
			}

			if addr, ok := biz["address"].(map[string]any); ok {
				street := anyString(addr["streetAddress"])
				rec.City = anyString(addr["addressLocality"])
				if region := anyString(addr["addressRegion"]); region != "" {
					rec.State = region
				}
				rec.ZipCode = anyString(addr["postalCode"])
				rec.Address = strings.Trim(
					fmt.Sprintf("%s, %s, %s %s", street, rec.City, rec.State, rec.ZipCode), ", ")
			} else if raw := anyString(biz["address"]); raw != "" {
				rec.Address = raw
				rec.City = extract.City(raw, state)
				rec.ZipCode = extract.ZIP(raw)
			}

			if agg, ok := biz["aggregateRating"].(map[string]any); ok {
				rec.Rating = anyString(agg["ratingValue"])
				rec.ReviewCount = anyString(agg["reviewCount"])
			}

			records = append(records, rec)
		}
	})

	return records
}

// Embedded page-state shapes for the second strategy.
type pageState struct {
	Props struct {
		PageProps struct {
			SearchPageProps struct {
				MainContentComponentsListProps []listingComponent `json:"mainContentComponentsListProps"`
			} `json:"searchPageProps"`
		} `json:"pageProps"`
	} `json:"props"`
}

type listingComponent struct {
	SearchResultBusiness *reviewBusiness `json:"searchResultBusiness"`
	BizCardProps         *reviewBusiness `json:"bizCardProps"`
}

type reviewBusiness struct {
	Name         string      `json:"name"`
	BusinessName string      `json:"businessName"`
	Phone        string      `json:"phone"`
	Rating       json.Number `json:"rating"`
	ReviewCount  json.Number `json:"reviewCount"`
	Categories   []struct {
		Title string `json:"title"`
	} `json:"categories"`
	AddressProps *reviewAddress `json:"addressProps"`
	Address      *reviewAddress `json:"address"`
}

type reviewAddress struct {
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2"`
	City         string `json:"city"`
	PostalCode   string `json:"postalCode"`
}

// parseEmbeddedPageState walks the page-data JSON blob's listing-component
// array.
func parseEmbeddedPageState(doc *goquery.Document, location, pageURL, state string) []*models.Record {
	blob := doc.Find(`script#__NEXT_DATA__`).First().Text()
	if blob == "" {
		return nil
	}

	var ps pageState
	if err := json.Unmarshal([]byte(blob), &ps); err != nil {
		return nil
	}

	fallbackCity := strings.TrimSpace(strings.SplitN(location, ",", 2)[0])
	var records []*models.Record

	for _, comp := range ps.Props.PageProps.SearchPageProps.MainContentComponentsListProps {
		biz := comp.SearchResultBusiness
		if biz == nil {
			biz = comp.BizCardProps
		}
		if biz == nil {
			continue
		}

		name := biz.Name
		if name == "" {
			name = biz.BusinessName
		}
		if name == "" {
			continue
		}

		titles := make([]string, 0, len(biz.Categories))
		for _, cat := range biz.Categories {
			if cat.Title != "" {
				titles = append(titles, cat.Title)
			}
		}

		rec := &models.Record{
			Name:        name,
			Phone:       biz.Phone,
			City:        fallbackCity,
			State:       state,
			Rating:      biz.Rating.String(),
			ReviewCount: biz.ReviewCount.String(),
			Categories:  strings.Join(titles, ", "),
			Source:      "Yelp",
			SourceURL:   pageURL,
		}

		addr := biz.AddressProps
		if addr == nil {
			addr = biz.Address
		}
		if addr != nil {
			var parts []string
			for _, p := range []string{addr.AddressLine1, addr.AddressLine2} {
				if p != "" {
					parts = append(parts, p)
				}
			}
			rec.Address = strings.Join(parts, ", ")
			if addr.City != "" {
				rec.City = addr.City
			}
			rec.ZipCode = addr.PostalCode
		}

		records = append(records, rec)
	}

	return records
}

// anyString renders a decoded JSON scalar as the string the sources report:
// numbers lose no precision, everything else non-string becomes "".
func anyString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return fmt.Sprintf("%g", t)
	case json.Number:
		return t.String()
	default:
		return ""
	}
}

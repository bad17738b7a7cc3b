package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Region    RegionConfig
	Browser   BrowserConfig
	Fetch     FetchConfig
	Maps      MapsConfig
	Reviews   ReviewsConfig
	Directory DirectoryConfig
	Registry  RegistryConfig
	Enrich    EnrichConfig
	Output    OutputConfig
	Tracker   TrackerConfig
	Log       LogConfig
}

// MapRegion is one map-search viewport: a named center point and zoom level.
type MapRegion struct {
	Name string
	Lat  float64
	Lng  float64
	Zoom int
}

// RegionConfig pins the pipeline to one target industry and region.
type RegionConfig struct {
	// State is the two-letter code every record defaults to.
	State string // default: "CA"

	// Queries are the industry search terms used by every search connector.
	Queries []string

	// Locations are "City, ST" strings for the location-paged connectors.
	Locations []string

	// MapRegions are the map-search viewports for the map-listing connector.
	MapRegions []MapRegion
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// DefaultProxy is the proxy URL for all browser and HTTP traffic.
	DefaultProxy string
}

// FetchConfig controls plain (non-rendering) HTTP fetches.
type FetchConfig struct {
	// Timeout is the per-request deadline.
	Timeout time.Duration // default: 15s

	// RatePerSecond caps sustained outbound requests across the whole run.
	RatePerSecond float64 // default: 1

	// Burst is the rate limiter burst size.
	Burst int // default: 2
}

// MapsConfig controls the map-listing connector.
type MapsConfig struct {
	// NavTimeout is the deadline for one search-page navigation.
	NavTimeout time.Duration // default: 30s

	// FeedTimeout is how long to wait for the results feed to appear
	// before skipping the query.
	FeedTimeout time.Duration // default: 8s

	// MaxScrolls bounds the scroll-until-stable loop.
	MaxScrolls int // default: 12
}

// ReviewsConfig controls the review-site connector.
type ReviewsConfig struct {
	// PagesPerQuery is how many result pages to walk per (location, query).
	PagesPerQuery int // default: 3

	// NavTimeout is the deadline for one result-page navigation.
	NavTimeout time.Duration // default: 20s
}

// DirectoryConfig controls the directory connector.
type DirectoryConfig struct {
	PagesPerQuery int           // default: 3
	NavTimeout    time.Duration // default: 20s
}

// RegistryConfig controls the registry-document connector.
type RegistryConfig struct {
	// URL is the fixed location of the registry PDF.
	URL string

	// Timeout is the download deadline.
	Timeout time.Duration // default: 30s
}

// EnrichConfig controls website enrichment.
type EnrichConfig struct {
	// MaxSites is the global cap on websites visited per run.
	MaxSites int // default: 200

	// Timeout is the homepage fetch deadline.
	Timeout time.Duration // default: 10s

	// ContactTimeout is the shorter deadline for contact-page fallbacks.
	ContactTimeout time.Duration // default: 6s

	// MinDelay/MaxDelay bound the randomized pause between fetches.
	MinDelay time.Duration // default: 1s
	MaxDelay time.Duration // default: 3s
}

// OutputConfig controls the result writers.
type OutputConfig struct {
	Dir         string // default: "output"
	CSVName     string // default: "commercial_insurance_leads.csv"
	JSONName    string // default: "commercial_insurance_leads.json"
	SummaryName string // default: "scrape_summary.txt"
}

// TrackerConfig controls the lead-tracker dashboard server.
type TrackerConfig struct {
	Host   string // default: "0.0.0.0"
	Port   int    // default: 5001
	Mode   string // "debug", "release", "test"; default: "release"
	DBPath string // default: "leads.db"
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "text"
}

// Default search terms for the target industry.
var defaultQueries = []string{
	"commercial insurance",
	"business insurance broker",
	"commercial insurance agent",
	"commercial property insurance",
	"general liability insurance",
	"workers compensation insurance",
}

// Default "City, ST" pages for the location-paged connectors.
var defaultLocations = []string{
	"San Francisco, CA",
	"Oakland, CA",
	"San Jose, CA",
	"San Mateo, CA",
	"Palo Alto, CA",
	"Walnut Creek, CA",
	"Fremont, CA",
	"Berkeley, CA",
	"Redwood City, CA",
	"Pleasanton, CA",
}

// Default map-search viewports covering the target region.
var defaultMapRegions = []MapRegion{
	{Name: "SF Downtown", Lat: 37.7880, Lng: -122.4075, Zoom: 14},
	{Name: "SF Mission/Castro", Lat: 37.7600, Lng: -122.4200, Zoom: 14},
	{Name: "SF Sunset/Richmond", Lat: 37.7650, Lng: -122.4800, Zoom: 14},
	{Name: "SF SOMA/FiDi", Lat: 37.7850, Lng: -122.3950, Zoom: 14},
	{Name: "Oakland Downtown", Lat: 37.8044, Lng: -122.2712, Zoom: 14},
	{Name: "San Jose Downtown", Lat: 37.3382, Lng: -121.8863, Zoom: 14},
	{Name: "Palo Alto", Lat: 37.4419, Lng: -122.1430, Zoom: 14},
	{Name: "San Mateo", Lat: 37.5630, Lng: -122.3255, Zoom: 14},
	{Name: "Walnut Creek", Lat: 37.9101, Lng: -122.0652, Zoom: 14},
	{Name: "Fremont", Lat: 37.5485, Lng: -121.9886, Zoom: 14},
	{Name: "Berkeley", Lat: 37.8716, Lng: -122.2727, Zoom: 14},
	{Name: "Daly City", Lat: 37.6879, Lng: -122.4702, Zoom: 14},
	{Name: "Sunnyvale", Lat: 37.3688, Lng: -122.0363, Zoom: 14},
	{Name: "Pleasanton", Lat: 37.6624, Lng: -121.8747, Zoom: 14},
	{Name: "San Rafael", Lat: 37.9735, Lng: -122.5311, Zoom: 14},
	{Name: "Redwood City", Lat: 37.4852, Lng: -122.2364, Zoom: 14},
	{Name: "Concord", Lat: 37.9780, Lng: -122.0311, Zoom: 14},
	{Name: "Hayward", Lat: 37.6688, Lng: -122.0808, Zoom: 14},
}

const defaultRegistryURL = "https://www.insurance.ca.gov/0250-insurers/0300-insurers/0100-applications/upload/AdmittedInsurers.pdf"

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Region: RegionConfig{
			State:      envOr("LEADHARVEST_STATE", "CA"),
			Queries:    envSliceOr("LEADHARVEST_QUERIES", defaultQueries),
			Locations:  envSliceOr("LEADHARVEST_LOCATIONS", defaultLocations),
			MapRegions: defaultMapRegions,
		},
		Browser: BrowserConfig{
			Headless:     envBoolOr("LEADHARVEST_HEADLESS", true),
			NoSandbox:    envBoolOr("LEADHARVEST_NO_SANDBOX", false),
			BrowserBin:   os.Getenv("LEADHARVEST_BROWSER_BIN"),
			DefaultProxy: os.Getenv("LEADHARVEST_PROXY"),
		},
		Fetch: FetchConfig{
			Timeout:       envDurationOr("LEADHARVEST_FETCH_TIMEOUT", 15*time.Second),
			RatePerSecond: envFloatOr("LEADHARVEST_FETCH_RPS", 1.0),
			Burst:         envIntOr("LEADHARVEST_FETCH_BURST", 2),
		},
		Maps: MapsConfig{
			NavTimeout:  envDurationOr("LEADHARVEST_MAPS_NAV_TIMEOUT", 30*time.Second),
			FeedTimeout: envDurationOr("LEADHARVEST_MAPS_FEED_TIMEOUT", 8*time.Second),
			MaxScrolls:  envIntOr("LEADHARVEST_MAPS_MAX_SCROLLS", 12),
		},
		Reviews: ReviewsConfig{
			PagesPerQuery: envIntOr("LEADHARVEST_REVIEWS_PAGES", 3),
			NavTimeout:    envDurationOr("LEADHARVEST_REVIEWS_NAV_TIMEOUT", 20*time.Second),
		},
		Directory: DirectoryConfig{
			PagesPerQuery: envIntOr("LEADHARVEST_DIRECTORY_PAGES", 3),
			NavTimeout:    envDurationOr("LEADHARVEST_DIRECTORY_NAV_TIMEOUT", 20*time.Second),
		},
		Registry: RegistryConfig{
			URL:     envOr("LEADHARVEST_REGISTRY_URL", defaultRegistryURL),
			Timeout: envDurationOr("LEADHARVEST_REGISTRY_TIMEOUT", 30*time.Second),
		},
		Enrich: EnrichConfig{
			MaxSites:       envIntOr("LEADHARVEST_ENRICH_MAX_SITES", 200),
			Timeout:        envDurationOr("LEADHARVEST_ENRICH_TIMEOUT", 10*time.Second),
			ContactTimeout: envDurationOr("LEADHARVEST_ENRICH_CONTACT_TIMEOUT", 6*time.Second),
			MinDelay:       envDurationOr("LEADHARVEST_ENRICH_MIN_DELAY", time.Second),
			MaxDelay:       envDurationOr("LEADHARVEST_ENRICH_MAX_DELAY", 3*time.Second),
		},
		Output: OutputConfig{
			Dir:         envOr("LEADHARVEST_OUTPUT_DIR", "output"),
			CSVName:     envOr("LEADHARVEST_OUTPUT_CSV", "commercial_insurance_leads.csv"),
			JSONName:    envOr("LEADHARVEST_OUTPUT_JSON", "commercial_insurance_leads.json"),
			SummaryName: envOr("LEADHARVEST_OUTPUT_SUMMARY", "scrape_summary.txt"),
		},
		Tracker: TrackerConfig{
			Host:   envOr("LEADTRACKER_HOST", "0.0.0.0"),
			Port:   envIntOr("LEADTRACKER_PORT", 5001),
			Mode:   envOr("LEADTRACKER_MODE", "release"),
			DBPath: envOr("LEADTRACKER_DB", "leads.db"),
		},
		Log: LogConfig{
			Level:  envOr("LEADHARVEST_LOG_LEVEL", "info"),
			Format: envOr("LEADHARVEST_LOG_FORMAT", "text"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/use-agent/leadharvest/browser"
	"github.com/use-agent/leadharvest/config"
	"github.com/use-agent/leadharvest/enrich"
	"github.com/use-agent/leadharvest/models"
	"github.com/use-agent/leadharvest/output"
	"github.com/use-agent/leadharvest/pipeline"
	"github.com/use-agent/leadharvest/sources"
)

// defaultSources is what runs when no arguments are given.
var defaultSources = []string{"gmaps", "cdi", "enrich"}

var usage = `usage: leadharvest [source ...]

Sources:
  gmaps        Google Maps listings (browser)
  yelp         Yelp search results (browser)
  yellowpages  Yellow Pages listings (browser)
  cdi          CDI admitted-insurers registry (HTTP)
  enrich       visit record websites for email and description

With no arguments, runs: ` + strings.Join(defaultSources, " ")

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)

	requested := os.Args[1:]
	if len(requested) == 0 {
		requested = defaultSources
	}
	if err := validateSources(requested); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n\n%s\n", err, usage)
		os.Exit(2)
	}

	if err := run(cfg, requested); err != nil {
		slog.Error("run failed", "error", err)
		os.Exit(1)
	}
}

// validateSources rejects unknown source IDs before run acquires any
// resources, so a bad argument never leaves a launched browser behind.
func validateSources(requested []string) error {
	for _, id := range requested {
		switch id {
		case "gmaps", "yelp", "yellowpages", "cdi", "enrich":
		default:
			return fmt.Errorf("unknown source %q", id)
		}
	}
	return nil
}

func run(cfg *config.Config, requested []string) error {
	// The registry URL comes from the environment; a malformed value is a
	// misconfiguration, not a transient fetch problem.
	if _, err := url.ParseRequestURI(cfg.Registry.URL); err != nil {
		return models.NewPipelineError(models.ErrCodeInvalidInput,
			fmt.Sprintf("invalid registry URL %q", cfg.Registry.URL), err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fetcher := browser.NewFetcher(cfg.Fetch, cfg.Browser.DefaultProxy)

	// The browser is only launched when a browser-backed source runs.
	var b *browser.Browser
	browserFor := func() (*browser.Browser, error) {
		if b != nil {
			return b, nil
		}
		var err error
		b, err = browser.New(cfg.Browser)
		return b, err
	}

	var connectors []sources.Connector
	enrichRequested := false

	for _, id := range requested {
		switch id {
		case "gmaps", "yelp", "yellowpages":
			br, err := browserFor()
			if err != nil {
				return fmt.Errorf("launch browser: %w", err)
			}
			switch id {
			case "gmaps":
				connectors = append(connectors, sources.NewMapsConnector(cfg, br))
			case "yelp":
				connectors = append(connectors, sources.NewReviewsConnector(cfg, br))
			case "yellowpages":
				connectors = append(connectors, sources.NewDirectoryConnector(cfg, br))
			}
		case "cdi":
			connectors = append(connectors, sources.NewRegistryConnector(cfg, fetcher))
		case "enrich":
			enrichRequested = true
		}
	}
	if b != nil {
		defer b.Close()
	}

	var enricher pipeline.Enricher
	if enrichRequested {
		enricher = enrich.New(cfg.Enrich, fetcher)
	}

	slog.Info("leadharvest starting", "sources", requested,
		"queries", len(cfg.Region.Queries), "locations", len(cfg.Region.Locations))

	records, stats, err := pipeline.New(connectors, enricher).Run(ctx)
	if err != nil {
		slog.Warn("run interrupted, writing partial results", "error", err)
	}

	paths, werr := output.NewWriter(cfg.Output).WriteAll(records)
	if werr != nil {
		return werr
	}

	slog.Info("results written", "files", paths,
		"raw", stats.Raw, "unique", stats.Unique, "enriched", stats.Enriched)
	return err
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}

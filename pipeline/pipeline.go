// Package pipeline runs the configured source connectors in order, merges
// their results into unique records, and optionally enriches them.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/use-agent/leadharvest/dedupe"
	"github.com/use-agent/leadharvest/models"
	"github.com/use-agent/leadharvest/sources"
)

// Enricher fills record fields in place and reports how many records
// gained at least one field.
type Enricher interface {
	Run(ctx context.Context, records []*models.Record) int
}

// Stats summarizes one pipeline run.
type Stats struct {
	Raw      int
	Unique   int
	Enriched int
	Elapsed  time.Duration
}

// Pipeline coordinates the connectors and the post-processing steps.
type Pipeline struct {
	connectors []sources.Connector
	enricher   Enricher
}

// New creates a Pipeline. A nil enricher disables enrichment.
func New(connectors []sources.Connector, enricher Enricher) *Pipeline {
	return &Pipeline{connectors: connectors, enricher: enricher}
}

// Run executes every connector in order and returns the merged records.
// A failed connector is logged and the run continues with the remaining
// sources; whatever it returned before failing is kept. Cancellation
// stops the run but still merges what was gathered so far.
func (p *Pipeline) Run(ctx context.Context) ([]*models.Record, Stats, error) {
	start := time.Now()

	var raw []*models.Record
	for _, c := range p.connectors {
		if ctx.Err() != nil {
			break
		}
		slog.Info("source start", "source", c.ID())
		found, err := c.Fetch(ctx)
		if err != nil {
			slog.Error("source failed", "source", c.ID(), "error", err, "partial", len(found))
		}
		raw = append(raw, found...)
		slog.Info("source done", "source", c.ID(), "found", len(found))
	}

	merged := dedupe.Merge(raw)
	stats := Stats{Raw: len(raw), Unique: len(merged)}

	if p.enricher != nil && ctx.Err() == nil {
		stats.Enriched = p.enricher.Run(ctx, merged)
	}
	stats.Elapsed = time.Since(start)

	slog.Info("pipeline done", "raw", stats.Raw, "unique", stats.Unique,
		"enriched", stats.Enriched, "elapsed", stats.Elapsed.Round(time.Second))
	return merged, stats, ctx.Err()
}

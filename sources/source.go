// Package sources holds one connector per listing source. Each connector
// turns its source's payload shape into normalized records tagged with
// provenance; deduplication across queries and sources happens downstream.
package sources

import (
	"context"

	"github.com/use-agent/leadharvest/models"
)

// Connector fetches one source and normalizes its payload into records.
//
// A connector must swallow per-query failures (log and move to the next
// query) and only return an error for conditions that prevented the whole
// source from producing anything. Even then the orchestrator treats the
// error as non-fatal for the run.
type Connector interface {
	// ID is the identifier used on the CLI to select this source.
	ID() string

	// Label is the human-readable provenance string stamped on records.
	Label() string

	// Fetch runs every configured query against the source and returns
	// the normalized records.
	Fetch(ctx context.Context) ([]*models.Record, error)
}

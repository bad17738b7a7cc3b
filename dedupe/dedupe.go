// Package dedupe collapses duplicate sightings of the same business into
// one record per identity key.
package dedupe

import (
	"strings"

	"github.com/use-agent/leadharvest/models"
)

// mergeField copies src into *dst only when *dst is empty. The first
// populated value for a field is never overwritten.
func mergeField(dst *string, src string) {
	if *dst == "" && src != "" {
		*dst = src
	}
}

// Merge collapses the input into one record per identity key. The first
// record seen for a key is retained and mutated in place; later records
// contribute only the fields the retained record is still missing, plus
// their source label. Re-running Merge on its own output is a no-op.
func Merge(records []*models.Record) []*models.Record {
	seen := make(map[string]*models.Record, len(records))
	var out []*models.Record

	for _, r := range records {
		key := r.Key()
		existing, ok := seen[key]
		if !ok {
			seen[key] = r
			out = append(out, r)
			continue
		}

		mergeField(&existing.Address, r.Address)
		mergeField(&existing.Phone, r.Phone)
		mergeField(&existing.Website, r.Website)
		mergeField(&existing.Email, r.Email)
		mergeField(&existing.Rating, r.Rating)
		mergeField(&existing.ReviewCount, r.ReviewCount)
		mergeField(&existing.Categories, r.Categories)
		mergeField(&existing.Description, r.Description)
		mergeField(&existing.ZipCode, r.ZipCode)

		appendSource(existing, r.Source)
	}

	return out
}

// appendSource adds label to the record's comma-joined provenance list
// unless that exact label is already present.
func appendSource(r *models.Record, label string) {
	if label == "" {
		return
	}
	for _, s := range strings.Split(r.Source, ", ") {
		if s == label {
			return
		}
	}
	if r.Source == "" {
		r.Source = label
		return
	}
	r.Source += ", " + label
}

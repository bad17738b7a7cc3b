// Package output persists merged results in the formats downstream tools
// expect: a CSV for spreadsheets, a JSON array for programs, and a plain
// text run summary.
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/use-agent/leadharvest/config"
	"github.com/use-agent/leadharvest/models"
)

// Writer writes the result files into the configured output directory.
type Writer struct {
	cfg config.OutputConfig
}

// NewWriter creates a Writer for the given output configuration.
func NewWriter(cfg config.OutputConfig) *Writer {
	return &Writer{cfg: cfg}
}

// WriteAll sorts records by (city, name) and writes the CSV, JSON and
// summary files. It returns the paths written, in that order.
func (w *Writer) WriteAll(records []*models.Record) ([]string, error) {
	if err := os.MkdirAll(w.cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	sorted := make([]*models.Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		ci, cj := strings.ToLower(sorted[i].City), strings.ToLower(sorted[j].City)
		if ci != cj {
			return ci < cj
		}
		return strings.ToLower(sorted[i].Name) < strings.ToLower(sorted[j].Name)
	})

	csvPath := filepath.Join(w.cfg.Dir, w.cfg.CSVName)
	if err := writeCSV(csvPath, sorted); err != nil {
		return nil, err
	}
	jsonPath := filepath.Join(w.cfg.Dir, w.cfg.JSONName)
	if err := writeJSON(jsonPath, sorted); err != nil {
		return nil, err
	}
	summaryPath := filepath.Join(w.cfg.Dir, w.cfg.SummaryName)
	if err := writeSummary(summaryPath, sorted); err != nil {
		return nil, err
	}

	return []string{csvPath, jsonPath, summaryPath}, nil
}

func writeCSV(path string, records []*models.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(models.FieldNames); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range records {
		if err := cw.Write(r.Row()); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeJSON(path string, records []*models.Record) error {
	// An empty run still produces a valid JSON array.
	if records == nil {
		records = []*models.Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	return nil
}

func writeSummary(path string, records []*models.Record) error {
	bySource := map[string]int{}
	byCity := map[string]int{}
	var withPhone, withWebsite, withEmail, withRating int

	for _, r := range records {
		for _, src := range strings.Split(r.Source, ", ") {
			if src = strings.TrimSpace(src); src != "" {
				bySource[src]++
			}
		}
		city := r.City
		if city == "" {
			city = "(unknown)"
		}
		byCity[city]++
		if r.Phone != "" {
			withPhone++
		}
		if r.Website != "" {
			withWebsite++
		}
		if r.Email != "" {
			withEmail++
		}
		if r.Rating != "" {
			withRating++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Lead Generation Summary\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Total unique businesses: %d\n\n", len(records))

	fmt.Fprintf(&b, "By source:\n")
	for _, src := range sortedKeys(bySource) {
		fmt.Fprintf(&b, "  %s: %d\n", src, bySource[src])
	}
	fmt.Fprintf(&b, "\nBy city:\n")
	for _, city := range sortedKeys(byCity) {
		fmt.Fprintf(&b, "  %s: %d\n", city, byCity[city])
	}
	fmt.Fprintf(&b, "\nField coverage:\n")
	fmt.Fprintf(&b, "  With phone: %d\n", withPhone)
	fmt.Fprintf(&b, "  With website: %d\n", withWebsite)
	fmt.Fprintf(&b, "  With email: %d\n", withEmail)
	fmt.Fprintf(&b, "  With rating: %d\n", withRating)

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

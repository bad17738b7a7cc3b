package output

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/use-agent/leadharvest/config"
	"github.com/use-agent/leadharvest/models"
)

func testConfig(dir string) config.OutputConfig {
	return config.OutputConfig{
		Dir:         dir,
		CSVName:     "leads.csv",
		JSONName:    "leads.json",
		SummaryName: "summary.txt",
	}
}

func sampleRecords() []*models.Record {
	return []*models.Record{
		{Name: "Zeta Insurance", City: "Oakland", State: "CA", Phone: "(510) 555-0100", Source: "Google Maps, Yelp"},
		{Name: "acme Brokers", City: "Oakland", State: "CA", Website: "https://acme.test", Source: "Yelp"},
		{Name: "Mid Coverage", City: "Berkeley", State: "CA", Email: "info@mid.test", Source: "Google Maps"},
	}
}

func TestWriteAll(t *testing.T) {
	dir := t.TempDir()
	paths, err := NewWriter(testConfig(dir)).WriteAll(sampleRecords())
	if err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	if len(paths) != 3 {
		t.Fatalf("got %d paths, want 3", len(paths))
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("missing output file %s: %v", p, err)
		}
	}
}

func TestWriteAll_CSVSortedWithHeader(t *testing.T) {
	dir := t.TempDir()
	if _, err := NewWriter(testConfig(dir)).WriteAll(sampleRecords()); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "leads.csv"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 4 {
		t.Fatalf("got %d rows, want header + 3", len(rows))
	}
	if rows[0][0] != models.FieldNames[0] {
		t.Errorf("header starts with %q", rows[0][0])
	}

	// Sorted by city then name, case-insensitively.
	wantOrder := []string{"Mid Coverage", "acme Brokers", "Zeta Insurance"}
	for i, want := range wantOrder {
		if rows[i+1][0] != want {
			t.Errorf("row %d name = %q, want %q", i+1, rows[i+1][0], want)
		}
	}
}

func TestWriteAll_JSONRoundTrip(t *testing.T) {
	dir := t.TempDir()
	if _, err := NewWriter(testConfig(dir)).WriteAll(sampleRecords()); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "leads.json"))
	if err != nil {
		t.Fatal(err)
	}
	var decoded []models.Record
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(decoded) != 3 {
		t.Errorf("got %d records, want 3", len(decoded))
	}
	if decoded[0].Name != "Mid Coverage" {
		t.Errorf("first record = %q, want sorted order", decoded[0].Name)
	}
}

func TestWriteAll_Summary(t *testing.T) {
	dir := t.TempDir()
	if _, err := NewWriter(testConfig(dir)).WriteAll(sampleRecords()); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "summary.txt"))
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)

	for _, want := range []string{
		"Total unique businesses: 3",
		"Google Maps: 2", // combined sources are counted per label
		"Yelp: 2",
		"Oakland: 2",
		"Berkeley: 1",
		"With phone: 1",
		"With website: 1",
		"With email: 1",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("summary missing %q\n%s", want, text)
		}
	}
}

func TestWriteAll_Empty(t *testing.T) {
	dir := t.TempDir()
	if _, err := NewWriter(testConfig(dir)).WriteAll(nil); err != nil {
		t.Fatalf("WriteAll on empty input: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "leads.json"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(string(data)) != "[]" {
		t.Errorf("empty run JSON = %q, want []", string(data))
	}
}

package dedupe

import (
	"testing"

	"github.com/use-agent/leadharvest/models"
)

func TestMerge_CombinesDuplicates(t *testing.T) {
	records := []*models.Record{
		{Name: "Acme Insurance", City: "Oakland", Source: "A", Phone: "555-1111"},
		{Name: "ACME INSURANCE", City: "Oakland", Source: "B", Website: "http://acme.test"},
	}

	out := Merge(records)
	if len(out) != 1 {
		t.Fatalf("got %d records, want 1", len(out))
	}

	r := out[0]
	if r.Source != "A, B" {
		t.Errorf("Source = %q, want %q", r.Source, "A, B")
	}
	if r.Phone != "555-1111" {
		t.Errorf("Phone = %q, want 555-1111", r.Phone)
	}
	if r.Website != "http://acme.test" {
		t.Errorf("Website = %q, want http://acme.test", r.Website)
	}
}

func TestMerge_FirstPopulatedWins(t *testing.T) {
	records := []*models.Record{
		{Name: "Acme", City: "Oakland", Source: "A", Address: "1 First St"},
		{Name: "Acme", City: "Oakland", Source: "B", Address: "2 Second St"},
	}

	out := Merge(records)
	if len(out) != 1 {
		t.Fatalf("got %d records, want 1", len(out))
	}
	if out[0].Address != "1 First St" {
		t.Errorf("Address = %q, want the first-seen value", out[0].Address)
	}
}

func TestMerge_DistinctCitiesStaySeparate(t *testing.T) {
	records := []*models.Record{
		{Name: "Acme", City: "Oakland", Source: "A"},
		{Name: "Acme", City: "Berkeley", Source: "A"},
	}
	if out := Merge(records); len(out) != 2 {
		t.Errorf("got %d records, want 2", len(out))
	}
}

func TestMerge_NoDuplicateSourceLabels(t *testing.T) {
	records := []*models.Record{
		{Name: "Acme", City: "Oakland", Source: "Google Maps"},
		{Name: "Acme", City: "Oakland", Source: "Google Maps"},
	}
	out := Merge(records)
	if out[0].Source != "Google Maps" {
		t.Errorf("Source = %q, double-reported source must appear once", out[0].Source)
	}
}

func TestMerge_Idempotent(t *testing.T) {
	records := []*models.Record{
		{Name: "Acme", City: "Oakland", Source: "A", Phone: "555-1111"},
		{Name: "Acme", City: "Oakland", Source: "B", Email: "x@realbiz.com"},
		{Name: "Beta Brokers", City: "Fremont", Source: "B"},
	}

	once := Merge(records)
	snapshot := make([]models.Record, len(once))
	for i, r := range once {
		snapshot[i] = *r
	}

	twice := Merge(once)
	if len(twice) != len(once) {
		t.Fatalf("second merge changed length: %d vs %d", len(twice), len(once))
	}
	for i, r := range twice {
		if *r != snapshot[i] {
			t.Errorf("record %d changed on re-merge: %+v vs %+v", i, *r, snapshot[i])
		}
	}
}

func TestMerge_NeverLosesPopulatedField(t *testing.T) {
	records := []*models.Record{
		{Name: "Acme", City: "Oakland", Source: "A"},
		{Name: "Acme", City: "Oakland", Source: "B", ZipCode: "94607"},
		{Name: "Acme", City: "Oakland", Source: "C", Rating: "4.2"},
	}
	out := Merge(records)
	if out[0].ZipCode != "94607" || out[0].Rating != "4.2" {
		t.Errorf("merged record lost a populated field: %+v", out[0])
	}
}

func TestKey_DependsOnNameAndCityOnly(t *testing.T) {
	a := &models.Record{Name: "Acme Insurance", City: "Oakland"}
	b := &models.Record{
		Name: "acme insurance!", City: "OAKLAND",
		Address: "somewhere else", Phone: "000", Source: "Z",
	}
	if a.Key() != b.Key() {
		t.Errorf("keys differ: %q vs %q", a.Key(), b.Key())
	}
	if a.Key() != "acmeinsurance_oakland" {
		t.Errorf("Key = %q", a.Key())
	}
}

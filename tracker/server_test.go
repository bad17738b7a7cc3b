package tracker

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/use-agent/leadharvest/config"
)

func testRouter(t *testing.T) (*Store, http.Handler) {
	t.Helper()
	s := openTestStore(t)
	return s, NewRouter(s, config.TrackerConfig{Mode: "test"})
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestAPI_ListLeads(t *testing.T) {
	s, router := testRouter(t)
	seedLead(t, s, "Acme Insurance", "info@acme.test")
	seedLead(t, s, "Beta Brokers", "")

	w := doJSON(t, router, http.MethodGet, "/api/leads", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var leads []Lead
	if err := json.Unmarshal(w.Body.Bytes(), &leads); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(leads) != 2 {
		t.Fatalf("got %d leads", len(leads))
	}
	if !strings.Contains(leads[0].LinkedInSearch, "linkedin.com/search/results/all") {
		t.Errorf("LinkedInSearch = %q", leads[0].LinkedInSearch)
	}
	if !strings.Contains(leads[0].LinkedInSearch, "Acme+Insurance") {
		t.Errorf("LinkedInSearch missing encoded name: %q", leads[0].LinkedInSearch)
	}

	// Filtered query.
	w = doJSON(t, router, http.MethodGet, "/api/leads?has_email=yes", "")
	if err := json.Unmarshal(w.Body.Bytes(), &leads); err != nil {
		t.Fatal(err)
	}
	if len(leads) != 1 || leads[0].Name != "Acme Insurance" {
		t.Errorf("filtered leads = %+v", leads)
	}
}

func TestAPI_UpdateLead(t *testing.T) {
	s, router := testRouter(t)
	seedLead(t, s, "Acme Insurance", "")

	w := doJSON(t, router, http.MethodPatch, "/api/leads/1", `{"status":"contacted","notes":"called them"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodGet, "/api/leads/1/log", "")
	var log []Activity
	if err := json.Unmarshal(w.Body.Bytes(), &log); err != nil {
		t.Fatal(err)
	}
	if len(log) != 1 || log[0].Action != "contacted" {
		t.Errorf("log = %+v", log)
	}
}

func TestAPI_UpdateLead_BadRequests(t *testing.T) {
	s, router := testRouter(t)
	seedLead(t, s, "Acme Insurance", "")

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"bad id", "/api/leads/abc", `{"status":"contacted"}`, http.StatusBadRequest},
		{"no fields", "/api/leads/1", `{}`, http.StatusBadRequest},
		{"unknown status", "/api/leads/1", `{"status":"bogus"}`, http.StatusBadRequest},
		{"missing lead", "/api/leads/9999", `{"status":"contacted"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := doJSON(t, router, http.MethodPatch, tt.path, tt.body); w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestAPI_Bulk(t *testing.T) {
	s, router := testRouter(t)
	seedLead(t, s, "Acme Insurance", "")
	seedLead(t, s, "Beta Brokers", "")

	w := doJSON(t, router, http.MethodPost, "/api/bulk", `{"ids":[1,2],"status":"invited"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp struct {
		OK      bool `json:"ok"`
		Updated int  `json:"updated"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.OK || resp.Updated != 2 {
		t.Errorf("resp = %+v", resp)
	}

	if w := doJSON(t, router, http.MethodPost, "/api/bulk", `{"ids":[],"status":"invited"}`); w.Code != http.StatusBadRequest {
		t.Errorf("empty ids: status = %d", w.Code)
	}
}

func TestAPI_Stats(t *testing.T) {
	s, router := testRouter(t)
	seedLead(t, s, "Acme Insurance", "info@acme.test")

	w := doJSON(t, router, http.MethodGet, "/api/stats", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var stats StatsResult
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatal(err)
	}
	if stats.Total != 1 || stats.WithEmail != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.StatusLabels["new"] != "New" {
		t.Errorf("StatusLabels = %v", stats.StatusLabels)
	}
}

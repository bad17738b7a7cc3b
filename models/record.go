package models

import "strings"

// Record is the normalized representation of one business listing. Every
// connector produces Records in this shape; the deduplicator and enricher
// mutate them; the output writers consume them.
type Record struct {
	Name        string `json:"name"`
	Address     string `json:"address"`
	City        string `json:"city"`
	State       string `json:"state"`
	ZipCode     string `json:"zip_code"`
	Phone       string `json:"phone"`
	Website     string `json:"website"`
	Email       string `json:"email"`
	Rating      string `json:"rating"`
	ReviewCount string `json:"review_count"`
	Categories  string `json:"categories"`
	Description string `json:"description"`
	Source      string `json:"source"`
	SourceURL   string `json:"source_url"`
}

// FieldNames is the canonical column order for CSV output and the JSON
// object key order readers should expect.
var FieldNames = []string{
	"name", "address", "city", "state", "zip_code", "phone",
	"website", "email", "rating", "review_count", "categories",
	"description", "source", "source_url",
}

// Key returns the identity key used to detect that two records describe the
// same real-world business: the case-folded, non-alphanumeric-stripped name
// and city joined with an underscore. It depends on Name and City only.
func (r *Record) Key() string {
	return foldAlnum(r.Name) + "_" + foldAlnum(r.City)
}

// HasUsableWebsite reports whether Website is an absolute URL the enricher
// can fetch.
func (r *Record) HasUsableWebsite() bool {
	return strings.HasPrefix(r.Website, "http://") || strings.HasPrefix(r.Website, "https://")
}

// Row returns the record's field values in FieldNames order.
func (r *Record) Row() []string {
	return []string{
		r.Name, r.Address, r.City, r.State, r.ZipCode, r.Phone,
		r.Website, r.Email, r.Rating, r.ReviewCount, r.Categories,
		r.Description, r.Source, r.SourceURL,
	}
}

// foldAlnum lowercases s and strips every non-alphanumeric byte.
func foldAlnum(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, c := range strings.ToLower(s) {
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			b.WriteRune(c)
		}
	}
	return b.String()
}

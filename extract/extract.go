// Package extract holds the pure text-extraction helpers shared by the
// connectors and the enricher. Every function is best-effort: no match
// yields an empty result, never an error.
package extract

import (
	"regexp"
	"strings"
	"sync"
)

var (
	zipRe    = regexp.MustCompile(`\b(\d{5}(?:-\d{4})?)\b`)
	emailRe  = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	phoneRe  = regexp.MustCompile(`\(?\d{3}\)?[\s.-]?\d{3}[\s.-]?\d{4}`)
	ratingRe = regexp.MustCompile(`(\d\.\d)\s*\((\d[\d,]*)\)`)
)

// junkFragments marks email matches that are placeholders, asset-platform
// noise, or image-path false positives.
var junkFragments = []string{
	"example.com", "sentry", "webpack", "wixpress", "wix.com",
	"squarespace", "wordpress", "google.com", "schema.org",
	"w3.org", "sentry.io", "cloudflare", "jquery", "bootstrap",
	"placeholder", "yourdomain", "email.com", "domain.com",
	"test.com", "noreply", "no-reply", "yoursite", "change.me",
	"company.com", "sample.com", ".png", ".jpg", ".gif", ".svg",
}

// stateCodes is the set of valid two-letter US state codes (plus DC), used
// to keep City from latching onto arbitrary uppercase pairs.
var stateCodes = map[string]bool{
	"AL": true, "AK": true, "AZ": true, "AR": true, "CA": true, "CO": true,
	"CT": true, "DE": true, "FL": true, "GA": true, "HI": true, "ID": true,
	"IL": true, "IN": true, "IA": true, "KS": true, "KY": true, "LA": true,
	"ME": true, "MD": true, "MA": true, "MI": true, "MN": true, "MS": true,
	"MO": true, "MT": true, "NE": true, "NV": true, "NH": true, "NJ": true,
	"NM": true, "NY": true, "NC": true, "ND": true, "OH": true, "OK": true,
	"OR": true, "PA": true, "RI": true, "SC": true, "SD": true, "TN": true,
	"TX": true, "UT": true, "VT": true, "VA": true, "WA": true, "WV": true,
	"WI": true, "WY": true, "DC": true,
}

type cityPatterns struct {
	comma *regexp.Regexp // ", City, ST"
	space *regexp.Regexp // ", City ST"
	ref   *regexp.Regexp // any ",ST" mention, whitespace optional
}

var cityCache sync.Map // state code -> *cityPatterns

func cityPatternsFor(state string) *cityPatterns {
	if p, ok := cityCache.Load(state); ok {
		return p.(*cityPatterns)
	}
	p := &cityPatterns{
		comma: regexp.MustCompile(`,\s*([A-Za-z\s]+),\s*` + state + `\b`),
		space: regexp.MustCompile(`,\s*([A-Za-z\s]+)\s+` + state + `\b`),
		ref:   regexp.MustCompile(`,\s*` + state + `\b`),
	}
	cityCache.Store(state, p)
	return p
}

// City pulls the city component out of a free-text address: the words
// immediately preceding the given two-letter state code, in either
// ", City, ST" or ", City ST" form. Returns "" when no pattern matches.
func City(address, state string) string {
	if address == "" || !stateCodes[state] {
		return ""
	}
	p := cityPatternsFor(state)
	if m := p.comma.FindStringSubmatch(address); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := p.space.FindStringSubmatch(address); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// ZIP returns the first 5-digit (optionally ZIP+4) code in the string.
func ZIP(address string) string {
	if m := zipRe.FindStringSubmatch(address); m != nil {
		return m[1]
	}
	return ""
}

// Phone returns the first US-phone-shaped substring in the text.
func Phone(text string) string {
	return phoneRe.FindString(text)
}

// Rating returns the rating and review count from a "4.5 (123)" pattern.
func Rating(text string) (rating, reviewCount string) {
	if m := ratingRe.FindStringSubmatch(text); m != nil {
		return m[1], m[2]
	}
	return "", ""
}

// Emails returns every email-shaped match in the text that survives the
// junk filter, deduplicated case-insensitively in first-seen order. The
// slice is freshly computed on each call.
func Emails(text string) []string {
	raw := emailRe.FindAllString(text, -1)
	seen := make(map[string]bool, len(raw))
	var out []string
	for _, em := range raw {
		if len(em) >= 80 {
			continue
		}
		lower := strings.ToLower(em)
		if isJunkEmail(lower) || seen[lower] {
			continue
		}
		seen[lower] = true
		out = append(out, em)
	}
	return out
}

func isJunkEmail(lower string) bool {
	for _, j := range junkFragments {
		if strings.Contains(lower, j) {
			return true
		}
	}
	return false
}

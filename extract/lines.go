package extract

import (
	"regexp"
	"strings"
)

// Listing holds the fields classified out of one map-listing text block.
type Listing struct {
	Address  string
	Category string
}

var (
	streetStartRe = regexp.MustCompile(`^\d+\s`)
	numericLineRe = regexp.MustCompile(`^[\d.]+$`)
)

// categoryRule rejects a candidate category line. The rules are an explicit
// table so they can be retuned against changed site markup without touching
// any fetch or control code.
type categoryRule struct {
	name   string
	reject func(line, name string) bool
}

var categoryRules = []categoryRule{
	{"is the listing name", func(line, name string) bool { return line == name }},
	{"pure numeric artifact", func(line, _ string) bool { return numericLineRe.MatchString(line) }},
	{"rating artifact", func(line, _ string) bool { return ratingRe.MatchString(line) }},
	{"review-count artifact", func(line, _ string) bool { return strings.HasPrefix(line, "(") }},
	{"too short", func(line, _ string) bool { return len(line) <= 3 }},
	{"too long", func(line, _ string) bool { return len(line) >= 50 }},
	{"hours artifact", func(line, _ string) bool {
		return strings.Contains(line, "Open") || strings.Contains(line, "Closed") ||
			strings.Contains(line, "hours")
	}},
	{"separator artifact", func(line, _ string) bool { return strings.Contains(line, "·") }},
}

// ClassifyLines walks the text lines of one map listing and picks out the
// first address-shaped line and the first plausible category line. Lines
// are judged independently: a listing with neither simply yields zero
// values.
func ClassifyLines(name string, lines []string, state string) Listing {
	var l Listing
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if isAddressLine(line, state) {
			l.Address = line // last address-shaped line wins
			continue
		}
		if l.Category == "" && acceptCategory(line, name) {
			l.Category = line
		}
	}
	return l
}

// isAddressLine reports whether the line looks like a street address: it
// starts with a street number or names the target state after a comma,
// with or without spacing.
func isAddressLine(line, state string) bool {
	if streetStartRe.MatchString(line) {
		return true
	}
	return stateCodes[state] && cityPatternsFor(state).ref.MatchString(line)
}

func acceptCategory(line, name string) bool {
	for _, r := range categoryRules {
		if r.reject(line, name) {
			return false
		}
	}
	return true
}

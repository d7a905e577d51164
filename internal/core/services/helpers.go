package services

import (
	"strings"
	"time"
)

// upstreamDateLayouts covers the date formats the circulation system emits
var upstreamDateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseUpstreamDate parses a loan date field. Empty or unparseable values
// yield the zero time, which downstream code treats as absent.
func parseUpstreamDate(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	for _, layout := range upstreamDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// normalizeISBN strips hyphens and whitespace from an ISBN
func normalizeISBN(isbn string) string {
	isbn = strings.TrimSpace(isbn)
	return strings.ReplaceAll(isbn, "-", "")
}

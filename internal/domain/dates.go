package domain

import (
	"strconv"
	"strings"
	"time"
)

// absoluteLayouts are tried in order against cleaned date strings. Source
// markup never carries a timezone, so all of these parse as UTC.
var absoluteLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2 Jan 2006",
	"02 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 January 2006",
}

// NormalizeScrapedDate converts a free-text date string captured from scraped
// markup into an absolute instant. It never fails: empty input, unparsable
// values, and unknown formats all fall back to the current clock time.
//
// Relative phrases like "2 hours ago" or "Posted 5 days ago" are subtracted
// from now. Absolute dates may carry a leading "Posted on" marker and are
// parsed as UTC midnight.
func NormalizeScrapedDate(raw string) time.Time {
	now := clock.Now()

	s := strings.TrimSpace(raw)
	if s == "" {
		return now
	}

	lower := strings.ToLower(s)
	if strings.Contains(lower, "ago") {
		if d, ok := parseRelative(lower); ok {
			return now.Add(-d)
		}
		return now
	}

	cleaned := stripPostedMarker(s)
	for _, layout := range absoluteLayouts {
		if t, err := time.Parse(layout, cleaned); err == nil {
			return t
		}
	}

	return now
}

// parseRelative extracts "<N> hour(s)" / "<N> day(s)" from a lowercased
// relative phrase. Surrounding words ("posted", "about") are tolerated; the
// integer must immediately precede the unit.
func parseRelative(lower string) (time.Duration, bool) {
	fields := strings.Fields(lower)
	for i, f := range fields {
		unit := strings.TrimSuffix(strings.Trim(f, ".,"), "s")
		if unit != "hour" && unit != "day" {
			continue
		}
		if i == 0 {
			return 0, false
		}
		n, err := strconv.Atoi(fields[i-1])
		if err != nil {
			return 0, false
		}
		if unit == "hour" {
			return time.Duration(n) * time.Hour, true
		}
		return time.Duration(n) * 24 * time.Hour, true
	}
	return 0, false
}

// stripPostedMarker removes a leading "Posted on" or "Posted" marker,
// case-insensitively.
func stripPostedMarker(s string) string {
	lower := strings.ToLower(s)
	for _, marker := range []string{"posted on", "posted"} {
		if strings.HasPrefix(lower, marker) {
			return strings.TrimSpace(s[len(marker):])
		}
	}
	return s
}

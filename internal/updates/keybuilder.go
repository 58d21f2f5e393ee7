package updates

import (
	"errors"
	"regexp"
	"strings"

	"github.com/couchcryptid/disaster-response-api/internal/domain"
)

// cacheKeyPrefix versions the cached pipeline output. Bump the suffix when
// the record shape or scrape semantics change so stale rows from an older
// pipeline stop matching.
const cacheKeyPrefix = "official_updates_scraping_v1_"

var whitespaceRun = regexp.MustCompile(`\s+`)

// BuildSearchTerm derives the upstream search term for a request. Title and
// location supplied on the request win; only when both are absent is the
// stored disaster consulted, with its first tag as a last resort. An empty
// result means nothing searchable exists; a missing disaster reads as empty
// rather than an error.
func BuildSearchTerm(sc domain.SearchContext, finder DisasterFinder) (string, error) {
	if term := joinTerm(sc.LocationName, sc.Title); term != "" {
		return term, nil
	}

	d, err := finder.GetDisaster(sc.DisasterID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", nil
		}
		return "", err
	}

	if term := joinTerm(d.LocationName, d.Title); term != "" {
		return term, nil
	}
	for _, tag := range d.Tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			return tag, nil
		}
	}
	return "", nil
}

// joinTerm combines location and title, preferring both, else whichever is
// present.
func joinTerm(location, title string) string {
	location = strings.TrimSpace(location)
	title = strings.TrimSpace(title)
	switch {
	case location != "" && title != "":
		return location + " " + title
	case location != "":
		return location
	default:
		return title
	}
}

// CacheKey maps a search term to its cache row. Whitespace runs collapse to
// single underscores so terms differing only in spacing share an entry.
func CacheKey(term string) string {
	return cacheKeyPrefix + whitespaceRun.ReplaceAllString(strings.TrimSpace(term), "_")
}

package scrape

import "strings"

// incidentKeywords maps search-term substrings to OpenFEMA incident types.
// Order matters: the first containing keyword wins, so "wildfire" must be
// checked before "fire" and "firestorm" resolves to Fire.
var incidentKeywords = []struct {
	keyword  string
	incident string
}{
	{"flood", "Flood"},
	{"wildfire", "Fire"},
	{"fire", "Fire"},
	{"hurricane", "Hurricane"},
	{"earthquake", "Earthquake"},
	{"tornado", "Tornado"},
	{"storm", "Severe Storm"},
}

// InferIncidentType maps a free-text search term to an OpenFEMA incident
// type. Returns false when no keyword matches.
func InferIncidentType(term string) (string, bool) {
	lower := strings.ToLower(term)
	for _, k := range incidentKeywords {
		if strings.Contains(lower, k.keyword) {
			return k.incident, true
		}
	}
	return "", false
}

package domain

import (
	"context"
	"time"
)

// UpdateRecord is one official update emitted by the aggregation pipeline.
// UpdateText and URL are guaranteed non-empty when a record is emitted by a
// scraper; Timestamp is always a valid instant.
type UpdateRecord struct {
	ID         string    `json:"id"`
	Agency     string    `json:"agency"`
	UpdateText string    `json:"update_text"`
	Timestamp  time.Time `json:"timestamp"`
	URL        string    `json:"url,omitempty"`
	Source     string    `json:"source"`
}

// SearchContext carries the request-scoped disaster identity used to derive
// an upstream search term. It is constructed per request and never persisted.
type SearchContext struct {
	DisasterID   string
	Title        string
	LocationName string
}

// AuditEntry is one row of a disaster's embedded audit trail.
type AuditEntry struct {
	Action    string    `json:"action"`
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Disaster is the stored disaster record.
type Disaster struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	LocationName string       `json:"location_name"`
	Description  string       `json:"description"`
	Tags         []string     `json:"tags,omitempty"`
	OwnerID      string       `json:"owner_id"`
	Lat          float64      `json:"lat,omitempty"`
	Lon          float64      `json:"lon,omitempty"`
	AuditTrail   []AuditEntry `json:"audit_trail,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// SocialPost is a social-media post attached to a disaster, either generated
// by the mock feed or created by a user.
type SocialPost struct {
	ID         string    `json:"id"`
	DisasterID string    `json:"disaster_id,omitempty"`
	Post       string    `json:"post"`
	User       string    `json:"user"`
	Platform   string    `json:"platform"`
	Likes      int       `json:"likes"`
	Retweets   int       `json:"retweets"`
	Verified   bool      `json:"verified"`
	Timestamp  time.Time `json:"timestamp"`
	Source     string    `json:"source,omitempty"`
}

// Resource is an aid resource (shelter, hospital, supply point) mapped for a
// disaster. Lat/Lon are required; nearby queries filter on them.
type Resource struct {
	ID           string    `json:"id"`
	DisasterID   string    `json:"disaster_id"`
	Name         string    `json:"name"`
	LocationName string    `json:"location_name,omitempty"`
	Type         string    `json:"type"`
	Lat          float64   `json:"lat"`
	Lon          float64   `json:"lon"`
	CreatedAt    time.Time `json:"created_at"`
}

// GeocodingResult contains location data returned by a geocoding provider.
type GeocodingResult struct {
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	DisplayName string  `json:"display_name"`
}

// Geocoder resolves a human-readable location name to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, locationName string) (GeocodingResult, error)
}

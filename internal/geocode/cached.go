package geocode

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"github.com/couchcryptid/disaster-response-api/internal/domain"
)

// Cache is the slice of the TTL cache the decorator needs.
type Cache interface {
	Get(key string, out any) bool
	Set(key string, value any, ttl time.Duration)
}

// CachedGeocoder wraps a Geocoder with a write-through TTL cache. Only
// successful resolutions are cached; failures always retry upstream.
type CachedGeocoder struct {
	inner domain.Geocoder
	cache Cache
	ttl   time.Duration
}

// NewCachedGeocoder wraps inner with caching.
func NewCachedGeocoder(inner domain.Geocoder, cache Cache, ttl time.Duration) *CachedGeocoder {
	return &CachedGeocoder{inner: inner, cache: cache, ttl: ttl}
}

// Geocode serves from cache when possible, falling through to the wrapped
// geocoder on a miss.
func (g *CachedGeocoder) Geocode(ctx context.Context, locationName string) (domain.GeocodingResult, error) {
	key := cacheKey(locationName)

	var cached domain.GeocodingResult
	if g.cache.Get(key, &cached) {
		return cached, nil
	}

	result, err := g.inner.Geocode(ctx, locationName)
	if err != nil {
		return domain.GeocodingResult{}, err
	}

	g.cache.Set(key, result, g.ttl)
	return result, nil
}

// cacheKey normalizes case and spacing, then base64-encodes so arbitrary
// location text cannot collide with the cache's glob syntax.
func cacheKey(locationName string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(locationName), " "))
	return "geocode_" + base64.RawURLEncoding.EncodeToString([]byte(normalized))
}

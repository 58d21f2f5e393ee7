// Package geocode resolves location names to coordinates via the public
// Nominatim API, with a write-through cache in front so repeated lookups for
// the same place stay off the upstream service.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/couchcryptid/disaster-response-api/internal/domain"
	"github.com/couchcryptid/disaster-response-api/internal/observability"
)

// Client geocodes against a Nominatim endpoint. Nominatim's usage policy
// requires an identifying User-Agent on every request.
type Client struct {
	baseURL   string
	client    *http.Client
	userAgent string
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewClient creates a Nominatim client against baseURL.
func NewClient(baseURL string, httpClient *http.Client, userAgent string, logger *slog.Logger, metrics *observability.Metrics) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: baseURL, client: httpClient, userAgent: userAgent, logger: logger, metrics: metrics}
}

type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Geocode resolves locationName to its best match. A name Nominatim cannot
// resolve returns domain.ErrNotFound.
func (c *Client) Geocode(ctx context.Context, locationName string) (domain.GeocodingResult, error) {
	locationName = strings.TrimSpace(locationName)
	if locationName == "" {
		return domain.GeocodingResult{}, domain.NewValidationError("location name is required")
	}

	q := url.Values{}
	q.Set("q", locationName)
	q.Set("format", "json")
	q.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("build geocode request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return domain.GeocodingResult{}, fmt.Errorf("geocode %q: %w", locationName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return domain.GeocodingResult{}, fmt.Errorf("geocode %q: unexpected status %d", locationName, resp.StatusCode)
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return domain.GeocodingResult{}, fmt.Errorf("decode geocode response: %w", err)
	}
	if len(results) == 0 {
		c.metrics.GeocodeRequests.WithLabelValues("empty").Inc()
		return domain.GeocodingResult{}, fmt.Errorf("geocode %q: %w", locationName, domain.ErrNotFound)
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return domain.GeocodingResult{}, fmt.Errorf("parse latitude %q: %w", results[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return domain.GeocodingResult{}, fmt.Errorf("parse longitude %q: %w", results[0].Lon, err)
	}

	c.metrics.GeocodeRequests.WithLabelValues("success").Inc()
	c.logger.Debug("geocoded location", "location", locationName, "lat", lat, "lon", lon)

	return domain.GeocodingResult{Lat: lat, Lon: lon, DisplayName: results[0].DisplayName}, nil
}

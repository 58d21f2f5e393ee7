package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/disaster-response-api/internal/domain"
	"github.com/couchcryptid/disaster-response-api/internal/observability"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient(srv.URL, srv.Client(), "DisasterResponseApp/1.0", logger, observability.NewMetricsForTesting())
}

func TestClient_Geocode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Springfield, IL", r.URL.Query().Get("q"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, "DisasterResponseApp/1.0", r.Header.Get("User-Agent"))

		_, _ = w.Write([]byte(`[{"lat":"39.7817213","lon":"-89.6501481","display_name":"Springfield, Sangamon County, Illinois, USA"}]`))
	})

	got, err := c.Geocode(context.Background(), "Springfield, IL")
	require.NoError(t, err)
	assert.InDelta(t, 39.7817213, got.Lat, 1e-9)
	assert.InDelta(t, -89.6501481, got.Lon, 1e-9)
	assert.Equal(t, "Springfield, Sangamon County, Illinois, USA", got.DisplayName)
}

func TestClient_GeocodeNoMatch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	_, err := c.Geocode(context.Background(), "nowhere at all")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestClient_GeocodeEmptyName(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		t.Fatal("must not reach upstream")
	})

	_, err := c.Geocode(context.Background(), "   ")
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestClient_GeocodeUpstreamError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.Geocode(context.Background(), "Springfield")
	assert.ErrorContains(t, err, "status 429")
}

func TestClient_GeocodeUnparsableCoordinates(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"lat":"not-a-number","lon":"0","display_name":"x"}]`))
	})

	_, err := c.Geocode(context.Background(), "Springfield")
	assert.ErrorContains(t, err, "parse latitude")
}

type fakeGeocoder struct {
	result domain.GeocodingResult
	err    error
	calls  int
}

func (f *fakeGeocoder) Geocode(context.Context, string) (domain.GeocodingResult, error) {
	f.calls++
	return f.result, f.err
}

type mapCache struct {
	data map[string]json.RawMessage
}

func newMapCache() *mapCache { return &mapCache{data: map[string]json.RawMessage{}} }

func (c *mapCache) Get(key string, out any) bool {
	raw, ok := c.data[key]
	if !ok {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

func (c *mapCache) Set(key string, value any, _ time.Duration) {
	raw, _ := json.Marshal(value)
	c.data[key] = raw
}

func TestCachedGeocoder_SecondLookupServedFromCache(t *testing.T) {
	inner := &fakeGeocoder{result: domain.GeocodingResult{Lat: 1, Lon: 2, DisplayName: "Springfield"}}
	g := NewCachedGeocoder(inner, newMapCache(), time.Hour)

	first, err := g.Geocode(context.Background(), "Springfield")
	require.NoError(t, err)
	second, err := g.Geocode(context.Background(), "Springfield")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls)
}

func TestCachedGeocoder_KeyNormalizesCaseAndSpacing(t *testing.T) {
	inner := &fakeGeocoder{result: domain.GeocodingResult{Lat: 1, Lon: 2}}
	g := NewCachedGeocoder(inner, newMapCache(), time.Hour)

	_, err := g.Geocode(context.Background(), "Springfield,  IL")
	require.NoError(t, err)
	_, err = g.Geocode(context.Background(), "springfield, il")
	require.NoError(t, err)

	assert.Equal(t, 1, inner.calls, "case and spacing variants must share a cache row")
}

func TestCachedGeocoder_FailuresNotCached(t *testing.T) {
	inner := &fakeGeocoder{err: errors.New("upstream down")}
	g := NewCachedGeocoder(inner, newMapCache(), time.Hour)

	_, err := g.Geocode(context.Background(), "Springfield")
	require.Error(t, err)
	_, err = g.Geocode(context.Background(), "Springfield")
	require.Error(t, err)

	assert.Equal(t, 2, inner.calls, "errors always retry upstream")
}

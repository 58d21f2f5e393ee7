package ai

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/disaster-response-api/internal/domain"
)

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

func geminiReply(text string) string {
	return `{"candidates":[{"content":{"parts":[{"text":` + mustJSON(text) + `}]}}]}`
}

func mustJSON(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient(srv.URL, "test-key", srv.Client(), newMapCache(), time.Hour, logger)
}

func TestClient_ExtractLocation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-1.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents, 1)
		assert.Contains(t, req.Contents[0].Parts[0].Text, "Flooding reported near downtown Springfield")

		_, _ = w.Write([]byte(geminiReply("Springfield, Illinois\n")))
	})

	got, err := c.ExtractLocation(context.Background(), "Flooding reported near downtown Springfield")
	require.NoError(t, err)
	assert.Equal(t, "Springfield, Illinois", got)
}

func TestClient_ExtractLocationNone(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(geminiReply("NONE")))
	})

	got, err := c.ExtractLocation(context.Background(), "something happened somewhere")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestClient_ExtractLocationEmptyText(t *testing.T) {
	c := newTestClient(t, func(http.ResponseWriter, *http.Request) {
		t.Fatal("must not reach upstream")
	})

	_, err := c.ExtractLocation(context.Background(), "  ")
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestClient_ExtractLocationCached(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(geminiReply("Austin, Texas")))
	})

	first, err := c.ExtractLocation(context.Background(), "wildfire outside Austin")
	require.NoError(t, err)
	second, err := c.ExtractLocation(context.Background(), "wildfire outside Austin")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), calls.Load(), "identical inputs must hit the cache")
}

func TestClient_VerifyImage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents[0].Parts, 2)
		require.NotNil(t, req.Contents[0].Parts[1].InlineData)
		assert.Equal(t, "image/png", req.Contents[0].Parts[1].InlineData.MimeType)
		assert.Equal(t, "aGVsbG8=", req.Contents[0].Parts[1].InlineData.Data)

		_, _ = w.Write([]byte(geminiReply("The image is consistent with river flooding.")))
	})

	got, err := c.VerifyImage(context.Background(), "aGVsbG8=", "image/png", "Springfield flood")
	require.NoError(t, err)
	assert.Equal(t, "The image is consistent with river flooding.", got)
}

func TestClient_VerifyImageMissingData(t *testing.T) {
	c := newTestClient(t, func(http.ResponseWriter, *http.Request) {
		t.Fatal("must not reach upstream")
	})

	_, err := c.VerifyImage(context.Background(), "", "image/png", "flood")
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestClient_UpstreamError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := c.ExtractLocation(context.Background(), "flood in Springfield")
	assert.ErrorContains(t, err, "status 403")
}

func TestClient_NoCandidates(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	})

	_, err := c.ExtractLocation(context.Background(), "flood in Springfield")
	assert.ErrorContains(t, err, "no candidates")
}

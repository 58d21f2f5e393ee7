// Package ai proxies text and image analysis to the Gemini API. The service
// never hands the API key to clients; requests go through here and successful
// analyses are cached so identical inputs cost one upstream call.
package ai

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/couchcryptid/disaster-response-api/internal/domain"
)

const defaultModel = "gemini-1.5-flash"

// Cache is the slice of the TTL cache the client needs.
type Cache interface {
	Get(key string, out any) bool
	Set(key string, value any, ttl time.Duration)
}

// Client calls the Gemini generateContent endpoint.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	cache   Cache
	ttl     time.Duration
	logger  *slog.Logger
}

// NewClient creates a Gemini client. baseURL defaults to the public API when
// empty; tests point it at a local server.
func NewClient(baseURL, apiKey string, httpClient *http.Client, cache Cache, ttl time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   defaultModel,
		client:  httpClient,
		cache:   cache,
		ttl:     ttl,
		logger:  logger,
	}
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// ExtractLocation asks the model for the place name a free-text disaster
// description refers to. Returns an empty string when the model finds none.
func (c *Client) ExtractLocation(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", domain.NewValidationError("text is required")
	}

	key := cacheKey("gemini_extract_", text)
	var cached string
	if c.cache.Get(key, &cached) {
		return cached, nil
	}

	prompt := "Extract the most specific geographic location mentioned in the following disaster report. " +
		"Reply with only the location name, suitable for a geocoding query. " +
		"Reply with NONE if no location is mentioned.\n\n" + text
	raw, err := c.generate(ctx, []part{{Text: prompt}})
	if err != nil {
		return "", err
	}

	location := strings.TrimSpace(raw)
	if strings.EqualFold(location, "NONE") {
		location = ""
	}

	c.cache.Set(key, location, c.ttl)
	return location, nil
}

// VerifyImage asks the model whether an image plausibly depicts the described
// disaster and returns its analysis text. imageData is base64-encoded.
func (c *Client) VerifyImage(ctx context.Context, imageData, mimeType, description string) (string, error) {
	if strings.TrimSpace(imageData) == "" {
		return "", domain.NewValidationError("image data is required")
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	key := cacheKey("gemini_verify_", imageData+"|"+description)
	var cached string
	if c.cache.Get(key, &cached) {
		return cached, nil
	}

	prompt := "Assess whether this image plausibly depicts the following disaster. " +
		"Note any signs of manipulation or mismatch with the description.\n\nDescription: " + description
	analysis, err := c.generate(ctx, []part{
		{Text: prompt},
		{InlineData: &inlineData{MimeType: mimeType, Data: imageData}},
	})
	if err != nil {
		return "", err
	}

	analysis = strings.TrimSpace(analysis)
	c.cache.Set(key, analysis, c.ttl)
	return analysis, nil
}

func (c *Client) generate(ctx context.Context, parts []part) (string, error) {
	body, err := json.Marshal(generateRequest{Contents: []content{{Parts: parts}}})
	if err != nil {
		return "", fmt.Errorf("encode gemini request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build gemini request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call gemini: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("call gemini: unexpected status %d", resp.StatusCode)
	}

	var decoded generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode gemini response: %w", err)
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}

	return decoded.Candidates[0].Content.Parts[0].Text, nil
}

// cacheKey hashes the input so large payloads map to short, glob-safe keys.
func cacheKey(prefix, input string) string {
	sum := sha256.Sum256([]byte(input))
	return prefix + hex.EncodeToString(sum[:])
}

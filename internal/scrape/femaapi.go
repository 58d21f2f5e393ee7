package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/disaster-response-api/internal/domain"
)

// APIScraper queries the OpenFEMA disaster declarations API. It participates
// in the pipeline alongside the document scrapers but needs no HTML parsing.
type APIScraper struct {
	baseURL   string
	client    *http.Client
	userAgent string
	logger    *slog.Logger
}

// NewAPIScraper creates an OpenFEMA scraper against baseURL.
func NewAPIScraper(baseURL string, client *http.Client, userAgent string, logger *slog.Logger) *APIScraper {
	if client == nil {
		client = http.DefaultClient
	}
	return &APIScraper{baseURL: baseURL, client: client, userAgent: userAgent, logger: logger}
}

// Name identifies the scraper in logs and metrics.
func (a *APIScraper) Name() string { return "fema-api" }

type declarationsResponse struct {
	DisasterDeclarationsSummaries []declaration `json:"DisasterDeclarationsSummaries"`
}

type declaration struct {
	DisasterNumber   int       `json:"disasterNumber"`
	DeclarationTitle string    `json:"declarationTitle"`
	State            string    `json:"state"`
	IncidentType     string    `json:"incidentType"`
	DeclarationDate  time.Time `json:"declarationDate"`
}

// Scrape fetches recent disaster declarations matching the incident type
// inferred from term, newest first, up to limit. A term with no recognized
// incident keyword returns recent declarations of any type.
func (a *APIScraper) Scrape(ctx context.Context, term string, limit int) ([]domain.UpdateRecord, error) {
	q := url.Values{}
	if incident, ok := InferIncidentType(term); ok {
		q.Set("$filter", fmt.Sprintf("incidentType eq '%s'", incident))
	}
	q.Set("$orderby", "declarationDate desc")
	q.Set("$top", fmt.Sprintf("%d", limit))

	reqURL := fmt.Sprintf("%s/DisasterDeclarationsSummaries?%s", a.baseURL, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build openfema request: %w", err)
	}
	req.Header.Set("User-Agent", a.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch openfema declarations: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch openfema declarations: unexpected status %d", resp.StatusCode)
	}

	var decoded declarationsResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode openfema response: %w", err)
	}

	records := make([]domain.UpdateRecord, 0, len(decoded.DisasterDeclarationsSummaries))
	for _, d := range decoded.DisasterDeclarationsSummaries {
		if len(records) == limit {
			break
		}
		if d.DeclarationTitle == "" {
			continue
		}
		text := d.DeclarationTitle
		if d.State != "" {
			text = fmt.Sprintf("%s (%s)", d.DeclarationTitle, d.State)
		}
		ts := d.DeclarationDate
		if ts.IsZero() {
			ts = domain.Now()
		}
		records = append(records, domain.UpdateRecord{
			ID:         fmt.Sprintf("fema-%d", d.DisasterNumber),
			Agency:     "FEMA",
			UpdateText: text,
			Timestamp:  ts,
			URL:        fmt.Sprintf("https://www.fema.gov/disaster/%d", d.DisasterNumber),
			Source:     "FEMA-API",
		})
	}

	a.logger.Debug("scraped source", "source", a.Name(), "term", term, "records", len(records))
	return records, nil
}

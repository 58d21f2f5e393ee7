package scrape

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/couchcryptid/disaster-response-api/internal/domain"
)

// DocumentScraper extracts update records from an HTML listing page using the
// selectors declared in its SourceConfig.
type DocumentScraper struct {
	cfg       SourceConfig
	client    *http.Client
	userAgent string
	logger    *slog.Logger
}

// NewDocumentScraper creates a scraper for one catalog source.
func NewDocumentScraper(cfg SourceConfig, client *http.Client, userAgent string, logger *slog.Logger) *DocumentScraper {
	if client == nil {
		client = http.DefaultClient
	}
	return &DocumentScraper{cfg: cfg, client: client, userAgent: userAgent, logger: logger}
}

// Name identifies the scraper in logs and metrics.
func (d *DocumentScraper) Name() string { return d.cfg.Name }

// Scrape fetches the source's search page for term and returns up to limit
// records. Items missing a title or link are skipped, not errored.
func (d *DocumentScraper) Scrape(ctx context.Context, term string, limit int) ([]domain.UpdateRecord, error) {
	if d.cfg.Limit > 0 && d.cfg.Limit < limit {
		limit = d.cfg.Limit
	}

	pageURL := d.cfg.BaseURL + fmt.Sprintf(d.cfg.SearchPath, url.QueryEscape(term))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", d.cfg.Name, err)
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", d.cfg.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", d.cfg.Name, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s page: %w", d.cfg.Name, err)
	}

	items := d.selectItems(doc)
	records := make([]domain.UpdateRecord, 0, limit)
	items.EachWithBreak(func(_ int, item *goquery.Selection) bool {
		rec, ok := d.extract(item)
		if ok {
			records = append(records, rec)
		}
		return len(records) < limit
	})

	d.logger.Debug("scraped source", "source", d.cfg.Name, "term", term, "records", len(records))
	return records, nil
}

// selectItems tries the configured item selectors in order and returns the
// first that matches anything on the page.
func (d *DocumentScraper) selectItems(doc *goquery.Document) *goquery.Selection {
	for _, sel := range d.cfg.ItemSelectors {
		if items := doc.Find(sel); items.Length() > 0 {
			return items
		}
	}
	return doc.Find(d.cfg.ItemSelectors[len(d.cfg.ItemSelectors)-1])
}

func (d *DocumentScraper) extract(item *goquery.Selection) (domain.UpdateRecord, bool) {
	link := item.Find(d.cfg.TitleSelector).First()
	title := strings.TrimSpace(link.Text())
	href, _ := link.Attr("href")
	if title == "" || href == "" {
		return domain.UpdateRecord{}, false
	}

	agency := d.cfg.FallbackAgency
	if d.cfg.SourceSelector != "" {
		if src := strings.TrimSpace(item.Find(d.cfg.SourceSelector).First().Text()); src != "" {
			agency = src
		}
	}

	rawDate := strings.TrimSpace(item.Find(d.cfg.DateSelector).First().Text())

	return domain.UpdateRecord{
		ID:         recordID(d.cfg.IDPrefix, title, href),
		Agency:     agency,
		UpdateText: title,
		Timestamp:  domain.NormalizeScrapedDate(rawDate),
		URL:        absoluteURL(d.cfg.BaseURL, href),
		Source:     d.cfg.SourceTag,
	}, true
}

// absoluteURL resolves href against base when the upstream page links
// relatively. Protocol-relative hrefs borrow the base URL's scheme.
func absoluteURL(base, href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if strings.HasPrefix(href, "//") {
		scheme := "https:"
		if strings.HasPrefix(base, "http://") {
			scheme = "http:"
		}
		return scheme + href
	}
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return strings.TrimSuffix(base, "/") + href
}

// recordID derives a stable ID so re-scraping the same item yields the same
// record identity across runs.
func recordID(prefix string, parts ...string) string {
	h := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return prefix + "-" + hex.EncodeToString(h[:])[:12]
}

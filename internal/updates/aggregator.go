// Package updates aggregates official disaster updates from the scrape
// sources behind a durable TTL cache.
package updates

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/couchcryptid/disaster-response-api/internal/domain"
	"github.com/couchcryptid/disaster-response-api/internal/observability"
)

// Scraper is one upstream source of official updates.
type Scraper interface {
	Name() string
	Scrape(ctx context.Context, term string, limit int) ([]domain.UpdateRecord, error)
}

// Cache is the slice of the TTL cache the aggregator needs.
type Cache interface {
	Get(key string, out any) bool
	Set(key string, value any, ttl time.Duration)
}

// DisasterFinder resolves the disaster a request refers to. Used only when
// the request itself carries no title or location.
type DisasterFinder interface {
	GetDisaster(id string) (domain.Disaster, error)
}

// Aggregator runs the official-updates pipeline: derive a search term, serve
// from cache unless a refresh is forced, otherwise scrape the primary sources
// (falling back to the secondary ones only when the primary pass yields
// nothing), then sort, cap, and cache the result.
type Aggregator struct {
	finder    DisasterFinder
	cache     Cache
	primaries []Scraper
	fallbacks []Scraper

	perSourceCap  int
	globalCap     int
	ttl           time.Duration
	scrapeTimeout time.Duration

	logger  *slog.Logger
	metrics *observability.Metrics
}

// Options bundles the aggregator's tuning knobs.
type Options struct {
	PerSourceCap  int
	GlobalCap     int
	TTL           time.Duration
	ScrapeTimeout time.Duration
}

// NewAggregator wires the pipeline together.
func NewAggregator(finder DisasterFinder, cache Cache, primaries, fallbacks []Scraper, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Aggregator {
	return &Aggregator{
		finder:        finder,
		cache:         cache,
		primaries:     primaries,
		fallbacks:     fallbacks,
		perSourceCap:  opts.PerSourceCap,
		globalCap:     opts.GlobalCap,
		ttl:           opts.TTL,
		scrapeTimeout: opts.ScrapeTimeout,
		logger:        logger,
		metrics:       metrics,
	}
}

// OfficialUpdates returns the aggregated updates for a request, newest first,
// at most GlobalCap records. A run that yields nothing degrades gracefully:
// under a forced refresh the last cached result is served while still live,
// otherwise the caller gets an empty list. Scrape failures never surface as
// request errors; only an underivable search term does.
func (a *Aggregator) OfficialUpdates(ctx context.Context, sc domain.SearchContext, forceRefresh bool) ([]domain.UpdateRecord, error) {
	term, err := BuildSearchTerm(sc, a.finder)
	if err != nil {
		return nil, err
	}
	if term == "" {
		return nil, domain.NewValidationError("no search term derivable from title, location, or tags")
	}
	key := CacheKey(term)

	if !forceRefresh {
		var cached []domain.UpdateRecord
		if a.cache.Get(key, &cached) {
			a.logger.Debug("serving official updates from cache", "disaster_id", sc.DisasterID, "term", term)
			return cached, nil
		}
	}

	records := dedupeRecords(a.scrapeAll(ctx, term))
	if len(records) == 0 {
		if forceRefresh {
			var cached []domain.UpdateRecord
			if a.cache.Get(key, &cached) {
				a.logger.Warn("refresh produced nothing, serving last cached updates", "disaster_id", sc.DisasterID, "term", term)
				return cached, nil
			}
		}
		a.logger.Warn("no source produced updates", "disaster_id", sc.DisasterID, "term", term)
		return []domain.UpdateRecord{}, nil
	}

	sort.SliceStable(records, func(i, j int) bool { return records[i].Timestamp.After(records[j].Timestamp) })
	if len(records) > a.globalCap {
		records = records[:a.globalCap]
	}

	a.metrics.UpdatesReturned.Observe(float64(len(records)))
	a.cache.Set(key, records, a.ttl)

	a.logger.Info("aggregated official updates", "disaster_id", sc.DisasterID, "term", term, "records", len(records))
	return records, nil
}

// dedupeRecords drops records sharing a URL (or ID when the URL is empty),
// keeping the first occurrence so scraper priority wins.
func dedupeRecords(records []domain.UpdateRecord) []domain.UpdateRecord {
	seen := make(map[string]struct{}, len(records))
	out := records[:0]
	for _, r := range records {
		key := r.URL
		if key == "" {
			key = r.ID
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}

// scrapeAll runs the primary sources, then the fallbacks if the primaries
// produced nothing.
func (a *Aggregator) scrapeAll(ctx context.Context, term string) []domain.UpdateRecord {
	records := a.runScrapers(ctx, a.primaries, term, a.perSourceCap, nil)
	if len(records) == 0 {
		records = a.runScrapers(ctx, a.fallbacks, term, a.globalCap, records)
	}
	return records
}

// runScrapers runs scrapers sequentially, stopping once the global cap is
// reached. A failing scraper is logged and skipped.
func (a *Aggregator) runScrapers(ctx context.Context, scrapers []Scraper, term string, perLimit int, acc []domain.UpdateRecord) []domain.UpdateRecord {
	for _, s := range scrapers {
		remaining := a.globalCap - len(acc)
		if remaining <= 0 {
			break
		}
		limit := perLimit
		if remaining < limit {
			limit = remaining
		}

		got, err := a.scrapeOne(ctx, s, term, limit)
		if err != nil {
			a.logger.Warn("source scrape failed", "source", s.Name(), "term", term, "error", err)
			continue
		}
		acc = append(acc, got...)
	}
	return acc
}

func (a *Aggregator) scrapeOne(ctx context.Context, s Scraper, term string, limit int) ([]domain.UpdateRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, a.scrapeTimeout)
	defer cancel()

	start := time.Now()
	got, err := s.Scrape(ctx, term, limit)
	a.metrics.ScrapeDuration.WithLabelValues(s.Name()).Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		a.metrics.ScrapeRequests.WithLabelValues(s.Name(), "error").Inc()
	case len(got) == 0:
		a.metrics.ScrapeRequests.WithLabelValues(s.Name(), "empty").Inc()
	default:
		a.metrics.ScrapeRequests.WithLabelValues(s.Name(), "success").Inc()
	}
	return got, err
}

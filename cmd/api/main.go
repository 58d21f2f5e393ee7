package main

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/couchcryptid/disaster-response-api/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/disaster-response-api/internal/adapter/kafka"
	"github.com/couchcryptid/disaster-response-api/internal/ai"
	"github.com/couchcryptid/disaster-response-api/internal/cache"
	"github.com/couchcryptid/disaster-response-api/internal/config"
	"github.com/couchcryptid/disaster-response-api/internal/domain"
	"github.com/couchcryptid/disaster-response-api/internal/geocode"
	"github.com/couchcryptid/disaster-response-api/internal/observability"
	"github.com/couchcryptid/disaster-response-api/internal/scrape"
	"github.com/couchcryptid/disaster-response-api/internal/social"
	"github.com/couchcryptid/disaster-response-api/internal/store"
	"github.com/couchcryptid/disaster-response-api/internal/updates"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	db, err := store.OpenDB(cfg.DataDir)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	records := store.New(db, logger)
	ttlCache := cache.NewStore(db, nil, logger, metrics)

	catalog, err := scrape.LoadCatalog()
	if err != nil {
		logger.Error("failed to load scrape catalog", "error", err)
		os.Exit(1)
	}

	httpClient := &http.Client{Timeout: cfg.ScrapeTimeout}

	var primaries []updates.Scraper
	for _, src := range catalog.Primary {
		primaries = append(primaries, scrape.NewDocumentScraper(src, httpClient, cfg.ScrapeUserAgent, logger))
	}
	primaries = append(primaries, scrape.NewAPIScraper(cfg.FEMAAPIURL, httpClient, cfg.ScrapeUserAgent, logger))

	var fallbacks []updates.Scraper
	for _, src := range catalog.Fallbacks {
		fallbacks = append(fallbacks, scrape.NewDocumentScraper(src, httpClient, cfg.ScrapeUserAgent, logger))
	}

	aggregator := updates.NewAggregator(records, ttlCache, primaries, fallbacks, updates.Options{
		PerSourceCap:  cfg.PerSourceCap,
		GlobalCap:     cfg.GlobalCap,
		TTL:           cfg.UpdatesTTL,
		ScrapeTimeout: cfg.ScrapeTimeout,
	}, logger, metrics)

	nominatim := geocode.NewClient(cfg.NominatimURL, httpClient, cfg.ScrapeUserAgent, logger, metrics)
	var geocoder domain.Geocoder = geocode.NewCachedGeocoder(nominatim, ttlCache, cfg.GeocodeTTL)

	feed := social.NewService(records, ttlCache, cfg.SocialTTL, rand.New(rand.NewSource(time.Now().UnixNano())), logger)

	deps := httpadapter.Deps{
		Store:    records,
		Updates:  aggregator,
		Social:   feed,
		Geocoder: geocoder,
		Ready:    records,
	}

	if cfg.GeminiEnabled {
		deps.Analyzer = ai.NewClient("", cfg.GeminiAPIKey, nil, ttlCache, cfg.GeminiTTL, logger)
		logger.Info("gemini analysis enabled", "ttl", cfg.GeminiTTL)
	} else {
		logger.Info("gemini analysis disabled")
	}

	var auditWriter *kafkaadapter.AuditWriter
	if cfg.AuditEnabled {
		auditWriter = kafkaadapter.NewAuditWriter(cfg, logger, metrics)
		deps.Audit = auditWriter
		logger.Info("audit stream enabled", "topic", cfg.AuditTopic, "brokers", cfg.KafkaBrokers)
	} else {
		logger.Info("audit stream disabled")
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, deps, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if auditWriter != nil {
		if err := auditWriter.Close(); err != nil {
			logger.Error("audit writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

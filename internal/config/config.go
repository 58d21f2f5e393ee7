package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	DataDir         string

	// Official-updates pipeline.
	ScrapeTimeout   time.Duration
	ScrapeUserAgent string
	PerSourceCap    int
	GlobalCap       int
	UpdatesTTL      time.Duration

	// Mock social media feed.
	SocialTTL time.Duration

	// Geocoding.
	NominatimURL string
	GeocodeTTL   time.Duration

	// FEMA Open API.
	FEMAAPIURL string

	// Gemini analysis proxy (feature-flagged via GEMINI_ENABLED / GEMINI_API_KEY).
	GeminiAPIKey  string
	GeminiEnabled bool
	GeminiTTL     time.Duration

	// Kafka audit stream (feature-flagged via AUDIT_ENABLED / KAFKA_BROKERS).
	KafkaBrokers []string
	AuditTopic   string
	AuditEnabled bool
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parseDurationEnv("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	scrapeTimeout, err := parseDurationEnv("SCRAPE_TIMEOUT", "8s")
	if err != nil {
		return nil, err
	}
	updatesTTL, err := parseDurationEnv("UPDATES_TTL", "1h")
	if err != nil {
		return nil, err
	}
	socialTTL, err := parseDurationEnv("SOCIAL_TTL", "5m")
	if err != nil {
		return nil, err
	}
	geocodeTTL, err := parseDurationEnv("GEOCODE_TTL", "24h")
	if err != nil {
		return nil, err
	}
	geminiTTL, err := parseDurationEnv("GEMINI_TTL", "1h")
	if err != nil {
		return nil, err
	}
	perSourceCap, err := parseIntEnv("PER_SOURCE_CAP", 5)
	if err != nil {
		return nil, err
	}
	globalCap, err := parseIntEnv("GLOBAL_CAP", 10)
	if err != nil {
		return nil, err
	}

	geminiKey := os.Getenv("GEMINI_API_KEY")
	geminiEnabled := geminiKey != ""
	if v := os.Getenv("GEMINI_ENABLED"); v != "" {
		geminiEnabled = v == "true"
	}

	brokers := parseBrokers(os.Getenv("KAFKA_BROKERS"))
	auditEnabled := len(brokers) > 0
	if v := os.Getenv("AUDIT_ENABLED"); v != "" {
		auditEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":4000"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		DataDir:         envOrDefault("DATA_DIR", "./data"),

		ScrapeTimeout:   scrapeTimeout,
		ScrapeUserAgent: envOrDefault("SCRAPE_USER_AGENT", "DisasterResponseApp/1.0"),
		PerSourceCap:    perSourceCap,
		GlobalCap:       globalCap,
		UpdatesTTL:      updatesTTL,

		SocialTTL: socialTTL,

		NominatimURL: envOrDefault("NOMINATIM_URL", "https://nominatim.openstreetmap.org"),
		GeocodeTTL:   geocodeTTL,

		FEMAAPIURL: envOrDefault("FEMA_API_URL", "https://www.fema.gov/api/open/v2"),

		GeminiAPIKey:  geminiKey,
		GeminiEnabled: geminiEnabled,
		GeminiTTL:     geminiTTL,

		KafkaBrokers: brokers,
		AuditTopic:   envOrDefault("AUDIT_TOPIC", "disaster-audit-log"),
		AuditEnabled: auditEnabled,
	}

	if cfg.GlobalCap < cfg.PerSourceCap {
		return nil, errors.New("GLOBAL_CAP must be at least PER_SOURCE_CAP")
	}
	if cfg.GeminiEnabled && cfg.GeminiAPIKey == "" {
		return nil, errors.New("GEMINI_ENABLED is true but GEMINI_API_KEY is not set")
	}
	if cfg.AuditEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("AUDIT_ENABLED is true but KAFKA_BROKERS is not set")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDurationEnv(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseIntEnv(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

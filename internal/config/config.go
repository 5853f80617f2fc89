package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type AppConfig struct {
	Port string `validate:"required,numeric"`

	// DatasetsFile is the YAML file listing the served datasets.
	DatasetsFile string `validate:"required"`

	// Outbound microWFS calls.
	HTTPTimeout   time.Duration `validate:"gt=0"`
	FeedRateLimit float64       `validate:"gte=0"` // requests per second (0 = unlimited)
	UserAgent     string

	// Rows per chunk handed to consumers.
	ChunkSize int `validate:"gte=1"`
	// Row cap for a single API query.
	MaxRows int `validate:"gte=1"`

	// RefreshInterval is the default period of the latest-observation refresh;
	// a dataset's reloadEveryNMinutes overrides it.
	RefreshInterval time.Duration `validate:"gte=1m"`
	// RefreshWindow is how far back each refresh looks.
	RefreshWindow time.Duration `validate:"gt=0"`

	// In-memory store retention.
	StoreMaxHistory int           `validate:"gte=0"` // max observations per station (0 = unlimited)
	StoreMaxAge     time.Duration `validate:"gte=0"` // max age of observations (0 = unlimited)

	LogLevel slog.Level
}

var validate = validator.New()

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file loaded", "error", err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from the process environment only.
func FromEnv() (*AppConfig, error) {
	cfg := &AppConfig{
		Port:            getenvDefault("PORT", "8080"),
		DatasetsFile:    getenvDefault("DATASETS_FILE", "datasets.yaml"),
		UserAgent:       getenvDefault("USER_AGENT", "insitu-feed-adapter"),
		ChunkSize:       getenvInt("CHUNK_SIZE", 128),
		MaxRows:         getenvInt("MAX_ROWS", 100000),
		StoreMaxHistory: getenvInt("STORE_MAX_HISTORY", 96), // roughly 4 days of hourly reports
	}

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.RefreshInterval, err = getenvDuration("REFRESH_INTERVAL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.RefreshWindow, err = getenvDuration("REFRESH_WINDOW", 2*time.Hour); err != nil {
		return nil, err
	}
	if cfg.StoreMaxAge, err = getenvDuration("STORE_MAX_AGE", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.FeedRateLimit, err = getenvFloat("FEED_RATE_LIMIT", 2); err != nil {
		return nil, err
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(getenvDefault("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

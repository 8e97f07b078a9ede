package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/passbi/od_dashboard/internal/ingest"
	"github.com/passbi/od_dashboard/internal/zones"
)

// Data sources
const (
	SourceDB    = "db"
	SourceFiles = "files"
)

// Config holds the API server configuration
type Config struct {
	Port string
	Env  string

	DataSource  string
	DatasetName string
	ZonesPath   string
	Tables      []ingest.TableSource
	Duplicates  zones.DuplicatePolicy

	DisplayCap int
	MapZoom    float64

	EnableCache bool
	CacheTTL    time.Duration

	EnableRateLimit    bool
	RateLimitPerSecond int
	RateLimitPerDay    int

	PreparedCacheSize int
	PreparedCacheTTL  time.Duration
}

// Load reads .env when present, then the environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	return LoadFromEnv()
}

// LoadFromEnv builds the configuration from environment variables
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("API_PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		DataSource:  strings.ToLower(getEnv("DATA_SOURCE", SourceFiles)),
		DatasetName: getEnv("DATASET_NAME", "default"),
		ZonesPath:   getEnv("ZONES_PATH", "data/zonas.geojson"),
	}

	var err error
	tableList := getEnv("OD_TABLES", "data/matriz_od_coletivo.csv,data/matriz_od_individual.csv")
	if cfg.DataSource == SourceFiles {
		if cfg.Tables, err = ingest.ParseTableList(tableList); err != nil {
			return nil, fmt.Errorf("invalid OD_TABLES: %w", err)
		}
	}

	if cfg.Duplicates, err = zones.ParseDuplicatePolicy(getEnv("DUPLICATE_ZONES", "reject")); err != nil {
		return nil, fmt.Errorf("invalid DUPLICATE_ZONES: %w", err)
	}

	if cfg.DisplayCap, err = getInt("DISPLAY_CAP", 500); err != nil {
		return nil, err
	}
	if cfg.MapZoom, err = getFloat("MAP_ZOOM", 11); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = getDuration("CACHE_TTL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RateLimitPerSecond, err = getInt("RATE_LIMIT_PER_SECOND", 20); err != nil {
		return nil, err
	}
	if cfg.RateLimitPerDay, err = getInt("RATE_LIMIT_PER_DAY", 20000); err != nil {
		return nil, err
	}
	if cfg.PreparedCacheSize, err = getInt("PREPARED_CACHE_SIZE", 64); err != nil {
		return nil, err
	}
	if cfg.PreparedCacheTTL, err = getDuration("PREPARED_CACHE_TTL", 0); err != nil {
		return nil, err
	}

	cfg.EnableCache = getEnv("ENABLE_CACHE", "false") == "true"
	cfg.EnableRateLimit = getEnv("ENABLE_RATE_LIMIT", "false") == "true"

	return cfg, cfg.Validate()
}

// Validate rejects values the server cannot run with
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("API_PORT is empty")
	}
	switch c.DataSource {
	case SourceDB:
	case SourceFiles:
		if c.ZonesPath == "" {
			return fmt.Errorf("ZONES_PATH is required when DATA_SOURCE=files")
		}
		if len(c.Tables) == 0 {
			return fmt.Errorf("OD_TABLES is required when DATA_SOURCE=files")
		}
	default:
		return fmt.Errorf("DATA_SOURCE must be %q or %q, got %q", SourceDB, SourceFiles, c.DataSource)
	}
	if c.DisplayCap <= 0 {
		return fmt.Errorf("DISPLAY_CAP must be positive, got %d", c.DisplayCap)
	}
	if c.MapZoom <= 0 || c.MapZoom > 24 {
		return fmt.Errorf("MAP_ZOOM must be in (0, 24], got %g", c.MapZoom)
	}
	if c.EnableCache && c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive when the cache is enabled")
	}
	if c.EnableRateLimit && (c.RateLimitPerSecond <= 0 || c.RateLimitPerDay <= 0) {
		return fmt.Errorf("rate limits must be positive when rate limiting is enabled")
	}
	if c.PreparedCacheSize <= 0 {
		return fmt.Errorf("PREPARED_CACHE_SIZE must be positive, got %d", c.PreparedCacheSize)
	}
	if c.PreparedCacheTTL < 0 {
		return fmt.Errorf("PREPARED_CACHE_TTL must not be negative")
	}
	return nil
}

// IsProduction reports whether ENV is production
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getFloat(key string, defaultValue float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

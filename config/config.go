// Package config reads the application settings from the environment and an
// optional .env file.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"lims/library"
)

// Config holds every setting of the application.
type Config struct {
	Store         string
	DataDir       string
	DBPath        string
	PostgresDSN   string
	HTTPAddr      string
	RedisAddr     string
	CacheSize     int
	ActivityLimit int
}

// Load reads .env (if present) into the process environment and builds a
// Config. Variables already set in the environment win over the file.
// Callers apply their flag overrides and then call Validate.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: .env not loaded: %v", err)
	}

	cacheSize, err := intVar("LIMS_CACHE_SIZE", 256)
	if err != nil {
		return nil, err
	}
	activityLimit, err := intVar("LIMS_ACTIVITY_LIMIT", 20)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Store:         strings.ToLower(withDefault(os.Getenv("LIMS_STORE"), "json")),
		DataDir:       withDefault(os.Getenv("LIMS_DATA_DIR"), "data"),
		DBPath:        withDefault(os.Getenv("LIMS_DB_PATH"), "data/library.db"),
		PostgresDSN:   firstNonEmpty(os.Getenv("LIMS_PG_DSN"), os.Getenv("DATABASE_URL")),
		HTTPAddr:      withDefault(os.Getenv("LIMS_HTTP_ADDR"), ":8080"),
		RedisAddr:     strings.TrimSpace(os.Getenv("LIMS_REDIS_ADDR")),
		CacheSize:     cacheSize,
		ActivityLimit: activityLimit,
	}
	return cfg, nil
}

// Validate checks the combination of settings.
func (c *Config) Validate() error {
	switch c.Store {
	case "memory", "json", "sqlite3", "sqlite":
	case "postgres":
		if c.PostgresDSN == "" {
			return fmt.Errorf("LIMS_PG_DSN is required for the postgres store")
		}
	default:
		return fmt.Errorf("LIMS_STORE %q is not one of memory, json, sqlite3, sqlite, postgres", c.Store)
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("LIMS_CACHE_SIZE cannot be negative")
	}
	if c.ActivityLimit <= 0 {
		return fmt.Errorf("LIMS_ACTIVITY_LIMIT must be positive")
	}
	return nil
}

// StoreConfig returns the part of the settings the repositories need.
func (c *Config) StoreConfig() library.StoreConfig {
	return library.StoreConfig{
		Backend:     c.Store,
		DataDir:     c.DataDir,
		DBPath:      c.DBPath,
		PostgresDSN: c.PostgresDSN,
		CacheSize:   c.CacheSize,
	}
}

func intVar(name string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a number", name, raw)
	}
	return n, nil
}

func withDefault(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// Package config
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ErddapURLs      []string
	Formats         []string
	DatasetIDs      []string
	DownloadsFolder string
	SkipExisting    bool
	TableDatasets   bool
	GridWithFiles   bool
	GridByFormats   bool
	FetchTimeout    time.Duration
	// Logging configuration
	LogFile  string
	LogLevel string
	// Optional Prometheus listener; empty disables it
	MetricsAddr string
}

func Load() (Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	cfg := Config{}

	cfg.ErddapURLs = SplitList(getEnv("ERDDAP_URLS", ""))
	cfg.Formats = SplitList(getEnv("FORMATS", "ncCF,das"))
	cfg.DatasetIDs = SplitList(getEnv("DATASET_IDS", ""))
	cfg.DownloadsFolder = getEnv("DOWNLOADS_FOLDER", "downloads")
	cfg.SkipExisting = getEnvBool("SKIP_EXISTING", false)
	cfg.TableDatasets = getEnvBool("TABLE_DATASETS", false)
	cfg.GridWithFiles = getEnvBool("GRID_DATASETS_WITH_FILES", false)
	cfg.GridByFormats = getEnvBool("GRID_DATASETS_BY_FORMATS", false)

	var err error
	cfg.FetchTimeout, err = time.ParseDuration(getEnv("FETCH_TIMEOUT", "60s"))
	if err != nil {
		return cfg, fmt.Errorf("invalid FETCH_TIMEOUT: %w", err)
	}

	cfg.LogFile = getEnv("LOG_FILE", "")
	cfg.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.MetricsAddr = getEnv("METRICS_ADDR", "")

	return cfg, nil
}

// Validate checks the run-level preconditions that must fail before any
// network I/O happens.
func (c Config) Validate() error {
	if len(c.ErddapURLs) == 0 {
		return errors.New("at least one ERDDAP URL is required")
	}
	if len(c.DatasetIDs) > 0 && len(c.ErddapURLs) > 1 {
		return errors.New("dataset IDs can only be specified for a single ERDDAP URL")
	}
	if !c.TableDatasets && !c.GridWithFiles && !c.GridByFormats {
		return errors.New("at least one dataset kind must be selected")
	}
	return nil
}

func SplitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultVal
	}
	return b
}

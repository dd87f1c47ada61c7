package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rendis/rootfinder/internal/logging"
	"github.com/rendis/rootfinder/pkg/schema"
	"github.com/robfig/cron/v3"
)

// Config holds all rootfinder configuration.
// Priority: flags > env vars > settings.json > defaults.
type Config struct {
	DBPath        string  `json:"db_path"`
	History       bool    `json:"history"`
	LogLevel      string  `json:"log_level"`
	LogFormat     string  `json:"log_format"`
	PoolSize      int     `json:"pool_size"`
	Tolerance     float64 `json:"tolerance"`
	MaxIterations int     `json:"max_iterations"`
	Retention     string  `json:"retention"`
	PruneSchedule string  `json:"prune_schedule"`
	Verify        bool    `json:"verify"`
}

func defaultConfig(dir string) Config {
	return Config{
		DBPath:        filepath.Join(dir, "rootfinder.db"),
		History:       true,
		LogLevel:      "info",
		LogFormat:     "text",
		PoolSize:      4,
		Tolerance:     schema.DefaultTolerance,
		MaxIterations: schema.DefaultMaxIterations,
		Retention:     "720h",
		PruneSchedule: "@daily",
	}
}

func rootfinderDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".rootfinder"
	}
	return filepath.Join(home, ".rootfinder")
}

func settingsPath(dir string) string {
	return filepath.Join(dir, "settings.json")
}

// loadConfig layers settings.json in dir and ROOTFINDER_* variables over the
// defaults. A missing settings file is not an error.
func loadConfig(dir string, getenv func(string) string) (Config, error) {
	cfg := defaultConfig(dir)

	// Layer 2: settings.json.
	data, err := os.ReadFile(settingsPath(dir))
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", settingsPath(dir), err)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return Config{}, fmt.Errorf("read %s: %w", settingsPath(dir), err)
	}

	// Layer 3: env vars override.
	if v := getenv("ROOTFINDER_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := getenv("ROOTFINDER_HISTORY"); v != "" {
		cfg.History = v == "true" || v == "1"
	}
	if v := getenv("ROOTFINDER_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := getenv("ROOTFINDER_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := getenv("ROOTFINDER_POOL_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("ROOTFINDER_POOL_SIZE: %w", err)
		}
		cfg.PoolSize = n
	}
	if v := getenv("ROOTFINDER_TOLERANCE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Config{}, fmt.Errorf("ROOTFINDER_TOLERANCE: %w", err)
		}
		cfg.Tolerance = f
	}
	if v := getenv("ROOTFINDER_MAX_ITERATIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("ROOTFINDER_MAX_ITERATIONS: %w", err)
		}
		cfg.MaxIterations = n
	}
	if v := getenv("ROOTFINDER_RETENTION"); v != "" {
		cfg.Retention = v
	}
	if v := getenv("ROOTFINDER_PRUNE_SCHEDULE"); v != "" {
		cfg.PruneSchedule = v
	}
	if v := getenv("ROOTFINDER_VERIFY"); v != "" {
		cfg.Verify = v == "true" || v == "1"
	}
	return cfg, nil
}

// applyFlags copies the global flags the user set onto cfg.
func applyFlags(cfg *Config, f *globalFlags, changed func(name string) bool) {
	if changed("db") {
		cfg.DBPath = f.dbPath
	}
	if changed("no-history") {
		cfg.History = !f.noHistory
	}
	if changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if changed("log-format") {
		cfg.LogFormat = f.logFormat
	}
	if changed("pool-size") {
		cfg.PoolSize = f.poolSize
	}
	if changed("tolerance") {
		cfg.Tolerance = f.tolerance
	}
	if changed("max-iterations") {
		cfg.MaxIterations = f.maxIterations
	}
	if changed("verify") {
		cfg.Verify = f.verify
	}
}

// validate rejects values no command can run with.
func (c Config) validate() error {
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("log_format must be text or json, got %q", c.LogFormat)
	}
	if c.PoolSize < 1 {
		return fmt.Errorf("pool_size must be at least 1, got %d", c.PoolSize)
	}
	if !(c.Tolerance > 0) {
		return fmt.Errorf("tolerance must be positive, got %g", c.Tolerance)
	}
	if c.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be at least 1, got %d", c.MaxIterations)
	}
	if _, err := c.retention(); err != nil {
		return err
	}
	if _, err := cron.ParseStandard(c.PruneSchedule); err != nil {
		return fmt.Errorf("prune_schedule %q: %w", c.PruneSchedule, err)
	}
	if c.History && c.DBPath == "" {
		return errors.New("db_path is required when history is enabled")
	}
	return nil
}

func (c Config) retention() (time.Duration, error) {
	d, err := time.ParseDuration(c.Retention)
	if err != nil {
		return 0, fmt.Errorf("retention %q: %w", c.Retention, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("retention must be positive, got %s", d)
	}
	return d, nil
}

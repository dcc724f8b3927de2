package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all deliverable CLI/server configuration.
// Priority: env vars > settings.json > defaults.
type Config struct {
	DBPath            string `json:"db_path"`
	LogLevel          string `json:"log_level"`
	Persist           bool   `json:"persist"`
	RetentionSchedule string `json:"retention_schedule"`
	RetentionMaxAge   string `json:"retention_max_age"`
	MaxLabelLen       int    `json:"max_label_len"`
	MaxSubsteps       int    `json:"max_substeps"`
	MaxFanOut         int    `json:"max_fan_out"`
}

func defaultConfig() Config {
	return Config{
		DBPath:            filepath.Join(deliverableDir(), "deliverable.db"),
		LogLevel:          "info",
		RetentionSchedule: "0 3 * * *",
		RetentionMaxAge:   "720h",
	}
}

func deliverableDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".deliverable"
	}
	return filepath.Join(home, ".deliverable")
}

func settingsPath() string {
	return filepath.Join(deliverableDir(), "settings.json")
}

func loadConfig() Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settingsPath()); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override.
	if v := os.Getenv("DELIVERABLE_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("DELIVERABLE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("DELIVERABLE_PERSIST"); v != "" {
		cfg.Persist = v == "true" || v == "1"
	}
	if v := os.Getenv("DELIVERABLE_RETENTION_SCHEDULE"); v != "" {
		cfg.RetentionSchedule = v
	}
	if v := os.Getenv("DELIVERABLE_RETENTION_MAX_AGE"); v != "" {
		cfg.RetentionMaxAge = v
	}
	if n, ok := intEnv("DELIVERABLE_MAX_LABEL_LEN"); ok {
		cfg.MaxLabelLen = n
	}
	if n, ok := intEnv("DELIVERABLE_MAX_SUBSTEPS"); ok {
		cfg.MaxSubsteps = n
	}
	if n, ok := intEnv("DELIVERABLE_MAX_FAN_OUT"); ok {
		cfg.MaxFanOut = n
	}

	return cfg
}

// intEnv reads an integer env var; non-numeric values are ignored.
func intEnv(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// retentionMaxAge parses the configured max age, falling back to 30 days.
func (c Config) retentionMaxAge() time.Duration {
	d, err := time.ParseDuration(c.RetentionMaxAge)
	if err != nil || d <= 0 {
		return 720 * time.Hour
	}
	return d
}

// Package config provides configuration management for the matching server.
// This file contains the lightweight configuration for standalone MCP
// operation: no Postgres catalog, trials loaded from a JSON file, feedback
// in SQLite.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// LiteConfig is a simplified configuration for standalone operation.
// It requires no external databases and uses sensible defaults.
type LiteConfig struct {
	// Data storage
	DataDir      string // Base directory for data files
	CatalogFile  string // Optional: JSON file with trial definitions
	FeedbackFile string // Optional: override for the feedback SQLite path

	// Oracle settings
	OracleEnabled bool
	OracleBackend string // ollama, gemini
	OracleBaseURL string
	OracleModel   string
	OracleAPIKey  string

	// Matching settings
	ScoreThreshold float64
	TopN           int
	RunTimeout     time.Duration

	// Logging
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: json, text
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".trial-match")

	return &LiteConfig{
		DataDir:        dataDir,
		OracleEnabled:  false,
		OracleBackend:  "ollama",
		OracleBaseURL:  "http://localhost:11434/v1",
		OracleModel:    "llama3.1",
		ScoreThreshold: 50,
		TopN:           0,
		RunTimeout:     2 * time.Minute,
		LogLevel:       "info",
		LogFormat:      "json",
	}
}

// LoadLiteConfig loads configuration from environment variables.
// Falls back to defaults if not set.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	if v := os.Getenv("TRIALMATCH_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("TRIALMATCH_CATALOG_FILE"); v != "" {
		cfg.CatalogFile = v
	}
	if v := os.Getenv("TRIALMATCH_FEEDBACK_FILE"); v != "" {
		cfg.FeedbackFile = v
	}

	// Oracle
	if v := os.Getenv("TRIALMATCH_ORACLE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.OracleEnabled = b
		}
	}
	if v := os.Getenv("TRIALMATCH_ORACLE_BACKEND"); v != "" {
		cfg.OracleBackend = v
	}
	if v := os.Getenv("TRIALMATCH_ORACLE_BASE_URL"); v != "" {
		cfg.OracleBaseURL = v
	}
	if v := os.Getenv("TRIALMATCH_ORACLE_MODEL"); v != "" {
		cfg.OracleModel = v
	}
	cfg.OracleAPIKey = os.Getenv("TRIALMATCH_ORACLE_API_KEY")

	// Matching
	if v := os.Getenv("TRIALMATCH_SCORE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f <= 100 {
			cfg.ScoreThreshold = f
		}
	}
	if v := os.Getenv("TRIALMATCH_TOP_N"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.TopN = n
		}
	}
	if v := os.Getenv("TRIALMATCH_RUN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.RunTimeout = d
		}
	}

	// Logging
	if v := os.Getenv("TRIALMATCH_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("TRIALMATCH_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

// FeedbackDBPath returns the path to the feedback SQLite database.
func (c *LiteConfig) FeedbackDBPath() string {
	if c.FeedbackFile != "" {
		return c.FeedbackFile
	}
	return filepath.Join(c.DataDir, "feedback.db")
}

// ExportDir returns the directory for JSON exports.
func (c *LiteConfig) ExportDir() string {
	return filepath.Join(c.DataDir, "exports")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *LiteConfig) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return err
	}
	return os.MkdirAll(c.ExportDir(), 0755)
}

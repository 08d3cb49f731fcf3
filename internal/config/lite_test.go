package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLiteConfig(t *testing.T) {
	cfg := DefaultLiteConfig()

	assert.NotEmpty(t, cfg.DataDir)
	assert.False(t, cfg.OracleEnabled)
	assert.Equal(t, "ollama", cfg.OracleBackend)
	assert.Equal(t, 50.0, cfg.ScoreThreshold)
	assert.Equal(t, 0, cfg.TopN)
	assert.Equal(t, 2*time.Minute, cfg.RunTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadLiteConfig_Defaults(t *testing.T) {
	clearEnvVars(t)

	cfg := LoadLiteConfig()

	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, 50.0, cfg.ScoreThreshold)
	assert.Equal(t, "ollama", cfg.OracleBackend)
}

func TestLoadLiteConfig_EnvironmentOverrides(t *testing.T) {
	clearEnvVars(t)

	os.Setenv("TRIALMATCH_DATA_DIR", "/tmp/test-trialmatch")
	os.Setenv("TRIALMATCH_CATALOG_FILE", "/tmp/catalog.json")
	os.Setenv("TRIALMATCH_ORACLE_ENABLED", "true")
	os.Setenv("TRIALMATCH_ORACLE_BACKEND", "gemini")
	os.Setenv("TRIALMATCH_ORACLE_API_KEY", "test-key")
	os.Setenv("TRIALMATCH_SCORE_THRESHOLD", "70")
	os.Setenv("TRIALMATCH_TOP_N", "5")
	os.Setenv("TRIALMATCH_RUN_TIMEOUT", "30s")
	os.Setenv("TRIALMATCH_LOG_LEVEL", "debug")

	defer clearEnvVars(t)

	cfg := LoadLiteConfig()

	assert.Equal(t, "/tmp/test-trialmatch", cfg.DataDir)
	assert.Equal(t, "/tmp/catalog.json", cfg.CatalogFile)
	assert.True(t, cfg.OracleEnabled)
	assert.Equal(t, "gemini", cfg.OracleBackend)
	assert.Equal(t, "test-key", cfg.OracleAPIKey)
	assert.Equal(t, 70.0, cfg.ScoreThreshold)
	assert.Equal(t, 5, cfg.TopN)
	assert.Equal(t, 30*time.Second, cfg.RunTimeout)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadLiteConfig_InvalidValuesIgnored(t *testing.T) {
	clearEnvVars(t)

	os.Setenv("TRIALMATCH_SCORE_THRESHOLD", "150")
	os.Setenv("TRIALMATCH_TOP_N", "-1")
	os.Setenv("TRIALMATCH_RUN_TIMEOUT", "soon")

	defer clearEnvVars(t)

	cfg := LoadLiteConfig()

	assert.Equal(t, 50.0, cfg.ScoreThreshold)
	assert.Equal(t, 0, cfg.TopN)
	assert.Equal(t, 2*time.Minute, cfg.RunTimeout)
}

func TestLiteConfig_FeedbackDBPath(t *testing.T) {
	cfg := &LiteConfig{DataDir: "/home/user/.trial-match"}

	assert.Equal(t, "/home/user/.trial-match/feedback.db", cfg.FeedbackDBPath())

	cfg.FeedbackFile = "/var/lib/trialmatch/fb.db"
	assert.Equal(t, "/var/lib/trialmatch/fb.db", cfg.FeedbackDBPath())
}

func TestLiteConfig_ExportDir(t *testing.T) {
	cfg := &LiteConfig{DataDir: "/home/user/.trial-match"}

	assert.Equal(t, "/home/user/.trial-match/exports", cfg.ExportDir())
}

func TestLiteConfig_EnsureDataDir(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "config-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	cfg := &LiteConfig{DataDir: filepath.Join(tmpDir, "trialmatch")}

	err = cfg.EnsureDataDir()
	require.NoError(t, err)

	_, err = os.Stat(cfg.DataDir)
	assert.NoError(t, err)

	_, err = os.Stat(cfg.ExportDir())
	assert.NoError(t, err)
}

func clearEnvVars(t *testing.T) {
	t.Helper()
	vars := []string{
		"TRIALMATCH_DATA_DIR",
		"TRIALMATCH_CATALOG_FILE",
		"TRIALMATCH_FEEDBACK_FILE",
		"TRIALMATCH_ORACLE_ENABLED",
		"TRIALMATCH_ORACLE_BACKEND",
		"TRIALMATCH_ORACLE_BASE_URL",
		"TRIALMATCH_ORACLE_MODEL",
		"TRIALMATCH_ORACLE_API_KEY",
		"TRIALMATCH_SCORE_THRESHOLD",
		"TRIALMATCH_TOP_N",
		"TRIALMATCH_RUN_TIMEOUT",
		"TRIALMATCH_LOG_LEVEL",
		"TRIALMATCH_LOG_FORMAT",
	}
	for _, v := range vars {
		os.Unsetenv(v)
	}
}

package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"github.com/trial-match-server/internal/domain"
	"github.com/trial-match-server/internal/service"
)

// Manager loads and validates application configuration using Viper.
type Manager struct {
	config *domain.Config
}

// NewManager creates a new configuration manager.
func NewManager() (*Manager, error) {
	m := &Manager{}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from file, environment, and defaults.
func (m *Manager) loadConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/trial-match-server/")

	viper.SetEnvPrefix("TRIALMATCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	m.setDefaults()

	// Config file is optional; defaults and env vars cover everything.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values.
func (m *Manager) setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.database", "trial_match")
	viper.SetDefault("database.username", "postgres")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")
	viper.SetDefault("database.migrations_path", "migrations")

	// Oracle defaults
	viper.SetDefault("oracle.enabled", false)
	viper.SetDefault("oracle.backend", "ollama")
	viper.SetDefault("oracle.base_url", "http://localhost:11434/v1")
	viper.SetDefault("oracle.model", "llama3.1")
	viper.SetDefault("oracle.api_key", "")
	viper.SetDefault("oracle.timeout", "30s")
	viper.SetDefault("oracle.retry_count", 3)
	viper.SetDefault("oracle.rate_limit", 10)
	viper.SetDefault("oracle.max_concurrent", 4)
	viper.SetDefault("oracle.max_trials", 10)
	viper.SetDefault("oracle.cache_responses", false)

	// Cache defaults
	viper.SetDefault("cache.redis_url", "redis://localhost:6379")
	viper.SetDefault("cache.default_ttl", "1h")
	viper.SetDefault("cache.max_retries", 3)
	viper.SetDefault("cache.pool_size", 10)
	viper.SetDefault("cache.pool_timeout", "4s")

	// Matching defaults
	viper.SetDefault("matching.score_threshold", service.DefaultScoreThreshold)
	viper.SetDefault("matching.top_n", 0)
	viper.SetDefault("matching.max_concurrency", 8)
	viper.SetDefault("matching.run_timeout", "2m")
	viper.SetDefault("matching.undetermined_policy", string(service.UndeterminedIgnore))
	viper.SetDefault("matching.ecog_assumed_max", service.DefaultECOGAssumedMax)

	// Feedback defaults
	viper.SetDefault("feedback.driver", "sqlite")
	viper.SetDefault("feedback.path", "./data/feedback.db")
	viper.SetDefault("feedback.url", "")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")
}

// GetConfig returns the complete configuration.
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns server configuration.
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetDatabaseConfig returns database configuration.
func (m *Manager) GetDatabaseConfig() *domain.DatabaseConfig {
	return &m.config.Database
}

// GetOracleConfig returns semantic oracle configuration.
func (m *Manager) GetOracleConfig() *domain.OracleConfig {
	return &m.config.Oracle
}

// Reload reloads the configuration.
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration.
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if config.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}
	if config.Database.Username == "" {
		return fmt.Errorf("database username is required")
	}

	if config.Oracle.Enabled {
		switch config.Oracle.Backend {
		case "ollama":
			if config.Oracle.BaseURL == "" {
				return fmt.Errorf("oracle base URL is required for the ollama backend")
			}
		case "gemini":
			if config.Oracle.APIKey == "" {
				return fmt.Errorf("oracle API key is required for the gemini backend")
			}
		default:
			return fmt.Errorf("invalid oracle backend: %s", config.Oracle.Backend)
		}
		if config.Oracle.Model == "" {
			return fmt.Errorf("oracle model is required")
		}
		if config.Oracle.CacheResponses && config.Cache.RedisURL == "" {
			return fmt.Errorf("Redis URL is required when oracle response caching is enabled")
		}
	}

	if config.Matching.ScoreThreshold < 0 || config.Matching.ScoreThreshold > 100 {
		return fmt.Errorf("score threshold must be between 0 and 100: %g", config.Matching.ScoreThreshold)
	}
	if policy := service.UndeterminedPolicy(config.Matching.UndeterminedPolicy); !policy.IsValid() {
		return fmt.Errorf("invalid undetermined policy: %s", config.Matching.UndeterminedPolicy)
	}

	switch config.Feedback.Driver {
	case "sqlite":
		if config.Feedback.Path == "" {
			return fmt.Errorf("feedback path is required for the sqlite driver")
		}
	case "postgres":
		if config.Feedback.URL == "" {
			return fmt.Errorf("feedback URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("invalid feedback driver: %s", config.Feedback.Driver)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// GetDatabaseConnectionString returns a formatted database connection string.
func (m *Manager) GetDatabaseConnectionString() string {
	db := m.config.Database
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		db.Host, db.Port, db.Username, db.Password, db.Database, db.SSLMode)
}

// IsProduction returns true if running in production mode.
func (m *Manager) IsProduction() bool {
	return strings.ToLower(viper.GetString("environment")) == "production"
}

// IsDevelopment returns true if running in development mode.
func (m *Manager) IsDevelopment() bool {
	env := strings.ToLower(viper.GetString("environment"))
	return env == "development" || env == "dev" || env == ""
}

package domain

import (
	"time"
)

// Config represents the main application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Oracle   OracleConfig   `mapstructure:"oracle"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Matching MatchingConfig `mapstructure:"matching"`
	Feedback FeedbackConfig `mapstructure:"feedback"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig represents HTTP server configuration.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DatabaseConfig represents the trial catalog database configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// OracleConfig configures the semantic oracle boundary.
type OracleConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Backend string `mapstructure:"backend"` // "ollama" or "gemini"

	// Ollama-compatible backend (any OpenAI-style completion endpoint).
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
	APIKey  string `mapstructure:"api_key"`

	Timeout        time.Duration `mapstructure:"timeout"`
	RetryCount     int           `mapstructure:"retry_count"`
	RateLimit      float64       `mapstructure:"rate_limit"` // calls per second
	MaxConcurrent  int           `mapstructure:"max_concurrent"`
	MaxTrials      int           `mapstructure:"max_trials"` // top-N bound on oracle calls
	CacheResponses bool          `mapstructure:"cache_responses"`
}

// CacheConfig represents the Redis cache configuration used for oracle
// response caching.
type CacheConfig struct {
	RedisURL    string        `mapstructure:"redis_url"`
	DefaultTTL  time.Duration `mapstructure:"default_ttl"`
	MaxRetries  int           `mapstructure:"max_retries"`
	PoolSize    int           `mapstructure:"pool_size"`
	PoolTimeout time.Duration `mapstructure:"pool_timeout"`
}

// MatchingConfig tunes the matching engine.
type MatchingConfig struct {
	ScoreThreshold     float64       `mapstructure:"score_threshold"`
	TopN               int           `mapstructure:"top_n"` // 0 = unbounded
	MaxConcurrency     int           `mapstructure:"max_concurrency"`
	RunTimeout         time.Duration `mapstructure:"run_timeout"`
	UndeterminedPolicy string        `mapstructure:"undetermined_policy"` // ignore|unsatisfied|satisfied
	ECOGAssumedMax     int           `mapstructure:"ecog_assumed_max"`
}

// FeedbackConfig configures the match feedback store.
type FeedbackConfig struct {
	Driver string `mapstructure:"driver"` // "sqlite" or "postgres"
	Path   string `mapstructure:"path"`   // sqlite file path
	URL    string `mapstructure:"url"`    // postgres connection URL
}

// LoggingConfig represents logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

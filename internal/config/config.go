package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Default pipeline settings
const (
	DefaultLLMBaseURL         = "https://openrouter.ai/api/v1"
	DefaultLLMModel           = "deepseek/deepseek-chat-v3.1:free"
	DefaultLLMTimeout         = 45 * time.Second
	DefaultPollInterval       = 5 * time.Minute
	DefaultItemTimeout        = 90 * time.Second
	DefaultWorkerConcurrency  = 4
	DefaultMaxBatchSize       = 20
	DefaultSyncFallbackWindow = 72 * time.Hour

	// MinTokenKeyLength is the shortest accepted TOKEN_ENCRYPTION_KEY
	MinTokenKeyLength = 32
)

// Config holds all configuration for the application
type Config struct {
	// Database
	DatabaseURL string

	// Server
	APIPort int

	// Logging
	LogLevel string

	// Security
	APIKey         string
	AllowedOrigins string
	AppEnv         string

	// TokenEncryptionKey seals mailbox OAuth tokens at rest
	TokenEncryptionKey string

	// Rate Limiting
	RateLimitRequests float64
	RateLimitBurst    int

	// Gmail OAuth client
	GmailClientID     string
	GmailClientSecret string
	GmailRedirectURL  string

	// Language model
	LLMAPIKey       string
	LLMBaseURL      string
	LLMDefaultModel string
	LLMTimeout      time.Duration

	// Pipeline
	PollInterval       time.Duration
	PollEnabled        bool
	WorkerConcurrency  int
	ItemTimeout        time.Duration
	MaxBatchSize       int
	SyncFallbackWindow time.Duration
}

// LoadEnvFile loads variables from a dotenv file when ENV_FILE is set or a
// .env file exists in the working directory. Variables already present in the
// environment win.
func LoadEnvFile() error {
	path := os.Getenv("ENV_FILE")
	if path == "" {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}

	// Required: DATABASE_URL
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required but not set")
	}

	// API_PORT (default: 8080)
	apiPort := os.Getenv("API_PORT")
	if apiPort == "" {
		cfg.APIPort = 8080
	} else {
		port, err := strconv.Atoi(apiPort)
		if err != nil {
			return nil, fmt.Errorf("API_PORT must be a valid integer: %w", err)
		}
		cfg.APIPort = port
	}

	// LOG_LEVEL (default: info)
	cfg.LogLevel = os.Getenv("LOG_LEVEL")
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	// Security configuration
	cfg.APIKey = os.Getenv("API_KEY")
	cfg.AllowedOrigins = os.Getenv("ALLOWED_ORIGINS")
	cfg.AppEnv = os.Getenv("APP_ENV")
	if cfg.AppEnv == "" {
		cfg.AppEnv = "development"
	}
	cfg.TokenEncryptionKey = os.Getenv("TOKEN_ENCRYPTION_KEY")

	// Rate limiting configuration
	if rps := os.Getenv("RATE_LIMIT_REQUESTS"); rps != "" {
		if v, err := strconv.ParseFloat(rps, 64); err == nil {
			cfg.RateLimitRequests = v
		}
	} else {
		cfg.RateLimitRequests = 10.0
	}

	if burst := os.Getenv("RATE_LIMIT_BURST"); burst != "" {
		if v, err := strconv.Atoi(burst); err == nil {
			cfg.RateLimitBurst = v
		}
	} else {
		cfg.RateLimitBurst = 20
	}

	// Gmail OAuth client
	cfg.GmailClientID = os.Getenv("GMAIL_CLIENT_ID")
	cfg.GmailClientSecret = os.Getenv("GMAIL_CLIENT_SECRET")
	cfg.GmailRedirectURL = os.Getenv("GMAIL_REDIRECT_URL")

	// Language model
	cfg.LLMAPIKey = os.Getenv("LLM_API_KEY")
	cfg.LLMBaseURL = envOrDefault("LLM_BASE_URL", DefaultLLMBaseURL)
	cfg.LLMDefaultModel = envOrDefault("LLM_DEFAULT_MODEL", DefaultLLMModel)

	var err error
	if cfg.LLMTimeout, err = durationEnv("LLM_TIMEOUT", DefaultLLMTimeout); err != nil {
		return nil, err
	}

	// Pipeline
	if cfg.PollInterval, err = durationEnv("POLL_INTERVAL", DefaultPollInterval); err != nil {
		return nil, err
	}
	if cfg.ItemTimeout, err = durationEnv("ITEM_TIMEOUT", DefaultItemTimeout); err != nil {
		return nil, err
	}
	if cfg.SyncFallbackWindow, err = durationEnv("SYNC_FALLBACK_WINDOW", DefaultSyncFallbackWindow); err != nil {
		return nil, err
	}
	if cfg.WorkerConcurrency, err = intEnv("WORKER_CONCURRENCY", DefaultWorkerConcurrency); err != nil {
		return nil, err
	}
	if cfg.MaxBatchSize, err = intEnv("MAX_BATCH_SIZE", DefaultMaxBatchSize); err != nil {
		return nil, err
	}

	// POLL_ENABLED (default: true)
	pollEnabled := os.Getenv("POLL_ENABLED")
	if pollEnabled == "" {
		cfg.PollEnabled = true
	} else {
		enabled, err := strconv.ParseBool(pollEnabled)
		if err != nil {
			return nil, fmt.Errorf("POLL_ENABLED must be a valid boolean: %w", err)
		}
		cfg.PollEnabled = enabled
	}

	return cfg, nil
}

// LoadWithValidation loads and validates configuration, failing fast on errors
func LoadWithValidation() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Production-specific validation
	if cfg.AppEnv == "production" {
		if err := cfg.ValidateProduction(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DatabaseURL cannot be empty")
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("APIPort must be between 1 and 65535")
	}
	if c.WorkerConcurrency <= 0 {
		return fmt.Errorf("WorkerConcurrency must be positive")
	}
	if c.MaxBatchSize <= 0 {
		return fmt.Errorf("MaxBatchSize must be positive")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("PollInterval must be positive")
	}
	if c.ItemTimeout <= 0 || c.LLMTimeout <= 0 {
		return fmt.Errorf("ItemTimeout and LLMTimeout must be positive")
	}
	if len(c.TokenEncryptionKey) < MinTokenKeyLength {
		return fmt.Errorf("TOKEN_ENCRYPTION_KEY must be at least %d characters", MinTokenKeyLength)
	}
	return nil
}

// ValidateProduction performs additional validation for production environment
func (c *Config) ValidateProduction() error {
	if c.APIKey == "" {
		return fmt.Errorf("API_KEY is required in production")
	}

	if c.AllowedOrigins == "" {
		return fmt.Errorf("ALLOWED_ORIGINS is required in production")
	}

	// Check for wildcard in production
	if strings.Contains(c.AllowedOrigins, "*") {
		return fmt.Errorf("wildcard (*) origins are not allowed in production")
	}

	// Check for sslmode=disable in database URL
	if strings.Contains(c.DatabaseURL, "sslmode=disable") {
		return fmt.Errorf("sslmode=disable is not allowed in production")
	}

	if c.LLMAPIKey == "" {
		return fmt.Errorf("LLM_API_KEY is required in production")
	}

	if c.GmailClientID == "" || c.GmailClientSecret == "" {
		return fmt.Errorf("GMAIL_CLIENT_ID and GMAIL_CLIENT_SECRET are required in production")
	}

	return nil
}

// LogConfig logs configuration values (excluding secrets)
func (c *Config) LogConfig(logger *slog.Logger) {
	logger.Info("configuration loaded",
		slog.Int("api_port", c.APIPort),
		slog.String("log_level", c.LogLevel),
		slog.String("app_env", c.AppEnv),
		slog.Bool("api_key_set", c.APIKey != ""),
		slog.Bool("allowed_origins_set", c.AllowedOrigins != ""),
		slog.Float64("rate_limit_rps", c.RateLimitRequests),
		slog.Int("rate_limit_burst", c.RateLimitBurst),
		slog.Bool("gmail_client_set", c.GmailClientID != ""),
		slog.Bool("llm_api_key_set", c.LLMAPIKey != ""),
		slog.String("llm_base_url", c.LLMBaseURL),
		slog.String("llm_default_model", c.LLMDefaultModel),
		slog.Duration("llm_timeout", c.LLMTimeout),
		slog.Duration("poll_interval", c.PollInterval),
		slog.Bool("poll_enabled", c.PollEnabled),
		slog.Int("worker_concurrency", c.WorkerConcurrency),
		slog.Duration("item_timeout", c.ItemTimeout),
		slog.Int("max_batch_size", c.MaxBatchSize),
		slog.Duration("sync_fallback_window", c.SyncFallbackWindow),
	)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid duration: %w", key, err)
	}
	return d, nil
}

func intEnv(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	return v, nil
}

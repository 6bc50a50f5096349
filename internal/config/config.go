package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"adcompliance/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Database DatabaseConfig
	AI       AIConfig
	Analysis AnalysisConfig
	Redis    RedisConfig
	Server   ServerConfig
	LogLevel string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL string
}

// AIConfig holds judgment service settings
type AIConfig struct {
	Provider    string
	APIKey      string
	Model       string
	BaseURL     string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
	// RequestsPerSecond paces judge calls; zero disables pacing.
	RequestsPerSecond float64

	PromptCostPer1K     float64
	CompletionCostPer1K float64
}

// AnalysisConfig holds orchestration and staleness settings
type AnalysisConfig struct {
	MaxAge        time.Duration
	Workers       int
	SweepBatch    int
	ScreenshotDir string
	TesseractPath string
}

// RedisConfig holds the optional distributed lock backend; empty Addr means in-process locks
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	LockTTL  time.Duration
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string
	GinMode string
}

// DefaultMaxAge is the default re-analysis interval for unchanged content.
const DefaultMaxAge = 30 * 24 * time.Hour

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	aiConfig, err := loadAIConfig()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load AI configuration")
	}

	cfg := &Config{
		Database: DatabaseConfig{URL: os.Getenv("DATABASE_URL")},
		AI:       *aiConfig,
		Analysis: loadAnalysisConfig(),
		Redis:    loadRedisConfig(),
		Server:   loadServerConfig(),
		LogLevel: strings.ToUpper(getEnvOrDefault("LOG_LEVEL", "INFO")),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return cfg, nil
}

// LoadDatabase reads only the database section, for tools that never call
// the judge.
func LoadDatabase() (*DatabaseConfig, error) {
	db := &DatabaseConfig{URL: os.Getenv("DATABASE_URL")}
	if db.URL == "" {
		return nil, errors.ConfigInvalid("DATABASE_URL is required")
	}
	return db, nil
}

// RequireDatabase fails unless a database URL is configured
func (c *Config) RequireDatabase() error {
	if c.Database.URL == "" {
		return errors.ConfigInvalid("DATABASE_URL is required")
	}
	return nil
}

func loadAIConfig() (*AIConfig, error) {
	provider := strings.ToLower(getEnvOrDefault("LLM_PROVIDER", "openai"))

	var apiKey, defaultModel string
	switch provider {
	case "openai":
		apiKey = os.Getenv("OPENAI_API_KEY")
		defaultModel = "gpt-4o"
	case "anthropic", "claude":
		provider = "anthropic"
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
		defaultModel = "claude-sonnet-4-20250514"
	default:
		return nil, errors.ConfigInvalid("unsupported LLM_PROVIDER: " + provider + " (supported: openai, anthropic)")
	}

	return &AIConfig{
		Provider:            provider,
		APIKey:              apiKey,
		Model:               getEnvOrDefault("LLM_MODEL", defaultModel),
		BaseURL:             os.Getenv("LLM_BASE_URL"),
		Timeout:             getEnvDurationOrDefault("LLM_TIMEOUT", 120*time.Second),
		MaxTokens:           getEnvIntOrDefault("LLM_MAX_TOKENS", 2000),
		Temperature:         getEnvFloatOrDefault("TEMPERATURE", 0),
		RequestsPerSecond:   getEnvFloatOrDefault("LLM_RPS", 0),
		PromptCostPer1K:     getEnvFloatOrDefault("LLM_PROMPT_COST_PER_1K", 0),
		CompletionCostPer1K: getEnvFloatOrDefault("LLM_COMPLETION_COST_PER_1K", 0),
	}, nil
}

func loadAnalysisConfig() AnalysisConfig {
	return AnalysisConfig{
		MaxAge:        getEnvDurationOrDefault("ANALYSIS_MAX_AGE", DefaultMaxAge),
		Workers:       getEnvIntOrDefault("ANALYSIS_WORKERS", 4),
		SweepBatch:    getEnvIntOrDefault("SWEEP_BATCH", 100),
		ScreenshotDir: getEnvOrDefault("SCREENSHOT_DIR", "./screenshots"),
		TesseractPath: getEnvOrDefault("TESSERACT_PATH", "tesseract"),
	}
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:     os.Getenv("REDIS_ADDR"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       getEnvIntOrDefault("REDIS_DB", 0),
		LockTTL:  getEnvDurationOrDefault("LOCK_TTL", 10*time.Minute),
	}
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Port:    getEnvOrDefault("PORT", "8080"),
		GinMode: getEnvOrDefault("GIN_MODE", "release"),
	}
}

func validateConfig(config *Config) error {
	if config.AI.APIKey == "" {
		return errors.ConfigInvalid("API key is required for LLM provider " + config.AI.Provider)
	}
	if config.AI.Timeout <= 0 {
		return errors.ConfigInvalid("LLM_TIMEOUT must be positive")
	}
	if config.Analysis.MaxAge <= 0 {
		return errors.ConfigInvalid("ANALYSIS_MAX_AGE must be positive")
	}
	if config.Analysis.Workers < 1 {
		return errors.ConfigInvalid("ANALYSIS_WORKERS must be at least 1")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

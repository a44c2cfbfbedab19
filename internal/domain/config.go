package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Environment string         `mapstructure:"environment"`
	Server      ServerConfig   `mapstructure:"server"`
	Registry    RegistryConfig `mapstructure:"registry"`
	LLM         LLMConfig      `mapstructure:"llm"`
	Cache       CacheConfig    `mapstructure:"cache"`
	Matching    MatchingConfig `mapstructure:"matching"`
	Breaker     BreakerConfig  `mapstructure:"breaker"`
	Logging     LoggingConfig  `mapstructure:"logging"`
	MCP         MCPConfig      `mapstructure:"mcp"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	CORSOrigins  []string      `mapstructure:"cors_origins"`
}

// RegistryConfig represents the ClinicalTrials.gov client configuration
type RegistryConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit int           `mapstructure:"rate_limit"` // requests per second
	UserAgent string        `mapstructure:"user_agent"`
}

// LLM provider names
const (
	ProviderOllama    = "ollama"
	ProviderAnthropic = "anthropic"
)

// LLMConfig selects and configures the completion backend
type LLMConfig struct {
	Provider  string          `mapstructure:"provider"` // "ollama", "anthropic"
	Ollama    OllamaConfig    `mapstructure:"ollama"`
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
}

// OllamaConfig represents the local inference backend configuration
type OllamaConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Model      string        `mapstructure:"model"`
	Timeout    time.Duration `mapstructure:"timeout"`
	NumPredict int           `mapstructure:"num_predict"`
}

// AnthropicConfig represents the hosted backend configuration
type AnthropicConfig struct {
	APIKey    string        `mapstructure:"api_key"`
	Model     string        `mapstructure:"model"`
	BaseURL   string        `mapstructure:"base_url"`
	MaxTokens int           `mapstructure:"max_tokens"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// Cache backend names
const (
	CacheBackendFile   = "file"
	CacheBackendSQLite = "sqlite"
	CacheBackendRedis  = "redis"
	CacheBackendMemory = "memory"
)

// CacheConfig represents cache configuration
type CacheConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Backend     string        `mapstructure:"backend"`
	DefaultTTL  time.Duration `mapstructure:"default_ttl"`
	Dir         string        `mapstructure:"dir"`
	SQLitePath  string        `mapstructure:"sqlite_path"`
	RedisURL    string        `mapstructure:"redis_url"`
	PoolSize    int           `mapstructure:"pool_size"`
	PoolTimeout time.Duration `mapstructure:"pool_timeout"`
	MaxItems    int           `mapstructure:"max_items"`
}

// MatchingConfig represents matching orchestration limits and defaults
type MatchingConfig struct {
	MaxConcurrency   int     `mapstructure:"max_concurrency"`
	DefaultMaxTrials int     `mapstructure:"default_max_trials"`
	DefaultMinScore  float64 `mapstructure:"default_min_score"`
}

// BreakerConfig represents circuit breaker settings shared by outbound clients
type BreakerConfig struct {
	MaxRequests      uint32        `mapstructure:"max_requests"`
	Interval         time.Duration `mapstructure:"interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MCPConfig represents MCP server configuration
type MCPConfig struct {
	ServerName    string `mapstructure:"server_name"`
	ServerVersion string `mapstructure:"server_version"`
}

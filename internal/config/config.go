package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/trial-match-server/internal/domain"
)

// EnvPrefix is prepended to every environment override, e.g. TRIAL_MATCH_LLM_PROVIDER
const EnvPrefix = "TRIAL_MATCH"

// ConfigFileEnv names an explicit config file, overriding the search path
const ConfigFileEnv = EnvPrefix + "_CONFIG"

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	v      *viper.Viper
	config *domain.Config
}

// NewManager creates a new configuration manager from config.yaml, the
// environment and defaults
func NewManager() (*Manager, error) {
	return NewManagerFromFile(os.Getenv(ConfigFileEnv))
}

// NewManagerFromFile creates a configuration manager reading an explicit file.
// An empty path searches the default locations.
func NewManagerFromFile(path string) (*Manager, error) {
	m := &Manager{v: viper.New()}
	if err := m.loadConfig(path); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig(path string) error {
	v := m.v

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/trial-match-server/")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The hosted backend key is conventionally exported without the prefix
	if err := v.BindEnv("llm.anthropic.api_key", EnvPrefix+"_LLM_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY"); err != nil {
		return fmt.Errorf("error binding environment: %w", err)
	}

	m.setDefaults()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; using defaults and environment variables
	}

	config := &domain.Config{}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values
func (m *Manager) setDefaults() {
	v := m.v

	v.SetDefault("environment", "development")

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "10m")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000", "http://localhost:5173"})

	// Registry defaults
	v.SetDefault("registry.base_url", "https://clinicaltrials.gov/api/v2")
	v.SetDefault("registry.timeout", "30s")
	v.SetDefault("registry.rate_limit", 5)
	v.SetDefault("registry.user_agent", "ClinicalTrialsMatchingApp/1.0 (Educational/Research Purpose)")

	// LLM defaults
	v.SetDefault("llm.provider", domain.ProviderOllama)
	v.SetDefault("llm.ollama.base_url", "http://localhost:11434")
	v.SetDefault("llm.ollama.model", "llama3.1:8b")
	v.SetDefault("llm.ollama.timeout", "120s")
	v.SetDefault("llm.ollama.num_predict", 2000)
	v.SetDefault("llm.anthropic.api_key", "")
	v.SetDefault("llm.anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("llm.anthropic.base_url", "")
	v.SetDefault("llm.anthropic.max_tokens", 2000)
	v.SetDefault("llm.anthropic.timeout", "120s")

	// Cache defaults
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.backend", domain.CacheBackendFile)
	v.SetDefault("cache.default_ttl", "24h")
	v.SetDefault("cache.dir", "./cache")
	v.SetDefault("cache.sqlite_path", "./cache/trials.db")
	v.SetDefault("cache.redis_url", "redis://localhost:6379")
	v.SetDefault("cache.pool_size", 10)
	v.SetDefault("cache.pool_timeout", "4s")
	v.SetDefault("cache.max_items", 1000)

	// Matching defaults
	v.SetDefault("matching.max_concurrency", 4)
	v.SetDefault("matching.default_max_trials", 10)
	v.SetDefault("matching.default_min_score", 0.0)

	// Circuit breaker defaults
	v.SetDefault("breaker.max_requests", 3)
	v.SetDefault("breaker.interval", "60s")
	v.SetDefault("breaker.timeout", "30s")
	v.SetDefault("breaker.failure_threshold", 5)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	// MCP defaults
	v.SetDefault("mcp.server_name", "trial-match-server")
	v.SetDefault("mcp.server_version", "1.0.0")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetLLMConfig returns LLM backend configuration
func (m *Manager) GetLLMConfig() *domain.LLMConfig {
	return &m.config.LLM
}

// GetCacheConfig returns cache configuration
func (m *Manager) GetCacheConfig() *domain.CacheConfig {
	return &m.config.Cache
}

// Validate validates the configuration. Every failure is a *domain.ConfigurationError.
func (m *Manager) Validate() error {
	return Validate(m.config)
}

// Validate checks a configuration built by hand or loaded by a Manager
func Validate(config *domain.Config) error {
	if config == nil {
		return domain.NewConfigurationError("", "configuration is nil")
	}

	// Validate server configuration
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return domain.NewConfigurationError("server.port", fmt.Sprintf("invalid server port: %d", config.Server.Port))
	}

	// Validate registry configuration
	if config.Registry.BaseURL == "" {
		return domain.NewConfigurationError("registry.base_url", "registry base URL is required")
	}
	if config.Registry.Timeout <= 0 {
		return domain.NewConfigurationError("registry.timeout", "registry timeout must be positive")
	}

	// Validate the selected LLM backend
	switch strings.ToLower(config.LLM.Provider) {
	case domain.ProviderOllama:
		if config.LLM.Ollama.BaseURL == "" {
			return domain.NewConfigurationError("llm.ollama.base_url", "Ollama base URL is required")
		}
		if config.LLM.Ollama.Model == "" {
			return domain.NewConfigurationError("llm.ollama.model", "Ollama model is required")
		}
	case domain.ProviderAnthropic:
		if config.LLM.Anthropic.APIKey == "" {
			return domain.NewConfigurationError("llm.anthropic.api_key", "ANTHROPIC_API_KEY is required for the anthropic provider")
		}
		if config.LLM.Anthropic.MaxTokens <= 0 {
			return domain.NewConfigurationError("llm.anthropic.max_tokens", "max tokens must be positive")
		}
	default:
		return domain.NewConfigurationError("llm.provider", fmt.Sprintf("unknown LLM provider: %q", config.LLM.Provider))
	}

	// Validate cache configuration
	if config.Cache.Enabled {
		if config.Cache.DefaultTTL <= 0 {
			return domain.NewConfigurationError("cache.default_ttl", "cache TTL must be positive")
		}
		switch config.Cache.Backend {
		case domain.CacheBackendFile:
			if config.Cache.Dir == "" {
				return domain.NewConfigurationError("cache.dir", "cache directory is required")
			}
		case domain.CacheBackendSQLite:
			if config.Cache.SQLitePath == "" {
				return domain.NewConfigurationError("cache.sqlite_path", "SQLite path is required")
			}
		case domain.CacheBackendRedis:
			if config.Cache.RedisURL == "" {
				return domain.NewConfigurationError("cache.redis_url", "Redis URL is required")
			}
		case domain.CacheBackendMemory:
			if config.Cache.MaxItems <= 0 {
				return domain.NewConfigurationError("cache.max_items", "max items must be positive")
			}
		default:
			return domain.NewConfigurationError("cache.backend", fmt.Sprintf("unknown cache backend: %q", config.Cache.Backend))
		}
	}

	// Validate matching limits
	if config.Matching.MaxConcurrency <= 0 {
		return domain.NewConfigurationError("matching.max_concurrency", "max concurrency must be positive")
	}
	if config.Matching.DefaultMinScore < 0 || config.Matching.DefaultMinScore > 1 {
		return domain.NewConfigurationError("matching.default_min_score", "default min score must be within [0, 1]")
	}

	// Validate logging configuration
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return domain.NewConfigurationError("logging.level", fmt.Sprintf("invalid log level: %s", config.Logging.Level))
	}

	return nil
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(m.config.Environment) == "production"
}

// IsDevelopment returns true if running in development mode
func (m *Manager) IsDevelopment() bool {
	env := strings.ToLower(m.config.Environment)
	return env == "development" || env == "dev" || env == ""
}

package domain

import (
	"context"
	"encoding/json"
)

// ResultCache is a TTL-bounded store of registry payloads keyed by query fingerprint.
// Failures never surface to callers: an unreadable entry is a miss and a failed
// write is logged and dropped.
type ResultCache interface {
	Get(ctx context.Context, fingerprint string) (json.RawMessage, bool)
	Put(ctx context.Context, fingerprint string, payload any)
}

// TrialRegistry searches and looks up normalized clinical trials
type TrialRegistry interface {
	SearchTrials(ctx context.Context, query TrialQuery) ([]Trial, error)
	GetTrialByID(ctx context.Context, nctID string) (*Trial, error)
}

// LLMBackend turns a prompt into raw completion text
type LLMBackend interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Name() string
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	GetLLMConfig() *LLMConfig
	GetCacheConfig() *CacheConfig
	Validate() error
	IsProduction() bool
	IsDevelopment() bool
}

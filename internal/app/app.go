// Package app builds the matching pipeline once from an explicit configuration
// and hands it to the HTTP and MCP front ends.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/trial-match-server/internal/cache"
	"github.com/trial-match-server/internal/domain"
	"github.com/trial-match-server/internal/service"
	"github.com/trial-match-server/pkg/external"
	"github.com/trial-match-server/pkg/llm"
)

// App holds every long-lived component of the server
type App struct {
	Config   *domain.Config
	Logger   *logrus.Logger
	Cache    cache.Cache
	Registry *external.TrialRegistryGateway
	Backend  domain.LLMBackend
	Matcher  *service.TrialMatcher
	Matching *service.MatchingService
}

// Option overrides a component during construction
type Option func(*buildOptions)

type buildOptions struct {
	cache   cache.Cache
	backend domain.LLMBackend
	source  external.StudySource
}

// WithCache supplies a prebuilt result cache
func WithCache(c cache.Cache) Option {
	return func(o *buildOptions) { o.cache = c }
}

// WithBackend supplies a prebuilt LLM backend
func WithBackend(b domain.LLMBackend) Option {
	return func(o *buildOptions) { o.backend = b }
}

// WithStudySource supplies the raw registry transport
func WithStudySource(s external.StudySource) Option {
	return func(o *buildOptions) { o.source = s }
}

// New wires the cache, registry gateway, LLM backend and matching services.
// Configuration problems are returned as *domain.ConfigurationError.
func New(cfg *domain.Config, logger *logrus.Logger, opts ...Option) (*App, error) {
	o := &buildOptions{}
	for _, opt := range opts {
		opt(o)
	}

	resultCache := o.cache
	if resultCache == nil {
		var err error
		resultCache, err = cache.New(cfg.Cache, logger)
		if err != nil {
			return nil, err
		}
	}

	if purger, ok := resultCache.(*cache.SQLiteCache); ok {
		removed, err := purger.Purge(context.Background())
		if err != nil {
			logger.WithError(err).Warn("Failed to purge expired cache entries")
		} else if removed > 0 {
			logger.WithField("removed", removed).Info("Purged expired cache entries")
		}
	}

	backend := o.backend
	if backend == nil {
		var err error
		backend, err = llm.NewBackend(cfg.LLM, cfg.Breaker, logger)
		if err != nil {
			resultCache.Close()
			return nil, err
		}
	}

	source := o.source
	if source == nil {
		source = external.NewClinicalTrialsClient(cfg.Registry)
	}

	registry := external.NewTrialRegistryGateway(source, resultCache, cfg.Breaker, logger)
	matcher := service.NewTrialMatcher(backend, logger, cfg.Matching.MaxConcurrency)

	logger.WithFields(logrus.Fields{
		"environment":     cfg.Environment,
		"llm_provider":    backend.Name(),
		"cache_enabled":   cfg.Cache.Enabled,
		"max_concurrency": cfg.Matching.MaxConcurrency,
	}).Info("Matching pipeline initialized")

	return &App{
		Config:   cfg,
		Logger:   logger,
		Cache:    resultCache,
		Registry: registry,
		Backend:  backend,
		Matcher:  matcher,
		Matching: service.NewMatchingService(registry, matcher, logger),
	}, nil
}

// Health describes the pipeline for health endpoints
type Health struct {
	Status           string `json:"status"`
	Environment      string `json:"environment"`
	LLMProvider      string `json:"llm_provider"`
	LLMBreaker       string `json:"llm_breaker,omitempty"`
	AnthropicKeySet  bool   `json:"anthropic_api_key_configured"`
	CacheEnabled     bool   `json:"cache_enabled"`
	CacheBackend     string `json:"cache_backend,omitempty"`
	MCPServerName    string `json:"mcp_server_name"`
	MCPServerVersion string `json:"version"`
}

// Health reports the configured pipeline
func (a *App) Health() Health {
	h := Health{
		Status:           "healthy",
		Environment:      a.Config.Environment,
		LLMProvider:      a.Backend.Name(),
		AnthropicKeySet:  strings.TrimSpace(a.Config.LLM.Anthropic.APIKey) != "",
		CacheEnabled:     a.Config.Cache.Enabled,
		MCPServerName:    a.Config.MCP.ServerName,
		MCPServerVersion: a.Config.MCP.ServerVersion,
	}
	if a.Config.Cache.Enabled {
		h.CacheBackend = a.Config.Cache.Backend
	}
	if b, ok := a.Backend.(*llm.BreakerBackend); ok {
		h.LLMBreaker = b.State()
	}
	return h
}

// Close releases the cache
func (a *App) Close() error {
	if err := a.Cache.Close(); err != nil {
		return fmt.Errorf("failed to close cache: %w", err)
	}
	return nil
}

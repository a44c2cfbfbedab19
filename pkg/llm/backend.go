// Package llm provides the completion backends used to judge trial eligibility.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/trial-match-server/internal/domain"
	"github.com/trial-match-server/internal/resilience"
)

// NewBackend builds the backend named by cfg.Provider and wraps it in a
// circuit breaker. Missing credentials or endpoints fail fast with a
// *domain.ConfigurationError.
func NewBackend(cfg domain.LLMConfig, breakerCfg domain.BreakerConfig, logger *logrus.Logger) (domain.LLMBackend, error) {
	var (
		backend domain.LLMBackend
		err     error
	)

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case domain.ProviderOllama:
		backend, err = NewOllamaBackend(cfg.Ollama, logger)
	case domain.ProviderAnthropic:
		backend, err = NewAnthropicBackend(cfg.Anthropic, logger)
	default:
		return nil, domain.NewConfigurationError("llm.provider", fmt.Sprintf("unknown LLM provider: %q", cfg.Provider))
	}
	if err != nil {
		return nil, err
	}

	logger.WithField("provider", backend.Name()).Info("LLM backend configured")
	return NewBreakerBackend(backend, breakerCfg, logger), nil
}

// BreakerBackend rejects calls without touching the network while the wrapped
// backend is failing
type BreakerBackend struct {
	next    domain.LLMBackend
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerBackend wraps next in a circuit breaker
func NewBreakerBackend(next domain.LLMBackend, cfg domain.BreakerConfig, logger *logrus.Logger) *BreakerBackend {
	return &BreakerBackend{
		next:    next,
		breaker: resilience.NewCircuitBreaker("llm-"+next.Name(), cfg, logger),
	}
}

// Name returns the wrapped backend's name
func (b *BreakerBackend) Name() string {
	return b.next.Name()
}

// Complete delegates to the wrapped backend through the breaker
func (b *BreakerBackend) Complete(ctx context.Context, prompt string) (string, error) {
	result, err := b.breaker.Execute(func() (interface{}, error) {
		return b.next.Complete(ctx, prompt)
	})
	if err != nil {
		if resilience.IsBreakerRejection(err) {
			return "", domain.NewBackendUnavailableError(b.next.Name(), 0, "circuit open", err)
		}
		return "", err
	}
	return result.(string), nil
}

// State reports the breaker state for health output
func (b *BreakerBackend) State() string {
	return b.breaker.State().String()
}

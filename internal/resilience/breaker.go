// Package resilience builds the circuit breakers that guard the registry and
// LLM backends.
package resilience

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/trial-match-server/internal/domain"
)

// NewCircuitBreaker builds a breaker that opens after FailureThreshold
// consecutive failures. Zero values in cfg fall back to defaults.
func NewCircuitBreaker(name string, cfg domain.BreakerConfig, logger *logrus.Logger) *gobreaker.CircuitBreaker {
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 3
	}
	if cfg.Interval == 0 {
		cfg.Interval = 60 * time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:         name,
		MaxRequests:  cfg.MaxRequests,
		Interval:     cfg.Interval,
		Timeout:      cfg.Timeout,
		IsSuccessful: IsHealthyOutcome,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"circuit_breaker": name,
				"from_state":      from.String(),
				"to_state":        to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})
}

// IsHealthyOutcome reports whether a call result says nothing bad about the
// service behind the breaker. Caller cancellations and registry client errors
// (4xx other than 429) still reach the caller but are not counted as failures.
func IsHealthyOutcome(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return true
	}

	var fetchErr *domain.RegistryFetchError
	if errors.As(err, &fetchErr) {
		status := fetchErr.StatusCode
		return status >= 400 && status < 500 && status != http.StatusTooManyRequests
	}
	return false
}

// IsBreakerRejection reports whether err came from an open or saturated breaker
func IsBreakerRejection(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

package external

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/trial-match-server/internal/cache"
	"github.com/trial-match-server/internal/domain"
	"github.com/trial-match-server/internal/resilience"
)

// StudySource is the raw registry transport consumed by the gateway
type StudySource interface {
	SearchStudies(ctx context.Context, query domain.TrialQuery) ([]json.RawMessage, error)
	GetStudy(ctx context.Context, nctID string) (json.RawMessage, bool, error)
}

// TrialRegistryGateway serves normalized trials, consulting the result cache
// before contacting the registry
type TrialRegistryGateway struct {
	source  StudySource
	cache   domain.ResultCache
	breaker *gobreaker.CircuitBreaker
	logger  *logrus.Logger
}

// NewTrialRegistryGateway creates a gateway over source. A nil cache disables caching.
func NewTrialRegistryGateway(source StudySource, resultCache domain.ResultCache, breakerCfg domain.BreakerConfig, logger *logrus.Logger) *TrialRegistryGateway {
	if resultCache == nil {
		resultCache = cache.NewNoopCache()
	}
	return &TrialRegistryGateway{
		source:  source,
		cache:   resultCache,
		breaker: resilience.NewCircuitBreaker("ClinicalTrials.gov", breakerCfg, logger),
		logger:  logger,
	}
}

// SearchTrials returns the trials matching query, never nil on success.
// Individual records that fail to normalize are logged and skipped.
func (g *TrialRegistryGateway) SearchTrials(ctx context.Context, query domain.TrialQuery) ([]domain.Trial, error) {
	fingerprint := cache.SearchFingerprint(query)
	logFields := logrus.Fields{
		"condition":       query.Condition,
		"keywords":        query.Keywords,
		"max_results":     query.MaxResults,
		"recruiting_only": query.RecruitingOnly,
	}

	if raw, ok := g.cache.Get(ctx, fingerprint); ok {
		var trials []domain.Trial
		err := json.Unmarshal(raw, &trials)
		if err == nil {
			if trials == nil {
				trials = []domain.Trial{}
			}
			g.logger.WithFields(logFields).WithField("count", len(trials)).Debug("Loaded trials from cache")
			return trials, nil
		}
		g.logger.WithError(err).WithFields(logFields).Warn("Cached search payload unreadable, refetching")
	}

	start := time.Now()
	result, err := g.breaker.Execute(func() (interface{}, error) {
		return g.source.SearchStudies(ctx, query)
	})
	if err != nil {
		g.logger.WithError(err).WithFields(logFields).Error("Trial search failed")
		return nil, asRegistryError("search studies", err)
	}
	studies := result.([]json.RawMessage)

	trials := make([]domain.Trial, 0, len(studies))
	for i, raw := range studies {
		trial, err := NormalizeStudy(raw)
		if err != nil {
			malformed := &domain.MalformedRecordError{Index: i, Err: err}
			g.logger.WithError(malformed).WithFields(logFields).Warn("Skipping malformed study record")
			continue
		}
		trials = append(trials, trial)
	}

	g.cache.Put(ctx, fingerprint, trials)

	g.logger.WithFields(logFields).WithFields(logrus.Fields{
		"count":       len(trials),
		"skipped":     len(studies) - len(trials),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Fetched trials from registry")

	return trials, nil
}

// GetTrialByID returns the trial with nctID, or nil when the registry has no such trial
func (g *TrialRegistryGateway) GetTrialByID(ctx context.Context, nctID string) (*domain.Trial, error) {
	fingerprint := cache.TrialFingerprint(nctID)

	if raw, ok := g.cache.Get(ctx, fingerprint); ok {
		var trial domain.Trial
		if err := json.Unmarshal(raw, &trial); err == nil && trial.NCTID != "" {
			g.logger.WithField("nct_id", nctID).Debug("Loaded trial from cache")
			return &trial, nil
		}
		g.logger.WithField("nct_id", nctID).Warn("Cached trial payload unreadable, refetching")
	}

	type lookup struct {
		raw   json.RawMessage
		found bool
	}
	result, err := g.breaker.Execute(func() (interface{}, error) {
		raw, found, err := g.source.GetStudy(ctx, nctID)
		return lookup{raw: raw, found: found}, err
	})
	if err != nil {
		g.logger.WithError(err).WithField("nct_id", nctID).Error("Trial lookup failed")
		return nil, asRegistryError("get study "+nctID, err)
	}

	found := result.(lookup)
	if !found.found {
		g.logger.WithField("nct_id", nctID).Warn("Trial not found")
		return nil, nil
	}

	trial, err := NormalizeStudy(found.raw)
	if err != nil {
		return nil, &domain.MalformedRecordError{NCTID: nctID, Err: err}
	}

	g.cache.Put(ctx, fingerprint, trial)
	return &trial, nil
}

// asRegistryError keeps registry errors typed, including breaker rejections
func asRegistryError(operation string, err error) error {
	if domain.IsRegistryFetch(err) {
		return err
	}
	if resilience.IsBreakerRejection(err) {
		return domain.NewRegistryFetchError(operation, 0, fmt.Errorf("registry circuit open: %w", err))
	}
	return domain.NewRegistryFetchError(operation, 0, err)
}

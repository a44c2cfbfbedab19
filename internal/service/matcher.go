package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/trial-match-server/internal/domain"
)

// DefaultMaxConcurrency bounds concurrent backend calls when none is configured
const DefaultMaxConcurrency = 4

// TrialMatcher evaluates a patient against trials through an LLM backend
type TrialMatcher struct {
	backend     domain.LLMBackend
	interpreter *ResponseInterpreter
	logger      *logrus.Logger

	// Limits concurrent backend calls
	matchSemaphore chan struct{}
}

// NewTrialMatcher creates a matcher that runs at most maxConcurrency backend
// calls at a time.
func NewTrialMatcher(backend domain.LLMBackend, logger *logrus.Logger, maxConcurrency int) *TrialMatcher {
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}
	return &TrialMatcher{
		backend:        backend,
		interpreter:    NewResponseInterpreter(logger),
		logger:         logger,
		matchSemaphore: make(chan struct{}, maxConcurrency),
	}
}

// MatchOne judges a single trial. Backend failures are returned unchanged;
// unreadable model output yields the fallback verdict instead of an error.
func (m *TrialMatcher) MatchOne(ctx context.Context, patient *domain.PatientRecord, trial *domain.Trial) (*domain.MatchResult, error) {
	start := time.Now()
	prompt := RenderPrompt(patient, trial)

	raw, err := m.backend.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	verdict := m.interpreter.Interpret(raw)
	if verdict.HasInconsistentEligibility() {
		m.logger.WithFields(logrus.Fields{
			"nct_id":               trial.NCTID,
			"exclusion_violations": len(verdict.ExclusionViolations),
		}).Warn("Verdict marks patient eligible despite exclusion violations")
	}

	m.logger.WithFields(logrus.Fields{
		"nct_id":      trial.NCTID,
		"backend":     m.backend.Name(),
		"match_score": verdict.MatchScore,
		"is_eligible": verdict.IsEligible,
		"duration":    time.Since(start),
	}).Debug("Trial evaluated")

	return &domain.MatchResult{Trial: *trial, MatchVerdict: verdict}, nil
}

// MatchMany judges every trial independently and returns the results scoring
// at least minScore, best first. Ties keep input order. A trial whose
// evaluation fails is logged and left out, so the result may be empty but
// never nil.
func (m *TrialMatcher) MatchMany(ctx context.Context, patient *domain.PatientRecord, trials []domain.Trial, minScore float64) []domain.MatchResult {
	if len(trials) == 0 {
		return []domain.MatchResult{}
	}

	slots := make([]*domain.MatchResult, len(trials))
	var wg sync.WaitGroup
	var mu sync.Mutex
	failed := 0

	m.logger.WithField("trial_count", len(trials)).Info("Starting trial matching")

	for idx := range trials {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			select {
			case m.matchSemaphore <- struct{}{}:
				defer func() { <-m.matchSemaphore }()
			case <-ctx.Done():
				mu.Lock()
				failed++
				mu.Unlock()
				return
			}

			// Cancellation may have raced with the semaphore
			if ctx.Err() != nil {
				mu.Lock()
				failed++
				mu.Unlock()
				return
			}

			result, err := m.MatchOne(ctx, patient, &trials[i])
			if err != nil {
				m.logger.WithFields(logrus.Fields{
					"nct_id": trials[i].NCTID,
					"error":  err.Error(),
				}).Warn("Skipping trial after evaluation failure")
				mu.Lock()
				failed++
				mu.Unlock()
				return
			}

			// Each goroutine owns its slot
			slots[i] = result
		}(idx)
	}

	wg.Wait()

	results := make([]domain.MatchResult, 0, len(trials))
	for _, r := range slots {
		if r != nil && r.MatchScore >= minScore {
			results = append(results, *r)
		}
	}

	sort.SliceStable(results, func(a, b int) bool {
		return results[a].MatchScore > results[b].MatchScore
	})

	m.logger.WithFields(logrus.Fields{
		"trial_count": len(trials),
		"failed":      failed,
		"matched":     len(results),
		"min_score":   minScore,
	}).Info("Trial matching completed")

	return results
}

// MatchingService exposes the matching use-cases to the HTTP and MCP adapters
type MatchingService struct {
	registry domain.TrialRegistry
	matcher  *TrialMatcher
	logger   *logrus.Logger
}

// NewMatchingService creates a new matching service
func NewMatchingService(registry domain.TrialRegistry, matcher *TrialMatcher, logger *logrus.Logger) *MatchingService {
	return &MatchingService{
		registry: registry,
		matcher:  matcher,
		logger:   logger,
	}
}

// SearchTrials passes the query through to the registry
func (s *MatchingService) SearchTrials(ctx context.Context, query domain.TrialQuery) ([]domain.Trial, error) {
	return s.registry.SearchTrials(ctx, query)
}

// GetTrial returns the trial or a *domain.NotFoundError
func (s *MatchingService) GetTrial(ctx context.Context, nctID string) (*domain.Trial, error) {
	trial, err := s.registry.GetTrialByID(ctx, nctID)
	if err != nil {
		return nil, err
	}
	if trial == nil {
		return nil, &domain.NotFoundError{Resource: "trial", ID: nctID}
	}
	return trial, nil
}

// MatchCondition searches recruiting trials for condition and ranks them for
// the patient. Registry failures propagate.
func (s *MatchingService) MatchCondition(ctx context.Context, patient *domain.PatientRecord, condition string, maxTrials int, minScore float64) ([]domain.MatchResult, error) {
	if err := patient.Validate(); err != nil {
		return nil, err
	}

	trials, err := s.registry.SearchTrials(ctx, domain.TrialQuery{
		Condition:      condition,
		MaxResults:     maxTrials,
		RecruitingOnly: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search trials for %q: %w", condition, err)
	}

	s.logger.WithFields(logrus.Fields{
		"condition":   condition,
		"trial_count": len(trials),
	}).Info("Found candidate trials")

	if len(trials) == 0 {
		return []domain.MatchResult{}, nil
	}

	return s.matcher.MatchMany(ctx, patient, trials, minScore), nil
}

// MatchTrial judges the patient against one trial looked up by NCT ID
func (s *MatchingService) MatchTrial(ctx context.Context, patient *domain.PatientRecord, nctID string) (*domain.MatchResult, error) {
	if err := patient.Validate(); err != nil {
		return nil, err
	}

	trial, err := s.GetTrial(ctx, nctID)
	if err != nil {
		return nil, err
	}

	result, err := s.matcher.MatchOne(ctx, patient, trial)
	if err != nil {
		return nil, fmt.Errorf("failed to match trial %s: %w", nctID, err)
	}
	return result, nil
}

package domain

import (
	"encoding/json"
	"time"
)

// MaxTrialLocations is the number of locations retained per trial
const MaxTrialLocations = 5

// Trial represents a normalized clinical trial from the registry
type Trial struct {
	NCTID               string   `json:"nct_id"`
	Title               string   `json:"title"`
	BriefSummary        string   `json:"brief_summary,omitempty"`
	EligibilityCriteria string   `json:"eligibility_criteria"`
	MinimumAge          string   `json:"minimum_age,omitempty"`
	MaximumAge          string   `json:"maximum_age,omitempty"`
	Gender              string   `json:"gender,omitempty"`
	Phase               string   `json:"phase,omitempty"`
	Enrollment          *int     `json:"enrollment,omitempty"`
	Status              string   `json:"status,omitempty"`
	Locations           []string `json:"locations"`
	Conditions          []string `json:"conditions"`
	Interventions       []string `json:"interventions"`
}

// TrialQuery holds the registry search filters
type TrialQuery struct {
	Condition      string `json:"condition,omitempty"`
	Keywords       string `json:"keywords,omitempty"`
	MaxResults     int    `json:"max_results"`
	RecruitingOnly bool   `json:"recruiting_only"`
}

// MatchVerdict is the structured eligibility judgment interpreted from LLM output
type MatchVerdict struct {
	IsEligible          bool     `json:"is_eligible"`
	MatchScore          float64  `json:"match_score"`
	InclusionMatches    []string `json:"inclusion_matches"`
	InclusionMismatches []string `json:"inclusion_mismatches"`
	ExclusionViolations []string `json:"exclusion_violations"`
	ExclusionPasses     []string `json:"exclusion_passes"`
	Explanation         string   `json:"explanation"`
	Reasoning           string   `json:"reasoning,omitempty"`
}

// HasInconsistentEligibility reports an eligible verdict that also lists exclusion violations
func (v *MatchVerdict) HasInconsistentEligibility() bool {
	return v.IsEligible && len(v.ExclusionViolations) > 0
}

// MatchResult pairs a trial with the verdict produced for it
type MatchResult struct {
	Trial Trial `json:"trial"`
	MatchVerdict
}

// CacheEntry is the persisted envelope for a cached registry payload
type CacheEntry struct {
	Fingerprint string          `json:"fingerprint"`
	CreatedAt   time.Time       `json:"created_at"`
	Payload     json.RawMessage `json:"payload"`
}

// Expired reports whether the entry is older than ttl at now
func (e *CacheEntry) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.CreatedAt) > ttl
}

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/trial-match-server/internal/domain"
)

// Tool names
const (
	ToolSearchTrials        = "search_trials"
	ToolGetTrial            = "get_trial"
	ToolMatchPatient        = "match_patient"
	ToolMatchPatientToTrial = "match_patient_to_trial"
)

// Tool argument bounds
const (
	defaultSearchResults = 20
	maxSearchResults     = 100
	maxMatchTrials       = 50
)

// SearchTrialsParams defines parameters for search_trials tool
type SearchTrialsParams struct {
	Condition      string `json:"condition,omitempty" jsonschema:"medical condition to search for"`
	Keywords       string `json:"keywords,omitempty" jsonschema:"additional search keywords"`
	MaxResults     int    `json:"max_results,omitempty" jsonschema:"maximum number of trials (1-100, default 20)"`
	RecruitingOnly *bool  `json:"recruiting_only,omitempty" jsonschema:"only recruiting trials (default true)"`
}

// SearchTrialsResult defines the result structure for search_trials tool
type SearchTrialsResult struct {
	Count  int            `json:"count"`
	Trials []domain.Trial `json:"trials"`
}

// GetTrialParams defines parameters for get_trial tool
type GetTrialParams struct {
	NCTID string `json:"nct_id" jsonschema:"NCT identifier, e.g. NCT01234567"`
}

// GetTrialResult defines the result structure for get_trial tool
type GetTrialResult struct {
	Trial domain.Trial `json:"trial"`
}

// MatchPatientParams defines parameters for match_patient tool
type MatchPatientParams struct {
	Patient   domain.PatientRecord `json:"patient" jsonschema:"structured patient record"`
	Condition string               `json:"condition" jsonschema:"condition used to find candidate trials"`
	MaxTrials int                  `json:"max_trials,omitempty" jsonschema:"maximum trials to evaluate (1-50)"`
	MinScore  *float64             `json:"min_score,omitempty" jsonschema:"minimum match score to keep (0-1)"`
}

// MatchPatientResult defines the result structure for match_patient tool
type MatchPatientResult struct {
	Condition string               `json:"condition"`
	Count     int                  `json:"count"`
	Matches   []domain.MatchResult `json:"matches"`
}

// MatchPatientToTrialParams defines parameters for match_patient_to_trial tool
type MatchPatientToTrialParams struct {
	Patient domain.PatientRecord `json:"patient" jsonschema:"structured patient record"`
	NCTID   string               `json:"nct_id" jsonschema:"NCT identifier of the trial"`
}

// MatchPatientToTrialResult defines the result structure for match_patient_to_trial tool
type MatchPatientToTrialResult struct {
	Match domain.MatchResult `json:"match"`
}

// handleSearchTrials handles the search_trials tool invocation
func (s *Server) handleSearchTrials(ctx context.Context, req *mcp.CallToolRequest, params SearchTrialsParams) (*mcp.CallToolResult, SearchTrialsResult, error) {
	s.logger.WithField("tool", ToolSearchTrials).Info("Tool invoked")

	query := domain.TrialQuery{
		Condition:      strings.TrimSpace(params.Condition),
		Keywords:       strings.TrimSpace(params.Keywords),
		MaxResults:     params.MaxResults,
		RecruitingOnly: true,
	}
	if query.Condition == "" && query.Keywords == "" {
		return s.createErrorResult("Invalid arguments", fmt.Errorf("at least one of 'condition' or 'keywords' must be provided")), SearchTrialsResult{}, nil
	}
	if query.MaxResults == 0 {
		query.MaxResults = defaultSearchResults
	}
	if query.MaxResults < 1 || query.MaxResults > maxSearchResults {
		return s.createErrorResult("Invalid arguments", fmt.Errorf("max_results must be between 1 and %d", maxSearchResults)), SearchTrialsResult{}, nil
	}
	if params.RecruitingOnly != nil {
		query.RecruitingOnly = *params.RecruitingOnly
	}

	trials, err := s.matching.SearchTrials(ctx, query)
	if err != nil {
		return s.createErrorResult("Trial search failed", err), SearchTrialsResult{}, nil
	}

	result := SearchTrialsResult{Count: len(trials), Trials: trials}
	return s.createResult(fmt.Sprintf("Found %d trials", len(trials)), result), result, nil
}

// handleGetTrial handles the get_trial tool invocation
func (s *Server) handleGetTrial(ctx context.Context, req *mcp.CallToolRequest, params GetTrialParams) (*mcp.CallToolResult, GetTrialResult, error) {
	s.logger.WithField("tool", ToolGetTrial).Info("Tool invoked")

	nctID := strings.TrimSpace(params.NCTID)
	if nctID == "" {
		return s.createErrorResult("Missing required parameter", fmt.Errorf("nct_id is required")), GetTrialResult{}, nil
	}

	trial, err := s.matching.GetTrial(ctx, nctID)
	if err != nil {
		return s.createErrorResult("Trial lookup failed", err), GetTrialResult{}, nil
	}

	result := GetTrialResult{Trial: *trial}
	return s.createResult(fmt.Sprintf("Trial %s: %s", trial.NCTID, trial.Title), result), result, nil
}

// handleMatchPatient handles the match_patient tool invocation
func (s *Server) handleMatchPatient(ctx context.Context, req *mcp.CallToolRequest, params MatchPatientParams) (*mcp.CallToolResult, MatchPatientResult, error) {
	s.logger.WithField("tool", ToolMatchPatient).Info("Tool invoked")

	condition := strings.TrimSpace(params.Condition)
	if condition == "" {
		return s.createErrorResult("Missing required parameter", fmt.Errorf("condition is required")), MatchPatientResult{}, nil
	}

	maxTrials := params.MaxTrials
	if maxTrials == 0 {
		maxTrials = s.config.Matching.DefaultMaxTrials
	}
	if maxTrials < 1 || maxTrials > maxMatchTrials {
		return s.createErrorResult("Invalid arguments", fmt.Errorf("max_trials must be between 1 and %d", maxMatchTrials)), MatchPatientResult{}, nil
	}

	minScore := s.config.Matching.DefaultMinScore
	if params.MinScore != nil {
		minScore = *params.MinScore
	}
	if minScore < 0 || minScore > 1 {
		return s.createErrorResult("Invalid arguments", fmt.Errorf("min_score must be between 0 and 1")), MatchPatientResult{}, nil
	}

	matches, err := s.matching.MatchCondition(ctx, &params.Patient, condition, maxTrials, minScore)
	if err != nil {
		return s.createErrorResult("Matching failed", err), MatchPatientResult{}, nil
	}

	result := MatchPatientResult{Condition: condition, Count: len(matches), Matches: matches}
	return s.createResult(fmt.Sprintf("Matched patient to %d trials for %q", len(matches), condition), result), result, nil
}

// handleMatchPatientToTrial handles the match_patient_to_trial tool invocation
func (s *Server) handleMatchPatientToTrial(ctx context.Context, req *mcp.CallToolRequest, params MatchPatientToTrialParams) (*mcp.CallToolResult, MatchPatientToTrialResult, error) {
	s.logger.WithField("tool", ToolMatchPatientToTrial).Info("Tool invoked")

	nctID := strings.TrimSpace(params.NCTID)
	if nctID == "" {
		return s.createErrorResult("Missing required parameter", fmt.Errorf("nct_id is required")), MatchPatientToTrialResult{}, nil
	}

	match, err := s.matching.MatchTrial(ctx, &params.Patient, nctID)
	if err != nil {
		return s.createErrorResult("Matching failed", err), MatchPatientToTrialResult{}, nil
	}

	result := MatchPatientToTrialResult{Match: *match}
	summary := fmt.Sprintf("Trial %s: score %.2f, eligible=%t", nctID, match.MatchScore, match.IsEligible)
	return s.createResult(summary, result), result, nil
}

// createResult renders a summary line followed by the JSON payload
func (s *Server) createResult(summary string, payload any) *mcp.CallToolResult {
	text := summary
	if data, err := json.MarshalIndent(payload, "", "  "); err == nil {
		text += "\n\n" + string(data)
	} else {
		s.logger.WithError(err).Warn("Failed to encode tool result")
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

// createErrorResult creates a standardized error result for tool calls
func (s *Server) createErrorResult(message string, err error) *mcp.CallToolResult {
	errorText := fmt.Sprintf("Error: %s", message)
	if err != nil {
		errorText += fmt.Sprintf(" - %v", err)
		s.logger.WithError(err).Warn(message)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: errorText},
		},
		IsError: true,
	}
}

package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/trial-match-server/internal/domain"
)

const (
	// DefaultExplanation is used when the model omits an explanation
	DefaultExplanation = "Unable to determine eligibility"
	// FallbackExplanation marks a verdict produced because the output was unusable
	FallbackExplanation = "Error processing eligibility criteria"

	fallbackReasoningPrefix = "LLM response parsing error: "
	excerptLimit            = 200
)

// ResponseInterpreter turns free-form model output into a MatchVerdict
type ResponseInterpreter struct {
	logger *logrus.Logger
}

// NewResponseInterpreter creates a new interpreter
func NewResponseInterpreter(logger *logrus.Logger) *ResponseInterpreter {
	return &ResponseInterpreter{logger: logger}
}

// Interpret never fails. Unusable output is logged and replaced with the
// fallback verdict.
func (i *ResponseInterpreter) Interpret(raw string) domain.MatchVerdict {
	verdict, err := ParseVerdict(raw)
	if err != nil {
		var parseErr *domain.VerdictParseError
		fields := logrus.Fields{"error": err.Error()}
		if errors.As(err, &parseErr) {
			fields["excerpt"] = parseErr.Excerpt
		}
		i.logger.WithFields(fields).Warn("Could not interpret LLM response, using fallback verdict")
		return FallbackVerdict(err)
	}
	return verdict
}

// Interpret is the logger-free form of ResponseInterpreter.Interpret
func Interpret(raw string) domain.MatchVerdict {
	verdict, err := ParseVerdict(raw)
	if err != nil {
		return FallbackVerdict(err)
	}
	return verdict
}

// FallbackVerdict is the verdict recorded for a trial whose model output could
// not be read.
func FallbackVerdict(cause error) domain.MatchVerdict {
	detail := "unknown error"
	if cause != nil {
		var parseErr *domain.VerdictParseError
		if errors.As(cause, &parseErr) && parseErr.Err != nil {
			detail = parseErr.Err.Error()
		} else {
			detail = cause.Error()
		}
	}
	return domain.MatchVerdict{
		IsEligible:          false,
		MatchScore:          0,
		InclusionMatches:    []string{},
		InclusionMismatches: []string{},
		ExclusionViolations: []string{},
		ExclusionPasses:     []string{},
		Explanation:         FallbackExplanation,
		Reasoning:           fallbackReasoningPrefix + detail,
	}
}

// ParseVerdict runs the extraction chain over raw and decodes the result.
// Errors are always *domain.VerdictParseError.
func ParseVerdict(raw string) (domain.MatchVerdict, error) {
	text := ExtractJSON(raw)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		return domain.MatchVerdict{}, newParseError(raw, err)
	}
	if fields == nil {
		return domain.MatchVerdict{}, newParseError(raw, errors.New("response is not a JSON object"))
	}

	verdict := domain.MatchVerdict{Explanation: DefaultExplanation}
	var err error

	if verdict.IsEligible, err = decodeBool(fields["is_eligible"]); err != nil {
		return domain.MatchVerdict{}, newParseError(raw, fmt.Errorf("is_eligible: %w", err))
	}
	if verdict.MatchScore, err = decodeScore(fields["match_score"]); err != nil {
		return domain.MatchVerdict{}, newParseError(raw, fmt.Errorf("match_score: %w", err))
	}

	lists := []struct {
		key    string
		target *[]string
	}{
		{"inclusion_matches", &verdict.InclusionMatches},
		{"inclusion_mismatches", &verdict.InclusionMismatches},
		{"exclusion_violations", &verdict.ExclusionViolations},
		{"exclusion_passes", &verdict.ExclusionPasses},
	}
	for _, l := range lists {
		if *l.target, err = decodeList(fields[l.key]); err != nil {
			return domain.MatchVerdict{}, newParseError(raw, fmt.Errorf("%s: %w", l.key, err))
		}
	}

	if explanation, ok := decodeString(fields["explanation"]); ok {
		verdict.Explanation = explanation
	}
	if reasoning, ok := decodeString(fields["reasoning"]); ok {
		verdict.Reasoning = reasoning
	}

	return verdict, nil
}

// ExtractJSON isolates the JSON object from surrounding prose or code fences
func ExtractJSON(raw string) string {
	text := raw

	if idx := strings.Index(text, "```json"); idx >= 0 {
		text = text[idx+len("```json"):]
		if end := strings.Index(text, "```"); end >= 0 {
			text = text[:end]
		}
	} else if idx := strings.Index(text, "```"); idx >= 0 {
		text = text[idx+3:]
		if end := strings.Index(text, "```"); end >= 0 {
			text = text[:end]
		}
	}

	text = strings.TrimSpace(text)

	if !strings.HasPrefix(text, "{") {
		start := strings.Index(text, "{")
		end := strings.LastIndex(text, "}")
		if start >= 0 && end > start {
			text = text[start : end+1]
		}
	}

	return text
}

func newParseError(raw string, err error) *domain.VerdictParseError {
	excerpt := raw
	if len(excerpt) > excerptLimit {
		excerpt = excerpt[:excerptLimit] + "..."
	}
	return &domain.VerdictParseError{Excerpt: excerpt, Err: err}
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

func decodeBool(raw json.RawMessage) (bool, error) {
	if isNull(raw) {
		return false, nil
	}

	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true", "yes", "1":
			return true, nil
		case "false", "no", "0", "":
			return false, nil
		}
		return false, fmt.Errorf("unrecognized boolean %q", s)
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n != 0, nil
	}

	return false, fmt.Errorf("unsupported value %s", string(raw))
}

func decodeScore(raw json.RawMessage) (float64, error) {
	if isNull(raw) {
		return 0, nil
	}

	var score float64
	if err := json.Unmarshal(raw, &score); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, fmt.Errorf("unsupported value %s", string(raw))
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", s)
		}
		score = parsed
	}

	return checkScore(score)
}

// checkScore rejects scores outside [0,1]; NaN reads as 0
func checkScore(score float64) (float64, error) {
	if math.IsNaN(score) {
		return 0, nil
	}
	if score < 0 || score > 1 {
		return 0, fmt.Errorf("score %v outside [0,1]", score)
	}
	return score, nil
}

func decodeList(raw json.RawMessage) ([]string, error) {
	if isNull(raw) {
		return []string{}, nil
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		if strings.TrimSpace(single) == "" {
			return []string{}, nil
		}
		return []string{single}, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("expected a list, got %s", string(raw))
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if isNull(item) {
			continue
		}
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, s)
			continue
		}
		out = append(out, string(item))
	}
	return out, nil
}

func decodeString(raw json.RawMessage) (string, bool) {
	if isNull(raw) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	return string(raw), true
}

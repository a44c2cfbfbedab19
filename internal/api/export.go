package api

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/trial-match-server/internal/domain"
)

// Export attachment names
const (
	CSVExportFilename  = "trial_matches.csv"
	JSONExportFilename = "trial_matches.json"
)

var csvHeader = []string{
	"NCT ID",
	"Trial Title",
	"Match Score",
	"Is Eligible",
	"Explanation",
	"Inclusion Matches",
	"Inclusion Mismatches",
	"Exclusion Violations",
}

// ExportCSV renders match results as CSV, one row per result in input order
func ExportCSV(results []domain.MatchResult) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.UseCRLF = true

	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, r := range results {
		eligible := "No"
		if r.IsEligible {
			eligible = "Yes"
		}
		row := []string{
			r.Trial.NCTID,
			r.Trial.Title,
			fmt.Sprintf("%.2f", r.MatchScore),
			eligible,
			r.Explanation,
			strings.Join(r.InclusionMatches, "; "),
			strings.Join(r.InclusionMismatches, "; "),
			strings.Join(r.ExclusionViolations, "; "),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row for %s: %w", r.Trial.NCTID, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush CSV: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportJSON renders match results as indented JSON
func ExportJSON(results []domain.MatchResult) ([]byte, error) {
	if results == nil {
		results = []domain.MatchResult{}
	}
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode matches: %w", err)
	}
	return data, nil
}

package external

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/trial-match-server/internal/domain"
)

// studyRecord mirrors the subset of the v2 study shape the matcher consumes
type studyRecord struct {
	ProtocolSection struct {
		IdentificationModule struct {
			NCTID      string `json:"nctId"`
			BriefTitle string `json:"briefTitle"`
		} `json:"identificationModule"`
		DescriptionModule struct {
			BriefSummary string `json:"briefSummary"`
		} `json:"descriptionModule"`
		EligibilityModule struct {
			EligibilityCriteria string `json:"eligibilityCriteria"`
			MinimumAge          string `json:"minimumAge"`
			MaximumAge          string `json:"maximumAge"`
			Sex                 string `json:"sex"`
		} `json:"eligibilityModule"`
		StatusModule struct {
			OverallStatus string `json:"overallStatus"`
		} `json:"statusModule"`
		DesignModule struct {
			Phases         []string `json:"phases"`
			EnrollmentInfo struct {
				Count *int `json:"count"`
			} `json:"enrollmentInfo"`
		} `json:"designModule"`
		ConditionsModule struct {
			Conditions []string `json:"conditions"`
		} `json:"conditionsModule"`
		ArmsInterventionsModule struct {
			Interventions []struct {
				Name string `json:"name"`
			} `json:"interventions"`
		} `json:"armsInterventionsModule"`
		ContactsLocationsModule struct {
			Locations []struct {
				City  string `json:"city"`
				State string `json:"state"`
			} `json:"locations"`
		} `json:"contactsLocationsModule"`
	} `json:"protocolSection"`
}

// NormalizeStudy flattens one raw registry record into a Trial
func NormalizeStudy(raw json.RawMessage) (domain.Trial, error) {
	var rec studyRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.Trial{}, fmt.Errorf("failed to decode study: %w", err)
	}

	p := rec.ProtocolSection
	nctID := strings.TrimSpace(p.IdentificationModule.NCTID)
	if nctID == "" {
		return domain.Trial{}, fmt.Errorf("study has no NCT identifier")
	}

	gender := p.EligibilityModule.Sex
	if gender == "" {
		gender = "ALL"
	}

	var phase string
	if len(p.DesignModule.Phases) > 0 {
		phase = p.DesignModule.Phases[0]
	}

	locations := make([]string, 0, domain.MaxTrialLocations)
	for _, loc := range p.ContactsLocationsModule.Locations {
		if len(locations) == domain.MaxTrialLocations {
			break
		}
		if loc.City != "" && loc.State != "" {
			locations = append(locations, loc.City+", "+loc.State)
		}
	}

	interventions := make([]string, 0, len(p.ArmsInterventionsModule.Interventions))
	for _, iv := range p.ArmsInterventionsModule.Interventions {
		interventions = append(interventions, iv.Name)
	}

	conditions := p.ConditionsModule.Conditions
	if conditions == nil {
		conditions = []string{}
	}

	return domain.Trial{
		NCTID:               nctID,
		Title:               p.IdentificationModule.BriefTitle,
		BriefSummary:        p.DescriptionModule.BriefSummary,
		EligibilityCriteria: p.EligibilityModule.EligibilityCriteria,
		MinimumAge:          p.EligibilityModule.MinimumAge,
		MaximumAge:          p.EligibilityModule.MaximumAge,
		Gender:              gender,
		Phase:               phase,
		Enrollment:          p.DesignModule.EnrollmentInfo.Count,
		Status:              p.StatusModule.OverallStatus,
		Locations:           locations,
		Conditions:          conditions,
		Interventions:       interventions,
	}, nil
}

package domain

import (
	"fmt"
	"strings"
)

// Gender represents the patient gender
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// IsValid reports whether g is one of the enumerated genders
func (g Gender) IsValid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	}
	return false
}

// Age bounds accepted for a patient record
const (
	MinPatientAge = 0
	MaxPatientAge = 120
)

// Condition represents a diagnosed medical condition
type Condition struct {
	Name      string `json:"name"`
	ICD10Code string `json:"icd10_code,omitempty"`
	OnsetDate string `json:"onset_date,omitempty"` // YYYY-MM-DD
}

// Medication represents a current medication
type Medication struct {
	Name      string `json:"name"`
	Dosage    string `json:"dosage,omitempty"`
	Frequency string `json:"frequency,omitempty"`
}

// LabResult represents a laboratory test result
type LabResult struct {
	TestName string  `json:"test_name"`
	Value    float64 `json:"value"`
	Unit     string  `json:"unit"`
	TestDate string  `json:"test_date,omitempty"` // YYYY-MM-DD
}

// PatientRecord is the structured medical record matched against trials.
// It is read-only for the duration of a matching request.
type PatientRecord struct {
	Age             int          `json:"age"`
	Gender          Gender       `json:"gender"`
	Conditions      []Condition  `json:"conditions,omitempty"`
	Medications     []Medication `json:"medications,omitempty"`
	LabResults      []LabResult  `json:"lab_results,omitempty"`
	SmokingStatus   string       `json:"smoking_status,omitempty"`
	PregnancyStatus *bool        `json:"pregnancy_status,omitempty"`
}

// Validate checks the record against the data model constraints
func (p *PatientRecord) Validate() error {
	if p == nil {
		return NewValidationError("patient", "patient record is required", nil)
	}
	if p.Age < MinPatientAge || p.Age > MaxPatientAge {
		return NewValidationError("age", fmt.Sprintf("must be between %d and %d", MinPatientAge, MaxPatientAge), p.Age)
	}
	if !p.Gender.IsValid() {
		return NewValidationError("gender", "must be one of male, female, other", string(p.Gender))
	}
	for i, c := range p.Conditions {
		if strings.TrimSpace(c.Name) == "" {
			return NewValidationError(fmt.Sprintf("conditions[%d].name", i), "must not be empty", c.Name)
		}
	}
	for i, m := range p.Medications {
		if strings.TrimSpace(m.Name) == "" {
			return NewValidationError(fmt.Sprintf("medications[%d].name", i), "must not be empty", m.Name)
		}
	}
	for i, l := range p.LabResults {
		if strings.TrimSpace(l.TestName) == "" {
			return NewValidationError(fmt.Sprintf("lab_results[%d].test_name", i), "must not be empty", l.TestName)
		}
		if strings.TrimSpace(l.Unit) == "" {
			return NewValidationError(fmt.Sprintf("lab_results[%d].unit", i), "must not be empty", l.Unit)
		}
	}
	return nil
}

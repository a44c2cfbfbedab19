package domain

import (
	"testing"
	"time"
)

func TestPatientRecordValidate(t *testing.T) {
	valid := func() *PatientRecord {
		return &PatientRecord{
			Age:         45,
			Gender:      GenderFemale,
			Conditions:  []Condition{{Name: "Type 2 Diabetes", ICD10Code: "E11"}},
			Medications: []Medication{{Name: "Metformin", Dosage: "500mg"}},
			LabResults:  []LabResult{{TestName: "HbA1c", Value: 7.2, Unit: "%"}},
		}
	}

	tests := []struct {
		name      string
		mutate    func(p *PatientRecord)
		wantField string
	}{
		{name: "valid record", mutate: func(*PatientRecord) {}},
		{name: "lower age bound", mutate: func(p *PatientRecord) { p.Age = 0 }},
		{name: "upper age bound", mutate: func(p *PatientRecord) { p.Age = 120 }},
		{name: "negative age", mutate: func(p *PatientRecord) { p.Age = -1 }, wantField: "age"},
		{name: "age too high", mutate: func(p *PatientRecord) { p.Age = 121 }, wantField: "age"},
		{name: "unknown gender", mutate: func(p *PatientRecord) { p.Gender = "unknown" }, wantField: "gender"},
		{name: "blank condition", mutate: func(p *PatientRecord) { p.Conditions[0].Name = " " }, wantField: "conditions[0].name"},
		{name: "blank medication", mutate: func(p *PatientRecord) { p.Medications[0].Name = "" }, wantField: "medications[0].name"},
		{name: "blank lab name", mutate: func(p *PatientRecord) { p.LabResults[0].TestName = "" }, wantField: "lab_results[0].test_name"},
		{name: "blank lab unit", mutate: func(p *PatientRecord) { p.LabResults[0].Unit = "" }, wantField: "lab_results[0].unit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid()
			tt.mutate(p)

			err := p.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Expected valid record, got %v", err)
				}
				return
			}

			verr, ok := err.(*ValidationError)
			if !ok {
				t.Fatalf("Expected *ValidationError, got %T (%v)", err, err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("Expected field %s, got %s", tt.wantField, verr.Field)
			}
		})
	}

	var nilRecord *PatientRecord
	if err := nilRecord.Validate(); !IsValidation(err) {
		t.Errorf("Expected validation error for nil record, got %v", err)
	}
}

func TestMatchVerdictInconsistentEligibility(t *testing.T) {
	v := MatchVerdict{IsEligible: true, ExclusionViolations: []string{"pregnant"}}
	if !v.HasInconsistentEligibility() {
		t.Error("Expected eligible verdict with violations to be flagged")
	}

	v.IsEligible = false
	if v.HasInconsistentEligibility() {
		t.Error("Ineligible verdict must not be flagged")
	}
}

func TestCacheEntryExpired(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	entry := CacheEntry{CreatedAt: now.Add(-2 * time.Hour)}

	if entry.Expired(now, 3*time.Hour) {
		t.Error("Entry younger than TTL must not be expired")
	}
	if !entry.Expired(now, time.Hour) {
		t.Error("Entry older than TTL must be expired")
	}
	if entry.Expired(now, 2*time.Hour) {
		t.Error("Entry exactly at TTL must not be expired")
	}
}

package service

import (
	"strconv"
	"strings"

	"github.com/trial-match-server/internal/domain"
)

const promptIntro = "You are a clinical trial matching expert. Analyze whether a patient is eligible for a clinical trial."

const promptInstructions = `Your task:
1. Carefully parse the inclusion and exclusion criteria
2. Compare each criterion against the patient's data
3. Determine if the patient meets ALL inclusion criteria
4. Determine if the patient violates ANY exclusion criteria
5. Calculate an overall match score (0.0 to 1.0)
6. Provide a clear explanation

Respond in JSON format with this exact structure (no additional text):
{
  "is_eligible": true,
  "match_score": 0.85,
  "inclusion_matches": ["criterion 1 met", "criterion 2 met"],
  "inclusion_mismatches": ["criterion X not met"],
  "exclusion_violations": ["exclusion Y violated"],
  "exclusion_passes": ["exclusion A passed", "exclusion B passed"],
  "explanation": "Brief summary for patient",
  "reasoning": "Detailed reasoning"
}

Scoring guidance:
- 1.0 = Perfect match, all inclusion met, no exclusions violated
- 0.8-0.9 = Strong match, minor uncertainties
- 0.6-0.7 = Moderate match, some criteria unclear
- 0.4-0.5 = Weak match, significant mismatches
- 0.0-0.3 = Poor match or exclusion violated

If eligibility criteria are missing or unclear, make reasonable assumptions based on the trial title and condition.
IMPORTANT: Return ONLY the JSON object, no other text.`

// RenderPrompt builds the eligibility instruction for one patient and one trial.
// The output depends only on its inputs.
func RenderPrompt(patient *domain.PatientRecord, trial *domain.Trial) string {
	var b strings.Builder

	b.WriteString(promptIntro)
	b.WriteString("\n\n")
	b.WriteString(FormatPatient(patient))
	b.WriteString("\n")
	b.WriteString("Clinical Trial: ")
	b.WriteString(trial.Title)
	b.WriteString("\nNCT ID: ")
	b.WriteString(trial.NCTID)
	b.WriteString("\n\nEligibility Criteria:\n")
	b.WriteString(trial.EligibilityCriteria)
	b.WriteString("\n\n")
	b.WriteString(promptInstructions)

	return b.String()
}

// FormatPatient renders the patient block of the prompt. Optional sections are
// emitted only when they carry data; list items keep their input order.
func FormatPatient(p *domain.PatientRecord) string {
	var b strings.Builder

	b.WriteString("Patient Profile:\n")
	b.WriteString("- Age: " + strconv.Itoa(p.Age) + " years\n")
	b.WriteString("- Gender: " + string(p.Gender) + "\n")

	if len(p.Conditions) > 0 {
		b.WriteString("\nMedical Conditions:\n")
		for _, c := range p.Conditions {
			b.WriteString("  - " + c.Name)
			if c.ICD10Code != "" {
				b.WriteString(" (ICD-10: " + c.ICD10Code + ")")
			}
			if c.OnsetDate != "" {
				b.WriteString(" since " + c.OnsetDate)
			}
			b.WriteString("\n")
		}
	}

	if len(p.Medications) > 0 {
		b.WriteString("\nCurrent Medications:\n")
		for _, m := range p.Medications {
			b.WriteString("  - " + m.Name)
			if m.Dosage != "" {
				b.WriteString(" " + m.Dosage)
			}
			if m.Frequency != "" {
				b.WriteString(", " + m.Frequency)
			}
			b.WriteString("\n")
		}
	}

	if len(p.LabResults) > 0 {
		b.WriteString("\nRecent Lab Results:\n")
		for _, l := range p.LabResults {
			b.WriteString("  - " + l.TestName + ": " + strconv.FormatFloat(l.Value, 'f', -1, 64) + " " + l.Unit)
			if l.TestDate != "" {
				b.WriteString(" (" + l.TestDate + ")")
			}
			b.WriteString("\n")
		}
	}

	if p.SmokingStatus != "" {
		b.WriteString("\nSmoking Status: " + p.SmokingStatus + "\n")
	}

	if p.PregnancyStatus != nil {
		if *p.PregnancyStatus {
			b.WriteString("Pregnancy Status: Pregnant\n")
		} else {
			b.WriteString("Pregnancy Status: Not pregnant\n")
		}
	}

	return b.String()
}

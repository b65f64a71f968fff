package cds

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/CompassionateITWEBDEV/Mase-EMR-dev-sub003/internal/shared/metrics"
)

// ComplianceCategory names one compliance dimension.
type ComplianceCategory string

const (
	CategoryMIPS          ComplianceCategory = "mips"
	CategoryBilling       ComplianceCategory = "billing"
	CategoryDocumentation ComplianceCategory = "documentation"
	CategoryRegulatory    ComplianceCategory = "regulatory"
)

// ComplianceCheck is the result of one category evaluation.
type ComplianceCheck struct {
	Category        ComplianceCategory `json:"category"`
	Compliant       bool               `json:"compliant"`
	Issues          []string           `json:"issues"`
	Recommendations []string           `json:"recommendations"`
	RequiredActions []string           `json:"required_actions"`
}

// ComplianceResult aggregates all category checks. OverallCompliant is
// the conjunction of the per-category results.
type ComplianceResult struct {
	OverallCompliant bool              `json:"overall_compliant"`
	Checks           []ComplianceCheck `json:"checks"`
}

// MeasureOutcome is a MIPS measure evaluation for a patient it applies
// to. Nil outcomes mean the measure is inapplicable and is skipped.
type MeasureOutcome struct {
	Documented bool    `json:"documented"`
	Value      float64 `json:"value"`
	Target     string  `json:"target"`
	TargetMet  bool    `json:"target_met"`
}

// MIPSMeasure is one quality measure with its applicability predicate
// folded into Evaluate.
type MIPSMeasure struct {
	ID       string
	Title    string
	Evaluate func(c *PatientClinicalContext) *MeasureOutcome
}

// DefaultMIPSMeasures returns the built-in quality measure set. Callers
// pass the result (or their own set) to CheckCompliance so the measure
// table stays explicit configuration rather than hidden state.
func DefaultMIPSMeasures() []MIPSMeasure {
	return []MIPSMeasure{
		{
			ID:    "MIPS-001",
			Title: "Diabetes: Hemoglobin A1c Poor Control",
			Evaluate: func(c *PatientClinicalContext) *MeasureOutcome {
				if !hasProblem(c, "diabetes", "e11", "e10") {
					return nil
				}
				outcome := &MeasureOutcome{Target: "HbA1c below 9.0%"}
				lab, found := latestLab(c, "hba1c", "a1c", "hemoglobin a1c")
				if !found {
					return outcome
				}
				value, ok := labValue(lab)
				if !ok {
					return outcome
				}
				outcome.Documented = true
				outcome.Value = value
				outcome.TargetMet = value < 9.0
				return outcome
			},
		},
		{
			ID:    "MIPS-236",
			Title: "Controlling High Blood Pressure",
			Evaluate: func(c *PatientClinicalContext) *MeasureOutcome {
				if !hasProblem(c, "hypertension", "i10") {
					return nil
				}
				outcome := &MeasureOutcome{Target: "blood pressure below 140/90"}
				systolic, diastolic, ok := latestBP(c)
				if !ok {
					return outcome
				}
				outcome.Documented = true
				outcome.Value = float64(systolic)
				outcome.TargetMet = systolic < 140 && diastolic < 90
				return outcome
			},
		},
		{
			ID:    "MIPS-134",
			Title: "Screening for Depression",
			Evaluate: func(c *PatientClinicalContext) *MeasureOutcome {
				if c.Demographics.Age < 18 {
					return nil
				}
				outcome := &MeasureOutcome{Target: "PHQ-9 documented within the reporting period"}
				if score, ok := summaryScore(c.NoteSummary, "phq9"); ok {
					outcome.Documented = true
					outcome.Value = score
					outcome.TargetMet = true
				}
				return outcome
			},
		},
	}
}

// ssnPattern flags formatted social security numbers leaking into
// outbound recommendation text.
var ssnPattern = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)

// CheckCompliance evaluates all four compliance categories over the
// pipeline's outputs. It is total: every category always produces a
// check, and a patient with no applicable rules is compliant.
func CheckCompliance(measures []MIPSMeasure, recs []SpecialtyRecommendation, c *PatientClinicalContext, ns *NoteSummary, specialtyID string) ComplianceResult {
	checks := []ComplianceCheck{
		checkMIPS(measures, c),
		checkBilling(recs),
		checkDocumentation(recs),
		checkRegulatory(recs, ns, specialtyID),
	}

	result := ComplianceResult{OverallCompliant: true, Checks: checks}
	for _, check := range checks {
		if !check.Compliant {
			result.OverallCompliant = false
			metrics.RecordComplianceFailure(string(check.Category))
		}
	}
	return result
}

func checkMIPS(measures []MIPSMeasure, c *PatientClinicalContext) ComplianceCheck {
	check := newCheck(CategoryMIPS)
	for _, measure := range measures {
		outcome := measure.Evaluate(c)
		if outcome == nil {
			continue
		}
		if !outcome.Documented {
			check.Issues = append(check.Issues, fmt.Sprintf("%s %s: not documented", measure.ID, measure.Title))
			check.RequiredActions = append(check.RequiredActions, fmt.Sprintf("Document data for %s (%s)", measure.ID, outcome.Target))
			continue
		}
		if !outcome.TargetMet {
			check.Issues = append(check.Issues, fmt.Sprintf("%s %s: target not met (value %.1f, target %s)", measure.ID, measure.Title, outcome.Value, outcome.Target))
			check.Recommendations = append(check.Recommendations, fmt.Sprintf("Address %s performance gap", measure.ID))
		}
	}
	check.Compliant = len(check.Issues) == 0
	return check
}

// checkBilling flags orderable recommendations that carry no billing
// code marker in their structured data.
func checkBilling(recs []SpecialtyRecommendation) ComplianceCheck {
	check := newCheck(CategoryBilling)
	for _, rec := range recs {
		if rec.Type != RecRecommendation && rec.Type != RecGap {
			continue
		}
		if !mentionsOrderable(rec) {
			continue
		}
		if _, ok := rec.Data["code"]; ok {
			continue
		}
		check.Issues = append(check.Issues, fmt.Sprintf("%q has no billing code attached", rec.Title))
		check.RequiredActions = append(check.RequiredActions, fmt.Sprintf("Attach a CPT or ICD-10 code to %q before ordering", rec.Title))
	}
	check.Compliant = len(check.Issues) == 0
	return check
}

// checkDocumentation requires chart documentation for every critical or
// high alert and for medication-change recommendations.
func checkDocumentation(recs []SpecialtyRecommendation) ComplianceCheck {
	check := newCheck(CategoryDocumentation)
	for _, rec := range recs {
		if rec.Type == RecAlert && (rec.Priority == PriorityCritical || rec.Priority == PriorityHigh) {
			check.Issues = append(check.Issues, fmt.Sprintf("%s alert %q requires a documented clinical response", rec.Priority, rec.Title))
			check.RequiredActions = append(check.RequiredActions, fmt.Sprintf("Document the response to %q in today's note", rec.Title))
		}
		if rec.Type == RecRecommendation && mentionsMedicationChange(rec) {
			check.Issues = append(check.Issues, fmt.Sprintf("medication change %q requires documented rationale", rec.Title))
			check.RequiredActions = append(check.RequiredActions, fmt.Sprintf("Document the rationale for %q", rec.Title))
		}
	}
	check.Compliant = len(check.Issues) == 0
	return check
}

func checkRegulatory(recs []SpecialtyRecommendation, ns *NoteSummary, specialtyID string) ComplianceCheck {
	check := newCheck(CategoryRegulatory)

	if specialtyID == SpecialtyBehavioralHealth && missingDocFlag(ns, "42 cfr") {
		check.Issues = append(check.Issues, "42 CFR Part 2 consent not documented")
		check.RequiredActions = append(check.RequiredActions, "Obtain and document 42 CFR Part 2 consent")
	}

	for _, rec := range recs {
		if ssnPattern.MatchString(rec.Title) || ssnPattern.MatchString(rec.Description) {
			check.Issues = append(check.Issues, fmt.Sprintf("possible social security number in recommendation %q", rec.Title))
			check.RequiredActions = append(check.RequiredActions, "Remove protected identifiers from recommendation text")
		}
	}
	if ns != nil && ssnPattern.MatchString(ns.Summary) {
		check.Issues = append(check.Issues, "possible social security number in note summary")
		check.RequiredActions = append(check.RequiredActions, "Remove protected identifiers from the note summary")
	}

	check.Compliant = len(check.Issues) == 0
	return check
}

func newCheck(category ComplianceCategory) ComplianceCheck {
	return ComplianceCheck{
		Category:        category,
		Compliant:       true,
		Issues:          []string{},
		Recommendations: []string{},
		RequiredActions: []string{},
	}
}

func mentionsOrderable(rec SpecialtyRecommendation) bool {
	text := strings.ToLower(rec.Title + " " + rec.Action)
	for _, keyword := range []string{"order", "screening", "lab", "test", "panel", "mammogram", "echocardiogram"} {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}

func mentionsMedicationChange(rec SpecialtyRecommendation) bool {
	text := strings.ToLower(rec.Title + " " + rec.Description + " " + rec.Action)
	for _, keyword := range []string{"medication", "therapy", "dose", "dosing", "statin", "inhibitor", "blocker"} {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}

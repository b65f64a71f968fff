package cds

import (
	"fmt"
	"strings"
	"time"

	"github.com/CompassionateITWEBDEV/Mase-EMR-dev-sub003/internal/ehr"
	"github.com/CompassionateITWEBDEV/Mase-EMR-dev-sub003/internal/shared/metrics"
)

// RiskCategory buckets a numeric risk value for display and alerting.
type RiskCategory string

const (
	RiskLow      RiskCategory = "low"
	RiskModerate RiskCategory = "moderate"
	RiskHigh     RiskCategory = "high"
	RiskVeryHigh RiskCategory = "very_high"
)

// RiskScore is one computed clinical risk estimate. The scoring rules
// are additive point heuristics over the aggregated record, not
// certified clinical calculators; Interpretation restates the value,
// the category, and every factor that contributed points.
type RiskScore struct {
	Name            string       `json:"name"`
	Value           float64      `json:"value"`
	Category        RiskCategory `json:"category"`
	Interpretation  string       `json:"interpretation"`
	Recommendations []string     `json:"recommendations"`
}

// CalculateAllRiskScores runs every scorer applicable to the specialty.
// This is the only place specialty gating happens; the scorers
// themselves only gate on data applicability.
func CalculateAllRiskScores(specialtyID string, c *PatientClinicalContext, ns *NoteSummary) []RiskScore {
	scores := []RiskScore{}

	if specialtyID == SpecialtyPrimaryCare || specialtyID == SpecialtyCardiology {
		if score, ok := ASCVDRisk(c); ok {
			scores = append(scores, score)
		}
	}
	if specialtyID == SpecialtyBehavioralHealth {
		if score, ok := RelapseRisk(c, ns); ok {
			scores = append(scores, score)
		}
	}
	if score, ok := ReadmissionRisk(c, ns); ok {
		scores = append(scores, score)
	}
	if score, ok := NoShowRisk(c, ns); ok {
		scores = append(scores, score)
	}

	for _, score := range scores {
		metrics.RecordRiskScore(score.Name, string(score.Category))
	}
	return scores
}

// ASCVDRisk estimates 10-year cardiovascular risk from an additive
// point model over age, sex, lipids, blood pressure, diabetes, and
// smoking status. Missing labs or vitals simply contribute no points.
// Not applicable below age 40.
func ASCVDRisk(c *PatientClinicalContext) (RiskScore, bool) {
	age := c.Demographics.Age
	if age < 40 {
		return RiskScore{}, false
	}

	points := 0
	factors := []string{}
	addFactor := func(p int, label string) {
		points += p
		factors = append(factors, label)
	}

	switch {
	case age >= 70:
		addFactor(7, "age 70 or older")
	case age >= 60:
		addFactor(5, "age 60-69")
	case age >= 50:
		addFactor(3, "age 50-59")
	default:
		addFactor(1, "age 40-49")
	}

	if c.Demographics.Gender == ehr.GenderMale {
		addFactor(1, "male sex")
	}

	if lab, ok := latestLab(c, "total cholesterol"); ok {
		if value, ok := labValue(lab); ok {
			switch {
			case value >= 240:
				addFactor(2, "total cholesterol 240 or above")
			case value >= 200:
				addFactor(1, "total cholesterol 200-239")
			}
		}
	}
	if lab, ok := latestLab(c, "hdl"); ok {
		if value, ok := labValue(lab); ok {
			switch {
			case value < 40:
				addFactor(2, "HDL below 40")
			case value >= 60:
				addFactor(-1, "HDL 60 or above (protective)")
			}
		}
	}

	if systolic, _, ok := latestBP(c); ok {
		switch {
		case systolic >= 160:
			addFactor(3, "systolic blood pressure 160 or above")
		case systolic >= 140:
			addFactor(2, "systolic blood pressure 140-159")
		case systolic >= 120:
			addFactor(1, "systolic blood pressure 120-139")
		}
	}
	if onBPMedication(c) {
		addFactor(1, "on blood pressure medication")
	}
	if hasProblem(c, "diabetes", "e11", "e10") {
		addFactor(3, "diabetes")
	}
	if hasProblem(c, "tobacco", "smoker", "nicotine") || containsAnyKeyword(summaryPhrases(c.NoteSummary), "smoker", "tobacco use", "smokes") {
		addFactor(2, "current smoker")
	}

	value := float64(points * 2)
	if value > 30 {
		value = 30
	}
	if value < 0 {
		value = 0
	}

	var category RiskCategory
	switch {
	case value < 5:
		category = RiskLow
	case value < 7.5:
		category = RiskModerate
	case value < 20:
		category = RiskHigh
	default:
		category = RiskVeryHigh
	}

	score := RiskScore{
		Name:            "ascvd_10_year",
		Value:           value,
		Category:        category,
		Interpretation:  fmt.Sprintf("Estimated 10-year ASCVD risk %.1f%% (%s). %s", value, category, describeFactors(factors)),
		Recommendations: []string{},
	}
	if category == RiskHigh || category == RiskVeryHigh {
		score.Recommendations = append(score.Recommendations,
			"Discuss statin therapy",
			"Reinforce lifestyle modification counseling")
	}
	if category == RiskModerate {
		score.Recommendations = append(score.Recommendations, "Consider risk-enhancing factor review before statin decision")
	}
	return score, true
}

// RelapseRisk estimates substance-use relapse risk for patients in
// medication-assisted treatment programs.
func RelapseRisk(c *PatientClinicalContext, ns *NoteSummary) (RiskScore, bool) {
	now := time.Now().UTC()
	points := 0
	factors := []string{}
	addFactor := func(p int, label string) {
		points += p
		factors = append(factors, label)
	}

	for _, screen := range udsResults(c) {
		if isPositiveUDS(screen) {
			addFactor(30, "positive urine drug screen on record")
			break
		}
	}
	if encountersSince(c, now.AddDate(0, 0, -30)) < 2 {
		addFactor(15, "fewer than two encounters in the last 30 days")
	}
	if cows, ok := summaryScore(ns, "cows"); ok && cows >= 5 {
		addFactor(20, fmt.Sprintf("COWS score %.0f", cows))
	}
	if containsAnyKeyword(summaryPhrases(ns), "relapse", "craving", "cravings", "using again") {
		addFactor(25, "relapse or craving concerns documented")
	}
	if !hasActiveMedication(c, "buprenorphine", "methadone", "naltrexone", "suboxone", "sublocade", "vivitrol") {
		addFactor(10, "no medication-assisted treatment on the active list")
	}

	score := RiskScore{
		Name:            "relapse",
		Value:           float64(points),
		Category:        categoryForStandard(float64(points)),
		Recommendations: []string{},
	}
	score.Interpretation = fmt.Sprintf("Relapse risk score %.0f (%s). %s", score.Value, score.Category, describeFactors(factors))
	if score.Category == RiskHigh || score.Category == RiskVeryHigh {
		score.Recommendations = append(score.Recommendations,
			"Increase counseling session frequency",
			"Review medication-assisted treatment adequacy")
	}
	return score, true
}

// ReadmissionRisk estimates hospital readmission risk from chronic
// disease burden, utilization, age, and documented deterioration.
func ReadmissionRisk(c *PatientClinicalContext, ns *NoteSummary) (RiskScore, bool) {
	now := time.Now().UTC()
	points := 0
	factors := []string{}
	addFactor := func(p int, label string) {
		points += p
		factors = append(factors, label)
	}

	if n := activeProblemCount(c); n >= 3 {
		addFactor(15, fmt.Sprintf("%d active problems", n))
	}
	if n := activeMedicationCount(c); n >= 5 {
		addFactor(10, fmt.Sprintf("%d active medications", n))
	}
	if encountersSince(c, now.AddDate(0, 0, -90), ehr.EncounterHospital, ehr.EncounterEmergency) > 0 {
		addFactor(20, "hospital or emergency encounter in the last 90 days")
	}
	if c.Demographics.Age >= 65 {
		addFactor(10, "age 65 or older")
	}
	if containsAnyKeyword(summaryPhrases(ns), "worsening", "decline", "deteriorat", "decompensat") {
		addFactor(15, "clinical deterioration documented in notes")
	}

	score := RiskScore{
		Name:            "readmission",
		Value:           float64(points),
		Category:        categoryForStandard(float64(points)),
		Recommendations: []string{},
	}
	score.Interpretation = fmt.Sprintf("Readmission risk score %.0f (%s). %s", score.Value, score.Category, describeFactors(factors))
	if score.Category == RiskHigh || score.Category == RiskVeryHigh {
		score.Recommendations = append(score.Recommendations,
			"Schedule follow-up within 7 days",
			"Consider care management referral")
	}
	return score, true
}

// NoShowRisk estimates appointment no-show risk from visit cadence and
// documented adherence concerns.
func NoShowRisk(c *PatientClinicalContext, ns *NoteSummary) (RiskScore, bool) {
	points := 0
	factors := []string{}
	addFactor := func(p int, label string) {
		points += p
		factors = append(factors, label)
	}

	if gap, ok := averageEncounterGapDays(c); ok && gap > 90 {
		addFactor(20, fmt.Sprintf("average of %.0f days between encounters", gap))
	}
	if containsAnyKeyword(summaryPhrases(ns), "missed appointment", "no-show", "no show", "non-adherent", "noncompliant", "non-compliant") {
		addFactor(25, "appointment adherence concerns documented")
	}

	score := RiskScore{
		Name:            "no_show",
		Value:           float64(points),
		Recommendations: []string{},
	}
	switch {
	case score.Value < 15:
		score.Category = RiskLow
	case score.Value < 30:
		score.Category = RiskModerate
	case score.Value < 45:
		score.Category = RiskHigh
	default:
		score.Category = RiskVeryHigh
	}
	score.Interpretation = fmt.Sprintf("No-show risk score %.0f (%s). %s", score.Value, score.Category, describeFactors(factors))
	if score.Category != RiskLow {
		score.Recommendations = append(score.Recommendations, "Enable appointment reminder outreach")
	}
	return score, true
}

// categoryForStandard buckets the relapse and readmission point scales.
func categoryForStandard(value float64) RiskCategory {
	switch {
	case value < 20:
		return RiskLow
	case value < 40:
		return RiskModerate
	case value < 60:
		return RiskHigh
	default:
		return RiskVeryHigh
	}
}

// averageEncounterGapDays needs at least two encounters to say anything.
func averageEncounterGapDays(c *PatientClinicalContext) (float64, bool) {
	if len(c.Encounters) < 2 {
		return 0, false
	}
	// Encounters arrive newest first; total span divided by interval
	// count gives the average gap.
	newest := c.Encounters[0].OccurredAt
	oldest := c.Encounters[len(c.Encounters)-1].OccurredAt
	for _, encounter := range c.Encounters {
		if encounter.OccurredAt.After(newest) {
			newest = encounter.OccurredAt
		}
		if encounter.OccurredAt.Before(oldest) {
			oldest = encounter.OccurredAt
		}
	}
	span := newest.Sub(oldest).Hours() / 24
	return span / float64(len(c.Encounters)-1), true
}

func describeFactors(factors []string) string {
	if len(factors) == 0 {
		return "No contributing factors identified."
	}
	return "Contributing factors: " + strings.Join(factors, ", ") + "."
}

package cds

import (
	"strconv"
	"strings"
	"time"

	"github.com/CompassionateITWEBDEV/Mase-EMR-dev-sub003/internal/ehr"
)

// Shared record-scanning helpers. Collections coming out of the
// aggregator are ordered newest first, so "latest" means the first
// matching element.

func problemIsActive(problem ehr.Problem) bool {
	return problem.Status == ehr.ProblemActive || problem.Status == ehr.ProblemChronic
}

func hasProblem(c *PatientClinicalContext, keywords ...string) bool {
	for _, problem := range c.Problems {
		if !problemIsActive(problem) {
			continue
		}
		text := strings.ToLower(problem.Diagnosis + " " + problem.ICD10Code)
		for _, keyword := range keywords {
			if strings.Contains(text, strings.ToLower(keyword)) {
				return true
			}
		}
	}
	return false
}

func activeProblemCount(c *PatientClinicalContext) int {
	count := 0
	for _, problem := range c.Problems {
		if problemIsActive(problem) {
			count++
		}
	}
	return count
}

func hasActiveMedication(c *PatientClinicalContext, keywords ...string) bool {
	for _, med := range c.Medications {
		if med.StoppedAt != nil {
			continue
		}
		name := strings.ToLower(med.Name)
		for _, keyword := range keywords {
			if strings.Contains(name, strings.ToLower(keyword)) {
				return true
			}
		}
	}
	return false
}

func activeMedicationCount(c *PatientClinicalContext) int {
	count := 0
	for _, med := range c.Medications {
		if med.StoppedAt == nil {
			count++
		}
	}
	return count
}

func onBPMedication(c *PatientClinicalContext) bool {
	for _, med := range c.Medications {
		if med.StoppedAt == nil && med.BPMedication {
			return true
		}
	}
	return hasActiveMedication(c, "lisinopril", "losartan", "amlodipine", "metoprolol", "hydrochlorothiazide", "valsartan")
}

// latestLab returns the newest lab whose test name contains any keyword.
func latestLab(c *PatientClinicalContext, keywords ...string) (ehr.LabResult, bool) {
	for _, lab := range c.LabResults {
		name := strings.ToLower(lab.TestName)
		for _, keyword := range keywords {
			if strings.Contains(name, strings.ToLower(keyword)) {
				return lab, true
			}
		}
	}
	return ehr.LabResult{}, false
}

// labValue parses the numeric portion of a lab value string.
func labValue(lab ehr.LabResult) (float64, bool) {
	value := strings.TrimSpace(lab.Value)
	value = strings.TrimSuffix(value, "%")
	n, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// isUDS reports whether a lab is a urine drug screen.
func isUDS(lab ehr.LabResult) bool {
	name := strings.ToLower(lab.TestName)
	return strings.Contains(name, "urine drug") || strings.Contains(name, "uds") || strings.Contains(name, "tox screen") || strings.Contains(name, "toxicology")
}

func isPositiveUDS(lab ehr.LabResult) bool {
	return strings.Contains(strings.ToLower(lab.Value), "positive")
}

func isNegativeUDS(lab ehr.LabResult) bool {
	return strings.Contains(strings.ToLower(lab.Value), "negative")
}

// udsResults returns all urine drug screens, newest first.
func udsResults(c *PatientClinicalContext) []ehr.LabResult {
	screens := []ehr.LabResult{}
	for _, lab := range c.LabResults {
		if isUDS(lab) {
			screens = append(screens, lab)
		}
	}
	return screens
}

// latestBP returns the newest vital-sign reading that has both systolic
// and diastolic values.
func latestBP(c *PatientClinicalContext) (systolic, diastolic int, ok bool) {
	for _, vitals := range c.VitalSigns {
		if vitals.SystolicBP != nil && vitals.DiastolicBP != nil {
			return *vitals.SystolicBP, *vitals.DiastolicBP, true
		}
	}
	return 0, 0, false
}

func encountersSince(c *PatientClinicalContext, since time.Time, encounterTypes ...string) int {
	count := 0
	for _, encounter := range c.Encounters {
		if encounter.OccurredAt.Before(since) {
			continue
		}
		if len(encounterTypes) == 0 {
			count++
			continue
		}
		for _, t := range encounterTypes {
			if encounter.Type == t {
				count++
				break
			}
		}
	}
	return count
}

func earliestEncounter(c *PatientClinicalContext) (ehr.Encounter, bool) {
	if len(c.Encounters) == 0 {
		return ehr.Encounter{}, false
	}
	earliest := c.Encounters[0]
	for _, encounter := range c.Encounters[1:] {
		if encounter.OccurredAt.Before(earliest.OccurredAt) {
			earliest = encounter
		}
	}
	return earliest, true
}

// containsAnyKeyword scans a list of phrases for any of the keywords,
// case-insensitively.
func containsAnyKeyword(phrases []string, keywords ...string) bool {
	for _, phrase := range phrases {
		lower := strings.ToLower(phrase)
		for _, keyword := range keywords {
			if strings.Contains(lower, keyword) {
				return true
			}
		}
	}
	return false
}

// summaryPhrases gathers the free-text fields of a summary for keyword
// scans. Nil summaries yield an empty list.
func summaryPhrases(ns *NoteSummary) []string {
	if ns == nil {
		return nil
	}
	phrases := []string{ns.Summary}
	phrases = append(phrases, ns.KeyFindings...)
	phrases = append(phrases, ns.Concerns...)
	return phrases
}

func summaryScore(ns *NoteSummary, key string) (float64, bool) {
	if ns == nil {
		return 0, false
	}
	value, ok := ns.AssessmentScores[key]
	return value, ok
}

// isOlderThanMonths reports whether t is more than the given number of
// whole calendar months before now. The month count only advances once
// the same day of the month has been reached.
func isOlderThanMonths(t, now time.Time, months int) bool {
	if t.IsZero() {
		return true
	}
	elapsed := (now.Year()-t.Year())*12 + int(now.Month()) - int(t.Month())
	if now.Day() < t.Day() {
		elapsed--
	}
	return elapsed >= months
}

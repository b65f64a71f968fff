package cds

import (
	"context"
	"fmt"
	"time"

	"github.com/CompassionateITWEBDEV/Mase-EMR-dev-sub003/internal/ehr"
	"github.com/CompassionateITWEBDEV/Mase-EMR-dev-sub003/internal/shared/types"
)

// stubGenerator is a scripted TextGenerator for extraction and
// synthesis tests.
type stubGenerator struct {
	responses []string
	err       error
	calls     int
}

func (s *stubGenerator) Generate(_ context.Context, _, _ string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	if len(s.responses) == 0 {
		return "", fmt.Errorf("stub: no responses left")
	}
	response := s.responses[0]
	s.responses = s.responses[1:]
	return response, nil
}

func mustDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// mustParseDate parses YYYY-MM-DD; an empty string yields the zero time.
func mustParseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func testPatientID() types.ID {
	return types.MustParseID("2c1d8f0a-3b4e-4c5d-9e6f-708192a3b4c5")
}

// emptyContext returns a minimal context for a patient of the given age.
func emptyContext(age int) *PatientClinicalContext {
	now := time.Now().UTC()
	return &PatientClinicalContext{
		Demographics: Demographics{
			ID:          testPatientID(),
			FirstName:   "Test",
			LastName:    "Patient",
			DateOfBirth: now.AddDate(-age, 0, -1),
			Gender:      ehr.GenderFemale,
			Age:         age,
		},
		Medications:    []ehr.Medication{},
		Problems:       []ehr.Problem{},
		Allergies:      []ehr.Allergy{},
		LabResults:     []ehr.LabResult{},
		VitalSigns:     []ehr.VitalSigns{},
		Encounters:     []ehr.Encounter{},
		TreatmentPlans: []ehr.TreatmentPlan{},
		RecentNotes:    []ehr.Note{},
		AggregatedAt:   now,
	}
}

func withProblem(c *PatientClinicalContext, diagnosis, icd10, status string) *PatientClinicalContext {
	c.Problems = append(c.Problems, ehr.Problem{
		ID: types.NewID(), Diagnosis: diagnosis, ICD10Code: icd10, Status: status,
		OnsetAt: time.Now().UTC().AddDate(-1, 0, 0),
	})
	return c
}

func withMedication(c *PatientClinicalContext, name string, bpMed bool) *PatientClinicalContext {
	c.Medications = append(c.Medications, ehr.Medication{
		ID: types.NewID(), Name: name, Status: "active", BPMedication: bpMed,
		StartedAt: time.Now().UTC().AddDate(0, -6, 0),
	})
	return c
}

func withLab(c *PatientClinicalContext, testName, value string, daysAgo int) *PatientClinicalContext {
	c.LabResults = append(c.LabResults, ehr.LabResult{
		ID: types.NewID(), TestName: testName, Value: value,
		CollectedAt: time.Now().UTC().AddDate(0, 0, -daysAgo),
	})
	return c
}

func withBP(c *PatientClinicalContext, systolic, diastolic int) *PatientClinicalContext {
	c.VitalSigns = append(c.VitalSigns, ehr.VitalSigns{
		ID: types.NewID(), SystolicBP: &systolic, DiastolicBP: &diastolic,
		RecordedAt: time.Now().UTC().AddDate(0, 0, -7),
	})
	return c
}

func withEncounter(c *PatientClinicalContext, encounterType string, daysAgo int) *PatientClinicalContext {
	c.Encounters = append(c.Encounters, ehr.Encounter{
		ID: types.NewID(), Type: encounterType,
		OccurredAt: time.Now().UTC().AddDate(0, 0, -daysAgo),
	})
	return c
}

func summaryWithScores(scores map[string]float64) *NoteSummary {
	summary := emptyNoteSummary()
	for key, value := range scores {
		summary.AssessmentScores[key] = value
	}
	return &summary
}

// findRecommendation returns the first recommendation whose title
// matches, or nil.
func findRecommendation(recs []SpecialtyRecommendation, title string) *SpecialtyRecommendation {
	for i := range recs {
		if recs[i].Title == title {
			return &recs[i]
		}
	}
	return nil
}

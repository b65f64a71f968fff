package cds

import (
	"context"
	"testing"
	"time"

	"github.com/CompassionateITWEBDEV/Mase-EMR-dev-sub003/internal/ehr"
	"github.com/CompassionateITWEBDEV/Mase-EMR-dev-sub003/internal/shared/errors"
	"github.com/CompassionateITWEBDEV/Mase-EMR-dev-sub003/internal/shared/types"
)

// TestCalculateAge tests whole-year age calculation around the birthday
// boundary
func TestCalculateAge(t *testing.T) {
	dob := time.Date(1990, 3, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		now  time.Time
		want int
	}{
		{"day before birthday", time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC), 33},
		{"on birthday", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), 34},
		{"day after birthday", time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC), 34},
		{"earlier month", time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC), 33},
		{"later month", time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), 34},
		{"same year as birth", time.Date(1990, 9, 1, 0, 0, 0, 0, time.UTC), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CalculateAge(dob, tt.now); got != tt.want {
				t.Errorf("CalculateAge(%v, %v) = %d, want %d", dob, tt.now, got, tt.want)
			}
		})
	}
}

// TestAggregateMissingPatient tests that a missing patient is a fatal
// not-found error
func TestAggregateMissingPatient(t *testing.T) {
	store := ehr.NewMemoryStore()
	aggregator := NewAggregator(store, nil, time.Second)

	_, err := aggregator.Aggregate(context.Background(), types.MustParseID("9e107d9d-372b-4b6a-b3f4-271e91d8ad15"), SpecialtyPrimaryCare)
	if err == nil {
		t.Fatal("expected error for missing patient, got nil")
	}
	if !errors.IsNotFound(err) {
		t.Errorf("expected not-found error, got %v", err)
	}
}

// TestAggregateEmptyCollections tests that a patient with no clinical
// data aggregates to empty, non-nil collections
func TestAggregateEmptyCollections(t *testing.T) {
	store := ehr.NewMemoryStore()
	patientID := testPatientID()
	store.AddPatient(ehr.Patient{
		ID:          patientID,
		FirstName:   "Ana",
		LastName:    "Silva",
		DateOfBirth: time.Date(1985, 5, 20, 0, 0, 0, 0, time.UTC),
		Gender:      ehr.GenderFemale,
	})

	aggregator := NewAggregator(store, nil, time.Second)
	clinicalContext, err := aggregator.Aggregate(context.Background(), patientID, SpecialtyPrimaryCare)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}

	if clinicalContext.Medications == nil || clinicalContext.Problems == nil ||
		clinicalContext.Allergies == nil || clinicalContext.LabResults == nil ||
		clinicalContext.VitalSigns == nil || clinicalContext.Encounters == nil ||
		clinicalContext.TreatmentPlans == nil || clinicalContext.RecentNotes == nil {
		t.Error("expected all collections to be non-nil")
	}
	if len(clinicalContext.Medications) != 0 {
		t.Errorf("expected empty medications, got %d", len(clinicalContext.Medications))
	}
	if clinicalContext.NoteSummary != nil {
		t.Error("expected nil note summary with no notes and no extractor")
	}
	if clinicalContext.Demographics.FirstName != "Ana" {
		t.Errorf("demographics first name = %q, want Ana", clinicalContext.Demographics.FirstName)
	}
}

// TestAggregatePopulatesCollections tests a full aggregation over the
// in-memory store
func TestAggregatePopulatesCollections(t *testing.T) {
	store := ehr.NewMemoryStore()
	patientID := testPatientID()
	now := time.Now().UTC()

	store.AddPatient(ehr.Patient{
		ID:          patientID,
		FirstName:   "Leo",
		LastName:    "Tran",
		DateOfBirth: time.Date(1970, 1, 10, 0, 0, 0, 0, time.UTC),
		Gender:      ehr.GenderMale,
	})
	store.AddMedication(patientID, ehr.Medication{
		ID: types.NewID(), Name: "Metformin", Status: "active", StartedAt: now.AddDate(-1, 0, 0),
	})
	store.AddProblem(patientID, ehr.Problem{
		ID: types.NewID(), Diagnosis: "Type 2 diabetes", ICD10Code: "E11.9",
		Status: ehr.ProblemChronic, OnsetAt: now.AddDate(-2, 0, 0),
	})
	store.AddNote(patientID, ehr.Note{
		ID: types.NewID(), Type: "progress", Content: "Stable visit.", WrittenAt: now.AddDate(0, 0, -3),
	})

	aggregator := NewAggregator(store, NewExtractor(nil), time.Second)
	clinicalContext, err := aggregator.Aggregate(context.Background(), patientID, SpecialtyPrimaryCare)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}

	if len(clinicalContext.Medications) != 1 {
		t.Errorf("medications = %d, want 1", len(clinicalContext.Medications))
	}
	if len(clinicalContext.Problems) != 1 {
		t.Errorf("problems = %d, want 1", len(clinicalContext.Problems))
	}
	if clinicalContext.NoteSummary == nil {
		t.Fatal("expected a note summary when notes exist and an extractor is configured")
	}
	if clinicalContext.NoteSummary.Summary == "" {
		t.Error("expected a non-empty fallback summary")
	}
}

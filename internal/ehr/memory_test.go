package ehr

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/CompassionateITWEBDEV/Mase-EMR-dev-sub003/internal/shared/errors"
	"github.com/CompassionateITWEBDEV/Mase-EMR-dev-sub003/internal/shared/types"
)

// TestMemoryStorePatientLookup tests patient fetch and the not-found
// error
func TestMemoryStorePatientLookup(t *testing.T) {
	store := NewMemoryStore()
	patientID := types.MustParseID("5a1b2c3d-4e5f-4a6b-8c7d-9e0f1a2b3c4d")

	store.AddPatient(Patient{
		ID:          patientID,
		FirstName:   "Ivy",
		LastName:    "Moreno",
		DateOfBirth: time.Date(1975, 11, 2, 0, 0, 0, 0, time.UTC),
		Gender:      GenderFemale,
	})

	patient, err := store.FetchPatient(context.Background(), patientID)
	if err != nil {
		t.Fatalf("FetchPatient() error = %v", err)
	}
	if patient.LastName != "Moreno" {
		t.Errorf("last name = %q", patient.LastName)
	}

	_, err = store.FetchPatient(context.Background(), types.MustParseID("0f1e2d3c-4b5a-4968-8776-655443322110"))
	if err == nil {
		t.Fatal("expected an error for an unknown patient")
	}
	if !errors.IsNotFound(err) {
		t.Errorf("expected not-found, got %v", err)
	}
}

// TestMemoryStoreOrderingAndCaps tests newest-first ordering and the
// fetch limit
func TestMemoryStoreOrderingAndCaps(t *testing.T) {
	store := NewMemoryStore()
	patientID := types.MustParseID("5a1b2c3d-4e5f-4a6b-8c7d-9e0f1a2b3c4d")
	store.AddPatient(Patient{ID: patientID, FirstName: "Ivy", LastName: "Moreno"})

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < MaxNotes+5; i++ {
		store.AddNote(patientID, Note{
			ID:        types.NewID(),
			Type:      "progress",
			Content:   fmt.Sprintf("visit %d", i),
			WrittenAt: base.AddDate(0, 0, i),
		})
	}

	notes, err := store.FetchNotes(context.Background(), patientID)
	if err != nil {
		t.Fatalf("FetchNotes() error = %v", err)
	}
	if len(notes) != MaxNotes {
		t.Fatalf("notes = %d, want the cap of %d", len(notes), MaxNotes)
	}
	for i := 1; i < len(notes); i++ {
		if notes[i].WrittenAt.After(notes[i-1].WrittenAt) {
			t.Fatal("notes must be ordered newest first")
		}
	}
	if notes[0].Content != fmt.Sprintf("visit %d", MaxNotes+4) {
		t.Errorf("newest note = %q", notes[0].Content)
	}
}

// TestMemoryStoreEmptyCollections tests that missing sub-collections
// are empty lists, not errors
func TestMemoryStoreEmptyCollections(t *testing.T) {
	store := NewMemoryStore()
	patientID := types.MustParseID("5a1b2c3d-4e5f-4a6b-8c7d-9e0f1a2b3c4d")
	store.AddPatient(Patient{ID: patientID, FirstName: "Ivy", LastName: "Moreno"})

	meds, err := store.FetchMedications(context.Background(), patientID)
	if err != nil {
		t.Fatalf("FetchMedications() error = %v", err)
	}
	if meds == nil || len(meds) != 0 {
		t.Errorf("medications = %v, want an empty list", meds)
	}

	notes, err := store.FetchNotes(context.Background(), patientID)
	if err != nil {
		t.Fatalf("FetchNotes() error = %v", err)
	}
	if notes == nil || len(notes) != 0 {
		t.Errorf("notes = %v, want an empty list", notes)
	}
}

// TestMemoryStoreCopySafety tests that returned slices do not alias
// store internals
func TestMemoryStoreCopySafety(t *testing.T) {
	store := NewMemoryStore()
	patientID := types.MustParseID("5a1b2c3d-4e5f-4a6b-8c7d-9e0f1a2b3c4d")
	store.AddPatient(Patient{ID: patientID, FirstName: "Ivy", LastName: "Moreno"})
	store.AddProblem(patientID, Problem{
		ID: types.NewID(), Diagnosis: "Hypertension", Status: ProblemChronic,
		OnsetAt: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	})

	first, _ := store.FetchProblems(context.Background(), patientID)
	first[0].Diagnosis = "mutated"

	second, _ := store.FetchProblems(context.Background(), patientID)
	if second[0].Diagnosis != "Hypertension" {
		t.Error("fetch must return a copy, not the stored slice")
	}
}

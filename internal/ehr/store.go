package ehr

import (
	"context"

	"github.com/CompassionateITWEBDEV/Mase-EMR-dev-sub003/internal/shared/types"
)

// Store is the read-only interface over the charting data store.
// Implementations connect to the clinic's primary Postgres read model or
// a legacy practice-management system and present one unified API.
//
// Every collection fetch returns newest-first, capped at the collection's
// Max constant. FetchPatient returns errors.NotFound when the patient id
// does not resolve; the collection fetches return empty slices (not an
// error) when nothing is recorded.
type Store interface {
	FetchPatient(ctx context.Context, patientID types.ID) (*Patient, error)

	FetchMedications(ctx context.Context, patientID types.ID) ([]Medication, error)
	FetchProblems(ctx context.Context, patientID types.ID) ([]Problem, error)
	FetchAllergies(ctx context.Context, patientID types.ID) ([]Allergy, error)
	FetchLabResults(ctx context.Context, patientID types.ID) ([]LabResult, error)
	FetchVitalSigns(ctx context.Context, patientID types.ID) ([]VitalSigns, error)
	FetchEncounters(ctx context.Context, patientID types.ID) ([]Encounter, error)
	FetchTreatmentPlans(ctx context.Context, patientID types.ID) ([]TreatmentPlan, error)
	FetchNotes(ctx context.Context, patientID types.ID) ([]Note, error)

	Health(ctx context.Context) error
}

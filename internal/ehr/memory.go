package ehr

import (
	"context"
	"sort"
	"sync"

	"github.com/CompassionateITWEBDEV/Mase-EMR-dev-sub003/internal/shared/errors"
	"github.com/CompassionateITWEBDEV/Mase-EMR-dev-sub003/internal/shared/types"
)

// MemoryStore is an in-memory Store used in tests and in limited mode
// when no database is configured. Fetches return newest-first copies,
// capped like the real stores.
type MemoryStore struct {
	mu sync.RWMutex

	patients       map[types.ID]Patient
	medications    map[types.ID][]Medication
	problems       map[types.ID][]Problem
	allergies      map[types.ID][]Allergy
	labResults     map[types.ID][]LabResult
	vitalSigns     map[types.ID][]VitalSigns
	encounters     map[types.ID][]Encounter
	treatmentPlans map[types.ID][]TreatmentPlan
	notes          map[types.ID][]Note
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		patients:       make(map[types.ID]Patient),
		medications:    make(map[types.ID][]Medication),
		problems:       make(map[types.ID][]Problem),
		allergies:      make(map[types.ID][]Allergy),
		labResults:     make(map[types.ID][]LabResult),
		vitalSigns:     make(map[types.ID][]VitalSigns),
		encounters:     make(map[types.ID][]Encounter),
		treatmentPlans: make(map[types.ID][]TreatmentPlan),
		notes:          make(map[types.ID][]Note),
	}
}

// AddPatient registers a patient record
func (s *MemoryStore) AddPatient(p Patient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patients[p.ID] = p
}

// AddMedication appends a medication for a patient
func (s *MemoryStore) AddMedication(patientID types.ID, m Medication) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.medications[patientID] = append(s.medications[patientID], m)
}

// AddProblem appends a problem-list entry for a patient
func (s *MemoryStore) AddProblem(patientID types.ID, p Problem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.problems[patientID] = append(s.problems[patientID], p)
}

// AddAllergy appends an allergy for a patient
func (s *MemoryStore) AddAllergy(patientID types.ID, a Allergy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allergies[patientID] = append(s.allergies[patientID], a)
}

// AddLabResult appends a lab result for a patient
func (s *MemoryStore) AddLabResult(patientID types.ID, l LabResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.labResults[patientID] = append(s.labResults[patientID], l)
}

// AddVitalSigns appends a vitals measurement for a patient
func (s *MemoryStore) AddVitalSigns(patientID types.ID, v VitalSigns) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vitalSigns[patientID] = append(s.vitalSigns[patientID], v)
}

// AddEncounter appends an encounter for a patient
func (s *MemoryStore) AddEncounter(patientID types.ID, e Encounter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.encounters[patientID] = append(s.encounters[patientID], e)
}

// AddTreatmentPlan appends a stored plan header for a patient
func (s *MemoryStore) AddTreatmentPlan(patientID types.ID, t TreatmentPlan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.treatmentPlans[patientID] = append(s.treatmentPlans[patientID], t)
}

// AddNote appends a free-text note for a patient
func (s *MemoryStore) AddNote(patientID types.ID, n Note) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes[patientID] = append(s.notes[patientID], n)
}

// FetchPatient retrieves the demographic record
func (s *MemoryStore) FetchPatient(ctx context.Context, patientID types.ID) (*Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.patients[patientID]
	if !ok {
		return nil, errors.NotFound("patient", patientID.String())
	}
	return &p, nil
}

// FetchMedications retrieves medications, newest-first
func (s *MemoryStore) FetchMedications(ctx context.Context, patientID types.ID) ([]Medication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := append(make([]Medication, 0), s.medications[patientID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return capSlice(out, MaxMedications), nil
}

// FetchProblems retrieves problems, newest-first
func (s *MemoryStore) FetchProblems(ctx context.Context, patientID types.ID) ([]Problem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := append(make([]Problem, 0), s.problems[patientID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].OnsetAt.After(out[j].OnsetAt) })
	return capSlice(out, MaxProblems), nil
}

// FetchAllergies retrieves allergies, newest-first
func (s *MemoryStore) FetchAllergies(ctx context.Context, patientID types.ID) ([]Allergy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := append(make([]Allergy, 0), s.allergies[patientID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].RecordedAt.After(out[j].RecordedAt) })
	return capSlice(out, MaxAllergies), nil
}

// FetchLabResults retrieves lab results, newest-first
func (s *MemoryStore) FetchLabResults(ctx context.Context, patientID types.ID) ([]LabResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := append(make([]LabResult, 0), s.labResults[patientID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].CollectedAt.After(out[j].CollectedAt) })
	return capSlice(out, MaxLabResults), nil
}

// FetchVitalSigns retrieves vitals, newest-first
func (s *MemoryStore) FetchVitalSigns(ctx context.Context, patientID types.ID) ([]VitalSigns, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := append(make([]VitalSigns, 0), s.vitalSigns[patientID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].RecordedAt.After(out[j].RecordedAt) })
	return capSlice(out, MaxVitalSigns), nil
}

// FetchEncounters retrieves encounters, newest-first
func (s *MemoryStore) FetchEncounters(ctx context.Context, patientID types.ID) ([]Encounter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := append(make([]Encounter, 0), s.encounters[patientID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.After(out[j].OccurredAt) })
	return capSlice(out, MaxEncounters), nil
}

// FetchTreatmentPlans retrieves plan headers, newest-first
func (s *MemoryStore) FetchTreatmentPlans(ctx context.Context, patientID types.ID) ([]TreatmentPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := append(make([]TreatmentPlan, 0), s.treatmentPlans[patientID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return capSlice(out, MaxTreatmentPlans), nil
}

// FetchNotes retrieves notes, newest-first
func (s *MemoryStore) FetchNotes(ctx context.Context, patientID types.ID) ([]Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := append(make([]Note, 0), s.notes[patientID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].WrittenAt.After(out[j].WrittenAt) })
	return capSlice(out, MaxNotes), nil
}

// Health always succeeds for the in-memory store
func (s *MemoryStore) Health(ctx context.Context) error {
	return nil
}

func capSlice[T any](s []T, max int) []T {
	if len(s) > max {
		return s[:max]
	}
	return s
}

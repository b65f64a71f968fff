package cds

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/CompassionateITWEBDEV/Mase-EMR-dev-sub003/internal/ehr"
	"github.com/CompassionateITWEBDEV/Mase-EMR-dev-sub003/internal/shared/types"
)

// Demographics is the patient identity block of an aggregated context.
// Age is derived from the date of birth at aggregation time.
type Demographics struct {
	ID          types.ID   `json:"id"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	DateOfBirth time.Time  `json:"date_of_birth"`
	Gender      ehr.Gender `json:"gender"`
	Age         int        `json:"age"`
}

// PatientClinicalContext is the aggregated read model every downstream
// stage consumes. Collections are always non-nil; a patient with no
// recorded medications gets an empty list, not an absent field.
// NoteSummary is nil when no notes exist or extraction was skipped.
type PatientClinicalContext struct {
	Demographics   Demographics        `json:"demographics"`
	Medications    []ehr.Medication    `json:"medications"`
	Problems       []ehr.Problem       `json:"problems"`
	Allergies      []ehr.Allergy       `json:"allergies"`
	LabResults     []ehr.LabResult     `json:"lab_results"`
	VitalSigns     []ehr.VitalSigns    `json:"vital_signs"`
	Encounters     []ehr.Encounter     `json:"encounters"`
	TreatmentPlans []ehr.TreatmentPlan `json:"treatment_plans"`
	RecentNotes    []ehr.Note          `json:"recent_notes"`
	NoteSummary    *NoteSummary        `json:"note_summary,omitempty"`
	SpecialtyID    string              `json:"specialty_id"`
	AggregatedAt   time.Time           `json:"aggregated_at"`
}

// Aggregator builds a PatientClinicalContext from the EHR store.
// Sub-collection fetches run concurrently, each under its own timeout,
// and a failed fetch degrades to an empty collection.
type Aggregator struct {
	store        ehr.Store
	extractor    *Extractor
	fetchTimeout time.Duration
}

// NewAggregator creates a context aggregator. extractor may be nil, in
// which case no note summary is attached.
func NewAggregator(store ehr.Store, extractor *Extractor, fetchTimeout time.Duration) *Aggregator {
	if fetchTimeout <= 0 {
		fetchTimeout = 5 * time.Second
	}
	return &Aggregator{
		store:        store,
		extractor:    extractor,
		fetchTimeout: fetchTimeout,
	}
}

// Aggregate fetches the patient record and all clinical sub-collections.
// A missing patient is the only fatal condition; everything else
// degrades to empty data.
func (a *Aggregator) Aggregate(ctx context.Context, patientID types.ID, specialtyID string) (*PatientClinicalContext, error) {
	patient, err := a.store.FetchPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	result := &PatientClinicalContext{
		Demographics: Demographics{
			ID:          patient.ID,
			FirstName:   patient.FirstName,
			LastName:    patient.LastName,
			DateOfBirth: patient.DateOfBirth,
			Gender:      patient.Gender,
			Age:         CalculateAge(patient.DateOfBirth, now),
		},
		Medications:    []ehr.Medication{},
		Problems:       []ehr.Problem{},
		Allergies:      []ehr.Allergy{},
		LabResults:     []ehr.LabResult{},
		VitalSigns:     []ehr.VitalSigns{},
		Encounters:     []ehr.Encounter{},
		TreatmentPlans: []ehr.TreatmentPlan{},
		RecentNotes:    []ehr.Note{},
		SpecialtyID:    specialtyID,
		AggregatedAt:   now,
	}

	var wg sync.WaitGroup
	var mu sync.Mutex

	fetch := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fetchCtx, cancel := context.WithTimeout(ctx, a.fetchTimeout)
			defer cancel()
			if err := fn(fetchCtx); err != nil {
				log.Printf("context aggregation: %s fetch failed for patient %s: %v", name, patientID, err)
			}
		}()
	}

	fetch("medications", func(c context.Context) error {
		items, err := a.store.FetchMedications(c, patientID)
		if err != nil {
			return err
		}
		mu.Lock()
		result.Medications = items
		mu.Unlock()
		return nil
	})
	fetch("problems", func(c context.Context) error {
		items, err := a.store.FetchProblems(c, patientID)
		if err != nil {
			return err
		}
		mu.Lock()
		result.Problems = items
		mu.Unlock()
		return nil
	})
	fetch("allergies", func(c context.Context) error {
		items, err := a.store.FetchAllergies(c, patientID)
		if err != nil {
			return err
		}
		mu.Lock()
		result.Allergies = items
		mu.Unlock()
		return nil
	})
	fetch("lab_results", func(c context.Context) error {
		items, err := a.store.FetchLabResults(c, patientID)
		if err != nil {
			return err
		}
		mu.Lock()
		result.LabResults = items
		mu.Unlock()
		return nil
	})
	fetch("vital_signs", func(c context.Context) error {
		items, err := a.store.FetchVitalSigns(c, patientID)
		if err != nil {
			return err
		}
		mu.Lock()
		result.VitalSigns = items
		mu.Unlock()
		return nil
	})
	fetch("encounters", func(c context.Context) error {
		items, err := a.store.FetchEncounters(c, patientID)
		if err != nil {
			return err
		}
		mu.Lock()
		result.Encounters = items
		mu.Unlock()
		return nil
	})
	fetch("treatment_plans", func(c context.Context) error {
		items, err := a.store.FetchTreatmentPlans(c, patientID)
		if err != nil {
			return err
		}
		mu.Lock()
		result.TreatmentPlans = items
		mu.Unlock()
		return nil
	})
	fetch("notes", func(c context.Context) error {
		items, err := a.store.FetchNotes(c, patientID)
		if err != nil {
			return err
		}
		mu.Lock()
		result.RecentNotes = items
		mu.Unlock()
		return nil
	})

	wg.Wait()

	if a.extractor != nil && len(result.RecentNotes) > 0 {
		summary := a.extractor.Extract(ctx, result.RecentNotes, specialtyID)
		result.NoteSummary = &summary
	}

	return result, nil
}

// CalculateAge returns whole years between dob and now, counting a year
// as complete only once the birthday month and day have been reached.
func CalculateAge(dob, now time.Time) int {
	years := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}

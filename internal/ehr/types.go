package ehr

import (
	"time"

	"github.com/CompassionateITWEBDEV/Mase-EMR-dev-sub003/internal/shared/types"
)

// Gender represents patient gender
type Gender string

const (
	GenderMale    Gender = "male"
	GenderFemale  Gender = "female"
	GenderOther   Gender = "other"
	GenderUnknown Gender = "unknown"
)

// Patient is the demographic record from the charting store
type Patient struct {
	ID          types.ID  `json:"id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	DateOfBirth time.Time `json:"date_of_birth"`
	Gender      Gender    `json:"gender"`
}

// Medication represents an active or historical medication order
type Medication struct {
	ID           types.ID   `json:"id"`
	Name         string     `json:"name"`
	Dosage       string     `json:"dosage,omitempty"`
	Frequency    string     `json:"frequency,omitempty"`
	Status       string     `json:"status"` // active, stopped, held
	BPMedication bool       `json:"bp_medication"`
	StartedAt    time.Time  `json:"started_at"`
	StoppedAt    *time.Time `json:"stopped_at,omitempty"`
}

// Problem statuses. Chronic problems count as active for rule
// evaluation; resolved ones do not.
const (
	ProblemActive   = "active"
	ProblemChronic  = "chronic"
	ProblemResolved = "resolved"
)

// Problem represents a problem-list entry
type Problem struct {
	ID        types.ID  `json:"id"`
	Diagnosis string    `json:"diagnosis"`
	ICD10Code string    `json:"icd10_code,omitempty"`
	Status    string    `json:"status"` // active, resolved, chronic
	OnsetAt   time.Time `json:"onset_at"`
}

// Allergy represents a recorded allergy
type Allergy struct {
	ID         types.ID  `json:"id"`
	Substance  string    `json:"substance"`
	Reaction   string    `json:"reaction,omitempty"`
	Severity   string    `json:"severity,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// LabResult represents a laboratory test result. Value stays a string:
// toxicology screens report qualitative results ("negative",
// "positive - opiates") alongside numeric panels.
type LabResult struct {
	ID          types.ID  `json:"id"`
	TestName    string    `json:"test_name"`
	Value       string    `json:"value"`
	Unit        string    `json:"unit,omitempty"`
	CollectedAt time.Time `json:"collected_at"`
}

// VitalSigns is one timestamped vitals measurement. Fields are pointers
// because a reading may record any subset.
type VitalSigns struct {
	ID           types.ID  `json:"id"`
	SystolicBP   *int      `json:"systolic_bp,omitempty"`
	DiastolicBP  *int      `json:"diastolic_bp,omitempty"`
	HeartRate    *int      `json:"heart_rate,omitempty"`
	Temperature  *float64  `json:"temperature,omitempty"`
	WeightKg     *float64  `json:"weight_kg,omitempty"`
	O2Saturation *int      `json:"o2_saturation,omitempty"`
	RecordedAt   time.Time `json:"recorded_at"`
}

// Encounter types as recorded by the scheduling system.
const (
	EncounterOffice     = "office"
	EncounterTelehealth = "telehealth"
	EncounterHospital   = "hospital"
	EncounterEmergency  = "emergency"
	EncounterIntake     = "intake"
)

// Encounter represents a visit of any type
type Encounter struct {
	ID         types.ID  `json:"id"`
	Type       string    `json:"type"` // office, telehealth, hospital, emergency, intake
	Reason     string    `json:"reason,omitempty"`
	Provider   string    `json:"provider,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// TreatmentPlan is a stored plan header; the pipeline never mutates these
type TreatmentPlan struct {
	ID        types.ID  `json:"id"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Note is a free-text clinical note
type Note struct {
	ID        types.ID  `json:"id"`
	Type      string    `json:"type"` // progress, intake, consult, discharge
	Content   string    `json:"content"`
	Author    string    `json:"author,omitempty"`
	WrittenAt time.Time `json:"written_at"`
}

// Per-collection page caps. Every fetch is newest-first and capped.
const (
	MaxMedications    = 20
	MaxProblems       = 20
	MaxAllergies      = 20
	MaxLabResults     = 50
	MaxVitalSigns     = 30
	MaxEncounters     = 50
	MaxTreatmentPlans = 10
	MaxNotes          = 10
)

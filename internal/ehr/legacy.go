package ehr

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/CompassionateITWEBDEV/Mase-EMR-dev-sub003/internal/shared/config"
	"github.com/CompassionateITWEBDEV/Mase-EMR-dev-sub003/internal/shared/errors"
	"github.com/CompassionateITWEBDEV/Mase-EMR-dev-sub003/internal/shared/types"
	_ "github.com/denisenkom/go-mssqldb" // SQL Server driver
)

// LegacyStore implements Store against the legacy practice-management
// system (SQL Server). Clinics mid-migration run the pipeline against
// this store until their chart history lands in the primary read model.
//
// The legacy schema does not track the bp_medication flag or treatment
// plan records; those surface as false/empty, which downstream rules
// treat as insufficient evidence.
type LegacyStore struct {
	db *sql.DB
}

// NewLegacyStore opens a connection to the legacy system
func NewLegacyStore(cfg config.LegacyEHRConfig) (*LegacyStore, error) {
	db, err := sql.Open("sqlserver", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open legacy EHR connection: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)

	return &LegacyStore{db: db}, nil
}

// FetchPatient retrieves the demographic record
func (s *LegacyStore) FetchPatient(ctx context.Context, patientID types.ID) (*Patient, error) {
	query := `
		SELECT PatientID, FirstName, LastName, DateOfBirth, COALESCE(Gender, 'unknown')
		FROM dbo.Patients
		WHERE PatientID = @p1`

	p := &Patient{}
	err := s.db.QueryRowContext(ctx, query, patientID.String()).Scan(
		&p.ID, &p.FirstName, &p.LastName, &p.DateOfBirth, &p.Gender,
	)

	if err == sql.ErrNoRows {
		return nil, errors.NotFound("patient", patientID.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch patient from legacy EHR")
	}

	return p, nil
}

// FetchMedications retrieves medication orders, newest-first
func (s *LegacyStore) FetchMedications(ctx context.Context, patientID types.ID) ([]Medication, error) {
	query := fmt.Sprintf(`
		SELECT TOP %d MedicationID, DrugName, COALESCE(Dosage, ''), COALESCE(Frequency, ''),
			COALESCE(Status, 'active'), StartDate, EndDate
		FROM dbo.Medications
		WHERE PatientID = @p1
		ORDER BY StartDate DESC`, MaxMedications)

	rows, err := s.db.QueryContext(ctx, query, patientID.String())
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch medications from legacy EHR")
	}
	defer rows.Close()

	meds := make([]Medication, 0)
	for rows.Next() {
		var m Medication
		if err := rows.Scan(&m.ID, &m.Name, &m.Dosage, &m.Frequency,
			&m.Status, &m.StartedAt, &m.StoppedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan legacy medication")
		}
		meds = append(meds, m)
	}

	return meds, rows.Err()
}

// FetchProblems retrieves diagnoses, newest-first
func (s *LegacyStore) FetchProblems(ctx context.Context, patientID types.ID) ([]Problem, error) {
	query := fmt.Sprintf(`
		SELECT TOP %d DiagnosisID, Description, COALESCE(ICD10, ''),
			COALESCE(Status, 'active'), DiagnosedDate
		FROM dbo.Diagnoses
		WHERE PatientID = @p1
		ORDER BY DiagnosedDate DESC`, MaxProblems)

	rows, err := s.db.QueryContext(ctx, query, patientID.String())
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch diagnoses from legacy EHR")
	}
	defer rows.Close()

	problems := make([]Problem, 0)
	for rows.Next() {
		var p Problem
		if err := rows.Scan(&p.ID, &p.Diagnosis, &p.ICD10Code, &p.Status, &p.OnsetAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan legacy diagnosis")
		}
		problems = append(problems, p)
	}

	return problems, rows.Err()
}

// FetchAllergies retrieves recorded allergies, newest-first
func (s *LegacyStore) FetchAllergies(ctx context.Context, patientID types.ID) ([]Allergy, error) {
	query := fmt.Sprintf(`
		SELECT TOP %d AllergyID, Substance, COALESCE(Reaction, ''),
			COALESCE(Severity, ''), RecordedDate
		FROM dbo.Allergies
		WHERE PatientID = @p1
		ORDER BY RecordedDate DESC`, MaxAllergies)

	rows, err := s.db.QueryContext(ctx, query, patientID.String())
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch allergies from legacy EHR")
	}
	defer rows.Close()

	allergies := make([]Allergy, 0)
	for rows.Next() {
		var a Allergy
		if err := rows.Scan(&a.ID, &a.Substance, &a.Reaction, &a.Severity, &a.RecordedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan legacy allergy")
		}
		allergies = append(allergies, a)
	}

	return allergies, rows.Err()
}

// FetchLabResults retrieves lab results, newest-first
func (s *LegacyStore) FetchLabResults(ctx context.Context, patientID types.ID) ([]LabResult, error) {
	query := fmt.Sprintf(`
		SELECT TOP %d ResultID, TestName, ResultValue, COALESCE(Unit, ''), CollectedDate
		FROM dbo.LabResults
		WHERE PatientID = @p1
		ORDER BY CollectedDate DESC`, MaxLabResults)

	rows, err := s.db.QueryContext(ctx, query, patientID.String())
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch lab results from legacy EHR")
	}
	defer rows.Close()

	labs := make([]LabResult, 0)
	for rows.Next() {
		var l LabResult
		if err := rows.Scan(&l.ID, &l.TestName, &l.Value, &l.Unit, &l.CollectedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan legacy lab result")
		}
		labs = append(labs, l)
	}

	return labs, rows.Err()
}

// FetchVitalSigns retrieves vitals measurements, newest-first
func (s *LegacyStore) FetchVitalSigns(ctx context.Context, patientID types.ID) ([]VitalSigns, error) {
	query := fmt.Sprintf(`
		SELECT TOP %d VitalID, SystolicBP, DiastolicBP, HeartRate, Temperature,
			WeightKg, O2Saturation, RecordedDate
		FROM dbo.VitalSigns
		WHERE PatientID = @p1
		ORDER BY RecordedDate DESC`, MaxVitalSigns)

	rows, err := s.db.QueryContext(ctx, query, patientID.String())
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch vital signs from legacy EHR")
	}
	defer rows.Close()

	vitals := make([]VitalSigns, 0)
	for rows.Next() {
		var v VitalSigns
		if err := rows.Scan(&v.ID, &v.SystolicBP, &v.DiastolicBP, &v.HeartRate,
			&v.Temperature, &v.WeightKg, &v.O2Saturation, &v.RecordedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan legacy vital signs")
		}
		vitals = append(vitals, v)
	}

	return vitals, rows.Err()
}

// FetchEncounters retrieves visits, newest-first
func (s *LegacyStore) FetchEncounters(ctx context.Context, patientID types.ID) ([]Encounter, error) {
	query := fmt.Sprintf(`
		SELECT TOP %d VisitID, COALESCE(VisitType, 'office'), COALESCE(Reason, ''),
			COALESCE(ProviderName, ''), VisitDate
		FROM dbo.Visits
		WHERE PatientID = @p1
		ORDER BY VisitDate DESC`, MaxEncounters)

	rows, err := s.db.QueryContext(ctx, query, patientID.String())
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch visits from legacy EHR")
	}
	defer rows.Close()

	encounters := make([]Encounter, 0)
	for rows.Next() {
		var e Encounter
		if err := rows.Scan(&e.ID, &e.Type, &e.Reason, &e.Provider, &e.OccurredAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan legacy visit")
		}
		encounters = append(encounters, e)
	}

	return encounters, rows.Err()
}

// FetchTreatmentPlans is empty for the legacy system; plans only exist
// in the primary read model
func (s *LegacyStore) FetchTreatmentPlans(ctx context.Context, patientID types.ID) ([]TreatmentPlan, error) {
	return []TreatmentPlan{}, nil
}

// FetchNotes retrieves free-text notes, newest-first
func (s *LegacyStore) FetchNotes(ctx context.Context, patientID types.ID) ([]Note, error) {
	query := fmt.Sprintf(`
		SELECT TOP %d NoteID, COALESCE(NoteType, 'progress'), NoteText,
			COALESCE(Author, ''), WrittenDate
		FROM dbo.ClinicalNotes
		WHERE PatientID = @p1
		ORDER BY WrittenDate DESC`, MaxNotes)

	rows, err := s.db.QueryContext(ctx, query, patientID.String())
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch notes from legacy EHR")
	}
	defer rows.Close()

	notes := make([]Note, 0)
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.Type, &n.Content, &n.Author, &n.WrittenAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan legacy note")
		}
		notes = append(notes, n)
	}

	return notes, rows.Err()
}

// Health checks legacy system connectivity
func (s *LegacyStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying connection
func (s *LegacyStore) Close() error {
	return s.db.Close()
}

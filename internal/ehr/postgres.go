package ehr

import (
	"context"
	"time"

	"github.com/CompassionateITWEBDEV/Mase-EMR-dev-sub003/internal/shared/errors"
	"github.com/CompassionateITWEBDEV/Mase-EMR-dev-sub003/internal/shared/metrics"
	"github.com/CompassionateITWEBDEV/Mase-EMR-dev-sub003/internal/shared/types"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore reads the clinical schema written by the charting screens
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a store over the primary read model
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// FetchPatient retrieves the demographic record
func (s *PostgresStore) FetchPatient(ctx context.Context, patientID types.ID) (*Patient, error) {
	defer observe("patients", time.Now())

	query := `
		SELECT id, first_name, last_name, date_of_birth, gender
		FROM clinical.patients
		WHERE id = $1`

	p := &Patient{}
	err := s.pool.QueryRow(ctx, query, patientID).Scan(
		&p.ID, &p.FirstName, &p.LastName, &p.DateOfBirth, &p.Gender,
	)

	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("patient", patientID.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch patient")
	}

	return p, nil
}

// FetchMedications retrieves medication orders, newest-first
func (s *PostgresStore) FetchMedications(ctx context.Context, patientID types.ID) ([]Medication, error) {
	defer observe("medications", time.Now())

	query := `
		SELECT id, name, COALESCE(dosage, ''), COALESCE(frequency, ''),
			status, bp_medication, started_at, stopped_at
		FROM clinical.medications
		WHERE patient_id = $1
		ORDER BY started_at DESC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, patientID, MaxMedications)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch medications")
	}
	defer rows.Close()

	meds := make([]Medication, 0)
	for rows.Next() {
		var m Medication
		if err := rows.Scan(&m.ID, &m.Name, &m.Dosage, &m.Frequency,
			&m.Status, &m.BPMedication, &m.StartedAt, &m.StoppedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan medication")
		}
		meds = append(meds, m)
	}

	return meds, rows.Err()
}

// FetchProblems retrieves problem-list entries, newest-first
func (s *PostgresStore) FetchProblems(ctx context.Context, patientID types.ID) ([]Problem, error) {
	defer observe("problems", time.Now())

	query := `
		SELECT id, diagnosis, COALESCE(icd10_code, ''), status, onset_at
		FROM clinical.problems
		WHERE patient_id = $1
		ORDER BY onset_at DESC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, patientID, MaxProblems)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch problems")
	}
	defer rows.Close()

	problems := make([]Problem, 0)
	for rows.Next() {
		var p Problem
		if err := rows.Scan(&p.ID, &p.Diagnosis, &p.ICD10Code, &p.Status, &p.OnsetAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan problem")
		}
		problems = append(problems, p)
	}

	return problems, rows.Err()
}

// FetchAllergies retrieves recorded allergies, newest-first
func (s *PostgresStore) FetchAllergies(ctx context.Context, patientID types.ID) ([]Allergy, error) {
	defer observe("allergies", time.Now())

	query := `
		SELECT id, substance, COALESCE(reaction, ''), COALESCE(severity, ''), recorded_at
		FROM clinical.allergies
		WHERE patient_id = $1
		ORDER BY recorded_at DESC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, patientID, MaxAllergies)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch allergies")
	}
	defer rows.Close()

	allergies := make([]Allergy, 0)
	for rows.Next() {
		var a Allergy
		if err := rows.Scan(&a.ID, &a.Substance, &a.Reaction, &a.Severity, &a.RecordedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan allergy")
		}
		allergies = append(allergies, a)
	}

	return allergies, rows.Err()
}

// FetchLabResults retrieves lab results, newest-first
func (s *PostgresStore) FetchLabResults(ctx context.Context, patientID types.ID) ([]LabResult, error) {
	defer observe("lab_results", time.Now())

	query := `
		SELECT id, test_name, value, COALESCE(unit, ''), collected_at
		FROM clinical.lab_results
		WHERE patient_id = $1
		ORDER BY collected_at DESC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, patientID, MaxLabResults)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch lab results")
	}
	defer rows.Close()

	labs := make([]LabResult, 0)
	for rows.Next() {
		var l LabResult
		if err := rows.Scan(&l.ID, &l.TestName, &l.Value, &l.Unit, &l.CollectedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan lab result")
		}
		labs = append(labs, l)
	}

	return labs, rows.Err()
}

// FetchVitalSigns retrieves vitals measurements, newest-first
func (s *PostgresStore) FetchVitalSigns(ctx context.Context, patientID types.ID) ([]VitalSigns, error) {
	defer observe("vital_signs", time.Now())

	query := `
		SELECT id, systolic_bp, diastolic_bp, heart_rate, temperature,
			weight_kg, o2_saturation, recorded_at
		FROM clinical.vital_signs
		WHERE patient_id = $1
		ORDER BY recorded_at DESC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, patientID, MaxVitalSigns)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch vital signs")
	}
	defer rows.Close()

	vitals := make([]VitalSigns, 0)
	for rows.Next() {
		var v VitalSigns
		if err := rows.Scan(&v.ID, &v.SystolicBP, &v.DiastolicBP, &v.HeartRate,
			&v.Temperature, &v.WeightKg, &v.O2Saturation, &v.RecordedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan vital signs")
		}
		vitals = append(vitals, v)
	}

	return vitals, rows.Err()
}

// FetchEncounters retrieves encounters, newest-first
func (s *PostgresStore) FetchEncounters(ctx context.Context, patientID types.ID) ([]Encounter, error) {
	defer observe("encounters", time.Now())

	query := `
		SELECT id, type, COALESCE(reason, ''), COALESCE(provider, ''), occurred_at
		FROM clinical.encounters
		WHERE patient_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, patientID, MaxEncounters)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch encounters")
	}
	defer rows.Close()

	encounters := make([]Encounter, 0)
	for rows.Next() {
		var e Encounter
		if err := rows.Scan(&e.ID, &e.Type, &e.Reason, &e.Provider, &e.OccurredAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan encounter")
		}
		encounters = append(encounters, e)
	}

	return encounters, rows.Err()
}

// FetchTreatmentPlans retrieves stored plan headers, newest-first
func (s *PostgresStore) FetchTreatmentPlans(ctx context.Context, patientID types.ID) ([]TreatmentPlan, error) {
	defer observe("treatment_plans", time.Now())

	query := `
		SELECT id, title, status, created_at
		FROM clinical.treatment_plans
		WHERE patient_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, patientID, MaxTreatmentPlans)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch treatment plans")
	}
	defer rows.Close()

	plans := make([]TreatmentPlan, 0)
	for rows.Next() {
		var t TreatmentPlan
		if err := rows.Scan(&t.ID, &t.Title, &t.Status, &t.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan treatment plan")
		}
		plans = append(plans, t)
	}

	return plans, rows.Err()
}

// FetchNotes retrieves free-text notes, newest-first
func (s *PostgresStore) FetchNotes(ctx context.Context, patientID types.ID) ([]Note, error) {
	defer observe("notes", time.Now())

	query := `
		SELECT id, type, content, COALESCE(author, ''), written_at
		FROM clinical.notes
		WHERE patient_id = $1
		ORDER BY written_at DESC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, patientID, MaxNotes)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch notes")
	}
	defer rows.Close()

	notes := make([]Note, 0)
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.Type, &n.Content, &n.Author, &n.WrittenAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan note")
		}
		notes = append(notes, n)
	}

	return notes, rows.Err()
}

// Health checks store connectivity
func (s *PostgresStore) Health(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func observe(collection string, start time.Time) {
	metrics.RecordStoreQuery(collection, time.Since(start))
}

package cds

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/CompassionateITWEBDEV/Mase-EMR-dev-sub003/internal/ehr"
)

func newTestHandler(t *testing.T) (*Handler, *ehr.MemoryStore) {
	t.Helper()
	store := ehr.NewMemoryStore()
	return NewHandler(newTestPipeline(store), SpecialtyPrimaryCare), store
}

// TestListSpecialties tests the specialty catalog endpoint
func TestListSpecialties(t *testing.T) {
	handler, _ := newTestHandler(t)
	server := httptest.NewServer(handler.Routes())
	defer server.Close()

	resp, err := http.Get(server.URL + "/specialties")
	if err != nil {
		t.Fatalf("GET /specialties: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Specialties []struct {
			ID        string   `json:"id"`
			Protocols []string `json:"protocols"`
		} `json:"specialties"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(body.Specialties) != len(KnownSpecialties()) {
		t.Errorf("specialties = %d, want %d", len(body.Specialties), len(KnownSpecialties()))
	}
	for _, specialty := range body.Specialties {
		if specialty.ID == SpecialtyBehavioralHealth && len(specialty.Protocols) == 0 {
			t.Error("behavioral health must list its protocols")
		}
	}
}

// TestEvaluateEndpoint tests the full evaluation endpoint
func TestEvaluateEndpoint(t *testing.T) {
	handler, store := newTestHandler(t)
	patientID := seedBehavioralHealthChart(store)

	server := httptest.NewServer(handler.Routes())
	defer server.Close()

	resp, err := http.Post(server.URL+"/patients/"+patientID.String()+"/evaluate?specialty=behavioral-health", "application/json", nil)
	if err != nil {
		t.Fatalf("POST evaluate: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if result.SpecialtyID != SpecialtyBehavioralHealth {
		t.Errorf("specialty = %q", result.SpecialtyID)
	}
	if len(result.RiskScores) == 0 {
		t.Error("expected risk scores in the response")
	}
	if result.NoteDraft != nil {
		t.Error("note draft must be absent unless requested")
	}
}

// TestEvaluateInvalidPatientID tests parameter validation
func TestEvaluateInvalidPatientID(t *testing.T) {
	handler, _ := newTestHandler(t)
	server := httptest.NewServer(handler.Routes())
	defer server.Close()

	resp, err := http.Post(server.URL+"/patients/not-a-uuid/evaluate", "application/json", nil)
	if err != nil {
		t.Fatalf("POST evaluate: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

// TestEvaluateUnknownPatient tests the not-found mapping
func TestEvaluateUnknownPatient(t *testing.T) {
	handler, _ := newTestHandler(t)
	server := httptest.NewServer(handler.Routes())
	defer server.Close()

	resp, err := http.Post(server.URL+"/patients/a2e5f0c4-91d3-4b6a-8c7e-5f0d1b2a3c4d/evaluate", "application/json", nil)
	if err != nil {
		t.Fatalf("POST evaluate: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

// TestRiskScoresEndpoint tests the risk-scores read endpoint and the
// default specialty fallback
func TestRiskScoresEndpoint(t *testing.T) {
	handler, store := newTestHandler(t)
	patientID := seedBehavioralHealthChart(store)

	server := httptest.NewServer(handler.Routes())
	defer server.Close()

	resp, err := http.Get(server.URL + "/patients/" + patientID.String() + "/risk-scores")
	if err != nil {
		t.Fatalf("GET risk-scores: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		SpecialtyID string      `json:"specialty_id"`
		RiskScores  []RiskScore `json:"risk_scores"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if body.SpecialtyID != SpecialtyPrimaryCare {
		t.Errorf("specialty = %q, want the configured default", body.SpecialtyID)
	}
	if len(body.RiskScores) == 0 {
		t.Error("expected risk scores")
	}
}

// TestNoteDraftEndpoint tests draft creation over HTTP
func TestNoteDraftEndpoint(t *testing.T) {
	handler, store := newTestHandler(t)
	patientID := seedBehavioralHealthChart(store)

	server := httptest.NewServer(handler.Routes())
	defer server.Close()

	resp, err := http.Post(server.URL+"/patients/"+patientID.String()+"/note-draft?specialty=behavioral-health", "application/json", nil)
	if err != nil {
		t.Fatalf("POST note-draft: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}

	var draft NoteDraft
	if err := json.NewDecoder(resp.Body).Decode(&draft); err != nil {
		t.Fatalf("decoding draft: %v", err)
	}
	if draft.Status != DraftStatus {
		t.Errorf("status = %q, want draft", draft.Status)
	}
	if draft.PatientID != patientID {
		t.Error("draft must carry the patient id")
	}
}

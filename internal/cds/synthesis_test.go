package cds

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/CompassionateITWEBDEV/Mase-EMR-dev-sub003/internal/ehr"
)

// TestNoteDraftTemplate tests the deterministic note draft path
func TestNoteDraftTemplate(t *testing.T) {
	c := emptyContext(58)
	c.SpecialtyID = SpecialtyPrimaryCare
	withProblem(c, "Essential hypertension", "I10", ehr.ProblemChronic)
	withBP(c, 150, 92)

	recs := []SpecialtyRecommendation{
		{Type: RecAlert, Priority: PriorityHigh, Title: "Blood Pressure Above Goal", Action: "Recheck blood pressure and review antihypertensive regimen"},
	}

	synthesizer := NewSynthesizer(nil)
	draft := synthesizer.GenerateNoteDraft(context.Background(), c, recs)

	if draft.Status != DraftStatus {
		t.Errorf("status = %q, want draft", draft.Status)
	}
	if draft.GeneratedBy != GeneratedByTemplate {
		t.Errorf("generated by = %q, want template", draft.GeneratedBy)
	}
	if draft.PatientID != c.Demographics.ID {
		t.Error("draft must carry the patient id")
	}
	if !strings.Contains(draft.Objective, "150/92") {
		t.Errorf("objective %q missing the blood pressure reading", draft.Objective)
	}
	if !strings.Contains(draft.Assessment, "Essential hypertension") {
		t.Errorf("assessment %q missing the active problem", draft.Assessment)
	}
	if !strings.Contains(draft.Plan, "Recheck blood pressure") {
		t.Errorf("plan %q missing the recommendation action", draft.Plan)
	}
}

// TestNoteDraftModel tests the model-generated note draft path
func TestNoteDraftModel(t *testing.T) {
	gen := &stubGenerator{responses: []string{
		`{"subjective": "Feels well.", "objective": "BP 128/80.", "assessment": "Hypertension, controlled.", "plan": "Continue current therapy."}`,
	}}
	c := emptyContext(58)
	c.SpecialtyID = SpecialtyPrimaryCare

	draft := NewSynthesizer(gen).GenerateNoteDraft(context.Background(), c, nil)

	if draft.GeneratedBy != GeneratedByModel {
		t.Errorf("generated by = %q, want model", draft.GeneratedBy)
	}
	if draft.Assessment != "Hypertension, controlled." {
		t.Errorf("assessment = %q", draft.Assessment)
	}
	if draft.Status != DraftStatus {
		t.Errorf("status = %q, drafts are never auto-signed", draft.Status)
	}
}

// TestNoteDraftModelFailure tests degradation to the template on
// generation errors
func TestNoteDraftModelFailure(t *testing.T) {
	gen := &stubGenerator{err: fmt.Errorf("timeout")}
	c := emptyContext(58)
	c.SpecialtyID = SpecialtyPrimaryCare

	draft := NewSynthesizer(gen).GenerateNoteDraft(context.Background(), c, nil)
	if draft.GeneratedBy != GeneratedByTemplate {
		t.Errorf("generated by = %q, want template after a model failure", draft.GeneratedBy)
	}
	if draft.Plan == "" {
		t.Error("template draft must still carry a plan section")
	}
}

// TestTreatmentPlanTemplate tests the specialty-keyed plan defaults
func TestTreatmentPlanTemplate(t *testing.T) {
	c := emptyContext(33)
	c.SpecialtyID = SpecialtyBehavioralHealth

	recs := []SpecialtyRecommendation{
		{Type: RecGap, Priority: PriorityHigh, Title: "42 CFR Part 2 Consent Documentation", Action: "Obtain and document Part 2 consent before any disclosure"},
	}

	draft := NewSynthesizer(nil).GenerateTreatmentPlanDraft(context.Background(), c, recs, nil)

	if draft.Status != DraftStatus || draft.GeneratedBy != GeneratedByTemplate {
		t.Errorf("got %s/%s, want draft/template", draft.Status, draft.GeneratedBy)
	}
	if len(draft.Goals) == 0 {
		t.Fatal("expected specialty default goals")
	}
	if !strings.Contains(strings.Join(draft.Goals, " "), "abstinence") {
		t.Errorf("goals %v missing the behavioral health defaults", draft.Goals)
	}
	found := false
	for _, intervention := range draft.Interventions {
		if strings.Contains(intervention, "Part 2 consent") {
			found = true
		}
	}
	if !found {
		t.Error("open gap actions should be folded into the interventions")
	}
}

// TestTreatmentPlanGenericDefaults tests the fallback for specialties
// without a template entry
func TestTreatmentPlanGenericDefaults(t *testing.T) {
	c := emptyContext(33)
	c.SpecialtyID = SpecialtySpeechTherapy

	draft := NewSynthesizer(nil).GenerateTreatmentPlanDraft(context.Background(), c, nil, nil)
	if len(draft.Goals) == 0 || len(draft.Interventions) == 0 {
		t.Error("generic defaults must still produce goals and interventions")
	}
}

// TestTreatmentPlanModel tests the model path for plan drafts
func TestTreatmentPlanModel(t *testing.T) {
	gen := &stubGenerator{responses: []string{
		`{"narrative": "Continue MAT with weekly counseling.", "goals": ["Sustained recovery"], "interventions": ["Weekly counseling"]}`,
	}}
	c := emptyContext(33)
	c.SpecialtyID = SpecialtyBehavioralHealth

	draft := NewSynthesizer(gen).GenerateTreatmentPlanDraft(context.Background(), c, nil, []RiskScore{{Name: "relapse", Value: 10, Category: RiskLow, Interpretation: "Relapse risk score 10 (low)."}})

	if draft.GeneratedBy != GeneratedByModel {
		t.Errorf("generated by = %q, want model", draft.GeneratedBy)
	}
	if len(draft.Goals) != 1 || draft.Goals[0] != "Sustained recovery" {
		t.Errorf("goals = %v", draft.Goals)
	}
}

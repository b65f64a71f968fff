package cds

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/CompassionateITWEBDEV/Mase-EMR-dev-sub003/internal/shared/metrics"
	"github.com/CompassionateITWEBDEV/Mase-EMR-dev-sub003/internal/shared/types"
)

// DraftStatus is always "draft": synthesized artifacts are never
// auto-signed and require clinician review.
const DraftStatus = "draft"

// Generation sources recorded on drafts.
const (
	GeneratedByModel    = "model"
	GeneratedByTemplate = "template"
)

// NoteDraft is a SOAP-structured visit note awaiting clinician review.
type NoteDraft struct {
	ID          types.ID  `json:"id"`
	PatientID   types.ID  `json:"patient_id"`
	SpecialtyID string    `json:"specialty_id"`
	Status      string    `json:"status"`
	Subjective  string    `json:"subjective"`
	Objective   string    `json:"objective"`
	Assessment  string    `json:"assessment"`
	Plan        string    `json:"plan"`
	GeneratedBy string    `json:"generated_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// TreatmentPlanDraft is a proposed treatment plan awaiting clinician
// review.
type TreatmentPlanDraft struct {
	ID            types.ID  `json:"id"`
	PatientID     types.ID  `json:"patient_id"`
	SpecialtyID   string    `json:"specialty_id"`
	Status        string    `json:"status"`
	Narrative     string    `json:"narrative"`
	Goals         []string  `json:"goals"`
	Interventions []string  `json:"interventions"`
	GeneratedBy   string    `json:"generated_by"`
	CreatedAt     time.Time `json:"created_at"`
}

// Synthesizer produces review-ready drafts from pipeline output. Like
// the extractor it is total: model failures fall back to deterministic
// templates.
type Synthesizer struct {
	gen TextGenerator
}

// NewSynthesizer creates a synthesizer. gen may be nil, forcing the
// template path.
func NewSynthesizer(gen TextGenerator) *Synthesizer {
	return &Synthesizer{gen: gen}
}

const noteDraftSystem = `You are a clinical documentation assistant drafting a SOAP note for clinician review. Respond with a single JSON object with string fields "subjective", "objective", "assessment", and "plan". Do not include any text outside the JSON object.`

const planDraftSystem = `You are a clinical documentation assistant drafting a treatment plan for clinician review. Respond with a single JSON object with fields "narrative" (string), "goals" (list of strings), and "interventions" (list of strings). Do not include any text outside the JSON object.`

// GenerateNoteDraft produces a SOAP note draft for the visit.
func (s *Synthesizer) GenerateNoteDraft(ctx context.Context, c *PatientClinicalContext, recs []SpecialtyRecommendation) NoteDraft {
	draft := NoteDraft{
		ID:          types.NewID(),
		PatientID:   c.Demographics.ID,
		SpecialtyID: c.SpecialtyID,
		Status:      DraftStatus,
		CreatedAt:   time.Now().UTC(),
	}

	if s.gen != nil {
		prompt := buildSynthesisPrompt(c, recs)
		text, err := s.gen.Generate(ctx, noteDraftSystem, prompt)
		metrics.RecordAICall("note_draft", err)
		if err == nil {
			if fields, ok := decodeDraftFields(text); ok {
				draft.Subjective = fields["subjective"]
				draft.Objective = fields["objective"]
				draft.Assessment = fields["assessment"]
				draft.Plan = fields["plan"]
				if draft.Assessment != "" || draft.Plan != "" {
					draft.GeneratedBy = GeneratedByModel
					return draft
				}
			}
		} else {
			log.Printf("note draft synthesis: generation failed, using template: %v", err)
		}
		metrics.RecordAIFallback("note_draft")
	}

	templateNoteDraft(&draft, c, recs)
	return draft
}

// GenerateTreatmentPlanDraft produces a treatment plan draft.
func (s *Synthesizer) GenerateTreatmentPlanDraft(ctx context.Context, c *PatientClinicalContext, recs []SpecialtyRecommendation, risks []RiskScore) TreatmentPlanDraft {
	draft := TreatmentPlanDraft{
		ID:          types.NewID(),
		PatientID:   c.Demographics.ID,
		SpecialtyID: c.SpecialtyID,
		Status:      DraftStatus,
		CreatedAt:   time.Now().UTC(),
	}

	if s.gen != nil {
		prompt := buildSynthesisPrompt(c, recs)
		if len(risks) > 0 {
			var b strings.Builder
			b.WriteString(prompt)
			b.WriteString("\nRisk scores:\n")
			for _, risk := range risks {
				fmt.Fprintf(&b, "- %s\n", risk.Interpretation)
			}
			prompt = b.String()
		}
		text, err := s.gen.Generate(ctx, planDraftSystem, prompt)
		metrics.RecordAICall("treatment_plan_draft", err)
		if err == nil {
			if fields, err := decodePlanDraft(text); err == nil && (len(fields.Goals) > 0 || fields.Narrative != "") {
				draft.Narrative = fields.Narrative
				draft.Goals = fields.Goals
				draft.Interventions = fields.Interventions
				draft.GeneratedBy = GeneratedByModel
				if draft.Goals == nil {
					draft.Goals = []string{}
				}
				if draft.Interventions == nil {
					draft.Interventions = []string{}
				}
				return draft
			}
		} else {
			log.Printf("treatment plan synthesis: generation failed, using template: %v", err)
		}
		metrics.RecordAIFallback("treatment_plan_draft")
	}

	templatePlanDraft(&draft, c, recs)
	return draft
}

func buildSynthesisPrompt(c *PatientClinicalContext, recs []SpecialtyRecommendation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Patient: %s %s, age %d, specialty %s.\n",
		c.Demographics.FirstName, c.Demographics.LastName, c.Demographics.Age, c.SpecialtyID)

	if len(c.Problems) > 0 {
		b.WriteString("Active problems:\n")
		for _, problem := range c.Problems {
			if problemIsActive(problem) {
				fmt.Fprintf(&b, "- %s\n", problem.Diagnosis)
			}
		}
	}
	if len(c.Medications) > 0 {
		b.WriteString("Active medications:\n")
		for _, med := range c.Medications {
			if med.StoppedAt == nil {
				fmt.Fprintf(&b, "- %s %s %s\n", med.Name, med.Dosage, med.Frequency)
			}
		}
	}
	if c.NoteSummary != nil && c.NoteSummary.Summary != "" {
		fmt.Fprintf(&b, "Note summary: %s\n", c.NoteSummary.Summary)
	}
	if len(recs) > 0 {
		b.WriteString("Open recommendations:\n")
		for _, rec := range recs {
			fmt.Fprintf(&b, "- [%s/%s] %s: %s\n", rec.Type, rec.Priority, rec.Title, rec.Description)
		}
	}
	return b.String()
}

func decodeDraftFields(text string) (map[string]string, bool) {
	raw := extractJSONObject(text)
	if raw == "" {
		return nil, false
	}
	var loose map[string]any
	if err := json.Unmarshal([]byte(raw), &loose); err != nil {
		return nil, false
	}
	fields := map[string]string{}
	for _, key := range []string{"subjective", "objective", "assessment", "plan"} {
		if s, ok := loose[key].(string); ok {
			fields[key] = strings.TrimSpace(s)
		}
	}
	return fields, true
}

type planDraftFields struct {
	Narrative     string
	Goals         []string
	Interventions []string
}

func decodePlanDraft(text string) (planDraftFields, error) {
	fields := planDraftFields{Goals: []string{}, Interventions: []string{}}
	raw := extractJSONObject(text)
	if raw == "" {
		return fields, fmt.Errorf("no JSON object in model output")
	}
	var loose map[string]any
	if err := json.Unmarshal([]byte(raw), &loose); err != nil {
		return fields, err
	}
	if s, ok := loose["narrative"].(string); ok {
		fields.Narrative = strings.TrimSpace(s)
	}
	fields.Goals = toStringList(loose["goals"])
	fields.Interventions = toStringList(loose["interventions"])
	return fields, nil
}

func templateNoteDraft(draft *NoteDraft, c *PatientClinicalContext, recs []SpecialtyRecommendation) {
	draft.GeneratedBy = GeneratedByTemplate

	if c.NoteSummary != nil && c.NoteSummary.Summary != "" {
		draft.Subjective = c.NoteSummary.Summary
	} else {
		draft.Subjective = "See prior documentation; no recent note summary available."
	}

	var objective strings.Builder
	if systolic, diastolic, ok := latestBP(c); ok {
		fmt.Fprintf(&objective, "Blood pressure %d/%d mmHg. ", systolic, diastolic)
	}
	fmt.Fprintf(&objective, "%d active problems, %d active medications on record.",
		activeProblemCount(c), activeMedicationCount(c))
	draft.Objective = objective.String()

	assessments := []string{}
	for _, problem := range c.Problems {
		if problemIsActive(problem) {
			assessments = append(assessments, problem.Diagnosis)
		}
	}
	if len(assessments) == 0 {
		draft.Assessment = "No active problems on record."
	} else {
		draft.Assessment = "Active problems: " + strings.Join(assessments, "; ") + "."
	}

	planItems := []string{}
	for _, rec := range recs {
		if rec.Action != "" {
			planItems = append(planItems, rec.Action)
		}
	}
	if len(planItems) == 0 {
		draft.Plan = "Continue current management; follow up as scheduled."
	} else {
		draft.Plan = "- " + strings.Join(planItems, "\n- ")
	}
}

// planDefaults carries the template goals and interventions per
// specialty; specialties without an entry fall back to generic ones.
type planDefaults struct {
	goals         []string
	interventions []string
}

var specialtyPlanDefaults = map[string]planDefaults{
	SpecialtyBehavioralHealth: {
		goals: []string{
			"Maintain abstinence as evidenced by negative urine drug screens",
			"Attend all scheduled dosing and counseling sessions",
		},
		interventions: []string{
			"Medication-assisted treatment with regular dose review",
			"Weekly individual counseling",
			"Random urine drug screening",
		},
	},
	SpecialtyPrimaryCare: {
		goals: []string{
			"Achieve control of active chronic conditions",
			"Complete all age-appropriate preventive screenings",
		},
		interventions: []string{
			"Chronic disease monitoring with scheduled lab follow-up",
			"Preventive screening orders per guideline",
		},
	},
	SpecialtyPsychiatry: {
		goals: []string{
			"Reduce symptom severity on standardized assessments",
			"Maintain safety with a current crisis plan",
		},
		interventions: []string{
			"Medication management with measurement-based follow-up",
			"Safety planning and suicide risk reassessment each visit",
		},
	},
	SpecialtyCardiology: {
		goals: []string{
			"Optimize guideline-directed medical therapy",
			"Maintain blood pressure below goal",
		},
		interventions: []string{
			"Medication titration per guideline-directed therapy",
			"Periodic echocardiographic reassessment",
		},
	},
}

var genericPlanDefaults = planDefaults{
	goals:         []string{"Address active problems identified at this visit"},
	interventions: []string{"Follow-up visit to reassess progress"},
}

func templatePlanDraft(draft *TreatmentPlanDraft, c *PatientClinicalContext, recs []SpecialtyRecommendation) {
	draft.GeneratedBy = GeneratedByTemplate

	defaults, ok := specialtyPlanDefaults[c.SpecialtyID]
	if !ok {
		defaults = genericPlanDefaults
	}
	draft.Goals = append([]string{}, defaults.goals...)
	draft.Interventions = append([]string{}, defaults.interventions...)

	for _, rec := range recs {
		if rec.Action != "" && (rec.Type == RecRecommendation || rec.Type == RecGap) {
			draft.Interventions = append(draft.Interventions, rec.Action)
		}
	}
	draft.Narrative = fmt.Sprintf("Proposed %s treatment plan for %s %s covering %d goals and %d interventions. Requires clinician review before activation.",
		c.SpecialtyID, c.Demographics.FirstName, c.Demographics.LastName, len(draft.Goals), len(draft.Interventions))
}

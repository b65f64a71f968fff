package cds

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/CompassionateITWEBDEV/Mase-EMR-dev-sub003/internal/shared/events"
	"github.com/CompassionateITWEBDEV/Mase-EMR-dev-sub003/internal/shared/metrics"
	"github.com/CompassionateITWEBDEV/Mase-EMR-dev-sub003/internal/shared/types"
)

// Result is the full output of one pipeline evaluation.
type Result struct {
	PatientID          types.ID                  `json:"patient_id"`
	SpecialtyID        string                    `json:"specialty_id"`
	GeneratedAt        time.Time                 `json:"generated_at"`
	Context            *PatientClinicalContext   `json:"context"`
	RiskScores         []RiskScore               `json:"risk_scores"`
	Recommendations    []SpecialtyRecommendation `json:"recommendations"`
	ProtocolChecks     []ProtocolCheck           `json:"protocol_checks"`
	Compliance         ComplianceResult          `json:"compliance"`
	NoteDraft          *NoteDraft                `json:"note_draft,omitempty"`
	TreatmentPlanDraft *TreatmentPlanDraft       `json:"treatment_plan_draft,omitempty"`
}

// RunOptions selects the optional synthesis outputs of a run.
type RunOptions struct {
	IncludeNoteDraft     bool
	IncludeTreatmentPlan bool
}

// Pipeline wires the evaluation stages together. The aggregator is the
// only stage that can fail a run; everything downstream is total.
type Pipeline struct {
	aggregator  *Aggregator
	synthesizer *Synthesizer
	measures    []MIPSMeasure
	bus         *events.Bus
}

// NewPipeline assembles a pipeline. bus may be nil to skip event
// publication.
func NewPipeline(aggregator *Aggregator, synthesizer *Synthesizer, measures []MIPSMeasure, bus *events.Bus) *Pipeline {
	return &Pipeline{
		aggregator:  aggregator,
		synthesizer: synthesizer,
		measures:    measures,
		bus:         bus,
	}
}

// Run evaluates a patient for a specialty. Risk scoring, protocol
// checking, and recommendation generation run concurrently over the
// aggregated context; compliance and synthesis follow because they
// consume the recommendations.
func (p *Pipeline) Run(ctx context.Context, patientID types.ID, specialtyID string, opts RunOptions) (*Result, error) {
	start := time.Now()

	clinicalContext, err := p.aggregator.Aggregate(ctx, patientID, specialtyID)
	if err != nil {
		metrics.RecordPipelineRun(specialtyID, "error", time.Since(start))
		return nil, err
	}

	result := &Result{
		PatientID:   patientID,
		SpecialtyID: specialtyID,
		GeneratedAt: time.Now().UTC(),
		Context:     clinicalContext,
	}

	summary := clinicalContext.NoteSummary

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		result.RiskScores = CalculateAllRiskScores(specialtyID, clinicalContext, summary)
	}()
	go func() {
		defer wg.Done()
		result.ProtocolChecks = CheckAllProtocols(specialtyID, clinicalContext, summary)
	}()
	go func() {
		defer wg.Done()
		result.Recommendations = GenerateRecommendations(specialtyID, clinicalContext, summary)
	}()
	wg.Wait()

	result.Compliance = CheckCompliance(p.measures, result.Recommendations, clinicalContext, summary, specialtyID)

	if opts.IncludeNoteDraft && p.synthesizer != nil {
		draft := p.synthesizer.GenerateNoteDraft(ctx, clinicalContext, result.Recommendations)
		result.NoteDraft = &draft
	}
	if opts.IncludeTreatmentPlan && p.synthesizer != nil {
		draft := p.synthesizer.GenerateTreatmentPlanDraft(ctx, clinicalContext, result.Recommendations, result.RiskScores)
		result.TreatmentPlanDraft = &draft
	}

	metrics.RecordPipelineRun(specialtyID, "ok", time.Since(start))
	p.publishEvaluated(ctx, result)
	return result, nil
}

// RiskScores aggregates and scores without running the rest of the
// pipeline.
func (p *Pipeline) RiskScores(ctx context.Context, patientID types.ID, specialtyID string) ([]RiskScore, error) {
	clinicalContext, err := p.aggregator.Aggregate(ctx, patientID, specialtyID)
	if err != nil {
		return nil, err
	}
	return CalculateAllRiskScores(specialtyID, clinicalContext, clinicalContext.NoteSummary), nil
}

// Protocols aggregates and evaluates protocols without running the rest
// of the pipeline.
func (p *Pipeline) Protocols(ctx context.Context, patientID types.ID, specialtyID string) ([]ProtocolCheck, error) {
	clinicalContext, err := p.aggregator.Aggregate(ctx, patientID, specialtyID)
	if err != nil {
		return nil, err
	}
	return CheckAllProtocols(specialtyID, clinicalContext, clinicalContext.NoteSummary), nil
}

// NoteDraft aggregates, generates recommendations, and synthesizes a
// SOAP note draft.
func (p *Pipeline) NoteDraft(ctx context.Context, patientID types.ID, specialtyID string) (*NoteDraft, error) {
	clinicalContext, err := p.aggregator.Aggregate(ctx, patientID, specialtyID)
	if err != nil {
		return nil, err
	}
	recs := GenerateRecommendations(specialtyID, clinicalContext, clinicalContext.NoteSummary)
	draft := p.synthesizer.GenerateNoteDraft(ctx, clinicalContext, recs)
	return &draft, nil
}

// TreatmentPlan aggregates, generates recommendations and risk scores,
// and synthesizes a treatment plan draft.
func (p *Pipeline) TreatmentPlan(ctx context.Context, patientID types.ID, specialtyID string) (*TreatmentPlanDraft, error) {
	clinicalContext, err := p.aggregator.Aggregate(ctx, patientID, specialtyID)
	if err != nil {
		return nil, err
	}
	recs := GenerateRecommendations(specialtyID, clinicalContext, clinicalContext.NoteSummary)
	risks := CalculateAllRiskScores(specialtyID, clinicalContext, clinicalContext.NoteSummary)
	draft := p.synthesizer.GenerateTreatmentPlanDraft(ctx, clinicalContext, recs, risks)
	return &draft, nil
}

// publishEvaluated emits the evaluation summary event. Publication
// failures are logged, never surfaced to the caller.
func (p *Pipeline) publishEvaluated(ctx context.Context, result *Result) {
	if p.bus == nil {
		return
	}
	event := events.NewEvent("cds.patient.evaluated", "cds-pipeline", map[string]any{
		"patient_id":         result.PatientID.String(),
		"specialty_id":       result.SpecialtyID,
		"risk_score_count":   len(result.RiskScores),
		"recommendations":    len(result.Recommendations),
		"protocol_checks":    len(result.ProtocolChecks),
		"overall_compliant":  result.Compliance.OverallCompliant,
		"note_draft":         result.NoteDraft != nil,
		"treatment_plan":     result.TreatmentPlanDraft != nil,
	})
	if err := p.bus.Publish(ctx, event); err != nil {
		log.Printf("pipeline: event publish failed for patient %s: %v", result.PatientID, err)
	}
}

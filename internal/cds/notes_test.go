package cds

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/CompassionateITWEBDEV/Mase-EMR-dev-sub003/internal/ehr"
	"github.com/CompassionateITWEBDEV/Mase-EMR-dev-sub003/internal/shared/types"
)

func testNotes(content string) []ehr.Note {
	return []ehr.Note{{
		ID:        types.NewID(),
		Type:      "progress",
		Content:   content,
		Author:    "T. Author",
		WrittenAt: time.Now().UTC().AddDate(0, 0, -2),
	}}
}

// TestExtractNoNotes tests the sentinel summary for an empty note list
func TestExtractNoNotes(t *testing.T) {
	extractor := NewExtractor(&stubGenerator{responses: []string{"{}"}})
	summary := extractor.Extract(context.Background(), nil, SpecialtyPrimaryCare)

	if summary.Summary != "no notes available" {
		t.Errorf("summary = %q, want sentinel", summary.Summary)
	}
	if summary.KeyFindings == nil || summary.AssessmentScores == nil || summary.MissingDocumentation == nil {
		t.Error("expected non-nil collections on the empty summary")
	}
	if len(summary.KeyFindings) != 0 {
		t.Errorf("expected no key findings, got %d", len(summary.KeyFindings))
	}
}

// TestExtractStructured tests the happy path through model extraction
func TestExtractStructured(t *testing.T) {
	response := "```json\n" + `{
		"key_findings": ["stable on current dose"],
		"diagnoses": ["opioid use disorder"],
		"concerns": [],
		"assessment_scores": {"COWS": 3, "phq-9": "12"},
		"missing_documentation": [],
		"timeline": [{"date": "2024-01-10", "event": "dose increase"}],
		"summary": "Patient stable."
	}` + "\n```"

	extractor := NewExtractor(&stubGenerator{responses: []string{response}})
	summary := extractor.Extract(context.Background(), testNotes("42 CFR Part 2 consent on file."), SpecialtyBehavioralHealth)

	if summary.Summary != "Patient stable." {
		t.Errorf("summary = %q", summary.Summary)
	}
	if got := summary.AssessmentScores["cows"]; got != 3 {
		t.Errorf("cows = %v, want 3", got)
	}
	if got := summary.AssessmentScores["phq9"]; got != 12 {
		t.Errorf("phq9 = %v, want 12 (string value coerced)", got)
	}
	if len(summary.Timeline) != 1 || summary.Timeline[0].Event != "dose increase" {
		t.Errorf("timeline = %+v", summary.Timeline)
	}
	if len(summary.MissingDocumentation) != 0 {
		t.Errorf("expected no missing documentation when consent is on file, got %v", summary.MissingDocumentation)
	}
}

// TestExtractGeneratorFailure tests degradation to the deterministic
// summary when the model is unreachable
func TestExtractGeneratorFailure(t *testing.T) {
	extractor := NewExtractor(&stubGenerator{err: fmt.Errorf("connection refused")})
	summary := extractor.Extract(context.Background(), testNotes("COWS: 7 today. Cravings reported."), SpecialtyBehavioralHealth)

	if summary.Summary == "" {
		t.Fatal("expected a fallback summary")
	}
	if got := summary.AssessmentScores["cows"]; got != 7 {
		t.Errorf("fallback cows = %v, want 7 via regex", got)
	}
	if len(summary.MissingDocumentation) == 0 {
		t.Error("expected the consent documentation flag from the deterministic check")
	}
}

// TestExtractMalformedThenNarrative tests the narrative retry when
// structured output cannot be decoded
func TestExtractMalformedThenNarrative(t *testing.T) {
	gen := &stubGenerator{responses: []string{"I cannot produce JSON today.", "Patient doing well overall."}}
	extractor := NewExtractor(gen)
	summary := extractor.Extract(context.Background(), testNotes("routine visit"), SpecialtyPrimaryCare)

	if gen.calls != 2 {
		t.Errorf("generator calls = %d, want 2", gen.calls)
	}
	if summary.Summary != "Patient doing well overall." {
		t.Errorf("summary = %q, want the narrative retry text", summary.Summary)
	}
	if len(summary.KeyFindings) != 0 {
		t.Error("narrative path should not invent structured fields")
	}
}

// TestDecodeNoteSummary tests tolerant decoding of model output
func TestDecodeNoteSummary(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		check   func(t *testing.T, s NoteSummary)
	}{
		{
			name:  "plain object",
			input: `{"summary": "ok", "key_findings": ["a", "b"]}`,
			check: func(t *testing.T, s NoteSummary) {
				if s.Summary != "ok" || len(s.KeyFindings) != 2 {
					t.Errorf("got %+v", s)
				}
			},
		},
		{
			name:  "object wrapped in prose",
			input: `Here is the extraction: {"summary": "wrapped"} Hope that helps.`,
			check: func(t *testing.T, s NoteSummary) {
				if s.Summary != "wrapped" {
					t.Errorf("summary = %q", s.Summary)
				}
			},
		},
		{
			name:  "wrong field types ignored",
			input: `{"key_findings": "not a list", "assessment_scores": ["not a map"], "summary": "typed"}`,
			check: func(t *testing.T, s NoteSummary) {
				if len(s.KeyFindings) != 0 || len(s.AssessmentScores) != 0 {
					t.Errorf("expected mistyped fields dropped, got %+v", s)
				}
				if s.Summary != "typed" {
					t.Errorf("summary = %q", s.Summary)
				}
			},
		},
		{name: "no object at all", input: "plain prose, no braces", wantErr: true},
		{name: "unbalanced braces", input: "{ this is not json", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summary, err := decodeNoteSummary(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected decode error")
				}
				return
			}
			if err != nil {
				t.Fatalf("decodeNoteSummary() error = %v", err)
			}
			tt.check(t, summary)
		})
	}
}

// TestParseAssessmentScores tests regex score extraction across the
// formatting variants seen in real notes
func TestParseAssessmentScores(t *testing.T) {
	text := strings.Join([]string{
		"PHQ-9: 18 administered today.",
		"GAD 7 score: 11",
		"cows 4 on arrival",
		"CIWA-Ar: 12 this morning",
	}, "\n")

	scores := ParseAssessmentScores(text)

	want := map[string]float64{"phq9": 18, "gad7": 11, "cows": 4, "ciwa": 12}
	for key, value := range want {
		if scores[key] != value {
			t.Errorf("scores[%q] = %v, want %v", key, scores[key], value)
		}
	}
}

// TestCheckMissingDocumentation tests the deterministic per-specialty
// documentation checks
func TestCheckMissingDocumentation(t *testing.T) {
	tests := []struct {
		name        string
		specialtyID string
		content     string
		wantFlags   int
	}{
		{"behavioral health without consent", SpecialtyBehavioralHealth, "Routine dosing visit.", 1},
		{"behavioral health with consent", SpecialtyBehavioralHealth, "42 CFR Part 2 consent signed.", 0},
		{"psychiatry without safety assessment", SpecialtyPsychiatry, "Medication refilled.", 1},
		{"psychiatry with safety assessment", SpecialtyPsychiatry, "Denies SI. Suicide risk low.", 0},
		{"primary care has no specialty checks", SpecialtyPrimaryCare, "Routine visit.", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags := CheckMissingDocumentation(testNotes(tt.content), tt.specialtyID)
			if len(flags) != tt.wantFlags {
				t.Errorf("flags = %v, want %d flags", flags, tt.wantFlags)
			}
		})
	}
}

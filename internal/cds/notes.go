package cds

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/CompassionateITWEBDEV/Mase-EMR-dev-sub003/internal/ehr"
	"github.com/CompassionateITWEBDEV/Mase-EMR-dev-sub003/internal/shared/metrics"
)

// TimelineEvent is one dated entry in a note summary timeline.
type TimelineEvent struct {
	Date  string `json:"date"`
	Event string `json:"event"`
}

// NoteSummary is the structured output of note extraction. All list and
// map fields are non-nil; a summary with nothing extracted still carries
// empty collections.
type NoteSummary struct {
	KeyFindings          []string           `json:"key_findings"`
	Diagnoses            []string           `json:"diagnoses"`
	Concerns             []string           `json:"concerns"`
	AssessmentScores     map[string]float64 `json:"assessment_scores"`
	MissingDocumentation []string           `json:"missing_documentation"`
	Timeline             []TimelineEvent    `json:"timeline"`
	Summary              string             `json:"summary"`
}

const noNotesSummary = "no notes available"

// Documentation flags emitted by CheckMissingDocumentation. Downstream
// rules match on these substrings, so model output that phrases the same
// gap differently still needs to mention the key terms.
const (
	flagPart2Consent = "42 CFR Part 2 consent documentation not found"
	flagSuicideRisk  = "suicide risk assessment not documented"
)

func emptyNoteSummary() NoteSummary {
	return NoteSummary{
		KeyFindings:          []string{},
		Diagnoses:            []string{},
		Concerns:             []string{},
		AssessmentScores:     map[string]float64{},
		MissingDocumentation: []string{},
		Timeline:             []TimelineEvent{},
	}
}

// TextGenerator is the language-model dependency of the extraction and
// synthesis stages. Implemented by ai.Client.
type TextGenerator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// Extractor turns free-text clinical notes into a NoteSummary. It is
// total: model outages, malformed output, and an absent generator all
// degrade to a deterministic summary rather than an error.
type Extractor struct {
	gen TextGenerator
}

// NewExtractor creates an extractor. gen may be nil, in which case every
// extraction takes the deterministic path.
func NewExtractor(gen TextGenerator) *Extractor {
	return &Extractor{gen: gen}
}

const extractionSystem = `You are a clinical documentation assistant. Extract structured data from the clinical notes you are given. Respond with a single JSON object with exactly these fields: "key_findings" (list of strings), "diagnoses" (list of strings), "concerns" (list of strings), "assessment_scores" (object mapping score name to number, using keys phq9, gad7, cows, ciwa), "missing_documentation" (list of strings), "timeline" (list of {"date","event"} objects), "summary" (string). Do not include any text outside the JSON object.`

const summarizeSystem = `You are a clinical documentation assistant. Summarize the clinical notes you are given in a short narrative paragraph. Respond with plain text only.`

// Extract summarizes the given notes for a specialty. An empty note list
// yields a sentinel summary with empty collections.
func (e *Extractor) Extract(ctx context.Context, notes []ehr.Note, specialtyID string) NoteSummary {
	if len(notes) == 0 {
		summary := emptyNoteSummary()
		summary.Summary = noNotesSummary
		return summary
	}

	if e.gen == nil {
		return fallbackNoteSummary(notes, specialtyID)
	}

	prompt := buildExtractionPrompt(notes, specialtyID)

	text, err := e.gen.Generate(ctx, extractionSystem, prompt)
	metrics.RecordAICall("note_extraction", err)
	if err != nil {
		log.Printf("note extraction: generation failed, using deterministic summary: %v", err)
		metrics.RecordAIFallback("note_extraction")
		return fallbackNoteSummary(notes, specialtyID)
	}

	summary, decodeErr := decodeNoteSummary(text)
	if decodeErr != nil {
		// One retry as a plain narrative before giving up on the model.
		narrative, retryErr := e.gen.Generate(ctx, summarizeSystem, prompt)
		metrics.RecordAICall("note_summarization", retryErr)
		if retryErr != nil {
			metrics.RecordAIFallback("note_extraction")
			return fallbackNoteSummary(notes, specialtyID)
		}
		summary = emptyNoteSummary()
		summary.Summary = strings.TrimSpace(narrative)
		if summary.Summary == "" {
			metrics.RecordAIFallback("note_extraction")
			return fallbackNoteSummary(notes, specialtyID)
		}
	}

	// Deterministic documentation checks are merged in so that consent
	// and safety gaps do not depend on model recall.
	summary.MissingDocumentation = mergeFlags(summary.MissingDocumentation, CheckMissingDocumentation(notes, specialtyID))
	return summary
}

func buildExtractionPrompt(notes []ehr.Note, specialtyID string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Specialty: %s\n%s\n\n", specialtyID, noteHintFor(specialtyID))
	for i, note := range notes {
		fmt.Fprintf(&b, "[Note %d] type=%s date=%s author=%s\n%s\n\n",
			i+1, note.Type, note.WrittenAt.Format("2006-01-02"), note.Author, note.Content)
	}
	return b.String()
}

// decodeNoteSummary parses model output into a NoteSummary. It tolerates
// code fences, prose around the JSON object, and loosely typed fields;
// anything unreadable beyond that is an error for the caller to handle.
func decodeNoteSummary(text string) (NoteSummary, error) {
	summary := emptyNoteSummary()

	raw := extractJSONObject(text)
	if raw == "" {
		return summary, fmt.Errorf("no JSON object in model output")
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return summary, fmt.Errorf("decoding model output: %w", err)
	}

	summary.KeyFindings = toStringList(fields["key_findings"])
	summary.Diagnoses = toStringList(fields["diagnoses"])
	summary.Concerns = toStringList(fields["concerns"])
	summary.AssessmentScores = toScoreMap(fields["assessment_scores"])
	summary.MissingDocumentation = toStringList(fields["missing_documentation"])
	summary.Timeline = toTimeline(fields["timeline"])
	if s, ok := fields["summary"].(string); ok {
		summary.Summary = strings.TrimSpace(s)
	}
	return summary, nil
}

// extractJSONObject returns the outermost {...} span of text, stripping
// markdown code fences first. Empty string when no object is present.
func extractJSONObject(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

func toStringList(v any) []string {
	out := []string{}
	items, ok := v.([]any)
	if !ok {
		return out
	}
	for _, item := range items {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

func toScoreMap(v any) map[string]float64 {
	out := map[string]float64{}
	fields, ok := v.(map[string]any)
	if !ok {
		return out
	}
	for key, value := range fields {
		key = normalizeScoreKey(key)
		if key == "" {
			continue
		}
		switch n := value.(type) {
		case float64:
			out[key] = n
		case string:
			if parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
				out[key] = parsed
			}
		}
	}
	return out
}

// normalizeScoreKey maps model score-name variants onto the canonical
// keys the scoring rules read.
func normalizeScoreKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	key = strings.ReplaceAll(key, "-", "")
	key = strings.ReplaceAll(key, "_", "")
	key = strings.ReplaceAll(key, " ", "")
	switch {
	case strings.HasPrefix(key, "phq9"):
		return "phq9"
	case strings.HasPrefix(key, "gad7"):
		return "gad7"
	case strings.HasPrefix(key, "cows"):
		return "cows"
	case strings.HasPrefix(key, "ciwa"):
		return "ciwa"
	}
	return ""
}

func toTimeline(v any) []TimelineEvent {
	out := []TimelineEvent{}
	items, ok := v.([]any)
	if !ok {
		return out
	}
	for _, item := range items {
		fields, ok := item.(map[string]any)
		if !ok {
			continue
		}
		event := TimelineEvent{}
		if s, ok := fields["date"].(string); ok {
			event.Date = strings.TrimSpace(s)
		}
		if s, ok := fields["event"].(string); ok {
			event.Event = strings.TrimSpace(s)
		}
		if event.Event != "" {
			out = append(out, event)
		}
	}
	return out
}

// Assessment score patterns shared by the deterministic extraction path
// and the model fallback.
var scorePatterns = map[string]*regexp.Regexp{
	"phq9": regexp.MustCompile(`(?i)phq[-\s]?9\s*(?:score)?[:\s]+(\d+)`),
	"gad7": regexp.MustCompile(`(?i)gad[-\s]?7\s*(?:score)?[:\s]+(\d+)`),
	"cows": regexp.MustCompile(`(?i)cows\s*(?:score)?[:\s]+(\d+)`),
	"ciwa": regexp.MustCompile(`(?i)ciwa(?:-ar)?\s*(?:score)?[:\s]+(\d+)`),
}

// ParseAssessmentScores scans free text for standardized assessment
// scores. The first occurrence of each instrument wins; with the
// newest-first note ordering callers pass in, that is the most recent
// mention.
func ParseAssessmentScores(text string) map[string]float64 {
	scores := map[string]float64{}
	for key, pattern := range scorePatterns {
		match := pattern.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		if value, err := strconv.ParseFloat(match[1], 64); err == nil {
			scores[key] = value
		}
	}
	return scores
}

// CheckMissingDocumentation applies deterministic per-specialty
// documentation checks over the raw note text. It never consults the
// model, so regulatory flags survive model outages.
func CheckMissingDocumentation(notes []ehr.Note, specialtyID string) []string {
	missing := []string{}
	joined := strings.ToLower(joinNoteContent(notes))

	switch specialtyID {
	case SpecialtyBehavioralHealth:
		if !strings.Contains(joined, "42 cfr") && !strings.Contains(joined, "part 2 consent") {
			missing = append(missing, flagPart2Consent)
		}
	case SpecialtyPsychiatry:
		if !strings.Contains(joined, "suicide") && !strings.Contains(joined, "si:") && !strings.Contains(joined, "denies si") {
			missing = append(missing, flagSuicideRisk)
		}
	}
	return missing
}

func joinNoteContent(notes []ehr.Note) string {
	var b strings.Builder
	for _, note := range notes {
		b.WriteString(note.Content)
		b.WriteString("\n")
	}
	return b.String()
}

func mergeFlags(existing, extra []string) []string {
	merged := append([]string{}, existing...)
	for _, flag := range extra {
		duplicate := false
		for _, have := range merged {
			if strings.EqualFold(have, flag) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			merged = append(merged, flag)
		}
	}
	return merged
}

// fallbackNoteSummary builds a summary without the model: regex score
// extraction, deterministic documentation checks, and a short synthetic
// narrative over the newest note.
func fallbackNoteSummary(notes []ehr.Note, specialtyID string) NoteSummary {
	summary := emptyNoteSummary()
	joined := joinNoteContent(notes)
	summary.AssessmentScores = ParseAssessmentScores(joined)
	summary.MissingDocumentation = CheckMissingDocumentation(notes, specialtyID)

	newest := notes[0]
	for _, note := range notes[1:] {
		if note.WrittenAt.After(newest.WrittenAt) {
			newest = note
		}
	}
	summary.Summary = fmt.Sprintf("Automated summary unavailable. %d notes on record; most recent is a %s note from %s.",
		len(notes), newest.Type, newest.WrittenAt.Format("2006-01-02"))
	summary.Timeline = fallbackTimeline(notes)
	return summary
}

func fallbackTimeline(notes []ehr.Note) []TimelineEvent {
	timeline := make([]TimelineEvent, 0, len(notes))
	for _, note := range notes {
		timeline = append(timeline, TimelineEvent{
			Date:  note.WrittenAt.Format("2006-01-02"),
			Event: fmt.Sprintf("%s note by %s", note.Type, note.Author),
		})
	}
	return timeline
}

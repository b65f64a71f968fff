package cds

import (
	"fmt"
	"strings"
	"time"

	"github.com/CompassionateITWEBDEV/Mase-EMR-dev-sub003/internal/ehr"
)

// RecommendationType classifies what kind of attention an item needs.
type RecommendationType string

const (
	RecAlert          RecommendationType = "alert"
	RecRecommendation RecommendationType = "recommendation"
	RecGap            RecommendationType = "gap"
	RecAssessment     RecommendationType = "assessment"
)

// Priority orders recommendations for display and compliance review.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// SpecialtyRecommendation is one actionable item produced by the
// rule engine for a specialty.
type SpecialtyRecommendation struct {
	Type        RecommendationType `json:"type"`
	Priority    Priority           `json:"priority"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Action      string             `json:"action,omitempty"`
	Data        map[string]any     `json:"data,omitempty"`
}

type generatorFunc func(c *PatientClinicalContext, ns *NoteSummary, now time.Time) []SpecialtyRecommendation

var specialtyGenerators = map[string]generatorFunc{
	SpecialtyBehavioralHealth:    behavioralHealthRecommendations,
	SpecialtyPrimaryCare:         primaryCareRecommendations,
	SpecialtyPsychiatry:          psychiatryRecommendations,
	SpecialtyCardiology:          cardiologyRecommendations,
	SpecialtyPediatrics:          pediatricsRecommendations,
	SpecialtyOBGYN:               obgynRecommendations,
	SpecialtySpeechTherapy:       therapyRecommendations("Speech Therapy"),
	SpecialtyOccupationalTherapy: therapyRecommendations("Occupational Therapy"),
	SpecialtyPhysicalTherapy:     therapyRecommendations("Physical Therapy"),
}

// GenerateRecommendations runs the rule set registered for the
// specialty. Unknown specialties yield an empty list, never an error.
func GenerateRecommendations(specialtyID string, c *PatientClinicalContext, ns *NoteSummary) []SpecialtyRecommendation {
	generator, ok := specialtyGenerators[specialtyID]
	if !ok {
		return []SpecialtyRecommendation{}
	}
	recs := generator(c, ns, time.Now().UTC())
	if recs == nil {
		recs = []SpecialtyRecommendation{}
	}
	return recs
}

func behavioralHealthRecommendations(c *PatientClinicalContext, ns *NoteSummary, now time.Time) []SpecialtyRecommendation {
	recs := []SpecialtyRecommendation{}
	screens := udsResults(c)

	if len(screens) > 0 && isPositiveUDS(screens[0]) {
		recs = append(recs, SpecialtyRecommendation{
			Type:        RecAlert,
			Priority:    PriorityHigh,
			Title:       "Positive Urine Drug Screen",
			Description: fmt.Sprintf("Most recent urine drug screen (%s) resulted %q.", screens[0].CollectedAt.Format("2006-01-02"), screens[0].Value),
			Action:      "Review result with patient and reassess treatment plan",
		})
	} else if cleanUDSStreak(screens) >= 3 {
		recs = append(recs, SpecialtyRecommendation{
			Type:        RecRecommendation,
			Priority:    PriorityMedium,
			Title:       "OTP Phase Advancement Consideration",
			Description: fmt.Sprintf("%d consecutive negative urine drug screens on record.", cleanUDSStreak(screens)),
			Action:      "Evaluate for treatment phase advancement and take-home privileges",
			Data:        map[string]any{"consecutive_negative_screens": cleanUDSStreak(screens)},
		})
	}

	if cows, ok := summaryScore(ns, "cows"); ok && cows >= 5 {
		recs = append(recs, SpecialtyRecommendation{
			Type:        RecAlert,
			Priority:    PriorityHigh,
			Title:       "Elevated Opioid Withdrawal Score",
			Description: fmt.Sprintf("COWS score of %.0f documented, indicating active withdrawal.", cows),
			Action:      "Assess withdrawal symptoms and review dosing",
			Data:        map[string]any{"cows": cows},
		})
	}
	if ciwa, ok := summaryScore(ns, "ciwa"); ok {
		switch {
		case ciwa >= 10:
			recs = append(recs, SpecialtyRecommendation{
				Type:        RecAlert,
				Priority:    PriorityCritical,
				Title:       "Severe Alcohol Withdrawal Risk",
				Description: fmt.Sprintf("CIWA-Ar score of %.0f documented; scores of 10 or above warrant medication-managed withdrawal.", ciwa),
				Action:      "Initiate withdrawal management protocol immediately",
				Data:        map[string]any{"ciwa": ciwa},
			})
		case ciwa >= 8:
			recs = append(recs, SpecialtyRecommendation{
				Type:        RecAlert,
				Priority:    PriorityHigh,
				Title:       "Alcohol Withdrawal Monitoring",
				Description: fmt.Sprintf("CIWA-Ar score of %.0f documented; close monitoring indicated.", ciwa),
				Action:      "Repeat CIWA-Ar assessment this visit",
				Data:        map[string]any{"ciwa": ciwa},
			})
		}
	}

	if missingDocFlag(ns, "42 cfr") {
		recs = append(recs, SpecialtyRecommendation{
			Type:        RecGap,
			Priority:    PriorityHigh,
			Title:       "42 CFR Part 2 Consent Documentation",
			Description: "No 42 CFR Part 2 consent found in recent documentation.",
			Action:      "Obtain and document Part 2 consent before any disclosure",
		})
	}
	return recs
}

func primaryCareRecommendations(c *PatientClinicalContext, ns *NoteSummary, now time.Time) []SpecialtyRecommendation {
	recs := []SpecialtyRecommendation{}
	age := c.Demographics.Age

	if hasProblem(c, "diabetes", "e11", "e10") {
		lab, found := latestLab(c, "hba1c", "a1c", "hemoglobin a1c")
		if !found || isOlderThanMonths(lab.CollectedAt, now, 3) {
			description := "No HbA1c result on record for a patient with diabetes."
			if found {
				description = fmt.Sprintf("Most recent HbA1c was collected %s, more than three months ago.", lab.CollectedAt.Format("2006-01-02"))
			}
			recs = append(recs, SpecialtyRecommendation{
				Type:        RecGap,
				Priority:    PriorityMedium,
				Title:       "HbA1c Monitoring Due",
				Description: description,
				Action:      "Order HbA1c",
			})
		}
	}

	recs = append(recs, bloodPressureAlert(c)...)

	if age >= 50 && age <= 75 {
		if _, found := latestLab(c, "colonoscopy", "cologuard", "fit", "fecal immunochemical"); !found && !encounterMentions(c, "colonoscopy") {
			recs = append(recs, SpecialtyRecommendation{
				Type:        RecGap,
				Priority:    PriorityMedium,
				Title:       "Colorectal Cancer Screening Due",
				Description: fmt.Sprintf("No colorectal cancer screening on record for a %d-year-old patient.", age),
				Action:      "Discuss screening options and place an order",
			})
		}
	}
	if age >= 40 && c.Demographics.Gender == ehr.GenderFemale {
		if _, found := latestLab(c, "mammogra"); !found && !encounterMentions(c, "mammogra") {
			recs = append(recs, SpecialtyRecommendation{
				Type:        RecGap,
				Priority:    PriorityMedium,
				Title:       "Mammography Screening Due",
				Description: "No mammography screening on record.",
				Action:      "Order screening mammogram",
			})
		}
	}
	if age >= 40 {
		if _, found := latestLab(c, "cholesterol", "lipid"); !found {
			recs = append(recs, SpecialtyRecommendation{
				Type:        RecGap,
				Priority:    PriorityMedium,
				Title:       "Cardiovascular Risk Assessment Due",
				Description: "No lipid panel on record to support cardiovascular risk assessment.",
				Action:      "Order lipid panel",
			})
		}
	}
	return recs
}

func psychiatryRecommendations(c *PatientClinicalContext, ns *NoteSummary, now time.Time) []SpecialtyRecommendation {
	recs := []SpecialtyRecommendation{}

	if phq9, ok := summaryScore(ns, "phq9"); ok {
		switch {
		case phq9 >= 20:
			recs = append(recs, SpecialtyRecommendation{
				Type:        RecAlert,
				Priority:    PriorityCritical,
				Title:       "Severe Depression (PHQ-9 ≥20)",
				Description: fmt.Sprintf("PHQ-9 score of %.0f documented, in the severe range.", phq9),
				Action:      "Perform immediate safety evaluation and treatment intensification",
				Data:        map[string]any{"phq9": phq9},
			})
		case phq9 >= 15:
			recs = append(recs, SpecialtyRecommendation{
				Type:        RecAlert,
				Priority:    PriorityHigh,
				Title:       "Moderately Severe Depression (PHQ-9 15-19)",
				Description: fmt.Sprintf("PHQ-9 score of %.0f documented.", phq9),
				Action:      "Reassess treatment response and consider medication adjustment",
				Data:        map[string]any{"phq9": phq9},
			})
		}
	}
	if gad7, ok := summaryScore(ns, "gad7"); ok && gad7 >= 15 {
		recs = append(recs, SpecialtyRecommendation{
			Type:        RecAlert,
			Priority:    PriorityHigh,
			Title:       "Severe Anxiety (GAD-7 ≥15)",
			Description: fmt.Sprintf("GAD-7 score of %.0f documented, in the severe range.", gad7),
			Action:      "Reassess anxiety treatment plan",
			Data:        map[string]any{"gad7": gad7},
		})
	}
	if missingDocFlag(ns, "suicide") {
		recs = append(recs, SpecialtyRecommendation{
			Type:        RecGap,
			Priority:    PriorityCritical,
			Title:       "Suicide Risk Assessment Missing",
			Description: "No suicide risk assessment found in recent documentation.",
			Action:      "Complete and document a suicide risk assessment this visit",
		})
	}
	return recs
}

func cardiologyRecommendations(c *PatientClinicalContext, ns *NoteSummary, now time.Time) []SpecialtyRecommendation {
	recs := []SpecialtyRecommendation{}

	if hasProblem(c, "heart failure", "i50", "cardiomyopathy") {
		if !hasEchoWithin(c, ns, now, 12) {
			recs = append(recs, SpecialtyRecommendation{
				Type:        RecGap,
				Priority:    PriorityMedium,
				Title:       "Echocardiogram Due",
				Description: "No echocardiogram within the last 12 months for a patient with heart failure.",
				Action:      "Order echocardiogram",
			})
		}
		if !hasActiveMedication(c, "lisinopril", "enalapril", "ramipril", "losartan", "valsartan", "sacubitril", "candesartan") {
			recs = append(recs, SpecialtyRecommendation{
				Type:        RecRecommendation,
				Priority:    PriorityHigh,
				Title:       "ACE Inhibitor or ARB Therapy",
				Description: "Heart failure without an ACE inhibitor or ARB on the active medication list.",
				Action:      "Evaluate for guideline-directed ACE inhibitor or ARB therapy",
			})
		}
		if !hasActiveMedication(c, "metoprolol", "carvedilol", "bisoprolol") {
			recs = append(recs, SpecialtyRecommendation{
				Type:        RecRecommendation,
				Priority:    PriorityHigh,
				Title:       "Beta-Blocker Therapy",
				Description: "Heart failure without a beta-blocker on the active medication list.",
				Action:      "Evaluate for guideline-directed beta-blocker therapy",
			})
		}
	}

	recs = append(recs, bloodPressureAlert(c)...)
	return recs
}

func pediatricsRecommendations(c *PatientClinicalContext, ns *NoteSummary, now time.Time) []SpecialtyRecommendation {
	recs := []SpecialtyRecommendation{}

	if encountersSince(c, now.AddDate(-1, 0, 0), ehr.EncounterOffice, ehr.EncounterTelehealth) == 0 {
		recs = append(recs, SpecialtyRecommendation{
			Type:        RecGap,
			Priority:    PriorityMedium,
			Title:       "Well-Child Visit Due",
			Description: "No office or telehealth visit within the last 12 months.",
			Action:      "Schedule well-child visit",
		})
	}
	if ns != nil && !containsAnyKeyword(summaryPhrases(ns), "immuniz", "vaccin") {
		recs = append(recs, SpecialtyRecommendation{
			Type:        RecGap,
			Priority:    PriorityMedium,
			Title:       "Immunization Status Review",
			Description: "Recent documentation does not reference immunization status.",
			Action:      "Review immunization record against the current schedule",
		})
	}
	return recs
}

func obgynRecommendations(c *PatientClinicalContext, ns *NoteSummary, now time.Time) []SpecialtyRecommendation {
	recs := []SpecialtyRecommendation{}
	age := c.Demographics.Age

	if age >= 21 && c.Demographics.Gender == ehr.GenderFemale {
		lab, found := latestLab(c, "pap", "cervical cytology")
		if !found || isOlderThanMonths(lab.CollectedAt, now, 36) {
			recs = append(recs, SpecialtyRecommendation{
				Type:        RecGap,
				Priority:    PriorityMedium,
				Title:       "Cervical Cancer Screening Due",
				Description: "No cervical cytology within the recommended interval.",
				Action:      "Order Pap test",
			})
		}
	}
	if age >= 40 && c.Demographics.Gender == ehr.GenderFemale {
		if _, found := latestLab(c, "mammogra"); !found && !encounterMentions(c, "mammogra") {
			recs = append(recs, SpecialtyRecommendation{
				Type:        RecGap,
				Priority:    PriorityMedium,
				Title:       "Mammography Screening Due",
				Description: "No mammography screening on record.",
				Action:      "Order screening mammogram",
			})
		}
	}
	return recs
}

// therapyRecommendations builds the shared rule set used by the three
// therapy disciplines; only the plan-of-care labeling differs.
func therapyRecommendations(discipline string) generatorFunc {
	return func(c *PatientClinicalContext, ns *NoteSummary, now time.Time) []SpecialtyRecommendation {
		recs := []SpecialtyRecommendation{}

		if len(c.TreatmentPlans) == 0 {
			recs = append(recs, SpecialtyRecommendation{
				Type:        RecGap,
				Priority:    PriorityMedium,
				Title:       fmt.Sprintf("%s Plan of Care Missing", discipline),
				Description: "No plan of care on record for an active therapy patient.",
				Action:      "Establish and document a plan of care",
			})
		} else if isOlderThanMonths(c.TreatmentPlans[0].CreatedAt, now, 3) {
			recs = append(recs, SpecialtyRecommendation{
				Type:        RecGap,
				Priority:    PriorityMedium,
				Title:       fmt.Sprintf("%s Plan of Care Recertification Due", discipline),
				Description: fmt.Sprintf("Current plan of care dates from %s and is due for recertification.", c.TreatmentPlans[0].CreatedAt.Format("2006-01-02")),
				Action:      "Recertify the plan of care",
			})
		}

		if containsAnyKeyword(summaryPhrases(ns), "missed appointment", "no-show", "no show", "cancelled session", "canceled session") {
			recs = append(recs, SpecialtyRecommendation{
				Type:        RecRecommendation,
				Priority:    PriorityMedium,
				Title:       "Attendance Barriers Review",
				Description: "Recent documentation notes missed or cancelled therapy sessions.",
				Action:      "Discuss attendance barriers and adjust scheduling",
			})
		}
		return recs
	}
}

// bloodPressureAlert is shared between primary care and cardiology.
func bloodPressureAlert(c *PatientClinicalContext) []SpecialtyRecommendation {
	if !hasProblem(c, "hypertension", "i10") {
		return nil
	}
	systolic, diastolic, ok := latestBP(c)
	if !ok || (systolic < 140 && diastolic < 90) {
		return nil
	}
	return []SpecialtyRecommendation{{
		Type:        RecAlert,
		Priority:    PriorityHigh,
		Title:       "Blood Pressure Above Goal",
		Description: fmt.Sprintf("Most recent reading %d/%d mmHg in a patient with hypertension.", systolic, diastolic),
		Action:      "Recheck blood pressure and review antihypertensive regimen",
		Data:        map[string]any{"systolic": systolic, "diastolic": diastolic},
	}}
}

// cleanUDSStreak counts consecutive negative screens from the newest
// result backwards.
func cleanUDSStreak(screens []ehr.LabResult) int {
	streak := 0
	for _, screen := range screens {
		if !isNegativeUDS(screen) {
			break
		}
		streak++
	}
	return streak
}

// missingDocFlag reports whether the summary's missing-documentation
// list mentions the given term.
func missingDocFlag(ns *NoteSummary, term string) bool {
	if ns == nil {
		return false
	}
	for _, flag := range ns.MissingDocumentation {
		if strings.Contains(strings.ToLower(flag), term) {
			return true
		}
	}
	return false
}

func encounterMentions(c *PatientClinicalContext, term string) bool {
	for _, encounter := range c.Encounters {
		if strings.Contains(strings.ToLower(encounter.Reason), term) {
			return true
		}
	}
	return false
}

// hasEchoWithin looks for an echocardiogram in labs, encounters, or the
// note summary within the given number of months.
func hasEchoWithin(c *PatientClinicalContext, ns *NoteSummary, now time.Time, months int) bool {
	if lab, ok := latestLab(c, "echocardiogram", "echo"); ok && !isOlderThanMonths(lab.CollectedAt, now, months) {
		return true
	}
	for _, encounter := range c.Encounters {
		if strings.Contains(strings.ToLower(encounter.Reason), "echo") && !isOlderThanMonths(encounter.OccurredAt, now, months) {
			return true
		}
	}
	return containsAnyKeyword(summaryPhrases(ns), "echocardiogram")
}

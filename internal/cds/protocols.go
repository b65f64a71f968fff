package cds

import (
	"fmt"
	"time"
)

// ProtocolTakeHomeDose is the take-home medication eligibility protocol
// for opioid treatment programs.
const ProtocolTakeHomeDose = "take-home-dose"

// ProtocolCheck is the result of evaluating one clinical protocol.
// MetCriteria and UnmetCriteria always partition RequiredCriteria, and
// Eligible is true exactly when UnmetCriteria is empty.
type ProtocolCheck struct {
	ProtocolID       string   `json:"protocol_id"`
	ProtocolName     string   `json:"protocol_name"`
	SpecialtyID      string   `json:"specialty_id"`
	Eligible         bool     `json:"eligible"`
	Reason           string   `json:"reason"`
	RequiredCriteria []string `json:"required_criteria"`
	MetCriteria      []string `json:"met_criteria"`
	UnmetCriteria    []string `json:"unmet_criteria"`
	Recommendations  []string `json:"recommendations"`
}

type protocolCriterion struct {
	name string
	// remediation is suggested when the criterion is unmet
	remediation string
	eval        func(c *PatientClinicalContext, ns *NoteSummary, now time.Time) bool
}

type protocolDef struct {
	id          string
	name        string
	specialtyID string
	criteria    []protocolCriterion
}

var protocolDefs = map[string]protocolDef{
	ProtocolTakeHomeDose: {
		id:          ProtocolTakeHomeDose,
		name:        "Take-Home Dose Eligibility",
		specialtyID: SpecialtyBehavioralHealth,
		criteria: []protocolCriterion{
			{
				name:        "urine drug screen within the last 30 days",
				remediation: "Order a urine drug screen",
				eval: func(c *PatientClinicalContext, _ *NoteSummary, now time.Time) bool {
					for _, screen := range udsResults(c) {
						if screen.CollectedAt.After(now.AddDate(0, 0, -30)) {
							return true
						}
					}
					return false
				},
			},
			{
				name:        "most recent urine drug screen negative",
				remediation: "Review positive screen with the patient before reconsidering",
				eval: func(c *PatientClinicalContext, _ *NoteSummary, _ time.Time) bool {
					screens := udsResults(c)
					if len(screens) == 0 {
						return false
					}
					return isNegativeUDS(screens[0])
				},
			},
			{
				name:        "no missed-dose or no-show concerns documented",
				remediation: "Address attendance concerns documented in recent notes",
				eval: func(_ *PatientClinicalContext, ns *NoteSummary, _ time.Time) bool {
					return !containsAnyKeyword(summaryPhrases(ns), "missed dose", "missed appointment", "no-show", "no show")
				},
			},
			{
				name:        "withdrawal assessment score on record",
				remediation: "Document a COWS or CIWA assessment",
				eval: func(_ *PatientClinicalContext, ns *NoteSummary, _ time.Time) bool {
					if _, ok := summaryScore(ns, "cows"); ok {
						return true
					}
					_, ok := summaryScore(ns, "ciwa")
					return ok
				},
			},
			{
				name:        "at least 90 days in treatment since intake",
				remediation: "Re-evaluate once 90 days of treatment are complete",
				eval: func(c *PatientClinicalContext, _ *NoteSummary, now time.Time) bool {
					earliest, ok := earliestEncounter(c)
					if !ok {
						return false
					}
					return !earliest.OccurredAt.After(now.AddDate(0, 0, -90))
				},
			},
		},
	},
}

// CheckProtocol evaluates one protocol against a patient context.
// Returns nil when the protocol id is unknown or does not apply to the
// requested specialty.
func CheckProtocol(protocolID, specialtyID string, c *PatientClinicalContext, ns *NoteSummary) *ProtocolCheck {
	def, ok := protocolDefs[protocolID]
	if !ok || def.specialtyID != specialtyID {
		return nil
	}
	return evaluateProtocol(def, c, ns, time.Now().UTC())
}

// CheckAllProtocols evaluates every protocol registered for the
// specialty. Unknown specialties get an empty list.
func CheckAllProtocols(specialtyID string, c *PatientClinicalContext, ns *NoteSummary) []ProtocolCheck {
	checks := []ProtocolCheck{}
	for _, protocolID := range GetSpecialtyProtocols(specialtyID) {
		if check := CheckProtocol(protocolID, specialtyID, c, ns); check != nil {
			checks = append(checks, *check)
		}
	}
	return checks
}

func evaluateProtocol(def protocolDef, c *PatientClinicalContext, ns *NoteSummary, now time.Time) *ProtocolCheck {
	check := &ProtocolCheck{
		ProtocolID:       def.id,
		ProtocolName:     def.name,
		SpecialtyID:      def.specialtyID,
		RequiredCriteria: make([]string, 0, len(def.criteria)),
		MetCriteria:      []string{},
		UnmetCriteria:    []string{},
		Recommendations:  []string{},
	}
	for _, criterion := range def.criteria {
		check.RequiredCriteria = append(check.RequiredCriteria, criterion.name)
		if criterion.eval(c, ns, now) {
			check.MetCriteria = append(check.MetCriteria, criterion.name)
		} else {
			check.UnmetCriteria = append(check.UnmetCriteria, criterion.name)
			if criterion.remediation != "" {
				check.Recommendations = append(check.Recommendations, criterion.remediation)
			}
		}
	}
	check.Eligible = len(check.UnmetCriteria) == 0
	if check.Eligible {
		check.Reason = "all eligibility criteria met"
	} else {
		check.Reason = fmt.Sprintf("%d of %d eligibility criteria unmet", len(check.UnmetCriteria), len(check.RequiredCriteria))
	}
	return check
}

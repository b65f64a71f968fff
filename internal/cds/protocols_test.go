package cds

import (
	"testing"

	"github.com/CompassionateITWEBDEV/Mase-EMR-dev-sub003/internal/ehr"
)

// eligibleTakeHomeContext builds a chart that satisfies every take-home
// criterion.
func eligibleTakeHomeContext() (*PatientClinicalContext, *NoteSummary) {
	c := emptyContext(33)
	withLab(c, "Urine Drug Screen", "negative", 10)
	withEncounter(c, ehr.EncounterIntake, 120)
	withEncounter(c, ehr.EncounterOffice, 15)

	ns := summaryWithScores(map[string]float64{"cows": 2})
	return c, ns
}

// TestTakeHomeDoseEligible tests the fully qualified case
func TestTakeHomeDoseEligible(t *testing.T) {
	c, ns := eligibleTakeHomeContext()
	check := CheckProtocol(ProtocolTakeHomeDose, SpecialtyBehavioralHealth, c, ns)
	if check == nil {
		t.Fatal("expected a protocol check")
	}
	if !check.Eligible {
		t.Errorf("expected eligible, unmet criteria: %v", check.UnmetCriteria)
	}
	if len(check.UnmetCriteria) != 0 {
		t.Errorf("unmet criteria = %v, want none", check.UnmetCriteria)
	}
	if check.Reason != "all eligibility criteria met" {
		t.Errorf("reason = %q", check.Reason)
	}
}

// TestTakeHomeDoseIneligible tests individual disqualifying conditions
func TestTakeHomeDoseIneligible(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *PatientClinicalContext, ns *NoteSummary) *NoteSummary
	}{
		{
			name: "stale urine drug screen",
			mutate: func(c *PatientClinicalContext, ns *NoteSummary) *NoteSummary {
				c.LabResults = nil
				withLab(c, "Urine Drug Screen", "negative", 45)
				return ns
			},
		},
		{
			name: "positive most recent screen",
			mutate: func(c *PatientClinicalContext, ns *NoteSummary) *NoteSummary {
				c.LabResults = nil
				withLab(c, "Urine Drug Screen", "positive - benzodiazepines", 5)
				return ns
			},
		},
		{
			name: "attendance concerns documented",
			mutate: func(c *PatientClinicalContext, ns *NoteSummary) *NoteSummary {
				ns.Concerns = append(ns.Concerns, "missed dose twice last week")
				return ns
			},
		},
		{
			name: "no withdrawal assessment on record",
			mutate: func(c *PatientClinicalContext, ns *NoteSummary) *NoteSummary {
				delete(ns.AssessmentScores, "cows")
				return ns
			},
		},
		{
			name: "under 90 days in treatment",
			mutate: func(c *PatientClinicalContext, ns *NoteSummary) *NoteSummary {
				c.Encounters = nil
				withEncounter(c, ehr.EncounterIntake, 30)
				return ns
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ns := eligibleTakeHomeContext()
			ns = tt.mutate(c, ns)

			check := CheckProtocol(ProtocolTakeHomeDose, SpecialtyBehavioralHealth, c, ns)
			if check == nil {
				t.Fatal("expected a protocol check")
			}
			if check.Eligible {
				t.Error("expected ineligible")
			}
			if len(check.UnmetCriteria) == 0 {
				t.Error("expected at least one unmet criterion")
			}
			if len(check.Recommendations) == 0 {
				t.Error("expected remediation recommendations for unmet criteria")
			}
		})
	}
}

// TestProtocolCriteriaPartition tests that met and unmet criteria always
// partition the required set
func TestProtocolCriteriaPartition(t *testing.T) {
	contexts := []*PatientClinicalContext{
		emptyContext(33),
		func() *PatientClinicalContext { c, _ := eligibleTakeHomeContext(); return c }(),
	}

	for _, c := range contexts {
		check := CheckProtocol(ProtocolTakeHomeDose, SpecialtyBehavioralHealth, c, nil)
		if check == nil {
			t.Fatal("expected a protocol check")
		}
		if len(check.MetCriteria)+len(check.UnmetCriteria) != len(check.RequiredCriteria) {
			t.Errorf("met (%d) + unmet (%d) != required (%d)",
				len(check.MetCriteria), len(check.UnmetCriteria), len(check.RequiredCriteria))
		}
		seen := map[string]bool{}
		for _, name := range append(append([]string{}, check.MetCriteria...), check.UnmetCriteria...) {
			if seen[name] {
				t.Errorf("criterion %q appears in both partitions", name)
			}
			seen[name] = true
		}
		if check.Eligible != (len(check.UnmetCriteria) == 0) {
			t.Error("eligibility must equal the unmet set being empty")
		}
	}
}

// TestCheckProtocolUnknown tests nil results for unknown ids and
// mismatched specialties
func TestCheckProtocolUnknown(t *testing.T) {
	c := emptyContext(33)

	if check := CheckProtocol("no-such-protocol", SpecialtyBehavioralHealth, c, nil); check != nil {
		t.Errorf("expected nil for unknown protocol, got %+v", check)
	}
	if check := CheckProtocol(ProtocolTakeHomeDose, SpecialtyCardiology, c, nil); check != nil {
		t.Errorf("expected nil for mismatched specialty, got %+v", check)
	}
}

// TestCheckAllProtocols tests per-specialty protocol resolution
func TestCheckAllProtocols(t *testing.T) {
	c := emptyContext(33)

	behavioral := CheckAllProtocols(SpecialtyBehavioralHealth, c, nil)
	if len(behavioral) != 1 || behavioral[0].ProtocolID != ProtocolTakeHomeDose {
		t.Errorf("behavioral health checks = %+v, want the take-home protocol", behavioral)
	}

	for _, specialtyID := range []string{SpecialtyPrimaryCare, SpecialtyPediatrics, "unknown"} {
		if checks := CheckAllProtocols(specialtyID, c, nil); len(checks) != 0 {
			t.Errorf("%s checks = %d, want 0", specialtyID, len(checks))
		}
	}
}

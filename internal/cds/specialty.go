package cds

// Specialty identifiers used across the pipeline. Unknown ids are never
// an error: scoring, protocols and recommendations all resolve them to
// an empty strategy.
const (
	SpecialtyBehavioralHealth    = "behavioral-health"
	SpecialtyPrimaryCare         = "primary-care"
	SpecialtyPsychiatry          = "psychiatry"
	SpecialtySpeechTherapy       = "speech-therapy"
	SpecialtyOccupationalTherapy = "occupational-therapy"
	SpecialtyPhysicalTherapy     = "physical-therapy"
	SpecialtyCardiology          = "cardiology"
	SpecialtyPediatrics          = "pediatrics"
	SpecialtyOBGYN               = "obgyn"
)

// KnownSpecialties returns the supported specialty ids
func KnownSpecialties() []string {
	return []string{
		SpecialtyBehavioralHealth,
		SpecialtyPrimaryCare,
		SpecialtyPsychiatry,
		SpecialtySpeechTherapy,
		SpecialtyOccupationalTherapy,
		SpecialtyPhysicalTherapy,
		SpecialtyCardiology,
		SpecialtyPediatrics,
		SpecialtyOBGYN,
	}
}

// noteHints tells the extraction prompt which fields a specialty's notes
// typically contain. Unknown specialties get the generic hint.
var noteHints = map[string]string{
	SpecialtyBehavioralHealth:    "Notes typically document urine drug screen (UDS) results, COWS and CIWA withdrawal scores, medication-assisted treatment (MAT) dosing, counseling attendance, and 42 CFR Part 2 consent status.",
	SpecialtyPrimaryCare:         "Notes typically document chief complaint, chronic disease status (diabetes, hypertension), medication reconciliation, preventive screening history, and lab follow-up.",
	SpecialtyPsychiatry:          "Notes typically document PHQ-9 and GAD-7 scores, suicide risk assessment, medication response, and mental status examination.",
	SpecialtyCardiology:          "Notes typically document blood pressure readings, ejection fraction, echocardiogram findings, heart failure class, and cardiac medication titration.",
	SpecialtyPediatrics:          "Notes typically document growth percentiles, immunization status, developmental milestones, and well-child visit findings.",
	SpecialtyOBGYN:               "Notes typically document gestational age, screening history (Pap, mammography), and prenatal findings.",
	SpecialtySpeechTherapy:       "Notes typically document therapy goals, session attendance, progress toward plan of care, and recertification dates.",
	SpecialtyOccupationalTherapy: "Notes typically document functional status, therapy goals, session attendance, and plan of care progress.",
	SpecialtyPhysicalTherapy:     "Notes typically document range of motion, pain scores, therapy goals, session attendance, and plan of care progress.",
}

const genericNoteHint = "Notes document clinical findings, assessments, diagnoses, and follow-up plans."

// noteHintFor resolves the extraction hint for a specialty
func noteHintFor(specialtyID string) string {
	if hint, ok := noteHints[specialtyID]; ok {
		return hint
	}
	return genericNoteHint
}

// specialtyProtocols maps each specialty to the protocols evaluated for it
var specialtyProtocols = map[string][]string{
	SpecialtyBehavioralHealth: {ProtocolTakeHomeDose},
}

// GetSpecialtyProtocols returns the protocol ids evaluated for a
// specialty; unknown specialties get an empty list
func GetSpecialtyProtocols(specialtyID string) []string {
	protocols, ok := specialtyProtocols[specialtyID]
	if !ok {
		return []string{}
	}
	return append([]string(nil), protocols...)
}

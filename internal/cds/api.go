package cds

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/CompassionateITWEBDEV/Mase-EMR-dev-sub003/internal/shared/errors"
	"github.com/CompassionateITWEBDEV/Mase-EMR-dev-sub003/internal/shared/types"
)

// Handler exposes the decision-support pipeline over HTTP.
type Handler struct {
	pipeline         *Pipeline
	defaultSpecialty string
}

// NewHandler creates the HTTP handler.
func NewHandler(pipeline *Pipeline, defaultSpecialty string) *Handler {
	if defaultSpecialty == "" {
		defaultSpecialty = SpecialtyPrimaryCare
	}
	return &Handler{pipeline: pipeline, defaultSpecialty: defaultSpecialty}
}

// Routes mounts the decision-support API.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/specialties", h.listSpecialties)
	r.Route("/patients/{patientID}", func(r chi.Router) {
		r.Post("/evaluate", h.evaluate)
		r.Get("/risk-scores", h.riskScores)
		r.Get("/protocols", h.protocols)
		r.Post("/note-draft", h.noteDraft)
		r.Post("/treatment-plan", h.treatmentPlan)
	})
	return r
}

type specialtyInfo struct {
	ID        string   `json:"id"`
	Protocols []string `json:"protocols"`
}

func (h *Handler) listSpecialties(w http.ResponseWriter, r *http.Request) {
	specialties := []specialtyInfo{}
	for _, id := range KnownSpecialties() {
		specialties = append(specialties, specialtyInfo{
			ID:        id,
			Protocols: GetSpecialtyProtocols(id),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"specialties": specialties})
}

func (h *Handler) evaluate(w http.ResponseWriter, r *http.Request) {
	patientID, specialtyID, ok := h.requestParams(w, r)
	if !ok {
		return
	}
	opts := RunOptions{
		IncludeNoteDraft:     r.URL.Query().Get("include_note_draft") == "true",
		IncludeTreatmentPlan: r.URL.Query().Get("include_treatment_plan") == "true",
	}
	result, err := h.pipeline.Run(r.Context(), patientID, specialtyID, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) riskScores(w http.ResponseWriter, r *http.Request) {
	patientID, specialtyID, ok := h.requestParams(w, r)
	if !ok {
		return
	}
	scores, err := h.pipeline.RiskScores(r.Context(), patientID, specialtyID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"patient_id":   patientID,
		"specialty_id": specialtyID,
		"risk_scores":  scores,
	})
}

func (h *Handler) protocols(w http.ResponseWriter, r *http.Request) {
	patientID, specialtyID, ok := h.requestParams(w, r)
	if !ok {
		return
	}
	checks, err := h.pipeline.Protocols(r.Context(), patientID, specialtyID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"patient_id":      patientID,
		"specialty_id":    specialtyID,
		"protocol_checks": checks,
	})
}

func (h *Handler) noteDraft(w http.ResponseWriter, r *http.Request) {
	patientID, specialtyID, ok := h.requestParams(w, r)
	if !ok {
		return
	}
	draft, err := h.pipeline.NoteDraft(r.Context(), patientID, specialtyID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, draft)
}

func (h *Handler) treatmentPlan(w http.ResponseWriter, r *http.Request) {
	patientID, specialtyID, ok := h.requestParams(w, r)
	if !ok {
		return
	}
	draft, err := h.pipeline.TreatmentPlan(r.Context(), patientID, specialtyID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, draft)
}

// requestParams extracts and validates the patient id and specialty
// from the request, writing the error response itself on failure.
func (h *Handler) requestParams(w http.ResponseWriter, r *http.Request) (types.ID, string, bool) {
	patientID, err := types.ParseID(chi.URLParam(r, "patientID"))
	if err != nil {
		writeError(w, apperrors.BadRequest("invalid patient id"))
		return "", "", false
	}
	specialtyID := r.URL.Query().Get("specialty")
	if specialtyID == "" {
		specialtyID = h.defaultSpecialty
	}
	return patientID, specialtyID, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("cds api: encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		writeJSON(w, appErr.HTTPStatus, map[string]any{
			"error":   appErr.Message,
			"code":    appErr.Code,
			"details": appErr.Details,
		})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]any{
		"error": "internal server error",
		"code":  "INTERNAL",
	})
}

package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/camden-git/attendancebackend/biometric"
	"github.com/camden-git/attendancebackend/models"
	"github.com/camden-git/attendancebackend/services"
)

type EnrollmentHandler struct {
	Service *services.EnrollmentService
	Log     *zap.Logger
}

type enrollPayload struct {
	Vector     []float32  `json:"vector" validate:"required,min=1"`
	Confidence float64    `json:"confidence" validate:"gte=0,lte=1"`
	Quality    *float64   `json:"quality" validate:"omitempty,gte=0,lte=1"`
	Source     string     `json:"source" validate:"omitempty,oneof=enrollment update retrain"`
	Primary    bool       `json:"primary"`
	Model      string     `json:"model" validate:"max=64"`
	At         *time.Time `json:"at"`
}

func (h *EnrollmentHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	subjectID, err := uintParam(r, "subject_id")
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	var req enrollPayload
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	enroll := biometric.EnrollRequest{
		Vector:     req.Vector,
		Confidence: req.Confidence,
		Quality:    req.Quality,
		Source:     models.TemplateSource(req.Source),
		Primary:    req.Primary,
		Model:      req.Model,
	}
	if req.At != nil {
		enroll.At = *req.At
	}
	result, err := h.Service.Enroll(r.Context(), subjectID, enroll)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *EnrollmentHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	subjectID, err := uintParam(r, "subject_id")
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	result, err := h.Service.Deactivate(r.Context(), subjectID, chi.URLParam(r, "template_id"))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *EnrollmentHandler) Overview(w http.ResponseWriter, r *http.Request) {
	subjectID, err := uintParam(r, "subject_id")
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	overview, err := h.Service.Overview(r.Context(), subjectID)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

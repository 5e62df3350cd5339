package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/camden-git/attendancebackend/permissions"
	"github.com/camden-git/attendancebackend/services"
)

type SubjectHandler struct {
	Service *services.SubjectService
	Log     *zap.Logger
}

type subjectPayload struct {
	EmployeeCode string `json:"employee_code" validate:"required,max=64"`
	DisplayName  string `json:"display_name" validate:"required,max=255"`
}

func (h *SubjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req subjectPayload
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	subject, err := h.Service.Create(r.Context(), req.EmployeeCode, req.DisplayName)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, subject)
}

func (h *SubjectHandler) List(w http.ResponseWriter, r *http.Request) {
	subjects, err := h.Service.List(r.Context())
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, subjects)
}

func (h *SubjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, "subject_id")
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	if _, ok := authorizeSubject(w, r, permissions.AttendanceView, id); !ok {
		return
	}
	subject, err := h.Service.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, subject)
}

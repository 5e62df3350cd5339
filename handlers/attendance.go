package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/camden-git/attendancebackend/apperrors"
	"github.com/camden-git/attendancebackend/attendance"
	"github.com/camden-git/attendancebackend/models"
	"github.com/camden-git/attendancebackend/permissions"
	"github.com/camden-git/attendancebackend/repository"
	"github.com/camden-git/attendancebackend/services"
	"github.com/camden-git/attendancebackend/workers"
)

type AttendanceHandler struct {
	Service *services.AttendanceService
	Jobs    workers.JobQueuer // nil runs finalize and recompute inline
	Log     *zap.Logger
}

type eventPayload struct {
	SubjectID  uint       `json:"subject_id" validate:"required"`
	Type       string     `json:"type" validate:"required,oneof=check_in check_out break_start break_end"`
	At         *time.Time `json:"at"`
	Method     string     `json:"method" validate:"omitempty,oneof=biometric manual card app"`
	Confidence *float64   `json:"confidence" validate:"omitempty,gte=0,lte=1"`
	TemplateID *string    `json:"template_id"`
	Notes      string     `json:"notes" validate:"max=1000"`
}

func (h *AttendanceHandler) RecordEvent(w http.ResponseWriter, r *http.Request) {
	var req eventPayload
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	if _, ok := authorizeSubject(w, r, permissions.AttendanceRecord, req.SubjectID); !ok {
		return
	}

	ev := attendance.Event{
		SubjectID:  req.SubjectID,
		Type:       attendance.EventType(req.Type),
		Method:     models.AttendanceMethod(req.Method),
		Confidence: req.Confidence,
		TemplateID: req.TemplateID,
		Notes:      req.Notes,
	}
	if ev.Method == "" {
		ev.Method = models.MethodApp
	}
	if req.At != nil {
		ev.At = *req.At
	}
	rec, err := h.Service.RecordEvent(r.Context(), ev)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"record":  rec,
		"actions": attendance.NextActions(rec),
	})
}

func (h *AttendanceHandler) DayStatus(w http.ResponseWriter, r *http.Request) {
	subjectID, err := uintParam(r, "subject_id")
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	if _, ok := authorizeSubject(w, r, permissions.AttendanceView, subjectID); !ok {
		return
	}
	view, err := h.Service.DayStatus(r.Context(), subjectID, r.URL.Query().Get("day"))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *AttendanceHandler) History(w http.ResponseWriter, r *http.Request) {
	subjectID, err := uintParam(r, "subject_id")
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	if _, ok := authorizeSubject(w, r, permissions.AttendanceView, subjectID); !ok {
		return
	}
	limit, err := intQuery(r, "limit", 0)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	q := r.URL.Query()
	records, err := h.Service.History(r.Context(), subjectID, repository.AttendanceFilter{
		From:   q.Get("from"),
		To:     q.Get("to"),
		Status: models.AttendanceStatus(q.Get("status")),
		Limit:  limit,
	})
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	if records == nil {
		records = []models.AttendanceRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *AttendanceHandler) Summary(w http.ResponseWriter, r *http.Request) {
	subjectID, err := uintParam(r, "subject_id")
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	if _, ok := authorizeSubject(w, r, permissions.AttendanceView, subjectID); !ok {
		return
	}
	summary, err := h.Service.Summary(r.Context(), subjectID, r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type correctionPayload struct {
	SubjectID  uint       `json:"subject_id" validate:"required"`
	Day        string     `json:"day" validate:"required,day"`
	CheckIn    *time.Time `json:"check_in"`
	CheckOut   *time.Time `json:"check_out"`
	BreakStart *time.Time `json:"break_start"`
	BreakEnd   *time.Time `json:"break_end"`
	Notes      string     `json:"notes" validate:"max=1000"`
}

func (h *AttendanceHandler) Correct(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	var req correctionPayload
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	rec, err := h.Service.Correct(r.Context(), attendance.Correction{
		SubjectID:  req.SubjectID,
		Day:        req.Day,
		CheckIn:    req.CheckIn,
		CheckOut:   req.CheckOut,
		BreakStart: req.BreakStart,
		BreakEnd:   req.BreakEnd,
		ApprovedBy: actor.ID,
		Notes:      req.Notes,
	})
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *AttendanceHandler) Approve(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	rec, err := h.Service.Approve(r.Context(), chi.URLParam(r, "record_id"), actor.ID)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *AttendanceHandler) Pending(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", 100)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	records, err := h.Service.PendingApprovals(r.Context(), limit)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	if records == nil {
		records = []models.AttendanceRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *AttendanceHandler) Overview(w http.ResponseWriter, r *http.Request) {
	day := r.URL.Query().Get("day")
	if day == "" {
		day = time.Now().UTC().Format(models.DayLayout)
	}
	counts, err := h.Service.Overview(r.Context(), day)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"day": day, "counts": counts})
}

type finalizePayload struct {
	Day   string `json:"day" validate:"required,day"`
	Async bool   `json:"async"`
}

func (h *AttendanceHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	var req finalizePayload
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	if req.Async && h.Jobs != nil {
		h.queue(w, workers.DayJob{TaskType: workers.TaskFinalize, Day: req.Day})
		return
	}
	report, err := h.Service.Finalize(r.Context(), req.Day)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type recomputePayload struct {
	SubjectID uint   `json:"subject_id" validate:"required"`
	From      string `json:"from" validate:"required,day"`
	To        string `json:"to" validate:"required,day"`
	PolicyID  uint   `json:"policy_id"`
	Async     bool   `json:"async"`
}

func (h *AttendanceHandler) Recompute(w http.ResponseWriter, r *http.Request) {
	var req recomputePayload
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	if req.From > req.To {
		writeError(w, h.Log, apperrors.ErrInvalidInput.Withf("from %s is after to %s", req.From, req.To))
		return
	}
	if req.Async && h.Jobs != nil {
		h.queue(w, workers.DayJob{TaskType: workers.TaskRecompute, SubjectID: req.SubjectID, From: req.From, To: req.To, PolicyID: req.PolicyID})
		return
	}
	changed, err := h.Service.Recompute(r.Context(), req.SubjectID, req.From, req.To, req.PolicyID)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"changed": changed})
}

func (h *AttendanceHandler) queue(w http.ResponseWriter, job workers.DayJob) {
	if !h.Jobs.QueueJob(job) {
		WriteAPIError(w, http.StatusConflict, "job_not_queued", "an identical job is pending or the queue is full")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "task": job.TaskType})
}

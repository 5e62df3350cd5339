package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/camden-git/attendancebackend/apperrors"
	"github.com/camden-git/attendancebackend/models"
	"github.com/camden-git/attendancebackend/permissions"
	"github.com/camden-git/attendancebackend/services"
)

type LeaveHandler struct {
	Service *services.LeaveService
	Log     *zap.Logger
}

type leavePayload struct {
	SubjectID uint   `json:"subject_id" validate:"required"`
	Type      string `json:"type" validate:"required,oneof=sick vacation personal emergency maternity paternity"`
	StartDay  string `json:"start_day" validate:"required,day"`
	EndDay    string `json:"end_day" validate:"omitempty,day"`
	IsHalfDay bool   `json:"is_half_day"`
	Reason    string `json:"reason" validate:"max=2000"`
}

func (h *LeaveHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req leavePayload
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	if _, ok := authorizeSubject(w, r, permissions.LeaveRequest, req.SubjectID); !ok {
		return
	}
	leave, err := h.Service.Create(r.Context(), services.LeaveInput{
		SubjectID: req.SubjectID,
		Type:      models.LeaveType(req.Type),
		StartDay:  req.StartDay,
		EndDay:    req.EndDay,
		IsHalfDay: req.IsHalfDay,
		Reason:    req.Reason,
	})
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, leave)
}

// List filters by subject_id and status. Without leave.approve only the caller's own
// subject can be listed.
func (h *LeaveHandler) List(w http.ResponseWriter, r *http.Request) {
	var subjectID *uint
	if raw := r.URL.Query().Get("subject_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || id == 0 {
			writeError(w, h.Log, apperrors.ErrInvalidInput.Withf("invalid subject_id '%s'", raw))
			return
		}
		v := uint(id)
		subjectID = &v
	}
	actor, _ := ActorFromContext(r.Context())
	if !actor.HasPermission(permissions.LeaveApprove) {
		if actor.SubjectID == nil || (subjectID != nil && *subjectID != *actor.SubjectID) {
			WriteAPIError(w, http.StatusForbidden, "forbidden", "requires permission 'leave.approve'")
			return
		}
		subjectID = actor.SubjectID
	}

	status := models.LeaveStatus(r.URL.Query().Get("status"))
	leaves, err := h.Service.List(r.Context(), subjectID, status)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	if leaves == nil {
		leaves = []models.LeaveRequest{}
	}
	writeJSON(w, http.StatusOK, leaves)
}

// load fetches the leave in the URL and checks the caller may act for its subject.
func (h *LeaveHandler) load(w http.ResponseWriter, r *http.Request, permission string) (*models.LeaveRequest, *Actor, bool) {
	leave, err := h.Service.Get(r.Context(), chi.URLParam(r, "leave_id"))
	if err != nil {
		writeError(w, h.Log, err)
		return nil, nil, false
	}
	actor, ok := authorizeSubject(w, r, permission, leave.SubjectID)
	if !ok {
		return nil, nil, false
	}
	return leave, actor, true
}

func (h *LeaveHandler) Get(w http.ResponseWriter, r *http.Request) {
	leave, _, ok := h.load(w, r, permissions.LeaveApprove)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, leave)
}

func (h *LeaveHandler) Approve(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	leave, err := h.Service.Approve(r.Context(), chi.URLParam(r, "leave_id"), actor.ID)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, leave)
}

type rejectPayload struct {
	Reason string `json:"reason" validate:"max=2000"`
}

func (h *LeaveHandler) Reject(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	var req rejectPayload
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	leave, err := h.Service.Reject(r.Context(), chi.URLParam(r, "leave_id"), actor.ID, req.Reason)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, leave)
}

func (h *LeaveHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	current, _, ok := h.load(w, r, permissions.LeaveApprove)
	if !ok {
		return
	}
	leave, err := h.Service.Cancel(r.Context(), current.ID)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, leave)
}

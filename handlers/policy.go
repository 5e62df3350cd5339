package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/camden-git/attendancebackend/models"
	"github.com/camden-git/attendancebackend/services"
)

type PolicyHandler struct {
	Service *services.PolicyService
	Log     *zap.Logger
}

func (h *PolicyHandler) Active(w http.ResponseWriter, r *http.Request) {
	policy, err := h.Service.Active(r.Context())
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, policy)
}

func (h *PolicyHandler) History(w http.ResponseWriter, r *http.Request) {
	policies, err := h.Service.History(r.Context())
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, policies)
}

// Activate stores a new policy version. Omitted fields take the defaults.
func (h *PolicyHandler) Activate(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	policy := models.DefaultSchedulePolicy()
	if err := decodeJSON(w, r, &policy); err != nil {
		writeError(w, h.Log, err)
		return
	}
	policy.ID = 0
	policy.IsActive = false
	policy.CreatedBy = nil

	activated, err := h.Service.Activate(r.Context(), policy, actor.ID)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, activated)
}

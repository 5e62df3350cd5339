package handlers

import (
	"net/http"

	"github.com/camden-git/attendancebackend/permissions"
)

type PermissionsHandler struct{}

// ListDefinedPermissions serves the statically defined permission groups.
func (h *PermissionsHandler) ListDefinedPermissions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, permissions.DefinedPermissionGroups)
}

// ListDefinedPermissionKeys serves just the keys of all defined permissions.
func (h *PermissionsHandler) ListDefinedPermissionKeys(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, permissions.GetAllPermissionKeys())
}

// Me describes the caller's token.
func (h *PermissionsHandler) Me(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "no authenticated actor")
		return
	}
	granted := []string{}
	for _, key := range permissions.GetAllPermissionKeys() {
		if actor.HasPermission(key) {
			granted = append(granted, key)
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":          actor.ID,
		"subject_id":  actor.SubjectID,
		"permissions": granted,
	})
}

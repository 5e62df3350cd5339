package handlers

import (
	"net/http"

	"github.com/camden-git/attendancebackend/permissions"
	"github.com/camden-git/attendancebackend/realtime"
)

// FeedHandler streams live attendance and recognition events over a websocket.
type FeedHandler struct {
	Hub *realtime.Hub
}

// Subscribe lets holders of recognition.view watch any subject. A subject-scoped token
// is pinned to its own subject whatever the query asks for.
func (h *FeedHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "no authenticated actor")
		return
	}
	filter := realtime.FilterFromQuery(r)
	if !actor.HasPermission(permissions.RecognitionView) {
		if actor.SubjectID == nil {
			WriteAPIError(w, http.StatusForbidden, "forbidden", "requires permission '"+permissions.RecognitionView+"' or a subject token")
			return
		}
		own := *actor.SubjectID
		filter.SubjectID = &own
	}
	h.Hub.Subscribe(w, r, filter)
}

package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/camden-git/attendancebackend/attendance"
	"github.com/camden-git/attendancebackend/biometric"
	"github.com/camden-git/attendancebackend/permissions"
	"github.com/camden-git/attendancebackend/services"
)

type RecognitionHandler struct {
	Service *services.RecognitionService
	Log     *zap.Logger
}

type probePayload struct {
	ClaimedSubjectID *uint      `json:"claimed_subject_id"`
	Vector           []float32  `json:"vector"`
	Quality          float64    `json:"quality" validate:"gte=0,lte=1"`
	FaceCount        int        `json:"face_count" validate:"gte=0"`
	At               *time.Time `json:"at"`
}

func (p probePayload) probe() biometric.Probe {
	probe := biometric.Probe{
		ClaimedSubject: p.ClaimedSubjectID,
		Vector:         p.Vector,
		Quality:        p.Quality,
		FaceCount:      p.FaceCount,
	}
	if p.At != nil {
		probe.At = *p.At
	}
	return probe
}

// Evaluate runs verification (claimed_subject_id set) or identification and returns
// the verdict. Non-matches are verdicts, not errors.
func (h *RecognitionHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req probePayload
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	verdict, err := h.Service.Recognize(r.Context(), req.probe())
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, verdict)
}

type attendPayload struct {
	probePayload
	Type  string `json:"type" validate:"omitempty,oneof=check_in check_out break_start break_end"`
	Notes string `json:"notes" validate:"max=1000"`
}

// Attend records an attendance event for the matched subject.
func (h *RecognitionHandler) Attend(w http.ResponseWriter, r *http.Request) {
	var req attendPayload
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	result, err := h.Service.Attend(r.Context(), services.AttendRequest{
		Probe: req.probe(),
		Type:  attendance.EventType(req.Type),
		Notes: req.Notes,
	})
	if err != nil {
		if result != nil {
			h.Log.Debug("recognition attend rejected", zap.String("outcome", string(result.Verdict.Outcome)), zap.Error(err))
		}
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type imagePayload struct {
	Image            []byte `json:"image" validate:"required"` // base64 in JSON
	ClaimedSubjectID *uint  `json:"claimed_subject_id"`
}

func (h *RecognitionHandler) EvaluateImage(w http.ResponseWriter, r *http.Request) {
	var req imagePayload
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	verdict, err := h.Service.RecognizeImage(r.Context(), req.Image, req.ClaimedSubjectID)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, verdict)
}

func (h *RecognitionHandler) Logs(w http.ResponseWriter, r *http.Request) {
	subjectID, err := uintParam(r, "subject_id")
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	if _, ok := authorizeSubject(w, r, permissions.RecognitionView, subjectID); !ok {
		return
	}
	limit, err := intQuery(r, "limit", 50)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	logs, err := h.Service.Logs(r.Context(), subjectID, limit)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func (h *RecognitionHandler) Stats(w http.ResponseWriter, r *http.Request) {
	subjectID, err := uintParam(r, "subject_id")
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	if _, ok := authorizeSubject(w, r, permissions.RecognitionView, subjectID); !ok {
		return
	}
	stats, err := h.Service.Stats(r.Context(), subjectID)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Outcomes counts outcomes in [from, to); the default window is the last 24 hours.
func (h *RecognitionHandler) Outcomes(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	from, err := timeQuery(r, "from", now.Add(-24*time.Hour))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	to, err := timeQuery(r, "to", now)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	counts, err := h.Service.Outcomes(r.Context(), from, to)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"from": from, "to": to, "counts": counts})
}

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/camden-git/attendancebackend/apperrors"
)

// APIErrorDetail represents a single error in the standardized error response.
type APIErrorDetail struct {
	Code   string `json:"code"`
	Status string `json:"status"`
	Detail string `json:"detail"`
}

// APIErrorResponse represents the standardized error response body.
type APIErrorResponse struct {
	Errors []APIErrorDetail `json:"errors"`
}

// WriteAPIError writes a standardized error response with the given HTTP status, code, and detail.
func WriteAPIError(w http.ResponseWriter, httpStatus int, code string, detail string) {
	writeAPIErrors(w, httpStatus, []APIErrorDetail{{Code: code, Detail: detail}})
}

func writeAPIErrors(w http.ResponseWriter, httpStatus int, details []APIErrorDetail) {
	for i := range details {
		details[i].Status = strconv.Itoa(httpStatus)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(APIErrorResponse{Errors: details})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// statusForKind maps a rejection kind to the HTTP status it is reported with.
func statusForKind(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindInvalidInput:
		return http.StatusBadRequest
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindInvalidTransition, apperrors.KindLastTemplateProtected, apperrors.KindDuplicateDay:
		return http.StatusConflict
	case apperrors.KindPolicyViolation, apperrors.KindNotEnrolled:
		return http.StatusUnprocessableEntity
	case apperrors.KindConfigurationMissing:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError renders err. Rejections keep their code; anything else is logged and
// reported as an internal error without detail.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		writeValidationErrors(w, ve)
		return
	}
	if rej, ok := apperrors.AsRejection(err); ok {
		WriteAPIError(w, statusForKind(rej.Kind), rej.Code, rej.Message)
		return
	}
	log.Error("request failed", zap.Error(err))
	WriteAPIError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}

func writeValidationErrors(w http.ResponseWriter, ve validator.ValidationErrors) {
	details := make([]APIErrorDetail, 0, len(ve))
	for _, fe := range ve {
		detail := strings.ToLower(fe.Field()) + " failed '" + fe.Tag() + "'"
		if fe.Param() != "" {
			detail += " (" + fe.Param() + ")"
		}
		details = append(details, APIErrorDetail{Code: "validation_failed", Detail: detail})
	}
	writeAPIErrors(w, http.StatusBadRequest, details)
}

package controller

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/api-sage/escrow-engine/src/internal/commons"
	"github.com/api-sage/escrow-engine/src/internal/domain"
	"github.com/api-sage/escrow-engine/src/internal/logger"
)

const retryAfterSeconds = "1"

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

// statusFor maps an engine error onto an HTTP status. Integrity failures are
// never reported as client errors.
func statusFor(err error) int {
	switch domain.Classify(err) {
	case domain.ClassRetryable:
		return http.StatusServiceUnavailable
	case domain.ClassIntegrity:
		return http.StatusInternalServerError
	case domain.ClassInvalid:
		switch {
		case errors.Is(err, domain.ErrRecordNotFound):
			return http.StatusNotFound
		case errors.Is(err, domain.ErrInvalidTransition):
			return http.StatusConflict
		case errors.Is(err, domain.ErrConfiguration):
			return http.StatusUnprocessableEntity
		default:
			return http.StatusBadRequest
		}
	default:
		if errors.Is(err, domain.ErrDuplicateReference) {
			return http.StatusConflict
		}
		return http.StatusInternalServerError
	}
}

func messageFor(err error) string {
	switch domain.Classify(err) {
	case domain.ClassRetryable:
		return "resource busy, retry later"
	case domain.ClassIntegrity:
		return "integrity check failed"
	case domain.ClassInvalid:
		return err.Error()
	default:
		return "internal server error"
	}
}

func writeServiceError[T any](w http.ResponseWriter, r *http.Request, err error, start time.Time, extra logger.Fields) {
	status := statusFor(err)
	class := domain.Classify(err)
	if status >= http.StatusInternalServerError {
		logError(r, err, extra)
	}
	if class == domain.ClassRetryable {
		w.Header().Set("Retry-After", retryAfterSeconds)
	}

	response := commons.ClassifiedErrorResponse[T]("request failed", string(class), messageFor(err))
	logResponse(r, status, response, start)
	writeJSON(w, status, response)
}

func writeValidationError[T any](w http.ResponseWriter, r *http.Request, message string, err error, start time.Time) {
	response := commons.ClassifiedErrorResponse[T](message, string(domain.ClassInvalid), err.Error())
	logResponse(r, http.StatusBadRequest, response, start)
	writeJSON(w, http.StatusBadRequest, response)
}

func writeSuccess[T any](w http.ResponseWriter, r *http.Request, status int, message string, data T, start time.Time) {
	response := commons.SuccessResponse(message, data)
	logResponse(r, status, response, start)
	writeJSON(w, status, response)
}

var errInvalidState = errors.New("state must be one of held, scheduled, hold_for_approval, disputed, released, refunded")

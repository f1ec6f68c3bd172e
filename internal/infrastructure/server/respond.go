package server

import (
	"context"
	"encoding/json"
	"net/http"

	apperrors "github.com/Gabriel-Rockson/mt5-gateway/pkg/errors"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// RequestIDFromContext returns the request's correlation ID, empty if the
// middleware did not run.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// errorEnvelope is the wire shape of every error response.
type errorEnvelope struct {
	Error     string                 `json:"error"`
	ErrorType string                 `json:"error_type"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError maps any error onto the envelope. Foreign errors become
// sanitized internal errors; the original is preserved for logging by the
// caller.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperrors.As("http", err)

	details := appErr.Details
	if appErr.Retcode != 0 || appErr.VenueMsg != "" {
		details = make(map[string]interface{}, len(appErr.Details)+3)
		for k, v := range appErr.Details {
			details[k] = v
		}
		if appErr.Retcode != 0 {
			details["retcode"] = appErr.Retcode
		}
		if appErr.VenueCode != 0 {
			details["last_error_code"] = appErr.VenueCode
		}
		if appErr.VenueMsg != "" {
			details["last_error"] = appErr.VenueMsg
		}
	}

	respondJSON(w, appErr.Kind.HTTPStatus(), errorEnvelope{
		Error:     appErr.Message,
		ErrorType: appErr.Kind.ErrorType(),
		Details:   details,
		RequestID: RequestIDFromContext(r.Context()),
	})
}

// respondResult wraps a successful trade outcome the way callers expect:
// a human message plus the venue's echoed result.
func respondResult(w http.ResponseWriter, message string, result interface{}) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": message,
		"result":  result,
	})
}

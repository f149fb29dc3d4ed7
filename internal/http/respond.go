package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"estatecrm/internal/amortization"
	"estatecrm/internal/auth"
	"estatecrm/internal/core"
	"estatecrm/internal/log"
	"estatecrm/internal/middleware/trace"
)

// errBadRequest marks malformed request bodies and query values.
var errBadRequest = errors.New("bad request")

type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrWeakPassword):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, amortization.ErrArithmeticInconsistency):
		return http.StatusInternalServerError
	case amortization.IsValidationError(err), core.IsValidationError(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// errorType is the log.ErrorType* category of err.
func errorType(err error) string {
	switch statusFor(err) {
	case http.StatusNotFound:
		return log.ErrorTypeNotFound
	case http.StatusConflict:
		return log.ErrorTypeConflict
	case http.StatusUnauthorized:
		return log.ErrorTypeAuth
	case http.StatusUnprocessableEntity, http.StatusBadRequest:
		return log.ErrorTypeValidation
	}
	if errors.Is(err, amortization.ErrArithmeticInconsistency) {
		return log.ErrorTypeArithmetic
	}
	return log.ErrorTypeInternal
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// writeError answers with a JSON error. Server-side failures are logged at
// error level and their detail is not sent to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldError, err.Error(),
			log.FieldErrorType, errorType(err),
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path)
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorBody{Error: msg, RequestID: trace.GetRequestID(r.Context())})
}

// writeHTMLError answers an htmx request with an error fragment.
func writeHTMLError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldError, err.Error(),
			log.FieldErrorType, errorType(err),
			log.FieldPath, r.URL.Path)
		ErrorFragment(http.StatusInternalServerError, "Something went wrong, please retry").Write(w)
		return
	}
	ErrorFragment(status, msg).Write(w)
}

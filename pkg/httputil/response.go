package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/3Health-View/backend/pkg/errors"
	"github.com/3Health-View/backend/pkg/logger"
	"github.com/3Health-View/backend/pkg/validator"
)

// Response is the JSON envelope used by every endpoint. Message is always
// set; Data, Token and Error appear depending on the outcome.
type Response struct {
	Message string         `json:"message"`
	Data    any            `json:"data,omitempty"`
	Token   string         `json:"token,omitempty"`
	Error   *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse represents an error in the standard response format.
type ErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Detail    any               `json:"detail,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

// WriteMessage writes a message-only success response.
func WriteMessage(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, Response{Message: message})
}

// WriteData writes a success response carrying a payload.
func WriteData(w http.ResponseWriter, status int, message string, data any) {
	WriteJSON(w, status, Response{Message: message, Data: data})
}

// WriteToken writes a success response carrying a session token.
func WriteToken(w http.ResponseWriter, status int, message, token string) {
	WriteJSON(w, status, Response{Message: message, Token: token})
}

// WriteError writes a standardized error response. AppErrors keep their
// status, code, message and detail. Anything else is reported as a 500 with
// the error text as detail so no failure escapes as a bare framework error.
// It prefers the request-scoped logger from context over the fallback logger.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	l := logger.FromContext(r.Context())
	if l == slog.Default() && fallback != nil {
		l = fallback
	}

	requestID := logger.CorrelationIDFromContext(r.Context())

	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		appErr = apperrors.Internal(err)
		appErr.Status = apperrors.HTTPStatus(err)
	}

	if appErr.Status >= http.StatusInternalServerError {
		l.ErrorContext(r.Context(), "request failed",
			slog.String("code", appErr.Code),
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}

	WriteJSON(w, appErr.Status, Response{
		Message: appErr.Message,
		Error: &ErrorResponse{
			Code:      appErr.Code,
			Message:   appErr.Message,
			Detail:    appErr.Detail,
			RequestID: requestID,
		},
	})
}

// WriteValidationError writes a 400 response. The top-level message is the
// caller-facing summary; field-level details come from the validator package.
func WriteValidationError(w http.ResponseWriter, err error, message string) {
	resp := &ErrorResponse{Code: "INVALID_INPUT", Message: message}

	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		resp.Code = "VALIDATION_ERROR"
		resp.Fields = valErr.Fields()
	} else if err != nil {
		resp.Detail = err.Error()
	}

	WriteJSON(w, http.StatusBadRequest, Response{Message: message, Error: resp})
}

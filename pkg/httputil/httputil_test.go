package httputil

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/3Health-View/backend/pkg/errors"
	"github.com/3Health-View/backend/pkg/logger"
	"github.com/3Health-View/backend/pkg/validator"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestWriteToken(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteToken(rec, http.StatusCreated, "User Sign Up Successful", "tok")

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	body := decode(t, rec)
	assert.Equal(t, "User Sign Up Successful", body["message"])
	assert.Equal(t, "tok", body["token"])
	assert.NotContains(t, body, "error")
}

func TestWriteData_EmptySliceIsKept(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteData(rec, http.StatusOK, "success", []string{})

	body := decode(t, rec)
	assert.Equal(t, []any{}, body["data"])
}

func TestWriteError_AppError(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/login", nil)
	req = req.WithContext(logger.WithCorrelationID(req.Context(), "corr-1"))
	rec := httptest.NewRecorder()

	WriteError(rec, req, apperrors.Unauthorized("Incorrect Password"), testLogger())

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Incorrect Password", body["message"])
	errBody := body["error"].(map[string]any)
	assert.Equal(t, "UNAUTHORIZED", errBody["code"])
	assert.Equal(t, "corr-1", errBody["request_id"])
}

func TestWriteError_UpstreamDetail(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/data/update-scores", nil)
	rec := httptest.NewRecorder()

	WriteError(rec, req, apperrors.Upstream("Error getting sleep data", errors.New("status 429")), testLogger())

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Error getting sleep data", body["message"])
	assert.Equal(t, "status 429", body["error"].(map[string]any)["detail"])
}

func TestWriteError_PlainErrorBecomesInternal(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/data/display-info", nil)
	rec := httptest.NewRecorder()

	WriteError(rec, req, errors.New("redis: connection refused"), testLogger())

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Error has occurred", body["message"])
	assert.Equal(t, "redis: connection refused", body["error"].(map[string]any)["detail"])
}

func TestWriteError_WrappedSentinelKeepsStatus(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	WriteError(rec, req, apperrors.Wrap(apperrors.ErrNotFound, "lookup"), testLogger())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWriteValidationError(t *testing.T) {
	type body struct {
		Email string `json:"email" validate:"required"`
	}
	err := validator.Validate(body{})
	rec := httptest.NewRecorder()

	WriteValidationError(rec, err, "[email, password] is required!")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	got := decode(t, rec)
	assert.Equal(t, "[email, password] is required!", got["message"])
	errBody := got["error"].(map[string]any)
	assert.Equal(t, "VALIDATION_ERROR", errBody["code"])
	assert.Equal(t, "is required", errBody["fields"].(map[string]any)["email"])
}

func TestWriteValidationError_DecodeFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteValidationError(rec, errors.New("unexpected EOF"), "[code, redirectUrl] is required!")

	got := decode(t, rec)
	errBody := got["error"].(map[string]any)
	assert.Equal(t, "INVALID_INPUT", errBody["code"])
	assert.Equal(t, "unexpected EOF", errBody["detail"])
}

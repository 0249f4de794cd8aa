package http

import (
	"log/slog"
	"net/http"

	"github.com/3Health-View/backend/internal/service"
	"github.com/3Health-View/backend/pkg/httputil"
	"github.com/3Health-View/backend/pkg/middleware"
)

const msgSuccess = "success"

// DataHandler handles HTTP requests for the health data endpoints.
type DataHandler struct {
	service *service.DataService
	logger  *slog.Logger
}

// NewDataHandler creates a new data HTTP handler.
func NewDataHandler(svc *service.DataService, logger *slog.Logger) *DataHandler {
	return &DataHandler{service: svc, logger: logger}
}

func sessionFrom(r *http.Request) service.Session {
	sess := service.Session{Token: middleware.TokenFromContext(r.Context())}
	if c := middleware.ClaimsFromContext(r.Context()); c != nil {
		sess.Email = c.Email
		sess.OuraToken = c.OuraToken
	}
	return sess
}

// UpdateScores handles POST /api/v1/data/update-scores
func (h *DataHandler) UpdateScores(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.UpdateScores(r.Context(), sessionFrom(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, msgSuccess, records)
}

// DisplayInfo handles GET /api/v1/data/display-info
func (h *DataHandler) DisplayInfo(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.DisplayInfo(r.Context(), sessionFrom(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, msgSuccess, records)
}

// RemoveData handles DELETE /api/v1/data/remove-data
func (h *DataHandler) RemoveData(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RemoveData(r.Context(), middleware.EmailFromContext(r.Context())); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, msgSuccess, service.RemoveDataMessage)
}

// Hello handles GET /api/v1/hello
func Hello(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteMessage(w, http.StatusOK, "Hello World!")
}

package http

import (
	"log/slog"
	"net/http"

	"github.com/3Health-View/backend/internal/oura"
	"github.com/3Health-View/backend/internal/service"
	"github.com/3Health-View/backend/pkg/httputil"
	"github.com/3Health-View/backend/pkg/middleware"
	"github.com/3Health-View/backend/pkg/validator"
)

// UserHandler handles HTTP requests for account endpoints.
type UserHandler struct {
	service *service.UserService
	logger  *slog.Logger
}

// NewUserHandler creates a new user HTTP handler.
func NewUserHandler(svc *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{service: svc, logger: logger}
}

// --- Request DTOs ---

// SignupRequest is the JSON request body for account creation.
type SignupRequest struct {
	Email     string `json:"email" validate:"required"`
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Password  string `json:"password" validate:"required"`
	Username  string `json:"username"`
}

// LoginRequest is the JSON request body for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// UpdateOuraRequest is the JSON request body for storing Oura credentials.
type UpdateOuraRequest struct {
	OuraToken   string `json:"ouraToken" validate:"required"`
	OuraRefresh string `json:"ouraRefresh" validate:"required"`
}

// GetTokenRequest is the JSON request body for an authorization code exchange.
type GetTokenRequest struct {
	Code        string `json:"code" validate:"required"`
	RedirectURL string `json:"redirectUrl" validate:"required"`
}

// RefreshTokenRequest is the JSON request body for a provider token refresh.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// --- Handlers ---

// Signup handles POST /api/v1/users/signup
func (h *UserHandler) Signup(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req SignupRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err, validator.RequiredMessage("email", "firstName", "lastName", "password"))
		return
	}

	token, err := h.service.Signup(r.Context(), service.SignupInput{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
		Username:  req.Username,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteToken(w, http.StatusCreated, "User Sign Up Successful", token)
}

// Login handles POST /api/v1/users/login
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req LoginRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err, validator.RequiredMessage("email", "password"))
		return
	}

	token, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteToken(w, http.StatusOK, "User Sign In Successful", token)
}

// UpdateOura handles PATCH /api/v1/users/update-oura
func (h *UserHandler) UpdateOura(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req UpdateOuraRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err, validator.RequiredMessage("ouraToken", "ouraRefresh"))
		return
	}

	token, err := h.service.UpdateOura(r.Context(), middleware.EmailFromContext(r.Context()), req.OuraToken, req.OuraRefresh)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteToken(w, http.StatusOK, "User Oura Tokens Updated", token)
}

// GetToken handles POST /api/v1/users/get-token
func (h *UserHandler) GetToken(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req GetTokenRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err, validator.RequiredMessage("code", "redirectUrl"))
		return
	}

	resp, err := h.service.GetToken(r.Context(), req.Code, req.RedirectURL)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	writeUpstream(w, resp)
}

// RefreshToken handles POST /api/v1/users/refresh-token
func (h *UserHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req RefreshTokenRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err, validator.RequiredMessage("refreshToken"))
		return
	}

	resp, err := h.service.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	writeUpstream(w, resp)
}

// writeUpstream relays the provider's status and JSON body unchanged.
func writeUpstream(w http.ResponseWriter, resp *oura.TokenResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}

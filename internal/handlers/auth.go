package handlers

import (
	"net/http"

	"sports-buddy-backend/internal/middleware"
	"sports-buddy-backend/internal/services"
	"sports-buddy-backend/internal/view"
)

// AuthHandler handles account HTTP requests
type AuthHandler struct {
	authService *services.AuthService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Register handles POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.authService.Register(r.Context(), req)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, res)
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req services.SignInRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.authService.SignIn(r.Context(), req)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, res)
}

// Logout handles POST /api/v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())

	if err := h.authService.SignOut(r.Context(), sess.UserID()); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, NoticeResponse{
		Notice: services.Notice{Title: "Signed Out", Message: "You have been signed out", Tone: services.ToneSuccess},
	})
}

type passwordResetRequest struct {
	Email string `json:"email"`
}

// RequestPasswordReset handles POST /api/v1/auth/password-reset
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req passwordResetRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.authService.RequestPasswordReset(r.Context(), req.Email); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusAccepted, NoticeResponse{
		Notice: services.Notice{
			Title:   "Check Your Email",
			Message: "If an account exists for this address, a reset link is on its way",
			Tone:    services.ToneSuccess,
		},
	})
}

// ConfirmPasswordReset handles POST /api/v1/auth/password-reset/confirm
func (h *AuthHandler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req services.ConfirmPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.authService.ConfirmPasswordReset(r.Context(), req); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, NoticeResponse{
		Notice: services.Notice{Title: "Password Updated", Message: "Please sign in with your new password", Tone: services.ToneSuccess},
	})
}

// GetSession handles GET /api/v1/session
func (h *AuthHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, view.NewSession(middleware.GetSession(r.Context())))
}

package handlers

import (
	"net/http"

	"sports-buddy-backend/internal/middleware"
	"sports-buddy-backend/internal/services"
)

// ProfileHandler handles profile HTTP requests
type ProfileHandler struct {
	profileService *services.ProfileService
	uploadService  *services.UploadService
}

// NewProfileHandler creates a new profile handler. uploadService may be nil
// when no storage bucket is configured.
func NewProfileHandler(profileService *services.ProfileService, uploadService *services.UploadService) *ProfileHandler {
	return &ProfileHandler{
		profileService: profileService,
		uploadService:  uploadService,
	}
}

// PushTokenRequest sets or clears the device token
type PushTokenRequest struct {
	PushToken *string `json:"push_token"`
}

// UpdatePushToken handles PUT /api/v1/profile/push-token
func (h *ProfileHandler) UpdatePushToken(w http.ResponseWriter, r *http.Request) {
	var req PushTokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sess := middleware.GetSession(r.Context())
	if err := h.profileService.UpdatePushToken(r.Context(), sess, req.PushToken); err != nil {
		respondServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetPhotoUploadURL handles POST /api/v1/profile/photo/upload
func (h *ProfileHandler) GetPhotoUploadURL(w http.ResponseWriter, r *http.Request) {
	if !h.uploadsEnabled(w) {
		return
	}

	var req services.UploadRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	userID := middleware.GetSession(r.Context()).UserID()
	res, err := h.uploadService.PresignPhoto(r.Context(), userID, req.ContentType)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, res)
}

// ConfirmPhoto handles PUT /api/v1/profile/photo, called once the upload to
// the signed URL finished
func (h *ProfileHandler) ConfirmPhoto(w http.ResponseWriter, r *http.Request) {
	if !h.uploadsEnabled(w) {
		return
	}

	var req services.ConfirmPhotoRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	userID := middleware.GetSession(r.Context()).UserID()
	res, err := h.uploadService.ConfirmPhoto(r.Context(), userID, req.Key)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, res)
}

func (h *ProfileHandler) uploadsEnabled(w http.ResponseWriter) bool {
	if h.uploadService == nil {
		respondError(w, "Photo uploads are not configured", http.StatusNotImplemented)
		return false
	}
	return true
}

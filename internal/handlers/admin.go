package handlers

import (
	"fmt"
	"net/http"

	"sports-buddy-backend/internal/middleware"
	"sports-buddy-backend/internal/services"
)

// AdminHandler handles admin panel HTTP requests
type AdminHandler struct {
	adminService *services.AdminService
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(adminService *services.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

// GetStats handles GET /api/v1/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.adminService.Stats(r.Context(), middleware.GetSession(r.Context()))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, stats)
}

// ClearTestData handles POST /api/v1/admin/clear-test-data
func (h *AdminHandler) ClearTestData(w http.ResponseWriter, r *http.Request) {
	removed, err := h.adminService.ClearTestData(r.Context(), middleware.GetSession(r.Context()))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, NoticeResponse{
		Notice: services.Notice{
			Title:   "Test Data Cleared",
			Message: fmt.Sprintf("Deleted %d test matches", removed),
			Tone:    services.ToneSuccess,
		},
		Data: map[string]int{"removed": removed},
	})
}

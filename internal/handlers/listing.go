package handlers

import (
	"net/http"

	"sports-buddy-backend/internal/filter"
	"sports-buddy-backend/internal/middleware"
	"sports-buddy-backend/internal/services"
	"sports-buddy-backend/internal/view"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// ListingHandler handles match listing HTTP requests
type ListingHandler struct {
	listingService *services.ListingService
}

// NewListingHandler creates a new listing handler
func NewListingHandler(listingService *services.ListingService) *ListingHandler {
	return &ListingHandler{listingService: listingService}
}

// ListListings handles GET /api/v1/listings
func (h *ListingHandler) ListListings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := filter.Default().
		WithSport(q.Get("sport")).
		WithSkill(q.Get("skill")).
		WithQuery(q.Get("q"))

	respondJSON(w, http.StatusOK, h.listingService.Feed(middleware.GetSession(r.Context()), f))
}

// MyListings handles GET /api/v1/listings/mine
func (h *ListingHandler) MyListings(w http.ResponseWriter, r *http.Request) {
	mine, err := h.listingService.Mine(r.Context(), middleware.GetSession(r.Context()))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"listings": mine,
		"empty":    len(mine) == 0,
	})
}

// GetListing handles GET /api/v1/listings/{id}
func (h *ListingHandler) GetListing(w http.ResponseWriter, r *http.Request) {
	details, err := h.listingService.Details(r.Context(), middleware.GetSession(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, details)
}

// CreateListing handles POST /api/v1/listings
func (h *ListingHandler) CreateListing(w http.ResponseWriter, r *http.Request) {
	var req services.CreateListingRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sess := middleware.GetSession(r.Context())
	listing, err := h.listingService.Create(r.Context(), sess, req)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, NoticeResponse{
		Notice: services.Notice{Title: "Success!", Message: "Match created successfully", Tone: services.ToneSuccess},
		Data:   view.NewListing(*listing, sess, listing.CreatedAt),
	})
}

// JoinListing handles POST /api/v1/listings/{id}/join
func (h *ListingHandler) JoinListing(w http.ResponseWriter, r *http.Request) {
	res, err := h.listingService.Join(r.Context(), middleware.GetSession(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, NoticeResponse{Notice: res.Notice, Data: res.Listing})
}

// DeleteListing handles DELETE /api/v1/listings/{id}
func (h *ListingHandler) DeleteListing(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.listingService.Delete(r.Context(), middleware.GetSession(r.Context()), id); err != nil {
		log.Warn().Err(err).Str("listing_id", id).Msg("Delete refused or failed")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, NoticeResponse{
		Notice: services.Notice{Title: "Deleted", Message: "Match deleted successfully", Tone: services.ToneSuccess},
	})
}

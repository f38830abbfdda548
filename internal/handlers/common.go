package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"sports-buddy-backend/internal/services"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error  string           `json:"error"`
	Kind   string           `json:"kind,omitempty"`
	Notice *services.Notice `json:"notice,omitempty"`
}

// NoticeResponse carries a notice for a successful operation
type NoticeResponse struct {
	Notice services.Notice `json:"notice"`
	Data   interface{}     `json:"data,omitempty"`
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}

// respondServiceError sends err as a notice with the status of its kind
func respondServiceError(w http.ResponseWriter, err error) {
	svcErr := services.AsError(err)
	notice := svcErr.Notice()
	respondJSON(w, statusFor(svcErr.Kind), ErrorResponse{
		Error:  svcErr.Message,
		Kind:   svcErr.Kind.String(),
		Notice: &notice,
	})
}

func statusFor(kind services.Kind) int {
	switch kind {
	case services.KindValidation:
		return http.StatusBadRequest
	case services.KindUnauthenticated:
		return http.StatusUnauthorized
	case services.KindAuthorization:
		return http.StatusForbidden
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindCapacity, services.KindAlreadyJoined, services.KindConflict:
		return http.StatusConflict
	case services.KindConnectivity:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// decodeJSON reads the request body into v, refusing malformed payloads
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			respondError(w, "Malformed JSON", http.StatusBadRequest)
			return false
		}
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

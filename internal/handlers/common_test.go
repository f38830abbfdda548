package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"sports-buddy-backend/internal/services"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind services.Kind
		want int
	}{
		{services.KindValidation, http.StatusBadRequest},
		{services.KindUnauthenticated, http.StatusUnauthorized},
		{services.KindAuthorization, http.StatusForbidden},
		{services.KindNotFound, http.StatusNotFound},
		{services.KindCapacity, http.StatusConflict},
		{services.KindAlreadyJoined, http.StatusConflict},
		{services.KindConnectivity, http.StatusServiceUnavailable},
		{services.KindBackend, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			if got := statusFor(tt.kind); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestRespondServiceErrorWrapsUnknownErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	respondServiceError(rec, errors.New("disk on fire"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var body ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Kind != "backend" || body.Notice == nil || body.Notice.Tone != services.ToneError {
		t.Errorf("unexpected body %+v", body)
	}
}

func TestDecodeJSONRejectsMalformedBody(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{not json"))

	var v map[string]string
	if decodeJSON(rec, req, &v) {
		t.Fatal("expected decode to fail")
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

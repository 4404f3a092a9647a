package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"streamOverlayAPI/internal/types/overlay"
	"streamOverlayAPI/internal/types/stream"
)

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, overlay.ErrNotFound), errors.Is(err, stream.ErrNotFound), errors.Is(err, stream.ErrSegmentNotReady):
		return http.StatusNotFound
	case errors.Is(err, overlay.ErrInvalidKind),
		errors.Is(err, overlay.ErrInvalidContent),
		errors.Is(err, overlay.ErrInvalidGeometry),
		errors.Is(err, overlay.ErrImmutableField),
		errors.Is(err, stream.ErrRTSPURLRequired),
		errors.Is(err, stream.ErrInvalidRTSPURL):
		return http.StatusBadRequest
	case errors.Is(err, overlay.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondWithDomainError(w http.ResponseWriter, err error) {
	body := map[string]string{"error": err.Error()}
	if code := overlay.ErrorCode(err); code != "" {
		body["code"] = code
	}
	respondWithJSON(w, statusFor(err), body)
}

package handlers

import (
	"context"
	"net/http"
	"time"

	"streamOverlayAPI/services"
)

type HealthHandler struct {
	overlayService *services.OverlayService
	streamService  *services.StreamService
	storageKind    string
}

// storageKind is "postgres" or "memory".
func NewHealthHandler(overlayService *services.OverlayService, streamService *services.StreamService, storageKind string) *HealthHandler {
	return &HealthHandler{
		overlayService: overlayService,
		streamService:  streamService,
		storageKind:    storageKind,
	}
}

func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	ffmpeg := "not found"
	if h.streamService.FFmpegAvailable() {
		ffmpeg = "available"
	}

	storage := "connected"
	if h.storageKind == "memory" {
		storage = "memory"
	}

	if err := h.overlayService.Ping(ctx); err != nil {
		respondWithJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":         "unhealthy",
			"storage":        "disconnected",
			"ffmpeg":         ffmpeg,
			"active_streams": h.streamService.ActiveCount(),
			"error":          err.Error(),
		})
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "healthy",
		"storage":        storage,
		"ffmpeg":         ffmpeg,
		"active_streams": h.streamService.ActiveCount(),
	})
}

package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"streamOverlayAPI/internal/types/overlay"
	"streamOverlayAPI/services"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type OverlayHandler struct {
	overlayService *services.OverlayService
	hub            *services.OverlayHub
}

func NewOverlayHandler(overlayService *services.OverlayService, hub *services.OverlayHub) *OverlayHandler {
	return &OverlayHandler{
		overlayService: overlayService,
		hub:            hub,
	}
}

func (h *OverlayHandler) ListOverlays(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	streamID := r.URL.Query().Get("stream_id")

	overlays, err := h.overlayService.ListByStream(ctx, streamID)
	if err != nil {
		log.Printf("Error fetching overlays: %v", err)
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, overlays)
}

func (h *OverlayHandler) CreateOverlay(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req overlay.CreateOverlayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	created, err := h.overlayService.Create(ctx, &req)
	if err != nil {
		log.Printf("Error creating overlay: %v", err)
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}

func (h *OverlayHandler) GetOverlay(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	id := mux.Vars(r)["id"]

	found, err := h.overlayService.Get(ctx, id)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, found)
}

func (h *OverlayHandler) UpdateOverlay(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	id := mux.Vars(r)["id"]

	var req overlay.UpdateOverlayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Type != nil || req.StreamID != nil {
		current, err := h.overlayService.Get(ctx, id)
		if err != nil {
			respondWithDomainError(w, err)
			return
		}
		if req.Type != nil && *req.Type != current.Kind {
			respondWithDomainError(w, fmt.Errorf("type: %w", overlay.ErrImmutableField))
			return
		}
		if req.StreamID != nil && *req.StreamID != current.StreamID {
			respondWithDomainError(w, fmt.Errorf("stream_id: %w", overlay.ErrImmutableField))
			return
		}
	}

	updated, err := h.overlayService.Update(ctx, id, req.Patch)
	if err != nil {
		log.Printf("Error updating overlay %s: %v", id, err)
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, updated)
}

func (h *OverlayHandler) DeleteOverlay(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	id := mux.Vars(r)["id"]

	if err := h.overlayService.Remove(ctx, id); err != nil {
		log.Printf("Error deleting overlay %s: %v", id, err)
		respondWithDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *OverlayHandler) BulkDeleteOverlays(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var req overlay.BulkDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ids := make([]string, 0, len(req.OverlayIDs))
	for _, id := range req.OverlayIDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		respondWithError(w, http.StatusBadRequest, "No overlay IDs provided")
		return
	}

	deleted, err := h.overlayService.RemoveMany(ctx, ids)
	if err != nil {
		log.Printf("Error bulk deleting overlays: %v", err)
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, overlay.BulkDeleteResponse{
		Message:      fmt.Sprintf("Deleted %d overlays", deleted),
		DeletedCount: deleted,
	})
}

// WatchOverlays upgrades to a websocket that receives the stream's full
// overlay set after every change.
func (h *OverlayHandler) WatchOverlays(w http.ResponseWriter, r *http.Request) {
	streamID := r.URL.Query().Get("stream_id")
	if streamID == "" {
		streamID = services.DefaultStreamID
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Could not upgrade connection: %v", err)
		return
	}

	watcher := services.NewWatcher(h.hub, streamID, conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = h.overlayService.Subscribe(ctx, streamID, func(snapshot overlay.Snapshot) {
		h.hub.RegisterWithSnapshot(watcher, snapshot)
	})
	if err != nil {
		log.Printf("[Hub %s] Failed to load initial overlays: %v", streamID, err)
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "overlays unavailable"))
		conn.Close()
		return
	}

	go watcher.WritePump()
	go watcher.ReadPump()
}

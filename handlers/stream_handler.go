package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"streamOverlayAPI/internal/types/stream"
	"streamOverlayAPI/services"
	"streamOverlayAPI/utils"
)

type StreamHandler struct {
	streamService *services.StreamService
}

func NewStreamHandler(streamService *services.StreamService) *StreamHandler {
	return &StreamHandler{
		streamService: streamService,
	}
}

func (h *StreamHandler) StartStream(w http.ResponseWriter, r *http.Request) {
	var req stream.StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.streamService.StartRTSP(r.Context(), req.RTSPURL)
	if err != nil {
		log.Printf("Error starting stream: %v", err)
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, resp)
}

func (h *StreamHandler) StartTestStream(w http.ResponseWriter, r *http.Request) {
	resp, err := h.streamService.StartTest(r.Context())
	if err != nil {
		log.Printf("Error starting test stream: %v", err)
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, resp)
}

// StopStream accepts the id either in the path or in the JSON body.
func (h *StreamHandler) StopStream(w http.ResponseWriter, r *http.Request) {
	streamID := mux.Vars(r)["id"]
	if streamID == "" {
		var req stream.StopRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		streamID = req.StreamID
	}

	if err := h.streamService.Stop(streamID); err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"status": stream.StatusStopped})
}

func (h *StreamHandler) StreamStatus(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, stream.StatusResponse{
		ActiveStreams: h.streamService.Status(),
	})
}

func (h *StreamHandler) ShareStream(w http.ResponseWriter, r *http.Request) {
	streamID := mux.Vars(r)["id"]
	if !h.streamService.Exists(streamID) {
		respondWithDomainError(w, stream.ErrNotFound)
		return
	}

	hlsURL := h.streamService.PlaybackURL(streamID)
	qrCode, err := utils.QRCodeBase64(hlsURL)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "unable to generate qr code")
		return
	}

	respondWithJSON(w, http.StatusOK, stream.ShareResponse{
		StreamID:     streamID,
		HLSURL:       hlsURL,
		QrCodeBase64: qrCode,
	})
}

// ServeStreamFile serves HLS playlists and segments.
func (h *StreamHandler) ServeStreamFile(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	path, contentType, err := h.streamService.ResolveFile(vars["id"], vars["filename"])
	if err != nil {
		if errors.Is(err, stream.ErrSegmentNotReady) {
			log.Printf("File not found yet: %s/%s", vars["id"], vars["filename"])
			respondWithError(w, http.StatusNotFound, "File "+vars["filename"]+" not ready yet. Please wait...")
			return
		}
		respondWithDomainError(w, err)
		return
	}

	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, path)
}

package handlers

import (
	"context"
	"html/template"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"streamOverlayAPI/internal/types/overlay"
	"streamOverlayAPI/services"
	"streamOverlayAPI/utils"
)

// DocHandler serves the read-only HTML watch page of a stream.
type DocHandler struct {
	overlayService *services.OverlayService
	streamService  *services.StreamService
}

func NewDocHandler(overlayService *services.OverlayService, streamService *services.StreamService) *DocHandler {
	return &DocHandler{
		overlayService: overlayService,
		streamService:  streamService,
	}
}

const watchHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
	<title>Stream {{.StreamID}}</title>
	<style>
		body { font-family: 'Helvetica Neue', Helvetica, Arial, sans-serif; max-width: 900px; margin: 0 auto; padding: 20px; background-color: #f9f9f9; color: #333; }
		.container { background-color: #fff; padding: 32px; border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
		h1 { color: #2c3e50; border-bottom: 2px solid #eee; padding-bottom: 10px; }
		code { background-color: #e8f4f8; padding: 2px 6px; border-radius: 4px; }
		table { border-collapse: collapse; width: 100%; margin-top: 16px; }
		td, th { border-bottom: 1px solid #eee; padding: 6px; text-align: left; }
	</style>
</head>
<body>
	<div class="container">
		<h1>Stream {{.StreamID}}</h1>
		<p>Playlist: <code>{{.HLSURL}}</code></p>
		{{if .QRCode}}<img alt="QR code for the playlist" src="data:image/png;base64,{{.QRCode}}">{{end}}
		<h2>Overlays</h2>
		{{if .Overlays}}
		<table>
			<tr><th>Type</th><th>Content</th><th>Position</th><th>Size</th></tr>
			{{range .Overlays}}
			<tr><td>{{.Kind}}</td><td>{{.Content}}</td><td>{{.X}}, {{.Y}}</td><td>{{.Width}} x {{.Height}}</td></tr>
			{{end}}
		</table>
		{{else}}
		<p>No overlays yet.</p>
		{{end}}
	</div>
</body>
</html>
`

var watchTemplate = template.Must(template.New("watch").Parse(watchHTML))

type watchPage struct {
	StreamID string
	HLSURL   string
	QRCode   template.URL
	Overlays []overlay.Overlay
}

// ServeWatchPage renders the playlist address, a QR code for it and the
// stream's current overlays.
func (h *DocHandler) ServeWatchPage(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	streamID := mux.Vars(r)["id"]
	if !h.streamService.Exists(streamID) {
		http.Error(w, "Stream not found", http.StatusNotFound)
		return
	}

	overlays, err := h.overlayService.ListByStream(ctx, streamID)
	if err != nil {
		log.Printf("Error loading overlays for watch page %s: %v", streamID, err)
		http.Error(w, "Could not load overlays", statusFor(err))
		return
	}

	page := watchPage{
		StreamID: streamID,
		HLSURL:   h.streamService.PlaybackURL(streamID),
		Overlays: overlays,
	}
	if qrCode, err := utils.QRCodeBase64(page.HLSURL); err == nil {
		page.QRCode = template.URL(qrCode)
	} else {
		log.Printf("Error generating QR code for %s: %v", streamID, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := watchTemplate.Execute(w, page); err != nil {
		log.Printf("Error rendering watch page %s: %v", streamID, err)
	}
}

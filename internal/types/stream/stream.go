package stream

import "time"

const (
	StatusStarted = "started"
	StatusStopped = "stopped"

	TestPatternURL = "test://pattern"
)

type StartRequest struct {
	RTSPURL string `json:"rtsp_url"`
}

type StopRequest struct {
	StreamID string `json:"stream_id"`
}

type StartResponse struct {
	StreamID string `json:"stream_id"`
	HLSURL   string `json:"hls_url"`
	Status   string `json:"status"`
	Message  string `json:"message"`
}

type Info struct {
	StreamID  string    `json:"stream_id"`
	RTSPURL   string    `json:"rtsp_url"`
	StartedAt time.Time `json:"started_at"`
	Running   bool      `json:"running"`
}

type StatusResponse struct {
	ActiveStreams []Info `json:"active_streams"`
}

type ShareResponse struct {
	StreamID     string `json:"stream_id"`
	HLSURL       string `json:"hls_url"`
	QrCodeBase64 string `json:"qr_code_base64"`
}

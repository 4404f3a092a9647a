package stream

import "errors"

var (
	ErrNotFound          = errors.New("stream not found")
	ErrRTSPURLRequired   = errors.New("rtsp_url is required")
	ErrInvalidRTSPURL    = errors.New("invalid RTSP URL format")
	ErrFFmpegUnavailable = errors.New("FFmpeg not available")
	ErrSegmentNotReady   = errors.New("file not ready yet")
	ErrStartFailed       = errors.New("FFmpeg failed to start")
)

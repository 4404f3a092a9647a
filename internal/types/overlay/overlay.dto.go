package overlay

type CreateOverlayRequest struct {
	Type     Kind   `json:"type" validate:"required,oneof=text image"`
	Content  string `json:"content" validate:"required"`
	StreamID string `json:"stream_id"`
	X        *int   `json:"x,omitempty"`
	Y        *int   `json:"y,omitempty"`
	Width    *int   `json:"width,omitempty"`
	Height   *int   `json:"height,omitempty"`
}

// UpdateOverlayRequest is the PUT body. Type and StreamID are only decoded so
// that attempts to change them can be rejected.
type UpdateOverlayRequest struct {
	Patch
	Type     *Kind   `json:"type,omitempty"`
	StreamID *string `json:"stream_id,omitempty"`
}

type BulkDeleteRequest struct {
	OverlayIDs []string `json:"overlay_ids"`
}

type BulkDeleteResponse struct {
	Message      string `json:"message"`
	DeletedCount int    `json:"deleted_count"`
}

// Snapshot is the full overlay set of one stream as pushed to watchers.
type Snapshot struct {
	StreamID string    `json:"stream_id"`
	Overlays []Overlay `json:"overlays"`
}

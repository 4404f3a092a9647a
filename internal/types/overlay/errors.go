package overlay

import "errors"

var (
	ErrNotFound           = errors.New("overlay not found")
	ErrInvalidKind        = errors.New("invalid overlay type, must be 'text' or 'image'")
	ErrInvalidContent     = errors.New("content is required")
	ErrInvalidGeometry    = errors.New("invalid overlay geometry")
	ErrImmutableField     = errors.New("field cannot be changed after creation")
	ErrStorageUnavailable = errors.New("overlay storage unavailable")
	ErrNetwork            = errors.New("network error")
	ErrBusy               = errors.New("overlay has a pending change")
)

var errorCodes = map[error]string{
	ErrNotFound:           "not_found",
	ErrInvalidKind:        "invalid_kind",
	ErrInvalidContent:     "invalid_content",
	ErrInvalidGeometry:    "invalid_geometry",
	ErrImmutableField:     "immutable_field",
	ErrStorageUnavailable: "storage_unavailable",
}

// ErrorCode returns the wire code of the sentinel wrapped by err, or "".
func ErrorCode(err error) string {
	for sentinel, code := range errorCodes {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return ""
}

// ErrorFromCode is the inverse of ErrorCode. Unknown codes give nil.
func ErrorFromCode(code string) error {
	for sentinel, c := range errorCodes {
		if c == code {
			return sentinel
		}
	}
	return nil
}

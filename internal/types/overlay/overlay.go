package overlay

import (
	"time"
)

type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

func (k Kind) Valid() bool {
	return k == KindText || k == KindImage
}

const (
	MinWidth  = 30
	MinHeight = 30
	MaxWidth  = 2000
	MaxHeight = 2000

	DefaultX = 50
	DefaultY = 50
)

// DefaultSize returns the width and height a new overlay of kind k gets
// when the create request leaves them out.
func DefaultSize(k Kind) (int, int) {
	switch k {
	case KindImage:
		return 200, 150
	default:
		return 200, 60
	}
}

type Overlay struct {
	ID        string    `json:"id" db:"id"`
	StreamID  string    `json:"stream_id" db:"stream_id"`
	Kind      Kind      `json:"type" db:"kind"`
	Content   string    `json:"content" db:"content"`
	X         int       `json:"x" db:"x"`
	Y         int       `json:"y" db:"y"`
	Width     int       `json:"width" db:"width"`
	Height    int       `json:"height" db:"height"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Geometry is the positional part of an overlay.
type Geometry struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (o *Overlay) Geometry() Geometry {
	return Geometry{X: o.X, Y: o.Y, Width: o.Width, Height: o.Height}
}

// Patch holds the mutable fields of an overlay. Nil means "leave as is".
type Patch struct {
	Content *string `json:"content,omitempty"`
	X       *int    `json:"x,omitempty"`
	Y       *int    `json:"y,omitempty"`
	Width   *int    `json:"width,omitempty"`
	Height  *int    `json:"height,omitempty"`
}

func (p Patch) Empty() bool {
	return p.Content == nil && p.X == nil && p.Y == nil && p.Width == nil && p.Height == nil
}

// ApplyTo merges the patch into o in place.
func (p Patch) ApplyTo(o *Overlay) {
	if p.Content != nil {
		o.Content = *p.Content
	}
	if p.X != nil {
		o.X = *p.X
	}
	if p.Y != nil {
		o.Y = *p.Y
	}
	if p.Width != nil {
		o.Width = *p.Width
	}
	if p.Height != nil {
		o.Height = *p.Height
	}
}

func PositionPatch(x, y int) Patch {
	return Patch{X: &x, Y: &y}
}

func GeometryPatch(g Geometry) Patch {
	return Patch{X: &g.X, Y: &g.Y, Width: &g.Width, Height: &g.Height}
}

func ContentPatch(content string) Patch {
	return Patch{Content: &content}
}

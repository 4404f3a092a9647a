package client

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"streamOverlayAPI/internal/types/overlay"
	"streamOverlayAPI/utils"
)

type GestureState int

const (
	Idle GestureState = iota
	Dragging
	Resizing
	Editing
)

func (s GestureState) String() string {
	switch s {
	case Dragging:
		return "dragging"
	case Resizing:
		return "resizing"
	case Editing:
		return "editing"
	default:
		return "idle"
	}
}

// Handle is the corner grabbed for a resize.
type Handle int

const (
	NoHandle Handle = iota
	TopLeft
	TopRight
	BottomLeft
	BottomRight
)

type Point struct {
	X int
	Y int
}

// Canvas is the size of the video surface overlays must stay inside.
type Canvas struct {
	Width  int
	Height int
}

const DefaultHandleSize = 12

// Alert is a dismissible, non-blocking notification about a failed call.
type Alert struct {
	Op        string
	OverlayID string
	Err       error
}

func (a Alert) Message() string {
	if a.OverlayID == "" {
		return fmt.Sprintf("Failed to %s overlay: %v", a.Op, a.Err)
	}
	return fmt.Sprintf("Failed to %s overlay %s: %v", a.Op, a.OverlayID, a.Err)
}

type Notifier interface {
	Notify(alert Alert)
}

type NotifierFunc func(alert Alert)

func (f NotifierFunc) Notify(alert Alert) { f(alert) }

type gesture struct {
	state   GestureState
	handle  Handle
	start   Point
	origin  overlay.Geometry
	current overlay.Geometry
	content string
	buffer  string
}

// Editor turns pointer gestures and text edits into overlay updates. Moves
// are applied to the session's View as they happen; the server sees one
// update per finished gesture. Failed calls keep the local state and raise
// an Alert; the next poll corrects any divergence.
type Editor struct {
	session    *Session
	api        OverlayMutator
	notifier   Notifier
	canvas     Canvas
	handleSize int

	mu       sync.Mutex
	gestures map[string]*gesture
	inFlight map[string]bool
}

func NewEditor(session *Session, api OverlayMutator, canvas Canvas, notifier Notifier) *Editor {
	if notifier == nil {
		notifier = NotifierFunc(func(Alert) {})
	}
	return &Editor{
		session:    session,
		api:        api,
		notifier:   notifier,
		canvas:     canvas,
		handleSize: DefaultHandleSize,
		gestures:   make(map[string]*gesture),
		inFlight:   make(map[string]bool),
	}
}

// SetCanvas updates the bounds, e.g. after the player was resized.
func (e *Editor) SetCanvas(canvas Canvas) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.canvas = canvas
}

func (e *Editor) State(id string) GestureState {
	e.mu.Lock()
	defer e.mu.Unlock()
	if g, ok := e.gestures[id]; ok {
		return g.state
	}
	return Idle
}

// PointerDown starts a drag, or a resize when p is on a corner handle.
// A press outside the overlay starts nothing and returns Idle.
func (e *Editor) PointerDown(id string, p Point) (GestureState, error) {
	o, ok := e.session.View().Get(id)
	if !ok {
		return Idle, fmt.Errorf("overlay %s: %w", id, overlay.ErrNotFound)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkIdleLocked(id); err != nil {
		return Idle, err
	}

	geom := o.Geometry()
	handle := e.hitHandle(geom, p)
	state := Resizing
	if handle == NoHandle {
		if !contains(geom, p) {
			return Idle, nil
		}
		state = Dragging
	}

	e.gestures[id] = &gesture{
		state:   state,
		handle:  handle,
		start:   p,
		origin:  geom,
		current: geom,
	}
	return state, nil
}

// PointerMove updates the overlay locally. Nothing is sent to the server.
func (e *Editor) PointerMove(id string, p Point) {
	e.mu.Lock()
	g, ok := e.gestures[id]
	if !ok || (g.state != Dragging && g.state != Resizing) {
		e.mu.Unlock()
		return
	}

	dx, dy := p.X-g.start.X, p.Y-g.start.Y
	if g.state == Dragging {
		g.current = e.dragTo(g.origin, dx, dy)
	} else {
		g.current = e.resizeTo(g.origin, g.handle, dx, dy)
	}
	next := g.current
	state := g.state
	e.mu.Unlock()

	if state == Dragging {
		e.session.View().Apply(id, overlay.PositionPatch(next.X, next.Y))
	} else {
		e.session.View().Apply(id, overlay.GeometryPatch(next))
	}
}

// PointerUp ends a drag or resize and persists the final geometry with a
// single update. A gesture that did not move anything sends nothing.
func (e *Editor) PointerUp(ctx context.Context, id string) error {
	e.mu.Lock()
	g, ok := e.gestures[id]
	if !ok || (g.state != Dragging && g.state != Resizing) {
		e.mu.Unlock()
		return nil
	}
	delete(e.gestures, id)

	if g.current == g.origin {
		e.mu.Unlock()
		return nil
	}

	var fields overlay.Patch
	if g.state == Dragging {
		fields = overlay.PositionPatch(g.current.X, g.current.Y)
	} else {
		fields = overlay.GeometryPatch(g.current)
	}
	e.inFlight[id] = true
	e.mu.Unlock()

	return e.update(ctx, id, "move", fields)
}

// PointerCancel abandons a drag or resize and restores the geometry it started from.
func (e *Editor) PointerCancel(id string) {
	e.mu.Lock()
	g, ok := e.gestures[id]
	if !ok || (g.state != Dragging && g.state != Resizing) {
		e.mu.Unlock()
		return
	}
	delete(e.gestures, id)
	e.mu.Unlock()

	e.session.View().Apply(id, overlay.GeometryPatch(g.origin))
}

// BeginEdit captures the current content into the edit buffer.
func (e *Editor) BeginEdit(id string) (string, error) {
	o, ok := e.session.View().Get(id)
	if !ok {
		return "", fmt.Errorf("overlay %s: %w", id, overlay.ErrNotFound)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkIdleLocked(id); err != nil {
		return "", err
	}
	e.gestures[id] = &gesture{state: Editing, content: o.Content, buffer: o.Content}
	return o.Content, nil
}

func (e *Editor) SetBuffer(id, text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	g, ok := e.gestures[id]
	if !ok || g.state != Editing {
		return fmt.Errorf("overlay %s is not being edited", id)
	}
	g.buffer = text
	return nil
}

// CommitEdit sends the buffer as the new content. An empty buffer is refused
// locally and the overlay stays in Editing.
func (e *Editor) CommitEdit(ctx context.Context, id string) error {
	e.mu.Lock()
	g, ok := e.gestures[id]
	if !ok || g.state != Editing {
		e.mu.Unlock()
		return fmt.Errorf("overlay %s is not being edited", id)
	}
	if strings.TrimSpace(g.buffer) == "" {
		e.mu.Unlock()
		err := fmt.Errorf("overlay %s: %w", id, overlay.ErrInvalidContent)
		e.notifier.Notify(Alert{Op: "edit", OverlayID: id, Err: err})
		return err
	}
	delete(e.gestures, id)
	content := g.buffer
	e.inFlight[id] = true
	e.mu.Unlock()

	e.session.View().Apply(id, overlay.ContentPatch(content))
	return e.update(ctx, id, "edit", overlay.ContentPatch(content))
}

// CancelEdit throws the buffer away without a network call.
func (e *Editor) CancelEdit(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if g, ok := e.gestures[id]; ok && g.state == Editing {
		delete(e.gestures, id)
	}
}

// Create adds an overlay to the session's stream. The record only shows up
// locally once the server assigned its id.
func (e *Editor) Create(ctx context.Context, kind overlay.Kind, content string) (*overlay.Overlay, error) {
	req := &overlay.CreateOverlayRequest{
		Type:     kind,
		Content:  content,
		StreamID: e.session.StreamID,
	}

	created, err := e.api.CreateOverlay(ctx, req)
	if err != nil {
		e.notifier.Notify(Alert{Op: "create", Err: err})
		return nil, err
	}
	if e.session.Active() {
		e.session.View().Upsert(*created)
	}
	return created, nil
}

// Delete removes the overlay locally first, then on the server.
func (e *Editor) Delete(ctx context.Context, id string) error {
	e.mu.Lock()
	if err := e.checkIdleLocked(id); err != nil {
		e.mu.Unlock()
		return err
	}
	e.inFlight[id] = true
	e.mu.Unlock()

	defer e.release(id)

	e.session.View().Remove(id)
	if err := e.api.DeleteOverlay(ctx, id); err != nil {
		e.notifier.Notify(Alert{Op: "delete", OverlayID: id, Err: err})
		return err
	}
	return nil
}

// DeleteMany removes every idle overlay in ids, locally first, and returns the
// number the server reported as removed. Busy overlays are skipped.
func (e *Editor) DeleteMany(ctx context.Context, ids []string) (int, error) {
	e.mu.Lock()
	claimed := make([]string, 0, len(ids))
	for _, id := range ids {
		if e.checkIdleLocked(id) == nil {
			e.inFlight[id] = true
			claimed = append(claimed, id)
		}
	}
	e.mu.Unlock()

	defer func() {
		for _, id := range claimed {
			e.release(id)
		}
	}()

	if len(claimed) == 0 {
		return 0, nil
	}

	e.session.View().Remove(claimed...)
	deleted, err := e.api.BulkDeleteOverlays(ctx, claimed)
	if err != nil {
		e.notifier.Notify(Alert{Op: "delete", Err: err})
		return 0, err
	}
	return deleted, nil
}

func (e *Editor) update(ctx context.Context, id, op string, fields overlay.Patch) error {
	defer e.release(id)

	updated, err := e.api.UpdateOverlay(ctx, id, fields)
	if err != nil {
		e.notifier.Notify(Alert{Op: op, OverlayID: id, Err: err})
		return err
	}
	if e.session.Active() {
		e.session.View().Upsert(*updated)
	}
	return nil
}

func (e *Editor) release(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inFlight, id)
}

// checkIdleLocked allows a new gesture only when the overlay has neither an
// open gesture nor a call in flight.
func (e *Editor) checkIdleLocked(id string) error {
	if e.inFlight[id] {
		return fmt.Errorf("overlay %s: %w", id, overlay.ErrBusy)
	}
	if g, ok := e.gestures[id]; ok && g.state != Idle {
		return fmt.Errorf("overlay %s is %s: %w", id, g.state, overlay.ErrBusy)
	}
	return nil
}

func (e *Editor) dragTo(origin overlay.Geometry, dx, dy int) overlay.Geometry {
	next := origin
	next.X, next.Y = utils.ClampPosition(origin.X+dx, origin.Y+dy, origin.Width, origin.Height, e.canvas.Width, e.canvas.Height)
	return next
}

func (e *Editor) resizeTo(origin overlay.Geometry, handle Handle, dx, dy int) overlay.Geometry {
	left, right := origin.X, origin.X+origin.Width
	top, bottom := origin.Y, origin.Y+origin.Height

	movesLeft := handle == TopLeft || handle == BottomLeft
	movesTop := handle == TopLeft || handle == TopRight

	if movesLeft {
		left += dx
	} else {
		right += dx
	}
	if movesTop {
		top += dy
	} else {
		bottom += dy
	}

	left, right = utils.ClampSpan(left, right, e.canvas.Width, overlay.MinWidth, !movesLeft)
	top, bottom = utils.ClampSpan(top, bottom, e.canvas.Height, overlay.MinHeight, !movesTop)

	return overlay.Geometry{X: left, Y: top, Width: right - left, Height: bottom - top}
}

func (e *Editor) hitHandle(g overlay.Geometry, p Point) Handle {
	near := func(a, b int) bool {
		d := a - b
		if d < 0 {
			d = -d
		}
		return d <= e.handleSize/2
	}

	left, right := g.X, g.X+g.Width
	top, bottom := g.Y, g.Y+g.Height

	switch {
	case near(p.X, left) && near(p.Y, top):
		return TopLeft
	case near(p.X, right) && near(p.Y, top):
		return TopRight
	case near(p.X, left) && near(p.Y, bottom):
		return BottomLeft
	case near(p.X, right) && near(p.Y, bottom):
		return BottomRight
	}
	return NoHandle
}

func contains(g overlay.Geometry, p Point) bool {
	return p.X >= g.X && p.X <= g.X+g.Width && p.Y >= g.Y && p.Y <= g.Y+g.Height
}

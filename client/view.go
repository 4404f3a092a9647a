package client

import (
	"sync"

	"streamOverlayAPI/internal/types/overlay"
)

// Renderer paints the reconciled overlay list. It is called after every
// change to the View, outside the View's lock.
type Renderer interface {
	Render(overlays []overlay.Overlay)
}

type RenderFunc func(overlays []overlay.Overlay)

func (f RenderFunc) Render(overlays []overlay.Overlay) { f(overlays) }

// View is the client's cached, possibly stale copy of one stream's overlays.
type View struct {
	mu       sync.RWMutex
	overlays []overlay.Overlay
	renderer Renderer
}

func NewView(renderer Renderer) *View {
	return &View{renderer: renderer}
}

// Replace swaps the whole set for the authoritative one.
func (v *View) Replace(overlays []overlay.Overlay) {
	v.mu.Lock()
	v.overlays = append([]overlay.Overlay(nil), overlays...)
	snapshot := v.snapshotLocked()
	v.mu.Unlock()

	v.render(snapshot)
}

// Upsert stores o, appending it when its id is new.
func (v *View) Upsert(o overlay.Overlay) {
	v.mu.Lock()
	if i := v.indexLocked(o.ID); i >= 0 {
		v.overlays[i] = o
	} else {
		v.overlays = append(v.overlays, o)
	}
	snapshot := v.snapshotLocked()
	v.mu.Unlock()

	v.render(snapshot)
}

// Apply merges a patch into the cached overlay. It reports false when the
// overlay is not in the view.
func (v *View) Apply(id string, fields overlay.Patch) bool {
	v.mu.Lock()
	i := v.indexLocked(id)
	if i < 0 {
		v.mu.Unlock()
		return false
	}
	fields.ApplyTo(&v.overlays[i])
	snapshot := v.snapshotLocked()
	v.mu.Unlock()

	v.render(snapshot)
	return true
}

func (v *View) Remove(ids ...string) {
	v.mu.Lock()
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := v.overlays[:0:0]
	for _, o := range v.overlays {
		if !drop[o.ID] {
			kept = append(kept, o)
		}
	}
	v.overlays = kept
	snapshot := v.snapshotLocked()
	v.mu.Unlock()

	v.render(snapshot)
}

func (v *View) Get(id string) (overlay.Overlay, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if i := v.indexLocked(id); i >= 0 {
		return v.overlays[i], true
	}
	return overlay.Overlay{}, false
}

func (v *View) Snapshot() []overlay.Overlay {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.snapshotLocked()
}

func (v *View) indexLocked(id string) int {
	for i := range v.overlays {
		if v.overlays[i].ID == id {
			return i
		}
	}
	return -1
}

func (v *View) snapshotLocked() []overlay.Overlay {
	return append([]overlay.Overlay{}, v.overlays...)
}

func (v *View) render(snapshot []overlay.Overlay) {
	if v.renderer != nil {
		v.renderer.Render(snapshot)
	}
}

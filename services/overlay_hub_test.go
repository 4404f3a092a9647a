package services

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamOverlayAPI/internal/types/overlay"
)

func TestOverlayHub_RegisterAndUnregister(t *testing.T) {
	hub := NewOverlayHub()
	w := NewWatcher(hub, "s1", nil)

	assert.False(t, hub.Watching("s1"))
	hub.Register(w)
	assert.True(t, hub.Watching("s1"))
	assert.False(t, hub.Watching("s2"))
	assert.Equal(t, 1, hub.WatcherCount())

	hub.Unregister(w)
	assert.False(t, hub.Watching("s1"))
	assert.Equal(t, 0, hub.WatcherCount())

	_, open := <-w.Send
	assert.False(t, open, "send channel closed on unregister")

	// second unregister is a no-op
	hub.Unregister(w)
}

func TestOverlayHub_PublishOnlyToStream(t *testing.T) {
	hub := NewOverlayHub()
	a := NewWatcher(hub, "a", nil)
	b := NewWatcher(hub, "b", nil)
	hub.Register(a)
	hub.Register(b)

	hub.Publish(overlay.Snapshot{StreamID: "a", Overlays: []overlay.Overlay{{ID: "o1", StreamID: "a"}}})

	require.Len(t, a.Send, 1)
	assert.Len(t, b.Send, 0)

	var got overlay.Snapshot
	require.NoError(t, json.Unmarshal(<-a.Send, &got))
	assert.Equal(t, "a", got.StreamID)
	require.Len(t, got.Overlays, 1)
	assert.Equal(t, "o1", got.Overlays[0].ID)
}

func TestOverlayHub_PublishNilListEncodesEmptyArray(t *testing.T) {
	hub := NewOverlayHub()
	w := NewWatcher(hub, "s1", nil)
	hub.Register(w)

	hub.Publish(overlay.Snapshot{StreamID: "s1"})

	assert.Contains(t, string(<-w.Send), `"overlays":[]`)
}

func TestOverlayHub_DropsSlowWatcher(t *testing.T) {
	hub := NewOverlayHub()
	w := NewWatcher(hub, "s1", nil)
	hub.Register(w)

	for i := 0; i < cap(w.Send)+1; i++ {
		hub.Publish(overlay.Snapshot{StreamID: "s1"})
	}

	assert.False(t, hub.Watching("s1"))
}

func TestOverlayHub_RegisterWithSnapshotQueuesInitialFirst(t *testing.T) {
	hub := NewOverlayHub()
	w := NewWatcher(hub, "s1", nil)

	hub.RegisterWithSnapshot(w, overlay.Snapshot{StreamID: "s1"})
	hub.Publish(overlay.Snapshot{StreamID: "s1", Overlays: []overlay.Overlay{{ID: "o1", StreamID: "s1"}}})

	assert.True(t, hub.Watching("s1"))
	assert.Equal(t, 1, hub.WatcherCount())
	require.Len(t, w.Send, 2)

	var first, second overlay.Snapshot
	require.NoError(t, json.Unmarshal(<-w.Send, &first))
	require.NoError(t, json.Unmarshal(<-w.Send, &second))
	assert.Empty(t, first.Overlays)
	require.Len(t, second.Overlays, 1)
	assert.Equal(t, "o1", second.Overlays[0].ID)

	// registering again does not duplicate the watcher
	hub.Register(w)
	assert.Equal(t, 1, hub.WatcherCount())
}

package services

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"streamOverlayAPI/internal/types/overlay"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Watchers never send payloads, only control frames.
	maxMessageSize = 512
)

var _ OverlayPublisher = (*OverlayHub)(nil)

// OverlayHub pushes full overlay snapshots to websocket watchers of a stream.
// Watchers only read; every change still goes through the REST API.
type OverlayHub struct {
	mu       sync.RWMutex
	watchers map[string]map[*Watcher]bool
}

func NewOverlayHub() *OverlayHub {
	return &OverlayHub{
		watchers: make(map[string]map[*Watcher]bool),
	}
}

// Watcher is the middleman between one websocket connection and the hub.
type Watcher struct {
	Hub      *OverlayHub
	StreamID string
	Conn     *websocket.Conn
	Send     chan []byte
}

func NewWatcher(hub *OverlayHub, streamID string, conn *websocket.Conn) *Watcher {
	return &Watcher{
		Hub:      hub,
		StreamID: streamID,
		Conn:     conn,
		Send:     make(chan []byte, 16),
	}
}

func (h *OverlayHub) Register(w *Watcher) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.addLocked(w)
}

func (h *OverlayHub) addLocked(w *Watcher) {
	set, ok := h.watchers[w.StreamID]
	if !ok {
		set = make(map[*Watcher]bool)
		h.watchers[w.StreamID] = set
	}
	if set[w] {
		return
	}
	set[w] = true
	overlayWatchers.Inc()
	log.Printf("[Hub %s] Watcher connected. Count: %d", w.StreamID, len(set))
}

func (h *OverlayHub) Unregister(w *Watcher) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeLocked(w)
}

func (h *OverlayHub) Watching(streamID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.watchers[streamID]) > 0
}

func (h *OverlayHub) WatcherCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for _, set := range h.watchers {
		count += len(set)
	}
	return count
}

// Publish sends the snapshot to every watcher of the stream. Watchers whose
// buffer is full are dropped; they resync on reconnect.
func (h *OverlayHub) Publish(snapshot overlay.Snapshot) {
	if snapshot.Overlays == nil {
		snapshot.Overlays = []overlay.Overlay{}
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		log.Println("Error marshalling overlay snapshot:", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for w := range h.watchers[snapshot.StreamID] {
		select {
		case w.Send <- data:
		default:
			h.removeLocked(w)
		}
	}
}

// RegisterWithSnapshot registers w with its initial overlay set already
// queued, so no published snapshot can reach it ahead of the initial one.
func (h *OverlayHub) RegisterWithSnapshot(w *Watcher, snapshot overlay.Snapshot) {
	if snapshot.Overlays == nil {
		snapshot.Overlays = []overlay.Overlay{}
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		log.Println("Error marshalling overlay snapshot:", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.addLocked(w)
	select {
	case w.Send <- data:
	default:
		h.removeLocked(w)
	}
}

func (h *OverlayHub) removeLocked(w *Watcher) {
	set, ok := h.watchers[w.StreamID]
	if !ok || !set[w] {
		return
	}
	delete(set, w)
	close(w.Send)
	overlayWatchers.Dec()
	if len(set) == 0 {
		delete(h.watchers, w.StreamID)
	}
	log.Printf("[Hub %s] Watcher disconnected. Count: %d", w.StreamID, len(set))
}

// ReadPump drains control frames until the peer goes away.
func (w *Watcher) ReadPump() {
	defer func() {
		w.Hub.Unregister(w)
		w.Conn.Close()
	}()

	w.Conn.SetReadLimit(maxMessageSize)
	w.Conn.SetReadDeadline(time.Now().Add(pongWait))
	w.Conn.SetPongHandler(func(string) error {
		w.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := w.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[Hub %s] Error reading from watcher: %v", w.StreamID, err)
			}
			return
		}
	}
}

// WritePump handles snapshots going TO the watcher
func (w *Watcher) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		w.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-w.Send:
			w.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				w.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := w.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			w.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := w.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

package client

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/gorilla/websocket"

	"streamOverlayAPI/internal/types/overlay"
)

// Watch subscribes to pushed snapshots for the session's stream and replaces
// the View with each one while the session is active. It blocks until ctx is
// cancelled, the session stops or the connection drops. Polling keeps running
// alongside, so a dropped watch only costs latency.
func Watch(ctx context.Context, api *APIClient, session *Session) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, api.WatchURL(session.StreamID), nil)
	if err != nil {
		return fmt.Errorf("failed to open overlay watch: %w: %w", overlay.ErrNetwork, err)
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)

	go func() {
		select {
		case <-ctx.Done():
		case <-session.Done():
		case <-stop:
		}
		conn.Close()
	}()

	for {
		var snapshot overlay.Snapshot
		if err := conn.ReadJSON(&snapshot); err != nil {
			if ctx.Err() != nil || !session.Active() {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				log.Printf("[Watch %s] Closed by server: %v", session.StreamID, closeErr)
			}
			return fmt.Errorf("overlay watch: %w: %w", overlay.ErrNetwork, err)
		}

		if snapshot.StreamID != session.StreamID || !session.Active() {
			continue
		}
		session.View().Replace(snapshot.Overlays)
	}
}

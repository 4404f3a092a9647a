package workers

import (
	"context"
	"log"
	"time"
)

// StreamReaper is implemented by the stream service.
type StreamReaper interface {
	ReapExited() []string
}

// StartStreamReaper starts a background routine that forgets streams whose
// ffmpeg process died on its own and removes their segment directories.
// The returned channel closes once ctx is cancelled and the routine exited.
func StartStreamReaper(ctx context.Context, reaper StreamReaper, interval time.Duration) <-chan struct{} {
	if interval <= 0 {
		interval = time.Minute
	}

	done := make(chan struct{})
	ticker := time.NewTicker(interval)

	go func() {
		defer close(done)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				reapExitedStreams(reaper)
			case <-ctx.Done():
				return
			}
		}
	}()

	return done
}

func reapExitedStreams(reaper StreamReaper) {
	ids := reaper.ReapExited()
	for _, id := range ids {
		log.Printf("Reaped exited stream %s and its segments", id)
	}
}

package client

import (
	"context"
	"log"
	"time"
)

const (
	DefaultPollInterval = 3 * time.Second
	defaultFetchTimeout = 10 * time.Second
)

// Synchronizer re-fetches the overlay set of one stream on a fixed interval
// and replaces the View with whatever the server returned. A failed poll
// leaves the View as it was until the next tick.
type Synchronizer struct {
	fetcher      OverlayFetcher
	view         *View
	streamID     string
	interval     time.Duration
	fetchTimeout time.Duration
	onError      func(error)
}

func NewSynchronizer(fetcher OverlayFetcher, view *View, streamID string, interval time.Duration) *Synchronizer {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Synchronizer{
		fetcher:      fetcher,
		view:         view,
		streamID:     streamID,
		interval:     interval,
		fetchTimeout: defaultFetchTimeout,
		onError: func(err error) {
			log.Printf("[Sync %s] Poll failed: %v", streamID, err)
		},
	}
}

// OnError replaces the poll failure hook.
func (s *Synchronizer) OnError(fn func(error)) {
	if fn != nil {
		s.onError = fn
	}
}

// Run polls until ctx is cancelled. The first fetch happens immediately.
func (s *Synchronizer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.poll(ctx)
	for {
		select {
		case <-ticker.C:
			s.poll(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// poll fetches once. The request itself outlives ctx so teardown never
// aborts it, but its result is dropped when ctx ended meanwhile.
func (s *Synchronizer) poll(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchTimeout)
	defer cancel()

	overlays, err := s.fetcher.ListOverlays(fetchCtx, s.streamID)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		s.onError(err)
		return
	}
	s.view.Replace(overlays)
}

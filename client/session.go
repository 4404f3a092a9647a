package client

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrSessionClosed  = errors.New("stream session is closed")
	ErrSessionStarted = errors.New("stream session already started")
)

// Session is the explicit handle for one active stream: its id, the playable
// resource and the overlay View kept in sync while it is open.
type Session struct {
	StreamID    string
	PlaybackURL string

	view   *View
	syncer *Synchronizer

	mu      sync.Mutex
	started bool
	closed  bool
	cancel  context.CancelFunc
	done    chan struct{}
}

type SessionOption func(*Session)

// WithPollErrorHandler routes failed polls to fn instead of the log.
func WithPollErrorHandler(fn func(error)) SessionOption {
	return func(s *Session) {
		s.syncer.OnError(fn)
	}
}

func NewSession(fetcher OverlayFetcher, streamID, playbackURL string, renderer Renderer, interval time.Duration, opts ...SessionOption) *Session {
	view := NewView(renderer)
	s := &Session{
		StreamID:    streamID,
		PlaybackURL: playbackURL,
		view:        view,
		syncer:      NewSynchronizer(fetcher, view, streamID, interval),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins synchronizing: one fetch right away, then one per interval.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if s.started {
		return ErrSessionStarted
	}
	s.started = true

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	go func() {
		defer close(s.done)
		s.syncer.Run(loopCtx)
	}()
	return nil
}

// Stop ends the session. No further polls are issued; a poll already in
// flight completes but its result is discarded. Stop is idempotent.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	} else {
		close(s.done)
	}
}

// Done is closed once the polling loop has exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started && !s.closed
}

func (s *Session) View() *View {
	return s.view
}

// Open starts a conversion through the API and returns a started session for it.
func Open(ctx context.Context, api *APIClient, rtspURL string, renderer Renderer, interval time.Duration, opts ...SessionOption) (*Session, error) {
	var (
		streamID, playbackURL string
	)
	if rtspURL == "" {
		resp, err := api.StartTestStream(ctx)
		if err != nil {
			return nil, err
		}
		streamID, playbackURL = resp.StreamID, resp.HLSURL
	} else {
		resp, err := api.StartStream(ctx, rtspURL)
		if err != nil {
			return nil, err
		}
		streamID, playbackURL = resp.StreamID, resp.HLSURL
	}

	session := NewSession(api, streamID, playbackURL, renderer, interval, opts...)
	if err := session.Start(context.WithoutCancel(ctx)); err != nil {
		return nil, err
	}
	return session, nil
}

// Close stops the session and the server side conversion behind it.
func (s *Session) Close(ctx context.Context, api *APIClient) error {
	s.Stop()
	return api.StopStream(ctx, s.StreamID)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"streamOverlayAPI/internal/types/overlay"
)

const DefaultStreamID = "default"

// OverlayPublisher receives the full overlay set of a stream after it changed.
type OverlayPublisher interface {
	Watching(streamID string) bool
	Publish(snapshot overlay.Snapshot)
}

// OverlayService is the only mutator of the overlay store. It validates
// input, fills in defaults and tells the publisher about changes.
type OverlayService struct {
	store     OverlayStore
	publisher OverlayPublisher

	// publishMu orders snapshot reads with their delivery, so watchers
	// never receive an older set after a newer one.
	publishMu sync.Mutex
}

func NewOverlayService(store OverlayStore) *OverlayService {
	return &OverlayService{store: store}
}

// Allow injecting the websocket hub from main.go
func (s *OverlayService) SetPublisher(publisher OverlayPublisher) {
	s.publisher = publisher
}

func (s *OverlayService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *OverlayService) Create(ctx context.Context, req *overlay.CreateOverlayRequest) (rec *overlay.Overlay, err error) {
	defer func() { recordMutation("create", err) }()

	if !req.Type.Valid() {
		return nil, fmt.Errorf("create overlay with type %q: %w", req.Type, overlay.ErrInvalidKind)
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, fmt.Errorf("create overlay: %w", overlay.ErrInvalidContent)
	}

	streamID := strings.TrimSpace(req.StreamID)
	if streamID == "" {
		streamID = DefaultStreamID
	}

	width, height := overlay.DefaultSize(req.Type)
	o := &overlay.Overlay{
		StreamID: streamID,
		Kind:     req.Type,
		Content:  req.Content,
		X:        valueOr(req.X, overlay.DefaultX),
		Y:        valueOr(req.Y, overlay.DefaultY),
		Width:    valueOr(req.Width, width),
		Height:   valueOr(req.Height, height),
	}

	if err := validateGeometry(o.Geometry()); err != nil {
		return nil, fmt.Errorf("create overlay: %w", err)
	}

	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now

	rec, err = s.store.Put(ctx, o)
	if err != nil {
		return nil, fmt.Errorf("failed to create overlay: %w", err)
	}

	log.Printf("Overlay created: %s (%s) on stream %s", rec.ID, rec.Kind, rec.StreamID)
	s.broadcast(ctx, rec.StreamID)
	return rec, nil
}

func (s *OverlayService) Get(ctx context.Context, id string) (*overlay.Overlay, error) {
	return s.store.Get(ctx, id)
}

func (s *OverlayService) ListByStream(ctx context.Context, streamID string) ([]overlay.Overlay, error) {
	if streamID == "" {
		streamID = DefaultStreamID
	}

	overlays, err := s.store.List(ctx, streamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list overlays: %w", err)
	}
	return overlays, nil
}

// Update merges fields into the overlay. A change that would leave the
// overlay below the minimum size is rejected before anything is written.
func (s *OverlayService) Update(ctx context.Context, id string, fields overlay.Patch) (rec *overlay.Overlay, err error) {
	defer func() { recordMutation("update", err) }()

	current, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if fields.Empty() {
		return current, nil
	}

	if fields.Content != nil && strings.TrimSpace(*fields.Content) == "" {
		return nil, fmt.Errorf("update overlay %s: %w", id, overlay.ErrInvalidContent)
	}

	next := *current
	fields.ApplyTo(&next)
	if err := validateGeometry(next.Geometry()); err != nil {
		return nil, fmt.Errorf("update overlay %s: %w", id, err)
	}

	rec, err = s.store.Patch(ctx, id, fields)
	if err != nil {
		return nil, err
	}

	log.Printf("Overlay updated: %s", id)
	s.broadcast(ctx, rec.StreamID)
	return rec, nil
}

// Remove deletes one overlay. Removing an unknown id succeeds.
func (s *OverlayService) Remove(ctx context.Context, id string) (err error) {
	defer func() { recordMutation("delete", err) }()

	current, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, overlay.ErrNotFound) {
			return nil
		}
		return err
	}

	removed, err := s.store.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete overlay: %w", err)
	}

	if removed {
		log.Printf("Overlay deleted: %s", id)
		s.broadcast(ctx, current.StreamID)
	}
	return nil
}

// RemoveMany deletes every id it can and reports how many records went away.
// Unknown ids are skipped.
func (s *OverlayService) RemoveMany(ctx context.Context, ids []string) (deleted int, err error) {
	defer func() { recordMutation("bulk_delete", err) }()

	streams := make(map[string]struct{})
	for _, id := range ids {
		rec, err := s.store.Get(ctx, id)
		if err != nil {
			if errors.Is(err, overlay.ErrNotFound) {
				continue
			}
			return 0, err
		}
		streams[rec.StreamID] = struct{}{}
	}

	deleted, err = s.store.DeleteMany(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to bulk delete overlays: %w", err)
	}

	log.Printf("Bulk deleted %d of %d overlays", deleted, len(ids))
	for streamID := range streams {
		s.broadcast(ctx, streamID)
	}
	return deleted, nil
}

// Subscribe loads the stream's current overlay set and hands it to attach
// before any later change is published.
func (s *OverlayService) Subscribe(ctx context.Context, streamID string, attach func(overlay.Snapshot)) error {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	overlays, err := s.ListByStream(ctx, streamID)
	if err != nil {
		return err
	}
	attach(overlay.Snapshot{StreamID: streamID, Overlays: overlays})
	return nil
}

func (s *OverlayService) broadcast(ctx context.Context, streamID string) {
	if s.publisher == nil {
		return
	}

	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	if !s.publisher.Watching(streamID) {
		return
	}

	overlays, err := s.store.List(ctx, streamID)
	if err != nil {
		log.Printf("Failed to load overlays for stream %s broadcast: %v", streamID, err)
		return
	}
	s.publisher.Publish(overlay.Snapshot{StreamID: streamID, Overlays: overlays})
}

func validateGeometry(g overlay.Geometry) error {
	if g.X < 0 || g.Y < 0 {
		return fmt.Errorf("position (%d,%d) is outside the canvas: %w", g.X, g.Y, overlay.ErrInvalidGeometry)
	}
	if g.Width < overlay.MinWidth || g.Width > overlay.MaxWidth {
		return fmt.Errorf("width must be between %d and %d: %w", overlay.MinWidth, overlay.MaxWidth, overlay.ErrInvalidGeometry)
	}
	if g.Height < overlay.MinHeight || g.Height > overlay.MaxHeight {
		return fmt.Errorf("height must be between %d and %d: %w", overlay.MinHeight, overlay.MaxHeight, overlay.ErrInvalidGeometry)
	}
	return nil
}

func valueOr(v *int, fallback int) int {
	if v == nil {
		return fallback
	}
	return *v
}

package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"streamOverlayAPI/internal/types/overlay"
)

// OverlayStore is the durable keeper of overlay records. Lists are scoped by
// stream and come back in insertion order.
type OverlayStore interface {
	Put(ctx context.Context, o *overlay.Overlay) (*overlay.Overlay, error)
	Get(ctx context.Context, id string) (*overlay.Overlay, error)
	List(ctx context.Context, streamID string) ([]overlay.Overlay, error)
	Patch(ctx context.Context, id string, fields overlay.Patch) (*overlay.Overlay, error)
	// Delete reports whether a record was removed. Missing ids are not an error.
	Delete(ctx context.Context, id string) (bool, error)
	DeleteMany(ctx context.Context, ids []string) (int, error)
	Ping(ctx context.Context) error
}

var _ OverlayStore = (*MemoryOverlayStore)(nil)

// MemoryOverlayStore keeps overlays in process memory. It is used when no
// DATABASE_URL is configured and in tests.
type MemoryOverlayStore struct {
	mu       sync.RWMutex
	overlays map[string]*overlay.Overlay
	byStream map[string][]string
}

func NewMemoryOverlayStore() *MemoryOverlayStore {
	return &MemoryOverlayStore{
		overlays: make(map[string]*overlay.Overlay),
		byStream: make(map[string][]string),
	}
}

func (s *MemoryOverlayStore) Put(ctx context.Context, o *overlay.Overlay) (*overlay.Overlay, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if o == nil {
		return nil, fmt.Errorf("put overlay: nil record")
	}

	rec := *o
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.overlays[rec.ID]; ok {
		// streamId and kind are fixed for the lifetime of an id
		rec.StreamID = existing.StreamID
		rec.Kind = existing.Kind
		rec.CreatedAt = existing.CreatedAt
	} else {
		s.byStream[rec.StreamID] = append(s.byStream[rec.StreamID], rec.ID)
	}
	s.overlays[rec.ID] = &rec

	out := rec
	return &out, nil
}

func (s *MemoryOverlayStore) Get(ctx context.Context, id string) (*overlay.Overlay, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.overlays[id]
	if !ok {
		return nil, fmt.Errorf("get overlay %s: %w", id, overlay.ErrNotFound)
	}
	out := *rec
	return &out, nil
}

func (s *MemoryOverlayStore) List(ctx context.Context, streamID string) ([]overlay.Overlay, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byStream[streamID]
	overlays := make([]overlay.Overlay, 0, len(ids))
	for _, id := range ids {
		overlays = append(overlays, *s.overlays[id])
	}
	return overlays, nil
}

func (s *MemoryOverlayStore) Patch(ctx context.Context, id string, fields overlay.Patch) (*overlay.Overlay, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.overlays[id]
	if !ok {
		return nil, fmt.Errorf("patch overlay %s: %w", id, overlay.ErrNotFound)
	}
	fields.ApplyTo(rec)
	rec.UpdatedAt = time.Now().UTC()

	out := *rec
	return &out, nil
}

func (s *MemoryOverlayStore) Delete(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.deleteLocked(id), nil
}

func (s *MemoryOverlayStore) DeleteMany(ctx context.Context, ids []string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for _, id := range ids {
		if s.deleteLocked(id) {
			deleted++
		}
	}
	return deleted, nil
}

func (s *MemoryOverlayStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *MemoryOverlayStore) deleteLocked(id string) bool {
	rec, ok := s.overlays[id]
	if !ok {
		return false
	}
	delete(s.overlays, id)

	ids := s.byStream[rec.StreamID]
	for i, existing := range ids {
		if existing == id {
			ids = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(s.byStream, rec.StreamID)
	} else {
		s.byStream[rec.StreamID] = ids
	}
	return true
}

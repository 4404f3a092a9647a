package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamOverlayAPI/internal/types/overlay"
)

type recordingPublisher struct {
	mu        sync.Mutex
	watching  map[string]bool
	snapshots []overlay.Snapshot
}

func (p *recordingPublisher) Watching(streamID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.watching[streamID]
}

func (p *recordingPublisher) Publish(snapshot overlay.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshots = append(p.snapshots, snapshot)
}

type failingStore struct {
	*MemoryOverlayStore
	err error
}

func (s *failingStore) Put(ctx context.Context, o *overlay.Overlay) (*overlay.Overlay, error) {
	return nil, s.err
}

func (s *failingStore) Ping(ctx context.Context) error {
	return s.err
}

func intPtr(v int) *int { return &v }

func newService() *OverlayService {
	return NewOverlayService(NewMemoryOverlayStore())
}

func TestCreate_TextDefaults(t *testing.T) {
	svc := newService()

	o, err := svc.Create(context.Background(), &overlay.CreateOverlayRequest{
		Type:     overlay.KindText,
		Content:  "LIVE",
		StreamID: "s1",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, o.ID)
	assert.Equal(t, "s1", o.StreamID)
	assert.Equal(t, overlay.KindText, o.Kind)
	assert.Equal(t, overlay.Geometry{X: 50, Y: 50, Width: 200, Height: 60}, o.Geometry())
}

func TestCreate_ImageDefaultsAndDefaultStream(t *testing.T) {
	svc := newService()

	o, err := svc.Create(context.Background(), &overlay.CreateOverlayRequest{
		Type:    overlay.KindImage,
		Content: "https://example.com/logo.png",
	})
	require.NoError(t, err)

	assert.Equal(t, DefaultStreamID, o.StreamID)
	assert.Equal(t, 200, o.Width)
	assert.Equal(t, 150, o.Height)
}

func TestCreate_ExplicitGeometry(t *testing.T) {
	svc := newService()

	o, err := svc.Create(context.Background(), &overlay.CreateOverlayRequest{
		Type:    overlay.KindText,
		Content: "hi",
		X:       intPtr(0),
		Y:       intPtr(5),
		Width:   intPtr(30),
		Height:  intPtr(30),
	})
	require.NoError(t, err)
	assert.Equal(t, overlay.Geometry{X: 0, Y: 5, Width: 30, Height: 30}, o.Geometry())
}

func TestCreate_Rejections(t *testing.T) {
	tests := []struct {
		name string
		req  overlay.CreateOverlayRequest
		want error
	}{
		{"unknown kind", overlay.CreateOverlayRequest{Type: "video", Content: "x"}, overlay.ErrInvalidKind},
		{"empty kind", overlay.CreateOverlayRequest{Content: "x"}, overlay.ErrInvalidKind},
		{"empty content", overlay.CreateOverlayRequest{Type: overlay.KindText}, overlay.ErrInvalidContent},
		{"blank content", overlay.CreateOverlayRequest{Type: overlay.KindText, Content: "   "}, overlay.ErrInvalidContent},
		{"too narrow", overlay.CreateOverlayRequest{Type: overlay.KindText, Content: "x", Width: intPtr(29)}, overlay.ErrInvalidGeometry},
		{"too short", overlay.CreateOverlayRequest{Type: overlay.KindImage, Content: "x", Height: intPtr(10)}, overlay.ErrInvalidGeometry},
		{"negative x", overlay.CreateOverlayRequest{Type: overlay.KindText, Content: "x", X: intPtr(-1)}, overlay.ErrInvalidGeometry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newService()
			req := tt.req

			_, err := svc.Create(context.Background(), &req)
			assert.ErrorIs(t, err, tt.want)

			list, err := svc.ListByStream(context.Background(), "")
			require.NoError(t, err)
			assert.Empty(t, list)
		})
	}
}

func TestCreate_UniqueIDs(t *testing.T) {
	svc := newService()
	seen := make(map[string]bool)

	for i := 0; i < 50; i++ {
		o, err := svc.Create(context.Background(), &overlay.CreateOverlayRequest{Type: overlay.KindText, Content: "x"})
		require.NoError(t, err)
		assert.False(t, seen[o.ID], "duplicate id %s", o.ID)
		seen[o.ID] = true
	}
}

func TestCreate_StorageFailure(t *testing.T) {
	storeErr := errors.New("connection refused")
	svc := NewOverlayService(&failingStore{MemoryOverlayStore: NewMemoryOverlayStore(), err: storeErr})

	_, err := svc.Create(context.Background(), &overlay.CreateOverlayRequest{Type: overlay.KindText, Content: "x"})
	assert.ErrorIs(t, err, storeErr)
	assert.Error(t, svc.Ping(context.Background()))
}

func TestListByStream_Isolation(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Create(ctx, &overlay.CreateOverlayRequest{Type: overlay.KindText, Content: "a", StreamID: "A"})
		require.NoError(t, err)
	}
	for i := 0; i < 2; i++ {
		_, err := svc.Create(ctx, &overlay.CreateOverlayRequest{Type: overlay.KindText, Content: "b", StreamID: "B"})
		require.NoError(t, err)
	}

	a, err := svc.ListByStream(ctx, "A")
	require.NoError(t, err)
	assert.Len(t, a, 3)
	for _, o := range a {
		assert.Equal(t, "A", o.StreamID)
	}

	b, err := svc.ListByStream(ctx, "B")
	require.NoError(t, err)
	assert.Len(t, b, 2)
}

func TestUpdate_PositionKeepsIdentity(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	created, err := svc.Create(ctx, &overlay.CreateOverlayRequest{Type: overlay.KindImage, Content: "logo", StreamID: "s1"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, created.ID, overlay.PositionPatch(300, 120))
	require.NoError(t, err)

	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, created.Kind, updated.Kind)
	assert.Equal(t, created.StreamID, updated.StreamID)
	assert.Equal(t, created.Content, updated.Content)
	assert.Equal(t, 300, updated.X)
	assert.Equal(t, 120, updated.Y)
	assert.Equal(t, created.Width, updated.Width)
}

func TestUpdate_ResizeBelowMinimumIsRejected(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	created, err := svc.Create(ctx, &overlay.CreateOverlayRequest{Type: overlay.KindImage, Content: "logo"})
	require.NoError(t, err)

	w, h := 20, 20
	_, err = svc.Update(ctx, created.ID, overlay.Patch{Width: &w, Height: &h})
	assert.ErrorIs(t, err, overlay.ErrInvalidGeometry)

	stored, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 200, stored.Width)
	assert.Equal(t, 150, stored.Height)
}

func TestUpdate_EmptyContentIsRejected(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	created, err := svc.Create(ctx, &overlay.CreateOverlayRequest{Type: overlay.KindText, Content: "hi"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, created.ID, overlay.ContentPatch(" "))
	assert.ErrorIs(t, err, overlay.ErrInvalidContent)
}

func TestUpdate_EmptyPatchReturnsCurrent(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	created, err := svc.Create(ctx, &overlay.CreateOverlayRequest{Type: overlay.KindText, Content: "hi"})
	require.NoError(t, err)

	got, err := svc.Update(ctx, created.ID, overlay.Patch{})
	require.NoError(t, err)
	assert.Equal(t, *created, *got)
}

func TestUpdate_MissingOverlay(t *testing.T) {
	svc := newService()

	_, err := svc.Update(context.Background(), "missing", overlay.PositionPatch(1, 1))
	assert.ErrorIs(t, err, overlay.ErrNotFound)
}

func TestRemove_Twice(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	created, err := svc.Create(ctx, &overlay.CreateOverlayRequest{Type: overlay.KindText, Content: "hi"})
	require.NoError(t, err)

	require.NoError(t, svc.Remove(ctx, created.ID))
	require.NoError(t, svc.Remove(ctx, created.ID))

	_, err = svc.Get(ctx, created.ID)
	assert.ErrorIs(t, err, overlay.ErrNotFound)
}

func TestRemoveMany_CountsOnlyExisting(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	created, err := svc.Create(ctx, &overlay.CreateOverlayRequest{Type: overlay.KindText, Content: "hi"})
	require.NoError(t, err)

	deleted, err := svc.RemoveMany(ctx, []string{created.ID, "does-not-exist"})
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	list, err := svc.ListByStream(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMutations_PublishToWatchedStreams(t *testing.T) {
	pub := &recordingPublisher{watching: map[string]bool{"watched": true}}
	svc := newService()
	svc.SetPublisher(pub)
	ctx := context.Background()

	watched, err := svc.Create(ctx, &overlay.CreateOverlayRequest{Type: overlay.KindText, Content: "a", StreamID: "watched"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, &overlay.CreateOverlayRequest{Type: overlay.KindText, Content: "b", StreamID: "quiet"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, watched.ID, overlay.PositionPatch(0, 0))
	require.NoError(t, err)
	require.NoError(t, svc.Remove(ctx, watched.ID))

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.snapshots, 3)
	for _, s := range pub.snapshots {
		assert.Equal(t, "watched", s.StreamID)
	}
	assert.Len(t, pub.snapshots[0].Overlays, 1)
	assert.Equal(t, 0, pub.snapshots[1].Overlays[0].X)
	assert.Empty(t, pub.snapshots[2].Overlays)
}

func TestSubscribe_LastSnapshotHasEveryChange(t *testing.T) {
	hub := NewOverlayHub()
	svc := newService()
	svc.SetPublisher(hub)
	ctx := context.Background()

	const creates = 10
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < creates; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.Create(ctx, &overlay.CreateOverlayRequest{Type: overlay.KindText, Content: "x", StreamID: "s1"})
			assert.NoError(t, err)
		}()
	}

	w := NewWatcher(hub, "s1", nil)
	close(start)
	require.NoError(t, svc.Subscribe(ctx, "s1", func(snapshot overlay.Snapshot) {
		hub.RegisterWithSnapshot(w, snapshot)
	}))
	wg.Wait()

	require.True(t, hub.Watching("s1"))
	var last overlay.Snapshot
	for len(w.Send) > 0 {
		require.NoError(t, json.Unmarshal(<-w.Send, &last))
	}
	assert.Len(t, last.Overlays, creates)
}

func TestSubscribe_StorageFailure(t *testing.T) {
	svc := NewOverlayService(&listFailingStore{NewMemoryOverlayStore()})

	called := false
	err := svc.Subscribe(context.Background(), "s1", func(overlay.Snapshot) { called = true })
	assert.ErrorIs(t, err, overlay.ErrStorageUnavailable)
	assert.False(t, called)
}

type listFailingStore struct {
	OverlayStore
}

func (s *listFailingStore) List(ctx context.Context, streamID string) ([]overlay.Overlay, error) {
	return nil, overlay.ErrStorageUnavailable
}

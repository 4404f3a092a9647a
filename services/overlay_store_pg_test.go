package services_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamOverlayAPI/internal/types/overlay"
	"streamOverlayAPI/services"
	"streamOverlayAPI/tests/helpers"
)

func TestPostgresOverlayStore(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	streamID := "store-" + uuid.NewString()
	defer helpers.CleanupTestDB(t, pool, streamID)

	store := services.NewPostgresOverlayStore(pool)
	ctx := context.Background()
	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.Ping(ctx))

	first, err := store.Put(ctx, &overlay.Overlay{
		StreamID: streamID, Kind: overlay.KindText, Content: "one", X: 50, Y: 50, Width: 200, Height: 60,
	})
	require.NoError(t, err)
	_, err = uuid.Parse(first.ID)
	require.NoError(t, err)

	second, err := store.Put(ctx, &overlay.Overlay{
		StreamID: streamID, Kind: overlay.KindImage, Content: "two", X: 50, Y: 50, Width: 200, Height: 150,
	})
	require.NoError(t, err)

	t.Run("list keeps insertion order", func(t *testing.T) {
		list, err := store.List(ctx, streamID)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, first.ID, list[0].ID)
		assert.Equal(t, second.ID, list[1].ID)
	})

	t.Run("patch merges only given fields", func(t *testing.T) {
		out, err := store.Patch(ctx, first.ID, overlay.PositionPatch(7, 8))
		require.NoError(t, err)
		assert.Equal(t, 7, out.X)
		assert.Equal(t, 8, out.Y)
		assert.Equal(t, "one", out.Content)
		assert.Equal(t, 200, out.Width)
		assert.Equal(t, overlay.KindText, out.Kind)
	})

	t.Run("malformed ids behave as missing", func(t *testing.T) {
		_, err := store.Get(ctx, "not-a-uuid")
		assert.ErrorIs(t, err, overlay.ErrNotFound)

		_, err = store.Patch(ctx, "not-a-uuid", overlay.PositionPatch(1, 1))
		assert.ErrorIs(t, err, overlay.ErrNotFound)

		removed, err := store.Delete(ctx, "not-a-uuid")
		require.NoError(t, err)
		assert.False(t, removed)
	})

	t.Run("delete and bulk delete", func(t *testing.T) {
		removed, err := store.Delete(ctx, first.ID)
		require.NoError(t, err)
		assert.True(t, removed)

		removed, err = store.Delete(ctx, first.ID)
		require.NoError(t, err)
		assert.False(t, removed)

		deleted, err := store.DeleteMany(ctx, []string{second.ID, uuid.NewString(), "junk"})
		require.NoError(t, err)
		assert.Equal(t, 1, deleted)

		_, err = store.Get(ctx, second.ID)
		assert.ErrorIs(t, err, overlay.ErrNotFound)
	})
}

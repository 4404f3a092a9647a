package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamOverlayAPI/internal/types/overlay"
	"streamOverlayAPI/services"
	"streamOverlayAPI/tests/helpers"
)

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func createOverlay(t *testing.T, router http.Handler, body string) overlay.Overlay {
	t.Helper()
	rr := helpers.Do(router, jsonRequest(http.MethodPost, "/api/overlays", body))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return helpers.DecodeJSON[overlay.Overlay](t, rr)
}

func TestCreateOverlay(t *testing.T) {
	router, _, _ := helpers.NewOverlayRouter(services.NewMemoryOverlayStore())

	created := createOverlay(t, router, `{"type":"text","content":"LIVE","stream_id":"s1"}`)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "s1", created.StreamID)
	assert.Equal(t, overlay.KindText, created.Kind)
	assert.Equal(t, 50, created.X)
	assert.Equal(t, 200, created.Width)
	assert.Equal(t, 60, created.Height)
}

func TestCreateOverlay_BadInput(t *testing.T) {
	router, _, _ := helpers.NewOverlayRouter(services.NewMemoryOverlayStore())

	tests := []struct {
		name string
		body string
		code string
	}{
		{"bad kind", `{"type":"video","content":"x"}`, "invalid_kind"},
		{"missing content", `{"type":"text"}`, "invalid_content"},
		{"tiny", `{"type":"image","content":"x","width":10}`, "invalid_geometry"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := helpers.Do(router, jsonRequest(http.MethodPost, "/api/overlays", tt.body))
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			body := helpers.DecodeJSON[map[string]string](t, rr)
			assert.Equal(t, tt.code, body["code"])
			assert.NotEmpty(t, body["error"])
		})
	}

	rr := helpers.Do(router, jsonRequest(http.MethodPost, "/api/overlays", `{not json`))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestListOverlays_DefaultStreamAndEmptyArray(t *testing.T) {
	router, _, _ := helpers.NewOverlayRouter(services.NewMemoryOverlayStore())

	rr := helpers.Do(router, httptest.NewRequest(http.MethodGet, "/api/overlays", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())

	createOverlay(t, router, `{"type":"text","content":"default stream"}`)
	createOverlay(t, router, `{"type":"text","content":"other","stream_id":"s2"}`)

	rr = helpers.Do(router, httptest.NewRequest(http.MethodGet, "/api/overlays", nil))
	list := helpers.DecodeJSON[[]overlay.Overlay](t, rr)
	require.Len(t, list, 1)
	assert.Equal(t, "default stream", list[0].Content)

	rr = helpers.Do(router, httptest.NewRequest(http.MethodGet, "/api/overlays?stream_id=s2", nil))
	list = helpers.DecodeJSON[[]overlay.Overlay](t, rr)
	require.Len(t, list, 1)
	assert.Equal(t, "other", list[0].Content)
}

func TestGetOverlay(t *testing.T) {
	router, _, _ := helpers.NewOverlayRouter(services.NewMemoryOverlayStore())
	created := createOverlay(t, router, `{"type":"image","content":"logo.png"}`)

	rr := helpers.Do(router, httptest.NewRequest(http.MethodGet, "/api/overlays/"+created.ID, nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, created.ID, helpers.DecodeJSON[overlay.Overlay](t, rr).ID)

	rr = helpers.Do(router, httptest.NewRequest(http.MethodGet, "/api/overlays/nope", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "not_found", helpers.DecodeJSON[map[string]string](t, rr)["code"])
}

func TestUpdateOverlay(t *testing.T) {
	router, _, _ := helpers.NewOverlayRouter(services.NewMemoryOverlayStore())
	created := createOverlay(t, router, `{"type":"text","content":"hi","stream_id":"s1"}`)
	path := "/api/overlays/" + created.ID

	rr := helpers.Do(router, jsonRequest(http.MethodPut, path, `{"x":300,"y":40}`))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	updated := helpers.DecodeJSON[overlay.Overlay](t, rr)
	assert.Equal(t, 300, updated.X)
	assert.Equal(t, 40, updated.Y)
	assert.Equal(t, "hi", updated.Content)

	t.Run("same type and stream are accepted", func(t *testing.T) {
		rr := helpers.Do(router, jsonRequest(http.MethodPut, path, `{"type":"text","stream_id":"s1","content":"yo"}`))
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("changing type is refused", func(t *testing.T) {
		rr := helpers.Do(router, jsonRequest(http.MethodPut, path, `{"type":"image"}`))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "immutable_field", helpers.DecodeJSON[map[string]string](t, rr)["code"])
	})

	t.Run("moving stream is refused", func(t *testing.T) {
		rr := helpers.Do(router, jsonRequest(http.MethodPut, path, `{"stream_id":"s2"}`))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("too small is refused", func(t *testing.T) {
		rr := helpers.Do(router, jsonRequest(http.MethodPut, path, `{"width":20,"height":20}`))
		assert.Equal(t, http.StatusBadRequest, rr.Code)

		rr = helpers.Do(router, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, 200, helpers.DecodeJSON[overlay.Overlay](t, rr).Width)
	})

	t.Run("missing overlay", func(t *testing.T) {
		rr := helpers.Do(router, jsonRequest(http.MethodPut, "/api/overlays/nope", `{"x":1}`))
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestDeleteOverlay_Idempotent(t *testing.T) {
	router, _, _ := helpers.NewOverlayRouter(services.NewMemoryOverlayStore())
	created := createOverlay(t, router, `{"type":"text","content":"bye"}`)
	path := "/api/overlays/" + created.ID

	rr := helpers.Do(router, httptest.NewRequest(http.MethodDelete, path, nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = helpers.Do(router, httptest.NewRequest(http.MethodDelete, path, nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = helpers.Do(router, httptest.NewRequest(http.MethodGet, path, nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestBulkDeleteOverlays(t *testing.T) {
	router, _, _ := helpers.NewOverlayRouter(services.NewMemoryOverlayStore())
	created := createOverlay(t, router, `{"type":"text","content":"one"}`)

	rr := helpers.Do(router, jsonRequest(http.MethodPost, "/api/overlays/bulk-delete",
		`{"overlay_ids":["`+created.ID+`","fake-id"]}`))
	require.Equal(t, http.StatusOK, rr.Code)
	resp := helpers.DecodeJSON[overlay.BulkDeleteResponse](t, rr)
	assert.Equal(t, 1, resp.DeletedCount)
	assert.Equal(t, "Deleted 1 overlays", resp.Message)

	rr = helpers.Do(router, jsonRequest(http.MethodPost, "/api/overlays/bulk-delete", `{"overlay_ids":[]}`))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = helpers.Do(router, jsonRequest(http.MethodPost, "/api/overlays/bulk-delete", `{}`))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

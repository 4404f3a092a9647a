package helpers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"streamOverlayAPI/handlers"
	"streamOverlayAPI/middleware"
	"streamOverlayAPI/services"
)

// SetupTestDB connects to TEST_DATABASE_URL and skips the test when it is not set.
func SetupTestDB(t *testing.T) *pgxpool.Pool {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping Postgres test")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Fatalf("Failed to ping test database: %v", err)
	}

	return pool
}

// CleanupTestDB removes the overlays written by a test and closes the pool.
func CleanupTestDB(t *testing.T, pool *pgxpool.Pool, streamIDs ...string) {
	ctx := context.Background()
	if len(streamIDs) > 0 {
		if _, err := pool.Exec(ctx, "DELETE FROM overlays WHERE stream_id = ANY($1)", streamIDs); err != nil {
			t.Logf("Warning: failed to cleanup test data: %v", err)
		}
	}
	pool.Close()
}

// NewOverlayRouter wires the overlay routes the way main.go does, on top of
// the given store, without auth or rate limiting.
func NewOverlayRouter(store services.OverlayStore) (*mux.Router, *services.OverlayService, *services.OverlayHub) {
	hub := services.NewOverlayHub()
	svc := services.NewOverlayService(store)
	svc.SetPublisher(hub)
	h := handlers.NewOverlayHandler(svc, hub)

	r := mux.NewRouter()
	r.Handle("/api/overlays/watch", middleware.MonitorMiddleware(http.HandlerFunc(h.WatchOverlays))).Methods("GET")
	r.HandleFunc("/api/overlays", h.ListOverlays).Methods("GET")
	r.HandleFunc("/api/overlays", h.CreateOverlay).Methods("POST")
	r.HandleFunc("/api/overlays/bulk-delete", h.BulkDeleteOverlays).Methods("POST")
	r.HandleFunc("/api/overlays/{id}", h.GetOverlay).Methods("GET")
	r.HandleFunc("/api/overlays/{id}", h.UpdateOverlay).Methods("PUT")
	r.HandleFunc("/api/overlays/{id}", h.DeleteOverlay).Methods("DELETE")
	return r, svc, hub
}

// DecodeJSON unmarshals a recorded response body into T.
func DecodeJSON[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), "body: %s", rr.Body.String())
	return out
}

// Do runs req against handler and returns the recorder.
func Do(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// Package client is the browser-side half of the overlay system written as a
// Go library: an API client, an explicit stream Session with its polling
// Synchronizer, the cached View and the interactive position Editor.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"streamOverlayAPI/internal/types/overlay"
	"streamOverlayAPI/internal/types/stream"
)

// OverlayFetcher loads the authoritative overlay set of a stream.
type OverlayFetcher interface {
	ListOverlays(ctx context.Context, streamID string) ([]overlay.Overlay, error)
}

// OverlayMutator is the write side of the overlay API used by the Editor.
type OverlayMutator interface {
	CreateOverlay(ctx context.Context, req *overlay.CreateOverlayRequest) (*overlay.Overlay, error)
	UpdateOverlay(ctx context.Context, id string, fields overlay.Patch) (*overlay.Overlay, error)
	DeleteOverlay(ctx context.Context, id string) error
	BulkDeleteOverlays(ctx context.Context, ids []string) (int, error)
}

var (
	_ OverlayFetcher = (*APIClient)(nil)
	_ OverlayMutator = (*APIClient)(nil)
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
	Code    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Unwrap exposes the overlay sentinel matching the response, so callers can
// use errors.Is(err, overlay.ErrNotFound) and friends.
func (e *APIError) Unwrap() error {
	if sentinel := overlay.ErrorFromCode(e.Code); sentinel != nil {
		return sentinel
	}
	switch e.Status {
	case http.StatusNotFound:
		return overlay.ErrNotFound
	case http.StatusServiceUnavailable:
		return overlay.ErrStorageUnavailable
	}
	return nil
}

type APIClient struct {
	baseURL    string
	httpClient *http.Client
	authToken  string
}

func NewAPIClient(baseURL string, httpClient *http.Client) *APIClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &APIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// SetAuthToken sets the Clerk session token sent as a Bearer header.
func (c *APIClient) SetAuthToken(token string) {
	c.authToken = token
}

func (c *APIClient) ListOverlays(ctx context.Context, streamID string) ([]overlay.Overlay, error) {
	var overlays []overlay.Overlay
	path := "/api/overlays?stream_id=" + url.QueryEscape(streamID)
	if err := c.do(ctx, http.MethodGet, path, nil, &overlays); err != nil {
		return nil, err
	}
	if overlays == nil {
		overlays = []overlay.Overlay{}
	}
	return overlays, nil
}

func (c *APIClient) CreateOverlay(ctx context.Context, req *overlay.CreateOverlayRequest) (*overlay.Overlay, error) {
	var created overlay.Overlay
	if err := c.do(ctx, http.MethodPost, "/api/overlays", req, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *APIClient) GetOverlay(ctx context.Context, id string) (*overlay.Overlay, error) {
	var found overlay.Overlay
	if err := c.do(ctx, http.MethodGet, "/api/overlays/"+url.PathEscape(id), nil, &found); err != nil {
		return nil, err
	}
	return &found, nil
}

func (c *APIClient) UpdateOverlay(ctx context.Context, id string, fields overlay.Patch) (*overlay.Overlay, error) {
	var updated overlay.Overlay
	if err := c.do(ctx, http.MethodPut, "/api/overlays/"+url.PathEscape(id), fields, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (c *APIClient) DeleteOverlay(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/overlays/"+url.PathEscape(id), nil, nil)
}

func (c *APIClient) BulkDeleteOverlays(ctx context.Context, ids []string) (int, error) {
	var resp overlay.BulkDeleteResponse
	req := overlay.BulkDeleteRequest{OverlayIDs: ids}
	if err := c.do(ctx, http.MethodPost, "/api/overlays/bulk-delete", req, &resp); err != nil {
		return 0, err
	}
	return resp.DeletedCount, nil
}

func (c *APIClient) StartStream(ctx context.Context, rtspURL string) (*stream.StartResponse, error) {
	var resp stream.StartResponse
	if err := c.do(ctx, http.MethodPost, "/api/stream/start", stream.StartRequest{RTSPURL: rtspURL}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *APIClient) StartTestStream(ctx context.Context) (*stream.StartResponse, error) {
	var resp stream.StartResponse
	if err := c.do(ctx, http.MethodPost, "/api/stream/test", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *APIClient) StopStream(ctx context.Context, streamID string) error {
	return c.do(ctx, http.MethodPost, "/api/stream/"+url.PathEscape(streamID)+"/stop", nil, nil)
}

// WatchURL is the websocket address pushing snapshots for streamID.
func (c *APIClient) WatchURL(streamID string) string {
	base := c.baseURL
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/api/overlays/watch?stream_id=" + url.QueryEscape(streamID)
}

func (c *APIClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w: %w", method, path, overlay.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var errBody struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errBody); err == nil && errBody.Error != "" {
			apiErr.Message = errBody.Error
			apiErr.Code = errBody.Code
		}
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"plutochat/internal/wire"
)

// Client is the REST side of the room client: the one-shot snapshot fetch
// and the out-of-band photo upload. The live stream is Channel's job.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a REST client for the given API base URL. token is the
// bearer token of the authenticated user.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// FetchRoom performs the one-time room snapshot fetch. A single attempt, no
// retry: on failure the caller re-navigates. ErrRoomNotFound is distinct
// from transport errors so the caller can skip channel activation.
func (c *Client) FetchRoom(ctx context.Context, roomID string) (*wire.RoomSnapshot, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/v1/rooms/"+strings.ToLower(strings.TrimSpace(roomID)))
	if err != nil {
		return nil, fmt.Errorf("building room request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching room %s: %w", roomID, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrRoomNotFound
	default:
		return nil, fmt.Errorf("fetching room %s: unexpected status %d", roomID, resp.StatusCode)
	}

	var snapshot wire.RoomSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("decoding room snapshot: %w", err)
	}
	return &snapshot, nil
}

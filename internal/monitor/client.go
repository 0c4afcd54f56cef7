package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/fyrsmithlabs/bioadapt/internal/experiment"
)

// Client reads session snapshots from a monitor server.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 2 * time.Second,
		},
	}
}

// Session fetches the current snapshot.
func (c *Client) Session(ctx context.Context) (experiment.Snapshot, error) {
	u, err := url.JoinPath(c.baseURL, "/api/v1/session")
	if err != nil {
		return experiment.Snapshot{}, fmt.Errorf("invalid base URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return experiment.Snapshot{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return experiment.Snapshot{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return experiment.Snapshot{}, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	var snap experiment.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return experiment.Snapshot{}, fmt.Errorf("failed to decode response: %w", err)
	}
	return snap, nil
}

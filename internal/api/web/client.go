package web

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/osa030/pibox/internal/app/notification"
)

// Client calls the JSON control API of a running player.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the player at baseURL, e.g.
// "http://raspberrypi.local:5000".
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// Status returns the current player status.
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	return c.call(ctx, http.MethodGet, "/api/status", nil)
}

// Action runs a transport action ("next", "previous", "pause", "restart").
func (c *Client) Action(ctx context.Context, action string) (*StatusResponse, error) {
	return c.call(ctx, http.MethodPost, "/api/"+action, nil)
}

// SetVolume sets the player volume.
func (c *Client) SetVolume(ctx context.Context, level int) (*StatusResponse, error) {
	body, err := json.Marshal(VolumeRequest{Volume: &level})
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode request")
	}
	return c.call(ctx, http.MethodPost, "/api/volume", body)
}

// Watch streams playback notifications until ctx is done or the server
// closes the stream.
func (c *Client) Watch(ctx context.Context, fn func(notification.Notification)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/events", nil)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to open event stream")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Newf("event stream: unexpected status %s", resp.Status)
	}

	var event string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: ") && event != "status":
			var n notification.Notification
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &n); err != nil {
				return errors.Wrapf(err, "failed to decode event %s", event)
			}
			fn(n)
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return errors.Wrap(err, "event stream failed")
	}
	return nil
}

func (c *Client) call(ctx context.Context, method, path string, body []byte) (*StatusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&e); err != nil || e.Error == "" {
			e.Error = resp.Status
		}
		return nil, errors.Newf("%s %s: %s (%d)", method, path, e.Error, resp.StatusCode)
	}

	var status StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, errors.Wrap(err, "failed to decode response")
	}
	return &status, nil
}

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	gws "github.com/gorilla/websocket"

	"github.com/portsidehq/portside/internal/compose"
	"github.com/portsidehq/portside/internal/store"
)

// Client talks to a running portsided instance.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient normalizes the server address into a base URL.
func NewClient(server string) (*Client, error) {
	server = strings.TrimRight(strings.TrimSpace(server), "/")
	if server == "" {
		return nil, fmt.Errorf("server address is empty")
	}
	if !strings.Contains(server, "://") {
		server = "http://" + server
	}
	u, err := url.Parse(server)
	if err != nil {
		return nil, fmt.Errorf("parse server address %q: %w", server, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	return &Client{
		baseURL: u.String(),
		http:    &http.Client{Timeout: 30 * time.Second},
	}, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("server returned %s with unreadable body", resp.Status)
	}
	if !env.Success {
		if env.Message != "" {
			return fmt.Errorf("%s (%s)", env.Message, resp.Status)
		}
		return fmt.Errorf("request failed with %s", resp.Status)
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode response data: %w", err)
		}
	}
	return nil
}

// Info resolves a container reference to the attempt it belongs to.
func (c *Client) Info(ctx context.Context, ref string) (store.ContainerInfo, error) {
	var info store.ContainerInfo
	path := "/api/containers/info?ref=" + url.QueryEscape(ref)
	if err := c.getJSON(ctx, path, &info); err != nil {
		return store.ContainerInfo{}, err
	}
	return info, nil
}

// Services lists the compose services behind an attempt.
func (c *Client) Services(ctx context.Context, attemptID string) ([]compose.ServiceRecord, error) {
	var services []compose.ServiceRecord
	path := "/api/containers/" + url.PathEscape(attemptID) + "/services"
	if err := c.getJSON(ctx, path, &services); err != nil {
		return nil, err
	}
	return services, nil
}

// DialLogs opens the log-follow websocket for a container.
func (c *Client) DialLogs(ctx context.Context, container string) (*gws.Conn, error) {
	return c.dialWS(ctx, "/api/containers/"+url.PathEscape(container)+"/logs/ws")
}

// DialShell opens the interactive shell websocket for a container.
func (c *Client) DialShell(ctx context.Context, container string) (*gws.Conn, error) {
	return c.dialWS(ctx, "/api/containers/"+url.PathEscape(container)+"/shell/ws")
}

func (c *Client) dialWS(ctx context.Context, path string) (*gws.Conn, error) {
	wsURL := c.baseURL + path
	switch {
	case strings.HasPrefix(wsURL, "https://"):
		wsURL = "wss://" + strings.TrimPrefix(wsURL, "https://")
	case strings.HasPrefix(wsURL, "http://"):
		wsURL = "ws://" + strings.TrimPrefix(wsURL, "http://")
	}
	conn, resp, err := gws.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			var env envelope
			if decodeErr := json.NewDecoder(resp.Body).Decode(&env); decodeErr == nil && env.Message != "" {
				return nil, fmt.Errorf("%s (%s)", env.Message, resp.Status)
			}
			return nil, fmt.Errorf("dial %s: %s", path, resp.Status)
		}
		return nil, fmt.Errorf("dial %s: %w", path, err)
	}
	return conn, nil
}

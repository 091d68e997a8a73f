// Package router delivers action side effects (chat messages, module calls)
// to the platform router service.
package router

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

	"github.com/penguintechinc/waddlebot-sub014/pkg/protocol"
)

// DefaultTimeout bounds one call to the router.
const DefaultTimeout = 10 * time.Second

const maxBodyBytes = 1 << 20

var ErrRouterUnavailable = errors.New("router unavailable")

// Client implements protocol.Messenger and protocol.ModuleCaller over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

var (
	_ protocol.Messenger    = (*Client)(nil)
	_ protocol.ModuleCaller = (*Client)(nil)
)

// NewClient creates a router client. httpClient may be nil.
func NewClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

// SendMessage posts to /messages.
func (c *Client) SendMessage(ctx context.Context, req protocol.MessageRequest) (map[string]any, error) {
	return c.post(ctx, "/messages", req)
}

// CallModule posts to /modules/{module}/actions.
func (c *Client) CallModule(ctx context.Context, req protocol.ModuleRequest) (map[string]any, error) {
	return c.post(ctx, "/modules/"+url.PathEscape(req.Module)+"/actions", req)
}

func (c *Client) post(ctx context.Context, path string, payload any) (map[string]any, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal router request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRouterUnavailable, err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRouterUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrRouterUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("router %s returned status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	result := map[string]any{"status_code": resp.StatusCode}

	if len(bytes.TrimSpace(data)) == 0 {
		return result, nil
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		result["body"] = string(data)

		return result, nil
	}

	for k, v := range decoded {
		result[k] = v
	}

	return result, nil
}

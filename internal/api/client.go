// Package api is the REST client for the diff testing server: auth, session
// CRUD, diff job control, and AI helpers. Streaming surfaces live in the sse
// package; this one is strictly request/response.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"sync"
	"time"
)

const defaultTimeout = 30 * time.Second

// Error is a failed API call. Message is the server's explanation when one
// was provided.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: HTTP %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api: HTTP %d", e.Status)
}

// errorBody matches the server's error envelope, which nests the message
// either at the top level or under "error".
type errorBody struct {
	Message string `json:"message"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Client is a thread-safe API client bound to one server and one credential.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	mu             sync.Mutex
	token          string
	onUnauthorized func()
}

// NewClient creates a client for the given API root, e.g. "https://host/api".
func NewClient(baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger,
	}
}

// BaseURL returns the API root the client is bound to.
func (c *Client) BaseURL() string { return c.baseURL }

// SetToken installs the bearer credential used for subsequent requests.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the current bearer credential, empty when logged out.
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// SetUnauthorizedHandler registers the hook run on forced logout.
func (c *Client) SetUnauthorizedHandler(fn func()) {
	c.mu.Lock()
	c.onUnauthorized = fn
	c.mu.Unlock()
}

// ForceLogout clears the credential and runs the unauthorized hook. Called
// internally on any 401 response and by stream consumers on rejected
// connections.
func (c *Client) ForceLogout() {
	c.mu.Lock()
	hadToken := c.token != ""
	c.token = ""
	fn := c.onUnauthorized
	c.mu.Unlock()

	if hadToken {
		c.logger.Warn("credential rejected, logging out")
	}
	if fn != nil {
		fn()
	}
}

// endpoint joins path segments onto the API root.
func (c *Client) endpoint(segments ...string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	u.Path = path.Join(append([]string{u.Path}, segments...)...)
	return u.String(), nil
}

// do performs one JSON request. body and out may be nil.
func (c *Client) do(ctx context.Context, method, rawURL string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

// send executes a prepared request, attaching the credential and mapping
// error responses. A 401 forces a logout before returning.
func (c *Client) send(req *http.Request, out any) error {
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		if resp.StatusCode == http.StatusUnauthorized {
			c.ForceLogout()
		}
		return &Error{Status: resp.StatusCode, Message: errorMessage(data)}
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

func errorMessage(data []byte) string {
	var eb errorBody
	if err := json.Unmarshal(data, &eb); err != nil {
		return ""
	}
	if eb.Message != "" {
		return eb.Message
	}
	if eb.Error != nil {
		return eb.Error.Message
	}
	return ""
}

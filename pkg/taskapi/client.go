// Package taskapi is the HTTP client for the concierge task endpoints.
package taskapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"concierge/pkg/protocol"
)

// DefaultTimeout bounds every request.
const DefaultTimeout = 10 * time.Second

// maxErrorBody caps how much of a failed response is kept for the error.
const maxErrorBody = 512

// StatusError is returned when the service answers with a non-2xx status.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.Code)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.Code, e.Body)
}

// Client talks to {origin}/api/tasks. It satisfies tasks.Source.
type Client struct {
	origin string
	client *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// New creates a Client for origin, e.g. "http://localhost:8000".
func New(origin string, opts ...Option) (*Client, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("parse origin %q: %w", origin, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("origin %q: want http(s)://host", origin)
	}
	c := &Client{
		origin: u.Scheme + "://" + u.Host,
		client: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// List fetches the full task collection. A successful response whose body is
// not a JSON array yields an empty collection.
func (c *Client) List(ctx context.Context) ([]protocol.Task, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.origin+protocol.TasksPath, nil)
	if err != nil {
		return nil, fmt.Errorf("create list request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(req, resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read task list: %w", err)
	}
	var raw json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode task list: %w", err)
	}
	// Valid JSON that is not an array means no tasks.
	if !bytes.HasPrefix(bytes.TrimSpace(raw), []byte("[")) {
		return []protocol.Task{}, nil
	}
	list := []protocol.Task{}
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("decode task list: %w", err)
	}
	return list, nil
}

type updateRequest struct {
	State protocol.TaskState `json:"state"`
}

// UpdateState persists a task's new state.
func (c *Client) UpdateState(ctx context.Context, id string, state protocol.TaskState) error {
	body, err := json.Marshal(updateRequest{State: state})
	if err != nil {
		return fmt.Errorf("marshal update: %w", err)
	}

	target := c.origin + protocol.TasksPath + "/" + url.PathEscape(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create update request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("update task %s: %w", id, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(req, resp); err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func checkStatus(req *http.Request, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{
		Method: req.Method,
		URL:    req.URL.Path,
		Code:   resp.StatusCode,
		Body:   strings.TrimSpace(string(snippet)),
	}
}

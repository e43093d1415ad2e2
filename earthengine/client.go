package earthengine

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
)

// HTTPError is returned for non-2xx answers.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("earth engine HTTP %d: %s", e.StatusCode, e.Body)
}

// Client talks to the /earth-engine endpoints of the backend API.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithToken sends "Authorization: Bearer <token>" on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithTimeout bounds each request; zero keeps requests unbounded.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.client = &http.Client{Timeout: d}
		}
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Status checks the backend connection. A 503 carrying a status body is a
// valid answer, not an error.
func (c *Client) Status(ctx context.Context) (ConnectionStatus, error) {
	var st ConnectionStatus
	resp, err := c.send(ctx, http.MethodGet, "/earth-engine/status", nil)
	if err != nil {
		return st, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return st, fmt.Errorf("read status response: %w", err)
	}
	decodeErr := json.Unmarshal(body, &st)
	if decodeErr == nil && st.Status != "" {
		return st, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ConnectionStatus{}, &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if decodeErr != nil {
		return ConnectionStatus{}, fmt.Errorf("decode status response: %w", decodeErr)
	}
	return ConnectionStatus{}, fmt.Errorf("status response without status field")
}

func (c *Client) Datasets(ctx context.Context) ([]Dataset, error) {
	var out datasetsResponse
	if err := c.do(ctx, http.MethodGet, "/earth-engine/datasets", nil, &out); err != nil {
		return nil, err
	}
	return out.Datasets, nil
}

func (c *Client) ProcessRegion(ctx context.Context, req ProcessRegionRequest) (TaskInfo, error) {
	var info TaskInfo
	err := c.do(ctx, http.MethodPost, "/earth-engine/process-region", req, &info)
	return info, err
}

func (c *Client) ProcessCells(ctx context.Context, req ProcessCellsRequest) (TaskInfo, error) {
	var info TaskInfo
	err := c.do(ctx, http.MethodPost, "/earth-engine/process-cells", req, &info)
	return info, err
}

// ProcessCell runs the synchronous single-cell pipeline.
func (c *Client) ProcessCell(ctx context.Context, cellID string) (CellResult, error) {
	var out CellResult
	err := c.do(ctx, http.MethodGet, "/earth-engine/process-cell/"+url.PathEscape(cellID), nil, &out)
	return out, err
}

func (c *Client) Task(ctx context.Context, id TaskID) (TaskResponse, error) {
	var out TaskResponse
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/earth-engine/task/%d", id), nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	resp, err := c.send(ctx, method, path, in)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bb, _ := io.ReadAll(resp.Body)
		return &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(bb))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, in interface{}) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		j, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("marshal %s request: %w", path, err)
		}
		body = bytes.NewReader(j)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", path, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

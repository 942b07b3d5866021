// Implements the HTTP collection client.

package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/maruel/datagrid/internal/grid"
	"golang.org/x/time/rate"
)

const (
	// DefaultPath is the collection path appended to the base URL.
	DefaultPath = "/items"
	// DefaultTimeout is the per-request timeout of the default http.Client.
	DefaultTimeout = 30 * time.Second
	// maxErrorBody bounds how much of an error payload is kept.
	maxErrorBody = 64 << 10
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithPath overrides the collection path, e.g. "/posts".
func WithPath(p string) Option {
	return func(c *Client) {
		c.path = p
	}
}

// WithHeader adds a header sent with every request.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers.Add(key, value)
	}
}

// WithRateLimit throttles outbound requests to rps requests per second.
// A non-positive rps disables throttling.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
	}
}

// Client talks to a REST collection over HTTP.
type Client struct {
	baseURL    *url.URL
	path       string
	httpClient *http.Client
	headers    http.Header
	limiter    *rate.Limiter
}

var _ Collection = (*Client)(nil)

// NewClient creates a Client for the provided base URL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("base URL is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", baseURL)
	}
	c := &Client{
		baseURL:    parsed,
		path:       DefaultPath,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		headers:    make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.path = "/" + strings.Trim(c.path, "/")
	return c, nil
}

// FetchAll implements Collection.
func (c *Client) FetchAll(ctx context.Context) ([]*grid.Record, error) {
	data, err := c.do(ctx, OpFetch, http.MethodGet, c.itemsURL(""), nil)
	if err != nil {
		return nil, err
	}
	var records []*grid.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, &NetworkError{Op: OpFetch, Err: fmt.Errorf("failed to parse items: %w", err)}
	}
	for i, r := range records {
		if r == nil {
			return nil, &NetworkError{Op: OpFetch, Err: fmt.Errorf("item %d is null", i)}
		}
	}
	return records, nil
}

// Create implements Collection.
func (c *Client) Create(ctx context.Context, fields grid.Fields) (*grid.Record, error) {
	body := fields.Clone()
	delete(body, "id")
	data, err := c.do(ctx, OpCreate, http.MethodPost, c.itemsURL(""), body)
	if err != nil {
		return nil, err
	}
	var r grid.Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, &NetworkError{Op: OpCreate, Err: fmt.Errorf("failed to parse created item: %w", err)}
	}
	return &r, nil
}

// Update implements Collection.
func (c *Client) Update(ctx context.Context, id int64, fields grid.Fields) (*grid.Record, error) {
	body := &grid.Record{ID: id, Fields: fields}
	data, err := c.do(ctx, OpUpdate, http.MethodPut, c.itemsURL(strconv.FormatInt(id, 10)), body)
	if err != nil {
		return nil, err
	}
	r := &grid.Record{}
	if len(bytes.TrimSpace(data)) == 0 {
		return body.Clone(), nil
	}
	if err := json.Unmarshal(data, r); err != nil {
		return nil, &NetworkError{Op: OpUpdate, Err: fmt.Errorf("failed to parse updated item: %w", err)}
	}
	return r, nil
}

// Delete implements Collection.
func (c *Client) Delete(ctx context.Context, id int64) (int64, error) {
	if _, err := c.do(ctx, OpDelete, http.MethodDelete, c.itemsURL(strconv.FormatInt(id, 10)), nil); err != nil {
		return 0, err
	}
	return id, nil
}

func (c *Client) itemsURL(id string) string {
	ref := &url.URL{Path: strings.TrimRight(c.baseURL.Path, "/") + c.path}
	if id != "" {
		ref.Path += "/" + url.PathEscape(id)
	}
	return c.baseURL.ResolveReference(ref).String()
}

// do performs a single request and returns the response body.
func (c *Client) do(ctx context.Context, op Op, method, target string, body any) ([]byte, error) {
	fail := func(status int, err error) *NetworkError {
		return &NetworkError{Op: op, Method: method, URL: target, StatusCode: status, Err: err}
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fail(0, err)
		}
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fail(0, fmt.Errorf("failed to marshal request body: %w", err))
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return nil, fail(0, fmt.Errorf("failed to create request: %w", err))
	}
	for k, values := range c.headers {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.DebugContext(ctx, "Remote request failed", "op", op, "method", method, "url", target, "err", err)
		return nil, fail(0, err)
	}
	defer func() { _ = resp.Body.Close() }()
	slog.DebugContext(ctx, "Remote request", "op", op, "method", method, "url", target, "status", resp.StatusCode, "dur", time.Since(start).Round(time.Millisecond))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		ne := fail(resp.StatusCode, nil)
		ne.Body = respBody
		ne.Message = decodeErrorMessage(respBody)
		return nil, ne
	}
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fail(resp.StatusCode, fmt.Errorf("failed to read response: %w", err))
	}
	return respBody, nil
}

// decodeErrorMessage extracts a message from {"error":{"message":...}},
// {"error":"..."} or {"message":...} payloads.
func decodeErrorMessage(body []byte) string {
	var payload struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if len(payload.Error) > 0 {
		var details struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(payload.Error, &details); err == nil && details.Message != "" {
			return details.Message
		}
		var s string
		if err := json.Unmarshal(payload.Error, &s); err == nil && s != "" {
			return s
		}
	}
	return payload.Message
}

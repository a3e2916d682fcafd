// Package api provides a JSON REST client for the sandbox API used by the API suites.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tripqa/tripqa/pkg/wait"
)

// DefaultBaseURL is the public JSONPlaceholder sandbox.
const DefaultBaseURL = "https://jsonplaceholder.typicode.com"

// Response holds a decoded API response. Data is the raw JSON body, empty for 204.
type Response struct {
	Status  int
	Data    json.RawMessage
	Headers http.Header
}

// Decode unmarshals the response body into v.
func (r *Response) Decode(v any) error {
	if len(r.Data) == 0 {
		return errors.New("empty response body")
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Client sends JSON requests to a base URL.
// transport errors are retried; any HTTP status is returned to the caller as is.
type Client struct {
	baseURL string
	http    *http.Client
	retry   wait.RetryConfig
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying http client.
func WithHTTPClient(c *http.Client) Option { return func(cl *Client) { cl.http = c } }

// WithRetry sets the retry policy for transport errors.
func WithRetry(rc wait.RetryConfig) Option { return func(cl *Client) { cl.retry = rc } }

// New makes a client for baseURL, DefaultBaseURL if empty.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		retry:   wait.RetryConfig{Count: 2, Delay: 500 * time.Millisecond},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BaseURL returns the base URL requests are sent to.
func (c *Client) BaseURL() string { return c.baseURL }

// Get sends GET endpoint.
func (c *Client) Get(ctx context.Context, endpoint string) (*Response, error) {
	return c.Do(ctx, http.MethodGet, endpoint, nil)
}

// Post sends body as JSON with POST.
func (c *Client) Post(ctx context.Context, endpoint string, body any) (*Response, error) {
	return c.Do(ctx, http.MethodPost, endpoint, body)
}

// Put sends body as JSON with PUT.
func (c *Client) Put(ctx context.Context, endpoint string, body any) (*Response, error) {
	return c.Do(ctx, http.MethodPut, endpoint, body)
}

// Patch sends body as JSON with PATCH.
func (c *Client) Patch(ctx context.Context, endpoint string, body any) (*Response, error) {
	return c.Do(ctx, http.MethodPatch, endpoint, body)
}

// Delete sends DELETE endpoint.
func (c *Client) Delete(ctx context.Context, endpoint string) (*Response, error) {
	return c.Do(ctx, http.MethodDelete, endpoint, nil)
}

// Do sends a request with an optional JSON body and reads the whole response.
func (c *Client) Do(ctx context.Context, method, endpoint string, body any) (*Response, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("encode %s %s body: %w", method, endpoint, err)
		}
	}

	var resp *Response
	err := wait.Retry(ctx, func(ctx context.Context) error {
		r, err := c.send(ctx, method, endpoint, payload)
		if err != nil {
			return err
		}
		resp = r
		return nil
	}, c.retry)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	return resp, nil
}

func (c *Client) send(ctx context.Context, method, endpoint string, payload []byte) (*Response, error) {
	var rdr io.Reader
	if payload != nil {
		rdr = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, rdr)
	if err != nil {
		return nil, fmt.Errorf("make request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}

	hr, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer hr.Body.Close()

	data, err := io.ReadAll(hr.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	res := &Response{Status: hr.StatusCode, Headers: hr.Header}
	if hr.StatusCode != http.StatusNoContent && len(bytes.TrimSpace(data)) > 0 {
		res.Data = data
	}
	return res, nil
}

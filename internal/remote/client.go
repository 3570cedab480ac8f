// Package remote maps records onto a REST resource.
//
// The protocol is the json-server one:
//
//	GET  {root}       list of records
//	GET  {root}/{id}  one record
//	POST {root}       create; the response carries the assigned id
//	PUT  {root}/{id}  replace an existing record
//
// All calls block until the response is decoded and honour ctx. The
// asynchronous "pending operation" is built on top of this by the model
// package.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/roach88/web2/internal/metrics"
)

// maxErrorBody bounds how much of an error response is kept on Error.Body.
const maxErrorBody = 4 << 10

// DefaultTimeout applies when no *http.Client is supplied.
const DefaultTimeout = 10 * time.Second

// Payload is a decoded JSON object as returned by the backend. Numbers are
// json.Number so large identifiers survive the round trip.
type Payload map[string]any

// Client issues JSON requests. It is safe for concurrent use.
type Client struct {
	http   *http.Client
	ids    RequestIDGenerator
	logger *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// WithRequestIDs sets the correlation id generator.
func WithRequestIDs(g RequestIDGenerator) ClientOption {
	return func(c *Client) {
		c.ids = g
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a Client. Defaults: an *http.Client with
// DefaultTimeout, UUIDv7 request ids, slog.Default().
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		http:   &http.Client{Timeout: DefaultTimeout},
		ids:    UUIDv7Generator{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do sends body (JSON-encoded, may be nil) with method to url and decodes
// the response into out (may be nil).
func (c *Client) Do(ctx context.Context, method, url string, body, out any) error {
	reqID := c.ids.Generate()
	fail := func(code ErrorCode, err error) *Error {
		return &Error{Code: code, Method: method, URL: url, RequestID: reqID, Err: err}
	}

	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fail(ErrCodeEncode, err)
		}
		rd = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return fail(ErrCodeTransport, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, reqID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.SyncDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SyncRequests.WithLabelValues(method, "0").Inc()
		c.logger.Debug("request failed", "method", method, "url", url, "request_id", reqID, "error", err)
		return fail(ErrCodeTransport, err)
	}
	defer resp.Body.Close()

	metrics.SyncRequests.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()
	c.logger.Debug("request done", "method", method, "url", url, "status", resp.StatusCode, "request_id", reqID)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		e := fail(ErrCodeStatus, nil)
		e.Status = resp.StatusCode
		e.Body = string(snippet)
		return e
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		if err == io.EOF {
			return nil
		}
		return fail(ErrCodeDecode, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

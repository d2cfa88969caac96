// Package httpclient is the uniform way Go callers talk to the linkshelf
// API: one configured client, a timeout per call, JSON in and out, and a
// single place where failures are reported.
package httpclient

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
	"sync"
	"time"

	"github.com/mikepea/linkshelf/pkg/linkshelf/errx"
)

// DefaultTimeout applies when neither Config nor Options set one.
const DefaultTimeout = 60 * time.Second

// Notifier is told about every failed request before the error is returned.
type Notifier interface {
	Notify(message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(message string)

func (f NotifierFunc) Notify(message string) { f(message) }

// Config is built once and shared by every call made through a Client.
type Config struct {
	BaseURL  string
	Headers  map[string]string
	Timeout  time.Duration
	Notifier Notifier

	// HTTPClient overrides the underlying client. Its Timeout is ignored in
	// favour of the per-call deadline.
	HTTPClient *http.Client
}

// Options override the Config for one call. Headers are merged.
type Options struct {
	Timeout time.Duration
	Headers map[string]string
}

// Request describes one call. Payload goes to the query string for GET and
// DELETE and to a JSON body for POST and PUT.
type Request struct {
	Path    string
	Payload any
	Options Options
}

// StatusError is returned, wrapped as errx.Transport, for non-2xx answers.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error! status: %d", e.Status)
}

// Client performs requests against one API. It is safe for concurrent use.
type Client struct {
	base     *url.URL
	mu       sync.RWMutex
	headers  map[string]string
	timeout  time.Duration
	notifier Notifier
	http     *http.Client
}

// New creates a Client from cfg.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, errx.Errorf("httpclient.New", errx.Invalid, "invalid base URL %q", cfg.BaseURL)
	}

	headers := map[string]string{"Content-Type": "application/json"}
	for k, v := range cfg.Headers {
		headers[k] = v
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()}
	}

	return &Client{
		base:     base,
		headers:  headers,
		timeout:  timeout,
		notifier: cfg.Notifier,
		http:     hc,
	}, nil
}

// SetHeader changes a default header for subsequent calls.
func (c *Client) SetHeader(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.headers[key] = value
}

// Close releases idle connections.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

// Get issues a GET and decodes the JSON answer into out (which may be nil).
func (c *Client) Get(ctx context.Context, req Request, out any) error {
	return c.do(ctx, http.MethodGet, req, out)
}

// Post issues a POST with the payload as JSON body.
func (c *Client) Post(ctx context.Context, req Request, out any) error {
	return c.do(ctx, http.MethodPost, req, out)
}

// Put issues a PUT with the payload as JSON body.
func (c *Client) Put(ctx context.Context, req Request, out any) error {
	return c.do(ctx, http.MethodPut, req, out)
}

// Delete issues a DELETE with the payload in the query string.
func (c *Client) Delete(ctx context.Context, req Request, out any) error {
	return c.do(ctx, http.MethodDelete, req, out)
}

func (c *Client) do(ctx context.Context, method string, req Request, out any) error {
	op := "httpclient." + method
	err := c.roundTrip(ctx, op, method, req, out)
	if err != nil && c.notifier != nil {
		c.notifier.Notify(errx.Message(err))
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, op, method string, req Request, out any) error {
	timeout := c.timeout
	if req.Options.Timeout > 0 {
		timeout = req.Options.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	target := c.base.JoinPath(req.Path)
	if q := strings.IndexByte(req.Path, '?'); q >= 0 {
		target = c.base.JoinPath(req.Path[:q])
		target.RawQuery = req.Path[q+1:]
	}

	var body io.Reader
	if req.Payload != nil {
		switch method {
		case http.MethodGet, http.MethodDelete:
			values, err := EncodeQuery(req.Payload)
			if err != nil {
				return errx.E(op, errx.Invalid, err)
			}
			merged := target.Query()
			for k, vs := range values {
				for _, v := range vs {
					merged.Add(k, v)
				}
			}
			target.RawQuery = merged.Encode()
		default:
			data, err := json.Marshal(req.Payload)
			if err != nil {
				return errx.E(op, errx.Invalid, fmt.Errorf("encode payload: %w", err))
			}
			body = bytes.NewReader(data)
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return errx.E(op, errx.Invalid, err)
	}
	c.mu.RLock()
	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}
	c.mu.RUnlock()
	for k, v := range req.Options.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return classify(ctx, op, err)
	}
	defer resp.Body.Close()

	// The whole body is read under the deadline before anything is decoded.
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return classify(ctx, op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errx.E(op, errx.Transport, &StatusError{Status: resp.StatusCode, Message: serverMessage(resp.StatusCode, data)})
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errx.E(op, errx.Transport, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func classify(ctx context.Context, op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errx.Errorf(op, errx.Timeout, "Request timed out")
	}
	return errx.E(op, errx.Transport, err)
}

func serverMessage(status int, body []byte) string {
	var envelope struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil {
		if envelope.Message != "" {
			return envelope.Message
		}
		if envelope.Error != "" {
			return envelope.Error
		}
	}
	return http.StatusText(status)
}

// ServerMessage returns the message the server sent with a failed answer,
// or "" when err is not a status error.
func ServerMessage(err error) string {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Message
	}
	return ""
}

// StatusCode returns the HTTP status of a failed answer, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}

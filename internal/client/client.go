package client

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
)

const maxErrorBody = 4 * 1024

// RequestError is returned for transport failures and non-2xx responses
type RequestError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
	Err        error
}

// Error renders the toast text: [SESSIONS:500] : boom
func (e *RequestError) Error() string {
	if e == nil {
		return ""
	}
	tag := strings.ToUpper(strings.ReplaceAll(e.Path, "/", ""))
	if e.StatusCode > 0 {
		tag = fmt.Sprintf("%s:%d", tag, e.StatusCode)
	}
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		return "[" + tag + "]"
	}
	return fmt.Sprintf("[%s] : %s", tag, msg)
}

func (e *RequestError) Unwrap() error { return e.Err }

// IsNotFound reports a 404 from the API
func IsNotFound(err error) bool {
	var reqErr *RequestError
	return errors.As(err, &reqErr) && reqErr.StatusCode == http.StatusNotFound
}

// ErrorHandler receives every failure of calls that did not opt out of handling
type ErrorHandler func(err *RequestError)

// Client talks to the BrowserKube REST API
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	onError ErrorHandler

	createTimeout time.Duration
	deleteTimeout time.Duration
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient swaps the underlying HTTP client (tests pass httptest's)
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithErrorHandler installs the shared error handler
func WithErrorHandler(h ErrorHandler) Option {
	return func(c *Client) { c.onError = h }
}

// WithSessionTimeouts sets the timeouts of the WebDriver create and delete calls
func WithSessionTimeouts(create, del time.Duration) Option {
	return func(c *Client) {
		c.createTimeout = create
		c.deleteTimeout = del
	}
}

// New creates a client rooted at baseURL with a default per-request timeout
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		timeout: timeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root without a trailing slash
func (c *Client) BaseURL() string {
	return c.baseURL
}

type requestOptions struct {
	timeout      time.Duration
	query        url.Values
	skipHandling bool
}

// RequestOption tunes a single call
type RequestOption func(*requestOptions)

// WithTimeout overrides the default timeout for one call
func WithTimeout(d time.Duration) RequestOption {
	return func(o *requestOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithQuery adds query parameters
func WithQuery(q url.Values) RequestOption {
	return func(o *requestOptions) { o.query = q }
}

// WithoutErrorHandling keeps failures away from the shared handler; the caller still gets the error
func WithoutErrorHandling() RequestOption {
	return func(o *requestOptions) { o.skipHandling = true }
}

// Get issues a GET and decodes the response into out
func (c *Client) Get(ctx context.Context, path string, out any, opts ...RequestOption) error {
	return c.do(ctx, http.MethodGet, path, nil, out, opts)
}

// Post issues a POST with a JSON body
func (c *Client) Post(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	return c.do(ctx, http.MethodPost, path, body, out, opts)
}

// Put issues a PUT with a JSON body
func (c *Client) Put(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	return c.do(ctx, http.MethodPut, path, body, out, opts)
}

// Delete issues a DELETE
func (c *Client) Delete(ctx context.Context, path string, out any, opts ...RequestOption) error {
	return c.do(ctx, http.MethodDelete, path, nil, out, opts)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, opts []RequestOption) error {
	ro := requestOptions{timeout: c.timeout}
	for _, opt := range opts {
		opt(&ro)
	}

	err := c.roundTrip(ctx, method, path, body, out, ro)
	if err == nil {
		return nil
	}
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		reqErr = &RequestError{Method: method, Path: path, Err: err}
		err = reqErr
	}
	if !ro.skipHandling && c.onError != nil {
		c.onError(reqErr)
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body, out any, ro requestOptions) error {
	if ro.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ro.timeout)
		defer cancel()
	}

	target := c.baseURL + path
	if len(ro.query) > 0 {
		target += "?" + ro.query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &RequestError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &RequestError{Method: method, Path: path, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RequestError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp.StatusCode, raw),
		}
	}
	return decode(raw, out)
}

func decode(raw []byte, out any) error {
	switch dst := out.(type) {
	case nil:
		return nil
	case *[]byte:
		*dst = raw
		return nil
	case *string:
		*dst = string(raw)
		return nil
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func errorMessage(status int, raw []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   any    `json:"error"`
		Value   struct {
			Message string `json:"message"`
		} `json:"value"`
	}
	if json.Unmarshal(raw, &payload) == nil {
		switch {
		case payload.Message != "":
			return payload.Message
		case payload.Value.Message != "":
			return payload.Value.Message
		case payload.Error != nil:
			if s, ok := payload.Error.(string); ok && s != "" {
				return s
			}
		}
	}
	if len(raw) > maxErrorBody {
		raw = raw[:maxErrorBody]
	}
	if text := strings.TrimSpace(string(raw)); text != "" {
		return text
	}
	return http.StatusText(status)
}

// WebSocketURL derives ws:// or wss:// for a path under the API root
func WebSocketURL(baseURL, path string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = ""
	return u.String(), nil
}

// Package apiclient is the HTTP core shared by the provider clients (RunPod,
// Beam and the speech endpoint). Requests carry an optional bearer token and
// are retried with exponential backoff on transport errors, 5xx and 429 replies.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Status classes of a failed reply. A *StatusError unwraps to one of them.
var (
	ErrServerError   = errors.New("server error")
	ErrRateLimited   = errors.New("rate limited")
	ErrRequestFailed = errors.New("request failed")
)

// StatusError is a non-2xx reply.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
}

func (e *StatusError) Unwrap() error {
	switch {
	case e.StatusCode >= http.StatusInternalServerError:
		return ErrServerError
	case e.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return ErrRequestFailed
	}
}

// Temporary reports whether the request may succeed when retried.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

// Response is a successful reply.
type Response struct {
	Body        []byte
	ContentType string
}

// Client sends requests to one provider API.
type Client struct {
	name        string
	token       string
	httpClient  *http.Client
	maxRetries  int
	baseBackoff time.Duration
	message     func(body []byte) string
}

// Option configures a Client.
type Option func(*Client)

// WithToken sets the bearer token sent with authenticated requests.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-attempt timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient = &http.Client{Timeout: d}
	}
}

// WithMaxRetries sets the number of retries after the first attempt.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithBaseBackoff sets the delay before the first retry. It doubles on
// every further retry.
func WithBaseBackoff(d time.Duration) Option {
	return func(c *Client) {
		c.baseBackoff = d
	}
}

// WithErrorMessage sets how the message of a StatusError is read from the
// reply body. By default the raw body is used.
func WithErrorMessage(fn func(body []byte) string) Option {
	return func(c *Client) {
		c.message = fn
	}
}

// New creates a Client. name prefixes every error, e.g. "runpod".
func New(name string, opts ...Option) *Client {
	c := &Client{
		name:        name,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		maxRetries:  3,
		baseBackoff: time.Second,
		message:     func(body []byte) string { return string(body) },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns the configured bearer token.
func (c *Client) Token() string { return c.token }

// MaxRetries returns the configured retry count.
func (c *Client) MaxRetries() int { return c.maxRetries }

// JSON sends in (when non-nil) as a JSON body and decodes the reply into out
// (when non-nil).
func (c *Client) JSON(ctx context.Context, method, url string, in, out any) error {
	var body []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", c.name, err)
		}
		body = b
	}

	resp, err := c.Do(ctx, method, url, body)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("%s: unmarshal response: %w", c.name, err)
	}
	return nil
}

// Do sends an authenticated request with a JSON body.
func (c *Client) Do(ctx context.Context, method, url string, body []byte) (Response, error) {
	return c.retry(ctx, func() (Response, error) {
		return c.attempt(ctx, method, url, body, true)
	})
}

// Download fetches url without credentials. Output URLs are usually presigned.
func (c *Client) Download(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.retry(ctx, func() (Response, error) {
		return c.attempt(ctx, http.MethodGet, url, nil, false)
	})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) retry(ctx context.Context, fn func() (Response, error)) (Response, error) {
	var lastErr error
	backoff := c.baseBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return Response{}, fmt.Errorf("%s: context cancelled: %w", c.name, ctx.Err())
			case <-time.After(backoff):
				backoff *= 2
			}
		}

		resp, err := fn()
		if err == nil {
			return resp, nil
		}
		if !retryable(err) {
			return Response{}, err
		}
		lastErr = err
	}

	return Response{}, fmt.Errorf("%s: max retries exceeded: %w", c.name, lastErr)
}

func (c *Client) attempt(ctx context.Context, method, url string, body []byte, auth bool) (Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return Response{}, fmt.Errorf("%s: create request: %w", c.name, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth && c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Response{}, fmt.Errorf("%s: %w", c.name, ctx.Err())
		}
		return Response{}, &retryableError{err: fmt.Errorf("%s: request failed: %w", c.name, err)}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, &retryableError{err: fmt.Errorf("%s: read response: %w", c.name, err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &StatusError{StatusCode: resp.StatusCode, Message: c.message(respBody)}
		if statusErr.Temporary() {
			return Response{}, &retryableError{err: fmt.Errorf("%s: %w", c.name, statusErr)}
		}
		return Response{}, fmt.Errorf("%s: %w", c.name, statusErr)
	}

	return Response{Body: respBody, ContentType: resp.Header.Get("Content-Type")}, nil
}

type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }

func (e *retryableError) Unwrap() error { return e.err }

func retryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

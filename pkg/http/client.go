package http

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
)

// StatusError is returned for non-2xx replies. It is never retried.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

type ClientOption func(*Client)

// Client is a JSON client that retries transport failures with linear backoff.
type Client struct {
	baseURL  string
	timeout  time.Duration
	attempts int
	backoff  time.Duration
	headers  map[string]string
	client   *http.Client
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		timeout:  10 * time.Second,
		attempts: 1,
		backoff:  50 * time.Millisecond,
		headers:  map[string]string{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.client = &http.Client{Timeout: c.timeout}
	return c
}

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithRetries bounds attempts per call; the n-th retry waits n*backoff.
func WithRetries(attempts int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		if attempts > 0 {
			c.attempts = attempts
		}
		if backoff > 0 {
			c.backoff = backoff
		}
	}
}

func WithHeader(key, value string) ClientOption {
	return func(c *Client) { c.headers[key] = value }
}

// Do sends body as JSON and decodes a JSON reply into dest when dest is non-nil.
func (c *Client) Do(ctx context.Context, method, path string, body, dest interface{}) error {
	if c.baseURL == "" {
		return fmt.Errorf("http client: no base url")
	}
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		payload = b
	}

	var err error
	for i := 1; i <= c.attempts; i++ {
		err = c.once(ctx, method, path, payload, dest)
		var se *StatusError
		if err == nil || errors.As(err, &se) || i == c.attempts {
			return err
		}
		t := time.NewTimer(time.Duration(i) * c.backoff)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
	}
	return err
}

func (c *Client) once(ctx context.Context, method, path string, payload []byte, dest interface{}) error {
	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

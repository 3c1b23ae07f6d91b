package redline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

// Client is a Redline document-review API client.
type Client struct {
	baseURL    string
	mode       Mode
	httpClient *http.Client
	log        zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(client *Client) {
		client.httpClient.Timeout = d
	}
}

// WithLogger sets a structured logger for request-level debug logging.
func WithLogger(log zerolog.Logger) Option {
	return func(client *Client) {
		client.log = log
	}
}

// NewClient creates a new Redline API client.
// baseURL is the backend URL (e.g., "http://localhost:8000").
// mode selects the editor or commenter surface.
func NewClient(baseURL string, mode Mode, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		mode:    mode,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Mode returns the surface the client was created for.
func (c *Client) Mode() Mode {
	return c.mode
}

// Capabilities returns the capability set of the client's mode.
func (c *Client) Capabilities() Capabilities {
	return c.mode.Capabilities()
}

// buildURL constructs a full URL from a mode-relative path and optional
// query values.
func (c *Client) buildURL(path string, query url.Values) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	u.Path = c.mode.basePath() + path
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String(), nil
}

// doJSON performs an HTTP request with an optional JSON body and decodes
// the JSON response. path is relative to the mode's base path.
func (c *Client) doJSON(ctx context.Context, method, path string, payload, result interface{}) error {
	fullURL, err := c.buildURL(path, nil)
	if err != nil {
		return err
	}
	return c.doJSONWithURL(ctx, method, fullURL, payload, result)
}

// doJSONWithURL performs an HTTP request using a full URL and decodes the
// JSON response. This is the common helper used by all operations.
func (c *Client) doJSONWithURL(ctx context.Context, method, fullURL string, payload, result interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.do(req, result)
}

// do sends a prepared request and decodes the JSON response into result.
func (c *Client) do(req *http.Request, result interface{}) error {
	c.log.Debug().Str("method", req.Method).Str("url", req.URL.String()).Msg("request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{
			StatusCode: resp.StatusCode,
			Message:    string(data),
		}
	}

	if result != nil {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	return nil
}

// wrapError wraps an error with an operation name if it's an API error.
func wrapError(err error, op string) error {
	if err == nil {
		return nil
	}
	apiErr, ok := err.(*Error)
	if ok {
		apiErr.Op = op
		return apiErr
	}
	return fmt.Errorf("%s: %w", op, err)
}

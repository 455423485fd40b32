package comments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/doyensec/safeurl"
	"go.uber.org/zap"
)

const (
	// DefaultEndpoint is the public comments resource.
	DefaultEndpoint = "https://jsonplaceholder.typicode.com/comments"

	defaultUserAgent = "commentsheet/1.0"
)

// Client reads the whole comment collection with a single GET.
type Client struct {
	httpClient *http.Client
	logger     *zap.Logger
	endpoint   string
	userAgent  string
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoint replaces DefaultEndpoint.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		if endpoint != "" {
			c.endpoint = endpoint
		}
	}
}

// WithUserAgent sets the User-Agent header sent with the request.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// NewClient returns a Client using httpClient as transport. A nil httpClient means
// http.DefaultClient; a nil logger discards log output.
func NewClient(httpClient *http.Client, logger *zap.Logger, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		httpClient: httpClient,
		logger:     logger,
		endpoint:   DefaultEndpoint,
		userAgent:  defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the resource URL the client reads.
func (c *Client) Endpoint() string { return c.endpoint }

// FetchAll returns the collection exactly as received. Any failure wraps ErrFetchFailed.
func (c *Client) FetchAll(ctx context.Context) ([]Comment, error) {
	log := c.logger.With(zap.String("endpoint", c.endpoint))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		log.Error("build comments request", zap.Error(err))
		return nil, fmt.Errorf("%w: build request: %w", ErrFetchFailed, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error("comments request failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Error("comments endpoint returned error status", zap.Int("http_status", resp.StatusCode))
		return nil, fmt.Errorf("%w: status %d", ErrFetchFailed, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Error("read comments response", zap.Error(err))
		return nil, fmt.Errorf("%w: read body: %w", ErrFetchFailed, err)
	}

	// null and objects decode without error into a slice; only an array is a collection
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		log.Error("comments payload is not a JSON array", zap.Int("bytes", len(body)))
		return nil, fmt.Errorf("%w: payload is not a JSON array", ErrFetchFailed)
	}

	var out []Comment
	if err := json.Unmarshal(trimmed, &out); err != nil {
		log.Error("decode comments payload", zap.Error(err))
		return nil, fmt.Errorf("%w: decode: %w", ErrFetchFailed, err)
	}
	if out == nil {
		out = []Comment{}
	}

	log.Debug("fetched comments",
		zap.Int("count", len(out)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return out, nil
}

// NewHTTPClient builds the transport for a Client. With safe set, requests to private,
// loopback and link-local addresses are refused and only http/https on ports 80 and
// 443 are allowed.
func NewHTTPClient(timeout time.Duration, safe bool) *http.Client {
	if !safe {
		return &http.Client{Timeout: timeout}
	}
	cfg := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("http", "https").
		SetAllowedPorts(80, 443).
		Build()
	return safeurl.Client(cfg).Client
}

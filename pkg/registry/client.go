package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/matzehuels/lockmirror/pkg/buildinfo"
	"github.com/matzehuels/lockmirror/pkg/errors"
	"github.com/matzehuels/lockmirror/pkg/httputil"
	"github.com/matzehuels/lockmirror/pkg/observability"
)

// DefaultTimeout bounds a single request attempt, body included.
const DefaultTimeout = 60 * time.Second

// Client talks to npm-compatible registries. Every request holds one permit
// of the admission gate while in flight and is retried on transient failure.
// A Client is safe for concurrent use.
type Client struct {
	http     *http.Client
	gate     *httputil.Gate
	attempts int
	headers  map[string]string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithGate makes the client share gate instead of the process-wide default.
func WithGate(g *httputil.Gate) Option {
	return func(c *Client) {
		if g != nil {
			c.gate = g
		}
	}
}

// WithAttempts sets how many times a failing request is tried.
func WithAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.attempts = n
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.headers["User-Agent"] = ua
		}
	}
}

// NewClient creates a Client using the process-wide gate, [httputil.DefaultAttempts]
// attempts and a [DefaultTimeout] HTTP client unless overridden by opts.
func NewClient(opts ...Option) *Client {
	c := &Client{
		http:     &http.Client{Timeout: DefaultTimeout},
		gate:     httputil.DefaultGate(),
		attempts: httputil.DefaultAttempts,
		headers: map[string]string{
			"User-Agent": buildinfo.UserAgent(),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PackageURL returns the metadata URL of name under registry. The slash of a
// scoped name is escaped ("@scope%2Fname"), as npm itself requests it.
func PackageURL(registry, name string) string {
	return strings.TrimRight(registry, "/") + "/" + url.PathEscape(name)
}

// FetchPackageInfo retrieves the package document for name from registry.
//
// A 404 yields a NOT_FOUND error without retrying. Transport failures, 5xx and
// 429 responses and undecodable bodies are retried; once attempts are used up
// the result is a NETWORK_ERROR naming the URL.
func (c *Client) FetchPackageInfo(ctx context.Context, registry, name string) (*PackageInfo, error) {
	if err := errors.ValidatePackageName(name); err != nil {
		return nil, err
	}
	u := PackageURL(registry, name)

	var info PackageInfo
	err := c.retry(ctx, u, func() error {
		body, err := c.get(ctx, u, map[string]string{"Accept": "application/json"})
		if err != nil {
			return err
		}
		info = PackageInfo{}
		if err := json.NewDecoder(bytes.NewReader(body)).Decode(&info); err != nil {
			return httputil.Retryable(errors.Wrap(errors.ErrCodeNetwork, err, "decode %s", u))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if info.Name == "" {
		info.Name = name
	}
	return &info, nil
}

// FetchBytes downloads url in full.
func (c *Client) FetchBytes(ctx context.Context, rawURL string) ([]byte, error) {
	var data []byte
	err := c.retry(ctx, rawURL, func() error {
		body, err := c.get(ctx, rawURL, nil)
		if err != nil {
			return err
		}
		data = body
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (c *Client) retry(ctx context.Context, rawURL string, fn func() error) error {
	err := httputil.Retry(ctx, c.attempts, func() error {
		return c.gate.Do(ctx, fn)
	})
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return errors.Wrap(errors.ErrCodeNetwork, ctx.Err(), "GET %s", rawURL)
	case httputil.IsRetryable(err):
		return errors.Wrap(errors.ErrCodeNetwork, err, "GET %s failed after %d attempts", rawURL, c.attempts)
	}
	return err
}

// get performs one attempt. The caller holds a gate permit for its whole
// duration, body read included.
func (c *Client) get(ctx context.Context, rawURL string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "build request for %s", rawURL)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	hooks := observability.HTTP()
	host, path := req.URL.Host, req.URL.Path
	hooks.OnRequest(ctx, req.Method, host, path)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, req.Method, host, path, err)
		return nil, httputil.Retryable(errors.Wrap(errors.ErrCodeNetwork, err, "GET %s", rawURL))
	}
	defer resp.Body.Close()
	hooks.OnResponse(ctx, req.Method, host, path, resp.StatusCode, time.Since(start))

	if err := checkStatus(resp.StatusCode, rawURL); err != nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		hooks.OnError(ctx, req.Method, host, path, err)
		return nil, httputil.Retryable(errors.Wrap(errors.ErrCodeNetwork, err, "read %s", rawURL))
	}
	return body, nil
}

func checkStatus(code int, rawURL string) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound:
		return errors.New(errors.ErrCodeNotFound, "GET %s: status %d", rawURL, code)
	case code == http.StatusTooManyRequests, code >= 500:
		return httputil.Retryable(errors.New(errors.ErrCodeNetwork, "GET %s: status %d", rawURL, code))
	default:
		return errors.New(errors.ErrCodeNetwork, "GET %s: status %d", rawURL, code)
	}
}

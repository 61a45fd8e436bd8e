// Package httputil provides a security-hardened HTTP client and input sanitization utilities.
package httputil

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"slices"
	"time"

	"golang.org/x/net/publicsuffix"

	"mediagrab/internal/log"
)

// DefaultUserAgent is sent when the caller configures none.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/121.0"

// maxBody caps every response body read into memory.
const maxBody = 10 * 1024 * 1024 // 10MB

// NewClient creates a hardened HTTP client with secure defaults. Cookies
// persist across requests of one client, as a browser session would.
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	return &http.Client{
		Timeout: timeout,
		Jar:     jar,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
			ForceAttemptHTTP2:   true,
			MaxIdleConns:        10,
			IdleConnTimeout:     30 * time.Second,
			DisableCompression:  false,
			MaxIdleConnsPerHost: 5,
		},
	}
}

// Options customise a single Fetch.
type Options struct {
	// Method defaults to GET, or POST when Body is set.
	Method  string
	Body    []byte
	Headers map[string]string
	Query   url.Values
	// Expected lists non-2xx statuses returned as a normal Response.
	Expected []int
	// Note names the request in debug logs, e.g. "Downloading playlist".
	Note string
}

// Response is a fully read HTTP response.
type Response struct {
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
}

// HTTPError reports a response whose status was neither 2xx nor expected.
type HTTPError struct {
	URL        string
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("unexpected status %d for %s", e.StatusCode, e.URL)
}

// IsStatus reports whether err wraps an HTTPError with one of codes.
func IsStatus(err error, codes ...int) bool {
	var he *HTTPError
	if !errors.As(err, &he) {
		return false
	}
	return slices.Contains(codes, he.StatusCode)
}

// Fetcher is the capability adapters and extractors use to reach the network.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, opts Options) (*Response, error)
}

// Client is the default Fetcher.
type Client struct {
	HTTP      *http.Client
	UserAgent string
}

// New returns a Client with a hardened transport.
func New(timeout time.Duration, userAgent string) *Client {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &Client{HTTP: NewClient(timeout), UserAgent: userAgent}
}

// Fetch performs a request and reads the whole body.
func (c *Client) Fetch(ctx context.Context, rawURL string, opts Options) (*Response, error) {
	if err := ValidateHTTPURL(rawURL); err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if len(opts.Query) > 0 {
		u, _ := url.Parse(rawURL)
		q := u.Query()
		for k, vs := range opts.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
		rawURL = u.String()
	}

	method := opts.Method
	if method == "" {
		method = http.MethodGet
		if opts.Body != nil {
			method = http.MethodPost
		}
	}

	var body io.Reader
	if opts.Body != nil {
		body = bytes.NewReader(opts.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	if opts.Note != "" {
		log.Debugf("%s: %s %s", opts.Note, method, rawURL)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	if !ok && !slices.Contains(opts.Expected, resp.StatusCode) {
		return nil, &HTTPError{URL: rawURL, StatusCode: resp.StatusCode, Body: data}
	}

	return &Response{
		URL:        resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

// GetJSON fetches rawURL through f and decodes the JSON body into v.
func GetJSON(ctx context.Context, f Fetcher, rawURL string, v any, opts Options) error {
	opts.Headers = maps.Clone(opts.Headers)
	if opts.Headers == nil {
		opts.Headers = map[string]string{}
	}
	if _, ok := opts.Headers["Accept"]; !ok {
		opts.Headers["Accept"] = "application/json"
	}
	resp, err := f.Fetch(ctx, rawURL, opts)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return fmt.Errorf("parsing JSON from %s: %w", rawURL, err)
	}
	return nil
}

package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/net/html/charset"
)

const (
	DefaultUserAgent   = "gemcrawl/1.0"
	DefaultMaxBodySize = 10 << 20
	maxRedirects       = 10
)

// HTTPClient is the Fetcher used against real sites
type HTTPClient struct {
	client        *http.Client
	userAgent     string
	maxBodySize   int64
	customHeaders map[string]string
}

// NewHTTPClient creates a new HTTP client. timeout bounds each request,
// redirects included.
func NewHTTPClient(userAgent string, timeout time.Duration) *HTTPClient {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return errors.New("too many redirects")
			}
			return nil
		},
	}

	return &HTTPClient{
		client:        client,
		userAgent:     userAgent,
		maxBodySize:   DefaultMaxBodySize,
		customHeaders: make(map[string]string),
	}
}

// SetMaxBodySize caps how many bytes of a body Get reads. n <= 0 removes
// the cap.
func (h *HTTPClient) SetMaxBodySize(n int64) {
	h.maxBodySize = n
}

// SetCustomHeaders sets custom HTTP headers
func (h *HTTPClient) SetCustomHeaders(headers map[string]string) {
	for k, v := range headers {
		h.customHeaders[k] = v
	}
}

// Head probes rawURL and returns the final response headers.
func (h *HTTPClient) Head(ctx context.Context, rawURL string) (http.Header, error) {
	resp, err := h.do(ctx, http.MethodHead, rawURL)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	return resp.Header, nil
}

// Get fetches rawURL and returns its body decoded to UTF-8 according to the
// declared or sniffed charset.
func (h *HTTPClient) Get(ctx context.Context, rawURL string) (string, error) {
	resp, err := h.do(ctx, http.MethodGet, rawURL)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	var body io.Reader = resp.Body
	if h.maxBodySize > 0 {
		body = io.LimitReader(body, h.maxBodySize)
	}

	decoded, err := charset.NewReader(body, resp.Header.Get("Content-Type"))
	if err != nil {
		// Unknown charset, keep the raw bytes.
		decoded = body
	}

	content, err := io.ReadAll(decoded)
	if err != nil {
		return "", &FetchError{Method: http.MethodGet, URL: rawURL, Err: fmt.Errorf("failed to read response body: %w", err)}
	}
	return string(content), nil
}

// Close closes idle connections
func (h *HTTPClient) Close() {
	h.client.CloseIdleConnections()
}

func (h *HTTPClient) do(ctx context.Context, method, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, &FetchError{Method: method, URL: rawURL, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	req.Header.Set("User-Agent", h.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	for name, value := range h.customHeaders {
		req.Header.Set(name, value)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, &FetchError{Method: method, URL: rawURL, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		return nil, &FetchError{Method: method, URL: rawURL, StatusCode: resp.StatusCode}
	}
	return resp, nil
}

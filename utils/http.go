package utils

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// HTTPClientConfig contains configuration for the HTTP client. A zero
// Timeout means no whole-request deadline, which is what the download
// engine wants: a large segment body read must not be cut off by a fixed
// timer, only by the transport's connect/header timeouts or the caller's
// context.
type HTTPClientConfig struct {
	Timeout     time.Duration
	Parallelism int // sizes MaxIdleConnsPerHost/MaxConnsPerHost
}

// HTTPClient wraps a tuned *http.Client for probing and range-fetching a
// single origin.
type HTTPClient struct {
	client *http.Client
}

// NewHTTPClient creates a new HTTP client with default configuration.
func NewHTTPClient() *HTTPClient {
	return NewHTTPClientWithConfig(&HTTPClientConfig{
		Timeout:     30 * time.Second,
		Parallelism: 8,
	})
}

// NewHTTPClientWithConfig creates a new HTTP client tuned for the given
// parallelism: MaxIdleConnsPerHost and MaxConnsPerHost are set to at least
// 2x the expected number of concurrent segment fetchers, so segment
// goroutines don't starve each other for connections.
func NewHTTPClientWithConfig(config *HTTPClientConfig) *HTTPClient {
	perHost := config.Parallelism * 2
	if perHost < 4 {
		perHost = 4
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
		// Zero disables the Expect: 100-continue handshake; range GETs
		// carry no body and must not stall on it.
		ExpectContinueTimeout: 0,
		MaxIdleConns:          perHost * 2,
		MaxIdleConnsPerHost:   perHost,
		MaxConnsPerHost:       perHost,
		IdleConnTimeout:       90 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: false,
		},
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   config.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}

	return &HTTPClient{client: client}
}

// Head performs a HEAD request, used by the origin probe.
func (c *HTTPClient) Head(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HEAD request: %w", err)
	}
	return c.client.Do(req)
}

// GetRange performs a single-attempt GET request for the given byte range.
// No retry logic here: the segment fetcher owns retry/backoff so it can
// update per-segment status between attempts.
func (c *HTTPClient) GetRange(ctx context.Context, url string, start, end int64) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create GET request: %w", err)
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))
	return c.client.Do(req)
}

// Get performs a plain GET request, used by the digest sidecar helper.
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create GET request: %w", err)
	}
	return c.client.Do(req)
}

// IsRetryableError reports whether a transport-level error (as opposed to an
// HTTP status) is worth retrying.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	retryableErrors := []string{
		"timeout",
		"connection refused",
		"connection reset",
		"no such host",
		"network is unreachable",
		"temporary failure",
		"i/o timeout",
		"eof",
	}

	for _, retryableErr := range retryableErrors {
		if strings.Contains(errStr, retryableErr) {
			return true
		}
	}

	return false
}

// IsRetryableStatus reports whether an HTTP status code returned by a
// segment fetch is worth retrying.
func IsRetryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests:
		return true
	default:
		return code >= 500
	}
}

package utils

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewHTTPClient(t *testing.T) {
	client := NewHTTPClient()

	if client == nil {
		t.Fatal("NewHTTPClient returned nil")
	}

	if client.client.Timeout != 30*time.Second {
		t.Errorf("Expected timeout of 30s, got %v", client.client.Timeout)
	}
}

func TestNewHTTPClientWithConfig(t *testing.T) {
	config := &HTTPClientConfig{
		Timeout:     10 * time.Second,
		Parallelism: 16,
	}

	client := NewHTTPClientWithConfig(config)

	if client == nil {
		t.Fatal("NewHTTPClientWithConfig returned nil")
	}

	if client.client.Timeout != 10*time.Second {
		t.Errorf("Expected timeout of 10s, got %v", client.client.Timeout)
	}

	transport, ok := client.client.Transport.(*http.Transport)
	if !ok {
		t.Fatal("expected *http.Transport")
	}
	if transport.MaxConnsPerHost != 32 {
		t.Errorf("expected MaxConnsPerHost=32 for parallelism 16, got %d", transport.MaxConnsPerHost)
	}
}

func TestNewHTTPClientWithConfig_LowParallelismFloor(t *testing.T) {
	client := NewHTTPClientWithConfig(&HTTPClientConfig{Timeout: time.Second, Parallelism: 1})
	transport := client.client.Transport.(*http.Transport)
	if transport.MaxConnsPerHost != 4 {
		t.Errorf("expected floor of 4 connections, got %d", transport.MaxConnsPerHost)
	}
}

func TestHTTPClientHead(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("expected HEAD request, got %s", r.Method)
		}
		w.Header().Set("Content-Length", "1024")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPClient()
	resp, err := client.Head(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("HEAD request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}
}

func TestHTTPClientGetRange(t *testing.T) {
	var gotRange string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRange = r.Header.Get("Range")
		w.WriteHeader(http.StatusPartialContent)
		w.Write([]byte("chunk"))
	}))
	defer server.Close()

	client := NewHTTPClient()
	resp, err := client.GetRange(context.Background(), server.URL, 100, 199)
	if err != nil {
		t.Fatalf("ranged GET failed: %v", err)
	}
	defer resp.Body.Close()

	if gotRange != "bytes=100-199" {
		t.Errorf("expected Range header 'bytes=100-199', got %q", gotRange)
	}
	if resp.StatusCode != http.StatusPartialContent {
		t.Errorf("expected status 206, got %d", resp.StatusCode)
	}
}

func TestHTTPClientGet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET request, got %s", r.Method)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("test response"))
	}))
	defer server.Close()

	client := NewHTTPClient()
	resp, err := client.Get(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("GET request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}
}

func TestHTTPClientContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPClient()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := client.GetRange(ctx, server.URL, 0, 99)
	if err == nil {
		t.Error("request should have failed due to context timeout")
	}
}

func TestIsRetryableError(t *testing.T) {
	if IsRetryableError(nil) {
		t.Error("nil error should not be retryable")
	}

	httpClient := &http.Client{Timeout: 1 * time.Nanosecond}
	req, _ := http.NewRequest("GET", "http://192.0.2.1:1", nil)
	_, netErr := httpClient.Do(req)

	if netErr != nil && !IsRetryableError(netErr) {
		t.Errorf("network timeout error should be retryable: %v", netErr)
	}
}

func TestIsRetryableStatus(t *testing.T) {
	tests := []struct {
		code      int
		retryable bool
	}{
		{http.StatusOK, false},
		{http.StatusPartialContent, false},
		{http.StatusNotFound, false},
		{http.StatusForbidden, false},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusServiceUnavailable, true},
	}

	for _, tt := range tests {
		if got := IsRetryableStatus(tt.code); got != tt.retryable {
			t.Errorf("IsRetryableStatus(%d) = %v, want %v", tt.code, got, tt.retryable)
		}
	}
}

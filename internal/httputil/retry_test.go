package httputil

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func fastRetry(n int) RetryConfig {
	return RetryConfig{
		MaxRetries:    n,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2,
	}
}

func TestDoSingleAttemptByDefault(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, `{"status_code":"503"}`)
	}))
	defer server.Close()

	resp, err := Do(context.Background(), server.Client(), http.MethodPost, server.URL, []byte("a=b"), nil, DefaultRetryConfig())
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Body.Close()

	if calls.Load() != 1 {
		t.Fatalf("expected exactly one request, got %d", calls.Load())
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != `{"status_code":"503"}` {
		t.Fatalf("last response body should be readable, got %q", body)
	}
}

func TestDoRetriesRetryableStatus(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if string(body) != "theme=a" {
			t.Errorf("body not replayed on retry: %q", body)
		}
		if r.Header.Get("Content-Type") != "application/x-www-form-urlencoded" {
			t.Errorf("missing header: %q", r.Header.Get("Content-Type"))
		}
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	headers := http.Header{"Content-Type": []string{"application/x-www-form-urlencoded"}}
	resp, err := Do(context.Background(), server.Client(), http.MethodPost, server.URL, []byte("theme=a"), headers, fastRetry(3))
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", calls.Load())
	}
}

func TestDoDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	resp, err := Do(context.Background(), server.Client(), http.MethodGet, server.URL, nil, nil, fastRetry(3))
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
}

func TestDoNetworkErrorExhaustsRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := Do(context.Background(), &http.Client{Timeout: time.Second}, http.MethodPost, url, nil, nil, fastRetry(2))
	if err == nil {
		t.Fatal("expected error for closed server")
	}
}

func TestDoInvalidURLIsPermanent(t *testing.T) {
	_, err := Do(context.Background(), http.DefaultClient, http.MethodPost, "://bad", nil, nil, fastRetry(5))
	if err == nil {
		t.Fatal("expected error for invalid URL")
	}
}

func TestDoContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	if _, err := Do(ctx, server.Client(), http.MethodGet, server.URL, nil, nil, fastRetry(2)); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

package download

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

func newTestPool(t *testing.T, attempts int) *Pool {
	t.Helper()
	pool, err := NewPool(Options{Attempts: attempts, RetryDelay: 0, UserAgent: "trackfetch-test"})
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	return pool
}

func TestFetchAlternatesHeaderStrategies(t *testing.T) {
	var (
		mu      sync.Mutex
		headers []http.Header
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		headers = append(headers, r.Header.Clone())
		n := len(headers)
		mu.Unlock()
		if n == 1 {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte("audio-bytes"))
	}))
	defer server.Close()

	pool := newTestPool(t, 3)
	data, err := pool.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(data) != "audio-bytes" {
		t.Fatalf("body = %q", data)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(headers) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(headers))
	}
	first, second := headers[0], headers[1]
	if first.Get("Accept") != audioAccept || first.Get("Range") != "bytes=0-" || first.Get("Cache-Control") != "no-cache" {
		t.Errorf("first attempt headers = %v", first)
	}
	if first.Get("Sec-Fetch-Mode") == "" {
		t.Error("first attempt should send browser fetch headers")
	}
	if second.Get("User-Agent") != "trackfetch-test" {
		t.Errorf("second User-Agent = %q", second.Get("User-Agent"))
	}
	if second.Get("Range") != "" || second.Get("Sec-Fetch-Mode") != "" {
		t.Errorf("second attempt should be a plain request, got %v", second)
	}
}

func TestFetchAcceptsPartialContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write([]byte("partial"))
	}))
	defer server.Close()

	data, err := newTestPool(t, 1).Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(data) != "partial" {
		t.Fatalf("body = %q", data)
	}
}

func TestFetchAllAttemptsFail(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := newTestPool(t, 3).Fetch(context.Background(), server.URL)
	if !errors.Is(err, ErrAllAttemptsFailed) {
		t.Fatalf("expected ErrAllAttemptsFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "status 503") {
		t.Errorf("error should carry the last status: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestFetchWithProgressReportsTotal(t *testing.T) {
	body := bytes.Repeat([]byte{'x'}, 4096)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(body)
	}))
	defer server.Close()

	var last int64
	var buf bytes.Buffer
	n, err := newTestPool(t, 1).FetchWithProgress(context.Background(), server.URL, &buf, func(written, total int64) {
		last = written
	})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if n != int64(len(body)) || last != n {
		t.Fatalf("written = %d, last report = %d, want %d", n, last, len(body))
	}
	if !bytes.Equal(buf.Bytes(), body) {
		t.Fatal("body mismatch")
	}
}

func TestFetchCancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := newTestPool(t, 3).Fetch(ctx, server.URL); !errors.Is(err, ErrAllAttemptsFailed) {
		t.Fatalf("expected ErrAllAttemptsFailed, got %v", err)
	}
}

func TestNewPoolRejectsBadProxy(t *testing.T) {
	if _, err := NewPool(Options{Proxy: "://bad"}); err == nil {
		t.Fatal("expected proxy parse error")
	}
}

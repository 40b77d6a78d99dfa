package lrclib

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/liuran001/TrackFetch-Go/engine/metadata"
)

func newTestClient(t *testing.T, body string) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("track_name"); got != "Around the World" {
			t.Errorf("track_name = %q", got)
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return New(Options{BaseURL: srv.URL, RetryMax: 1})
}

func TestLyricsPrefersSynced(t *testing.T) {
	client := newTestClient(t, `[{"plainLyrics":"Around the world","syncedLyrics":"[00:01.00] Around the world"}]`)
	lyrics, err := client.Lyrics(context.Background(), "Daft Punk", "Around the World")
	if err != nil {
		t.Fatalf("lyrics: %v", err)
	}
	if lyrics != "[00:01.00] Around the world" {
		t.Fatalf("lyrics = %q, want synced text", lyrics)
	}
}

func TestLyricsPlainFallback(t *testing.T) {
	client := newTestClient(t, `[{"plainLyrics":"Around the world","syncedLyrics":null}]`)
	lyrics, err := client.Lyrics(context.Background(), "Daft Punk", "Around the World")
	if err != nil {
		t.Fatalf("lyrics: %v", err)
	}
	if lyrics != "Around the world" {
		t.Fatalf("lyrics = %q", lyrics)
	}
}

func TestLyricsNotFound(t *testing.T) {
	client := newTestClient(t, `[]`)
	if _, err := client.Lyrics(context.Background(), "Daft Punk", "Around the World"); !errors.Is(err, metadata.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

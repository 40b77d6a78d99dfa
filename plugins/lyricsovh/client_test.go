package lyricsovh

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/liuran001/TrackFetch-Go/engine/metadata"
)

func TestLyrics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.EscapedPath() {
		case "/Daft%20Punk/Digital%20Love":
			_, _ = w.Write([]byte(`{"lyrics":"Last night I had a dream about you"}`))
		case "/Daft%20Punk/Unknown":
			_, _ = w.Write([]byte(`{"lyrics":"Sorry, we don't have lyrics for this song yet."}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"No lyrics found"}`))
		}
	}))
	defer srv.Close()
	client := New(Options{BaseURL: srv.URL, RetryMax: 1})
	ctx := context.Background()

	lyrics, err := client.Lyrics(ctx, "Daft Punk", "Digital Love")
	if err != nil {
		t.Fatalf("lyrics: %v", err)
	}
	if lyrics != "Last night I had a dream about you" {
		t.Fatalf("unexpected lyrics %q", lyrics)
	}

	if _, err := client.Lyrics(ctx, "Daft Punk", "Unknown"); !errors.Is(err, metadata.ErrNotFound) {
		t.Fatalf("placeholder answer should be not found, got %v", err)
	}
	if _, err := client.Lyrics(ctx, "Nobody", "Nothing"); !errors.Is(err, metadata.ErrNotFound) {
		t.Fatalf("404 should be not found, got %v", err)
	}
	if client.Rank() != 0 {
		t.Fatalf("rank = %d", client.Rank())
	}
}

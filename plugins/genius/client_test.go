package genius

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/liuran001/TrackFetch-Go/engine/metadata"
)

func TestLyricsTwoStep(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.URL.Query().Get("q"); got != "Daft Punk Get Lucky" {
			t.Errorf("q = %q", got)
		}
		_, _ = w.Write([]byte(`{"response":{"hits":[{"result":{"id":42}}]}}`))
	})
	mux.HandleFunc("/songs/42", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":{"song":{"lyrics":{"plain":"Like the legend of the phoenix"}}}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := New(Options{BaseURL: srv.URL, Token: "tok", RetryMax: 1})
	lyrics, err := client.Lyrics(context.Background(), "Daft Punk", "Get Lucky")
	if err != nil {
		t.Fatalf("lyrics: %v", err)
	}
	if lyrics != "Like the legend of the phoenix" {
		t.Fatalf("lyrics = %q", lyrics)
	}
}

func TestLyricsNoHits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":{"hits":[]}}`))
	}))
	defer srv.Close()

	client := New(Options{BaseURL: srv.URL, Token: "tok", RetryMax: 1})
	if _, err := client.Lyrics(context.Background(), "Nobody", "Nothing"); !errors.Is(err, metadata.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

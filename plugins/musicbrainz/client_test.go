package musicbrainz

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/liuran001/TrackFetch-Go/engine/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const recordingJSON = `{
  "recordings": [{
    "title": "One More Time",
    "artist-credit": [{"name": "Daft Punk", "artist": {"name": "Daft Punk", "type": "Group"}},
                      {"name": "Romanthony", "artist": {"name": "Romanthony", "type": "Person"}}],
    "releases": [{
      "title": "Discovery",
      "date": "2001-03-12",
      "artist-credit": [{"name": "Daft Punk"}],
      "media": [{"position": 1, "tracks": [{"position": 1}]}]
    }],
    "tags": [{"name": "french house"}],
    "isrcs": ["GBDUW0000059"]
  }]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Options{BaseURL: srv.URL, Interval: time.Millisecond, RetryMax: 1, UserAgent: "test/1.0"})
}

func TestSearchParsesRecording(t *testing.T) {
	var gotQuery, gotAgent string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("query")
		gotAgent = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(recordingJSON))
	})

	phrase := client.Phrasings(metadata.Query{Artist: "Daft Punk", Title: "One More Time"})[0]
	results, err := client.Search(context.Background(), phrase)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, `recording:"One More Time" AND artist:"Daft Punk"`, gotQuery)
	assert.Equal(t, "test/1.0", gotAgent)

	r := results[0]
	assert.Equal(t, "One More Time", r.Title)
	assert.Equal(t, []string{"Daft Punk", "Romanthony"}, r.Artists)
	assert.Equal(t, "Discovery", r.Album)
	assert.Equal(t, 2001, r.Year)
	assert.Equal(t, 1, r.DiscNumber)
	assert.Equal(t, 1, r.TrackNumber)
	assert.Equal(t, "Daft Punk", r.AlbumArtist)
	assert.Equal(t, "Romanthony", r.Composer)
	assert.Equal(t, "french house", r.Genre)
	assert.Equal(t, "GBDUW0000059", r.ISRC)
}

func TestSearchEmpty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"recordings": []}`))
	})
	_, err := client.Search(context.Background(), "nothing")
	assert.True(t, errors.Is(err, metadata.ErrNotFound))
}

func TestSearchUnavailable(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	_, err := client.Search(context.Background(), "x")
	assert.True(t, errors.Is(err, metadata.ErrUnavailable))
}

func TestYearOf(t *testing.T) {
	assert.Equal(t, 1999, yearOf("1999"))
	assert.Equal(t, 2001, yearOf("2001-03-12"))
	assert.Equal(t, 0, yearOf(""))
}

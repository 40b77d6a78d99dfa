package lyricsovh

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/liuran001/TrackFetch-Go/engine"
	"github.com/liuran001/TrackFetch-Go/engine/metadata"
	"github.com/liuran001/TrackFetch-Go/plugins/internal/apiclient"
	"github.com/tidwall/gjson"
)

const (
	defaultBaseURL = "https://api.lyrics.ovh/v1"
	missingLyrics  = "Sorry, we don't have lyrics for this song yet."
)

// Client fetches plain lyrics from lyrics.ovh.
type Client struct {
	api     *apiclient.Client
	baseURL string
	rank    int
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	UserAgent  string
	Rank       int
	RetryMax   int
	Logger     engine.Logger
}

func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	return &Client{
		api: apiclient.New(apiclient.Options{
			Name:       "lyricsovh",
			HTTPClient: opts.HTTPClient,
			UserAgent:  opts.UserAgent,
			RetryMax:   opts.RetryMax,
			Logger:     opts.Logger,
		}),
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		rank:    opts.Rank,
	}
}

func (c *Client) Name() string { return "lyricsovh" }

func (c *Client) Rank() int { return c.rank }

func (c *Client) Lyrics(ctx context.Context, artist, title string) (string, error) {
	if artist == "" {
		return "", metadata.NewProviderError(c.Name(), "lyrics", metadata.ErrNotFound)
	}
	endpoint := c.baseURL + "/" + url.PathEscape(artist) + "/" + url.PathEscape(title)
	body, err := c.api.GetJSON(ctx, "lyrics", endpoint, nil)
	if err != nil {
		return "", err
	}
	lyrics := strings.TrimSpace(gjson.GetBytes(body, "lyrics").String())
	if lyrics == "" || strings.Contains(lyrics, missingLyrics) {
		return "", metadata.NewProviderError(c.Name(), "lyrics", metadata.ErrNotFound)
	}
	return lyrics, nil
}

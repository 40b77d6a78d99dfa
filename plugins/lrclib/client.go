package lrclib

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

const defaultBaseURL = "https://lrclib.net/api"

// Client fetches synced lyrics from LRCLIB.
type Client struct {
	api     *apiclient.Client
	baseURL string
	rank    int
	logger  engine.Logger
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
			Name:       "lrclib",
			HTTPClient: opts.HTTPClient,
			UserAgent:  opts.UserAgent,
			RetryMax:   opts.RetryMax,
			Logger:     opts.Logger,
		}),
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		rank:    opts.Rank,
		logger:  opts.Logger,
	}
}

func (c *Client) Name() string { return "lrclib" }

func (c *Client) Rank() int { return c.rank }

// Lyrics returns the synced lyrics of the first match, or its plain lyrics
// when no synced version exists.
func (c *Client) Lyrics(ctx context.Context, artist, title string) (string, error) {
	params := url.Values{}
	params.Set("track_name", title)
	if artist != "" {
		params.Set("artist_name", artist)
	}
	body, err := c.api.GetJSON(ctx, "lyrics", c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}

	for _, item := range gjson.ParseBytes(body).Array() {
		if synced := strings.TrimSpace(item.Get("syncedLyrics").String()); synced != "" {
			return synced, nil
		}
		if plain := strings.TrimSpace(item.Get("plainLyrics").String()); plain != "" {
			return plain, nil
		}
	}
	return "", metadata.NewProviderError(c.Name(), "lyrics", metadata.ErrNotFound)
}

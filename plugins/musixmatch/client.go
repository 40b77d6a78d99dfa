package musixmatch

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
	defaultBaseURL  = "https://api.musixmatch.com/ws/1.1"
	commercialNotes = "******* This Lyrics is NOT for Commercial use *******"
)

// Client fetches lyrics from the Musixmatch matcher endpoint.
type Client struct {
	api     *apiclient.Client
	baseURL string
	apiKey  string
	rank    int
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	APIKey     string
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
			Name:       "musixmatch",
			HTTPClient: opts.HTTPClient,
			UserAgent:  opts.UserAgent,
			RetryMax:   opts.RetryMax,
			Logger:     opts.Logger,
		}),
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		rank:    opts.Rank,
	}
}

func (c *Client) Name() string { return "musixmatch" }

func (c *Client) Rank() int { return c.rank }

func (c *Client) Lyrics(ctx context.Context, artist, title string) (string, error) {
	params := url.Values{}
	params.Set("apikey", c.apiKey)
	params.Set("q_track", title)
	params.Set("q_artist", artist)

	body, err := c.api.GetJSON(ctx, "lyrics", c.baseURL+"/matcher.lyrics.get?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}

	// the API reports failures in the envelope with HTTP 200
	switch status := gjson.GetBytes(body, "message.header.status_code").Int(); status {
	case 0, http.StatusOK:
	default:
		return "", metadata.StatusError(c.Name(), "lyrics", int(status))
	}

	lyrics := gjson.GetBytes(body, "message.body.lyrics.lyrics_body").String()
	lyrics = strings.TrimSpace(strings.Replace(lyrics, commercialNotes, "", 1))
	if lyrics == "" {
		return "", metadata.NewProviderError(c.Name(), "lyrics", metadata.ErrNotFound)
	}
	return lyrics, nil
}

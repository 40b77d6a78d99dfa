package genius

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/liuran001/TrackFetch-Go/engine"
	"github.com/liuran001/TrackFetch-Go/engine/metadata"
	"github.com/liuran001/TrackFetch-Go/plugins/internal/apiclient"
	"github.com/tidwall/gjson"
)

const defaultBaseURL = "https://api.genius.com"

// Client resolves a song through the Genius search and reads its plain lyrics.
type Client struct {
	api     *apiclient.Client
	baseURL string
	token   string
	rank    int
	logger  engine.Logger
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	Token      string
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
			Name:       "genius",
			HTTPClient: opts.HTTPClient,
			UserAgent:  opts.UserAgent,
			RetryMax:   opts.RetryMax,
			Logger:     opts.Logger,
		}),
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		token:   opts.Token,
		rank:    opts.Rank,
		logger:  opts.Logger,
	}
}

func (c *Client) Name() string { return "genius" }

func (c *Client) Rank() int { return c.rank }

func (c *Client) Lyrics(ctx context.Context, artist, title string) (string, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.token)

	q := url.Values{}
	q.Set("q", strings.TrimSpace(artist+" "+title))
	body, err := c.api.GetJSON(ctx, "search", c.baseURL+"/search?"+q.Encode(), header)
	if err != nil {
		return "", err
	}
	id := gjson.GetBytes(body, "response.hits.0.result.id").Int()
	if id == 0 {
		return "", metadata.NewProviderError(c.Name(), "search", metadata.ErrNotFound)
	}

	song, err := c.api.GetJSON(ctx, "song", c.baseURL+"/songs/"+strconv.FormatInt(id, 10)+"?text_format=plain", header)
	if err != nil {
		return "", err
	}
	lyrics := strings.TrimSpace(gjson.GetBytes(song, "response.song.lyrics.plain").String())
	if lyrics == "" {
		if c.logger != nil {
			c.logger.Debug("genius: song has no embedded lyrics", "id", id)
		}
		return "", metadata.NewProviderError(c.Name(), "song", metadata.ErrNotFound)
	}
	return lyrics, nil
}

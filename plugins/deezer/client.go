package deezer

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

const (
	defaultBaseURL = "https://api.deezer.com"
	defaultLimit   = 5
)

// Client queries the public Deezer search API.
type Client struct {
	api     *apiclient.Client
	baseURL string
	limit   int
	logger  engine.Logger
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	UserAgent  string
	Limit      int
	RetryMax   int
	Logger     engine.Logger
}

// New creates a Deezer client.
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.Limit <= 0 {
		opts.Limit = defaultLimit
	}
	return &Client{
		api: apiclient.New(apiclient.Options{
			Name:       "deezer",
			HTTPClient: opts.HTTPClient,
			UserAgent:  opts.UserAgent,
			RetryMax:   opts.RetryMax,
			Logger:     opts.Logger,
		}),
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		limit:   opts.Limit,
		logger:  opts.Logger,
	}
}

func (c *Client) Name() string { return "deezer" }

func (c *Client) Role() metadata.Role { return metadata.RoleStorefront }

func (c *Client) Phrasings(q metadata.Query) []string {
	return metadata.BuildPhrasings(q, metadata.FieldSyntax{Title: "track", Artist: "artist"})
}

// Search runs one track query.
func (c *Client) Search(ctx context.Context, phrase string) ([]metadata.ProviderResult, error) {
	items, err := c.search(ctx, "search", "/search", phrase)
	if err != nil {
		return nil, err
	}
	results := make([]metadata.ProviderResult, 0, len(items))
	for _, item := range items {
		results = append(results, parseTrack(item))
	}
	return results, nil
}

// FindAlbumCover searches albums and returns the largest cover rendition.
func (c *Client) FindAlbumCover(ctx context.Context, artist, album string) (string, error) {
	items, err := c.search(ctx, "album", "/search/album", strings.TrimSpace(artist+" "+album))
	if err != nil {
		return "", err
	}
	for _, item := range items {
		if cover := coverOf(item); cover != "" {
			return cover, nil
		}
	}
	return "", metadata.NewProviderError(c.Name(), "album", metadata.ErrNotFound)
}

func (c *Client) search(ctx context.Context, op, path, q string) ([]gjson.Result, error) {
	params := url.Values{}
	params.Set("q", q)
	params.Set("limit", strconv.Itoa(c.limit))

	body, err := c.api.GetJSON(ctx, op, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	// quota errors come back as 200 with an error object
	if apiErr := gjson.GetBytes(body, "error"); apiErr.Exists() {
		if apiErr.Get("code").Int() == 4 {
			return nil, metadata.NewProviderError(c.Name(), op, metadata.ErrRateLimited)
		}
		return nil, metadata.NewProviderError(c.Name(), op, metadata.ErrUnavailable)
	}
	items := gjson.GetBytes(body, "data").Array()
	if len(items) == 0 {
		return nil, metadata.NewProviderError(c.Name(), op, metadata.ErrNotFound)
	}
	return items, nil
}

func parseTrack(item gjson.Result) metadata.ProviderResult {
	r := metadata.ProviderResult{
		Title:       strings.TrimSpace(item.Get("title").String()),
		Album:       strings.TrimSpace(item.Get("album.title").String()),
		DiscNumber:  int(item.Get("disk_number").Int()),
		AlbumArtist: strings.TrimSpace(item.Get("album.artist.name").String()),
		ISRC:        item.Get("isrc").String(),
		CoverArtURL: coverOf(item.Get("album")),
	}
	if artist := strings.TrimSpace(item.Get("artist.name").String()); artist != "" {
		r.Artists = []string{artist}
	}
	if date := item.Get("release_date").String(); len(date) >= 4 {
		r.Year, _ = strconv.Atoi(date[:4])
	}
	return r
}

func coverOf(album gjson.Result) string {
	for _, key := range []string{"cover_xl", "cover_big", "cover_medium"} {
		if v := album.Get(key).String(); v != "" {
			return v
		}
	}
	return ""
}

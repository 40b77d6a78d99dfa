package itunes

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
	defaultBaseURL = "https://itunes.apple.com"
	defaultLimit   = 5
)

// Client queries the iTunes Search API.
type Client struct {
	api     *apiclient.Client
	baseURL string
	limit   int
	country string
	logger  engine.Logger
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	UserAgent  string
	Limit      int
	Country    string
	RetryMax   int
	Logger     engine.Logger
}

// New creates an iTunes client.
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.Limit <= 0 {
		opts.Limit = defaultLimit
	}
	return &Client{
		api: apiclient.New(apiclient.Options{
			Name:       "itunes",
			HTTPClient: opts.HTTPClient,
			UserAgent:  opts.UserAgent,
			RetryMax:   opts.RetryMax,
			Logger:     opts.Logger,
		}),
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		limit:   opts.Limit,
		country: opts.Country,
		logger:  opts.Logger,
	}
}

func (c *Client) Name() string { return "itunes" }

func (c *Client) Role() metadata.Role { return metadata.RoleStorefront }

// Phrasings returns free-text phrasings; the store search has no field syntax.
func (c *Client) Phrasings(q metadata.Query) []string {
	return metadata.BuildPhrasings(q, metadata.FieldSyntax{})
}

// Search runs one song query.
func (c *Client) Search(ctx context.Context, phrase string) ([]metadata.ProviderResult, error) {
	items, err := c.search(ctx, "search", phrase, "song")
	if err != nil {
		return nil, err
	}
	results := make([]metadata.ProviderResult, 0, len(items))
	for _, item := range items {
		results = append(results, parseTrack(item))
	}
	return results, nil
}

// FindAlbumCover looks the album up and returns its artwork URL.
func (c *Client) FindAlbumCover(ctx context.Context, artist, album string) (string, error) {
	items, err := c.search(ctx, "album", strings.TrimSpace(artist+" "+album), "album")
	if err != nil {
		return "", err
	}
	for _, item := range items {
		if cover := artwork(item); cover != "" {
			return cover, nil
		}
	}
	return "", metadata.NewProviderError(c.Name(), "album", metadata.ErrNotFound)
}

func (c *Client) search(ctx context.Context, op, term, entity string) ([]gjson.Result, error) {
	params := url.Values{}
	params.Set("term", term)
	params.Set("media", "music")
	params.Set("entity", entity)
	params.Set("limit", strconv.Itoa(c.limit))
	if c.country != "" {
		params.Set("country", c.country)
	}

	body, err := c.api.GetJSON(ctx, op, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	items := gjson.GetBytes(body, "results").Array()
	if c.logger != nil {
		c.logger.Debug("itunes: search", "term", term, "entity", entity, "results", len(items))
	}
	if len(items) == 0 {
		return nil, metadata.NewProviderError(c.Name(), op, metadata.ErrNotFound)
	}
	return items, nil
}

func parseTrack(item gjson.Result) metadata.ProviderResult {
	r := metadata.ProviderResult{
		Title:       strings.TrimSpace(item.Get("trackName").String()),
		Album:       strings.TrimSpace(item.Get("collectionName").String()),
		Genre:       strings.TrimSpace(item.Get("primaryGenreName").String()),
		TrackNumber: int(item.Get("trackNumber").Int()),
		DiscNumber:  int(item.Get("discNumber").Int()),
		CoverArtURL: artwork(item),
	}
	if artist := strings.TrimSpace(item.Get("artistName").String()); artist != "" {
		r.Artists = []string{artist}
	}
	if date := item.Get("releaseDate").String(); len(date) >= 4 {
		r.Year, _ = strconv.Atoi(date[:4])
	}
	return r
}

// artwork upgrades the 100px thumbnail to the 600px rendition.
func artwork(item gjson.Result) string {
	cover := item.Get("artworkUrl100").String()
	if cover == "" {
		return ""
	}
	return strings.Replace(cover, "100x100", "600x600", 1)
}

package musicbrainz

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/liuran001/TrackFetch-Go/engine"
	"github.com/liuran001/TrackFetch-Go/engine/metadata"
	"github.com/liuran001/TrackFetch-Go/plugins/internal/apiclient"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://musicbrainz.org/ws/2"
	defaultLimit   = 5
)

// Client queries the MusicBrainz recording search. The public service allows
// one request per second per client.
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
	// Interval between requests; zero means one second.
	Interval time.Duration
	RetryMax int
	Logger   engine.Logger
}

// New creates a MusicBrainz client.
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.Limit <= 0 {
		opts.Limit = defaultLimit
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	return &Client{
		api: apiclient.New(apiclient.Options{
			Name:       "musicbrainz",
			HTTPClient: opts.HTTPClient,
			UserAgent:  opts.UserAgent,
			RetryMax:   opts.RetryMax,
			Limiter:    rate.NewLimiter(rate.Every(opts.Interval), 1),
			Logger:     opts.Logger,
		}),
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		limit:   opts.Limit,
		logger:  opts.Logger,
	}
}

func (c *Client) Name() string { return "musicbrainz" }

func (c *Client) Role() metadata.Role { return metadata.RoleDetail }

// Phrasings uses the Lucene field syntax of the recording index.
func (c *Client) Phrasings(q metadata.Query) []string {
	return metadata.BuildPhrasings(q, metadata.FieldSyntax{Title: "recording", Artist: "artist", Joiner: " AND "})
}

// Search runs one recording query.
func (c *Client) Search(ctx context.Context, phrase string) ([]metadata.ProviderResult, error) {
	params := url.Values{}
	params.Set("query", phrase)
	params.Set("fmt", "json")
	params.Set("limit", strconv.Itoa(c.limit))
	params.Set("inc", "releases+tags+artist-credits")

	body, err := c.api.GetJSON(ctx, "search", c.baseURL+"/recording?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	recordings := gjson.GetBytes(body, "recordings").Array()
	if len(recordings) == 0 {
		return nil, metadata.NewProviderError(c.Name(), "search", metadata.ErrNotFound)
	}
	results := make([]metadata.ProviderResult, 0, len(recordings))
	for _, rec := range recordings {
		results = append(results, parseRecording(rec))
	}
	if c.logger != nil {
		c.logger.Debug("musicbrainz: search", "query", phrase, "results", len(results))
	}
	return results, nil
}

func parseRecording(rec gjson.Result) metadata.ProviderResult {
	r := metadata.ProviderResult{
		Title: strings.TrimSpace(rec.Get("title").String()),
	}
	for _, credit := range rec.Get("artist-credit").Array() {
		if name := strings.TrimSpace(credit.Get("name").String()); name != "" {
			r.Artists = append(r.Artists, name)
		}
		if r.Composer == "" && credit.Get("artist.type").String() == "Person" {
			r.Composer = strings.TrimSpace(credit.Get("artist.name").String())
		}
	}

	if release := rec.Get("releases.0"); release.Exists() {
		r.Album = strings.TrimSpace(release.Get("title").String())
		r.Year = yearOf(release.Get("date").String())
		r.DiscNumber = int(release.Get("media.0.position").Int())
		r.TrackNumber = int(release.Get("media.0.tracks.0.position").Int())
		var albumArtists []string
		for _, credit := range release.Get("artist-credit").Array() {
			if name := strings.TrimSpace(credit.Get("name").String()); name != "" {
				albumArtists = append(albumArtists, name)
			}
		}
		r.AlbumArtist = strings.Join(albumArtists, ", ")
	}

	r.Genre = strings.TrimSpace(rec.Get("tags.0.name").String())
	if isrc := rec.Get("isrcs.0"); isrc.Exists() {
		r.ISRC = isrc.String()
	} else {
		r.ISRC = rec.Get("isrc-list.0").String()
	}
	return r
}

func yearOf(date string) int {
	head, _, _ := strings.Cut(strings.TrimSpace(date), "-")
	year, err := strconv.Atoi(head)
	if err != nil {
		return 0
	}
	return year
}

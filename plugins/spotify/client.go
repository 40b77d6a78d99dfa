package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/liuran001/TrackFetch-Go/engine"
	"github.com/liuran001/TrackFetch-Go/engine/metadata"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const defaultLimit = 5

// Client wraps the Spotify Web API with client-credentials auth.
type Client struct {
	api    *spotify.Client
	limit  int
	logger engine.Logger
}

// Options configures a Client.
type Options struct {
	ClientID     string
	ClientSecret string
	// TokenURL and BaseURL override the public endpoints.
	TokenURL   string
	BaseURL    string
	HTTPClient *http.Client
	Limit      int
	Logger     engine.Logger
}

// New creates a client. Tokens are fetched lazily and refreshed on expiry.
func New(opts Options) (*Client, error) {
	if opts.ClientID == "" || opts.ClientSecret == "" {
		return nil, metadata.NewProviderError("spotify", "auth", metadata.ErrAuthRequired)
	}
	if opts.TokenURL == "" {
		opts.TokenURL = spotifyauth.TokenURL
	}
	if opts.Limit <= 0 {
		opts.Limit = defaultLimit
	}

	ctx := context.Background()
	if opts.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, opts.HTTPClient)
	}
	creds := &clientcredentials.Config{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		TokenURL:     opts.TokenURL,
	}

	var clientOpts []spotify.ClientOption
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, spotify.WithBaseURL(strings.TrimRight(opts.BaseURL, "/")+"/"))
	}
	return &Client{
		api:    spotify.New(creds.Client(ctx), clientOpts...),
		limit:  opts.Limit,
		logger: opts.Logger,
	}, nil
}

func (c *Client) Name() string { return "spotify" }

func (c *Client) Role() metadata.Role { return metadata.RolePrimary }

func (c *Client) Phrasings(q metadata.Query) []string {
	return metadata.BuildPhrasings(q, metadata.FieldSyntax{Title: "track", Artist: "artist"})
}

// Search runs one track query.
func (c *Client) Search(ctx context.Context, phrase string) ([]metadata.ProviderResult, error) {
	res, err := c.api.Search(ctx, phrase, spotify.SearchTypeTrack, spotify.Limit(c.limit))
	if err != nil {
		return nil, c.wrap("search", err)
	}
	if res.Tracks == nil || len(res.Tracks.Tracks) == 0 {
		return nil, metadata.NewProviderError(c.Name(), "search", metadata.ErrNotFound)
	}

	results := make([]metadata.ProviderResult, 0, len(res.Tracks.Tracks))
	for _, track := range res.Tracks.Tracks {
		r := metadata.ProviderResult{
			Title:       strings.TrimSpace(track.Name),
			Album:       strings.TrimSpace(track.Album.Name),
			TrackNumber: int(track.TrackNumber),
			DiscNumber:  int(track.DiscNumber),
			Year:        yearOf(track.Album.ReleaseDate),
			CoverArtURL: largestImage(track.Album.Images),
		}
		for _, artist := range track.Artists {
			r.Artists = append(r.Artists, artist.Name)
		}
		if len(track.Album.Artists) > 0 {
			r.AlbumArtist = track.Album.Artists[0].Name
		}
		results = append(results, r)
	}
	if c.logger != nil {
		c.logger.Debug("spotify: search", "query", phrase, "results", len(results))
	}
	return results, nil
}

// FindAlbumCover searches albums by name.
func (c *Client) FindAlbumCover(ctx context.Context, artist, album string) (string, error) {
	q := fmt.Sprintf(`album:"%s"`, album)
	if artist != "" {
		q += fmt.Sprintf(` artist:"%s"`, artist)
	}
	res, err := c.api.Search(ctx, q, spotify.SearchTypeAlbum, spotify.Limit(1))
	if err != nil {
		return "", c.wrap("album", err)
	}
	if res.Albums != nil {
		for _, a := range res.Albums.Albums {
			if cover := largestImage(a.Images); cover != "" {
				return cover, nil
			}
		}
	}
	return "", metadata.NewProviderError(c.Name(), "album", metadata.ErrNotFound)
}

func (c *Client) wrap(op string, err error) error {
	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		return metadata.StatusError(c.Name(), op, apiErr.Status)
	}
	var tokenErr *oauth2.RetrieveError
	if errors.As(err, &tokenErr) {
		return metadata.NewProviderError(c.Name(), op, fmt.Errorf("%w: %v", metadata.ErrAuthRequired, err))
	}
	return metadata.NewProviderError(c.Name(), op, err)
}

// largestImage returns the first image; the API orders them widest first.
func largestImage(images []spotify.Image) string {
	if len(images) == 0 {
		return ""
	}
	return images[0].URL
}

func yearOf(date string) int {
	head, _, _ := strings.Cut(date, "-")
	year, err := strconv.Atoi(head)
	if err != nil {
		return 0
	}
	return year
}

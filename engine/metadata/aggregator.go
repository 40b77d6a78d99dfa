package metadata

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/liuran001/TrackFetch-Go/engine"
	"github.com/liuran001/TrackFetch-Go/engine/cache"
	"golang.org/x/sync/errgroup"
)

// Options configures the aggregator.
type Options struct {
	Providers        []Provider
	Lyrics           []LyricsProvider
	Cache            *cache.MetadataCache[*engine.MetadataRecord]
	CacheTTL         time.Duration
	ProviderTimeout  time.Duration
	AggregateTimeout time.Duration
	LyricsTimeout    time.Duration
	Logger           engine.Logger
}

// Aggregator fans a lookup out to every provider and merges the answers.
type Aggregator struct {
	providers        []Provider
	lyrics           []LyricsProvider
	cache            *cache.MetadataCache[*engine.MetadataRecord]
	cacheTTL         time.Duration
	providerTimeout  time.Duration
	aggregateTimeout time.Duration
	lyricsTimeout    time.Duration
	logger           engine.Logger
}

func New(opts Options) *Aggregator {
	if opts.ProviderTimeout <= 0 {
		opts.ProviderTimeout = 10 * time.Second
	}
	if opts.AggregateTimeout <= 0 {
		opts.AggregateTimeout = 15 * time.Second
	}
	if opts.LyricsTimeout <= 0 {
		opts.LyricsTimeout = 10 * time.Second
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Hour
	}

	providers := make([]Provider, len(opts.Providers))
	copy(providers, opts.Providers)
	sort.SliceStable(providers, func(i, j int) bool { return providers[i].Role() < providers[j].Role() })

	lyrics := make([]LyricsProvider, len(opts.Lyrics))
	copy(lyrics, opts.Lyrics)
	sort.SliceStable(lyrics, func(i, j int) bool { return lyrics[i].Rank() < lyrics[j].Rank() })

	return &Aggregator{
		providers:        providers,
		lyrics:           lyrics,
		cache:            opts.Cache,
		cacheTTL:         opts.CacheTTL,
		providerTimeout:  opts.ProviderTimeout,
		aggregateTimeout: opts.AggregateTimeout,
		lyricsTimeout:    opts.LyricsTimeout,
		logger:           opts.Logger,
	}
}

// ProviderNames lists the metadata and lyrics providers in precedence order.
func (a *Aggregator) ProviderNames() (metadata []string, lyrics []string) {
	for _, p := range a.providers {
		metadata = append(metadata, p.Name())
	}
	for _, p := range a.lyrics {
		lyrics = append(lyrics, p.Name())
	}
	return metadata, lyrics
}

func cacheKey(q Query) string {
	return fmt.Sprintf("meta:%s|%s|%s", normalize(q.Artist), normalize(q.Title), normalize(q.Album))
}

// Search looks the track up on every provider concurrently and merges the
// results. Providers that fail or time out are skipped.
func (a *Aggregator) Search(ctx context.Context, artist, title, album string) (*engine.MetadataRecord, error) {
	q := Query{Artist: strings.TrimSpace(artist), Title: strings.TrimSpace(title), Album: strings.TrimSpace(album)}
	if q.Title == "" {
		return nil, errors.New("title required")
	}

	key := cacheKey(q)
	if a.cache != nil {
		if rec, ok := a.cache.Get(key); ok {
			copied := *rec
			return &copied, nil
		}
	}

	results := a.collect(ctx, q)
	rec := Merge(results)
	if rec == nil {
		return nil, ErrNotFound
	}

	if rec.CoverArtURL == "" {
		albumTitle := q.Album
		if albumTitle == "" {
			albumTitle = rec.Album
		}
		if cover, err := a.FindAlbumCover(ctx, rec.Artist, albumTitle); err == nil {
			rec.CoverArtURL = cover
		}
	}

	if a.cache != nil {
		stored := *rec
		a.cache.Set(key, &stored, a.cacheTTL)
	}
	if a.logger != nil {
		a.logger.Debug("metadata merged", "artist", rec.Artist, "title", rec.Title, "sources", len(results))
	}
	return rec, nil
}

// collect runs every provider and returns whatever finished before the
// aggregate timeout.
func (a *Aggregator) collect(ctx context.Context, q Query) []ProviderResult {
	if len(a.providers) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, a.aggregateTimeout)
	defer cancel()

	var (
		mu      sync.Mutex
		results []ProviderResult
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range a.providers {
		g.Go(func() error {
			pctx, pcancel := context.WithTimeout(gctx, a.providerTimeout)
			defer pcancel()

			r, err := a.bestMatch(pctx, p, q)
			if err != nil {
				if a.logger != nil {
					a.logger.Debug("provider yielded nothing", "provider", p.Name(), "error", err)
				}
				return nil
			}
			mu.Lock()
			results = append(results, *r)
			mu.Unlock()
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		if a.logger != nil {
			a.logger.Warn("metadata fan-out timed out, merging partial results", "artist", q.Artist, "title", q.Title)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	out := make([]ProviderResult, len(results))
	copy(out, results)
	return out
}

// bestMatch tries each phrasing in order and stops at the first whose best
// candidate clears the threshold.
func (a *Aggregator) bestMatch(ctx context.Context, p Provider, q Query) (*ProviderResult, error) {
	var lastErr error
	for _, phrase := range p.Phrasings(q) {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		candidates, err := p.Search(ctx, phrase)
		if err != nil {
			lastErr = err
			if errors.Is(err, ErrAuthRequired) || errors.Is(err, ErrUnavailable) || errors.Is(err, ErrRateLimited) {
				break
			}
			continue
		}
		top, ok := best(q, candidates)
		if !ok {
			continue
		}
		if top.Score >= MatchThreshold {
			top.Provider = p.Name()
			top.Role = p.Role()
			return &top, nil
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, NewProviderError(p.Name(), "search", ErrNoMatch)
}

// FindAlbumCover asks providers that support album lookups, in role order.
func (a *Aggregator) FindAlbumCover(ctx context.Context, artist, album string) (string, error) {
	if strings.TrimSpace(album) == "" {
		return "", ErrNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, a.providerTimeout)
	defer cancel()

	for _, p := range a.providers {
		finder, ok := p.(AlbumCoverFinder)
		if !ok {
			continue
		}
		url, err := finder.FindAlbumCover(ctx, artist, album)
		if err != nil {
			if a.logger != nil {
				a.logger.Debug("album cover lookup failed", "provider", p.Name(), "error", err)
			}
			continue
		}
		if url != "" {
			return url, nil
		}
	}
	return "", ErrNotFound
}

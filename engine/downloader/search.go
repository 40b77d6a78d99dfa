package downloader

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/liuran001/TrackFetch-Go/engine"
	"github.com/liuran001/TrackFetch-Go/engine/cache"
	"github.com/lrstanley/go-ytdlp"
	"golang.org/x/time/rate"
)

// Searcher resolves a free-text query into playable candidates.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]engine.SearchResult, error)
}

const searchTemplate = "%(id)s\t%(title)s\t%(url)s\t%(uploader)s\t%(duration)s"

type searchRunner func(ctx context.Context, query string, limit int) (string, error)

// SearcherOptions configures a YtDlpSearcher.
type SearcherOptions struct {
	Executable string
	Proxy      string
	Cache      *cache.MetadataCache[[]engine.SearchResult]
	CacheTTL   time.Duration
	// RatePerSecond throttles searches; zero disables throttling.
	RatePerSecond float64
	Logger        engine.Logger
}

// YtDlpSearcher searches through yt-dlp's ytsearch extractor.
type YtDlpSearcher struct {
	cache    *cache.MetadataCache[[]engine.SearchResult]
	cacheTTL time.Duration
	limiter  *rate.Limiter
	logger   engine.Logger
	run      searchRunner
}

// NewSearcher creates a searcher.
func NewSearcher(opts SearcherOptions) *YtDlpSearcher {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Hour
	}
	s := &YtDlpSearcher{
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		logger:   opts.Logger,
	}
	if opts.RatePerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), 1)
	}
	s.run = func(ctx context.Context, query string, limit int) (string, error) {
		cmd := ytdlp.New().
			FlatPlaylist().
			Print(searchTemplate).
			NoWarnings().
			IgnoreConfig()
		if opts.Executable != "" {
			cmd.SetExecutable(opts.Executable)
		}
		if opts.Proxy != "" {
			cmd.Proxy(opts.Proxy)
		}
		res, err := cmd.Run(ctx, fmt.Sprintf("ytsearch%d:%s", limit, query))
		if err != nil {
			return "", toolError(res, err)
		}
		return res.Stdout, nil
	}
	return s
}

// Search returns up to limit candidates. Results are cached per query.
func (s *YtDlpSearcher) Search(ctx context.Context, query string, limit int) ([]engine.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrNoResults
	}
	if limit <= 0 {
		limit = 1
	}

	key := fmt.Sprintf("search:%s:%d", strings.ToLower(query), limit)
	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			return cached, nil
		}
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	out, err := s.run(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	results := parseSearchOutput(out, limit)
	if s.logger != nil {
		s.logger.Debug("search finished", "query", query, "results", len(results))
	}
	if len(results) > 0 && s.cache != nil {
		s.cache.Set(key, results, s.cacheTTL)
	}
	return results, nil
}

func parseSearchOutput(out string, limit int) []engine.SearchResult {
	var results []engine.SearchResult
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		fields := strings.Split(strings.TrimRight(line, "\r"), "\t")
		if len(fields) < 3 {
			continue
		}
		id, title, url := strings.TrimSpace(fields[0]), strings.TrimSpace(fields[1]), strings.TrimSpace(fields[2])
		if id == "" || url == "" || url == "NA" {
			continue
		}
		r := engine.SearchResult{ID: id, Title: title, URL: url}
		if len(fields) > 3 && fields[3] != "NA" {
			r.Uploader = strings.TrimSpace(fields[3])
		}
		if len(fields) > 4 {
			if secs, err := strconv.ParseFloat(strings.TrimSpace(fields[4]), 64); err == nil {
				r.Duration = int(secs)
			}
		}
		results = append(results, r)
		if len(results) == limit {
			break
		}
	}
	return results
}

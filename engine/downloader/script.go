package downloader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/liuran001/TrackFetch-Go/engine"
	"github.com/liuran001/TrackFetch-Go/engine/audio"
	"github.com/liuran001/TrackFetch-Go/engine/embed"
	"github.com/liuran001/TrackFetch-Go/engine/metadata"
)

// Caller sends one request to the external processor.
type Caller interface {
	Call(ctx context.Context, req *embed.Request) (*embed.Response, error)
}

// MetadataSource is the aggregator as seen by the fallback strategy.
type MetadataSource interface {
	Search(ctx context.Context, artist, title, album string) (*engine.MetadataRecord, error)
	SearchLyrics(ctx context.Context, artist, title string) (string, error)
}

// CoverFetcher downloads cover art bytes.
type CoverFetcher func(ctx context.Context, url string) ([]byte, error)

// ScriptOptions configures the fallback strategy.
type ScriptOptions struct {
	Processor Caller
	Metadata  MetadataSource
	Searcher  Searcher
	// Covers fetches artwork in-process; without it the processor is given
	// the URL and fetches it itself.
	Covers      CoverFetcher
	CoverMaxPx  int
	DownloadDir string
	Logger      engine.Logger
}

// Script delegates download and embedding to the processor script.
type Script struct {
	opts    ScriptOptions
	tracker *tracker
}

var scriptFormats = []engine.Format{engine.FormatMP3, engine.FormatM4A, engine.FormatFLAC, engine.FormatWAV}

// NewScript creates the fallback strategy.
func NewScript(opts ScriptOptions) *Script {
	return &Script{opts: opts, tracker: newTracker()}
}

func (s *Script) Name() string { return "script" }

// EmbedsMetadata reports that Fetch already tags the file.
func (s *Script) EmbedsMetadata() bool { return true }

func (s *Script) SupportsFormat(format engine.Format) bool {
	for _, f := range scriptFormats {
		if f == format {
			return true
		}
	}
	return false
}

// Fetch asks the processor to download the track, then embeds metadata,
// cover art and lyrics through the same channel.
func (s *Script) Fetch(ctx context.Context, job *Job, progress ProgressFunc) (*Result, error) {
	if s.opts.Processor == nil {
		return nil, embed.ErrNotConfigured
	}
	if job == nil || job.DestPath == "" {
		return nil, errors.New("job destination missing")
	}
	run := s.tracker.start(job.ID)
	defer s.tracker.finish(run)
	report := func(phase string, pct float64) {
		s.tracker.report(run, progress, Progress{TaskID: job.ID, Status: phase, Progress: pct})
	}

	track := job.Track
	source := strings.TrimSpace(track.URL)
	if source == "" && s.opts.Searcher != nil {
		report(PhaseSearching, 5)
		results, err := s.opts.Searcher.Search(ctx, track.Query(), 1)
		if err != nil {
			return nil, err
		}
		if len(results) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrNoResults, track.Query())
		}
		source = results[0].URL
	}

	downloadDir := s.opts.DownloadDir
	if downloadDir == "" {
		downloadDir = filepath.Dir(job.DestPath)
	}
	report(PhaseDownloading, 10)
	resp, err := s.opts.Processor.Call(ctx, &embed.Request{
		Action:       "download",
		TaskID:       job.ID,
		URL:          source,
		OutputPath:   job.DestPath,
		DownloadDir:  downloadDir,
		Format:       track.Format.String(),
		Quality:      track.Quality.String(),
		Title:        track.Title,
		Artist:       track.Artist,
		Album:        track.Album,
		Year:         track.Year,
		Genre:        track.Genre,
		ThumbnailURL: track.ThumbnailURL,
	})
	if err != nil {
		return nil, fmt.Errorf("script download: %w", err)
	}

	path := job.DestPath
	if resp.FilePath != "" {
		path = resp.FilePath
	}
	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("script reported success but produced no file: %w", err)
	}

	if s.tracker.cancelled(run) {
		return nil, fmt.Errorf("%w: %s", ErrCancelled, job.ID)
	}
	report(PhaseEmbedding, 90)
	s.embed(ctx, path, track)

	report(PhaseCompleted, 100)
	return &Result{Path: path, Size: stat.Size(), SourceURL: source, Embedded: true}, nil
}

// embed tags the file. Every failure here is logged only.
func (s *Script) embed(ctx context.Context, path string, track engine.TrackRef) {
	artist, title := track.Artist, track.Title
	if artist == "" || strings.Contains(title, " - ") {
		artist, title = metadata.ParseVideoTitle(artist, title)
	}

	var rec *engine.MetadataRecord
	if s.opts.Metadata != nil {
		found, err := s.opts.Metadata.Search(ctx, artist, title, track.Album)
		if err != nil {
			s.warn("metadata search failed", path, err)
		} else if found != nil {
			copied := *found
			rec = &copied
		}
	}
	if rec == nil {
		rec = &engine.MetadataRecord{Title: title, Artist: artist, Album: track.Album, Year: track.Year, Genre: track.Genre}
	}
	rec.TrackNumber = track.Order

	if _, err := s.opts.Processor.Call(ctx, &embed.Request{Action: "embed_metadata", FilePath: path, Metadata: embed.Sanitize(rec)}); err != nil {
		s.warn("embed metadata failed", path, err)
	}

	coverURL := rec.CoverArtURL
	if coverURL == "" {
		coverURL = track.ThumbnailURL
	}
	if coverURL != "" {
		if cover := s.cover(ctx, coverURL); cover != nil {
			if _, err := s.opts.Processor.Call(ctx, &embed.Request{Action: "embed_cover_art", FilePath: path, CoverArt: cover}); err != nil {
				s.warn("embed cover failed", path, err)
			}
		}
	}

	if s.opts.Metadata != nil {
		lyrics, err := s.opts.Metadata.SearchLyrics(ctx, rec.Artist, rec.Title)
		if err != nil {
			s.warn("lyrics search failed", path, err)
		}
		if lyrics != "" {
			if _, err := s.opts.Processor.Call(ctx, &embed.Request{Action: "embed_lyrics", FilePath: path, Lyrics: lyrics}); err != nil {
				s.warn("embed lyrics failed", path, err)
			}
		}
	}
}

func (s *Script) cover(ctx context.Context, url string) *embed.CoverArt {
	if s.opts.Covers == nil {
		return &embed.CoverArt{URL: url}
	}
	data, err := s.opts.Covers(ctx, url)
	if err != nil {
		s.warn("cover fetch failed", url, err)
		return nil
	}
	mime := audio.DetectMIME(data)
	if s.opts.CoverMaxPx > 0 {
		if resized, resizedMIME, err := audio.ResizeCover(data, s.opts.CoverMaxPx); err == nil {
			data, mime = resized, resizedMIME
		}
	}
	return &embed.CoverArt{Data: data, MimeType: mime, URL: url}
}

func (s *Script) warn(msg, path string, err error) {
	if s.opts.Logger != nil {
		s.opts.Logger.Warn(msg, "path", path, "error", err)
	}
}

func (s *Script) Pause(string) error  { return ErrUnsupported }
func (s *Script) Resume(string) error { return ErrUnsupported }

// Cancel records intent; the running script is not interrupted.
func (s *Script) Cancel(id string) error {
	return s.tracker.cancel(id)
}

func (s *Script) Progress(string) (Progress, error) {
	return Progress{}, ErrUnsupported
}

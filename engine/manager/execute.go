package manager

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/liuran001/TrackFetch-Go/engine"
	"github.com/liuran001/TrackFetch-Go/engine/audio"
	"github.com/liuran001/TrackFetch-Go/engine/downloader"
	"github.com/liuran001/TrackFetch-Go/engine/metadata"
	"golang.org/x/sync/errgroup"
)

// execute runs one promoted task. It owns exactly one active slot, released
// on every exit path.
func (m *Manager) execute(task *Task) {
	defer m.release(task.ID, task.run)
	ctx := m.unitCtx
	logger := m.taskLogger(task)

	strategy, err := m.opts.Strategies.Select(task.Track.Format)
	if err != nil {
		m.fail(task, err)
		return
	}
	m.mu.Lock()
	if t := m.currentLocked(task.ID, task.run); t != nil {
		t.Strategy = strategy.Name()
		m.running[task.ID] = runningTask{strategy: strategy, run: task.run}
	}
	m.mu.Unlock()

	selfEmbeds := false
	if se, ok := strategy.(downloader.SelfEmbedding); ok {
		selfEmbeds = se.EmbedsMetadata()
	}

	job := &downloader.Job{ID: task.ID, Track: task.Track, DestPath: task.DestPath}
	var (
		res    *downloader.Result
		rec    *engine.MetadataRecord
		lyrics string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		res, err = strategy.Fetch(gctx, job, func(p downloader.Progress) {
			m.updateProgress(task.ID, task.run, p.Progress)
		})
		return err
	})
	if !selfEmbeds && m.opts.Metadata != nil && m.opts.Embedder != nil {
		// Lookup failures never fail the task.
		g.Go(func() error {
			rec, lyrics = m.lookup(gctx, task.Track)
			return nil
		})
	}
	fetchErr := g.Wait()

	m.mu.Lock()
	t := m.currentLocked(task.ID, task.run)
	if t == nil || t.Status != StatusDownloading {
		m.mu.Unlock()
		logger.Info("task changed while fetching, keeping its state", "error", fetchErr)
		return
	}
	if fetchErr != nil {
		m.mu.Unlock()
		m.fail(task, fetchErr)
		return
	}
	t.Status = StatusProcessing
	m.mu.Unlock()

	if res == nil {
		res = &downloader.Result{Path: task.DestPath}
	}
	if res.Path == "" {
		res.Path = task.DestPath
	}
	if !res.Embedded {
		m.embed(ctx, task, res.Path, rec, lyrics)
	}

	m.mu.Lock()
	t = m.currentLocked(task.ID, task.run)
	if t == nil || t.Status != StatusProcessing {
		m.mu.Unlock()
		return
	}
	completed := m.now()
	t.Status = StatusCompleted
	t.Progress = 100
	t.CompletedAt = &completed
	m.mu.Unlock()

	m.record(engine.StatCompleted)
	logger.Info("task completed", "strategy", strategy.Name(), "path", res.Path, "elapsed", completed.Sub(*task.StartedAt))
}

func (m *Manager) taskLogger(task *Task) engine.Logger {
	return m.opts.Logger.With("task", task.ID)
}

// currentLocked returns the task only if it is still on the given run.
func (m *Manager) currentLocked(id string, run uint64) *Task {
	t, ok := m.tasks[id]
	if !ok || t.run != run {
		return nil
	}
	return t
}

// release frees the slot and hands it straight to the next pending task, so
// a started batch keeps draining even with auto-start off.
func (m *Manager) release(id string, run uint64) {
	m.mu.Lock()
	m.active--
	if m.active < 0 {
		m.active = 0
		m.opts.Logger.Error("active counter went negative", "task", id)
	}
	if rt, ok := m.running[id]; ok && rt.run == run {
		delete(m.running, id)
	}
	var next *Task
	if !m.stopped() && m.active < m.opts.MaxConcurrent {
		if t := m.nextPendingLocked(true); t != nil {
			m.activateLocked(t)
			next = t.clone()
		}
	}
	m.mu.Unlock()

	if next != nil {
		m.dispatch(next)
	}
	m.signal()
}

func (m *Manager) fail(task *Task, err error) {
	m.mu.Lock()
	t := m.currentLocked(task.ID, task.run)
	if t == nil || !t.Status.IsActive() {
		m.mu.Unlock()
		return
	}
	t.Status = StatusFailed
	t.Error = err.Error()
	m.mu.Unlock()

	m.record(engine.StatFailed)
	m.taskLogger(task).Warn("task failed", "error", err)
}

func (m *Manager) updateProgress(id string, run uint64, pct float64) {
	if pct < 0 {
		pct = 0
	}
	if pct > 99 {
		pct = 99
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if t := m.currentLocked(id, run); t != nil && t.Status == StatusDownloading {
		t.Progress = pct
	}
}

func (m *Manager) record(key string) {
	if m.opts.Stats == nil {
		return
	}
	if err := m.opts.Stats.Increment(context.Background(), key, 1); err != nil && m.opts.Logger != nil {
		m.opts.Logger.Warn("failed to record stat", "key", key, "error", err)
	}
}

// searchTerms returns the artist and title to look up, splitting video-style
// titles when no artist was given.
func searchTerms(track engine.TrackRef) (string, string) {
	if track.Artist == "" || strings.Contains(track.Title, " - ") {
		return metadata.ParseVideoTitle(track.Artist, track.Title)
	}
	return track.Artist, track.Title
}

func (m *Manager) lookup(ctx context.Context, track engine.TrackRef) (*engine.MetadataRecord, string) {
	artist, title := searchTerms(track)
	var (
		rec    *engine.MetadataRecord
		lyrics string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		found, err := m.opts.Metadata.Search(gctx, artist, title, track.Album)
		if err != nil {
			if m.opts.Logger != nil {
				m.opts.Logger.Debug("metadata lookup failed", "artist", artist, "title", title, "error", err)
			}
			return nil
		}
		if found != nil {
			copied := *found
			rec = &copied
		}
		return nil
	})
	g.Go(func() error {
		found, err := m.opts.Metadata.SearchLyrics(gctx, artist, title)
		if err != nil && m.opts.Logger != nil {
			m.opts.Logger.Debug("lyrics lookup failed", "artist", artist, "title", title, "error", err)
		}
		lyrics = found
		return nil
	})
	_ = g.Wait()
	return rec, lyrics
}

// embed writes tags into the fetched file. Failures are logged only.
func (m *Manager) embed(ctx context.Context, task *Task, path string, found *engine.MetadataRecord, lyrics string) {
	if m.opts.Embedder == nil {
		return
	}
	logger := m.taskLogger(task)

	rec := m.finalRecord(ctx, task, path, found)
	if err := m.opts.Embedder.EmbedMetadata(ctx, path, rec); err != nil {
		logger.Warn("embed metadata failed", "path", path, "error", err)
	}

	coverURL := rec.CoverArtURL
	if coverURL == "" {
		coverURL = task.Track.ThumbnailURL
	}
	if coverURL != "" {
		data, mime, err := m.coverArt(ctx, coverURL)
		if err != nil {
			logger.Warn("cover art unavailable", "url", coverURL, "error", err)
		} else if err := m.opts.Embedder.EmbedCoverArt(ctx, path, data, mime); err != nil {
			logger.Warn("embed cover art failed", "path", path, "error", err)
		}
	}

	if lyrics == "" {
		lyrics = rec.Lyrics
	}
	if lyrics != "" {
		if err := m.opts.Embedder.EmbedLyrics(ctx, path, lyrics); err != nil {
			logger.Warn("embed lyrics failed", "path", path, "error", err)
		}
	}

	format := task.Track.Format
	if parsed, err := engine.ParseFormat(filepath.Ext(path)); err == nil {
		format = parsed
	}
	report, err := m.opts.Embedder.Validate(ctx, path, format)
	switch {
	case err != nil:
		logger.Debug("post-embed check unavailable", "error", err)
	case report != nil && !report.Valid:
		logger.Warn("embedded tags incomplete", "missing", report.Missing, "cover", report.Cover, "lyrics", report.Lyrics)
	}
}

// finalRecord picks the merged record, or the file's own tags, and fills the
// gaps from the submitted hints. The track number is always the submitted
// order.
func (m *Manager) finalRecord(ctx context.Context, task *Task, path string, found *engine.MetadataRecord) *engine.MetadataRecord {
	rec := found
	if !rec.Usable() {
		read, err := m.opts.Embedder.ReadMetadata(ctx, path)
		if err != nil {
			m.taskLogger(task).Debug("no basic metadata from file", "error", err)
			rec = &engine.MetadataRecord{}
		} else {
			copied := *read
			rec = &copied
		}
	}

	track := task.Track
	artist, title := searchTerms(track)
	fill := func(dst *string, value string) {
		if *dst == "" {
			*dst = value
		}
	}
	fill(&rec.Title, title)
	fill(&rec.Artist, artist)
	fill(&rec.Album, track.Album)
	fill(&rec.Genre, track.Genre)
	fill(&rec.AlbumArtist, track.AlbumArtist)
	fill(&rec.Composer, track.Composer)
	fill(&rec.ISRC, track.ISRC)
	if rec.Year == 0 {
		rec.Year = track.Year
	}
	if rec.DiscNumber == 0 {
		rec.DiscNumber = track.DiscNumber
	}
	rec.TrackNumber = task.Order
	return rec
}

// coverArt returns cover bytes, served from the file cache when possible.
func (m *Manager) coverArt(ctx context.Context, url string) ([]byte, string, error) {
	key := "cover:" + url
	if m.opts.CoverCache != nil {
		if data, ok := m.opts.CoverCache.Get(key); ok {
			return data, audio.DetectMIME(data), nil
		}
	}
	if m.opts.Covers == nil {
		return nil, "", errors.New("no cover fetcher configured")
	}
	data, err := m.opts.Covers(ctx, url)
	if err != nil {
		return nil, "", err
	}
	mime := audio.DetectMIME(data)
	if m.opts.CoverMaxPx > 0 {
		if resized, resizedMIME, err := audio.ResizeCover(data, m.opts.CoverMaxPx); err == nil {
			data, mime = resized, resizedMIME
		}
	}
	if m.opts.CoverCache != nil {
		if err := m.opts.CoverCache.Put(ctx, key, data); err != nil && m.opts.Logger != nil {
			m.opts.Logger.Debug("cover not cached", "url", url, "error", err)
		}
	}
	return data, mime, nil
}

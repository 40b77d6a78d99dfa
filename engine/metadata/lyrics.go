package metadata

import (
	"context"
	"strings"
)

type lyricsOutcome struct {
	index  int
	lyrics string
	err    error
}

// SearchLyrics queries every lyrics provider concurrently and returns the
// first non-empty result in rank order. Synced lyrics are normalised to
// [mm:ss.xx]. An empty string with a nil error means nothing was found.
func (a *Aggregator) SearchLyrics(ctx context.Context, artist, title string) (string, error) {
	if len(a.lyrics) == 0 || strings.TrimSpace(title) == "" {
		return "", nil
	}

	ctx, cancel := context.WithTimeout(ctx, a.lyricsTimeout)
	defer cancel()

	outcomes := make(chan lyricsOutcome, len(a.lyrics))
	for i, p := range a.lyrics {
		go func() {
			text, err := p.Lyrics(ctx, artist, title)
			outcomes <- lyricsOutcome{index: i, lyrics: strings.TrimSpace(text), err: err}
		}()
	}

	done := make([]bool, len(a.lyrics))
	found := make([]string, len(a.lyrics))
	for received := 0; received < len(a.lyrics); received++ {
		select {
		case <-ctx.Done():
			if a.logger != nil {
				a.logger.Debug("lyrics search timed out", "artist", artist, "title", title)
			}
			return a.pickLyrics(done, found, true), nil
		case out := <-outcomes:
			done[out.index] = true
			if out.err != nil && a.logger != nil {
				a.logger.Debug("lyrics provider failed", "provider", a.lyrics[out.index].Name(), "error", out.err)
			}
			found[out.index] = out.lyrics
			if text := a.pickLyrics(done, found, false); text != "" {
				return text, nil
			}
		}
	}
	return "", nil
}

// pickLyrics walks providers in rank order. Unless partial is set it stops at
// the first provider that has not answered yet, so a lower ranked answer never
// beats a better ranked one that is still in flight.
func (a *Aggregator) pickLyrics(done []bool, found []string, partial bool) string {
	for i := range a.lyrics {
		if !done[i] {
			if partial {
				continue
			}
			return ""
		}
		if found[i] != "" {
			if a.logger != nil {
				a.logger.Debug("lyrics found", "provider", a.lyrics[i].Name())
			}
			return NormalizeLRC(found[i])
		}
	}
	return ""
}

package embed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/liuran001/TrackFetch-Go/engine"
	"github.com/liuran001/TrackFetch-Go/engine/audio"
)

// Embedder writes tags into a finished audio file.
type Embedder interface {
	EmbedMetadata(ctx context.Context, path string, rec *engine.MetadataRecord) error
	EmbedLyrics(ctx context.Context, path, lyrics string) error
	EmbedCoverArt(ctx context.Context, path string, data []byte, mime string) error
	ReadMetadata(ctx context.Context, path string) (*engine.MetadataRecord, error)
	Validate(ctx context.Context, path string, format engine.Format) (*Report, error)
}

// Report is the informational result of a post-embedding check.
type Report struct {
	Valid   bool
	Missing []string
	Cover   bool
	Lyrics  bool
}

var _ Embedder = (*Processor)(nil)

func (p *Processor) EmbedMetadata(ctx context.Context, path string, rec *engine.MetadataRecord) error {
	if rec == nil {
		return nil
	}
	_, err := p.Call(ctx, &Request{Action: "embed_metadata_only", FilePath: path, Metadata: Sanitize(rec)})
	return err
}

func (p *Processor) EmbedLyrics(ctx context.Context, path, lyrics string) error {
	if strings.TrimSpace(lyrics) == "" {
		return nil
	}
	_, err := p.Call(ctx, &Request{Action: "embed_lyrics", FilePath: path, Lyrics: lyrics})
	return err
}

func (p *Processor) EmbedCoverArt(ctx context.Context, path string, data []byte, mime string) error {
	if len(data) == 0 {
		return nil
	}
	_, err := p.Call(ctx, &Request{Action: "embed_cover_art", FilePath: path, CoverArt: &CoverArt{Data: data, MimeType: mime}})
	return err
}

func (p *Processor) ReadMetadata(ctx context.Context, path string) (*engine.MetadataRecord, error) {
	resp, err := p.Call(ctx, &Request{Action: "read_metadata", FilePath: path})
	if err != nil {
		return nil, err
	}
	if !resp.Metadata.Usable() {
		return nil, errors.New("processor returned no metadata")
	}
	return resp.Metadata, nil
}

func (p *Processor) Validate(ctx context.Context, path string, format engine.Format) (*Report, error) {
	resp, err := p.Call(ctx, &Request{Action: fmt.Sprintf("validate_%s_metadata", format), FilePath: path})
	if resp == nil {
		return nil, err
	}
	return &Report{
		Valid:   err == nil && len(resp.MissingRequiredFields) == 0,
		Missing: resp.MissingRequiredFields,
		Cover:   resp.CoverArtPresent,
		Lyrics:  resp.LyricsPresent,
	}, nil
}

// Sanitize trims fields and drops control characters that break the
// processor's JSON handling.
func Sanitize(rec *engine.MetadataRecord) *engine.MetadataRecord {
	if rec == nil {
		return nil
	}
	out := *rec
	for _, field := range []*string{&out.Title, &out.Artist, &out.Album, &out.Genre, &out.AlbumArtist, &out.Composer, &out.ISRC, &out.CoverArtURL} {
		*field = cleanString(*field)
	}
	return &out
}

func cleanString(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s))
}

// WithLocalFallback returns an Embedder that tries the processor first and
// falls back to in-process tagging for formats the local tagger can write.
func WithLocalFallback(processor *Processor, tagger *audio.Tagger, logger engine.Logger) Embedder {
	return &fallbackEmbedder{processor: processor, tagger: tagger, logger: logger}
}

type fallbackEmbedder struct {
	processor *Processor
	tagger    *audio.Tagger
	logger    engine.Logger
}

func (f *fallbackEmbedder) useLocal(path string, err error, action string) bool {
	if f.tagger == nil || !f.tagger.Supports(path) {
		return false
	}
	if f.logger != nil && !errors.Is(err, ErrNotConfigured) {
		f.logger.Warn("processor failed, tagging locally", "action", action, "path", path, "error", err)
	}
	return true
}

func (f *fallbackEmbedder) EmbedMetadata(ctx context.Context, path string, rec *engine.MetadataRecord) error {
	err := f.processor.EmbedMetadata(ctx, path, rec)
	if err != nil && f.useLocal(path, err, "embed_metadata_only") {
		return f.tagger.WriteMetadata(path, Sanitize(rec))
	}
	return err
}

func (f *fallbackEmbedder) EmbedLyrics(ctx context.Context, path, lyrics string) error {
	err := f.processor.EmbedLyrics(ctx, path, lyrics)
	if err != nil && f.useLocal(path, err, "embed_lyrics") {
		return f.tagger.WriteLyrics(path, lyrics)
	}
	return err
}

func (f *fallbackEmbedder) EmbedCoverArt(ctx context.Context, path string, data []byte, mime string) error {
	err := f.processor.EmbedCoverArt(ctx, path, data, mime)
	if err != nil && f.useLocal(path, err, "embed_cover_art") {
		return f.tagger.WriteCover(path, data, mime)
	}
	return err
}

func (f *fallbackEmbedder) ReadMetadata(ctx context.Context, path string) (*engine.MetadataRecord, error) {
	rec, err := f.processor.ReadMetadata(ctx, path)
	if err == nil {
		return rec, nil
	}
	local, lerr := audio.ReadTags(path)
	if lerr != nil {
		return nil, errors.Join(err, lerr)
	}
	return local, nil
}

func (f *fallbackEmbedder) Validate(ctx context.Context, path string, format engine.Format) (*Report, error) {
	report, err := f.processor.Validate(ctx, path, format)
	if report != nil {
		return report, nil
	}
	local, lerr := audio.Inspect(path)
	if lerr != nil {
		return nil, errors.Join(err, lerr)
	}
	missing := local.Missing()
	return &Report{
		Valid:   len(missing) == 0,
		Missing: missing,
		Cover:   local.Cover,
		Lyrics:  local.Lyrics,
	}, nil
}

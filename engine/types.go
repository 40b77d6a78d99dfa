package engine

import (
	"fmt"
	"strings"
	"time"
)

// Format is the requested container/codec of a downloaded track.
type Format string

const (
	FormatMP3  Format = "mp3"
	FormatM4A  Format = "m4a"
	FormatFLAC Format = "flac"
	FormatWAV  Format = "wav"
	FormatOGG  Format = "ogg"
	FormatWebM Format = "webm"
	FormatOpus Format = "opus"
)

// AudioExtensions lists every extension the fetch tool may produce, in lookup order.
var AudioExtensions = []Format{FormatMP3, FormatM4A, FormatFLAC, FormatWAV, FormatOGG, FormatWebM, FormatOpus}

// ParseFormat converts a user supplied string into a Format.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")))
	for _, known := range AudioExtensions {
		if f == known {
			return f, nil
		}
	}
	return FormatMP3, fmt.Errorf("unknown audio format: %s", s)
}

// IsLossless reports whether the format carries uncompressed or lossless audio.
func (f Format) IsLossless() bool {
	return f == FormatFLAC || f == FormatWAV
}

// Codec returns the ffmpeg audio codec used when transcoding into f.
func (f Format) Codec() string {
	switch f {
	case FormatMP3:
		return "libmp3lame"
	case FormatM4A:
		return "aac"
	default:
		return "copy"
	}
}

func (f Format) String() string {
	return string(f)
}

// Quality is the preferred bitrate tier for lossy formats.
type Quality int

const (
	QualityLow Quality = iota
	QualityMedium
	QualityHigh
	QualityBest
)

func (q Quality) String() string {
	switch q {
	case QualityLow:
		return "low"
	case QualityMedium:
		return "medium"
	case QualityHigh:
		return "high"
	case QualityBest:
		return "best"
	default:
		return "unknown"
	}
}

// Bitrate returns the target bitrate in kbps for the tier.
func (q Quality) Bitrate() int {
	switch q {
	case QualityLow:
		return 128
	case QualityMedium:
		return 192
	case QualityHigh:
		return 256
	case QualityBest:
		return 320
	default:
		return 192
	}
}

// ParseQuality converts a string to a Quality tier.
func ParseQuality(s string) (Quality, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return QualityLow, nil
	case "medium":
		return QualityMedium, nil
	case "high":
		return QualityHigh, nil
	case "best":
		return QualityBest, nil
	default:
		return QualityHigh, fmt.Errorf("unknown quality level: %s", s)
	}
}

// TrackRef identifies what to download. URL may be empty, in which case the
// downloader resolves a source by searching for Artist and Title.
type TrackRef struct {
	Artist       string
	Title        string
	Album        string
	URL          string
	Format       Format
	Quality      Quality
	Order        int
	ThumbnailURL string
	Year         int
	Genre        string
	DiscNumber   int
	AlbumArtist  string
	Composer     string
	ISRC         string
}

// Query returns the free text search phrase for the track.
func (t TrackRef) Query() string {
	return strings.TrimSpace(t.Artist + " " + t.Title)
}

// MetadataRecord is the merged tag set handed to the embedding collaborator.
type MetadataRecord struct {
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	Album       string `json:"album,omitempty"`
	Year        int    `json:"year,omitempty"`
	Genre       string `json:"genre,omitempty"`
	TrackNumber int    `json:"track_number,omitempty"`
	DiscNumber  int    `json:"disc_number,omitempty"`
	AlbumArtist string `json:"album_artist,omitempty"`
	Composer    string `json:"composer,omitempty"`
	ISRC        string `json:"isrc,omitempty"`
	CoverArtURL string `json:"cover_art_url,omitempty"`
	Lyrics      string `json:"lyrics,omitempty"`
}

// Usable reports whether the record carries enough to be embedded.
func (m *MetadataRecord) Usable() bool {
	return m != nil && (strings.TrimSpace(m.Title) != "" || strings.TrimSpace(m.Artist) != "")
}

// SearchResult is a playable candidate returned by the search collaborator.
type SearchResult struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	Uploader string `json:"uploader,omitempty"`
	Duration int    `json:"duration,omitempty"`
}

// CachedFile is one blob tracked by the file cache.
type CachedFile struct {
	Key       string
	Path      string
	Size      int64
	CreatedAt time.Time
}

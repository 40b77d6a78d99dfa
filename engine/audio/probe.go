package audio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/liuran001/TrackFetch-Go/engine"
	"go.senan.xyz/taglib"
)

// MinValidSize is the smallest file considered a real audio file.
const MinValidSize = 1024

// Info holds the stream properties of an audio file.
type Info struct {
	Duration   time.Duration
	Bitrate    int
	SampleRate int
	Channels   int
}

// Probe reads the stream properties of path.
func Probe(path string) (Info, error) {
	props, err := taglib.ReadProperties(path)
	if err != nil {
		return Info{}, fmt.Errorf("probe %s: %w", filepath.Base(path), err)
	}
	return Info{
		Duration:   props.Length,
		Bitrate:    int(props.Bitrate),
		SampleRate: int(props.SampleRate),
		Channels:   int(props.Channels),
	}, nil
}

// IsValidAudio reports whether path looks like a complete, playable audio file.
func IsValidAudio(path string) bool {
	stat, err := os.Stat(path)
	if err != nil || stat.IsDir() || stat.Size() < MinValidSize {
		return false
	}
	if _, err := engine.ParseFormat(filepath.Ext(path)); err != nil {
		return false
	}
	info, err := Probe(path)
	if err != nil {
		return false
	}
	return info.Duration > 0
}

// ReadTags reads the basic tag set of path into a metadata record.
func ReadTags(path string) (*engine.MetadataRecord, error) {
	tags, err := taglib.ReadTags(path)
	if err != nil {
		return nil, fmt.Errorf("read tags %s: %w", filepath.Base(path), err)
	}
	rec := &engine.MetadataRecord{
		Title:       firstTag(tags, "TITLE"),
		Artist:      firstTag(tags, "ARTIST"),
		Album:       firstTag(tags, "ALBUM"),
		Genre:       firstTag(tags, "GENRE"),
		AlbumArtist: firstTag(tags, "ALBUMARTIST"),
		Composer:    firstTag(tags, "COMPOSER"),
		ISRC:        firstTag(tags, "ISRC"),
		Lyrics:      firstTag(tags, "LYRICS"),
		Year:        leadingInt(firstTag(tags, "DATE")),
		TrackNumber: leadingInt(firstTag(tags, "TRACKNUMBER")),
		DiscNumber:  leadingInt(firstTag(tags, "DISCNUMBER")),
	}
	if !rec.Usable() {
		return nil, errors.New("no usable tags")
	}
	return rec, nil
}

func firstTag(tags map[string][]string, key string) string {
	values := tags[key]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// leadingInt parses "2019-04-01" as 2019 and "3/12" as 3.
func leadingInt(s string) int {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	n, _ := strconv.Atoi(s[:end])
	return n
}

package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bogem/id3v2"
	"github.com/go-flac/flacpicture"
	"github.com/go-flac/flacvorbis"
	"github.com/go-flac/go-flac"
)

// TagReport lists which tag fields are present in a file.
type TagReport struct {
	Format      string
	Title       bool
	Artist      bool
	Album       bool
	TrackNumber bool
	Lyrics      bool
	Cover       bool
}

// Missing returns the names of absent required fields. Cover and lyrics are
// optional.
func (r TagReport) Missing() []string {
	var missing []string
	if !r.Title {
		missing = append(missing, "title")
	}
	if !r.Artist {
		missing = append(missing, "artist")
	}
	if !r.Album {
		missing = append(missing, "album")
	}
	if !r.TrackNumber {
		missing = append(missing, "track_number")
	}
	return missing
}

// Inspect dispatches on the file extension. Formats without a local reader
// return an error.
func Inspect(path string) (TagReport, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".flac":
		return InspectFLAC(path)
	case ".mp3":
		return InspectMP3(path)
	default:
		return TagReport{}, fmt.Errorf("no local tag reader for %s", filepath.Ext(path))
	}
}

// InspectFLAC reads the vorbis comment and picture blocks of a FLAC file.
func InspectFLAC(path string) (TagReport, error) {
	file, err := os.Open(path)
	if err != nil {
		return TagReport{}, err
	}
	defer file.Close()

	parsed, err := flac.ParseMetadata(file)
	if err != nil {
		return TagReport{}, err
	}

	report := TagReport{Format: "flac"}
	for _, meta := range parsed.Meta {
		switch meta.Type {
		case flac.VorbisComment:
			cmt, err := flacvorbis.ParseFromMetaDataBlock(*meta)
			if err != nil {
				continue
			}
			report.Title = hasVorbis(cmt, flacvorbis.FIELD_TITLE)
			report.Artist = hasVorbis(cmt, flacvorbis.FIELD_ARTIST)
			report.Album = hasVorbis(cmt, flacvorbis.FIELD_ALBUM)
			report.TrackNumber = hasVorbis(cmt, flacvorbis.FIELD_TRACKNUMBER)
			report.Lyrics = hasVorbis(cmt, "LYRICS")
		case flac.Picture:
			if pic, err := flacpicture.ParseFromMetaDataBlock(*meta); err == nil && len(pic.ImageData) > 0 {
				report.Cover = true
			}
		}
	}
	return report, nil
}

func hasVorbis(cmt *flacvorbis.MetaDataBlockVorbisComment, field string) bool {
	values, err := cmt.Get(field)
	if err != nil {
		return false
	}
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}

// InspectMP3 reads the ID3v2 frames of an MP3 file.
func InspectMP3(path string) (TagReport, error) {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return TagReport{}, err
	}
	defer tag.Close()

	return TagReport{
		Format:      "mp3",
		Title:       strings.TrimSpace(tag.Title()) != "",
		Artist:      strings.TrimSpace(tag.Artist()) != "",
		Album:       strings.TrimSpace(tag.Album()) != "",
		TrackNumber: strings.TrimSpace(tag.GetTextFrame("TRCK").Text) != "",
		Lyrics:      len(tag.GetFrames("USLT")) > 0,
		Cover:       len(tag.GetFrames("APIC")) > 0,
	}, nil
}

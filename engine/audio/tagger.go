package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bogem/id3v2"
	"github.com/go-flac/flacpicture"
	"github.com/go-flac/flacvorbis"
	"github.com/go-flac/go-flac"
	"github.com/liuran001/TrackFetch-Go/engine"
)

// ErrUnsupportedTagFormat is returned for containers the local tagger cannot write.
var ErrUnsupportedTagFormat = errors.New("unsupported audio format for tags")

// Tagger writes tags in-process for MP3 and FLAC. It backs the external
// collaborator when that process is unavailable.
type Tagger struct {
	logger engine.Logger
}

func NewTagger(logger engine.Logger) *Tagger {
	return &Tagger{logger: logger}
}

// Supports reports whether path can be tagged locally.
func (t *Tagger) Supports(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3", ".flac":
		return true
	}
	return false
}

// WriteMetadata writes the basic fields of rec.
func (t *Tagger) WriteMetadata(path string, rec *engine.MetadataRecord) error {
	if rec == nil {
		return nil
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return t.editMP3(path, func(tag *id3v2.Tag) { writeMP3Basic(tag, rec) })
	case ".flac":
		return t.editFLAC(path, func(_ *flac.File, cmt *flacvorbis.MetaDataBlockVorbisComment) error {
			writeFLACBasic(cmt, rec)
			return nil
		})
	default:
		return ErrUnsupportedTagFormat
	}
}

// WriteLyrics stores lyrics in the file.
func (t *Tagger) WriteLyrics(path, lyrics string) error {
	if strings.TrimSpace(lyrics) == "" {
		return nil
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return t.editMP3(path, func(tag *id3v2.Tag) {
			tag.DeleteFrames("USLT")
			tag.AddUnsynchronisedLyricsFrame(id3v2.UnsynchronisedLyricsFrame{
				Encoding:          id3v2.EncodingUTF8,
				Language:          "und",
				ContentDescriptor: "LRC",
				Lyrics:            lyrics,
			})
		})
	case ".flac":
		return t.editFLAC(path, func(_ *flac.File, cmt *flacvorbis.MetaDataBlockVorbisComment) error {
			return cmt.Add("LYRICS", lyrics)
		})
	default:
		return ErrUnsupportedTagFormat
	}
}

// WriteCover embeds front cover artwork.
func (t *Tagger) WriteCover(path string, data []byte, mime string) error {
	if len(data) == 0 {
		return nil
	}
	if mime == "" {
		mime = DetectMIME(data)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return t.editMP3(path, func(tag *id3v2.Tag) {
			tag.DeleteFrames("APIC")
			tag.AddAttachedPicture(id3v2.PictureFrame{
				Encoding:    id3v2.EncodingISO,
				MimeType:    mime,
				PictureType: id3v2.PTFrontCover,
				Description: "Front cover",
				Picture:     data,
			})
		})
	case ".flac":
		return t.editFLAC(path, func(parsed *flac.File, _ *flacvorbis.MetaDataBlockVorbisComment) error {
			picture, err := flacpicture.NewFromImageData(flacpicture.PictureTypeFrontCover, "Front cover", data, mime)
			if err != nil {
				return err
			}
			kept := parsed.Meta[:0]
			for _, meta := range parsed.Meta {
				if meta.Type != flac.Picture {
					kept = append(kept, meta)
				}
			}
			block := picture.Marshal()
			parsed.Meta = append(kept, &block)
			return nil
		})
	default:
		return ErrUnsupportedTagFormat
	}
}

func (t *Tagger) editMP3(path string, edit func(tag *id3v2.Tag)) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return err
	}
	defer tag.Close()

	tag.SetDefaultEncoding(id3v2.EncodingUTF8)
	edit(tag)
	if err := tag.Save(); err != nil {
		return err
	}
	if t.logger != nil {
		t.logger.Debug("wrote mp3 tags", "path", path)
	}
	return nil
}

func (t *Tagger) editFLAC(path string, edit func(parsed *flac.File, cmt *flacvorbis.MetaDataBlockVorbisComment) error) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	parsed, err := flac.ParseMetadata(file)
	file.Close()
	if err != nil {
		return err
	}

	cmt := flacvorbis.New()
	for _, meta := range parsed.Meta {
		if meta.Type == flac.VorbisComment {
			if existing, err := flacvorbis.ParseFromMetaDataBlock(*meta); err == nil {
				cmt = existing
			}
			break
		}
	}

	if err := edit(parsed, cmt); err != nil {
		return err
	}
	setVorbisComment(parsed, cmt)

	if err := saveFLAC(path, parsed); err != nil {
		return err
	}
	if t.logger != nil {
		t.logger.Debug("wrote flac tags", "path", path)
	}
	return nil
}

func writeMP3Basic(tag *id3v2.Tag, rec *engine.MetadataRecord) {
	if rec.Title != "" {
		tag.SetTitle(rec.Title)
	}
	if rec.Artist != "" {
		tag.SetArtist(rec.Artist)
	}
	if rec.Album != "" {
		tag.SetAlbum(rec.Album)
	}
	if rec.Genre != "" {
		tag.SetGenre(rec.Genre)
	}
	setMP3Text(tag, "TPE2", rec.AlbumArtist)
	setMP3Text(tag, "TCOM", rec.Composer)
	setMP3Text(tag, "TSRC", rec.ISRC)
	if rec.Year > 0 {
		setMP3Text(tag, "TDRC", strconv.Itoa(rec.Year))
	}
	if rec.TrackNumber > 0 {
		setMP3Text(tag, "TRCK", strconv.Itoa(rec.TrackNumber))
	}
	if rec.DiscNumber > 0 {
		setMP3Text(tag, "TPOS", strconv.Itoa(rec.DiscNumber))
	}
}

func setMP3Text(tag *id3v2.Tag, id, value string) {
	if value == "" {
		return
	}
	tag.DeleteFrames(id)
	tag.AddTextFrame(id, id3v2.EncodingUTF8, value)
}

func writeFLACBasic(cmt *flacvorbis.MetaDataBlockVorbisComment, rec *engine.MetadataRecord) {
	fields := map[string]string{
		flacvorbis.FIELD_TITLE:  rec.Title,
		flacvorbis.FIELD_ARTIST: rec.Artist,
		flacvorbis.FIELD_ALBUM:  rec.Album,
		flacvorbis.FIELD_GENRE:  rec.Genre,
		flacvorbis.FIELD_ISRC:   rec.ISRC,
		"ALBUMARTIST":           rec.AlbumArtist,
		"COMPOSER":              rec.Composer,
	}
	if rec.Year > 0 {
		fields[flacvorbis.FIELD_DATE] = strconv.Itoa(rec.Year)
	}
	if rec.TrackNumber > 0 {
		fields[flacvorbis.FIELD_TRACKNUMBER] = strconv.Itoa(rec.TrackNumber)
	}
	if rec.DiscNumber > 0 {
		fields["DISCNUMBER"] = strconv.Itoa(rec.DiscNumber)
	}

	kept := cmt.Comments[:0]
	for _, comment := range cmt.Comments {
		name, _, _ := strings.Cut(comment, "=")
		if v, ok := fields[strings.ToUpper(name)]; ok && v != "" {
			continue
		}
		kept = append(kept, comment)
	}
	cmt.Comments = kept
	for name, value := range fields {
		if value != "" {
			_ = cmt.Add(name, value)
		}
	}
}

func setVorbisComment(parsed *flac.File, cmt *flacvorbis.MetaDataBlockVorbisComment) {
	meta := cmt.Marshal()
	for i, m := range parsed.Meta {
		if m.Type == flac.VorbisComment {
			parsed.Meta[i] = &meta
			return
		}
	}
	parsed.Meta = append(parsed.Meta, &meta)
}

// saveFLAC rewrites the metadata blocks in front of the original frames.
func saveFLAC(path string, parsed *flac.File) error {
	original, err := os.Open(path)
	if err != nil {
		return err
	}
	defer original.Close()

	stat, err := original.Stat()
	if err != nil {
		return err
	}
	frameOffset, err := flacFrameOffset(original)
	if err != nil {
		return err
	}

	tmpPath := path + ".tagging"
	out, err := os.OpenFile(tmpPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, stat.Mode())
	if err != nil {
		return err
	}
	cleanup := func(err error) error {
		_ = out.Close()
		_ = os.Remove(tmpPath)
		return err
	}

	if _, err := out.Write([]byte("fLaC")); err != nil {
		return cleanup(err)
	}
	for i, meta := range parsed.Meta {
		if _, err := out.Write(meta.Marshal(i == len(parsed.Meta)-1)); err != nil {
			return cleanup(err)
		}
	}
	if _, err := original.Seek(frameOffset, io.SeekStart); err != nil {
		return cleanup(err)
	}
	if _, err := io.Copy(out, original); err != nil {
		return cleanup(err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}

// flacFrameOffset returns the byte offset of the first audio frame, just past
// the last metadata block.
func flacFrameOffset(r io.ReadSeeker) (int64, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	magic := make([]byte, 4)
	if _, err := io.ReadFull(r, magic); err != nil {
		return 0, err
	}
	if string(magic) != "fLaC" {
		return 0, fmt.Errorf("not a flac stream")
	}
	offset := int64(4)
	header := make([]byte, 4)
	for {
		if _, err := io.ReadFull(r, header); err != nil {
			return 0, err
		}
		last := header[0]&0x80 != 0
		length := int64(header[1])<<16 | int64(header[2])<<8 | int64(header[3])
		offset += 4 + length
		if _, err := r.Seek(length, io.SeekCurrent); err != nil {
			return 0, err
		}
		if last {
			return offset, nil
		}
	}
}

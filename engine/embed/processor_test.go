package embed

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/liuran001/TrackFetch-Go/engine"
	"github.com/liuran001/TrackFetch-Go/engine/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	req map[string]any
}

func fakeProcessor(t *testing.T, reply string, calls *[]recordedCall) *Processor {
	t.Helper()
	p := NewProcessor(Options{Script: "processor.py"})
	p.run = func(ctx context.Context, stdin []byte) ([]byte, []byte, error) {
		var req map[string]any
		require.NoError(t, json.Unmarshal(stdin, &req))
		*calls = append(*calls, recordedCall{req: req})
		return []byte(reply), nil, nil
	}
	return p
}

func TestEmbedMetadataRequestShape(t *testing.T) {
	var calls []recordedCall
	p := fakeProcessor(t, `{"success": true}`, &calls)

	err := p.EmbedMetadata(context.Background(), "/music/a.mp3", &engine.MetadataRecord{
		Title:       "One More Time\x07",
		Artist:      " Daft Punk ",
		TrackNumber: 4,
	})
	require.NoError(t, err)
	require.Len(t, calls, 1)

	req := calls[0].req
	assert.Equal(t, "embed_metadata_only", req["action"])
	assert.Equal(t, "/music/a.mp3", req["file_path"])
	meta := req["metadata"].(map[string]any)
	assert.Equal(t, "One More Time", meta["title"])
	assert.Equal(t, "Daft Punk", meta["artist"])
	assert.EqualValues(t, 4, meta["track_number"])
}

func TestEmbedCoverArtSendsBase64(t *testing.T) {
	var calls []recordedCall
	p := fakeProcessor(t, `{"success": true}`, &calls)

	require.NoError(t, p.EmbedCoverArt(context.Background(), "/music/a.flac", []byte{0xFF, 0xD8, 0xFF}, "image/jpeg"))
	cover := calls[0].req["cover_art"].(map[string]any)
	assert.Equal(t, "/9j/", cover["data"])
	assert.Equal(t, "image/jpeg", cover["mime_type"])
}

func TestEmptyPayloadsSkipTheProcess(t *testing.T) {
	var calls []recordedCall
	p := fakeProcessor(t, `{"success": true}`, &calls)

	require.NoError(t, p.EmbedLyrics(context.Background(), "/a.mp3", "  "))
	require.NoError(t, p.EmbedCoverArt(context.Background(), "/a.mp3", nil, ""))
	require.NoError(t, p.EmbedMetadata(context.Background(), "/a.mp3", nil))
	assert.Empty(t, calls)
}

func TestCallReportsCollaboratorError(t *testing.T) {
	var calls []recordedCall
	p := fakeProcessor(t, "loading mutagen\n{\"error\": \"File does not exist\"}\n", &calls)

	_, err := p.Call(context.Background(), &Request{Action: "embed_lyrics", FilePath: "/x.mp3", Lyrics: "la"})
	var collabErr *CollaboratorError
	require.True(t, errors.As(err, &collabErr))
	assert.Equal(t, "embed_lyrics", collabErr.Action)
	assert.Equal(t, "File does not exist", collabErr.Message)
}

func TestCallNonZeroExitCarriesStderr(t *testing.T) {
	p := NewProcessor(Options{Script: "processor.py"})
	p.run = func(ctx context.Context, stdin []byte) ([]byte, []byte, error) {
		return nil, []byte("Traceback: boom"), errors.New("exit status 1")
	}
	_, err := p.Call(context.Background(), &Request{Action: "read_metadata"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Traceback: boom")
}

func TestCallWithoutScript(t *testing.T) {
	p := NewProcessor(Options{})
	assert.False(t, p.Configured())
	_, err := p.Call(context.Background(), &Request{Action: "read_metadata"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestValidateReport(t *testing.T) {
	var calls []recordedCall
	p := fakeProcessor(t, `{"success": false, "missing_required_fields": ["ALBUM"], "cover_art_present": true}`, &calls)

	report, err := p.Validate(context.Background(), "/a.flac", engine.FormatFLAC)
	require.NoError(t, err)
	assert.Equal(t, "validate_flac_metadata", calls[0].req["action"])
	assert.False(t, report.Valid)
	assert.Equal(t, []string{"ALBUM"}, report.Missing)
	assert.True(t, report.Cover)
}

func TestProcessorRunsRealScript(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "processor.sh")
	body := "#!/bin/sh\ncat > \"" + filepath.Join(dir, "request.json") + "\"\necho \"{\\\"success\\\": true, \\\"metadata\\\": {\\\"title\\\": \\\"$FFMPEG_BINARY\\\"}}\"\n"
	require.NoError(t, os.WriteFile(script, []byte(body), 0755))

	p := NewProcessor(Options{Command: sh, Script: script, FFmpegPath: "/opt/ffmpeg"})
	rec, err := p.ReadMetadata(context.Background(), "/music/a.mp3")
	require.NoError(t, err)
	assert.Equal(t, "/opt/ffmpeg", rec.Title)

	sent, err := os.ReadFile(filepath.Join(dir, "request.json"))
	require.NoError(t, err)
	assert.True(t, bytes.Contains(sent, []byte(`"action":"read_metadata"`)))
}

func TestFallbackTagsLocallyWhenProcessorMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "track.mp3")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte{0xFF, 0xFB, 0x90, 0x00}, 512), 0644))

	emb := WithLocalFallback(NewProcessor(Options{}), audio.NewTagger(nil), nil)
	ctx := context.Background()
	require.NoError(t, emb.EmbedMetadata(ctx, path, &engine.MetadataRecord{Title: "Aerodynamic", Artist: "Daft Punk", Album: "Discovery", TrackNumber: 2}))

	report, err := emb.Validate(ctx, path, engine.FormatMP3)
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.False(t, report.Lyrics)
}

func TestFallbackLeavesUnsupportedFormatsToProcessorError(t *testing.T) {
	emb := WithLocalFallback(NewProcessor(Options{}), audio.NewTagger(nil), nil)
	err := emb.EmbedLyrics(context.Background(), "/music/a.opus", "la la")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

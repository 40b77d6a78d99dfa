package app

// Provider packages register themselves with the metadata registry on import.
import (
	_ "github.com/liuran001/TrackFetch-Go/plugins/deezer"
	_ "github.com/liuran001/TrackFetch-Go/plugins/genius"
	_ "github.com/liuran001/TrackFetch-Go/plugins/itunes"
	_ "github.com/liuran001/TrackFetch-Go/plugins/lrclib"
	_ "github.com/liuran001/TrackFetch-Go/plugins/lyricsovh"
	_ "github.com/liuran001/TrackFetch-Go/plugins/musicbrainz"
	_ "github.com/liuran001/TrackFetch-Go/plugins/musixmatch"
	_ "github.com/liuran001/TrackFetch-Go/plugins/spotify"
)

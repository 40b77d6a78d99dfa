package metadata

import (
	"sort"
	"strings"

	"github.com/liuran001/TrackFetch-Go/engine"
)

// Merge combines provider results with a fixed precedence. The primary
// catalog supplies title, artist, album and cover. The detail database
// supplies year, genre, disc, album artist, composer and ISRC, and fills
// the basic fields only if still empty. The storefront fills whatever is
// left. Merge returns nil when neither a title nor an artist was found.
func Merge(results []ProviderResult) *engine.MetadataRecord {
	ordered := make([]ProviderResult, len(results))
	copy(ordered, results)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Role != ordered[j].Role {
			return ordered[i].Role < ordered[j].Role
		}
		return ordered[i].Score > ordered[j].Score
	})

	rec := &engine.MetadataRecord{}
	for _, r := range ordered {
		artist := strings.Join(r.Artists, ", ")
		fillString(&rec.Title, r.Title)
		fillString(&rec.Artist, artist)
		fillString(&rec.Album, r.Album)
		fillString(&rec.CoverArtURL, r.CoverArtURL)

		if r.Role == RolePrimary {
			fillInt(&rec.TrackNumber, r.TrackNumber)
			continue
		}

		fillInt(&rec.Year, r.Year)
		fillString(&rec.Genre, r.Genre)
		fillInt(&rec.DiscNumber, r.DiscNumber)
		fillString(&rec.AlbumArtist, r.AlbumArtist)
		fillString(&rec.Composer, r.Composer)
		fillString(&rec.ISRC, r.ISRC)
		fillInt(&rec.TrackNumber, r.TrackNumber)
	}

	if !rec.Usable() {
		return nil
	}
	return rec
}

func fillString(dst *string, v string) {
	if strings.TrimSpace(*dst) == "" {
		*dst = strings.TrimSpace(v)
	}
}

func fillInt(dst *int, v int) {
	if *dst == 0 && v > 0 {
		*dst = v
	}
}

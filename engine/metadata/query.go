package metadata

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/samber/lo"
)

// FieldSyntax describes a provider's field-qualified search language. A zero
// value means the provider only understands free text.
type FieldSyntax struct {
	Title  string
	Artist string
	Joiner string
}

// BuildPhrasings returns the query phrasings for q, most specific first:
// quoted exact, field-qualified, loose, then character-cleaned.
func BuildPhrasings(q Query, syntax FieldSyntax) []string {
	artist := strings.TrimSpace(q.Artist)
	title := strings.TrimSpace(q.Title)
	if title == "" {
		return nil
	}
	joiner := syntax.Joiner
	if joiner == "" {
		joiner = " "
	}

	var phrasings []string
	if syntax.Title != "" && syntax.Artist != "" && artist != "" {
		phrasings = append(phrasings,
			fmt.Sprintf(`%s:"%s"%s%s:"%s"`, syntax.Title, title, joiner, syntax.Artist, artist),
			fmt.Sprintf(`%s:%s%s%s:%s`, syntax.Title, title, joiner, syntax.Artist, artist),
		)
	} else if artist != "" {
		phrasings = append(phrasings, fmt.Sprintf(`"%s" "%s"`, artist, title))
	}
	phrasings = append(phrasings,
		strings.TrimSpace(artist+" "+title),
		strings.TrimSpace(CleanQuery(artist)+" "+CleanQuery(title)),
	)
	return lo.Uniq(lo.Compact(phrasings))
}

var noiseSuffixes = []string{
	" (Lyrics)",
	" (Official Video)",
	" (Official Audio)",
	" (Official)",
	" [Official Video]",
	" [Official Audio]",
	" [Official]",
	" - Lyrics",
	" - Official Video",
	" - Official Audio",
	" - Official",
	" (Music Video)",
	" [Music Video]",
	" (Audio)",
	" [Audio]",
}

// CleanTrackName strips the video-site decorations commonly appended to titles.
func CleanTrackName(name string) string {
	for _, noise := range noiseSuffixes {
		name = strings.ReplaceAll(name, noise, "")
	}
	return strings.TrimSpace(name)
}

var nonQueryChars = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)

// CleanQuery removes decorations and punctuation that confuse search backends.
func CleanQuery(s string) string {
	s = nonQueryChars.ReplaceAllString(CleanTrackName(s), " ")
	return strings.Join(strings.Fields(s), " ")
}

var titlePatterns = []struct {
	re          *regexp.Regexp
	artistFirst bool
}{
	{regexp.MustCompile(`^[^-]+ - ([^-]+) - (.+?)(?:\s*\([^)]*\))?$`), true},
	{regexp.MustCompile(`^([^-]+) - (.+?)(?:\s*\([^)]*\))?$`), true},
	{regexp.MustCompile(`^(.+?)(?:\s*\([^)]*\))? - ([^-]+)$`), false},
}

// ParseVideoTitle extracts (artist, title) from a video title such as
// "Channel - Artist - Song (Lyrics)", "Artist - Song (Official Video)" or
// "Song (Audio) - Artist". When no pattern matches the given artist and
// title are returned cleaned.
func ParseVideoTitle(artist, title string) (string, string) {
	for _, p := range titlePatterns {
		m := p.re.FindStringSubmatch(title)
		if m == nil {
			continue
		}
		if p.artistFirst {
			return CleanTrackName(m[1]), CleanTrackName(m[2])
		}
		return CleanTrackName(m[2]), CleanTrackName(m[1])
	}
	return CleanTrackName(artist), CleanTrackName(title)
}

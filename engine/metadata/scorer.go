package metadata

import (
	"strings"
	"unicode"

	"github.com/samber/lo"
)

// MatchThreshold is the minimum score a candidate needs to be accepted.
const MatchThreshold = 0.6

const (
	titleWeight  = 0.5
	artistWeight = 0.35
	albumWeight  = 0.15

	exactTitleBonus  = 0.2
	exactArtistBonus = 0.1
)

// Score rates how well candidate matches q. Scores range from 0 to about 1.3.
// When q names an artist, a candidate sharing none of it scores 0.
func Score(q Query, candidate ProviderResult) float64 {
	score := similarity(q.Title, candidate.Title) * titleWeight

	bestArtist := 0.0
	for _, artist := range candidate.Artists {
		bestArtist = max(bestArtist, similarity(q.Artist, artist))
	}
	// A title alone can't identify a recording; common titles exist under
	// many artists.
	if strings.TrimSpace(q.Artist) != "" && bestArtist == 0 {
		return 0
	}
	score += bestArtist * artistWeight

	if strings.TrimSpace(q.Album) != "" {
		score += albumSimilarity(q.Album, candidate.Album) * albumWeight
	}

	if t := strings.TrimSpace(q.Title); t != "" && t == strings.TrimSpace(candidate.Title) {
		score += exactTitleBonus
	}
	if a := strings.TrimSpace(q.Artist); a != "" && lo.ContainsBy(candidate.Artists, func(c string) bool {
		return strings.TrimSpace(c) == a
	}) {
		score += exactArtistBonus
	}
	return score
}

// Accepts reports whether candidate clears MatchThreshold for q.
func Accepts(q Query, candidate ProviderResult) bool {
	return Score(q, candidate) >= MatchThreshold
}

// similarity is 1.0 on a normalised match, 0.8 when one contains the other as
// whole words, and otherwise the word overlap ratio scaled by 0.6.
func similarity(target, candidate string) float64 {
	t := normalize(target)
	c := normalize(candidate)
	if t == "" || c == "" {
		return 0
	}
	if t == c {
		return 1.0
	}
	if containsWords(c, t) || containsWords(t, c) {
		return 0.8
	}
	return wordOverlap(t, c) * 0.6
}

func albumSimilarity(target, candidate string) float64 {
	t := normalize(target)
	c := normalize(candidate)
	if t == "" || c == "" {
		return 0
	}
	if t == c {
		return 1.0
	}
	if containsWords(c, t) || containsWords(t, c) || wordOverlap(t, c) > 0 {
		return 0.5
	}
	return 0
}

func containsWords(haystack, needle string) bool {
	return strings.Contains(" "+haystack+" ", " "+needle+" ")
}

func wordOverlap(a, b string) float64 {
	aw := lo.Uniq(strings.Fields(a))
	bw := lo.Uniq(strings.Fields(b))
	if len(aw) == 0 || len(bw) == 0 {
		return 0
	}
	common := len(lo.Intersect(aw, bw))
	return float64(common) / float64(max(len(aw), len(bw)))
}

// normalize lowercases s and reduces it to space separated letters and digits.
func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// best returns the highest scoring candidate for q, with Score filled.
func best(q Query, candidates []ProviderResult) (ProviderResult, bool) {
	if len(candidates) == 0 {
		return ProviderResult{}, false
	}
	scored := lo.Map(candidates, func(c ProviderResult, _ int) ProviderResult {
		c.Score = Score(q, c)
		return c
	})
	return lo.MaxBy(scored, func(a, b ProviderResult) bool { return a.Score > b.Score }), true
}

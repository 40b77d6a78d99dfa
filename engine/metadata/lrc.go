package metadata

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	lrcStampRe   = regexp.MustCompile(`\[(\d+):(\d{1,2})(?:[.:](\d{1,3}))?\]`)
	lrcLeadingRe = regexp.MustCompile(`^(?:\s*\[\d+:\d{1,2}(?:[.:]\d{1,3})?\])+`)
)

type lrcLine struct {
	at   time.Duration
	text string
}

// NormalizeLRC rewrites synced lyrics so every line carries exactly one
// [mm:ss.xx] stamp. Lines with several stamps are expanded, timed lines are
// ordered by time, and untimed header lines ([ar:...], blanks) keep their
// place at the top.
func NormalizeLRC(lyrics string) string {
	var header []string
	var timed []lrcLine
	for _, raw := range strings.Split(strings.ReplaceAll(lyrics, "\r\n", "\n"), "\n") {
		line := strings.TrimRight(raw, " \t")
		prefix := lrcLeadingRe.FindString(line)
		if prefix == "" {
			if len(timed) == 0 {
				header = append(header, line)
			} else if strings.TrimSpace(line) != "" {
				// Continuation text belongs to the previous stamp.
				timed[len(timed)-1].text += " " + strings.TrimSpace(line)
			}
			continue
		}
		text := strings.TrimSpace(line[len(prefix):])
		for _, stamp := range lrcStampRe.FindAllStringSubmatch(prefix, -1) {
			timed = append(timed, lrcLine{at: stampDuration(stamp), text: text})
		}
	}
	if len(timed) == 0 {
		return lyrics
	}

	sort.SliceStable(timed, func(i, j int) bool { return timed[i].at < timed[j].at })
	out := make([]string, 0, len(header)+len(timed))
	out = append(out, header...)
	for _, l := range timed {
		out = append(out, formatStamp(l.at)+l.text)
	}
	return strings.Join(out, "\n")
}

func stampDuration(parts []string) time.Duration {
	minutes, _ := strconv.Atoi(parts[1])
	seconds, _ := strconv.Atoi(parts[2])
	return time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second +
		time.Duration(centiseconds(parts[3]))*10*time.Millisecond
}

func formatStamp(d time.Duration) string {
	cs := int(d / (10 * time.Millisecond))
	return fmt.Sprintf("[%02d:%02d.%02d]", cs/6000, (cs/100)%60, cs%100)
}

// centiseconds reads the fraction field; three-digit millis are truncated.
func centiseconds(frac string) int {
	if frac == "" {
		return 0
	}
	if len(frac) > 2 {
		frac = frac[:2]
	}
	v, err := strconv.Atoi(frac)
	if err != nil {
		return 0
	}
	if len(frac) == 1 {
		v *= 10
	}
	return v
}

// IsSynced reports whether lyrics carry LRC timestamps.
func IsSynced(lyrics string) bool {
	for _, line := range strings.Split(lyrics, "\n") {
		if lrcLeadingRe.MatchString(strings.TrimSpace(line)) {
			return true
		}
	}
	return false
}

package vocabindex

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Line is one cleaned, non-empty line of index text. Index is its position in
// the normalized sequence.
type Line struct {
	Index int
	Text  string
}

// NormalizeLines turns raw extracted text into an ordered sequence of lines:
// NFC-normalized, trimmed, empty lines dropped, everything before the first
// StartMarker line dropped, footer lines dropped. When the marker never
// appears the whole text is kept.
func NormalizeLines(raw string, c *Classifier, stats *Stats) []Line {
	raw = norm.NFC.String(raw)

	var cleaned []string
	for _, l := range strings.Split(raw, "\n") {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		cleaned = append(cleaned, l)
	}
	stats.TotalLines = len(cleaned)

	start := 0
	if marker := c.opts.StartMarker; marker != "" {
		for i, l := range cleaned {
			if l == marker {
				start = i
				stats.MarkerFound = true
				break
			}
		}
	}
	stats.FrontMatterLines = start

	lines := make([]Line, 0, len(cleaned)-start)
	for _, l := range cleaned[start:] {
		if c.IsFooter(l) {
			stats.FooterLines++
			continue
		}
		lines = append(lines, Line{Index: len(lines), Text: l})
	}
	return lines
}

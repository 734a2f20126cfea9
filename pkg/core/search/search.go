// Package search counts keyword occurrences in filing payloads and
// produces highlighted context excerpts.
package search

import (
	"strings"

	"edgarbulk/pkg/models"
)

// contextWindow is the number of characters of context captured on each
// side of a match.
const contextWindow = 255

// Highlight markers wrap matched terms in excerpts.
const (
	markOpen  = "<mark>"
	markClose = "</mark>"
)

// excerptSeparator joins the per-match excerpts for rendering.
const excerptSeparator = "\n...\n"

// Search counts case-insensitive substring occurrences of each term,
// summed across terms, and extracts a highlighted context window around
// every match. Zero hits produce no excerpt artifact.
func Search(payload string, terms []string) models.SearchResult {
	lower := strings.ToLower(payload)

	var hits int
	var excerpts []string
	for _, term := range terms {
		t := strings.ToLower(strings.TrimSpace(term))
		if t == "" {
			continue
		}
		for from := 0; ; {
			i := strings.Index(lower[from:], t)
			if i < 0 {
				break
			}
			at := from + i
			hits++
			excerpts = append(excerpts, excerpt(payload, at, len(t)))
			from = at + len(t)
		}
	}

	if hits == 0 {
		return models.SearchResult{}
	}
	return models.SearchResult{
		HitCount: hits,
		Excerpts: strings.Join(excerpts, excerptSeparator),
	}
}

// excerpt captures up to contextWindow characters on each side of the
// match and wraps the matched text in highlight markers.
func excerpt(payload string, at, length int) string {
	start := at - contextWindow
	if start < 0 {
		start = 0
	}
	end := at + length + contextWindow
	if end > len(payload) {
		end = len(payload)
	}
	var b strings.Builder
	b.WriteString(payload[start:at])
	b.WriteString(markOpen)
	b.WriteString(payload[at : at+length])
	b.WriteString(markClose)
	b.WriteString(payload[at+length : end])
	return b.String()
}

// Package section locates named sections (business description,
// management discussion and analysis) inside normalized filing text.
//
// Five decades of filings use inconsistent heading styles, so location
// works over a normalized rendition of the payload: spelled-out ordinals
// and Roman item numbers become Arabic, "Items" becomes "Item", heading
// punctuation is dropped and wrapped titles are merged back onto their
// item-number line. Boundary detection is an ordered list of pattern
// variants per section, explicit and independently testable.
package section

import (
	"regexp"
	"strings"
)

// ID names a locatable section.
type ID string

const (
	BusinessDescription   ID = "business_description"
	DiscussionAndAnalysis ID = "discussion_and_analysis"
)

// Result is the outcome of one location attempt.
type Result struct {
	Text  string
	Found bool
}

// minWords is the floor below which a candidate is rejected as a
// false-positive single-line match (tables of contents etc).
const minWords = 100

// boundaryPair is one start/end pattern combination.
type boundaryPair struct {
	starts []*regexp.Regexp // ordered variants; first with a match wins
	ends   []*regexp.Regexp
}

// definition holds the primary pair and the combined-items fallback for
// one section.
type definition struct {
	primary  boundaryPair
	fallback boundaryPair
}

var definitions = map[ID]definition{
	BusinessDescription: {
		primary: boundaryPair{
			starts: []*regexp.Regexp{
				regexp.MustCompile(`(?i)\bitem\s*1\s+business\b`),
				regexp.MustCompile(`(?i)\bitem\s*1\s+description\s+of\s+business\b`),
			},
			ends: []*regexp.Regexp{
				regexp.MustCompile(`(?i)\bitem\s*2\s+properties\b`),
				regexp.MustCompile(`(?i)\bitem\s*2\s+real\s+estate\b`),
			},
		},
		fallback: boundaryPair{
			starts: []*regexp.Regexp{
				regexp.MustCompile(`(?i)\bitem\s*1\s+and\s+2\s+business\s+and\s+properties\b`),
			},
			ends: []*regexp.Regexp{
				regexp.MustCompile(`(?i)\bitem\s*3\s+legal\s+proceedings\b`),
			},
		},
	},
	DiscussionAndAnalysis: {
		primary: boundaryPair{
			starts: []*regexp.Regexp{
				regexp.MustCompile(`(?i)\bitem\s*7\s+managements?\s+discussion\s+and\s+analysis\b`),
				regexp.MustCompile(`(?i)\bitem\s*7\s+discussion\s+and\s+analysis\b`),
			},
			ends: []*regexp.Regexp{
				regexp.MustCompile(`(?i)\bitem\s*7a\s+quantitative\s+and\s+qualitative\b`),
				regexp.MustCompile(`(?i)\bitem\s*8\s+(?:consolidated\s+)?financial\s+statements\b`),
			},
		},
		fallback: boundaryPair{
			starts: []*regexp.Regexp{
				regexp.MustCompile(`(?i)\bitem\s*7\s+managements?\b`),
			},
			ends: []*regexp.Regexp{
				regexp.MustCompile(`(?i)\bitem\s*8\b`),
			},
		},
	},
}

// Locate finds a section inside a normalized payload. Found is false
// when no boundary pair matches or the candidate body is under the word
// floor.
func Locate(payload string, id ID) Result {
	def, ok := definitions[id]
	if !ok {
		return Result{}
	}

	text := Normalize(payload)

	if body, ok := locateWithPair(text, def.primary); ok {
		return Result{Text: body, Found: true}
	}
	if body, ok := locateWithPair(text, def.fallback); ok {
		return Result{Text: body, Found: true}
	}
	return Result{}
}

// locateWithPair applies one boundary pair with the documented tie-break
// policy:
//
//   - equal start/end match counts: pair them positionally and keep the
//     longest candidate by word count (duplicated tables of contents
//     yield short early pairs and one long real pair);
//   - unequal counts: use only the last start match and the last end
//     match.
//
// The two branches intentionally differ; see DESIGN.md.
func locateWithPair(text string, pair boundaryPair) (string, bool) {
	starts := firstMatching(text, pair.starts)
	ends := firstMatching(text, pair.ends)
	if len(starts) == 0 || len(ends) == 0 {
		return "", false
	}

	var body string
	if len(starts) == len(ends) {
		best := ""
		bestWords := 0
		for i := range starts {
			if ends[i] <= starts[i] {
				continue
			}
			candidate := text[starts[i]:ends[i]]
			if n := len(strings.Fields(candidate)); n > bestWords {
				best, bestWords = candidate, n
			}
		}
		body = best
	} else {
		start := starts[len(starts)-1]
		end := ends[len(ends)-1]
		if end <= start {
			return "", false
		}
		body = text[start:end]
	}

	body = truncateTrailingHeading(body, pair.ends)
	body = strings.TrimSpace(body)
	if len(strings.Fields(body)) < minWords {
		return "", false
	}
	return body, true
}

// firstMatching returns match start offsets for the first variant that
// matches at all, preserving the ordered-variant semantics.
func firstMatching(text string, variants []*regexp.Regexp) []int {
	for _, re := range variants {
		locs := re.FindAllStringIndex(text, -1)
		if len(locs) == 0 {
			continue
		}
		offsets := make([]int, len(locs))
		for i, l := range locs {
			offsets[i] = l[0]
		}
		return offsets
	}
	return nil
}

// truncateTrailingHeading cuts off an accidentally captured next-item
// heading at the tail of the body.
func truncateTrailingHeading(body string, ends []*regexp.Regexp) string {
	for _, re := range ends {
		if loc := re.FindStringIndex(body); loc != nil {
			body = body[:loc[0]]
		}
	}
	return body
}

// ---------------------------------------------------------------------------
// Normalization
// ---------------------------------------------------------------------------

var (
	// Spelled-out ordinals after "Item".
	ordinalWords = map[string]string{
		"one": "1", "two": "2", "three": "3", "four": "4", "five": "5",
		"six": "6", "seven": "7", "eight": "8", "nine": "9", "ten": "10",
		"eleven": "11", "twelve": "12", "thirteen": "13", "fourteen": "14",
	}
	romanNumerals = map[string]string{
		"i": "1", "ii": "2", "iii": "3", "iv": "4", "v": "5",
		"vi": "6", "vii": "7", "viii": "8", "ix": "9", "x": "10",
	}

	itemWordRe  = regexp.MustCompile(`(?i)\bitems?\s+([a-z]+)\b`)
	itemsRe     = regexp.MustCompile(`(?i)\bitems\b`)
	headingPunc = regexp.MustCompile(`[.:;,\-_()"]`)
	bareItemRe  = regexp.MustCompile(`(?i)^item\s*\d+a?$`)
)

// Normalize prepares payload text for boundary matching: punctuation and
// whitespace normalization, ordinal and Roman numeral expansion,
// Items->Item, blank-line removal and wrapped-title merging.
// Apostrophes are deleted rather than spaced so contractions stay one
// token ("Management's" -> "Managements").
func Normalize(payload string) string {
	payload = strings.ReplaceAll(payload, "'", "")
	payload = headingPunc.ReplaceAllString(payload, " ")
	payload = itemsRe.ReplaceAllString(payload, "Item")

	// "Item ONE" -> "Item 1", "Item II" -> "Item 2". Roman and ordinal
	// maps only apply to the word directly after Item so prose like
	// "item five of the plan" far from headings is harmless to rewrite.
	payload = itemWordRe.ReplaceAllStringFunc(payload, func(m string) string {
		sub := itemWordRe.FindStringSubmatch(m)
		word := strings.ToLower(sub[1])
		if n, ok := ordinalWords[word]; ok {
			return "Item " + n
		}
		if n, ok := romanNumerals[word]; ok {
			return "Item " + n
		}
		return m
	})

	lines := strings.Split(payload, "\n")
	out := make([]string, 0, len(lines))
	for i := 0; i < len(lines); i++ {
		line := strings.Join(strings.Fields(lines[i]), " ")
		if line == "" {
			continue
		}
		// A bare "Item 1" header whose title wrapped to the next line is
		// merged back so the variant patterns can see both parts.
		if bareItemRe.MatchString(line) {
			for j := i + 1; j < len(lines); j++ {
				next := strings.Join(strings.Fields(lines[j]), " ")
				if next == "" {
					continue
				}
				line = line + " " + next
				i = j
				break
			}
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

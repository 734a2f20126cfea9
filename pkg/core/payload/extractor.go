// Package payload isolates the primary document of a raw EDGAR filing
// container and normalizes it to plain 7-bit text.
//
// Raw filing files are multi-document SGML containers. Depending on the
// filing era the primary document is plain text, HTML, or an iXBRL
// wrapper; the extractor sniffs the format once and dispatches to the
// matching extractor.
package payload

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"edgarbulk/pkg/core/index"
)

// Format classifies the primary document payload.
type Format int

const (
	FormatPlain Format = iota
	FormatMarkup
	FormatXbrlWrapped
)

func (f Format) String() string {
	switch f {
	case FormatPlain:
		return "plain"
	case FormatMarkup:
		return "markup"
	case FormatXbrlWrapped:
		return "xbrl"
	}
	return "unknown"
}

// Mode selects which normalization applies: section location keeps the
// full payload, keyword search drops iXBRL boilerplate ahead of the
// report body.
type Mode int

const (
	ModeSection Mode = iota
	ModeSearch
)

// Container marker pairs, in historical order; first match wins.
var containerMarkers = []struct{ open, close string }{
	{"<DOCUMENT>", "</DOCUMENT>"},
	{"<TEXT>", "</TEXT>"},
}

// Markup indicators for format sniffing.
var markupIndicators = []string{
	"<!DOCTYPE",
	"<!doctype",
	"<html",
	"<HTML",
	"<div",
	"<DIV",
	"10k.htm",
}

const xbrlMarker = "<XBRL"

// xbrlSearchAnchor: when extracting for keyword search, leading iXBRL
// boilerplate before the first "ANNUAL REPORT" occurrence is dropped.
const xbrlSearchAnchor = "ANNUAL REPORT"

// extractor turns one payload format into visible text.
type extractor interface {
	extract(slice string, mode Mode) (string, error)
}

// Sniff classifies a document slice. Pure function; called once per
// filing.
func Sniff(slice string) Format {
	if strings.Contains(slice, xbrlMarker) || strings.Contains(slice, "<xbrl") {
		return FormatXbrlWrapped
	}
	for _, ind := range markupIndicators {
		if strings.Contains(slice, ind) {
			return FormatMarkup
		}
	}
	return FormatPlain
}

// Extract isolates the primary document from a raw filing container and
// returns its normalized plain text. Absent container markers the full
// raw content is used; that is a fallback, never an error.
func Extract(raw string, mode Mode) (string, error) {
	slice := primarySlice(raw)

	var ex extractor
	switch Sniff(slice) {
	case FormatXbrlWrapped:
		ex = xbrlExtractor{}
	case FormatMarkup:
		ex = markupExtractor{}
	default:
		ex = plainExtractor{}
	}

	text, err := ex.extract(slice, mode)
	if err != nil {
		return "", err
	}
	return index.ToASCII(text), nil
}

// primarySlice keeps the first region bounded by a known container
// marker pair.
func primarySlice(raw string) string {
	for _, m := range containerMarkers {
		start := strings.Index(raw, m.open)
		if start < 0 {
			continue
		}
		rest := raw[start+len(m.open):]
		end := strings.Index(rest, m.close)
		if end < 0 {
			continue
		}
		return rest[:end]
	}
	return raw
}

type plainExtractor struct{}

func (plainExtractor) extract(slice string, _ Mode) (string, error) {
	return slice, nil
}

type markupExtractor struct{}

func (markupExtractor) extract(slice string, _ Mode) (string, error) {
	return visibleText(slice)
}

type xbrlExtractor struct{}

func (xbrlExtractor) extract(slice string, mode Mode) (string, error) {
	text, err := visibleText(slice)
	if err != nil {
		return "", err
	}
	if mode == ModeSearch {
		// iXBRL wrappers front-load machine-readable tagging; for search
		// the report body starts at the first ANNUAL REPORT heading.
		if i := strings.Index(strings.ToUpper(text), xbrlSearchAnchor); i >= 0 {
			text = text[i:]
		}
	}
	return text, nil
}

// visibleText parses markup with goquery and concatenates text nodes,
// excluding script/style/noscript/form subtrees.
func visibleText(markup string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return "", fmt.Errorf("failed to parse markup: %w", err)
	}
	doc.Find("script, style, noscript, form").Remove()

	var b strings.Builder
	sel := doc.Find("body")
	if sel.Length() == 0 {
		sel = doc.Selection
	}
	sel.Contents().Each(func(_ int, s *goquery.Selection) {
		appendBlockText(&b, s)
	})
	return b.String(), nil
}

// appendBlockText walks the selection writing text with line breaks at
// block boundaries so heading lines stay separable downstream.
func appendBlockText(b *strings.Builder, s *goquery.Selection) {
	text := strings.TrimSpace(s.Text())
	if text == "" {
		return
	}
	switch goquery.NodeName(s) {
	case "p", "div", "tr", "table", "h1", "h2", "h3", "h4", "h5", "h6", "li", "br":
		b.WriteString("\n")
		b.WriteString(text)
		b.WriteString("\n")
	default:
		b.WriteString(text)
		b.WriteString(" ")
	}
}
